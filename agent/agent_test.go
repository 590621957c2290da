package agent

import (
	"context"
	"errors"
	"testing"

	"callbridge/models"
)

func validScripted() models.AgentConfig {
	return models.AgentConfig{
		Type:            models.AgentScripted,
		InitialMessage:  models.Str("Thanks for calling."),
		PromptPreamble:  models.Str(""),
		FallbackMessage: "Let me connect you with one of our team members.",
		Script: []models.FAQEntry{
			{
				Question: "What are your business hours?",
				Answer:   "We are open Monday through Friday, 8am to 6pm.",
				Intent:   "regular_hours",
			},
			{
				Question: "Do you repair furnaces?",
				Answer:   "Yes, we service all major furnace brands.",
			},
		},
	}
}

func TestFactoryRejectsInvalidConfig(t *testing.T) {
	f := NewFactory("")

	cases := []struct {
		name string
		cfg  models.AgentConfig
	}{
		{"missing type", models.AgentConfig{
			InitialMessage: models.Str(""), PromptPreamble: models.Str(""),
		}},
		{"unknown type", models.AgentConfig{
			Type: "psychic", InitialMessage: models.Str(""), PromptPreamble: models.Str(""),
		}},
		{"missing initial message", models.AgentConfig{
			Type: models.AgentSpeller, PromptPreamble: models.Str(""),
		}},
		{"missing preamble", models.AgentConfig{
			Type: models.AgentSpeller, InitialMessage: models.Str(""),
		}},
		{"chatgpt without model", models.AgentConfig{
			Type: models.AgentChatGPT, InitialMessage: models.Str(""), PromptPreamble: models.Str(""),
		}},
		{"chatgpt without api key", models.AgentConfig{
			Type: models.AgentChatGPT, InitialMessage: models.Str(""), PromptPreamble: models.Str(""),
			Model: "gpt-4o-mini",
		}},
		{"scripted without fallback", func() models.AgentConfig {
			cfg := validScripted()
			cfg.FallbackMessage = ""
			return cfg
		}()},
		{"classifying chatgpt without fallback", models.AgentConfig{
			Type: models.AgentChatGPT, InitialMessage: models.Str(""), PromptPreamble: models.Str(""),
			Model: "gpt-4o-mini", IntentClassification: true,
		}},
		{"incomplete script entry", func() models.AgentConfig {
			cfg := validScripted()
			cfg.Script = append(cfg.Script, models.FAQEntry{Question: "orphan"})
			return cfg
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.Build(tc.cfg); !errors.Is(err, models.ErrConfigInvalid) {
				t.Fatalf("Build: got %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestFactoryBuildsVariants(t *testing.T) {
	f := NewFactory("sk-test")

	if _, err := f.Build(validScripted()); err != nil {
		t.Fatalf("Build scripted: %v", err)
	}
	if _, err := f.Build(models.AgentConfig{
		Type: models.AgentSpeller, InitialMessage: models.Str(""), PromptPreamble: models.Str(""),
	}); err != nil {
		t.Fatalf("Build speller: %v", err)
	}
	if _, err := f.Build(models.AgentConfig{
		Type: models.AgentChatGPT, InitialMessage: models.Str(""), PromptPreamble: models.Str(""),
		Model: "gpt-4o-mini",
	}); err != nil {
		t.Fatalf("Build chatgpt: %v", err)
	}
}

func TestScriptedAnswersFromScript(t *testing.T) {
	ag, err := NewFactory("").Build(validScripted())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	reply, err := ag.Respond(context.Background(), nil, "what are your business hours today")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Escalate {
		t.Fatal("Respond: unexpected escalation for a scripted question")
	}
	if reply.Text != "We are open Monday through Friday, 8am to 6pm." {
		t.Fatalf("Respond: text %q", reply.Text)
	}
	if reply.Intent["intent"] != "regular_hours" {
		t.Fatalf("Respond: intent %v, want regular_hours", reply.Intent)
	}
}

func TestScriptedEscalatesOffScript(t *testing.T) {
	ag, err := NewFactory("").Build(validScripted())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	reply, err := ag.Respond(context.Background(), nil, "can I get a refund on my invoice")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !reply.Escalate {
		t.Fatal("Respond: expected escalation for an off-script question")
	}
	if reply.Intent["intent"] != IntentHumanAttention {
		t.Fatalf("Respond: intent %v, want %s", reply.Intent, IntentHumanAttention)
	}
	if reply.Text != "" {
		t.Fatalf("Respond: escalation carries text %q, want empty", reply.Text)
	}
}

func TestScriptedEmptyScriptAlwaysEscalates(t *testing.T) {
	cfg := validScripted()
	cfg.Script = nil
	ag, err := NewFactory("").Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	reply, err := ag.Respond(context.Background(), nil, "hello")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !reply.Escalate {
		t.Fatal("Respond: empty script must escalate")
	}
}

func TestSpellerSpellsUtterance(t *testing.T) {
	ag := newSpeller()
	reply, err := ag.Respond(context.Background(), nil, "hi bob")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Text != "h i ... b o b" {
		t.Fatalf("Respond: %q", reply.Text)
	}
}

func TestSplitIntent(t *testing.T) {
	spoken, intent := splitIntent(`We are open until six. {"intent": "regular_hours"}`)
	if spoken != "We are open until six." {
		t.Fatalf("spoken = %q", spoken)
	}
	if intent["intent"] != "regular_hours" {
		t.Fatalf("intent = %v", intent)
	}

	spoken, intent = splitIntent("No intent record here.")
	if spoken != "No intent record here." || intent != nil {
		t.Fatalf("plain text: spoken=%q intent=%v", spoken, intent)
	}

	raw := "Braces but not an intent {not json}"
	spoken, intent = splitIntent(raw)
	if spoken != raw || intent != nil {
		t.Fatalf("malformed record: spoken=%q intent=%v", spoken, intent)
	}
}
