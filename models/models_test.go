package models

import (
	"errors"
	"testing"
	"time"
)

func TestRouteConfigValidate(t *testing.T) {
	route := RouteConfig{
		Path:   "/support",
		Agent:  AgentConfig{Type: AgentSpeller, InitialMessage: Str(""), PromptPreamble: Str("")},
		Twilio: TwilioConfig{AccountSID: "AC123", AuthToken: "secret"},
	}
	if err := route.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	for name, mutate := range map[string]func(*RouteConfig){
		"missing path":       func(r *RouteConfig) { r.Path = "" },
		"missing account":    func(r *RouteConfig) { r.Twilio.AccountSID = "" },
		"missing auth token": func(r *RouteConfig) { r.Twilio.AuthToken = "" },
	} {
		t.Run(name, func(t *testing.T) {
			bad := route
			mutate(&bad)
			if err := bad.Validate(); !errors.Is(err, ErrConfigInvalid) {
				t.Fatalf("Validate: got %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestAgentConfigMaxTurn(t *testing.T) {
	def := 45 * time.Second
	if got := (AgentConfig{}).MaxTurn(def); got != def {
		t.Fatalf("unset MaxTurn = %s, want default %s", got, def)
	}
	if got := (AgentConfig{MaxTurnSeconds: 20}).MaxTurn(def); got != 20*time.Second {
		t.Fatalf("MaxTurn = %s, want 20s", got)
	}
}

func TestAgentConfigEmptyVersusAbsent(t *testing.T) {
	// An explicitly empty greeting is valid; an absent one is not.
	cfg := AgentConfig{Type: AgentSpeller, InitialMessage: Str(""), PromptPreamble: Str("")}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty fields: %v", err)
	}
	if cfg.Greeting() != "" || cfg.Preamble() != "" {
		t.Fatal("empty fields should read as empty strings")
	}

	cfg.InitialMessage = nil
	if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("absent initial message: got %v, want ErrConfigInvalid", err)
	}
}
