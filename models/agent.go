package models

import (
	"errors"
	"fmt"
	"time"
)

// AgentType discriminates agent backends.
type AgentType string

const (
	AgentChatGPT  AgentType = "chatgpt"
	AgentScripted AgentType = "scripted"
	AgentSpeller  AgentType = "speller"
)

// FAQEntry is one scripted question/answer pair. Intent is the
// classification label reported alongside the scripted answer.
type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Intent   string `json:"intent,omitempty"`
}

// AgentConfig is a tagged variant over agent backends. The common fields
// are required for every variant; backend-specific fields apply only to
// their variant and are ignored elsewhere.
//
// InitialMessage is spoken as the first agent turn when the call is
// answered. FallbackMessage is delivered verbatim whenever the agent
// escalates instead of answering. Both may be empty strings, but the
// record must carry them explicitly (hasInitial/hasFallback markers in
// JSON distinguish absent from empty).
type AgentConfig struct {
	Type           AgentType `json:"type"`
	InitialMessage *string   `json:"initial_message"`
	PromptPreamble *string   `json:"prompt_preamble"`
	FallbackMessage string   `json:"fallback_message,omitempty"`

	// IntentClassification asks the backend to report a structured intent
	// record with each reply. The pipeline passes it through untouched.
	IntentClassification bool `json:"intent_classification,omitempty"`

	// MaxTurnSeconds bounds a single user+agent turn. Zero means the
	// session default.
	MaxTurnSeconds int `json:"max_turn_seconds,omitempty"`

	// ChatGPT variant.
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`

	// Scripted variant.
	Script []FAQEntry `json:"script,omitempty"`
}

// ErrConfigInvalid reports a malformed AgentConfig. Validation happens
// once, at construction; a config that passes Build never fails for
// shape reasons at call time.
var ErrConfigInvalid = errors.New("agent config invalid")

// Greeting returns the configured initial message text.
func (c AgentConfig) Greeting() string {
	if c.InitialMessage == nil {
		return ""
	}
	return *c.InitialMessage
}

// Preamble returns the configured prompt preamble text.
func (c AgentConfig) Preamble() string {
	if c.PromptPreamble == nil {
		return ""
	}
	return *c.PromptPreamble
}

// MaxTurn returns the per-turn budget, or def when unset.
func (c AgentConfig) MaxTurn(def time.Duration) time.Duration {
	if c.MaxTurnSeconds <= 0 {
		return def
	}
	return time.Duration(c.MaxTurnSeconds) * time.Second
}

// Validate checks the common fields every variant must supply plus the
// variant-specific requirements.
func (c AgentConfig) Validate() error {
	switch c.Type {
	case AgentChatGPT, AgentScripted, AgentSpeller:
	case "":
		return fmt.Errorf("%w: missing type", ErrConfigInvalid)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrConfigInvalid, c.Type)
	}
	if c.InitialMessage == nil {
		return fmt.Errorf("%w: missing initial_message", ErrConfigInvalid)
	}
	if c.PromptPreamble == nil {
		return fmt.Errorf("%w: missing prompt_preamble", ErrConfigInvalid)
	}
	if c.MaxTurnSeconds < 0 {
		return fmt.Errorf("%w: negative max_turn_seconds", ErrConfigInvalid)
	}
	switch c.Type {
	case AgentChatGPT:
		if c.Model == "" {
			return fmt.Errorf("%w: chatgpt variant requires model", ErrConfigInvalid)
		}
		// An escalating agent with nothing to say would swallow the turn.
		if c.IntentClassification && c.FallbackMessage == "" {
			return fmt.Errorf("%w: intent_classification requires fallback_message", ErrConfigInvalid)
		}
	case AgentScripted:
		if c.FallbackMessage == "" {
			return fmt.Errorf("%w: scripted variant requires fallback_message", ErrConfigInvalid)
		}
		for i, e := range c.Script {
			if e.Question == "" || e.Answer == "" {
				return fmt.Errorf("%w: script entry %d incomplete", ErrConfigInvalid, i)
			}
		}
	}
	return nil
}

func errRouteField(name string) error {
	return fmt.Errorf("%w: missing %s", ErrConfigInvalid, name)
}

// Str is a convenience for building AgentConfig literals, where the
// common fields are pointers to distinguish absent from empty.
func Str(s string) *string { return &s }
