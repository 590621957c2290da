package agent

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"callbridge/models"
)

// Factory builds Agent instances from AgentConfig records. It is
// constructed once at process start and shared by all sessions; Build is
// safe for concurrent callers.
type Factory struct {
	openaiKey string
}

// NewFactory creates a factory. The OpenAI key is only required when a
// chatgpt-variant route is actually resolved.
func NewFactory(openaiKey string) *Factory {
	return &Factory{openaiKey: openaiKey}
}

// Build validates cfg and constructs the matching backend. Returns an
// error wrapping models.ErrConfigInvalid when required fields are
// missing for the chosen variant.
func (f *Factory) Build(cfg models.AgentConfig) (Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case models.AgentChatGPT:
		if f.openaiKey == "" {
			return nil, fmt.Errorf("%w: chatgpt variant requires an OpenAI API key", models.ErrConfigInvalid)
		}
		return newChatGPT(openai.NewClient(f.openaiKey), cfg), nil
	case models.AgentScripted:
		return newScripted(cfg), nil
	case models.AgentSpeller:
		return newSpeller(), nil
	default:
		// Validate already rejected unknown types.
		return nil, fmt.Errorf("%w: unknown type %q", models.ErrConfigInvalid, cfg.Type)
	}
}
