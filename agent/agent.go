// Package agent builds conversation-capable agents from AgentConfig
// records. All backends expose the same turn-taking capability: given the
// conversation so far and a new caller utterance, produce the next agent
// utterance plus an optional structured intent record.
package agent

import (
	"context"

	"callbridge/models"
)

// Reply is the outcome of one agent turn.
type Reply struct {
	// Text is the utterance to speak. When Escalate is set the pipeline
	// ignores Text and substitutes the configured fallback message, so a
	// backend with nothing scripted never puts its own words on the call.
	Text string

	// Intent is an optional structured record (e.g. {"intent":
	// "regular_hours"}). Opaque to the pipeline; passed through to
	// observability.
	Intent map[string]string

	// Escalate signals the agent has no scripted answer for the
	// utterance. Not an error: the conversation continues with the
	// fallback message.
	Escalate bool

	// EndCall signals the agent considers the conversation resolved.
	EndCall bool
}

// Agent is the single capability every backend exposes.
type Agent interface {
	Respond(ctx context.Context, history []models.Transcript, utterance string) (Reply, error)
}

// IntentHumanAttention is the intent reported when an agent escalates.
const IntentHumanAttention = "human_attention"
