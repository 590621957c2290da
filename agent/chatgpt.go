package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"callbridge/models"
)

// chatGPT is the OpenAI-backed agent. The prompt preamble becomes the
// system message; the conversation history is replayed as alternating
// user/assistant messages. When intent classification is enabled the
// preamble is expected to instruct the model to append an intent record
// in JSON, which Respond strips from the spoken text.
type chatGPT struct {
	client      *openai.Client
	model       string
	preamble    string
	temperature float32
	classify    bool
}

func newChatGPT(client *openai.Client, cfg models.AgentConfig) *chatGPT {
	temp := cfg.Temperature
	if temp == 0 {
		temp = 1.0
	}
	return &chatGPT{
		client:      client,
		model:       cfg.Model,
		preamble:    cfg.Preamble(),
		temperature: temp,
		classify:    cfg.IntentClassification,
	}
}

func (a *chatGPT) Respond(ctx context.Context, history []models.Transcript, utterance string) (Reply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if a.preamble != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: a.preamble,
		})
	}
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == models.RoleAgent {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: utterance,
	})

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		MaxTokens:   200,
		Temperature: a.temperature,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("agent: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("agent: chat completion returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	reply := Reply{Text: text}
	if a.classify {
		reply.Text, reply.Intent = splitIntent(text)
		if reply.Intent["intent"] == IntentHumanAttention {
			reply.Escalate = true
		}
	}
	return reply, nil
}

// splitIntent separates a trailing JSON intent record from the spoken
// text. The model is prompted to emit something like:
//
//	I am so sorry to hear that. ... {"intent": "regular_hours"}
//
// Anything that does not parse as a flat string map is left in the text.
func splitIntent(text string) (spoken string, intent map[string]string) {
	start := strings.LastIndex(text, "{")
	if start < 0 || !strings.HasSuffix(strings.TrimSpace(text[start:]), "}") {
		return text, nil
	}
	var record map[string]string
	if err := json.Unmarshal([]byte(text[start:]), &record); err != nil || len(record) == 0 {
		return text, nil
	}
	return strings.TrimSpace(text[:start]), record
}
