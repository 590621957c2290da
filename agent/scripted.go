package agent

import (
	"context"
	"strings"

	"callbridge/models"
)

// scripted answers strictly from its configured FAQ script. An utterance
// that matches no entry escalates; the backend never fabricates an
// answer outside its script.
type scripted struct {
	entries []scriptEntry
}

type scriptEntry struct {
	keywords []string
	answer   string
	intent   string
}

func newScripted(cfg models.AgentConfig) *scripted {
	entries := make([]scriptEntry, 0, len(cfg.Script))
	for _, e := range cfg.Script {
		entries = append(entries, scriptEntry{
			keywords: tokenize(e.Question),
			answer:   e.Answer,
			intent:   e.Intent,
		})
	}
	return &scripted{entries: entries}
}

func (a *scripted) Respond(_ context.Context, _ []models.Transcript, utterance string) (Reply, error) {
	words := make(map[string]bool)
	for _, w := range tokenize(utterance) {
		words[w] = true
	}

	best := -1
	bestScore := 0
	for i, e := range a.entries {
		score := 0
		for _, kw := range e.keywords {
			if words[kw] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	// Require at least two keyword hits, or one for single-keyword
	// questions, before trusting a match.
	if best < 0 || (bestScore < 2 && len(a.entries[best].keywords) > 1) {
		return Reply{
			Escalate: true,
			Intent:   map[string]string{"intent": IntentHumanAttention},
		}, nil
	}

	e := a.entries[best]
	reply := Reply{Text: e.answer}
	if e.intent != "" {
		reply.Intent = map[string]string{"intent": e.intent}
	}
	return reply, nil
}

// stopwords excluded from keyword matching.
var stopwords = map[string]bool{
	"a": true, "am": true, "an": true, "and": true, "are": true, "for": true,
	"i": true, "is": true, "my": true, "of": true, "the": true, "to": true,
	"what": true, "with": true, "you": true, "your": true,
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}
