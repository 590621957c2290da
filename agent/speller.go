package agent

import (
	"context"
	"strings"

	"callbridge/models"
)

// speller repeats the caller's words back spelled out letter by letter.
// Deterministic and dependency-free, which makes it the wiring-check
// backend for dev routes and tests.
type speller struct{}

func newSpeller() *speller { return &speller{} }

func (a *speller) Respond(_ context.Context, _ []models.Transcript, utterance string) (Reply, error) {
	var b strings.Builder
	for _, word := range strings.Fields(utterance) {
		if b.Len() > 0 {
			b.WriteString("... ")
		}
		for i, r := range word {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
		}
		b.WriteString(" ")
	}
	return Reply{Text: strings.TrimSpace(b.String())}, nil
}
