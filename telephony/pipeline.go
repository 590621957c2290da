package telephony

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"callbridge/agent"
	"callbridge/models"
)

// errResolved is returned by a pipeline step when the agent signals the
// conversation is done and the session should wind down normally.
var errResolved = errors.New("telephony: conversation resolved")

// Pipeline coordinates transcription, agent invocation and synthesis for
// one session. It runs entirely on the session's goroutine, which is the
// single writer of turn state.
type Pipeline struct {
	Agent       agent.Agent
	Transcriber Transcriber
	Synthesizer Synthesizer

	// Fallback is delivered verbatim whenever the agent escalates. The
	// agent's own text is discarded in that case.
	Fallback string

	// MaxUtterance bounds how long one user turn may accumulate audio,
	// guaranteeing forward progress through a silent or endless turn.
	MaxUtterance time.Duration

	// SilenceGap is the end-of-utterance signal: a pause this long after
	// speech closes the user turn.
	SilenceGap time.Duration

	// MinConfidence gates transcriptions; anything below is a no-op turn.
	MinConfidence float64

	// MaxHistory bounds the conversation window handed to the agent;
	// oldest entries are dropped first.
	MaxHistory int
}

// step runs one UserTurn → AgentTurn exchange. A nil return means the
// turn completed (possibly as a no-op) and the session stays Streaming.
func (p *Pipeline) step(ctx context.Context, s *CallSession) error {
	audio, err := p.collectUtterance(ctx, s)
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		return nil
	}

	tr, err := p.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		return fmt.Errorf("telephony: transcribe: %w", err)
	}
	text := strings.TrimSpace(tr.Text)
	if text == "" || tr.Confidence < p.MinConfidence {
		// Nothing intelligible; stay in UserTurn.
		return nil
	}

	s.appendTranscript(models.RoleCaller, text)

	reply, err := p.Agent.Respond(ctx, s.historyWindow(p.MaxHistory), text)
	if err != nil {
		return fmt.Errorf("telephony: agent respond: %w", err)
	}
	spoken := reply.Text
	if reply.Escalate {
		spoken = p.Fallback
	}
	if len(reply.Intent) > 0 {
		log.Printf("call %s: intent %v", s.id, reply.Intent)
	}

	if spoken != "" {
		if err := s.speak(ctx, spoken); err != nil {
			return err
		}
	}
	if reply.EndCall {
		return errResolved
	}
	return nil
}

// collectUtterance accumulates inbound audio until the silence gap fires
// after speech, or the max utterance duration elapses. Audio that barged
// into the previous agent turn is consumed first.
func (p *Pipeline) collectUtterance(ctx context.Context, s *CallSession) ([]byte, error) {
	var buf bytes.Buffer
	if f := s.takeBarged(); f != nil {
		buf.Write(f.Audio)
	}

	maxT := time.NewTimer(p.MaxUtterance)
	defer maxT.Stop()
	gap := time.NewTimer(p.SilenceGap)
	defer gap.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case f, ok := <-s.frames:
			if !ok {
				return nil, errStreamClosed
			}
			if len(f.Audio) == 0 {
				continue
			}
			buf.Write(f.Audio)
			s.touch()
			if !gap.Stop() {
				select {
				case <-gap.C:
				default:
				}
			}
			gap.Reset(p.SilenceGap)
		case <-gap.C:
			if buf.Len() > 0 {
				return buf.Bytes(), nil
			}
			// Caller has not spoken yet; keep listening until MaxUtterance.
			gap.Reset(p.SilenceGap)
		case <-maxT.C:
			return buf.Bytes(), nil
		}
	}
}
