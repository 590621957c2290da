package telephony

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"callbridge/agent"
	"callbridge/models"
)

// playbackFrameBytes is the outbound chunk size: 20ms of 8kHz μ-law.
// Chunked delivery is what makes barge-in responsive; the session checks
// for caller audio between every chunk.
const playbackFrameBytes = 160

// Observer receives session activity for monitoring and archiving.
// Implementations must not block; they are called from session
// goroutines.
type Observer interface {
	TranscriptUpdated(update models.TranscriptUpdate)
	SessionEnded(record models.CallTranscript)
}

// CallSession owns one call's lifecycle: stream plumbing, turn
// arbitration, pipeline invocation and teardown. It is created by the
// router on an accepted inbound event and self-owned from Attach until
// it reaches Ended.
type CallSession struct {
	id    string
	route models.RouteConfig
	agent agent.Agent

	pipeline *Pipeline
	observer Observer
	onEnd    func(*CallSession)

	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	finishOnce  sync.Once
	answerTimer *time.Timer
	turnTimeout time.Duration

	// turns is written only by the goroutine driving the pipeline (the
	// single-writer rule on the current turn); reads are lock-free.
	turns atomic.Uint64

	mu           sync.Mutex
	state        State
	reason       EndReason
	transcript   []models.Transcript
	startTime    time.Time
	lastActivity time.Time
	callerNumber string
	running      bool
	stream       MediaStream

	// frames and barged are touched only by the pipeline goroutine
	// (and Attach, which runs strictly before it).
	frames <-chan Frame
	barged *Frame
}

func newCallSession(id, callerNumber string, route models.RouteConfig, ag agent.Agent,
	pl *Pipeline, obs Observer, callTimeout, answerTimeout, turnTimeout time.Duration,
	onEnd func(*CallSession)) *CallSession {

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	now := time.Now()
	s := &CallSession{
		id:           id,
		route:        route,
		agent:        ag,
		pipeline:     pl,
		observer:     obs,
		onEnd:        onEnd,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		turnTimeout:  turnTimeout,
		state:        Ringing,
		startTime:    now,
		lastActivity: now,
		callerNumber: callerNumber,
	}
	s.answerTimer = time.AfterFunc(answerTimeout, func() {
		log.Printf("call %s: no media stream within %s", s.id, answerTimeout)
		s.Terminate(ReasonNoAnswer)
	})
	return s
}

// Attach binds the carrier media stream to the session, which is the
// pickup signal: the session answers, speaks the configured initial
// message as the first agent turn, and starts the pipeline loop.
func (s *CallSession) Attach(ms MediaStream) error {
	s.mu.Lock()
	if s.state != Ringing {
		state := s.state
		s.mu.Unlock()
		ms.Close()
		return fmt.Errorf("telephony: session %s is %s, not ringing", s.id, state)
	}
	s.setStateLocked(Answered)
	s.stream = ms
	s.lastActivity = time.Now()
	s.mu.Unlock()
	s.answerTimer.Stop()
	s.frames = ms.Frames()

	if greeting := s.route.Agent.Greeting(); greeting != "" {
		ctx, cancel := context.WithTimeout(s.ctx, s.turnTimeout)
		err := s.speak(ctx, greeting)
		cancel()
		if err != nil {
			s.Terminate(reasonForError(err))
			return err
		}
	}

	s.mu.Lock()
	if s.state != Answered {
		// Terminated while the greeting was playing.
		s.mu.Unlock()
		s.finish()
		return errStreamClosed
	}
	s.setStateLocked(Streaming)
	s.running = true
	s.mu.Unlock()

	go s.run()
	return nil
}

// run drives the conversation pipeline until a turn ends the session.
func (s *CallSession) run() {
	defer s.finish()
	for {
		if s.State() >= Terminating {
			return
		}
		turnCtx, cancel := context.WithTimeout(s.ctx, s.turnTimeout)
		err := s.pipeline.step(turnCtx, s)
		cancel()

		switch {
		case err == nil:
		case errors.Is(err, errResolved):
			s.markTerminating(ReasonResolved)
			return
		case errors.Is(err, errStreamClosed):
			if s.streamErr() != nil {
				s.markTerminating(ReasonStreamError)
			} else {
				s.markTerminating(ReasonHangup)
			}
			return
		case errors.Is(err, context.DeadlineExceeded):
			s.markTerminating(ReasonTimeout)
			return
		case errors.Is(err, context.Canceled):
			// Terminate already recorded the reason.
			return
		default:
			log.Printf("call %s: turn failed: %v", s.id, err)
			s.markTerminating(ReasonError)
			return
		}
	}
}

// speak synthesizes text and streams it out in small frames. If caller
// audio arrives mid-playback, delivery stops immediately, the carrier's
// buffered audio is cleared, and the interrupting audio is kept for the
// next user turn.
func (s *CallSession) speak(ctx context.Context, text string) error {
	audio, err := s.pipeline.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("telephony: synthesize: %w", err)
	}
	stream := s.currentStream()
	if stream == nil {
		return errStreamClosed
	}

	for off := 0; off < len(audio); off += playbackFrameBytes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-s.frames:
			if !ok {
				return errStreamClosed
			}
			if len(f.Audio) > 0 {
				s.barged = &f
				if err := stream.Clear(); err != nil {
					log.Printf("call %s: clear failed: %v", s.id, err)
				}
				log.Printf("call %s: barge-in after %d bytes", s.id, off)
				s.finishTurn(text)
				return nil
			}
		default:
		}

		end := min(off+playbackFrameBytes, len(audio))
		if err := stream.WriteAudio(ctx, audio[off:end]); err != nil {
			return err
		}
	}
	s.finishTurn(text)
	return nil
}

// finishTurn records a completed (or interrupted) agent turn. The turn
// counter only ever moves forward, barge-in included.
func (s *CallSession) finishTurn(text string) {
	s.turns.Add(1)
	s.appendTranscript(models.RoleAgent, text)
}

// Terminate moves the session to Terminating with the given reason and
// cancels any in-flight work. Safe to call from any goroutine and at any
// state; calls after the first are no-ops.
func (s *CallSession) Terminate(reason EndReason) {
	s.mu.Lock()
	if s.state >= Terminating {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(Terminating)
	s.reason = reason
	running := s.running
	stream := s.stream
	s.mu.Unlock()

	s.cancel()
	if stream != nil {
		stream.Close()
	}
	if !running {
		s.finish()
	}
}

// markTerminating is the pipeline goroutine's own path into Terminating.
func (s *CallSession) markTerminating(reason EndReason) {
	s.mu.Lock()
	if s.state < Terminating {
		s.setStateLocked(Terminating)
		s.reason = reason
	}
	s.mu.Unlock()
	s.cancel()
}

// finish performs the single teardown: streams closed, buffers released,
// record archived, session deregistered. Every exit path funnels here
// exactly once.
func (s *CallSession) finish() {
	s.finishOnce.Do(func() {
		s.answerTimer.Stop()
		s.cancel()

		s.mu.Lock()
		if s.state < Terminating {
			s.setStateLocked(Terminating)
			if s.reason == "" {
				s.reason = ReasonError
			}
		}
		stream := s.stream
		s.setStateLocked(Ended)
		record := s.recordLocked()
		s.mu.Unlock()

		if stream != nil {
			stream.Close()
		}
		close(s.done)
		log.Printf("call %s ended: reason=%s turns=%d duration=%ds",
			s.id, record.EndReason, record.Turns, record.DurationSecs)
		if s.observer != nil {
			s.observer.SessionEnded(record)
		}
		if s.onEnd != nil {
			s.onEnd(s)
		}
	})
}

func (s *CallSession) appendTranscript(role, content string) {
	s.mu.Lock()
	now := time.Now()
	s.transcript = append(s.transcript, models.Transcript{Role: role, Content: content, Time: now})
	s.lastActivity = now
	update := models.TranscriptUpdate{
		Type:        "transcript_update",
		CallID:      s.id,
		Path:        s.route.Path,
		Transcript:  slices.Clone(s.transcript),
		StartTime:   s.startTime,
		LastUpdated: now,
		IsActive:    s.state < Terminating,
	}
	s.mu.Unlock()
	if s.observer != nil {
		s.observer.TranscriptUpdated(update)
	}
}

// historyWindow returns the most recent max transcript entries.
func (s *CallSession) historyWindow(max int) []models.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.transcript
	if max > 0 && len(t) > max {
		t = t[len(t)-max:]
	}
	return slices.Clone(t)
}

func (s *CallSession) recordLocked() models.CallTranscript {
	end := time.Now()
	return models.CallTranscript{
		CallID:       s.id,
		Path:         s.route.Path,
		Transcript:   slices.Clone(s.transcript),
		StartTime:    s.startTime,
		EndTime:      end,
		DurationSecs: int(end.Sub(s.startTime).Seconds()),
		CallerNumber: s.callerNumber,
		EndReason:    string(s.reason),
		Turns:        int(s.turns.Load()),
	}
}

func (s *CallSession) setStateLocked(to State) {
	if !canTransition(s.state, to) {
		log.Printf("call %s: refusing transition %s -> %s", s.id, s.state, to)
		return
	}
	s.state = to
}

func (s *CallSession) takeBarged() *Frame {
	f := s.barged
	s.barged = nil
	return f
}

func (s *CallSession) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *CallSession) currentStream() MediaStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

func (s *CallSession) streamErr() error {
	if ms := s.currentStream(); ms != nil {
		return ms.Err()
	}
	return nil
}

// ID returns the carrier-assigned call id.
func (s *CallSession) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *CallSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason returns the recorded end reason, empty until Terminating.
func (s *CallSession) Reason() EndReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Turns returns the number of completed agent turns.
func (s *CallSession) Turns() uint64 { return s.turns.Load() }

// Done is closed once the session reaches Ended.
func (s *CallSession) Done() <-chan struct{} { return s.done }

// Transcript returns a copy of the conversation so far.
func (s *CallSession) Transcript() []models.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transcript)
}

// IdleFor reports how long since the session last saw activity.
func (s *CallSession) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

func reasonForError(err error) EndReason {
	switch {
	case errors.Is(err, errStreamClosed):
		return ReasonHangup
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonHangup
	default:
		return ReasonStreamError
	}
}
