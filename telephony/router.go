package telephony

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/twilio/twilio-go/twiml"

	"callbridge/agent"
	"callbridge/models"
	"callbridge/store"
)

// Router rejection errors. Only these (plus exhausted store retries)
// prevent session creation; everything later in a call's life is handled
// inside the session.
var (
	ErrAuthFailed     = errors.New("telephony: carrier auth failed")
	ErrConfigNotFound = errors.New("telephony: no route configured")
	ErrBadEvent       = errors.New("telephony: malformed inbound event")
)

// InboundEvent is the carrier's inbound-call notification, already
// lifted out of the transport encoding.
type InboundEvent struct {
	// EventID identifies this delivery; the carrier reuses it when it
	// retransmits the same notification.
	EventID   string
	CallID    string
	From      string
	To        string
	Path      string
	AuthToken string
}

// RouterConfig wires a CallRouter. Zero durations get defaults.
type RouterConfig struct {
	// BaseURL is the public websocket origin, e.g. "wss://example.com".
	// The media stream for call X is served at BaseURL/media-stream/X.
	BaseURL string

	Store       store.ConfigStore
	Factory     *agent.Factory
	Transcriber Transcriber
	Synthesizer Synthesizer
	Observer    Observer

	DedupWindow   time.Duration
	AnswerTimeout time.Duration
	CallTimeout   time.Duration
	TurnTimeout   time.Duration
	MaxUtterance  time.Duration
	SilenceGap    time.Duration
	MinConfidence float64
	MaxHistory    int

	// Transient store failures are retried this many times with doubling
	// backoff before the call is rejected.
	StoreAttempts int
	StoreBackoff  time.Duration
}

func (c *RouterConfig) applyDefaults() {
	if c.DedupWindow <= 0 {
		c.DedupWindow = 5 * time.Minute
	}
	if c.AnswerTimeout <= 0 {
		c.AnswerTimeout = 30 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 15 * time.Minute
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 60 * time.Second
	}
	if c.MaxUtterance <= 0 {
		c.MaxUtterance = 15 * time.Second
	}
	if c.SilenceGap <= 0 {
		c.SilenceGap = 700 * time.Millisecond
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.4
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = 40
	}
	if c.StoreAttempts <= 0 {
		c.StoreAttempts = 3
	}
	if c.StoreBackoff <= 0 {
		c.StoreBackoff = 200 * time.Millisecond
	}
}

// CallRouter accepts inbound call events, resolves their route
// configuration, and spawns call sessions. One router serves all
// configured routes; it is constructed once at process start and handed
// to the transport layer explicitly.
type CallRouter struct {
	cfg   RouterConfig
	dedup *eventWindow

	mu       sync.RWMutex
	sessions map[string]*CallSession
}

// NewCallRouter builds a router around the given collaborators.
func NewCallRouter(cfg RouterConfig) *CallRouter {
	cfg.applyDefaults()
	return &CallRouter{
		cfg:      cfg,
		dedup:    newEventWindow(cfg.DedupWindow),
		sessions: make(map[string]*CallSession),
	}
}

// OnInbound handles one inbound call event. On acceptance it returns the
// instruction payload telling the carrier to answer and open the media
// stream, having registered exactly one session for the call id.
// Duplicate deliveries (same event id) and webhook retries for an
// already-ringing call id are answered idempotently without a second
// session.
func (r *CallRouter) OnInbound(ctx context.Context, ev InboundEvent) (string, error) {
	if ev.CallID == "" || ev.Path == "" {
		return "", fmt.Errorf("%w: missing call id or path", ErrBadEvent)
	}

	route, err := r.resolveRoute(ctx, ev.Path)
	if err != nil {
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(ev.AuthToken), []byte(route.Twilio.AuthToken)) != 1 {
		log.Printf("inbound %s: auth failed on %s", ev.CallID, ev.Path)
		return "", ErrAuthFailed
	}

	ag, err := r.cfg.Factory.Build(route.Agent)
	if err != nil {
		return "", err
	}

	// The event id is recorded only once the event is known to be
	// acceptable. A retry of a rejected delivery is re-evaluated and gets
	// the same rejection, never an answer with no session behind it.
	if ev.EventID != "" && !r.dedup.observe(ev.EventID) {
		log.Printf("inbound %s: duplicate event %s", ev.CallID, ev.EventID)
		return r.answerInstruction(ev.CallID)
	}
	pipeline := &Pipeline{
		Agent:         ag,
		Transcriber:   r.cfg.Transcriber,
		Synthesizer:   r.cfg.Synthesizer,
		Fallback:      route.Agent.FallbackMessage,
		MaxUtterance:  r.cfg.MaxUtterance,
		SilenceGap:    r.cfg.SilenceGap,
		MinConfidence: r.cfg.MinConfidence,
		MaxHistory:    r.cfg.MaxHistory,
	}

	r.mu.Lock()
	if _, ok := r.sessions[ev.CallID]; ok {
		// The call is already ringing or live; a retry under a fresh
		// event id just gets the same answer.
		r.mu.Unlock()
		return r.answerInstruction(ev.CallID)
	}
	sess := newCallSession(ev.CallID, ev.From, route, ag, pipeline, r.cfg.Observer,
		r.cfg.CallTimeout, r.cfg.AnswerTimeout, route.Agent.MaxTurn(r.cfg.TurnTimeout),
		r.removeSession)
	r.sessions[ev.CallID] = sess
	r.mu.Unlock()

	log.Printf("inbound %s: accepted on %s (from %s)", ev.CallID, ev.Path, ev.From)
	return r.answerInstruction(ev.CallID)
}

// Attach hands an established media stream to its ringing session.
func (r *CallRouter) Attach(ms MediaStream) error {
	r.mu.RLock()
	sess := r.sessions[ms.CallID()]
	r.mu.RUnlock()
	if sess == nil {
		ms.Close()
		return fmt.Errorf("telephony: no session for call %s", ms.CallID())
	}
	return sess.Attach(ms)
}

// Session returns the active session for a call id, or nil.
func (r *CallRouter) Session(callID string) *CallSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[callID]
}

// ActiveCalls returns the number of registered sessions.
func (r *CallRouter) ActiveCalls() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartSweeper terminates sessions idle past maxIdle, checking every
// interval, until ctx is done.
func (r *CallRouter) StartSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range r.snapshot() {
					if s.IdleFor() > maxIdle {
						log.Printf("call %s: idle for %s, terminating", s.ID(), s.IdleFor().Round(time.Second))
						s.Terminate(ReasonTimeout)
					}
				}
			}
		}
	}()
}

// Shutdown terminates every active session and waits for them to end,
// bounded by ctx.
func (r *CallRouter) Shutdown(ctx context.Context) {
	sessions := r.snapshot()
	for _, s := range sessions {
		s.Terminate(ReasonShutdown)
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return
		}
	}
}

func (r *CallRouter) snapshot() []*CallSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CallSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *CallRouter) removeSession(s *CallSession) {
	r.mu.Lock()
	if r.sessions[s.id] == s {
		delete(r.sessions, s.id)
	}
	r.mu.Unlock()
}

// resolveRoute looks up the route with bounded backoff on transient
// store failures. NotFound is not retried; routing does not appear
// mid-ring.
func (r *CallRouter) resolveRoute(ctx context.Context, path string) (models.RouteConfig, error) {
	backoff := r.cfg.StoreBackoff
	var lastErr error
	for attempt := 0; attempt < r.cfg.StoreAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return models.RouteConfig{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		route, err := r.cfg.Store.Get(ctx, path)
		if err == nil {
			return route, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return models.RouteConfig{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		if !errors.Is(err, store.ErrUnavailable) {
			return models.RouteConfig{}, err
		}
		lastErr = err
		log.Printf("route lookup %s: attempt %d: %v", path, attempt+1, err)
	}
	return models.RouteConfig{}, lastErr
}

// answerInstruction builds the TwiML telling the carrier to answer the
// call and connect its media stream to this server.
func (r *CallRouter) answerInstruction(callID string) (string, error) {
	stream := &twiml.VoiceStream{Url: r.cfg.BaseURL + "/media-stream/" + callID}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}
	out, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return "", fmt.Errorf("telephony: build answer: %w", err)
	}
	return out, nil
}
