package telephony

import (
	"sync"
	"time"
)

// eventWindow remembers inbound event ids for a bounded window so that a
// carrier re-delivering the same webhook does not create a second
// session. Dedup is by event id, not call id: one call id may
// legitimately retry under a fresh event id.
type eventWindow struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func newEventWindow(ttl time.Duration) *eventWindow {
	return &eventWindow{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// observe records id and reports whether this is its first sighting
// within the window. Expired entries are swept opportunistically.
func (w *eventWindow) observe(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for k, t := range w.seen {
		if now.Sub(t) > w.ttl {
			delete(w.seen, k)
		}
	}

	if t, ok := w.seen[id]; ok && now.Sub(t) <= w.ttl {
		return false
	}
	w.seen[id] = now
	return true
}
