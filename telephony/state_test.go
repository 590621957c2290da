package telephony

import (
	"testing"
	"time"
)

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{Ringing, Answered, true},
		{Answered, Streaming, true},
		{Streaming, Terminating, true},
		{Terminating, Ended, true},

		{Ringing, Terminating, true},
		{Answered, Terminating, true},

		{Ringing, Streaming, false},
		{Answered, Ringing, false},
		{Streaming, Answered, false},
		{Streaming, Ringing, false},
		{Ringing, Ended, false},
		{Streaming, Ended, false},
		{Terminating, Streaming, false},
		{Terminating, Terminating, false},
		{Ended, Terminating, false},
		{Ended, Ended, false},
		{Ended, Ringing, false},
	}
	for _, tc := range cases {
		if got := canTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestEventWindowDedup(t *testing.T) {
	now := time.Now()
	w := newEventWindow(time.Minute)
	w.now = func() time.Time { return now }

	if !w.observe("ev-1") {
		t.Fatal("first sighting of ev-1 reported as duplicate")
	}
	if w.observe("ev-1") {
		t.Fatal("second sighting of ev-1 not reported as duplicate")
	}
	if !w.observe("ev-2") {
		t.Fatal("distinct id ev-2 reported as duplicate")
	}

	// Still inside the window.
	now = now.Add(30 * time.Second)
	if w.observe("ev-1") {
		t.Fatal("ev-1 duplicate within window not detected")
	}

	// Past the window the id is forgotten.
	now = now.Add(2 * time.Minute)
	if !w.observe("ev-1") {
		t.Fatal("expired ev-1 still reported as duplicate")
	}
}

func TestEventWindowSweepsExpired(t *testing.T) {
	now := time.Now()
	w := newEventWindow(time.Minute)
	w.now = func() time.Time { return now }

	for _, id := range []string{"a", "b", "c"} {
		w.observe(id)
	}
	now = now.Add(5 * time.Minute)
	w.observe("d")

	if len(w.seen) != 1 {
		t.Fatalf("window holds %d ids after sweep, want 1", len(w.seen))
	}
}
