package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"callbridge/models"
)

func testRoute(path string) models.RouteConfig {
	return models.RouteConfig{
		Path: path,
		Agent: models.AgentConfig{
			Type:           models.AgentSpeller,
			InitialMessage: models.Str("hello"),
			PromptPreamble: models.Str(""),
		},
		Twilio: models.TwilioConfig{AccountSID: "AC123", AuthToken: "secret"},
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Get(ctx, "/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: got %v, want ErrNotFound", err)
	}

	want := testRoute("/support")
	if err := m.Put(ctx, "/support", want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := m.Get(ctx, "/support")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Path != want.Path || got.Twilio.AuthToken != want.Twilio.AuthToken {
		t.Fatalf("Get: got %+v, want %+v", got, want)
	}
}

func TestMemoryOverwrite(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first := testRoute("/support")
	if err := m.Put(ctx, "/support", first); err != nil {
		t.Fatalf("Put: %v", err)
	}
	second := first
	second.Twilio.AuthToken = "rotated"
	if err := m.Put(ctx, "/support", second); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := m.Get(ctx, "/support")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Twilio.AuthToken != "rotated" {
		t.Fatalf("Get after overwrite: token %q, want %q", got.Twilio.AuthToken, "rotated")
	}
}

// countingStore wraps Memory and counts backend reads.
type countingStore struct {
	*Memory
	gets int
}

func (c *countingStore) Get(ctx context.Context, key string) (models.RouteConfig, error) {
	c.gets++
	return c.Memory.Get(ctx, key)
}

func TestCachedServesFromCache(t *testing.T) {
	backend := &countingStore{Memory: NewMemory()}
	c := NewCached(backend, time.Minute)
	ctx := context.Background()

	if err := c.Put(ctx, "/support", testRoute("/support")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.Get(ctx, "/support"); err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
	}
	// Put primed the cache, so no Get should have hit the backend.
	if backend.gets != 0 {
		t.Fatalf("backend gets = %d, want 0", backend.gets)
	}
}

func TestCachedDoesNotCacheMisses(t *testing.T) {
	backend := &countingStore{Memory: NewMemory()}
	c := NewCached(backend, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Get(ctx, "/missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get %d: got %v, want ErrNotFound", i, err)
		}
	}
	if backend.gets != 2 {
		t.Fatalf("backend gets = %d, want 2 (misses must not be cached)", backend.gets)
	}

	// The route appearing after a miss is visible immediately.
	if err := backend.Put(ctx, "/missing", testRoute("/missing")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := c.Get(ctx, "/missing"); err != nil {
		t.Fatalf("Get after backfill: %v", err)
	}
}

func TestCachedZeroTTLDisablesCaching(t *testing.T) {
	backend := &countingStore{Memory: NewMemory()}
	c := NewCached(backend, 0)
	ctx := context.Background()

	if err := c.Put(ctx, "/support", testRoute("/support")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.Get(ctx, "/support"); err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
	}
	if backend.gets != 3 {
		t.Fatalf("backend gets = %d, want 3 with caching disabled", backend.gets)
	}
}

func TestCachedPutWritesThrough(t *testing.T) {
	backend := &countingStore{Memory: NewMemory()}
	c := NewCached(backend, time.Minute)
	ctx := context.Background()

	route := testRoute("/support")
	if err := c.Put(ctx, "/support", route); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// The backend itself must hold the record, not just the cache.
	got, err := backend.Memory.Get(ctx, "/support")
	if err != nil {
		t.Fatalf("backend Get: %v", err)
	}
	if got.Path != route.Path {
		t.Fatalf("backend holds %+v, want %+v", got, route)
	}

	// A second Put replaces the cached entry too.
	route.Twilio.AuthToken = "rotated"
	if err := c.Put(ctx, "/support", route); err != nil {
		t.Fatalf("Put: %v", err)
	}
	cached, err := c.Get(ctx, "/support")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cached.Twilio.AuthToken != "rotated" {
		t.Fatalf("cached token %q, want %q", cached.Twilio.AuthToken, "rotated")
	}
}
