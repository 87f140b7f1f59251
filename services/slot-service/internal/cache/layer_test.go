package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingBackend struct{ err error }

func (b failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, b.err }
func (b failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return b.err
}
func (b failingBackend) Delete(context.Context, string) error { return b.err }

// slowBackend blocks until the caller's context gives up.
type slowBackend struct{}

func (slowBackend) Get(ctx context.Context, _ string) ([]byte, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}
func (slowBackend) Set(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}
func (slowBackend) Delete(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

// staleBackend ignores TTLs, like a backend whose native expiry lags.
type staleBackend struct{ *MemoryBackend }

func (b *staleBackend) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	return b.MemoryBackend.Set(ctx, key, value, 24*time.Hour)
}

func TestLayerHitMissDelete(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	l := New(NewMemoryBackend(clock.Now), discard, Config{TTL: 30 * time.Second, Now: clock.Now})
	ctx := context.Background()

	if res := l.Get(ctx, "k"); res.Status != StatusMiss {
		t.Fatalf("expected MISS on empty cache, got %+v", res)
	}
	if res := l.Set(ctx, "k", []byte(`["s1"]`)); res.Status != StatusOK {
		t.Fatalf("expected OK on set, got %+v", res)
	}
	res := l.Get(ctx, "k")
	if res.Status != StatusHit || string(res.Value) != `["s1"]` {
		t.Fatalf("expected HIT with value, got %+v", res)
	}
	if res := l.Delete(ctx, "k"); res.Status != StatusOK {
		t.Fatalf("expected OK on delete, got %+v", res)
	}
	if res := l.Get(ctx, "k"); res.Status != StatusMiss {
		t.Fatalf("expected MISS after delete, got %+v", res)
	}
}

func TestLayerNeverServesPastTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	backend := &staleBackend{MemoryBackend: NewMemoryBackend(clock.Now)}
	l := New(backend, discard, Config{TTL: 30 * time.Second, Now: clock.Now})
	ctx := context.Background()

	l.Set(ctx, "k", []byte("v"))

	clock.Advance(29*time.Second + 999*time.Millisecond)
	if res := l.Get(ctx, "k"); res.Status != StatusHit {
		t.Fatalf("expected HIT just before TTL, got %+v", res)
	}

	clock.Advance(time.Millisecond)
	res := l.Get(ctx, "k")
	if res.Status != StatusMiss || res.Reason != ReasonExpired {
		t.Fatalf("expected expired MISS at T+TTL, got %+v", res)
	}
}

func TestLayerDegradesToBypass(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		layer   *Layer
		reason  string
		maxTime time.Duration
	}{
		{"disabled", New(nil, discard, Config{}), ReasonDisabled, time.Second},
		{"backend error", New(failingBackend{err: errors.New("connection refused")}, discard, Config{}), ReasonBackendError, time.Second},
		{"timeout", New(slowBackend{}, discard, Config{Timeout: 20 * time.Millisecond}), ReasonTimeout, time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start := time.Now()
			for op, res := range map[string]Result{
				"get":    tc.layer.Get(ctx, "k"),
				"set":    tc.layer.Set(ctx, "k", []byte("v")),
				"delete": tc.layer.Delete(ctx, "k"),
			} {
				if res.Status != StatusBypass || res.Reason != tc.reason {
					t.Fatalf("%s: expected BYPASS(%s), got %+v", op, tc.reason, res)
				}
			}
			if elapsed := time.Since(start); elapsed > tc.maxTime {
				t.Fatalf("cache calls took %s", elapsed)
			}
		})
	}
}

func TestLayerCorruptEntryIsMiss(t *testing.T) {
	backend := NewMemoryBackend(nil)
	_ = backend.Set(context.Background(), "k", []byte("abc"), time.Minute)

	l := New(backend, discard, Config{})
	res := l.Get(context.Background(), "k")
	if res.Status != StatusMiss || res.Reason != ReasonCorrupt {
		t.Fatalf("expected corrupt MISS, got %+v", res)
	}
}
