package app

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/termstack/internal/cache"
	"github.com/five82/termstack/internal/value"
)

func TestJanitorPurgesExpiredEntries(t *testing.T) {
	var now atomic.Int64
	now.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	c := cache.New(func() time.Time { return time.Unix(0, now.Load()) })

	c.Put(cache.Key{Page: "pods", Signature: "a"}, value.Dataset{value.String("x")}, time.Second)
	c.Put(cache.Key{Page: "nodes", Signature: "b"}, value.Dataset{value.String("y")}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartJanitor(ctx, c, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	now.Add(int64(time.Minute))

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("cache still holds %d entries, want 1", c.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := c.Get(cache.Key{Page: "nodes", Signature: "b"}); !ok {
		t.Fatal("live entry was purged")
	}
}

func TestJanitorInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{0, defaultJanitorInterval},
		{time.Second, minJanitorInterval},
		{30 * time.Second, 30 * time.Second},
		{time.Hour, defaultJanitorInterval},
	}
	for _, tt := range tests {
		if got := janitorInterval(tt.ttl); got != tt.want {
			t.Errorf("janitorInterval(%v) = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}
