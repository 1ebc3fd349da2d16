package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/five82/termstack/internal/value"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCache_GetWithinTTL(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	c := New(clk.Now)
	k := Key{Page: "pods", Signature: "abc"}

	c.Put(k, value.Dataset{value.String("a")}, 10*time.Second)

	clk.Advance(9 * time.Second)
	e, ok := c.Get(k)
	if !ok || len(e.Rows) != 1 {
		t.Fatalf("Get within ttl = %v, %v; want hit", e, ok)
	}

	clk.Advance(time.Second)
	if _, ok := c.Get(k); ok {
		t.Fatalf("Get at ttl boundary should miss")
	}
	if _, ok := c.Peek(k); !ok {
		t.Fatalf("Peek should still see the expired entry")
	}
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New(clk.Now)
	k := Key{Page: "p", Signature: "s"}
	c.Put(k, nil, 0)
	clk.Advance(24 * time.Hour)
	if _, ok := c.Get(k); !ok {
		t.Fatalf("zero ttl entry expired")
	}
}

func TestCache_InvalidateAndPurge(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New(clk.Now)

	c.Put(Key{"pods", "a"}, nil, time.Minute)
	c.Put(Key{"pods", "b"}, nil, time.Hour)
	c.Put(Key{"nodes", "a"}, nil, time.Second)

	if n := c.InvalidatePage("pods"); n != 2 {
		t.Fatalf("InvalidatePage removed %d, want 2", n)
	}
	clk.Advance(2 * time.Second)
	if n := c.Purge(); n != 1 {
		t.Fatalf("Purge removed %d, want 1", n)
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}

	c.Put(Key{"x", "y"}, nil, 0)
	c.Invalidate(Key{"x", "y"})
	if c.Len() != 0 {
		t.Fatalf("Invalidate left %d entries", c.Len())
	}
	c.Put(Key{"x", "y"}, nil, 0)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Clear left %d entries", c.Len())
	}
}

func TestCache_PutReplacesAtomically(t *testing.T) {
	c := New(nil)
	k := Key{Page: "p", Signature: "s"}

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Put(k, value.Dataset{value.Int(int64(i))}, time.Minute)
		}()
		go func() {
			defer wg.Done()
			if e, ok := c.Get(k); ok && len(e.Rows) != 1 {
				t.Errorf("torn entry: %v", e.Rows)
			}
		}()
	}
	wg.Wait()
}
