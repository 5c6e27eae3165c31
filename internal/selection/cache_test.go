package selection

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(ttl time.Duration) (*Cache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, time.May, 5, 12, 0, 0, 0, time.UTC)}
	c := New(ttl)
	c.now = clk.Now
	return c, clk
}

func TestTouchThenGet(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	if _, ok := c.Get(1); ok {
		t.Fatalf("empty cache returned an entry")
	}
	c.Touch(1, 42)
	got, ok := c.Get(1)
	if !ok || got != 42 {
		t.Fatalf("want 42, got %d (ok=%v)", got, ok)
	}

	c.Touch(1, 43)
	if got, _ := c.Get(1); got != 43 {
		t.Fatalf("touch must overwrite, got %d", got)
	}
}

func TestSweep_EvictsOnlyExpired(t *testing.T) {
	c, clk := newTestCache(10 * time.Minute)

	c.Touch(1, 100)
	clk.Advance(6 * time.Minute)
	c.Touch(2, 200)
	clk.Advance(5 * time.Minute)

	// Entry 1 is 11m old, entry 2 is 5m old.
	if n := c.Sweep(); n != 1 {
		t.Fatalf("want 1 removed, got %d", n)
	}
	if _, ok := c.Get(1); ok {
		t.Fatalf("expired entry survived the sweep")
	}
	if got, ok := c.Get(2); !ok || got != 200 {
		t.Fatalf("fresh entry was evicted")
	}
}

func TestGet_ExpiredEntryStaysUntilSweep(t *testing.T) {
	c, clk := newTestCache(time.Minute)

	c.Touch(1, 100)
	clk.Advance(2 * time.Minute)
	if _, ok := c.Get(1); !ok {
		t.Fatalf("only Sweep evicts entries")
	}
	c.Sweep()
	if _, ok := c.Get(1); ok {
		t.Fatalf("entry present after TTL and sweep")
	}
}

func TestTouch_RefreshesTimestamp(t *testing.T) {
	c, clk := newTestCache(10 * time.Minute)

	c.Touch(1, 100)
	clk.Advance(8 * time.Minute)
	c.Touch(1, 100)
	clk.Advance(8 * time.Minute)

	if n := c.Sweep(); n != 0 {
		t.Fatalf("refreshed entry was evicted")
	}
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Touch(1, 100)
	c.Touch(2, 200)
	c.Clear(1)
	if _, ok := c.Get(1); ok {
		t.Fatalf("cleared entry still present")
	}
	if c.Len() != 1 {
		t.Fatalf("want 1 entry, got %d", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			for j := int64(0); j < 100; j++ {
				c.Touch(chat, j)
				c.Get(chat)
				c.Sweep()
			}
		}(i)
	}
	wg.Wait()

	for i := int64(0); i < 50; i++ {
		if got, ok := c.Get(i); !ok || got != 99 {
			t.Fatalf("chat %d: want 99, got %d (ok=%v)", i, got, ok)
		}
	}
}

func TestRun_SweepsUntilCanceled(t *testing.T) {
	c := New(time.Millisecond)
	c.Touch(1, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond, zap.NewNop())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for c.Len() > 0 {
		select {
		case <-deadline:
			t.Fatalf("entry was never swept")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
