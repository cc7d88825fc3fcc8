package cache

import (
	"sync"
	"testing"
	"time"
)

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

func newTestLRU(maxSize int, ttl time.Duration) (*LRU[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	c := NewLRU[string](maxSize, ttl)
	c.now = clock.Now
	return c, clock
}

func TestGetSet(t *testing.T) {
	c, _ := newTestLRU(4, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache should miss")
	}
	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v; want 1, true", v, ok)
	}
	c.Set("a", "2")
	if v, _ := c.Get("a"); v != "2" {
		t.Errorf("Get(a) after overwrite = %q, want 2", v)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

func TestTTLExpiry(t *testing.T) {
	c, clock := newTestLRU(4, time.Minute)
	c.Set("a", "1")

	clock.Advance(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Error("entry expired before its TTL")
	}
	clock.Advance(2 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("entry should have expired")
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0 after lazy expiry", c.Size())
	}
}

func TestOverwriteRefreshesTTL(t *testing.T) {
	c, clock := newTestLRU(4, time.Minute)
	c.Set("a", "1")
	clock.Advance(45 * time.Second)
	c.Set("a", "2")
	clock.Advance(45 * time.Second)
	if v, ok := c.Get("a"); !ok || v != "2" {
		t.Errorf("Get(a) = %q, %v; overwrite should restart the TTL", v, ok)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestLRU(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) should hit")
	}
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b was least recently used and should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a was touched and should survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c was just added and should survive")
	}
	if c.Size() != 2 {
		t.Errorf("Size = %d, want 2", c.Size())
	}
}

func TestDelete(t *testing.T) {
	c, _ := newTestLRU(4, time.Minute)
	c.Set("a", "1")
	c.Delete("a")
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry should miss")
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
}

func TestCleanExpired(t *testing.T) {
	c, clock := newTestLRU(8, time.Minute)
	c.Set("old1", "1")
	c.Set("old2", "2")
	clock.Advance(2 * time.Minute)
	c.Set("fresh", "3")

	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}

type cleanerSpy struct {
	mu    sync.Mutex
	calls int
}

func (s *cleanerSpy) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return 1
}

func (s *cleanerSpy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestJanitorSweepsRegisteredCaches(t *testing.T) {
	spy := &cleanerSpy{}
	j := NewJanitor(nil)
	j.Register(spy)
	j.Start(5 * time.Millisecond)

	deadline := time.After(time.Second)
	for spy.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("janitor never swept")
		case <-time.After(5 * time.Millisecond):
		}
	}
	j.Stop()

	settled := spy.count()
	time.Sleep(20 * time.Millisecond)
	if spy.count() != settled {
		t.Error("janitor kept sweeping after Stop")
	}
}
