package sqlite

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T, ttl time.Duration, capacity int) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	c, err := New(dbPath, ttl, capacity)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour, 10)

	if err := c.Put("fp1", []byte(`{"kind":"chat","response":"hello"}`)); err != nil {
		t.Fatal(err)
	}

	data, ok := c.Get("fp1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(data) != `{"kind":"chat","response":"hello"}` {
		t.Errorf("unexpected response: %s", data)
	}

	_, ok = c.Get("fp2")
	if ok {
		t.Error("expected cache miss for unknown fingerprint")
	}
}

func TestTTLExpiration(t *testing.T) {
	c := newTestCache(t, 1*time.Millisecond, 10)

	if err := c.Put("fp1", []byte("data")); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)

	_, ok := c.Get("fp1")
	if ok {
		t.Error("expected cache miss after TTL expiration")
	}

	// Expired entry should have been lazily purged.
	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 0 {
		t.Errorf("expected purged entry, got %d entries", stats.Entries)
	}
}

func TestTTLBoundaryIsAMiss(t *testing.T) {
	ttl := time.Minute
	c := newTestCache(t, ttl, 10)

	if err := c.Put("fp1", []byte("data")); err != nil {
		t.Fatal(err)
	}

	var createdAt time.Time
	if err := c.db.QueryRow(
		`SELECT created_at FROM cache_entries WHERE fingerprint = ?`, "fp1",
	).Scan(&createdAt); err != nil {
		t.Fatal(err)
	}

	c.now = func() time.Time { return createdAt.Add(ttl - time.Second) }
	if _, ok := c.Get("fp1"); !ok {
		t.Error("expected hit just before TTL elapses")
	}

	c.now = func() time.Time { return createdAt.Add(ttl) }
	if _, ok := c.Get("fp1"); ok {
		t.Error("expected miss at exactly created_at+ttl")
	}
}

func TestLRUEviction(t *testing.T) {
	c := newTestCache(t, time.Hour, 2)

	_ = c.Put("a", []byte("1"))
	time.Sleep(5 * time.Millisecond)
	_ = c.Put("b", []byte("2"))
	time.Sleep(5 * time.Millisecond)

	// Touch "a" so "b" becomes least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}
	time.Sleep(5 * time.Millisecond)

	_ = c.Put("c", []byte("3"))

	if _, ok := c.Get("b"); ok {
		t.Error("expected least-recently-used entry b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected recently used entry a to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected newest entry c to survive")
	}
}

func TestCapacityBound(t *testing.T) {
	c := newTestCache(t, time.Hour, 3)

	for i := 0; i < 10; i++ {
		_ = c.Put(fmt.Sprintf("fp%d", i), []byte("data"))
		time.Sleep(2 * time.Millisecond)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 3 {
		t.Errorf("expected 3 entries at capacity, got %d", stats.Entries)
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, time.Hour, 10)

	_ = c.Put("h1", []byte("data"))
	c.Get("h1") // hit
	c.Get("h2") // miss

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, time.Hour, 10)

	_ = c.Put("h1", []byte("data"))
	_ = c.Put("h2", []byte("data"))

	if err := c.Clear(false); err != nil {
		t.Fatal(err)
	}

	stats, _ := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("expected 0 entries after clear, got %d", stats.Entries)
	}
}
