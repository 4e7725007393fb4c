package cache

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgnsrekt/listen/internal/audio"
)

func newResource(key string, size int) *Resource {
	return &Resource{
		ID:   "blob:test/" + key,
		Key:  key,
		Clip: audio.Clip{Data: make([]byte, size), Format: audio.DefaultFormat()},
	}
}

func cached(c *MemoryCache, key string) bool {
	_, ok := c.peek(key)
	return ok
}

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache := NewMemoryCache(1024)

	res := newResource("test-key", 10)
	got, err := cache.Add(res)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if got != res {
		t.Fatal("Add returned a different handle for a new key")
	}

	retrieved, ok := cache.Get("test-key")
	if !ok || retrieved != res {
		t.Fatal("Get did not return the stored handle")
	}
	if !cached(cache, "test-key") {
		t.Error("peek missed an existing key")
	}
	if cache.Stats().Size != 10 {
		t.Errorf("Size mismatch: got %d, want 10", cache.Stats().Size)
	}

	if n := cache.Clear(); n != 1 {
		t.Errorf("Clear dropped %d entries, want 1", n)
	}
	if cached(cache, "test-key") {
		t.Error("Key still exists after clear")
	}
	if cache.Stats().Size != 0 {
		t.Errorf("Size not zero after clear: %d", cache.Stats().Size)
	}
	if len(retrieved.Clip.Data) != 10 {
		t.Error("clearing the cache changed a handle already given out")
	}
}

func TestMemoryCache_AddExistingKeepsFirst(t *testing.T) {
	cache := NewMemoryCache(1024)

	first := newResource("k", 8)
	second := newResource("k", 16)
	second.ID = "blob:test/other"

	if _, err := cache.Add(first); err != nil {
		t.Fatal(err)
	}
	got, err := cache.Add(second)
	if err != nil {
		t.Fatal(err)
	}
	if got != first {
		t.Errorf("Add returned %s, want the first handle", got.ID)
	}
	if cache.Stats().Size != 8 {
		t.Errorf("Size = %d, the second value must be discarded", cache.Stats().Size)
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	cache := NewMemoryCache(100)

	for i := 0; i < 5; i++ {
		if _, err := cache.Add(newResource(fmt.Sprintf("key-%d", i), 20)); err != nil {
			t.Fatalf("Add failed for key-%d: %v", i, err)
		}
	}

	cache.Get("key-0")
	cache.Get("key-1")

	if _, err := cache.Add(newResource("key-new", 30)); err != nil {
		t.Fatalf("Add failed for new key: %v", err)
	}

	for _, k := range []string{"key-2", "key-3"} {
		if cached(cache, k) {
			t.Errorf("%s should have been evicted", k)
		}
	}
	for _, k := range []string{"key-0", "key-1", "key-4", "key-new"} {
		if !cached(cache, k) {
			t.Errorf("%s should not have been evicted", k)
		}
	}
	if got := cache.Stats().Evictions; got != 2 {
		t.Errorf("Evictions = %d, want 2", got)
	}
	if cache.Stats().Size > 100 {
		t.Errorf("Size %d exceeds capacity", cache.Stats().Size)
	}
}

func TestMemoryCache_ItemTooLarge(t *testing.T) {
	cache := NewMemoryCache(100)

	res := newResource("large-key", 200)
	got, err := cache.Add(res)
	if !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Expected ErrItemTooLarge, got %v", err)
	}
	if got != res {
		t.Error("an oversized item should still hand back its own handle")
	}
	if cached(cache, "large-key") {
		t.Error("oversized item was cached")
	}
}

func TestMemoryCache_Unbounded(t *testing.T) {
	cache := NewMemoryCache(0)
	for i := 0; i < 50; i++ {
		if _, err := cache.Add(newResource(fmt.Sprintf("k%d", i), 1<<16)); err != nil {
			t.Fatal(err)
		}
	}
	if n := cache.Stats().Items; n != 50 {
		t.Errorf("Items = %d, want 50", n)
	}
}

func TestMemoryCache_Prune(t *testing.T) {
	cache := NewMemoryCache(1024)
	for _, k := range []string{"a", "b", "c"} {
		cache.Add(newResource(k, 1)) //nolint:errcheck
	}

	if n := cache.Prune(time.Hour); n != 0 {
		t.Errorf("Prune(1h) removed %d fresh entries", n)
	}
	time.Sleep(5 * time.Millisecond)
	if n := cache.Prune(time.Millisecond); n != 3 {
		t.Errorf("Prune(1ms) removed %d entries, want 3", n)
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := NewMemoryCache(1024)

	cache.Add(newResource("key1", 4)) //nolint:errcheck
	cache.Get("key1")
	cache.Get("key2")

	if _, ok := cache.peek("key3"); ok {
		t.Fatal("peek found a missing key")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.HitRate() != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %f", stats.HitRate())
	}
}
