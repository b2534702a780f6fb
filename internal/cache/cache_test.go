package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestCache_PutGet(t *testing.T) {
	t.Parallel()

	c := New[string](4, 0)
	c.Put("a", "1")

	v, ok := c.Get("a")
	if !ok || v != "1" {
		t.Fatalf("expected hit with %q, got %q (ok=%v)", "1", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestCache_ReplaceIsWholeValue(t *testing.T) {
	t.Parallel()

	c := New[[]int](4, 0)
	c.Put("k", []int{1, 2})
	c.Put("k", []int{3})

	v, ok := c.Get("k")
	if !ok || len(v) != 1 || v[0] != 3 {
		t.Fatalf("expected replacement value [3], got %v", v)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry after replace, got %d", c.Len())
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := New[int](3, 0)
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), i)
	}

	// Touch k0 so k1 becomes the eviction candidate.
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("expected k0 present")
	}
	c.Put("k3", 3)

	if _, ok := c.Get("k1"); ok {
		t.Error("expected k1 evicted as least recently used")
	}
	for _, key := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("expected %s retained", key)
		}
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	c := New[string](4, time.Minute)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Put("k", "v")

	clock = clock.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit within TTL window")
	}

	clock = clock.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after TTL expiry")
	}

	// Rewriting the key resets its expiry.
	c.Put("k", "v2")
	clock = clock.Add(30 * time.Second)
	if v, ok := c.Get("k"); !ok || v != "v2" {
		t.Fatalf("expected fresh entry after rewrite, got %q (ok=%v)", v, ok)
	}
}

func TestCache_ZeroCapacityFallback(t *testing.T) {
	t.Parallel()

	c := New[int](0, 0)
	c.Put("k", 1)
	if _, ok := c.Get("k"); !ok {
		t.Error("expected cache with fallback capacity to store entries")
	}
}
