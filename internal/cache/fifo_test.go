package cache

import (
	"fmt"
	"testing"
)

func TestFIFOEvictsOldestOnOverflow(t *testing.T) {
	c := NewFIFO[int](100)
	for i := 0; i < 101; i++ {
		c.Put(fmt.Sprintf("k%03d", i), i)
	}

	if c.Len() != 100 {
		t.Fatalf("expected 100 entries, got %d", c.Len())
	}
	if _, ok := c.Get("k000"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if v, ok := c.Get("k100"); !ok || v != 100 {
		t.Error("newest entry should be present")
	}
	if v, ok := c.Get("k001"); !ok || v != 1 {
		t.Error("second-oldest entry should survive a single eviction")
	}
}

func TestFIFOReadDoesNotExtendLifetime(t *testing.T) {
	c := NewFIFO[string](2)
	c.Put("a", "1")
	c.Put("b", "2")

	// In an LRU this read would protect "a". It must not here.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}
	c.Put("c", "3")

	if _, ok := c.Get("a"); ok {
		t.Error("a should be evicted despite the recent read")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should survive")
	}
}

func TestFIFOOverwriteKeepsPosition(t *testing.T) {
	c := NewFIFO[string](2)
	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("a", "updated")
	c.Put("c", "3")

	if _, ok := c.Get("a"); ok {
		t.Error("overwritten entry should keep its original eviction slot")
	}
	if v, ok := c.Get("b"); !ok || v != "2" {
		t.Error("b should survive")
	}
}

func TestFIFOStatsAndPurge(t *testing.T) {
	c := NewFIFO[int](10)
	c.Put("x", 1)
	c.Get("x")
	c.Get("y")

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %d / %d", hits, misses)
	}

	c.Purge()
	if c.Len() != 0 {
		t.Error("purge should empty the cache")
	}
	hits, misses = c.Stats()
	if hits != 0 || misses != 0 {
		t.Error("purge should reset counters")
	}
}

func TestFIFOZeroCapacity(t *testing.T) {
	c := NewFIFO[int](0)
	c.Put("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Error("zero-capacity cache should never store")
	}
}
