package cache

import (
	"testing"
)

func TestLRUCacheNewWithInvalidSize(t *testing.T) {
	if _, err := NewLRUCache(0); err == nil {
		t.Fatal("Expected error for zero size")
	}
	if _, err := NewLRUCache(-1); err == nil {
		t.Fatal("Expected error for negative size")
	}
}

func TestLRUCacheSetGetDelete(t *testing.T) {
	cache, err := NewLRUCache(10)
	if err != nil {
		t.Fatalf("Failed to create LRU cache: %v", err)
	}
	defer cache.Close()

	snapshot := []string{`{"id":"1"}`, `{"id":"2"}`}
	if !cache.Set(CourseCacheKey, snapshot, 0) {
		t.Fatal("Set should return true")
	}

	value, found := cache.Get(CourseCacheKey)
	if !found {
		t.Fatal("Value should be found")
	}
	if got := value.([]string); len(got) != 2 || got[1] != snapshot[1] {
		t.Fatalf("Expected %v, got %v", snapshot, got)
	}

	cache.Delete(CourseCacheKey)
	if _, found := cache.Get(CourseCacheKey); found {
		t.Fatal("Value should be deleted")
	}
	cache.Delete("nonexistent")
}

func TestLRUCacheEvictionsAndMetrics(t *testing.T) {
	cache, err := NewLRUCache(2)
	if err != nil {
		t.Fatalf("Failed to create LRU cache: %v", err)
	}

	cache.Set("a", []string{"1"}, 0)
	cache.Set("b", []string{"2"}, 0)
	cache.Get("a")
	cache.Set("c", []string{"3"}, 0)

	if _, found := cache.Get("b"); found {
		t.Fatal("Least recently used key should be evicted")
	}

	m := cache.Metrics()
	if m.Hits != 1 || m.Misses != 1 {
		t.Fatalf("Expected 1 hit and 1 miss, got %+v", m)
	}
	if m.Evictions != 1 {
		t.Fatalf("Expected 1 eviction, got %d", m.Evictions)
	}
	if m.Size != 2 {
		t.Fatalf("Expected size 2, got %d", m.Size)
	}

	cache.Clear()
	if cache.Metrics().Size != 0 {
		t.Fatal("Clear should empty the cache")
	}
}

func TestLRUCacheFactory(t *testing.T) {
	factory := NewLRUCacheFactory(3)
	local, err := factory.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer local.Close()

	if _, ok := local.(*LRUCache); !ok {
		t.Fatalf("Expected *LRUCache, got %T", local)
	}
}
