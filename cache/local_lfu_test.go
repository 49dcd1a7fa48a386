package cache

import (
	"testing"
)

func TestLFUCacheSetGetDelete(t *testing.T) {
	cache, err := NewLFUCache(DefaultLocalCacheConfig())
	if err != nil {
		t.Fatalf("Failed to create LFU cache: %v", err)
	}
	defer cache.Close()

	snapshot := []string{`{"id":"1"}`}
	if !cache.Set(InstructorCacheKey, snapshot, int64(len(snapshot[0]))) {
		t.Skip("ristretto admission policy dropped the value")
	}

	value, found := cache.Get(InstructorCacheKey)
	if !found {
		t.Fatal("Value should be found after Set")
	}
	if got := value.([]string); got[0] != snapshot[0] {
		t.Fatalf("Expected %v, got %v", snapshot, got)
	}

	cache.Delete(InstructorCacheKey)
	if _, found := cache.Get(InstructorCacheKey); found {
		t.Fatal("Value should be deleted")
	}

	m := cache.Metrics()
	if m.Hits != 1 || m.Misses != 1 {
		t.Fatalf("Expected 1 hit and 1 miss, got %+v", m)
	}
}

func TestLFUCacheClear(t *testing.T) {
	cache, err := NewLFUCache(DefaultLocalCacheConfig())
	if err != nil {
		t.Fatalf("Failed to create LFU cache: %v", err)
	}
	defer cache.Close()

	cache.Set("a", []string{"x"}, 1)
	cache.Set("b", []string{"y"}, 1)
	cache.Clear()

	if _, found := cache.Get("a"); found {
		t.Fatal("Clear should remove a")
	}
	if _, found := cache.Get("b"); found {
		t.Fatal("Clear should remove b")
	}
}

func TestLFUCacheInvalidConfig(t *testing.T) {
	if _, err := NewLFUCache(LocalCacheConfig{}); err == nil {
		t.Fatal("Expected error for zero config")
	}
}

func TestLFUCacheFactory(t *testing.T) {
	local, err := NewLFUCacheFactory(DefaultLocalCacheConfig()).Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer local.Close()

	if _, ok := local.(*LFUCache); !ok {
		t.Fatalf("Expected *LFUCache, got %T", local)
	}
}
