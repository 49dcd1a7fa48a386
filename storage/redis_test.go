package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, testMode bool) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), Options{Addr: mr.Addr(), MaxRetries: -1, TestMode: testMode})
	if err != nil {
		t.Fatalf("Failed to create Redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), Options{Addr: addr, PingTimeout: 500 * time.Millisecond})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
}

func TestRedisStoreGetSetDelete(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	if _, err := store.GetAndExpire(ctx, "test:missing", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "test:key", []byte("test-value"), 0); err != nil {
		t.Fatalf("Failed to set value: %v", err)
	}
	value, err := store.GetAndExpire(ctx, "test:key", 0)
	if err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}
	if string(value) != "test-value" {
		t.Fatalf("Expected test-value, got %s", value)
	}
	if ok, err := store.Exists(ctx, "test:key"); err != nil || !ok {
		t.Fatalf("Expected key to exist, got %v, %v", ok, err)
	}

	if err := store.Delete(ctx, "test:key", "test:other"); err != nil {
		t.Fatalf("Failed to delete value: %v", err)
	}
	if ok, err := store.Exists(ctx, "test:key"); err != nil || ok {
		t.Fatalf("Expected key to be gone, got %v, %v", ok, err)
	}
	if err := store.Delete(ctx); err != nil {
		t.Fatalf("Delete with no keys should be a no-op, got %v", err)
	}
}

func TestRedisStoreGetAndExpireSlides(t *testing.T) {
	store, mr := newTestStore(t, false)
	ctx := context.Background()

	if err := store.Set(ctx, "test:ttl", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Failed to set value: %v", err)
	}
	mr.FastForward(30 * time.Second)
	if _, err := store.GetAndExpire(ctx, "test:ttl", time.Minute); err != nil {
		t.Fatalf("Failed to read value: %v", err)
	}
	if ttl := mr.TTL("test:ttl"); ttl != time.Minute {
		t.Fatalf("Expected ttl reset to 1m, got %v", ttl)
	}
	mr.FastForward(45 * time.Second)
	if _, err := store.GetAndExpire(ctx, "test:ttl", 0); err != nil {
		t.Fatalf("Expected key to survive refreshed ttl, got %v", err)
	}
	mr.FastForward(time.Minute)
	if _, err := store.GetAndExpire(ctx, "test:ttl", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected key to expire, got %v", err)
	}
}

func TestRedisStoreReplaceList(t *testing.T) {
	store, mr := newTestStore(t, false)
	ctx := context.Background()

	if err := store.ReplaceList(ctx, "test:list", "test:list:warm", []string{"a", "b"}); err != nil {
		t.Fatalf("ReplaceList failed: %v", err)
	}
	if err := store.ReplaceList(ctx, "test:list", "test:list:warm", []string{"c", "d", "e"}); err != nil {
		t.Fatalf("ReplaceList failed: %v", err)
	}

	vals, err := store.LRange(ctx, "test:list", 0, -1)
	if err != nil {
		t.Fatalf("LRange failed: %v", err)
	}
	want := []string{"c", "d", "e"}
	if len(vals) != len(want) {
		t.Fatalf("Expected %v, got %v", want, vals)
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, vals)
		}
	}
	if !mr.Exists("test:list:warm") {
		t.Fatal("Expected marker to be written")
	}

	if err := store.ReplaceList(ctx, "test:list", "test:list:warm", nil); err != nil {
		t.Fatalf("ReplaceList failed: %v", err)
	}
	if mr.Exists("test:list") || !mr.Exists("test:list:warm") {
		t.Fatal("Expected an empty list with its marker")
	}
}

func TestRedisStoreRunScript(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	script := redis.NewScript(`return {redis.call("INCR", KEYS[1]), tonumber(ARGV[1])}`)
	for i := int64(1); i <= 2; i++ {
		vals, err := store.RunScript(ctx, script, []string{"test:counter"}, 7)
		if err != nil {
			t.Fatalf("RunScript failed: %v", err)
		}
		if len(vals) != 2 || vals[0] != i || vals[1] != 7 {
			t.Fatalf("Expected [%d 7], got %v", i, vals)
		}
	}
}

func TestRedisStoreFlushAll(t *testing.T) {
	ctx := context.Background()

	prod, _ := newTestStore(t, false)
	if err := prod.FlushAll(ctx); !errors.Is(err, ErrFlushForbidden) {
		t.Fatalf("Expected ErrFlushForbidden, got %v", err)
	}

	test, mr := newTestStore(t, true)
	mr.Set("leftover", "1")
	if err := test.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}
	if mr.Exists("leftover") {
		t.Fatal("Expected key to be flushed")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t, false)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := store.GetAndExpire(ctx, "k", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if err := store.ReplaceList(ctx, "l", "l:warm", []string{"a"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if store.Healthy(ctx) {
		t.Fatal("Expected unhealthy store")
	}
}
