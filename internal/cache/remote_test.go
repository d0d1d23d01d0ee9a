package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/docuflow/tiercache/internal/apperrors"
)

func newTestRemoteStore(t *testing.T) (*RemoteStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	store := newRemoteStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zerolog.Nop())
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRemoteStore_GetSet(t *testing.T) {
	store, _ := newTestRemoteStore(t)
	ctx := context.Background()

	if _, ok := store.Get(ctx, "absent"); ok {
		t.Fatal("Expected miss for absent key")
	}

	if err := store.Set(ctx, "key", []byte("hello"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, ok := store.Get(ctx, "key")
	if !ok || string(val) != "hello" {
		t.Fatalf("Expected hit with 'hello', got %q (ok=%v)", string(val), ok)
	}
}

func TestRemoteStore_TTLExpiry(t *testing.T) {
	store, mr := newTestRemoteStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "key", []byte("v"), time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, ok := store.Get(ctx, "key"); ok {
		t.Fatal("Expected miss after TTL expiry")
	}
}

func TestRemoteStore_GetWithTTL(t *testing.T) {
	store, _ := newTestRemoteStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "key", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	val, ttl, ok := store.GetWithTTL(ctx, "key")
	if !ok || string(val) != "v" {
		t.Fatalf("Expected hit, got %q (ok=%v)", string(val), ok)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("Expected remaining TTL in (0, 1m], got %v", ttl)
	}

	if _, _, ok := store.GetWithTTL(ctx, "absent"); ok {
		t.Fatal("Expected miss for absent key")
	}
}

func TestRemoteStore_DeleteCount(t *testing.T) {
	store, _ := newTestRemoteStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "a", []byte("1"), time.Minute)
	_ = store.Set(ctx, "b", []byte("2"), time.Minute)

	if n := store.Delete(ctx, "a", "b", "absent"); n != 2 {
		t.Fatalf("Expected 2 removals, got %d", n)
	}
	// Idempotent: all gone now.
	if n := store.Delete(ctx, "a", "b"); n != 0 {
		t.Fatalf("Expected 0 removals on second delete, got %d", n)
	}
	if n := store.Delete(ctx); n != 0 {
		t.Fatalf("Expected 0 removals for empty key list, got %d", n)
	}
}

func TestRemoteStore_SetMembership(t *testing.T) {
	store, mr := newTestRemoteStore(t)
	ctx := context.Background()

	if err := store.AddToSet(ctx, "tagset", "k1", "k2"); err != nil {
		t.Fatalf("AddToSet: %v", err)
	}
	if err := store.AddToSet(ctx, "tagset", "k2"); err != nil {
		t.Fatalf("AddToSet duplicate: %v", err)
	}

	members := store.SetMembers(ctx, "tagset")
	if len(members) != 2 {
		t.Fatalf("Expected 2 members, got %v", members)
	}

	if err := store.ExpireSet(ctx, "tagset", time.Second); err != nil {
		t.Fatalf("ExpireSet: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if members := store.SetMembers(ctx, "tagset"); len(members) != 0 {
		t.Fatalf("Expected set to expire, got %v", members)
	}
}

func TestRemoteStore_ExpireSetOnlyExtends(t *testing.T) {
	store, mr := newTestRemoteStore(t)
	ctx := context.Background()

	_ = store.AddToSet(ctx, "tagset", "k")
	if err := store.ExpireSet(ctx, "tagset", time.Hour); err != nil {
		t.Fatalf("ExpireSet: %v", err)
	}
	// A later registration with a shorter TTL must not shorten the set's life.
	if err := store.ExpireSet(ctx, "tagset", time.Second); err != nil {
		t.Fatalf("ExpireSet shorter: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if members := store.SetMembers(ctx, "tagset"); len(members) != 1 {
		t.Fatalf("Expected set to survive the shorter expire, got %v", members)
	}
}

func TestRemoteStore_MGetMSet(t *testing.T) {
	store, _ := newTestRemoteStore(t)
	ctx := context.Background()

	entries := map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
		"c": []byte("3"),
	}
	if err := store.MSet(ctx, entries, time.Minute); err != nil {
		t.Fatalf("MSet: %v", err)
	}

	got := store.MGetWithTTL(ctx, "a", "b", "c", "absent")
	if len(got) != 3 {
		t.Fatalf("Expected 3 results, got %v", got)
	}
	for k, want := range entries {
		entry := got[k]
		if string(entry.data) != string(want) {
			t.Fatalf("Expected %s=%s, got %s", k, want, entry.data)
		}
		if entry.ttl <= 0 || entry.ttl > time.Minute {
			t.Fatalf("Expected %s remaining TTL in (0, 1m], got %v", k, entry.ttl)
		}
	}
}

func TestRemoteStore_DegradesWhenUnreachable(t *testing.T) {
	store, mr := newTestRemoteStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "key", []byte("v"), time.Minute)
	mr.Close()

	// Reads degrade to a miss, writes report the failure internally.
	if _, ok := store.Get(ctx, "key"); ok {
		t.Fatal("Expected miss when store is unreachable")
	}
	err := store.Set(ctx, "key", []byte("v"), time.Minute)
	if err == nil {
		t.Fatal("Expected error for write to unreachable store")
	}
	if !errors.Is(err, &apperrors.ErrStoreUnavailable{}) {
		t.Fatalf("Expected ErrStoreUnavailable, got %T: %v", err, err)
	}
	if n := store.Delete(ctx, "key"); n != 0 {
		t.Fatalf("Expected 0 removals when unreachable, got %d", n)
	}
	if members := store.SetMembers(ctx, "tagset"); members != nil {
		t.Fatalf("Expected nil members when unreachable, got %v", members)
	}
}

func TestNewRemoteStore_BadURL(t *testing.T) {
	if _, err := NewRemoteStore("not-a-url", zerolog.Nop()); err == nil {
		t.Fatal("Expected error for malformed store URL")
	}
}

func TestNewRemoteStore_UnreachableIsNotFatal(t *testing.T) {
	store, err := NewRemoteStore("redis://localhost:59999/0", zerolog.Nop())
	if err != nil {
		t.Fatalf("Expected degraded start, got error: %v", err)
	}
	defer store.Close()

	if _, ok := store.Get(context.Background(), "key"); ok {
		t.Fatal("Expected miss from unreachable store")
	}
}
