// SPDX-License-Identifier: MIT

package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, &RedisStore{client: client, logger: zerolog.Nop()}
}

func TestRedisStore_SetGet(t *testing.T) {
	_, s := setupMiniRedis(t)

	s.Set("track:1", "hello", 5*time.Minute)

	v, ok := s.Get("track:1")
	if !ok {
		t.Fatal("expected value to be found")
	}
	if v != "hello" {
		t.Errorf("Get = %v, want hello", v)
	}
}

func TestRedisStore_GetMissingKey(t *testing.T) {
	_, s := setupMiniRedis(t)

	_, ok := s.Get("does-not-exist")
	if ok {
		t.Error("expected missing key to report not found")
	}
}

func TestRedisStore_SetNXFirstWinnerOnly(t *testing.T) {
	_, s := setupMiniRedis(t)

	first := s.SetNX("lock:data:track-1:encrypt", "user-a", time.Minute)
	if !first {
		t.Fatal("expected first SetNX to succeed")
	}

	second := s.SetNX("lock:data:track-1:encrypt", "user-b", time.Minute)
	if second {
		t.Error("expected second SetNX on the same key to fail")
	}

	v, ok := s.Get("lock:data:track-1:encrypt")
	if !ok || v != "user-a" {
		t.Errorf("Get = %v, %v, want user-a, true", v, ok)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	_, s := setupMiniRedis(t)

	s.Set("session:abc", "data", time.Minute)
	s.Delete("session:abc")

	if _, ok := s.Get("session:abc"); ok {
		t.Error("expected key to be gone after Delete")
	}
}

func TestRedisStore_KeysFiltersByPrefix(t *testing.T) {
	_, s := setupMiniRedis(t)

	s.Set("lock:user:alice:track-1:encrypt", "track-1", time.Minute)
	s.Set("lock:user:alice:track-2:decrypt", "track-2", time.Minute)
	s.Set("lock:user:bob:track-3:encrypt", "track-3", time.Minute)

	keys := s.Keys("lock:user:alice:")
	if len(keys) != 2 {
		t.Fatalf("Keys returned %d entries, want 2: %v", len(keys), keys)
	}
}

func TestRedisStore_ExpiredKeyIsNotReturned(t *testing.T) {
	mr, s := setupMiniRedis(t)

	s.Set("ephemeral", "value", time.Second)
	mr.FastForward(2 * time.Second)

	if _, ok := s.Get("ephemeral"); ok {
		t.Error("expected expired key to be absent")
	}
}

func TestRedisStore_HealthCheck(t *testing.T) {
	_, s := setupMiniRedis(t)

	if err := s.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck returned error: %v", err)
	}
}
