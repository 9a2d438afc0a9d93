package cron

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type memoryRedis struct {
	values map[string]string
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockIsExclusiveAndOwnerChecked(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	first, err := NewRedisLock(store, "of:lock:cron", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "of:lock:cron", time.Minute)

	if ok, _ := first.Acquire(context.Background()); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if ok, _ := second.Acquire(context.Background()); ok {
		t.Fatalf("second acquire must fail while held")
	}
	if err := second.Release(context.Background()); err != nil {
		t.Fatalf("release by non owner: %v", err)
	}
	if _, ok := store.values["of:lock:cron"]; !ok {
		t.Fatalf("non owner must not release the lock")
	}
	if err := first.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(context.Background()); !ok {
		t.Fatalf("acquire after release should succeed")
	}

	delete(store.values, "of:lock:cron")
	if err := second.Release(context.Background()); err != nil {
		t.Fatalf("release of expired lock should be a no-op: %v", err)
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatalf("expected client error")
	}
	if _, err := NewRedisLock(&memoryRedis{}, "", 0); err == nil {
		t.Fatalf("expected key error")
	}
}
