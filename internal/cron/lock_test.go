package cron

import (
	"context"
	"testing"
	"time"
)

type fakeRedisStore struct {
	values map[string]string
}

func (f *fakeRedisStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.values == nil {
		f.values = map[string]string{}
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) Get(_ context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeRedisStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLockAcquireAndRelease(t *testing.T) {
	store := &fakeRedisStore{}
	lock, err := NewRedisLock(store, "mm:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}

	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected to acquire lock, ok=%v err=%v", ok, err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, held := store.values["mm:lock:test"]; held {
		t.Fatal("lock key should be deleted after release")
	}
}

func TestRedisLockDeniesSecondAcquire(t *testing.T) {
	store := &fakeRedisStore{}
	first, err := NewRedisLock(store, "mm:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, err := NewRedisLock(store, "mm:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}

	if ok, _ := first.Acquire(context.Background()); !ok {
		t.Fatal("first acquire should succeed")
	}
	if ok, _ := second.Acquire(context.Background()); ok {
		t.Fatal("second acquire should be denied while held")
	}
}

func TestRedisLockReleaseRespectsOwner(t *testing.T) {
	store := &fakeRedisStore{}
	lock, err := NewRedisLock(store, "mm:lock:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if ok, _ := lock.Acquire(context.Background()); !ok {
		t.Fatal("acquire should succeed")
	}

	// Simulate expiry and takeover by another replica.
	store.values["mm:lock:test"] = "someone-else"
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if store.values["mm:lock:test"] != "someone-else" {
		t.Fatal("release must not delete a lock owned by another replica")
	}
}
