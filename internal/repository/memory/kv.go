// Package memory holds the in-process fallbacks used when redis or a database
// is not configured. State is lost on restart.
package memory

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/iamasit07/audio-translator/internal/domain"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// KV is a mutex-guarded map with per-entry expiry. Expired entries are
// invisible to reads and removed by Sweep.
type KV struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewKV() *KV {
	return &KV{entries: make(map[string]entry), now: time.Now}
}

// WithClock replaces the time source, for tests.
func (kv *KV) WithClock(now func() time.Time) *KV {
	kv.now = now
	return kv
}

func (kv *KV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = kv.now().Add(ttl)
	}

	kv.mu.Lock()
	kv.entries[key] = e
	kv.mu.Unlock()
	return nil
}

func (kv *KV) Get(_ context.Context, key string) (string, error) {
	kv.mu.RLock()
	e, ok := kv.entries[key]
	kv.mu.RUnlock()

	if !ok || e.expired(kv.now()) {
		return "", domain.ErrKeyNotFound
	}
	return e.value, nil
}

func (kv *KV) GetDel(_ context.Context, key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	e, ok := kv.entries[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	delete(kv.entries, key)
	if e.expired(kv.now()) {
		return "", domain.ErrKeyNotFound
	}
	return e.value, nil
}

func (kv *KV) Del(_ context.Context, keys ...string) error {
	kv.mu.Lock()
	for _, k := range keys {
		delete(kv.entries, k)
	}
	kv.mu.Unlock()
	return nil
}

// Keys returns live keys matching a glob pattern such as "refresh_token:*".
func (kv *KV) Keys(_ context.Context, pattern string) ([]string, error) {
	now := kv.now()

	kv.mu.RLock()
	defer kv.mu.RUnlock()

	var keys []string
	for k, e := range kv.entries {
		if e.expired(now) {
			continue
		}
		matched, err := path.Match(pattern, k)
		if err != nil {
			return nil, err
		}
		if matched {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (kv *KV) Ping(context.Context) error {
	return nil
}

// Sweep removes entries expired at now and returns how many were dropped.
func (kv *KV) Sweep(now time.Time) int {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	removed := 0
	for k, e := range kv.entries {
		if e.expired(now) {
			delete(kv.entries, k)
			removed++
		}
	}
	return removed
}

func (kv *KV) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.entries)
}
