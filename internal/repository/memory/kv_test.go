package memory

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestKV() (*KV, *testClock) {
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewKV().WithClock(clock.Now), clock
}

func TestKV_SetGet(t *testing.T) {
	kv, _ := newTestKV()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	require.NoError(t, kv.Set(ctx, "k", "v2", time.Minute))
	val, _ = kv.Get(ctx, "k")
	assert.Equal(t, "v2", val)
}

func TestKV_PassiveExpiry(t *testing.T) {
	kv, clock := newTestKV()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "short", "v", time.Minute))
	require.NoError(t, kv.Set(ctx, "forever", "v", 0))

	clock.Advance(59 * time.Second)
	_, err := kv.Get(ctx, "short")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = kv.Get(ctx, "short")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	_, err = kv.GetDel(ctx, "short")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	clock.Advance(365 * 24 * time.Hour)
	_, err = kv.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestKV_GetDel(t *testing.T) {
	kv, _ := newTestKV()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))

	val, err := kv.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	_, err = kv.GetDel(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestKV_GetDelSingleWinner(t *testing.T) {
	kv, _ := newTestKV()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := kv.GetDel(ctx, "k"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestKV_DelAndKeys(t *testing.T) {
	kv, clock := newTestKV()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "refresh_token:a", "1", time.Minute))
	require.NoError(t, kv.Set(ctx, "refresh_token:b", "2", time.Hour))
	require.NoError(t, kv.Set(ctx, "other:c", "3", time.Hour))

	keys, err := kv.Keys(ctx, "refresh_token:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"refresh_token:a", "refresh_token:b"}, keys)

	clock.Advance(2 * time.Minute)
	keys, err = kv.Keys(ctx, "refresh_token:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"refresh_token:b"}, keys)

	require.NoError(t, kv.Del(ctx, "refresh_token:b", "not-there"))
	keys, err = kv.Keys(ctx, "refresh_token:*")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = kv.Keys(ctx, "[")
	assert.Error(t, err)
}

func TestKV_Sweep(t *testing.T) {
	kv, clock := newTestKV()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, kv.Set(ctx, "b", "2", time.Minute))
	require.NoError(t, kv.Set(ctx, "c", "3", time.Hour))
	assert.NoError(t, kv.Ping(ctx))

	assert.Equal(t, 0, kv.Sweep(clock.Now()))
	assert.Equal(t, 2, kv.Sweep(clock.Now().Add(time.Minute)))
	assert.Equal(t, 1, kv.Len())
}
