package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type profile struct {
	Name      string `json:"name"`
	Followers int    `json:"followers"`
}

func TestSetGet(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewTTL[profile](NewMemoryStore(), "profile:", ProfileDuration).WithClock(clock.Now)

	require.NoError(t, c.Set("u1", profile{Name: "mika", Followers: 120}))

	got, ok := c.Get("u1")
	require.True(t, ok)
	assert.Equal(t, profile{Name: "mika", Followers: 120}, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestExpiredEntryIsRemoved(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore()
	c := NewTTL[string](store, "follow:", FollowStatusDuration).WithClock(clock.Now)

	require.NoError(t, c.Set("a:b", "following"))

	clock.Advance(FollowStatusDuration)
	_, ok := c.Get("a:b")
	require.True(t, ok, "entry is still valid exactly at expiresAt")

	clock.Advance(time.Millisecond)
	_, ok = c.Get("a:b")
	require.False(t, ok)

	_, present, err := store.Get("follow:a:b")
	require.NoError(t, err)
	assert.False(t, present, "expired entry should be deleted from the store")
}

func TestEnvelopeShape(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_000)}
	store := NewMemoryStore()
	c := NewTTL[int](store, "n:", time.Second).WithClock(clock.Now)
	require.NoError(t, c.Set("k", 7))

	raw, ok, err := store.Get("n:k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"data":7,"timestamp":1000,"expiresAt":2000}`, string(raw))
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set("x:k", []byte("not json")))
	c := NewTTL[int](store, "x:", time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)
	_, present, _ := store.Get("x:k")
	assert.False(t, present)
}

func TestGetOrLoadDeduplicates(t *testing.T) {
	c := NewTTL[[]string](NewMemoryStore(), "events:", EventsListDuration)

	var calls int32
	start := make(chan struct{})
	load := func() ([]string, error) {
		atomic.AddInt32(&calls, 1)
		<-start
		return []string{"a", "b"}, nil
	}

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrLoad("all", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(start)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	for _, r := range results {
		assert.Equal(t, []string{"a", "b"}, r)
	}

	// served from cache now
	v, err := c.GetOrLoad("all", func() ([]string, error) { return nil, errors.New("should not load") })
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)
}

func TestGetOrLoadError(t *testing.T) {
	c := NewTTL[int](NewMemoryStore(), "e:", time.Minute)
	_, err := c.GetOrLoad("k", func() (int, error) { return 0, errors.New("db down") })
	require.EqualError(t, err, "db down")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestInvalidateAndClear(t *testing.T) {
	store := NewMemoryStore()
	events := NewTTL[int](store, "events:", time.Minute)
	profiles := NewTTL[int](store, "profile:", time.Minute)

	require.NoError(t, events.Set("1", 1))
	require.NoError(t, events.Set("2", 2))
	require.NoError(t, profiles.Set("1", 1))

	require.NoError(t, events.Invalidate("1"))
	_, ok := events.Get("1")
	assert.False(t, ok)

	require.NoError(t, events.Clear())
	_, ok = events.Get("2")
	assert.False(t, ok)

	_, ok = profiles.Get("1")
	assert.True(t, ok, "clear only touches its own prefix")
}
