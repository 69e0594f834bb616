package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Standard lifetimes for cached data.
const (
	UserInfoDuration     = 7 * 24 * time.Hour
	ProfileDuration      = 24 * time.Hour
	FollowStatusDuration = 5 * time.Minute
	EventDataDuration    = 10 * time.Minute
	EventsListDuration   = 5 * time.Minute
)

// Entry is the envelope written to the store. Times are unix milliseconds.
type Entry[T any] struct {
	Data      T     `json:"data"`
	Timestamp int64 `json:"timestamp"`
	ExpiresAt int64 `json:"expiresAt"`
}

// TTL caches values of type T under a key prefix.
type TTL[T any] struct {
	store  Store
	prefix string
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group
}

func NewTTL[T any](store Store, prefix string, ttl time.Duration) *TTL[T] {
	return &TTL[T]{store: store, prefix: prefix, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (c *TTL[T]) WithClock(now func() time.Time) *TTL[T] {
	c.now = now
	return c
}

func (c *TTL[T]) key(k string) string {
	return c.prefix + k
}

// Get returns the cached value. An expired entry is deleted and reported as a miss,
// as is an entry that no longer decodes.
func (c *TTL[T]) Get(k string) (T, bool) {
	var zero T
	raw, ok, err := c.store.Get(c.key(k))
	if err != nil || !ok {
		return zero, false
	}

	var e Entry[T]
	if err := json.Unmarshal(raw, &e); err != nil {
		_ = c.store.Delete(c.key(k))
		return zero, false
	}
	if c.now().UnixMilli() > e.ExpiresAt {
		_ = c.store.Delete(c.key(k))
		return zero, false
	}
	return e.Data, true
}

// Set stores value with the cache's default ttl.
func (c *TTL[T]) Set(k string, value T) error {
	return c.SetWithTTL(k, value, c.ttl)
}

func (c *TTL[T]) SetWithTTL(k string, value T, ttl time.Duration) error {
	now := c.now()
	raw, err := json.Marshal(Entry[T]{
		Data:      value,
		Timestamp: now.UnixMilli(),
		ExpiresAt: now.Add(ttl).UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", k, err)
	}
	return c.store.Set(c.key(k), raw)
}

// GetOrLoad returns the cached value or calls load once for concurrent callers of the same key.
func (c *TTL[T]) GetOrLoad(k string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(k, func() (interface{}, error) {
		if v, ok := c.Get(k); ok {
			return v, nil
		}
		loaded, err := load()
		if err != nil {
			return nil, err
		}
		if err := c.Set(k, loaded); err != nil {
			return nil, err
		}
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *TTL[T]) Invalidate(k string) error {
	return c.store.Delete(c.key(k))
}

// Clear removes every entry under this cache's prefix.
func (c *TTL[T]) Clear() error {
	keys, err := c.store.Keys(c.prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := c.store.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
