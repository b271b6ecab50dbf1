package market

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SeriesKey identifies one cached daily series.
type SeriesKey struct {
	Symbol string
	Start  string // YYYY-MM-DD
	End    string // YYYY-MM-DD
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Symbol, k.Start, k.End)
}

// SeriesCache is a read-through cache in front of a Source, shared by
// concurrently executing tool calls. Lookups and fills are safe under
// simultaneous access, and an in-flight fetch for a key is never duplicated:
// later callers wait for the first result instead of issuing their own
// external request. Entries expire after the TTL and the least recently used
// entry is evicted past capacity.
type SeriesCache struct {
	source   Source
	capacity int
	ttl      time.Duration

	mu    sync.Mutex
	items map[SeriesKey]*list.Element
	lru   *list.List

	group singleflight.Group
}

type cacheEntry struct {
	key       SeriesKey
	bars      []Bar
	expiresAt time.Time
}

// NewSeriesCache wraps a source with caching.
func NewSeriesCache(source Source, capacity int, ttl time.Duration) *SeriesCache {
	if capacity <= 0 {
		capacity = 64
	}
	return &SeriesCache{
		source:   source,
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[SeriesKey]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Daily returns the daily series for the key, fetching through the underlying
// source on a miss. Only successful fetches are cached; a failed or cancelled
// fill is forgotten so a future caller can retry.
func (c *SeriesCache) Daily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	key := SeriesKey{Symbol: symbol, Start: start.Format(dateLayout), End: end.Format(dateLayout)}

	if bars, ok := c.get(key); ok {
		return bars, nil
	}

	// The fetch runs under the initiating caller's context. If that caller
	// goes away the fill fails with its cancellation error and is forgotten,
	// releasing the key for a later attempt.
	ch := c.group.DoChan(key.String(), func() (any, error) {
		bars, err := c.source.Daily(ctx, symbol, start, end)
		if err != nil {
			c.group.Forget(key.String())
			return nil, err
		}
		c.put(key, bars)
		return bars, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Bar), nil
	}
}

func (c *SeriesCache) get(key SeriesKey) ([]Bar, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(elem)
		delete(c.items, key)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return entry.bars, true
}

func (c *SeriesCache) put(key SeriesKey, bars []Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.bars = bars
		entry.expiresAt = expiresAt
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, bars: bars, expiresAt: expiresAt})
	c.items[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len reports the number of cached series, expired entries included.
func (c *SeriesCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
