package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
)

// FlightTimeout bounds a shared fetch once it no longer follows the context
// of the caller that started it
const FlightTimeout = 30 * time.Second

// entry holds the last value fetched for a key
type entry struct {
	key       Key
	value     any
	hasValue  bool
	stale     bool
	gen       uint64 // bumped by every invalidation touching the key
	valueGen  uint64 // generation the stored value was fetched under
	updatedAt time.Time
}

// Cache is a keyed store of query results.
//
// Writers never put values into the cache: they only Invalidate keys. Values
// are stored by Fetch, which owns refetch-and-replace.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]*entry
	group       singleflight.Group
	subscribers []chan Key
}

// NewCache creates an empty query cache
func NewCache() *Cache {
	return &Cache{
		entries:     make(map[string]*entry),
		subscribers: []chan Key{},
	}
}

// Fetch returns the fresh cached value for key or runs fn to produce it.
// Concurrent callers for the same key share a single call to fn. Errors are
// returned to every waiting caller and are not cached.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	v, err := c.fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}

	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query %v: cached value has type %T, want %T", key, v, zero)
	}
	return t, nil
}

func (c *Cache) fetch(ctx context.Context, key Key, fn func(context.Context) (any, error)) (any, error) {
	k := key.String()

	c.mu.Lock()
	if e, ok := c.entries[k]; ok && e.hasValue && !e.stale {
		v := e.value
		c.mu.Unlock()
		logger.Debug("Query cache hit", "key", key)
		return v, nil
	}
	c.mu.Unlock()

	v, err, shared := c.share(ctx, k, func(ctx context.Context) (any, error) {
		c.mu.Lock()
		startGen := c.entryLocked(key).gen
		c.mu.Unlock()

		logger.Debug("Query fetching", "key", key)
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		e := c.entryLocked(key)
		// An older flight finishing late must not replace a newer value
		if !e.hasValue || startGen >= e.valueGen {
			e.value = v
			e.hasValue = true
			e.valueGen = startGen
			e.updatedAt = time.Now()
			// Invalidated while in flight: keep the result but refetch next time
			e.stale = e.gen != startGen
		}
		return v, nil
	})
	if shared {
		logger.Debug("Query fetch shared", "key", key)
	}
	return v, err
}

// share runs fn once for every concurrent caller of k. The flight is detached
// from the caller that started it and bounded by FlightTimeout, so a caller
// giving up does not fail the others. A caller whose ctx ends first gets a
// TransportError while the flight keeps going.
func (c *Cache) share(ctx context.Context, k string, fn func(context.Context) (any, error)) (any, error, bool) {
	flight := c.group.DoChan(k, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FlightTimeout)
		defer cancel()
		return fn(fctx)
	})

	select {
	case res := <-flight:
		return res.Val, res.Err, res.Shared
	case <-ctx.Done():
		return nil, &apperrors.TransportError{Op: "query " + strings.ReplaceAll(k, "\x1f", "/"), Err: ctx.Err()}, false
	}
}

// entryLocked returns the entry for key, creating it if needed. Caller holds c.mu.
func (c *Cache) entryLocked(key Key) *entry {
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[k] = e
	}
	return e
}

// Invalidate marks every entry whose key starts with prefix as stale so the
// next Fetch re-runs its fetch function. Cached values are left in place.
// Subscribers are notified with prefix. It returns the number of entries marked.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	n := 0
	for k, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.gen++
		e.stale = true
		// Callers arriving from now on must not join a flight started before the invalidation
		c.group.Forget(k)
		n++
	}
	subs := make([]chan Key, len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	logger.Debug("Query invalidated", "prefix", prefix, "entries", n)

	for _, ch := range subs {
		select {
		case ch <- prefix:
		default:
			logger.Warn("Query cache: skipping slow invalidation subscriber", "prefix", prefix)
		}
	}
	return n
}

// Peek returns the cached value for key without fetching. fresh is false when
// the entry has been invalidated since it was stored.
func (c *Cache) Peek(key Key) (value any, fresh bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[key.String()]
	if !exists || !e.hasValue {
		return nil, false, false
	}
	return e.value, !e.stale, true
}

// Len returns the number of entries holding a value
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if e.hasValue {
			n++
		}
	}
	return n
}

// Subscribe returns a channel receiving the prefix of every invalidation
func (c *Cache) Subscribe() chan Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Key, 16)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel
func (c *Cache) Unsubscribe(ch chan Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, sub := range c.subscribers {
		if sub == ch {
			close(ch)
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			break
		}
	}
}
