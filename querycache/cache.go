// Package querycache caches API query results by key for a stale time, and
// lets mutations invalidate the queries they affect.
package querycache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Query names shared by the services that read and invalidate them.
const (
	AllOrders        = "allOrders"
	UserOrders       = "userOrders"
	UserTransactions = "userTransactions"
	WalletBalances   = "walletBalances"
	Wallets          = "wallets"
	MarketData       = "marketData"
)

const (
	DefaultSize      = 256
	DefaultStaleTime = 5 * time.Minute

	keySep = ":"
)

// Cache is safe for concurrent use. Concurrent fetches of the same key share
// one call.
type Cache struct {
	lru   *expirable.LRU[string, any]
	group singleflight.Group

	// A fetch only stores its result when neither Clear nor an Invalidate of
	// its query name ran while it was in flight.
	lock  sync.Mutex
	epoch uint64
	names map[string]uint64
}

type generation struct {
	epoch, name uint64
}

func New(size int, staleTime time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if staleTime <= 0 {
		staleTime = DefaultStaleTime
	}
	return &Cache{
		lru:   expirable.NewLRU[string, any](size, nil, staleTime),
		names: map[string]uint64{},
	}
}

func queryName(key string) string {
	name, _, _ := strings.Cut(key, keySep)
	return name
}

func (c *Cache) generation(key string) generation {
	c.lock.Lock()
	defer c.lock.Unlock()
	return generation{epoch: c.epoch, name: c.names[queryName(key)]}
}

// storeIfCurrent adds value unless the cache was cleared or the query
// invalidated since gen was taken.
func (c *Cache) storeIfCurrent(key string, value any, gen generation) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.epoch != gen.epoch || c.names[queryName(key)] != gen.name {
		return
	}
	c.lru.Add(key, value)
}

// Key builds a cache key from a query name and its parameters. Empty
// parameters are kept so positional meaning is preserved.
func Key(name string, params ...string) string {
	if len(params) == 0 {
		return name
	}
	return name + keySep + strings.Join(params, keySep)
}

func (c *Cache) Get(key string) (any, bool) {
	return c.lru.Get(key)
}

func (c *Cache) Set(key string, value any) {
	c.lru.Add(key, value)
}

// Invalidate drops every entry of the named queries, whatever their parameters.
func (c *Cache) Invalidate(names ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, name := range names {
		c.names[name]++
	}
	for _, key := range c.lru.Keys() {
		for _, name := range names {
			if key == name || strings.HasPrefix(key, name+keySep) {
				c.lru.Remove(key)
				break
			}
		}
	}
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.epoch++
	c.lru.Purge()
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

// Fetch returns the cached value for key or calls fn and caches its result.
// Errors are not cached, and neither are results that raced a Clear or an
// Invalidate of the query. A nil cache always calls fn.
//
// The shared call runs detached from ctx so one caller giving up does not
// fail the others; each caller still stops waiting when its own ctx is done.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return fn(ctx)
	}
	if v, ok := c.lru.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	// Callers arriving after a Clear or Invalidate start a new call instead
	// of joining one that may return data from before it.
	gen := c.generation(key)
	flight := fmt.Sprintf("%s@%d.%d", key, gen.epoch, gen.name)
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flight, func() (any, error) {
		if cached, ok := c.lru.Get(key); ok {
			if _, ok := cached.(T); ok {
				return cached, nil
			}
		}
		res, err := fn(detached)
		if err != nil {
			return nil, err
		}
		c.storeIfCurrent(key, res, gen)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
