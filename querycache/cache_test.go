package querycache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-exchange-client/querycache"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	require.Equal(t, "allOrders", querycache.Key(querycache.AllOrders))
	require.Equal(t, "allOrders:SELL:BTC::ACTIVE", querycache.Key(querycache.AllOrders, "SELL", "BTC", "", "ACTIVE"))
}

func TestFetch_CachesUntilStale(t *testing.T) {
	c := querycache.New(10, 50*time.Millisecond)
	calls := 0
	fetch := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, err := querycache.Fetch(context.Background(), c, "k", fetch)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	v, err = querycache.Fetch(context.Background(), c, "k", fetch)
	require.NoError(t, err)
	require.Equal(t, 1, v, "served from cache")

	require.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)

	v, err = querycache.Fetch(context.Background(), c, "k", fetch)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	c := querycache.New(10, time.Minute)
	boom := errors.New("boom")

	_, err := querycache.Fetch(context.Background(), c, "k", func(context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, c.Len())

	v, err := querycache.Fetch(context.Background(), c, "k", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestFetch_SharesConcurrentCalls(t *testing.T) {
	c := querycache.New(10, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = querycache.Fetch(context.Background(), c, "k", func(context.Context) (string, error) {
				calls.Add(1)
				<-release
				return "v", nil
			})
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		require.Equal(t, "v", r)
	}
}

func TestFetch_NilCache(t *testing.T) {
	v, err := querycache.Fetch(context.Background(), nil, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestInvalidate(t *testing.T) {
	c := querycache.New(10, time.Minute)
	c.Set(querycache.Key(querycache.AllOrders, "BUY"), 1)
	c.Set(querycache.Key(querycache.AllOrders, "SELL"), 2)
	c.Set(querycache.Key(querycache.UserOrders), 3)
	c.Set(querycache.Key(querycache.WalletBalances), 4)
	c.Set("allOrdersExtra", 5)

	c.Invalidate(querycache.AllOrders, querycache.UserOrders)

	_, ok := c.Get(querycache.Key(querycache.AllOrders, "BUY"))
	require.False(t, ok)
	_, ok = c.Get(querycache.Key(querycache.UserOrders))
	require.False(t, ok)
	_, ok = c.Get(querycache.Key(querycache.WalletBalances))
	require.True(t, ok)
	_, ok = c.Get("allOrdersExtra")
	require.True(t, ok, "only whole query names match")
}

func TestClear(t *testing.T) {
	c := querycache.New(0, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	require.Zero(t, c.Len())
}

// inFlight starts a Fetch of key whose fn blocks until release is closed.
func inFlight(t *testing.T, c *querycache.Cache, key, value string, release <-chan struct{}) <-chan string {
	t.Helper()
	started := make(chan struct{})
	done := make(chan string, 1)
	go func() {
		v, _ := querycache.Fetch(context.Background(), c, key, func(context.Context) (string, error) {
			close(started)
			<-release
			return value, nil
		})
		done <- v
	}()
	<-started
	return done
}

func TestClear_DropsResultOfInFlightFetch(t *testing.T) {
	c := querycache.New(10, time.Minute)
	release := make(chan struct{})
	done := inFlight(t, c, querycache.Key(querycache.WalletBalances), "alice-balances", release)

	c.Clear()
	close(release)
	require.Equal(t, "alice-balances", <-done, "the caller still gets its result")

	_, ok := c.Get(querycache.Key(querycache.WalletBalances))
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestClear_LaterFetchDoesNotJoinEarlierCall(t *testing.T) {
	c := querycache.New(10, time.Minute)
	key := querycache.Key(querycache.WalletBalances)
	release := make(chan struct{})
	done := inFlight(t, c, key, "alice-balances", release)

	c.Clear()
	v, err := querycache.Fetch(context.Background(), c, key, func(context.Context) (string, error) {
		return "bob-balances", nil
	})
	require.NoError(t, err)
	require.Equal(t, "bob-balances", v)

	close(release)
	<-done
	cached, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, "bob-balances", cached)
}

func TestInvalidate_DropsResultOfInFlightFetch(t *testing.T) {
	c := querycache.New(10, time.Minute)
	release := make(chan struct{})
	orders := inFlight(t, c, querycache.Key(querycache.AllOrders, "BUY"), "stale", release)
	wallets := inFlight(t, c, querycache.Key(querycache.Wallets), "fresh", release)

	c.Invalidate(querycache.AllOrders)
	close(release)
	<-orders
	<-wallets

	_, ok := c.Get(querycache.Key(querycache.AllOrders, "BUY"))
	require.False(t, ok)
	v, ok := c.Get(querycache.Key(querycache.Wallets))
	require.True(t, ok, "other queries are unaffected")
	require.Equal(t, "fresh", v)
}

func TestFetch_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c := querycache.New(10, time.Minute)
	release := make(chan struct{})
	started := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		select {
		case <-release:
			return "v", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := querycache.Fetch(ctx, c, "k", fetch)
		first <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		v, _ := querycache.Fetch(context.Background(), c, "k", fetch)
		second <- v
	}()

	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	close(release)
	require.Equal(t, "v", <-second)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}
