package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingRegistry struct {
	lookups atomic.Int64
	fail    bool
}

func (r *countingRegistry) HandlersFor(_ context.Context, eventType string) ([]string, error) {
	r.lookups.Add(1)

	if r.fail {
		return nil, fmt.Errorf("registry unavailable for %s", eventType)
	}

	return []string{eventType + "-handler-a", eventType + "-handler-b"}, nil
}

func TestNewCacheRequiresRegistry(t *testing.T) {
	_, err := NewCache(nil)
	require.ErrorIs(t, err, ErrNilRegistry)
}

func TestCacheResolveMemoizes(t *testing.T) {
	reg := &countingRegistry{}
	cache, err := NewCache(reg)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := cache.Resolve(ctx, "OrderPlaced")
	require.NoError(t, err)
	require.Equal(t, []string{"OrderPlaced-handler-a", "OrderPlaced-handler-b"}, first)

	second, err := cache.Resolve(ctx, "OrderPlaced")
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, int64(1), reg.lookups.Load())
	require.Equal(t, 1, cache.Len())
}

func TestCacheResolveErrorIsNotCached(t *testing.T) {
	reg := &countingRegistry{fail: true}
	cache, err := NewCache(reg)
	require.NoError(t, err)

	_, err = cache.Resolve(context.Background(), "OrderPlaced")
	require.Error(t, err)
	require.Equal(t, 0, cache.Len())

	reg.fail = false

	handlers, err := cache.Resolve(context.Background(), "OrderPlaced")
	require.NoError(t, err)
	require.Len(t, handlers, 2)
}

func TestCacheConcurrentFirstAccessConverges(t *testing.T) {
	reg := &countingRegistry{}
	cache, err := NewCache(reg)
	require.NoError(t, err)

	const racers = 50

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([][]string, racers)
	)

	for i := 0; i < racers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			<-start

			handlers, resolveErr := cache.Resolve(context.Background(), "OrderPlaced")
			require.NoError(t, resolveErr)
			results[i] = handlers
		}(i)
	}

	close(start)
	wg.Wait()

	// every racer converges on the same list; each racer performed at most
	// one lookup and the cache performed at least one
	want := results[0]
	for i := 1; i < racers; i++ {
		require.Equal(t, want, results[i], "racer %d diverged", i)
	}

	lookups := reg.lookups.Load()
	require.GreaterOrEqual(t, lookups, int64(1))
	require.LessOrEqual(t, lookups, int64(racers))

	// the entry is monotonic afterwards: no more lookups
	_, err = cache.Resolve(context.Background(), "OrderPlaced")
	require.NoError(t, err)
	require.Equal(t, lookups, reg.lookups.Load())
}
