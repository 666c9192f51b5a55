package airquality

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateCache_HitAfterLoad(t *testing.T) {
	c := NewAggregateCache(nil)
	var loads atomic.Int32
	load := func(context.Context) (int, error) {
		loads.Add(1)
		return 42, nil
	}

	for range 3 {
		v, err := cached(context.Background(), c, "stats", load)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, 1, c.Len())
}

func TestAggregateCache_InvalidateForcesReload(t *testing.T) {
	c := NewAggregateCache(nil)
	value := 1
	load := func(context.Context) (int, error) { return value, nil }

	v, err := cached(context.Background(), c, "stats", load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	value = 2
	assert.Equal(t, uint64(1), c.Invalidate())
	assert.Equal(t, 0, c.Len())

	v, err = cached(context.Background(), c, "stats", load)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestAggregateCache_ErrorsAreNotCached(t *testing.T) {
	c := NewAggregateCache(nil)
	fail := true
	load := func(context.Context) (string, error) {
		if fail {
			return "", errors.New("store down")
		}
		return "ok", nil
	}

	_, err := cached(context.Background(), c, "countries", load)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	fail = false
	v, err := cached(context.Background(), c, "countries", load)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestAggregateCache_DropsResultComputedBeforeInvalidation(t *testing.T) {
	c := NewAggregateCache(nil)

	v, err := cached(context.Background(), c, "stats", func(context.Context) (string, error) {
		c.Invalidate()
		return "stale", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", v, "the caller still receives its own result")
	assert.Equal(t, 0, c.Len())

	v, err = cached(context.Background(), c, "stats", func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestAggregateCache_ConcurrentMissesShareOneLoad(t *testing.T) {
	c := NewAggregateCache(nil)
	var loads atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	load := func(context.Context) (int, error) {
		loads.Add(1)
		once.Do(func() { close(started) })
		<-release
		return 7, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = cached(context.Background(), c, "stats", load)
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cached(context.Background(), c, "stats", load)
		}(i)
	}

	close(release)
	wg.Wait()

	assert.LessOrEqual(t, loads.Load(), int32(callers))
	for _, r := range results {
		assert.Equal(t, 7, r)
	}
	assert.Equal(t, 1, c.Len())
}

func TestAggregateCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c := NewAggregateCache(nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var loads atomic.Int32
	load := func(ctx context.Context) (int, error) {
		loads.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 7, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cached(firstCtx, c, "global", load)
		firstErr <- err
	}()
	<-started

	second := make(chan int, 1)
	secondErr := make(chan error, 1)
	go func() {
		v, err := cached(context.Background(), c, "global", load)
		second <- v
		secondErr <- err
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	require.NoError(t, <-secondErr)
	assert.Equal(t, 7, <-second)
	assert.Equal(t, int32(1), loads.Load())

	v, err := cached(context.Background(), c, "global", load)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "city", entryName("city:lyon"))
	assert.Equal(t, "stats", entryName("stats"))
}
