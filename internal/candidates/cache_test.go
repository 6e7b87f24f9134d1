package candidates

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/reconstruct"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/redis"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis, *metrics.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := pkgredis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { client.Close() })
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return NewCache(client, time.Minute, m), mr, m
}

func constraints(sets ...string) reconstruct.Constraints {
	c := make(reconstruct.Constraints, len(sets))
	for i, s := range sets {
		c[i] = reconstruct.NewLetterSet([]rune(s)...)
	}
	return c
}

func TestKeyDependsOnInputs(t *testing.T) {
	opts := reconstruct.DefaultOptions()
	base := Key("fp", constraints("ab", "c"), opts)

	assert.Equal(t, base, Key("fp", constraints("ba", "c"), opts))
	assert.NotEqual(t, base, Key("fp2", constraints("ab", "c"), opts))
	assert.NotEqual(t, base, Key("fp", constraints("c", "ab"), opts))

	opts.MaxFrontier = 10
	assert.NotEqual(t, base, Key("fp", constraints("ab", "c"), opts))
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c, _, m := newTestCache(t)
	ctx := context.Background()
	key := Key("fp", constraints("a"), reconstruct.DefaultOptions())

	var calls atomic.Int32
	compute := func() (reconstruct.Result, error) {
		calls.Add(1)
		return reconstruct.Result{Candidates: []string{"a", "a "}, PeakFrontier: 2, Positions: 1}, nil
	}

	res, hit, err := c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"a", "a "}, res.Candidates)

	res, hit, err = c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, res.PeakFrontier)
	assert.Equal(t, int32(1), calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CandidateCacheHits))
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c, mr, _ := newTestCache(t)
	key := Key("fp", constraints("a"), reconstruct.DefaultOptions())

	_, _, err := c.GetOrCompute(context.Background(), key, func() (reconstruct.Result, error) {
		return reconstruct.Result{}, errors.New("cancelled")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists(key))
}

func TestGetOrComputeSharesConcurrentWork(t *testing.T) {
	c, _, _ := newTestCache(t)
	key := Key("fp", constraints("a"), reconstruct.DefaultOptions())

	release := make(chan struct{})
	var calls atomic.Int32
	compute := func() (reconstruct.Result, error) {
		calls.Add(1)
		<-release
		return reconstruct.Result{Candidates: []string{"a"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := c.GetOrCompute(context.Background(), key, compute)
			assert.NoError(t, err)
			assert.Equal(t, []string{"a"}, res.Candidates)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestCacheExpires(t *testing.T) {
	c, mr, _ := newTestCache(t)
	key := Key("fp", constraints("a"), reconstruct.DefaultOptions())
	c.Set(context.Background(), key, reconstruct.Result{Candidates: []string{"a"}})

	_, ok := c.Get(context.Background(), key)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(context.Background(), key)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()
	c.Set(ctx, Key("fp", constraints("a"), reconstruct.DefaultOptions()), reconstruct.Result{})
	c.Set(ctx, Key("fp", constraints("b"), reconstruct.DefaultOptions()), reconstruct.Result{})
	require.NoError(t, mr.Set("unrelated", "1"))

	n, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists("unrelated"))
}

func TestCorruptEntryIsMiss(t *testing.T) {
	c, mr, _ := newTestCache(t)
	key := Key("fp", constraints("a"), reconstruct.DefaultOptions())
	require.NoError(t, mr.Set(key, "{not json"))

	_, ok := c.Get(context.Background(), key)
	assert.False(t, ok)
}
