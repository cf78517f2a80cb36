package dataflow

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
)

type silentOracle struct{}

func (silentOracle) PointsTo(*cfg.Operation, *loc.CallStack) (loc.PointsTo, bool) {
	return loc.PointsTo{}, false
}

func TestResultCache(t *testing.T) {
	g, _, _ := straightLine()
	metrics := NewMetrics()
	a, err := New[constant](constants{}, testConfig(), metrics)
	require.NoError(t, err)

	first := a.GetOrComputeResult(g, nil)
	second := a.GetOrComputeResult(g, nil)
	assert.Same(t, first, second, "cached result should be reused")
	assert.Equal(t, 1, a.Cache().Len())

	withOracle := a.GetOrComputeResult(g, silentOracle{})
	assert.NotSame(t, first, withOracle, "results computed with an oracle are not cached")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cache.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cache.WithLabelValues("miss")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.passes.WithLabelValues("normal")))

	a.Cache().Purge()
	assert.Equal(t, 0, a.Cache().Len())
	assert.NotSame(t, first, a.GetOrComputeResult(g, nil))
}

func TestConcurrentRequestsShareResult(t *testing.T) {
	g, _, _ := straightLine()
	a, err := New[constant](constants{}, testConfig(), nil)
	require.NoError(t, err)

	const n = 8
	results := make([]*Result[constant], n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.GetOrComputeResult(g, nil)
		}(i)
	}
	wg.Wait()

	for _, res := range results[1:] {
		assert.Same(t, results[0], res)
	}
}

func TestInsufficientStack(t *testing.T) {
	m := cfg.NewMethod(nil, "deep", cfg.Int)
	x := cfg.NewLocal(m, "x", cfg.Int)
	b := cfg.NewBuilder(m)
	blk := b.NewBlock()
	b.Goto(b.Entry(), blk)
	sum := cfg.IntLit(0)
	for i := 0; i < 10; i++ {
		sum = cfg.Bin(cfg.BinAdd, sum, cfg.IntLit(1))
	}
	b.Add(blk, cfg.Assign(cfg.Local(x), sum))
	b.Return(blk, cfg.Local(x))
	g := b.MustBuild()

	c := testConfig()
	c.MaxVisitDepth = 4
	a, err := New[constant](constants{}, c, nil)
	require.NoError(t, err)

	_, err = a.TryGetOrComputeResult(g, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStack), "unexpected error %v", err)
	assert.Equal(t, 0, a.Cache().Len(), "failures should not be cached")

	assert.Panics(t, func() { a.GetOrComputeResult(g, nil) })

	c.MaxVisitDepth = 64
	a, err = New[constant](constants{}, c, nil)
	require.NoError(t, err)
	res, err := a.TryGetOrComputeResult(g, nil)
	require.NoError(t, err)
	requireConstant(t, res.Exit(), x, 10)
}

func TestInvalidConfig(t *testing.T) {
	c := testConfig()
	c.CacheSize = 0
	_, err := New[constant](constants{}, c, nil)
	assert.Error(t, err)
}
