package dataflow

import (
	"github.com/pkg/errors"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/config"
)

// Analysis runs one analyzer over graphs and caches the results.
type Analysis[V any] struct {
	analyzer Analyzer[V]
	config   config.Config
	dom      *DataDomain[V]
	cache    *ResultCache[V]
	metrics  *Metrics
}

// New prepares an analysis. The metrics may be nil.
func New[V any](a Analyzer[V], c config.Config, m *Metrics) (*Analysis[V], error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid analysis configuration")
	}
	cache, err := NewResultCache[V](c.CacheSize, m)
	if err != nil {
		return nil, err
	}
	return &Analysis[V]{
		analyzer: a,
		config:   c,
		dom:      NewDataDomain(a, c.DebugChecks),
		cache:    cache,
		metrics:  m,
	}, nil
}

func (a *Analysis[V]) Config() config.Config {
	return a.config
}

// Domain is the state domain of the analysis.
func (a *Analysis[V]) Domain() *DataDomain[V] {
	return a.dom
}

func (a *Analysis[V]) Cache() *ResultCache[V] {
	return a.cache
}

// GetOrComputeResult analyzes g. Results computed with an oracle depend on
// it and are not cached. It panics if the analysis runs out of stack.
func (a *Analysis[V]) GetOrComputeResult(g *cfg.Graph, oracle PointsToOracle) *Result[V] {
	if oracle != nil {
		return a.compute(g, oracle)
	}
	res, _ := a.cache.GetOrCompute(g, func() (*Result[V], error) {
		return a.compute(g, nil), nil
	})
	return res
}

// TryGetOrComputeResult is GetOrComputeResult, reporting exhaustion of the
// stack as an error.
func (a *Analysis[V]) TryGetOrComputeResult(g *cfg.Graph, oracle PointsToOracle) (res *Result[V], err error) {
	compute := func() (res *Result[V], err error) {
		defer func() {
			if r := recover(); r != nil {
				if e, ok := r.(error); ok && errors.Is(e, ErrInsufficientStack) {
					err = e
					return
				}
				panic(r)
			}
		}()
		return a.compute(g, oracle), nil
	}
	if oracle != nil {
		return compute()
	}
	return a.cache.GetOrCompute(g, compute)
}

func (a *Analysis[V]) compute(g *cfg.Graph, oracle PointsToOracle) *Result[V] {
	ctx := NewContext[V](g, a.config, oracle)
	return newSession(a.analyzer, a.dom, a.metrics).run(ctx)
}
