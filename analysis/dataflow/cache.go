package dataflow

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
)

// ResultCache keeps the most recently used top-level results. Concurrent
// requests for the same graph share one computation.
type ResultCache[V any] struct {
	results *lru.Cache
	group   singleflight.Group
	metrics *Metrics
}

func NewResultCache[V any](size int, m *Metrics) (*ResultCache[V], error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "creating result cache")
	}
	return &ResultCache[V]{results: c, metrics: m}, nil
}

func cacheKey(g *cfg.Graph) string {
	return fmt.Sprintf("%p", g)
}

// Get looks up the result of a graph.
func (c *ResultCache[V]) Get(g *cfg.Graph) (*Result[V], bool) {
	if v, ok := c.results.Get(cacheKey(g)); ok {
		return v.(*Result[V]), true
	}
	return nil, false
}

// GetOrCompute returns the cached result of g, computing it on a miss.
// Failed computations are not cached.
func (c *ResultCache[V]) GetOrCompute(g *cfg.Graph, compute func() (*Result[V], error)) (*Result[V], error) {
	if res, ok := c.Get(g); ok {
		c.metrics.cacheLookup(true)
		return res, nil
	}
	c.metrics.cacheLookup(false)

	key := cacheKey(g)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.results.Get(key); ok {
			return v, nil
		}
		res, err := compute()
		if err != nil {
			return nil, err
		}
		c.results.Add(key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result[V]), nil
}

func (c *ResultCache[V]) Len() int {
	return c.results.Len()
}

// Purge drops every cached result.
func (c *ResultCache[V]) Purge() {
	c.results.Purge()
}
