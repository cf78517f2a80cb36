package dataflow

import "github.com/cs-au-dk/goat-flow/analysis/cfg"

type lambdaFlags uint8

const (
	lambdaCreated lambdaFlags = 1 << iota
	lambdaAnalyzed
	lambdaEscaped
)

// lambdaTracker records what happened to the lambdas and local functions
// encountered during an analysis.
type lambdaTracker struct {
	// order of first encounter.
	order []*cfg.Symbol
	flags map[*cfg.Symbol]lambdaFlags
}

func newLambdaTracker() *lambdaTracker {
	return &lambdaTracker{flags: make(map[*cfg.Symbol]lambdaFlags)}
}

func (t *lambdaTracker) mark(l *cfg.Symbol, f lambdaFlags) {
	old, ok := t.flags[l]
	if !ok {
		t.order = append(t.order, l)
	}
	t.flags[l] = old | f
}

func (t *lambdaTracker) created(l *cfg.Symbol)  { t.mark(l, lambdaCreated) }
func (t *lambdaTracker) analyzed(l *cfg.Symbol) { t.mark(l, lambdaAnalyzed) }
func (t *lambdaTracker) escaped(l *cfg.Symbol)  { t.mark(l, lambdaEscaped) }

func (t *lambdaTracker) filter(f lambdaFlags) (res []*cfg.Symbol) {
	for _, l := range t.order {
		if t.flags[l]&f != 0 {
			res = append(res, l)
		}
	}
	return
}

func (t *lambdaTracker) analyzedLambdas() []*cfg.Symbol { return t.filter(lambdaAnalyzed) }
func (t *lambdaTracker) escapedLambdas() []*cfg.Symbol  { return t.filter(lambdaEscaped) }
