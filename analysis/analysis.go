// Package analysis runs the dataflow analyses on functions of a Go program.
package analysis

import (
	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/config"
	"github.com/cs-au-dk/goat-flow/analysis/dataflow"
	"github.com/cs-au-dk/goat-flow/analysis/nullness"
	"github.com/cs-au-dk/goat-flow/analysis/ssaconv"
	"github.com/cs-au-dk/goat-flow/analysis/valuecontent"
)

// Kind names an analysis.
type Kind string

const (
	ValueContent Kind = "values"
	Nullness     Kind = "nullness"
)

// Kinds lists the available analyses.
var Kinds = []Kind{ValueContent, Nullness}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Errorf("unknown analysis %q, expected one of %v", s, Kinds)
}

// Session lowers functions with a shared ssaconv.Program and analyzes them.
// Results are cached per lowered graph.
type Session struct {
	Program *ssaconv.Program

	values *dataflow.Analysis[valuecontent.Content]
	nulls  *dataflow.Analysis[nullness.State]
}

func NewSession(prog *ssaconv.Program, c config.Config, m *dataflow.Metrics) (*Session, error) {
	values, err := dataflow.New[valuecontent.Content](valuecontent.New(), c, m)
	if err != nil {
		return nil, err
	}
	nulls, err := dataflow.New[nullness.State](nullness.Analyzer{}, c, m)
	if err != nil {
		return nil, err
	}
	return &Session{Program: prog, values: values, nulls: nulls}, nil
}

// Values computes the value content of fn.
func (s *Session) Values(fn *ssa.Function) (*dataflow.Result[valuecontent.Content], error) {
	return run(s, s.values, fn)
}

// Nullness computes the null states of fn and the dereferences of
// possibly null references.
func (s *Session) Nullness(fn *ssa.Function) (*dataflow.Result[nullness.State], []nullness.Dereference, error) {
	res, err := run(s, s.nulls, fn)
	if err != nil {
		return nil, nil, err
	}
	g, _ := s.Program.Graph(fn)
	return res, nullness.Dereferences(g, res), nil
}

// run analyzes fn. Anonymous functions are analyzed as part of the
// outermost enclosing function, and their result is the standalone result
// of the escaping lambda.
func run[V any](s *Session, a *dataflow.Analysis[V], fn *ssa.Function) (*dataflow.Result[V], error) {
	if _, err := s.Program.Lower(fn); err != nil {
		return nil, err
	}

	root := fn
	for root.Parent() != nil {
		root = root.Parent()
	}
	g, _ := s.Program.Graph(root)
	res, err := a.TryGetOrComputeResult(g, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "analyzing %v", root)
	}
	if root == fn {
		return res, nil
	}
	return lambda(res, s.Program.Symbol(fn))
}

func lambda[V any](res *dataflow.Result[V], sym *cfg.Symbol) (*dataflow.Result[V], error) {
	if r, ok := res.StandaloneLambda(sym); ok {
		return r, nil
	}
	// Lambdas nested in escaping lambdas.
	for _, l := range res.EscapedLambdas {
		if outer, ok := res.StandaloneLambda(l); ok {
			if r, err := lambda(outer, sym); err == nil {
				return r, nil
			}
		}
	}
	return nil, errors.Errorf("%v does not escape and is only analyzed where it is called", sym)
}
