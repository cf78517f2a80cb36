package dataflow

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/config"
	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	"github.com/cs-au-dk/goat-flow/utils"
)

func TestMain(m *testing.M) {
	utils.SetColorize(false)
	os.Exit(m.Run())
}

// constant is the value of a small constant propagation used to exercise
// the engine. Booleans are represented as 0 and 1.
type constant = lattice.Flat[int64]

type constants struct{}

func (constants) Domain() lattice.Domain[constant] {
	return lattice.FlatDomain[int64]{}
}

func (constants) DefaultValue(e *entity.Entity) constant {
	if e.Parent == nil && (e.IsCapture() || e.Symbol != nil && e.Symbol.Kind == cfg.SymLocal) {
		return constant{}
	}
	return lattice.FlatTop[int64]()
}

func (constants) UnknownValue() constant {
	return lattice.FlatTop[int64]()
}

func fromBool(b bool) constant {
	if b {
		return lattice.FlatOf[int64](1)
	}
	return lattice.FlatOf[int64](0)
}

func fold(bop cfg.BinaryOperator, l, r constant) constant {
	if l.IsBot() || r.IsBot() {
		return constant{}
	}
	x, okx := l.Value()
	y, oky := r.Value()
	if !okx || !oky {
		return lattice.FlatTop[int64]()
	}
	switch bop {
	case cfg.BinAdd:
		return lattice.FlatOf(x + y)
	case cfg.BinSub:
		return lattice.FlatOf(x - y)
	case cfg.BinMul:
		return lattice.FlatOf(x * y)
	case cfg.BinEq:
		return fromBool(x == y)
	case cfg.BinNe:
		return fromBool(x != y)
	case cfg.BinLt:
		return fromBool(x < y)
	case cfg.BinLe:
		return fromBool(x <= y)
	case cfg.BinGt:
		return fromBool(x > y)
	case cfg.BinGe:
		return fromBool(x >= y)
	}
	return lattice.FlatTop[int64]()
}

func (constants) Visit(v *Visitor[constant], op *cfg.Operation, computed constant) constant {
	switch op.Kind {
	case cfg.OpLiteral:
		switch x := op.Value.(type) {
		case int64:
			return lattice.FlatOf(x)
		case bool:
			return fromBool(x)
		}
	case cfg.OpBinary:
		return fold(op.BinaryOp, v.ValueOf(op.Left), v.ValueOf(op.Right))
	case cfg.OpCompoundAssignment:
		return fold(op.BinaryOp, v.ValueOf(op.Target), v.ValueOf(op.Source))
	}
	return computed
}

func (constants) Condition(v *Visitor[constant], op *cfg.Operation, want bool) lattice.PredicateValueKind {
	if c, ok := v.ValueOf(op).Value(); ok {
		if (c != 0) == want {
			return lattice.PredicateAlwaysTrue
		}
		return lattice.PredicateAlwaysFalse
	}
	if op.Kind == cfg.OpBinary && (op.BinaryOp == cfg.BinEq || op.BinaryOp == cfg.BinNe) &&
		(op.BinaryOp == cfg.BinEq) == want {
		if e, ok := v.EntityOf(op.Left); ok {
			if c, ok := v.ValueOf(op.Right).Value(); ok {
				v.Refine(e, lattice.FlatOf(c))
			}
		}
	}
	return lattice.PredicateUnknown
}

func testConfig() config.Config {
	c := config.Default()
	c.CacheSize = 8
	return c
}

func analyze(t *testing.T, g *cfg.Graph, c config.Config) *Result[constant] {
	t.Helper()
	a, err := New[constant](constants{}, c, nil)
	require.NoError(t, err)
	res, err := a.TryGetOrComputeResult(g, nil)
	require.NoError(t, err)
	return res
}

// valueOf finds the value of a named local, parameter or static field.
func valueOf(d Data[constant], s *cfg.Symbol) (res constant, found bool) {
	d.ForEachValue(func(e *entity.Entity, v constant) {
		if e.Symbol == s && e.Parent == nil && len(e.Indices) == 0 {
			res, found = v, true
		}
	})
	return
}

func requireConstant(t *testing.T, d Data[constant], s *cfg.Symbol, want int64) {
	t.Helper()
	v, ok := valueOf(d, s)
	require.True(t, ok, "no value for %v in\n%v", s, d)
	c, ok := v.Value()
	require.True(t, ok, "%v is %v, expected %d", s, v, want)
	require.Equal(t, want, c, "value of %v", s)
}

func requireTop(t *testing.T, d Data[constant], s *cfg.Symbol) {
	t.Helper()
	v, ok := valueOf(d, s)
	require.True(t, ok, "no value for %v in\n%v", s, d)
	require.True(t, v.IsTop(), "%v is %v, expected ⊤", s, v)
}
