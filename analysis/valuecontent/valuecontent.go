// Package valuecontent tracks the literal values storage may hold. Each
// storage location is mapped to a bounded set of constants; sets growing
// beyond the bound collapse to ⊤.
package valuecontent

import (
	"math"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/dataflow"
	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
)

// Bound is the largest number of constants tracked per storage location.
const Bound = 8

// Content is the set of constants a value may be. Integers are int64,
// floating point numbers float64, and the null reference is Null.
type Content = lattice.Set[any]

type null struct{}

func (null) GoString() string { return "null" }
func (null) String() string   { return "null" }

// Null is the content of the null reference.
var Null any = null{}

var (
	top   = lattice.SetTop[any]()
	empty = lattice.SetOf[any]()
)

// Of is the content holding exactly the given constants.
func Of(xs ...any) Content {
	return lattice.SetOf(xs...)
}

// Analyzer implements dataflow.Analyzer for value content.
type Analyzer struct {
	domain lattice.SetDomain[any]
}

var _ dataflow.Analyzer[Content] = (*Analyzer)(nil)

func New() *Analyzer {
	return &Analyzer{domain: lattice.SetDomain[any]{Bound: Bound}}
}

func (a *Analyzer) Domain() lattice.Domain[Content] {
	return a.domain
}

// DefaultValue of locals that were never assigned is ⊥. Constants hold
// their value and everything else may hold anything.
func (a *Analyzer) DefaultValue(e *entity.Entity) Content {
	switch {
	case e.IsCompileTimeConstant():
		if c, ok := normalize(e.Symbol.ConstValue); ok {
			return Of(c)
		}
		return top
	case e.Parent == nil && (e.IsCapture() || e.Symbol != nil && e.Symbol.Kind == cfg.SymLocal):
		return empty
	}
	return top
}

func (a *Analyzer) UnknownValue() Content {
	return top
}

// normalize maps constants to the representation used in contents.
func normalize(c any) (any, bool) {
	switch c := c.(type) {
	case nil:
		return Null, true
	case int:
		return int64(c), true
	case int32:
		return int64(c), true
	case int64, float64, bool, string:
		return c, true
	case float32:
		return float64(c), true
	}
	return nil, false
}

func (a *Analyzer) Visit(v *dataflow.Visitor[Content], op *cfg.Operation, computed Content) Content {
	switch op.Kind {
	case cfg.OpLiteral:
		if c, ok := normalize(op.Value); ok {
			return Of(c)
		}
		return top

	case cfg.OpDefaultValue:
		return zero(op.Type)

	case cfg.OpBinary:
		return a.binary(op.BinaryOp, v.ValueOf(op.Left), v.ValueOf(op.Right))

	case cfg.OpCompoundAssignment:
		return a.binary(op.BinaryOp, v.ValueOf(op.Target), v.ValueOf(op.Source))

	case cfg.OpUnary:
		return a.mapContent(v.ValueOf(op.Operand), func(x any) (any, bool) {
			return unary(op.UnaryOp, x)
		})

	case cfg.OpConversion:
		return a.mapContent(computed, func(x any) (any, bool) {
			return convert(op.Type, x)
		})

	case cfg.OpIsNull:
		switch v.PointsToOf(op.Operand).NullState() {
		case loc.IsNull:
			return Of(true)
		case loc.NotNull:
			return Of(false)
		}
		return Of(true, false)
	}
	return computed
}

// zero is the content of the default value of a type.
func zero(t *cfg.Type) Content {
	switch {
	case t == cfg.Int:
		return Of(int64(0))
	case t == cfg.Float:
		return Of(0.0)
	case t == cfg.Bool:
		return Of(false)
	case t.IsReference():
		return Of(Null)
	}
	return top
}

func (a *Analyzer) mapContent(c Content, f func(any) (any, bool)) Content {
	if c.IsTop() {
		return top
	}
	res := empty
	for _, x := range c.Elements() {
		y, ok := f(x)
		if !ok {
			return top
		}
		res = a.domain.Merge(res, Of(y))
	}
	return res
}

// binary evaluates an operator on every combination of constants.
func (a *Analyzer) binary(bop cfg.BinaryOperator, l, r Content) Content {
	switch {
	case l.IsEmpty() || r.IsEmpty():
		return empty
	case l.IsTop() || r.IsTop():
		return top
	}

	res := empty
	for _, x := range l.Elements() {
		for _, y := range r.Elements() {
			z, ok := evaluate(bop, x, y)
			if !ok {
				return top
			}
			if res = a.domain.Merge(res, Of(z)); res.IsTop() {
				return top
			}
		}
	}
	return res
}

func evaluate(bop cfg.BinaryOperator, x, y any) (any, bool) {
	switch bop {
	case cfg.BinEq:
		return x == y, true
	case cfg.BinNe:
		return x != y, true
	}

	switch x := x.(type) {
	case int64:
		if y, ok := y.(int64); ok {
			return integer(bop, x, y)
		}
	case float64:
		if y, ok := y.(float64); ok {
			return float(bop, x, y)
		}
	case string:
		if y, ok := y.(string); ok && bop == cfg.BinAdd {
			return x + y, true
		}
	case bool:
		if y, ok := y.(bool); ok {
			switch bop {
			case cfg.BinAnd:
				return x && y, true
			case cfg.BinOr:
				return x || y, true
			}
		}
	}
	return nil, false
}

func integer(bop cfg.BinaryOperator, x, y int64) (any, bool) {
	switch bop {
	case cfg.BinAdd:
		return x + y, true
	case cfg.BinSub:
		return x - y, true
	case cfg.BinMul:
		return x * y, true
	case cfg.BinDiv:
		if y == 0 || x == math.MinInt64 && y == -1 {
			return nil, false
		}
		return x / y, true
	case cfg.BinRem:
		if y == 0 || x == math.MinInt64 && y == -1 {
			return nil, false
		}
		return x % y, true
	case cfg.BinLt:
		return x < y, true
	case cfg.BinLe:
		return x <= y, true
	case cfg.BinGt:
		return x > y, true
	case cfg.BinGe:
		return x >= y, true
	}
	return nil, false
}

func float(bop cfg.BinaryOperator, x, y float64) (any, bool) {
	switch bop {
	case cfg.BinAdd:
		return x + y, true
	case cfg.BinSub:
		return x - y, true
	case cfg.BinMul:
		return x * y, true
	case cfg.BinDiv:
		if y == 0 {
			return nil, false
		}
		return x / y, true
	case cfg.BinLt:
		return x < y, true
	case cfg.BinLe:
		return x <= y, true
	case cfg.BinGt:
		return x > y, true
	case cfg.BinGe:
		return x >= y, true
	}
	return nil, false
}

func unary(uop cfg.UnaryOperator, x any) (any, bool) {
	switch x := x.(type) {
	case bool:
		if uop == cfg.UnNot {
			return !x, true
		}
	case int64:
		if uop == cfg.UnNeg {
			return -x, true
		}
	case float64:
		if uop == cfg.UnNeg {
			return -x, true
		}
	}
	return nil, false
}

func convert(t *cfg.Type, x any) (any, bool) {
	switch t {
	case cfg.Int:
		switch x := x.(type) {
		case int64:
			return x, true
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, false
			}
			return int64(x), true
		}
		return nil, false
	case cfg.Float:
		switch x := x.(type) {
		case int64:
			return float64(x), true
		case float64:
			return x, true
		}
		return nil, false
	}
	// Reference conversions keep the value.
	return x, true
}
