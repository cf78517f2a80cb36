// Package nullness tells whether references may be null at each program
// point. It reads the null states the engine keeps in points-to values and
// records them per storage location, so that results can be queried without
// access to points-to information.
package nullness

import (
	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/dataflow"
	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
)

// State is the null state of a value.
type State = loc.NullState

// Domain orders null states: undefined ⊑ null, not-null ⊑ maybe-null.
type Domain struct{}

func (Domain) Bottom() State { return loc.NullUndefined }

func (Domain) Merge(a, b State) State { return a.Join(b) }

func (Domain) Compare(a, b State) int {
	return lattice.CompareByLeq(a.Leq(b), b.Leq(a))
}

func (Domain) Equals(a, b State) bool { return a == b }

type Analyzer struct{}

var _ dataflow.Analyzer[State] = Analyzer{}

func (Analyzer) Domain() lattice.Domain[State] {
	return Domain{}
}

func (Analyzer) DefaultValue(e *entity.Entity) State {
	switch {
	case !e.Type.IsReference():
		return loc.NotNull
	case e.Parent == nil && (e.IsCapture() || e.Symbol != nil && e.Symbol.Kind == cfg.SymLocal):
		return loc.NullUndefined
	}
	return loc.MaybeNull
}

func (Analyzer) UnknownValue() State {
	return loc.MaybeNull
}

func (Analyzer) Visit(v *dataflow.Visitor[State], op *cfg.Operation, computed State) State {
	if !op.Type.IsReference() {
		return loc.NotNull
	}
	if n := v.PointsToOf(op).NullState(); n != loc.NullUndefined {
		return n
	}
	return computed
}

// Condition records the null state assumed by null checks. Deciding the
// check is left to the engine, which tracks the same information in
// points-to values.
func (Analyzer) Condition(v *dataflow.Visitor[State], op *cfg.Operation, want bool) lattice.PredicateValueKind {
	subject, null := checked(op, want)
	if subject == nil {
		return lattice.PredicateUnknown
	}
	if e, ok := v.EntityOf(subject); ok {
		if null {
			v.Refine(e, loc.IsNull)
		} else {
			v.Refine(e, loc.NotNull)
		}
	}
	return lattice.PredicateUnknown
}

// checked returns the operand of a null check and whether it is null when
// the check evaluates to want.
func checked(op *cfg.Operation, want bool) (*cfg.Operation, bool) {
	switch op.Kind {
	case cfg.OpIsNull:
		return op.Operand, want
	case cfg.OpIsType:
		if want {
			return op.Operand, false
		}
	case cfg.OpBinary:
		if op.BinaryOp != cfg.BinEq && op.BinaryOp != cfg.BinNe {
			break
		}
		null := want == (op.BinaryOp == cfg.BinEq)
		switch {
		case op.Right.IsNullLiteral():
			return op.Left, null
		case op.Left.IsNullLiteral():
			return op.Right, null
		}
	}
	return nil, false
}
