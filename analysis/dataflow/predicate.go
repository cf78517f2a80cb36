package dataflow

import (
	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
)

const (
	always  = lattice.PredicateAlwaysTrue
	never   = lattice.PredicateAlwaysFalse
	unknown = lattice.PredicateUnknown
)

// storePredicate records how the state is refined when the boolean entity
// e, which was just assigned the value of cond, is known to be true or
// false.
func (v *Visitor[V]) storePredicate(e *entity.Entity, cond *cfg.Operation) {
	base := v.state
	whenTrue, kt := v.assume(cond, true)
	whenFalse, kf := v.assume(cond, false)

	p := Predicated[V]{
		WhenTrue:  diffBranch(v.dom.Values(), base, whenTrue, kt == never),
		WhenFalse: diffBranch(v.dom.Values(), base, whenFalse, kf == never),
	}
	// Refinements of e itself are stale as soon as they are recorded.
	if p.mentions(e) {
		return
	}
	v.state = v.state.SetPredicated(e, p)
}

// assume evaluates the refined state under the assumption that the
// already visited operation op evaluated to want. The current state is
// left unchanged.
func (v *Visitor[V]) assume(op *cfg.Operation, want bool) (Data[V], lattice.PredicateValueKind) {
	saved := v.state
	kind := v.condition(op, want)
	res := v.state
	v.state = saved
	return res, kind
}

// condition refines the current state by assuming op evaluated to want.
func (v *Visitor[V]) condition(op *cfg.Operation, want bool) lattice.PredicateValueKind {
	if !v.ctx.Config.PredicateAnalysis {
		return unknown
	}

	switch op.Kind {
	case cfg.OpUnary:
		if op.UnaryOp == cfg.UnNot {
			return v.condition(op.Operand, !want)
		}

	case cfg.OpConversion:
		if op.Type == cfg.Bool && op.Operand.Type == cfg.Bool {
			return v.condition(op.Operand, want)
		}

	case cfg.OpExpressionStatement:
		return v.condition(op.Operand, want)

	case cfg.OpLiteral:
		if b, ok := op.Value.(bool); ok {
			if b == want {
				return always
			}
			return never
		}

	case cfg.OpBinary:
		switch op.BinaryOp {
		case cfg.BinAnd:
			if want {
				return v.conjunction(op.Left, op.Right, true)
			}
			return v.disjunction(op.Left, op.Right, false)
		case cfg.BinOr:
			if want {
				return v.disjunction(op.Left, op.Right, true)
			}
			return v.conjunction(op.Left, op.Right, false)
		case cfg.BinEq, cfg.BinNe:
			other := op.Left
			switch {
			case op.Left.IsNullLiteral():
				other = op.Right
			case !op.Right.IsNullLiteral():
				return v.combine(unknown, op, want)
			}
			return v.combine(v.assumeNull(other, want == (op.BinaryOp == cfg.BinEq)), op, want)
		}

	case cfg.OpIsNull:
		return v.combine(v.assumeNull(op.Operand, want), op, want)

	case cfg.OpInvocation:
		own := v.callKinds[op]
		if !want {
			own = own.Negate()
		}
		return v.combine(own, op, want)

	case cfg.OpIsType:
		own := unknown
		if want && v.assumeNull(op.Operand, false) == never {
			own = never
		}
		return v.combine(own, op, want)
	}

	if e, ok := v.entities[op]; ok && e.Type == cfg.Bool {
		if p, ok := v.state.Predicated(e); ok {
			br := p.WhenTrue
			if !want {
				br = p.WhenFalse
			}
			if br.Infeasible {
				return never
			}
			v.state = br.apply(v.state)
		}
	}
	return v.combine(unknown, op, want)
}

// combine consults the analyzer after the engine refined the state on its
// own. A condition that never holds on either account never holds.
func (v *Visitor[V]) combine(own lattice.PredicateValueKind, op *cfg.Operation, want bool) lattice.PredicateValueKind {
	if own == never {
		return never
	}
	switch k := v.analyzer.Condition(v, op, want); {
	case k == never:
		return never
	case k == always || own == always:
		return always
	}
	return unknown
}

// conjunction assumes both operands evaluated to want, in order.
func (v *Visitor[V]) conjunction(left, right *cfg.Operation, want bool) lattice.PredicateValueKind {
	kl := v.condition(left, want)
	if kl == never {
		return never
	}
	kr := v.condition(right, want)
	switch {
	case kr == never:
		return never
	case kl == always && kr == always:
		return always
	}
	return unknown
}

// disjunction assumes at least one operand evaluated to want. The refined
// state is the join of the states refined by either operand.
func (v *Visitor[V]) disjunction(left, right *cfg.Operation, want bool) lattice.PredicateValueKind {
	sl, kl := v.assume(left, want)
	sr, kr := v.assume(right, want)
	switch {
	case kl == never && kr == never:
		return never
	case kl == never:
		v.state = sr
	case kr == never:
		v.state = sl
	default:
		v.state = v.dom.Merge(sl, sr)
	}
	if kl == always || kr == always {
		return always
	}
	return unknown
}

// assumeNull refines the storage denoted by op to be null (or not).
func (v *Visitor[V]) assumeNull(op *cfg.Operation, null bool) lattice.PredicateValueKind {
	pt := v.PointsToOf(op)
	want, other := loc.IsNull, loc.NotNull
	if !null {
		want, other = other, want
	}
	switch pt.NullState() {
	case want:
		return always
	case other:
		return never
	}
	if pt.Kind() == loc.Undefined {
		return unknown
	}

	refined := pt.WithNullState(want)
	for o := op; o != nil; o = o.Operand {
		if e, ok := v.entities[o]; ok {
			v.RefinePointsTo(e, refined)
			break
		}
		if o.Kind != cfg.OpConversion {
			break
		}
	}
	return unknown
}
