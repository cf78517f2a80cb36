package valuecontent

import (
	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/dataflow"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
)

// Condition decides conditions whose content is known and narrows the
// operands of equality tests.
func (a *Analyzer) Condition(v *dataflow.Visitor[Content], op *cfg.Operation, want bool) lattice.PredicateValueKind {
	if kind := decide(v.ValueOf(op), want); kind != lattice.PredicateUnknown {
		return kind
	}

	switch {
	case op.Kind == cfg.OpBinary && (op.BinaryOp == cfg.BinEq || op.BinaryOp == cfg.BinNe):
		if (op.BinaryOp == cfg.BinEq) == want {
			return a.assumeEqual(v, op.Left, op.Right)
		}
		if a.assumeDifferent(v, op.Left, op.Right) || a.assumeDifferent(v, op.Right, op.Left) {
			return lattice.PredicateAlwaysFalse
		}

	case op.Kind == cfg.OpBinary && op.BinaryOp.IsComparison():
		return a.assumeOrdered(v, op, want)

	case op.Type == cfg.Bool:
		// Boolean storage holds the assumed value.
		if e, ok := v.EntityOf(op); ok {
			v.Refine(e, Of(want))
		}
	}
	return lattice.PredicateUnknown
}

// decide checks a boolean content against the wanted outcome.
func decide(c Content, want bool) lattice.PredicateValueKind {
	if c.IsTop() || c.IsEmpty() {
		return lattice.PredicateUnknown
	}
	for _, x := range c.Elements() {
		if _, ok := x.(bool); !ok {
			return lattice.PredicateUnknown
		}
	}
	switch {
	case !c.Contains(want):
		return lattice.PredicateAlwaysFalse
	case !c.Contains(!want):
		return lattice.PredicateAlwaysTrue
	}
	return lattice.PredicateUnknown
}

// assumeEqual narrows both operands to the constants they have in common.
func (a *Analyzer) assumeEqual(v *dataflow.Visitor[Content], l, r *cfg.Operation) lattice.PredicateValueKind {
	lc, rc := v.ValueOf(l), v.ValueOf(r)
	common := intersect(lc, rc)
	if common.IsEmpty() && !lc.IsEmpty() && !rc.IsEmpty() {
		return lattice.PredicateAlwaysFalse
	}
	for _, o := range []*cfg.Operation{l, r} {
		if e, ok := v.EntityOf(o); ok && !common.IsTop() {
			v.Refine(e, common)
		}
	}
	return lattice.PredicateUnknown
}

// assumeDifferent removes the only constant of other from the content of
// the storage denoted by op. It reports whether nothing is left.
func (a *Analyzer) assumeDifferent(v *dataflow.Visitor[Content], op, other *cfg.Operation) bool {
	x, ok := v.ValueOf(other).Single()
	if !ok {
		return false
	}
	c := v.ValueOf(op)
	if c.IsTop() || c.IsEmpty() {
		return false
	}
	rest := c.Remove(x)
	if e, ok := v.EntityOf(op); ok {
		v.Refine(e, rest)
	}
	return rest.IsEmpty()
}

// assumeOrdered keeps the constants of either operand for which the
// comparison may evaluate to want.
func (a *Analyzer) assumeOrdered(v *dataflow.Visitor[Content], op *cfg.Operation, want bool) lattice.PredicateValueKind {
	l, r := v.ValueOf(op.Left), v.ValueOf(op.Right)
	if l.IsTop() || r.IsTop() || l.IsEmpty() || r.IsEmpty() {
		return lattice.PredicateUnknown
	}

	holds := func(x, y any) bool {
		z, ok := evaluate(op.BinaryOp, x, y)
		return !ok || z == want
	}
	left := filter(l, func(x any) bool {
		for _, y := range r.Elements() {
			if holds(x, y) {
				return true
			}
		}
		return false
	})
	right := filter(r, func(y any) bool {
		for _, x := range l.Elements() {
			if holds(x, y) {
				return true
			}
		}
		return false
	})
	if left.IsEmpty() || right.IsEmpty() {
		return lattice.PredicateAlwaysFalse
	}

	if e, ok := v.EntityOf(op.Left); ok {
		v.Refine(e, left)
	}
	if e, ok := v.EntityOf(op.Right); ok {
		v.Refine(e, right)
	}
	return lattice.PredicateUnknown
}

func filter(c Content, keep func(any) bool) Content {
	res := make([]any, 0, c.Size())
	for _, x := range c.Elements() {
		if keep(x) {
			res = append(res, x)
		}
	}
	return Of(res...)
}

func intersect(a, b Content) Content {
	switch {
	case a.IsTop():
		return b
	case b.IsTop():
		return a
	}
	return filter(a, b.Contains)
}
