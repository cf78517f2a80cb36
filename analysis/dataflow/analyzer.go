package dataflow

import (
	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
)

// Analyzer is implemented by concrete analyses. The engine takes care of
// control flow, storage identity, aliasing and calls; the analyzer only
// decides the abstract values of operations.
type Analyzer[V any] interface {
	// Domain of the abstract values.
	Domain() lattice.Domain[V]
	// DefaultValue is the value of storage that was never written in the
	// analyzed code, e.g. fields of unknown instances or parameters.
	DefaultValue(e *entity.Entity) V
	// UnknownValue is the value of storage that may have been written by
	// code that was not analyzed.
	UnknownValue() V
	// Visit computes the value of op. Computed is the value the engine
	// derived on its own: the current value of the denoted storage for
	// references, the assigned value for assignments, the returned value
	// for analyzed invocations and UnknownValue otherwise. The values of
	// the operands of op are available through the visitor.
	Visit(v *Visitor[V], op *cfg.Operation, computed V) V
	// Condition refines the current state of the visitor by assuming that
	// the boolean operation op evaluated to want, and reports whether the
	// assumption always or never holds.
	Condition(v *Visitor[V], op *cfg.Operation, want bool) lattice.PredicateValueKind
}

// PointsToOracle supplies points-to values computed by a prior analysis.
// When it answers, the engine uses its value instead of its own.
type PointsToOracle interface {
	PointsTo(op *cfg.Operation, stack *loc.CallStack) (loc.PointsTo, bool)
}
