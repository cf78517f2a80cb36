package dataflow

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
)

// Result of analyzing one activation to a fixed point.
type Result[V any] struct {
	Graph  *cfg.Graph
	Method *cfg.Symbol
	Stack  *loc.CallStack

	dom *DataDomain[V]

	inputs, outputs []Data[V]
	// States of the exception paths pass, if it ran.
	excInputs, excOutputs []Data[V]
	excExit               Data[V]

	values   map[*cfg.Operation]V
	pointsTo map[*cfg.Operation]loc.PointsTo

	throwKeys   []ThrowKey
	throwStates map[ThrowKey]Data[V]

	// ReturnValue joins the values of all return statements.
	ReturnValue    V
	ReturnPointsTo loc.PointsTo
	// ReturnKind tells whether a boolean method always returns the same
	// value.
	ReturnKind lattice.PredicateValueKind

	AnalyzedLambdas []*cfg.Symbol
	EscapedLambdas  []*cfg.Symbol
	standalone      map[*cfg.Symbol]*Result[V]
}

func newResult[V any](ctx *Context[V], dom *DataDomain[V]) *Result[V] {
	return &Result[V]{
		Graph:          ctx.Graph,
		Method:         ctx.Method,
		Stack:          ctx.Stack,
		dom:            dom,
		excExit:        UnreachableData[V](),
		values:         make(map[*cfg.Operation]V),
		pointsTo:       make(map[*cfg.Operation]loc.PointsTo),
		throwStates:    make(map[ThrowKey]Data[V]),
		ReturnValue:    dom.Values().Bottom(),
		ReturnPointsTo: loc.UndefinedPointsTo(),
		standalone:     make(map[*cfg.Symbol]*Result[V]),
	}
}

func (r *Result[V]) recordOperation(op *cfg.Operation, val V, pt loc.PointsTo) {
	if old, ok := r.values[op]; ok {
		val = r.dom.Values().Merge(old, val)
		pt = r.pointsTo[op].Join(pt)
	}
	r.values[op] = val
	r.pointsTo[op] = pt
}

func (r *Result[V]) recordPass(p *pass[V]) {
	r.inputs, r.outputs = p.inputs, p.outputs
	r.throwKeys = p.throws.keys
	r.throwStates = p.throws.entries
}

func (r *Result[V]) recordExceptionPass(p *pass[V]) {
	r.excInputs, r.excOutputs = p.inputs, p.outputs
	r.excExit, _ = p.throws.unhandled()
}

func (r *Result[V]) recordReturn(val V, pt loc.PointsTo, kind lattice.PredicateValueKind) {
	r.ReturnValue, r.ReturnPointsTo, r.ReturnKind = val, pt, kind
}

func (r *Result[V]) recordLambdas(t *lambdaTracker) {
	r.AnalyzedLambdas = t.analyzedLambdas()
	r.EscapedLambdas = t.escapedLambdas()
}

func (r *Result[V]) recordStandalone(l *cfg.Symbol, res *Result[V]) {
	r.standalone[l] = res
}

// Input is the state before a block.
func (r *Result[V]) Input(b *cfg.BasicBlock) Data[V] {
	return r.inputs[b.Ordinal]
}

// Output is the state after a block.
func (r *Result[V]) Output(b *cfg.BasicBlock) Data[V] {
	return r.outputs[b.Ordinal]
}

// Entry is the state after the entry block.
func (r *Result[V]) Entry() Data[V] {
	return r.outputs[0]
}

// Exit is the state when the activation returns normally.
func (r *Result[V]) Exit() Data[V] {
	return r.inputs[len(r.inputs)-1]
}

// ExceptionPathsInput is the state before a block when exceptions raised
// anywhere in the activation are taken into account.
func (r *Result[V]) ExceptionPathsInput(b *cfg.BasicBlock) (Data[V], bool) {
	if r.excInputs == nil {
		return UnreachableData[V](), false
	}
	return r.excInputs[b.Ordinal], true
}

// ExceptionPathsOutput is the exception paths counterpart of Output.
func (r *Result[V]) ExceptionPathsOutput(b *cfg.BasicBlock) (Data[V], bool) {
	if r.excOutputs == nil {
		return UnreachableData[V](), false
	}
	return r.excOutputs[b.Ordinal], true
}

// ExceptionPathsExit is the state when the activation is left by an
// exception, including exceptions raised by operations that may throw.
func (r *Result[V]) ExceptionPathsExit() Data[V] {
	return r.excExit
}

// UnhandledThrow joins the states at which exceptions thrown explicitly or
// by analyzed callees leave the activation.
func (r *Result[V]) UnhandledThrow() (Data[V], bool) {
	res, found := UnreachableData[V](), false
	for _, k := range r.throwKeys {
		if k.IsUnhandled() {
			res = r.dom.Merge(res, r.throwStates[k])
			found = true
		}
	}
	return res, found
}

// Throws lists where exceptions were routed, in order of discovery.
func (r *Result[V]) Throws() []ThrowKey {
	return r.throwKeys
}

// ThrowState is the state at which exceptions routed by key are raised.
func (r *Result[V]) ThrowState(key ThrowKey) (Data[V], bool) {
	d, ok := r.throwStates[key]
	return d, ok
}

// Value is the value of an operation joined over every time it was
// visited.
func (r *Result[V]) Value(op *cfg.Operation) (V, bool) {
	v, ok := r.values[op]
	return v, ok
}

// PointsTo is the points-to value of an operation.
func (r *Result[V]) PointsTo(op *cfg.Operation) (loc.PointsTo, bool) {
	p, ok := r.pointsTo[op]
	return p, ok
}

// StandaloneLambda is the result of analyzing an escaped lambda on its own.
func (r *Result[V]) StandaloneLambda(l *cfg.Symbol) (*Result[V], bool) {
	res, ok := r.standalone[l]
	return res, ok
}

// Dump writes the values at the end of every block, sorted by entity.
func (r *Result[V]) Dump(w io.Writer) {
	fmt.Fprintf(w, "== %v ==\n", r.Method)
	for _, b := range r.Graph.Blocks {
		switch b.Kind {
		case cfg.BlockEntry:
			fmt.Fprintf(w, "%v (entry)\n", b)
		case cfg.BlockExit:
			fmt.Fprintf(w, "%v (exit)\n", b)
		default:
			fmt.Fprintf(w, "%v\n", b)
		}
		dumpState(w, r.outputs[b.Ordinal])
	}
	if r.ReturnPointsTo.Kind() != loc.Undefined || r.ReturnKind != lattice.PredicateUnknown {
		fmt.Fprintf(w, "return %v (%v)\n", r.ReturnValue, r.ReturnKind)
	}
	if d, ok := r.UnhandledThrow(); ok {
		fmt.Fprintln(w, "unhandled")
		dumpState(w, d)
	}
	for _, l := range r.EscapedLambdas {
		if res, ok := r.standalone[l]; ok {
			res.Dump(w)
		}
	}
}

func dumpState[V any](w io.Writer, d Data[V]) {
	if !d.IsReachable() {
		fmt.Fprintln(w, "  unreachable")
		return
	}
	var lines []string
	d.ForEachValue(func(e *entity.Entity, v V) {
		lines = append(lines, fmt.Sprintf("  %v = %v", e, v))
	})
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

func (r *Result[V]) String() string {
	var sb strings.Builder
	r.Dump(&sb)
	return sb.String()
}
