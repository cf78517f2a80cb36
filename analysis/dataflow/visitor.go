package dataflow

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
)

// Visitor evaluates operations of one activation over an abstract state.
// Analyzers use it to inspect the values of operands and to refine the
// state when assuming conditions.
type Visitor[V any] struct {
	engine   *engine[V]
	ctx      *Context[V]
	analyzer Analyzer[V]
	dom      *DataDomain[V]
	factory  *entity.Factory

	state Data[V]
	block *cfg.BasicBlock

	values   map[*cfg.Operation]V
	pointsTo map[*cfg.Operation]loc.PointsTo
	entities map[*cfg.Operation]*entity.Entity
	// callKinds holds the predicate kinds returned by analyzed calls.
	callKinds map[*cfg.Operation]lattice.PredicateValueKind
}

func newVisitor[V any](e *engine[V]) *Visitor[V] {
	v := &Visitor[V]{
		engine:   e,
		ctx:      e.ctx,
		analyzer: e.session.analyzer,
		dom:      e.session.dom,
		values:   make(map[*cfg.Operation]V),
		pointsTo: make(map[*cfg.Operation]loc.PointsTo),
		entities: make(map[*cfg.Operation]*entity.Entity),

		callKinds: make(map[*cfg.Operation]lattice.PredicateValueKind),
	}

	fc := entity.FactoryConfig{
		Graph:    v.ctx.Graph,
		Method:   v.ctx.Method,
		Stack:    v.ctx.Stack,
		PointsTo: v.PointsToOf,
		Captured: v.ctx.capturedStack,
	}
	if ipd := v.ctx.Interprocedural; ipd != nil {
		fc.This = ipd.This
	}
	v.factory = entity.NewFactory(fc)
	return v
}

// Context is the activation being analyzed.
func (v *Visitor[V]) Context() *Context[V] {
	return v.ctx
}

// State is the current abstract state.
func (v *Visitor[V]) State() Data[V] {
	return v.state
}

// Block is the block being analyzed.
func (v *Visitor[V]) Block() *cfg.BasicBlock {
	return v.block
}

// ValueOf is the value computed for an operation that was already visited.
func (v *Visitor[V]) ValueOf(op *cfg.Operation) V {
	if val, ok := v.values[op]; ok {
		return val
	}
	return v.analyzer.UnknownValue()
}

// PointsToOf is the points-to value of an operation that was already visited.
func (v *Visitor[V]) PointsToOf(op *cfg.Operation) loc.PointsTo {
	if p, ok := v.pointsTo[op]; ok {
		return p
	}
	return unknownPointsTo(op.Type)
}

// EntityOf is the storage denoted by an operation that was already visited.
func (v *Visitor[V]) EntityOf(op *cfg.Operation) (*entity.Entity, bool) {
	e, ok := v.entities[op]
	return e, ok
}

// Value reads the value of storage in the current state.
func (v *Visitor[V]) Value(e *entity.Entity) V {
	if val, ok := v.state.Value(e); ok {
		return val
	}
	if multiLocation(e) {
		if val, found := variants(v.dom.Values(), v.state.values, e, v.analyzer.DefaultValue); found {
			return val
		}
	}
	return v.analyzer.DefaultValue(e)
}

// PointsTo reads the points-to value of storage in the current state.
func (v *Visitor[V]) PointsTo(e *entity.Entity) loc.PointsTo {
	if p, ok := v.state.PointsTo(e); ok {
		return p
	}
	if multiLocation(e) {
		if p, found := variants[loc.PointsTo](PointsToDomain{}, v.state.pointsTo, e, DefaultPointsTo); found {
			return p
		}
	}
	return DefaultPointsTo(e)
}

// Refine overwrites the value of storage while assuming a condition.
func (v *Visitor[V]) Refine(e *entity.Entity, val V) {
	v.state = v.state.SetValue(e, val)
}

// RefinePointsTo overwrites the points-to value of storage while assuming
// a condition.
func (v *Visitor[V]) RefinePointsTo(e *entity.Entity, p loc.PointsTo) {
	v.state = v.state.SetPointsTo(e, p)
}

func unknownPointsTo(t *cfg.Type) loc.PointsTo {
	if t != nil && t.Value {
		return loc.NoLocationPointsTo()
	}
	return loc.UnknownPointsTo()
}

// enter bounds the nesting of visits and calls.
func (v *Visitor[V]) enter() func() {
	s := v.engine.session
	s.depth++
	if s.depth > v.ctx.Config.MaxVisitDepth {
		s.depth--
		panic(errors.Wrapf(ErrInsufficientStack, "nesting exceeds %d", v.ctx.Config.MaxVisitDepth))
	}
	return func() { s.depth-- }
}

// Visit evaluates a statement-level operation.
func (v *Visitor[V]) Visit(op *cfg.Operation) V {
	return v.visit(op)
}

func (v *Visitor[V]) visit(op *cfg.Operation) V {
	defer v.enter()()

	computed := v.analyzer.UnknownValue()
	pt := unknownPointsTo(op.Type)

	switch op.Kind {
	case cfg.OpLiteral:
		switch {
		case op.IsNullLiteral():
			pt = loc.NullPointsTo()
		case op.Type.IsReference():
			pt = loc.KnownPointsTo(loc.Creation(op, v.ctx.Stack))
		}

	case cfg.OpInstanceRef:
		e, _ := v.factory.TryCreate(op)
		v.entities[op] = e
		computed, pt = v.Value(e), v.factory.This

	case cfg.OpLocalRef, cfg.OpParameterRef, cfg.OpFieldRef, cfg.OpPropertyRef,
		cfg.OpArrayElementRef, cfg.OpFlowCaptureRef:
		for _, c := range op.Children() {
			v.visit(c)
		}
		if e, ok := v.factory.TryCreate(op); ok {
			v.entities[op] = e
			computed, pt = v.Value(e), v.PointsTo(e)
		}

	case cfg.OpFlowCapture:
		computed, pt = v.visitCapture(op)

	case cfg.OpAssignment:
		v.visit(op.Target)
		computed = v.visit(op.Source)
		pt = v.PointsToOf(op.Source)
		v.assign(op, computed, pt)

	case cfg.OpCompoundAssignment:
		v.visit(op.Target)
		v.visit(op.Source)

	case cfg.OpBinary:
		v.visit(op.Left)
		v.visit(op.Right)
		if op.Type.IsReference() {
			pt = loc.KnownPointsTo(loc.Creation(op, v.ctx.Stack))
		}

	case cfg.OpUnary, cfg.OpIsNull, cfg.OpIsType:
		v.visit(op.Operand)

	case cfg.OpConversion:
		computed = v.visit(op.Operand)
		pt = v.PointsToOf(op.Operand)
		if e, ok := v.factory.TryCreate(op); ok {
			v.entities[op] = e
		}

	case cfg.OpObjectCreation:
		computed, pt = v.visitCreation(op)

	case cfg.OpArrayCreation:
		for _, c := range op.Arguments {
			v.visit(c)
		}
		pt = loc.KnownPointsTo(loc.Creation(op, v.ctx.Stack))

	case cfg.OpInvocation:
		computed, pt = v.visitInvocation(op)

	case cfg.OpDelegateCreation:
		pt = loc.KnownPointsTo(loc.Creation(op, v.ctx.Stack))
		v.engine.lambdas.created(op.Lambda)

	case cfg.OpArgument:
		computed = v.visit(op.Operand)
		pt = v.PointsToOf(op.Operand)
		if e, ok := v.entities[op.Operand]; ok {
			v.entities[op] = e
		}

	case cfg.OpDefaultValue:
		if op.Type.IsReference() {
			pt = loc.NullPointsTo()
		}

	case cfg.OpCaughtException:
		pt = loc.UnknownNotNull()

	case cfg.OpExpressionStatement:
		computed = v.visit(op.Operand)
		pt = v.PointsToOf(op.Operand)

	case cfg.OpOther:
		for _, c := range op.Arguments {
			v.visit(c)
			v.escapeLambdas(v.PointsToOf(c))
		}

	default:
		panic(errors.Wrapf(ErrUnsupportedOperation, "%v in %v", op.Kind, v.ctx.Method))
	}

	if o := v.ctx.Oracle; o != nil {
		if p, ok := o.PointsTo(op, v.ctx.Stack); ok {
			pt = p
		}
	}
	v.pointsTo[op] = pt

	res := v.analyzer.Visit(v, op, computed)
	if op.Kind == cfg.OpCompoundAssignment {
		v.assign(op, res, pt)
	}
	v.values[op] = res
	v.engine.recordOperation(op, res, pt)
	return res
}

// visitCapture evaluates a flow capture. Captures of storage denote that
// storage; captures of values get storage of their own.
func (v *Visitor[V]) visitCapture(op *cfg.Operation) (V, loc.PointsTo) {
	val := v.visit(op.Operand)
	pt := v.PointsToOf(op.Operand)

	if v.ctx.Graph.IsLValueCapture(op.CaptureID) {
		if e, ok := v.entities[op.Operand]; ok {
			v.factory.BindLValueCapture(op.CaptureID, e)
			v.entities[op] = e
		}
		return val, pt
	}

	e := v.factory.ForCapture(op.CaptureID, op.Type)
	v.entities[op] = e
	v.assignEntity(e, val, pt, op.Operand)
	return val, pt
}

// assign stores the value of an assignment into its target.
func (v *Visitor[V]) assign(op *cfg.Operation, val V, pt loc.PointsTo) {
	e, ok := v.entities[op.Target]
	if !ok {
		v.writeUnresolved(op.Target, val, pt)
		return
	}
	if op.RefKind != cfg.ByValue {
		if src, ok := v.entities[op.Source]; ok {
			v.engine.session.shared.Share(e, src)
		}
	}
	v.assignEntity(e, val, pt, op.Source)
}

// assignEntity writes storage and everything that shares its address.
func (v *Visitor[V]) assignEntity(e *entity.Entity, val V, pt loc.PointsTo, source *cfg.Operation) {
	targets := []*entity.Entity{e}
	for _, a := range v.engine.session.shared.Aliases(e) {
		// Frames of finished callees are gone.
		if frameDepth(a) <= v.ctx.Stack.Depth() {
			targets = append(targets, a)
		}
	}
	for _, t := range targets {
		v.state = v.state.invalidatePredicates(t)
		if hasMembers(t.Type) {
			v.copyMembers(t, source)
		}
		v.write(t, val, pt)
	}

	if source == nil || !v.ctx.Config.PredicateAnalysis || e.Type != cfg.Bool {
		return
	}
	if src, ok := v.entities[source]; ok {
		if p, ok := v.state.Predicated(src); ok && !p.mentions(e) {
			v.state = v.state.SetPredicated(e, p)
		}
		return
	}
	if source.IsCondition() {
		v.storePredicate(e, source)
	}
}

// hasMembers holds for value types whose instances have member storage.
func hasMembers(t *cfg.Type) bool {
	switch t {
	case nil, cfg.Bool, cfg.Int, cfg.Float, cfg.Void:
		return false
	}
	return t.Value
}

// copyMembers replaces the members of a value-typed target with copies of
// the members of the source.
func (v *Visitor[V]) copyMembers(target *entity.Entity, source *cfg.Operation) {
	var src *entity.Entity
	if source != nil {
		src = v.entities[source]
	}
	for _, k := range v.state.Entities() {
		if k.HasAncestor(target) {
			v.state = v.state.Delete(k)
		}
	}
	if src == nil || src.Equal(target) {
		return
	}
	for _, k := range v.state.Entities() {
		if !k.HasAncestor(src) {
			continue
		}
		nk := k.Reroot(src, target)
		if val, ok := v.state.Value(k); ok {
			v.state = v.state.SetValue(nk, val)
		}
		if p, ok := v.state.PointsTo(k); ok {
			v.state = v.state.SetPointsTo(nk, p)
		}
	}
}

// isFrameLocal holds for storage that can only be reached by name.
func isFrameLocal(e *entity.Entity) bool {
	root := e.Root()
	return root.IsCapture() || root.Symbol != nil &&
		(root.Symbol.Kind == cfg.SymLocal || root.Symbol.Kind == cfg.SymParameter)
}

// write binds storage. Storage at other locations that may be the same
// memory receives a weak update.
func (v *Visitor[V]) write(e *entity.Entity, val V, pt loc.PointsTo) {
	v.state = v.state.SetValue(e, val).SetPointsTo(e, pt)
	if isFrameLocal(e) {
		return
	}
	v.escapeLambdas(pt)
	if !e.Location.IsKnown() {
		return
	}

	values := v.dom.Values()
	for _, k := range v.state.Entities() {
		if k == e || k.IdentityHash() != e.IdentityHash() || !k.EqualIgnoringLocation(e) ||
			k.Location.Equal(e.Location) || !k.Location.MayAlias(e.Location) {
			continue
		}
		v.state = v.state.invalidatePredicates(k)
		v.state = v.state.SetValue(k, values.Merge(v.Value(k), val))
		v.state = v.state.SetPointsTo(k, v.PointsTo(k).Join(pt))
	}
}

// writeUnresolved handles writes to members of instances whose location is
// not known: every member that may be the target is weakly updated.
func (v *Visitor[V]) writeUnresolved(target *cfg.Operation, val V, pt loc.PointsTo) {
	var matches func(*entity.Entity) bool
	switch target.Kind {
	case cfg.OpFieldRef, cfg.OpPropertyRef:
		matches = func(k *entity.Entity) bool { return k.Symbol == target.Symbol }
	case cfg.OpArrayElementRef:
		matches = func(k *entity.Entity) bool { return len(k.Indices) > 0 && k.Type == target.Type }
	default:
		return
	}

	values := v.dom.Values()
	for _, k := range v.state.Entities() {
		if !matches(k) {
			continue
		}
		v.state = v.state.invalidatePredicates(k)
		v.state = v.state.SetValue(k, values.Merge(v.Value(k), val))
		v.state = v.state.SetPointsTo(k, v.PointsTo(k).Join(pt))
	}
}

func (v *Visitor[V]) visitCreation(op *cfg.Operation) (V, loc.PointsTo) {
	args := v.visitArguments(op.Arguments)
	pt := loc.KnownPointsTo(loc.Creation(op, v.ctx.Stack))
	if op.Type.Value {
		pt = loc.NoLocationPointsTo()
		if e, ok := v.factory.TryCreate(op); ok {
			v.entities[op] = e
		}
	}
	computed := v.analyzer.UnknownValue()
	if op.Symbol != nil {
		// The constructor runs on the new instance.
		v.invoke(op, op.Symbol, pt, args, false)
	}
	return computed, pt
}

func (v *Visitor[V]) escapeLambdas(pt loc.PointsTo) {
	for _, l := range pt.Locations() {
		if lambda, ok := l.Lambda(); ok {
			v.engine.lambdas.escaped(lambda)
		}
	}
}

func (v *Visitor[V]) String() string {
	return fmt.Sprintf("visitor(%v, %v)", v.ctx, v.block)
}
