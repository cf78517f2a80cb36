package dataflow

import (
	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/config"
	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
	"github.com/cs-au-dk/goat-flow/utils/worklist"
)

// Outcomes of invocations, as reported to metrics and logs.
const (
	callAnalyzed   = "analyzed"
	callDisabled   = "disabled"
	callNoBody     = "no-body"
	callVirtual    = "virtual"
	callChain      = "chain-length"
	callRecursive  = "recursive"
	callUnresolved = "unresolved"
)

func (v *Visitor[V]) visitArguments(ops []*cfg.Operation) []Argument[V] {
	args := make([]Argument[V], len(ops))
	for i, a := range ops {
		args[i] = Argument[V]{
			Value:    v.visit(a),
			PointsTo: v.PointsToOf(a),
			RefKind:  a.RefKind,
		}
		if e, ok := v.entities[a]; ok {
			args[i].Entity = e
		}
	}
	return args
}

func (v *Visitor[V]) visitInvocation(op *cfg.Operation) (V, loc.PointsTo) {
	this := loc.UndefinedPointsTo()
	if op.Instance != nil {
		v.visit(op.Instance)
		this = v.PointsToOf(op.Instance)
	}
	delegate := loc.UnknownPointsTo()
	if op.Delegate != nil {
		v.visit(op.Delegate)
		delegate = v.PointsToOf(op.Delegate)
	}
	args := v.visitArguments(op.Arguments)

	if op.Symbol == nil {
		return v.invokeDelegate(op, delegate, args)
	}
	return v.invoke(op, op.Symbol, this, args, op.IsVirtual)
}

// invoke handles a call with a static target. The state after the call
// becomes the current state.
func (v *Visitor[V]) invoke(op *cfg.Operation, callee *cfg.Symbol, this loc.PointsTo, args []Argument[V], virtual bool) (V, loc.PointsTo) {
	defer v.enter()()

	fp := fingerprintOf(callee, this, args)
	if reason := v.skipReason(callee, fp, virtual); reason != "" {
		v.engine.session.metrics.call(reason)
		v.engine.log().WithField("callee", callee).WithField("reason", reason).Debug("Skipping call")
		v.callKinds[op] = unknown
		return v.skipCall(op, this, args, v.ctx.Config.Pessimistic)
	}
	v.engine.session.metrics.call(callAnalyzed)
	return v.analyzeCall(op, callee, this, args, fp)
}

// skipReason explains why a callee is not analyzed, or is empty.
func (v *Visitor[V]) skipReason(callee *cfg.Symbol, fp uint32, virtual bool) string {
	switch {
	case v.ctx.Config.Interprocedural == config.InterproceduralNone:
		return callDisabled
	case callee.Method == nil || callee.Method.Body == nil:
		return callNoBody
	case virtual && callee.MayBeOverridden():
		return callVirtual
	}

	methods, lambdas := v.ctx.chainLength()
	if callee.IsLambdaOrLocalFunction() {
		if lambdas >= v.ctx.Config.MaxLambdaCallChain {
			return callChain
		}
	} else if methods >= v.ctx.Config.MaxCallChain {
		return callChain
	}

	if v.ctx.isActive(callee, fp) {
		return callRecursive
	}
	return ""
}

// skipCall accounts for the effects of a call that is not analyzed.
func (v *Visitor[V]) skipCall(op *cfg.Operation, this loc.PointsTo, args []Argument[V], pessimistic bool) (V, loc.PointsTo) {
	top := v.analyzer.UnknownValue()
	for _, a := range args {
		if a.RefKind != cfg.ByValue && a.Entity != nil {
			v.resetMembers(a.Entity)
			v.assignEntity(a.Entity, top, unknownPointsTo(a.Entity.Type), nil)
		}
		v.escapeLambdas(a.PointsTo)
	}

	if pessimistic {
		roots := []loc.PointsTo{this}
		for _, a := range args {
			roots = append(roots, a.PointsTo)
		}
		v.resetReachable(roots)
	}
	return top, unknownPointsTo(op.Type)
}

// resetMembers forgets the members of value-typed storage.
func (v *Visitor[V]) resetMembers(e *entity.Entity) {
	top := v.analyzer.UnknownValue()
	for _, k := range v.state.Entities() {
		if k != e && k.HasAncestor(e) {
			v.state = v.state.invalidatePredicates(k)
			v.state = v.state.SetValue(k, top).SetPointsTo(k, unknownPointsTo(k.Type))
		}
	}
}

// resetReachable forgets everything an unknown callee may modify: static
// storage and the heap transitively reachable from the given references.
// If any of them is unknown, the whole heap is forgotten.
func (v *Visitor[V]) resetReachable(roots []loc.PointsTo) {
	top := v.analyzer.UnknownValue()
	reset := func(k *entity.Entity) loc.PointsTo {
		old := v.PointsTo(k)
		v.state = v.state.invalidatePredicates(k)
		v.state = v.state.SetValue(k, top).SetPointsTo(k, unknownPointsTo(k.Type))
		return old
	}

	everything := false
	var start []loc.Location
	for _, r := range roots {
		switch r.Kind() {
		case loc.Unknown:
			everything = true
		case loc.Known:
			start = append(start, r.Locations()...)
		}
	}

	entities := v.state.Entities()
	for _, k := range entities {
		if k.Root().Symbol != nil && k.Root().Symbol.Static || everything && !isFrameLocal(k) {
			reset(k)
		}
	}
	if everything {
		return
	}

	worklist.StartV(start, func(l loc.Location, add func(loc.Location)) {
		if l.IsNull() || l.Kind() == loc.KindNoLocation {
			return
		}
		for _, k := range entities {
			if isFrameLocal(k) || !k.Root().Location.Contains(l) {
				continue
			}
			for _, n := range reset(k).Locations() {
				add(n)
			}
		}
	})
}

// bindArguments pairs the arguments of a call with the parameters of the
// callee.
func bindArguments[V any](callee *cfg.Symbol, ops []*cfg.Operation, args []Argument[V]) map[*cfg.Symbol]Argument[V] {
	res := make(map[*cfg.Symbol]Argument[V], len(args))
	params := callee.Method.Parameters
	for i, a := range args {
		p := ops[i].Symbol
		if ops[i].Kind != cfg.OpArgument || p == nil {
			if i >= len(params) {
				continue
			}
			p = params[i]
		}
		res[p] = a
	}
	return res
}

// analyzeCall analyzes the body of the callee in the current state and
// splices its effects back.
func (v *Visitor[V]) analyzeCall(op *cfg.Operation, callee *cfg.Symbol, this loc.PointsTo, args []Argument[V], fp uint32) (V, loc.PointsTo) {
	if callee.IsLambdaOrLocalFunction() {
		v.engine.session.lambdas.analyzed(callee)
	}
	ipd := &InterproceduralData[V]{
		Initial:     v.state,
		This:        this,
		Arguments:   bindArguments(callee, op.Arguments, args),
		Invocation:  op,
		Shared:      v.engine.session.shared,
		fingerprint: fp,
	}
	ctx := v.ctx.fork(callee.Method.Body, ipd)
	res := v.engine.session.run(ctx)

	for _, k := range res.throwKeys {
		if k.IsUnhandled() {
			v.engine.raise(k.Type, v.splice(res.throwStates[k], ctx.Stack))
		}
	}
	v.state = v.splice(res.Exit(), ctx.Stack)
	v.callKinds[op] = res.ReturnKind

	if callee.Method.ReturnType == cfg.Void {
		return v.analyzer.UnknownValue(), unknownPointsTo(op.Type)
	}
	return res.ReturnValue, res.ReturnPointsTo
}

// splice turns a state of the callee into a state of the caller. Storage
// of the callee frame is dropped, including the receiver the callee made
// up for itself when the caller supplied none.
func (v *Visitor[V]) splice(state Data[V], callee *loc.CallStack) Data[V] {
	if !state.IsReachable() {
		return state
	}
	for _, k := range state.Entities() {
		if k.IsFrameOwned(callee) || isOwnReceiver(k.Root(), callee) {
			state = state.invalidatePredicates(k).Delete(k)
		}
	}
	return state
}

func isOwnReceiver(root *entity.Entity, callee *loc.CallStack) bool {
	if !root.IsThis || !root.Location.IsKnown() {
		return false
	}
	l := root.Location.Locations()[0]
	return l.Kind() == loc.KindThis && l.Stack == callee
}

// invokeDelegate handles a call through a delegate: every lambda the
// delegate may refer to is analyzed from the same state, and the results
// are joined.
func (v *Visitor[V]) invokeDelegate(op *cfg.Operation, delegate loc.PointsTo, args []Argument[V]) (V, loc.PointsTo) {
	var targets []*cfg.Symbol
	if delegate.IsKnown() {
		for _, l := range delegate.Locations() {
			if lambda, ok := l.Lambda(); ok && lambda.Method.Body != nil {
				targets = append(targets, lambda)
			}
		}
	}
	if len(targets) == 0 {
		v.engine.session.metrics.call(callUnresolved)
		return v.skipCall(op, loc.UndefinedPointsTo(), args, v.ctx.Config.Pessimistic)
	}

	saved := v.state
	var (
		state = UnreachableData[V]()
		value = v.dom.Values().Bottom()
		pt    = loc.UndefinedPointsTo()
		kind  lattice.PredicateValueKind
	)
	for i, target := range targets {
		v.state = saved
		val, p := v.invoke(op, target, loc.UndefinedPointsTo(), args, false)
		state = v.dom.Merge(state, v.state)
		value = v.dom.Values().Merge(value, val)
		pt = pt.Join(p)
		if k := v.callKinds[op]; i == 0 {
			kind = k
		} else {
			kind = kind.Merge(k)
		}
	}
	v.state = state
	v.callKinds[op] = kind
	return value, pt
}

// frameDepth is the call depth of the activation owning frame storage, or
// -1 for storage outside any frame.
func frameDepth(e *entity.Entity) int {
	for _, l := range e.Root().Location.Locations() {
		if l.Kind() == loc.KindSymbol || l.Kind() == loc.KindCapture {
			return l.Stack.Depth()
		}
	}
	return -1
}
