package dataflow

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/tools/container/intsets"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
	"github.com/cs-au-dk/goat-flow/utils"
)

// session is shared by all activations analyzed for one top-level request.
type session[V any] struct {
	analyzer Analyzer[V]
	dom      *DataDomain[V]
	shared   *AddressSharing
	lambdas  *lambdaTracker
	metrics  *Metrics
	// depth of nested visits and calls.
	depth int
}

func newSession[V any](a Analyzer[V], dom *DataDomain[V], m *Metrics) *session[V] {
	return &session[V]{
		analyzer: a,
		dom:      dom,
		shared:   NewAddressSharing(),
		lambdas:  newLambdaTracker(),
		metrics:  m,
	}
}

// run analyzes one activation to a fixed point.
func (s *session[V]) run(ctx *Context[V]) *Result[V] {
	return newEngine(s, ctx).run()
}

// continuation is a branch suspended while finally region idx of the
// branch runs.
type continuation struct {
	br  *cfg.Branch
	idx int
}

// pass holds the fixed-point state of one traversal of the graph.
type pass[V any] struct {
	exceptional bool

	inputs, outputs     []Data[V]
	hasInput, processed []bool
	// source is the only branch that flowed into a block so far, or
	// manySources once several did.
	source []*cfg.Branch
	// infeasible joins the states of branches into a block that were
	// proven infeasible. They only seed blocks nothing else reaches.
	infeasible []Data[V]
	// Blocks whose input is always merged, because they lie in a loop.
	mergeRequired intsets.Sparse
	worklist      *intsets.Sparse
	pending       *intsets.Sparse

	continuations map[*cfg.Region][]continuation
	throws        *throwMap[V]
	iterations    int
}

type engine[V any] struct {
	ctx     *Context[V]
	session *session[V]
	graph   *cfg.Graph
	visitor *Visitor[V]
	lambdas *lambdaTracker
	loops   loopInfo

	pass *pass[V]
	// dead is set while a block reached only by infeasible branches is
	// evaluated. Its effects do not flow anywhere.
	dead bool

	returnValue    V
	returnPointsTo loc.PointsTo
	returnKind     lattice.PredicateValueKind
	returned       bool

	result *Result[V]
}

func newEngine[V any](s *session[V], ctx *Context[V]) *engine[V] {
	e := &engine[V]{
		ctx:            ctx,
		session:        s,
		graph:          ctx.Graph,
		lambdas:        s.lambdas,
		loops:          computeLoops(ctx.Graph),
		returnValue:    s.dom.Values().Bottom(),
		returnPointsTo: loc.UndefinedPointsTo(),
	}
	e.visitor = newVisitor(e)
	e.result = newResult(ctx, s.dom)
	return e
}

func (e *engine[V]) log() *logrus.Entry {
	return utils.Log().WithFields(logrus.Fields{
		"method": e.ctx.Method,
		"stack":  e.ctx.Stack,
	})
}

func (e *engine[V]) newPass(exceptional bool) *pass[V] {
	n := len(e.graph.Blocks)
	p := &pass[V]{
		exceptional:   exceptional,
		inputs:        make([]Data[V], n),
		outputs:       make([]Data[V], n),
		hasInput:      make([]bool, n),
		processed:     make([]bool, n),
		source:        make([]*cfg.Branch, n),
		infeasible:    make([]Data[V], n),
		worklist:      acquireOrdinals(),
		pending:       acquireOrdinals(),
		continuations: make(map[*cfg.Region][]continuation),
		throws:        newThrowMap(e.session.dom),
	}
	for i := range p.source {
		p.inputs[i] = UnreachableData[V]()
		p.infeasible[i] = UnreachableData[V]()
		p.outputs[i] = UnreachableData[V]()
		p.pending.Insert(i)
	}
	return p
}

func (e *engine[V]) run() *Result[V] {
	defer utils.TimeTrack(time.Now(), fmt.Sprintf("Dataflow analysis of %v", e.ctx))
	timer := e.session.metrics.timer()
	defer timer()

	normal := e.newPass(false)
	defer releaseOrdinals(normal.worklist, normal.pending)
	e.pass = normal
	e.flowInto(0, e.seed(), nil, false)
	e.fixpoint()
	e.result.recordPass(normal)

	if e.graph.HasTryRegion() || e.ctx.Config.ExceptionPaths {
		exc := e.newPass(true)
		defer releaseOrdinals(exc.worklist, exc.pending)
		e.pass = exc
		for i, in := range normal.inputs {
			if normal.hasInput[i] {
				e.flowInto(i, in, nil, true)
			}
		}
		e.fixpoint()
		e.result.recordExceptionPass(exc)
	}

	e.result.recordReturn(e.returnValue, e.returnPointsTo, e.returnKind)
	if e.ctx.IsTopLevel() {
		e.analyzeEscapedLambdas(normal)
		e.result.recordLambdas(e.lambdas)
	}
	return e.result
}

// seed is the state at the entry block.
func (e *engine[V]) seed() Data[V] {
	ipd := e.ctx.Interprocedural
	if ipd == nil {
		return EmptyData[V]()
	}

	state := ipd.Initial.WithReachable(true)
	if e.ctx.Method == nil || e.ctx.Method.Method == nil {
		return state
	}
	f := e.visitor.factory
	for _, p := range e.ctx.Method.Method.Parameters {
		a, ok := ipd.Arguments[p]
		if !ok {
			continue
		}
		pe := f.ForSymbol(p)
		if hasMembers(p.Type) && a.Entity != nil && a.RefKind == cfg.ByValue {
			for _, k := range state.Entities() {
				if k == a.Entity || !k.HasAncestor(a.Entity) {
					continue
				}
				nk := k.Reroot(a.Entity, pe)
				if val, ok := state.Value(k); ok {
					state = state.SetValue(nk, val)
				}
				if pt, ok := state.PointsTo(k); ok {
					state = state.SetPointsTo(nk, pt)
				}
			}
		}
		state = state.SetValue(pe, a.Value).SetPointsTo(pe, a.PointsTo)
		if a.RefKind != cfg.ByValue && a.Entity != nil {
			ipd.Shared.Share(pe, a.Entity)
		}
	}
	return state
}

// fixpoint processes blocks until no input changes. Blocks nothing flowed
// into are still evaluated once, from the states of the infeasible
// branches into them, if any.
func (e *engine[V]) fixpoint() {
	p := e.pass
	for {
		var b int
		dead := false
		if !p.worklist.TakeMin(&b) {
			if !p.pending.TakeMin(&b) {
				break
			}
			if !p.hasInput[b] {
				p.inputs[b] = e.seedHandler(b)
				dead = !p.inputs[b].IsReachable() && p.infeasible[b].IsReachable()
			}
		} else if e.awaitCatches(b) {
			continue
		}
		p.pending.Remove(b)
		p.iterations++
		if dead {
			e.processDead(e.graph.Blocks[b])
			continue
		}
		e.process(e.graph.Blocks[b])
	}
	e.session.metrics.pass(p.exceptional, p.iterations)
}

// awaitCatches holds back the block b starting a finally region until the
// catch blocks of the corresponding try region ran once. It re-queues
// those that did not, and b after them, and reports whether it did.
func (e *engine[V]) awaitCatches(b int) bool {
	p := e.pass
	r := e.graph.Blocks[b].EnclosingRegion
	if r == nil || r.Kind != cfg.RegionFinally || r.FirstBlockOrdinal != b || r.Enclosing == nil {
		return false
	}
	try := r.Enclosing.TryRegion()
	if try == nil {
		return false
	}

	waiting := false
	var visit func(*cfg.Region)
	visit = func(n *cfg.Region) {
		for _, c := range n.Nested {
			if h := c.FirstBlockOrdinal; c.IsHandler() && !p.processed[h] {
				if !p.hasInput[h] {
					p.inputs[h] = e.seedHandler(h)
				}
				p.worklist.Insert(h)
				waiting = true
			}
			visit(c)
		}
	}
	visit(try)
	if waiting {
		p.worklist.Insert(b)
	}
	return waiting
}

// seedHandler is the input of a block no state flowed into. Catch blocks
// may still be reached by exceptions raised in code that was not
// analyzed; they start from the join of the states in the try region.
func (e *engine[V]) seedHandler(b int) Data[V] {
	p := e.pass
	res := UnreachableData[V]()
	r := e.graph.Blocks[b].EnclosingRegion
	if r == nil || !r.IsHandler() || r.FirstBlockOrdinal != b || r.Enclosing == nil {
		return res
	}
	try := r.Enclosing.TryRegion()
	if try == nil {
		return res
	}
	for i := try.FirstBlockOrdinal; i <= try.LastBlockOrdinal; i++ {
		if p.processed[i] {
			res = e.session.dom.Merge(res, p.inputs[i])
			res = e.session.dom.Merge(res, p.outputs[i])
		}
	}
	return res
}

func (e *engine[V]) process(b *cfg.BasicBlock) {
	p, v := e.pass, e.visitor
	input := p.inputs[b.Ordinal]
	p.processed[b.Ordinal] = true

	if !input.IsReachable() {
		p.outputs[b.Ordinal] = input
		return
	}

	v.block, v.state = b, input
	e.session.metrics.block()
	e.log().WithField("block", b.Ordinal).WithField("iteration", p.iterations).Trace("Processing block")

	for _, op := range b.Operations {
		if p.exceptional && mayThrow(op) {
			e.raise(cfg.Exception, v.state)
		}
		v.visit(op)
	}
	if bv := b.BranchValue; bv != nil {
		if p.exceptional && mayThrow(bv) {
			e.raise(cfg.Exception, v.state)
		}
		v.visit(bv)
	}

	output := v.state
	if e.ctx.Config.DebugChecks && p.outputs[b.Ordinal].IsReachable() && output.IsReachable() &&
		e.session.dom.Compare(p.outputs[b.Ordinal], output) == 1 {
		panic(fmt.Errorf("output of %v regressed in %v:\n%v\n⋢\n%v", b, e.ctx, p.outputs[b.Ordinal], output))
	}
	p.outputs[b.Ordinal] = output
	if !output.IsReachable() {
		return
	}

	if b.Conditional != nil {
		want := b.ConditionKind != cfg.CondWhenFalse
		e.flowConditional(b.Conditional, want)
		e.flowConditional(b.FallThrough, !want)
		return
	}

	br := b.FallThrough
	if br == nil {
		return
	}
	switch br.Semantics {
	case cfg.BranchRegular:
		e.flowBranch(br, output)
	case cfg.BranchReturn:
		e.recordReturn(b, output)
		e.flowBranch(br, output)
	case cfg.BranchThrow:
		e.raise(b.BranchValue.Type, output)
	case cfg.BranchRethrow:
		typ := cfg.Exception
		if c := enclosingCatch(b.EnclosingRegion); c != nil && c.ExceptionType != nil {
			typ = c.ExceptionType
		}
		e.raise(typ, output)
	case cfg.BranchStructuredExceptionHandling:
		e.endFinally(b, output)
	}
}

// mayThrow holds for operations with a subexpression that may raise an
// exception.
func mayThrow(op *cfg.Operation) (res bool) {
	op.Walk(func(o *cfg.Operation) {
		res = res || o.MayThrow()
	})
	return
}

// processDead evaluates a block reached only by infeasible branches, so
// that its operations get values. The block stays unreachable, and its
// output only seeds its successors in the same way.
func (e *engine[V]) processDead(b *cfg.BasicBlock) {
	p, v := e.pass, e.visitor
	p.processed[b.Ordinal] = true
	e.log().WithField("block", b.Ordinal).Trace("Evaluating unreachable block")

	e.dead = true
	defer func() { e.dead = false }()

	v.block, v.state = b, p.infeasible[b.Ordinal]
	for _, op := range b.Operations {
		v.visit(op)
	}
	if bv := b.BranchValue; bv != nil {
		v.visit(bv)
	}
	for _, br := range b.Successors() {
		if br.Destination != nil {
			e.recordInfeasible(br, v.state)
		}
	}
}

// recordInfeasible remembers the state along a branch that is never taken.
func (e *engine[V]) recordInfeasible(br *cfg.Branch, state Data[V]) {
	p, dst := e.pass, br.Destination.Ordinal
	if p.hasInput[dst] || p.processed[dst] || !state.IsReachable() {
		return
	}
	p.infeasible[dst] = e.session.dom.Merge(p.infeasible[dst], e.leave(br, state))
}

// flowConditional follows a branch taken when the branch value of its
// source evaluates to want.
func (e *engine[V]) flowConditional(br *cfg.Branch, want bool) {
	if br == nil {
		return
	}
	state, kind := e.visitor.assume(br.Source.BranchValue, want)
	if kind == lattice.PredicateAlwaysFalse {
		e.log().WithField("branch", br).Debug("Infeasible branch")
		if br.Destination != nil {
			e.recordInfeasible(br, e.visitor.state)
		}
		return
	}
	e.flowBranch(br, state)
}

// flowBranch propagates state along a branch, through the finally regions
// it runs on the way.
func (e *engine[V]) flowBranch(br *cfg.Branch, state Data[V]) {
	if br.Destination == nil {
		return
	}
	if br.IsBackEdge() {
		dst := br.Destination.Ordinal
		for i := dst; i <= e.loops.Extent(dst); i++ {
			e.pass.mergeRequired.Insert(i)
		}
	}
	if len(br.FinallyRegions) > 0 {
		e.enterFinally(continuation{br, 0}, state)
		return
	}
	e.flowInto(br.Destination.Ordinal, e.leave(br, state), br, false)
}

func (e *engine[V]) enterFinally(c continuation, state Data[V]) {
	p := e.pass
	fin := c.br.FinallyRegions[c.idx]
	known := false
	for _, o := range p.continuations[fin] {
		known = known || o == c
	}
	if !known {
		p.continuations[fin] = append(p.continuations[fin], c)
		// The finally region may already be done with its current input.
		if end := fin.LastBlockOrdinal; p.processed[end] && p.outputs[end].IsReachable() {
			e.resume(c, p.outputs[end])
		}
	}
	e.flowInto(fin.FirstBlockOrdinal, state, nil, true)
}

// resume continues a suspended branch after its finally region ran.
func (e *engine[V]) resume(c continuation, state Data[V]) {
	if c.idx+1 < len(c.br.FinallyRegions) {
		e.enterFinally(continuation{c.br, c.idx + 1}, state)
		return
	}
	e.flowInto(c.br.Destination.Ordinal, e.leave(c.br, state), nil, true)
}

// endFinally resumes everything that waited for a finally region.
func (e *engine[V]) endFinally(b *cfg.BasicBlock, state Data[V]) {
	fin := enclosingFinally(b.EnclosingRegion)
	if fin == nil {
		return
	}
	for _, c := range e.pass.continuations[fin] {
		e.resume(c, state)
	}
	for _, k := range e.pass.throws.routedThrough(fin) {
		e.raiseFrom(fin.Enclosing, k.Type, state)
	}
}

// leave drops the locals of the regions a branch exits.
func (e *engine[V]) leave(br *cfg.Branch, state Data[V]) Data[V] {
	for _, r := range br.LeavingRegions {
		for _, l := range r.Locals {
			le := e.visitor.factory.ForSymbol(l)
			for _, k := range state.Entities() {
				if k == le || k.HasAncestor(le) {
					state = state.invalidatePredicates(k).Delete(k)
				}
			}
			state = state.invalidatePredicates(le)
		}
	}
	return state
}

// raise dispatches an exception raised in the current block.
func (e *engine[V]) raise(typ *cfg.Type, state Data[V]) {
	e.raiseFrom(e.visitor.block.EnclosingRegion, typ, state)
}

func (e *engine[V]) raiseFrom(r *cfg.Region, typ *cfg.Type, state Data[V]) {
	if e.dead || !state.IsReachable() {
		return
	}
	p := e.pass
	for _, k := range handlerTargets(r, typ, e.ctx.Stack) {
		_, seen := p.throws.entries[k]
		p.throws.record(k, state)
		if k.IsUnhandled() {
			continue
		}
		if fin := k.Finally; fin != nil && !seen {
			if end := fin.LastBlockOrdinal; p.processed[end] && p.outputs[end].IsReachable() {
				e.raiseFrom(fin.Enclosing, typ, p.outputs[end])
			}
		}
		e.flowInto(k.target(), state, nil, true)
	}
}

// manySources marks blocks that more than one branch flowed into.
var manySources = &cfg.Branch{}

// flowInto merges state into the input of a block and schedules the block
// if its input changed. A state arriving by the same branch as the only
// previous one replaces it, unless force is set or the block lies in a
// loop. from is nil for flows that are not along a single branch.
func (e *engine[V]) flowInto(dst int, state Data[V], from *cfg.Branch, force bool) {
	p, dom := e.pass, e.session.dom
	if !state.IsReachable() {
		return
	}
	if !p.hasInput[dst] {
		p.inputs[dst], p.hasInput[dst] = state, true
		p.source[dst] = from
		if force || from == nil {
			p.source[dst] = manySources
		}
		p.worklist.Insert(dst)
		return
	}

	next := state
	if force || from == nil || p.source[dst] != from || p.mergeRequired.Has(dst) {
		next = dom.Merge(p.inputs[dst], state)
		p.source[dst] = manySources
	}
	if p.processed[dst] && dom.Compare(next, p.inputs[dst]) == 0 {
		return
	}
	if e.ctx.Config.DebugChecks && next.IsReachable() && dom.Compare(p.inputs[dst], next) == 1 && p.source[dst] == manySources {
		panic(fmt.Errorf("input of B%d regressed in %v:\n%v\n⋢\n%v", dst, e.ctx, p.inputs[dst], next))
	}
	p.inputs[dst] = next
	p.worklist.Insert(dst)
}

// recordReturn accumulates the returned value of a block.
func (e *engine[V]) recordReturn(b *cfg.BasicBlock, state Data[V]) {
	bv := b.BranchValue
	if bv == nil {
		return
	}
	v := e.visitor
	val, pt := v.ValueOf(bv), v.PointsToOf(bv)
	if e.ctx.IsTopLevel() {
		v.escapeLambdas(pt)
	}

	kind := lattice.PredicateUnknown
	if bv.Type == cfg.Bool {
		v.state = state
		_, kt := v.assume(bv, true)
		_, kf := v.assume(bv, false)
		switch {
		case kt == lattice.PredicateAlwaysFalse:
			kind = lattice.PredicateAlwaysFalse
		case kf == lattice.PredicateAlwaysFalse:
			kind = lattice.PredicateAlwaysTrue
		}
	}

	e.returnValue = e.session.dom.Values().Merge(e.returnValue, val)
	e.returnPointsTo = e.returnPointsTo.Join(pt)
	if e.returned {
		e.returnKind = e.returnKind.Merge(kind)
	} else {
		e.returnKind, e.returned = kind, true
	}
}

// recordOperation stores the value of an operation in the result.
func (e *engine[V]) recordOperation(op *cfg.Operation, val V, pt loc.PointsTo) {
	e.result.recordOperation(op, val, pt)
}

// analyzeEscapedLambdas analyzes the lambdas that escaped the top-level
// method on their own, starting from the join of every state of the method.
func (e *engine[V]) analyzeEscapedLambdas(normal *pass[V]) {
	initial := UnreachableData[V]()
	for i, out := range normal.outputs {
		if normal.processed[i] {
			initial = e.session.dom.Merge(initial, out)
		}
	}
	if !initial.IsReachable() {
		return
	}

	done := make(map[*cfg.Symbol]bool)
	for {
		var next *cfg.Symbol
		for _, l := range e.lambdas.escapedLambdas() {
			if !done[l] && l.Method != nil && l.Method.Body != nil {
				next = l
				break
			}
		}
		if next == nil {
			return
		}
		done[next] = true

		ctx := &Context[V]{
			Graph:  next.Method.Body,
			Method: next,
			Config: e.ctx.Config,
			Stack:  e.ctx.Stack,
			Interprocedural: &InterproceduralData[V]{
				Initial: initial,
				This:    loc.UndefinedPointsTo(),
				Shared:  e.session.shared,
			},
			Oracle: e.ctx.Oracle,
			Parent: e.ctx,
		}
		e.log().WithField("lambda", next).Debug("Analyzing escaped lambda")
		e.result.recordStandalone(next, e.session.run(ctx))
	}
}
