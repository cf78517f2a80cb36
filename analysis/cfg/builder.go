package cfg

import (
	"github.com/pkg/errors"
)

// Builder constructs graphs block by block. Blocks receive ordinals in
// creation order; the exit block is created by Build and receives the last
// ordinal. Regions are opened and closed around the blocks they contain, so
// they are contiguous by construction.
type Builder struct {
	g       *Graph
	open    []*Region
	pending []*Branch
	capture int
	built   bool
}

// NewBuilder starts a graph for the given method. The entry block is
// created immediately.
func NewBuilder(method *Symbol) *Builder {
	b := &Builder{
		g: &Graph{
			Method:         method,
			Root:           &Region{Kind: RegionRoot},
			LValueCaptures: make(map[int]bool),
		},
	}
	b.open = []*Region{b.g.Root}
	entry := b.newBlock()
	entry.Kind = BlockEntry
	return b
}

// WithParent marks the graph as nested in the graph of its enclosing method.
func (b *Builder) WithParent(parent *Graph) *Builder {
	b.g.Parent = parent
	return b
}

func (b *Builder) Entry() *BasicBlock {
	return b.g.Blocks[0]
}

func (b *Builder) newBlock() *BasicBlock {
	blk := &BasicBlock{
		Ordinal:         len(b.g.Blocks),
		EnclosingRegion: b.open[len(b.open)-1],
		graph:           b.g,
	}
	b.g.Blocks = append(b.g.Blocks, blk)
	return blk
}

// NewBlock appends a block to the innermost open region.
func (b *Builder) NewBlock() *BasicBlock {
	return b.newBlock()
}

// NewCapture allocates a fresh flow capture identifier.
func (b *Builder) NewCapture() int {
	b.capture++
	return b.capture
}

func (b *Builder) register(blk *BasicBlock, root *Operation) {
	var visit func(parent, op *Operation)
	visit = func(parent, op *Operation) {
		op.ID = len(b.g.ops)
		op.Parent = parent
		op.Block = blk
		b.g.ops = append(b.g.ops, op)
		for _, c := range op.Children() {
			visit(op, c)
		}
	}
	visit(nil, root)
}

// Add appends statement-level operations to a block.
func (b *Builder) Add(blk *BasicBlock, ops ...*Operation) {
	for _, op := range ops {
		b.register(blk, op)
		blk.Operations = append(blk.Operations, op)
	}
}

func (b *Builder) branch(from, to *BasicBlock, sem BranchSemantics) *Branch {
	br := &Branch{Source: from, Destination: to, Semantics: sem}
	from.FallThrough = br
	return br
}

// Goto ends a block with an unconditional jump.
func (b *Builder) Goto(from, to *BasicBlock) {
	b.branch(from, to, BranchRegular)
}

// Branch ends a block with a two-way branch on cond.
func (b *Builder) Branch(from *BasicBlock, cond *Operation, whenTrue, whenFalse *BasicBlock) {
	b.register(from, cond)
	from.BranchValue = cond
	from.ConditionKind = CondWhenTrue
	from.Conditional = &Branch{Source: from, Destination: whenTrue, Semantics: BranchRegular, IsConditional: true}
	b.branch(from, whenFalse, BranchRegular)
}

// Return ends a block by returning value (nil for no value).
func (b *Builder) Return(from *BasicBlock, value *Operation) {
	if value != nil {
		b.register(from, value)
		from.BranchValue = value
	}
	b.pending = append(b.pending, b.branch(from, nil, BranchReturn))
}

// Throw ends a block by raising the exception produced by exc.
func (b *Builder) Throw(from *BasicBlock, exc *Operation) {
	b.register(from, exc)
	from.BranchValue = exc
	b.branch(from, nil, BranchThrow)
}

// Rethrow ends a catch block by re-raising the caught exception.
func (b *Builder) Rethrow(from *BasicBlock) {
	b.branch(from, nil, BranchRethrow)
}

// EndFinally ends the last block of a finally region.
func (b *Builder) EndFinally(from *BasicBlock) {
	b.branch(from, nil, BranchStructuredExceptionHandling)
}

// BeginRegion opens a region nested in the innermost open region. The
// region starts at the next created block.
func (b *Builder) BeginRegion(kind RegionKind) *Region {
	outer := b.open[len(b.open)-1]
	r := &Region{
		Kind:              kind,
		Enclosing:         outer,
		FirstBlockOrdinal: len(b.g.Blocks),
		LastBlockOrdinal:  -1,
	}
	outer.Nested = append(outer.Nested, r)
	b.open = append(b.open, r)
	return r
}

// BeginCatch opens a catch region for exceptions of type typ.
func (b *Builder) BeginCatch(typ *Type) *Region {
	r := b.BeginRegion(RegionCatch)
	r.ExceptionType = typ
	return r
}

// EndRegion closes the innermost open region.
func (b *Builder) EndRegion() *Region {
	if len(b.open) == 1 {
		panic("EndRegion without matching BeginRegion")
	}
	r := b.open[len(b.open)-1]
	r.LastBlockOrdinal = len(b.g.Blocks) - 1
	b.open = b.open[:len(b.open)-1]
	return r
}

// Build finalizes the graph: it creates the exit block, resolves returns,
// computes predecessors, regions left by each branch, reachability and
// l-value captures, and validates the result.
func (b *Builder) Build() (*Graph, error) {
	if b.built {
		return nil, errors.New("graph already built")
	}
	if len(b.open) != 1 {
		return nil, errors.Errorf("%d regions left open", len(b.open)-1)
	}
	b.built = true

	g := b.g
	exit := b.newBlock()
	exit.Kind = BlockExit
	g.Root.FirstBlockOrdinal = 0
	g.Root.LastBlockOrdinal = exit.Ordinal

	for _, br := range b.pending {
		br.Destination = exit
	}

	var err error
	g.ForEachRegion(func(r *Region) {
		if err == nil && r.LastBlockOrdinal < r.FirstBlockOrdinal {
			err = errors.Errorf("region %v is empty", r.Kind)
		}
	})
	if err != nil {
		return nil, err
	}

	for _, blk := range g.Blocks {
		for _, br := range blk.Successors() {
			if br.Destination != nil {
				br.Destination.Predecessors = append(br.Destination.Predecessors, br)
			}
			computeLeftRegions(br)
		}
	}

	for _, op := range g.ops {
		if op.Kind == OpFlowCaptureRef && op.IsLValue() {
			g.LValueCaptures[op.CaptureID] = true
		}
	}

	if err := validate(g); err != nil {
		return nil, errors.Wrapf(err, "malformed graph for %v", g.Method)
	}
	markReachable(g)

	if g.Method != nil && g.Method.Method != nil {
		g.Method.Method.Body = g
	}
	return g, nil
}

// computeLeftRegions determines the regions a branch exits and the finally
// regions that run on the way, innermost first.
func computeLeftRegions(br *Branch) {
	if br.Destination == nil {
		return
	}
	dst := br.Destination.Ordinal
	for r := br.Source.EnclosingRegion; r != nil && !r.Contains(dst); r = r.Enclosing {
		br.LeavingRegions = append(br.LeavingRegions, r)
		if r.Kind == RegionTry && r.Enclosing != nil && r.Enclosing.Kind == RegionTryAndFinally {
			if fin := r.Enclosing.FinallyRegion(); fin != nil {
				br.FinallyRegions = append(br.FinallyRegions, fin)
			}
		}
	}
}

// MustBuild is Build for statically known graphs; it panics on malformed input.
func (b *Builder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
