package cfg

import (
	"fmt"
)

// BlockKind distinguishes the unique entry and exit blocks of a graph.
type BlockKind int

const (
	BlockNormal BlockKind = iota
	BlockEntry
	BlockExit
)

func (k BlockKind) String() string {
	switch k {
	case BlockEntry:
		return "Entry"
	case BlockExit:
		return "Exit"
	}
	return "Block"
}

// ConditionKind of a block tells when its conditional successor is taken.
type ConditionKind int

const (
	CondNone ConditionKind = iota
	CondWhenFalse
	CondWhenTrue
)

func (k ConditionKind) String() string {
	switch k {
	case CondWhenFalse:
		return "WhenFalse"
	case CondWhenTrue:
		return "WhenTrue"
	}
	return "None"
}

// BranchSemantics classifies a control transfer.
type BranchSemantics int

const (
	BranchRegular BranchSemantics = iota
	BranchReturn
	BranchThrow
	BranchRethrow
	// BranchStructuredExceptionHandling ends a finally or filter region.
	// The continuation is decided at runtime.
	BranchStructuredExceptionHandling
	BranchNone
)

func (s BranchSemantics) String() string {
	switch s {
	case BranchRegular:
		return "Regular"
	case BranchReturn:
		return "Return"
	case BranchThrow:
		return "Throw"
	case BranchRethrow:
		return "Rethrow"
	case BranchStructuredExceptionHandling:
		return "StructuredExceptionHandling"
	}
	return "None"
}

// Branch is an edge between two blocks.
type Branch struct {
	Source      *BasicBlock
	Destination *BasicBlock
	Semantics   BranchSemantics
	// IsConditional holds for the conditional successor of a block.
	IsConditional bool
	// LeavingRegions lists the regions exited by the branch, innermost first.
	LeavingRegions []*Region
	// FinallyRegions lists the finally regions that run before the
	// destination is reached, innermost first.
	FinallyRegions []*Region
}

// IsBackEdge holds for branches to a block with a lower or equal ordinal.
func (b *Branch) IsBackEdge() bool {
	return b.Destination != nil && b.Destination.Ordinal <= b.Source.Ordinal
}

func (b *Branch) String() string {
	dst := "∅"
	if b.Destination != nil {
		dst = fmt.Sprintf("B%d", b.Destination.Ordinal)
	}
	return fmt.Sprintf("B%d -%s-> %s", b.Source.Ordinal, b.Semantics, dst)
}

// RegionKind of a structured region.
type RegionKind int

const (
	RegionRoot RegionKind = iota
	RegionLocalLifetime
	RegionTry
	RegionCatch
	RegionFilter
	RegionFinally
	RegionTryAndCatch
	RegionTryAndFinally
	RegionFilterAndHandler
)

var regionKindNames = [...]string{"Root", "LocalLifetime", "Try", "Catch", "Filter", "Finally", "TryAndCatch", "TryAndFinally", "FilterAndHandler"}

func (k RegionKind) String() string {
	return regionKindNames[k]
}

// Region is a contiguous range of blocks with structured semantics.
type Region struct {
	Kind      RegionKind
	Enclosing *Region
	Nested    []*Region
	// FirstBlockOrdinal and LastBlockOrdinal delimit the region, inclusive.
	FirstBlockOrdinal, LastBlockOrdinal int
	// ExceptionType caught by Catch and FilterAndHandler regions. Nil
	// catches everything.
	ExceptionType *Type
	// Locals whose lifetime is the region.
	Locals []*Symbol
}

func (r *Region) String() string {
	return fmt.Sprintf("%s[B%d..B%d]", r.Kind, r.FirstBlockOrdinal, r.LastBlockOrdinal)
}

// Contains checks whether the block with the given ordinal lies in r.
func (r *Region) Contains(ordinal int) bool {
	return r.FirstBlockOrdinal <= ordinal && ordinal <= r.LastBlockOrdinal
}

// Encloses checks whether o is r or nested (transitively) in r.
func (r *Region) Encloses(o *Region) bool {
	for ; o != nil; o = o.Enclosing {
		if o == r {
			return true
		}
	}
	return false
}

// IsHandler holds for regions entered only through exceptions.
func (r *Region) IsHandler() bool {
	switch r.Kind {
	case RegionCatch, RegionFilter, RegionFilterAndHandler:
		return true
	}
	return false
}

// TryRegion is the try part of a TryAndCatch or TryAndFinally region.
func (r *Region) TryRegion() *Region {
	if r.Kind != RegionTryAndCatch && r.Kind != RegionTryAndFinally {
		return nil
	}
	for _, n := range r.Nested {
		if n.Kind == RegionTry {
			return n
		}
	}
	return nil
}

// FinallyRegion is the finally part of a TryAndFinally region.
func (r *Region) FinallyRegion() *Region {
	if r.Kind != RegionTryAndFinally {
		return nil
	}
	for _, n := range r.Nested {
		if n.Kind == RegionFinally {
			return n
		}
	}
	return nil
}

// Handlers are the catch and filter-and-handler parts of a TryAndCatch
// region, in declaration order.
func (r *Region) Handlers() (res []*Region) {
	if r.Kind != RegionTryAndCatch {
		return nil
	}
	for _, n := range r.Nested {
		if n.Kind == RegionCatch || n.Kind == RegionFilterAndHandler {
			res = append(res, n)
		}
	}
	return
}

// BasicBlock is a maximal straight-line sequence of operations.
type BasicBlock struct {
	Kind    BlockKind
	Ordinal int
	// Operations are statement-level roots.
	Operations []*Operation
	// BranchValue is the branch condition, the returned value, or the
	// thrown exception depending on how the block is left.
	BranchValue   *Operation
	ConditionKind ConditionKind
	FallThrough   *Branch
	Conditional   *Branch
	Predecessors  []*Branch

	EnclosingRegion *Region
	IsReachable     bool

	graph *Graph
}

// Graph is the owning graph of the block.
func (b *BasicBlock) Graph() *Graph {
	return b.graph
}

// Successors lists the outgoing branches; the conditional one first.
func (b *BasicBlock) Successors() (res []*Branch) {
	if b.Conditional != nil {
		res = append(res, b.Conditional)
	}
	if b.FallThrough != nil {
		res = append(res, b.FallThrough)
	}
	return
}

func (b *BasicBlock) String() string {
	return fmt.Sprintf("B%d", b.Ordinal)
}

// Graph is the control flow graph of one method, lambda or local function.
type Graph struct {
	Method *Symbol
	Blocks []*BasicBlock
	Root   *Region
	// Parent is the graph of the enclosing method for lambdas and local
	// functions.
	Parent *Graph
	// LValueCaptures are flow capture identifiers that denote storage
	// rather than values.
	LValueCaptures map[int]bool

	ops []*Operation
}

// Entry is the unique entry block.
func (g *Graph) Entry() *BasicBlock {
	return g.Blocks[0]
}

// Exit is the unique exit block.
func (g *Graph) Exit() *BasicBlock {
	return g.Blocks[len(g.Blocks)-1]
}

// Operation retrieves an operation by identifier.
func (g *Graph) Operation(id int) *Operation {
	return g.ops[id]
}

// Operations lists all operations of the graph (including nested ones)
// by identifier.
func (g *Graph) Operations() []*Operation {
	return g.ops
}

// HasTryRegion checks whether any exception handling region exists.
func (g *Graph) HasTryRegion() bool {
	var visit func(*Region) bool
	visit = func(r *Region) bool {
		if r.Kind == RegionTryAndCatch || r.Kind == RegionTryAndFinally {
			return true
		}
		for _, n := range r.Nested {
			if visit(n) {
				return true
			}
		}
		return false
	}
	return visit(g.Root)
}

// ForEachRegion visits every region in pre-order.
func (g *Graph) ForEachRegion(do func(*Region)) {
	var visit func(*Region)
	visit = func(r *Region) {
		do(r)
		for _, n := range r.Nested {
			visit(n)
		}
	}
	visit(g.Root)
}

// IsLValueCapture holds for captures that denote storage.
func (g *Graph) IsLValueCapture(id int) bool {
	return g.LValueCaptures[id]
}

func (g *Graph) String() string {
	return fmt.Sprintf("cfg(%s)", g.Method)
}
