package cfg

import (
	"github.com/pkg/errors"
	"github.com/yourbasic/graph"
)

var (
	ErrMissingSuccessor   = errors.New("block has no successor")
	ErrMissingDestination = errors.New("branch has no destination")
	ErrMissingCondition   = errors.New("conditional branch without branch value")
	ErrExitSuccessor      = errors.New("exit block has a successor")
)

func validate(g *Graph) error {
	for _, blk := range g.Blocks {
		if blk.Kind == BlockExit {
			if blk.FallThrough != nil || blk.Conditional != nil {
				return errors.Wrapf(ErrExitSuccessor, "B%d", blk.Ordinal)
			}
			continue
		}
		if blk.FallThrough == nil {
			return errors.Wrapf(ErrMissingSuccessor, "B%d", blk.Ordinal)
		}
		if blk.Conditional != nil && (blk.ConditionKind == CondNone || blk.BranchValue == nil) {
			return errors.Wrapf(ErrMissingCondition, "B%d", blk.Ordinal)
		}
		for _, br := range blk.Successors() {
			switch br.Semantics {
			case BranchRegular, BranchReturn:
				if br.Destination == nil {
					return errors.Wrapf(ErrMissingDestination, "%v", br)
				}
			}
		}
	}
	return nil
}

// asGraph exposes the block structure to graph algorithms. Blocks of a try
// region have an implicit edge to the start of every handler and finally
// region of the corresponding try statement.
func asGraph(g *Graph) *graph.Mutable {
	res := graph.New(len(g.Blocks))
	for _, blk := range g.Blocks {
		for _, br := range blk.Successors() {
			if br.Destination != nil {
				res.Add(blk.Ordinal, br.Destination.Ordinal)
			}
		}
	}

	g.ForEachRegion(func(r *Region) {
		try := r.TryRegion()
		if try == nil {
			return
		}
		var handlers []*Region
		if fin := r.FinallyRegion(); fin != nil {
			handlers = append(handlers, fin)
		}
		handlers = append(handlers, r.Handlers()...)
		for i := try.FirstBlockOrdinal; i <= try.LastBlockOrdinal; i++ {
			for _, h := range handlers {
				res.Add(i, h.FirstBlockOrdinal)
			}
		}
	})
	return res
}

func markReachable(g *Graph) {
	g.Entry().IsReachable = true
	graph.BFS(asGraph(g), 0, func(_, w int, _ int64) {
		g.Blocks[w].IsReachable = true
	})
}

// Reachable lists the ordinals of blocks reachable from the entry block,
// including through exceptional control flow.
func (g *Graph) Reachable() (res []int) {
	for _, blk := range g.Blocks {
		if blk.IsReachable {
			res = append(res, blk.Ordinal)
		}
	}
	return
}
