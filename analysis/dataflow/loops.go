package dataflow

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
)

// loopInfo maps every block to the extent of the loop it heads: the largest
// ordinal of its strongly connected component, extended to the end of any
// finally region run from within the loop. Blocks outside loops extend to
// themselves.
type loopInfo struct {
	extent []int
}

func computeLoops(g *cfg.Graph) loopInfo {
	dg := simple.NewDirectedGraph()
	for _, blk := range g.Blocks {
		dg.AddNode(simple.Node(blk.Ordinal))
	}
	edge := func(from, to int) {
		if from != to {
			dg.SetEdge(dg.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}

	for _, blk := range g.Blocks {
		for _, br := range blk.Successors() {
			if br.Destination == nil {
				continue
			}
			// Control passes through every finally region on the way.
			prev := blk.Ordinal
			for _, fin := range br.FinallyRegions {
				edge(prev, fin.FirstBlockOrdinal)
				prev = fin.LastBlockOrdinal
			}
			edge(prev, br.Destination.Ordinal)
		}
	}

	info := loopInfo{extent: make([]int, len(g.Blocks))}
	for i := range info.extent {
		info.extent[i] = i
	}
	for _, scc := range topo.TarjanSCC(dg) {
		if len(scc) < 2 {
			continue
		}
		last := -1
		for _, n := range scc {
			if int(n.ID()) > last {
				last = int(n.ID())
			}
		}
		for _, n := range scc {
			info.extent[n.ID()] = last
		}
	}

	// Extend through finally regions of try statements overlapping the loop.
	var tries []*cfg.Region
	g.ForEachRegion(func(r *cfg.Region) {
		if r.Kind == cfg.RegionTryAndFinally {
			tries = append(tries, r)
		}
	})
	for i, ext := range info.extent {
		if ext == i {
			continue
		}
		for changed := true; changed; {
			changed = false
			for _, r := range tries {
				try, fin := r.TryRegion(), r.FinallyRegion()
				if try == nil || fin == nil || fin.LastBlockOrdinal <= ext {
					continue
				}
				if try.FirstBlockOrdinal <= ext && i <= try.LastBlockOrdinal {
					ext, changed = fin.LastBlockOrdinal, true
				}
			}
		}
		info.extent[i] = ext
	}
	return info
}

// Extent is the largest ordinal of the loop headed by the given block.
func (l loopInfo) Extent(ordinal int) int {
	return l.extent[ordinal]
}
