package cfg

import (
	"fmt"
	"strings"

	"github.com/cs-au-dk/goat-flow/utils/dot"
)

// Visualize creates a dot graph of the CFG. Regions become clusters. The
// annotate callback, if not nil, supplies extra text for each block, e.g.
// the analysis state at its exit.
func (g *Graph) Visualize(annotate func(*BasicBlock) string) *dot.DotGraph {
	G := &dot.DotGraph{
		Title: g.Method.String(),
		Options: map[string]string{
			"rankdir": "TB",
			"minlen":  "1",
			"nodesep": "0.4",
		},
	}

	nodes := make([]*dot.DotNode, len(g.Blocks))
	for i, blk := range g.Blocks {
		var label strings.Builder
		fmt.Fprintf(&label, "%s %s\\l", blk, blk.Kind)
		for _, op := range blk.Operations {
			fmt.Fprintf(&label, "%s\\l", op)
		}
		if blk.BranchValue != nil {
			fmt.Fprintf(&label, "[%s]\\l", blk.BranchValue)
		}
		if annotate != nil {
			if extra := annotate(blk); extra != "" {
				label.WriteString(strings.ReplaceAll(extra, "\n", "\\l") + "\\l")
			}
		}

		attrs := dot.DotAttrs{"label": label.String()}
		if !blk.IsReachable {
			attrs["fillcolor"] = "lightgray"
		}
		nodes[i] = &dot.DotNode{ID: blk.String(), Attrs: attrs}
	}

	var cluster func(r *Region) *dot.DotCluster
	cluster = func(r *Region) *dot.DotCluster {
		c := dot.NewDotCluster(fmt.Sprintf("%s_%d_%d", r.Kind, r.FirstBlockOrdinal, r.LastBlockOrdinal))
		c.Attrs["label"] = r.Kind.String()
		c.Attrs["style"] = "dashed"
		for _, n := range r.Nested {
			nc := cluster(n)
			c.Clusters[nc.ID] = nc
		}
		return c
	}
	clusters := make(map[*Region]*dot.DotCluster)
	var index func(*Region, *dot.DotCluster)
	index = func(r *Region, c *dot.DotCluster) {
		clusters[r] = c
		for _, n := range r.Nested {
			id := fmt.Sprintf("%s_%d_%d", n.Kind, n.FirstBlockOrdinal, n.LastBlockOrdinal)
			index(n, c.Clusters[id])
		}
	}
	for _, r := range g.Root.Nested {
		c := cluster(r)
		G.Clusters = append(G.Clusters, c)
		index(r, c)
	}

	for i, blk := range g.Blocks {
		if c, ok := clusters[blk.EnclosingRegion]; ok {
			c.Nodes = append(c.Nodes, nodes[i])
		} else {
			G.Nodes = append(G.Nodes, nodes[i])
		}
	}

	for _, blk := range g.Blocks {
		for _, br := range blk.Successors() {
			if br.Destination == nil {
				continue
			}
			attrs := dot.DotAttrs{}
			if br.IsConditional {
				attrs["label"] = blk.ConditionKind.String()
				attrs["color"] = "darkgreen"
			}
			if br.Semantics == BranchReturn {
				attrs["style"] = "dashed"
			}
			G.Edges = append(G.Edges, &dot.DotEdge{
				From:  nodes[blk.Ordinal],
				To:    nodes[br.Destination.Ordinal],
				Attrs: attrs,
			})
		}
	}

	return G
}
