package cfg

import (
	"bytes"
	"strings"
	"testing"
)

func TestVisualizeDiamond(t *testing.T) {
	g, _ := diamond()
	dg := g.Visualize(func(b *BasicBlock) string {
		if b.Kind == BlockExit {
			return "done\nhere"
		}
		return ""
	})

	if n := dg.CountNodes(); n != len(g.Blocks) {
		t.Errorf("expected %d nodes, got %d", len(g.Blocks), n)
	}
	if n := len(dg.Edges); n != 6 {
		t.Errorf("expected 6 edges, got %d", n)
	}
	if len(dg.Clusters) != 0 {
		t.Errorf("diamond has no nested regions, got %d clusters", len(dg.Clusters))
	}

	var buf bytes.Buffer
	if err := dg.WriteDot(&buf); err != nil {
		t.Fatal(err)
	}
	src := buf.String()
	for _, want := range []string{"digraph ControlFlowGraph", `"B1" -> "B2"`, `"B4" -> "B5"`, `done\\lhere\\l`} {
		if !strings.Contains(src, want) {
			t.Errorf("dot source does not contain %q:\n%s", want, src)
		}
	}
}

func TestVisualizeRegions(t *testing.T) {
	m := NewMethod(nil, "guarded", nil)
	x := NewLocal(m, "x", Int)

	b := NewBuilder(m)
	b.BeginRegion(RegionTryAndFinally)
	b.BeginRegion(RegionTry)
	try := b.NewBlock()
	b.EndRegion()
	b.BeginRegion(RegionFinally)
	fin := b.NewBlock()
	b.EndRegion()
	b.EndRegion()
	after := b.NewBlock()

	b.Goto(b.Entry(), try)
	b.Add(try, Assign(Local(x), IntLit(1)))
	b.Goto(try, after)
	b.Add(fin, Assign(Local(x), IntLit(2)))
	b.EndFinally(fin)
	b.Return(after, nil)

	g := b.MustBuild()
	dg := g.Visualize(nil)
	if len(dg.Clusters) != 1 {
		t.Fatalf("expected the try-finally region as the only top-level cluster, got %d", len(dg.Clusters))
	}
	outer := dg.Clusters[0]
	if nested := outer.SortedClusters(); len(nested) != 2 {
		t.Errorf("expected try and finally clusters, got %d", len(nested))
	}
	if n := dg.CountNodes(); n != len(g.Blocks) {
		t.Errorf("every block should be drawn once, got %d nodes", n)
	}
}
