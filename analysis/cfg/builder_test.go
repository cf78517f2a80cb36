package cfg

import (
	"errors"
	"strings"
	"testing"
)

func diamond() (*Graph, *Symbol) {
	m := NewMethod(nil, "diamond", nil)
	c := m.AddParameter("c", Bool, ByValue)
	x := NewLocal(m, "x", Int)

	b := NewBuilder(m)
	b1, b2, b3, join := b.NewBlock(), b.NewBlock(), b.NewBlock(), b.NewBlock()
	b.Goto(b.Entry(), b1)
	b.Branch(b1, Param(c), b2, b3)
	b.Add(b2, Assign(Local(x), IntLit(1)))
	b.Goto(b2, join)
	b.Add(b3, Assign(Local(x), IntLit(2)))
	b.Goto(b3, join)
	b.Return(join, Local(x))
	return b.MustBuild(), x
}

func TestBuildDiamond(t *testing.T) {
	g, _ := diamond()

	if n := len(g.Blocks); n != 6 {
		t.Fatalf("expected 6 blocks, got %d", n)
	}
	if g.Exit().Kind != BlockExit || g.Exit().Ordinal != 5 {
		t.Errorf("unexpected exit block %v", g.Exit())
	}
	if preds := len(g.Blocks[4].Predecessors); preds != 2 {
		t.Errorf("join block should have 2 predecessors, got %d", preds)
	}
	if ret := g.Blocks[4].FallThrough; ret.Destination != g.Exit() || ret.Semantics != BranchReturn {
		t.Errorf("return branch not resolved to exit: %v", ret)
	}
	for _, blk := range g.Blocks {
		if !blk.IsReachable {
			t.Errorf("%v should be reachable", blk)
		}
	}
	if g.Method.Method.Body != g {
		t.Error("method body not set")
	}

	for i, op := range g.Operations() {
		if op.ID != i {
			t.Errorf("operation %v has ID %d, expected %d", op, op.ID, i)
		}
	}
	if assign := g.Blocks[2].Operations[0]; assign.Target.Parent != assign || !assign.Target.IsLValue() {
		t.Errorf("parent links not set for %v", assign)
	}
}

func TestBuildTryFinally(t *testing.T) {
	m := NewMethod(nil, "tryFinally", nil)
	x := NewLocal(m, "x", Int)

	b := NewBuilder(m)
	b.BeginRegion(RegionTryAndFinally)
	b.BeginRegion(RegionTry)
	try := b.NewBlock()
	try2 := b.NewBlock()
	b.EndRegion()
	b.BeginRegion(RegionFinally)
	fin := b.NewBlock()
	b.EndRegion()
	tf := b.EndRegion()
	after := b.NewBlock()

	b.Goto(b.Entry(), try)
	b.Add(try, Assign(Local(x), IntLit(1)))
	b.Goto(try, try2)
	b.Add(try2, Stmt(Call(NewMethod(nil, "mayThrow", nil), nil)))
	b.Goto(try2, after)
	b.Add(fin, Assign(Local(x), IntLit(2)))
	b.EndFinally(fin)
	b.Return(after, nil)
	g := b.MustBuild()

	if !g.HasTryRegion() {
		t.Error("expected a try region")
	}
	leave := try2.FallThrough
	if len(leave.FinallyRegions) != 1 || leave.FinallyRegions[0] != tf.FinallyRegion() {
		t.Errorf("expected branch to run the finally region, got %v", leave.FinallyRegions)
	}
	if len(leave.LeavingRegions) != 2 {
		t.Errorf("expected to leave try and try-finally, got %v", leave.LeavingRegions)
	}
	if inner := try.FallThrough; len(inner.FinallyRegions) != 0 || len(inner.LeavingRegions) != 0 {
		t.Errorf("branch within the try region should not leave regions: %v", inner.LeavingRegions)
	}
	if !fin.IsReachable {
		t.Error("finally block should be reachable through the try region")
	}
	if fin.EnclosingRegion.Kind != RegionFinally {
		t.Errorf("unexpected region %v", fin.EnclosingRegion)
	}
	if !strings.Contains(g.Print(), "endfinally") {
		t.Errorf("expected endfinally in:\n%s", g.Print())
	}
}

func TestBuildUnreachable(t *testing.T) {
	m := NewMethod(nil, "dead", nil)
	b := NewBuilder(m)
	live, dead := b.NewBlock(), b.NewBlock()
	b.Goto(b.Entry(), live)
	b.Return(live, nil)
	b.Return(dead, nil)
	g := b.MustBuild()

	if dead.IsReachable {
		t.Error("block without predecessors should be unreachable")
	}
	if got := g.Reachable(); len(got) != 3 {
		t.Errorf("expected 3 reachable blocks, got %v", got)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		err   error
	}{
		{
			"missing successor",
			func(b *Builder) { b.NewBlock() },
			ErrMissingSuccessor,
		},
		{
			"missing destination",
			func(b *Builder) { b.Goto(b.Entry(), nil) },
			ErrMissingDestination,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := NewBuilder(NewMethod(nil, "m", nil))
			test.build(b)
			_, err := b.Build()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, test.err) {
				t.Errorf("expected %v, got %v", test.err, err)
			}
		})
	}
}

func TestLValueCaptures(t *testing.T) {
	m := NewMethod(nil, "captures", nil)
	x := NewLocal(m, "x", Int)
	b := NewBuilder(m)
	blk := b.NewBlock()
	lv, rv := b.NewCapture(), b.NewCapture()
	b.Goto(b.Entry(), blk)
	b.Add(blk,
		Capture(lv, Local(x)),
		Capture(rv, IntLit(3)),
		Assign(CaptureRef(lv, Int), CaptureRef(rv, Int)))
	b.Return(blk, nil)
	g := b.MustBuild()

	if !g.IsLValueCapture(lv) || g.IsLValueCapture(rv) {
		t.Errorf("unexpected l-value captures %v", g.LValueCaptures)
	}
}
