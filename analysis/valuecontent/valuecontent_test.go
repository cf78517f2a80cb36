package valuecontent

import (
	"os"
	"testing"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/config"
	"github.com/cs-au-dk/goat-flow/analysis/dataflow"
	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	"github.com/cs-au-dk/goat-flow/utils"
)

func TestMain(m *testing.M) {
	utils.SetColorize(false)
	os.Exit(m.Run())
}

func analyze(t *testing.T, g *cfg.Graph) *dataflow.Result[Content] {
	t.Helper()
	c := config.Default()
	c.CacheSize = 4
	a, err := dataflow.New[Content](New(), c, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := a.TryGetOrComputeResult(g, nil)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func contentOf(t *testing.T, d dataflow.Data[Content], s *cfg.Symbol) Content {
	t.Helper()
	var (
		res   Content
		found bool
	)
	d.ForEachValue(func(e *entity.Entity, c Content) {
		if e.Symbol == s && e.Parent == nil && len(e.Indices) == 0 {
			res, found = c, true
		}
	})
	if !found {
		t.Fatalf("No content for %v in\n%v", s, d)
	}
	return res
}

// expect checks that c holds exactly the given constants.
func expect(t *testing.T, what string, c Content, xs ...any) {
	t.Helper()
	if c.IsTop() || c.Size() != len(xs) {
		t.Fatalf("%s is %v, expected %v", what, c, Of(xs...))
	}
	for _, x := range xs {
		if !c.Contains(x) {
			t.Fatalf("%s is %v, expected %v", what, c, Of(xs...))
		}
	}
}

// choice builds
//
//	if c { x = l } else { x = r }
//	<rest>
//
// and returns the block following the merge.
func choice(b *cfg.Builder, from *cfg.BasicBlock, c, x *cfg.Symbol, l, r int64) *cfg.BasicBlock {
	then, els, join := b.NewBlock(), b.NewBlock(), b.NewBlock()
	b.Branch(from, cfg.Param(c), then, els)
	b.Add(then, cfg.Assign(cfg.Local(x), cfg.IntLit(l)))
	b.Goto(then, join)
	b.Add(els, cfg.Assign(cfg.Local(x), cfg.IntLit(r)))
	b.Goto(els, join)
	return join
}

func TestDiamond(t *testing.T) {
	m := cfg.NewMethod(nil, "diamond", cfg.Int)
	c := m.AddParameter("c", cfg.Bool, cfg.ByValue)
	x := cfg.NewLocal(m, "x", cfg.Int)
	b := cfg.NewBuilder(m)
	join := choice(b, b.Entry(), c, x, 1, 2)
	b.Return(join, cfg.Local(x))

	res := analyze(t, b.MustBuild())
	expect(t, "x", contentOf(t, res.Exit(), x), int64(1), int64(2))
	expect(t, "return", res.ReturnValue, int64(1), int64(2))
}

func TestLoopExceedsBound(t *testing.T) {
	m := cfg.NewMethod(nil, "count", cfg.Int)
	i := cfg.NewLocal(m, "i", cfg.Int)
	b := cfg.NewBuilder(m)
	init, header, body, done := b.NewBlock(), b.NewBlock(), b.NewBlock(), b.NewBlock()
	b.Goto(b.Entry(), init)
	b.Add(init, cfg.Assign(cfg.Local(i), cfg.IntLit(0)))
	b.Goto(init, header)
	b.Branch(header, cfg.Bin(cfg.BinLt, cfg.Local(i), cfg.IntLit(100)), body, done)
	b.Add(body, cfg.Compound(cfg.BinAdd, cfg.Local(i), cfg.IntLit(1)))
	b.Goto(body, header)
	b.Return(done, cfg.Local(i))

	res := analyze(t, b.MustBuild())
	if c := contentOf(t, res.Output(header), i); !c.IsTop() {
		t.Errorf("i at the loop header is %v, expected ⊤", c)
	}
}

func TestShortLoopStaysPrecise(t *testing.T) {
	m := cfg.NewMethod(nil, "count", cfg.Int)
	i := cfg.NewLocal(m, "i", cfg.Int)
	b := cfg.NewBuilder(m)
	init, header, body, done := b.NewBlock(), b.NewBlock(), b.NewBlock(), b.NewBlock()
	b.Goto(b.Entry(), init)
	b.Add(init, cfg.Assign(cfg.Local(i), cfg.IntLit(0)))
	b.Goto(init, header)
	b.Branch(header, cfg.Bin(cfg.BinLt, cfg.Local(i), cfg.IntLit(3)), body, done)
	b.Add(body, cfg.Compound(cfg.BinAdd, cfg.Local(i), cfg.IntLit(1)))
	b.Goto(body, header)
	b.Return(done, cfg.Local(i))

	res := analyze(t, b.MustBuild())
	expect(t, "i at the loop header", contentOf(t, res.Output(header), i),
		int64(0), int64(1), int64(2), int64(3))
	// The exit is only reached once i < 3 fails.
	expect(t, "return", res.ReturnValue, int64(3))
}

// equality builds
//
//	if <cond> { y = x } else { y = 0 }
//	return y
func equality(b *cfg.Builder, from *cfg.BasicBlock, cond, x *cfg.Operation, y *cfg.Symbol) (then *cfg.BasicBlock) {
	then, els, join := b.NewBlock(), b.NewBlock(), b.NewBlock()
	b.Branch(from, cond, then, els)
	b.Add(then, cfg.Assign(cfg.Local(y), x))
	b.Goto(then, join)
	b.Add(els, cfg.Assign(cfg.Local(y), cfg.IntLit(0)))
	b.Goto(els, join)
	b.Return(join, cfg.Local(y))
	return then
}

func TestEqualityRefinesParameter(t *testing.T) {
	m := cfg.NewMethod(nil, "eq", cfg.Int)
	p := m.AddParameter("p", cfg.Int, cfg.ByValue)
	y := cfg.NewLocal(m, "y", cfg.Int)
	b := cfg.NewBuilder(m)
	start := b.NewBlock()
	b.Goto(b.Entry(), start)
	then := equality(b, start, cfg.Bin(cfg.BinEq, cfg.Param(p), cfg.IntLit(3)), cfg.Param(p), y)

	res := analyze(t, b.MustBuild())
	expect(t, "y", contentOf(t, res.Output(then), y), int64(3))
	expect(t, "return", res.ReturnValue, int64(0), int64(3))
}

func TestInequalityRemovesConstant(t *testing.T) {
	m := cfg.NewMethod(nil, "ne", cfg.Int)
	c := m.AddParameter("c", cfg.Bool, cfg.ByValue)
	x := cfg.NewLocal(m, "x", cfg.Int)
	y := cfg.NewLocal(m, "y", cfg.Int)
	b := cfg.NewBuilder(m)
	join := choice(b, b.Entry(), c, x, 1, 2)
	then := equality(b, join, cfg.Bin(cfg.BinNe, cfg.Local(x), cfg.IntLit(1)), cfg.Local(x), y)

	res := analyze(t, b.MustBuild())
	expect(t, "y", contentOf(t, res.Output(then), y), int64(2))
	expect(t, "return", res.ReturnValue, int64(0), int64(2))
}

func TestImpossibleEquality(t *testing.T) {
	m := cfg.NewMethod(nil, "never", cfg.Int)
	c := m.AddParameter("c", cfg.Bool, cfg.ByValue)
	x := cfg.NewLocal(m, "x", cfg.Int)
	y := cfg.NewLocal(m, "y", cfg.Int)
	b := cfg.NewBuilder(m)
	join := choice(b, b.Entry(), c, x, 1, 2)
	then := equality(b, join, cfg.Bin(cfg.BinEq, cfg.Local(x), cfg.IntLit(5)), cfg.Local(x), y)

	res := analyze(t, b.MustBuild())
	if res.Output(then).IsReachable() {
		t.Errorf("x == 5 can not hold, but the branch is reachable:\n%v", res.Output(then))
	}
	expect(t, "return", res.ReturnValue, int64(0))
}

func TestStoredPredicate(t *testing.T) {
	m := cfg.NewMethod(nil, "stored", cfg.Int)
	p := m.AddParameter("p", cfg.Int, cfg.ByValue)
	flag := cfg.NewLocal(m, "flag", cfg.Bool)
	y := cfg.NewLocal(m, "y", cfg.Int)
	b := cfg.NewBuilder(m)
	start := b.NewBlock()
	b.Goto(b.Entry(), start)
	b.Add(start, cfg.Assign(cfg.Local(flag), cfg.Bin(cfg.BinEq, cfg.Param(p), cfg.IntLit(5))))
	then := equality(b, start, cfg.Local(flag), cfg.Param(p), y)

	res := analyze(t, b.MustBuild())
	expect(t, "y", contentOf(t, res.Output(then), y), int64(5))
	expect(t, "flag", contentOf(t, res.Output(then), flag), true)
}

func TestDivisionByZero(t *testing.T) {
	m := cfg.NewMethod(nil, "div", cfg.Int)
	x := cfg.NewLocal(m, "x", cfg.Int)
	z := cfg.NewLocal(m, "z", cfg.Int)
	b := cfg.NewBuilder(m)
	blk := b.NewBlock()
	b.Goto(b.Entry(), blk)
	b.Add(blk,
		cfg.Assign(cfg.Local(x), cfg.Bin(cfg.BinDiv, cfg.IntLit(7), cfg.IntLit(2))),
		cfg.Assign(cfg.Local(z), cfg.Bin(cfg.BinDiv, cfg.IntLit(1), cfg.IntLit(0))))
	b.Return(blk, cfg.Local(z))

	res := analyze(t, b.MustBuild())
	expect(t, "x", contentOf(t, res.Exit(), x), int64(3))
	if c := contentOf(t, res.Exit(), z); !c.IsTop() {
		t.Errorf("1 / 0 is %v, expected ⊤", c)
	}
}

func TestNullChecks(t *testing.T) {
	obj := cfg.NewType("Obj", nil)
	m := cfg.NewMethod(nil, "nulls", nil)
	fresh := cfg.NewLocal(m, "fresh", cfg.Bool)
	null := cfg.NewLocal(m, "null", cfg.Bool)
	b := cfg.NewBuilder(m)
	blk := b.NewBlock()
	b.Goto(b.Entry(), blk)
	b.Add(blk,
		cfg.Assign(cfg.Local(fresh), cfg.IsNull(cfg.New(obj, nil))),
		cfg.Assign(cfg.Local(null), cfg.IsNull(cfg.Null(obj))))
	b.Return(blk, nil)

	res := analyze(t, b.MustBuild())
	expect(t, "fresh", contentOf(t, res.Exit(), fresh), false)
	expect(t, "null", contentOf(t, res.Exit(), null), true)
}

func TestConversions(t *testing.T) {
	m := cfg.NewMethod(nil, "conv", nil)
	f := cfg.NewLocal(m, "f", cfg.Float)
	i := cfg.NewLocal(m, "i", cfg.Int)
	s := cfg.NewLocal(m, "s", cfg.String)
	b := cfg.NewBuilder(m)
	blk := b.NewBlock()
	b.Goto(b.Entry(), blk)
	b.Add(blk,
		cfg.Assign(cfg.Local(f), cfg.Convert(cfg.Float, cfg.IntLit(2))),
		cfg.Assign(cfg.Local(i), cfg.Convert(cfg.Int, cfg.Lit(2.5, cfg.Float))),
		cfg.Assign(cfg.Local(s), cfg.Bin(cfg.BinAdd, cfg.StringLit("a"), cfg.StringLit("b"))))
	b.Return(blk, nil)

	res := analyze(t, b.MustBuild())
	expect(t, "f", contentOf(t, res.Exit(), f), 2.0)
	expect(t, "i", contentOf(t, res.Exit(), i), int64(2))
	expect(t, "s", contentOf(t, res.Exit(), s), "ab")
}

func TestContentLaws(t *testing.T) {
	samples := []Content{
		Of(),
		Of(int64(1)),
		Of(int64(2)),
		Of(int64(1), int64(2)),
		Of(true, Null),
		top,
	}
	if err := lattice.CheckLaws(New().Domain(), samples...); err != nil {
		t.Error(err)
	}
}
