package dataflow

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/config"
)

// increment builds inc(p) = p + 1.
func increment() *cfg.Symbol {
	inc := cfg.NewMethod(nil, "inc", cfg.Int)
	p := inc.AddParameter("p", cfg.Int, cfg.ByValue)
	b := cfg.NewBuilder(inc)
	blk := b.NewBlock()
	b.Goto(b.Entry(), blk)
	b.Return(blk, cfg.Bin(cfg.BinAdd, cfg.Param(p), cfg.IntLit(1)))
	b.MustBuild()
	return inc
}

func caller(callee *cfg.Symbol) (*cfg.Graph, *cfg.Symbol) {
	m := cfg.NewMethod(nil, "caller", cfg.Int)
	x := cfg.NewLocal(m, "x", cfg.Int)
	b := cfg.NewBuilder(m)
	blk := b.NewBlock()
	b.Goto(b.Entry(), blk)
	b.Add(blk, cfg.Assign(cfg.Local(x),
		cfg.Call(callee, nil, cfg.Arg(callee.Method.Parameters[0], cfg.IntLit(4)))))
	b.Return(blk, cfg.Local(x))
	return b.MustBuild(), x
}

func TestInterproceduralCall(t *testing.T) {
	g, x := caller(increment())

	t.Run("context-sensitive", func(t *testing.T) {
		res := analyze(t, g, testConfig())
		requireConstant(t, res.Exit(), x, 5)
	})

	t.Run("intraprocedural", func(t *testing.T) {
		c := testConfig()
		c.Interprocedural = config.InterproceduralNone
		res := analyze(t, g, c)
		requireTop(t, res.Exit(), x)
	})

	t.Run("chain length", func(t *testing.T) {
		c := testConfig()
		c.MaxCallChain = 0
		res := analyze(t, g, c)
		requireTop(t, res.Exit(), x)
	})
}

func TestRecursionTerminates(t *testing.T) {
	m := cfg.NewMethod(nil, "rec", cfg.Int)
	n := m.AddParameter("n", cfg.Int, cfg.ByValue)
	b := cfg.NewBuilder(m)
	blk := b.NewBlock()
	b.Goto(b.Entry(), blk)
	b.Return(blk, cfg.Call(m, nil, cfg.Arg(n, cfg.Param(n))))
	g := b.MustBuild()

	metrics := NewMetrics()
	a, err := New[constant](constants{}, testConfig(), metrics)
	require.NoError(t, err)
	res, err := a.TryGetOrComputeResult(g, nil)
	require.NoError(t, err)

	require.True(t, res.ReturnValue.IsTop())
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.calls.WithLabelValues(callRecursive)))
}

// staticCall writes S, calls m and returns S.
func staticCall(m *cfg.Symbol, s *cfg.Symbol) *cfg.Graph {
	top := cfg.NewMethod(nil, "top", cfg.Int)
	b := cfg.NewBuilder(top)
	blk := b.NewBlock()
	b.Goto(b.Entry(), blk)
	b.Add(blk,
		cfg.Assign(cfg.StaticField(s), cfg.IntLit(1)),
		cfg.Stmt(cfg.CallVirtual(m, nil)))
	b.Return(blk, cfg.StaticField(s))
	return b.MustBuild()
}

func TestPessimisticCalls(t *testing.T) {
	owner := cfg.NewType("C", nil)
	s := cfg.NewStaticField(owner, "S", cfg.Int)

	virt := cfg.NewMethod(owner, "Virt", nil)
	virt.Method.Virtual = true
	vb := cfg.NewBuilder(virt)
	vb.Return(vb.Entry(), nil)
	vb.MustBuild()

	g := staticCall(virt, s)

	t.Run("pessimistic", func(t *testing.T) {
		metrics := NewMetrics()
		a, err := New[constant](constants{}, testConfig(), metrics)
		require.NoError(t, err)
		res := a.GetOrComputeResult(g, nil)

		requireTop(t, res.Exit(), s)
		require.Equal(t, float64(1), testutil.ToFloat64(metrics.calls.WithLabelValues(callVirtual)))
	})

	t.Run("optimistic", func(t *testing.T) {
		c := testConfig()
		c.Pessimistic = false
		res := analyze(t, g, c)
		requireConstant(t, res.Exit(), s, 1)
	})
}

func TestPessimisticReceiver(t *testing.T) {
	owner := cfg.NewType("C", nil)
	fld := cfg.NewField(owner, "F", cfg.Int)

	virt := cfg.NewMethod(owner, "Virt", nil)
	virt.Method.Virtual = true
	vb := cfg.NewBuilder(virt)
	vb.Return(vb.Entry(), nil)
	vb.MustBuild()

	m := cfg.NewMethod(nil, "receiver", cfg.Int)
	obj := cfg.NewLocal(m, "obj", owner)
	b := cfg.NewBuilder(m)
	blk := b.NewBlock()
	b.Goto(b.Entry(), blk)
	b.Add(blk,
		cfg.Assign(cfg.Local(obj), cfg.New(owner, nil)),
		cfg.Assign(cfg.Field(cfg.Local(obj), fld), cfg.IntLit(3)),
		cfg.Stmt(cfg.CallVirtual(virt, cfg.Local(obj))))
	b.Return(blk, cfg.Field(cfg.Local(obj), fld))
	g := b.MustBuild()

	t.Run("pessimistic", func(t *testing.T) {
		res := analyze(t, g, testConfig())
		require.True(t, res.ReturnValue.IsTop(), "obj.F is %v", res.ReturnValue)
	})

	t.Run("optimistic", func(t *testing.T) {
		c := testConfig()
		c.Pessimistic = false
		res := analyze(t, g, c)
		got, ok := res.ReturnValue.Value()
		require.True(t, ok, "obj.F is %v", res.ReturnValue)
		require.Equal(t, int64(3), got)
	})
}

func TestUnresolvedDelegate(t *testing.T) {
	owner := cfg.NewType("C", nil)
	s := cfg.NewStaticField(owner, "S", cfg.Int)

	m := cfg.NewMethod(nil, "delegate", cfg.Int)
	f := m.AddParameter("f", cfg.Func, cfg.ByValue)
	b := cfg.NewBuilder(m)
	blk := b.NewBlock()
	b.Goto(b.Entry(), blk)
	b.Add(blk,
		cfg.Assign(cfg.StaticField(s), cfg.IntLit(1)),
		cfg.Stmt(cfg.Invoke(cfg.Param(f), nil)))
	b.Return(blk, cfg.StaticField(s))
	g := b.MustBuild()

	t.Run("pessimistic", func(t *testing.T) {
		metrics := NewMetrics()
		a, err := New[constant](constants{}, testConfig(), metrics)
		require.NoError(t, err)
		res := a.GetOrComputeResult(g, nil)

		requireTop(t, res.Exit(), s)
		require.Equal(t, float64(1), testutil.ToFloat64(metrics.calls.WithLabelValues(callUnresolved)))
	})

	t.Run("optimistic", func(t *testing.T) {
		c := testConfig()
		c.Pessimistic = false
		res := analyze(t, g, c)
		requireConstant(t, res.Exit(), s, 1)
	})
}

func TestCalleeEffects(t *testing.T) {
	owner := cfg.NewType("C", nil)
	s := cfg.NewStaticField(owner, "S", cfg.Int)

	set := cfg.NewMethod(owner, "Set", nil)
	sb := cfg.NewBuilder(set)
	blk := sb.NewBlock()
	sb.Goto(sb.Entry(), blk)
	sb.Add(blk, cfg.Assign(cfg.StaticField(s), cfg.IntLit(9)))
	sb.Return(blk, nil)
	sb.MustBuild()

	res := analyze(t, staticCall(set, s), testConfig())
	requireConstant(t, res.Exit(), s, 9)
}

func TestLambdas(t *testing.T) {
	owner := cfg.NewType("C", nil)
	handler := cfg.NewStaticField(owner, "Handler", cfg.Func)

	m := cfg.NewMethod(nil, "lambdas", cfg.Int)
	f := cfg.NewLocal(m, "f", cfg.Func)
	r := cfg.NewLocal(m, "r", cfg.Int)

	answer := cfg.NewLambda(m, "answer", cfg.Int)
	lb := cfg.NewBuilder(answer)
	lblk := lb.NewBlock()
	lb.Goto(lb.Entry(), lblk)
	lb.Return(lblk, cfg.IntLit(42))

	escaping := cfg.NewLambda(m, "escaping", nil)
	eb := cfg.NewBuilder(escaping)
	eb.Return(eb.Entry(), nil)

	b := cfg.NewBuilder(m)
	blk := b.NewBlock()
	b.Goto(b.Entry(), blk)
	b.Add(blk,
		cfg.Assign(cfg.Local(f), cfg.Lambda(answer)),
		cfg.Assign(cfg.Local(r), cfg.Invoke(cfg.Local(f), cfg.Int)),
		cfg.Assign(cfg.StaticField(handler), cfg.Lambda(escaping)))
	b.Return(blk, cfg.Local(r))
	g := b.MustBuild()
	lb.WithParent(g).MustBuild()
	eb.WithParent(g).MustBuild()

	res := analyze(t, g, testConfig())
	requireConstant(t, res.Exit(), r, 42)
	require.Equal(t, []*cfg.Symbol{answer}, res.AnalyzedLambdas)
	require.Equal(t, []*cfg.Symbol{escaping}, res.EscapedLambdas)

	standalone, ok := res.StandaloneLambda(escaping)
	require.True(t, ok, "escaped lambda should be analyzed on its own")
	require.True(t, standalone.Exit().IsReachable())
}
