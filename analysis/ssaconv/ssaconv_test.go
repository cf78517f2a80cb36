package ssaconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	tu "github.com/cs-au-dk/goat-flow/testutil"
)

const source = `package main

type T struct {
	x int
}

var global int

func (t *T) get() int {
	return t.x
}

func choose(b bool) int {
	x := 1
	if b {
		x = 2
	}
	return x
}

func swap(n int) int {
	a, b := 1, 2
	for i := 0; i < n; i++ {
		a, b = b, a
	}
	return a
}

func closure() int {
	x := 1
	set := func() { x = 2 }
	set()
	return x
}

func fail(x int) int {
	if x < 0 {
		panic("negative")
	}
	return x
}

func caller() int {
	global = 3
	return choose(true)
}

func main() {
	t := &T{}
	t.get()
	caller()
	closure()
	fail(1)
	swap(2)
}
`

func load(t *testing.T) tu.LoadResult {
	return tu.LoadPackageFromSource(t, "lowering", source)
}

func opsOf(g *cfg.Graph, pred func(*cfg.Operation) bool) (res []*cfg.Operation) {
	for _, op := range g.Operations() {
		if pred(op) {
			res = append(res, op)
		}
	}
	return
}

func returns(g *cfg.Graph) (res []*cfg.BasicBlock) {
	for _, blk := range g.Blocks {
		for _, br := range blk.Successors() {
			if br.Semantics == cfg.BranchReturn {
				res = append(res, blk)
			}
		}
	}
	return
}

func TestLowerSignature(t *testing.T) {
	loadRes := load(t)
	p := New(nil)

	fn := loadRes.Func(t, "choose")
	g, err := p.Lower(fn)
	require.NoError(t, err)

	s := p.Symbol(fn)
	assert.Same(t, g, s.Method.Body)
	assert.Equal(t, cfg.Int, s.Method.ReturnType)
	require.Len(t, s.Method.Parameters, 1)
	assert.Equal(t, "b", s.Method.Parameters[0].Name)
	assert.Equal(t, cfg.Bool, s.Method.Parameters[0].Type)

	again, err := p.Lower(fn)
	require.NoError(t, err)
	assert.Same(t, g, again, "functions are lowered once")

	get := loadRes.Func(t, "T.get")
	_, err = p.Lower(get)
	require.NoError(t, err)
	params := p.Symbol(get).Method.Parameters
	require.Len(t, params, 1, "the receiver is the first parameter")
	assert.Equal(t, "t", params[0].Name)
	assert.True(t, params[0].Type.IsReference())
}

func TestLowerPhi(t *testing.T) {
	loadRes := load(t)
	p := New(nil)

	g, err := p.Lower(loadRes.Func(t, "choose"))
	require.NoError(t, err)

	rets := returns(g)
	require.Len(t, rets, 1)
	ret := rets[0].BranchValue
	require.NotNil(t, ret)
	require.Equal(t, cfg.OpLocalRef, ret.Kind, "the phi is returned through its local")

	// The phi is assigned on both incoming edges.
	assigned := opsOf(g, func(op *cfg.Operation) bool {
		return op.Kind == cfg.OpAssignment && op.Target.Kind == cfg.OpLocalRef && op.Target.Symbol == ret.Symbol
	})
	assert.Len(t, assigned, 2)
}

func TestLowerParallelCopies(t *testing.T) {
	loadRes := load(t)
	p := New(nil)

	g, err := p.Lower(loadRes.Func(t, "swap"))
	require.NoError(t, err)

	temps := opsOf(g, func(op *cfg.Operation) bool {
		return op.Kind == cfg.OpAssignment && op.Target.Kind == cfg.OpLocalRef &&
			op.Target.Symbol.Name[len(op.Target.Symbol.Name)-1] == '\''
	})
	assert.NotEmpty(t, temps, "swapped phis are copied through temporaries")
}

func TestLowerClosure(t *testing.T) {
	loadRes := load(t)
	p := New(nil)

	outer := loadRes.Func(t, "closure")
	g, err := p.Lower(outer)
	require.NoError(t, err)

	inner := loadRes.Func(t, "closure$1")
	lg, ok := p.Graph(inner)
	require.True(t, ok, "anonymous functions are lowered with their parent")
	assert.Same(t, g, lg.Parent)
	assert.True(t, p.Symbol(inner).IsLambdaOrLocalFunction())

	created := opsOf(g, func(op *cfg.Operation) bool {
		return op.Kind == cfg.OpDelegateCreation
	})
	require.Len(t, created, 1)
	assert.Same(t, p.Symbol(inner), created[0].Lambda)

	invoked := opsOf(g, func(op *cfg.Operation) bool {
		return op.Kind == cfg.OpInvocation && op.Symbol == nil
	})
	assert.Len(t, invoked, 1, "closures are invoked through their value")

	// The free variable refers to storage of the enclosing function.
	captured := opsOf(lg, func(op *cfg.Operation) bool {
		return op.Kind == cfg.OpLocalRef && op.Symbol.Container == p.Symbol(outer)
	})
	assert.NotEmpty(t, captured)
}

func TestLowerPanic(t *testing.T) {
	loadRes := load(t)
	p := New(nil)

	g, err := p.Lower(loadRes.Func(t, "fail"))
	require.NoError(t, err)

	var throws []*cfg.BasicBlock
	for _, blk := range g.Blocks {
		for _, br := range blk.Successors() {
			if br.Semantics == cfg.BranchThrow {
				throws = append(throws, blk)
			}
		}
	}
	require.Len(t, throws, 1)
	exc := throws[0].BranchValue
	assert.Equal(t, cfg.OpOther, exc.Kind)
	assert.Same(t, Panic, exc.Type)
	assert.True(t, exc.Pos.IsValid())
}

func TestLowerGlobalsAndCalls(t *testing.T) {
	loadRes := load(t)
	p := New(nil)

	caller := loadRes.Func(t, "caller")
	g, err := p.Lower(caller)
	require.NoError(t, err)

	stores := opsOf(g, func(op *cfg.Operation) bool {
		return op.Kind == cfg.OpAssignment && op.Target.Kind == cfg.OpFieldRef && op.Target.Symbol.Static
	})
	require.Len(t, stores, 1)
	assert.Equal(t, "global", stores[0].Target.Symbol.Name)

	calls := opsOf(g, func(op *cfg.Operation) bool {
		return op.Kind == cfg.OpInvocation && op.Symbol != nil
	})
	require.Len(t, calls, 1)
	choose := loadRes.Func(t, "choose")
	assert.Same(t, p.Symbol(choose), calls[0].Symbol)
	_, ok := p.Graph(choose)
	assert.True(t, ok, "callees are lowered with their callers")
}

func TestInclude(t *testing.T) {
	loadRes := load(t)
	p := New(InPackages())

	_, err := p.Lower(loadRes.Func(t, "caller"))
	require.NoError(t, err)

	choose := loadRes.Func(t, "choose")
	_, ok := p.Graph(choose)
	assert.False(t, ok, "excluded callees are not lowered")
	assert.Nil(t, p.Symbol(choose).Method.Body)
}

func TestPositions(t *testing.T) {
	loadRes := load(t)
	p := New(nil)

	g, err := p.Lower(loadRes.Func(t, "T.get"))
	require.NoError(t, err)

	loads := opsOf(g, func(op *cfg.Operation) bool {
		return op.Kind == cfg.OpFieldRef && op.Symbol.Name == "x"
	})
	require.Len(t, loads, 1)
	pos := loadRes.Prog.Fset.Position(loads[0].Position())
	assert.Equal(t, 10, pos.Line, "field loads are positioned at the selector")
}
