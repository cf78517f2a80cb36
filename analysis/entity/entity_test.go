package entity

import (
	"testing"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
)

type fixture struct {
	method  *cfg.Symbol
	a, b, s *cfg.Symbol
	f, g    *cfg.Symbol
	point   *cfg.Type
	newA    *cfg.Operation
	newB    *cfg.Operation
}

func newFixture() fixture {
	obj := cfg.NewType("Obj", nil)
	point := cfg.NewValueType("Point")
	m := cfg.NewMethod(obj, "m", nil)
	fx := fixture{
		method: m,
		a:      cfg.NewLocal(m, "a", obj),
		b:      cfg.NewLocal(m, "b", obj),
		s:      cfg.NewLocal(m, "s", point),
		f:      cfg.NewField(obj, "f", cfg.Int),
		g:      cfg.NewField(point, "x", cfg.Int),
		point:  point,
	}
	fx.newA = cfg.New(obj, nil)
	fx.newB = cfg.New(obj, nil)
	// Operation identifiers order creation locations.
	fx.newA.ID, fx.newB.ID = 1, 2
	return fx
}

func TestSameLocalIsEqual(t *testing.T) {
	fx := newFixture()
	f := NewFactory(FactoryConfig{Method: fx.method})

	e1, ok1 := f.TryCreate(cfg.Local(fx.a))
	e2, ok2 := f.TryCreate(cfg.Local(fx.a))
	if !ok1 || !ok2 {
		t.Fatal("locals should always have an entity")
	}
	if !e1.Equal(e2) || e1.Hash() != e2.Hash() {
		t.Errorf("two references to %v should be equal", fx.a)
	}
	if e1 != e2 {
		t.Error("entities should be interned")
	}

	other, _ := f.TryCreate(cfg.Local(fx.b))
	if e1.EqualIgnoringLocation(other) {
		t.Errorf("%v and %v should differ", e1, other)
	}
}

func TestFieldsThroughAliases(t *testing.T) {
	fx := newFixture()
	locA := loc.Creation(fx.newA, nil)
	locB := loc.Creation(fx.newB, nil)

	receivers := map[*cfg.Symbol]loc.PointsTo{
		fx.a: loc.KnownPointsTo(locA),
		fx.b: loc.KnownPointsTo(locA, locB),
	}
	f := NewFactory(FactoryConfig{
		Method: fx.method,
		PointsTo: func(op *cfg.Operation) loc.PointsTo {
			return receivers[op.Symbol]
		},
	})

	af, ok := f.TryCreate(cfg.Field(cfg.Local(fx.a), fx.f))
	if !ok {
		t.Fatal("expected entity for a.f")
	}
	af2, _ := f.TryCreate(cfg.Field(cfg.Local(fx.a), fx.f))
	if !af.Equal(af2) || af.Hash() != af2.Hash() {
		t.Errorf("a.f should be equal to itself")
	}

	bf, ok := f.TryCreate(cfg.Field(cfg.Local(fx.b), fx.f))
	if !ok {
		t.Fatal("expected entity for b.f")
	}
	if !af.EqualIgnoringLocation(bf) {
		t.Errorf("%v and %v should be equal ignoring location", af, bf)
	}
	if af.Equal(bf) {
		t.Errorf("%v and %v should have different locations", af, bf)
	}
	if af.IdentityHash() != bf.IdentityHash() {
		t.Error("identity hashes should agree")
	}

	receivers[fx.b] = loc.KnownPointsTo(locA)
	bf2, _ := f.TryCreate(cfg.Field(cfg.Local(fx.b), fx.f))
	if !af.Equal(bf2) {
		t.Errorf("a.f and b.f should coincide when a and b must alias")
	}
}

func TestUnknownReceiver(t *testing.T) {
	fx := newFixture()
	f := NewFactory(FactoryConfig{Method: fx.method})
	if _, ok := f.TryCreate(cfg.Field(cfg.Local(fx.a), fx.f)); ok {
		t.Error("members of unknown receivers should not have entities")
	}
}

func TestValueTypedMembers(t *testing.T) {
	fx := newFixture()
	f := NewFactory(FactoryConfig{Method: fx.method})

	s, _ := f.TryCreate(cfg.Local(fx.s))
	sx, ok := f.TryCreate(cfg.Field(cfg.Local(fx.s), fx.g))
	if !ok {
		t.Fatal("expected entity for s.x")
	}
	if sx.Parent != s || !sx.Location.Equal(s.Location) {
		t.Errorf("s.x should be a child of s sharing its location, got %v", sx)
	}
	if sx.Root() != s || !sx.HasAncestor(s) {
		t.Error("s should be the root of s.x")
	}

	t2 := cfg.NewLocal(fx.method, "t", fx.point)
	te, _ := f.TryCreate(cfg.Local(t2))
	tx := sx.Reroot(s, te)
	want, _ := f.TryCreate(cfg.Field(cfg.Local(t2), fx.g))
	if !tx.Equal(want) {
		t.Errorf("rerooting s.x onto t should give t.x, got %v", tx)
	}
}

func TestCallStacksDistinguishActivations(t *testing.T) {
	fx := newFixture()
	site := cfg.Call(fx.method, nil)
	outer := NewFactory(FactoryConfig{Method: fx.method})
	inner := NewFactory(FactoryConfig{Method: fx.method, Stack: (*loc.CallStack)(nil).Push(site)})

	e1, _ := outer.TryCreate(cfg.Local(fx.a))
	e2, _ := inner.TryCreate(cfg.Local(fx.a))
	if e1.Equal(e2) {
		t.Error("locals of different activations should differ")
	}
	if !e1.EqualIgnoringLocation(e2) {
		t.Error("locals of different activations are the same variable")
	}
	if !e2.IsFrameOwned(inner.Stack) || e2.IsFrameOwned(outer.Stack) {
		t.Error("frame ownership should follow the call stack")
	}
}

func TestConstantIndices(t *testing.T) {
	fx := newFixture()
	arr := cfg.NewLocal(fx.method, "arr", cfg.ArrayOf(cfg.Int))
	alloc := cfg.NewArray(cfg.Int, cfg.IntLit(3))
	f := NewFactory(FactoryConfig{
		Method: fx.method,
		PointsTo: func(*cfg.Operation) loc.PointsTo {
			return loc.KnownPointsTo(loc.Creation(alloc, nil))
		},
	})

	e0, _ := f.TryCreate(cfg.Elem(cfg.Local(arr), cfg.IntLit(0)))
	e0b, _ := f.TryCreate(cfg.Elem(cfg.Local(arr), cfg.IntLit(0)))
	e1, _ := f.TryCreate(cfg.Elem(cfg.Local(arr), cfg.IntLit(1)))
	if e0 != e0b {
		t.Error("constant indices should identify elements")
	}
	if e0.Equal(e1) {
		t.Error("different constant indices should differ")
	}
	idx := cfg.Local(cfg.NewLocal(fx.method, "i", cfg.Int))
	opaque, _ := f.TryCreate(cfg.Elem(cfg.Local(arr), idx))
	if opaque.Indices[0].HasConstant {
		t.Error("non-literal indices should be opaque")
	}
}
