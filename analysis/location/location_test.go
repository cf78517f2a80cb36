package location

import (
	"testing"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
)

func sites() (*cfg.Operation, *cfg.Operation) {
	a, b := cfg.New(cfg.Object, nil), cfg.New(cfg.Object, nil)
	a.ID, b.ID = 1, 2
	return a, b
}

func TestCallStackInterning(t *testing.T) {
	site, _ := sites()
	var empty *CallStack
	s1 := empty.Push(site)
	s2 := empty.Push(site)
	if s1 != s2 {
		t.Error("equal call stacks should be interned")
	}
	if s1.Depth() != 1 || s1.Pop() != nil || s1.Top() != site {
		t.Errorf("unexpected call stack %v", s1)
	}
	if !s1.Push(site).Contains(site) {
		t.Error("expected call site on the stack")
	}
}

func TestLocationEquality(t *testing.T) {
	a, b := sites()
	stack := (*CallStack)(nil).Push(a)

	tests := []struct {
		l1, l2   Location
		expected bool
	}{
		{Creation(a, nil), Creation(a, nil), true},
		{Creation(a, nil), Creation(b, nil), false},
		{Creation(a, nil), Creation(a, stack), false},
		{Null, Null, true},
		{Null, NoLocation, false},
	}

	for _, test := range tests {
		if res := test.l1.Equal(test.l2); res != test.expected {
			t.Errorf("%v = %v is %v, expected %v", test.l1, test.l2, res, test.expected)
		}
		if test.expected && test.l1.Hash() != test.l2.Hash() {
			t.Errorf("equal locations %v and %v have different hashes", test.l1, test.l2)
		}
	}
}

func TestPointsToJoin(t *testing.T) {
	a, b := sites()
	la, lb := Creation(a, nil), Creation(b, nil)

	pa, pb := KnownPointsTo(la), KnownPointsTo(lb)
	ab := pa.Join(pb)
	if !ab.IsKnown() || len(ab.Locations()) != 2 {
		t.Fatalf("expected two known locations, got %v", ab)
	}
	if !pa.Leq(ab) || !pb.Leq(ab) || ab.Leq(pa) {
		t.Errorf("join is not an upper bound: %v", ab)
	}
	if !ab.Equal(pb.Join(pa)) {
		t.Error("join should be commutative")
	}
	if ab.NullState() != NotNull {
		t.Errorf("allocations are not null, got %v", ab.NullState())
	}

	withNull := ab.Join(NullPointsTo())
	if withNull.NullState() != MaybeNull {
		t.Errorf("expected maybe-null, got %v", withNull.NullState())
	}
	if !withNull.WithNullState(NotNull).Equal(ab) {
		t.Errorf("refining to not-null should drop the null location")
	}

	if u := ab.Join(UnknownPointsTo()); u.Kind() != Unknown {
		t.Errorf("expected unknown, got %v", u)
	}
	if u := ab.Join(NoLocationPointsTo()); u.Kind() != Unknown {
		t.Errorf("mixing references and values should be unknown, got %v", u)
	}
	if !UndefinedPointsTo().Join(pa).Equal(pa) {
		t.Error("undefined should be the identity of join")
	}
}

func TestPointsToAliasing(t *testing.T) {
	a, b := sites()
	pa, pb := KnownPointsTo(Creation(a, nil)), KnownPointsTo(Creation(b, nil))
	if pa.MayAlias(pb) {
		t.Error("distinct allocations do not alias")
	}
	if !pa.MayAlias(pa.Join(pb)) {
		t.Error("overlapping sets alias")
	}
	if !pa.MayAlias(UnknownPointsTo()) {
		t.Error("unknown may alias anything")
	}
	if NullPointsTo().MayAlias(NullPointsTo()) {
		t.Error("null does not alias storage")
	}
}
