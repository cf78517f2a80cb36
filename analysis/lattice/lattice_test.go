package lattice

import (
	"testing"

	"github.com/benbjohnson/immutable"
)

func TestFlatLaws(t *testing.T) {
	d := FlatDomain[int]{}
	if err := CheckLaws[Flat[int]](d, d.Bottom(), FlatOf(1), FlatOf(2), FlatTop[int]()); err != nil {
		t.Error(err)
	}
}

func TestFlatOrder(t *testing.T) {
	d := FlatDomain[string]{}
	tests := []struct {
		a, b     Flat[string]
		expected int
	}{
		{d.Bottom(), FlatOf("a"), -1},
		{FlatOf("a"), FlatOf("a"), 0},
		{FlatOf("a"), FlatOf("b"), 1},
		{FlatOf("a"), FlatTop[string](), -1},
		{FlatTop[string](), FlatOf("a"), 1},
	}

	for _, test := range tests {
		if res := d.Compare(test.a, test.b); res != test.expected {
			t.Errorf("Compare(%v, %v) = %d, expected %d", test.a, test.b, res, test.expected)
		}
	}
}

func TestSetLaws(t *testing.T) {
	d := SetDomain[int]{Bound: 3}
	samples := []Set[int]{
		d.Bottom(),
		SetOf(1),
		SetOf(2),
		SetOf(1, 2),
		SetOf(3, 4),
		SetTop[int](),
	}
	if err := CheckLaws(Domain[Set[int]](d), samples...); err != nil {
		t.Error(err)
	}
}

func TestSetBound(t *testing.T) {
	d := SetDomain[int]{Bound: 2}
	if m := d.Merge(SetOf(1, 2), SetOf(3)); !m.IsTop() {
		t.Errorf("expected ⊤ when exceeding the bound, got %v", m)
	}
	if m := d.Merge(SetOf(1), SetOf(2)); m.IsTop() || m.Size() != 2 {
		t.Errorf("expected {1, 2}, got %v", m)
	}
	if x, ok := SetOf(7).Single(); !ok || x != 7 {
		t.Errorf("expected singleton 7, got %v", x)
	}
	if s := SetOf(1, 2).Remove(1); s.Contains(1) || !s.Contains(2) {
		t.Errorf("expected {2}, got %v", s)
	}
}

func TestMapLaws(t *testing.T) {
	d := MapDomain[string, Flat[int]]{
		Values: FlatDomain[int]{},
		Hasher: immutable.NewHasher(""),
	}

	mk := func(kvs ...any) *immutable.Map[string, Flat[int]] {
		m := d.Bottom()
		for i := 0; i < len(kvs); i += 2 {
			m = m.Set(kvs[i].(string), kvs[i+1].(Flat[int]))
		}
		return m
	}

	a := mk("x", FlatOf(1))
	b := mk("x", FlatOf(2), "y", FlatOf(1))
	c := mk("y", FlatOf(1))

	if err := CheckLaws[*immutable.Map[string, Flat[int]]](d, d.Bottom(), a, b, c); err != nil {
		t.Error(err)
	}

	ab := d.Merge(a, b)
	if v, _ := ab.Get("x"); !v.IsTop() {
		t.Errorf("expected x ↦ ⊤, got %v", v)
	}
	if !d.Equals(d.Merge(ab, b), ab) {
		t.Error("re-merging should be idempotent")
	}
	if d.Compare(a, c) != 1 || d.Compare(c, b) != -1 {
		t.Error("unexpected map order")
	}
}

func TestMapDefaults(t *testing.T) {
	d := MapDomain[string, Flat[int]]{
		Values:   FlatDomain[int]{},
		Hasher:   immutable.NewHasher(""),
		Default:  func(string) Flat[int] { return FlatOf(0) },
		Verbatim: func(k string) bool { return k == "const" },
	}

	a := d.Bottom().Set("x", FlatOf(1)).Set("const", FlatOf(5))
	m := d.Merge(a, d.Bottom())

	if v, _ := m.Get("x"); !v.IsTop() {
		t.Errorf("one-sided key should be joined with its default, got %v", v)
	}
	if v, _ := m.Get("const"); v != FlatOf(5) {
		t.Errorf("verbatim key should be kept, got %v", v)
	}
}

func TestPredicateKinds(t *testing.T) {
	if PredicateAlwaysTrue.Negate() != PredicateAlwaysFalse {
		t.Error("negation of always-true")
	}
	if PredicateAlwaysTrue.Merge(PredicateAlwaysFalse) != PredicateUnknown {
		t.Error("merging distinct outcomes should be unknown")
	}
	if PredicateAlwaysFalse.Merge(PredicateAlwaysFalse) != PredicateAlwaysFalse {
		t.Error("merging equal outcomes should keep them")
	}
}
