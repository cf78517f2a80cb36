package lattice

import (
	"fmt"
	"sort"
	"strings"
)

// Set is a member of a bounded powerset lattice. Sets growing beyond the
// bound of their domain collapse to ⊤. Sets are immutable.
type Set[T comparable] struct {
	elems map[T]struct{}
	top   bool
}

// SetOf constructs the set of the given elements.
func SetOf[T comparable](xs ...T) Set[T] {
	s := Set[T]{elems: make(map[T]struct{}, len(xs))}
	for _, x := range xs {
		s.elems[x] = struct{}{}
	}
	return s
}

// SetTop is the set of all values.
func SetTop[T comparable]() Set[T] {
	return Set[T]{top: true}
}

func (s Set[T]) IsTop() bool { return s.top }

// IsEmpty holds for ⊥.
func (s Set[T]) IsEmpty() bool { return !s.top && len(s.elems) == 0 }

func (s Set[T]) Size() int { return len(s.elems) }

// Contains checks membership; ⊤ contains everything.
func (s Set[T]) Contains(x T) bool {
	if s.top {
		return true
	}
	_, ok := s.elems[x]
	return ok
}

// Single returns the only element of a singleton set.
func (s Set[T]) Single() (T, bool) {
	if !s.top && len(s.elems) == 1 {
		for x := range s.elems {
			return x, true
		}
	}
	var zero T
	return zero, false
}

// ForEach visits the elements of a set that is not ⊤.
func (s Set[T]) ForEach(do func(T)) {
	for x := range s.elems {
		do(x)
	}
}

// Elements lists the elements of a set that is not ⊤.
func (s Set[T]) Elements() []T {
	res := make([]T, 0, len(s.elems))
	for x := range s.elems {
		res = append(res, x)
	}
	return res
}

// Remove returns the set without x. ⊤ is unaffected.
func (s Set[T]) Remove(x T) Set[T] {
	if s.top || !s.Contains(x) {
		return s
	}
	res := SetOf[T]()
	for y := range s.elems {
		if y != x {
			res.elems[y] = struct{}{}
		}
	}
	return res
}

func (s Set[T]) String() string {
	if s.top {
		return colorize.Element("⊤")
	}
	strs := make([]string, 0, len(s.elems))
	for x := range s.elems {
		strs = append(strs, fmt.Sprintf("%#v", x))
	}
	sort.Strings(strs)
	return "{" + colorize.Element(strings.Join(strs, ", ")) + "}"
}

// SetDomain is the powerset domain with sets bounded by Bound elements.
// A non-positive bound means unbounded.
type SetDomain[T comparable] struct {
	Bound int
}

func (SetDomain[T]) Bottom() Set[T] {
	return SetOf[T]()
}

func (d SetDomain[T]) Merge(a, b Set[T]) Set[T] {
	switch {
	case a.top:
		return a
	case b.top:
		return b
	case len(b.elems) == 0:
		return a
	case len(a.elems) == 0:
		return b
	}

	res := SetOf[T]()
	for x := range a.elems {
		res.elems[x] = struct{}{}
	}
	for x := range b.elems {
		res.elems[x] = struct{}{}
	}
	return d.Normalize(res)
}

// Normalize collapses sets exceeding the bound to ⊤.
func (d SetDomain[T]) Normalize(s Set[T]) Set[T] {
	if d.Bound > 0 && len(s.elems) > d.Bound {
		return SetTop[T]()
	}
	return s
}

func subset[T comparable](a, b Set[T]) bool {
	if b.top {
		return true
	}
	if a.top || len(a.elems) > len(b.elems) {
		return false
	}
	for x := range a.elems {
		if _, ok := b.elems[x]; !ok {
			return false
		}
	}
	return true
}

func (SetDomain[T]) Compare(a, b Set[T]) int {
	return CompareByLeq(subset(a, b), subset(b, a))
}

func (SetDomain[T]) Equals(a, b Set[T]) bool {
	return subset(a, b) && subset(b, a)
}
