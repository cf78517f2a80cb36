package lattice

import "fmt"

type flatKind int

const (
	flatBot flatKind = iota
	flatValue
	flatTop
)

// Flat is a member of the flat lattice over T: ⊥ < every value < ⊤.
type Flat[T comparable] struct {
	kind  flatKind
	value T
}

// FlatOf is the flat member representing exactly v.
func FlatOf[T comparable](v T) Flat[T] {
	return Flat[T]{kind: flatValue, value: v}
}

// FlatTop is ⊤ of the flat lattice over T.
func FlatTop[T comparable]() Flat[T] {
	return Flat[T]{kind: flatTop}
}

func (f Flat[T]) IsBot() bool { return f.kind == flatBot }
func (f Flat[T]) IsTop() bool { return f.kind == flatTop }

// Value returns the represented value, if the member is neither ⊥ nor ⊤.
func (f Flat[T]) Value() (T, bool) {
	return f.value, f.kind == flatValue
}

func (f Flat[T]) String() string {
	switch f.kind {
	case flatBot:
		return colorize.Element("⊥")
	case flatTop:
		return colorize.Element("⊤")
	}
	return colorize.Element(fmt.Sprint(f.value))
}

// FlatDomain is the domain of flat lattice members.
type FlatDomain[T comparable] struct{}

func (FlatDomain[T]) Bottom() Flat[T] {
	return Flat[T]{}
}

func (FlatDomain[T]) Merge(a, b Flat[T]) Flat[T] {
	switch {
	case a.kind == flatBot:
		return b
	case b.kind == flatBot:
		return a
	case a == b:
		return a
	}
	return FlatTop[T]()
}

func (d FlatDomain[T]) Compare(a, b Flat[T]) int {
	switch {
	case a == b:
		return 0
	case a.kind == flatBot || b.kind == flatTop:
		return -1
	}
	return 1
}

func (FlatDomain[T]) Equals(a, b Flat[T]) bool {
	return a == b
}
