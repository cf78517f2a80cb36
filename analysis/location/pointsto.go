package location

import (
	"strings"

	"github.com/cs-au-dk/goat-flow/utils"

	"golang.org/x/exp/slices"
)

// PointsToKind is the shape of a points-to value.
type PointsToKind int

const (
	// Undefined is the bottom element: nothing is known to flow here yet.
	Undefined PointsToKind = iota
	// Known is a finite set of locations.
	Known
	// NoLocationKind is the points-to value of values without identity.
	NoLocationKind
	// Unknown may point anywhere.
	Unknown
)

func (k PointsToKind) String() string {
	switch k {
	case Undefined:
		return "undefined"
	case Known:
		return "known"
	case NoLocationKind:
		return "no-location"
	}
	return "unknown"
}

// NullState tracks whether a reference may be null.
type NullState int

const (
	NullUndefined NullState = iota
	NotNull
	IsNull
	MaybeNull
)

func (n NullState) String() string {
	switch n {
	case NotNull:
		return "not-null"
	case IsNull:
		return "null"
	case MaybeNull:
		return "maybe-null"
	}
	return "undefined"
}

// Join is the least upper bound of two null states.
func (n NullState) Join(o NullState) NullState {
	switch {
	case n == o || o == NullUndefined:
		return n
	case n == NullUndefined:
		return o
	}
	return MaybeNull
}

// Leq is the order of null states.
func (n NullState) Leq(o NullState) bool {
	return n == o || n == NullUndefined || o == MaybeNull
}

// PointsTo is the alias class of a reference: which locations it may
// refer to, and whether it may be null.
type PointsTo struct {
	kind PointsToKind
	// locs is sorted and duplicate free.
	locs []Location
	null NullState
}

// UndefinedPointsTo is the bottom points-to value.
func UndefinedPointsTo() PointsTo {
	return PointsTo{}
}

// UnknownPointsTo may point anywhere, including null.
func UnknownPointsTo() PointsTo {
	return PointsTo{kind: Unknown, null: MaybeNull}
}

// UnknownNotNull may point anywhere but null.
func UnknownNotNull() PointsTo {
	return PointsTo{kind: Unknown, null: NotNull}
}

// NoLocationPointsTo is the points-to value of values without identity.
func NoLocationPointsTo() PointsTo {
	return PointsTo{kind: NoLocationKind, locs: []Location{NoLocation}, null: NotNull}
}

// NullPointsTo is the points-to value of the null reference.
func NullPointsTo() PointsTo {
	return PointsTo{kind: Known, locs: []Location{Null}, null: IsNull}
}

// KnownPointsTo is the points-to value of exactly the given locations.
func KnownPointsTo(locs ...Location) PointsTo {
	if len(locs) == 0 {
		return UndefinedPointsTo()
	}
	sorted := make([]Location, len(locs))
	copy(sorted, locs)
	slices.SortFunc(sorted, Location.order)
	sorted = slices.CompactFunc(sorted, Location.Equal)

	res := PointsTo{kind: Known, locs: sorted}
	for _, l := range sorted {
		if l.IsNull() {
			res.null = res.null.Join(IsNull)
		} else {
			res.null = res.null.Join(NotNull)
		}
	}
	return res
}

func (p PointsTo) Kind() PointsToKind {
	return p.kind
}

// Locations lists the known locations in a deterministic order. The slice
// must not be modified.
func (p PointsTo) Locations() []Location {
	return p.locs
}

func (p PointsTo) NullState() NullState {
	return p.null
}

// WithNullState refines the null state. Refining a known points-to value
// to not-null removes the null location.
func (p PointsTo) WithNullState(n NullState) PointsTo {
	if p.kind == Known {
		switch n {
		case NotNull:
			locs := slices.DeleteFunc(slices.Clone(p.locs), Location.IsNull)
			if len(locs) == 0 {
				return UndefinedPointsTo()
			}
			return PointsTo{kind: Known, locs: locs, null: NotNull}
		case IsNull:
			if !slices.ContainsFunc(p.locs, Location.IsNull) {
				return UndefinedPointsTo()
			}
			return NullPointsTo()
		}
	}
	p.null = n
	return p
}

// IsKnown holds for finite sets of locations.
func (p PointsTo) IsKnown() bool {
	return p.kind == Known
}

// Contains checks whether l is among the known locations.
func (p PointsTo) Contains(l Location) bool {
	_, found := slices.BinarySearchFunc(p.locs, l, Location.order)
	return found
}

// MayAlias checks whether two points-to values may refer to a common location.
func (p PointsTo) MayAlias(o PointsTo) bool {
	if p.kind == Undefined || o.kind == Undefined {
		return false
	}
	if p.kind == Unknown || o.kind == Unknown {
		return p.kind != NoLocationKind && o.kind != NoLocationKind
	}
	for _, l := range p.locs {
		if !l.IsNull() && o.Contains(l) {
			return true
		}
	}
	return false
}

// Join is the least upper bound of two points-to values.
func (p PointsTo) Join(o PointsTo) PointsTo {
	switch {
	case p.kind == Undefined:
		return o
	case o.kind == Undefined:
		return p
	case p.kind == Unknown || o.kind == Unknown:
		return PointsTo{kind: Unknown, null: p.null.Join(o.null)}
	case p.kind != o.kind:
		// Values with and without identity.
		return PointsTo{kind: Unknown, null: p.null.Join(o.null)}
	case p.kind == NoLocationKind:
		return p
	}

	merged := make([]Location, 0, len(p.locs)+len(o.locs))
	merged = append(merged, p.locs...)
	merged = append(merged, o.locs...)
	res := KnownPointsTo(merged...)
	return res
}

// Leq is the order of points-to values.
func (p PointsTo) Leq(o PointsTo) bool {
	switch {
	case p.kind == Undefined:
		return true
	case o.kind == Unknown:
		return p.null.Leq(o.null)
	case p.kind != o.kind:
		return false
	case p.kind == NoLocationKind:
		return true
	}
	if !p.null.Leq(o.null) {
		return false
	}
	for _, l := range p.locs {
		if !o.Contains(l) {
			return false
		}
	}
	return true
}

func (p PointsTo) Equal(o PointsTo) bool {
	return p.kind == o.kind && p.null == o.null && slices.Equal(p.locs, o.locs)
}

func (p PointsTo) Hash() uint32 {
	hs := make([]uint32, 0, len(p.locs)+2)
	hs = append(hs, uint32(p.kind), uint32(p.null))
	for _, l := range p.locs {
		hs = append(hs, l.Hash())
	}
	return utils.HashCombine(hs...)
}

func (p PointsTo) String() string {
	switch p.kind {
	case Undefined:
		return "⊥"
	case Unknown:
		return "⊤(" + p.null.String() + ")"
	case NoLocationKind:
		return colorize.Kind("no-location")
	}
	strs := make([]string, len(p.locs))
	for i, l := range p.locs {
		strs[i] = l.String()
	}
	return "{" + strings.Join(strs, ", ") + "}"
}
