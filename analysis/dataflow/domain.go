package dataflow

import (
	"fmt"

	"github.com/benbjohnson/immutable"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
)

// PointsToDomain is the lattice of points-to values.
type PointsToDomain struct{}

func (PointsToDomain) Bottom() loc.PointsTo {
	return loc.UndefinedPointsTo()
}

func (PointsToDomain) Merge(a, b loc.PointsTo) loc.PointsTo {
	return a.Join(b)
}

func (PointsToDomain) Compare(a, b loc.PointsTo) int {
	return lattice.CompareByLeq(a.Leq(b), b.Leq(a))
}

func (PointsToDomain) Equals(a, b loc.PointsTo) bool {
	return a.Equal(b)
}

// DefaultPointsTo is the points-to value of an entity without a binding:
// nothing for storage of the current activation that was never written,
// no location for values, and anything otherwise.
func DefaultPointsTo(e *entity.Entity) loc.PointsTo {
	switch {
	case e.Type != nil && e.Type.Value:
		return loc.NoLocationPointsTo()
	case e.Parent == nil && e.Symbol != nil && e.Symbol.Kind == cfg.SymLocal,
		e.Parent == nil && e.IsCapture():
		return loc.UndefinedPointsTo()
	}
	return loc.UnknownPointsTo()
}

// DataDomain lifts the value domain of an analysis to whole states.
//
// Merging is point-wise over entities, with one refinement: entities that
// only differ in their instance location, because the instance was
// reached through different references on the two paths, are additionally
// combined into an entity whose location is the join of both.
type DataDomain[V any] struct {
	values   lattice.MapDomain[*entity.Entity, V]
	pointsTo lattice.MapDomain[*entity.Entity, loc.PointsTo]
	// Defaults of entities at a single location.
	defaultValue    func(*entity.Entity) V
	defaultPointsTo func(*entity.Entity) loc.PointsTo
	// debug enables checking that merges produce upper bounds.
	debug bool
}

// multiLocation holds for entities whose instance is one of several
// locations. Their value is derived from the entities at each location, so
// they have no default of their own.
func multiLocation(e *entity.Entity) bool {
	return e.Location.IsKnown() && len(e.Location.Locations()) > 1
}

// NewDataDomain creates the state domain of an analysis.
func NewDataDomain[V any](a Analyzer[V], debug bool) *DataDomain[V] {
	values := a.Domain()
	return &DataDomain[V]{
		values: lattice.MapDomain[*entity.Entity, V]{
			Values: values,
			Hasher: entity.Hasher{},
			Default: func(e *entity.Entity) V {
				if multiLocation(e) {
					return values.Bottom()
				}
				return a.DefaultValue(e)
			},
			Verbatim: (*entity.Entity).IsCompileTimeConstant,
		},
		pointsTo: lattice.MapDomain[*entity.Entity, loc.PointsTo]{
			Values: PointsToDomain{},
			Hasher: entity.Hasher{},
			Default: func(e *entity.Entity) loc.PointsTo {
				if multiLocation(e) {
					return loc.UndefinedPointsTo()
				}
				return DefaultPointsTo(e)
			},
		},
		defaultValue:    a.DefaultValue,
		defaultPointsTo: DefaultPointsTo,
		debug:           debug,
	}
}

// Values is the domain of the analysis values.
func (d *DataDomain[V]) Values() lattice.Domain[V] {
	return d.values.Values
}

func (d *DataDomain[V]) Bottom() Data[V] {
	return UnreachableData[V]()
}

func (d *DataDomain[V]) Merge(a, b Data[V]) Data[V] {
	switch {
	case !a.reachable:
		return b
	case !b.reachable:
		return a
	}

	tracked := trackedLocations(d.pointsTo.Merge(a.pointsTo, b.pointsTo))
	res := Data[V]{
		values:     mergeEntityMaps(d.values, a.values, b.values, tracked, d.defaultValue),
		pointsTo:   mergeEntityMaps(d.pointsTo, a.pointsTo, b.pointsTo, tracked, d.defaultPointsTo),
		predicated: d.mergePredicated(a.predicated, b.predicated),
		reachable:  true,
	}

	if d.debug {
		if d.Compare(a, res) == 1 || d.Compare(b, res) == 1 {
			panic(fmt.Errorf("merge is not an upper bound:\n%v\n⊔\n%v\n=\n%v", a, b, res))
		}
	}
	return res
}

// trackedLocations collects the known points-to values of the map, indexed
// by hash. Synthesized entities are only kept if their location is tracked.
func trackedLocations(m pointsToMap) map[uint32][]loc.PointsTo {
	res := make(map[uint32][]loc.PointsTo, m.Len())
	for it := m.Iterator(); !it.Done(); {
		_, p, _ := it.Next()
		if p.IsKnown() {
			res[p.Hash()] = append(res[p.Hash()], p)
		}
	}
	return res
}

func isTracked(tracked map[uint32][]loc.PointsTo, p loc.PointsTo) bool {
	for _, q := range tracked[p.Hash()] {
		if q.Equal(p) {
			return true
		}
	}
	return false
}

// variants joins the bindings of entities that only differ from e in their
// instance location and may alias it. Locations of e that no such binding
// covers contribute the default value.
func variants[V any](
	values lattice.Domain[V],
	m *immutable.Map[*entity.Entity, V],
	e *entity.Entity,
	def func(*entity.Entity) V,
) (V, bool) {
	res := values.Bottom()
	found := false
	covered := loc.UndefinedPointsTo()
	for it := m.Iterator(); !it.Done(); {
		k, v, _ := it.Next()
		if k.IdentityHash() != e.IdentityHash() || !k.EqualIgnoringLocation(e) || !k.Location.MayAlias(e.Location) {
			continue
		}
		res = values.Merge(res, v)
		covered = covered.Join(k.Location)
		found = true
	}
	if !found {
		return res, false
	}
	if !e.Location.Leq(covered.WithNullState(e.Location.NullState())) {
		res = values.Merge(res, def(e))
	}
	return res, true
}

// mergeEntityMaps joins two entity maps point-wise and adds the entities
// whose locations are merged.
func mergeEntityMaps[V any](
	d lattice.MapDomain[*entity.Entity, V],
	a, b *immutable.Map[*entity.Entity, V],
	tracked map[uint32][]loc.PointsTo,
	def func(*entity.Entity) V,
) *immutable.Map[*entity.Entity, V] {
	res := d.Merge(a, b)
	if a == b {
		return res
	}

	// read is what a map knows about the storage of an entity.
	read := func(m *immutable.Map[*entity.Entity, V], k *entity.Entity) V {
		if v, ok := m.Get(k); ok {
			return v
		}
		if v, found := variants(d.Values, m, k, def); found {
			return v
		}
		return def(k)
	}

	// Bindings of entities at several locations present on one side only
	// are joined with what the other side knows about those locations.
	oneSided := func(m, other *immutable.Map[*entity.Entity, V]) {
		for it := m.Iterator(); !it.Done(); {
			k, v, _ := it.Next()
			if !multiLocation(k) {
				continue
			}
			if _, ok := other.Get(k); ok {
				continue
			}
			res = res.Set(k, d.Values.Merge(v, read(other, k)))
		}
	}
	oneSided(a, b)
	oneSided(b, a)

	// Index b by identity to find keys that only differ in location.
	byIdentity := make(map[uint32][]*entity.Entity, b.Len())
	for it := b.Iterator(); !it.Done(); {
		k, _, _ := it.Next()
		if k.Location.IsKnown() {
			byIdentity[k.IdentityHash()] = append(byIdentity[k.IdentityHash()], k)
		}
	}
	if len(byIdentity) == 0 {
		return res
	}

	for it := a.Iterator(); !it.Done(); {
		k1, _, _ := it.Next()
		if !k1.Location.IsKnown() {
			continue
		}
		for _, k2 := range byIdentity[k1.IdentityHash()] {
			if k1 == k2 || !k1.EqualIgnoringLocation(k2) || k1.Location.Equal(k2.Location) {
				continue
			}
			merged := k1.WithLocation(k1.Location.Join(k2.Location))
			if _, ok := res.Get(merged); ok {
				// Already folded in by the point-wise merge.
				continue
			}
			if !isTracked(tracked, merged.Location) {
				continue
			}
			res = res.Set(merged, d.Values.Merge(read(a, merged), read(b, merged)))
		}
	}
	return res
}

func (d *DataDomain[V]) mergePredicated(a, b *immutable.Map[*entity.Entity, Predicated[V]]) *immutable.Map[*entity.Entity, Predicated[V]] {
	if a == b {
		return a
	}
	// Only refinements that hold on both paths survive.
	res := immutable.NewMap[*entity.Entity, Predicated[V]](entity.Hasher{})
	for it := a.Iterator(); !it.Done(); {
		k, pa, _ := it.Next()
		if pb, ok := b.Get(k); ok {
			res = res.Set(k, Predicated[V]{
				WhenTrue:  d.mergeBranch(pa.WhenTrue, pb.WhenTrue),
				WhenFalse: d.mergeBranch(pa.WhenFalse, pb.WhenFalse),
			})
		}
	}
	return res
}

func (d *DataDomain[V]) mergeBranch(a, b PredicatedBranch[V]) PredicatedBranch[V] {
	switch {
	case a.Infeasible:
		return b
	case b.Infeasible:
		return a
	}
	res := PredicatedBranch[V]{
		Values:   immutable.NewMap[*entity.Entity, V](entity.Hasher{}),
		PointsTo: immutable.NewMap[*entity.Entity, loc.PointsTo](entity.Hasher{}),
	}
	for it := a.Values.Iterator(); !it.Done(); {
		k, va, _ := it.Next()
		if vb, ok := b.Values.Get(k); ok {
			res.Values = res.Values.Set(k, d.values.Values.Merge(va, vb))
		}
	}
	for it := a.PointsTo.Iterator(); !it.Done(); {
		k, pa, _ := it.Next()
		if pb, ok := b.PointsTo.Get(k); ok {
			res.PointsTo = res.PointsTo.Set(k, pa.Join(pb))
		}
	}
	return res
}

// Compare orders states. Unreachable states are least; predicated entries
// are ordered by refinement, so fewer entries is greater.
func (d *DataDomain[V]) Compare(a, b Data[V]) int {
	switch {
	case !a.reachable && !b.reachable:
		return 0
	case !a.reachable:
		return -1
	case !b.reachable:
		return 1
	}

	res := 0
	for _, c := range []int{
		d.values.Compare(a.values, b.values),
		d.pointsTo.Compare(a.pointsTo, b.pointsTo),
		d.comparePredicated(a.predicated, b.predicated),
	} {
		switch c {
		case 1:
			return 1
		case -1:
			res = -1
		}
	}
	return res
}

func (d *DataDomain[V]) comparePredicated(a, b *immutable.Map[*entity.Entity, Predicated[V]]) int {
	if a == b {
		return 0
	}
	res := 0
	for it := b.Iterator(); !it.Done(); {
		k, pb, _ := it.Next()
		pa, ok := a.Get(k)
		if !ok {
			return 1
		}
		for _, c := range []int{
			d.compareBranch(pa.WhenTrue, pb.WhenTrue),
			d.compareBranch(pa.WhenFalse, pb.WhenFalse),
		} {
			switch c {
			case 1:
				return 1
			case -1:
				res = -1
			}
		}
	}
	if a.Len() > b.Len() {
		res = -1
	}
	return res
}

// compareBranch orders one side of predicated entries. An infeasible side
// is the most refined one.
func (d *DataDomain[V]) compareBranch(a, b PredicatedBranch[V]) int {
	switch {
	case a.Infeasible && b.Infeasible:
		return 0
	case a.Infeasible:
		return -1
	case b.Infeasible:
		return 1
	}
	res := 0
	for it := b.Values.Iterator(); !it.Done(); {
		k, vb, _ := it.Next()
		va, ok := a.Values.Get(k)
		if !ok {
			return 1
		}
		switch d.values.Values.Compare(va, vb) {
		case 1:
			return 1
		case -1:
			res = -1
		}
	}
	for it := b.PointsTo.Iterator(); !it.Done(); {
		k, pb, _ := it.Next()
		pa, ok := a.PointsTo.Get(k)
		if !ok {
			return 1
		}
		if !pa.Leq(pb) {
			return 1
		}
		if !pa.Equal(pb) {
			res = -1
		}
	}
	if a.Values.Len() > b.Values.Len() || a.PointsTo.Len() > b.PointsTo.Len() {
		res = -1
	}
	return res
}

func (d *DataDomain[V]) Equals(a, b Data[V]) bool {
	return d.Compare(a, b) == 0
}
