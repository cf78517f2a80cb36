package dataflow

import (
	"fmt"

	"github.com/benbjohnson/immutable"

	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/analysis/lattice"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
	i "github.com/cs-au-dk/goat-flow/utils/indenter"
)

type (
	pointsToMap = *immutable.Map[*entity.Entity, loc.PointsTo]
)

// Data is the abstract state at a program point. It is a persistent value:
// updates return a new state and leave the receiver unchanged, so states
// are shared freely between blocks.
type Data[V any] struct {
	values   *immutable.Map[*entity.Entity, V]
	pointsTo pointsToMap
	// predicated records, for boolean entities, how the state is refined
	// when the entity is known to be true or false.
	predicated *immutable.Map[*entity.Entity, Predicated[V]]
	reachable  bool
}

// Predicated holds the refinements of a state under the assumption that a
// boolean entity is true (resp. false). Only bindings that differ from the
// state at the time of recording are kept.
type Predicated[V any] struct {
	WhenTrue, WhenFalse PredicatedBranch[V]
}

// PredicatedBranch is one side of a predicated entry.
type PredicatedBranch[V any] struct {
	Values   *immutable.Map[*entity.Entity, V]
	PointsTo pointsToMap
	// Infeasible holds when the entity can never have this truth value.
	Infeasible bool
}

func newData[V any](reachable bool) Data[V] {
	return Data[V]{
		values:     immutable.NewMap[*entity.Entity, V](entity.Hasher{}),
		pointsTo:   immutable.NewMap[*entity.Entity, loc.PointsTo](entity.Hasher{}),
		predicated: immutable.NewMap[*entity.Entity, Predicated[V]](entity.Hasher{}),
		reachable:  reachable,
	}
}

// EmptyData is the reachable state without bindings.
func EmptyData[V any]() Data[V] {
	return newData[V](true)
}

// UnreachableData is the state of program points that cannot execute.
func UnreachableData[V any]() Data[V] {
	return newData[V](false)
}

func (d Data[V]) IsReachable() bool {
	return d.reachable
}

// WithReachable returns the state with a different reachability flag.
func (d Data[V]) WithReachable(r bool) Data[V] {
	d.reachable = r
	return d
}

// Value is the value bound to e, if any.
func (d Data[V]) Value(e *entity.Entity) (V, bool) {
	return d.values.Get(e)
}

// SetValue binds e to v.
func (d Data[V]) SetValue(e *entity.Entity, v V) Data[V] {
	d.values = d.values.Set(e, v)
	return d
}

// PointsTo is the points-to value bound to e, if any.
func (d Data[V]) PointsTo(e *entity.Entity) (loc.PointsTo, bool) {
	return d.pointsTo.Get(e)
}

// SetPointsTo binds the points-to value of e.
func (d Data[V]) SetPointsTo(e *entity.Entity, p loc.PointsTo) Data[V] {
	d.pointsTo = d.pointsTo.Set(e, p)
	return d
}

// Delete drops every binding of e.
func (d Data[V]) Delete(e *entity.Entity) Data[V] {
	d.values = d.values.Delete(e)
	d.pointsTo = d.pointsTo.Delete(e)
	d.predicated = d.predicated.Delete(e)
	return d
}

// Predicated retrieves the predicated entry of a boolean entity.
func (d Data[V]) Predicated(e *entity.Entity) (Predicated[V], bool) {
	return d.predicated.Get(e)
}

// SetPredicated stores the predicated entry of a boolean entity.
func (d Data[V]) SetPredicated(e *entity.Entity, p Predicated[V]) Data[V] {
	d.predicated = d.predicated.Set(e, p)
	return d
}

// Len is the number of entities with a value.
func (d Data[V]) Len() int {
	return d.values.Len()
}

// ForEachValue visits all value bindings.
func (d Data[V]) ForEachValue(do func(*entity.Entity, V)) {
	for it := d.values.Iterator(); !it.Done(); {
		e, v, _ := it.Next()
		do(e, v)
	}
}

// ForEachPointsTo visits all points-to bindings.
func (d Data[V]) ForEachPointsTo(do func(*entity.Entity, loc.PointsTo)) {
	for it := d.pointsTo.Iterator(); !it.Done(); {
		e, p, _ := it.Next()
		do(e, p)
	}
}

// Entities lists every entity with a value or points-to binding.
func (d Data[V]) Entities() []*entity.Entity {
	seen := make(map[*entity.Entity]struct{}, d.values.Len())
	res := make([]*entity.Entity, 0, d.values.Len())
	add := func(e *entity.Entity) {
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			res = append(res, e)
		}
	}
	for it := d.values.Iterator(); !it.Done(); {
		e, _, _ := it.Next()
		add(e)
	}
	for it := d.pointsTo.Iterator(); !it.Done(); {
		e, _, _ := it.Next()
		add(e)
	}
	return res
}

// invalidatePredicates removes the predicated entry of e and every entry
// whose refinements mention storage overlapping e.
func (d Data[V]) invalidatePredicates(e *entity.Entity) Data[V] {
	if d.predicated.Len() == 0 {
		return d
	}
	res := d.predicated.Delete(e)
	for it := d.predicated.Iterator(); !it.Done(); {
		k, p, _ := it.Next()
		if p.mentions(e) {
			res = res.Delete(k)
		}
	}
	d.predicated = res
	return d
}

func (p Predicated[V]) mentions(e *entity.Entity) bool {
	return p.WhenTrue.mentions(e) || p.WhenFalse.mentions(e)
}

func (b PredicatedBranch[V]) mentions(e *entity.Entity) bool {
	overlaps := func(k *entity.Entity) bool {
		return k.IdentityHash() == e.IdentityHash() && k.EqualIgnoringLocation(e) ||
			k.HasAncestor(e)
	}
	if b.Values != nil {
		for it := b.Values.Iterator(); !it.Done(); {
			if k, _, _ := it.Next(); overlaps(k) {
				return true
			}
		}
	}
	if b.PointsTo != nil {
		for it := b.PointsTo.Iterator(); !it.Done(); {
			if k, _, _ := it.Next(); overlaps(k) {
				return true
			}
		}
	}
	return false
}

// apply overwrites the bindings of d with the refinements of the branch.
func (b PredicatedBranch[V]) apply(d Data[V]) Data[V] {
	if b.Values != nil {
		for it := b.Values.Iterator(); !it.Done(); {
			k, v, _ := it.Next()
			d.values = d.values.Set(k, v)
		}
	}
	if b.PointsTo != nil {
		for it := b.PointsTo.Iterator(); !it.Done(); {
			k, p, _ := it.Next()
			d.pointsTo = d.pointsTo.Set(k, p)
		}
	}
	return d
}

// diffBranch records the bindings of refined that differ from base.
func diffBranch[V any](values lattice.Domain[V], base, refined Data[V], infeasible bool) PredicatedBranch[V] {
	res := PredicatedBranch[V]{
		Values:     immutable.NewMap[*entity.Entity, V](entity.Hasher{}),
		PointsTo:   immutable.NewMap[*entity.Entity, loc.PointsTo](entity.Hasher{}),
		Infeasible: infeasible,
	}
	if infeasible {
		return res
	}
	for it := refined.values.Iterator(); !it.Done(); {
		k, v, _ := it.Next()
		if old, ok := base.values.Get(k); !ok || !values.Equals(old, v) {
			res.Values = res.Values.Set(k, v)
		}
	}
	for it := refined.pointsTo.Iterator(); !it.Done(); {
		k, p, _ := it.Next()
		if old, ok := base.pointsTo.Get(k); !ok || !old.Equal(p) {
			res.PointsTo = res.PointsTo.Set(k, p)
		}
	}
	return res
}

// String renders the state with bindings sorted by entity.
func (d Data[V]) String() string {
	if !d.reachable {
		return "unreachable"
	}
	key := func(e *entity.Entity) string { return e.String() }
	values := lattice.MapString(d.values, key, func(v V) string { return fmt.Sprint(v) })
	pointsTo := lattice.MapString(d.pointsTo, key, loc.PointsTo.String)

	parts := []string{"values: " + values, "points-to: " + pointsTo}
	if d.predicated.Len() > 0 {
		parts = append(parts, "predicated: "+lattice.MapString(d.predicated, key, Predicated[V].String))
	}
	return i.Indenter().Start("{").NestStrings(parts...).End("}")
}

func (p Predicated[V]) String() string {
	side := func(b PredicatedBranch[V]) string {
		if b.Infeasible {
			return "infeasible"
		}
		key := func(e *entity.Entity) string { return e.String() }
		return lattice.MapString(b.Values, key, func(v V) string { return fmt.Sprint(v) })
	}
	return "true: " + side(p.WhenTrue) + ", false: " + side(p.WhenFalse)
}
