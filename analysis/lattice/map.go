package lattice

import (
	"sort"

	"github.com/benbjohnson/immutable"

	i "github.com/cs-au-dk/goat-flow/utils/indenter"
)

// MapDomain is the point-wise domain over persistent maps from K to V.
//
// A key bound on only one side of a merge is joined with the default value
// of the key, unless the key is verbatim, in which case its value is kept
// as is. A missing key is smaller than a binding that already subsumes the
// default of the key.
type MapDomain[K, V any] struct {
	Values Domain[V]
	Hasher immutable.Hasher[K]
	// Default value of unbound keys. Bottom if nil.
	Default func(K) V
	// Verbatim keys are never joined with their default value.
	Verbatim func(K) bool
}

func (d MapDomain[K, V]) defaultOf(k K) V {
	if d.Default == nil {
		return d.Values.Bottom()
	}
	return d.Default(k)
}

func (d MapDomain[K, V]) Bottom() *immutable.Map[K, V] {
	return immutable.NewMap[K, V](d.Hasher)
}

// mergeOneSided joins a value bound on only one side with its default.
func (d MapDomain[K, V]) mergeOneSided(k K, v V) V {
	if d.Verbatim != nil && d.Verbatim(k) {
		return v
	}
	return d.Values.Merge(v, d.defaultOf(k))
}

func (d MapDomain[K, V]) Merge(a, b *immutable.Map[K, V]) *immutable.Map[K, V] {
	if a == b {
		return a
	}
	res := a
	for it := a.Iterator(); !it.Done(); {
		k, va, _ := it.Next()
		if _, found := b.Get(k); !found {
			res = res.Set(k, d.mergeOneSided(k, va))
		}
	}
	for it := b.Iterator(); !it.Done(); {
		k, vb, _ := it.Next()
		if va, found := a.Get(k); found {
			if m := d.Values.Merge(va, vb); !d.Values.Equals(m, va) {
				res = res.Set(k, m)
			}
		} else {
			res = res.Set(k, d.mergeOneSided(k, vb))
		}
	}
	return res
}

func (d MapDomain[K, V]) Compare(a, b *immutable.Map[K, V]) int {
	if a == b {
		return 0
	}
	res := 0
	for it := a.Iterator(); !it.Done(); {
		k, va, _ := it.Next()
		vb, ok := b.Get(k)
		if !ok {
			return 1
		}
		switch d.Values.Compare(va, vb) {
		case 1:
			return 1
		case -1:
			res = -1
		}
	}
	for it := b.Iterator(); !it.Done(); {
		k, vb, _ := it.Next()
		if _, ok := a.Get(k); ok {
			continue
		}
		// A merge joins one-sided bindings with their default.
		if !d.Values.Equals(d.mergeOneSided(k, vb), vb) {
			return 1
		}
		res = -1
	}
	return res
}

func (d MapDomain[K, V]) Equals(a, b *immutable.Map[K, V]) bool {
	if a == b {
		return true
	}
	if a.Len() != b.Len() {
		return false
	}
	for it := a.Iterator(); !it.Done(); {
		k, va, _ := it.Next()
		if vb, ok := b.Get(k); !ok || !d.Values.Equals(va, vb) {
			return false
		}
	}
	return true
}

// MapString renders a persistent map with one binding per line.
func MapString[K, V any](m *immutable.Map[K, V], key func(K) string, value func(V) string) string {
	if m.Len() == 0 {
		return "[ ]"
	}
	type binding struct{ k, v string }
	bindings := make([]binding, 0, m.Len())
	for it := m.Iterator(); !it.Done(); {
		k, v, _ := it.Next()
		bindings = append(bindings, binding{key(k), value(v)})
	}
	// Hash order is not stable across runs.
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].k < bindings[j].k })

	strs := make([]string, len(bindings))
	for j, b := range bindings {
		strs[j] = colorize.Key(b.k) + " ↦ " + b.v
	}
	if len(strs) == 1 {
		return "[ " + strs[0] + " ]"
	}
	return i.Indenter().Start("[").NestStrings(strs...).End("]")
}
