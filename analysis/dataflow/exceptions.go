package dataflow

import (
	"fmt"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
)

// ThrowKey identifies where a thrown exception is routed.
type ThrowKey struct {
	Type *cfg.Type
	// Catch is the handler receiving the exception, if any.
	Catch *cfg.Region
	// Finally is the finally region that runs before the exception
	// propagates further, if any.
	Finally *cfg.Region
	Stack   *loc.CallStack
}

// IsUnhandled holds for exceptions leaving the method.
func (k ThrowKey) IsUnhandled() bool {
	return k.Catch == nil && k.Finally == nil
}

func (k ThrowKey) String() string {
	switch {
	case k.Catch != nil:
		return fmt.Sprintf("%v → %v", k.Type, k.Catch)
	case k.Finally != nil:
		return fmt.Sprintf("%v → %v", k.Type, k.Finally)
	}
	return fmt.Sprintf("%v → unhandled", k.Type)
}

// handlerTargets resolves the regions an exception of type typ raised in
// region from is routed to, innermost first. Catches of subtypes of typ
// may handle the exception, so the search continues past them; a catch of
// typ or a supertype, or a finally region, ends the search. If the last
// key is unhandled the exception may leave the method.
func handlerTargets(from *cfg.Region, typ *cfg.Type, stack *loc.CallStack) (res []ThrowKey) {
	for r := from; r != nil; r = r.Enclosing {
		if r.Kind != cfg.RegionTry || r.Enclosing == nil {
			continue
		}
		stmt := r.Enclosing
		switch stmt.Kind {
		case cfg.RegionTryAndCatch:
			for _, h := range stmt.Handlers() {
				switch {
				case h.Kind == cfg.RegionCatch && (h.ExceptionType == nil || typ.IsSubtypeOf(h.ExceptionType)):
					return append(res, ThrowKey{Type: typ, Catch: h, Stack: stack})
				case h.Kind == cfg.RegionFilterAndHandler,
					h.ExceptionType.IsSubtypeOf(typ):
					res = append(res, ThrowKey{Type: typ, Catch: h, Stack: stack})
				}
			}
		case cfg.RegionTryAndFinally:
			if fin := stmt.FinallyRegion(); fin != nil {
				return append(res, ThrowKey{Type: typ, Finally: fin, Stack: stack})
			}
		}
	}
	return append(res, ThrowKey{Type: typ, Stack: stack})
}

// target is the first block receiving the exception, or -1.
func (k ThrowKey) target() int {
	switch {
	case k.Catch != nil:
		return k.Catch.FirstBlockOrdinal
	case k.Finally != nil:
		return k.Finally.FirstBlockOrdinal
	}
	return -1
}

// enclosingCatch is the innermost catch region around a block.
func enclosingCatch(r *cfg.Region) *cfg.Region {
	for ; r != nil; r = r.Enclosing {
		if r.Kind == cfg.RegionCatch || r.Kind == cfg.RegionFilterAndHandler {
			return r
		}
	}
	return nil
}

// enclosingFinally is the innermost finally region around a block.
func enclosingFinally(r *cfg.Region) *cfg.Region {
	for ; r != nil; r = r.Enclosing {
		if r.Kind == cfg.RegionFinally {
			return r
		}
	}
	return nil
}

// throwMap accumulates the states at which exceptions are raised, by
// destination.
type throwMap[V any] struct {
	dom     *DataDomain[V]
	entries map[ThrowKey]Data[V]
	// keys in insertion order, for deterministic iteration.
	keys []ThrowKey
}

func newThrowMap[V any](dom *DataDomain[V]) *throwMap[V] {
	return &throwMap[V]{dom: dom, entries: make(map[ThrowKey]Data[V])}
}

// record merges state into the entry of key and returns the result.
func (m *throwMap[V]) record(key ThrowKey, state Data[V]) Data[V] {
	prev, ok := m.entries[key]
	if !ok {
		m.keys = append(m.keys, key)
		m.entries[key] = state
		return state
	}
	res := m.dom.Merge(prev, state)
	m.entries[key] = res
	return res
}

// unhandled merges the states of all exceptions leaving the method.
func (m *throwMap[V]) unhandled() (Data[V], bool) {
	res, found := UnreachableData[V](), false
	for _, k := range m.keys {
		if k.IsUnhandled() {
			res = m.dom.Merge(res, m.entries[k])
			found = true
		}
	}
	return res, found
}

// routedThrough lists the entries of exceptions passing through fin.
func (m *throwMap[V]) routedThrough(fin *cfg.Region) (res []ThrowKey) {
	for _, k := range m.keys {
		if k.Finally == fin {
			res = append(res, k)
		}
	}
	return
}
