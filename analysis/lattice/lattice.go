package lattice

import (
	"github.com/cs-au-dk/goat-flow/utils"

	"github.com/fatih/color"
)

// colorize is used for pretty-printing lattice members.
var colorize = struct {
	Element func(...interface{}) string
	Key     func(...interface{}) string
}{
	Element: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiCyan).SprintFunc())(is...)
	},
	Key: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiYellow).SprintFunc())(is...)
	},
}

// Domain describes a join semi-lattice over values of type V.
//
// Merge must produce an upper bound of its arguments, and Compare must be
// consistent with Merge:
//
//	Compare(a, b) == -1  iff a ⊏ b
//	Compare(a, b) ==  0  iff a = b
//	Compare(a, b) ==  1  iff a ⊐ b or a and b are incomparable
type Domain[V any] interface {
	Bottom() V
	Merge(a, b V) V
	Compare(a, b V) int
	Equals(a, b V) bool
}

// Leq checks a ⊑ b in the given domain.
func Leq[V any](d Domain[V], a, b V) bool {
	return d.Compare(a, b) <= 0
}

// CompareByLeq derives Compare from a partial order.
func CompareByLeq(leq, geq bool) int {
	switch {
	case leq && geq:
		return 0
	case leq:
		return -1
	}
	return 1
}

// MergeAll joins all values, starting from bottom.
func MergeAll[V any](d Domain[V], vs ...V) V {
	res := d.Bottom()
	for _, v := range vs {
		res = d.Merge(res, v)
	}
	return res
}

// PredicateValueKind is the outcome of evaluating a condition.
type PredicateValueKind int

const (
	// PredicateUnknown means the condition may evaluate either way.
	PredicateUnknown PredicateValueKind = iota
	PredicateAlwaysTrue
	PredicateAlwaysFalse
)

func (k PredicateValueKind) String() string {
	switch k {
	case PredicateAlwaysTrue:
		return "always-true"
	case PredicateAlwaysFalse:
		return "always-false"
	}
	return "unknown"
}

// Negate swaps always-true and always-false.
func (k PredicateValueKind) Negate() PredicateValueKind {
	switch k {
	case PredicateAlwaysTrue:
		return PredicateAlwaysFalse
	case PredicateAlwaysFalse:
		return PredicateAlwaysTrue
	}
	return PredicateUnknown
}

// Merge is the join of predicate kinds along different paths.
func (k PredicateValueKind) Merge(o PredicateValueKind) PredicateValueKind {
	if k == o {
		return k
	}
	return PredicateUnknown
}
