package lattice

import "fmt"

// CheckLaws verifies the join semi-lattice laws on all combinations of the
// given samples: Merge is an upper bound, idempotent, commutative and
// associative, Compare agrees with Merge, and Bottom is least.
func CheckLaws[V any](d Domain[V], samples ...V) error {
	bot := d.Bottom()
	for _, a := range samples {
		if !Leq(d, bot, a) {
			return fmt.Errorf("⊥ ⋢ %v", a)
		}
		if !d.Equals(d.Merge(a, a), a) {
			return fmt.Errorf("%v ⊔ %v ≠ %v", a, a, a)
		}
		if d.Compare(a, a) != 0 {
			return fmt.Errorf("Compare(%v, %v) ≠ 0", a, a)
		}

		for _, b := range samples {
			ab, ba := d.Merge(a, b), d.Merge(b, a)
			if !Leq(d, a, ab) || !Leq(d, b, ab) {
				return fmt.Errorf("%v ⊔ %v = %v is not an upper bound", a, b, ab)
			}
			if !d.Equals(ab, ba) {
				return fmt.Errorf("%v ⊔ %v = %v, but %v ⊔ %v = %v", a, b, ab, b, a, ba)
			}
			if Leq(d, a, b) != d.Equals(ab, b) {
				return fmt.Errorf("Compare(%v, %v) = %d disagrees with %v ⊔ %v = %v",
					a, b, d.Compare(a, b), a, b, ab)
			}

			for _, c := range samples {
				l, r := d.Merge(ab, c), d.Merge(a, d.Merge(b, c))
				if !d.Equals(l, r) {
					return fmt.Errorf("(%v ⊔ %v) ⊔ %v = %v, but %v ⊔ (%v ⊔ %v) = %v",
						a, b, c, l, a, b, c, r)
				}
			}
		}
	}
	return nil
}
