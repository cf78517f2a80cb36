package dataflow

import (
	uf "github.com/spakin/disjoint"

	"github.com/cs-au-dk/goat-flow/analysis/entity"
	"github.com/cs-au-dk/goat-flow/utils/hmap"
)

// AddressSharing partitions storage into classes of entities that denote
// the same address, e.g. a ref parameter and the variable passed for it.
// Classes only grow during an analysis.
type AddressSharing struct {
	elements *hmap.Map[*entity.Entity, *uf.Element]
}

func NewAddressSharing() *AddressSharing {
	return &AddressSharing{
		elements: hmap.NewMap[*uf.Element, *entity.Entity](entity.Hasher{}),
	}
}

func (s *AddressSharing) element(e *entity.Entity) *uf.Element {
	return s.elements.GetOrSet(e, func() *uf.Element {
		el := uf.NewElement()
		el.Data = e
		return el
	})
}

// Share records that a and b denote the same address.
func (s *AddressSharing) Share(a, b *entity.Entity) {
	if a.Equal(b) {
		return
	}
	uf.Union(s.element(a), s.element(b))
}

// Aliases lists the other entities sharing the address of e.
func (s *AddressSharing) Aliases(e *entity.Entity) (res []*entity.Entity) {
	if s == nil || s.elements.Len() == 0 {
		return nil
	}
	el, ok := s.elements.GetOk(e)
	if !ok {
		return nil
	}
	rep := el.Find()
	s.elements.ForEach(func(o *entity.Entity, oel *uf.Element) {
		if oel != el && oel.Find() == rep {
			res = append(res, o)
		}
	})
	return
}
