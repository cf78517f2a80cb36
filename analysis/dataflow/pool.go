package dataflow

import (
	"sync"

	"golang.org/x/tools/container/intsets"
)

// ordinalSets recycles the block sets used as worklists.
var ordinalSets = sync.Pool{
	New: func() any { return new(intsets.Sparse) },
}

func acquireOrdinals() *intsets.Sparse {
	return ordinalSets.Get().(*intsets.Sparse)
}

func releaseOrdinals(sets ...*intsets.Sparse) {
	for _, s := range sets {
		s.Clear()
		ordinalSets.Put(s)
	}
}
