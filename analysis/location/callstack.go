package location

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
)

// CallStack is the chain of call sites leading to the analyzed activation.
// Call stacks are interned, so equal stacks are pointer-equal and may be
// compared with ==. The nil call stack is the empty one.
type CallStack struct {
	parent *CallStack
	site   *cfg.Operation
	depth  int
}

type stackKey struct {
	parent *CallStack
	site   *cfg.Operation
}

var stacks = struct {
	sync.Mutex
	interned map[stackKey]*CallStack
}{interned: make(map[stackKey]*CallStack)}

// Push extends the call stack with a call site.
func (s *CallStack) Push(site *cfg.Operation) *CallStack {
	key := stackKey{s, site}

	stacks.Lock()
	defer stacks.Unlock()
	if res, ok := stacks.interned[key]; ok {
		return res
	}
	res := &CallStack{parent: s, site: site, depth: s.Depth() + 1}
	stacks.interned[key] = res
	return res
}

// Pop removes the most recent call site.
func (s *CallStack) Pop() *CallStack {
	if s == nil {
		return nil
	}
	return s.parent
}

// Top is the most recent call site, or nil for the empty stack.
func (s *CallStack) Top() *cfg.Operation {
	if s == nil {
		return nil
	}
	return s.site
}

func (s *CallStack) Depth() int {
	if s == nil {
		return 0
	}
	return s.depth
}

// Contains checks whether site occurs anywhere on the stack.
func (s *CallStack) Contains(site *cfg.Operation) bool {
	for ; s != nil; s = s.parent {
		if s.site == site {
			return true
		}
	}
	return false
}

func (s *CallStack) Hash() uint32 {
	return phasher.Hash(s)
}

func (s *CallStack) String() string {
	if s == nil {
		return "[]"
	}
	sites := make([]string, 0, s.depth)
	for c := s; c != nil; c = c.parent {
		sites = append(sites, fmt.Sprintf("%d", c.site.ID))
	}
	// Outermost call first.
	for i, j := 0, len(sites)-1; i < j; i, j = i+1, j-1 {
		sites[i], sites[j] = sites[j], sites[i]
	}
	return "[" + strings.Join(sites, "→") + "]"
}
