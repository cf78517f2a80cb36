package entity

import (
	"fmt"
	"strings"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
	"github.com/cs-au-dk/goat-flow/utils"

	"github.com/fatih/color"
)

var colorize = struct {
	Entity func(...interface{}) string
	Index  func(...interface{}) string
}{
	Entity: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiMagenta).SprintFunc())(is...)
	},
	Index: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiCyan).SprintFunc())(is...)
	},
}

var phasher = utils.PointerHasher[any]{}

// Index is an abstract element index: either a constant or an opaque token
// standing for the value of an index operation.
type Index struct {
	// Constant is an int64 or string.
	Constant    any
	HasConstant bool
	Op          *cfg.Operation
}

func ConstantIndex(c any) Index {
	return Index{Constant: c, HasConstant: true}
}

func OpaqueIndex(op *cfg.Operation) Index {
	return Index{Op: op}
}

func (i Index) Hash() uint32 {
	if i.HasConstant {
		return utils.HashValue(i.Constant)
	}
	return phasher.Hash(i.Op)
}

func (i Index) String() string {
	if i.HasConstant {
		return fmt.Sprint(i.Constant)
	}
	return fmt.Sprintf("?%d", i.Op.ID)
}

// Entity is the canonical identity of a storage location. Entities are
// immutable; operations that change an attribute return a new entity.
type Entity struct {
	Symbol  *cfg.Symbol
	Indices []Index
	// InstanceRef is the operation producing an instance that has no other
	// identity, e.g. a value returned from a call.
	InstanceRef *cfg.Operation
	// CaptureID is non-zero for flow captures of CaptureMethod.
	CaptureID     int
	CaptureMethod *cfg.Symbol
	LValueCapture bool
	// Location is the instance location: where the storage lives.
	Location loc.PointsTo
	// Parent is set for members of value-typed instances, which share the
	// location of the parent.
	Parent *Entity
	Type   *cfg.Type
	IsThis bool

	identity uint32
	hash     uint32
}

// newEntity computes the hashes of a fully initialized entity.
func newEntity(e Entity) *Entity {
	hs := []uint32{
		phasher.Hash(e.Symbol),
		phasher.Hash(e.InstanceRef),
		uint32(e.CaptureID),
		phasher.Hash(e.CaptureMethod),
		phasher.Hash(e.Type),
	}
	for _, i := range e.Indices {
		hs = append(hs, i.Hash())
	}
	if e.Parent != nil {
		hs = append(hs, e.Parent.identity)
	}
	if e.IsThis {
		hs = append(hs, 1)
	}
	e.identity = utils.HashCombine(hs...)
	e.hash = utils.HashCombine(e.identity, e.Location.Hash())
	return &e
}

// EqualIgnoringLocation compares everything but the instance location.
func (e *Entity) EqualIgnoringLocation(o *Entity) bool {
	if e == o {
		return true
	}
	if e == nil || o == nil || e.identity != o.identity {
		return false
	}
	if e.Symbol != o.Symbol ||
		e.InstanceRef != o.InstanceRef ||
		e.CaptureID != o.CaptureID ||
		e.CaptureMethod != o.CaptureMethod ||
		e.LValueCapture != o.LValueCapture ||
		e.Type != o.Type ||
		e.IsThis != o.IsThis ||
		len(e.Indices) != len(o.Indices) {
		return false
	}
	for i := range e.Indices {
		if e.Indices[i] != o.Indices[i] {
			return false
		}
	}
	if (e.Parent == nil) != (o.Parent == nil) {
		return false
	}
	return e.Parent == nil || e.Parent.EqualIgnoringLocation(o.Parent)
}

// Equal is identity including the instance location.
func (e *Entity) Equal(o *Entity) bool {
	if e == o {
		return true
	}
	return e.EqualIgnoringLocation(o) && e.hash == o.hash && e.Location.Equal(o.Location)
}

func (e *Entity) Hash() uint32 {
	return e.hash
}

// IdentityHash is consistent with EqualIgnoringLocation.
func (e *Entity) IdentityHash() uint32 {
	return e.identity
}

// WithLocation returns the entity with a different instance location. The
// location of value-typed members follows their parent.
func (e *Entity) WithLocation(l loc.PointsTo) *Entity {
	if e.Location.Equal(l) {
		return e
	}
	c := *e
	c.Location = l
	if c.Parent != nil {
		c.Parent = c.Parent.WithLocation(l)
	}
	return newEntity(c)
}

// WithParent returns the entity as a member of parent.
func (e *Entity) WithParent(parent *Entity) *Entity {
	c := *e
	c.Parent = parent
	c.Location = parent.Location
	return newEntity(c)
}

// Root is the outermost value-typed ancestor of the entity (or itself).
func (e *Entity) Root() *Entity {
	for e.Parent != nil {
		e = e.Parent
	}
	return e
}

// HasAncestor checks whether a is a strict ancestor of e.
func (e *Entity) HasAncestor(a *Entity) bool {
	for p := e.Parent; p != nil; p = p.Parent {
		if p.Equal(a) {
			return true
		}
	}
	return false
}

// Reroot replaces the ancestor from (or the entity itself) with to.
func (e *Entity) Reroot(from, to *Entity) *Entity {
	if e.Equal(from) {
		return to
	}
	if e.Parent == nil {
		return e
	}
	parent := e.Parent.Reroot(from, to)
	if parent == e.Parent {
		return e
	}
	return e.WithParent(parent)
}

// IsCompileTimeConstant holds for constant symbols.
func (e *Entity) IsCompileTimeConstant() bool {
	return e.Symbol != nil && e.Symbol.Const
}

// IsCapture holds for flow capture entities.
func (e *Entity) IsCapture() bool {
	return e.CaptureID != 0
}

// IsFrameOwned holds for entities whose storage lives in the activation
// given by stack: locals, parameters and captures of that activation, and
// their value-typed members.
func (e *Entity) IsFrameOwned(stack *loc.CallStack) bool {
	root := e.Root()
	if root.Symbol == nil && !root.IsCapture() {
		return false
	}
	if root.Symbol != nil && root.Symbol.Kind != cfg.SymLocal && root.Symbol.Kind != cfg.SymParameter {
		return false
	}
	for _, l := range root.Location.Locations() {
		if (l.Kind() == loc.KindSymbol || l.Kind() == loc.KindCapture) && l.Stack == stack {
			return true
		}
	}
	return false
}

func (e *Entity) String() string {
	var sb strings.Builder
	switch {
	case e.Parent != nil:
		sb.WriteString(e.Parent.String())
		sb.WriteString(".")
	case e.Symbol != nil && (e.Symbol.Kind == cfg.SymField || e.Symbol.Kind == cfg.SymProperty) && !e.Symbol.Static:
		sb.WriteString(e.Location.String())
		sb.WriteString(".")
	}

	switch {
	case e.IsThis:
		sb.WriteString(colorize.Entity("this"))
	case e.Symbol != nil:
		sb.WriteString(colorize.Entity(e.Symbol.String()))
	case e.IsCapture():
		sb.WriteString(colorize.Entity(fmt.Sprintf("#%d", e.CaptureID)))
	case e.InstanceRef != nil:
		sb.WriteString(colorize.Entity(fmt.Sprintf("inst:%d", e.InstanceRef.ID)))
	case len(e.Indices) > 0:
		sb.WriteString(e.Location.String())
	}

	if len(e.Indices) > 0 {
		idx := make([]string, len(e.Indices))
		for i, ix := range e.Indices {
			idx[i] = colorize.Index(ix)
		}
		sb.WriteString("[" + strings.Join(idx, ", ") + "]")
	}

	if e.Symbol != nil && (e.Symbol.Kind == cfg.SymLocal || e.Symbol.Kind == cfg.SymParameter) {
		if ls := e.Location.Locations(); len(ls) == 1 && ls[0].Stack != nil {
			sb.WriteString(fmt.Sprintf("@%s", ls[0].Stack))
		}
	}
	return sb.String()
}

// Hasher implements utils.Hasher for entities using full equality.
type Hasher struct{}

func (Hasher) Hash(e *Entity) uint32 { return e.Hash() }

func (Hasher) Equal(a, b *Entity) bool { return a.Equal(b) }
