package entity

import (
	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
	"github.com/cs-au-dk/goat-flow/utils/hmap"
)

// FactoryConfig describes the activation a factory creates entities for.
type FactoryConfig struct {
	Graph  *cfg.Graph
	Method *cfg.Symbol
	Stack  *loc.CallStack
	// PointsTo yields the points-to value of an operation that was already
	// evaluated in the current state. It determines the location of
	// members of reference-typed instances.
	PointsTo func(*cfg.Operation) loc.PointsTo
	// This is the points-to value of the receiver. If undefined, the
	// receiver gets its own location.
	This loc.PointsTo
	// Captured resolves the call stack of the activation declaring a local
	// or parameter of an enclosing method.
	Captured func(*cfg.Symbol) (*loc.CallStack, bool)
}

// Factory creates entities for the operations of one activation. Entities
// are interned, so structurally equal entities are pointer-equal.
type Factory struct {
	FactoryConfig

	interned *hmap.Map[*Entity, *Entity]
	// cache holds entities of operations that do not depend on the state.
	cache map[*cfg.Operation]*Entity
	// lvalues binds l-value flow captures to the storage they capture.
	lvalues map[int]*Entity
	this    *Entity
}

func NewFactory(config FactoryConfig) *Factory {
	f := &Factory{
		FactoryConfig: config,
		interned:      hmap.NewMap[*Entity, *Entity](Hasher{}),
		cache:         make(map[*cfg.Operation]*Entity),
		lvalues:       make(map[int]*Entity),
	}
	if f.PointsTo == nil {
		f.PointsTo = func(*cfg.Operation) loc.PointsTo { return loc.UnknownPointsTo() }
	}
	if f.This.Kind() == loc.Undefined && f.Method != nil {
		f.This = loc.KnownPointsTo(loc.This(f.Method, f.Method.Owner, f.Stack))
	}
	return f
}

func (f *Factory) intern(e *Entity) *Entity {
	return f.interned.GetOrSet(e, func() *Entity { return e })
}

// Interned is the number of distinct entities created so far.
func (f *Factory) Interned() int {
	return f.interned.Len()
}

// ForSymbol is the entity of a local or parameter.
func (f *Factory) ForSymbol(s *cfg.Symbol) *Entity {
	stack := f.Stack
	if f.Method != nil && s.Container != nil && s.Container != f.Method && f.Captured != nil {
		if cs, ok := f.Captured(s); ok {
			stack = cs
		}
	}
	return f.intern(newEntity(Entity{
		Symbol:   s,
		Type:     s.Type,
		Location: loc.KnownPointsTo(loc.ForSymbol(s, stack)),
	}))
}

// ForThis is the entity of the receiver.
func (f *Factory) ForThis(typ *cfg.Type) *Entity {
	if f.this == nil {
		f.this = f.intern(newEntity(Entity{
			IsThis:   true,
			Type:     typ,
			Location: f.This,
		}))
	}
	return f.this
}

// ForStatic is the entity of a static field or property.
func (f *Factory) ForStatic(s *cfg.Symbol) *Entity {
	return f.intern(newEntity(Entity{
		Symbol:   s,
		Type:     s.Type,
		Location: loc.NoLocationPointsTo(),
	}))
}

// ForCapture is the entity of an r-value flow capture.
func (f *Factory) ForCapture(id int, typ *cfg.Type) *Entity {
	if e, ok := f.lvalues[id]; ok {
		return e
	}
	return f.intern(newEntity(Entity{
		CaptureID:     id,
		CaptureMethod: f.Method,
		LValueCapture: f.Graph != nil && f.Graph.IsLValueCapture(id),
		Type:          typ,
		Location:      loc.KnownPointsTo(loc.ForCapture(f.Method, id, typ, f.Stack)),
	}))
}

// BindLValueCapture makes references to an l-value capture denote the
// captured storage.
func (f *Factory) BindLValueCapture(id int, e *Entity) {
	f.lvalues[id] = e
}

// ForMember is the entity of a member of an instance with the given
// points-to value.
func (f *Factory) ForMember(s *cfg.Symbol, instance loc.PointsTo) (*Entity, bool) {
	instance = instance.WithNullState(loc.NotNull)
	if !instance.IsKnown() {
		return nil, false
	}
	return f.intern(newEntity(Entity{
		Symbol:   s,
		Type:     s.Type,
		Location: instance,
	})), true
}

// ForChild is the entity of a member of a value-typed parent.
func (f *Factory) ForChild(s *cfg.Symbol, parent *Entity) *Entity {
	return f.intern(newEntity(Entity{
		Symbol:   s,
		Type:     s.Type,
		Parent:   parent,
		Location: parent.Location,
	}))
}

// ForInstance is the entity of a value-typed instance produced by op.
func (f *Factory) ForInstance(op *cfg.Operation) *Entity {
	return f.intern(newEntity(Entity{
		InstanceRef: op,
		Type:        op.Type,
		Location:    loc.KnownPointsTo(loc.Creation(op, f.Stack)),
	}))
}

func (f *Factory) indices(ops []*cfg.Operation) []Index {
	res := make([]Index, len(ops))
	for i, op := range ops {
		if op.Kind == cfg.OpLiteral {
			switch v := op.Value.(type) {
			case int64, string:
				res[i] = ConstantIndex(v)
				continue
			case int:
				res[i] = ConstantIndex(int64(v))
				continue
			}
		}
		res[i] = OpaqueIndex(op)
	}
	return res
}

// TryCreate resolves the storage denoted by op. It fails for operations
// that do not denote storage, and for members of instances whose location
// is not known.
func (f *Factory) TryCreate(op *cfg.Operation) (*Entity, bool) {
	if e, ok := f.cache[op]; ok {
		return e, true
	}

	var (
		e      *Entity
		cached bool
	)
	switch op.Kind {
	case cfg.OpLocalRef, cfg.OpParameterRef:
		e, cached = f.ForSymbol(op.Symbol), true

	case cfg.OpInstanceRef:
		e, cached = f.ForThis(op.Type), true

	case cfg.OpFlowCapture, cfg.OpFlowCaptureRef:
		if _, bound := f.lvalues[op.CaptureID]; bound {
			return f.lvalues[op.CaptureID], true
		}
		e = f.ForCapture(op.CaptureID, op.Type)

	case cfg.OpFieldRef, cfg.OpPropertyRef:
		if op.Symbol.Static || op.Instance == nil {
			e, cached = f.ForStatic(op.Symbol), true
			break
		}
		if op.Instance.Type != nil && op.Instance.Type.Value {
			parent, ok := f.TryCreate(op.Instance)
			if !ok {
				return nil, false
			}
			e = f.ForChild(op.Symbol, parent)
			break
		}
		var ok bool
		if e, ok = f.ForMember(op.Symbol, f.PointsTo(op.Instance)); !ok {
			return nil, false
		}

	case cfg.OpArrayElementRef:
		pt := f.PointsTo(op.Instance).WithNullState(loc.NotNull)
		if !pt.IsKnown() {
			return nil, false
		}
		e = f.intern(newEntity(Entity{
			Indices:  f.indices(op.Arguments),
			Type:     op.Type,
			Location: pt,
		}))

	case cfg.OpInvocation, cfg.OpObjectCreation:
		if op.Type == nil || !op.Type.Value || op.Type == cfg.Void {
			return nil, false
		}
		e = f.ForInstance(op)

	case cfg.OpConversion:
		if op.Type != nil && op.Operand.Type == op.Type {
			return f.TryCreate(op.Operand)
		}
		return nil, false

	default:
		return nil, false
	}

	if cached {
		f.cache[op] = e
	}
	return e, true
}
