package cfg

import (
	"fmt"
)

// Type is an opaque handle on a type of the analyzed program. Types are
// compared by identity.
type Type struct {
	Name string
	// Value types have copy semantics; their members live at the location
	// of the enclosing storage.
	Value bool
	// Base is the direct supertype, if any.
	Base *Type
	// Elem is the element type of array types.
	Elem *Type
	// Delegate marks types whose values are invocable lambdas.
	Delegate bool
}

// Well-known types.
var (
	Object    = &Type{Name: "object"}
	Bool      = &Type{Name: "bool", Value: true}
	Int       = &Type{Name: "int", Value: true}
	Float     = &Type{Name: "float", Value: true}
	String    = &Type{Name: "string", Base: Object}
	Exception = &Type{Name: "exception", Base: Object}
	Void      = &Type{Name: "void", Value: true}
	Func      = &Type{Name: "func", Base: Object, Delegate: true}
)

// NewType creates a reference type deriving from base. A nil base derives
// from Object.
func NewType(name string, base *Type) *Type {
	if base == nil {
		base = Object
	}
	return &Type{Name: name, Base: base}
}

// NewValueType creates a type with copy semantics.
func NewValueType(name string) *Type {
	return &Type{Name: name, Value: true}
}

// ArrayOf creates an array type with the given element type.
func ArrayOf(elem *Type) *Type {
	return &Type{Name: elem.String() + "[]", Base: Object, Elem: elem}
}

func (t *Type) String() string {
	if t == nil {
		return "?"
	}
	return t.Name
}

// IsReference holds for types whose values are references to heap locations.
func (t *Type) IsReference() bool {
	return t != nil && !t.Value
}

// IsSubtypeOf checks whether t derives from (or is) o.
func (t *Type) IsSubtypeOf(o *Type) bool {
	if o == nil {
		return true
	}
	for ; t != nil; t = t.Base {
		if t == o {
			return true
		}
	}
	return false
}

// SymbolKind discriminates what a symbol declares.
type SymbolKind int

const (
	SymLocal SymbolKind = iota
	SymParameter
	SymField
	SymProperty
	SymMethod
)

func (k SymbolKind) String() string {
	switch k {
	case SymLocal:
		return "local"
	case SymParameter:
		return "parameter"
	case SymField:
		return "field"
	case SymProperty:
		return "property"
	case SymMethod:
		return "method"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// RefKind is the passing mode of a parameter or argument.
type RefKind int

const (
	ByValue RefKind = iota
	ByRef
	ByOut
)

// Symbol is an opaque handle on a declared program entity. Symbols are
// compared by identity.
type Symbol struct {
	Name string
	Kind SymbolKind
	Type *Type
	// Owner is the declaring type of fields, properties and methods.
	Owner *Type
	// Container is the method declaring a local or parameter.
	Container *Symbol
	Static    bool
	// Const symbols are compile-time constants with the given value.
	Const      bool
	ConstValue any
	// Ordinal is the position of a parameter.
	Ordinal int
	RefKind RefKind
	// Method is set for method symbols.
	Method *MethodInfo
}

// MethodInfo describes a method, lambda or local function.
type MethodInfo struct {
	// Body is nil when the definition is not available.
	Body       *Graph
	Parameters []*Symbol
	ReturnType *Type

	Virtual, Abstract, Override, Sealed bool
	Lambda, LocalFunction               bool
}

func (s *Symbol) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.Owner != nil && (s.Kind == SymField || s.Kind == SymProperty || s.Kind == SymMethod) {
		return s.Owner.Name + "." + s.Name
	}
	return s.Name
}

// NewLocal declares a local of the given method.
func NewLocal(container *Symbol, name string, typ *Type) *Symbol {
	return &Symbol{Name: name, Kind: SymLocal, Type: typ, Container: container}
}

// NewField declares an instance field of owner.
func NewField(owner *Type, name string, typ *Type) *Symbol {
	return &Symbol{Name: name, Kind: SymField, Type: typ, Owner: owner}
}

// NewStaticField declares a static field of owner.
func NewStaticField(owner *Type, name string, typ *Type) *Symbol {
	return &Symbol{Name: name, Kind: SymField, Type: typ, Owner: owner, Static: true}
}

// NewMethod declares a method of owner. Parameters are added with AddParameter.
func NewMethod(owner *Type, name string, ret *Type) *Symbol {
	if ret == nil {
		ret = Void
	}
	return &Symbol{
		Name:   name,
		Kind:   SymMethod,
		Type:   ret,
		Owner:  owner,
		Method: &MethodInfo{ReturnType: ret},
	}
}

// NewLambda declares an anonymous function nested in container.
func NewLambda(container *Symbol, name string, ret *Type) *Symbol {
	m := NewMethod(nil, name, ret)
	m.Container = container
	m.Static = true
	m.Method.Lambda = true
	return m
}

// AddParameter appends a parameter to a method symbol.
func (s *Symbol) AddParameter(name string, typ *Type, ref RefKind) *Symbol {
	p := &Symbol{
		Name:      name,
		Kind:      SymParameter,
		Type:      typ,
		Container: s,
		Ordinal:   len(s.Method.Parameters),
		RefKind:   ref,
	}
	s.Method.Parameters = append(s.Method.Parameters, p)
	return p
}

// IsLambdaOrLocalFunction holds for anonymous and local functions.
func (s *Symbol) IsLambdaOrLocalFunction() bool {
	return s != nil && s.Method != nil && (s.Method.Lambda || s.Method.LocalFunction)
}

// MayBeOverridden holds for methods whose runtime target is unknown
// statically.
func (s *Symbol) MayBeOverridden() bool {
	if s == nil || s.Method == nil || s.Method.Sealed {
		return false
	}
	return s.Method.Virtual || s.Method.Abstract || s.Method.Override
}
