package ssaconv

import (
	"fmt"
	"go/types"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
)

// Panic is the type of values thrown by panic.
var Panic = cfg.NewType("panic", cfg.Exception)

// typeOf maps a Go type to its handle. Named types whose underlying type is
// a boolean or a number share the handle of the basic type, so that
// analyses recognise their values.
func (p *Program) typeOf(t types.Type) *cfg.Type {
	if ct, ok := p.types.At(t).(*cfg.Type); ok {
		return ct
	}
	ct := p.newType(t)
	p.types.Set(t, ct)
	return ct
}

func (p *Program) newType(t types.Type) *cfg.Type {
	switch u := t.Underlying().(type) {
	case *types.Basic:
		info := u.Info()
		switch {
		case info&types.IsBoolean != 0:
			return cfg.Bool
		case info&types.IsInteger != 0:
			return cfg.Int
		case info&types.IsFloat != 0:
			return cfg.Float
		case info&types.IsString != 0:
			return cfg.String
		case info&types.IsComplex != 0:
			return cfg.NewValueType(t.String())
		}
		return cfg.Object

	case *types.Struct:
		return cfg.NewValueType(t.String())

	case *types.Array:
		ct := cfg.NewValueType(t.String())
		ct.Elem = p.typeOf(u.Elem())
		return ct

	case *types.Slice:
		ct := cfg.NewType(t.String(), nil)
		ct.Elem = p.typeOf(u.Elem())
		return ct

	case *types.Map:
		ct := cfg.NewType(t.String(), nil)
		ct.Elem = p.typeOf(u.Elem())
		return ct

	case *types.Chan:
		ct := cfg.NewType(t.String(), nil)
		ct.Elem = p.typeOf(u.Elem())
		return ct

	case *types.Pointer:
		ct := cfg.NewType(t.String(), nil)
		ct.Elem = p.typeOf(u.Elem())
		return ct

	case *types.Signature:
		return cfg.Func

	case *types.Tuple:
		if u.Len() == 0 {
			return cfg.Void
		}
		return cfg.NewValueType(t.String())
	}
	return cfg.NewType(t.String(), nil)
}

// result is the return type of a signature. Multiple results are returned
// as one tuple.
func (p *Program) result(sig *types.Signature) *cfg.Type {
	switch res := sig.Results(); res.Len() {
	case 0:
		return nil
	case 1:
		return p.typeOf(res.At(0).Type())
	default:
		return p.typeOf(res)
	}
}

// field is the symbol of the i'th field of a struct, or of the struct a
// pointer points to.
func (p *Program) field(t types.Type, i int) *cfg.Symbol {
	if ptr, ok := t.Underlying().(*types.Pointer); ok {
		t = ptr.Elem()
	}
	st, ok := t.Underlying().(*types.Struct)
	if !ok {
		return cfg.NewField(p.typeOf(t), fmt.Sprintf("#%d", i), cfg.Object)
	}
	v := st.Field(i)
	if s, ok := p.fields[v]; ok {
		return s
	}
	s := cfg.NewField(p.typeOf(t), v.Name(), p.typeOf(v.Type()))
	p.fields[v] = s
	return s
}

// deref is the symbol of the storage a pointer of type ptr points to. It
// is used when the pointer is not known to be the address of a variable,
// field or element.
func (p *Program) deref(ptr types.Type) *cfg.Symbol {
	owner := p.typeOf(ptr)
	if s, ok := p.derefs[owner]; ok {
		return s
	}
	elem := cfg.Object
	if pt, ok := ptr.Underlying().(*types.Pointer); ok {
		elem = p.typeOf(pt.Elem())
	}
	s := cfg.NewField(owner, "*", elem)
	p.derefs[owner] = s
	return s
}

func pointee(ptr types.Type) types.Type {
	if pt, ok := ptr.Underlying().(*types.Pointer); ok {
		return pt.Elem()
	}
	return types.Typ[types.Invalid]
}

func isVoid(t types.Type) bool {
	tup, ok := t.(*types.Tuple)
	return ok && tup.Len() == 0
}

func isMap(t types.Type) bool {
	_, ok := t.Underlying().(*types.Map)
	return ok
}
