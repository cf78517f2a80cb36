package ssaconv

import (
	"fmt"
	"go/constant"
	"go/token"
	"strings"

	"golang.org/x/tools/go/ssa"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
)

var binaryOps = map[token.Token]cfg.BinaryOperator{
	token.ADD: cfg.BinAdd,
	token.SUB: cfg.BinSub,
	token.MUL: cfg.BinMul,
	token.QUO: cfg.BinDiv,
	token.REM: cfg.BinRem,
	token.EQL: cfg.BinEq,
	token.NEQ: cfg.BinNe,
	token.LSS: cfg.BinLt,
	token.LEQ: cfg.BinLe,
	token.GTR: cfg.BinGt,
	token.GEQ: cfg.BinGe,
}

// lowerInstr lowers an instruction that does not transfer control.
func (l *funcLowerer) lowerInstr(instr ssa.Instruction) []*cfg.Operation {
	switch instr := instr.(type) {
	case *ssa.DebugRef, *ssa.RunDefers:
		return nil

	case *ssa.FieldAddr, *ssa.IndexAddr:
		// Addresses are resolved where they are used.
		return nil

	case *ssa.Alloc:
		elem := l.typeOf(pointee(instr.Type()))
		if !instr.Heap {
			return []*cfg.Operation{cfg.Assign(cfg.Local(l.Variable(instr)), cfg.Default(elem))}
		}
		reg := l.Register(instr)
		return []*cfg.Operation{
			cfg.Assign(cfg.Local(reg), cfg.New(reg.Type, nil)),
			cfg.Assign(cfg.Field(cfg.Local(reg), l.deref(instr.Type())), cfg.Default(elem)),
		}

	case *ssa.Store:
		return []*cfg.Operation{cfg.Assign(l.storage(instr.Addr), l.value(instr.Val))}

	case *ssa.MapUpdate:
		return []*cfg.Operation{
			cfg.Assign(cfg.Elem(l.value(instr.Map), l.value(instr.Key)), l.value(instr.Value)),
		}

	case *ssa.Go:
		return []*cfg.Operation{cfg.Stmt(cfg.Other("go", cfg.Void, l.callOperands(&instr.Call)...))}

	case *ssa.Defer:
		return []*cfg.Operation{cfg.Stmt(cfg.Other("defer", cfg.Void, l.callOperands(&instr.Call)...))}

	case ssa.Value:
		op := l.expr(instr)
		if isVoid(instr.Type()) {
			return []*cfg.Operation{cfg.Stmt(op)}
		}
		return []*cfg.Operation{cfg.Assign(cfg.Local(l.Register(instr)), op)}
	}
	return []*cfg.Operation{cfg.Stmt(cfg.Other(kindOf(instr), cfg.Void, l.operands(instr)...))}
}

// expr lowers the computation of an SSA register.
func (l *funcLowerer) expr(v ssa.Value) *cfg.Operation {
	typ := l.typeOf(v.Type())

	switch v := v.(type) {
	case *ssa.BinOp:
		if bop, ok := binaryOps[v.Op]; ok {
			return cfg.Bin(bop, l.value(v.X), l.value(v.Y))
		}
		return cfg.Other(v.Op.String(), typ, l.value(v.X), l.value(v.Y))

	case *ssa.UnOp:
		switch v.Op {
		case token.NOT:
			return cfg.Not(l.value(v.X))
		case token.SUB:
			return cfg.Neg(l.value(v.X))
		case token.MUL:
			return l.storage(v.X)
		}
		return cfg.Other(v.Op.String(), typ, l.value(v.X))

	case *ssa.Call:
		return l.call(&v.Call, typ)

	case *ssa.Field:
		return cfg.Field(l.value(v.X), l.field(v.X.Type(), v.Field))

	case *ssa.Index:
		return cfg.Elem(l.value(v.X), l.value(v.Index))

	case *ssa.Lookup:
		if !v.CommaOk && isMap(v.X.Type()) {
			return cfg.Elem(l.value(v.X), l.value(v.Index))
		}

	case *ssa.Convert:
		return cfg.Convert(typ, l.value(v.X))
	case *ssa.ChangeType:
		return cfg.Convert(typ, l.value(v.X))
	case *ssa.MakeInterface:
		return cfg.Convert(typ, l.value(v.X))
	case *ssa.ChangeInterface:
		return cfg.Convert(typ, l.value(v.X))
	case *ssa.SliceToArrayPointer:
		return cfg.Convert(typ, l.value(v.X))

	case *ssa.TypeAssert:
		if !v.CommaOk {
			return cfg.Convert(l.typeOf(v.AssertedType), l.value(v.X))
		}

	case *ssa.MakeClosure:
		fn := v.Fn.(*ssa.Function)
		l.closures[fn] = v
		l.enqueue(fn)
		return cfg.Lambda(l.Symbol(fn))

	case *ssa.MakeSlice:
		elem := cfg.Object
		if typ.Elem != nil {
			elem = typ.Elem
		}
		return cfg.NewArray(elem, l.value(v.Len))

	case *ssa.MakeMap, *ssa.MakeChan:
		return cfg.New(typ, nil, l.operands(v.(ssa.Instruction))...)

	case *ssa.Extract:
		return cfg.Other(fmt.Sprintf("#%d", v.Index), typ, l.value(v.Tuple))
	}

	return cfg.Other(kindOf(v.(ssa.Instruction)), typ, l.operands(v.(ssa.Instruction))...)
}

// call lowers a call. Calls of functions are static, calls through
// interfaces are virtual calls of the abstract interface method, and
// calls of function values invoke whatever lambda the value holds.
func (l *funcLowerer) call(cc *ssa.CallCommon, ret *cfg.Type) *cfg.Operation {
	if cc.IsInvoke() {
		m := l.interfaceMethod(cc.Method)
		args := []*cfg.Operation{cfg.Arg(m.Method.Parameters[0], l.value(cc.Value))}
		return cfg.CallVirtual(m, nil, append(args, l.args(m, 1, cc.Args)...)...)
	}

	switch callee := cc.Value.(type) {
	case *ssa.Function:
		l.enqueue(callee)
		s := l.Symbol(callee)
		return cfg.Call(s, nil, l.args(s, 0, cc.Args)...)

	case *ssa.Builtin:
		args := make([]*cfg.Operation, len(cc.Args))
		for i, a := range cc.Args {
			args[i] = l.value(a)
		}
		return cfg.Other(callee.Name(), ret, args...)
	}

	args := make([]*cfg.Operation, len(cc.Args))
	for i, a := range cc.Args {
		args[i] = l.value(a)
	}
	if ret == cfg.Void {
		ret = nil
	}
	return cfg.Invoke(l.value(cc.Value), ret, args...)
}

// args binds the arguments of a call to the parameters of s, starting at
// parameter offset.
func (l *funcLowerer) args(s *cfg.Symbol, offset int, vals []ssa.Value) []*cfg.Operation {
	params := s.Method.Parameters
	res := make([]*cfg.Operation, len(vals))
	for i, a := range vals {
		var p *cfg.Symbol
		if i+offset < len(params) {
			p = params[i+offset]
		}
		res[i] = cfg.Arg(p, l.value(a))
	}
	return res
}

// callOperands are the callee and arguments of a call that is not
// executed in place, such as go and defer statements.
func (l *funcLowerer) callOperands(cc *ssa.CallCommon) []*cfg.Operation {
	res := []*cfg.Operation{l.value(cc.Value)}
	for _, a := range cc.Args {
		res = append(res, l.value(a))
	}
	return res
}

// storage is the storage an address refers to.
func (l *funcLowerer) storage(addr ssa.Value) *cfg.Operation {
	switch a := addr.(type) {
	case *ssa.Global:
		return cfg.StaticField(l.Global(a))
	case *ssa.Alloc:
		if !a.Heap {
			return cfg.Local(l.Variable(a))
		}
	case *ssa.FieldAddr:
		return cfg.Field(l.instance(a.X), l.field(a.X.Type(), a.Field))
	case *ssa.IndexAddr:
		return cfg.Elem(l.instance(a.X), l.value(a.Index))
	}
	return cfg.Field(l.value(addr), l.deref(addr.Type()))
}

// instance is the storage an address refers to when it is known, and the
// pointer itself otherwise.
func (l *funcLowerer) instance(x ssa.Value) *cfg.Operation {
	switch x := x.(type) {
	case *ssa.Global, *ssa.FieldAddr, *ssa.IndexAddr:
		return l.storage(x)
	case *ssa.Alloc:
		if !x.Heap {
			return l.storage(x)
		}
	}
	return l.value(x)
}

// value is the operation reading an SSA value.
func (l *funcLowerer) value(v ssa.Value) *cfg.Operation {
	switch v := v.(type) {
	case *ssa.Const:
		return l.constant(v)

	case *ssa.Parameter:
		l.Symbol(v.Parent())
		return cfg.Param(l.params[v])

	case *ssa.FreeVar:
		return l.freeVar(v)

	case *ssa.Function:
		l.enqueue(v)
		return cfg.Lambda(l.Symbol(v))

	case *ssa.Builtin:
		return cfg.Other(v.Name(), cfg.Func)

	case *ssa.Global:
		return cfg.Other("&"+v.Name(), l.typeOf(v.Type()))

	case *ssa.FieldAddr, *ssa.IndexAddr:
		return cfg.Other("&", l.typeOf(v.Type()), l.operands(v.(ssa.Instruction))...)

	case *ssa.Alloc:
		if !v.Heap {
			return cfg.Other("&"+l.Variable(v).Name, l.typeOf(v.Type()))
		}
	}
	return cfg.Local(l.Register(v))
}

// freeVar reads a free variable of a closure: the value bound to it by the
// enclosing function.
func (l *funcLowerer) freeVar(fv *ssa.FreeVar) *cfg.Operation {
	fn := fv.Parent()
	mc, ok := l.closures[fn]
	if !ok {
		return cfg.Other(fv.Name(), l.typeOf(fv.Type()))
	}
	for i, v := range fn.FreeVars {
		if v == fv {
			return l.value(mc.Bindings[i])
		}
	}
	panic(fmt.Errorf("%v is not a free variable of %v", fv, fn))
}

func (l *funcLowerer) constant(k *ssa.Const) *cfg.Operation {
	typ := l.typeOf(k.Type())
	if k.Value == nil {
		if typ.IsReference() {
			return cfg.Null(typ)
		}
		return cfg.Default(typ)
	}

	switch k.Value.Kind() {
	case constant.Bool:
		return cfg.BoolLit(constant.BoolVal(k.Value))
	case constant.String:
		return cfg.Lit(constant.StringVal(k.Value), typ)
	case constant.Int, constant.Float:
		switch typ {
		case cfg.Int:
			if x, ok := constant.Int64Val(constant.ToInt(k.Value)); ok {
				return cfg.IntLit(x)
			}
		case cfg.Float:
			x, _ := constant.Float64Val(constant.ToFloat(k.Value))
			return cfg.Lit(x, cfg.Float)
		}
	}
	return cfg.Other(k.Value.ExactString(), typ)
}

func (l *funcLowerer) operands(instr ssa.Instruction) (ops []*cfg.Operation) {
	for _, rand := range instr.Operands(nil) {
		if *rand != nil {
			ops = append(ops, l.value(*rand))
		}
	}
	return
}

// kindOf names the kind of an instruction, e.g. "slice" for *ssa.Slice.
func kindOf(instr ssa.Instruction) string {
	return strings.ToLower(strings.TrimPrefix(fmt.Sprintf("%T", instr), "*ssa."))
}
