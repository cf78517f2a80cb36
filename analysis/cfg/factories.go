package cfg

// Constructors for operation trees. Identifiers and parent links are
// assigned when the root of a tree is added to a block.

func Lit(value any, typ *Type) *Operation {
	return &Operation{Kind: OpLiteral, Value: value, Type: typ}
}

func IntLit(v int64) *Operation { return Lit(v, Int) }

func BoolLit(v bool) *Operation { return Lit(v, Bool) }

func StringLit(v string) *Operation { return Lit(v, String) }

// Null is the null literal of type typ (Object if nil).
func Null(typ *Type) *Operation {
	if typ == nil {
		typ = Object
	}
	return Lit(nil, typ)
}

func Local(s *Symbol) *Operation {
	return &Operation{Kind: OpLocalRef, Symbol: s, Type: s.Type}
}

func Param(s *Symbol) *Operation {
	return &Operation{Kind: OpParameterRef, Symbol: s, Type: s.Type}
}

func This(typ *Type) *Operation {
	return &Operation{Kind: OpInstanceRef, Type: typ}
}

func Field(instance *Operation, s *Symbol) *Operation {
	return &Operation{Kind: OpFieldRef, Symbol: s, Instance: instance, Type: s.Type}
}

func StaticField(s *Symbol) *Operation {
	return &Operation{Kind: OpFieldRef, Symbol: s, Type: s.Type}
}

func Property(instance *Operation, s *Symbol) *Operation {
	return &Operation{Kind: OpPropertyRef, Symbol: s, Instance: instance, Type: s.Type}
}

func Elem(array *Operation, indices ...*Operation) *Operation {
	var typ *Type
	if array.Type != nil {
		typ = array.Type.Elem
	}
	return &Operation{Kind: OpArrayElementRef, Instance: array, Arguments: indices, Type: typ}
}

func Capture(id int, value *Operation) *Operation {
	return &Operation{Kind: OpFlowCapture, CaptureID: id, Operand: value, Type: value.Type}
}

func CaptureRef(id int, typ *Type) *Operation {
	return &Operation{Kind: OpFlowCaptureRef, CaptureID: id, Type: typ}
}

func Assign(target, source *Operation) *Operation {
	return &Operation{Kind: OpAssignment, Target: target, Source: source, Type: target.Type}
}

// AssignRef binds a ref local to the storage denoted by source.
func AssignRef(target, source *Operation) *Operation {
	op := Assign(target, source)
	op.RefKind = ByRef
	return op
}

func Compound(bop BinaryOperator, target, source *Operation) *Operation {
	return &Operation{Kind: OpCompoundAssignment, BinaryOp: bop, Target: target, Source: source, Type: target.Type}
}

func Bin(bop BinaryOperator, left, right *Operation) *Operation {
	typ := left.Type
	if bop.IsComparison() || bop == BinAnd || bop == BinOr {
		typ = Bool
	}
	return &Operation{Kind: OpBinary, BinaryOp: bop, Left: left, Right: right, Type: typ}
}

func Not(x *Operation) *Operation {
	return &Operation{Kind: OpUnary, UnaryOp: UnNot, Operand: x, Type: Bool}
}

func Neg(x *Operation) *Operation {
	return &Operation{Kind: OpUnary, UnaryOp: UnNeg, Operand: x, Type: x.Type}
}

func Convert(typ *Type, x *Operation) *Operation {
	return &Operation{Kind: OpConversion, Operand: x, Type: typ}
}

func IsNull(x *Operation) *Operation {
	return &Operation{Kind: OpIsNull, Operand: x, Type: Bool}
}

func IsType(x *Operation, typ *Type) *Operation {
	return &Operation{Kind: OpIsType, Operand: x, TestType: typ, Type: Bool}
}

func New(typ *Type, ctor *Symbol, args ...*Operation) *Operation {
	return &Operation{Kind: OpObjectCreation, Type: typ, Symbol: ctor, Arguments: args}
}

func NewArray(elem *Type, sizes ...*Operation) *Operation {
	return &Operation{Kind: OpArrayCreation, Type: ArrayOf(elem), Arguments: sizes}
}

// Call invokes method statically. The instance is nil for static methods.
func Call(method *Symbol, instance *Operation, args ...*Operation) *Operation {
	return &Operation{Kind: OpInvocation, Symbol: method, Instance: instance, Arguments: args, Type: method.Type}
}

// CallVirtual invokes method with dynamic dispatch on the receiver.
func CallVirtual(method *Symbol, instance *Operation, args ...*Operation) *Operation {
	op := Call(method, instance, args...)
	op.IsVirtual = true
	return op
}

// Invoke calls the lambda value produced by delegate.
func Invoke(delegate *Operation, ret *Type, args ...*Operation) *Operation {
	if ret == nil {
		ret = Void
	}
	return &Operation{Kind: OpInvocation, Delegate: delegate, Arguments: args, Type: ret}
}

func Lambda(s *Symbol) *Operation {
	return &Operation{Kind: OpDelegateCreation, Lambda: s, Type: Func}
}

// Arg binds value to parameter p. The passing mode follows the parameter.
func Arg(p *Symbol, value *Operation) *Operation {
	var ref RefKind
	if p != nil {
		ref = p.RefKind
	}
	return &Operation{Kind: OpArgument, Symbol: p, Operand: value, RefKind: ref, Type: value.Type}
}

func Default(typ *Type) *Operation {
	return &Operation{Kind: OpDefaultValue, Type: typ}
}

func Caught(typ *Type) *Operation {
	return &Operation{Kind: OpCaughtException, Type: typ}
}

func Stmt(x *Operation) *Operation {
	return &Operation{Kind: OpExpressionStatement, Operand: x, Type: Void}
}

func Other(text string, typ *Type, children ...*Operation) *Operation {
	return &Operation{Kind: OpOther, Text: text, Type: typ, Arguments: children}
}
