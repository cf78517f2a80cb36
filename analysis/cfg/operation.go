package cfg

import (
	"fmt"
	"go/token"
	"strings"
)

// OpKind is the tag of an operation node.
type OpKind int

const (
	OpInvalid OpKind = iota
	OpLiteral
	OpLocalRef
	OpParameterRef
	OpInstanceRef
	OpFieldRef
	OpPropertyRef
	OpArrayElementRef
	OpFlowCapture
	OpFlowCaptureRef
	OpAssignment
	OpCompoundAssignment
	OpBinary
	OpUnary
	OpConversion
	OpIsNull
	OpIsType
	OpObjectCreation
	OpArrayCreation
	OpInvocation
	OpDelegateCreation
	OpArgument
	OpDefaultValue
	OpCaughtException
	OpExpressionStatement
	OpOther

	// Kinds that must be lowered into control flow before analysis.
	OpConditional
	OpCoalesce
	OpConditionalAccess
)

var opKindNames = [...]string{
	OpInvalid:             "Invalid",
	OpLiteral:             "Literal",
	OpLocalRef:            "LocalRef",
	OpParameterRef:        "ParameterRef",
	OpInstanceRef:         "InstanceRef",
	OpFieldRef:            "FieldRef",
	OpPropertyRef:         "PropertyRef",
	OpArrayElementRef:     "ArrayElementRef",
	OpFlowCapture:         "FlowCapture",
	OpFlowCaptureRef:      "FlowCaptureRef",
	OpAssignment:          "Assignment",
	OpCompoundAssignment:  "CompoundAssignment",
	OpBinary:              "Binary",
	OpUnary:               "Unary",
	OpConversion:          "Conversion",
	OpIsNull:              "IsNull",
	OpIsType:              "IsType",
	OpObjectCreation:      "ObjectCreation",
	OpArrayCreation:       "ArrayCreation",
	OpInvocation:          "Invocation",
	OpDelegateCreation:    "DelegateCreation",
	OpArgument:            "Argument",
	OpDefaultValue:        "DefaultValue",
	OpCaughtException:     "CaughtException",
	OpExpressionStatement: "ExpressionStatement",
	OpOther:               "Other",
	OpConditional:         "Conditional",
	OpCoalesce:            "Coalesce",
	OpConditionalAccess:   "ConditionalAccess",
}

func (k OpKind) String() string {
	if int(k) < len(opKindNames) {
		return opKindNames[k]
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// BinaryOperator of OpBinary and OpCompoundAssignment nodes.
type BinaryOperator int

const (
	BinAdd BinaryOperator = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAnd
	BinOr
)

var binaryOperatorNames = [...]string{"+", "-", "*", "/", "%", "==", "!=", "<", "<=", ">", ">=", "&&", "||"}

func (o BinaryOperator) String() string {
	return binaryOperatorNames[o]
}

// IsComparison holds for operators producing a boolean from their operands.
func (o BinaryOperator) IsComparison() bool {
	return o >= BinEq && o <= BinGe
}

// Negate returns the comparison that holds exactly when o does not.
func (o BinaryOperator) Negate() BinaryOperator {
	switch o {
	case BinEq:
		return BinNe
	case BinNe:
		return BinEq
	case BinLt:
		return BinGe
	case BinLe:
		return BinGt
	case BinGt:
		return BinLe
	case BinGe:
		return BinLt
	}
	panic(fmt.Errorf("operator %v has no negation", o))
}

// UnaryOperator of OpUnary nodes.
type UnaryOperator int

const (
	UnNot UnaryOperator = iota
	UnNeg
)

func (o UnaryOperator) String() string {
	if o == UnNot {
		return "!"
	}
	return "-"
}

// Operation is a node of the intermediate representation. It is a tagged
// union: which fields are meaningful depends on Kind.
type Operation struct {
	Kind OpKind
	// ID is unique within the owning graph and stable across analyses.
	ID   int
	Type *Type

	// Literal value. A nil value with a reference type is the null literal.
	Value any
	// Symbol referenced by LocalRef, ParameterRef, FieldRef, PropertyRef,
	// the method of Invocation and ObjectCreation (constructor), and the
	// parameter of Argument.
	Symbol *Symbol
	// Instance receiver of member references and invocations, and the
	// array of ArrayElementRef.
	Instance *Operation
	// Target and Source of (compound) assignments.
	Target, Source *Operation
	// Left and Right operands of Binary operations.
	Left, Right *Operation
	// Operand of unary-like operations: Unary, Conversion, IsNull, IsType,
	// FlowCapture, Argument, ExpressionStatement.
	Operand *Operation
	// Arguments of invocations and creations, indices of ArrayElementRef,
	// and the children of Other.
	Arguments []*Operation
	// Delegate is the invoked value of invocations without a static target.
	Delegate *Operation

	BinaryOp BinaryOperator
	UnaryOp  UnaryOperator
	// TestType of IsType.
	TestType *Type
	// Lambda of DelegateCreation.
	Lambda *Symbol
	// CaptureID of FlowCapture and FlowCaptureRef.
	CaptureID int
	// IsVirtual marks invocations with dynamic dispatch on the receiver.
	IsVirtual bool
	// RefKind of Argument and of ref-assignments.
	RefKind RefKind
	// Text is a free form description of Other nodes.
	Text string
	// Pos is the source position the operation was lowered from, if any.
	Pos token.Pos

	Parent *Operation
	Block  *BasicBlock
}

// Children lists the direct operands of the operation in evaluation order.
func (op *Operation) Children() []*Operation {
	var res []*Operation
	add := func(ops ...*Operation) {
		for _, o := range ops {
			if o != nil {
				res = append(res, o)
			}
		}
	}

	switch op.Kind {
	case OpAssignment, OpCompoundAssignment:
		add(op.Target, op.Source)
	case OpBinary:
		add(op.Left, op.Right)
	case OpFieldRef, OpPropertyRef:
		add(op.Instance)
		add(op.Arguments...)
	case OpArrayElementRef:
		add(op.Instance)
		add(op.Arguments...)
	case OpInvocation:
		add(op.Instance, op.Delegate)
		add(op.Arguments...)
	case OpConditional, OpCoalesce, OpConditionalAccess:
		add(op.Operand, op.Left, op.Right)
	default:
		add(op.Instance, op.Operand)
		add(op.Arguments...)
	}
	return res
}

// Walk visits op and all its descendants in pre-order.
func (op *Operation) Walk(do func(*Operation)) {
	do(op)
	for _, c := range op.Children() {
		c.Walk(do)
	}
}

// MayThrow holds for operations that may raise an exception at runtime.
func (op *Operation) MayThrow() bool {
	switch op.Kind {
	case OpInvocation, OpObjectCreation, OpArrayCreation, OpConversion, OpOther:
		return true
	case OpFieldRef, OpPropertyRef:
		return op.Instance != nil && op.Instance.Kind != OpInstanceRef
	case OpArrayElementRef:
		return true
	case OpBinary:
		return op.BinaryOp == BinDiv || op.BinaryOp == BinRem
	}
	return false
}

// IsNullLiteral holds for the null constant.
func (op *Operation) IsNullLiteral() bool {
	return op.Kind == OpLiteral && op.Value == nil && op.Type.IsReference()
}

// IsCondition holds for operations whose boolean result can refine the
// analysis state when assumed to be true or false.
func (op *Operation) IsCondition() bool {
	switch op.Kind {
	case OpBinary:
		return op.BinaryOp.IsComparison() || op.BinaryOp == BinAnd || op.BinaryOp == BinOr
	case OpUnary:
		return op.UnaryOp == UnNot
	case OpIsNull, OpIsType:
		return true
	case OpLiteral, OpLocalRef, OpParameterRef, OpFlowCaptureRef, OpFieldRef:
		return op.Type == Bool
	}
	return false
}

// Position is the source position of the closest enclosing operation that
// has one.
func (op *Operation) Position() token.Pos {
	for o := op; o != nil; o = o.Parent {
		if o.Pos.IsValid() {
			return o.Pos
		}
	}
	return token.NoPos
}

// IsLValue holds when the operation is the target of an enclosing assignment.
func (op *Operation) IsLValue() bool {
	p := op.Parent
	return p != nil && (p.Kind == OpAssignment || p.Kind == OpCompoundAssignment) && p.Target == op
}

func (op *Operation) String() string {
	if op == nil {
		return "<nil>"
	}
	switch op.Kind {
	case OpLiteral:
		if op.Value == nil {
			return "null"
		}
		if s, ok := op.Value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprint(op.Value)
	case OpLocalRef, OpParameterRef:
		return op.Symbol.Name
	case OpInstanceRef:
		return "this"
	case OpFieldRef, OpPropertyRef:
		if op.Instance == nil {
			return op.Symbol.String()
		}
		return op.Instance.String() + "." + op.Symbol.Name
	case OpArrayElementRef:
		idx := make([]string, len(op.Arguments))
		for i, a := range op.Arguments {
			idx[i] = a.String()
		}
		return fmt.Sprintf("%s[%s]", op.Instance, strings.Join(idx, ", "))
	case OpFlowCapture:
		return fmt.Sprintf("#%d := %s", op.CaptureID, op.Operand)
	case OpFlowCaptureRef:
		return fmt.Sprintf("#%d", op.CaptureID)
	case OpAssignment:
		if op.RefKind != ByValue {
			return fmt.Sprintf("%s = ref %s", op.Target, op.Source)
		}
		return fmt.Sprintf("%s = %s", op.Target, op.Source)
	case OpCompoundAssignment:
		return fmt.Sprintf("%s %s= %s", op.Target, op.BinaryOp, op.Source)
	case OpBinary:
		return fmt.Sprintf("(%s %s %s)", op.Left, op.BinaryOp, op.Right)
	case OpUnary:
		return fmt.Sprintf("%s%s", op.UnaryOp, op.Operand)
	case OpConversion:
		return fmt.Sprintf("(%s)%s", op.Type, op.Operand)
	case OpIsNull:
		return fmt.Sprintf("%s == null", op.Operand)
	case OpIsType:
		return fmt.Sprintf("%s is %s", op.Operand, op.TestType)
	case OpObjectCreation:
		return fmt.Sprintf("new %s(%s)", op.Type, joinOps(op.Arguments))
	case OpArrayCreation:
		return fmt.Sprintf("new %s[%s]", op.Type.Elem, joinOps(op.Arguments))
	case OpInvocation:
		var callee string
		switch {
		case op.Symbol != nil && op.Instance != nil:
			callee = op.Instance.String() + "." + op.Symbol.Name
		case op.Symbol != nil:
			callee = op.Symbol.String()
		default:
			callee = op.Delegate.String()
		}
		return fmt.Sprintf("%s(%s)", callee, joinOps(op.Arguments))
	case OpDelegateCreation:
		return "λ" + op.Lambda.Name
	case OpArgument:
		switch op.RefKind {
		case ByRef:
			return "ref " + op.Operand.String()
		case ByOut:
			return "out " + op.Operand.String()
		}
		return op.Operand.String()
	case OpDefaultValue:
		return fmt.Sprintf("default(%s)", op.Type)
	case OpCaughtException:
		return fmt.Sprintf("caught(%s)", op.Type)
	case OpExpressionStatement:
		return op.Operand.String()
	case OpOther:
		if op.Text != "" {
			return op.Text
		}
		return fmt.Sprintf("other(%s)", joinOps(op.Arguments))
	}
	return op.Kind.String()
}

func joinOps(ops []*Operation) string {
	strs := make([]string, len(ops))
	for i, o := range ops {
		strs[i] = o.String()
	}
	return strings.Join(strs, ", ")
}
