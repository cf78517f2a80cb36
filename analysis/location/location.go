package location

import (
	"fmt"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/utils"

	"github.com/fatih/color"
)

// colorize is used for pretty-printing.
var colorize = struct {
	Site    func(...interface{}) string
	Context func(...interface{}) string
	Nil     func(...interface{}) string
	Kind    func(...interface{}) string
}{
	Site: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiGreen).SprintFunc())(is...)
	},
	Context: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiBlue).SprintFunc())(is...)
	},
	Nil: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiRed).SprintFunc())(is...)
	},
	Kind: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiYellow).SprintFunc())(is...)
	},
}

// phasher is a short-hand for a pointer hasher.
var phasher = utils.PointerHasher[any]{}

// Kind discriminates abstract locations.
type Kind int

const (
	// KindCreation is an allocation site.
	KindCreation Kind = iota
	// KindSymbol is the storage of a local or parameter.
	KindSymbol
	// KindThis is the receiver of the analyzed method.
	KindThis
	// KindCapture is the storage of a flow capture.
	KindCapture
	KindNull
	// KindNoLocation is the location of values without identity.
	KindNoLocation
)

// Location is an abstract heap location. Locations are plain values; two
// locations are equal when their site, call stack and type coincide.
type Location struct {
	kind Kind
	// Creation is the allocating operation of creation sites.
	Creation *cfg.Operation
	// Symbol is the declared local or parameter of symbol locations, and
	// the owning method of this and capture locations.
	Symbol    *cfg.Symbol
	CaptureID int
	Stack     *CallStack
	typ       *cfg.Type
}

var (
	// Null is the location of the null reference.
	Null = Location{kind: KindNull}
	// NoLocation is shared by all values without identity.
	NoLocation = Location{kind: KindNoLocation}
)

// Creation is the location allocated by op in the activation given by stack.
func Creation(op *cfg.Operation, stack *CallStack) Location {
	return Location{kind: KindCreation, Creation: op, Stack: stack, typ: op.Type}
}

// ForSymbol is the storage location of a local or parameter.
func ForSymbol(s *cfg.Symbol, stack *CallStack) Location {
	return Location{kind: KindSymbol, Symbol: s, Stack: stack, typ: s.Type}
}

// This is the location of the receiver of method when it is analyzed
// without a known caller.
func This(method *cfg.Symbol, typ *cfg.Type, stack *CallStack) Location {
	return Location{kind: KindThis, Symbol: method, Stack: stack, typ: typ}
}

// ForCapture is the storage location of a flow capture of method.
func ForCapture(method *cfg.Symbol, id int, typ *cfg.Type, stack *CallStack) Location {
	return Location{kind: KindCapture, Symbol: method, CaptureID: id, Stack: stack, typ: typ}
}

func (l Location) Kind() Kind {
	return l.kind
}

func (l Location) Type() *cfg.Type {
	return l.typ
}

func (l Location) IsNull() bool {
	return l.kind == KindNull
}

// IsLambda holds for locations created by delegate creations.
func (l Location) IsLambda() bool {
	return l.kind == KindCreation && l.Creation.Kind == cfg.OpDelegateCreation
}

// Lambda is the function allocated at a delegate creation location.
func (l Location) Lambda() (*cfg.Symbol, bool) {
	if !l.IsLambda() {
		return nil, false
	}
	return l.Creation.Lambda, true
}

func (l Location) Equal(o Location) bool {
	return l == o
}

func (l Location) Hash() uint32 {
	return utils.HashCombine(
		uint32(l.kind),
		phasher.Hash(l.Creation),
		phasher.Hash(l.Symbol),
		uint32(l.CaptureID),
		l.Stack.Hash(),
		phasher.Hash(l.typ),
	)
}

// order is a total order on locations independent of addresses.
func (l Location) order(o Location) int {
	if l.kind != o.kind {
		return int(l.kind) - int(o.kind)
	}
	switch l.kind {
	case KindCreation:
		if l.Creation.ID != o.Creation.ID {
			return l.Creation.ID - o.Creation.ID
		}
	case KindSymbol, KindThis, KindCapture:
		if l.Symbol != o.Symbol {
			if l.Symbol.Name != o.Symbol.Name {
				if l.Symbol.Name < o.Symbol.Name {
					return -1
				}
				return 1
			}
		}
		if l.CaptureID != o.CaptureID {
			return l.CaptureID - o.CaptureID
		}
	}
	if d := l.Stack.Depth() - o.Stack.Depth(); d != 0 {
		return d
	}
	if l == o {
		return 0
	}
	// Fall back to hashes for locations that only differ in identity.
	if lh, oh := l.Hash(), o.Hash(); lh != oh {
		if lh < oh {
			return -1
		}
		return 1
	}
	return 0
}

func (l Location) String() string {
	var ctx string
	if l.Stack != nil {
		ctx = colorize.Context(l.Stack) + " "
	}

	switch l.kind {
	case KindCreation:
		return fmt.Sprintf("‹%s%s:%d›", ctx, colorize.Site(l.Creation), l.Creation.ID)
	case KindSymbol:
		return fmt.Sprintf("‹%s%s›", ctx, colorize.Site(l.Symbol.Name))
	case KindThis:
		return fmt.Sprintf("‹%s%s›", ctx, colorize.Kind("this"))
	case KindCapture:
		return fmt.Sprintf("‹%s%s›", ctx, colorize.Site(fmt.Sprintf("#%d", l.CaptureID)))
	case KindNull:
		return colorize.Nil("null")
	}
	return colorize.Kind("no-location")
}
