package testutil

import (
	"go/token"

	loc "github.com/cs-au-dk/goat-flow/analysis/location"
	"github.com/cs-au-dk/goat-flow/analysis/valuecontent"

	"golang.org/x/tools/go/expect"
	"golang.org/x/tools/go/ssa"
)

type Annotation interface {
	// Returns related annotations (created from notes on the same line).
	Related() annList
	String() string

	FalsePositive() bool
	FalseNegative() bool

	Note() *expect.Note
	// Function is the innermost function enclosing the note.
	Function() *ssa.Function
	OnLine(token.Pos) bool
	Manager() NotesManager
}

// AnnReturns states the value content of the enclosing function's return value.
type AnnReturns struct {
	basicAnnotation
	content valuecontent.Content
}

func (a AnnReturns) Content() valuecontent.Content {
	return a.content
}

func (a AnnReturns) String() string {
	return At("returns " + a.content.String() + " at " + a.Position().String())
}

// AnnNilDeref marks a line where the nullness analysis reports a
// dereference. A zero State accepts any report.
type AnnNilDeref struct {
	basicAnnotation
	state loc.NullState
}

func (a AnnNilDeref) State() (loc.NullState, bool) {
	return a.state, a.state != 0
}

func (a AnnNilDeref) String() string {
	str := "dereference"
	if s, ok := a.State(); ok {
		str += " of " + s.String()
	}
	return At(str + " at " + a.Position().String())
}

// AnnPanics states that the enclosing function may exit with a panic.
type AnnPanics struct {
	basicAnnotation
}

func (a AnnPanics) String() string {
	return At("panics at " + a.Position().String())
}

type AnnFalseNegative struct {
	basicAnnotation
}

func (a AnnFalseNegative) String() string {
	return At("False negative at " + a.Position().String())
}

type AnnFalsePositive struct {
	basicAnnotation
}

func (a AnnFalsePositive) String() string {
	return At("False positive at " + a.Position().String())
}
