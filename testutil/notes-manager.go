package testutil

import (
	"fmt"
	"go/token"
	"sort"
	"testing"

	"github.com/cs-au-dk/goat-flow/pkgutil"

	"golang.org/x/tools/go/expect"
	"golang.org/x/tools/go/ssa"
)

type NotesManager struct {
	anns  map[*expect.Note]Annotation
	notes []*expect.Note

	// Book-keeping of notes on the same line
	related map[*expect.Note]map[*expect.Note]struct{}
	// Functions of the focused package, used to find the function a note
	// belongs to.
	funcs   []*ssa.Function
	loadRes LoadResult
}

func MakeNotesManager(
	t *testing.T,
	loadRes LoadResult) (n NotesManager) {
	n.loadRes = loadRes
	n.anns = make(map[*expect.Note]Annotation)
	n.funcs = pkgutil.Functions(loadRes.Pkg)

	for _, file := range loadRes.MainPkg.Syntax {
		notes, err := expect.ExtractGo(loadRes.Prog.Fset, file)
		if err != nil {
			t.Fatal(err)
		}

		n.notes = append(n.notes, notes...)
	}
	sort.Slice(n.notes, func(i, j int) bool {
		return n.notes[i].Pos < n.notes[j].Pos
	})

	n.related = make(map[*expect.Note]map[*expect.Note]struct{})
	for _, note1 := range n.notes {
		n.related[note1] = make(map[*expect.Note]struct{})
		for _, note2 := range n.notes {
			if note1 != note2 && n.SameLine(note1.Pos, note2) {
				n.related[note1][note2] = struct{}{}
			}
		}
	}

	for _, note := range n.notes {
		ann, err := n.CreateAnnotation(note)
		if err != nil {
			t.Fatal(err)
		}
		n.anns[note] = ann
	}
	return
}

func (n NotesManager) ForEachAnnotation(do func(a Annotation)) {
	for _, note := range n.notes {
		do(n.anns[note])
	}
}

func (n NotesManager) AnnotationOf(note *expect.Note) Annotation {
	return n.anns[note]
}

func (n NotesManager) String() (str string) {
	str = "Note manager found the following notes:\n\n"
	for _, note := range n.notes {
		str += n.anns[note].String() + "\n"
	}
	return
}

func (n NotesManager) LoadResult() LoadResult {
	return n.loadRes
}

func (n NotesManager) Notes() []*expect.Note {
	return n.notes
}

// SameLine holds if pos is on the line of the note.
func (n NotesManager) SameLine(pos token.Pos, note *expect.Note) bool {
	if !pos.IsValid() {
		return false
	}
	fset := n.loadRes.Prog.Fset
	p, npos := fset.Position(pos), fset.Position(note.Pos)
	return p.Filename == npos.Filename && p.Line == npos.Line
}

// FunctionForNote finds the innermost function whose syntax encloses the note.
func (n NotesManager) FunctionForNote(note *expect.Note) *ssa.Function {
	var res *ssa.Function
	for _, fn := range n.funcs {
		syn := fn.Syntax()
		if syn == nil || note.Pos < syn.Pos() || syn.End() < note.Pos {
			continue
		}
		if res == nil || res.Syntax().Pos() < syn.Pos() {
			res = fn
		}
	}
	return res
}

// Functions lists the functions carrying annotations.
func (n NotesManager) Functions() (res []*ssa.Function) {
	seen := make(map[*ssa.Function]bool)
	for _, note := range n.notes {
		if fn := n.anns[note].Function(); fn != nil && !seen[fn] {
			seen[fn] = true
			res = append(res, fn)
		}
	}
	return
}

func (n NotesManager) FindAllAnnotations(pred func(Annotation) bool) annList {
	res := []Annotation{}
	for _, note := range n.notes {
		if ann := n.anns[note]; pred(ann) {
			res = append(res, ann)
		}
	}
	return res
}

// AnnotationsIn lists the annotations of a function.
func (n NotesManager) AnnotationsIn(fn *ssa.Function) annList {
	return n.FindAllAnnotations(func(a Annotation) bool {
		return a.Function() == fn
	})
}

func (n NotesManager) position(note *expect.Note) token.Position {
	return n.loadRes.Prog.Fset.Position(note.Pos)
}

func (n NotesManager) describe(note *expect.Note) string {
	return fmt.Sprintf("%s(%v) at %s", note.Name, note.Args, n.position(note))
}
