package analysis

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/expect"

	"github.com/cs-au-dk/goat-flow/analysis/config"
	"github.com/cs-au-dk/goat-flow/analysis/ssaconv"
	"github.com/cs-au-dk/goat-flow/analysis/valuecontent"
	"github.com/cs-au-dk/goat-flow/pkgutil"
	tu "github.com/cs-au-dk/goat-flow/testutil"
	"github.com/cs-au-dk/goat-flow/utils"
)

func TestMain(m *testing.M) {
	utils.SetColorize(false)
	m.Run()
}

func newSession(t *testing.T, loadRes tu.LoadResult) *Session {
	s, err := NewSession(ssaconv.New(ssaconv.InPackages(loadRes.Pkg)), config.Default(), nil)
	require.NoError(t, err)
	return s
}

func recoverPanics(t *testing.T) {
	if err := recover(); err != nil {
		t.Errorf("Panic while analyzing...\n%v\n%s\n", err, debug.Stack())
	}
}

func isPanics(a tu.Annotation) bool {
	_, ok := a.(tu.AnnPanics)
	return ok
}

func checkValues(t *testing.T, pkg string) {
	defer recoverPanics(t)

	loadRes := tu.LoadExamplePackage(t, "..", pkg)
	nmgr := tu.MakeNotesManager(t, loadRes)
	s := newSession(t, loadRes)
	dom := valuecontent.New().Domain()

	for _, fn := range nmgr.Functions() {
		res, err := s.Values(fn)
		if err != nil {
			t.Errorf("Analyzing %v failed: %v", fn, err)
			continue
		}

		anns := nmgr.AnnotationsIn(fn)
		_, throws := res.UnhandledThrow()
		if panics := anns.Exists(isPanics); panics != throws {
			t.Errorf("%v: expected panics: %v, found unhandled throw: %v\n%s", fn, panics, throws, nmgr)
		}

		anns.ForEach(func(a tu.Annotation) {
			ann, ok := a.(tu.AnnReturns)
			if !ok || ann.FalseNegative() || ann.FalsePositive() {
				return
			}
			if got := res.ReturnValue; !dom.Equals(got, ann.Content()) {
				t.Errorf("%v returns %v, expected %v\n%s", fn, got, ann.Content(), res)
			}
		})
	}
}

func checkNullness(t *testing.T, pkg string) {
	defer recoverPanics(t)

	loadRes := tu.LoadExamplePackage(t, "..", pkg)
	nmgr := tu.MakeNotesManager(t, loadRes)
	s := newSession(t, loadRes)

	for _, fn := range pkgutil.Functions(loadRes.Pkg) {
		if fn.Parent() != nil {
			continue
		}
		_, derefs, err := s.Nullness(fn)
		if err != nil {
			t.Errorf("Analyzing %v failed: %v", fn, err)
			continue
		}

		anns := nmgr.AnnotationsIn(fn).Filter(func(a tu.Annotation) bool {
			_, ok := a.(tu.AnnNilDeref)
			return ok
		})
		matched := make(map[*expect.Note]bool)

		for _, d := range derefs {
			pos := d.Op.Position()
			ann, found := anns.Find(func(a tu.Annotation) bool {
				if !a.OnLine(pos) {
					return false
				}
				want, ok := a.(tu.AnnNilDeref).State()
				return !ok || want == d.State
			})
			if !found {
				t.Errorf("Unexpected dereference of %v at %v: %v",
					d.State, loadRes.Prog.Fset.Position(pos), d.Op)
				continue
			}
			matched[ann.Note()] = true
		}

		anns.ForEach(func(a tu.Annotation) {
			if !matched[a.Note()] && !a.FalseNegative() {
				t.Errorf("Missing %s", a)
			}
		})
	}
}

func TestValueExamples(t *testing.T) {
	for _, pkg := range tu.ListExamples(t, "..", "values") {
		pkg := pkg
		t.Run(pkg, func(t *testing.T) {
			checkValues(t, pkg)
		})
	}
}

func TestNullnessExamples(t *testing.T) {
	for _, pkg := range tu.ListExamples(t, "..", "nullness") {
		pkg := pkg
		t.Run(pkg, func(t *testing.T) {
			checkNullness(t, pkg)
		})
	}
}

func TestInlineSource(t *testing.T) {
	loadRes := tu.LoadPackageFromSource(t, "inline", `
package main

func pick(b bool) int { `+tu.At(tu.Ann.Returns(4, 9))+`
	if b {
		return 4
	}
	return 9
}

func main() {
	pick(true)
}`)

	nmgr := tu.MakeNotesManager(t, loadRes)
	require.Len(t, nmgr.Notes(), 1)

	fn := loadRes.Func(t, "pick")
	res, err := newSession(t, loadRes).Values(fn)
	require.NoError(t, err)

	ann := nmgr.AnnotationsIn(fn)[0].(tu.AnnReturns)
	assert.True(t, valuecontent.New().Domain().Equals(ann.Content(), res.ReturnValue),
		"pick returns %v", res.ReturnValue)
}

func TestLocalLambda(t *testing.T) {
	loadRes := tu.LoadExamplePackage(t, "..", "values/closures")
	s := newSession(t, loadRes)

	// Lambdas that do not escape only have results at their call sites.
	_, err := s.Values(loadRes.Func(t, "invoked$1"))
	assert.Error(t, err)

	res, err := s.Values(loadRes.Func(t, "invoked"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.AnalyzedLambdas)
	assert.Empty(t, res.EscapedLambdas)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("liveness")
	assert.Error(t, err)
}
