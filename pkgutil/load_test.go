package pkgutil

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

func TestLoadWithModule(t *testing.T) {
	if pkgs, err := LoadPackages(LoadConfig{
		ModulePath: "../examples/src/pkg-with-module",
	}, "unrelated-name/..."); err != nil {
		t.Fatal(err)
	} else if len(pkgs) != 2 {
		t.Errorf("Expected load result to contain 2 packages, got: %s", pkgs)
	}
}

func TestModuleName(t *testing.T) {
	if name, err := ModuleName("../examples/src/pkg-with-module"); err != nil {
		t.Fatal(err)
	} else if name != "unrelated-name" {
		t.Errorf("Expected module unrelated-name, got %s", name)
	}

	if _, err := ModuleName("../examples/src/no-such-module"); err == nil {
		t.Error("Expected an error for a missing go.mod")
	}
}

func buildSource(t *testing.T, src string) *ssa.Package {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "main.go", src, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}
	pkg, _, err := ssautil.BuildPackage(
		&types.Config{Importer: importer.Default()}, fset,
		types.NewPackage("example", "main"), []*ast.File{f}, ssa.SanityCheckFunctions)
	if err != nil {
		t.Fatal(err)
	}
	return pkg
}

func TestFindFunction(t *testing.T) {
	pkg := buildSource(t, `package main

type T struct{ x int }

func (t *T) get() int { return t.x }

func apply() int {
	f := func(y int) int { return y + 1 }
	return f(1)
}

func main() {}
`)

	names := []string{}
	for _, fn := range Functions(pkg) {
		names = append(names, functionName(fn))
	}
	want := []string{"T.get", "apply", "apply$1", "main"}
	if len(names) != len(want) {
		t.Fatalf("Expected functions %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected functions %v, got %v", want, names)
		}
	}

	if fn, err := FindFunction(pkg, "apply$1"); err != nil {
		t.Error(err)
	} else if fn.Parent() == nil {
		t.Errorf("%v should be an anonymous function", fn)
	}

	if _, err := FindFunction(pkg, "missing"); err == nil {
		t.Error("Expected an error for a missing function")
	}
}
