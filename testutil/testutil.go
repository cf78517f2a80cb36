package testutil

import (
	"bytes"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/cs-au-dk/goat-flow/pkgutil"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// LoadResult contains relevant information obtained after loading a Go program.
type LoadResult struct {
	// MainPkg is the package focused by the test.
	MainPkg *packages.Package
	// Prog is the SSA representation of the entire program.
	Prog *ssa.Program
	// Pkg is the SSA package of MainPkg.
	Pkg *ssa.Package
}

// Func finds a function of the focused package by name, see pkgutil.FindFunction.
func (res LoadResult) Func(t *testing.T, name string) *ssa.Function {
	t.Helper()
	fn, err := pkgutil.FindFunction(res.Pkg, name)
	if err != nil {
		t.Fatal(err)
	}
	return fn
}

// ExamplesModule is the module holding the example programs, relative to
// the repository root.
const ExamplesModule = "examples/src"

// LoadExampleAsPackages loads an example package to be used for a test.
func LoadExampleAsPackages(t *testing.T, pathToRoot string, pkg string) []*packages.Package {
	// Invoking the package tools is slow because it uses `go list` under the hood.
	// If the package doesn't have imports we can take a fast path by loading the
	// code manually and parsing it ourselves.
	srcDir := filepath.Join(pathToRoot, ExamplesModule, pkg)
	if entries, err := os.ReadDir(srcDir); err == nil && len(entries) == 1 {
		if entry := entries[0]; !entry.IsDir() && entry.Name() == "main.go" {
			if content, err := os.ReadFile(filepath.Join(srcDir, "main.go")); err == nil &&
				// Assert no imports
				!bytes.Contains(content, []byte("import")) {
				return LoadSourceAsPackages(t, pkg, string(content))
			}
		}
	}

	modPath := filepath.Join(pathToRoot, ExamplesModule)
	mod, err := pkgutil.ModuleName(modPath)
	if err != nil {
		t.Fatal(err)
	}
	pkgs, err := pkgutil.LoadPackages(pkgutil.LoadConfig{ModulePath: modPath}, mod+"/"+pkg)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 1 {
		t.Fatal("Example contains more than just a main package?")
	}
	return pkgs
}

func LoadExamplePackage(t *testing.T, pathToRoot string, pkg string) LoadResult {
	return LoadResultFromPackages(t, LoadExampleAsPackages(t, pathToRoot, pkg))
}

func LoadResultFromPackages(t *testing.T, pkgs []*packages.Package) (res LoadResult) {
	res.MainPkg = pkgs[0]

	var ssaPkgs []*ssa.Package
	res.Prog, ssaPkgs = ssautil.AllPackages(pkgs, ssa.SanityCheckFunctions|ssa.InstantiateGenerics)
	res.Prog.Build()

	res.Pkg = ssaPkgs[0]
	if res.Pkg == nil {
		t.Fatalf("No SSA package for %s", res.MainPkg.PkgPath)
	}
	return
}

func LoadSourceAsPackages(t *testing.T, importPath string, content string) []*packages.Package {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(
		fset,
		"main.go",
		content,
		parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}

	files := []*ast.File{file}

	// First argument is package path, the second is name.
	pkg := types.NewPackage(importPath, "main")
	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Implicits:  make(map[ast.Node]types.Object),
		Instances:  make(map[*ast.Ident]types.Instance),
		Scopes:     make(map[ast.Node]*types.Scope),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
	}
	if err := types.NewChecker(
		&types.Config{Importer: importer.Default()},
		fset, pkg, info).Files(files); err != nil {
		t.Fatal(err)
	}

	// If the package does not have imports we can take a fast path.
	if len(pkg.Imports()) == 0 {
		return []*packages.Package{{
			ID:        "pkg-loaded-from-src",
			Name:      pkg.Name(),
			PkgPath:   pkg.Path(),
			Types:     pkg,
			Fset:      fset,
			Syntax:    files,
			TypesInfo: info,
		}}
	}

	// Otherwise we need to invoke the packages tool that can import code for
	// dependencies. The reason to not just do this for all packages is that
	// it's a lot slower than the above because it needs to invoke the go tool
	// in a subprocess.
	pkgs, err := pkgutil.LoadPackagesFromSource(content)
	if err != nil {
		t.Fatal(err)
	}
	return pkgs
}

func LoadPackageFromSource(t *testing.T, importPath string, content string) LoadResult {
	return LoadResultFromPackages(t, LoadSourceAsPackages(t, importPath, content))
}

// ListExamples lists the example packages under dir of the examples
// module. Directories without Go files are descended into.
func ListExamples(t *testing.T, pathToRoot string, dir string) (res []string) {
	root := filepath.Join(pathToRoot, ExamplesModule)

	var walk func(string)
	walk = func(rel string) {
		entries, err := os.ReadDir(filepath.Join(root, rel))
		if err != nil {
			t.Fatal(err)
		}
		hasGo := false
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".go" {
				hasGo = true
			}
		}
		if hasGo {
			res = append(res, rel)
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				walk(filepath.Join(rel, e.Name()))
			}
		}
	}
	walk(dir)

	sort.Strings(res)
	return
}
