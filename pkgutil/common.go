package pkgutil

import (
	"go/types"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

// CheckPkgInGoroot checks whether a package is declared in GOROOT.
func CheckPkgInGoroot(pkg *types.Package) bool {
	path := filepath.Join(runtime.GOROOT(), "src", pkg.Path())
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return true
	}
	return false
}

// CheckInGoroot is true iff. the function is in a package declared in GOROOT.
func CheckInGoroot(fun *ssa.Function) bool {
	return fun != nil && fun.Pkg != nil &&
		CheckPkgInGoroot(fun.Pkg.Pkg)
}

// GetMain determines what is the main package as follows:
// 1. Take the package with the most members
// 2. Skip the package suffixed with .test
func GetMain(mains []*ssa.Package) (main *ssa.Package) {
	for _, mp := range mains {
		if strings.HasSuffix(mp.String(), ".test") {
			continue
		}
		if main == nil || len(main.Members) < len(mp.Members) {
			main = mp
		}
	}
	return
}

// AllPackages aggregates all non-synthetic test packages that
// contain at least one member in a slice.
func AllPackages(prog *ssa.Program) []*ssa.Package {
	mp := make(map[string]*ssa.Package)

	for _, pkg := range prog.AllPackages() {
		if strings.HasSuffix(pkg.String(), ".test") {
			continue
		}

		opkg, ok := mp[pkg.String()]
		if !ok || len(pkg.Members) > len(opkg.Members) {
			mp[pkg.String()] = pkg
		}
	}

	res := make([]*ssa.Package, 0, len(mp))
	for _, pkg := range mp {
		res = append(res, pkg)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Pkg.Path() < res[j].Pkg.Path()
	})

	return res
}

// Functions lists the functions and methods declared in a package, with
// the anonymous functions they contain, in source order.
func Functions(pkg *ssa.Package) (res []*ssa.Function) {
	var add func(*ssa.Function)
	add = func(fn *ssa.Function) {
		res = append(res, fn)
		for _, anon := range fn.AnonFuncs {
			add(anon)
		}
	}

	for _, mem := range pkg.Members {
		switch mem := mem.(type) {
		case *ssa.Function:
			if mem.Synthetic == "" {
				add(mem)
			}
		case *ssa.Type:
			mset := pkg.Prog.MethodSets.MethodSet(types.NewPointer(mem.Type()))
			for i := 0; i < mset.Len(); i++ {
				if fn := pkg.Prog.MethodValue(mset.At(i)); fn != nil && fn.Pkg == pkg && fn.Synthetic == "" {
					add(fn)
				}
			}
		}
	}

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Pos() < res[j].Pos()
	})
	return
}

// FindFunction finds a function of a package by name. Methods are named
// by their receiver type and method name, e.g. "T.m", and anonymous
// functions by the name SSA gives them, e.g. "main$1".
func FindFunction(pkg *ssa.Package, name string) (*ssa.Function, error) {
	for _, fn := range Functions(pkg) {
		if functionName(fn) == name {
			return fn, nil
		}
	}
	return nil, errors.Errorf("no function %s in package %s", name, pkg.Pkg.Path())
}

func functionName(fn *ssa.Function) string {
	recv := fn.Signature.Recv()
	if recv == nil || fn.Parent() != nil {
		return fn.Name()
	}
	t := recv.Type()
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		return named.Obj().Name() + "." + fn.Name()
	}
	return fn.Name()
}
