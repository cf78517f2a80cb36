package pkgutil

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"

	"github.com/cs-au-dk/goat-flow/utils"
)

func pkgQualifiedPath(pkg *ssa.Package) []string {
	path := strings.Split(strings.TrimSuffix(pkg.Pkg.Path(), ".test"), "/")

	if path[0] == "vendor" {
		path = path[1:]
	}

	return path
}

// LocalPackages selects the packages that share the first three path
// elements with the main package, i.e. the packages of the same project.
func LocalPackages(mains []*ssa.Package, pkgs []*ssa.Package) (map[*ssa.Package]bool, error) {
	if len(mains) == 0 {
		return nil, errors.New("gather local packages error: no main packages found")
	}

	mp := GetMain(mains)
	if mp == nil {
		// If there is no non-test main package, just pick one of the test
		// packages.
		mp = mains[0]
	}

	mainpath := pkgQualifiedPath(mp)
	local := make(map[*ssa.Package]bool)

	for _, p := range pkgs {
		pkgpath := pkgQualifiedPath(p)
		isLocal := true
		for i := 0; isLocal && i < 3 && i < len(mainpath) && i < len(pkgpath); i++ {
			isLocal = isLocal && mainpath[i] == pkgpath[i]
		}
		if isLocal && !CheckPkgInGoroot(p.Pkg) {
			local[p] = true
		}
	}

	log := utils.Log()
	for p := range local {
		log.WithField("package", p.Pkg.Path()).Debug("Local package")
	}
	return local, nil
}
