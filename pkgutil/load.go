package pkgutil

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/packages"
)

// LoadConfig configures package loading. Packages are loaded in
// module-aware mode from the module rooted at ModulePath, or from the
// current directory if it is empty. If IncludeTests is true, test files
// are loaded as well.
type LoadConfig struct {
	ModulePath   string
	IncludeTests bool
}

// loadMode avoids deprecation warnings from using packages.LoadAllSyntax.
const loadMode packages.LoadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedImports | packages.NeedTypes | packages.NeedTypesSizes | packages.NeedSyntax |
	packages.NeedTypesInfo | packages.NeedDeps

var (
	// moduleRegex matches the module directive of a go.mod file.
	moduleRegex = regexp.MustCompile(`(?m)^module\s+(.*)$`)

	cwd = func() string {
		if dir, err := os.Getwd(); err == nil {
			return dir
		} else {
			panic(err)
		}
	}()
)

// relativizingParseFile is a ParseFile implementation that relativizes
// filenames according to CWD, so that printed positions do not depend on
// where the repository is checked out.
func relativizingParseFile(fset *token.FileSet, filename string, src []byte) (*ast.File, error) {
	if rel, err := filepath.Rel(cwd, filename); err == nil {
		filename = rel
	}
	const mode = parser.AllErrors | parser.ParseComments
	return parser.ParseFile(fset, filename, src, mode)
}

// ModuleName reads the module path declared in the go.mod file of dir.
func ModuleName(dir string) (string, error) {
	contents, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", errors.Wrapf(err, "unable to load 'go.mod' file at %s", dir)
	}
	m := moduleRegex.FindSubmatch(contents)
	if len(m) <= 1 {
		return "", errors.Errorf("unable to locate module name in %s/go.mod", dir)
	}
	return string(m[1]), nil
}

// LoadPackages loads the packages matching the patterns according to the
// provided LoadConfig.
func LoadPackages(cfg LoadConfig, patterns ...string) ([]*packages.Package, error) {
	config := &packages.Config{
		Mode:      loadMode,
		Tests:     cfg.IncludeTests,
		ParseFile: relativizingParseFile,
	}

	if modulePath := cfg.ModulePath; modulePath != "" {
		dir, err := filepath.Abs(modulePath)
		if err != nil {
			return nil, err
		}
		if _, err := ModuleName(dir); err != nil {
			return nil, err
		}
		config.Dir = dir
		config.Env = append(os.Environ(), "GO111MODULE=on")
	}

	return loadPackagesWithConfig(config, patterns...)
}

// LoadPackagesFromSource loads a package directly from a string holding a
// source file. It is mainly useful for testing.
func LoadPackagesFromSource(source string) ([]*packages.Package, error) {
	// The overlay lets the tool load a non-existent file.
	config := &packages.Config{
		Mode:  loadMode,
		Tests: false,
		Dir:   "",
		Env:   append(os.Environ(), "GO111MODULE=off", "GOPATH=/fake"),
		Overlay: map[string][]byte{
			"/fake/testpackage/main.go": []byte(source),
		},
	}

	return loadPackagesWithConfig(config, "/fake/testpackage/main.go")
}

// loadPackagesWithConfig wraps packages.Load, and drops the duplicate
// packages created when test packages are loaded.
func loadPackagesWithConfig(config *packages.Config, patterns ...string) ([]*packages.Package, error) {
	pkgs, err := packages.Load(config, patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "loading packages")
	} else if packages.PrintErrors(pkgs) > 0 {
		return nil, errors.New("errors encountered while loading packages")
	}
	if config.Tests {
		// Packages with test functions are returned twice, once with no
		// tests and once with tests. The one without tests is discarded.
		packageIDs := map[string]bool{}
		for _, pkg := range pkgs {
			packageIDs[pkg.ID] = true
		}

		filteredPkgs := []*packages.Package{}
		for _, pkg := range pkgs {
			if !packageIDs[fmt.Sprintf("%s [%s.test]", pkg.ID, pkg.ID)] {
				filteredPkgs = append(filteredPkgs, pkg)
			}
		}
		pkgs = filteredPkgs
	}
	return pkgs, nil
}
