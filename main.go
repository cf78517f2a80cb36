package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/cs-au-dk/goat-flow/analysis"
	"github.com/cs-au-dk/goat-flow/analysis/config"
	"github.com/cs-au-dk/goat-flow/analysis/dataflow"
	"github.com/cs-au-dk/goat-flow/analysis/ssaconv"
	"github.com/cs-au-dk/goat-flow/pkgutil"
	"github.com/cs-au-dk/goat-flow/utils"
)

var opts = utils.Opts()

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	set := utils.Setters()

	cmd := &cobra.Command{
		Use:   "goat-flow [flags] <packages>",
		Short: "Dataflow analysis of Go functions",
		Long: `goat-flow lowers the functions of the given packages to control flow graphs
and runs a fixed-point dataflow analysis over them. The value analysis
reports the constants each function may return, the nullness analysis
reports dereferences of pointers that may be nil.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			utils.ApplyOptions()
			return run(cmd.OutOrStdout(), args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(set.Function, "fun", "f", "", "only analyze the named function, e.g. main or T.m")
	f.StringVarP(set.Analysis, "analysis", "a", string(analysis.ValueContent), "analysis to run: values or nullness")
	f.StringVar(set.ConfigPath, "config", "", "YAML file with the analysis configuration")
	f.StringVar(set.ModulePath, "modulepath", "", "root of the module the packages are loaded from")
	f.StringVar(set.DotOutput, "dot", "", "render the annotated control flow graph of each function to `prefix`.<function>.svg")
	f.BoolVar(set.Dump, "dump", false, "print the output state of every block")
	f.BoolVar(set.Metrics, "metrics", false, "print analysis metrics")
	f.BoolVar(set.IncludeTests, "tests", false, "also load test files")
	f.BoolVarP(set.Verbose, "verbose", "v", false, "verbose logging")
	f.BoolVar(set.DebugChecks, "debug-checks", false, "check monotonicity of transfer functions")
	f.BoolVar(set.NoColorize, "nocolorize", *set.NoColorize, "disable colored output")
	return cmd
}

func loadConfig() (config.Config, error) {
	c, err := config.Load(opts.ConfigPath())
	if err != nil {
		return c, err
	}
	if opts.DebugChecks() {
		c.DebugChecks = true
	}
	if opts.Verbose() {
		c.Verbose = true
	}
	return c, c.Validate()
}

func run(w io.Writer, patterns []string) error {
	defer utils.TimeTrack(time.Now(), "Analysis")

	kind, err := analysis.ParseKind(opts.Analysis())
	if err != nil {
		return err
	}
	c, err := loadConfig()
	if err != nil {
		return err
	}

	pkgs, err := pkgutil.LoadPackages(pkgutil.LoadConfig{
		ModulePath:   opts.ModulePath(),
		IncludeTests: opts.IncludeTests(),
	}, patterns...)
	if err != nil {
		return errors.Wrap(err, "loading packages")
	}

	prog, ssaPkgs := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	prog.Build()

	var targets []*ssa.Package
	for _, pkg := range ssaPkgs {
		if pkg != nil {
			targets = append(targets, pkg)
		}
	}
	local, err := pkgutil.LocalPackages(targets, pkgutil.AllPackages(prog))
	if err != nil {
		return err
	}
	utils.Log().Debugf("%d local packages", len(local))

	var metrics *dataflow.Metrics
	if opts.Metrics() {
		metrics = dataflow.NewMetrics()
	}

	lowering := ssaconv.New(func(fn *ssa.Function) bool {
		return fn.Pkg != nil && local[fn.Pkg]
	})
	session, err := analysis.NewSession(lowering, c, metrics)
	if err != nil {
		return err
	}

	fns, err := selectFunctions(targets)
	if err != nil {
		return err
	}

	p := pipeline{w: w, prog: prog, session: session, kind: kind}
	failed := 0
	for _, fn := range fns {
		if err := p.analyze(fn); err != nil {
			utils.Log().Errorf("%v: %v", fn, err)
			failed++
		}
	}

	if metrics != nil {
		if err := printMetrics(w, metrics); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("analysis of %d out of %d functions failed", failed, len(fns))
	}
	return nil
}

// selectFunctions picks the function named on the command line, or every
// top-level function of the target packages.
func selectFunctions(pkgs []*ssa.Package) (res []*ssa.Function, err error) {
	if name := opts.Function(); name != "" {
		for _, pkg := range pkgs {
			if fn, err := pkgutil.FindFunction(pkg, name); err == nil {
				res = append(res, fn)
			}
		}
		if len(res) == 0 {
			return nil, errors.Errorf("no function named %s", name)
		}
		return res, nil
	}

	for _, pkg := range pkgs {
		for _, fn := range pkgutil.Functions(pkg) {
			if fn.Parent() == nil && len(fn.Blocks) > 0 {
				res = append(res, fn)
			}
		}
	}
	return res, nil
}
