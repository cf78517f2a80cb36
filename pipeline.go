package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/tools/go/ssa"

	"github.com/cs-au-dk/goat-flow/analysis"
	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/dataflow"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
	"github.com/cs-au-dk/goat-flow/analysis/nullness"
	"github.com/cs-au-dk/goat-flow/utils"
)

// pipeline runs the selected analysis on one function at a time and
// reports the outcome.
type pipeline struct {
	w       io.Writer
	prog    *ssa.Program
	session *analysis.Session
	kind    analysis.Kind
}

var (
	headerColor  = utils.CanColorize(color.New(color.FgCyan, color.Bold).SprintFunc())
	warningColor = utils.CanColorize(color.New(color.FgYellow).SprintFunc())
	nullColor    = utils.CanColorize(color.New(color.FgRed).SprintFunc())
)

func (p pipeline) analyze(fn *ssa.Function) error {
	fmt.Fprintln(p.w, headerColor(fn.String()))

	switch p.kind {
	case analysis.ValueContent:
		res, err := p.session.Values(fn)
		if err != nil {
			return err
		}
		if fn.Signature.Results().Len() > 0 {
			fmt.Fprintf(p.w, "  returns %v", res.ReturnValue)
			if res.ReturnKind != 0 {
				fmt.Fprintf(p.w, " (%v)", res.ReturnKind)
			}
			fmt.Fprintln(p.w)
		}
		if _, ok := res.UnhandledThrow(); ok {
			fmt.Fprintln(p.w, " ", warningColor("may panic"))
		}
		return details(p, fn, res)

	case analysis.Nullness:
		res, derefs, err := p.session.Nullness(fn)
		if err != nil {
			return err
		}
		for _, d := range derefs {
			p.reportDereference(d)
		}
		return details(p, fn, res)
	}
	return fmt.Errorf("unknown analysis %q", p.kind)
}

func (p pipeline) reportDereference(d nullness.Dereference) {
	what := "may be nil"
	if d.State == loc.IsNull {
		what = "is nil"
	}
	where := "?"
	if pos := d.Op.Position(); pos.IsValid() {
		where = p.prog.Fset.Position(pos).String()
	}
	fmt.Fprintf(p.w, "  %s: receiver of %v %s\n", where, d.Op, nullColor(what))
}

// details dumps and renders the result of an analysis when requested.
func details[V any](p pipeline, fn *ssa.Function, res *dataflow.Result[V]) error {
	if opts.Dump() {
		res.Dump(p.w)
	}

	if prefix := opts.DotOutput(); prefix != "" {
		dg := res.Graph.Visualize(func(b *cfg.BasicBlock) string {
			return res.Output(b).String()
		})
		name := strings.NewReplacer("(", "", ")", "", "*", "", "/", "_", "$", "_").Replace(fn.String())
		out, err := dg.Render(prefix+"."+name, "svg")
		if err != nil {
			return err
		}
		utils.Log().Infof("Rendered %s", out)
	}
	return nil
}
