// Package ssaconv lowers functions in SSA form to control flow graphs the
// dataflow engine can analyze.
//
// SSA registers become locals of the lowered method, phi nodes become
// copies on the incoming edges, and panics become throws. Loads and stores
// through the address of a variable, field or element are lowered to
// direct references to that storage. Anonymous functions become lambdas
// nested in the function creating them, and their free variables refer to
// the storage bound by the enclosing function.
package ssaconv

import (
	"go/types"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/utils"
	"github.com/cs-au-dk/goat-flow/utils/worklist"
)

// Program lowers the functions of an SSA program. Symbols are shared
// between all functions lowered by the same Program, so that calls between
// them resolve to the lowered callees.
type Program struct {
	// Include decides whether a function called from a lowered function is
	// lowered as well. Functions that are not lowered have no body. A nil
	// Include lowers every function with a body.
	Include func(*ssa.Function) bool

	types    typeutil.Map
	funcs    map[*ssa.Function]*cfg.Symbol
	params   map[*ssa.Parameter]*cfg.Symbol
	regs     map[ssa.Value]*cfg.Symbol
	vars     map[*ssa.Alloc]*cfg.Symbol
	fields   map[*types.Var]*cfg.Symbol
	derefs   map[*cfg.Type]*cfg.Symbol
	globals  map[*ssa.Global]*cfg.Symbol
	pkgs     map[*ssa.Package]*cfg.Type
	methods  map[*types.Func]*cfg.Symbol
	closures map[*ssa.Function]*ssa.MakeClosure
	graphs   map[*ssa.Function]*cfg.Graph

	queue *worklist.Worklist[*ssa.Function]
}

func New(include func(*ssa.Function) bool) *Program {
	return &Program{
		Include:  include,
		funcs:    make(map[*ssa.Function]*cfg.Symbol),
		params:   make(map[*ssa.Parameter]*cfg.Symbol),
		regs:     make(map[ssa.Value]*cfg.Symbol),
		vars:     make(map[*ssa.Alloc]*cfg.Symbol),
		fields:   make(map[*types.Var]*cfg.Symbol),
		derefs:   make(map[*cfg.Type]*cfg.Symbol),
		globals:  make(map[*ssa.Global]*cfg.Symbol),
		pkgs:     make(map[*ssa.Package]*cfg.Type),
		methods:  make(map[*types.Func]*cfg.Symbol),
		closures: make(map[*ssa.Function]*ssa.MakeClosure),
		graphs:   make(map[*ssa.Function]*cfg.Graph),
		queue:    worklist.New[*ssa.Function](),
	}
}

// InPackages lowers the functions declared in one of the given packages.
func InPackages(pkgs ...*ssa.Package) func(*ssa.Function) bool {
	set := make(map[*ssa.Package]bool, len(pkgs))
	for _, pkg := range pkgs {
		set[pkg] = true
	}
	return func(fn *ssa.Function) bool {
		return set[fn.Pkg]
	}
}

// Lower returns the graph of fn, lowering it first if necessary. Functions
// enclosing fn are lowered before it, and the callees selected by Include
// after it.
func (p *Program) Lower(fn *ssa.Function) (*cfg.Graph, error) {
	if g, ok := p.graphs[fn]; ok {
		return g, nil
	}
	if len(fn.Blocks) == 0 {
		return nil, errors.Errorf("%v has no body", fn)
	}
	if par := fn.Parent(); par != nil {
		if _, err := p.Lower(par); err != nil {
			return nil, err
		}
		if g, ok := p.graphs[fn]; ok {
			return g, nil
		}
	}

	p.queue.Add(fn)
	for f, ok := p.queue.Next(); ok; f, ok = p.queue.Next() {
		if _, done := p.graphs[f]; done {
			continue
		}

		utils.Log().WithField("function", f.String()).Debug("Lowering")
		g, err := newFuncLowerer(p, f).lower()
		if err != nil {
			p.queue = worklist.New[*ssa.Function]()
			return nil, errors.Wrapf(err, "lowering %v", f)
		}
		p.graphs[f] = g
	}
	return p.graphs[fn], nil
}

// Graph returns the graph of a function that was already lowered.
func (p *Program) Graph(fn *ssa.Function) (*cfg.Graph, bool) {
	g, ok := p.graphs[fn]
	return g, ok
}

// enqueue schedules fn for lowering if Include selects it.
func (p *Program) enqueue(fn *ssa.Function) {
	if len(fn.Blocks) == 0 || p.graphs[fn] != nil {
		return
	}
	if p.Include == nil || p.Include(fn) || fn.Parent() != nil {
		p.queue.Add(fn)
	}
}

// Symbol is the method symbol of fn. Anonymous functions are lambdas of
// the function creating them. The receiver of methods is their first
// parameter.
func (p *Program) Symbol(fn *ssa.Function) *cfg.Symbol {
	if s, ok := p.funcs[fn]; ok {
		return s
	}

	ret := p.result(fn.Signature)
	var s *cfg.Symbol
	if par := fn.Parent(); par != nil {
		s = cfg.NewLambda(p.Symbol(par), fn.Name(), ret)
	} else {
		var owner *cfg.Type
		if recv := fn.Signature.Recv(); recv != nil {
			owner = p.typeOf(recv.Type())
		}
		s = cfg.NewMethod(owner, fn.Name(), ret)
	}
	p.funcs[fn] = s

	if len(fn.Params) > 0 {
		for _, par := range fn.Params {
			p.params[par] = s.AddParameter(par.Name(), p.typeOf(par.Type()), cfg.ByValue)
		}
	} else {
		sig := fn.Signature
		if recv := sig.Recv(); recv != nil {
			s.AddParameter(recv.Name(), p.typeOf(recv.Type()), cfg.ByValue)
		}
		for i := 0; i < sig.Params().Len(); i++ {
			par := sig.Params().At(i)
			s.AddParameter(par.Name(), p.typeOf(par.Type()), cfg.ByValue)
		}
	}
	return s
}

// Register is the local holding the value of an SSA register.
func (p *Program) Register(v ssa.Value) *cfg.Symbol {
	if s, ok := p.regs[v]; ok {
		return s
	}
	s := cfg.NewLocal(p.Symbol(v.Parent()), v.Name(), p.typeOf(v.Type()))
	p.regs[v] = s
	return s
}

// Variable is the local holding a variable that does not escape its
// function.
func (p *Program) Variable(a *ssa.Alloc) *cfg.Symbol {
	if s, ok := p.vars[a]; ok {
		return s
	}
	name := a.Comment
	if name == "" {
		name = a.Name()
	}
	s := cfg.NewLocal(p.Symbol(a.Parent()), name, p.typeOf(pointee(a.Type())))
	p.vars[a] = s
	return s
}

// Global is the static field holding a package level variable.
func (p *Program) Global(g *ssa.Global) *cfg.Symbol {
	if s, ok := p.globals[g]; ok {
		return s
	}
	owner, ok := p.pkgs[g.Pkg]
	if !ok {
		owner = cfg.NewType(g.Pkg.Pkg.Name(), nil)
		p.pkgs[g.Pkg] = owner
	}
	s := cfg.NewStaticField(owner, g.Name(), p.typeOf(pointee(g.Type())))
	p.globals[g] = s
	return s
}

// interfaceMethod is the abstract method invoked through an interface.
// Its first parameter is the receiver.
func (p *Program) interfaceMethod(m *types.Func) *cfg.Symbol {
	if s, ok := p.methods[m]; ok {
		return s
	}
	sig := m.Type().(*types.Signature)
	recv := sig.Recv().Type()
	s := cfg.NewMethod(p.typeOf(recv), m.Name(), p.result(sig))
	s.Method.Abstract = true
	s.AddParameter("recv", p.typeOf(recv), cfg.ByValue)
	for i := 0; i < sig.Params().Len(); i++ {
		par := sig.Params().At(i)
		s.AddParameter(par.Name(), p.typeOf(par.Type()), cfg.ByValue)
	}
	p.methods[m] = s
	return s
}
