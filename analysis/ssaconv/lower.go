package ssaconv

import (
	"fmt"
	"go/token"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
)

// funcLowerer lowers a single SSA function.
type funcLowerer struct {
	*Program
	fn     *ssa.Function
	method *cfg.Symbol
	b      *cfg.Builder
	// blocks maps SSA blocks by index.
	blocks []*cfg.BasicBlock
}

func newFuncLowerer(p *Program, fn *ssa.Function) *funcLowerer {
	return &funcLowerer{Program: p, fn: fn, method: p.Symbol(fn)}
}

func (l *funcLowerer) lower() (*cfg.Graph, error) {
	l.b = cfg.NewBuilder(l.method)
	if par := l.fn.Parent(); par != nil {
		g, ok := l.graphs[par]
		if !ok {
			return nil, errors.Errorf("enclosing function %v is not lowered", par)
		}
		l.b.WithParent(g)
	}

	l.blocks = make([]*cfg.BasicBlock, len(l.fn.Blocks))
	for _, blk := range l.fn.Blocks {
		l.blocks[blk.Index] = l.b.NewBlock()
	}
	l.b.Goto(l.b.Entry(), l.blocks[0])
	for _, blk := range l.fn.Blocks {
		l.lowerBlock(blk)
	}

	g, err := l.b.Build()
	if err != nil {
		return nil, err
	}
	for _, anon := range l.fn.AnonFuncs {
		l.enqueue(anon)
	}
	return g, nil
}

func (l *funcLowerer) lowerBlock(blk *ssa.BasicBlock) {
	to := l.blocks[blk.Index]
	for _, instr := range blk.Instrs {
		switch instr := instr.(type) {
		case *ssa.Phi:
			// Assigned on the incoming edges.

		case *ssa.Jump:
			l.copies(to, blk, 0)
			l.b.Goto(to, l.blocks[blk.Succs[0].Index])

		case *ssa.If:
			l.b.Branch(to, l.value(instr.Cond), l.edge(blk, 0), l.edge(blk, 1))

		case *ssa.Return:
			l.b.Return(to, l.results(instr.Results))

		case *ssa.Panic:
			exc := cfg.Other("panic", Panic, l.value(instr.X))
			exc.Pos = instr.Pos()
			l.b.Throw(to, exc)

		default:
			ops := l.lowerInstr(instr)
			for _, op := range ops {
				op.Pos = position(instr)
			}
			l.b.Add(to, ops...)
		}
	}
}

// position is the source position of instr. Loads emitted for field and
// element selections have none and take the position of their address.
func position(instr ssa.Instruction) token.Pos {
	if pos := instr.Pos(); pos.IsValid() {
		return pos
	}
	for _, rand := range instr.Operands(nil) {
		if *rand == nil {
			continue
		}
		if def, ok := (*rand).(ssa.Instruction); ok && def.Pos().IsValid() {
			return def.Pos()
		}
	}
	return token.NoPos
}

func (l *funcLowerer) results(rs []ssa.Value) *cfg.Operation {
	switch len(rs) {
	case 0:
		return nil
	case 1:
		return l.value(rs[0])
	}
	vals := make([]*cfg.Operation, len(rs))
	for i, r := range rs {
		vals[i] = l.value(r)
	}
	return cfg.Other("tuple", l.method.Method.ReturnType, vals...)
}

// edge is the target of the i'th successor edge of a conditional branch.
// Edges into blocks with phi nodes are split to hold the copies.
func (l *funcLowerer) edge(from *ssa.BasicBlock, i int) *cfg.BasicBlock {
	succ := from.Succs[i]
	target := l.blocks[succ.Index]
	if len(phis(succ)) == 0 {
		return target
	}
	split := l.b.NewBlock()
	l.copies(split, from, i)
	l.b.Goto(split, target)
	return split
}

func phis(blk *ssa.BasicBlock) (res []*ssa.Phi) {
	for _, instr := range blk.Instrs {
		phi, ok := instr.(*ssa.Phi)
		if !ok {
			break
		}
		res = append(res, phi)
	}
	return
}

// copies assigns the phi nodes of the i'th successor of from to their
// values along that edge.
func (l *funcLowerer) copies(to *cfg.BasicBlock, from *ssa.BasicBlock, i int) {
	succ := from.Succs[i]
	ps := phis(succ)
	if len(ps) == 0 {
		return
	}
	j := predIndex(succ, from, i)

	// Phi nodes are assigned simultaneously. Go through temporaries when
	// a phi reads another phi of the same block.
	parallel := false
	for _, phi := range ps {
		if e, ok := phi.Edges[j].(*ssa.Phi); ok && e.Block() == succ {
			parallel = true
		}
	}
	if !parallel {
		for _, phi := range ps {
			l.b.Add(to, cfg.Assign(cfg.Local(l.Register(phi)), l.value(phi.Edges[j])))
		}
		return
	}

	tmps := make([]*cfg.Symbol, len(ps))
	for k, phi := range ps {
		tmps[k] = cfg.NewLocal(l.method, phi.Name()+"'", l.typeOf(phi.Type()))
		l.b.Add(to, cfg.Assign(cfg.Local(tmps[k]), l.value(phi.Edges[j])))
	}
	for k, phi := range ps {
		l.b.Add(to, cfg.Assign(cfg.Local(l.Register(phi)), cfg.Local(tmps[k])))
	}
}

// predIndex finds the index of the edge from pred among the predecessors of
// succ, given that succ is the i'th successor of pred. A conditional
// branch may lead to the same block twice.
func predIndex(succ, pred *ssa.BasicBlock, i int) int {
	nth := 0
	for k := 0; k < i; k++ {
		if pred.Succs[k] == succ {
			nth++
		}
	}
	for j, p := range succ.Preds {
		if p != pred {
			continue
		}
		if nth == 0 {
			return j
		}
		nth--
	}
	panic(fmt.Errorf("%v is not a predecessor of %v", pred, succ))
}
