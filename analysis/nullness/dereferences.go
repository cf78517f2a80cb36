package nullness

import (
	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/dataflow"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
)

// Dereference is an operation reading through a reference that may be null.
type Dereference struct {
	Op    *cfg.Operation
	State State
}

// Dereferences lists the instance member references and calls in g whose
// receiver may be null according to res, by operation identifier.
func Dereferences(g *cfg.Graph, res *dataflow.Result[State]) (ds []Dereference) {
	for _, op := range g.Operations() {
		switch op.Kind {
		case cfg.OpFieldRef, cfg.OpPropertyRef, cfg.OpArrayElementRef, cfg.OpInvocation:
		default:
			continue
		}
		target := op.Instance
		if target == nil || target.Kind == cfg.OpInstanceRef || !target.Type.IsReference() {
			continue
		}
		if n, ok := res.Value(target); ok && (n == loc.IsNull || n == loc.MaybeNull) {
			ds = append(ds, Dereference{Op: op, State: n})
		}
	}
	return
}
