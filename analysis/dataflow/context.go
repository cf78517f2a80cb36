package dataflow

import (
	"fmt"

	"github.com/cs-au-dk/goat-flow/analysis/cfg"
	"github.com/cs-au-dk/goat-flow/analysis/config"
	"github.com/cs-au-dk/goat-flow/analysis/entity"
	loc "github.com/cs-au-dk/goat-flow/analysis/location"
	"github.com/cs-au-dk/goat-flow/utils"
)

// Context is the unit of analysis: one graph, analyzed for one activation.
type Context[V any] struct {
	Graph  *cfg.Graph
	Method *cfg.Symbol
	Config config.Config
	// Stack is the chain of call sites leading to the activation. It is
	// empty for top-level analyses.
	Stack *loc.CallStack
	// Interprocedural is set when the activation is analyzed on behalf of
	// a caller.
	Interprocedural *InterproceduralData[V]
	Oracle          PointsToOracle
	// Parent is the context of the caller, or of the method enclosing an
	// escaped lambda. It is used to find the activation owning captured
	// variables.
	Parent *Context[V]
}

// Argument is the binding of one parameter at a call site.
type Argument[V any] struct {
	Value V
	// Entity is the storage passed by reference, if any.
	Entity   *entity.Entity
	PointsTo loc.PointsTo
	RefKind  cfg.RefKind
}

// InterproceduralData describes the call that led to an activation.
type InterproceduralData[V any] struct {
	// Initial is the state of the caller at the call site.
	Initial Data[V]
	// This is the points-to value of the receiver.
	This      loc.PointsTo
	Arguments map[*cfg.Symbol]Argument[V]
	// Invocation is the call site in the caller.
	Invocation *cfg.Operation
	// Shared tracks storage reachable through several names.
	Shared *AddressSharing
	// fingerprint identifies the activation for the recursion guard.
	fingerprint uint32
}

// NewContext creates the context of a top-level analysis.
func NewContext[V any](g *cfg.Graph, c config.Config, oracle PointsToOracle) *Context[V] {
	return &Context[V]{
		Graph:  g,
		Method: g.Method,
		Config: c,
		Oracle: oracle,
	}
}

// fork creates the context of a callee.
func (c *Context[V]) fork(g *cfg.Graph, ipd *InterproceduralData[V]) *Context[V] {
	return &Context[V]{
		Graph:           g,
		Method:          g.Method,
		Config:          c.Config,
		Stack:           c.Stack.Push(ipd.Invocation),
		Interprocedural: ipd,
		Oracle:          c.Oracle,
		Parent:          c,
	}
}

// IsTopLevel holds for contexts not created on behalf of a caller.
func (c *Context[V]) IsTopLevel() bool {
	return c.Interprocedural == nil
}

// capturedStack finds the activation declaring a local or parameter of an
// enclosing method.
func (c *Context[V]) capturedStack(s *cfg.Symbol) (*loc.CallStack, bool) {
	for p := c.Parent; p != nil; p = p.Parent {
		if p.Method == s.Container {
			return p.Stack, true
		}
	}
	return nil, false
}

// chainLength counts the enclosing activations of ordinary methods and of
// lambdas and local functions.
func (c *Context[V]) chainLength() (methods, lambdas int) {
	for p := c; p != nil && !p.IsTopLevel(); p = p.Parent {
		if p.Method.IsLambdaOrLocalFunction() {
			lambdas++
		} else {
			methods++
		}
	}
	return
}

// isActive checks whether an activation with the given fingerprint is
// already being analyzed, i.e. the call is recursive.
func (c *Context[V]) isActive(method *cfg.Symbol, fingerprint uint32) bool {
	for p := c; p != nil; p = p.Parent {
		if p.Method == method && (p.IsTopLevel() || p.Interprocedural.fingerprint == fingerprint) {
			return true
		}
	}
	return false
}

func fingerprintOf[V any](method *cfg.Symbol, this loc.PointsTo, args []Argument[V]) uint32 {
	hs := []uint32{utils.HashPointer(method), this.Hash()}
	for _, a := range args {
		hs = append(hs, a.PointsTo.Hash(), uint32(a.RefKind))
	}
	return utils.HashCombine(hs...)
}

func (c *Context[V]) String() string {
	return fmt.Sprintf("%v%v", c.Method, c.Stack)
}
