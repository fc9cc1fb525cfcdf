package modules

import (
	"fmt"

	"github.com/orizon-lang/typecore/internal/code"
)

// Resolver integrates the module graph with the symbol table.
type Resolver struct {
	Symtab *code.Symtab
	Graph  *Graph
}

// NewResolver creates a resolver over syms.
func NewResolver(syms *code.Symtab) *Resolver {
	return &Resolver{Symtab: syms, Graph: NewGraph()}
}

// Resolve rebuilds the graph from the symbol table, orders it and checks
// every requires constraint. The load order is nil when the graph is
// cyclic; version problems do not prevent ordering.
func (r *Resolver) Resolve() ([]string, []error) {
	r.Graph = FromSymtab(r.Symtab)

	var problems []error
	order, err := r.Graph.TopologicalSort()
	if err != nil {
		problems = append(problems, fmt.Errorf("failed to resolve modules: %w", err))
	}
	for _, p := range r.Graph.CheckVersions() {
		problems = append(problems, p)
	}
	return order, problems
}

// Completer returns the completer of module symbols: completion fails when
// a requires constraint is not met. The failure carries the MODULE error as
// its cause and is routed to handler.
func Completer(handler code.FailureHandler) code.Completer {
	return code.CompleterFunc(func(sym code.Symbol) error {
		m, ok := sym.(*code.ModuleSymbol)
		if !ok {
			return nil
		}
		if err := Check(m); err != nil {
			return code.NewCompletionFailure(m, "module.requires.unsatisfied", err, nil).WithHandler(handler)
		}
		return nil
	})
}

// GetModule returns a module of the graph.
func (r *Resolver) GetModule(name string) *code.ModuleSymbol {
	return r.Graph.Modules[name]
}

// GetStatistics returns statistics about the module graph.
func (r *Resolver) GetStatistics() Statistics {
	return r.Graph.Stats()
}
