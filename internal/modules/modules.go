// Package modules provides the module graph of typecore.
//
// This package implements:
// - The requires graph over module symbols entered in a symbol table
// - Circular requires detection
// - Load ordering (dependencies first)
// - Semantic version checks of requires constraints
package modules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/diagnostic"
	"github.com/orizon-lang/typecore/internal/errors"
)

// Graph represents the requires relationships between modules.
type Graph struct {
	Modules      map[string]*code.ModuleSymbol
	Dependencies map[string][]string
	Reverse      map[string][]string
	LoadOrder    []string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Modules:      make(map[string]*code.ModuleSymbol),
		Dependencies: make(map[string][]string),
		Reverse:      make(map[string][]string),
	}
}

// FromSymtab builds the graph of every named module in syms.
func FromSymtab(syms *code.Symtab) *Graph {
	g := NewGraph()
	for _, m := range syms.Modules() {
		g.AddModule(m)
	}
	for _, m := range syms.Modules() {
		for _, r := range m.Requires {
			if r.Module != nil {
				g.AddRequire(m, r.Module)
			}
		}
	}
	return g
}

// AddModule adds a module to the graph.
func (g *Graph) AddModule(m *code.ModuleSymbol) {
	name := m.Name()
	g.Modules[name] = m
	if g.Dependencies[name] == nil {
		g.Dependencies[name] = []string{}
	}
	if g.Reverse[name] == nil {
		g.Reverse[name] = []string{}
	}
}

// AddRequire records that from requires to. Both are added when missing.
func (g *Graph) AddRequire(from, to *code.ModuleSymbol) {
	if _, ok := g.Modules[from.Name()]; !ok {
		g.AddModule(from)
	}
	if _, ok := g.Modules[to.Name()]; !ok {
		g.AddModule(to)
	}
	if contains(g.Dependencies[from.Name()], to.Name()) {
		return
	}
	g.Dependencies[from.Name()] = append(g.Dependencies[from.Name()], to.Name())
	g.Reverse[to.Name()] = append(g.Reverse[to.Name()], from.Name())
}

func (g *Graph) names() []string {
	out := make([]string, 0, len(g.Modules))
	for name := range g.Modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DetectCycles returns every requires cycle found by a depth-first walk.
// Each cycle is closed: its last element repeats the first.
func (g *Graph) DetectCycles() ([][]string, error) {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	for _, name := range g.names() {
		if !visited[name] {
			if cycle := g.detectCyclesDFS(name, visited, onStack, nil); cycle != nil {
				cycles = append(cycles, cycle)
			}
		}
	}

	if len(cycles) > 0 {
		return cycles, errors.New(errors.CategoryModule, "cyclic.requires", func() *diagnostic.Fragment {
			details := make([]*diagnostic.Fragment, len(cycles))
			for i, c := range cycles {
				details[i] = diagnostic.NewFragment("cycle", strings.Join(c, " -> "))
			}
			return diagnostic.NewFragment("cyclic.requires", len(cycles)).WithDetails(details...)
		})
	}
	return nil, nil
}

func (g *Graph) detectCyclesDFS(name string, visited, onStack map[string]bool, path []string) []string {
	visited[name] = true
	onStack[name] = true
	path = append(path, name)

	for _, dep := range g.Dependencies[name] {
		if !visited[dep] {
			if cycle := g.detectCyclesDFS(dep, visited, onStack, path); cycle != nil {
				return cycle
			}
		} else if onStack[dep] {
			for i, p := range path {
				if p == dep {
					cycle := make([]string, len(path)-i, len(path)-i+1)
					copy(cycle, path[i:])
					return append(cycle, dep)
				}
			}
		}
	}

	onStack[name] = false
	return nil
}

// TopologicalSort returns the modules with every module after the modules
// it requires. Ties are broken by name.
func (g *Graph) TopologicalSort() ([]string, error) {
	if _, err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("cannot order modules: %w", err)
	}

	inDegree := make(map[string]int, len(g.Modules))
	for name := range g.Modules {
		inDegree[name] = 0
	}
	for _, deps := range g.Dependencies {
		for _, dep := range deps {
			inDegree[dep]++
		}
	}

	var queue []string
	for _, name := range g.names() {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var result []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		deps := append([]string(nil), g.Dependencies[current]...)
		sort.Strings(deps)
		for _, dep := range deps {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(result) != len(g.Modules) {
		return nil, errors.Newf(errors.CategoryModule, "cyclic.requires", len(g.Modules)-len(result))
	}

	reversed := make([]string, len(result))
	for i, name := range result {
		reversed[len(result)-1-i] = name
	}
	g.LoadOrder = reversed
	return reversed, nil
}

// Requires returns the direct requires of a module.
func (g *Graph) Requires(name string) []string {
	return append([]string{}, g.Dependencies[name]...)
}

// Dependents returns the modules requiring the given module.
func (g *Graph) Dependents(name string) []string {
	return append([]string{}, g.Reverse[name]...)
}

// Transitive returns every module reachable from name through requires,
// in depth-first post order.
func (g *Graph) Transitive(name string) []string {
	visited := make(map[string]bool)
	var result []string

	var visit func(string)
	visit = func(m string) {
		if visited[m] {
			return
		}
		visited[m] = true
		for _, dep := range g.Dependencies[m] {
			visit(dep)
			if dep != name && !contains(result, dep) {
				result = append(result, dep)
			}
		}
	}
	visit(name)
	return result
}

func contains(slice []string, value string) bool {
	for _, s := range slice {
		if s == value {
			return true
		}
	}
	return false
}

// ====== Versions ======

// CheckVersions returns one MODULE error per require whose constraint
// rejects the version of the required module, ordered by module name.
func (g *Graph) CheckVersions() []*errors.Error {
	var problems []*errors.Error
	for _, name := range g.names() {
		if err := Check(g.Modules[name]); err != nil {
			problems = append(problems, err)
		}
	}
	return problems
}

// Check verifies the requires constraints of m. It returns nil when every
// versioned target satisfies its constraint.
func Check(m *code.ModuleSymbol) *errors.Error {
	bad := m.UnsatisfiedRequires()
	if len(bad) == 0 {
		return nil
	}
	return errors.New(errors.CategoryModule, "module.version.mismatch", func() *diagnostic.Fragment {
		details := make([]*diagnostic.Fragment, len(bad))
		for i, r := range bad {
			details[i] = diagnostic.NewFragment("requires.constraint",
				r.Module.Name(), r.Constraint.String(), r.Module.Version.String())
		}
		return diagnostic.NewFragment("module.version.mismatch", m.Name()).WithDetails(details...)
	})
}

// ====== Statistics ======

// Statistics summarizes a graph.
type Statistics struct {
	Modules     int
	Requires    int
	Unversioned int
	Roots       int
}

// Stats returns statistics about the graph.
func (g *Graph) Stats() Statistics {
	s := Statistics{Modules: len(g.Modules)}
	for name, m := range g.Modules {
		s.Requires += len(g.Dependencies[name])
		if m.Version == nil {
			s.Unversioned++
		}
		if len(g.Reverse[name]) == 0 {
			s.Roots++
		}
	}
	return s
}
