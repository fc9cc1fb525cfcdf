package modules

import (
	"reflect"
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/errors"
)

func module(name, version string) *code.ModuleSymbol {
	var v *semver.Version
	if version != "" {
		v = semver.MustParse(version)
	}
	return code.NewModuleSymbol(name, v)
}

func require(from, to *code.ModuleSymbol, constraint string) {
	r := code.ModuleRequire{Module: to}
	if constraint != "" {
		c, err := semver.NewConstraint(constraint)
		if err != nil {
			panic(err)
		}
		r.Constraint = c
	}
	from.Requires = append(from.Requires, r)
}

func TestTopologicalSort(t *testing.T) {
	app := module("app", "1.0.0")
	util := module("util", "2.1.0")
	base := module("base", "")

	g := NewGraph()
	g.AddRequire(app, util)
	g.AddRequire(app, base)
	g.AddRequire(util, base)

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expected := []string{"base", "util", "app"}
	if !reflect.DeepEqual(order, expected) {
		t.Errorf("Expected %v, got %v", expected, order)
	}
	if !reflect.DeepEqual(g.LoadOrder, expected) {
		t.Errorf("Expected load order to be recorded, got %v", g.LoadOrder)
	}
}

func TestDetectCycles(t *testing.T) {
	a := module("a", "")
	b := module("b", "")
	c := module("c", "")

	tests := []struct {
		name   string
		edges  [][2]*code.ModuleSymbol
		cycles int
	}{
		{"acyclic", [][2]*code.ModuleSymbol{{a, b}, {b, c}}, 0},
		{"two modules", [][2]*code.ModuleSymbol{{a, b}, {b, a}}, 1},
		{"three modules", [][2]*code.ModuleSymbol{{a, b}, {b, c}, {c, a}}, 1},
		{"self require", [][2]*code.ModuleSymbol{{a, a}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			for _, e := range tt.edges {
				g.AddRequire(e[0], e[1])
			}
			cycles, err := g.DetectCycles()
			if len(cycles) != tt.cycles {
				t.Fatalf("Expected %d cycles, got %v", tt.cycles, cycles)
			}
			if tt.cycles == 0 {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.HasCategory(err, errors.CategoryModule) {
				t.Errorf("Expected a MODULE error, got %v", err)
			}
			cycle := cycles[0]
			if cycle[0] != cycle[len(cycle)-1] {
				t.Errorf("Expected a closed cycle, got %v", cycle)
			}
			if _, err := g.TopologicalSort(); err == nil {
				t.Errorf("Expected topological sort to fail on a cycle")
			}
		})
	}
}

func TestTransitive(t *testing.T) {
	app := module("app", "")
	util := module("util", "")
	base := module("base", "")
	extra := module("extra", "")

	g := NewGraph()
	g.AddRequire(app, util)
	g.AddRequire(util, base)
	g.AddModule(extra)

	got := g.Transitive("app")
	expected := []string{"base", "util"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
	if deps := g.Dependents("base"); !reflect.DeepEqual(deps, []string{"util"}) {
		t.Errorf("Expected [util], got %v", deps)
	}
	if got := g.Transitive("extra"); len(got) != 0 {
		t.Errorf("Expected no transitive requires, got %v", got)
	}
}

func TestCheckVersions(t *testing.T) {
	app := module("app", "1.0.0")
	util := module("util", "2.1.0")
	base := module("base", "0.9.0")
	loose := module("loose", "")
	require(app, util, ">= 2.0.0, < 3.0.0")
	require(app, base, "^1.0.0")
	require(app, loose, "^5.0.0")

	g := NewGraph()
	g.AddModule(app)
	for _, r := range app.Requires {
		g.AddRequire(app, r.Module)
	}

	problems := g.CheckVersions()
	if len(problems) != 1 {
		t.Fatalf("Expected one problem, got %d", len(problems))
	}
	p := problems[0]
	if p.Category != errors.CategoryModule {
		t.Errorf("Expected MODULE category, got %s", p.Category)
	}
	if p.Code != "module.version.mismatch" {
		t.Errorf("Expected module.version.mismatch, got %s", p.Code)
	}
	if n := len(p.Fragment().Details); n != 1 {
		t.Errorf("Expected one unsatisfied require, got %d", n)
	}
}

func TestStats(t *testing.T) {
	app := module("app", "1.0.0")
	util := module("util", "")
	g := NewGraph()
	g.AddRequire(app, util)

	s := g.Stats()
	expected := Statistics{Modules: 2, Requires: 1, Unversioned: 1, Roots: 1}
	if s != expected {
		t.Errorf("Expected %+v, got %+v", expected, s)
	}
}
