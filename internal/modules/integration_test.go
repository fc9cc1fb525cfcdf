package modules

import (
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/errors"
)

func TestResolverOrdersSymtabModules(t *testing.T) {
	syms := code.NewSymtab()
	app := syms.EnterModule("app", semver.MustParse("1.0.0"))
	util := syms.EnterModule("util", semver.MustParse("1.2.0"))
	require(app, util, "~1.2")

	r := NewResolver(syms)
	order, problems := r.Resolve()
	if len(problems) != 0 {
		t.Fatalf("Expected no problems, got %v", problems)
	}
	if len(order) != 2 || order[0] != "util" || order[1] != "app" {
		t.Errorf("Expected [util app], got %v", order)
	}
	if r.GetModule("app") != app {
		t.Errorf("Expected the app module to be registered")
	}
	if s := r.GetStatistics(); s.Modules != 2 || s.Requires != 1 {
		t.Errorf("Expected 2 modules and 1 require, got %+v", s)
	}
}

func TestResolverReportsProblems(t *testing.T) {
	syms := code.NewSymtab()
	a := syms.EnterModule("a", semver.MustParse("1.0.0"))
	b := syms.EnterModule("b", semver.MustParse("1.0.0"))
	require(a, b, "^2.0.0")
	require(b, a, "")

	order, problems := NewResolver(syms).Resolve()
	if order != nil {
		t.Errorf("Expected no order for a cyclic graph, got %v", order)
	}
	if len(problems) != 2 {
		t.Fatalf("Expected a cycle and a version problem, got %v", problems)
	}
	for _, p := range problems {
		if !errors.HasCategory(p, errors.CategoryModule) {
			t.Errorf("Expected a MODULE problem, got %v", p)
		}
	}
}

func TestModuleCompleter(t *testing.T) {
	syms := code.NewSymtab()
	app := syms.EnterModule("app", semver.MustParse("1.0.0"))
	util := syms.EnterModule("util", semver.MustParse("3.0.0"))
	require(app, util, "^2.0.0")

	app.SetCompleter(Completer(syms))
	util.SetCompleter(Completer(syms))

	if err := util.Complete(); err != nil {
		t.Errorf("Expected util to complete, got %v", err)
	}
	err := app.Complete()
	cf, ok := code.AsCompletionFailure(err)
	if !ok {
		t.Fatalf("Expected a completion failure, got %v", err)
	}
	if cf.Code() != "module.requires.unsatisfied" {
		t.Errorf("Expected module.requires.unsatisfied, got %s", cf.Code())
	}
	if !errors.HasCategory(err, errors.CategoryModule) {
		t.Errorf("Expected a MODULE cause, got %v", err)
	}
	if app.State() != code.StateFailed {
		t.Errorf("Expected failed state, got %s", app.State())
	}
}
