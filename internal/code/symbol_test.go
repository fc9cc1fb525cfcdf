package code

import (
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
)

func TestCompletionRunsOnce(t *testing.T) {
	syms := NewSymtab()
	pkg := syms.EnterPackage("app")
	box := syms.EnterClass(pkg, "Box", 0)

	calls := 0
	box.SetCompleter(CompleterFunc(func(sym Symbol) error {
		calls++
		if sym.State() != StateCompleting {
			t.Errorf("Expected completing state inside completer, got %s", sym.State())
		}
		if err := sym.Complete(); err != nil {
			t.Errorf("Expected re-entrant completion to be a no-op, got %v", err)
		}
		sym.SetFlags(Public | Final)
		return nil
	}))

	if box.IsCompleted() {
		t.Fatalf("Expected stub before completion")
	}
	if box.State() != StateStub {
		t.Errorf("Expected stub state, got %s", box.State())
	}
	if f := box.Flags(); f != Public|Final {
		t.Errorf("Expected public final, got %s", f)
	}
	for i := 0; i < 3; i++ {
		if err := box.Complete(); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("Expected completer to run once, ran %d times", calls)
	}
	if box.State() != StateComplete {
		t.Errorf("Expected complete state, got %s", box.State())
	}
}

func TestAbsentClassRecovery(t *testing.T) {
	syms := NewSymtab()
	pkg := syms.EnterPackage("app")
	missing := syms.EnterClass(pkg, "Missing", 0)
	missing.SetSuperclass(syms.ObjectType)
	missing.Members().Enter(NewVarSymbol(Public, "f", syms.IntType, missing))

	missing.SetCompleter(CompleterFunc(func(sym Symbol) error {
		return NewCompletionFailure(sym, "class.not.found", nil, nil)
	}))

	err := missing.Complete()
	cf, ok := AsCompletionFailure(err)
	if !ok {
		t.Fatalf("Expected a completion failure, got %v", err)
	}
	if cf.Sym != Symbol(missing) {
		t.Errorf("Expected failure for app.Missing, got %s", cf.Sym)
	}
	if cf.Code() != "class.not.found" {
		t.Errorf("Expected class.not.found, got %s", cf.Code())
	}
	if err := missing.Complete(); err != nil {
		t.Errorf("Expected failure to propagate once, got %v", err)
	}

	if f := missing.Flags(); !f.Has(Public | Abstract | Static) {
		t.Errorf("Expected public static abstract, got %s", f)
	}
	if missing.Type().Tag() != TagError {
		t.Errorf("Expected error type, got %s", missing.Type().Tag())
	}
	if !IsErroneous(missing.RawClassType()) {
		t.Errorf("Expected class type of failed class to be erroneous")
	}
	if missing.Members().Len() != 0 {
		t.Errorf("Expected members to be cleared")
	}
	if missing.Superclass() != NoneType {
		t.Errorf("Expected no superclass, got %s", missing.Superclass())
	}
	if missing.Failure() != cf {
		t.Errorf("Expected recorded failure")
	}
	if missing.State() != StateFailed {
		t.Errorf("Expected failed state, got %s", missing.State())
	}
}

func TestFailureRoutedToHandler(t *testing.T) {
	syms := NewSymtab()
	pkg := syms.EnterPackage("app")
	c := syms.EnterClass(pkg, "Gone", 0)
	c.SetCompleter(CompleterFunc(func(sym Symbol) error {
		return NewCompletionFailure(sym, "class.not.found", nil, nil).WithHandler(syms)
	}))

	_ = c.Flags()
	_ = c.Members()
	_ = c.Superclass()

	if n := len(syms.Failures()); n != 1 {
		t.Errorf("Expected exactly one recorded failure, got %d", n)
	}
}

func TestForeignErrorIsWrapped(t *testing.T) {
	syms := NewSymtab()
	c := syms.EnterClass(syms.EnterPackage("app"), "Broken", 0)
	cause := errors.New("disk on fire")
	c.SetCompleter(CompleterFunc(func(Symbol) error { return cause }))

	err := c.Complete()
	cf, ok := AsCompletionFailure(err)
	if !ok {
		t.Fatalf("Expected a completion failure, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected cause in chain")
	}
	if cf.Code() != "cant.complete" {
		t.Errorf("Expected cant.complete, got %s", cf.Code())
	}
}

func TestDeferredFailureHandler(t *testing.T) {
	var got []*CompletionFailure
	sink := FailureHandlerFunc(func(cf *CompletionFailure) { got = append(got, cf) })
	d := NewDeferredFailureHandler(sink)

	syms := NewSymtab()
	a := syms.EnterClass(syms.EnterPackage("app"), "A", 0)
	cf := NewCompletionFailure(a, "class.not.found", nil, nil)

	d.Defer()
	d.HandleCompletionFailure(cf)
	if len(got) != 0 || d.Pending() != 1 {
		t.Fatalf("Expected failure to be queued")
	}
	d.Flush()
	if len(got) != 1 || d.Pending() != 0 {
		t.Errorf("Expected queued failure to be replayed, got %d", len(got))
	}

	d.Defer()
	d.HandleCompletionFailure(cf)
	d.Discard()
	if len(got) != 1 {
		t.Errorf("Expected discarded failure to be dropped")
	}
}

func TestResetForNewRound(t *testing.T) {
	syms := NewSymtab()
	pkg := syms.EnterPackage("app")
	box := syms.EnterClass(pkg, "Box", Public)
	box.RawClassType().Params = []Type{NewTypeParameter("T", box, syms.ObjectType)}
	box.SetSuperclass(syms.ObjectType)
	box.RawMembers().Enter(NewVarSymbol(Public, "value", syms.ObjectType, box))
	declared := box.RawClassType()

	rounds := 0
	syms.NewRound(func(c *ClassSymbol) Completer {
		return CompleterFunc(func(sym Symbol) error {
			rounds++
			sym.SetFlags(Public | Abstract)
			return nil
		})
	})

	if box.IsCompleted() {
		t.Fatalf("Expected stub after new round")
	}
	if box.RawMembers().Len() != 0 {
		t.Errorf("Expected members to be cleared")
	}
	if len(box.RawClassType().Params) != 0 {
		t.Errorf("Expected type parameters to be cleared")
	}
	if box.RawClassType() != declared {
		t.Errorf("Expected declared type identity to survive the reset")
	}
	if f := box.Flags(); f != Public|Abstract {
		t.Errorf("Expected re-completed flags, got %s", f)
	}
	if rounds != 1 {
		t.Errorf("Expected one completion, got %d", rounds)
	}
	if syms.Lang.RawMembers().Lookup("Object") != Symbol(syms.ObjectType.Sym) || !syms.ObjectType.Sym.IsCompleted() {
		t.Errorf("Expected predefined classes to survive the round")
	}
}

func TestRebind(t *testing.T) {
	syms := NewSymtab()
	app := syms.EnterPackage("app")
	util := syms.EnterPackage("app.util")
	c := syms.EnterClass(app, "Helper", Public)
	outer := syms.EnterClass(util, "Outer", Public)

	syms.RebindClass(c, outer, "Inner")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"qualified", c.QualifiedName(), "app.util.Outer.Inner"},
		{"flat", c.FlatName(), "app.util.Outer$Inner"},
		{"owner", c.Owner().QualifiedName(), "app.util.Outer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.got)
			}
		})
	}

	if app.RawMembers().Lookup("Helper") != nil {
		t.Errorf("Expected class to leave its old package")
	}
	if outer.RawMembers().Lookup("Inner") != Symbol(c) {
		t.Errorf("Expected class to be entered into its new owner")
	}
	if syms.LookupClass("app.util.Outer$Inner") != c || syms.LookupClass("app.Helper") != nil {
		t.Errorf("Expected registry to follow the rebind")
	}
}

func TestOwnerChains(t *testing.T) {
	syms := NewSymtab()
	pkg := syms.EnterPackage("app.model")
	outer := syms.EnterClass(pkg, "Outer", Public)
	inner := syms.EnterClass(outer, "Inner", Public|Static)
	m := NewMethodSymbol(Public, "run", NewMethodType(nil, syms.VoidType, nil, syms.MethodClass), inner)

	if PackageOf(m) != pkg {
		t.Errorf("Expected package app.model, got %v", PackageOf(m))
	}
	if EnclosingClass(m) != inner {
		t.Errorf("Expected enclosing class Inner")
	}
	if OutermostClass(m) != outer {
		t.Errorf("Expected outermost class Outer")
	}
	if pkg.Owner().QualifiedName() != "app" {
		t.Errorf("Expected parent package app, got %s", pkg.Owner().QualifiedName())
	}
	if got := Describe(m); got != "method run()" {
		t.Errorf("Expected method run(), got %s", got)
	}
}

func TestModuleRequires(t *testing.T) {
	syms := NewSymtab()
	base := syms.EnterModule("base", semver.MustParse("1.4.0"))
	app := syms.EnterModule("app", semver.MustParse("0.1.0"))

	ok, _ := semver.NewConstraint("^1.2")
	bad, _ := semver.NewConstraint(">=2.0.0")
	app.Requires = []ModuleRequire{
		{Module: base, Constraint: ok},
		{Module: base, Constraint: bad, Transitive: true},
	}

	unsat := app.UnsatisfiedRequires()
	if len(unsat) != 1 || unsat[0].Constraint != bad {
		t.Errorf("Expected only the >=2.0.0 require to fail, got %v", unsat)
	}
	if syms.EnterModule("base", nil).Version.String() != "1.4.0" {
		t.Errorf("Expected re-entering without version to keep 1.4.0")
	}
}

func TestFlags(t *testing.T) {
	tests := []struct {
		input    []string
		expected Flags
		err      bool
	}{
		{[]string{"public", "final"}, Public | Final, false},
		{[]string{"sealed", "interface", "abstract"}, Sealed | Interface | Abstract, false},
		{[]string{"non-sealed"}, NonSealed, false},
		{[]string{"publik"}, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseFlags(tt.input)
		if (err != nil) != tt.err {
			t.Errorf("ParseFlags(%v): unexpected error state %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
	if s := (Public | Static | Abstract).String(); s != "public static abstract" {
		t.Errorf("Expected declaration order, got %q", s)
	}
}
