package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/diagnostic"
	"github.com/orizon-lang/typecore/internal/errors"
	"github.com/orizon-lang/typecore/internal/modules"
	"github.com/orizon-lang/typecore/internal/types"
)

// Session identifies one loader over its lifetime.
type Session struct {
	ID      uuid.UUID
	Round   int
	Started time.Time
}

// Loader enters the declarations of its sources into a symbol table and
// completes them on demand. It is the failure handler of every completer
// it installs: failures are logged and recorded in the symbol table.
//
// A Loader is bound to one symbol table and, like it, is not safe for
// concurrent use.
type Loader struct {
	syms    *code.Symtab
	types   *types.Types
	log     *slog.Logger
	sources []Source
	session Session

	classes  map[*code.ClassSymbol]*classEntry
	missing  map[*code.ClassSymbol]bool
	modules  map[*code.ModuleSymbol]bool
	complete code.Completer
	absent   code.Completer

	failures    *code.DeferredFailureHandler
	speculating bool
}

type classEntry struct {
	decl   *ClassDecl
	pkg    *code.PackageSymbol
	nested []*code.ClassSymbol
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. Every record carries the session id.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.log = l
		}
	}
}

// WithSource adds a manifest source.
func WithSource(s Source) Option {
	return func(ld *Loader) { ld.sources = append(ld.sources, s) }
}

// New creates a loader over syms; ty is the algebra whose caches are
// dropped with every new round.
func New(syms *code.Symtab, ty *types.Types, opts ...Option) *Loader {
	l := &Loader{
		syms:    syms,
		types:   ty,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		session: Session{ID: uuid.New(), Started: time.Now()},
		classes: make(map[*code.ClassSymbol]*classEntry),
		missing: make(map[*code.ClassSymbol]bool),
		modules: make(map[*code.ModuleSymbol]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With("session", l.session.ID.String())
	l.complete = code.CompleterFunc(func(sym code.Symbol) error {
		return l.completeClass(sym.(*code.ClassSymbol))
	})
	l.absent = code.CompleterFunc(func(sym code.Symbol) error {
		return code.NewCompletionFailure(sym, "class.not.found", nil, nil).WithHandler(l)
	})
	l.failures = code.NewDeferredFailureHandler(code.FailureHandlerFunc(l.record))
	return l
}

// AddSource adds a manifest source. It is read by the next Load.
func (l *Loader) AddSource(s Source) {
	l.sources = append(l.sources, s)
}

func (l *Loader) Symtab() *code.Symtab { return l.syms }
func (l *Loader) Types() *types.Types  { return l.types }
func (l *Loader) Session() Session     { return l.session }
func (l *Loader) Logger() *slog.Logger { return l.log }

// HandleCompletionFailure logs cf and records it in the symbol table.
// While Speculate runs, failures are queued instead.
func (l *Loader) HandleCompletionFailure(cf *code.CompletionFailure) {
	l.failures.HandleCompletionFailure(cf)
}

func (l *Loader) record(cf *code.CompletionFailure) {
	l.log.Warn("completion failed", "symbol", cf.Sym.QualifiedName(), "code", cf.Code())
	l.syms.HandleCompletionFailure(cf)
}

// Speculate runs fn with completion failures queued. When fn succeeds the
// failures are recorded as usual. When it fails they are dropped and the
// classes that failed become stubs again, so a later request raises the
// failure anew. Nested calls join the outermost one.
func (l *Loader) Speculate(fn func() error) error {
	if l.speculating {
		return fn()
	}
	l.speculating = true
	l.failures.Defer()
	err := fn()
	l.speculating = false
	if err == nil {
		l.failures.Flush()
		return nil
	}
	dropped := l.failures.Discard()
	for _, cf := range dropped {
		if c, ok := cf.Sym.(*code.ClassSymbol); ok && c.State() == code.StateFailed {
			c.Reset(l.completerFor(c))
		}
	}
	if len(dropped) > 0 && l.types != nil {
		l.types.NewRound()
	}
	l.log.Debug("speculation rejected", "failures", len(dropped), "error", err)
	return err
}

// ====== Loading ======

// Load reads every manifest of every source and enters its modules,
// packages and class stubs. Nothing is completed.
func (l *Loader) Load(ctx context.Context) error {
	var manifests []*Manifest
	for _, src := range l.sources {
		names, err := src.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", src.Name(), err)
		}
		for _, name := range names {
			l.log.Debug("fetching manifest", "source", src.Name(), "name", name)
			m, err := src.Fetch(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", name, err)
			}
			manifests = append(manifests, m)
		}
	}

	declared := make(map[*code.ClassSymbol]bool)
	reset := make(map[*code.ModuleSymbol]bool)
	for _, m := range manifests {
		if err := l.enterManifest(m, declared, reset); err != nil {
			return err
		}
	}
	l.log.Info("manifests loaded", "manifests", len(manifests), "classes", len(declared))
	return nil
}

func (l *Loader) enterManifest(m *Manifest, declared map[*code.ClassSymbol]bool, reset map[*code.ModuleSymbol]bool) error {
	mod := l.syms.UnnamedModule
	if m.Module != "" {
		var version *semver.Version
		if m.Version != "" {
			v, err := semver.NewVersion(m.Version)
			if err != nil {
				return errors.Wrap(errors.CategoryLoader, "bad.version", err, func() *diagnostic.Fragment {
					return diagnostic.NewFragment("bad.version", m.Module, m.Version)
				})
			}
			version = v
		}
		mod = l.syms.EnterModule(m.Module, version)
	}
	if !reset[mod] {
		reset[mod] = true
		mod.Requires, mod.Exports, mod.Packages = nil, nil, nil
	}

	for _, r := range m.Requires {
		req := code.ModuleRequire{Module: l.syms.EnterModule(r.Module, nil), Transitive: r.Transitive}
		if r.Version != "" {
			c, err := semver.NewConstraint(r.Version)
			if err != nil {
				return errors.Wrap(errors.CategoryLoader, "bad.constraint", err, func() *diagnostic.Fragment {
					return diagnostic.NewFragment("bad.constraint", m.Module, r.Module, r.Version)
				})
			}
			req.Constraint = c
		}
		mod.Requires = append(mod.Requires, req)
	}
	for _, name := range m.Exports {
		mod.Exports = append(mod.Exports, l.syms.EnterPackage(name))
	}
	if mod != l.syms.UnnamedModule {
		mod.SetCompleter(modules.Completer(l))
		l.modules[mod] = true
	}

	for i := range m.Packages {
		pd := &m.Packages[i]
		pkg := l.syms.EnterPackage(pd.Name)
		pkg.Module = mod
		if !containsPackage(mod.Packages, pkg) {
			mod.Packages = append(mod.Packages, pkg)
		}
		for j := range pd.Classes {
			if _, err := l.enterClass(pkg, pkg, &pd.Classes[j], m.Source, declared); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Loader) enterClass(owner code.Symbol, pkg *code.PackageSymbol, d *ClassDecl, source string, declared map[*code.ClassSymbol]bool) (*code.ClassSymbol, error) {
	c := l.syms.EnterClass(owner, d.Name, 0)
	if declared[c] || l.syms.IsPredefined(c) {
		return nil, errors.Newf(errors.CategoryLoader, "duplicate.class", c.QualifiedName(), source)
	}
	declared[c] = true
	delete(l.missing, c)

	c.Reset(l.complete)
	c.Pos = d.Span(source)
	c.SourceFile = source

	e := &classEntry{decl: d, pkg: pkg}
	l.classes[c] = e
	for i := range d.Classes {
		n, err := l.enterClass(c, pkg, &d.Classes[i], source, declared)
		if err != nil {
			return nil, err
		}
		e.nested = append(e.nested, n)
	}
	return c, nil
}

func containsPackage(pkgs []*code.PackageSymbol, p *code.PackageSymbol) bool {
	for _, x := range pkgs {
		if x == p {
			return true
		}
	}
	return false
}

// ====== Lookup ======

// Classes returns the declared classes ordered by flat name.
func (l *Loader) Classes() []*code.ClassSymbol {
	return sortedClasses(l.classes)
}

// Missing returns the stubs entered for names no manifest declares.
func (l *Loader) Missing() []*code.ClassSymbol {
	return sortedClasses(l.missing)
}

// Unresolved returns the names of required modules no manifest declared.
func (l *Loader) Unresolved() []string {
	seen := make(map[string]bool)
	var out []string
	for m := range l.modules {
		for _, r := range m.Requires {
			name := r.Module.Name()
			if l.modules[r.Module] || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func sortedClasses[V any](m map[*code.ClassSymbol]V) []*code.ClassSymbol {
	out := make([]*code.ClassSymbol, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FlatName() < out[j].FlatName() })
	return out
}

// Lookup finds a class by qualified or flat name, falling back to the
// predefined package for simple names. It returns nil when unknown.
func (l *Loader) Lookup(name string) *code.ClassSymbol {
	if c := l.syms.LookupClass(name); c != nil {
		return c
	}
	if !strings.Contains(name, ".") {
		return l.syms.LookupClass(code.LangPackage + "." + name)
	}
	return nil
}

// Resolve is Lookup, except that unknown names yield a stub whose
// completion fails with class.not.found.
func (l *Loader) Resolve(name string) *code.ClassSymbol {
	if c := l.Lookup(name); c != nil {
		return c
	}
	return l.missingClass(nil, l.syms.RootPackage, name)
}

// ParseType parses expr with the top-level names of the symbol table in
// scope.
func (l *Loader) ParseType(expr string) (code.Type, error) {
	return ParseType(expr, &classScope{l: l, pkg: l.syms.RootPackage})
}

func (l *Loader) missingClass(outer *code.ClassSymbol, pkg *code.PackageSymbol, name string) *code.ClassSymbol {
	var owner code.Symbol = outer
	if outer == nil {
		owner = pkg
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			owner = l.syms.EnterPackage(name[:i])
			name = name[i+1:]
		}
	}
	c := l.syms.EnterClass(owner, name, 0)
	if _, ok := l.classes[c]; ok || l.syms.IsPredefined(c) || l.missing[c] {
		return c
	}
	l.log.Debug("entering missing class", "class", c.FlatName())
	l.missing[c] = true
	c.Reset(l.absent)
	return c
}

// ====== Completion ======

func (l *Loader) completeClass(c *code.ClassSymbol) error {
	e, ok := l.classes[c]
	if !ok {
		return code.NewCompletionFailure(c, "class.not.found", nil, nil).WithHandler(l)
	}
	d := e.decl
	l.log.Debug("completing class", "class", c.FlatName(), "round", l.session.Round)

	fail := func(err error) error {
		return code.NewCompletionFailure(c, "bad.class.decl", err, func() *diagnostic.Fragment {
			return diagnostic.NewFragment("bad.class.decl", c.QualifiedName(), err.Error())
		}).WithHandler(l)
	}

	flags, err := code.ParseFlags(d.Flags)
	if err != nil {
		return fail(err)
	}
	if flags&code.Interface != 0 {
		flags |= code.Abstract
	}
	outer, nested := c.Owner().(*code.ClassSymbol)
	if nested && outer.Flags()&code.Interface != 0 {
		flags |= code.Static | code.Public
	}
	c.SetFlags(flags)
	for _, n := range e.nested {
		c.RawMembers().EnterIfAbsent(n)
	}

	scope := &classScope{l: l, class: c, pkg: e.pkg, tvars: make(map[string]code.Type)}
	tvars, err := l.typeParams(d.TypeParams, c, scope)
	if err != nil {
		return fail(err)
	}
	declared := c.RawClassType()
	declared.Params = tvars
	if nested && flags&(code.Static|code.Interface) == 0 {
		declared.Outer = outer.RawClassType()
	}

	if err := l.completeSupertypes(c, d, scope); err != nil {
		return fail(err)
	}
	if l.inCycle(c) {
		return code.NewCompletionFailure(c, "cyclic.inheritance", nil, nil).WithHandler(l)
	}

	for _, fd := range d.Fields {
		ff, err := code.ParseFlags(fd.Flags)
		if err != nil {
			return fail(err)
		}
		if flags&code.Interface != 0 {
			ff |= code.Public | code.Static | code.Final
		}
		t, err := ParseType(fd.Type, scope)
		if err != nil {
			return fail(err)
		}
		v := code.NewVarSymbol(ff, fd.Name, t, c)
		v.Const = fd.Value
		c.RawMembers().Enter(v)
	}
	for i := range d.Methods {
		m, err := l.method(c, &d.Methods[i], scope)
		if err != nil {
			return fail(err)
		}
		c.RawMembers().Enter(m)
	}
	return nil
}

func (l *Loader) typeParams(decls []TypeParamDecl, owner code.Symbol, scope *classScope) ([]code.Type, error) {
	if len(decls) == 0 {
		return nil, nil
	}
	tvars := make([]code.Type, len(decls))
	for i, d := range decls {
		tvars[i] = code.NewTypeParameter(d.Name, owner, l.syms.ObjectType)
		scope.tvars[d.Name] = tvars[i]
	}
	for i, d := range decls {
		if len(d.Bounds) == 0 {
			continue
		}
		bounds := make([]code.Type, len(d.Bounds))
		for j, b := range d.Bounds {
			t, err := ParseType(b, scope)
			if err != nil {
				return nil, err
			}
			bounds[j] = t
		}
		tv := tvars[i].(*code.TypeVar)
		if len(bounds) == 1 {
			tv.Upper = bounds[0]
		} else {
			tv.Upper = l.types.MakeIntersectionType(bounds)
		}
	}
	return tvars, nil
}

func (l *Loader) completeSupertypes(c *code.ClassSymbol, d *ClassDecl, scope *classScope) error {
	var ifaces []code.Type
	parse := func(expr string) (code.Type, error) {
		t, err := ParseType(expr, scope)
		if err != nil {
			return nil, err
		}
		if t.Tag() != code.TagClass {
			return nil, errors.Newf(errors.CategoryLoader, "bad.supertype", c.QualifiedName(), expr)
		}
		return t, nil
	}

	if c.RawFlags()&code.Interface != 0 {
		c.SetSuperclass(code.NoneType)
		if d.Extends != "" {
			t, err := parse(d.Extends)
			if err != nil {
				return err
			}
			ifaces = append(ifaces, t)
		}
	} else {
		var super code.Type = l.syms.ObjectType
		if d.Extends != "" {
			t, err := parse(d.Extends)
			if err != nil {
				return err
			}
			super = t
		}
		c.SetSuperclass(super)
	}

	for _, expr := range d.Implements {
		t, err := parse(expr)
		if err != nil {
			return err
		}
		ifaces = append(ifaces, t)
	}
	c.SetInterfaces(ifaces)

	permitted := make([]*code.ClassSymbol, 0, len(d.Permits))
	for _, expr := range d.Permits {
		t, err := parse(expr)
		if err != nil {
			return err
		}
		permitted = append(permitted, t.(*code.ClassType).Sym)
	}
	c.SetPermitted(permitted)
	return nil
}

// inCycle reports whether c is its own supertype. Supertypes are completed
// on the way.
func (l *Loader) inCycle(c *code.ClassSymbol) bool {
	seen := make(map[*code.ClassSymbol]bool)
	var visit func(x *code.ClassSymbol) bool
	visit = func(x *code.ClassSymbol) bool {
		supers := append([]code.Type{x.Superclass()}, x.Interfaces()...)
		for _, s := range supers {
			ct, ok := s.(*code.ClassType)
			if !ok || ct.Sym == nil {
				continue
			}
			if ct.Sym == c {
				return true
			}
			if seen[ct.Sym] {
				continue
			}
			seen[ct.Sym] = true
			if visit(ct.Sym) {
				return true
			}
		}
		return false
	}
	return visit(c)
}

func (l *Loader) method(c *code.ClassSymbol, d *MethodDecl, cs *classScope) (*code.MethodSymbol, error) {
	flags, err := code.ParseFlags(d.Flags)
	if err != nil {
		return nil, err
	}
	if c.RawFlags()&code.Interface != 0 {
		flags |= code.Public
		if flags&(code.Static|code.Default|code.Private) == 0 {
			flags |= code.Abstract
		}
	}
	m := code.NewMethodSymbol(flags, d.Name, nil, c)

	scope := cs.nest()
	tvars, err := l.typeParams(d.TypeParams, m, scope)
	if err != nil {
		return nil, err
	}

	params := make([]code.Type, len(d.Params))
	for i, p := range d.Params {
		t, err := ParseType(p.Type, scope)
		if err != nil {
			return nil, err
		}
		params[i] = t
		v := code.NewVarSymbol(0, p.Name, t, m)
		v.VarKind = code.VarParameter
		m.Params = append(m.Params, v)
	}

	var result code.Type = l.syms.VoidType
	if d.Returns != "" {
		if result, err = ParseType(d.Returns, scope); err != nil {
			return nil, err
		}
	}

	thrown := make([]code.Type, 0, len(d.Throws))
	for _, expr := range d.Throws {
		t, err := ParseType(expr, scope)
		if err != nil {
			return nil, err
		}
		thrown = append(thrown, t)
	}

	var t code.Type = code.NewMethodType(params, result, thrown, l.syms.MethodClass)
	if len(tvars) > 0 {
		t = code.NewForAll(tvars, t)
	}
	m.SetType(t)
	return m, nil
}

// CompleteAll orders the loaded modules and completes them, every declared
// class and every missing class referenced so far. Failures are routed to
// the loader.
func (l *Loader) CompleteAll() {
	g := modules.FromSymtab(l.syms)
	order, err := g.TopologicalSort()
	if err != nil {
		l.log.Warn("module graph is cyclic", "error", err)
		if e, ok := errors.As(err); ok {
			l.syms.Sink.Report(diagnostic.NewDiagnostic().
				Error().
				Category(diagnostic.DiagnosticModule).
				Fragment(e.Fragment()).
				Build())
		}
		order = nil
		for _, m := range l.syms.Modules() {
			order = append(order, m.Name())
		}
	}
	for _, name := range order {
		if m := l.syms.LookupModule(name); m != nil && l.modules[m] {
			l.completeSymbol(m)
		}
	}
	for _, c := range l.Classes() {
		l.completeSymbol(c)
	}
	for _, c := range l.Missing() {
		l.completeSymbol(c)
	}
}

func (l *Loader) completeSymbol(sym code.Symbol) {
	if err := sym.Complete(); err != nil {
		if cf, ok := code.AsCompletionFailure(err); ok {
			l.HandleCompletionFailure(cf)
			return
		}
		l.log.Error("unexpected completion error", "symbol", sym.QualifiedName(), "error", err)
	}
}

// ====== Rounds ======

// NewRound turns every declared class back into a stub, forgets recorded
// failures and drops the caches of the algebra.
func (l *Loader) NewRound() {
	l.syms.NewRound(l.completerFor)
	for m := range l.modules {
		m.SetCompleter(modules.Completer(l))
	}
	if l.types != nil {
		l.types.NewRound()
	}
	l.session.Round++
	l.log.Info("new round", "round", l.session.Round)
}

func (l *Loader) completerFor(c *code.ClassSymbol) code.Completer {
	if _, ok := l.classes[c]; ok {
		return l.complete
	}
	l.missing[c] = true
	return l.absent
}

// Reload reads every source again and starts a new round. Classes no
// longer declared become missing.
func (l *Loader) Reload(ctx context.Context) error {
	l.classes = make(map[*code.ClassSymbol]*classEntry)
	l.modules = make(map[*code.ModuleSymbol]bool)
	if err := l.Load(ctx); err != nil {
		return err
	}
	l.NewRound()
	return nil
}

// ====== Scope ======

type classScope struct {
	l      *Loader
	class  *code.ClassSymbol
	pkg    *code.PackageSymbol
	tvars  map[string]code.Type
	parent *classScope
}

func (s *classScope) nest() *classScope {
	return &classScope{l: s.l, class: s.class, pkg: s.pkg, tvars: make(map[string]code.Type), parent: s}
}

func (s *classScope) Symtab() *code.Symtab { return s.l.syms }

func (s *classScope) TypeVar(name string) code.Type {
	for x := s; x != nil; x = x.parent {
		if t, ok := x.tvars[name]; ok {
			return t
		}
	}
	if s.class == nil {
		return nil
	}
	for o, ok := s.class.Owner().(*code.ClassSymbol); ok; o, ok = o.Owner().(*code.ClassSymbol) {
		for _, tv := range o.TypeParameters() {
			if tv.TypeSym().Name() == name {
				return tv
			}
		}
	}
	return nil
}

func (s *classScope) LookupClass(name string) *code.ClassSymbol {
	syms := s.l.syms
	if !strings.Contains(name, ".") {
		for o, ok := s.class, s.class != nil; ok; o, ok = o.Owner().(*code.ClassSymbol) {
			if c := syms.LookupClass(o.FlatName() + "$" + name); c != nil {
				return c
			}
		}
	} else if c := syms.LookupClass(name); c != nil {
		return c
	}
	if s.pkg != nil && s.pkg.QualifiedName() != "" {
		if c := syms.LookupClass(s.pkg.QualifiedName() + "." + name); c != nil {
			return c
		}
	}
	return s.l.Lookup(name)
}

func (s *classScope) MissingClass(outer *code.ClassSymbol, name string) *code.ClassSymbol {
	return s.l.missingClass(outer, s.pkg, name)
}
