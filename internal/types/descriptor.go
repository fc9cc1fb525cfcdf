package types

import (
	stderrors "errors"
	"log/slog"

	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/diagnostic"
	"github.com/orizon-lang/typecore/internal/errors"
)

// ====== Lookup Errors ======

// LookupError reports that Site has no function descriptor.
type LookupError struct {
	err  *errors.Error
	Site *code.ClassSymbol
}

func newLookupError(site *code.ClassSymbol, key string, fragment func() *diagnostic.Fragment) *LookupError {
	return &LookupError{
		err:  errors.New(errors.CategoryLookup, key, fragment),
		Site: site,
	}
}

func (e *LookupError) Error() string                  { return e.err.Error() }
func (e *LookupError) Unwrap() error                  { return e.err.Unwrap() }
func (e *LookupError) Base() *errors.Error            { return e.err }
func (e *LookupError) Code() string                   { return e.err.Code }
func (e *LookupError) Fragment() *diagnostic.Fragment { return e.err.Fragment() }

// AsLookupError finds a lookup error in err's chain.
func AsLookupError(err error) (*LookupError, bool) {
	var le *LookupError
	if stderrors.As(err, &le) {
		return le, true
	}
	return nil, false
}

func kindName(c *code.ClassSymbol) string {
	switch {
	case c.RawFlags()&code.Annotation != 0:
		return "@interface"
	case c.RawFlags()&code.Interface != 0:
		return "interface"
	}
	return "class"
}

// ====== Members Closure ======

// MembersClosure returns a compound scope over the members of site and of
// every supertype, own members first. Scopes are shared with the classes,
// so the mark of the result changes whenever any of them is mutated.
func (t *Types) MembersClosure(site code.Type) *code.CompoundScope {
	switch x := site.(type) {
	case *code.ClassType:
		return t.membersOf(x.Sym, x)
	case *code.IntersectionType:
		return t.membersOf(x.Sym, x)
	case *code.TypeVar:
		if x.Upper == nil {
			return code.NewCompoundScope(nil)
		}
		return t.MembersClosure(x.Upper)
	}
	return code.NewCompoundScope(nil)
}

func (t *Types) membersOf(c *code.ClassSymbol, x code.Type) *code.CompoundScope {
	if !t.seenMembers.Insert(c) {
		return code.NewCompoundScope(nil)
	}
	defer t.seenMembers.Remove(c)
	if cs, ok := t.members[c]; ok {
		return cs
	}
	cs := code.NewCompoundScope(c)
	is := t.Interfaces(x)
	for i := len(is) - 1; i >= 0; i-- {
		cs.PrependSubScope(t.MembersClosure(is[i]))
	}
	cs.PrependSubScope(t.MembersClosure(t.Supertype(x)))
	cs.PrependSubScope(c.Members())
	t.members[c] = cs
	return cs
}

// ====== Function Descriptors ======

type descriptor struct {
	sym    *code.MethodSymbol
	thrown []code.Type
	merged bool
}

type descriptorEntry struct {
	desc *descriptor
	mark int
}

func (t *Types) descriptorOf(origin *code.ClassSymbol) (*descriptor, error) {
	members := t.MembersClosure(origin.Type())
	mark := members.Mark()
	if e, ok := t.descriptors[origin]; ok && e.mark == mark {
		return e.desc, nil
	}
	desc, err := t.findDescriptor(origin, members)
	if err != nil {
		return nil, err
	}
	t.descriptors[origin] = &descriptorEntry{desc: desc, mark: mark}
	t.log.Debug("descriptor found", slog.String("interface", origin.QualifiedName()), slog.String("method", desc.sym.Name()))
	return desc, nil
}

func (t *Types) findDescriptor(origin *code.ClassSymbol, members *code.CompoundScope) (*descriptor, error) {
	if origin.Flags()&code.Interface == 0 || origin.Flags()&(code.Annotation|code.Sealed) != 0 {
		return nil, newLookupError(origin, "not.a.functional.intf", func() *diagnostic.Fragment {
			return diagnostic.NewFragment("not.a.functional.intf", origin.QualifiedName())
		})
	}

	site := origin.Type()
	var abstracts []*code.MethodSymbol
	for _, sym := range members.Symbols(t.descriptorFilter(origin)) {
		m := sym.(*code.MethodSymbol)
		mtype := t.MemberType(site, m)
		if len(abstracts) == 0 {
			abstracts = append(abstracts, m)
			continue
		}
		first := abstracts[0]
		if m.Name() != first.Name() || !t.OverrideEquivalent(mtype, t.MemberType(site, first)) {
			return nil, newLookupError(origin, "not.a.functional.intf.1", func() *diagnostic.Fragment {
				return diagnostic.NewFragment("not.a.functional.intf.1", origin.QualifiedName()).
					WithDetails(diagnostic.NewFragment("incompatible.abstracts", kindName(origin), origin.QualifiedName()))
			})
		}
		covered := false
		for _, a := range abstracts {
			owner, ok := a.Owner().(*code.ClassSymbol)
			if ok && owner.IsSubClass(code.EnclosingClass(m), t) && t.IsSubSignature(t.MemberType(site, a), mtype) {
				covered = true
				break
			}
		}
		if !covered {
			abstracts = append(abstracts, m)
		}
	}

	switch len(abstracts) {
	case 0:
		return nil, newLookupError(origin, "not.a.functional.intf.1", func() *diagnostic.Fragment {
			return diagnostic.NewFragment("not.a.functional.intf.1", origin.QualifiedName()).
				WithDetails(diagnostic.NewFragment("no.abstracts", kindName(origin), origin.QualifiedName()))
		})
	case 1:
		return &descriptor{sym: abstracts[0]}, nil
	}

	if desc := t.mergeDescriptors(origin, abstracts); desc != nil {
		return desc, nil
	}
	frag := func() *diagnostic.Fragment {
		details := make([]*diagnostic.Fragment, 0, len(abstracts))
		for _, a := range abstracts {
			mt := a.Type()
			key := "descriptor"
			if len(mt.ThrownTypes()) > 0 {
				key = "descriptor.throws"
			}
			details = append(details, diagnostic.NewFragment(key, a.Name(),
				code.TypeList(mt.ParameterTypes()), mt.ReturnType(), code.TypeList(mt.ThrownTypes())))
		}
		return diagnostic.NewFragment("incompatible.descs.in.functional.intf", kindName(origin), origin.QualifiedName()).
			WithDetails(details...)
	}
	le := newLookupError(origin, "incompatible.descs.in.functional.intf", frag)
	t.sink.Report(diagnostic.NewDiagnostic().
		Error().
		Category(diagnostic.DiagnosticType).
		Fragment(le.Fragment()).
		Span(origin.Pos).
		Build())
	return nil, le
}

func (t *Types) descriptorFilter(origin *code.ClassSymbol) func(code.Symbol) bool {
	return func(sym code.Symbol) bool {
		m, ok := sym.(*code.MethodSymbol)
		if !ok || m.Flags()&(code.Abstract|code.Default) != code.Abstract {
			return false
		}
		if t.OverridesObjectMethod(origin, m) {
			return false
		}
		cands := t.interfaceCandidates(origin.Type(), m)
		return len(cands) == 0 || cands[0].Flags()&code.Default == 0
	}
}

// mergeDescriptors picks, among override-equivalent abstract methods, the
// one whose signature is a subsignature of all others and whose result is
// most specific. The thrown types of the result are those every method
// admits.
func (t *Types) mergeDescriptors(origin *code.ClassSymbol, methods []*code.MethodSymbol) *descriptor {
	site := origin.Type()
	mtypes := make([]code.Type, len(methods))
	for i, m := range methods {
		mtypes[i] = t.MemberType(site, m)
	}

	var mostSpecific []int
outer:
	for i := range methods {
		for j := range methods {
			if !t.IsSubSignature(mtypes[i], mtypes[j]) {
				continue outer
			}
		}
		mostSpecific = append([]int{i}, mostSpecific...)
	}
	if len(mostSpecific) == 0 {
		return nil
	}

	best := -1
	for phase := 0; phase < 2 && best < 0; phase++ {
	candidates:
		for _, i := range mostSpecific {
			for j := range methods {
				var ok bool
				if phase == 1 {
					ok = t.ReturnTypeSubstitutable(mtypes[i], mtypes[j])
				} else {
					ok = t.IsSubtype(mtypes[i].ReturnType(), mtypes[j].ReturnType())
				}
				if !ok {
					continue candidates
				}
			}
			best = i
		}
	}
	if best < 0 {
		return nil
	}

	erase := mtypes[best].Tag() != code.TagForAll
	var thrown []code.Type
	for j := range methods {
		tj := mtypes[j].ThrownTypes()
		if erase {
			tj = code.MapTypes(tj, t.Erasure)
		} else if fa1, ok := mtypes[best].(*code.ForAll); ok {
			if fa2, ok := mtypes[j].(*code.ForAll); ok {
				tj = t.substList(tj, fa2.TVars, fa1.TVars)
			}
		}
		if j == 0 {
			thrown = tj
		} else {
			thrown = t.intersectThrown(tj, thrown)
		}
	}
	return &descriptor{sym: methods[best], thrown: thrown, merged: true}
}

// intersectThrown keeps the exceptions of either list covered by the other.
func (t *Types) intersectThrown(a, b []code.Type) []code.Type {
	var out []code.Type
	for _, x := range a {
		if t.subset(x, b) {
			out = t.incl(x, out)
		}
	}
	for _, x := range b {
		if t.subset(x, a) {
			out = t.incl(x, out)
		}
	}
	return out
}

func (t *Types) subset(x code.Type, ts []code.Type) bool {
	for _, s := range ts {
		if t.IsSubtype(x, s) {
			return true
		}
	}
	return false
}

func (t *Types) incl(x code.Type, ts []code.Type) []code.Type {
	if t.subset(x, ts) {
		return ts
	}
	out := []code.Type{x}
	for _, s := range ts {
		if !t.IsSubtype(s, x) {
			out = append(out, s)
		}
	}
	return out
}

// FindDescriptorSymbol returns the single abstract method of functional
// interface c.
func (t *Types) FindDescriptorSymbol(c *code.ClassSymbol) (*code.MethodSymbol, error) {
	desc, err := t.descriptorOf(c)
	if err != nil {
		return nil, err
	}
	return desc.sym, nil
}

// FindDescriptorType returns the type of the descriptor of site as a
// member of site. Wildcard arguments are replaced by their bounds first.
func (t *Types) FindDescriptorType(site code.Type) (code.Type, error) {
	c := classSymOf(site)
	if c == nil {
		return nil, newLookupError(t.syms.ErrSymbol, "not.a.functional.intf", func() *diagnostic.Fragment {
			return diagnostic.NewFragment("not.a.functional.intf", site.String())
		})
	}
	desc, err := t.descriptorOf(c)
	if err != nil {
		return nil, err
	}
	mt := t.MemberType(t.removeWildcards(site), desc.sym)
	if desc.merged {
		return withThrown(mt, desc.thrown), nil
	}
	return mt, nil
}

// IsFunctionalInterface reports whether site has a function descriptor.
func (t *Types) IsFunctionalInterface(site code.Type) bool {
	c := classSymOf(site)
	if c == nil {
		return false
	}
	_, err := t.descriptorOf(c)
	return err == nil
}

// removeWildcards returns the non-wildcard parameterization of site.
func (t *Types) removeWildcards(site code.Type) code.Type {
	c, ok := site.(*code.ClassType)
	if !ok || !code.IsParameterized(c) {
		return site
	}
	formals := c.Sym.TypeParameters()
	args := make([]code.Type, len(c.Params))
	dirty := false
	for i, a := range c.Params {
		w, ok := a.(*code.WildcardType)
		if !ok {
			args[i] = a
			continue
		}
		dirty = true
		switch {
		case w.Type != nil:
			args[i] = w.Type
		case i < len(formals) && !code.ContainsAny([]code.Type{t.upperOf(formals[i])}, formals):
			args[i] = t.upperOf(formals[i])
		default:
			args[i] = t.syms.ObjectType
		}
	}
	if !dirty {
		return site
	}
	return code.NewClassType(c.Outer, args, c.Sym)
}

func withThrown(mt code.Type, thrown []code.Type) code.Type {
	switch mt := mt.(type) {
	case *code.MethodType:
		return code.NewMethodType(mt.Params, mt.Result, thrown, mt.Sym)
	case *code.ForAll:
		return code.NewForAll(mt.TVars, withThrown(mt.QType, thrown))
	}
	return mt
}

// ====== Interface Candidates ======

// interfaceCandidates returns the most specific methods of site that are
// override-equivalent to ms. A class method, when present, is the only
// candidate.
func (t *Types) interfaceCandidates(site code.Type, ms *code.MethodSymbol) []*code.MethodSymbol {
	siteSym := classSymOf(site)
	if siteSym == nil {
		return nil
	}
	msType := t.MemberType(site, ms)
	filter := func(sym code.Symbol) bool {
		m, ok := sym.(*code.MethodSymbol)
		return ok && m.Name() == ms.Name() &&
			m.Flags()&code.Synthetic == 0 &&
			m.IsInheritedIn(siteSym, t) &&
			t.OverrideEquivalent(t.MemberType(site, m), msType)
	}
	var candidates []*code.MethodSymbol
	for _, sym := range t.MembersClosure(site).Symbols(filter) {
		m := sym.(*code.MethodSymbol)
		if siteSym.Flags()&code.Interface == 0 && m.Owner().Flags()&code.Interface == 0 {
			return []*code.MethodSymbol{m}
		}
		if !containsMethod(candidates, m) {
			candidates = append([]*code.MethodSymbol{m}, candidates...)
		}
	}
	return t.prune(candidates)
}

func containsMethod(ms []*code.MethodSymbol, m *code.MethodSymbol) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}

// prune drops every method whose owner is a supertype of another
// candidate's owner.
func (t *Types) prune(methods []*code.MethodSymbol) []*code.MethodSymbol {
	var out []*code.MethodSymbol
	for _, m1 := range methods {
		minimal := true
		for _, m2 := range methods {
			if m1 == m2 || m1.Owner() == m2.Owner() {
				continue
			}
			if t.AsSuper(m2.Owner().Type(), m1.Owner()) != nil {
				minimal = false
				break
			}
		}
		if minimal {
			out = append(out, m1)
		}
	}
	return out
}

// ====== Implementations ======

type implEntry struct {
	impl        *code.MethodSymbol
	checkResult bool
	mark        int
}

// OverridesObjectMethod reports whether m overrides a public method of
// Object as seen from origin.
func (t *Types) OverridesObjectMethod(origin *code.ClassSymbol, m *code.MethodSymbol) bool {
	for _, sym := range t.syms.ObjectType.Sym.Members().LookupAll(m.Name(), nil) {
		if m.Overrides(sym, origin, t, true, true) {
			return true
		}
	}
	return false
}

// Implementation returns the method implementing ms in origin: the first
// concrete override found walking up the superclass chain, or else the
// first abstract one. Results are cached per origin until the members of
// its hierarchy change.
func (t *Types) Implementation(ms *code.MethodSymbol, origin *code.ClassSymbol, checkResult bool) *code.MethodSymbol {
	cache := t.impls[ms]
	if cache == nil {
		cache = make(map[*code.ClassSymbol]*implEntry)
		t.impls[ms] = cache
	}
	mark := t.MembersClosure(origin.Type()).Mark()
	if e, ok := cache[origin]; ok && e.mark == mark && e.checkResult == checkResult {
		return e.impl
	}
	impl := t.findImplementation(ms, origin, checkResult)
	cache[origin] = &implEntry{impl: impl, checkResult: checkResult, mark: mark}
	return impl
}

func (t *Types) findImplementation(ms *code.MethodSymbol, origin *code.ClassSymbol, checkResult bool) *code.MethodSymbol {
	notSynthetic := func(sym code.Symbol) bool {
		return sym.Kind() == code.KindMethod && sym.Flags()&code.Synthetic == 0
	}
	for x := origin.Type(); x.Tag() == code.TagClass || x.Tag() == code.TagTypeVar; x = t.Supertype(x) {
		x = t.SkipTypeVars(x, false)
		c := classSymOf(x)
		if c == nil {
			break
		}
		var best *code.MethodSymbol
		for _, sym := range c.Members().LookupAll(ms.Name(), notSynthetic) {
			m := sym.(*code.MethodSymbol)
			if m.Overrides(ms, origin, t, checkResult, true) {
				best = m
				if m.Flags()&code.Abstract == 0 {
					break
				}
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}
