package types

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/orizon-lang/typecore/internal/code"
)

// ====== Castability ======

// IsCastable reports whether a value of type x may be cast to s, and
// whether the cast is unchecked. Casts between classes of a sealed
// hierarchy are rejected when the classes are provably disjoint.
func (t *Types) IsCastable(x, s code.Type) (bool, Warnings) {
	w := &warner{}
	ok := t.isCastable(x, s, w)
	return ok, w.w
}

func (t *Types) isCastable(x, s code.Type, w *warner) bool {
	if t.absorbs(x) || t.absorbs(s) || code.EqualIgnoreMetadata(x, s) {
		return true
	}
	if code.IsPrimitive(x) != code.IsPrimitive(s) {
		x = t.SkipTypeVars(x, false)
		if t.isConvertible(x, s, w) {
			return true
		}
		if code.IsPrimitive(s) {
			if box := t.syms.BoxedClass(s.Tag()); box != nil {
				return t.IsSubtype(box.ClassType(), x)
			}
		}
		return false
	}
	result := t.castVisit(x, s, w)
	if !result {
		return false
	}
	xc, xok := x.(*code.ClassType)
	sc, sok := s.(*code.ClassType)
	if xok && sok && (xc.Sym.Flags()&code.Sealed != 0 || sc.Sym.Flags()&code.Sealed != 0) {
		return !t.AreDisjoint(xc.Sym, sc.Sym)
	}
	return true
}

func (t *Types) castVisit(x, s code.Type, w *warner) bool {
	switch x := x.(type) {
	case *code.ErrorType, *code.UnknownType, *code.NoType:
		return true
	case *code.PrimitiveType:
		switch {
		case s.Tag() == code.TagError:
			return true
		case x.Tag().IsNumeric():
			return code.IsNumeric(s)
		case x.Tag() == code.TagBoolean:
			return s.Tag() == code.TagBoolean
		}
		return false
	case *code.BottomType:
		return s.Tag() == code.TagError || t.IsSubtype(x, s)
	case *code.WildcardType:
		return t.isCastable(t.WildUpperBound(x), s, w)
	case *code.ClassType, *code.IntersectionType:
		return t.castClass(x, s, w)
	case *code.UnionType:
		return t.isCastable(t.Lub(x.Alternatives...), s, w)
	case *code.ArrayType:
		return t.castArray(x, s, w)
	case *code.TypeVar:
		return t.castTypeVar(x, s, w)
	}
	return false
}

func (t *Types) castClass(x, s code.Type, w *warner) bool {
	switch s.Tag() {
	case code.TagError, code.TagBot:
		return true
	}
	if sv, ok := s.(*code.TypeVar); ok {
		if t.isCastable(x, t.upperOf(sv), nil) {
			w.warn(WarnUnchecked)
			return true
		}
		return false
	}
	if su, ok := s.(*code.UnionType); ok {
		s = t.Lub(su.Alternatives...)
	}
	if xi, ok := x.(*code.IntersectionType); ok {
		return t.castCompound(xi, s, false, w)
	}
	if si, ok := s.(*code.IntersectionType); ok {
		return t.castCompound(si, x, true, w)
	}
	xc := x.(*code.ClassType)
	switch s.Tag() {
	case code.TagClass, code.TagArray:
	default:
		return false
	}

	ex, es := t.Erasure(x), t.Erasure(s)
	upcast := t.IsSubtype(ex, es)
	if upcast || t.IsSubtype(es, ex) {
		if !upcast && s.Tag() == code.TagArray {
			if !t.IsReifiable(s) {
				w.warn(WarnUnchecked)
			}
			return true
		}
		if code.IsRaw(s) {
			return true
		}
		if code.IsRaw(x) {
			if !t.isUnbounded(s) {
				w.warn(WarnUnchecked)
			}
			return true
		}
		sc, ok := s.(*code.ClassType)
		if !ok {
			return true
		}
		if upcast {
			return t.castGeneric(xc, sc, true, w)
		}
		return t.castGeneric(sc, xc, false, w)
	}

	sc, ok := s.(*code.ClassType)
	if !ok {
		return false
	}
	xIface := xc.Sym.Flags()&code.Interface != 0
	sIface := sc.Sym.Flags()&code.Interface != 0
	switch {
	case sIface && xc.Sym.Flags()&code.Final == 0, xIface && sc.Sym.Flags()&code.Final == 0:
		return t.sideCast(xc, sc, w)
	case sIface || xIface:
		return t.sideCastFinal(xc, sc, w)
	}
	return false
}

// castGeneric checks a cast between a class and one of its subclasses. The
// arguments of the subclass viewed as the superclass must not be provably
// distinct from the superclass arguments.
func (t *Types) castGeneric(sub, sup *code.ClassType, upcast bool, w *warner) bool {
	base, ok := t.AsSuper(sub, sup.Sym).(*code.ClassType)
	if !ok {
		return true
	}
	if t.DisjointTypes(base.AllParams(), sup.AllParams()) {
		return false
	}
	target, checked := sup, false
	if upcast {
		checked = t.IsSubtype(sub, sup)
	} else {
		target = sub
		checked = t.IsSameType(base, sup) && t.determinedBy(sub.Sym, sup.Sym)
	}
	if !checked && !t.IsReifiable(target) {
		w.warn(WarnUnchecked)
	}
	return true
}

// determinedBy reports whether every formal of sub shows up in its view as
// sup, so that a downcast from sup fixes all of sub's arguments.
func (t *Types) determinedBy(sub, sup *code.ClassSymbol) bool {
	formals := sub.DeclaredAllParams()
	if len(formals) == 0 {
		return true
	}
	view := t.AsSuper(sub.ClassType(), sup)
	if view == nil {
		return false
	}
	for _, f := range formals {
		if !code.Mentions(view, f) {
			return false
		}
	}
	return true
}

func (t *Types) castCompound(ct *code.IntersectionType, s code.Type, reverse bool, w *warner) bool {
	inner := &warner{}
	for _, c := range t.DirectSupertypes(ct) {
		var ok bool
		if reverse {
			ok = t.isCastable(s, c, inner)
		} else {
			ok = t.isCastable(c, s, inner)
		}
		if !ok {
			return false
		}
	}
	if inner.has(WarnUnchecked) {
		w.warn(WarnUnchecked)
	}
	return true
}

func (t *Types) castArray(x *code.ArrayType, s code.Type, w *warner) bool {
	switch s := s.(type) {
	case *code.ErrorType, *code.BottomType:
		return true
	case *code.TypeVar:
		if t.isCastable(s, x, nil) {
			w.warn(WarnUnchecked)
			return true
		}
		return false
	case *code.ClassType:
		return t.IsSubtype(x, s)
	case *code.IntersectionType:
		return t.castCompound(s, x, true, w)
	case *code.ArrayType:
		if code.IsPrimitive(x.Elem) || code.IsPrimitive(s.Elem) {
			return x.Elem.Tag() == s.Elem.Tag()
		}
		return t.isCastable(x.Elem, s.Elem, w)
	}
	return false
}

func (t *Types) castTypeVar(x *code.TypeVar, s code.Type, w *warner) bool {
	switch s.Tag() {
	case code.TagError, code.TagBot:
		return true
	case code.TagTypeVar:
		if t.IsSubtype(x, s) {
			return true
		}
		if t.isCastable(t.upperOf(x), s, nil) {
			w.warn(WarnUnchecked)
			return true
		}
		return false
	}
	return t.isCastable(t.upperOf(x), s, w)
}

// ====== Side Casts ======

// sideCast checks a cast between a non-final class and an unrelated
// interface: the two must agree on every shared generic supertype.
func (t *Types) sideCast(from, to *code.ClassType, w *warner) bool {
	reverse := false
	target := code.Type(to)
	if to.Sym.Flags()&code.Interface == 0 {
		reverse = true
		from, to = to, from
	}
	commons := t.superClosure(to, t.Erasure(from))
	warn := len(commons) == 0
	for _, c := range commons {
		t1 := t.AsSuper(from, c.TypeSym())
		if t1 == nil {
			continue
		}
		if t.DisjointTypes(t1.TypeArguments(), c.TypeArguments()) {
			return false
		}
		if reverse {
			warn = warn || t.giveWarning(c, t1)
		} else {
			warn = warn || t.giveWarning(t1, c)
		}
	}
	if warn && !t.IsReifiable(target) {
		w.warn(WarnUnchecked)
	}
	return true
}

// sideCastFinal checks a cast between a final class and an interface: the
// class must implement the interface with compatible arguments.
func (t *Types) sideCastFinal(from, to *code.ClassType, w *warner) bool {
	reverse := false
	target := code.Type(to)
	if to.Sym.Flags()&code.Interface == 0 {
		reverse = true
		from, to = to, from
	}
	t1 := t.AsSuper(from, to.Sym)
	if t1 == nil {
		return false
	}
	if t.DisjointTypes(t1.TypeArguments(), to.TypeArguments()) {
		return false
	}
	var warn bool
	if reverse {
		warn = t.giveWarning(to, t1)
	} else {
		warn = t.giveWarning(t1, to)
	}
	if warn && !t.IsReifiable(target) {
		w.warn(WarnUnchecked)
	}
	return true
}

// superClosure collects the superinterfaces of x that s is a subtype of.
func (t *Types) superClosure(x, s code.Type) []code.Type {
	var cl []code.Type
	for _, i := range t.Interfaces(x) {
		if t.IsSubtype(s, t.Erasure(i)) {
			cl = t.Insert(cl, i)
		} else {
			cl = t.Union(cl, t.superClosure(i, s))
		}
	}
	return cl
}

// giveWarning reports whether converting from to the parameterized type to
// cannot be checked.
func (t *Types) giveWarning(from, to code.Type) bool {
	bounds := []code.Type{to}
	if code.IsCompound(to) {
		bounds = t.DirectSupertypes(to)
	}
	for _, b := range bounds {
		if code.IsParameterized(b) && !(t.isUnbounded(b) || t.IsSubtype(from, b)) {
			return true
		}
	}
	return false
}

// ====== Disjointness ======

type symPair struct {
	a, b *code.ClassSymbol
}

// AreDisjoint reports whether no class can be a subclass of both a and b.
// A final class is disjoint from every interface it does not implement and
// a sealed class is disjoint from x when every permitted subclass is.
func (t *Types) AreDisjoint(a, b *code.ClassSymbol) bool {
	return t.areDisjoint(a, b, set.New[symPair](0))
}

func (t *Types) areDisjoint(a, b *code.ClassSymbol, seen *set.Set[symPair]) bool {
	if !seen.Insert(symPair{a, b}) {
		return false
	}
	ea, eb := t.Erasure(a.ClassType()), t.Erasure(b.ClassType())
	if t.IsSubtype(ea, eb) {
		return false
	}
	aIface := a.Flags()&code.Interface != 0
	bIface := b.Flags()&code.Interface != 0
	if aIface == bIface && t.IsSubtype(eb, ea) {
		return false
	}
	if aIface && !bIface {
		return t.areDisjoint(b, a, seen)
	}
	if !aIface && a.Flags()&code.Final != 0 {
		return true
	}
	sealed, other := a, b
	if a.Flags()&code.Sealed == 0 {
		sealed, other = b, a
	}
	if sealed.Flags()&code.Sealed == 0 {
		return false
	}
	for _, p := range sealed.Permitted() {
		if !t.areDisjoint(p, other, seen) {
			return false
		}
	}
	return true
}

// DisjointTypes reports whether some pair of type arguments is provably
// distinct.
func (t *Types) DisjointTypes(ts, ss []code.Type) bool {
	for i := 0; i < len(ts) && i < len(ss); i++ {
		if t.disjointType(ts[i], ss[i]) {
			return true
		}
	}
	return false
}

func (t *Types) disjointType(x, s code.Type) bool {
	if w, ok := x.(*code.WildcardType); ok {
		return t.disjointWildcard(w, s)
	}
	if w, ok := s.(*code.WildcardType); ok {
		return t.disjointWildcard(w, x)
	}
	return t.notSoftSubtypeRecursive(x, s) || t.notSoftSubtypeRecursive(s, x)
}

func (t *Types) disjointWildcard(w *code.WildcardType, s code.Type) bool {
	if w.Kind == code.BoundUnbound {
		return false
	}
	sw, ok := s.(*code.WildcardType)
	if !ok {
		if w.IsExtendsBound() {
			return t.notSoftSubtypeRecursive(s, w.Type)
		}
		return t.notSoftSubtypeRecursive(w.Type, s)
	}
	if sw.Kind == code.BoundUnbound {
		return false
	}
	if w.Kind == code.BoundExtends {
		if sw.Kind == code.BoundExtends {
			return !t.isCastableRecursive(w.Type, t.WildUpperBound(sw))
		}
		return t.notSoftSubtypeRecursive(t.WildLowerBound(sw), w.Type)
	}
	if sw.Kind == code.BoundExtends {
		return t.notSoftSubtypeRecursive(w.Type, t.WildUpperBound(sw))
	}
	return false
}

func (t *Types) isCastableRecursive(a, b code.Type) bool {
	p := pair(a, b)
	if !t.castCache.Insert(p) {
		return true
	}
	defer t.castCache.Remove(p)
	return t.isCastable(a, b, nil)
}

func (t *Types) notSoftSubtypeRecursive(a, b code.Type) bool {
	p := pair(a, b)
	if !t.castCache.Insert(p) {
		return false
	}
	defer t.castCache.Remove(p)
	return t.notSoftSubtype(a, b)
}

// notSoftSubtype reports whether a cannot be a subtype of b even after
// unchecked conversion.
func (t *Types) notSoftSubtype(a, b code.Type) bool {
	if code.EqualIgnoreMetadata(a, b) {
		return false
	}
	if tv, ok := a.(*code.TypeVar); ok {
		return !t.isCastable(t.upperOf(tv), t.relaxBound(b), nil)
	}
	if b.Tag() != code.TagWildcard {
		b = t.CvarUpperBound(b)
	}
	return !t.IsSubtype(a, t.relaxBound(b))
}

func (t *Types) relaxBound(x code.Type) code.Type {
	if x.Tag() != code.TagTypeVar {
		return x
	}
	return t.Erasure(t.SkipTypeVars(x, false))
}
