package types

import (
	"github.com/orizon-lang/typecore/internal/code"
)

// ====== Erasure ======

// Erasure maps x to its run-time representation: type arguments dropped,
// type variables replaced by the erasure of their bound.
func (t *Types) Erasure(x code.Type) code.Type {
	if x == nil {
		return nil
	}
	if c, ok := x.(*code.ClassType); ok && c.Sym == t.syms.StringType.Sym {
		return x
	}
	return t.erasure(x)
}

// ErasureRecursive erases x. Erased class types report erased supertypes,
// so the whole hierarchy above the result is erased as well.
func (t *Types) ErasureRecursive(x code.Type) code.Type {
	if x == nil {
		return nil
	}
	return t.erasure(x)
}

func (t *Types) erasure(x code.Type) code.Type {
	return code.Accept[code.Type, *Types](x, eraser{code.DefaultVisitor[code.Type, *Types]{Default: eraseStructure}}, t)
}

// eraser maps each variant to its erasure. Arrays, method types and the
// leaf variants go through eraseStructure.
type eraser struct {
	code.DefaultVisitor[code.Type, *Types]
}

func eraseStructure(x code.Type, t *Types) code.Type {
	if code.IsPrimitiveOrVoid(x) {
		return x
	}
	return code.MapStructure(x, t.erasure)
}

func (eraser) VisitWildcard(x *code.WildcardType, t *Types) code.Type {
	return combine(t.erasure(t.WildUpperBound(x)), x)
}

func (eraser) VisitClass(x *code.ClassType, t *Types) code.Type {
	return combine(t.erasedClass(x.Sym), x)
}

func (eraser) VisitTypeVar(x *code.TypeVar, t *Types) code.Type {
	return combine(t.erasure(t.upperOf(x)), x)
}

func (eraser) VisitIntersection(x *code.IntersectionType, t *Types) code.Type {
	if e := x.Sym.CachedErasure(); e != nil {
		return e
	}
	return t.erasure(x.Components[0])
}

func (eraser) VisitUnion(x *code.UnionType, t *Types) code.Type {
	return t.erasure(t.Lub(x.Alternatives...))
}

func (eraser) VisitForAll(x *code.ForAll, t *Types) code.Type     { return t.erasure(x.QType) }
func (eraser) VisitError(x *code.ErrorType, t *Types) code.Type   { return x }
func (eraser) VisitUndetVar(x *code.UndetVar, t *Types) code.Type { return x }

// erasedClass returns the memoized erasure of c's declared type. A class
// with no type parameters in its enclosing chain is its own erasure.
func (t *Types) erasedClass(c *code.ClassSymbol) code.Type {
	if e := c.CachedErasure(); e != nil {
		return e
	}
	declared := c.ClassType()
	var e code.Type = declared
	if len(declared.AllParams()) > 0 {
		e = code.NewClassType(t.erasure(declared.Outer), nil, c)
	}
	c.SetCachedErasure(e)
	return e
}

func combine(erased, orig code.Type) code.Type {
	md := orig.Metadata()
	if md.IsEmpty() {
		return erased
	}
	return erased.CloneWithMetadata(erased.Metadata().Combine(md))
}

// ====== Substitution ======

// Subst replaces every occurrence of from[i] in x by to[i]. The lists are
// aligned on their last elements. Generic method types whose variables
// occur in to are renamed first.
func (t *Types) Subst(x code.Type, from, to []code.Type) code.Type {
	if x == nil {
		return nil
	}
	for len(from) > len(to) {
		from = from[1:]
	}
	for len(to) > len(from) {
		to = to[1:]
	}
	if len(from) == 0 {
		return x
	}
	s := &substituter{types: t, from: from, to: to}
	return s.apply(x)
}

func (t *Types) substList(ts, from, to []code.Type) []code.Type {
	return code.MapTypes(ts, func(x code.Type) code.Type { return t.Subst(x, from, to) })
}

type substituter struct {
	types    *Types
	from, to []code.Type
}

func (s *substituter) apply(x code.Type) code.Type {
	if x == nil {
		return nil
	}
	switch x := x.(type) {
	case *code.TypeVar:
		for i, f := range s.from {
			if code.EqualIgnoreMetadata(x, f) {
				return code.WithTypeVar(s.to[i], x)
			}
		}
		return x
	case *code.IntersectionType:
		comps := code.MapTypes(x.Components, s.apply)
		if changed(comps, x.Components) {
			return s.types.MakeIntersectionType(comps)
		}
		return x
	case *code.UnionType:
		alts := code.MapTypes(x.Alternatives, s.apply)
		if changed(alts, x.Alternatives) {
			return s.types.MakeUnionType(alts)
		}
		return x
	case *code.WildcardType:
		m := code.MapStructure(x, s.apply)
		w, ok := m.(*code.WildcardType)
		if !ok || w == x || !x.IsExtendsBound() {
			return m
		}
		if inner, ok := w.Type.(*code.WildcardType); ok && inner.IsExtendsBound() {
			w.Type = s.types.WildUpperBound(inner)
		}
		return w
	case *code.ForAll:
		return s.forAll(x)
	case *code.ErrorType, *code.UndetVar:
		return x
	}
	return code.MapStructure(x, s.apply)
}

func (s *substituter) forAll(x *code.ForAll) code.Type {
	t := s.types
	if code.ContainsAny(s.to, x.TVars) {
		fresh := t.NewInstances(x.TVars)
		x = code.NewForAll(fresh, t.Subst(x.QType, x.TVars, fresh))
	}
	tvars := t.SubstBounds(x.TVars, s.from, s.to)
	qtype := s.apply(x.QType)
	switch {
	case !changed(tvars, x.TVars) && qtype == x.QType:
		return x
	case !changed(tvars, x.TVars):
		return code.NewForAll(tvars, qtype)
	}
	return code.NewForAll(tvars, t.Subst(qtype, x.TVars, tvars))
}

func changed(a, b []code.Type) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}

// NewInstances returns fresh copies of tvars whose bounds refer to the
// copies instead of the originals.
func (t *Types) NewInstances(tvars []code.Type) []code.Type {
	out := make([]code.Type, len(tvars))
	fresh := make([]*code.TypeVar, len(tvars))
	for i, x := range tvars {
		tv := x.(*code.TypeVar)
		fresh[i] = code.NewTypeVar(tv.Sym, tv.Upper, tv.Lower)
		out[i] = fresh[i]
	}
	for _, tv := range fresh {
		tv.Upper = t.Subst(tv.Upper, tvars, out)
	}
	return out
}

// SubstBounds applies the substitution to the bounds of tvars. When no
// bound changes tvars is returned as is; otherwise fresh variables are
// created whose bounds refer to each other.
func (t *Types) SubstBounds(tvars, from, to []code.Type) []code.Type {
	if len(tvars) == 0 {
		return tvars
	}
	bounds := make([]code.Type, len(tvars))
	dirty := false
	for i, x := range tvars {
		tv := x.(*code.TypeVar)
		bounds[i] = t.Subst(tv.Upper, from, to)
		if bounds[i] != tv.Upper {
			dirty = true
		}
	}
	if !dirty {
		return tvars
	}
	out := make([]code.Type, len(tvars))
	for i, x := range tvars {
		tv := x.(*code.TypeVar)
		out[i] = code.NewTypeVar(tv.Sym, nil, tv.Lower)
	}
	for i, x := range out {
		x.(*code.TypeVar).Upper = t.Subst(bounds[i], tvars, out)
	}
	return out
}

// ====== Reifiability ======

// IsReifiable reports whether x is fully available at run time.
func (t *Types) IsReifiable(x code.Type) bool {
	switch x := x.(type) {
	case *code.ClassType:
		if !code.IsParameterized(x) {
			return true
		}
		for _, p := range x.AllParams() {
			if !code.IsUnbound(p) {
				return false
			}
		}
		return true
	case *code.ArrayType:
		return t.IsReifiable(x.Elem)
	case *code.TypeVar, *code.IntersectionType:
		return false
	}
	return true
}

// isUnbounded reports whether every argument of x accepts anything its
// formal admits.
func (t *Types) isUnbounded(x code.Type) bool {
	c, ok := x.(*code.ClassType)
	if !ok {
		return true
	}
	formals := c.Sym.DeclaredAllParams()
	args := c.AllParams()
	for i, f := range formals {
		if i >= len(args) {
			break
		}
		unb := code.NewWildcardType(nil, code.BoundUnbound, t.syms.BoundClass)
		unb.Bound, _ = f.(*code.TypeVar)
		if !t.ContainsType(args[i], unb) {
			return false
		}
	}
	return true
}
