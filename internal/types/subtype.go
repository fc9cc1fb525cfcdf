package types

import (
	"github.com/orizon-lang/typecore/internal/code"
)

// ====== Subtyping ======

// IsSubtype reports whether x <: s, capturing x first.
func (t *Types) IsSubtype(x, s code.Type) bool {
	return t.isSubtype(x, s, true)
}

// IsSubtypeNoCapture reports whether x <: s without capture conversion.
func (t *Types) IsSubtypeNoCapture(x, s code.Type) bool {
	return t.isSubtype(x, s, false)
}

// IsSubtypes reports whether the lists have equal length and are pairwise
// subtypes.
func (t *Types) IsSubtypes(ts, ss []code.Type) bool {
	if len(ts) != len(ss) {
		return false
	}
	for i := range ts {
		if !t.IsSubtype(ts[i], ss[i]) {
			return false
		}
	}
	return true
}

func (t *Types) isSubtype(x, s code.Type, capture bool) bool {
	if code.EqualIgnoreMetadata(x, s) {
		return true
	}
	if t.absorbs(x) || t.absorbs(s) {
		return true
	}
	if uv, ok := s.(*code.UndetVar); ok {
		return t.IsSuperType(uv, x)
	}
	if it, ok := s.(*code.IntersectionType); ok {
		for _, c := range it.Components {
			if !t.isSubtype(x, c, capture) {
				return false
			}
		}
		return true
	}
	if lower := t.CvarLowerBound(t.WildLowerBound(s)); lower != s && lower.Tag() != code.TagBot {
		if capture {
			x = t.Capture(x)
		}
		return t.isSubtype(x, lower, false)
	}
	if capture {
		x = t.Capture(x)
	}
	return t.subtypeOf(x, s)
}

func (t *Types) subtypeOf(x, s code.Type) bool {
	switch x := x.(type) {
	case *code.PrimitiveType:
		if x.Tag().IsNumeric() {
			return x.Tag().IsSubRangeOf(s.Tag())
		}
		return x.Tag() == s.Tag()
	case *code.BottomType:
		switch s.Tag() {
		case code.TagBot, code.TagClass, code.TagArray, code.TagTypeVar, code.TagUnion:
			return true
		}
		return false
	case *code.TypeVar:
		upper := x.Upper
		if upper == nil {
			upper = t.syms.ObjectType
		}
		return t.isSubtype(upper, s, false)
	case *code.ClassType:
		return t.classSubtype(x, s)
	case *code.ArrayType:
		switch s := s.(type) {
		case *code.ArrayType:
			if code.IsPrimitive(x.Elem) {
				return t.IsSameType(x.Elem, s.Elem)
			}
			return t.isSubtype(x.Elem, s.Elem, false)
		case *code.ClassType:
			return s.Sym == t.syms.ObjectType.Sym ||
				s.Sym == t.syms.CloneableType.Sym ||
				s.Sym == t.syms.SerializableType.Sym
		}
		return false
	case *code.UndetVar:
		if code.Type(x.Origin) == s || s.Tag() == code.TagError || s.Tag() == code.TagUnknown {
			return true
		}
		if s.Tag() == code.TagBot {
			return false
		}
		x.AddBound(code.BoundUpper, s, t)
		return true
	case *code.IntersectionType:
		for _, c := range x.Components {
			if t.isSubtype(c, s, false) {
				return true
			}
		}
		return false
	case *code.UnionType:
		for _, a := range x.Alternatives {
			if !t.isSubtype(a, s, false) {
				return false
			}
		}
		return true
	}
	return false
}

func (t *Types) classSubtype(x *code.ClassType, s code.Type) bool {
	sym := s.TypeSym()
	if sym == nil {
		return false
	}
	sup := t.AsSuper(x, sym)
	if sup == nil {
		return false
	}
	if t.absorbs(sup) {
		return true
	}
	supc, ok := sup.(*code.ClassType)
	sc, ok2 := s.(*code.ClassType)
	if !ok || !ok2 || supc.Sym != sc.Sym {
		return false
	}
	if code.IsParameterized(sc) && !t.containsTypeRecursive(sc, supc) {
		return false
	}
	if supc.Outer.Tag() != code.TagClass || sc.Outer.Tag() != code.TagClass {
		return true
	}
	return t.isSubtype(supc.Outer, sc.Outer, false)
}

// IsSuperType reports whether s <: x. Inference variables on the left
// record s as a lower bound.
func (t *Types) IsSuperType(x, s code.Type) bool {
	switch x := x.(type) {
	case *code.ErrorType:
		return true
	case *code.UndetVar:
		if code.Type(x) == s || code.Type(x.Origin) == s {
			return true
		}
		switch s.Tag() {
		case code.TagError, code.TagUnknown, code.TagBot:
			return true
		}
		x.AddBound(code.BoundLower, s, t)
		return true
	}
	return t.IsSubtype(s, x)
}

// IsSubtypeUnchecked reports whether x converts to s by subtyping or by an
// unchecked conversion from a raw type, and which warnings apply.
func (t *Types) IsSubtypeUnchecked(x, s code.Type) (bool, Warnings) {
	w := &warner{}
	ok := t.isSubtypeUnchecked(x, s, true, w)
	return ok, w.w
}

func (t *Types) isSubtypeUnchecked(x, s code.Type, capture bool, w *warner) bool {
	xa, xok := x.(*code.ArrayType)
	sa, sok := s.(*code.ArrayType)
	if xok && sok {
		if code.IsPrimitive(xa.Elem) {
			return t.IsSameType(xa.Elem, sa.Elem)
		}
		return t.isSubtypeUnchecked(xa.Elem, sa.Elem, false, w)
	}
	if t.isSubtype(x, s, capture) {
		return true
	}
	if tv, ok := x.(*code.TypeVar); ok {
		upper := tv.Upper
		if upper == nil {
			upper = t.syms.ObjectType
		}
		return t.isSubtypeUnchecked(upper, s, false, w)
	}
	if code.IsRaw(s) {
		return false
	}
	sym := s.TypeSym()
	if sym == nil {
		return false
	}
	if sup := t.AsSuper(x, sym); sup != nil && code.IsRaw(sup) {
		if t.IsReifiable(s) {
			w.warn(WarnSilentUnchecked)
		} else {
			w.warn(WarnUnchecked)
		}
		return true
	}
	return false
}

// ====== Containment ======

// ContainsTypes reports whether the lists have equal length and each
// element of ts contains the matching element of ss.
func (t *Types) ContainsTypes(ts, ss []code.Type) bool {
	if len(ts) != len(ss) {
		return false
	}
	for i := range ts {
		if !t.ContainsType(ts[i], ss[i]) {
			return false
		}
	}
	return true
}

// ContainsType reports whether type argument x contains s.
func (t *Types) ContainsType(x, s code.Type) bool {
	if t.absorbs(x) || t.absorbs(s) {
		return true
	}
	switch x := x.(type) {
	case *code.UndetVar:
		if s.Tag() == code.TagWildcard {
			return false
		}
		return t.IsSameType(x, s)
	case *code.WildcardType:
		if uv, ok := s.(*code.UndetVar); ok {
			return t.containedBy(uv, x)
		}
		return t.isSameWildcard(x, s) || t.isCaptureOf(s, x) ||
			(x.IsExtendsBound() || t.IsSubtypeNoCapture(t.WildLowerBound(x), t.CvarLowerBound(t.WildLowerBound(s)))) &&
				(x.IsSuperBound() || t.IsSubtypeNoCapture(t.CvarUpperBound(t.WildUpperBound(s)), t.WildUpperBound(x)))
	}
	if uv, ok := s.(*code.UndetVar); ok {
		return t.containedBy(uv, x)
	}
	return t.IsSameType(x, s)
}

// containedBy records the bounds under which uv is contained by x.
func (t *Types) containedBy(uv *code.UndetVar, x code.Type) bool {
	w, ok := x.(*code.WildcardType)
	if !ok {
		return t.IsSameType(uv, x)
	}
	switch w.Kind {
	case code.BoundExtends:
		uv.AddBound(code.BoundUpper, t.WildUpperBound(w), t)
	case code.BoundSuper:
		uv.AddBound(code.BoundLower, t.WildLowerBound(w), t)
	}
	return true
}

// containsTypeRecursive compares the arguments of s and its supertype view
// sup. A pair met again while being compared is taken to hold.
func (t *Types) containsTypeRecursive(s, sup *code.ClassType) bool {
	p := pair(s, sup)
	if !t.containCache.Insert(p) {
		return true
	}
	defer t.containCache.Remove(p)
	return t.ContainsTypes(s.Params, sup.Params)
}

func (t *Types) isSameWildcard(w *code.WildcardType, s code.Type) bool {
	sw, ok := s.(*code.WildcardType)
	if !ok || sw.Kind != w.Kind {
		return false
	}
	if w.Type == nil || sw.Type == nil {
		return w.Type == nil && sw.Type == nil
	}
	return code.EqualIgnoreMetadata(w.Type, sw.Type)
}

func (t *Types) isCaptureOf(s code.Type, w *code.WildcardType) bool {
	tv, ok := s.(*code.TypeVar)
	return ok && tv.Captured != nil && t.isSameWildcard(w, tv.Captured)
}

// ContainsTypeEquivalent reports whether x and s are the same type or
// contain each other.
func (t *Types) ContainsTypeEquivalent(x, s code.Type) bool {
	return t.IsSameType(x, s) || t.ContainsType(x, s) && t.ContainsType(s, x)
}

func (t *Types) containsTypeEquivalentList(ts, ss []code.Type) bool {
	if len(ts) != len(ss) {
		return false
	}
	for i := range ts {
		if !t.ContainsTypeEquivalent(ts[i], ss[i]) {
			return false
		}
	}
	return true
}

// ====== Sameness ======

// IsSameTypes reports whether the lists are pairwise the same type.
func (t *Types) IsSameTypes(ts, ss []code.Type) bool {
	if len(ts) != len(ss) {
		return false
	}
	for i := range ts {
		if !t.IsSameType(ts[i], ss[i]) {
			return false
		}
	}
	return true
}

// IsSameType reports whether x and s denote the same type. Inference
// variables on either side record an equality bound.
func (t *Types) IsSameType(x, s code.Type) bool {
	if x == nil || s == nil {
		return x == nil && s == nil
	}
	if code.EqualIgnoreMetadata(x, s) {
		return true
	}
	if t.absorbs(x) || t.absorbs(s) {
		return true
	}
	if uv, ok := s.(*code.UndetVar); ok {
		if _, ok := x.(*code.UndetVar); !ok {
			return t.sameUndet(uv, x)
		}
	}
	switch x := x.(type) {
	case *code.UndetVar:
		return t.sameUndet(x, s)
	case *code.PrimitiveType, *code.BottomType, *code.NoType:
		return x.Tag() == s.Tag()
	case *code.TypeVar:
		if s.Tag() == code.TagTypeVar {
			return false
		}
		return isSuperOnly(s) && t.IsSameType(x, t.WildUpperBound(s))
	case *code.WildcardType:
		sw, ok := s.(*code.WildcardType)
		if !ok {
			return false
		}
		if x.Kind != sw.Kind && !(x.IsExtendsBound() && sw.IsExtendsBound()) {
			return false
		}
		return t.IsSameType(t.boundOrObject(x.Type), t.boundOrObject(sw.Type))
	case *code.ClassType:
		if isSuperOnly(s) {
			return t.IsSameType(x, t.WildUpperBound(s)) && t.IsSameType(x, t.WildLowerBound(s))
		}
		sc, ok := s.(*code.ClassType)
		if !ok || x.Sym != sc.Sym {
			return false
		}
		return t.IsSameType(x.Outer, sc.Outer) && t.containsTypeEquivalentList(x.Params, sc.Params)
	case *code.IntersectionType:
		si, ok := s.(*code.IntersectionType)
		if !ok || !t.IsSameType(t.Supertype(x), t.Supertype(si)) {
			return false
		}
		return t.sameBySymbol(t.Interfaces(x), t.Interfaces(si))
	case *code.UnionType:
		su, ok := s.(*code.UnionType)
		return ok && t.sameBySymbol(x.Alternatives, su.Alternatives)
	case *code.ArrayType:
		sa, ok := s.(*code.ArrayType)
		return ok && t.ContainsTypeEquivalent(x.Elem, sa.Elem)
	case *code.MethodType:
		return t.HasSameArgs(x, s) && t.IsSameType(x.Result, s.ReturnType())
	case *code.ForAll:
		sf, ok := s.(*code.ForAll)
		if !ok {
			return false
		}
		return t.HasSameBounds(x, sf) && t.IsSameType(x.QType, t.Subst(sf.QType, sf.TVars, x.TVars))
	}
	return false
}

func (t *Types) sameUndet(uv *code.UndetVar, s code.Type) bool {
	if s.Tag() == code.TagWildcard {
		return false
	}
	if code.Type(uv) == s || code.Type(uv.Origin) == s || t.absorbs(s) {
		return true
	}
	uv.AddBound(code.BoundEq, s, t)
	return true
}

func (t *Types) boundOrObject(x code.Type) code.Type {
	if x == nil {
		return t.syms.ObjectType
	}
	return x
}

// sameBySymbol matches two component lists by class symbol and compares
// the matched pairs.
func (t *Types) sameBySymbol(ts, ss []code.Type) bool {
	if len(ts) != len(ss) {
		return false
	}
	bySym := make(map[code.Symbol]code.Type, len(ts))
	for _, x := range ts {
		bySym[x.TypeSym()] = x
	}
	for _, s := range ss {
		x, ok := bySym[s.TypeSym()]
		if !ok || !t.IsSameType(x, s) {
			return false
		}
		delete(bySym, s.TypeSym())
	}
	return len(bySym) == 0
}

// HasSameArgs reports whether two method types have the same parameter
// types. Generic methods only match generic methods with the same bounds.
func (t *Types) HasSameArgs(x, s code.Type) bool {
	return t.hasSameArgs(x, s, true)
}

func (t *Types) hasSameArgs(x, s code.Type, strict bool) bool {
	switch x := x.(type) {
	case *code.MethodType:
		if s.Tag() != code.TagMethod {
			return false
		}
		return t.containsTypeEquivalentList(x.Params, s.ParameterTypes())
	case *code.ForAll:
		sf, ok := s.(*code.ForAll)
		if !ok {
			if strict {
				return false
			}
			return t.hasSameArgs(x.QType, s, strict)
		}
		return t.HasSameBounds(x, sf) && t.hasSameArgs(x.QType, t.Subst(sf.QType, sf.TVars, x.TVars), strict)
	}
	return false
}

// HasSameBounds reports whether two generic methods declare type variables
// with the same bounds, up to renaming.
func (t *Types) HasSameBounds(x, s *code.ForAll) bool {
	if len(x.TVars) != len(s.TVars) {
		return false
	}
	for i := range x.TVars {
		xu := t.upperOf(x.TVars[i])
		su := t.Subst(t.upperOf(s.TVars[i]), s.TVars, x.TVars)
		if !t.IsSameType(xu, su) {
			return false
		}
	}
	return true
}

func (t *Types) upperOf(x code.Type) code.Type {
	if u := x.UpperBound(); u != nil {
		return u
	}
	return t.syms.ObjectType
}

// ====== Conversions ======

// IsConvertible reports whether x converts to s by method invocation
// conversion: subtyping, unchecked conversion, boxing or unboxing.
func (t *Types) IsConvertible(x, s code.Type) (bool, Warnings) {
	w := &warner{}
	ok := t.isConvertible(x, s, w)
	return ok, w.w
}

func (t *Types) isConvertible(x, s code.Type, w *warner) bool {
	if t.absorbs(x) || t.absorbs(s) {
		return true
	}
	xp, sp := code.IsPrimitive(x), code.IsPrimitive(s)
	if xp == sp {
		return t.isSubtypeUnchecked(x, s, true, w)
	}
	_, xu := x.(*code.UndetVar)
	_, su := s.(*code.UndetVar)
	switch {
	case xu:
		return t.IsSubtype(x, t.boxedTypeOrType(s))
	case su:
		return t.IsSubtype(t.boxedTypeOrType(x), s)
	case xp:
		return t.IsSubtype(t.boxedTypeOrType(x), s)
	}
	return t.IsSubtype(t.UnboxedType(x), s)
}

// IsAssignable reports whether x is assignable to s. Integer constants
// narrow to byte, char and short when the value fits.
func (t *Types) IsAssignable(x, s code.Type) (bool, Warnings) {
	w := &warner{}
	ok := t.isAssignable(x, s, w)
	return ok, w.w
}

func (t *Types) isAssignable(x, s code.Type, w *warner) bool {
	if t.absorbs(x) || t.absorbs(s) {
		return true
	}
	if x.Tag().IsPrimitive() && x.Tag().IsSubRangeOf(code.TagInt) {
		if v, ok := intConst(x.ConstValue()); ok {
			switch s.Tag() {
			case code.TagByte, code.TagChar, code.TagShort, code.TagInt:
				if fits(s.Tag(), v) {
					return true
				}
			case code.TagClass:
				switch u := t.UnboxedType(s); u.Tag() {
				case code.TagByte, code.TagChar, code.TagShort:
					return t.isAssignable(x, u, w)
				}
			}
		}
	}
	return t.isConvertible(x, s, w)
}

func intConst(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint16:
		return int64(v), true
	}
	return 0, false
}

func fits(tag code.TypeTag, v int64) bool {
	switch tag {
	case code.TagByte:
		return v >= -128 && v <= 127
	case code.TagChar:
		return v >= 0 && v <= 65535
	case code.TagShort:
		return v >= -32768 && v <= 32767
	case code.TagInt:
		return true
	}
	return false
}
