package types

import (
	"github.com/orizon-lang/typecore/internal/code"
)

var _ code.Relations = (*Types)(nil)

// ====== Signatures ======

// IsSubSignature reports whether method type x has the signature of s or
// of the erasure of s.
func (t *Types) IsSubSignature(x, s code.Type) bool {
	return t.hasSameArgs(x, s, true) || t.hasSameArgs(x, t.Erasure(s), true)
}

// OverrideEquivalent reports whether either method type is a subsignature
// of the other.
func (t *Types) OverrideEquivalent(x, s code.Type) bool {
	return t.HasSameArgs(x, s) || t.HasSameArgs(x, t.Erasure(s)) || t.HasSameArgs(t.Erasure(x), s)
}

// ReturnTypeSubstitutable reports whether a method of type r1 may override
// one of type r2 as far as the result is concerned.
func (t *Types) ReturnTypeSubstitutable(r1, r2 code.Type) bool {
	if t.HasSameArgs(r1, r2) {
		return t.ResultSubtype(r1, r2)
	}
	return t.CovariantReturnType(r1.ReturnType(), t.Erasure(r2.ReturnType()))
}

// ResultSubtype compares the results of two method types after renaming
// the type variables of s to those of x.
func (t *Types) ResultSubtype(x, s code.Type) bool {
	tvars := x.TypeArguments()
	svars := s.TypeArguments()
	res := t.Subst(s.ReturnType(), svars, tvars)
	return t.CovariantReturnType(x.ReturnType(), res)
}

// CovariantReturnType reports whether result x may replace result s:
// same type, or reference types related by unchecked subtyping.
func (t *Types) CovariantReturnType(x, s code.Type) bool {
	if x == nil || s == nil {
		return x == nil && s == nil
	}
	if t.IsSameType(x, s) {
		return true
	}
	if code.IsPrimitiveOrVoid(x) || code.IsPrimitiveOrVoid(s) {
		return false
	}
	ok, _ := t.IsAssignable(x, s)
	return ok
}

// ====== Boxing ======

// BoxedClass returns the box class of primitive x, or nil.
func (t *Types) BoxedClass(x code.Type) *code.ClassSymbol {
	return t.syms.BoxedClass(x.Tag())
}

// boxedTypeOrType returns the box of a primitive and x otherwise.
func (t *Types) boxedTypeOrType(x code.Type) code.Type {
	if !code.IsPrimitive(x) {
		return x
	}
	if box := t.BoxedClass(x); box != nil {
		return box.ClassType()
	}
	return x
}

var boxedTags = []code.TypeTag{
	code.TagByte, code.TagShort, code.TagChar, code.TagInt,
	code.TagLong, code.TagFloat, code.TagDouble, code.TagBoolean,
}

// UnboxedType returns the primitive x unboxes to, or NoneType.
func (t *Types) UnboxedType(x code.Type) code.Type {
	if t.absorbs(x) || !code.IsReference(x) {
		return code.NoneType
	}
	for _, tag := range boxedTags {
		box := t.syms.BoxedClass(tag)
		if box == nil {
			continue
		}
		if t.AsSuper(x, box) != nil {
			return t.syms.PrimitiveOf(tag)
		}
	}
	return code.NoneType
}
