package types

import (
	"fmt"

	"github.com/orizon-lang/typecore/internal/code"
)

// ====== Capture Conversion ======

// Capture replaces every wildcard argument of a parameterized class type by
// a fresh captured type variable whose bounds combine the wildcard bound
// with the declared bound of the formal. Non-wildcard types are returned
// unchanged.
func (t *Types) Capture(x code.Type) code.Type {
	cls, ok := x.(*code.ClassType)
	if !ok {
		return x
	}
	if cls.Outer.Tag() == code.TagClass {
		outer := t.Capture(cls.Outer)
		if outer != cls.Outer {
			mt := t.MemberType(outer, cls.Sym)
			if ct, ok := t.Subst(mt, cls.Sym.TypeParameters(), cls.Params).(*code.ClassType); ok {
				cls = ct
			}
		}
	}
	if code.IsRaw(cls) || !code.IsParameterized(cls) {
		return cls
	}

	formals := cls.Sym.ClassType().Params
	args := cls.Params
	if len(formals) != len(args) {
		return t.Erasure(cls)
	}
	captured := t.FreshTypeVariables(args)
	found := false
	for i := range formals {
		w, ok := args[i].(*code.WildcardType)
		if !ok {
			continue
		}
		found = true
		cv := captured[i].(*code.TypeVar)
		declared := t.Subst(t.upperOf(formals[i]), formals, captured)
		switch w.Kind {
		case code.BoundUnbound:
			cv.Upper = declared
			cv.Lower = code.Bot
		case code.BoundExtends:
			cv.Upper = t.Glb(w.Type, declared)
			cv.Lower = code.Bot
		case code.BoundSuper:
			cv.Upper = declared
			cv.Lower = w.Type
		}
		if !code.IsErroneous(cv.Upper) && !code.IsErroneous(cv.Lower) && t.IsSameType(cv.Upper, cv.Lower) {
			captured[i] = cv.Upper
		}
	}
	if !found {
		return cls
	}
	out := code.NewClassType(cls.Outer, captured, cls.Sym)
	return combine(out, cls)
}

// FreshTypeVariables returns ts with every wildcard replaced by a new
// captured type variable bounded by the wildcard's extends bound.
func (t *Types) FreshTypeVariables(ts []code.Type) []code.Type {
	out := make([]code.Type, len(ts))
	for i, x := range ts {
		w, ok := x.(*code.WildcardType)
		if !ok {
			out[i] = x
			continue
		}
		bound := w.ExtendsBound()
		if bound == nil {
			bound = t.syms.ObjectType
		}
		t.captureCount++
		sym := code.NewTypeVariableSymbol(code.Synthetic, fmt.Sprintf("capture#%d of %s", t.captureCount, w), nil)
		cv := code.NewCapturedType(sym, bound, code.Bot, w)
		sym.SetType(cv)
		out[i] = cv
	}
	return out
}
