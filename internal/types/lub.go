package types

import (
	"github.com/orizon-lang/typecore/internal/code"
)

// ====== Least Upper Bound ======

const (
	boundNone  = 0
	boundArray = 1
	boundClass = 2
)

// Lub returns the least upper bound of ts. Primitives have none and yield
// the error type; an error operand is returned as is.
func (t *Types) Lub(ts ...code.Type) code.Type {
	kinds := make([]int, len(ts))
	boundkind := boundNone
	for i, x := range ts {
		if t.absorbs(x) {
			return x
		}
		switch x.Tag() {
		case code.TagClass, code.TagIntersection:
			kinds[i] = boundClass
		case code.TagArray:
			kinds[i] = boundArray
		case code.TagTypeVar:
			if t.SkipTypeVars(x, false).Tag() == code.TagArray {
				kinds[i] = boundArray
			} else {
				kinds[i] = boundClass
			}
		case code.TagBot:
		default:
			return t.syms.ErrType
		}
		boundkind |= kinds[i]
	}

	switch boundkind {
	case boundNone:
		return code.Bot
	case boundArray:
		return t.arrayLub(ts, kinds)
	case boundClass:
		return t.classLub(ts, kinds)
	}
	classes := []code.Type{t.ArraySuperType()}
	for i, x := range ts {
		if kinds[i] != boundArray {
			classes = append(classes, x)
		}
	}
	return t.Lub(classes...)
}

func (t *Types) arrayLub(ts []code.Type, kinds []int) code.Type {
	var arrays []code.Type
	for i, x := range ts {
		if kinds[i] == boundArray {
			arrays = append(arrays, x)
		}
	}
	elems := make([]code.Type, len(arrays))
	for i, x := range arrays {
		elem := t.ElemType(x)
		if code.IsPrimitive(elem) {
			for _, other := range arrays[1:] {
				if !t.IsSameType(arrays[0], other) {
					return t.ArraySuperType()
				}
			}
			return arrays[0]
		}
		elems[i] = elem
	}
	return code.NewArrayType(t.Lub(elems...), t.syms.ArrayClass)
}

func (t *Types) classLub(ts []code.Type, kinds []int) code.Type {
	var classes []code.Type
	for i, x := range ts {
		if kinds[i] == boundClass {
			classes = append(classes, x)
		}
	}
	first := classes[0]
	cl := t.erasedSupertypes(first)
	for _, x := range classes[1:] {
		cl = t.Intersect(cl, t.erasedSupertypes(x))
	}
	mec := t.ClosureMin(cl)

	var candidates []code.Type
	for _, erased := range mec {
		sym := erased.TypeSym()
		var lci []code.Type
		if sup := t.AsSuper(first, sym); sup != nil {
			lci = []code.Type{sup}
		}
		for _, x := range classes[1:] {
			var next []code.Type
			if sup := t.AsSuper(x, sym); sup != nil {
				next = []code.Type{sup}
			}
			lci = t.Intersect(lci, next)
		}
		candidates = append(candidates, lci...)
	}
	return t.compoundMin(candidates)
}

// ArraySuperType returns Serializable & Cloneable, the common supertype of
// all arrays.
func (t *Types) ArraySuperType() code.Type {
	if t.arraySuper == nil {
		t.arraySuper = t.MakeIntersectionType([]code.Type{t.syms.SerializableType, t.syms.CloneableType})
	}
	return t.arraySuper
}

// ====== Greatest Lower Bound ======

// GlbList folds Glb over ts.
func (t *Types) GlbList(ts []code.Type) code.Type {
	if len(ts) == 0 {
		return t.syms.ObjectType
	}
	acc := ts[0]
	for _, x := range ts[1:] {
		if code.IsErroneous(acc) {
			return acc
		}
		acc = t.Glb(acc, x)
	}
	return acc
}

// Glb returns the greatest lower bound of x and s. Two unrelated classes
// have none; the error type is returned then.
func (t *Types) Glb(x, s code.Type) code.Type {
	if s == nil {
		return x
	}
	if code.IsPrimitive(x) || code.IsPrimitive(s) {
		return t.syms.ErrType
	}
	if t.IsSubtypeNoCapture(x, s) {
		return x
	}
	if t.IsSubtypeNoCapture(s, x) {
		return s
	}
	cl := t.Union(t.Closure(x), t.Closure(s))
	return t.glbFlattened(cl, x)
}

func (t *Types) glbFlattened(flat []code.Type, errT code.Type) code.Type {
	bounds := t.ClosureMin(flat)
	switch len(bounds) {
	case 0:
		return t.syms.ObjectType
	case 1:
		return bounds[0]
	}
	classCount := 0
	var cvars, lowers []code.Type
	for _, b := range bounds {
		if code.IsInterface(b) {
			continue
		}
		classCount++
		if lower := t.CvarLowerBound(b); lower != b && lower.Tag() != code.TagBot {
			cvars = append(cvars, b)
			lowers = append(lowers, lower)
		}
	}
	if classCount > 1 {
		if len(lowers) == 0 {
			return code.NewErrorType(t.syms.ErrSymbol, errT)
		}
		var rest []code.Type
		for _, b := range bounds {
			if !containsPtr(cvars, b) {
				rest = append(rest, b)
			}
		}
		return t.GlbList(append(rest, lowers...))
	}
	return t.MakeIntersectionType(bounds)
}

func containsPtr(ts []code.Type, x code.Type) bool {
	for _, y := range ts {
		if y == x {
			return true
		}
	}
	return false
}
