package code

// Visitor dispatches on the variant of a type. R is the result, S the
// extra argument threaded through the traversal.
type Visitor[R, S any] interface {
	VisitClass(t *ClassType, s S) R
	VisitArray(t *ArrayType, s S) R
	VisitMethod(t *MethodType, s S) R
	VisitForAll(t *ForAll, s S) R
	VisitTypeVar(t *TypeVar, s S) R
	VisitWildcard(t *WildcardType, s S) R
	VisitIntersection(t *IntersectionType, s S) R
	VisitUnion(t *UnionType, s S) R
	VisitUndetVar(t *UndetVar, s S) R
	VisitError(t *ErrorType, s S) R
	// VisitType handles primitives, void, null, the sentinels and the
	// package/module pseudo-types.
	VisitType(t Type, s S) R
}

// Accept dispatches t to the matching method of v.
func Accept[R, S any](t Type, v Visitor[R, S], s S) R {
	switch t := t.(type) {
	case *ClassType:
		return v.VisitClass(t, s)
	case *ArrayType:
		return v.VisitArray(t, s)
	case *MethodType:
		return v.VisitMethod(t, s)
	case *ForAll:
		return v.VisitForAll(t, s)
	case *TypeVar:
		return v.VisitTypeVar(t, s)
	case *WildcardType:
		return v.VisitWildcard(t, s)
	case *IntersectionType:
		return v.VisitIntersection(t, s)
	case *UnionType:
		return v.VisitUnion(t, s)
	case *UndetVar:
		return v.VisitUndetVar(t, s)
	case *ErrorType:
		return v.VisitError(t, s)
	default:
		return v.VisitType(t, s)
	}
}

// DefaultVisitor routes every variant to Default. Embed it and override the
// variants of interest.
type DefaultVisitor[R, S any] struct {
	Default func(t Type, s S) R
}

func (d DefaultVisitor[R, S]) VisitClass(t *ClassType, s S) R               { return d.Default(t, s) }
func (d DefaultVisitor[R, S]) VisitArray(t *ArrayType, s S) R               { return d.Default(t, s) }
func (d DefaultVisitor[R, S]) VisitMethod(t *MethodType, s S) R             { return d.Default(t, s) }
func (d DefaultVisitor[R, S]) VisitForAll(t *ForAll, s S) R                 { return d.Default(t, s) }
func (d DefaultVisitor[R, S]) VisitTypeVar(t *TypeVar, s S) R               { return d.Default(t, s) }
func (d DefaultVisitor[R, S]) VisitWildcard(t *WildcardType, s S) R         { return d.Default(t, s) }
func (d DefaultVisitor[R, S]) VisitIntersection(t *IntersectionType, s S) R { return d.Default(t, s) }
func (d DefaultVisitor[R, S]) VisitUnion(t *UnionType, s S) R               { return d.Default(t, s) }
func (d DefaultVisitor[R, S]) VisitUndetVar(t *UndetVar, s S) R             { return d.Default(t, s) }
func (d DefaultVisitor[R, S]) VisitError(t *ErrorType, s S) R               { return d.Default(t, s) }
func (d DefaultVisitor[R, S]) VisitType(t Type, s S) R                      { return d.Default(t, s) }

// ====== Structural Mapping ======

// MapStructure applies f to the immediate sub-terms of array, class, forall,
// method and wildcard types and rebuilds the node only when a sub-term
// changed. Every other variant is returned as is.
func MapStructure(t Type, f func(Type) Type) Type {
	switch t := t.(type) {
	case *ArrayType:
		elem := f(t.Elem)
		if elem == t.Elem {
			return t
		}
		out := NewArrayType(elem, t.Sym)
		out.meta = t.meta
		return out
	case *ClassType:
		outer := t.Outer
		if outer.Tag() == TagClass {
			outer = f(outer)
		}
		params := MapTypes(t.Params, f)
		if outer == t.Outer && sameSlice(params, t.Params) {
			return t
		}
		out := NewClassType(outer, params, t.Sym)
		out.meta = t.meta
		return out
	case *MethodType:
		params := MapTypes(t.Params, f)
		result := f(t.Result)
		thrown := MapTypes(t.Thrown, f)
		if result == t.Result && sameSlice(params, t.Params) && sameSlice(thrown, t.Thrown) {
			return t
		}
		out := NewMethodType(params, result, thrown, t.Sym)
		out.meta = t.meta
		return out
	case *ForAll:
		qtype := f(t.QType)
		if qtype == t.QType {
			return t
		}
		out := NewForAll(t.TVars, qtype)
		out.meta = t.meta
		return out
	case *WildcardType:
		if t.Type == nil {
			return t
		}
		bound := f(t.Type)
		if bound == t.Type {
			return t
		}
		out := NewWildcardType(bound, t.Kind, t.Sym)
		out.Bound = t.Bound
		out.meta = t.meta
		return out
	}
	return t
}

// MapTypes applies f to every element and returns ts itself when nothing
// changed.
func MapTypes(ts []Type, f func(Type) Type) []Type {
	var out []Type
	for i, t := range ts {
		m := f(t)
		if out == nil && m != t {
			out = make([]Type, len(ts))
			copy(out, ts[:i])
		}
		if out != nil {
			out[i] = m
		}
	}
	if out == nil {
		return ts
	}
	return out
}

func sameSlice(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}

// StripAllMetadata removes metadata throughout t.
func StripAllMetadata(t Type) Type {
	var strip func(Type) Type
	strip = func(t Type) Type {
		return MapStructure(StripMetadata(t), strip)
	}
	return strip(t)
}
