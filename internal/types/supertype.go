package types

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/orizon-lang/typecore/internal/code"
)

// ====== Direct Supertypes ======

// Supertype returns the direct superclass of x viewed through x's type
// arguments, or NoneType.
func (t *Types) Supertype(x code.Type) code.Type {
	switch x := x.(type) {
	case *code.ClassType:
		if st, ok := x.CachedSupertype(); ok {
			return st
		}
		c := x.Sym
		st := c.Superclass()
		if st.Tag() == code.TagNone && c.Flags()&code.Interface != 0 {
			st = t.syms.ObjectType
		}
		formals := c.DeclaredAllParams()
		switch {
		case code.IsRaw(x):
			st = t.ErasureRecursive(st)
		case len(formals) > 0:
			st = t.Subst(st, formals, x.AllParams())
		}
		x.SetCachedSupertype(st)
		t.remember(x)
		return st
	case *code.TypeVar:
		upper := x.Upper
		if upper == nil {
			return t.syms.ObjectType
		}
		if upper.Tag() == code.TagTypeVar || !code.IsCompound(upper) && !code.IsInterface(upper) {
			return upper
		}
		return t.Supertype(upper)
	case *code.ArrayType:
		if code.IsPrimitive(x.Elem) || t.IsSameType(x.Elem, t.syms.ObjectType) {
			return t.ArraySuperType()
		}
		return code.NewArrayType(t.Supertype(x.Elem), x.Sym)
	case *code.IntersectionType:
		if x.AllInterfaces {
			return t.syms.ObjectType
		}
		return x.Components[0]
	case *code.UnionType:
		return t.Lub(x.Alternatives...)
	}
	return code.NoneType
}

// Interfaces returns the direct superinterfaces of x viewed through x's
// type arguments.
func (t *Types) Interfaces(x code.Type) []code.Type {
	switch x := x.(type) {
	case *code.ClassType:
		if is, ok := x.CachedInterfaces(); ok {
			return is
		}
		c := x.Sym
		declared := c.Interfaces()
		formals := c.DeclaredAllParams()
		is := declared
		switch {
		case code.IsRaw(x):
			is = code.MapTypes(declared, t.ErasureRecursive)
		case len(formals) > 0:
			is = t.substList(declared, formals, x.AllParams())
		}
		x.SetCachedInterfaces(is)
		t.remember(x)
		return is
	case *code.TypeVar:
		upper := x.Upper
		switch {
		case upper == nil:
			return nil
		case code.IsCompound(upper):
			return t.Interfaces(upper)
		case code.IsInterface(upper):
			return []code.Type{upper}
		}
		return nil
	case *code.IntersectionType:
		if x.AllInterfaces {
			return x.Components
		}
		return x.Components[1:]
	}
	return nil
}

// DirectSupertypes returns the supertype followed by the interfaces of x.
// For intersections the components are returned.
func (t *Types) DirectSupertypes(x code.Type) []code.Type {
	if it, ok := x.(*code.IntersectionType); ok {
		return it.Components
	}
	sup := t.Supertype(x)
	is := t.Interfaces(x)
	if sup == nil || sup.Tag() == code.TagNone || code.EqualIgnoreMetadata(sup, x) {
		return is
	}
	out := make([]code.Type, 0, len(is)+1)
	out = append(out, sup)
	return append(out, is...)
}

// ====== Views ======

// AsSuper returns the supertype of x whose symbol is sym, or nil when sym
// is not a supertype.
func (t *Types) AsSuper(x code.Type, sym code.Symbol) code.Type {
	if sym == nil {
		return nil
	}
	if sym == code.Symbol(t.syms.ObjectType.Sym) && code.IsReference(x) {
		return t.syms.ObjectType
	}
	switch x := x.(type) {
	case *code.ClassType:
		if code.Symbol(x.Sym) == sym {
			return x
		}
		if !t.seenSupers.Insert(x.Sym) {
			return nil
		}
		defer t.seenSupers.Remove(x.Sym)
		st := t.Supertype(x)
		if st.Tag() == code.TagClass || st.Tag() == code.TagTypeVar {
			if r := t.AsSuper(st, sym); r != nil {
				return r
			}
		}
		if sym.Flags()&code.Interface != 0 {
			for _, i := range t.Interfaces(x) {
				if i.Tag() == code.TagError {
					continue
				}
				if r := t.AsSuper(i, sym); r != nil {
					return r
				}
			}
		}
		return nil
	case *code.ArrayType:
		if t.IsSubtype(x, sym.Type()) {
			return sym.Type()
		}
		return nil
	case *code.TypeVar:
		if x.TypeSym() == sym {
			return x
		}
		if x.Upper == nil {
			return nil
		}
		return t.AsSuper(x.Upper, sym)
	case *code.IntersectionType:
		if x.TypeSym() == sym {
			return x
		}
		for _, c := range x.Components {
			if r := t.AsSuper(c, sym); r != nil {
				return r
			}
		}
		return nil
	case *code.UnionType:
		return t.AsSuper(t.Lub(x.Alternatives...), sym)
	case *code.ErrorType:
		return x
	}
	return nil
}

// AsOuterSuper is AsSuper extended to the enclosing types of x.
func (t *Types) AsOuterSuper(x code.Type, sym code.Symbol) code.Type {
	switch x.(type) {
	case *code.ClassType, *code.IntersectionType:
		for cur := x; cur.Tag() == code.TagClass || cur.Tag() == code.TagIntersection; cur = cur.EnclosingType() {
			if s := t.AsSuper(cur, sym); s != nil {
				return s
			}
		}
		return nil
	case *code.ArrayType:
		if t.IsSubtype(x, sym.Type()) {
			return sym.Type()
		}
		return nil
	case *code.TypeVar:
		return t.AsSuper(x, sym)
	case *code.ErrorType:
		return x
	}
	return nil
}

// AsEnclosingSuper is AsOuterSuper that also walks lexically enclosing
// classes when an enclosing type is not recorded on x.
func (t *Types) AsEnclosingSuper(x code.Type, sym code.Symbol) code.Type {
	switch x.(type) {
	case *code.ClassType:
		cur := x
		for cur != nil && cur.Tag() == code.TagClass {
			if s := t.AsSuper(cur, sym); s != nil {
				return s
			}
			outer := cur.EnclosingType()
			if outer.Tag() == code.TagClass {
				cur = outer
				continue
			}
			c := classSymOf(cur)
			if c == nil || c.Owner() == nil {
				return nil
			}
			enclosing := code.EnclosingClass(c.Owner())
			if enclosing == nil {
				return nil
			}
			cur = enclosing.ClassType()
		}
		return nil
	case *code.ArrayType:
		if t.IsSubtype(x, sym.Type()) {
			return sym.Type()
		}
		return nil
	case *code.TypeVar:
		return t.AsSuper(x, sym)
	case *code.ErrorType:
		return x
	}
	return nil
}

// MemberType returns the type of sym as a member of x: the declared type
// with the owner's type variables replaced by x's view of the owner.
func (t *Types) MemberType(x code.Type, sym code.Symbol) code.Type {
	if sym.Flags()&code.Static != 0 {
		return sym.Type()
	}
	switch x := x.(type) {
	case *code.WildcardType:
		return t.MemberType(t.WildUpperBound(x), sym)
	case *code.TypeVar:
		if x.Upper == nil {
			return sym.Type()
		}
		return t.MemberType(x.Upper, sym)
	case *code.ErrorType:
		return x
	case *code.ClassType, *code.IntersectionType:
		return t.memberTypeIn(x, sym)
	}
	return sym.Type()
}

func (t *Types) memberTypeIn(x code.Type, sym code.Symbol) code.Type {
	owner, ok := sym.Owner().(*code.ClassSymbol)
	if !ok {
		return sym.Type()
	}
	ownerParams := owner.DeclaredAllParams()
	if len(ownerParams) == 0 {
		return sym.Type()
	}
	base := t.AsOuterSuper(x, owner)
	if base == nil {
		return sym.Type()
	}
	if code.IsCompound(x) {
		base = t.Capture(base)
	}
	bc, ok := base.(*code.ClassType)
	if !ok {
		return sym.Type()
	}
	baseParams := bc.AllParams()
	if len(baseParams) == 0 {
		return t.Erasure(sym.Type())
	}
	return t.Subst(sym.Type(), ownerParams, baseParams)
}

// ====== Rank and Order ======

// Rank returns the length of the longest path from x to Object in the
// supertype graph.
func (t *Types) Rank(x code.Type) int {
	switch x := x.(type) {
	case *code.ClassType:
		if r, ok := x.CachedRank(); ok {
			return r
		}
		r := 0
		if x.Sym != t.syms.ObjectType.Sym {
			r = t.maxRank(x) + 1
		}
		x.SetCachedRank(r)
		t.remember(x)
		return r
	case *code.TypeVar:
		if r, ok := x.CachedRank(); ok {
			return r
		}
		r := t.maxRank(x) + 1
		x.SetCachedRank(r)
		return r
	case *code.IntersectionType:
		return t.maxRank(x) + 1
	}
	return 0
}

func (t *Types) maxRank(x code.Type) int {
	r := t.Rank(t.Supertype(x))
	for _, i := range t.Interfaces(x) {
		if ri := t.Rank(i); ri > r {
			r = ri
		}
	}
	return r
}

// Precedes orders the symbols of a closure: classes by decreasing rank,
// ties broken by descending qualified name; type variables before classes
// and ordered by subtyping among themselves.
func (t *Types) Precedes(a, b code.Symbol) bool {
	if a == b {
		return false
	}
	switch a := a.(type) {
	case *code.ClassSymbol:
		bc, ok := b.(*code.ClassSymbol)
		if !ok {
			return false
		}
		ra, rb := t.Rank(a.RawClassType()), t.Rank(bc.RawClassType())
		return rb < ra || rb == ra && a.QualifiedName() > bc.QualifiedName()
	case *code.TypeVariableSymbol:
		if bv, ok := b.(*code.TypeVariableSymbol); ok {
			return t.IsSubtype(a.Type(), bv.Type())
		}
		return true
	}
	return false
}

// ====== Closures ======

// Closure returns every supertype of x, x included, ordered by Precedes.
func (t *Types) Closure(x code.Type) []code.Type {
	key := code.StripMetadata(x)
	if cl, ok := t.closures[key]; ok {
		return cl
	}
	st := t.Supertype(x)
	var cl []code.Type
	if !code.IsCompound(x) {
		switch st.Tag() {
		case code.TagClass:
			cl = t.Insert(t.Closure(st), x)
		case code.TagTypeVar:
			cl = append([]code.Type{x}, t.Closure(st)...)
		default:
			cl = []code.Type{x}
		}
	} else {
		cl = t.Closure(st)
	}
	for _, i := range t.Interfaces(x) {
		cl = t.Union(cl, t.Closure(i))
	}
	t.closures[key] = cl
	return cl
}

// Insert adds x to closure cl unless a type with the same symbol is
// already there. The input slice is not modified.
func (t *Types) Insert(cl []code.Type, x code.Type) []code.Type {
	xs := x.TypeSym()
	for i, c := range cl {
		cs := c.TypeSym()
		if xs == cs {
			return cl
		}
		if t.Precedes(xs, cs) {
			out := make([]code.Type, 0, len(cl)+1)
			out = append(out, cl[:i]...)
			out = append(out, x)
			return append(out, cl[i:]...)
		}
	}
	out := make([]code.Type, 0, len(cl)+1)
	out = append(out, cl...)
	return append(out, x)
}

// Union merges two closures, keeping the first of same-symbol pairs.
func (t *Types) Union(a, b []code.Type) []code.Type {
	out := make([]code.Type, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		as, bs := a[i].TypeSym(), b[j].TypeSym()
		switch {
		case t.Precedes(as, bs):
			out = append(out, a[i])
			i++
		case t.Precedes(bs, as):
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// Intersect returns the types common to two closures. Two different
// parameterizations of one class are merged into a wildcard
// parameterization; a raw member makes the result raw.
func (t *Types) Intersect(a, b []code.Type) []code.Type {
	var out []code.Type
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		as, bs := a[i].TypeSym(), b[j].TypeSym()
		switch {
		case t.Precedes(as, bs):
			i++
			continue
		case t.Precedes(bs, as):
			j++
			continue
		}
		if t.IsSameType(a[i], b[j]) {
			out = append(out, a[i])
		} else if as == bs {
			ca, aok := a[i].(*code.ClassType)
			cb, bok := b[j].(*code.ClassType)
			if aok && bok {
				switch {
				case code.IsParameterized(ca) && code.IsParameterized(cb):
					out = append(out, t.merge(ca, cb))
				case code.IsRaw(ca) || code.IsRaw(cb):
					out = append(out, t.Erasure(ca))
				}
			}
		}
		i++
		j++
	}
	return out
}

// merge builds the least parameterization of c1's class containing both
// c1 and c2. Pairs met again during the lub of their arguments degrade to
// an unbounded wildcard.
func (t *Types) merge(c1, c2 *code.ClassType) code.Type {
	formals := c1.Sym.TypeParameters()
	n := min(len(c1.Params), len(c2.Params), len(formals))
	merged := make([]code.Type, 0, n)
	for k := 0; k < n; k++ {
		a1, a2 := c1.Params[k], c2.Params[k]
		switch {
		case t.ContainsType(a1, a2):
			merged = append(merged, a1)
		case t.ContainsType(a2, a1):
			merged = append(merged, a2)
		default:
			p := pair(c1, c2)
			var m code.Type
			if t.mergeCache.Insert(p) {
				bound := t.Lub(t.WildUpperBound(a1), t.WildUpperBound(a2))
				m = code.NewWildcardType(bound, code.BoundExtends, t.syms.BoundClass)
				t.mergeCache.Remove(p)
			} else {
				m = code.NewWildcardType(nil, code.BoundUnbound, t.syms.BoundClass)
			}
			tv, _ := formals[k].(*code.TypeVar)
			merged = append(merged, code.WithTypeVar(m, tv))
		}
	}
	return code.NewClassType(c1.Outer, merged, c1.Sym)
}

// ClosureMin keeps the minimal elements of a closure: classes first, then
// interfaces.
func (t *Types) ClosureMin(cl []code.Type) []code.Type {
	var classes, interfaces []code.Type
	skip := set.New[code.Type](0)
	for i, cur := range cl {
		if skip.Contains(cur) {
			continue
		}
		rest := cl[i+1:]
		if cur.Tag() == code.TagTypeVar && t.anySubtype(rest, cur) {
			continue
		}
		if code.IsInterface(cur) {
			interfaces = append(interfaces, cur)
		} else {
			classes = append(classes, cur)
		}
		for _, x := range rest {
			if t.IsSubtypeNoCapture(cur, x) {
				skip.Insert(x)
			}
		}
	}
	return append(classes, interfaces...)
}

func (t *Types) anySubtype(ts []code.Type, s code.Type) bool {
	for _, x := range ts {
		if t.IsSubtypeNoCapture(x, s) {
			return true
		}
	}
	return false
}

// compoundMin returns the intersection of the minimal elements of cl.
func (t *Types) compoundMin(cl []code.Type) code.Type {
	if len(cl) == 0 {
		return t.syms.ObjectType
	}
	cl = t.ClosureMin(cl)
	switch len(cl) {
	case 0:
		return t.syms.ObjectType
	case 1:
		return cl[0]
	}
	return t.MakeIntersectionType(cl)
}

// erasedSupertypes returns the closure of x with every class erased.
func (t *Types) erasedSupertypes(x code.Type) []code.Type {
	cl := t.Closure(x)
	out := make([]code.Type, 0, len(cl))
	for _, sup := range cl {
		if sup.Tag() == code.TagTypeVar {
			out = append(out, sup)
		} else {
			out = append(out, t.Erasure(sup))
		}
	}
	return out
}
