package code

import (
	"fmt"
	"strings"
)

// ====== Sentinels ======

// NoneType is the "no type" sentinel: absent outer types, missing
// supertypes, statements without a value.
var NoneType = &NoType{}

// Bot is the type of the null literal.
var Bot = &BottomType{}

// Unknown is the absorbing recovery sentinel.
var Unknown = &UnknownType{}

// NoType is the "no type" sentinel variant.
type NoType struct {
	baseType
}

func (t *NoType) Tag() TypeTag    { return TagNone }
func (t *NoType) TypeSym() Symbol { return nil }
func (t *NoType) String() string  { return "none" }
func (t *NoType) CloneWithMetadata(md Metadata) Type {
	return t
}

// BottomType is the null type: a subtype of every reference type.
type BottomType struct {
	baseType
}

func (t *BottomType) Tag() TypeTag    { return TagBot }
func (t *BottomType) TypeSym() Symbol { return nil }
func (t *BottomType) String() string  { return "null" }
func (t *BottomType) CloneWithMetadata(md Metadata) Type {
	return t
}

// UnknownType is the unknown/any sentinel used for recovery.
type UnknownType struct {
	baseType
}

func (t *UnknownType) Tag() TypeTag    { return TagUnknown }
func (t *UnknownType) TypeSym() Symbol { return nil }
func (t *UnknownType) String() string  { return "<any>" }
func (t *UnknownType) CloneWithMetadata(md Metadata) Type {
	return t
}

// ====== Primitive Types ======

// PrimitiveType covers the numeric kinds, boolean and void. A constant
// folded primitive carries its literal value.
type PrimitiveType struct {
	baseType
	Const any
	Name  string
	tag   TypeTag
}

// NewPrimitiveType creates the canonical primitive type for tag.
func NewPrimitiveType(tag TypeTag) *PrimitiveType {
	return &PrimitiveType{tag: tag, Name: tag.String()}
}

func (t *PrimitiveType) Tag() TypeTag    { return t.tag }
func (t *PrimitiveType) TypeSym() Symbol { return nil }
func (t *PrimitiveType) ConstValue() any { return t.Const }
func (t *PrimitiveType) String() string  { return t.meta.prefix() + t.Name }

func (t *PrimitiveType) CloneWithMetadata(md Metadata) Type {
	if md.IsEmpty() && t.orig != nil {
		return t.orig
	}
	c := *t
	c.baseType = t.cloned(t, md)
	return &c
}

// WithConst returns a constant-carrying copy of t.
func (t *PrimitiveType) WithConst(v any) *PrimitiveType {
	c := *t
	c.Const = v
	return &c
}

// ====== Reference Types ======

type memo[T any] struct {
	val T
	ok  bool
}

func (m *memo[T]) get() (T, bool) { return m.val, m.ok }
func (m *memo[T]) put(v T)        { m.val, m.ok = v, true }
func (m *memo[T]) clear() {
	var zero T
	m.val, m.ok = zero, false
}

// ClassType is a possibly parameterized reference to a class symbol.
type ClassType struct {
	baseType
	Outer      Type
	Sym        *ClassSymbol
	Const      any
	Params     []Type
	supertype  memo[Type]
	interfaces memo[[]Type]
	rank       memo[int]
}

// NewClassType creates a class type. A nil outer becomes NoneType.
func NewClassType(outer Type, params []Type, sym *ClassSymbol) *ClassType {
	if outer == nil {
		outer = NoneType
	}
	return &ClassType{Outer: outer, Params: params, Sym: sym}
}

func (t *ClassType) Tag() TypeTag          { return TagClass }
func (t *ClassType) TypeSym() Symbol       { return classSym(t.Sym) }
func (t *ClassType) EnclosingType() Type   { return t.Outer }
func (t *ClassType) TypeArguments() []Type { return t.Params }
func (t *ClassType) ConstValue() any       { return t.Const }

func (t *ClassType) CloneWithMetadata(md Metadata) Type {
	if md.IsEmpty() && t.orig != nil {
		return t.orig
	}
	c := *t
	c.baseType = t.cloned(t, md)
	return &c
}

// WithConst returns a constant-carrying copy of t.
func (t *ClassType) WithConst(v any) *ClassType {
	c := NewClassType(t.Outer, t.Params, t.Sym)
	c.meta = t.meta
	c.Const = v
	return c
}

// AllParams returns the type arguments of the enclosing chain followed by
// the receiver's own.
func (t *ClassType) AllParams() []Type {
	outer, ok := t.Outer.(*ClassType)
	if !ok {
		return t.Params
	}
	op := outer.AllParams()
	if len(op) == 0 {
		return t.Params
	}
	all := make([]Type, 0, len(op)+len(t.Params))
	all = append(all, op...)
	return append(all, t.Params...)
}

// CachedSupertype returns the memoized supertype, if computed.
func (t *ClassType) CachedSupertype() (Type, bool) { return t.supertype.get() }

// SetCachedSupertype memoizes the supertype.
func (t *ClassType) SetCachedSupertype(st Type) { t.supertype.put(st) }

// CachedInterfaces returns the memoized interface list, if computed.
func (t *ClassType) CachedInterfaces() ([]Type, bool) { return t.interfaces.get() }

// SetCachedInterfaces memoizes the interface list.
func (t *ClassType) SetCachedInterfaces(is []Type) { t.interfaces.put(is) }

// CachedRank returns the memoized inheritance rank, if computed.
func (t *ClassType) CachedRank() (int, bool) { return t.rank.get() }

// SetCachedRank memoizes the inheritance rank.
func (t *ClassType) SetCachedRank(r int) { t.rank.put(r) }

// ResetCaches drops every memoized field.
func (t *ClassType) ResetCaches() {
	t.supertype.clear()
	t.interfaces.clear()
	t.rank.clear()
}

func (t *ClassType) String() string {
	var sb strings.Builder
	sb.WriteString(t.meta.prefix())
	if outer, ok := t.Outer.(*ClassType); ok && IsParameterized(outer) {
		sb.WriteString(outer.String())
		sb.WriteString(".")
		sb.WriteString(t.Sym.Name())
	} else if t.Sym != nil {
		sb.WriteString(t.Sym.QualifiedName())
	}
	if len(t.Params) > 0 {
		sb.WriteString("<")
		sb.WriteString(TypeList(t.Params))
		sb.WriteString(">")
	}
	return sb.String()
}

// ArrayType is an array of Elem.
type ArrayType struct {
	baseType
	Elem Type
	Sym  *ClassSymbol
}

// NewArrayType creates an array type backed by the synthetic array class.
func NewArrayType(elem Type, arrayClass *ClassSymbol) *ArrayType {
	return &ArrayType{Elem: elem, Sym: arrayClass}
}

func (t *ArrayType) Tag() TypeTag    { return TagArray }
func (t *ArrayType) TypeSym() Symbol { return classSym(t.Sym) }
func (t *ArrayType) String() string  { return t.meta.prefix() + t.Elem.String() + "[]" }

func (t *ArrayType) CloneWithMetadata(md Metadata) Type {
	if md.IsEmpty() && t.orig != nil {
		return t.orig
	}
	c := *t
	c.baseType = t.cloned(t, md)
	return &c
}

// MethodType is an executable signature.
type MethodType struct {
	baseType
	Result Type
	Sym    *ClassSymbol
	Params []Type
	Thrown []Type
}

// NewMethodType creates a method signature.
func NewMethodType(params []Type, result Type, thrown []Type, methodClass *ClassSymbol) *MethodType {
	return &MethodType{Params: params, Result: result, Thrown: thrown, Sym: methodClass}
}

func (t *MethodType) Tag() TypeTag           { return TagMethod }
func (t *MethodType) TypeSym() Symbol        { return classSym(t.Sym) }
func (t *MethodType) ParameterTypes() []Type { return t.Params }
func (t *MethodType) ReturnType() Type       { return t.Result }
func (t *MethodType) ThrownTypes() []Type    { return t.Thrown }

func (t *MethodType) CloneWithMetadata(md Metadata) Type {
	if md.IsEmpty() && t.orig != nil {
		return t.orig
	}
	c := *t
	c.baseType = t.cloned(t, md)
	return &c
}

func (t *MethodType) String() string {
	s := "(" + TypeList(t.Params) + ")" + t.Result.String()
	if len(t.Thrown) > 0 {
		s += " throws " + TypeList(t.Thrown)
	}
	return s
}

// ForAll is a generic method signature: type variables quantifying QType.
type ForAll struct {
	baseType
	QType Type
	TVars []Type
}

// NewForAll creates a generic signature.
func NewForAll(tvars []Type, qtype Type) *ForAll {
	return &ForAll{TVars: tvars, QType: qtype}
}

func (t *ForAll) Tag() TypeTag           { return TagForAll }
func (t *ForAll) TypeSym() Symbol        { return t.QType.TypeSym() }
func (t *ForAll) TypeArguments() []Type  { return t.TVars }
func (t *ForAll) ParameterTypes() []Type { return t.QType.ParameterTypes() }
func (t *ForAll) ReturnType() Type       { return t.QType.ReturnType() }
func (t *ForAll) ThrownTypes() []Type    { return t.QType.ThrownTypes() }
func (t *ForAll) String() string         { return "<" + TypeList(t.TVars) + ">" + t.QType.String() }

func (t *ForAll) CloneWithMetadata(md Metadata) Type {
	if md.IsEmpty() && t.orig != nil {
		return t.orig
	}
	c := *t
	c.baseType = t.cloned(t, md)
	return &c
}

// ====== Type Variables ======

// TypeVar is a declared type parameter or, when Captured is set, a fresh
// skolem produced by capture conversion.
type TypeVar struct {
	baseType
	Upper    Type
	Lower    Type
	Sym      *TypeVariableSymbol
	Captured *WildcardType
	rank     memo[int]
}

// NewTypeVar creates a type variable. A nil lower bound becomes Bot.
func NewTypeVar(sym *TypeVariableSymbol, upper, lower Type) *TypeVar {
	if lower == nil {
		lower = Bot
	}
	return &TypeVar{Sym: sym, Upper: upper, Lower: lower}
}

// NewCapturedType creates the skolem standing for wildcard w.
func NewCapturedType(sym *TypeVariableSymbol, upper, lower Type, w *WildcardType) *TypeVar {
	tv := NewTypeVar(sym, upper, lower)
	tv.Captured = w
	return tv
}

func (t *TypeVar) Tag() TypeTag { return TagTypeVar }
func (t *TypeVar) TypeSym() Symbol {
	if t.Sym == nil {
		return nil
	}
	return t.Sym
}
func (t *TypeVar) UpperBound() Type { return t.Upper }
func (t *TypeVar) LowerBound() Type { return t.Lower }

func (t *TypeVar) CloneWithMetadata(md Metadata) Type {
	if md.IsEmpty() && t.orig != nil {
		return t.orig
	}
	c := *t
	c.baseType = t.cloned(t, md)
	return &c
}

// CachedRank returns the memoized inheritance rank, if computed.
func (t *TypeVar) CachedRank() (int, bool) { return t.rank.get() }

// SetCachedRank memoizes the inheritance rank.
func (t *TypeVar) SetCachedRank(r int) { t.rank.put(r) }

func (t *TypeVar) String() string {
	name := "?"
	if t.Sym != nil {
		name = t.Sym.Name()
	}
	return t.meta.prefix() + name
}

// BoundKind classifies a wildcard.
type BoundKind int

const (
	BoundUnbound BoundKind = iota
	BoundExtends
	BoundSuper
)

func (k BoundKind) String() string {
	switch k {
	case BoundExtends:
		return "? extends "
	case BoundSuper:
		return "? super "
	default:
		return "?"
	}
}

// WildcardType is a wildcard type argument. Bound is the formal type
// variable the wildcard instantiates, when known.
type WildcardType struct {
	baseType
	Type  Type
	Bound *TypeVar
	Sym   *ClassSymbol
	Kind  BoundKind
}

// NewWildcardType creates a wildcard. Unbounded wildcards keep a nil Type.
func NewWildcardType(t Type, kind BoundKind, boundClass *ClassSymbol) *WildcardType {
	if kind == BoundUnbound {
		t = nil
	}
	return &WildcardType{Type: t, Kind: kind, Sym: boundClass}
}

func (t *WildcardType) Tag() TypeTag     { return TagWildcard }
func (t *WildcardType) TypeSym() Symbol  { return classSym(t.Sym) }
func (t *WildcardType) UpperBound() Type { return t.ExtendsBound() }
func (t *WildcardType) LowerBound() Type { return t.SuperBound() }

func (t *WildcardType) CloneWithMetadata(md Metadata) Type {
	if md.IsEmpty() && t.orig != nil {
		return t.orig
	}
	c := *t
	c.baseType = t.cloned(t, md)
	return &c
}

// IsExtendsBound reports "?" or "? extends T".
func (t *WildcardType) IsExtendsBound() bool { return t.Kind != BoundSuper }

// IsSuperBound reports "?" or "? super T".
func (t *WildcardType) IsSuperBound() bool { return t.Kind != BoundExtends }

// ExtendsBound returns T for "? extends T", nil otherwise.
func (t *WildcardType) ExtendsBound() Type {
	if t.Kind == BoundExtends {
		return t.Type
	}
	return nil
}

// SuperBound returns T for "? super T", nil otherwise.
func (t *WildcardType) SuperBound() Type {
	if t.Kind == BoundSuper {
		return t.Type
	}
	return nil
}

func (t *WildcardType) String() string {
	if t.Kind == BoundUnbound || t.Type == nil {
		return t.meta.prefix() + "?"
	}
	return t.meta.prefix() + t.Kind.String() + t.Type.String()
}

// WithTypeVar records the formal a wildcard instantiates. Other variants
// are returned unchanged.
func WithTypeVar(t Type, tv *TypeVar) Type {
	w, ok := t.(*WildcardType)
	if !ok || tv == nil || w.Bound == tv {
		return t
	}
	c := *w
	c.Bound = tv
	c.baseType = baseType{meta: w.meta}
	return &c
}

// ====== Compound Types ======

// IntersectionType is T1 & T2 & ... backed by a synthetic compound class.
type IntersectionType struct {
	baseType
	Sym           *ClassSymbol
	Components    []Type
	AllInterfaces bool
}

// NewIntersectionType creates an intersection. The synthetic class symbol
// is owned by owner and carries the Compound flag.
func NewIntersectionType(components []Type, allInterfaces bool, owner Symbol) *IntersectionType {
	flags := Abstract | Public | Synthetic | Compound | Acyclic
	if allInterfaces {
		flags |= Interface
	}
	sym := NewClassSymbol(flags, "", owner)
	sym.SetCompleter(NoCompleter)
	it := &IntersectionType{Components: components, AllInterfaces: allInterfaces, Sym: sym}
	sym.SetType(it)
	return it
}

func (t *IntersectionType) Tag() TypeTag    { return TagIntersection }
func (t *IntersectionType) TypeSym() Symbol { return classSym(t.Sym) }

func (t *IntersectionType) CloneWithMetadata(md Metadata) Type {
	if md.IsEmpty() && t.orig != nil {
		return t.orig
	}
	c := *t
	c.baseType = t.cloned(t, md)
	return &c
}

func (t *IntersectionType) String() string {
	parts := make([]string, len(t.Components))
	for i, c := range t.Components {
		parts[i] = c.String()
	}
	return strings.Join(parts, "&")
}

// UnionType is the type of a multi-alternative catch parameter.
type UnionType struct {
	baseType
	Sym          *ClassSymbol
	Alternatives []Type
}

// NewUnionType creates a union backed by a synthetic compound class.
func NewUnionType(alternatives []Type, owner Symbol) *UnionType {
	sym := NewClassSymbol(Public|Synthetic|Compound|Final, "", owner)
	sym.SetCompleter(NoCompleter)
	ut := &UnionType{Alternatives: alternatives, Sym: sym}
	sym.SetType(ut)
	return ut
}

func (t *UnionType) Tag() TypeTag    { return TagUnion }
func (t *UnionType) TypeSym() Symbol { return classSym(t.Sym) }

func (t *UnionType) CloneWithMetadata(md Metadata) Type {
	if md.IsEmpty() && t.orig != nil {
		return t.orig
	}
	c := *t
	c.baseType = t.cloned(t, md)
	return &c
}

func (t *UnionType) String() string {
	parts := make([]string, len(t.Alternatives))
	for i, c := range t.Alternatives {
		parts[i] = c.String()
	}
	return strings.Join(parts, "|")
}

func classSym(c *ClassSymbol) Symbol {
	if c == nil {
		return nil
	}
	return c
}

// ====== Pseudo and Error Types ======

// PackageType is the pseudo-type of a package symbol.
type PackageType struct {
	baseType
	Sym *PackageSymbol
}

func (t *PackageType) Tag() TypeTag    { return TagPackage }
func (t *PackageType) TypeSym() Symbol { return t.Sym }
func (t *PackageType) String() string  { return t.Sym.QualifiedName() }
func (t *PackageType) CloneWithMetadata(md Metadata) Type {
	return t
}

// ModuleType is the pseudo-type of a module symbol.
type ModuleType struct {
	baseType
	Sym *ModuleSymbol
}

func (t *ModuleType) Tag() TypeTag    { return TagModule }
func (t *ModuleType) TypeSym() Symbol { return t.Sym }
func (t *ModuleType) String() string  { return t.Sym.Name() }
func (t *ModuleType) CloneWithMetadata(md Metadata) Type {
	return t
}

// ErrorType is the placeholder given to erroneous classes. Original keeps
// whatever type was known before the error.
type ErrorType struct {
	baseType
	Original Type
	Sym      *ClassSymbol
}

// NewErrorType creates an error placeholder for sym.
func NewErrorType(sym *ClassSymbol, original Type) *ErrorType {
	if original == nil {
		original = NoneType
	}
	return &ErrorType{Sym: sym, Original: original}
}

func (t *ErrorType) Tag() TypeTag { return TagError }

func (t *ErrorType) TypeSym() Symbol { return classSym(t.Sym) }

func (t *ErrorType) CloneWithMetadata(md Metadata) Type {
	if md.IsEmpty() && t.orig != nil {
		return t.orig
	}
	c := *t
	c.baseType = t.cloned(t, md)
	return &c
}

func (t *ErrorType) String() string {
	if t.Sym != nil && t.Sym.Name() != "" {
		return t.Sym.QualifiedName()
	}
	return fmt.Sprintf("<error %s>", t.Original)
}
