// Package code holds the entity model of the semantic core: the closed set
// of type variants, the declaration symbols that own them, member scopes and
// the lazy completion protocol that populates symbols on demand.
package code

import (
	"fmt"
	"strings"

	"github.com/orizon-lang/typecore/internal/position"
)

// ====== Type Tags ======

// TypeTag discriminates the type variants.
type TypeTag int

const (
	TagByte TypeTag = iota
	TagChar
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagBoolean
	TagVoid
	TagClass
	TagArray
	TagMethod
	TagForAll
	TagPackage
	TagModule
	TagTypeVar
	TagWildcard
	TagIntersection
	TagUnion
	TagBot
	TagNone
	TagError
	TagUnknown
	TagUndetVar
)

// String returns the string representation of a TypeTag
func (tt TypeTag) String() string {
	switch tt {
	case TagByte:
		return "byte"
	case TagChar:
		return "char"
	case TagShort:
		return "short"
	case TagInt:
		return "int"
	case TagLong:
		return "long"
	case TagFloat:
		return "float"
	case TagDouble:
		return "double"
	case TagBoolean:
		return "boolean"
	case TagVoid:
		return "void"
	case TagClass:
		return "class"
	case TagArray:
		return "array"
	case TagMethod:
		return "method"
	case TagForAll:
		return "forall"
	case TagPackage:
		return "package"
	case TagModule:
		return "module"
	case TagTypeVar:
		return "typevar"
	case TagWildcard:
		return "wildcard"
	case TagIntersection:
		return "intersection"
	case TagUnion:
		return "union"
	case TagBot:
		return "bot"
	case TagNone:
		return "none"
	case TagError:
		return "error"
	case TagUnknown:
		return "unknown"
	case TagUndetVar:
		return "undetvar"
	default:
		return fmt.Sprintf("tag(%d)", int(tt))
	}
}

// IsNumeric reports whether the tag is one of the numeric primitives.
func (tt TypeTag) IsNumeric() bool {
	return tt >= TagByte && tt <= TagDouble
}

// IsPrimitive reports whether the tag is numeric or boolean.
func (tt TypeTag) IsPrimitive() bool {
	return tt.IsNumeric() || tt == TagBoolean
}

// widening lists, per numeric tag, every tag it widens to (itself included).
var widening = map[TypeTag]uint32{
	TagByte:   tagBits(TagByte, TagShort, TagInt, TagLong, TagFloat, TagDouble),
	TagChar:   tagBits(TagChar, TagInt, TagLong, TagFloat, TagDouble),
	TagShort:  tagBits(TagShort, TagInt, TagLong, TagFloat, TagDouble),
	TagInt:    tagBits(TagInt, TagLong, TagFloat, TagDouble),
	TagLong:   tagBits(TagLong, TagFloat, TagDouble),
	TagFloat:  tagBits(TagFloat, TagDouble),
	TagDouble: tagBits(TagDouble),
}

func tagBits(tags ...TypeTag) uint32 {
	var b uint32
	for _, t := range tags {
		b |= 1 << uint(t)
	}
	return b
}

// IsSubRangeOf reports whether values of tt fit in other by primitive widening.
func (tt TypeTag) IsSubRangeOf(other TypeTag) bool {
	bits, ok := widening[tt]
	return ok && bits&(1<<uint(other)) != 0
}

// ====== Metadata ======

// Attribute is a type-use annotation attached to a type.
type Attribute struct {
	Values map[string]any
	Name   string
	Pos    position.Span
}

// Metadata is the immutable side table carried by every type node.
type Metadata struct {
	annotations []*Attribute
}

// NewMetadata creates metadata holding the given annotations.
func NewMetadata(attrs ...*Attribute) Metadata {
	if len(attrs) == 0 {
		return Metadata{}
	}
	cp := make([]*Attribute, len(attrs))
	copy(cp, attrs)
	return Metadata{annotations: cp}
}

// Annotations returns a copy of the annotation list.
func (m Metadata) Annotations() []*Attribute {
	cp := make([]*Attribute, len(m.annotations))
	copy(cp, m.annotations)
	return cp
}

// IsEmpty reports whether there is nothing attached.
func (m Metadata) IsEmpty() bool {
	return len(m.annotations) == 0
}

// Combine returns metadata holding the annotations of both.
func (m Metadata) Combine(other Metadata) Metadata {
	if other.IsEmpty() {
		return m
	}
	if m.IsEmpty() {
		return other
	}
	return NewMetadata(append(m.Annotations(), other.annotations...)...)
}

// WithPositions returns metadata whose attributes are copies positioned by f.
func (m Metadata) WithPositions(f func(a *Attribute) position.Span) Metadata {
	if m.IsEmpty() {
		return m
	}
	out := make([]*Attribute, len(m.annotations))
	for i, a := range m.annotations {
		cp := *a
		cp.Pos = f(a)
		out[i] = &cp
	}
	return Metadata{annotations: out}
}

func (m Metadata) prefix() string {
	if m.IsEmpty() {
		return ""
	}
	var sb strings.Builder
	for _, a := range m.annotations {
		sb.WriteString("@")
		sb.WriteString(a.Name)
		sb.WriteString(" ")
	}
	return sb.String()
}

// ====== Core Type Interface ======

// Type is the closed sum of type variants. Every projection answers without
// triggering completion; projections that do not apply to a variant return
// nil, or NoneType for the enclosing type.
type Type interface {
	Tag() TypeTag
	TypeSym() Symbol
	Metadata() Metadata
	CloneWithMetadata(md Metadata) Type
	EnclosingType() Type
	TypeArguments() []Type
	ParameterTypes() []Type
	ReturnType() Type
	ThrownTypes() []Type
	UpperBound() Type
	LowerBound() Type
	ConstValue() any
	String() string

	unannotated() Type
}

type baseType struct {
	meta Metadata
	orig Type
}

func (b *baseType) Metadata() Metadata     { return b.meta }
func (b *baseType) unannotated() Type      { return b.orig }
func (b *baseType) EnclosingType() Type    { return NoneType }
func (b *baseType) TypeArguments() []Type  { return nil }
func (b *baseType) ParameterTypes() []Type { return nil }
func (b *baseType) ReturnType() Type       { return nil }
func (b *baseType) ThrownTypes() []Type    { return nil }
func (b *baseType) UpperBound() Type       { return nil }
func (b *baseType) LowerBound() Type       { return nil }
func (b *baseType) ConstValue() any        { return nil }

func (b *baseType) cloned(self Type, md Metadata) baseType {
	orig := b.orig
	if orig == nil {
		orig = self
	}
	return baseType{meta: md, orig: orig}
}

// StripMetadata returns the node t was cloned from, or t itself.
func StripMetadata(t Type) Type {
	if t == nil {
		return nil
	}
	if o := t.unannotated(); o != nil {
		return o
	}
	return t
}

// EqualIgnoreMetadata reports whether a and b are the same node once
// metadata clones are stripped.
func EqualIgnoreMetadata(a, b Type) bool {
	return StripMetadata(a) == StripMetadata(b)
}

// ====== Predicates ======

// IsReference reports whether t denotes a reference type.
func IsReference(t Type) bool {
	switch t.Tag() {
	case TagClass, TagArray, TagTypeVar, TagWildcard, TagIntersection, TagUnion, TagError:
		return true
	}
	return false
}

// IsPrimitive reports whether t is a numeric or boolean type.
func IsPrimitive(t Type) bool {
	return t.Tag().IsPrimitive()
}

// IsPrimitiveOrVoid reports whether t is primitive or void.
func IsPrimitiveOrVoid(t Type) bool {
	return t.Tag().IsPrimitive() || t.Tag() == TagVoid
}

// IsNumeric reports whether t is a numeric primitive.
func IsNumeric(t Type) bool {
	return t.Tag().IsNumeric()
}

// IsErroneous reports whether t is, or structurally contains, an error.
func IsErroneous(t Type) bool {
	if t == nil {
		return false
	}
	switch t := t.(type) {
	case *ErrorType, *UnknownType:
		return true
	case *ClassType:
		if IsErroneous(t.Outer) || AnyErroneous(t.Params) {
			return true
		}
		if t.Sym != nil && StripMetadata(t.Sym.Type()) != StripMetadata(t) {
			return IsErroneous(t.Sym.Type())
		}
		return false
	case *ArrayType:
		return IsErroneous(t.Elem)
	case *MethodType:
		return AnyErroneous(t.Params) || IsErroneous(t.Result) || AnyErroneous(t.Thrown)
	case *ForAll:
		return IsErroneous(t.QType)
	case *WildcardType:
		return IsErroneous(t.Type)
	case *IntersectionType:
		return AnyErroneous(t.Components)
	case *UnionType:
		return AnyErroneous(t.Alternatives)
	}
	return false
}

// AnyErroneous reports whether any element of ts is erroneous.
func AnyErroneous(ts []Type) bool {
	for _, t := range ts {
		if IsErroneous(t) {
			return true
		}
	}
	return false
}

// IsCompound reports whether t is an intersection.
func IsCompound(t Type) bool {
	return t.Tag() == TagIntersection
}

// IsInterface reports whether t denotes an interface. It may complete the
// class symbol behind t.
func IsInterface(t Type) bool {
	switch t := t.(type) {
	case *ClassType:
		return t.Sym.Flags()&Interface != 0
	case *IntersectionType:
		return t.AllInterfaces
	}
	return false
}

// IsParameterized reports whether t carries type arguments anywhere in its
// enclosing chain.
func IsParameterized(t Type) bool {
	c, ok := t.(*ClassType)
	return ok && len(c.AllParams()) > 0
}

// IsRaw reports whether t names a generic class without arguments.
// It completes the class symbol.
func IsRaw(t Type) bool {
	c, ok := t.(*ClassType)
	if !ok || c.Sym == nil {
		return false
	}
	declared := c.Sym.ClassType()
	if declared == nil || StripMetadata(declared) == StripMetadata(c) {
		return false
	}
	return len(c.Sym.DeclaredAllParams()) > 0 && len(c.AllParams()) == 0
}

// IsCaptured reports whether t is a captured type variable.
func IsCaptured(t Type) bool {
	tv, ok := t.(*TypeVar)
	return ok && tv.Captured != nil
}

// IsUnbound reports whether t is an unbounded wildcard.
func IsUnbound(t Type) bool {
	w, ok := t.(*WildcardType)
	return ok && w.Kind == BoundUnbound
}

// ContainsAny reports whether any element of ts mentions any of the targets.
func ContainsAny(ts []Type, targets []Type) bool {
	for _, t := range ts {
		for _, target := range targets {
			if Mentions(t, target) {
				return true
			}
		}
	}
	return false
}

// Mentions reports whether target occurs structurally inside t.
func Mentions(t, target Type) bool {
	if t == nil {
		return false
	}
	if EqualIgnoreMetadata(t, target) {
		return true
	}
	switch t := t.(type) {
	case *ClassType:
		return Mentions(t.Outer, target) || mentionsAny(t.Params, target)
	case *ArrayType:
		return Mentions(t.Elem, target)
	case *MethodType:
		return mentionsAny(t.Params, target) || Mentions(t.Result, target) || mentionsAny(t.Thrown, target)
	case *ForAll:
		return Mentions(t.QType, target)
	case *WildcardType:
		return Mentions(t.Type, target)
	case *IntersectionType:
		return mentionsAny(t.Components, target)
	case *UnionType:
		return mentionsAny(t.Alternatives, target)
	case *UndetVar:
		return EqualIgnoreMetadata(t.Origin, target)
	}
	return false
}

func mentionsAny(ts []Type, target Type) bool {
	for _, t := range ts {
		if Mentions(t, target) {
			return true
		}
	}
	return false
}

// TypeList renders a list of types separated by commas.
func TypeList(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}
