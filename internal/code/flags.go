package code

import (
	"fmt"
	"strings"
)

// Kind discriminates the symbol variants.
type Kind int

const (
	KindModule Kind = iota
	KindPackage
	KindClass
	KindVar
	KindMethod
	KindTypeVar
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindPackage:
		return "package"
	case KindClass:
		return "class"
	case KindVar:
		return "variable"
	case KindMethod:
		return "method"
	case KindTypeVar:
		return "type variable"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Flags is the modifier and attribute set of a symbol.
type Flags uint64

const (
	Public Flags = 1 << iota
	Private
	Protected
	Static
	Final
	Synchronized
	Volatile
	Transient
	Native
	Interface
	Abstract
	Strictfp
	Synthetic
	Annotation
	Enum
	Mandated
	Default
	Bridge
	Varargs
	Sealed
	NonSealed
	Record
	Compound
	Acyclic
	Deprecated
)

// AccessFlags masks the access modifiers.
const AccessFlags = Public | Private | Protected

var flagNames = []struct {
	flag Flags
	name string
}{
	{Public, "public"},
	{Private, "private"},
	{Protected, "protected"},
	{Static, "static"},
	{Final, "final"},
	{Synchronized, "synchronized"},
	{Volatile, "volatile"},
	{Transient, "transient"},
	{Native, "native"},
	{Interface, "interface"},
	{Abstract, "abstract"},
	{Strictfp, "strictfp"},
	{Synthetic, "synthetic"},
	{Annotation, "annotation"},
	{Enum, "enum"},
	{Mandated, "mandated"},
	{Default, "default"},
	{Bridge, "bridge"},
	{Varargs, "varargs"},
	{Sealed, "sealed"},
	{NonSealed, "non-sealed"},
	{Record, "record"},
	{Compound, "compound"},
	{Acyclic, "acyclic"},
	{Deprecated, "deprecated"},
}

// String lists the set flags in declaration order.
func (f Flags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, " ")
}

// Has reports whether every flag in mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// ParseFlag maps a modifier name to its flag.
func ParseFlag(name string) (Flags, error) {
	for _, fn := range flagNames {
		if fn.name == name {
			return fn.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown flag %q", name)
}

// ParseFlags combines a list of modifier names.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, n := range names {
		flag, err := ParseFlag(n)
		if err != nil {
			return 0, err
		}
		f |= flag
	}
	return f, nil
}
