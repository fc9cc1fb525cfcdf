package types

import (
	"testing"

	"github.com/orizon-lang/typecore/internal/code"
)

func TestIsCastable(t *testing.T) {
	f := newFixture()
	ty := f.types
	integer := f.integer()

	tests := []struct {
		name      string
		x, s      code.Type
		want      bool
		unchecked bool
	}{
		{"widening primitive", f.syms.IntType, f.syms.LongType, true, false},
		{"narrowing primitive", f.syms.LongType, f.syms.IntType, true, false},
		{"int to boolean", f.syms.IntType, f.syms.BooleanType, false, false},
		{"unboxing", integer, f.syms.IntType, true, false},
		{"object to int", f.syms.ObjectType, f.syms.IntType, true, false},
		{"unrelated final classes", f.syms.StringType, integer, false, false},
		{"upcast", integer, f.syms.NumberType, true, false},
		{"downcast", f.syms.NumberType, integer, true, false},
		{"object to parameterized", f.syms.ObjectType, f.boxOf(f.syms.StringType), true, true},
		{"object to unbounded wildcard", f.syms.ObjectType, f.boxOf(unbound()), true, false},
		{"provably distinct arguments", f.boxOf(f.syms.StringType), f.boxOf(integer), false, false},
		{"type variable to class", f.tv, f.syms.StringType, true, false},
		{"array to array", ty.MakeArrayType(f.syms.ObjectType), ty.MakeArrayType(f.syms.StringType), true, false},
		{"primitive arrays", ty.MakeArrayType(f.syms.IntType), ty.MakeArrayType(f.syms.LongType), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warn := ty.IsCastable(tt.x, tt.s)
			if got != tt.want {
				t.Fatalf("Expected IsCastable(%s, %s) = %v, got %v", tt.x, tt.s, tt.want, got)
			}
			if warn.Has(WarnUnchecked) != tt.unchecked {
				t.Errorf("Expected unchecked = %v, got %s", tt.unchecked, warn)
			}
		})
	}
}

func TestSealedCastability(t *testing.T) {
	f := newFixture()
	ty := f.types
	iface := code.Public | code.Interface | code.Abstract

	shape := f.class("Shape", iface|code.Sealed, nil)
	circle := f.class("Circle", code.Public|code.Final, nil, shape.RawClassType())
	square := f.class("Square", code.Public|code.Final, nil, shape.RawClassType())
	shape.SetPermitted([]*code.ClassSymbol{circle, square})
	named := f.class("Named", iface, nil)
	plain := f.class("Plain", iface, nil)

	tests := []struct {
		name string
		x, s *code.ClassSymbol
		want bool
	}{
		{"sealed to unrelated interface", shape, named, false},
		{"open interface to unrelated interface", plain, named, true},
		{"sealed to permitted subclass", shape, circle, true},
		{"permitted subclass to sealed", circle, shape, true},
		{"sibling final classes", circle, square, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := ty.IsCastable(tt.x.RawClassType(), tt.s.RawClassType())
			if got != tt.want {
				t.Errorf("Expected IsCastable(%s, %s) = %v, got %v", tt.x, tt.s, tt.want, got)
			}
		})
	}

	if !ty.AreDisjoint(shape, named) {
		t.Errorf("Expected %s and %s to be disjoint", shape, named)
	}
	if ty.AreDisjoint(shape, circle) {
		t.Errorf("Expected %s and %s to overlap", shape, circle)
	}
}

func TestSealedWithNonFinalPermitted(t *testing.T) {
	f := newFixture()
	ty := f.types
	iface := code.Public | code.Interface | code.Abstract

	shape := f.class("Shape", iface|code.Sealed, nil)
	open := f.class("Open", code.Public|code.NonSealed, nil, shape.RawClassType())
	shape.SetPermitted([]*code.ClassSymbol{open})
	named := f.class("Named", iface, nil)

	if got, _ := ty.IsCastable(shape.RawClassType(), named.RawClassType()); !got {
		t.Errorf("Expected a non-sealed permitted subclass to admit %s", named)
	}
}

func TestDisjointTypes(t *testing.T) {
	f := newFixture()
	ty := f.types
	integer := f.integer()
	tests := []struct {
		name string
		x, s code.Type
		want bool
	}{
		{"distinct finals", f.syms.StringType, integer, true},
		{"same type", f.syms.StringType, f.syms.StringType, false},
		{"wildcard containing", extendsOf(f.syms.NumberType), integer, false},
		{"wildcard excluding", extendsOf(f.syms.NumberType), f.syms.StringType, true},
		{"unbounded wildcard", unbound(), f.syms.StringType, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ty.DisjointTypes([]code.Type{tt.x}, []code.Type{tt.s}); got != tt.want {
				t.Errorf("Expected DisjointTypes(%s, %s) = %v, got %v", tt.x, tt.s, tt.want, got)
			}
		})
	}
}

func TestSentinelsAbsorb(t *testing.T) {
	f := newFixture()
	ty := f.types

	relations := []struct {
		name string
		rel  func(x, s code.Type) bool
	}{
		{"subtype", ty.IsSubtype},
		{"same", ty.IsSameType},
		{"cast", func(x, s code.Type) bool { ok, _ := ty.IsCastable(x, s); return ok }},
		{"convert", func(x, s code.Type) bool { ok, _ := ty.IsConvertible(x, s); return ok }},
		{"assign", func(x, s code.Type) bool { ok, _ := ty.IsAssignable(x, s); return ok }},
	}
	sentinels := []code.Type{f.syms.ErrType, f.syms.UnknownType}
	others := []code.Type{
		f.syms.StringType,
		f.syms.IntType,
		ty.MakeArrayType(f.syms.StringType),
		f.tv,
		f.boxOf(f.syms.StringType),
	}
	for _, r := range relations {
		for _, sentinel := range sentinels {
			for _, other := range others {
				t.Run(r.name+" "+sentinel.String()+" "+other.String(), func(t *testing.T) {
					if !r.rel(sentinel, other) {
						t.Errorf("Expected %s(%s, %s) to hold", r.name, sentinel, other)
					}
					if !r.rel(other, sentinel) {
						t.Errorf("Expected %s(%s, %s) to hold", r.name, other, sentinel)
					}
				})
			}
		}
	}
}
