package types

import (
	"testing"

	"github.com/orizon-lang/typecore/internal/code"
)

func TestLubOfParameterizedBoxes(t *testing.T) {
	f := newFixture()
	ty := f.types

	got, ok := ty.Lub(f.boxOf(f.syms.StringType), f.boxOf(f.integer())).(*code.ClassType)
	if !ok {
		t.Fatalf("Expected a class type")
	}
	if got.Sym != f.box {
		t.Fatalf("Expected app.Box, got %s", got.Sym)
	}
	w, ok := got.Params[0].(*code.WildcardType)
	if !ok || w.Kind != code.BoundExtends {
		t.Fatalf("Expected an extends wildcard, got %s", got.Params[0])
	}
	want := ty.Lub(f.syms.StringType, f.integer())
	if !ty.IsSameType(w.Type, want) {
		t.Errorf("Expected wildcard bound %s, got %s", want, w.Type)
	}
	const rendered = "app.Box<? extends lang.Serializable&lang.Comparable<? extends lang.Serializable&lang.Comparable<?>>>"
	if got.String() != rendered {
		t.Errorf("Expected %s, got %s", rendered, got)
	}
}

func TestLub(t *testing.T) {
	f := newFixture()
	ty := f.types
	integer := f.integer()
	long := f.boxed(code.TagLong)

	tests := []struct {
		name string
		ts   []code.Type
		want code.Type
	}{
		{"subtype absorbed", []code.Type{integer, f.syms.NumberType}, f.syms.NumberType},
		{"same type", []code.Type{integer, integer}, integer},
		{"null and string", []code.Type{code.Bot, f.syms.StringType}, f.syms.StringType},
		{"sibling boxes", []code.Type{integer, long}, nil},
		{"primitive arrays", []code.Type{ty.MakeArrayType(f.syms.IntType), ty.MakeArrayType(f.syms.LongType)}, ty.ArraySuperType()},
		{"reference arrays", []code.Type{ty.MakeArrayType(integer), ty.MakeArrayType(f.syms.NumberType)}, ty.MakeArrayType(f.syms.NumberType)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ty.Lub(tt.ts...)
			for _, x := range tt.ts {
				if !ty.IsSubtype(x, got) {
					t.Errorf("Expected %s to be a subtype of the lub %s", x, got)
				}
			}
			if tt.want != nil && !ty.IsSameType(got, tt.want) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLubCommutes(t *testing.T) {
	f := newFixture()
	ty := f.types
	pairs := [][2]code.Type{
		{f.syms.StringType, f.integer()},
		{f.integer(), f.boxed(code.TagLong)},
		{f.boxOf(f.syms.StringType), f.boxOf(f.integer())},
	}
	for _, p := range pairs {
		ab := ty.Lub(p[0], p[1])
		ba := ty.Lub(p[1], p[0])
		if !ty.IsSameType(ab, ba) {
			t.Errorf("Expected lub(%s, %s) = lub(%s, %s), got %s and %s", p[0], p[1], p[1], p[0], ab, ba)
		}
	}
}

func TestLubRejectsPrimitives(t *testing.T) {
	f := newFixture()
	ty := f.types
	if got := ty.Lub(f.syms.IntType, f.integer()); !code.IsErroneous(got) {
		t.Errorf("Expected an error type, got %s", got)
	}
}

func TestSiblingBoxesLub(t *testing.T) {
	f := newFixture()
	ty := f.types
	got := ty.Lub(f.integer(), f.boxed(code.TagLong))
	if !ty.IsSubtype(got, f.syms.NumberType) {
		t.Errorf("Expected the lub of two number boxes to be a number, got %s", got)
	}
}

func TestGlb(t *testing.T) {
	f := newFixture()
	ty := f.types
	comparableOfString := code.NewClassType(nil, []code.Type{f.syms.StringType}, f.syms.ComparableType.Sym)

	if got := ty.Glb(f.integer(), f.syms.NumberType); !ty.IsSameType(got, f.integer()) {
		t.Errorf("Expected lang.Integer, got %s", got)
	}
	if got := ty.Glb(f.syms.NumberType, f.syms.SerializableType); !ty.IsSameType(got, f.syms.NumberType) {
		t.Errorf("Expected lang.Number, got %s", got)
	}
	if got := ty.Glb(f.syms.StringType, f.integer()); !code.IsErroneous(got) {
		t.Errorf("Expected an error type for two unrelated classes, got %s", got)
	}

	both := ty.Glb(comparableOfString, f.syms.CharSequenceType)
	if !code.IsCompound(both) {
		t.Fatalf("Expected an intersection, got %s", both)
	}
	for _, s := range []code.Type{comparableOfString, f.syms.CharSequenceType} {
		if !ty.IsSubtype(both, s) {
			t.Errorf("Expected %s to be a subtype of %s", both, s)
		}
	}
}

func TestGlbLubDuality(t *testing.T) {
	f := newFixture()
	ty := f.types
	pairs := [][2]code.Type{
		{f.integer(), f.syms.NumberType},
		{f.syms.StringType, f.syms.CharSequenceType},
	}
	for _, p := range pairs {
		glb := ty.Glb(p[0], p[1])
		lub := ty.Lub(p[0], p[1])
		for _, x := range p {
			if !ty.IsSubtype(glb, x) {
				t.Errorf("Expected glb %s to be below %s", glb, x)
			}
			if !ty.IsSubtype(x, lub) {
				t.Errorf("Expected %s to be below lub %s", x, lub)
			}
		}
	}
}
