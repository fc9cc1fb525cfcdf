package types

import (
	"testing"

	"github.com/orizon-lang/typecore/internal/code"
)

func TestErasureKeepsConstants(t *testing.T) {
	f := newFixture()
	ty := f.types

	tests := []struct {
		name string
		typ  code.Type
		want any
	}{
		{"string constant", f.syms.StringType.WithConst("x"), "x"},
		{"int constant", f.syms.IntType.WithConst(42), 42},
		{"boolean constant", f.syms.BooleanType.WithConst(true), true},
		{"no constant", f.syms.StringType, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ty.Erasure(tt.typ)
			if got.ConstValue() != tt.want {
				t.Errorf("Expected erasure of %s to carry %v, got %v", tt.typ, tt.want, got.ConstValue())
			}
			if !code.EqualIgnoreMetadata(got, tt.typ) {
				t.Errorf("Expected %s to erase to itself, got %s", tt.typ, got)
			}
		})
	}
}

func TestErasureOfSentinels(t *testing.T) {
	f := newFixture()
	ty := f.types

	for _, x := range []code.Type{f.syms.ErrType, f.syms.UnknownType, code.NoneType, f.syms.BotType} {
		if got := ty.Erasure(x); got != x {
			t.Errorf("Expected %s to erase to itself, got %s", x, got)
		}
	}
}
