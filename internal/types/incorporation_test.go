package types

import (
	"testing"

	"github.com/orizon-lang/typecore/internal/code"
)

func TestIncorporationDetectsConflicts(t *testing.T) {
	f := newFixture()
	ty := f.types

	tests := []struct {
		name      string
		lower     code.Type
		upper     code.Type
		conflicts int
	}{
		{"compatible", f.integer(), f.syms.NumberType, 0},
		{"incompatible", f.integer(), f.syms.StringType, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ty.NewIncorporation()
			uv := in.NewVar(f.tv)
			ty.AddBound(uv, code.BoundLower, tt.lower)
			ty.AddBound(uv, code.BoundUpper, tt.upper)
			if len(in.Conflicts) != tt.conflicts {
				t.Errorf("Expected %d conflicts, got %d", tt.conflicts, len(in.Conflicts))
			}
		})
	}
}

func TestIncorporationInstantiate(t *testing.T) {
	f := newFixture()
	ty := f.types
	in := ty.NewIncorporation()
	uv := in.NewVar(f.tv)
	ty.AddBound(uv, code.BoundLower, f.integer())
	ty.AddBound(uv, code.BoundUpper, f.syms.NumberType)

	if !in.Instantiate(uv, f.integer()) {
		t.Errorf("Expected lang.Integer to satisfy the bounds")
	}
	if uv.Inst != code.Type(f.integer()) {
		t.Errorf("Expected instantiation lang.Integer, got %v", uv.Inst)
	}

	other := in.NewVar(code.NewTypeParameter("S", f.box, f.syms.ObjectType))
	ty.AddBound(other, code.BoundUpper, f.syms.NumberType)
	if in.Instantiate(other, f.syms.StringType) {
		t.Errorf("Expected lang.String to violate the upper bound lang.Number")
	}
}

func TestSubtypingRecordsInferenceBounds(t *testing.T) {
	f := newFixture()
	ty := f.types
	in := ty.NewIncorporation()
	uv := in.NewVar(f.tv)

	if !ty.IsSubtype(f.integer(), uv) {
		t.Fatalf("Expected an inference variable to accept any lower bound")
	}
	found := false
	for _, b := range uv.Bounds(code.BoundLower) {
		if ty.IsSameType(b, f.integer()) {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected lang.Integer among the lower bounds, got %v", uv.Bounds(code.BoundLower))
	}

	if len(in.Conflicts) != 0 {
		t.Errorf("Expected no conflicts yet, got %d", len(in.Conflicts))
	}

	if !ty.IsSameType(uv, f.syms.StringType) {
		t.Fatalf("Expected an inference variable to accept an equality bound")
	}
	if len(in.Conflicts) != 1 {
		t.Errorf("Expected lang.Integer and lang.String to conflict once, got %d", len(in.Conflicts))
	}
}

func TestVarInstantiatedPropagates(t *testing.T) {
	f := newFixture()
	ty := f.types
	in := ty.NewIncorporation()
	a := in.NewVar(f.tv)
	s := code.NewTypeParameter("S", f.box, f.syms.ObjectType)
	b := in.NewVar(s)

	ty.AddBound(b, code.BoundUpper, f.boxOf(f.tv))
	in.Instantiate(a, f.syms.StringType)

	found := false
	for _, x := range b.Bounds(code.BoundUpper) {
		if x.String() == "app.Box<lang.String>" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected app.Box<lang.String> among %v", b.Bounds(code.BoundUpper))
	}
}
