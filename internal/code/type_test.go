package code

import (
	"testing"

	"github.com/orizon-lang/typecore/internal/position"
)

type fixture struct {
	syms *Symtab
	box  *ClassSymbol
	t    *TypeVar
}

func newFixture() *fixture {
	syms := NewSymtab()
	box := syms.EnterClass(syms.EnterPackage("app"), "Box", Public)
	tv := NewTypeParameter("T", box, syms.ObjectType)
	box.RawClassType().Params = []Type{tv}
	box.SetSuperclass(syms.ObjectType)
	return &fixture{syms: syms, box: box, t: tv}
}

func (f *fixture) boxOf(arg Type) *ClassType {
	return NewClassType(nil, []Type{arg}, f.box)
}

func TestTypeStrings(t *testing.T) {
	f := newFixture()
	ann := NewMetadata(&Attribute{Name: "NonNull"})

	tests := []struct {
		name     string
		typ      Type
		expected string
	}{
		{"primitive", f.syms.IntType, "int"},
		{"class", f.syms.StringType, "lang.String"},
		{"generic", f.boxOf(f.syms.StringType), "app.Box<lang.String>"},
		{"array", NewArrayType(f.syms.IntType, f.syms.ArrayClass), "int[]"},
		{"unbound", NewWildcardType(nil, BoundUnbound, f.syms.BoundClass), "?"},
		{"extends", NewWildcardType(f.syms.NumberType, BoundExtends, f.syms.BoundClass), "? extends lang.Number"},
		{"super", NewWildcardType(f.syms.IntType, BoundSuper, f.syms.BoundClass), "? super int"},
		{"typevar", f.t, "T"},
		{"annotated", f.syms.StringType.CloneWithMetadata(ann), "@NonNull lang.String"},
		{"method", NewMethodType([]Type{f.syms.IntType, f.t}, f.syms.VoidType, []Type{f.syms.ExceptionType}, f.syms.MethodClass), "(int,T)void throws lang.Exception"},
		{"forall", NewForAll([]Type{f.t}, NewMethodType(nil, f.t, nil, f.syms.MethodClass)), "<T>()T"},
		{"intersection", NewIntersectionType([]Type{f.syms.NumberType, f.syms.SerializableType}, false, f.syms.RootPackage), "lang.Number&lang.Serializable"},
		{"null", Bot, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestMetadataClone(t *testing.T) {
	f := newFixture()
	ann := NewMetadata(&Attribute{Name: "A", Pos: position.Point(position.At("a.yaml", 3, 4))})
	orig := f.boxOf(f.syms.StringType)

	annotated := orig.CloneWithMetadata(ann)
	if annotated == Type(orig) {
		t.Fatalf("Expected a new node for non-empty metadata")
	}
	if !EqualIgnoreMetadata(annotated, orig) {
		t.Errorf("Expected annotated clone to equal the original ignoring metadata")
	}
	if StripMetadata(annotated) != Type(orig) {
		t.Errorf("Expected stripping to return the original node")
	}
	if annotated.CloneWithMetadata(Metadata{}) != Type(orig) {
		t.Errorf("Expected empty metadata to return the original node")
	}
	twice := annotated.CloneWithMetadata(NewMetadata(&Attribute{Name: "B"}))
	if StripMetadata(twice) != Type(orig) {
		t.Errorf("Expected clone of clone to remember the original")
	}
	if len(annotated.Metadata().Annotations()) != 1 || !orig.Metadata().IsEmpty() {
		t.Errorf("Expected metadata on the clone only")
	}
	if got := ann.Combine(NewMetadata(&Attribute{Name: "B"})).prefix(); got != "@A @B " {
		t.Errorf("Expected combined prefix, got %q", got)
	}
	moved := ann.WithPositions(func(a *Attribute) position.Span { return position.Span{} })
	if moved.Annotations()[0].Pos.IsValid() || !ann.Annotations()[0].Pos.IsValid() {
		t.Errorf("Expected repositioning to copy attributes")
	}

	errType := f.syms.ErrType
	annotatedErr := errType.CloneWithMetadata(ann)
	if annotatedErr == Type(errType) || len(annotatedErr.Metadata().Annotations()) != 1 {
		t.Errorf("Expected an annotated copy of the error type, got %v", annotatedErr.Metadata())
	}
	if annotatedErr.Tag() != TagError || StripMetadata(annotatedErr) != Type(errType) {
		t.Errorf("Expected the copy to remain the same error type")
	}
	if !errType.Metadata().IsEmpty() {
		t.Errorf("Expected the shared error type to stay unannotated")
	}
}

func TestMapStructure(t *testing.T) {
	f := newFixture()
	str := f.syms.StringType
	integer := f.syms.BoxedClass(TagInt).RawClassType()
	nested := f.boxOf(f.boxOf(str))

	identity := func(t Type) Type { return t }
	if MapStructure(nested, identity) != Type(nested) {
		t.Errorf("Expected identity mapping to return the same node")
	}

	var replace func(Type) Type
	replace = func(t Type) Type {
		if t == Type(str) {
			return integer
		}
		return MapStructure(t, replace)
	}
	got := replace(nested)
	if got.String() != "app.Box<app.Box<lang.Integer>>" {
		t.Errorf("Expected nested replacement, got %s", got)
	}
	if nested.String() != "app.Box<app.Box<lang.String>>" {
		t.Errorf("Expected the input to stay untouched, got %s", nested)
	}

	w := NewWildcardType(str, BoundExtends, f.syms.BoundClass)
	w.Bound = f.t
	mw := replace(w).(*WildcardType)
	if mw.Bound != f.t || mw.Kind != BoundExtends || mw.Type != Type(integer) {
		t.Errorf("Expected wildcard kind and formal to survive mapping")
	}

	ann := NewMetadata(&Attribute{Name: "A"})
	annotated := f.boxOf(str).CloneWithMetadata(ann)
	if mapped := replace(annotated); len(mapped.Metadata().Annotations()) != 1 {
		t.Errorf("Expected metadata to survive mapping")
	}
	if stripped := StripAllMetadata(f.boxOf(annotated)); stripped.String() != "app.Box<app.Box<lang.String>>" {
		t.Errorf("Expected all metadata removed, got %s", stripped)
	}
}

func TestVisitor(t *testing.T) {
	f := newFixture()
	v := &tagCounter{}
	v.Default = func(t Type, n int) string { return "other" }

	tests := []struct {
		typ      Type
		expected string
	}{
		{f.syms.StringType, "class"},
		{NewArrayType(f.syms.IntType, f.syms.ArrayClass), "array"},
		{f.t, "other"},
		{f.syms.IntType, "other"},
	}
	for _, tt := range tests {
		if got := Accept[string, int](tt.typ, v, 0); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}

type tagCounter struct {
	DefaultVisitor[string, int]
}

func (tc *tagCounter) VisitClass(t *ClassType, n int) string { return "class" }
func (tc *tagCounter) VisitArray(t *ArrayType, n int) string { return "array" }

func TestPredicates(t *testing.T) {
	f := newFixture()
	raw := NewClassType(nil, nil, f.box)
	generic := f.boxOf(f.syms.StringType)
	errType := NewErrorType(f.syms.ErrSymbol, nil)

	tests := []struct {
		name     string
		got      bool
		expected bool
	}{
		{"raw", IsRaw(raw), true},
		{"declared is not raw", IsRaw(f.box.RawClassType()), false},
		{"parameterized", IsParameterized(generic), true},
		{"parameterized raw", IsParameterized(raw), false},
		{"erroneous", IsErroneous(f.boxOf(errType)), true},
		{"not erroneous", IsErroneous(generic), false},
		{"reference", IsReference(generic), true},
		{"primitive", IsPrimitive(f.syms.LongType), true},
		{"void", IsPrimitiveOrVoid(f.syms.VoidType), true},
		{"interface", IsInterface(f.syms.SerializableType), true},
		{"mentions", Mentions(f.boxOf(f.t), f.t), true},
		{"byte to char", TagByte.IsSubRangeOf(TagChar), false},
		{"char to int", TagChar.IsSubRangeOf(TagInt), true},
		{"char to short", TagChar.IsSubRangeOf(TagShort), false},
		{"int to float", TagInt.IsSubRangeOf(TagFloat), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}
}
