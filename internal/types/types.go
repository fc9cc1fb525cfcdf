// Package types implements the type algebra over the entity model of
// package code: sameness, subtyping, containment, castability, erasure,
// substitution, least upper and greatest lower bounds, capture conversion
// and functional interface descriptors.
package types

import (
	"io"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-set/v3"

	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/diagnostic"
)

// Types answers relational queries over types. It memoizes closures,
// members closures, functional descriptors and implementations; NewRound
// drops every cache at once.
type Types struct {
	syms *code.Symtab
	log  *slog.Logger
	sink diagnostic.Sink

	// Memoization
	closures     map[code.Type][]code.Type
	members      map[*code.ClassSymbol]*code.CompoundScope
	descriptors  map[*code.ClassSymbol]*descriptorEntry
	impls        map[*code.MethodSymbol]map[*code.ClassSymbol]*implEntry
	memoized     []*code.ClassType
	arraySuper   code.Type
	captureCount int

	// Recursion guards
	seenSupers   *set.Set[*code.ClassSymbol]
	seenMembers  *set.Set[*code.ClassSymbol]
	containCache *set.Set[typePair]
	mergeCache   *set.Set[typePair]
	castCache    *set.Set[typePair]
}

// Option configures a Types instance.
type Option func(*Types)

// WithLogger sets the logger used for lookup tracing.
func WithLogger(l *slog.Logger) Option {
	return func(t *Types) {
		if l != nil {
			t.log = l
		}
	}
}

// WithDiagnostics sets the sink receiving descriptor diagnostics.
func WithDiagnostics(sink diagnostic.Sink) Option {
	return func(t *Types) {
		if sink != nil {
			t.sink = sink
		}
	}
}

// New creates the algebra over the predefined symbols of syms.
func New(syms *code.Symtab, opts ...Option) *Types {
	t := &Types{
		syms: syms,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		sink: diagnostic.Discard,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.resetCaches()
	return t
}

// Symtab returns the symbol table the algebra was built over.
func (t *Types) Symtab() *code.Symtab {
	return t.syms
}

// NewRound invalidates every cache, including the supertype, interface and
// rank cells memoized on class types.
func (t *Types) NewRound() {
	for _, ct := range t.memoized {
		ct.ResetCaches()
	}
	t.resetCaches()
	t.log.Debug("type caches cleared")
}

func (t *Types) resetCaches() {
	t.closures = make(map[code.Type][]code.Type)
	t.members = make(map[*code.ClassSymbol]*code.CompoundScope)
	t.descriptors = make(map[*code.ClassSymbol]*descriptorEntry)
	t.impls = make(map[*code.MethodSymbol]map[*code.ClassSymbol]*implEntry)
	t.memoized = nil
	t.arraySuper = nil
	t.seenSupers = set.New[*code.ClassSymbol](0)
	t.seenMembers = set.New[*code.ClassSymbol](0)
	t.containCache = set.New[typePair](0)
	t.mergeCache = set.New[typePair](0)
	t.castCache = set.New[typePair](0)
}

func (t *Types) remember(ct *code.ClassType) {
	t.memoized = append(t.memoized, ct)
}

type typePair struct {
	a, b code.Type
}

func pair(a, b code.Type) typePair {
	return typePair{code.StripMetadata(a), code.StripMetadata(b)}
}

// ====== Warnings ======

// Warnings collects the lint conditions raised by a relation.
type Warnings uint8

const (
	// WarnUnchecked marks a conversion that cannot be checked at run time.
	WarnUnchecked Warnings = 1 << iota
	// WarnSilentUnchecked marks an unchecked conversion to a reifiable
	// target, which is not reported to users.
	WarnSilentUnchecked
)

// Has reports whether every warning in w2 is set.
func (w Warnings) Has(w2 Warnings) bool {
	return w&w2 == w2
}

func (w Warnings) String() string {
	var parts []string
	if w&WarnUnchecked != 0 {
		parts = append(parts, "unchecked")
	}
	if w&WarnSilentUnchecked != 0 {
		parts = append(parts, "silent-unchecked")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// warner accumulates warnings; a nil warner discards them.
type warner struct {
	w Warnings
}

func (w *warner) warn(x Warnings) {
	if w != nil {
		w.w |= x
	}
}

func (w *warner) has(x Warnings) bool {
	return w != nil && w.w&x != 0
}

// ====== Bound Helpers ======

// WildUpperBound returns the upper bound of a wildcard, looking through
// nested wildcards. Super-bounded and unbounded wildcards yield the bound
// of the formal they instantiate, or Object.
func (t *Types) WildUpperBound(x code.Type) code.Type {
	w, ok := x.(*code.WildcardType)
	if !ok {
		return x
	}
	if w.IsSuperBound() {
		if w.Bound == nil || w.Bound.Upper == nil {
			return t.syms.ObjectType
		}
		return w.Bound.Upper
	}
	return t.WildUpperBound(w.Type)
}

// WildLowerBound returns the lower bound of a wildcard: Bot for
// extends-bounded wildcards.
func (t *Types) WildLowerBound(x code.Type) code.Type {
	w, ok := x.(*code.WildcardType)
	if !ok {
		return x
	}
	if w.IsExtendsBound() {
		return code.Bot
	}
	return t.WildLowerBound(w.Type)
}

// CvarUpperBound looks through captured type variables to their upper bound.
func (t *Types) CvarUpperBound(x code.Type) code.Type {
	if tv, ok := x.(*code.TypeVar); ok && tv.Captured != nil {
		return t.CvarUpperBound(tv.Upper)
	}
	return x
}

// CvarLowerBound looks through captured type variables to their lower bound.
func (t *Types) CvarLowerBound(x code.Type) code.Type {
	if tv, ok := x.(*code.TypeVar); ok && tv.Captured != nil {
		return t.CvarLowerBound(tv.Lower)
	}
	return x
}

// SkipTypeVars follows upper bounds until a non-variable type is reached,
// capturing the result when capture is set.
func (t *Types) SkipTypeVars(x code.Type, capture bool) code.Type {
	for {
		tv, ok := x.(*code.TypeVar)
		if !ok || tv.Upper == nil {
			break
		}
		x = tv.Upper
	}
	if capture {
		return t.Capture(x)
	}
	return x
}

// ElemType returns the element type of an array, or nil.
func (t *Types) ElemType(x code.Type) code.Type {
	switch x := x.(type) {
	case *code.ArrayType:
		return x.Elem
	case *code.WildcardType:
		return t.ElemType(t.WildUpperBound(x))
	case *code.ForAll:
		return t.ElemType(x.QType)
	case *code.ErrorType:
		return x
	case *code.TypeVar:
		return t.ElemType(t.SkipTypeVars(x, false))
	}
	return nil
}

// Dimensions counts the array nesting of x.
func (t *Types) Dimensions(x code.Type) int {
	n := 0
	for {
		a, ok := x.(*code.ArrayType)
		if !ok {
			return n
		}
		n++
		x = a.Elem
	}
}

// MakeArrayType returns the array of elem.
func (t *Types) MakeArrayType(elem code.Type) code.Type {
	if elem.Tag() == code.TagVoid || elem.Tag() == code.TagPackage {
		return t.syms.ErrType
	}
	return code.NewArrayType(elem, t.syms.ArrayClass)
}

// MakeIntersectionType builds the intersection of bounds. When the first
// bound is an interface every component is taken to be one and Object is
// the implied class component.
func (t *Types) MakeIntersectionType(bounds []code.Type) *code.IntersectionType {
	allInterfaces := len(bounds) > 0 && code.IsInterface(bounds[0])
	it := code.NewIntersectionType(bounds, allInterfaces, t.syms.RootPackage)
	if bounds[0].Tag() == code.TagTypeVar {
		it.Sym.SetCachedErasure(t.syms.ObjectType)
	} else {
		it.Sym.SetCachedErasure(t.Erasure(bounds[0]))
	}
	return it
}

// MakeUnionType builds the union of alternatives.
func (t *Types) MakeUnionType(alternatives []code.Type) *code.UnionType {
	return code.NewUnionType(alternatives, t.syms.RootPackage)
}

// absorbs reports whether x is an error sentinel that makes every relation
// succeed. Class types naming a failed class count as errors.
func (t *Types) absorbs(x code.Type) bool {
	switch x := x.(type) {
	case *code.ErrorType, *code.UnknownType:
		return true
	case *code.ClassType:
		if x.Sym == nil {
			return false
		}
		_ = x.Sym.Flags()
		return x.Sym.Type().Tag() == code.TagError
	}
	return false
}

func classSymOf(x code.Type) *code.ClassSymbol {
	c, _ := x.TypeSym().(*code.ClassSymbol)
	return c
}

func isSuperOnly(x code.Type) bool {
	w, ok := x.(*code.WildcardType)
	return ok && w.Kind == code.BoundSuper
}
