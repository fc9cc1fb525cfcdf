package code

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/orizon-lang/typecore/internal/position"
)

// ====== Symbol Interface ======

// Symbol is a named declaration. Accessors documented as completing run the
// pending completer first; failures raised there are routed to the
// failure's handler rather than returned.
type Symbol interface {
	Kind() Kind
	Name() string
	// Flags completes the symbol.
	Flags() Flags
	RawFlags() Flags
	SetFlags(f Flags)
	AddFlags(f Flags)
	Type() Type
	SetType(t Type)
	Owner() Symbol
	Completer() Completer
	SetCompleter(c Completer)
	// Complete runs the pending completer. Only the call that ran the
	// completer can return its failure.
	Complete() error
	IsCompleted() bool
	State() CompletionState
	// Members completes the symbol.
	Members() *Scope
	RawMembers() *Scope
	SymbolMetadata() *SymbolMetadata
	QualifiedName() string
	String() string

	IsMemberOf(clazz *ClassSymbol, rel Relations) bool
	IsAccessibleIn(clazz Symbol, rel Relations) bool
	IsInheritedIn(clazz Symbol, rel Relations) bool
	HiddenIn(clazz *ClassSymbol, rel Relations) bool

	base() *symbolBase
}

// Relations is the slice of the type algebra that symbol queries need.
type Relations interface {
	SameTypeOracle
	Supertype(t Type) Type
	Interfaces(t Type) []Type
	AsSuper(t Type, sym Symbol) Type
	MemberType(t Type, sym Symbol) Type
	IsSubSignature(t, s Type) bool
	ReturnTypeSubstitutable(r1, r2 Type) bool
	ResultSubtype(t, s Type) bool
}

// SymbolMetadata holds declaration and type-use annotations of a symbol.
type SymbolMetadata struct {
	Declarations   []*Attribute
	TypeAttributes []*Attribute
}

// IsEmpty reports whether no annotations are recorded.
func (m *SymbolMetadata) IsEmpty() bool {
	return m == nil || len(m.Declarations) == 0 && len(m.TypeAttributes) == 0
}

type symbolBase struct {
	self      Symbol
	owner     Symbol
	typ       Type
	completer Completer
	members   *Scope
	meta      *SymbolMetadata
	name      string
	Pos       position.Span
	flags     Flags
	kind      Kind
	state     CompletionState
}

func (s *symbolBase) base() *symbolBase { return s }

func (s *symbolBase) Kind() Kind         { return s.kind }
func (s *symbolBase) Name() string       { return s.name }
func (s *symbolBase) RawFlags() Flags    { return s.flags }
func (s *symbolBase) SetFlags(f Flags)   { s.flags = f }
func (s *symbolBase) AddFlags(f Flags)   { s.flags |= f }
func (s *symbolBase) Type() Type         { return s.typ }
func (s *symbolBase) SetType(t Type)     { s.typ = t }
func (s *symbolBase) Owner() Symbol      { return s.owner }
func (s *symbolBase) RawMembers() *Scope { return s.members }
func (s *symbolBase) Completer() Completer {
	return s.completer
}

func (s *symbolBase) Flags() Flags {
	s.completeAccess()
	return s.flags
}

func (s *symbolBase) Members() *Scope {
	s.completeAccess()
	return s.members
}

// SetCompleter installs c. A non-terminal completer turns the symbol back
// into a stub.
func (s *symbolBase) SetCompleter(c Completer) {
	s.completer = c
	if c != nil && !c.IsTerminal() {
		s.state = StateStub
	}
}

func (s *symbolBase) IsCompleted() bool {
	return s.completer == nil || s.completer.IsTerminal()
}

func (s *symbolBase) State() CompletionState {
	return s.state
}

func (s *symbolBase) SymbolMetadata() *SymbolMetadata {
	if s.meta == nil {
		s.meta = &SymbolMetadata{}
	}
	return s.meta
}

func (s *symbolBase) QualifiedName() string { return s.name }
func (s *symbolBase) String() string        { return s.self.QualifiedName() }

func (s *symbolBase) Complete() error {
	return s.complete(nil)
}

// complete swaps the completer for NoCompleter before running it, so
// re-entrant requests observe a symbol in progress and return at once.
func (s *symbolBase) complete(onFailure func(cf *CompletionFailure)) error {
	c := s.completer
	if c == nil || c.IsTerminal() {
		return nil
	}
	s.completer = NoCompleter
	s.state = StateCompleting
	if err := c.Complete(s.self); err != nil {
		cf := failureFor(s.self, err)
		s.state = StateFailed
		if onFailure != nil {
			onFailure(cf)
		}
		return cf
	}
	s.state = StateComplete
	return nil
}

func (s *symbolBase) completeAccess() {
	if err := s.self.Complete(); err != nil {
		if cf, ok := AsCompletionFailure(err); ok && cf.Handler != nil {
			cf.Handler.HandleCompletionFailure(cf)
		}
	}
}

// IsMemberOf reports whether the symbol is a member of clazz, declared or
// inherited and not hidden.
func (s *symbolBase) IsMemberOf(clazz *ClassSymbol, rel Relations) bool {
	if s.owner == Symbol(clazz) {
		return true
	}
	owner, ok := s.owner.(*ClassSymbol)
	if !ok {
		return false
	}
	return clazz.IsSubClass(owner, rel) && s.self.IsInheritedIn(clazz, rel) && !s.self.HiddenIn(clazz, rel)
}

func (s *symbolBase) IsInheritedIn(clazz Symbol, rel Relations) bool {
	return s.self.IsAccessibleIn(clazz, rel)
}

// IsAccessibleIn reports whether the symbol is accessible from clazz.
// Package-private members are accessible only while every class between
// clazz and the owner lives in the owner's package.
func (s *symbolBase) IsAccessibleIn(clazz Symbol, rel Relations) bool {
	switch s.flags & AccessFlags {
	case Private:
		return s.owner == clazz
	case Protected:
		return clazz.Flags()&Interface == 0
	case 0:
		pkg := PackageOf(s.self)
		for sup := clazz; sup != nil && sup != s.owner; {
			for sup != nil && sup.Type() != nil && sup.Type().Tag() == TagTypeVar {
				sup = sup.Type().UpperBound().TypeSym()
			}
			if sup == nil {
				break
			}
			if IsErroneous(sup.Type()) {
				return true
			}
			if sup.Flags()&Compound == 0 && PackageOf(sup) != pkg {
				return false
			}
			st := rel.Supertype(sup.Type())
			if st == nil {
				break
			}
			sup = st.TypeSym()
		}
		return clazz.Flags()&Interface == 0
	default:
		return true
	}
}

// HiddenIn reports whether another declaration visible from clazz hides
// the symbol.
func (s *symbolBase) HiddenIn(clazz *ClassSymbol, rel Relations) bool {
	sym := s.hiddenInInternal(clazz, rel, make(map[*ClassSymbol]bool))
	return sym != nil && sym != s.self
}

func (s *symbolBase) hiddenInInternal(current *ClassSymbol, rel Relations, seen map[*ClassSymbol]bool) Symbol {
	if s.owner == Symbol(current) {
		return s.self
	}
	if seen[current] {
		return nil
	}
	seen[current] = true
	for _, sym := range current.Members().LookupAll(s.name, nil) {
		if sym.Kind() != s.kind {
			continue
		}
		if s.kind != KindMethod || sym.Flags()&Static != 0 && rel.IsSubSignature(sym.Type(), s.typ) {
			return sym
		}
	}
	var hidden Symbol
	supers := append([]Type{rel.Supertype(current.Type())}, rel.Interfaces(current.Type())...)
	for _, st := range supers {
		if st == nil || st.Tag() != TagClass {
			continue
		}
		next := st.(*ClassType).Sym
		if next == nil {
			continue
		}
		sym := s.hiddenInInternal(next, rel, seen)
		if sym == s.self {
			return s.self
		} else if sym != nil {
			hidden = sym
		}
	}
	return hidden
}

// ====== Owner Chains ======

// PackageOf returns the package enclosing sym, or nil for modules.
func PackageOf(sym Symbol) *PackageSymbol {
	for s := sym; s != nil; s = s.Owner() {
		if p, ok := s.(*PackageSymbol); ok {
			return p
		}
	}
	return nil
}

// EnclosingClass returns the innermost class enclosing sym, sym included.
func EnclosingClass(sym Symbol) *ClassSymbol {
	for s := sym; s != nil; s = s.Owner() {
		if c, ok := s.(*ClassSymbol); ok && c.kind == KindClass {
			return c
		}
	}
	return nil
}

// OutermostClass returns the top-level class enclosing sym.
func OutermostClass(sym Symbol) *ClassSymbol {
	var out *ClassSymbol
	for s := sym; s != nil; s = s.Owner() {
		if c, ok := s.(*ClassSymbol); ok && c.kind == KindClass {
			out = c
		}
	}
	return out
}

// ====== Modules and Packages ======

// ModuleRequire is one requires directive of a module.
type ModuleRequire struct {
	Module     *ModuleSymbol
	Constraint *semver.Constraints
	Transitive bool
}

// ModuleSymbol is a named module. Version is nil for unversioned modules.
type ModuleSymbol struct {
	symbolBase
	Version  *semver.Version
	Requires []ModuleRequire
	Exports  []*PackageSymbol
	Packages []*PackageSymbol
}

// NewModuleSymbol creates a module.
func NewModuleSymbol(name string, version *semver.Version) *ModuleSymbol {
	m := &ModuleSymbol{Version: version}
	m.symbolBase = symbolBase{self: m, name: name, kind: KindModule}
	m.typ = &ModuleType{Sym: m}
	m.members = NewScope(m)
	return m
}

// UnsatisfiedRequires lists the requires whose target version violates
// its constraint. Unversioned targets satisfy every constraint.
func (m *ModuleSymbol) UnsatisfiedRequires() []ModuleRequire {
	var out []ModuleRequire
	for _, r := range m.Requires {
		if r.Constraint == nil || r.Module == nil || r.Module.Version == nil {
			continue
		}
		if !r.Constraint.Check(r.Module.Version) {
			out = append(out, r)
		}
	}
	return out
}

// IsExported reports whether pkg is exported by the module.
func (m *ModuleSymbol) IsExported(pkg *PackageSymbol) bool {
	for _, p := range m.Exports {
		if p == pkg {
			return true
		}
	}
	return false
}

// PackageSymbol is a package. Its members are the top-level classes and
// subpackages.
type PackageSymbol struct {
	symbolBase
	Module   *ModuleSymbol
	fullName string
}

// NewPackageSymbol creates a package owned by owner, the parent package.
func NewPackageSymbol(name string, owner *PackageSymbol) *PackageSymbol {
	p := &PackageSymbol{}
	p.symbolBase = symbolBase{self: p, name: name, kind: KindPackage}
	if owner != nil {
		p.owner = owner
		p.Module = owner.Module
	}
	p.fullName = formFullName(name, p.owner)
	p.typ = &PackageType{Sym: p}
	p.members = NewScope(p)
	return p
}

func (p *PackageSymbol) QualifiedName() string { return p.fullName }

// IsUnnamed reports whether p is the root package.
func (p *PackageSymbol) IsUnnamed() bool { return p.fullName == "" }

func formFullName(name string, owner Symbol) string {
	if owner == nil {
		return name
	}
	switch owner.Kind() {
	case KindVar, KindMethod, KindTypeVar:
		return name
	}
	prefix := owner.QualifiedName()
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func formFlatName(name string, owner Symbol) string {
	if owner == nil {
		return name
	}
	switch o := owner.(type) {
	case *ClassSymbol:
		return o.flatName + "$" + name
	case *PackageSymbol:
		return formFullName(name, owner)
	}
	if c := EnclosingClass(owner); c != nil {
		return c.flatName + "$1" + name
	}
	return name
}

// ====== Classes ======

// ClassSymbol is a class or interface. Its declared type is the generic
// ClassType whose arguments are the class's own type variables.
type ClassSymbol struct {
	symbolBase
	declared      *ClassType
	superclass    Type
	interfaces    []Type
	permitted     []*ClassSymbol
	erasure       Type
	failure       *CompletionFailure
	fullName      string
	flatName      string
	SourceFile    string
	hasInterfaces bool
}

// NewClassSymbol creates a complete class symbol with an empty member table.
func NewClassSymbol(flags Flags, name string, owner Symbol) *ClassSymbol {
	c := &ClassSymbol{}
	c.symbolBase = symbolBase{self: c, owner: owner, name: name, flags: flags, kind: KindClass}
	c.declared = NewClassType(NoneType, nil, c)
	c.typ = c.declared
	c.members = NewScope(c)
	c.fullName = formFullName(name, owner)
	c.flatName = formFlatName(name, owner)
	return c
}

func (c *ClassSymbol) QualifiedName() string { return c.fullName }

// FlatName returns the binary name: nested classes are joined with '$'.
func (c *ClassSymbol) FlatName() string { return c.flatName }

// Complete runs the pending completer. On failure the symbol is left public,
// static and abstract with an error type and no members or supertypes.
func (c *ClassSymbol) Complete() error {
	return c.complete(c.markFailed)
}

func (c *ClassSymbol) markFailed(cf *CompletionFailure) {
	c.flags |= Public | Static | Abstract
	c.typ = NewErrorType(c, c.declared)
	c.members.Clear()
	c.superclass = nil
	c.interfaces = nil
	c.hasInterfaces = true
	c.permitted = nil
	c.erasure = nil
	c.failure = cf
}

// Failure returns the failure recorded by the last completion, if any.
func (c *ClassSymbol) Failure() *CompletionFailure { return c.failure }

// ClassType returns the declared type. It completes the symbol.
func (c *ClassSymbol) ClassType() *ClassType {
	c.completeAccess()
	return c.declared
}

// RawClassType returns the declared type without completing.
func (c *ClassSymbol) RawClassType() *ClassType { return c.declared }

// TypeParameters returns the declared type variables. It completes.
func (c *ClassSymbol) TypeParameters() []Type {
	c.completeAccess()
	return c.declared.Params
}

// DeclaredAllParams returns the type variables of the class and of every
// enclosing class. It completes.
func (c *ClassSymbol) DeclaredAllParams() []Type {
	c.completeAccess()
	return c.declared.AllParams()
}

// Superclass returns the declared superclass or NoneType. It completes.
func (c *ClassSymbol) Superclass() Type {
	c.completeAccess()
	if c.superclass == nil {
		return NoneType
	}
	return c.superclass
}

func (c *ClassSymbol) SetSuperclass(t Type) { c.superclass = t }

// Interfaces returns the declared superinterfaces. It completes.
func (c *ClassSymbol) Interfaces() []Type {
	c.completeAccess()
	return c.interfaces
}

func (c *ClassSymbol) SetInterfaces(is []Type) {
	c.interfaces = is
	c.hasInterfaces = true
}

// Permitted returns the permitted direct subclasses of a sealed class.
func (c *ClassSymbol) Permitted() []*ClassSymbol {
	c.completeAccess()
	return c.permitted
}

func (c *ClassSymbol) SetPermitted(ps []*ClassSymbol) { c.permitted = ps }

func (c *ClassSymbol) AddPermitted(p *ClassSymbol) { c.permitted = append(c.permitted, p) }

// CachedErasure returns the memoized erasure of the declared type.
func (c *ClassSymbol) CachedErasure() Type { return c.erasure }

func (c *ClassSymbol) SetCachedErasure(t Type) { c.erasure = t }

// IsSubClass reports whether c inherits from base. Compound classes
// inherit from base when any component does.
func (c *ClassSymbol) IsSubClass(base Symbol, rel Relations) bool {
	if Symbol(c) == base {
		return true
	}
	if it, ok := c.typ.(*IntersectionType); ok {
		for _, comp := range it.Components {
			if sub, ok := comp.TypeSym().(*ClassSymbol); ok && sub.IsSubClass(base, rel) {
				return true
			}
		}
		return false
	}
	if base.Flags()&Interface != 0 {
		for t := Type(c.ClassType()); t != nil && t.Tag() == TagClass; t = rel.Supertype(t) {
			for _, is := range rel.Interfaces(t) {
				if sub, ok := is.TypeSym().(*ClassSymbol); ok && sub.IsSubClass(base, rel) {
					return true
				}
			}
		}
		return false
	}
	for t := Type(c.ClassType()); t != nil && t.Tag() == TagClass; t = rel.Supertype(t) {
		if t.TypeSym() == base {
			return true
		}
	}
	return false
}

// Reset returns the symbol to a stub for a new round. Identity is kept so
// existing references observe the re-completed state.
func (c *ClassSymbol) Reset(completer Completer) {
	c.flags = 0
	c.declared.Outer = NoneType
	c.declared.Params = nil
	c.declared.ResetCaches()
	c.typ = c.declared
	c.members.Clear()
	c.superclass = nil
	c.interfaces = nil
	c.hasInterfaces = false
	c.permitted = nil
	c.erasure = nil
	c.failure = nil
	c.meta = nil
	c.completer = nil
	c.state = StateComplete
	c.SetCompleter(completer)
}

// Rebind moves the class under a new owner and name, updating the member
// tables of both owners.
func (c *ClassSymbol) Rebind(owner Symbol, name string) {
	if c.owner != nil && c.owner.RawMembers() != nil {
		c.owner.RawMembers().Remove(c)
	}
	c.owner = owner
	c.name = name
	c.fullName = formFullName(name, owner)
	c.flatName = formFlatName(name, owner)
	if owner != nil && owner.RawMembers() != nil {
		owner.RawMembers().Enter(c)
	}
}

// ====== Variables and Methods ======

// VarKind classifies variables.
type VarKind int

const (
	VarField VarKind = iota
	VarLocal
	VarParameter
	VarRecordComponent
	VarBinding
)

func (k VarKind) String() string {
	switch k {
	case VarField:
		return "field"
	case VarLocal:
		return "local"
	case VarParameter:
		return "parameter"
	case VarRecordComponent:
		return "record component"
	case VarBinding:
		return "binding"
	default:
		return "unknown"
	}
}

// VarSymbol is a field, local, parameter or pattern binding.
type VarSymbol struct {
	symbolBase
	Const   any
	VarKind VarKind
	Adr     int
}

// NewVarSymbol creates a variable.
func NewVarSymbol(flags Flags, name string, typ Type, owner Symbol) *VarSymbol {
	v := &VarSymbol{Adr: -1}
	v.symbolBase = symbolBase{self: v, owner: owner, name: name, typ: typ, flags: flags, kind: KindVar}
	return v
}

// MethodKind classifies method symbols.
type MethodKind int

const (
	MethodOrdinary MethodKind = iota
	MethodConstructor
	MethodOperator
	MethodHandle
	MethodDynamic
)

func (k MethodKind) String() string {
	switch k {
	case MethodOrdinary:
		return "method"
	case MethodConstructor:
		return "constructor"
	case MethodOperator:
		return "operator"
	case MethodHandle:
		return "method handle"
	case MethodDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// OperatorInfo describes a built-in operator.
type OperatorInfo struct {
	Opcode int
}

// HandleInfo describes a constant method handle.
type HandleInfo struct {
	Target  Symbol
	RefKind int
}

// DynamicInfo describes a call site linked by a bootstrap method.
type DynamicInfo struct {
	Bootstrap  *MethodSymbol
	StaticArgs []any
}

// ConstructorName is the name shared by every constructor.
const ConstructorName = "<init>"

// MethodSymbol is a method, constructor or operator.
type MethodSymbol struct {
	symbolBase
	DefaultValue any
	Code         any
	Operator     *OperatorInfo
	Handle       *HandleInfo
	Dynamic      *DynamicInfo
	Params       []*VarSymbol
	MethodKind   MethodKind
}

// NewMethodSymbol creates a method. typ is a MethodType or ForAll.
func NewMethodSymbol(flags Flags, name string, typ Type, owner Symbol) *MethodSymbol {
	m := &MethodSymbol{}
	m.symbolBase = symbolBase{self: m, owner: owner, name: name, typ: typ, flags: flags, kind: KindMethod}
	if name == ConstructorName {
		m.MethodKind = MethodConstructor
	}
	return m
}

func (m *MethodSymbol) IsConstructor() bool { return m.name == ConstructorName }

func (m *MethodSymbol) String() string {
	if m.typ == nil {
		return m.name + "()"
	}
	return m.name + "(" + TypeList(m.typ.ParameterTypes()) + ")"
}

// IsInheritedIn refines the inherited-member rule for static interface
// methods, which are never inherited.
func (m *MethodSymbol) IsInheritedIn(clazz Symbol, rel Relations) bool {
	if m.flags&AccessFlags == Public {
		return m.owner.Flags()&Interface == 0 || clazz == m.owner || m.flags&Static == 0
	}
	return m.symbolBase.IsInheritedIn(clazz, rel)
}

// IsOverridableIn reports whether a subclass of origin can override m.
func (m *MethodSymbol) IsOverridableIn(origin Symbol) bool {
	switch m.flags & AccessFlags {
	case Private:
		return false
	case Public:
		return m.owner.Flags()&Interface == 0 || m.flags&Static == 0
	case Protected:
		return origin.Flags()&Interface == 0
	case 0:
		return origin.Flags()&Interface == 0 && PackageOf(m) == PackageOf(origin)
	default:
		return false
	}
}

// Overrides reports whether m overrides other as seen from origin, either
// directly or through an implementation inherited into origin.
func (m *MethodSymbol) Overrides(other Symbol, origin *ClassSymbol, rel Relations, checkResult, requireConcreteIfInherited bool) bool {
	o, ok := other.(*MethodSymbol)
	if m.IsConstructor() || !ok {
		return false
	}
	if m == o {
		return true
	}
	owner := m.owner
	if o.IsOverridableIn(owner) && rel.AsSuper(owner.Type(), o.owner) != nil {
		mt := rel.MemberType(owner.Type(), m)
		ot := rel.MemberType(owner.Type(), o)
		if rel.IsSubSignature(mt, ot) {
			if !checkResult || rel.ReturnTypeSubstitutable(mt, ot) {
				return true
			}
		}
	}
	if m.Flags()&Abstract != 0 && requireConcreteIfInherited ||
		o.Flags()&(Abstract|Default) == 0 ||
		!o.IsOverridableIn(origin) ||
		!m.IsMemberOf(origin, rel) {
		return false
	}
	mt := rel.MemberType(origin.Type(), m)
	ot := rel.MemberType(origin.Type(), o)
	return rel.IsSubSignature(mt, ot) && (!checkResult || rel.ResultSubtype(mt, ot))
}

// ====== Type Variables ======

// TypeVariableSymbol declares a type parameter of a class or method.
type TypeVariableSymbol struct {
	symbolBase
}

// NewTypeVariableSymbol creates the symbol; its type is set separately.
func NewTypeVariableSymbol(flags Flags, name string, owner Symbol) *TypeVariableSymbol {
	s := &TypeVariableSymbol{}
	s.symbolBase = symbolBase{self: s, owner: owner, name: name, flags: flags, kind: KindTypeVar}
	return s
}

// TypeVar returns the declared type variable.
func (s *TypeVariableSymbol) TypeVar() *TypeVar {
	tv, _ := s.typ.(*TypeVar)
	return tv
}

// NewTypeParameter declares a type parameter named name with the given
// upper bound, which may be nil and set later.
func NewTypeParameter(name string, owner Symbol, upper Type) *TypeVar {
	sym := NewTypeVariableSymbol(0, name, owner)
	tv := NewTypeVar(sym, upper, nil)
	sym.typ = tv
	return tv
}

// Describe renders kind and name, for example "class app.Box".
func Describe(sym Symbol) string {
	var sb strings.Builder
	switch s := sym.(type) {
	case *ClassSymbol:
		if s.flags&Interface != 0 {
			sb.WriteString("interface ")
		} else {
			sb.WriteString("class ")
		}
	case *MethodSymbol:
		sb.WriteString(s.MethodKind.String())
		sb.WriteString(" ")
	default:
		sb.WriteString(sym.Kind().String())
		sb.WriteString(" ")
	}
	sb.WriteString(sym.String())
	return sb.String()
}
