package code

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/orizon-lang/typecore/internal/diagnostic"
)

// LangPackage is the package holding the predefined classes.
const LangPackage = "lang"

// Symtab owns the predefined symbols and types and the registries of
// every module, package and class entered so far. It also records the
// completion failures routed to it.
type Symtab struct {
	RootPackage   *PackageSymbol
	UnnamedModule *ModuleSymbol
	Lang          *PackageSymbol

	ByteType    *PrimitiveType
	CharType    *PrimitiveType
	ShortType   *PrimitiveType
	IntType     *PrimitiveType
	LongType    *PrimitiveType
	FloatType   *PrimitiveType
	DoubleType  *PrimitiveType
	BooleanType *PrimitiveType
	VoidType    *PrimitiveType

	BotType     Type
	NoType      Type
	UnknownType Type
	ErrSymbol   *ClassSymbol
	ErrType     *ErrorType

	ObjectType           *ClassType
	StringType           *ClassType
	CharSequenceType     *ClassType
	CloneableType        *ClassType
	SerializableType     *ClassType
	ComparableType       *ClassType
	NumberType           *ClassType
	ThrowableType        *ClassType
	ExceptionType        *ClassType
	RuntimeExceptionType *ClassType
	ErrorClassType       *ClassType

	ArrayClass  *ClassSymbol
	MethodClass *ClassSymbol
	BoundClass  *ClassSymbol

	// Sink receives a diagnostic per recorded completion failure.
	Sink diagnostic.Sink

	packages   map[string]*PackageSymbol
	classes    map[string]*ClassSymbol
	byFullName map[string]*ClassSymbol
	modules    map[string]*ModuleSymbol
	boxes      map[TypeTag]*ClassSymbol
	unboxes    map[*ClassSymbol]*PrimitiveType
	predefined map[*ClassSymbol]bool
	failures   []*CompletionFailure
}

// NewSymtab creates a symbol table holding the predefined classes.
func NewSymtab() *Symtab {
	s := &Symtab{
		packages:   make(map[string]*PackageSymbol),
		classes:    make(map[string]*ClassSymbol),
		byFullName: make(map[string]*ClassSymbol),
		modules:    make(map[string]*ModuleSymbol),
		boxes:      make(map[TypeTag]*ClassSymbol),
		unboxes:    make(map[*ClassSymbol]*PrimitiveType),
		predefined: make(map[*ClassSymbol]bool),
		Sink:       diagnostic.Discard,
	}

	s.UnnamedModule = NewModuleSymbol("", nil)
	s.RootPackage = NewPackageSymbol("", nil)
	s.RootPackage.Module = s.UnnamedModule
	s.packages[""] = s.RootPackage

	s.ByteType = NewPrimitiveType(TagByte)
	s.CharType = NewPrimitiveType(TagChar)
	s.ShortType = NewPrimitiveType(TagShort)
	s.IntType = NewPrimitiveType(TagInt)
	s.LongType = NewPrimitiveType(TagLong)
	s.FloatType = NewPrimitiveType(TagFloat)
	s.DoubleType = NewPrimitiveType(TagDouble)
	s.BooleanType = NewPrimitiveType(TagBoolean)
	s.VoidType = NewPrimitiveType(TagVoid)
	s.BotType = Bot
	s.NoType = NoneType
	s.UnknownType = Unknown

	s.ErrSymbol = NewClassSymbol(Public|Static|Acyclic, "<any>", s.RootPackage)
	s.ErrSymbol.kind = KindError
	s.ErrType = NewErrorType(s.ErrSymbol, NoneType)
	s.ErrSymbol.typ = s.ErrType

	s.MethodClass = NewClassSymbol(Public|Acyclic, "Method", s.RootPackage)
	s.BoundClass = NewClassSymbol(Public|Acyclic, "Bound", s.RootPackage)

	s.Lang = s.EnterPackage(LangPackage)
	s.enterPredefined()
	return s
}

func (s *Symtab) enterPredefined() {
	object := s.predef("Object", Public)
	s.ObjectType = object.declared

	iface := Public | Interface | Abstract
	s.SerializableType = s.predef("Serializable", iface).declared
	s.CloneableType = s.predef("Cloneable", iface).declared
	s.CharSequenceType = s.predef("CharSequence", iface).declared

	comparable := s.predef("Comparable", iface)
	comparable.declared.Params = []Type{NewTypeParameter("T", comparable, s.ObjectType)}
	s.ComparableType = comparable.declared

	str := s.predef("String", Public|Final)
	str.superclass = s.ObjectType
	str.SetInterfaces([]Type{s.SerializableType, s.comparableOf(str.declared), s.CharSequenceType})
	s.StringType = str.declared

	bool1 := s.methodType(nil, s.BooleanType)
	object.members.Enter(NewMethodSymbol(Public, "equals", s.methodType([]Type{s.ObjectType}, s.BooleanType), object))
	object.members.Enter(NewMethodSymbol(Public|Native, "hashCode", s.methodType(nil, s.IntType), object))
	object.members.Enter(NewMethodSymbol(Public, "toString", s.methodType(nil, s.StringType), object))
	object.members.Enter(NewMethodSymbol(Protected|Native, "clone", s.methodType(nil, s.ObjectType), object))
	str.members.Enter(NewMethodSymbol(Public, "isEmpty", bool1, str))
	str.members.Enter(NewMethodSymbol(Public, "length", s.methodType(nil, s.IntType), str))

	number := s.predef("Number", Public|Abstract)
	number.superclass = s.ObjectType
	number.SetInterfaces([]Type{s.SerializableType})
	s.NumberType = number.declared

	boxes := []struct {
		name string
		prim *PrimitiveType
		sup  *ClassType
	}{
		{"Byte", s.ByteType, s.NumberType},
		{"Short", s.ShortType, s.NumberType},
		{"Integer", s.IntType, s.NumberType},
		{"Long", s.LongType, s.NumberType},
		{"Float", s.FloatType, s.NumberType},
		{"Double", s.DoubleType, s.NumberType},
		{"Character", s.CharType, s.ObjectType},
		{"Boolean", s.BooleanType, s.ObjectType},
	}
	for _, b := range boxes {
		c := s.predef(b.name, Public|Final)
		c.superclass = b.sup
		c.SetInterfaces([]Type{s.SerializableType, s.comparableOf(c.declared)})
		s.boxes[b.prim.Tag()] = c
		s.unboxes[c] = b.prim
	}
	void := s.predef("Void", Public|Final)
	void.superclass = s.ObjectType
	s.boxes[TagVoid] = void

	throwable := s.predef("Throwable", Public)
	throwable.superclass = s.ObjectType
	throwable.SetInterfaces([]Type{s.SerializableType})
	s.ThrowableType = throwable.declared
	exception := s.predef("Exception", Public)
	exception.superclass = s.ThrowableType
	s.ExceptionType = exception.declared
	runtime := s.predef("RuntimeException", Public)
	runtime.superclass = s.ExceptionType
	s.RuntimeExceptionType = runtime.declared
	errorClass := s.predef("Error", Public)
	errorClass.superclass = s.ThrowableType
	s.ErrorClassType = errorClass.declared

	s.ArrayClass = NewClassSymbol(Public|Acyclic, "Array", s.RootPackage)
	s.ArrayClass.superclass = s.ObjectType
	s.ArrayClass.SetInterfaces([]Type{s.SerializableType, s.CloneableType})
	s.ArrayClass.members.Enter(NewVarSymbol(Public|Final, "length", s.IntType, s.ArrayClass))
	s.ArrayClass.members.Enter(NewMethodSymbol(Public, "clone", s.methodType(nil, s.ObjectType), s.ArrayClass))
}

func (s *Symtab) predef(name string, flags Flags) *ClassSymbol {
	c := s.EnterClass(s.Lang, name, flags)
	s.predefined[c] = true
	return c
}

func (s *Symtab) comparableOf(t Type) *ClassType {
	return NewClassType(NoneType, []Type{t}, s.ComparableType.Sym)
}

func (s *Symtab) methodType(params []Type, result Type) *MethodType {
	return NewMethodType(params, result, nil, s.MethodClass)
}

// ====== Registries ======

// EnterPackage returns the package named fullName, creating it and any
// missing parents.
func (s *Symtab) EnterPackage(fullName string) *PackageSymbol {
	if p, ok := s.packages[fullName]; ok {
		return p
	}
	parent := s.RootPackage
	name := fullName
	if i := strings.LastIndexByte(fullName, '.'); i >= 0 {
		parent = s.EnterPackage(fullName[:i])
		name = fullName[i+1:]
	}
	p := NewPackageSymbol(name, parent)
	parent.members.Enter(p)
	s.packages[fullName] = p
	return p
}

// LookupPackage returns the package named fullName, or nil.
func (s *Symtab) LookupPackage(fullName string) *PackageSymbol {
	return s.packages[fullName]
}

// Packages returns every package ordered by name.
func (s *Symtab) Packages() []*PackageSymbol {
	out := make([]*PackageSymbol, 0, len(s.packages))
	for _, p := range s.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].fullName < out[j].fullName })
	return out
}

// EnterClass returns the class named name in owner, creating it when absent.
// owner is a package or, for nested classes, a class.
func (s *Symtab) EnterClass(owner Symbol, name string, flags Flags) *ClassSymbol {
	for _, m := range owner.RawMembers().LookupAll(name, nil) {
		if c, ok := m.(*ClassSymbol); ok {
			return c
		}
	}
	c := NewClassSymbol(flags, name, owner)
	owner.RawMembers().Enter(c)
	s.register(c)
	return c
}

func (s *Symtab) register(c *ClassSymbol) {
	s.classes[c.flatName] = c
	s.byFullName[c.fullName] = c
}

// LookupClass finds a class by flat name, falling back to its qualified name.
func (s *Symtab) LookupClass(name string) *ClassSymbol {
	if c, ok := s.classes[name]; ok {
		return c
	}
	return s.byFullName[name]
}

// RebindClass moves c under a new owner and name.
func (s *Symtab) RebindClass(c *ClassSymbol, owner Symbol, name string) {
	delete(s.classes, c.flatName)
	delete(s.byFullName, c.fullName)
	c.Rebind(owner, name)
	s.register(c)
}

// AllClasses returns every entered class ordered by flat name.
func (s *Symtab) AllClasses() []*ClassSymbol {
	out := make([]*ClassSymbol, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].flatName < out[j].flatName })
	return out
}

// IsPredefined reports whether c was created with the table.
func (s *Symtab) IsPredefined(c *ClassSymbol) bool {
	return s.predefined[c]
}

// EnterModule returns the module named name, creating it when absent.
// A non-nil version replaces the recorded one.
func (s *Symtab) EnterModule(name string, version *semver.Version) *ModuleSymbol {
	m, ok := s.modules[name]
	if !ok {
		m = NewModuleSymbol(name, version)
		s.modules[name] = m
	}
	if version != nil {
		m.Version = version
	}
	return m
}

// LookupModule returns the module named name, or nil.
func (s *Symtab) LookupModule(name string) *ModuleSymbol {
	return s.modules[name]
}

// Modules returns every module ordered by name.
func (s *Symtab) Modules() []*ModuleSymbol {
	out := make([]*ModuleSymbol, 0, len(s.modules))
	for _, m := range s.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// ====== Boxing ======

// BoxedClass returns the box class of a primitive tag, or nil.
func (s *Symtab) BoxedClass(tag TypeTag) *ClassSymbol {
	return s.boxes[tag]
}

// UnboxedType returns the primitive boxed by c, or nil.
func (s *Symtab) UnboxedType(c *ClassSymbol) *PrimitiveType {
	return s.unboxes[c]
}

// PrimitiveOf returns the canonical primitive type of tag, or nil.
func (s *Symtab) PrimitiveOf(tag TypeTag) *PrimitiveType {
	switch tag {
	case TagByte:
		return s.ByteType
	case TagChar:
		return s.CharType
	case TagShort:
		return s.ShortType
	case TagInt:
		return s.IntType
	case TagLong:
		return s.LongType
	case TagFloat:
		return s.FloatType
	case TagDouble:
		return s.DoubleType
	case TagBoolean:
		return s.BooleanType
	case TagVoid:
		return s.VoidType
	}
	return nil
}

// ====== Rounds and Failures ======

// NewRound resets every non-predefined class to a stub completed by the
// completer completerFor returns, and forgets recorded failures.
func (s *Symtab) NewRound(completerFor func(c *ClassSymbol) Completer) {
	for _, c := range s.AllClasses() {
		if s.predefined[c] {
			continue
		}
		c.Reset(completerFor(c))
	}
	s.failures = nil
}

// HandleCompletionFailure records cf and reports it to the sink.
func (s *Symtab) HandleCompletionFailure(cf *CompletionFailure) {
	s.failures = append(s.failures, cf)
	d := diagnostic.NewDiagnostic().
		Error().
		Category(diagnostic.DiagnosticCompletion).
		Fragment(cf.Fragment())
	if c, ok := cf.Sym.(*ClassSymbol); ok {
		d = d.Span(c.Pos)
	}
	s.Sink.Report(d.Build())
}

// Failures returns the failures recorded this round.
func (s *Symtab) Failures() []*CompletionFailure {
	out := make([]*CompletionFailure, len(s.failures))
	copy(out, s.failures)
	return out
}
