package loader

import (
	"strings"
	"unicode"

	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/errors"
)

// Scope resolves the names a type expression mentions.
type Scope interface {
	Symtab() *code.Symtab
	// TypeVar returns the type variable named name, or nil.
	TypeVar(name string) code.Type
	// LookupClass returns the class a simple or qualified name denotes, or
	// nil when no such class is known.
	LookupClass(name string) *code.ClassSymbol
	// MissingClass enters a stub for a class that cannot be found. A nil
	// outer means name is a simple or qualified top-level name.
	MissingClass(outer *code.ClassSymbol, name string) *code.ClassSymbol
}

// ParseType parses a type expression such as "util.Map<K, ? extends V>[]".
// Primitives, wildcards, type variables, qualified and nested class names
// and array suffixes are accepted.
func ParseType(expr string, scope Scope) (code.Type, error) {
	p := &typeParser{src: expr, scope: scope, syms: scope.Symtab()}
	p.next()
	t, err := p.parseType(false)
	if err != nil {
		return nil, err
	}
	if p.tok != tokEOF {
		return nil, p.errorf("unexpected " + p.lit)
	}
	return t, nil
}

// ====== Lexer ======

type token int

const (
	tokEOF token = iota
	tokIdent
	tokDot
	tokComma
	tokLess
	tokGreater
	tokLBrack
	tokRBrack
	tokQuestion
	tokIllegal
)

type typeParser struct {
	src   string
	pos   int
	tok   token
	lit   string
	scope Scope
	syms  *code.Symtab
}

func (p *typeParser) next() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok, p.lit = tokEOF, "end of expression"
		return
	}
	ch := p.src[p.pos]
	single := map[byte]token{
		'.': tokDot, ',': tokComma, '<': tokLess, '>': tokGreater,
		'[': tokLBrack, ']': tokRBrack, '?': tokQuestion,
	}
	if t, ok := single[ch]; ok {
		p.tok, p.lit = t, string(ch)
		p.pos++
		return
	}
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$' {
			break
		}
		p.pos++
	}
	if start == p.pos {
		p.tok, p.lit = tokIllegal, string(ch)
		p.pos++
		return
	}
	p.tok, p.lit = tokIdent, p.src[start:p.pos]
}

func (p *typeParser) errorf(msg string) error {
	return errors.Newf(errors.CategoryLoader, "bad.type.expr", p.src, msg)
}

func (p *typeParser) expect(t token, what string) error {
	if p.tok != t {
		return p.errorf("expected " + what + ", found " + p.lit)
	}
	p.next()
	return nil
}

// ====== Grammar ======

var primitiveTags = map[string]code.TypeTag{
	"byte":    code.TagByte,
	"char":    code.TagChar,
	"short":   code.TagShort,
	"int":     code.TagInt,
	"long":    code.TagLong,
	"float":   code.TagFloat,
	"double":  code.TagDouble,
	"boolean": code.TagBoolean,
	"void":    code.TagVoid,
}

func (p *typeParser) parseType(argument bool) (code.Type, error) {
	if p.tok == tokQuestion {
		if !argument {
			return nil, p.errorf("wildcard outside type arguments")
		}
		return p.parseWildcard()
	}
	if p.tok != tokIdent {
		return nil, p.errorf("expected a type, found " + p.lit)
	}

	var t code.Type
	if tag, ok := primitiveTags[p.lit]; ok {
		t = p.syms.PrimitiveOf(tag)
		p.next()
	} else {
		var err error
		if t, err = p.parseClassType(); err != nil {
			return nil, err
		}
	}

	for p.tok == tokLBrack {
		p.next()
		if err := p.expect(tokRBrack, "]"); err != nil {
			return nil, err
		}
		if t.Tag() == code.TagVoid {
			return nil, p.errorf("array of void")
		}
		t = code.NewArrayType(t, p.syms.ArrayClass)
	}
	return t, nil
}

func (p *typeParser) parseWildcard() (code.Type, error) {
	p.next()
	kind := code.BoundUnbound
	switch {
	case p.tok == tokIdent && p.lit == "extends":
		kind = code.BoundExtends
	case p.tok == tokIdent && p.lit == "super":
		kind = code.BoundSuper
	default:
		return code.NewWildcardType(nil, code.BoundUnbound, p.syms.BoundClass), nil
	}
	p.next()
	bound, err := p.parseType(false)
	if err != nil {
		return nil, err
	}
	if code.IsPrimitive(bound) {
		return nil, p.errorf("primitive wildcard bound")
	}
	return code.NewWildcardType(bound, kind, p.syms.BoundClass), nil
}

type segment struct {
	name string
	args []code.Type
	has  bool
}

func (p *typeParser) parseClassType() (code.Type, error) {
	var segs []segment
	for {
		if p.tok != tokIdent {
			return nil, p.errorf("expected a name, found " + p.lit)
		}
		seg := segment{name: p.lit}
		p.next()
		if p.tok == tokLess {
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			seg.args, seg.has = args, true
		}
		segs = append(segs, seg)
		if p.tok != tokDot {
			break
		}
		p.next()
	}

	if len(segs) == 1 && !segs[0].has {
		if tv := p.scope.TypeVar(segs[0].name); tv != nil {
			return tv, nil
		}
	}
	return p.resolve(segs)
}

func (p *typeParser) parseArguments() ([]code.Type, error) {
	p.next()
	var args []code.Type
	for {
		arg, err := p.parseType(true)
		if err != nil {
			return nil, err
		}
		if code.IsPrimitive(arg) {
			return nil, p.errorf("primitive type argument")
		}
		args = append(args, arg)
		if p.tok != tokComma {
			break
		}
		p.next()
	}
	return args, p.expect(tokGreater, ">")
}

// resolve finds the shortest prefix of segs naming a known class; the
// remaining segments select member classes. Arguments may only appear on
// class segments.
func (p *typeParser) resolve(segs []segment) (code.Type, error) {
	var c *code.ClassSymbol
	i := 0
	for ; i < len(segs); i++ {
		name := joinSegments(segs[:i+1])
		if c = p.scope.LookupClass(name); c != nil {
			break
		}
		if segs[i].has {
			c = p.scope.MissingClass(nil, name)
			break
		}
	}
	if c == nil {
		c = p.scope.MissingClass(nil, joinSegments(segs))
		i = len(segs) - 1
	}

	var t code.Type = p.classType(code.NoneType, segs[i], c)
	for _, seg := range segs[i+1:] {
		inner := p.syms.LookupClass(c.FlatName() + "$" + seg.name)
		if inner == nil {
			inner = p.scope.MissingClass(c, seg.name)
		}
		outer := t
		if !seg.has && !code.IsParameterized(outer) {
			outer = code.NoneType
		}
		t = p.classType(outer, seg, inner)
		c = inner
	}
	return t, nil
}

func (p *typeParser) classType(outer code.Type, seg segment, c *code.ClassSymbol) *code.ClassType {
	declared := c.RawClassType()
	if !seg.has && outer.Tag() == code.TagNone && c.IsCompleted() && len(declared.Params) == 0 {
		return declared
	}
	return code.NewClassType(outer, seg.args, c)
}

func joinSegments(segs []segment) string {
	names := make([]string, len(segs))
	for i, s := range segs {
		names[i] = s.name
	}
	return strings.Join(names, ".")
}
