package code

// Members is the read side shared by plain and compound scopes.
type Members interface {
	Lookup(name string) Symbol
	LookupAll(name string, filter func(Symbol) bool) []Symbol
	Symbols(filter func(Symbol) bool) []Symbol
	Mark() int
}

// Scope is the member table of a class, package or module: a name-indexed
// multimap. Symbols sharing a name shadow each other, newest first. Every
// mutation bumps the mark so caches can detect staleness.
type Scope struct {
	Owner  Symbol
	byName map[string][]Symbol
	elems  []Symbol
	mark   int
}

// NewScope creates an empty scope owned by owner.
func NewScope(owner Symbol) *Scope {
	return &Scope{Owner: owner, byName: make(map[string][]Symbol)}
}

// Enter adds sym, shadowing earlier symbols of the same name.
func (s *Scope) Enter(sym Symbol) {
	name := sym.Name()
	s.byName[name] = append([]Symbol{sym}, s.byName[name]...)
	s.elems = append(s.elems, sym)
	s.mark++
}

// EnterIfAbsent adds sym unless the very same symbol is present.
func (s *Scope) EnterIfAbsent(sym Symbol) {
	if !s.Includes(sym) {
		s.Enter(sym)
	}
}

// Remove deletes sym. It is a no-op when sym is absent.
func (s *Scope) Remove(sym Symbol) {
	name := sym.Name()
	entries := s.byName[name]
	for i, e := range entries {
		if e == sym {
			entries = append(entries[:i:i], entries[i+1:]...)
			if len(entries) == 0 {
				delete(s.byName, name)
			} else {
				s.byName[name] = entries
			}
			break
		}
	}
	for i, e := range s.elems {
		if e == sym {
			s.elems = append(s.elems[:i:i], s.elems[i+1:]...)
			s.mark++
			return
		}
	}
}

// Includes reports whether sym itself is a member.
func (s *Scope) Includes(sym Symbol) bool {
	for _, e := range s.byName[sym.Name()] {
		if e == sym {
			return true
		}
	}
	return false
}

// Lookup returns the newest symbol named name, or nil.
func (s *Scope) Lookup(name string) Symbol {
	if entries := s.byName[name]; len(entries) > 0 {
		return entries[0]
	}
	return nil
}

// LookupAll returns every symbol named name accepted by filter, newest first.
// A nil filter accepts everything.
func (s *Scope) LookupAll(name string, filter func(Symbol) bool) []Symbol {
	var out []Symbol
	for _, e := range s.byName[name] {
		if filter == nil || filter(e) {
			out = append(out, e)
		}
	}
	return out
}

// Symbols returns the members accepted by filter, newest first.
func (s *Scope) Symbols(filter func(Symbol) bool) []Symbol {
	var out []Symbol
	for i := len(s.elems) - 1; i >= 0; i-- {
		if filter == nil || filter(s.elems[i]) {
			out = append(out, s.elems[i])
		}
	}
	return out
}

// Len returns the number of members.
func (s *Scope) Len() int {
	return len(s.elems)
}

// Mark returns the mutation counter.
func (s *Scope) Mark() int {
	return s.mark
}

// Clear removes every member.
func (s *Scope) Clear() {
	if len(s.elems) == 0 {
		return
	}
	s.byName = make(map[string][]Symbol)
	s.elems = nil
	s.mark++
}

// CompoundScope chains several member tables. Its mark is the sum of its
// sub-scope marks, so any mutation below invalidates entries keyed on it.
type CompoundScope struct {
	Owner Symbol
	subs  []Members
}

// NewCompoundScope creates an empty compound scope.
func NewCompoundScope(owner Symbol) *CompoundScope {
	return &CompoundScope{Owner: owner}
}

// PrependSubScope puts m in front of the existing sub-scopes.
func (c *CompoundScope) PrependSubScope(m Members) {
	if m == nil {
		return
	}
	c.subs = append([]Members{m}, c.subs...)
}

// AppendSubScope puts m after the existing sub-scopes.
func (c *CompoundScope) AppendSubScope(m Members) {
	if m == nil {
		return
	}
	c.subs = append(c.subs, m)
}

// SubScopes returns the chained scopes in lookup order.
func (c *CompoundScope) SubScopes() []Members {
	out := make([]Members, len(c.subs))
	copy(out, c.subs)
	return out
}

func (c *CompoundScope) Lookup(name string) Symbol {
	for _, s := range c.subs {
		if sym := s.Lookup(name); sym != nil {
			return sym
		}
	}
	return nil
}

func (c *CompoundScope) LookupAll(name string, filter func(Symbol) bool) []Symbol {
	var out []Symbol
	for _, s := range c.subs {
		out = append(out, s.LookupAll(name, filter)...)
	}
	return out
}

func (c *CompoundScope) Symbols(filter func(Symbol) bool) []Symbol {
	var out []Symbol
	for _, s := range c.subs {
		out = append(out, s.Symbols(filter)...)
	}
	return out
}

func (c *CompoundScope) Mark() int {
	mark := 0
	for _, s := range c.subs {
		mark += s.Mark()
	}
	return mark
}
