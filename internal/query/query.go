// Package query evaluates one-line queries over the type algebra. Each
// query names a relation or transformation followed by its operands,
// written as type expressions:
//
//	sub app.Box<String> app.Box<?>
//	lub app.Box<String> app.Box<Integer>
//
// Operands are separated by white space outside angle brackets.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/orizon-lang/typecore/internal/cli"
	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/loader"
	"github.com/orizon-lang/typecore/internal/modules"
	"github.com/orizon-lang/typecore/internal/types"
)

// Engine evaluates queries against the classes known to a loader.
type Engine struct {
	l    *loader.Loader
	ty   *types.Types
	syms *code.Symtab
}

// New creates an engine over l.
func New(l *loader.Loader) *Engine {
	return &Engine{l: l, ty: l.Types(), syms: l.Symtab()}
}

type command struct {
	usage   string
	help    string
	minArgs int
	maxArgs int
	run     func(e *Engine, args []string) (string, error)
}

var commands = map[string]command{
	"same":       {"same T S", "is T the same type as S", 2, 2, binaryRelation((*types.Types).IsSameType)},
	"sub":        {"sub T S", "is T a subtype of S (unchecked conversion allowed)", 2, 2, binaryWarned((*types.Types).IsSubtypeUnchecked)},
	"cast":       {"cast T S", "is T castable to S", 2, 2, binaryWarned((*types.Types).IsCastable)},
	"assign":     {"assign T S", "is T assignable to S", 2, 2, binaryWarned((*types.Types).IsAssignable)},
	"contains":   {"contains T S", "does type argument T contain S", 2, 2, binaryRelation((*types.Types).ContainsType)},
	"lub":        {"lub T...", "least upper bound", 1, -1, (*Engine).lub},
	"glb":        {"glb T...", "greatest lower bound", 1, -1, (*Engine).glb},
	"erasure":    {"erasure T", "erasure of T", 1, 1, unary((*types.Types).Erasure)},
	"capture":    {"capture T", "capture conversion of T", 1, 1, unary((*types.Types).Capture)},
	"supertype":  {"supertype T", "direct superclass type of T", 1, 1, unary((*types.Types).Supertype)},
	"interfaces": {"interfaces T", "direct interface types of T", 1, 1, (*Engine).interfaces},
	"closure":    {"closure T", "supertype closure of T, ordered by rank", 1, 1, (*Engine).closure},
	"descriptor": {"descriptor T", "function descriptor of a functional interface", 1, 1, (*Engine).descriptor},
	"members":    {"members C", "declared members of a class", 1, 1, (*Engine).members},
	"complete":   {"complete C", "complete a class and report the outcome", 1, 1, (*Engine).complete},
	"failures":   {"failures", "completion failures recorded this round", 0, 0, (*Engine).failures},
	"dump":       {"dump T", "structure of a type", 1, 1, (*Engine).dump},
	"modules":    {"modules", "module load order, statistics and version problems", 0, 0, (*Engine).modules},
	"requires":   {"requires M", "modules M requires, directly or transitively", 1, 1, (*Engine).requires},
	"dependents": {"dependents M", "modules that require M directly", 1, 1, (*Engine).dependents},
}

// Commands describes the available queries in name order.
func Commands() []cli.CommandInfo {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]cli.CommandInfo, len(names))
	for i, name := range names {
		c := commands[name]
		out[i] = cli.CommandInfo{Name: c.usage, Description: c.help}
	}
	return out
}

// Exec evaluates one query and returns its rendered result. Completion
// failures raised by a query that fails are not recorded.
func (e *Engine) Exec(line string) (string, error) {
	fields := SplitArgs(line)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty query")
	}
	c, ok := commands[fields[0]]
	if !ok {
		return "", fmt.Errorf("unknown query %q", fields[0])
	}
	args := fields[1:]
	if len(args) < c.minArgs || (c.maxArgs >= 0 && len(args) > c.maxArgs) {
		return "", fmt.Errorf("usage: %s", c.usage)
	}
	var out string
	err := e.l.Speculate(func() error {
		var err error
		out, err = c.run(e, args)
		return err
	})
	return out, err
}

// SplitArgs splits line at white space outside angle brackets.
func SplitArgs(line string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case (r == ' ' || r == '\t') && depth == 0:
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return out
}

func (e *Engine) parse(args []string) ([]code.Type, error) {
	out := make([]code.Type, len(args))
	for i, a := range args {
		t, err := e.l.ParseType(a)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// ====== Relations ======

func binaryRelation(rel func(*types.Types, code.Type, code.Type) bool) func(*Engine, []string) (string, error) {
	return func(e *Engine, args []string) (string, error) {
		ts, err := e.parse(args)
		if err != nil {
			return "", err
		}
		return fmt.Sprint(rel(e.ty, ts[0], ts[1])), nil
	}
}

func binaryWarned(rel func(*types.Types, code.Type, code.Type) (bool, types.Warnings)) func(*Engine, []string) (string, error) {
	return func(e *Engine, args []string) (string, error) {
		ts, err := e.parse(args)
		if err != nil {
			return "", err
		}
		ok, warn := rel(e.ty, ts[0], ts[1])
		if warn != 0 {
			return fmt.Sprintf("%v [%s]", ok, warn), nil
		}
		return fmt.Sprint(ok), nil
	}
}

func unary(op func(*types.Types, code.Type) code.Type) func(*Engine, []string) (string, error) {
	return func(e *Engine, args []string) (string, error) {
		ts, err := e.parse(args)
		if err != nil {
			return "", err
		}
		return op(e.ty, ts[0]).String(), nil
	}
}

func (e *Engine) lub(args []string) (string, error) {
	ts, err := e.parse(args)
	if err != nil {
		return "", err
	}
	return e.ty.Lub(ts...).String(), nil
}

func (e *Engine) glb(args []string) (string, error) {
	ts, err := e.parse(args)
	if err != nil {
		return "", err
	}
	return e.ty.GlbList(ts).String(), nil
}

func (e *Engine) interfaces(args []string) (string, error) {
	ts, err := e.parse(args)
	if err != nil {
		return "", err
	}
	return renderList(e.ty.Interfaces(ts[0])), nil
}

func (e *Engine) closure(args []string) (string, error) {
	ts, err := e.parse(args)
	if err != nil {
		return "", err
	}
	return renderList(e.ty.Closure(ts[0])), nil
}

func renderList(ts []code.Type) string {
	if len(ts) == 0 {
		return "[]"
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (e *Engine) descriptor(args []string) (string, error) {
	ts, err := e.parse(args)
	if err != nil {
		return "", err
	}
	mt, err := e.ty.FindDescriptorType(ts[0])
	if err != nil {
		return "", err
	}
	return mt.String(), nil
}

// ====== Symbols ======

func (e *Engine) class(name string) (*code.ClassSymbol, error) {
	t, err := e.l.ParseType(name)
	if err != nil {
		return nil, err
	}
	ct, ok := t.(*code.ClassType)
	if !ok {
		return nil, fmt.Errorf("%s is not a class", t)
	}
	return ct.Sym, nil
}

func (e *Engine) members(args []string) (string, error) {
	c, err := e.class(args[0])
	if err != nil {
		return "", err
	}
	syms := c.Members().Symbols(nil)
	if len(syms) == 0 {
		return "no members", nil
	}
	lines := make([]string, len(syms))
	for i, s := range syms {
		lines[i] = fmt.Sprintf("%s %s: %s", s.Kind(), s.Name(), s.Type())
	}
	return strings.Join(lines, "\n"), nil
}

func (e *Engine) complete(args []string) (string, error) {
	c, err := e.class(args[0])
	if err != nil {
		return "", err
	}
	if c.State() == code.StateFailed {
		return "failed: " + c.Failure().Fragment().String(), nil
	}
	if err := c.Complete(); err != nil {
		cf, ok := code.AsCompletionFailure(err)
		if !ok {
			return "", err
		}
		e.l.HandleCompletionFailure(cf)
		return "failed: " + cf.Fragment().String(), nil
	}
	return fmt.Sprintf("%s: %s", c.State(), c.Flags()), nil
}

func (e *Engine) failures([]string) (string, error) {
	fs := e.syms.Failures()
	if len(fs) == 0 {
		return "no failures", nil
	}
	lines := make([]string, len(fs))
	for i, cf := range fs {
		lines[i] = fmt.Sprintf("%s: %s", cf.Sym.QualifiedName(), cf.Fragment())
	}
	return strings.Join(lines, "\n"), nil
}

// ====== Modules ======

func (e *Engine) modules([]string) (string, error) {
	r := modules.NewResolver(e.syms)
	order, problems := r.Resolve()
	st := r.GetStatistics()

	lines := []string{
		fmt.Sprintf("order: %s", strings.Join(order, ", ")),
		fmt.Sprintf("modules: %d, requires: %d, unversioned: %d, roots: %d", st.Modules, st.Requires, st.Unversioned, st.Roots),
	}
	for _, p := range problems {
		lines = append(lines, p.Error())
	}
	return strings.Join(lines, "\n"), nil
}

func (e *Engine) module(name string) (*modules.Graph, error) {
	g := modules.FromSymtab(e.syms)
	if _, ok := g.Modules[name]; !ok {
		return nil, fmt.Errorf("unknown module %q", name)
	}
	return g, nil
}

func (e *Engine) requires(args []string) (string, error) {
	g, err := e.module(args[0])
	if err != nil {
		return "", err
	}
	return "[" + strings.Join(g.Transitive(args[0]), ", ") + "]", nil
}

func (e *Engine) dependents(args []string) (string, error) {
	g, err := e.module(args[0])
	if err != nil {
		return "", err
	}
	return "[" + strings.Join(g.Dependents(args[0]), ", ") + "]", nil
}

// ====== Dump ======

var dumper = spew.ConfigState{
	Indent:                  "  ",
	MaxDepth:                3,
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump renders the structure of v.
func Dump(v any) string {
	return strings.TrimRight(dumper.Sdump(v), "\n")
}

func (e *Engine) dump(args []string) (string, error) {
	ts, err := e.parse(args)
	if err != nil {
		return "", err
	}
	return Dump(ts[0]), nil
}
