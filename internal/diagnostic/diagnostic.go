// Diagnostic plumbing for the typecore semantic core.
// The core reports structured fragments; rendering happens here or in the tools.

package diagnostic

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/orizon-lang/typecore/internal/position"
)

// DiagnosticLevel represents the severity level of a diagnostic message.
type DiagnosticLevel int

const (
	DiagnosticError DiagnosticLevel = iota
	DiagnosticWarning
	DiagnosticNote
)

func (dl DiagnosticLevel) String() string {
	switch dl {
	case DiagnosticError:
		return "error"
	case DiagnosticWarning:
		return "warning"
	case DiagnosticNote:
		return "note"
	default:
		return "unknown"
	}
}

// DiagnosticCategory represents the category of diagnostic.
type DiagnosticCategory int

const (
	DiagnosticType DiagnosticCategory = iota
	DiagnosticCompletion
	DiagnosticModule
	DiagnosticLoader
)

func (dc DiagnosticCategory) String() string {
	switch dc {
	case DiagnosticType:
		return "type"
	case DiagnosticCompletion:
		return "completion"
	case DiagnosticModule:
		return "module"
	case DiagnosticLoader:
		return "loader"
	default:
		return "unknown"
	}
}

// Fragment is an unrendered diagnostic: a stable key plus its arguments.
// Arguments may themselves be fragments.
type Fragment struct {
	Code string
	Args []any
	// Details carries sub-fragments shown on separate lines.
	Details []*Fragment
}

// NewFragment creates a fragment with the given key and arguments.
func NewFragment(code string, args ...any) *Fragment {
	return &Fragment{Code: code, Args: args}
}

// WithDetails attaches sub-fragments.
func (f *Fragment) WithDetails(details ...*Fragment) *Fragment {
	f.Details = append(f.Details, details...)
	return f
}

// String renders the fragment as "code(arg, arg)".
func (f *Fragment) String() string {
	if f == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(f.Code)
	if len(f.Args) > 0 {
		sb.WriteString("(")
		for i, a := range f.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprint(&sb, a)
		}
		sb.WriteString(")")
	}
	for _, d := range f.Details {
		sb.WriteString("\n  ")
		sb.WriteString(d.String())
	}
	return sb.String()
}

// Diagnostic represents a single diagnostic message.
type Diagnostic struct {
	Fragment    *Fragment
	RelatedInfo []RelatedInformation
	Span        position.Span
	Level       DiagnosticLevel
	Category    DiagnosticCategory
}

// Code returns the fragment key.
func (d *Diagnostic) Code() string {
	if d.Fragment == nil {
		return ""
	}
	return d.Fragment.Code
}

// RelatedInformation provides additional context for a diagnostic.
type RelatedInformation struct {
	Fragment *Fragment
	Span     position.Span
}

// DiagnosticBuilder helps construct diagnostic messages with fluent API.
type DiagnosticBuilder struct {
	diagnostic *Diagnostic
}

// NewDiagnostic creates a new diagnostic builder.
func NewDiagnostic() *DiagnosticBuilder {
	return &DiagnosticBuilder{
		diagnostic: &Diagnostic{
			RelatedInfo: make([]RelatedInformation, 0),
		},
	}
}

func (db *DiagnosticBuilder) Error() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticError

	return db
}

func (db *DiagnosticBuilder) Warning() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticWarning

	return db
}

func (db *DiagnosticBuilder) Note() *DiagnosticBuilder {
	db.diagnostic.Level = DiagnosticNote

	return db
}

func (db *DiagnosticBuilder) Category(c DiagnosticCategory) *DiagnosticBuilder {
	db.diagnostic.Category = c

	return db
}

func (db *DiagnosticBuilder) Fragment(f *Fragment) *DiagnosticBuilder {
	db.diagnostic.Fragment = f

	return db
}

func (db *DiagnosticBuilder) Span(span position.Span) *DiagnosticBuilder {
	db.diagnostic.Span = span

	return db
}

func (db *DiagnosticBuilder) Related(span position.Span, f *Fragment) *DiagnosticBuilder {
	db.diagnostic.RelatedInfo = append(db.diagnostic.RelatedInfo, RelatedInformation{
		Span:     span,
		Fragment: f,
	})

	return db
}

func (db *DiagnosticBuilder) Build() *Diagnostic {
	return db.diagnostic
}

// Sink receives structured diagnostics from the core.
type Sink interface {
	Report(d *Diagnostic)
}

// Discard is a sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(*Diagnostic) {}

// DiagnosticConfig controls diagnostic behavior.
type DiagnosticConfig struct {
	IgnoreCodes      []string
	MaxErrors        int
	WarningsAsErrors bool
}

// DiagnosticEngine collects diagnostics. It is safe for concurrent use so
// several units may share one engine.
type DiagnosticEngine struct {
	diagnostics []Diagnostic
	config      DiagnosticConfig
	truncated   bool
	mu          sync.Mutex
}

// NewDiagnosticEngine creates a new diagnostic engine.
func NewDiagnosticEngine(config DiagnosticConfig) *DiagnosticEngine {
	return &DiagnosticEngine{
		diagnostics: make([]Diagnostic, 0),
		config:      config,
	}
}

// Report adds a diagnostic to the engine.
func (de *DiagnosticEngine) Report(diagnostic *Diagnostic) {
	de.mu.Lock()
	defer de.mu.Unlock()

	if de.truncated || de.shouldIgnore(diagnostic) {
		return
	}

	d := *diagnostic
	if de.config.WarningsAsErrors && d.Level == DiagnosticWarning {
		d.Level = DiagnosticError
	}
	de.diagnostics = append(de.diagnostics, d)

	if de.config.MaxErrors > 0 && de.countLocked(DiagnosticError) >= de.config.MaxErrors {
		de.truncated = true
		de.diagnostics = append(de.diagnostics, *NewDiagnostic().
			Note().
			Fragment(NewFragment("too.many.errors", de.config.MaxErrors)).
			Build())
	}
}

func (de *DiagnosticEngine) shouldIgnore(diagnostic *Diagnostic) bool {
	for _, code := range de.config.IgnoreCodes {
		if diagnostic.Code() == code {
			return true
		}
	}
	return false
}

func (de *DiagnosticEngine) countLocked(level DiagnosticLevel) int {
	n := 0
	for _, d := range de.diagnostics {
		if d.Level == level {
			n++
		}
	}
	return n
}

// GetDiagnostics returns a copy of all diagnostics.
func (de *DiagnosticEngine) GetDiagnostics() []Diagnostic {
	de.mu.Lock()
	defer de.mu.Unlock()
	out := make([]Diagnostic, len(de.diagnostics))
	copy(out, de.diagnostics)
	return out
}

// GetErrors returns only error-level diagnostics.
func (de *DiagnosticEngine) GetErrors() []Diagnostic {
	return de.filter(DiagnosticError)
}

// GetWarnings returns only warning-level diagnostics.
func (de *DiagnosticEngine) GetWarnings() []Diagnostic {
	return de.filter(DiagnosticWarning)
}

func (de *DiagnosticEngine) filter(level DiagnosticLevel) []Diagnostic {
	de.mu.Lock()
	defer de.mu.Unlock()
	out := make([]Diagnostic, 0)
	for _, d := range de.diagnostics {
		if d.Level == level {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors returns true if there are any errors.
func (de *DiagnosticEngine) HasErrors() bool {
	return len(de.GetErrors()) > 0
}

// Clear removes all diagnostics.
func (de *DiagnosticEngine) Clear() {
	de.mu.Lock()
	defer de.mu.Unlock()
	de.diagnostics = de.diagnostics[:0]
	de.truncated = false
}

// FormatDiagnostics renders all diagnostics sorted by position and severity.
func (de *DiagnosticEngine) FormatDiagnostics() string {
	diags := de.GetDiagnostics()
	if len(diags) == 0 {
		return ""
	}

	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start.Before(b.Span.Start)
		}
		return a.Level < b.Level
	})

	var result strings.Builder
	for _, diag := range diags {
		result.WriteString(Format(&diag))
		result.WriteString("\n")
	}

	errorCount, warningCount := 0, 0
	for _, d := range diags {
		switch d.Level {
		case DiagnosticError:
			errorCount++
		case DiagnosticWarning:
			warningCount++
		}
	}
	result.WriteString(fmt.Sprintf("%d error(s), %d warning(s)", errorCount, warningCount))

	return result.String()
}

// Format renders a single diagnostic.
func Format(diag *Diagnostic) string {
	var result strings.Builder

	result.WriteString(fmt.Sprintf("%s: %s[%s]: %s",
		diag.Span.String(),
		diag.Level.String(),
		diag.Category.String(),
		diag.Fragment.String(),
	))
	for _, related := range diag.RelatedInfo {
		result.WriteString(fmt.Sprintf("\n  %s: %s", related.Span.String(), related.Fragment.String()))
	}

	return result.String()
}
