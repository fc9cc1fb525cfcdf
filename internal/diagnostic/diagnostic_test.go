package diagnostic

import (
	"strings"
	"sync"
	"testing"

	"github.com/orizon-lang/typecore/internal/position"
)

func TestFragmentString(t *testing.T) {
	tests := []struct {
		name     string
		fragment *Fragment
		expected string
	}{
		{"no args", NewFragment("no.abstracts"), "no.abstracts"},
		{"args", NewFragment("class.not.found", "app.Missing"), "class.not.found(app.Missing)"},
		{"nested", NewFragment("not.a.functional.intf.1", "I", NewFragment("incompatible.abstracts", "interface", "I")),
			"not.a.functional.intf.1(I, incompatible.abstracts(interface, I))"},
		{"details", NewFragment("incompatible.descs", "I").WithDetails(NewFragment("descriptor", "m")),
			"incompatible.descs(I)\n  descriptor(m)"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fragment.String(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestEngineWarningsAsErrors(t *testing.T) {
	engine := NewDiagnosticEngine(DiagnosticConfig{WarningsAsErrors: true})
	engine.Report(NewDiagnostic().Warning().Fragment(NewFragment("unchecked.cast")).Build())

	if !engine.HasErrors() {
		t.Fatalf("Expected warning to be promoted to error")
	}
	if len(engine.GetWarnings()) != 0 {
		t.Errorf("Expected no warnings, got %d", len(engine.GetWarnings()))
	}
}

func TestEngineMaxErrors(t *testing.T) {
	engine := NewDiagnosticEngine(DiagnosticConfig{MaxErrors: 2})
	for i := 0; i < 5; i++ {
		engine.Report(NewDiagnostic().Error().Fragment(NewFragment("class.not.found", i)).Build())
	}

	if got := len(engine.GetErrors()); got != 2 {
		t.Errorf("Expected 2 errors, got %d", got)
	}
	diags := engine.GetDiagnostics()
	last := diags[len(diags)-1]
	if last.Code() != "too.many.errors" {
		t.Errorf("Expected truncation note, got %s", last.Code())
	}

	engine.Clear()
	engine.Report(NewDiagnostic().Error().Fragment(NewFragment("again")).Build())
	if got := len(engine.GetErrors()); got != 1 {
		t.Errorf("Expected 1 error after Clear, got %d", got)
	}
}

func TestEngineIgnoreCodes(t *testing.T) {
	engine := NewDiagnosticEngine(DiagnosticConfig{IgnoreCodes: []string{"ignored"}})
	engine.Report(NewDiagnostic().Error().Fragment(NewFragment("ignored")).Build())
	engine.Report(NewDiagnostic().Error().Fragment(NewFragment("kept")).Build())

	diags := engine.GetDiagnostics()
	if len(diags) != 1 || diags[0].Code() != "kept" {
		t.Errorf("Expected only the kept diagnostic, got %v", diags)
	}
}

func TestEngineConcurrentReport(t *testing.T) {
	engine := NewDiagnosticEngine(DiagnosticConfig{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engine.Report(NewDiagnostic().Warning().Fragment(NewFragment("w", i)).Build())
		}(i)
	}
	wg.Wait()

	if got := len(engine.GetWarnings()); got != 8 {
		t.Errorf("Expected 8 warnings, got %d", got)
	}
}

func TestFormatDiagnostics(t *testing.T) {
	engine := NewDiagnosticEngine(DiagnosticConfig{})
	engine.Report(NewDiagnostic().
		Error().
		Category(DiagnosticCompletion).
		Fragment(NewFragment("class.not.found", "app.B")).
		Span(position.Point(position.At("b.yaml", 4, 2))).
		Build())
	engine.Report(NewDiagnostic().
		Warning().
		Category(DiagnosticType).
		Fragment(NewFragment("unchecked")).
		Span(position.Point(position.At("a.yaml", 1, 1))).
		Related(position.Point(position.At("a.yaml", 9, 1)), NewFragment("declared.here")).
		Build())

	out := engine.FormatDiagnostics()
	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[0], "a.yaml:1:1: warning[type]: unchecked") {
		t.Errorf("Expected a.yaml diagnostic first, got %q", lines[0])
	}
	if !strings.Contains(out, "b.yaml:4:2: error[completion]: class.not.found(app.B)") {
		t.Errorf("Expected completion error in output, got %q", out)
	}
	if !strings.HasSuffix(out, "1 error(s), 1 warning(s)") {
		t.Errorf("Expected summary line, got %q", out)
	}
}
