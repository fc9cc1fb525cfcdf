package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/orizon-lang/typecore/internal/diagnostic"
)

type wrapped struct {
	err   *Error
	extra string
}

func (w *wrapped) Error() string { return w.extra + ": " + w.err.Error() }
func (w *wrapped) Base() *Error  { return w.err }

func TestLazyFragment(t *testing.T) {
	calls := 0
	err := New(CategoryLookup, "not.a.functional.intf", func() *diagnostic.Fragment {
		calls++
		return diagnostic.NewFragment("not.a.functional.intf", "app.I")
	})

	if calls != 0 {
		t.Fatalf("Expected fragment to be built lazily, built %d times", calls)
	}
	if got := err.Error(); got != "[LOOKUP:not.a.functional.intf] not.a.functional.intf(app.I)" {
		t.Errorf("Unexpected message %q", got)
	}
	_ = err.Fragment()
	if calls != 1 {
		t.Errorf("Expected fragment to be built once, built %d times", calls)
	}
	if !strings.Contains(err.Caller, "TestLazyFragment") {
		t.Errorf("Expected caller to name the test, got %s", err.Caller)
	}
}

func TestNilFragmentFallsBackToCode(t *testing.T) {
	err := New(CategoryConfig, "bad.level", nil)
	if got := err.Fragment().String(); got != "bad.level" {
		t.Errorf("Expected bad.level, got %s", got)
	}
}

func TestWrapChain(t *testing.T) {
	err := Wrap(CategoryLoader, "manifest.read", fs.ErrNotExist, func() *diagnostic.Fragment {
		return diagnostic.NewFragment("manifest.read", "unit/a.yaml")
	})

	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected chain to reach fs.ErrNotExist")
	}
	if !strings.HasSuffix(err.Error(), fs.ErrNotExist.Error()) {
		t.Errorf("Expected cause in message, got %q", err.Error())
	}
}

func TestHasCategory(t *testing.T) {
	inner := Newf(CategoryModule, "requires.unsatisfied", "base", ">=2.0.0")
	outer := Wrap(CategoryCompletion, "module.incomplete", inner, nil)
	embedded := &wrapped{err: outer, extra: "x"}
	viaFmt := fmt.Errorf("loading unit: %w", embedded)

	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		expected bool
	}{
		{"direct", inner, CategoryModule, true},
		{"cause", outer, CategoryModule, true},
		{"embedded", embedded, CategoryCompletion, true},
		{"through fmt", viaFmt, CategoryModule, true},
		{"absent", viaFmt, CategoryLookup, false},
		{"plain error", stderrors.New("x"), CategoryLoader, false},
		{"nil", nil, CategoryLoader, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCategory(tt.err, tt.category); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}

	if e, ok := As(viaFmt); !ok || e != outer {
		t.Errorf("Expected As to find the embedded error")
	}
}
