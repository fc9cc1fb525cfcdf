package query

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/loader"
	"github.com/orizon-lang/typecore/internal/types"
)

const manifest = `
module: demo
version: 0.1.0
packages:
  - name: app
    classes:
      - name: Box
        flags: [public]
        type_params:
          - name: T
        methods:
          - name: get
            flags: [public]
            returns: T
      - name: Fn
        flags: [public, interface]
        type_params:
          - name: X
        methods:
          - name: apply
            params:
              - name: x
                type: X
            returns: X
  - name: shapes
    classes:
      - name: Shape
        flags: [public, interface, sealed]
        permits: [Circle, Square]
      - name: Circle
        flags: [public, final]
        implements: [Shape]
      - name: Square
        flags: [public, final]
        implements: [Shape]
      - name: Named
        flags: [public, interface]
`

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return newEngineWith(t, map[string]string{"demo.yaml": manifest})
}

func newEngineWith(t *testing.T, files map[string]string) *Engine {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write manifest: %v", err)
		}
	}
	syms := code.NewSymtab()
	l := loader.New(syms, types.New(syms), loader.WithSource(loader.NewFileSource(dir)))
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Expected manifest to load, got %v", err)
	}
	return New(l)
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"same A B", []string{"same", "A", "B"}},
		{"  sub   A\tB ", []string{"sub", "A", "B"}},
		{"sub Box<? extends Number> Box<?>", []string{"sub", "Box<? extends Number>", "Box<?>"}},
		{"lub Map<K, V<W>> X", []string{"lub", "Map<K, V<W>>", "X"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := SplitArgs(tt.line); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExec(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		query string
		want  string
	}{
		{"same String lang.String", "true"},
		{"same app.Box<String> app.Box<Integer>", "false"},
		{"sub Integer Number", "true"},
		{"sub app.Box app.Box<String>", "true [unchecked]"},
		{"sub app.Box<String> app.Box<? extends Object>", "true"},
		{"contains Integer Integer", "true"},
		{"contains Integer Number", "false"},
		{"cast shapes.Shape shapes.Named", "false"},
		{"cast shapes.Shape shapes.Circle", "true"},
		{"assign int long", "true"},
		{"lub app.Box<String> app.Box<Integer>", "app.Box<? extends lang.Serializable&lang.Comparable<? extends lang.Serializable&lang.Comparable<?>>>"},
		{"lub Integer Number", "lang.Number"},
		{"glb Integer Number", "lang.Integer"},
		{"erasure app.Box<String>", "app.Box"},
		{"supertype shapes.Circle", "lang.Object"},
		{"interfaces shapes.Circle", "[shapes.Shape]"},
		{"descriptor app.Fn<String>", "(lang.String)lang.String"},
		{"complete app.Box", "complete: public"},
		{"complete util.Nope", "failed: class.not.found(util.Nope)"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := e.Exec(tt.query)
			if err != nil {
				t.Fatalf("Expected %q to succeed, got %v", tt.query, err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestExecErrors(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"empty", "   ", "empty query"},
		{"unknown", "frob A", "unknown query"},
		{"too few", "same String", "usage: same T S"},
		{"too many", "erasure A B", "usage: erasure T"},
		{"bad type", "erasure app.Box<", "bad.type.expr"},
		{"not a class", "members int", "not a class"},
		{"not functional", "descriptor shapes.Circle", "not.a.functional.intf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Exec(tt.query)
			if err == nil {
				t.Fatalf("Expected %q to fail", tt.query)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected an error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestFailuresAndMembers(t *testing.T) {
	e := newEngine(t)

	if got, _ := e.Exec("failures"); got != "no failures" {
		t.Errorf("Expected no failures, got %s", got)
	}
	if _, err := e.Exec("complete util.Nope"); err != nil {
		t.Fatalf("Expected complete to succeed, got %v", err)
	}
	if got, _ := e.Exec("complete util.Nope"); got != "failed: class.not.found(util.Nope)" {
		t.Errorf("Expected the recorded failure again, got %s", got)
	}
	if got, _ := e.Exec("failures"); got != "util.Nope: class.not.found(util.Nope)" {
		t.Errorf("Expected one failure, got %s", got)
	}

	got, err := e.Exec("members app.Box")
	if err != nil {
		t.Fatalf("Expected members to succeed, got %v", err)
	}
	if got != "method get: ()T" {
		t.Errorf("Expected method get: ()T, got %s", got)
	}
}

func TestRejectedQueryDropsFailures(t *testing.T) {
	e := newEngine(t)

	if _, err := e.Exec("descriptor util.Nope"); err == nil {
		t.Fatalf("Expected a missing class to have no descriptor")
	}
	if got, _ := e.Exec("failures"); got != "no failures" {
		t.Errorf("Expected the failure of a rejected query to be dropped, got %s", got)
	}
	if got, _ := e.Exec("complete util.Nope"); got != "failed: class.not.found(util.Nope)" {
		t.Errorf("Expected util.Nope to fail again, got %s", got)
	}
	if got, _ := e.Exec("failures"); got != "util.Nope: class.not.found(util.Nope)" {
		t.Errorf("Expected the committed failure to be recorded, got %s", got)
	}
}

func TestDump(t *testing.T) {
	e := newEngine(t)
	got, err := e.Exec("dump app.Box<String>")
	if err != nil {
		t.Fatalf("Expected dump to succeed, got %v", err)
	}
	if !strings.Contains(got, "code.ClassType") {
		t.Errorf("Expected the dump to show the ClassType structure, got %s", got)
	}
	if names := Commands(); len(names) != len(commands) || names[0].Name != "assign T S" {
		t.Errorf("Expected sorted command descriptions, got %v", names)
	}
}

func TestModuleQueries(t *testing.T) {
	e := newEngineWith(t, map[string]string{
		"app.yaml":  "module: app\nversion: 1.0.0\nrequires:\n  - module: base\n    version: ^2.0.0\n  - module: util\n",
		"base.yaml": "module: base\nversion: 1.5.0\nrequires:\n  - module: util\n",
		"util.yaml": "module: util\n",
	})

	tests := []struct {
		query string
		want  []string
	}{
		{"modules", []string{
			"order: util, base, app",
			"modules: 3, requires: 3, unversioned: 1, roots: 1",
			"module.version.mismatch(app)",
		}},
		{"requires app", []string{"[util, base]"}},
		{"requires util", []string{"[]"}},
		{"dependents util", []string{"[app, base]"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := e.Exec(tt.query)
			if err != nil {
				t.Fatalf("Expected %q to succeed, got %v", tt.query, err)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("Expected output containing %q, got %q", want, got)
				}
			}
		})
	}

	if _, err := e.Exec("requires nope"); err == nil || !strings.Contains(err.Error(), "unknown module") {
		t.Errorf("Expected an unknown module error, got %v", err)
	}
}
