package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/errors"
	"github.com/orizon-lang/typecore/internal/types"
)

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    string
		wantErr bool
	}{
		{"yaml", "m.yaml", "module: a\npackages:\n  - name: p\n    classes:\n      - name: A\n", false},
		{"json", "m.json", `{"module": "a", "packages": [{"name": "p", "classes": [{"name": "A"}]}]}`, false},
		{"json unknown field", "m.json", `{"module": "a", "pkgs": []}`, true},
		{"malformed yaml", "m.yaml", "module: [a\n", true},
		{"class without name", "m.yaml", "packages:\n  - name: p\n    classes:\n      - flags: [public]\n", true},
		{"qualified class name", "m.yaml", "packages:\n  - name: p\n    classes:\n      - name: q.A\n", true},
		{"package without name", "m.yaml", "packages:\n  - classes: []\n", true},
		{"requires without module", "m.yaml", "module: a\nrequires:\n  - version: ^1.0.0\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest(tt.file, []byte(tt.data))
			if tt.wantErr {
				if !errors.HasCategory(err, errors.CategoryLoader) {
					t.Errorf("Expected a LOADER error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if m.Module != "a" || len(m.Packages) != 1 || m.Packages[0].Classes[0].Name != "A" {
				t.Errorf("Expected module a declaring p.A, got %+v", m)
			}
			if m.Source != tt.file {
				t.Errorf("Expected source %s, got %s", tt.file, m.Source)
			}
		})
	}
}

func TestManifestPositions(t *testing.T) {
	data := "packages:\n  - name: p\n    classes:\n      - name: A\n        classes:\n          - name: B\n      - name: C\n"
	m, err := ParseManifest("pos.yaml", []byte(data))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	classes := m.Packages[0].Classes
	tests := []struct {
		name string
		decl ClassDecl
		line int
	}{
		{"A", classes[0], 4},
		{"B", classes[0].Classes[0], 6},
		{"C", classes[1], 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.decl.Line != tt.line {
				t.Errorf("Expected %s at line %d, got %d", tt.name, tt.line, tt.decl.Line)
			}
			if span := tt.decl.Span("pos.yaml"); span.Start.Filename != "pos.yaml" || span.Start.Line != tt.line {
				t.Errorf("Expected span at pos.yaml:%d, got %s", tt.line, span)
			}
		})
	}
}

func TestFileSourceCachesManifests(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "a.yaml", "module: a\n")
	writeManifest(t, dir, "notes.txt", "ignored")

	src := NewFileSource(dir)
	ctx := context.Background()
	names, err := src.List(ctx)
	if err != nil {
		t.Fatalf("Expected list to succeed, got %v", err)
	}
	if len(names) != 1 || names[0] != path {
		t.Fatalf("Expected [%s], got %v", path, names)
	}

	first, err := src.Fetch(ctx, path)
	if err != nil {
		t.Fatalf("Expected fetch to succeed, got %v", err)
	}
	second, _ := src.Fetch(ctx, path)
	if first != second {
		t.Errorf("Expected the cached manifest on an unchanged file")
	}
	src.Invalidate(path)
	third, _ := src.Fetch(ctx, path)
	if third == first {
		t.Errorf("Expected a fresh manifest after invalidation")
	}

	if _, err := src.Fetch(ctx, path+".gone"); !errors.HasCategory(err, errors.CategoryLoader) {
		t.Errorf("Expected a LOADER error for a missing file, got %v", err)
	}
}

func TestHTTPSource(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/base.yaml":
			_, _ = w.Write([]byte("module: base\nversion: 2.1.0\npackages:\n  - name: base\n    classes:\n      - name: Value\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/", []string{"base"}, WithTimeout(5*time.Second))
	defer src.Close()

	syms := code.NewSymtab()
	l := New(syms, types.New(syms))
	l.AddSource(src)
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Expected load to succeed, got %v", err)
	}
	if syms.LookupClass("base.Value") == nil {
		t.Errorf("Expected base.Value to be entered")
	}
	if m := syms.LookupModule("base"); m == nil || m.Version.String() != "2.1.0" {
		t.Errorf("Expected module base 2.1.0, got %v", m)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected one request, got %d", hits.Load())
	}

	_, err := src.Fetch(context.Background(), "absent")
	e, ok := errors.As(err)
	if !ok || e.Code != "source.status" {
		t.Errorf("Expected source.status, got %v", err)
	}
}

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	src := NewFileSource(dir)
	changed := make(chan []string, 1)
	w, err := NewWatcher(src, 20*time.Millisecond, nil, func(paths []string) {
		select {
		case changed <- paths:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Expected watcher to start, got %v", err)
	}
	defer w.Close()

	path := writeManifest(t, dir, "a.yaml", "module: a\n")
	writeManifest(t, dir, "notes.txt", "ignored")

	select {
	case paths := <-changed:
		if len(paths) != 1 || paths[0] != path {
			t.Errorf("Expected [%s], got %v", path, paths)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Expected a change notification")
	}
}
