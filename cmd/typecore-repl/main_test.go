package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/orizon-lang/typecore/internal/config"
)

const boxManifest = `
packages:
  - name: app
    classes:
      - name: Box
        flags: [public]
        type_params:
          - name: T
`

func newTestREPL(t *testing.T) (*REPL, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "box.yaml"), []byte(boxManifest), 0o644); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
	cfg := config.Default()
	cfg.Log.Level = "error"
	r, err := NewREPL(cfg, []string{dir})
	if err != nil {
		t.Fatalf("Expected the REPL to start, got %v", err)
	}
	var out bytes.Buffer
	r.out = &out
	return r, &out
}

func TestEvaluate(t *testing.T) {
	r, _ := newTestREPL(t)

	got, err := r.Evaluate("sub app.Box<String> app.Box<?>")
	if err != nil {
		t.Fatalf("Expected the query to succeed, got %v", err)
	}
	if got != "true" {
		t.Errorf("Expected true, got %s", got)
	}
	if _, err := r.Evaluate("frob"); err == nil {
		t.Errorf("Expected an unknown query to fail")
	}
}

func TestHandleCommand(t *testing.T) {
	tests := []struct {
		line     string
		wantExit bool
		wantOut  string
	}{
		{":help", false, "REPL Commands:"},
		{":quit", true, "Goodbye!"},
		{":round", false, "Round 1"},
		{":reload", false, "Reloaded 1 classes, round 1"},
		{":classes", false, "app.Box"},
		{":load", false, "Usage: :load <dir>"},
		{":load /nonexistent", false, "Error loading /nonexistent"},
		{":session", false, "round 0"},
		{":frob", false, "Unknown command: :frob"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r, out := newTestREPL(t)
			if exit := r.HandleCommand(tt.line); exit != tt.wantExit {
				t.Errorf("Expected exit %v, got %v", tt.wantExit, exit)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("Expected output containing %q, got %q", tt.wantOut, out.String())
			}
		})
	}
}

func TestRoundRecompletes(t *testing.T) {
	r, _ := newTestREPL(t)
	if got, _ := r.Evaluate("complete app.Box"); got != "complete: public" {
		t.Fatalf("Expected complete: public, got %s", got)
	}
	r.HandleCommand(":round")
	if got, _ := r.Evaluate("complete app.Box"); got != "complete: public" {
		t.Errorf("Expected app.Box to complete again after a new round, got %s", got)
	}
}

func TestCompleteLine(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{":r", []string{":round", ":reload"}},
		{":q", []string{":quit"}},
		{"su", []string{"sub", "supertype"}},
		{"zz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := completeLine(tt.line); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
