package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sort"

	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/config"
	"github.com/orizon-lang/typecore/internal/diagnostic"
	"github.com/orizon-lang/typecore/internal/loader"
	"github.com/orizon-lang/typecore/internal/query"
	"github.com/orizon-lang/typecore/internal/types"
)

// unit is one independently checked directory of manifests. Units share
// nothing but the configuration.
type unit struct {
	dir    string
	cfg    *config.Config
	log    *slog.Logger
	syms   *code.Symtab
	ty     *types.Types
	l      *loader.Loader
	files  *loader.FileSource
	remote *loader.HTTPSource
	diags  *diagnostic.DiagnosticEngine
}

func newUnit(cfg *config.Config, dir string, log *slog.Logger) *unit {
	log = log.With("unit", dir)
	diags := diagnostic.NewDiagnosticEngine(diagnostic.DiagnosticConfig{
		MaxErrors:        cfg.Diagnostics.MaxErrors,
		WarningsAsErrors: cfg.Diagnostics.WarningsAsErrors,
	})
	syms := code.NewSymtab()
	syms.Sink = diags
	ty := types.New(syms, types.WithLogger(log), types.WithDiagnostics(diags))
	files := loader.NewFileSource(dir)
	return &unit{
		dir:   dir,
		cfg:   cfg,
		log:   log,
		syms:  syms,
		ty:    ty,
		l:     loader.New(syms, ty, loader.WithLogger(log), loader.WithSource(files)),
		files: files,
		diags: diags,
	}
}

// load reads the unit's manifests. Required modules no local manifest
// declares are fetched from the configured registry.
func (u *unit) load(ctx context.Context) error {
	if err := u.l.Load(ctx); err != nil {
		return err
	}
	if u.cfg.Loader.Remote == "" || u.remote != nil {
		return nil
	}
	unresolved := u.l.Unresolved()
	if len(unresolved) == 0 {
		return nil
	}

	var opts []loader.HTTPOption
	if d := u.cfg.Timeout(); d > 0 {
		opts = append(opts, loader.WithTimeout(d))
	}
	if u.cfg.Loader.HTTP3 {
		opts = append(opts, loader.WithHTTP3(&tls.Config{MinVersion: tls.VersionTLS13}))
	}
	u.remote = loader.NewHTTPSource(u.cfg.Loader.Remote, unresolved, opts...)
	u.l.AddSource(u.remote)
	u.log.Info("fetching required modules", "remote", u.cfg.Loader.Remote, "modules", unresolved)
	return u.l.Load(ctx)
}

// check completes everything the unit declares and reports what it finds
// to the unit's diagnostics.
func (u *unit) check() {
	u.l.CompleteAll()

	for _, c := range u.l.Classes() {
		if c.State() != code.StateComplete {
			continue
		}
		if c.Flags()&code.Sealed != 0 {
			u.checkPermits(c)
		}
		if c.Flags()&(code.Interface|code.Sealed) == code.Interface {
			if _, err := u.ty.FindDescriptorType(c.Type()); err == nil {
				u.log.Debug("functional interface", "interface", c.QualifiedName())
			}
		}
	}
}

// checkPermits reports permitted subclasses that do not extend the sealed
// class directly.
func (u *unit) checkPermits(c *code.ClassSymbol) {
	for _, sub := range c.Permitted() {
		if sub.State() == code.StateFailed || directlyExtends(u.ty, sub, c) {
			continue
		}
		u.diags.Report(diagnostic.NewDiagnostic().
			Error().
			Category(diagnostic.DiagnosticType).
			Fragment(diagnostic.NewFragment("invalid.permits.clause", c.QualifiedName(), sub.QualifiedName())).
			Span(c.Pos).
			Related(sub.Pos, diagnostic.NewFragment("permitted.subclass", sub.QualifiedName())).
			Build())
	}
}

func directlyExtends(ty *types.Types, sub, sealed *code.ClassSymbol) bool {
	supers := append([]code.Type{ty.Supertype(sub.Type())}, ty.Interfaces(sub.Type())...)
	for _, s := range supers {
		if ct, ok := s.(*code.ClassType); ok && ct.Sym == sealed {
			return true
		}
	}
	return false
}

// reload rereads the unit after its manifests changed and checks it again.
func (u *unit) reload(ctx context.Context) error {
	u.diags.Clear()
	if err := u.l.Reload(ctx); err != nil {
		return err
	}
	u.check()
	return nil
}

func (u *unit) query(line string) (string, error) {
	return query.New(u.l).Exec(line)
}

func (u *unit) close() {
	if u.remote != nil {
		if err := u.remote.Close(); err != nil {
			u.log.Warn("failed to close remote source", "error", err)
		}
	}
}

// ====== Reports ======

type report struct {
	Unit        string       `json:"unit"`
	Classes     int          `json:"classes"`
	Missing     []string     `json:"missing,omitempty"`
	Diagnostics []diagReport `json:"diagnostics"`
}

type diagReport struct {
	Level    string `json:"level"`
	Category string `json:"category"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Span     string `json:"span,omitempty"`
}

func (u *unit) report() report {
	r := report{Unit: u.dir, Classes: len(u.l.Classes()), Diagnostics: []diagReport{}}
	for _, c := range u.l.Missing() {
		r.Missing = append(r.Missing, c.QualifiedName())
	}
	sort.Strings(r.Missing)
	for _, d := range u.diags.GetDiagnostics() {
		dr := diagReport{
			Level:    d.Level.String(),
			Category: d.Category.String(),
			Code:     d.Code(),
			Message:  d.Fragment.String(),
		}
		if d.Span.Start.Filename != "" {
			dr.Span = d.Span.String()
		}
		r.Diagnostics = append(r.Diagnostics, dr)
	}
	return r
}

func (u *unit) summary() string {
	errs, warns := len(u.diags.GetErrors()), len(u.diags.GetWarnings())
	return fmt.Sprintf("%s: %d classes, %d missing, %d errors, %d warnings",
		u.dir, len(u.l.Classes()), len(u.l.Missing()), errs, warns)
}
