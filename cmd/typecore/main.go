// Command typecore checks directories of declaration manifests. Each
// directory is an independent unit with its own symbol table; units are
// checked concurrently.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/typecore/internal/cli"
	"github.com/orizon-lang/typecore/internal/config"
	"github.com/orizon-lang/typecore/internal/loader"
	"github.com/orizon-lang/typecore/internal/query"
)

const toolName = "typecore"

type options struct {
	config  string
	json    bool
	query   string
	watch   bool
	version bool
	help    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.config, "config", "", "configuration file path")
	fs.BoolVar(&opts.json, "json", false, "output in JSON format")
	fs.StringVar(&opts.query, "query", "", "evaluate a query in every unit after checking")
	fs.BoolVar(&opts.watch, "watch", false, "recheck units when their manifests change")
	fs.BoolVar(&opts.version, "version", false, "show version information")
	fs.BoolVar(&opts.help, "help", false, "show help information")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if opts.help {
		usage(stdout, fs)
		return 0
	}
	if opts.version {
		cli.PrintVersion(stdout, toolName, opts.json)
		return 0
	}

	cfg, err := config.Load(opts.config)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	log, err := cli.NewLogger(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	dirs := fs.Args()
	if len(dirs) == 0 {
		dirs = cfg.Loader.Paths
	}
	if len(dirs) == 0 {
		fmt.Fprintln(stderr, "Error: no unit directories given")
		usage(stderr, fs)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	units, err := checkAll(ctx, cfg, dirs, log)
	defer func() {
		for _, u := range units {
			u.close()
		}
	}()
	if err != nil {
		log.Error("check failed", "error", err)
		return 1
	}

	failed := printResults(stdout, units, opts)
	if !opts.watch && !cfg.Check.Watch {
		if failed {
			return 1
		}
		return 0
	}
	if err := watch(ctx, units, stdout, opts, log); err != nil {
		log.Error("watch failed", "error", err)
		return 1
	}
	return 0
}

func usage(w io.Writer, fs *flag.FlagSet) {
	cli.PrintUsage(w, toolName, "[OPTIONS] DIR...", nil)
	fmt.Fprintf(w, "OPTIONS:\n")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nQUERIES:\n")
	for _, c := range query.Commands() {
		fmt.Fprintf(w, "    %-22s %s\n", c.Name, c.Description)
	}
	fmt.Fprintf(w, "\nEXAMPLES:\n")
	fmt.Fprintf(w, "    %s decls/                             # check one unit\n", toolName)
	fmt.Fprintf(w, "    %s -json a/ b/                        # check two units, JSON report\n", toolName)
	fmt.Fprintf(w, "    %s -query 'sub app.Box app.Box<?>' a/  # check, then query\n", toolName)
}

// checkAll loads and checks every unit, at most check.workers at a time.
func checkAll(ctx context.Context, cfg *config.Config, dirs []string, log *slog.Logger) ([]*unit, error) {
	units := make([]*unit, len(dirs))
	for i, dir := range dirs {
		units[i] = newUnit(cfg, dir, log)
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Check.Workers > 0 {
		g.SetLimit(cfg.Check.Workers)
	}
	for _, u := range units {
		g.Go(func() error {
			start := time.Now()
			if err := u.load(ctx); err != nil {
				return fmt.Errorf("%s: %w", u.dir, err)
			}
			u.check()
			u.log.Info("unit checked", "session", u.l.Session().ID, "duration", time.Since(start))
			return nil
		})
	}
	return units, g.Wait()
}

// printResults writes every unit's report in argument order and reports
// whether any unit has errors.
func printResults(w io.Writer, units []*unit, opts options) bool {
	failed := false
	reports := make([]report, 0, len(units))
	for _, u := range units {
		if u.diags.HasErrors() {
			failed = true
		}
		r := u.report()
		reports = append(reports, r)
		if opts.json {
			continue
		}
		fmt.Fprintln(w, u.summary())
		if len(r.Diagnostics) > 0 {
			fmt.Fprintln(w, u.diags.FormatDiagnostics())
		}
	}
	if opts.json {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err == nil {
			fmt.Fprintln(w, string(data))
		}
	}
	if opts.query != "" {
		for _, u := range units {
			out, err := u.query(opts.query)
			if err != nil {
				out = "error: " + err.Error()
				failed = true
			}
			fmt.Fprintf(w, "%s> %s\n%s\n", u.dir, opts.query, out)
		}
	}
	return failed
}

// watch rechecks a unit whenever one of its manifests changes, until ctx
// is cancelled.
func watch(ctx context.Context, units []*unit, w io.Writer, opts options, log *slog.Logger) error {
	var mu sync.Mutex
	watchers := make([]*loader.Watcher, 0, len(units))
	defer func() {
		for _, wt := range watchers {
			_ = wt.Close()
		}
	}()

	for _, u := range units {
		wt, err := loader.NewWatcher(u.files, 200*time.Millisecond, u.log, func(paths []string) {
			mu.Lock()
			defer mu.Unlock()
			if err := u.reload(ctx); err != nil {
				u.log.Error("reload failed", "error", err)
				return
			}
			printResults(w, []*unit{u}, opts)
		})
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", u.dir, err)
		}
		watchers = append(watchers, wt)
	}

	log.Info("watching for changes", "units", len(units))
	<-ctx.Done()
	return nil
}
