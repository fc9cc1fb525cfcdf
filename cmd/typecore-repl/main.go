// Command typecore-repl is an interactive shell over the type algebra.
// Lines are queries (see :help); lines starting with ':' are shell commands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/orizon-lang/typecore/internal/cli"
	"github.com/orizon-lang/typecore/internal/code"
	"github.com/orizon-lang/typecore/internal/config"
	"github.com/orizon-lang/typecore/internal/loader"
	"github.com/orizon-lang/typecore/internal/query"
	"github.com/orizon-lang/typecore/internal/types"
)

const (
	toolName   = "typecore-repl"
	promptMain = "typecore> "
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		showHelp    = flag.Bool("help", false, "show help information")
		jsonOutput  = flag.Bool("json", false, "output version in JSON format")
		configFile  = flag.String("config", "", "configuration file path")
		evalStr     = flag.String("eval", "", "evaluate a query and exit")
		historyFile = flag.String("history", defaultHistory(), "history file path")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [DIR...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Interactive queries over the classes declared in DIR.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		printHelp(os.Stderr)
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		cli.PrintVersion(os.Stdout, toolName, *jsonOutput)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	cli.HandleError(err, nil)
	dirs := flag.Args()
	if len(dirs) == 0 {
		dirs = cfg.Loader.Paths
	}

	repl, err := NewREPL(cfg, dirs)
	cli.HandleError(err, nil)

	if *evalStr != "" {
		out, err := repl.Evaluate(*evalStr)
		if err != nil {
			cli.ExitWithError("%v", err)
		}
		fmt.Println(out)
		os.Exit(0)
	}

	os.Exit(repl.Run(*historyFile))
}

func defaultHistory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".typecore_history"
	}
	return filepath.Join(home, ".typecore_history")
}

// REPL holds one loader session over a fixed set of directories.
type REPL struct {
	cfg    *config.Config
	dirs   []string
	l      *loader.Loader
	engine *query.Engine
	out    io.Writer
}

// NewREPL loads the manifests under dirs.
func NewREPL(cfg *config.Config, dirs []string) (*REPL, error) {
	log, err := cli.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	syms := code.NewSymtab()
	l := loader.New(syms, types.New(syms, types.WithLogger(log)), loader.WithLogger(log))
	r := &REPL{cfg: cfg, l: l, engine: query.New(l), out: os.Stdout}
	for _, dir := range dirs {
		if err := r.addDir(dir); err != nil {
			return nil, err
		}
	}
	ctx, cancel := r.context()
	defer cancel()
	if err := l.Load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *REPL) addDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	r.dirs = append(r.dirs, dir)
	r.l.AddSource(loader.NewFileSource(dir))
	return nil
}

func (r *REPL) context() (context.Context, context.CancelFunc) {
	if d := r.cfg.Timeout(); d > 0 {
		return context.WithTimeout(context.Background(), d)
	}
	return context.WithCancel(context.Background())
}

func (r *REPL) reload() error {
	ctx, cancel := r.context()
	defer cancel()
	return r.l.Reload(ctx)
}

// Run reads lines until EOF or :quit and returns the exit code.
func (r *REPL) Run(historyFile string) int {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(completeLine)

	if f, err := os.Open(historyFile); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	saveHistory := func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	go func() {
		<-sigChan
		saveHistory()
		ln.Close()
		os.Exit(0)
	}()

	info := cli.GetVersionInfo()
	fmt.Fprintf(r.out, "%s v%s, session %s\n", toolName, info.Version, r.l.Session().ID)
	fmt.Fprintf(r.out, "Type :help for help, :quit to exit\n\n")

	for {
		line, err := ln.Prompt(promptMain)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			break
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		if strings.HasPrefix(line, ":") {
			if r.HandleCommand(line) {
				break
			}
			continue
		}

		out, err := r.Evaluate(line)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(r.out, out)
	}

	saveHistory()
	return 0
}

// Evaluate runs one query.
func (r *REPL) Evaluate(line string) (string, error) {
	return r.engine.Exec(line)
}

// HandleCommand runs a shell command and reports whether the shell should
// exit.
func (r *REPL) HandleCommand(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case ":help", ":h":
		printHelp(r.out)
	case ":quit", ":q", ":exit":
		fmt.Fprintln(r.out, "Goodbye!")
		return true
	case ":round":
		r.l.NewRound()
		fmt.Fprintf(r.out, "Round %d\n", r.l.Session().Round)
	case ":reload":
		if err := r.reload(); err != nil {
			fmt.Fprintf(r.out, "Error reloading: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "Reloaded %d classes, round %d\n", len(r.l.Classes()), r.l.Session().Round)
	case ":load":
		if len(parts) < 2 {
			fmt.Fprintln(r.out, "Usage: :load <dir>")
			return false
		}
		if err := r.addDir(parts[1]); err != nil {
			fmt.Fprintf(r.out, "Error loading %s: %v\n", parts[1], err)
			return false
		}
		if err := r.reload(); err != nil {
			fmt.Fprintf(r.out, "Error loading %s: %v\n", parts[1], err)
			return false
		}
		fmt.Fprintf(r.out, "Loaded %s\n", parts[1])
	case ":classes":
		r.listClasses()
	case ":session":
		s := r.l.Session()
		fmt.Fprintf(r.out, "session %s, round %d, started %s, dirs %v\n",
			s.ID, s.Round, s.Started.Format("15:04:05"), r.dirs)
	default:
		fmt.Fprintf(r.out, "Unknown command: %s\n", parts[0])
		fmt.Fprintln(r.out, "Type :help for available commands")
	}
	return false
}

func (r *REPL) listClasses() {
	classes := r.l.Classes()
	if len(classes) == 0 {
		fmt.Fprintln(r.out, "No classes loaded")
		return
	}
	for _, c := range classes {
		fmt.Fprintf(r.out, "  %-30s %s\n", c.FlatName(), c.State())
	}
	if missing := r.l.Missing(); len(missing) > 0 {
		fmt.Fprintln(r.out, "Missing:")
		for _, c := range missing {
			fmt.Fprintf(r.out, "  %s\n", c.FlatName())
		}
	}
}

var shellCommands = []string{":help", ":quit", ":round", ":reload", ":load", ":classes", ":session"}

func completeLine(line string) []string {
	var out []string
	candidates := shellCommands
	if !strings.HasPrefix(line, ":") {
		candidates = nil
		for _, c := range query.Commands() {
			candidates = append(candidates, strings.Fields(c.Name)[0])
		}
	}
	for _, c := range candidates {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "REPL Commands:")
	fmt.Fprintln(w, "  :help, :h          Show this help")
	fmt.Fprintln(w, "  :quit, :q, :exit   Exit REPL")
	fmt.Fprintln(w, "  :round             Start a new round; every class becomes a stub again")
	fmt.Fprintln(w, "  :reload            Reread all manifests and start a new round")
	fmt.Fprintln(w, "  :load <dir>        Add a manifest directory")
	fmt.Fprintln(w, "  :classes           List loaded and missing classes")
	fmt.Fprintln(w, "  :session           Show the loader session")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Queries:")
	for _, c := range query.Commands() {
		fmt.Fprintf(w, "  %-18s %s\n", c.Name, c.Description)
	}
}
