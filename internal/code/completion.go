package code

import (
	stderrors "errors"

	"github.com/orizon-lang/typecore/internal/diagnostic"
	"github.com/orizon-lang/typecore/internal/errors"
)

// Completer populates a stub symbol. It is invoked at most once per symbol
// and round.
type Completer interface {
	Complete(sym Symbol) error
	IsTerminal() bool
}

// CompleterFunc adapts a function to a one-shot Completer.
type CompleterFunc func(sym Symbol) error

func (f CompleterFunc) Complete(sym Symbol) error { return f(sym) }
func (f CompleterFunc) IsTerminal() bool          { return false }

type noCompleter struct{}

func (noCompleter) Complete(Symbol) error { return nil }
func (noCompleter) IsTerminal() bool      { return true }

// NoCompleter is the terminal completer of complete symbols.
var NoCompleter Completer = noCompleter{}

// CompletionState tracks where a symbol is in its completion lifecycle.
type CompletionState int

const (
	StateComplete CompletionState = iota
	StateStub
	StateCompleting
	StateFailed
)

func (s CompletionState) String() string {
	switch s {
	case StateComplete:
		return "complete"
	case StateStub:
		return "stub"
	case StateCompleting:
		return "completing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureHandler decides what happens to completion failures raised while
// an accessor such as Flags or Members forced completion.
type FailureHandler interface {
	HandleCompletionFailure(cf *CompletionFailure)
}

// FailureHandlerFunc adapts a function to a FailureHandler.
type FailureHandlerFunc func(cf *CompletionFailure)

func (f FailureHandlerFunc) HandleCompletionFailure(cf *CompletionFailure) { f(cf) }

// CompletionFailure reports that Sym could not be resolved. Its fragment
// is computed lazily.
type CompletionFailure struct {
	err     *errors.Error
	Sym     Symbol
	Handler FailureHandler
}

// NewCompletionFailure creates a failure for sym. cause may be nil.
func NewCompletionFailure(sym Symbol, code string, cause error, fragment func() *diagnostic.Fragment) *CompletionFailure {
	if fragment == nil {
		fragment = func() *diagnostic.Fragment {
			return diagnostic.NewFragment(code, sym.QualifiedName())
		}
	}
	return &CompletionFailure{
		err: errors.Wrap(errors.CategoryCompletion, code, cause, fragment),
		Sym: sym,
	}
}

// WithHandler sets the recovery handler and returns cf.
func (cf *CompletionFailure) WithHandler(h FailureHandler) *CompletionFailure {
	cf.Handler = h
	return cf
}

func (cf *CompletionFailure) Error() string                  { return cf.err.Error() }
func (cf *CompletionFailure) Unwrap() error                  { return cf.err.Unwrap() }
func (cf *CompletionFailure) Base() *errors.Error            { return cf.err }
func (cf *CompletionFailure) Code() string                   { return cf.err.Code }
func (cf *CompletionFailure) Fragment() *diagnostic.Fragment { return cf.err.Fragment() }

// AsCompletionFailure finds a completion failure in err's chain.
func AsCompletionFailure(err error) (*CompletionFailure, bool) {
	var cf *CompletionFailure
	if stderrors.As(err, &cf) {
		return cf, true
	}
	return nil, false
}

func failureFor(sym Symbol, err error) *CompletionFailure {
	if cf, ok := AsCompletionFailure(err); ok && cf.Sym == sym {
		return cf
	}
	cf := NewCompletionFailure(sym, "cant.complete", err, nil)
	if inner, ok := AsCompletionFailure(err); ok {
		cf.Handler = inner.Handler
	}
	return cf
}

// ====== Deferred Handling ======

// DeferredFailureHandler queues failures while speculative work runs and
// replays them to a delegate on Flush.
type DeferredFailureHandler struct {
	delegate FailureHandler
	queue    []*CompletionFailure
	deferred bool
}

// NewDeferredFailureHandler creates a handler forwarding to delegate.
func NewDeferredFailureHandler(delegate FailureHandler) *DeferredFailureHandler {
	return &DeferredFailureHandler{delegate: delegate}
}

// Defer starts queueing.
func (d *DeferredFailureHandler) Defer() {
	d.deferred = true
}

// Flush stops queueing and replays every queued failure.
func (d *DeferredFailureHandler) Flush() {
	d.deferred = false
	queued := d.queue
	d.queue = nil
	for _, cf := range queued {
		d.delegate.HandleCompletionFailure(cf)
	}
}

// Discard stops queueing and drops the queue. It returns the dropped
// failures.
func (d *DeferredFailureHandler) Discard() []*CompletionFailure {
	dropped := d.queue
	d.deferred = false
	d.queue = nil
	return dropped
}

// Pending returns the number of queued failures.
func (d *DeferredFailureHandler) Pending() int {
	return len(d.queue)
}

func (d *DeferredFailureHandler) HandleCompletionFailure(cf *CompletionFailure) {
	if d.deferred {
		d.queue = append(d.queue, cf)
		return
	}
	d.delegate.HandleCompletionFailure(cf)
}
