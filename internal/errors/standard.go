// Package errors provides the categorized, chainable error used across typecore.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/orizon-lang/typecore/internal/diagnostic"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryCompletion ErrorCategory = "COMPLETION"
	CategoryLookup     ErrorCategory = "LOOKUP"
	CategoryLoader     ErrorCategory = "LOADER"
	CategoryConfig     ErrorCategory = "CONFIG"
	CategoryModule     ErrorCategory = "MODULE"
)

// Error carries a diagnostic fragment that is only built when somebody
// asks for it.
type Error struct {
	cause    error
	build    func() *diagnostic.Fragment
	fragment *diagnostic.Fragment
	Category ErrorCategory
	Code     string
	Caller   string
	once     sync.Once
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Fragment().String())
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Fragment returns the lazily computed diagnostic fragment.
func (e *Error) Fragment() *diagnostic.Fragment {
	e.once.Do(func() {
		if e.build != nil {
			e.fragment = e.build()
		}
		if e.fragment == nil {
			e.fragment = diagnostic.NewFragment(e.Code)
		}
	})
	return e.fragment
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an error whose fragment is computed on first use.
func New(category ErrorCategory, code string, fragment func() *diagnostic.Fragment) *Error {
	return newError(category, code, nil, fragment)
}

// Wrap creates an error chained to cause.
func Wrap(category ErrorCategory, code string, cause error, fragment func() *diagnostic.Fragment) *Error {
	return newError(category, code, cause, fragment)
}

// Newf creates an error with an eager fragment built from args.
func Newf(category ErrorCategory, code string, args ...any) *Error {
	return newError(category, code, nil, func() *diagnostic.Fragment {
		return diagnostic.NewFragment(code, args...)
	})
}

func newError(category ErrorCategory, code string, cause error, fragment func() *diagnostic.Fragment) *Error {
	pc, _, _, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &Error{
		Category: category,
		Code:     code,
		Caller:   caller,
		cause:    cause,
		build:    fragment,
	}
}

// Base returns the receiver. Domain errors that carry an *Error implement
// Base as well, which lets the helpers below find the categorized error.
func (e *Error) Base() *Error {
	return e
}

type based interface {
	Base() *Error
}

// HasCategory reports whether any error in err's chain has the category.
func HasCategory(err error, category ErrorCategory) bool {
	e, ok := As(err)
	for ok {
		if e.Category == category {
			return true
		}
		e, ok = As(e.cause)
	}
	return false
}

// As finds the first categorized error in err's chain.
func As(err error) (*Error, bool) {
	for err != nil {
		if b, ok := err.(based); ok {
			return b.Base(), true
		}
		err = stderrors.Unwrap(err)
	}
	return nil, false
}
