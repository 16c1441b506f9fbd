// Package diag carries the structured error reporting shared by the loader
// and the saver.
//
// Every failure is recorded in a Context and handed synchronously to the
// Context's Callback before it is returned to the caller. The callback decides
// the policy: log and continue (LogCallback), log and terminate
// (ExitCallback), or stay silent (Discard).
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/KimNorgaard/go-graph/token"
)

// Severity ranks a diagnostic.
type Severity uint8

const (
	Error Severity = iota
	Warning
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "ERROR"
	case Warning:
		return "WARNING"
	case Info:
		return "INFO"
	}
	return "UNKNOWN"
}

func (s Severity) level() slog.Level {
	switch s {
	case Error:
		return slog.LevelError
	case Warning:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Code classifies the failure. A Code is itself an error so callers can test
// returned errors with errors.Is(err, diag.ConversionError).
type Code uint8

const (
	Unknown         Code = iota
	LoadError            // tokenize, parse or read failure
	UnexpectedNode       // structural mismatch at query time
	LogicError           // caller contract violation, e.g. a buffer that is too small
	ConversionError      // numeric or string conversion failure
	WriteError           // serialization or output failure
)

var codeNames = [...]string{
	Unknown:         "unknown error",
	LoadError:       "load error",
	UnexpectedNode:  "unexpected node",
	LogicError:      "logic error",
	ConversionError: "conversion error",
	WriteError:      "write error",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return codeNames[Unknown]
}

func (c Code) Error() string { return "graph: " + c.String() }

// Diagnostic is a single reported event.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Line     int    // 1-based; zero when no token is associated
	Column   int    // 1-based; zero when no token is associated
	Token    string // text of the offending token, if any
	Message  string
}

func (d *Diagnostic) Error() string {
	if d.Line > 0 {
		return fmt.Sprintf("graph: %s at line %d, column %d: %s", d.Code.String(), d.Line, d.Column, d.Message)
	}
	return fmt.Sprintf("graph: %s: %s", d.Code.String(), d.Message)
}

// Is reports whether target is the diagnostic's Code.
func (d *Diagnostic) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == d.Code
}

// Errors is the list of error diagnostics recorded by a Context.
type Errors []*Diagnostic

func (e Errors) Error() string {
	if len(e) == 0 {
		return ""
	}
	// The collection reports its first error; later ones are usually fallout.
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e[0].Error(), len(e)-1)
}

// Unwrap exposes the individual diagnostics to errors.Is and errors.As.
func (e Errors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, d := range e {
		errs[i] = d
	}
	return errs
}

// Callback receives every diagnostic as it is reported.
type Callback func(Diagnostic)

// Context records diagnostics and forwards them to a Callback.
//
// The error history is unbounded; it is emptied only by Clear.
type Context struct {
	callback Callback
	errors   Errors
}

// New returns a Context reporting to cb. A nil cb logs through slog.Default.
func New(cb Callback) *Context {
	if cb == nil {
		cb = LogCallback(nil)
	}
	return &Context{callback: cb}
}

// Clear forgets every recorded error.
func (c *Context) Clear() {
	c.errors = nil
}

// Check reports whether an error has been recorded since New or Clear.
func (c *Context) Check() bool {
	return len(c.errors) > 0
}

// Errors returns the recorded errors in report order.
func (c *Context) Errors() Errors {
	return c.errors
}

// Err returns nil if no error has been recorded, otherwise the recorded
// Errors.
func (c *Context) Err() error {
	if len(c.errors) == 0 {
		return nil
	}
	return c.errors
}

// Push records an error and reports it. tok may be nil; when it is not, src
// is the buffer its span refers to. The returned value is the recorded
// *Diagnostic.
func (c *Context) Push(code Code, tok *token.Token, src []byte, format string, args ...any) error {
	d := c.report(Error, code, tok, src, format, args...)
	c.errors = append(c.errors, d)
	return d
}

// Warn reports a diagnostic at Warning severity. Warnings are not recorded
// as errors.
func (c *Context) Warn(code Code, tok *token.Token, src []byte, format string, args ...any) {
	c.report(Warning, code, tok, src, format, args...)
}

func (c *Context) report(sev Severity, code Code, tok *token.Token, src []byte, format string, args ...any) *Diagnostic {
	d := &Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
	if tok != nil {
		d.Line = tok.Line
		d.Column = tok.Column
		d.Token = string(tok.Text(src))
	}
	c.callback(*d)
	return d
}

// LogCallback returns a Callback that logs each diagnostic to logger and
// continues. A nil logger selects slog.Default.
func LogCallback(logger *slog.Logger) Callback {
	return func(d Diagnostic) {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		attrs := []slog.Attr{slog.String("code", d.Code.String())}
		if d.Line > 0 {
			attrs = append(attrs, slog.Int("line", d.Line), slog.Int("column", d.Column))
		}
		if d.Token != "" {
			attrs = append(attrs, slog.String("token", d.Token))
		}
		l.LogAttrs(context.Background(), d.Severity.level(), d.Message, attrs...)
	}
}

var exit = os.Exit

// ExitCallback returns a Callback that logs like LogCallback and terminates
// the process with status 1 on the first error-severity diagnostic.
func ExitCallback(logger *slog.Logger) Callback {
	log := LogCallback(logger)
	return func(d Diagnostic) {
		log(d)
		if d.Severity == Error {
			exit(1)
		}
	}
}

// Discard ignores every diagnostic.
func Discard(Diagnostic) {}
