package graph

import (
	"fmt"
	"log/slog"

	"github.com/KimNorgaard/go-graph/diag"
	"github.com/KimNorgaard/go-graph/internal/arena"
	"github.com/KimNorgaard/go-graph/parser"
)

// Option configures a Loader, Saver or StreamWriter.
type Option func(*options) error

// Allocator supplies the memory blocks behind a Saver's string pool.
// Allocate must return a slice of at least size bytes whose address stays
// valid until it is passed to Free. Free must accept nil.
type Allocator interface {
	Allocate(size int) []byte
	Free(b []byte)
}

type options struct {
	callback  diag.Callback
	allocator arena.Allocator
	maxDepth  int
	indent    int
}

const defaultIndent = 2

func newOptions(opts []Option) (*options, error) {
	o := &options{
		allocator: arena.Heap,
		maxDepth:  parser.DefaultMaxDepth,
		indent:    defaultIndent,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithDiagnostics returns an Option that sends every diagnostic to cb. The
// default logs through slog.Default and continues.
func WithDiagnostics(cb diag.Callback) Option {
	return func(o *options) error {
		if cb == nil {
			return fmt.Errorf("graph: diagnostics callback must not be nil")
		}
		o.callback = cb
		return nil
	}
}

// WithLogger returns an Option that logs diagnostics to logger and continues.
func WithLogger(logger *slog.Logger) Option {
	return WithDiagnostics(diag.LogCallback(logger))
}

// WithAllocator returns an Option that draws pool blocks from a.
func WithAllocator(a Allocator) Option {
	return func(o *options) error {
		if a == nil {
			return fmt.Errorf("graph: allocator must not be nil")
		}
		o.allocator = a
		return nil
	}
}

// MaxDepth returns an Option that limits how deeply blocks may nest, both
// when parsing and when mapping Go values. This guards against stack
// exhaustion on hostile input and against cyclic data.
//
// The depth n must be a positive integer.
func MaxDepth(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("graph: max depth must be a positive integer")
		}
		o.maxDepth = n
		return nil
	}
}

// Indent returns an Option that sets the number of spaces written per
// nesting level. Zero disables indentation.
func Indent(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("graph: indent must not be negative")
		}
		o.indent = n
		return nil
	}
}
