package graph

import (
	"io"

	"github.com/KimNorgaard/go-graph/diag"
)

// StreamWriter writes entries straight to an io.Writer without building a
// tree. It formats values exactly like Saver.Write, but cannot check the
// document as a whole: every StartList must be matched by an EndList, or the
// output will not load.
type StreamWriter struct {
	f    *formatter
	diag *diag.Context
}

// NewStreamWriter returns a StreamWriter that writes to w.
func NewStreamWriter(w io.Writer, opts ...Option) (*StreamWriter, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return &StreamWriter{f: newFormatter(w, o.indent), diag: diag.New(o.callback)}, nil
}

// Diagnostics returns the context that records the writer's errors.
func (sw *StreamWriter) Diagnostics() *diag.Context { return sw.diag }

// Err returns every error recorded so far, or nil.
func (sw *StreamWriter) Err() error { return sw.diag.Err() }

// StartList writes "name {" and indents the entries that follow.
func (sw *StreamWriter) StartList(name string) error {
	if err := sw.begin(name); err != nil {
		return err
	}
	sw.f.line = append(sw.f.line, " {"...)
	if err := sw.end(); err != nil {
		return err
	}
	sw.f.depth++
	return nil
}

// EndList closes the innermost open list.
func (sw *StreamWriter) EndList() error {
	if sw.f.depth > 0 {
		sw.f.depth--
	}
	sw.f.beginLine()
	sw.f.line = append(sw.f.line, '}')
	return sw.end()
}

// SaveS64 writes name { v }.
func (sw *StreamWriter) SaveS64(name string, v int64) error {
	return sw.entry(name, func(f *formatter) { f.appendInt(v) })
}

// SaveS32 writes name { v }.
func (sw *StreamWriter) SaveS32(name string, v int32) error {
	return sw.SaveS64(name, int64(v))
}

// SaveU64 writes name { v }.
func (sw *StreamWriter) SaveU64(name string, v uint64) error {
	return sw.entry(name, func(f *formatter) { f.appendUint(v) })
}

// SaveU32 writes name { v }.
func (sw *StreamWriter) SaveU32(name string, v uint32) error {
	return sw.SaveU64(name, uint64(v))
}

// SaveF64 writes name { v }.
func (sw *StreamWriter) SaveF64(name string, v float64) error {
	if err := validFloat(v); err != nil {
		return sw.diag.Push(diag.WriteError, nil, nil, "%s: %s", name, err)
	}
	return sw.entry(name, func(f *formatter) { f.appendFloat(v, 64) })
}

// SaveF32 writes name { v }.
func (sw *StreamWriter) SaveF32(name string, v float32) error {
	if err := validFloat(float64(v)); err != nil {
		return sw.diag.Push(diag.WriteError, nil, nil, "%s: %s", name, err)
	}
	return sw.entry(name, func(f *formatter) { f.appendFloat(float64(v), 32) })
}

// SaveString writes name { "v" }. Quotes in v must already be escaped.
func (sw *StreamWriter) SaveString(name, v string) error {
	if err := validString(v); err != nil {
		return sw.diag.Push(diag.WriteError, nil, nil, "%s: %s", name, err)
	}
	return sw.entry(name, func(f *formatter) { f.appendString([]byte(v)) })
}

// SaveVec3 writes name { x, y, z }.
func (sw *StreamWriter) SaveVec3(name string, v [3]float32) error {
	for _, c := range v {
		if err := validFloat(float64(c)); err != nil {
			return sw.diag.Push(diag.WriteError, nil, nil, "%s: %s", name, err)
		}
	}
	return sw.entry(name, func(f *formatter) {
		for i, c := range v {
			if i > 0 {
				f.appendSeparator()
			}
			f.appendFloat(float64(c), 32)
		}
	})
}

// SaveS32Array writes name { v1, v2, ... }. An empty slice writes nothing.
func (sw *StreamWriter) SaveS32Array(name string, v []int32) error {
	return saveArray(sw, name, v, func(f *formatter, x int32) { f.appendInt(int64(x)) })
}

// SaveS64Array writes name { v1, v2, ... }. An empty slice writes nothing.
func (sw *StreamWriter) SaveS64Array(name string, v []int64) error {
	return saveArray(sw, name, v, func(f *formatter, x int64) { f.appendInt(x) })
}

// SaveU64Array writes name { v1, v2, ... }. An empty slice writes nothing.
func (sw *StreamWriter) SaveU64Array(name string, v []uint64) error {
	return saveArray(sw, name, v, func(f *formatter, x uint64) { f.appendUint(x) })
}

func saveArray[T any](sw *StreamWriter, name string, v []T, appendOne func(*formatter, T)) error {
	if len(v) == 0 {
		return nil
	}
	return sw.entry(name, func(f *formatter) {
		for i, x := range v {
			if i > 0 {
				f.appendSeparator()
			}
			appendOne(f, x)
		}
	})
}

func (sw *StreamWriter) entry(name string, values func(*formatter)) error {
	if err := sw.begin(name); err != nil {
		return err
	}
	sw.f.line = append(sw.f.line, " { "...)
	values(sw.f)
	sw.f.line = append(sw.f.line, " }"...)
	return sw.end()
}

func (sw *StreamWriter) begin(name string) error {
	if err := validName(name); err != nil {
		return sw.diag.Push(diag.LogicError, nil, nil, "%s", err)
	}
	sw.f.beginLine()
	sw.f.appendName([]byte(name))
	return nil
}

func (sw *StreamWriter) end() error {
	if err := sw.f.endLine(); err != nil {
		return sw.diag.Push(diag.WriteError, nil, nil, "failed to write: %s", err)
	}
	return nil
}
