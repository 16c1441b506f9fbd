package graph

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// formatter writes graph text to an output stream one line at a time.
type formatter struct {
	w      io.Writer
	indent string
	depth  int
	line   []byte
}

// newFormatter returns a new formatter that writes to w, indenting each
// nesting level by spaces.
func newFormatter(w io.Writer, spaces int) *formatter {
	var indentStr string
	if spaces > 0 {
		indentStr = strings.Repeat(" ", spaces)
	}
	return &formatter{w: w, indent: indentStr}
}

// beginLine starts a new line at the current depth.
func (f *formatter) beginLine() {
	f.line = f.line[:0]
	for i := 0; i < f.depth; i++ {
		f.line = append(f.line, f.indent...)
	}
}

func (f *formatter) endLine() error {
	f.line = append(f.line, '\n')
	_, err := f.w.Write(f.line)
	return err
}

func (f *formatter) appendName(name []byte) { f.line = append(f.line, name...) }

func (f *formatter) appendSeparator() { f.line = append(f.line, ", "...) }

func (f *formatter) appendInt(v int64) { f.line = strconv.AppendInt(f.line, v, 10) }

func (f *formatter) appendUint(v uint64) { f.line = strconv.AppendUint(f.line, v, 10) }

// appendFloat writes v in plain decimal notation with at least one
// fractional digit, so it reads back as a Float rather than an Integer.
func (f *formatter) appendFloat(v float64, bitSize int) {
	start := len(f.line)
	f.line = strconv.AppendFloat(f.line, v, 'f', -1, bitSize)
	if bytes.IndexByte(f.line[start:], '.') < 0 {
		f.line = append(f.line, ".0"...)
	}
}

// appendString writes s between quotes, verbatim.
func (f *formatter) appendString(s []byte) {
	f.line = append(f.line, '"')
	f.line = append(f.line, s...)
	f.line = append(f.line, '"')
}

// validName reports whether name reads back as a single Name token.
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '_'):
		default:
			return fmt.Errorf("name %q is not an identifier", name)
		}
	}
	return nil
}

// validString reports whether s reads back unchanged as the contents of a
// String token: no NUL bytes, every quote escaped, and no trailing unpaired
// backslash.
func validString(s string) error {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == 0:
			return fmt.Errorf("string contains a NUL byte at offset %d", i)
		case c == '"' && !escaped:
			return fmt.Errorf("string contains an unescaped quote at offset %d", i)
		default:
			escaped = c == '\\' && !escaped
		}
	}
	if escaped {
		return fmt.Errorf("string ends with an unpaired backslash")
	}
	return nil
}

func validFloat(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("float %v has no textual form", v)
	}
	return nil
}
