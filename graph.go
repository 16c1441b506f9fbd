package graph

import (
	"bytes"
	"strings"

	"github.com/KimNorgaard/go-graph/diag"
	"github.com/KimNorgaard/go-graph/internal/convert"
	"github.com/KimNorgaard/go-graph/token"
)

// Marshaler is the interface implemented by types that can add themselves
// to a document. MarshalGraph is called with the entry created for the value
// and adds the entry's children.
type Marshaler interface {
	MarshalGraph(s *Saver, parent SaverNode) error
}

// Unmarshaler is the interface implemented by types that can read
// themselves from a loaded document. UnmarshalGraph is called with the entry
// holding the value.
type Unmarshaler interface {
	UnmarshalGraph(l *Loader, n NodeID) error
}

// Marshal returns the graph encoding of v.
func Marshal(v any, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf, opts...).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal parses data and stores the result in the value pointed to by v.
//
// Entries are matched to struct fields by their `graph` tag or field name,
// case-sensitively. The first entry of a name wins; unknown names are
// ignored. A slice of structs or maps collects every entry of its name.
func Unmarshal(data []byte, v any, opts ...Option) error {
	l, err := NewLoader(opts...)
	if err != nil {
		return err
	}
	defer l.Unload()
	if err := l.Load(data); err != nil {
		return err
	}
	return newDecodeState(l).unmarshal(v)
}

// Format parses src and writes it back in canonical layout.
//
// Comments are dropped. Numbers are rewritten in plain decimal form; strings
// are kept byte for byte.
func Format(src []byte, opts ...Option) ([]byte, error) {
	l, err := NewLoader(opts...)
	if err != nil {
		return nil, err
	}
	defer l.Unload()
	if err := l.Load(src); err != nil {
		return nil, err
	}

	s, err := NewSaver(opts...)
	if err != nil {
		return nil, err
	}
	defer s.Finish()
	if err := copyTree(l, l.tree.Root(), s, s.Root()); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// copyTree adds the children of the loaded node n under the saver node dst.
func copyTree(l *Loader, n NodeID, s *Saver, dst SaverNode) error {
	for _, c := range l.tree.Children(n) {
		tok := l.tree.Token(c)
		text := tok.Text(l.src)
		var err error
		switch tok.Kind {
		case token.Name, token.CompositeType:
			var child SaverNode
			if child, err = s.AddComposite(dst, string(text)); err == nil {
				err = copyTree(l, c, s, child)
			}
		case token.Integer:
			if len(text) > 0 && text[0] == '-' {
				var v int64
				if v, err = convert.S64(text); err == nil {
					_, err = s.AddS64(dst, v)
				}
			} else {
				var v uint64
				if v, err = convert.U64(text); err == nil {
					_, err = s.AddU64(dst, v)
				}
			}
		case token.Float:
			var v float64
			if v, err = convert.F64(text); err == nil {
				_, err = s.AddF64(dst, v)
			}
		case token.String:
			_, err = s.AddString(dst, string(text))
		}
		if err != nil {
			if _, ok := err.(*diag.Diagnostic); ok {
				return err
			}
			return l.diag.Push(diag.ConversionError, tok, l.src, "could not convert %q: %s", text, err)
		}
	}
	return nil
}

var (
	stringEscaper   = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	stringUnescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`)
)

// escapeString quotes backslashes and double quotes in s so that it reads
// back as a single String token.
func escapeString(s string) string { return stringEscaper.Replace(s) }

// unescapeString reverses escapeString.
func unescapeString(s string) string { return stringUnescaper.Replace(s) }
