/*
Package graph reads and writes the graph text format, a compact notation for
hierarchical data:

	name { "teapot" }
	position { 1.0, -2.5, 0.0 }
	mesh {
	  vertices { 0, 1, 2, 2, 3, 0 }
	  material { "glaze" }
	}

A document is a sequence of entries. An entry is a name, optionally followed
by a block in braces holding values (integers, floats and quoted strings) and
further entries. Commas between items are optional. Comments open with a
slash and an asterisk, close with an asterisk and a slash, and may nest.

The package offers three ways in and out.

1. Queries

A Loader parses a document into a compact node tree and answers typed
questions about it. Every query is total: a missing or mistyped node yields a
zero value and a diagnostic instead of a panic.

	l, _ := graph.NewLoader()
	if err := l.Load(data); err != nil {
		// handle error
	}
	pos, err := l.LoadVec3(l.FindFirstChildNamed(l.Root(), "position"))

2. Building

A Saver builds a document node by node and writes it with canonical layout;
a StreamWriter writes entries directly, for output that does not fit in
memory.

	s, _ := graph.NewSaver()
	n, _ := s.AddComposite(s.Root(), "name")
	s.AddString(n, "teapot")
	s.Write(os.Stdout)

3. Go values

Marshal and Unmarshal map Go structs and maps onto documents, closely
mirroring encoding/json. Struct fields are matched by the `graph` tag or the
field name:

	type Config struct {
		Name    string  `graph:"name"`
		Version float64 `graph:"version,omitempty"`
	}

Errors from every component are diag.Diagnostic values carrying a severity, a
code and the line and column of the offending token. They are recorded in a
diag.Context, reported to a callback (by default a slog logger) and returned.
*/
package graph
