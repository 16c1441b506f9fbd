package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/KimNorgaard/go-graph"
	"github.com/KimNorgaard/go-graph/token"
)

const helpText = `commands:
  ls             list the entries of the current block
  cd <path>      enter a block; ".." goes up, "/" goes to the root
  cat [name]     print the values of the current block or of a named entry
  type <name>    print the kind and position of a named entry
  pwd            print the current path
  quit           leave
`

// session is the navigation state of the repl.
type session struct {
	l     *graph.Loader
	nodes []graph.NodeID // path from the root, root first
	names []string
}

func newSession(l *graph.Loader) *session {
	return &session{l: l, nodes: []graph.NodeID{l.Root()}}
}

func (s *session) cur() graph.NodeID { return s.nodes[len(s.nodes)-1] }

func (s *session) pwd() string { return "/" + strings.Join(s.names, "/") }

func (s *session) prompt() string { return s.pwd() + "> " }

// exec runs one command line and reports whether the session should end.
func (s *session) exec(line string, w io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "quit", "exit", ":quit":
		return true
	case "help", "?":
		fmt.Fprint(w, helpText)
	case "pwd":
		fmt.Fprintln(w, s.pwd())
	case "ls":
		s.ls(w)
	case "cd":
		if err := s.cd(arg); err != nil {
			fmt.Fprintln(w, err)
		}
	case "cat":
		s.cat(w, arg)
	case "type":
		n, ok := s.child(s.cur(), arg)
		if !ok {
			fmt.Fprintf(w, "no entry named %q\n", arg)
			break
		}
		fmt.Fprintf(w, "%s (line %d, column %d)\n", s.l.TypeOf(n), s.l.Line(n), s.l.Column(n))
	default:
		fmt.Fprintf(w, "unknown command %q. Type help for commands.\n", fields[0])
	}
	return false
}

func (s *session) ls(w io.Writer) {
	for _, c := range s.l.Children(s.cur()) {
		switch kind := s.l.TypeOf(c); kind {
		case token.CompositeType:
			fmt.Fprintf(w, "%s/\n", s.l.Text(c))
		case token.Name:
			fmt.Fprintf(w, "%s\n", s.l.Text(c))
		default:
			fmt.Fprintf(w, "%s\n", s.value(c))
		}
	}
}

func (s *session) cd(path string) error {
	if path == "" || path == "/" {
		s.nodes, s.names = s.nodes[:1], s.names[:0]
		return nil
	}
	nodes, names := slices.Clone(s.nodes), slices.Clone(s.names)
	if strings.HasPrefix(path, "/") {
		nodes, names = nodes[:1], names[:0]
	}
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(nodes) > 1 {
				nodes, names = nodes[:len(nodes)-1], names[:len(names)-1]
			}
			continue
		}
		n, ok := s.child(nodes[len(nodes)-1], part)
		if !ok || s.l.TypeOf(n) != token.CompositeType {
			return fmt.Errorf("no block named %q", part)
		}
		nodes, names = append(nodes, n), append(names, part)
	}
	s.nodes, s.names = nodes, names
	return nil
}

func (s *session) cat(w io.Writer, name string) {
	n := s.cur()
	if name != "" {
		var ok bool
		if n, ok = s.child(n, name); !ok {
			fmt.Fprintf(w, "no entry named %q\n", name)
			return
		}
	}
	var values []string
	for _, c := range s.l.Children(n) {
		if s.l.TypeOf(c).IsValue() {
			values = append(values, s.value(c))
		}
	}
	fmt.Fprintln(w, strings.Join(values, ", "))
}

// child finds the first entry of n named name without reporting misses.
func (s *session) child(n graph.NodeID, name string) (graph.NodeID, bool) {
	for _, c := range s.l.Children(n) {
		if s.l.TypeOf(c).IsNamed() && string(s.l.Text(c)) == name {
			return c, true
		}
	}
	return graph.NoNode, false
}

func (s *session) value(n graph.NodeID) string {
	if s.l.TypeOf(n) == token.String {
		return `"` + string(s.l.Text(n)) + `"`
	}
	return string(s.l.Text(n))
}

// complete suggests entry names for the argument of cd, cat and type.
func (s *session) complete(line string) []string {
	cmd, prefix, ok := strings.Cut(line, " ")
	if !ok {
		return nil
	}
	switch cmd {
	case "cd", "cat", "type":
	default:
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, c := range s.l.Children(s.cur()) {
		if !s.l.TypeOf(c).IsNamed() {
			continue
		}
		name := string(s.l.Text(c))
		if strings.HasPrefix(name, prefix) && !seen[name] {
			seen[name] = true
			out = append(out, cmd+" "+name)
		}
	}
	return out
}
