package graph

import (
	"bytes"
	"io"

	"github.com/KimNorgaard/go-graph/ast"
	"github.com/KimNorgaard/go-graph/diag"
	"github.com/KimNorgaard/go-graph/internal/arena"
	"github.com/KimNorgaard/go-graph/internal/convert"
	"github.com/KimNorgaard/go-graph/lexer"
	"github.com/KimNorgaard/go-graph/parser"
	"github.com/KimNorgaard/go-graph/token"
)

// NodeID addresses a node of a loaded document.
type NodeID = ast.NodeID

// NoNode is the NodeID of an absent node.
const NoNode = ast.NoNode

// Loader parses a document and answers typed queries about it.
//
// Every query is total: an absent or mistyped node produces a diagnostic and
// a zero result, and never panics. A Loader is not safe for concurrent use.
type Loader struct {
	opts   *options
	diag   *diag.Context
	src    []byte
	tokens *arena.Table[token.Token]
	nodes  *arena.Table[ast.Node]
	tree   *ast.Tree // nil unless a document is loaded
}

// NewLoader returns a Loader configured by opts.
func NewLoader(opts ...Option) (*Loader, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Loader{
		opts:   o,
		diag:   diag.New(o.callback),
		tokens: arena.NewTable[token.Token](0),
		nodes:  arena.NewTable[ast.Node](0),
	}, nil
}

// Load parses data, replacing any previously loaded document. The Loader
// borrows data until the next Load or Unload; callers must not modify it in
// the meantime. On failure no document is loaded and Root reports NoNode.
func (l *Loader) Load(data []byte) error {
	l.reset()
	l.diag.Clear()
	l.src = data

	if _, err := l.tokens.Push(token.Token{Kind: token.Root}); err != nil {
		return l.fail(l.diag.Push(diag.LoadError, nil, nil, "failed to create root token: %s", err))
	}
	if err := lexer.Tokenize(data, l.tokens, l.diag); err != nil {
		return l.fail(err)
	}
	tree := ast.New(data, l.tokens, l.nodes)
	if err := parser.New(tree, l.diag, l.opts.maxDepth).Parse(); err != nil {
		return l.fail(err)
	}
	l.tree = tree
	return nil
}

// LoadReader reads r to the end and parses the result. The Loader owns the
// buffer it reads into.
func (l *Loader) LoadReader(r io.Reader) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		l.reset()
		l.diag.Clear()
		return l.diag.Push(diag.LoadError, nil, nil, "failed to read input: %s", err)
	}
	return l.Load(buf.Bytes())
}

// Unload drops the loaded document and releases the Loader's tables. The
// Loader may be reused with Load.
func (l *Loader) Unload() {
	l.tokens.Release()
	l.nodes.Release()
	l.tree = nil
	l.src = nil
}

func (l *Loader) reset() {
	l.tokens.Clear()
	l.nodes.Clear()
	l.tree = nil
	l.src = nil
}

func (l *Loader) fail(err error) error {
	l.reset()
	return err
}

// Diagnostics returns the context that records the Loader's errors.
func (l *Loader) Diagnostics() *diag.Context { return l.diag }

// Err returns every error recorded since the last Load, or nil.
func (l *Loader) Err() error { return l.diag.Err() }

// Root returns the implicit document root.
func (l *Loader) Root() NodeID {
	if l.tree == nil {
		l.diag.Warn(diag.UnexpectedNode, nil, nil, "loader has no root node")
		return NoNode
	}
	return l.tree.Root()
}

// FirstChild returns n's first child. A node without children yields NoNode
// and a warning.
func (l *Loader) FirstChild(n NodeID) NodeID {
	node, err := l.node(n)
	if err != nil {
		return NoNode
	}
	if node.FirstChild == NoNode {
		l.diag.Warn(diag.UnexpectedNode, l.tree.Token(n), l.src, "node has no children")
	}
	return node.FirstChild
}

// NextSibling returns the node following n under the same parent. The last
// sibling yields NoNode and a warning.
func (l *Loader) NextSibling(n NodeID) NodeID {
	node, err := l.node(n)
	if err != nil {
		return NoNode
	}
	if node.Next == NoNode {
		l.diag.Warn(diag.UnexpectedNode, l.tree.Token(n), l.src, "node has no next sibling")
	}
	return node.Next
}

// Children returns n's children in source order. It reports nothing for a
// node without children.
func (l *Loader) Children(n NodeID) []NodeID {
	if _, err := l.node(n); err != nil {
		return nil
	}
	return l.tree.Children(n)
}

// FindFirstChildNamed returns the first child of n that is a name or a named
// block spelled exactly name. A miss yields NoNode and a warning.
func (l *Loader) FindFirstChildNamed(n NodeID, name string) NodeID {
	node, err := l.node(n)
	if err != nil {
		return NoNode
	}
	if c := l.findNamed(node.FirstChild, name); c != NoNode {
		return c
	}
	l.diag.Warn(diag.UnexpectedNode, l.tree.Token(n), l.src, "no child named %q", name)
	return NoNode
}

// FindFirstSiblingNamed is like FindFirstChildNamed but scans the siblings
// that follow n.
func (l *Loader) FindFirstSiblingNamed(n NodeID, name string) NodeID {
	node, err := l.node(n)
	if err != nil {
		return NoNode
	}
	if c := l.findNamed(node.Next, name); c != NoNode {
		return c
	}
	l.diag.Warn(diag.UnexpectedNode, l.tree.Token(n), l.src, "no sibling named %q", name)
	return NoNode
}

func (l *Loader) findNamed(from NodeID, name string) NodeID {
	for c := from; c != NoNode; c = l.tree.Node(c).Next {
		if l.tree.Kind(c).IsNamed() && string(l.tree.Text(c)) == name {
			return c
		}
	}
	return NoNode
}

// TypeOf returns the kind of n. An absent node reports token.EndOfFile.
func (l *Loader) TypeOf(n NodeID) token.Kind {
	if _, err := l.node(n); err != nil {
		return token.EndOfFile
	}
	return l.tree.Kind(n)
}

// Text returns the source text of n: the name, the digits, or the string
// contents without quotes. The slice aliases the loaded buffer.
func (l *Loader) Text(n NodeID) []byte {
	if _, err := l.node(n); err != nil {
		return nil
	}
	return l.tree.Text(n)
}

// Line returns the 1-based source line of n, or 0 if n is absent or the root.
func (l *Loader) Line(n NodeID) int {
	if _, err := l.node(n); err != nil {
		return 0
	}
	return l.tree.Token(n).Line
}

// Column returns the 1-based source column of n, or 0 if n is absent or the
// root.
func (l *Loader) Column(n NodeID) int {
	if _, err := l.node(n); err != nil {
		return 0
	}
	return l.tree.Token(n).Column
}

// String returns an outline of the loaded document, one node per line.
func (l *Loader) String() string {
	if l.tree == nil {
		return ""
	}
	return l.tree.String()
}

func (l *Loader) node(n NodeID) (*ast.Node, error) {
	if l.tree == nil {
		return nil, l.diag.Push(diag.UnexpectedNode, nil, nil, "no document loaded")
	}
	node := l.tree.Node(n)
	if node == nil {
		return nil, l.diag.Push(diag.UnexpectedNode, nil, nil, "node is absent")
	}
	return node, nil
}

// value returns n's token after checking that it is of kind want.
func (l *Loader) value(n NodeID, want token.Kind) (*token.Token, error) {
	if _, err := l.node(n); err != nil {
		return nil, err
	}
	tok := l.tree.Token(n)
	if tok.Kind != want {
		return nil, l.diag.Push(diag.ConversionError, tok, l.src, "node is of kind %s, not %s", tok.Kind, want)
	}
	return tok, nil
}

func toNumber[T any](l *Loader, n NodeID, want token.Kind, conv func([]byte) (T, error)) (T, error) {
	var zero T
	tok, err := l.value(n, want)
	if err != nil {
		return zero, err
	}
	v, err := conv(tok.Text(l.src))
	if err != nil {
		return zero, l.diag.Push(diag.ConversionError, tok, l.src, "could not convert to %T: %s", zero, err)
	}
	return v, nil
}

// ToU32 converts an Integer node to a uint32.
func (l *Loader) ToU32(n NodeID) (uint32, error) { return toNumber(l, n, token.Integer, convert.U32) }

// ToU64 converts an Integer node to a uint64.
func (l *Loader) ToU64(n NodeID) (uint64, error) { return toNumber(l, n, token.Integer, convert.U64) }

// ToS32 converts an Integer node to an int32.
func (l *Loader) ToS32(n NodeID) (int32, error) { return toNumber(l, n, token.Integer, convert.S32) }

// ToS64 converts an Integer node to an int64.
func (l *Loader) ToS64(n NodeID) (int64, error) { return toNumber(l, n, token.Integer, convert.S64) }

// ToF32 converts a Float node to a float32.
func (l *Loader) ToF32(n NodeID) (float32, error) { return toNumber(l, n, token.Float, convert.F32) }

// ToF64 converts a Float node to a float64.
func (l *Loader) ToF64(n NodeID) (float64, error) { return toNumber(l, n, token.Float, convert.F64) }

// CopyString copies the contents of a String node into dst followed by a NUL
// byte and returns the number of content bytes. If dst cannot hold the
// contents and the terminator, nothing is copied.
func (l *Loader) CopyString(n NodeID, dst []byte) (int, error) {
	tok, err := l.value(n, token.String)
	if err != nil {
		return 0, err
	}
	if len(dst) < tok.Length+1 {
		return 0, l.diag.Push(diag.LogicError, tok, l.src,
			"string of %d bytes does not fit in a buffer of %d", tok.Length, len(dst))
	}
	n0 := copy(dst, tok.Text(l.src))
	dst[n0] = 0
	return n0, nil
}

// ToString returns the contents of a String node. Escapes are not
// interpreted.
func (l *Loader) ToString(n NodeID) (string, error) {
	tok, err := l.value(n, token.String)
	if err != nil {
		return "", err
	}
	return string(tok.Text(l.src)), nil
}

func toArray[T any](l *Loader, n NodeID, dst []T, conv func(NodeID) (T, error)) (int, error) {
	node, err := l.node(n)
	if err != nil {
		return 0, err
	}
	// dst is only written once every element has converted.
	var vals []T
	for c := node.FirstChild; c != NoNode && len(vals) < len(dst); c = l.tree.Node(c).Next {
		if l.tree.Kind(c) != token.Integer {
			break
		}
		v, err := conv(c)
		if err != nil {
			return 0, err
		}
		vals = append(vals, v)
	}
	return copy(dst, vals), nil
}

// ToS32Array converts the leading Integer children of n into dst. It stops
// at the first child that is not an Integer or when dst is full and returns
// the number of elements written.
func (l *Loader) ToS32Array(n NodeID, dst []int32) (int, error) {
	return toArray(l, n, dst, l.ToS32)
}

// ToS64Array is like ToS32Array for int64 elements.
func (l *Loader) ToS64Array(n NodeID, dst []int64) (int, error) {
	return toArray(l, n, dst, l.ToS64)
}

// valueOf returns the first child of the named node n, the value in the
// Name { value } idiom.
func (l *Loader) valueOf(n NodeID) (NodeID, error) {
	node, err := l.node(n)
	if err != nil {
		return NoNode, err
	}
	if node.FirstChild == NoNode {
		return NoNode, l.diag.Push(diag.UnexpectedNode, l.tree.Token(n), l.src, "node has no value")
	}
	return node.FirstChild, nil
}

func load[T any](l *Loader, n NodeID, conv func(NodeID) (T, error)) (T, error) {
	v, err := l.valueOf(n)
	if err != nil {
		var zero T
		return zero, err
	}
	return conv(v)
}

// LoadU32 reads the value of a Name { value } entry as a uint32.
func (l *Loader) LoadU32(n NodeID) (uint32, error) { return load(l, n, l.ToU32) }

// LoadU64 reads the value of a Name { value } entry as a uint64.
func (l *Loader) LoadU64(n NodeID) (uint64, error) { return load(l, n, l.ToU64) }

// LoadS32 reads the value of a Name { value } entry as an int32.
func (l *Loader) LoadS32(n NodeID) (int32, error) { return load(l, n, l.ToS32) }

// LoadS64 reads the value of a Name { value } entry as an int64.
func (l *Loader) LoadS64(n NodeID) (int64, error) { return load(l, n, l.ToS64) }

// LoadF32 reads the value of a Name { value } entry as a float32.
func (l *Loader) LoadF32(n NodeID) (float32, error) { return load(l, n, l.ToF32) }

// LoadF64 reads the value of a Name { value } entry as a float64.
func (l *Loader) LoadF64(n NodeID) (float64, error) { return load(l, n, l.ToF64) }

// LoadString reads the value of a Name { "value" } entry.
func (l *Loader) LoadString(n NodeID) (string, error) { return load(l, n, l.ToString) }

// LoadVec3 reads a Name { x, y, z } entry of three Float values.
func (l *Loader) LoadVec3(n NodeID) ([3]float32, error) {
	var out [3]float32
	c, err := l.valueOf(n)
	if err != nil {
		return out, err
	}
	ids := [3]NodeID{c, NoNode, NoNode}
	for i, axis := range []string{"y", "z"} {
		next := l.tree.Node(ids[i]).Next
		if next == NoNode {
			return out, l.diag.Push(diag.UnexpectedNode, l.tree.Token(ids[i]), l.src, "%s value is missing", axis)
		}
		ids[i+1] = next
	}
	var v [3]float32
	for i, id := range ids {
		if v[i], err = l.ToF32(id); err != nil {
			return out, err
		}
	}
	return v, nil
}

// LoadS32Array reads the Integer values of a Name { v1, v2, ... } entry into
// dst and returns how many were read. An entry without values is an error.
func (l *Loader) LoadS32Array(n NodeID, dst []int32) (int, error) {
	if _, err := l.valueOf(n); err != nil {
		return 0, err
	}
	return l.ToS32Array(n, dst)
}

// LoadS64Array is like LoadS32Array for int64 elements.
func (l *Loader) LoadS64Array(n NodeID, dst []int64) (int, error) {
	if _, err := l.valueOf(n); err != nil {
		return 0, err
	}
	return l.ToS64Array(n, dst)
}
