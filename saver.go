package graph

import (
	"io"

	"github.com/KimNorgaard/go-graph/diag"
	"github.com/KimNorgaard/go-graph/internal/arena"
)

// SaverKind is the type of a node built by a Saver.
type SaverKind uint8

const (
	SignedInt SaverKind = iota
	UnsignedInt
	Float
	String
	Composite
)

var saverKindNames = [...]string{
	SignedInt:   "signed integer",
	UnsignedInt: "unsigned integer",
	Float:       "float",
	String:      "string",
	Composite:   "composite",
}

func (k SaverKind) String() string {
	if int(k) < len(saverKindNames) {
		return saverKindNames[k]
	}
	return "unknown"
}

// SaverNode addresses a node built by a Saver.
type SaverNode int32

// NoSaverNode is the SaverNode of an absent node.
const NoSaverNode SaverNode = -1

type saverNode struct {
	kind   SaverKind
	name   []byte // pool-owned; empty for scalars and the root
	str    []byte // pool-owned
	u      uint64
	s      int64
	f      float64
	bits   int // precision of f
	parent SaverNode
	first  SaverNode
	last   SaverNode
	next   SaverNode
}

// Saver builds a document in memory and writes it as text.
//
// Names and strings are copied into a pool owned by the Saver, so callers may
// reuse their buffers immediately. Nothing is written until Write, which
// checks the whole tree before producing any output. A Saver is not safe for
// concurrent use.
type Saver struct {
	opts  *options
	diag  *diag.Context
	nodes *arena.Table[saverNode]
	pool  *arena.Pool
}

// NewSaver returns a Saver holding an empty document.
func NewSaver(opts ...Option) (*Saver, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	s := &Saver{
		opts:  o,
		diag:  diag.New(o.callback),
		nodes: arena.NewTable[saverNode](0),
		pool:  arena.NewPool(o.allocator),
	}
	if err := s.addRoot(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Saver) addRoot() error {
	_, err := s.nodes.Push(saverNode{
		kind:   Composite,
		parent: NoSaverNode,
		first:  NoSaverNode,
		last:   NoSaverNode,
		next:   NoSaverNode,
	})
	if err != nil {
		return s.diag.Push(diag.LogicError, nil, nil, "failed to create root node: %s", err)
	}
	return nil
}

// Root returns the document root, an unnamed composite.
func (s *Saver) Root() SaverNode {
	if s.nodes.Len() == 0 {
		return NoSaverNode
	}
	return 0
}

// Kind returns the kind of n. The second result is false if n is absent.
func (s *Saver) Kind(n SaverNode) (SaverKind, bool) {
	rec := s.nodes.At(int(n))
	if rec == nil {
		return 0, false
	}
	return rec.kind, true
}

// Diagnostics returns the context that records the Saver's errors.
func (s *Saver) Diagnostics() *diag.Context { return s.diag }

// Err returns every error recorded since NewSaver or Reset, or nil.
func (s *Saver) Err() error { return s.diag.Err() }

func (s *Saver) add(parent SaverNode, rec saverNode) (SaverNode, error) {
	p := s.nodes.At(int(parent))
	if p == nil {
		return NoSaverNode, s.diag.Push(diag.LogicError, nil, nil, "parent node is absent")
	}
	if p.kind != Composite {
		return NoSaverNode, s.diag.Push(diag.LogicError, nil, nil, "cannot add a child to a %s node", p.kind)
	}
	rec.parent = parent
	rec.first, rec.last, rec.next = NoSaverNode, NoSaverNode, NoSaverNode
	idx, err := s.nodes.Push(rec)
	if err != nil {
		return NoSaverNode, s.diag.Push(diag.LogicError, nil, nil, "failed to store node: %s", err)
	}
	id := SaverNode(idx)
	if p.first == NoSaverNode {
		p.first = id
	} else {
		s.nodes.At(int(p.last)).next = id
	}
	p.last = id
	return id, nil
}

func (s *Saver) copyBytes(v string, what string) ([]byte, error) {
	b, err := s.pool.PushString([]byte(v))
	if err != nil {
		return nil, s.diag.Push(diag.LogicError, nil, nil, "failed to store %s: %s", what, err)
	}
	return b, nil
}

// AddComposite adds a named block under parent and returns it.
func (s *Saver) AddComposite(parent SaverNode, name string) (SaverNode, error) {
	if err := validName(name); err != nil {
		return NoSaverNode, s.diag.Push(diag.LogicError, nil, nil, "%s", err)
	}
	b, err := s.copyBytes(name, "name")
	if err != nil {
		return NoSaverNode, err
	}
	return s.add(parent, saverNode{kind: Composite, name: b})
}

// AddU64 adds an unsigned integer value under parent.
func (s *Saver) AddU64(parent SaverNode, v uint64) (SaverNode, error) {
	return s.add(parent, saverNode{kind: UnsignedInt, u: v})
}

// AddS64 adds a signed integer value under parent.
func (s *Saver) AddS64(parent SaverNode, v int64) (SaverNode, error) {
	return s.add(parent, saverNode{kind: SignedInt, s: v})
}

// AddF64 adds a float value under parent.
func (s *Saver) AddF64(parent SaverNode, v float64) (SaverNode, error) {
	return s.add(parent, saverNode{kind: Float, f: v, bits: 64})
}

// AddF32 adds a float value under parent, written with single precision.
func (s *Saver) AddF32(parent SaverNode, v float32) (SaverNode, error) {
	return s.add(parent, saverNode{kind: Float, f: float64(v), bits: 32})
}

// AddString adds a string value under parent. The bytes are written
// verbatim, so any quote in v must already be escaped with a backslash.
func (s *Saver) AddString(parent SaverNode, v string) (SaverNode, error) {
	if err := validString(v); err != nil {
		return NoSaverNode, s.diag.Push(diag.LogicError, nil, nil, "%s", err)
	}
	b, err := s.copyBytes(v, "string")
	if err != nil {
		return NoSaverNode, err
	}
	return s.add(parent, saverNode{kind: String, str: b})
}

// Write checks the document and writes it to w.
//
// A block holding only values and bare names is written on one line as
// name { v1, v2 }. A block holding other blocks spans several lines, with its values grouped on
// bare lines between them. A block without children is written as its bare
// name. If w fails part way, the partial output must be discarded.
func (s *Saver) Write(w io.Writer) error {
	if s.nodes.Len() == 0 {
		return s.diag.Push(diag.LogicError, nil, nil, "saver is finished")
	}
	if err := s.check(); err != nil {
		return err
	}

	f := newFormatter(w, s.opts.indent)
	if err := s.writeChildren(f, s.Root()); err != nil {
		return s.diag.Push(diag.WriteError, nil, nil, "failed to write: %s", err)
	}
	return nil
}

// check rejects trees that would not read back: unrepresentable floats and
// braces nested deeper than the configured limit. depth[i] counts the blocks
// enclosing node i. Parents always precede their children in the node table.
func (s *Saver) check() error {
	depth := make([]int, s.nodes.Len())
	for i := 1; i < s.nodes.Len(); i++ {
		rec := s.nodes.At(i)
		d := depth[rec.parent]
		if rec.parent != s.Root() {
			d++
		}
		if d > s.opts.maxDepth {
			return s.diag.Push(diag.WriteError, nil, nil, "maximum nesting depth exceeded (%d)", s.opts.maxDepth)
		}
		if rec.kind == Float {
			if err := validFloat(rec.f); err != nil {
				return s.diag.Push(diag.WriteError, nil, nil, "%s", err)
			}
		}
		depth[i] = d
	}
	return nil
}

func (s *Saver) writeChildren(f *formatter, parent SaverNode) error {
	c := s.nodes.At(int(parent)).first
	for c != NoSaverNode {
		rec := s.nodes.At(int(c))
		if rec.kind == Composite {
			if err := s.writeComposite(f, c); err != nil {
				return err
			}
			c = rec.next
			continue
		}
		f.beginLine()
		for first := true; c != NoSaverNode; first = false {
			rec = s.nodes.At(int(c))
			if rec.kind == Composite {
				break
			}
			if !first {
				f.appendSeparator()
			}
			s.appendValue(f, rec)
			c = rec.next
		}
		if err := f.endLine(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Saver) writeComposite(f *formatter, id SaverNode) error {
	rec := s.nodes.At(int(id))
	f.beginLine()
	f.appendName(rec.name)
	if rec.first == NoSaverNode {
		return f.endLine()
	}

	if s.valuesOnly(rec) {
		f.line = append(f.line, " { "...)
		for c := rec.first; c != NoSaverNode; c = s.nodes.At(int(c)).next {
			if c != rec.first {
				f.appendSeparator()
			}
			s.appendValue(f, s.nodes.At(int(c)))
		}
		f.line = append(f.line, " }"...)
		return f.endLine()
	}

	f.line = append(f.line, " {"...)
	if err := f.endLine(); err != nil {
		return err
	}
	f.depth++
	if err := s.writeChildren(f, id); err != nil {
		return err
	}
	f.depth--
	f.beginLine()
	f.line = append(f.line, '}')
	return f.endLine()
}

// valuesOnly reports whether every child of rec is a value or a bare name,
// so that the block fits on one line.
func (s *Saver) valuesOnly(rec *saverNode) bool {
	for c := rec.first; c != NoSaverNode; c = s.nodes.At(int(c)).next {
		if child := s.nodes.At(int(c)); child.kind == Composite && child.first != NoSaverNode {
			return false
		}
	}
	return true
}

func (s *Saver) appendValue(f *formatter, rec *saverNode) {
	switch rec.kind {
	case SignedInt:
		f.appendInt(rec.s)
	case UnsignedInt:
		f.appendUint(rec.u)
	case Float:
		f.appendFloat(rec.f, rec.bits)
	case String:
		f.appendString(rec.str)
	case Composite:
		f.appendName(rec.name)
	}
}

// Reset discards the document so the Saver can build a new one. Pool and
// table blocks are kept for reuse.
func (s *Saver) Reset() {
	s.nodes.Clear()
	s.pool.Clear()
	s.diag.Clear()
	_ = s.addRoot()
}

// Finish releases the Saver's memory. The Saver must not be used afterwards.
func (s *Saver) Finish() {
	s.nodes.Release()
	s.pool.Release()
}
