// Package ast holds the node tree produced by the parser.
//
// Nodes live in an arena table and refer to each other by NodeID, never by
// pointer. A node borrows its text from the token it was created for, and the
// token in turn borrows from the source buffer.
package ast

import (
	"bytes"
	"strings"

	"github.com/KimNorgaard/go-graph/internal/arena"
	"github.com/KimNorgaard/go-graph/token"
)

// NodeID addresses a node within a Tree.
type NodeID int32

// NoNode is the NodeID of an absent node.
const NoNode NodeID = -1

// Node is a single entry in the tree.
type Node struct {
	Token      int // index into the tree's token table
	Parent     NodeID
	Next       NodeID
	FirstChild NodeID
	LastChild  NodeID
}

// Tree is a parsed document.
type Tree struct {
	src    []byte
	tokens *arena.Table[token.Token]
	nodes  *arena.Table[Node]
}

// New returns an empty tree over src whose nodes are stored in nodes.
func New(src []byte, tokens *arena.Table[token.Token], nodes *arena.Table[Node]) *Tree {
	return &Tree{src: src, tokens: tokens, nodes: nodes}
}

// Source returns the buffer the tree's tokens refer to.
func (t *Tree) Source() []byte { return t.src }

// TokenAt returns the token at index i of the token table, or nil.
func (t *Tree) TokenAt(i int) *token.Token { return t.tokens.At(i) }

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return t.nodes.Len() }

// Add creates a detached node for the token at index tok.
func (t *Tree) Add(tok int) (NodeID, error) {
	idx, err := t.nodes.Push(Node{
		Token:      tok,
		Parent:     NoNode,
		Next:       NoNode,
		FirstChild: NoNode,
		LastChild:  NoNode,
	})
	if err != nil {
		return NoNode, err
	}
	return NodeID(idx), nil
}

// AddChild appends child to parent's children. A Name parent is promoted to
// CompositeType on receiving its first child.
func (t *Tree) AddChild(parent, child NodeID) {
	p, c := t.Node(parent), t.Node(child)
	if p == nil || c == nil {
		return
	}
	if p.FirstChild == NoNode {
		p.FirstChild = child
		if tok := t.tokens.At(p.Token); tok.Kind == token.Name {
			tok.Kind = token.CompositeType
		}
	} else {
		t.Node(p.LastChild).Next = child
	}
	p.LastChild = child
	c.Parent = parent
}

// Root returns the first node added to the tree, or NoNode for an empty tree.
func (t *Tree) Root() NodeID {
	if t == nil || t.nodes.Len() == 0 {
		return NoNode
	}
	return 0
}

// Node returns the node for id, or nil if id does not address a node.
func (t *Tree) Node(id NodeID) *Node {
	if t == nil {
		return nil
	}
	return t.nodes.At(int(id))
}

// Token returns the token a node was created for, or nil.
func (t *Tree) Token(id NodeID) *token.Token {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	return t.tokens.At(n.Token)
}

// Kind returns the kind of the node's token. Absent nodes report EndOfFile.
func (t *Tree) Kind(id NodeID) token.Kind {
	tok := t.Token(id)
	if tok == nil {
		return token.EndOfFile
	}
	return tok.Kind
}

// Text returns the node's source text.
func (t *Tree) Text(id NodeID) []byte {
	tok := t.Token(id)
	if tok == nil {
		return nil
	}
	return tok.Text(t.src)
}

// Children returns the ids of id's children in source order.
func (t *Tree) Children(id NodeID) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for c := n.FirstChild; c != NoNode; c = t.Node(c).Next {
		out = append(out, c)
	}
	return out
}

// String returns an indented outline of the tree, one node per line.
func (t *Tree) String() string {
	var out bytes.Buffer
	if root := t.Root(); root != NoNode {
		t.writeNode(&out, root, 0)
	}
	return out.String()
}

func (t *Tree) writeNode(out *bytes.Buffer, id NodeID, depth int) {
	out.WriteString(strings.Repeat("  ", depth))
	kind := t.Kind(id)
	out.WriteString(kind.String())
	switch {
	case kind == token.String:
		out.WriteString(` "`)
		out.Write(t.Text(id))
		out.WriteString(`"`)
	case kind != token.Root:
		out.WriteString(" ")
		out.Write(t.Text(id))
	}
	out.WriteString("\n")
	for _, c := range t.Children(id) {
		t.writeNode(out, c, depth+1)
	}
}
