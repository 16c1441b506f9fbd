// Package parser builds an ast.Tree from a tokenized graph document.
package parser

import (
	"github.com/KimNorgaard/go-graph/ast"
	"github.com/KimNorgaard/go-graph/diag"
	"github.com/KimNorgaard/go-graph/token"
)

// DefaultMaxDepth is the nesting limit used when none is given.
const DefaultMaxDepth = 256

// Parser holds the state of the parser.
type Parser struct {
	tree     *ast.Tree
	diag     *diag.Context
	maxDepth int

	pos      int // index of the next token to consume
	nesting  int // open braces minus closed braces
	unclosed int // token index of the innermost brace left open at EOF
}

// New creates a parser over tree. The tree's token table must start with a
// Root token followed by the output of lexer.Tokenize. A maxDepth of zero or
// less selects DefaultMaxDepth.
func New(tree *ast.Tree, d *diag.Context, maxDepth int) *Parser {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Parser{tree: tree, diag: d, maxDepth: maxDepth, unclosed: -1}
}

// Parse builds the tree. The first error aborts parsing; it is reported
// through the diagnostics context and returned.
func (p *Parser) Parse() error {
	first := p.tree.TokenAt(0)
	if first == nil || first.Kind != token.Root {
		return p.diag.Push(diag.LogicError, nil, nil, "token table does not start with a root token")
	}
	root, err := p.tree.Add(0)
	if err != nil {
		return p.diag.Push(diag.LoadError, nil, nil, "failed to store root node: %s", err)
	}
	p.pos = 1

	if err := p.parseScope(root, 0); err != nil {
		return err
	}

	switch {
	case p.nesting > 0:
		return p.errorf(p.tree.TokenAt(p.unclosed), "missing closing brace")
	case p.nesting < 0:
		// Unreachable through parseScope, which rejects a stray '}' at once.
		return p.diag.Push(diag.LoadError, nil, nil, "unmatched closing brace")
	}
	return nil
}

// parseScope collects entries into parent until the scope's closing brace or
// the end of input. open is the index of the brace that opened the scope.
func (p *Parser) parseScope(parent ast.NodeID, depth int) error {
	open := p.pos - 1
	for {
		idx, tok := p.next()
		if tok == nil {
			return p.diag.Push(diag.LoadError, nil, nil, "token stream ended without end of file")
		}

		switch tok.Kind {
		case token.Name:
			child, err := p.attach(parent, idx)
			if err != nil {
				return err
			}
			if peek := p.tree.TokenAt(p.pos); peek != nil && peek.Kind == token.ValueAssign {
				p.pos++
				if depth+1 > p.maxDepth {
					return p.errorf(peek, "maximum nesting depth exceeded (%d)", p.maxDepth)
				}
				p.nesting++
				if err := p.parseScope(child, depth+1); err != nil {
					return err
				}
			}
		case token.String, token.Float, token.Integer:
			if _, err := p.attach(parent, idx); err != nil {
				return err
			}
		case token.CurlyClose:
			p.nesting--
			if depth == 0 {
				return p.errorf(tok, "unmatched closing brace")
			}
			return nil
		case token.EndOfFile:
			if depth > 0 && p.unclosed < 0 {
				p.unclosed = open
			}
			return nil
		case token.ValueAssign:
			return p.errorf(tok, "'{' must follow a name")
		default:
			return p.errorf(tok, "unexpected %s token", tok.Kind)
		}
	}
}

// next consumes a token. EndOfFile is never consumed, so every open scope
// sees it.
func (p *Parser) next() (int, *token.Token) {
	idx := p.pos
	tok := p.tree.TokenAt(idx)
	if tok != nil && tok.Kind != token.EndOfFile {
		p.pos++
	}
	return idx, tok
}

func (p *Parser) attach(parent ast.NodeID, tok int) (ast.NodeID, error) {
	id, err := p.tree.Add(tok)
	if err != nil {
		return ast.NoNode, p.errorf(p.tree.TokenAt(tok), "failed to store node: %s", err)
	}
	p.tree.AddChild(parent, id)
	return id, nil
}

func (p *Parser) errorf(tok *token.Token, format string, args ...any) error {
	return p.diag.Push(diag.LoadError, tok, p.tree.Source(), format, args...)
}
