// Package lexer scans graph documents into tokens.
package lexer

import (
	"errors"
	"fmt"

	"github.com/KimNorgaard/go-graph/diag"
	"github.com/KimNorgaard/go-graph/internal/arena"
	"github.com/KimNorgaard/go-graph/token"
)

// Error is a lexical error. Token locates the offending input.
type Error struct {
	Token token.Token
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Token.Line, e.Token.Column, e.Msg)
}

// Lexer holds the state for tokenizing a graph document. The input ends at
// its last byte or at the first NUL byte, whichever comes first.
type Lexer struct {
	input     []byte
	position  int // current position in input
	line      int // current line number
	lineStart int // offset of the first byte of the current line
}

// New creates and returns a new Lexer.
func New(input []byte) *Lexer {
	return &Lexer{input: input, line: 1}
}

// NextToken scans the input and returns the next token. After EndOfFile has
// been returned, further calls keep returning EndOfFile.
func (l *Lexer) NextToken() (token.Token, error) {
	for {
		ch := l.peek(0)
		switch {
		case ch == 0:
			return l.token(token.EndOfFile, l.position), nil
		case ch == '{':
			tok := l.token(token.ValueAssign, l.position)
			tok.Length = 1
			l.position++
			return tok, nil
		case ch == '}':
			tok := l.token(token.CurlyClose, l.position)
			tok.Length = 1
			l.position++
			return tok, nil
		case ch == '/':
			if l.peek(1) != '*' {
				return token.Token{}, l.errorf(l.position, 1, "unrecognised character %q", ch)
			}
			if err := l.skipComment(); err != nil {
				return token.Token{}, err
			}
		case ch == ' ' || ch == '\t' || ch == ',':
			l.position++
		case ch == '\n':
			l.newline(1)
		case ch == '\r':
			if l.peek(1) == '\n' {
				l.newline(2)
			} else {
				l.newline(1)
			}
		case ch == '"':
			return l.readString()
		case isLetter(ch):
			return l.readName(), nil
		case isDigit(ch) || ch == '+' || ch == '-':
			return l.readNumber()
		default:
			return token.Token{}, l.errorf(l.position, 1, "unrecognised character %q", ch)
		}
	}
}

// Tokenize scans the whole of input and appends every token, including the
// final EndOfFile, to dst. Scanning stops at the first error, which is
// reported through d and returned.
func Tokenize(input []byte, dst *arena.Table[token.Token], d *diag.Context) error {
	l := New(input)
	for {
		tok, err := l.NextToken()
		if err != nil {
			var lerr *Error
			if errors.As(err, &lerr) {
				return d.Push(diag.LoadError, &lerr.Token, input, "%s", lerr.Msg)
			}
			return d.Push(diag.LoadError, nil, nil, "%s", err)
		}
		if _, err := dst.Push(tok); err != nil {
			return d.Push(diag.LoadError, &tok, input, "failed to store token: %s", err)
		}
		if tok.Kind == token.EndOfFile {
			return nil
		}
	}
}

func (l *Lexer) peek(off int) byte {
	i := l.position + off
	if i >= len(l.input) {
		return 0
	}
	return l.input[i]
}

func (l *Lexer) newline(width int) {
	l.position += width
	l.line++
	l.lineStart = l.position
}

func (l *Lexer) token(kind token.Kind, offset int) token.Token {
	return token.Token{
		Kind:   kind,
		Offset: offset,
		Line:   l.line,
		Column: offset - l.lineStart + 1,
	}
}

func (l *Lexer) errorf(offset, length int, format string, args ...any) error {
	tok := l.token(token.EndOfFile, offset)
	tok.Length = length
	return &Error{Token: tok, Msg: fmt.Sprintf(format, args...)}
}

// skipComment consumes a comment starting at "/*". Comments nest.
func (l *Lexer) skipComment() error {
	start := l.token(token.EndOfFile, l.position)
	start.Length = 2
	l.position += 2 // consume "/*"
	depth := 1
	for depth > 0 {
		switch ch := l.peek(0); {
		case ch == 0:
			return &Error{Token: start, Msg: "unterminated comment"}
		case ch == '/' && l.peek(1) == '*':
			depth++
			l.position += 2
		case ch == '*' && l.peek(1) == '/':
			depth--
			l.position += 2
		case ch == '\n':
			l.newline(1)
		case ch == '\r':
			if l.peek(1) == '\n' {
				l.newline(2)
			} else {
				l.newline(1)
			}
		default:
			l.position++
		}
	}
	return nil
}

// readString reads a quoted string. The token spans the bytes between the
// quotes, verbatim. A backslash keeps the following byte from closing the
// string; no other escape processing happens.
func (l *Lexer) readString() (token.Token, error) {
	quote := l.token(token.String, l.position)
	quote.Length = 1
	l.position++ // consume opening quote
	tok := quote
	tok.Offset = l.position
	tok.Length = 0

	escaped := false
	for {
		ch := l.peek(0)
		switch {
		case ch == 0:
			return token.Token{}, &Error{Token: quote, Msg: "unterminated string"}
		case ch == '"' && !escaped:
			tok.Length = l.position - tok.Offset
			l.position++ // consume closing quote
			return tok, nil
		case ch == '\n':
			escaped = false
			l.newline(1)
			continue
		case ch == '\r':
			escaped = false
			if l.peek(1) == '\n' {
				l.newline(2)
			} else {
				l.newline(1)
			}
			continue
		}
		escaped = ch == '\\' && !escaped
		l.position++
	}
}

func (l *Lexer) readName() token.Token {
	tok := l.token(token.Name, l.position)
	l.position++
	for c := l.peek(0); isLetter(c) || isDigit(c) || c == '_'; c = l.peek(0) {
		l.position++
	}
	tok.Length = l.position - tok.Offset
	return tok
}

// readNumber reads an optionally signed run of digits with at most one
// fractional part. The token is a Float if it contains a '.', an Integer
// otherwise.
func (l *Lexer) readNumber() (token.Token, error) {
	tok := l.token(token.Integer, l.position)
	digits := 0
	if c := l.peek(0); c == '+' || c == '-' {
		l.position++
	}
	for isDigit(l.peek(0)) {
		l.position++
		digits++
	}
	if l.peek(0) == '.' {
		tok.Kind = token.Float
		l.position++
		for isDigit(l.peek(0)) {
			l.position++
			digits++
		}
	}
	tok.Length = l.position - tok.Offset
	if digits == 0 {
		return token.Token{}, l.errorf(tok.Offset, tok.Length, "sign without digits")
	}
	return tok, nil
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
