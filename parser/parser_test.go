package parser_test

import (
	"strings"
	"testing"

	"github.com/KimNorgaard/go-graph/ast"
	"github.com/KimNorgaard/go-graph/diag"
	"github.com/KimNorgaard/go-graph/internal/arena"
	"github.com/KimNorgaard/go-graph/lexer"
	"github.com/KimNorgaard/go-graph/parser"
	"github.com/KimNorgaard/go-graph/token"
	"github.com/stretchr/testify/require"
)

type result struct {
	tree  *ast.Tree
	diags []diag.Diagnostic
	err   error
}

func parse(t *testing.T, input string, maxDepth int) result {
	t.Helper()
	var r result
	d := diag.New(func(dg diag.Diagnostic) { r.diags = append(r.diags, dg) })

	src := []byte(input)
	tokens := arena.NewTable[token.Token](0)
	_, err := tokens.Push(token.Token{Kind: token.Root})
	require.NoError(t, err)
	if r.err = lexer.Tokenize(src, tokens, d); r.err != nil {
		return r
	}
	r.tree = ast.New(src, tokens, arena.NewTable[ast.Node](0))
	r.err = parser.New(r.tree, d, maxDepth).Parse()
	return r
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", "ROOT\n"},
		{"whitespace only", " \t\r\n, \n", "ROOT\n"},
		{"comment only", "/* /* */ */", "ROOT\n"},
		{"bare names", "a b", "ROOT\n  NAME a\n  NAME b\n"},
		{"numbers", "1, 1.0", "ROOT\n  INTEGER 1\n  FLOAT 1.0\n"},
		{"empty block stays a name", "a { }", "ROOT\n  NAME a\n"},
		{"composite", "a { b }", "ROOT\n  COMPOSITE a\n    NAME b\n"},
		{
			"record",
			`MyStruct { a { 3.14 } b { 101 } c { -13 } str { "hello" } }`,
			"ROOT\n" +
				"  COMPOSITE MyStruct\n" +
				"    COMPOSITE a\n      FLOAT 3.14\n" +
				"    COMPOSITE b\n      INTEGER 101\n" +
				"    COMPOSITE c\n      INTEGER -13\n" +
				"    COMPOSITE str\n      STRING \"hello\"\n",
		},
		{
			"mixed children",
			"v { 1 2 3 } name w { x { 1 } }",
			"ROOT\n" +
				"  COMPOSITE v\n    INTEGER 1\n    INTEGER 2\n    INTEGER 3\n" +
				"  NAME name\n" +
				"  COMPOSITE w\n    COMPOSITE x\n      INTEGER 1\n",
		},
		{
			"duplicate names are kept",
			"a { 1 } a { 2 }",
			"ROOT\n  COMPOSITE a\n    INTEGER 1\n  COMPOSITE a\n    INTEGER 2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := parse(t, tt.input, 0)
			require.NoError(t, r.err)
			require.Empty(t, r.diags)
			require.Equal(t, tt.expected, r.tree.String())
		})
	}
}

func TestCommaEquivalence(t *testing.T) {
	spaced := parse(t, "a b c d e", 0)
	commas := parse(t, "a, b, c, d, e", 0)
	require.NoError(t, spaced.err)
	require.NoError(t, commas.err)
	require.Equal(t, spaced.tree.String(), commas.tree.String())
	require.Len(t, commas.tree.Children(commas.tree.Root()), 5)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input  string
		msg    string
		line   int
		column int
	}{
		{"a {", "missing closing brace", 1, 3},
		{"a { b { c }", "missing closing brace", 1, 3},
		{"a { b {\n c", "missing closing brace", 1, 7},
		{"a }", "unmatched closing brace", 1, 3},
		{"{{{{{a}}}}}", "'{' must follow a name", 1, 1},
		{"3.0 { a }", "'{' must follow a name", 1, 5},
		{"{ a, b, c, d }", "'{' must follow a name", 1, 1},
		{"a {\n  \"s\" { 1 }\n}", "'{' must follow a name", 2, 7},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			r := parse(t, tt.input, 0)
			require.ErrorIs(t, r.err, diag.LoadError)
			require.Len(t, r.diags, 1, "exactly one diagnostic per failed load")
			require.Equal(t, tt.msg, r.diags[0].Message)
			require.Equal(t, tt.line, r.diags[0].Line)
			require.Equal(t, tt.column, r.diags[0].Column)
		})
	}
}

func TestMaxDepth(t *testing.T) {
	nested := func(n int) string {
		return strings.Repeat("a { ", n) + "1" + strings.Repeat(" }", n)
	}

	r := parse(t, nested(parser.DefaultMaxDepth), 0)
	require.NoError(t, r.err)

	r = parse(t, nested(parser.DefaultMaxDepth+1), 0)
	require.ErrorIs(t, r.err, diag.LoadError)
	require.Contains(t, r.err.Error(), "maximum nesting depth exceeded")

	r = parse(t, nested(3), 2)
	require.ErrorIs(t, r.err, diag.LoadError)

	r = parse(t, nested(2), 2)
	require.NoError(t, r.err)
}

func TestDeepNestingDoesNotOverflow(t *testing.T) {
	r := parse(t, strings.Repeat("a { ", 100000), 0)
	require.ErrorIs(t, r.err, diag.LoadError)
	require.Contains(t, r.err.Error(), "maximum nesting depth exceeded")
}

func TestParseRequiresRootToken(t *testing.T) {
	d := diag.New(diag.Discard)
	tokens := arena.NewTable[token.Token](0)
	require.NoError(t, lexer.Tokenize([]byte("a"), tokens, d))

	tree := ast.New([]byte("a"), tokens, arena.NewTable[ast.Node](0))
	err := parser.New(tree, d, 0).Parse()
	require.ErrorIs(t, err, diag.LogicError)
}

func TestParseNodeLimit(t *testing.T) {
	d := diag.New(diag.Discard)
	src := []byte("a b c")
	tokens := arena.NewTable[token.Token](0)
	_, _ = tokens.Push(token.Token{Kind: token.Root})
	require.NoError(t, lexer.Tokenize(src, tokens, d))

	tree := ast.New(src, tokens, arena.NewTable[ast.Node](2))
	err := parser.New(tree, d, 0).Parse()
	require.ErrorIs(t, err, diag.LoadError)
	require.Contains(t, err.Error(), "failed to store node")
}
