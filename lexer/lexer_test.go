package lexer_test

import (
	"strings"
	"testing"

	"github.com/KimNorgaard/go-graph/diag"
	"github.com/KimNorgaard/go-graph/internal/arena"
	"github.com/KimNorgaard/go-graph/lexer"
	"github.com/KimNorgaard/go-graph/token"
	"github.com/stretchr/testify/require"
)

func TestNextToken(t *testing.T) {
	input := `/* header
   comment */
MyStruct {
  a { 3.14 }
  b { +101, -13 }
  str { "hello \"world\"" }
  flag
}
`
	expectedTokens := []struct {
		expectedKind    token.Kind
		expectedLiteral string
		expectedLine    int
		expectedColumn  int
	}{
		{token.Name, "MyStruct", 3, 1},
		{token.ValueAssign, "{", 3, 10},
		{token.Name, "a", 4, 3},
		{token.ValueAssign, "{", 4, 5},
		{token.Float, "3.14", 4, 7},
		{token.CurlyClose, "}", 4, 12},
		{token.Name, "b", 5, 3},
		{token.ValueAssign, "{", 5, 5},
		{token.Integer, "+101", 5, 7},
		{token.Integer, "-13", 5, 13},
		{token.CurlyClose, "}", 5, 17},
		{token.Name, "str", 6, 3},
		{token.ValueAssign, "{", 6, 7},
		{token.String, `hello \"world\"`, 6, 9},
		{token.CurlyClose, "}", 6, 27},
		{token.Name, "flag", 7, 3},
		{token.CurlyClose, "}", 8, 1},
		{token.EndOfFile, "", 9, 1},
	}

	src := []byte(input)
	l := lexer.New(src)

	for i, tt := range expectedTokens {
		tok, err := l.NextToken()
		require.NoError(t, err, "test[%d]", i)
		require.Equal(t, tt.expectedKind, tok.Kind, "test[%d] - wrong token kind. expected=%q, got=%q", i, tt.expectedKind, tok.Kind)
		require.Equal(t, tt.expectedLiteral, string(tok.Text(src)), "test[%d] - wrong literal", i)
		require.Equal(t, tt.expectedLine, tok.Line, "test[%d] - wrong line. expected=%d, got=%d", i, tt.expectedLine, tok.Line)
		require.Equal(t, tt.expectedColumn, tok.Column, "test[%d] - wrong column. expected=%d, got=%d", i, tt.expectedColumn, tok.Column)
	}

	tok, err := l.NextToken()
	require.NoError(t, err)
	require.Equal(t, token.EndOfFile, tok.Kind, "EndOfFile must be sticky")
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		input string
		kind  token.Kind
		text  string
	}{
		{"0", token.Integer, "0"},
		{"12345", token.Integer, "12345"},
		{"-7", token.Integer, "-7"},
		{"+7", token.Integer, "+7"},
		{"1.0", token.Float, "1.0"},
		{"1.", token.Float, "1."},
		{"-0.5", token.Float, "-0.5"},
		{"3.14}", token.Float, "3.14"},
		{"12abc", token.Integer, "12"},
		{"1.2.3", token.Float, "1.2"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			src := []byte(tt.input)
			tok, err := lexer.New(src).NextToken()
			require.NoError(t, err)
			require.Equal(t, tt.kind, tok.Kind)
			require.Equal(t, tt.text, string(tok.Text(src)))
		})
	}
}

func TestWhitespaceAndCommas(t *testing.T) {
	kinds := func(input string) []string {
		var out []string
		l := lexer.New([]byte(input))
		for {
			tok, err := l.NextToken()
			require.NoError(t, err)
			out = append(out, tok.Kind.String())
			if tok.Kind == token.EndOfFile {
				return out
			}
		}
	}

	require.Equal(t, kinds("a b c d e"), kinds("a, b, c, d, e"))
	require.Equal(t, kinds("a\tb"), kinds("a,,,b"))
}

func TestLineEndings(t *testing.T) {
	src := []byte("a\r\nb\rc\nd")
	l := lexer.New(src)
	for _, line := range []int{1, 2, 3, 4} {
		tok, err := l.NextToken()
		require.NoError(t, err)
		require.Equal(t, line, tok.Line, "token %q", tok.Text(src))
		require.Equal(t, 1, tok.Column)
	}
}

func TestComments(t *testing.T) {
	tests := []struct {
		input string
		first token.Kind
	}{
		{"/* a */", token.EndOfFile},
		{"/* /* */ */", token.EndOfFile},
		{"/* /* /* */ */ */ x", token.Name},
		{"/**/1", token.Integer},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok, err := lexer.New([]byte(tt.input)).NextToken()
			require.NoError(t, err)
			require.Equal(t, tt.first, tok.Kind)
		})
	}
}

func TestCommentsTrackLines(t *testing.T) {
	src := []byte("/* one\ntwo\r\nthree */ x")
	tok, err := lexer.New(src).NextToken()
	require.NoError(t, err)
	require.Equal(t, 3, tok.Line)
	require.Equal(t, 10, tok.Column)
}

func TestStringsTrackLines(t *testing.T) {
	for _, input := range []string{"\"a\rb\" x", "\"a\r\nb\" x", "\"a\nb\" x"} {
		src := []byte(input)
		l := lexer.New(src)
		_, err := l.NextToken()
		require.NoError(t, err)
		tok, err := l.NextToken()
		require.NoError(t, err)
		require.Equal(t, token.Name, tok.Kind, "input %q", input)
		require.Equal(t, 2, tok.Line, "input %q", input)
		require.Equal(t, 4, tok.Column, "input %q", input)
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`""`, ""},
		{`"hello"`, "hello"},
		{`"a\"b"`, `a\"b`},
		{`"a\\"`, `a\\`},
		{`"tab\there"`, `tab\there`},
		{"\"multi\nline\"", "multi\nline"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			src := []byte(tt.input)
			tok, err := lexer.New(src).NextToken()
			require.NoError(t, err)
			require.Equal(t, token.String, tok.Kind)
			require.Equal(t, tt.expected, string(tok.Text(src)))
		})
	}
}

func TestNULTerminatesInput(t *testing.T) {
	l := lexer.New([]byte("a\x00b"))
	tok, err := l.NextToken()
	require.NoError(t, err)
	require.Equal(t, token.Name, tok.Kind)
	tok, err = l.NextToken()
	require.NoError(t, err)
	require.Equal(t, token.EndOfFile, tok.Kind)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		input  string
		msg    string
		line   int
		column int
	}{
		{`a "`, "unterminated string", 1, 3},
		{`"abc\"`, "unterminated string", 1, 1},
		{"a /*", "unterminated comment", 1, 3},
		{"/* /* */", "unterminated comment", 1, 1},
		{"-", "sign without digits", 1, 1},
		{"a\n +", "sign without digits", 2, 2},
		{"-.", "sign without digits", 1, 1},
		{"a / b", "unrecognised character '/'", 1, 3},
		{"a = 1", "unrecognised character '='", 1, 3},
		{"[1]", "unrecognised character '['", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := lexer.New([]byte(tt.input))
			var err error
			for err == nil {
				var tok token.Token
				tok, err = l.NextToken()
				require.False(t, err == nil && tok.Kind == token.EndOfFile, "expected an error")
			}
			var lerr *lexer.Error
			require.ErrorAs(t, err, &lerr)
			require.Equal(t, tt.msg, lerr.Msg)
			require.Equal(t, tt.line, lerr.Token.Line)
			require.Equal(t, tt.column, lerr.Token.Column)
		})
	}
}

func TestTokenize(t *testing.T) {
	tokens := arena.NewTable[token.Token](0)
	d := diag.New(diag.Discard)

	require.NoError(t, lexer.Tokenize([]byte("a { 1 }"), tokens, d))
	require.Equal(t, 5, tokens.Len())
	require.Equal(t, token.EndOfFile, tokens.At(4).Kind)
	require.False(t, d.Check())
}

func TestTokenizeReportsErrors(t *testing.T) {
	var got []diag.Diagnostic
	d := diag.New(func(dg diag.Diagnostic) { got = append(got, dg) })
	tokens := arena.NewTable[token.Token](0)

	err := lexer.Tokenize([]byte("a\n  b -"), tokens, d)
	require.ErrorIs(t, err, diag.LoadError)
	require.True(t, d.Check())
	require.Len(t, got, 1)
	require.Equal(t, "sign without digits", got[0].Message)
	require.Equal(t, 2, got[0].Line)
	require.Equal(t, 5, got[0].Column)
	require.Equal(t, "-", got[0].Token)
}

func TestTokenizeMillionSigns(t *testing.T) {
	src := []byte(strings.Repeat("-", 1<<20))
	tokens := arena.NewTable[token.Token](0)
	d := diag.New(diag.Discard)

	err := lexer.Tokenize(src, tokens, d)
	require.ErrorIs(t, err, diag.LoadError)
	require.Equal(t, 0, tokens.Len(), "scanning must stop at the first bad sign")
}

func TestTokenizeTokenLimit(t *testing.T) {
	tokens := arena.NewTable[token.Token](2)
	d := diag.New(diag.Discard)

	err := lexer.Tokenize([]byte("a b c"), tokens, d)
	require.ErrorIs(t, err, diag.LoadError)
	require.Equal(t, 2, tokens.Len())
}
