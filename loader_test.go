package graph_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/KimNorgaard/go-graph"
	"github.com/KimNorgaard/go-graph/diag"
	"github.com/KimNorgaard/go-graph/token"
	"github.com/stretchr/testify/require"
)

// recorder collects every diagnostic reported to it.
type recorder struct {
	diags []diag.Diagnostic
}

func (r *recorder) callback(d diag.Diagnostic) { r.diags = append(r.diags, d) }

func (r *recorder) count(sev diag.Severity) int {
	n := 0
	for _, d := range r.diags {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

func newLoader(t *testing.T, src string) (*graph.Loader, *recorder) {
	t.Helper()
	rec := &recorder{}
	l, err := graph.NewLoader(graph.WithDiagnostics(rec.callback))
	require.NoError(t, err)
	require.NoError(t, l.Load([]byte(src)))
	return l, rec
}

func TestLoaderMyStruct(t *testing.T) {
	src := `
MyStruct {
  a { 3.14 }
  b { 101 }
  c { -13 }
  str { "hello" }
}`
	l, rec := newLoader(t, src)
	ms := l.FindFirstChildNamed(l.Root(), "MyStruct")
	require.NotEqual(t, graph.NoNode, ms)

	a, err := l.LoadF64(l.FindFirstChildNamed(ms, "a"))
	require.NoError(t, err)
	require.InDelta(t, 3.14, a, 1e-3)

	b, err := l.LoadU32(l.FindFirstChildNamed(ms, "b"))
	require.NoError(t, err)
	require.Equal(t, uint32(101), b)

	c, err := l.LoadS32(l.FindFirstChildNamed(ms, "c"))
	require.NoError(t, err)
	require.Equal(t, int32(-13), c)

	str, err := l.LoadString(l.FindFirstChildNamed(ms, "str"))
	require.NoError(t, err)
	require.Equal(t, "hello", str)

	require.NoError(t, l.Err())
	require.Empty(t, rec.diags)
}

func TestLoaderString(t *testing.T) {
	l, _ := newLoader(t, `pos { 1, "two" } flag`)
	require.Equal(t, "ROOT\n  COMPOSITE pos\n    INTEGER 1\n    STRING \"two\"\n  NAME flag\n", l.String())
}

func TestLoaderNavigationWarnings(t *testing.T) {
	l, rec := newLoader(t, `a { 1 } b`)

	a := l.FirstChild(l.Root())
	require.Equal(t, token.CompositeType, l.TypeOf(a))
	b := l.NextSibling(a)
	require.Equal(t, token.Name, l.TypeOf(b))
	require.Empty(t, rec.diags)

	require.Equal(t, graph.NoNode, l.NextSibling(b))
	require.Equal(t, graph.NoNode, l.FirstChild(b))
	require.Equal(t, graph.NoNode, l.FindFirstChildNamed(l.Root(), "missing"))
	require.Equal(t, graph.NoNode, l.FindFirstSiblingNamed(a, "a"))

	require.Equal(t, 4, rec.count(diag.Warning))
	require.Zero(t, rec.count(diag.Error))
	require.NoError(t, l.Err(), "warnings are not errors")
	for _, d := range rec.diags {
		require.Equal(t, diag.UnexpectedNode, d.Code)
	}
}

func TestLoaderAbsentNode(t *testing.T) {
	l, rec := newLoader(t, `a { 1 }`)

	require.Equal(t, token.EndOfFile, l.TypeOf(graph.NoNode))
	require.Nil(t, l.Text(graph.NoNode))
	require.Zero(t, l.Line(graph.NoNode))
	require.Nil(t, l.Children(graph.NoNode))
	require.Equal(t, graph.NoNode, l.FirstChild(graph.NoNode))

	v, err := l.LoadS32(graph.NoNode)
	require.Error(t, err)
	require.Zero(t, v)

	require.Equal(t, 6, rec.count(diag.Error))
	require.True(t, errors.Is(l.Err(), diag.UnexpectedNode))
	require.Len(t, l.Diagnostics().Errors(), 6)
}

func TestLoaderNothingLoaded(t *testing.T) {
	rec := &recorder{}
	l, err := graph.NewLoader(graph.WithDiagnostics(rec.callback))
	require.NoError(t, err)

	require.Equal(t, graph.NoNode, l.Root())
	require.Equal(t, 1, rec.count(diag.Warning))
	require.Equal(t, "", l.String())

	_, err = l.ToS64(0)
	require.ErrorIs(t, err, diag.UnexpectedNode)
}

func TestLoaderLoadFailure(t *testing.T) {
	rec := &recorder{}
	l, err := graph.NewLoader(graph.WithDiagnostics(rec.callback))
	require.NoError(t, err)

	require.NoError(t, l.Load([]byte(`ok { 1 }`)))
	require.NotEqual(t, graph.NoNode, l.Root())

	err = l.Load([]byte("a { 1"))
	require.ErrorIs(t, err, diag.LoadError)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	require.Equal(t, 1, d.Line)
	require.Equal(t, 3, d.Column)
	require.Contains(t, d.Message, "missing closing brace")

	require.Equal(t, graph.NoNode, l.Root(), "a failed load leaves nothing loaded")
}

func TestLoaderSignFlood(t *testing.T) {
	rec := &recorder{}
	l, err := graph.NewLoader(graph.WithDiagnostics(rec.callback))
	require.NoError(t, err)

	err = l.Load([]byte(strings.Repeat("-", 1_000_000)))
	require.ErrorIs(t, err, diag.LoadError)
	require.Contains(t, err.Error(), "sign without digits")
	require.Equal(t, 1, rec.count(diag.Error))
}

func TestLoaderConversions(t *testing.T) {
	l, _ := newLoader(t, `
big { 4294967295 }
neg { -1 }
flt { 2.5 }
min { -2147483648 }
txt { "x" }
`)
	root := l.Root()

	_, err := l.LoadU32(l.FindFirstChildNamed(root, "big"))
	require.ErrorIs(t, err, diag.ConversionError)

	u64, err := l.LoadU64(l.FindFirstChildNamed(root, "big"))
	require.NoError(t, err)
	require.Equal(t, uint64(4294967295), u64)

	_, err = l.LoadU64(l.FindFirstChildNamed(root, "neg"))
	require.ErrorIs(t, err, diag.ConversionError)

	s64, err := l.LoadS64(l.FindFirstChildNamed(root, "neg"))
	require.NoError(t, err)
	require.Equal(t, int64(-1), s64)

	_, err = l.LoadS32(l.FindFirstChildNamed(root, "min"))
	require.ErrorIs(t, err, diag.ConversionError, "the saturating boundary counts as overflow")

	_, err = l.LoadS64(l.FindFirstChildNamed(root, "flt"))
	require.ErrorIs(t, err, diag.ConversionError)
	require.Contains(t, err.Error(), "node is of kind FLOAT, not INTEGER")

	f32, err := l.LoadF32(l.FindFirstChildNamed(root, "flt"))
	require.NoError(t, err)
	require.Equal(t, float32(2.5), f32)

	_, err = l.LoadF64(l.FindFirstChildNamed(root, "txt"))
	require.ErrorIs(t, err, diag.ConversionError)
}

func TestLoaderCopyString(t *testing.T) {
	l, _ := newLoader(t, `s { "hello" } n { 7 }`)
	root := l.Root()
	s := l.FirstChild(l.FindFirstChildNamed(root, "s"))
	n := l.FirstChild(l.FindFirstChildNamed(root, "n"))

	small := []byte("XXXXX")
	_, err := l.CopyString(s, small)
	require.ErrorIs(t, err, diag.LogicError)
	require.Equal(t, "XXXXX", string(small), "a short buffer is left untouched")

	mismatch := []byte("XXXXXXXX")
	_, err = l.CopyString(n, mismatch)
	require.ErrorIs(t, err, diag.ConversionError)
	require.Equal(t, "XXXXXXXX", string(mismatch), "a type mismatch leaves dst untouched")

	buf := []byte("XXXXXXXX")
	got, err := l.CopyString(s, buf)
	require.NoError(t, err)
	require.Equal(t, 5, got)
	require.Equal(t, "hello\x00XX", string(buf))
}

func TestLoaderCommaEquivalence(t *testing.T) {
	a, _ := newLoader(t, `v { 1, 2, 3 }`)
	b, _ := newLoader(t, `v { 1 2 3 }`)
	c, _ := newLoader(t, `v{1,2,,3,}`)

	for _, l := range []*graph.Loader{a, b, c} {
		dst := make([]int32, 8)
		n, err := l.LoadS32Array(l.FindFirstChildNamed(l.Root(), "v"), dst)
		require.NoError(t, err)
		require.Equal(t, []int32{1, 2, 3}, dst[:n])
	}
	require.Equal(t, a.String(), b.String())
	require.Equal(t, a.String(), c.String())
}

func TestLoaderArrays(t *testing.T) {
	l, _ := newLoader(t, `v { 1, 2, "x", 3 } e`)
	root := l.Root()

	dst := make([]int64, 8)
	n, err := l.LoadS64Array(l.FindFirstChildNamed(root, "v"), dst)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, dst[:n], "conversion stops at the first non-integer")

	short := make([]int32, 1)
	n, err = l.ToS32Array(l.FindFirstChildNamed(root, "v"), short)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = l.LoadS32Array(l.FindFirstChildNamed(root, "e"), dst32(4))
	require.ErrorIs(t, err, diag.UnexpectedNode)
}

func dst32(n int) []int32 { return make([]int32, n) }

func TestLoaderArraysLeaveDstOnFailure(t *testing.T) {
	l, _ := newLoader(t, `v { 1, 2, 99999999999 }`)
	v := l.FindFirstChildNamed(l.Root(), "v")

	dst := []int32{7, 7, 7}
	n, err := l.ToS32Array(v, dst)
	require.ErrorIs(t, err, diag.ConversionError)
	require.Zero(t, n)
	require.Equal(t, []int32{7, 7, 7}, dst)

	n, err = l.LoadS32Array(v, dst)
	require.ErrorIs(t, err, diag.ConversionError)
	require.Zero(t, n)
	require.Equal(t, []int32{7, 7, 7}, dst)

	wide := []int64{7, 7, 7}
	n, err = l.ToS64Array(v, wide)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []int64{1, 2, 99999999999}, wide)
}

func TestLoaderVec3(t *testing.T) {
	l, _ := newLoader(t, `p { 1.0, -2.5, 3.25 } q { 1.0, 2.0 } r { 1.0, 2, 3.0 }`)
	root := l.Root()

	v, err := l.LoadVec3(l.FindFirstChildNamed(root, "p"))
	require.NoError(t, err)
	require.Equal(t, [3]float32{1, -2.5, 3.25}, v)

	_, err = l.LoadVec3(l.FindFirstChildNamed(root, "q"))
	require.ErrorIs(t, err, diag.UnexpectedNode)
	require.Contains(t, err.Error(), "z value is missing")

	_, err = l.LoadVec3(l.FindFirstChildNamed(root, "r"))
	require.ErrorIs(t, err, diag.ConversionError)
}

func TestLoaderComments(t *testing.T) {
	l, _ := newLoader(t, "/* outer /* inner */ still a comment */ x { /* here too */ 1 }")
	v, err := l.LoadS32(l.FindFirstChildNamed(l.Root(), "x"))
	require.NoError(t, err)
	require.Equal(t, int32(1), v)
}

func TestLoaderStrings(t *testing.T) {
	l, _ := newLoader(t, `a { "say \"hi\"" } b { "a\\" } c { "" }`)
	root := l.Root()

	a, err := l.LoadString(l.FindFirstChildNamed(root, "a"))
	require.NoError(t, err)
	require.Equal(t, `say \"hi\"`, a, "escapes are kept verbatim")

	b, err := l.LoadString(l.FindFirstChildNamed(root, "b"))
	require.NoError(t, err)
	require.Equal(t, `a\\`, b, "an escaped backslash does not escape the quote")

	c, err := l.LoadString(l.FindFirstChildNamed(root, "c"))
	require.NoError(t, err)
	require.Equal(t, "", c)
}

func TestLoaderNumericClassification(t *testing.T) {
	l, _ := newLoader(t, `n { 1 2.5 -3 +4 0.0 "5" }`)
	var kinds []token.Kind
	for _, c := range l.Children(l.FindFirstChildNamed(l.Root(), "n")) {
		kinds = append(kinds, l.TypeOf(c))
	}
	require.Equal(t, []token.Kind{
		token.Integer, token.Float, token.Integer, token.Integer, token.Float, token.String,
	}, kinds)
}

func TestLoaderPositions(t *testing.T) {
	l, _ := newLoader(t, "a {\n  b { 2 }\n}")
	b := l.FindFirstChildNamed(l.FindFirstChildNamed(l.Root(), "a"), "b")
	require.Equal(t, 2, l.Line(b))
	require.Equal(t, 3, l.Column(b))
	require.Equal(t, "b", string(l.Text(b)))
	require.Zero(t, l.Line(l.Root()))
}

func TestLoaderDuplicateNames(t *testing.T) {
	l, _ := newLoader(t, `x { 1 } y x { 2 }`)
	first := l.FindFirstChildNamed(l.Root(), "x")
	v, err := l.LoadS32(first)
	require.NoError(t, err)
	require.Equal(t, int32(1), v, "the first entry wins")

	second := l.FindFirstSiblingNamed(first, "x")
	v, err = l.LoadS32(second)
	require.NoError(t, err)
	require.Equal(t, int32(2), v)
}

func TestLoaderReaderAndUnload(t *testing.T) {
	rec := &recorder{}
	l, err := graph.NewLoader(graph.WithDiagnostics(rec.callback))
	require.NoError(t, err)

	require.NoError(t, l.LoadReader(bytes.NewBufferString(`k { 9 }`)))
	v, err := l.LoadU64(l.FindFirstChildNamed(l.Root(), "k"))
	require.NoError(t, err)
	require.Equal(t, uint64(9), v)

	l.Unload()
	require.Equal(t, graph.NoNode, l.Root())

	require.NoError(t, l.Load([]byte(`k { 10 }`)), "an unloaded Loader can be reused")
	v, err = l.LoadU64(l.FindFirstChildNamed(l.Root(), "k"))
	require.NoError(t, err)
	require.Equal(t, uint64(10), v)
}

func TestLoaderErrorsAccumulateUntilLoad(t *testing.T) {
	l, _ := newLoader(t, `a { "s" }`)
	a := l.FindFirstChildNamed(l.Root(), "a")
	for i := 0; i < 100; i++ {
		_, _ = l.LoadS32(a)
	}
	require.Len(t, l.Diagnostics().Errors(), 100)
	require.True(t, l.Diagnostics().Check())

	require.NoError(t, l.Load([]byte(`a { 1 }`)))
	require.False(t, l.Diagnostics().Check())
}

func TestLoaderMaxDepth(t *testing.T) {
	rec := &recorder{}
	l, err := graph.NewLoader(graph.WithDiagnostics(rec.callback), graph.MaxDepth(2))
	require.NoError(t, err)

	require.NoError(t, l.Load([]byte(`a { b { 1 } }`)))
	err = l.Load([]byte(`a { b { c { 1 } } }`))
	require.ErrorIs(t, err, diag.LoadError)
	require.Contains(t, err.Error(), "maximum nesting depth exceeded (2)")
}

func TestOptionsValidation(t *testing.T) {
	_, err := graph.NewLoader(graph.WithDiagnostics(nil))
	require.Error(t, err)
	_, err = graph.NewLoader(graph.MaxDepth(0))
	require.Error(t, err)
	_, err = graph.NewSaver(graph.Indent(-1))
	require.Error(t, err)
	_, err = graph.NewSaver(graph.WithAllocator(nil))
	require.Error(t, err)
}
