package token

// Kind is the lexical class of a token.
type Kind uint8

const (
	Root          Kind = iota // synthetic token held by the implicit document root
	Name                      // identifier, e.g. position
	CurlyClose                // }
	CompositeType             // a Name that has acquired children
	String                    // "hello"
	Float                     // 3.14
	Integer                   // -13
	EndOfFile                 // end of input; also the kind of an absent node
	ValueAssign               // {
)

var kindNames = [...]string{
	Root:          "ROOT",
	Name:          "NAME",
	CurlyClose:    "}",
	CompositeType: "COMPOSITE",
	String:        "STRING",
	Float:         "FLOAT",
	Integer:       "INTEGER",
	EndOfFile:     "EOF",
	ValueAssign:   "{",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// IsValue reports whether k is a scalar value kind.
func (k Kind) IsValue() bool {
	return k == String || k == Float || k == Integer
}

// IsNamed reports whether k is a bare name or a named container.
func (k Kind) IsNamed() bool {
	return k == Name || k == CompositeType
}

// Token is a classified span of the source buffer. Tokens never own their
// text; Offset and Length index into the buffer they were scanned from.
type Token struct {
	Kind   Kind
	Offset int
	Length int
	Line   int
	Column int
}

// Text returns the token's span within src. It returns nil for spans that do
// not lie within src, which is always the case for the synthetic Root token.
func (t Token) Text(src []byte) []byte {
	if t.Kind == Root || t.Offset < 0 || t.Length < 0 || t.Offset+t.Length > len(src) {
		return nil
	}
	return src[t.Offset : t.Offset+t.Length]
}
