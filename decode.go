package graph

import (
	"encoding"
	"io"
	"reflect"

	"github.com/KimNorgaard/go-graph/diag"
	"github.com/KimNorgaard/go-graph/internal/convert"
	"github.com/KimNorgaard/go-graph/internal/mapper"
	"github.com/KimNorgaard/go-graph/token"
)

// Decoder reads and decodes graph documents from an input stream.
type Decoder struct {
	r    io.Reader
	opts []Option
}

// NewDecoder returns a new decoder that reads from r.
//
// The whole of r is read into memory before parsing.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	return &Decoder{r: r, opts: opts}
}

// Decode reads a document from the input and stores it in the value pointed
// to by v. See Unmarshal for how entries map onto Go values.
func (d *Decoder) Decode(v any) error {
	l, err := NewLoader(d.opts...)
	if err != nil {
		return err
	}
	defer l.Unload()
	if err := l.LoadReader(d.r); err != nil {
		return err
	}
	return newDecodeState(l).unmarshal(v)
}

type decodeState struct {
	l *Loader
}

var (
	unmarshalerType     = reflect.TypeFor[Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

func newDecodeState(l *Loader) *decodeState { return &decodeState{l: l} }

func (d *decodeState) errorf(n NodeID, format string, args ...any) error {
	return d.l.diag.Push(diag.UnexpectedNode, d.l.tree.Token(n), d.l.src, format, args...)
}

func (d *decodeState) unmarshal(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return d.l.diag.Push(diag.LogicError, nil, nil, "Unmarshal(non-pointer %T or nil)", v)
	}
	rv = indirect(rv.Elem())
	root := d.l.tree.Root()
	switch rv.Kind() {
	case reflect.Struct, reflect.Map:
		return d.decodeBlock(root, rv)
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			m, err := d.blockAny(root)
			if err != nil {
				return err
			}
			rv.Set(reflect.ValueOf(m))
			return nil
		}
	}
	return d.l.diag.Push(diag.LogicError, nil, nil, "cannot unmarshal a document into %s", rv.Type())
}

// setAny returns a function that stores a generic result in v.
func setAny(v reflect.Value) func(any, error) error {
	return func(x any, err error) error {
		if err != nil {
			return err
		}
		if x == nil {
			v.SetZero()
			return nil
		}
		v.Set(reflect.ValueOf(x))
		return nil
	}
}

// indirect walks down v allocating pointers as needed until it reaches a
// non-pointer.
func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	return v
}

// decodeBlock stores the named children of n in the struct or map v.
func (d *decodeState) decodeBlock(n NodeID, v reflect.Value) error {
	var fields *mapper.Fields
	if v.Kind() == reflect.Map {
		if v.Type().Key().Kind() != reflect.String {
			return d.errorf(n, "map key type must be a string, got %s", v.Type().Key())
		}
		if v.IsNil() {
			v.Set(reflect.MakeMap(v.Type()))
		}
	} else {
		fields = mapper.CachedFields(v.Type())
	}

	seen := make(map[string]bool)
	for _, c := range d.l.tree.Children(n) {
		if !d.l.tree.Kind(c).IsNamed() {
			continue
		}
		name := string(d.l.tree.Text(c))

		if fields == nil {
			if err := d.decodeMapEntry(c, name, v, seen[name]); err != nil {
				return err
			}
			seen[name] = true
			continue
		}

		f, ok := fields.Lookup(name)
		if !ok {
			continue
		}
		fv, err := d.fieldByIndex(c, v, f.Index)
		if err != nil {
			return err
		}
		if isRepeated(fv.Type()) {
			if seen[name] {
				if err := d.appendElem(c, fv); err != nil {
					return err
				}
				continue
			}
			fv.Set(reflect.Zero(fv.Type()))
			if err := d.appendElem(c, fv); err != nil {
				return err
			}
			seen[name] = true
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		if err := d.decodeEntry(c, fv); err != nil {
			return err
		}
	}
	return nil
}

func (d *decodeState) decodeMapEntry(c NodeID, name string, m reflect.Value, seen bool) error {
	elemType := m.Type().Elem()
	key := reflect.ValueOf(name).Convert(m.Type().Key())

	if isRepeated(elemType) {
		elem := reflect.New(elemType).Elem()
		if seen {
			elem.Set(m.MapIndex(key))
		}
		if err := d.appendElem(c, elem); err != nil {
			return err
		}
		m.SetMapIndex(key, elem)
		return nil
	}
	if seen {
		return nil
	}
	elem := reflect.New(elemType).Elem()
	if err := d.decodeEntry(c, elem); err != nil {
		return err
	}
	m.SetMapIndex(key, elem)
	return nil
}

// appendElem decodes the entry n as one more element of the slice v.
func (d *decodeState) appendElem(n NodeID, v reflect.Value) error {
	elem := reflect.New(v.Type().Elem()).Elem()
	if err := d.decodeEntry(n, elem); err != nil {
		return err
	}
	v.Set(reflect.Append(v, elem))
	return nil
}

// fieldByIndex is like reflect.Value.FieldByIndex but allocates nil embedded
// struct pointers on the way. A nil pointer behind an unexported embedded
// field cannot be allocated and is an error.
func (d *decodeState) fieldByIndex(n NodeID, v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() && !v.CanSet() {
				return reflect.Value{}, d.l.diag.Push(diag.LogicError, d.l.tree.Token(n), d.l.src,
					"cannot set embedded pointer to unexported struct: %s", v.Type().Elem())
			}
			v = indirect(v)
		}
		v = v.Field(x)
	}
	return v, nil
}

// isRepeated reports whether values of type t collect every entry of a name.
func isRepeated(t reflect.Type) bool {
	if t.Kind() != reflect.Slice {
		return false
	}
	elem := t.Elem()
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if reflect.PointerTo(elem).Implements(unmarshalerType) {
		return true
	}
	return elem.Kind() == reflect.Struct || elem.Kind() == reflect.Map
}

// decodeEntry stores the entry n in v.
func (d *decodeState) decodeEntry(n NodeID, v reflect.Value) error {
	if handled, err := d.decodeCustom(n, v); handled || err != nil {
		return err
	}

	v = indirect(v)
	switch v.Kind() {
	case reflect.Struct, reflect.Map:
		return d.decodeBlock(n, v)
	case reflect.Interface:
		if v.NumMethod() != 0 {
			return d.errorf(n, "cannot unmarshal into non-empty interface %s", v.Type())
		}
		return setAny(v)(d.entryAny(n))
	case reflect.Slice:
		values := d.l.tree.Children(n)
		s := reflect.MakeSlice(v.Type(), len(values), len(values))
		for i, c := range values {
			if err := d.decodeValue(c, s.Index(i)); err != nil {
				return err
			}
		}
		v.Set(s)
		return nil
	case reflect.Array:
		values := d.l.tree.Children(n)
		for i := 0; i < v.Len(); i++ {
			if i >= len(values) {
				v.Index(i).SetZero()
				continue
			}
			if err := d.decodeValue(values[i], v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}

	value := d.l.tree.Node(n).FirstChild
	if value == NoNode {
		return d.errorf(n, "node has no value")
	}
	return d.decodeValue(value, v)
}

// decodeCustom hands n to an Unmarshaler or encoding.TextUnmarshaler if v
// implements one through a pointer.
func (d *decodeState) decodeCustom(n NodeID, v reflect.Value) (bool, error) {
	for v.Kind() == reflect.Pointer {
		if v.Type().Implements(unmarshalerType) || v.Type().Implements(textUnmarshalerType) {
			break
		}
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Pointer {
		if !v.CanAddr() {
			return false, nil
		}
		v = v.Addr()
	} else if v.IsNil() {
		v.Set(reflect.New(v.Type().Elem()))
	}

	switch u := v.Interface().(type) {
	case Unmarshaler:
		if err := u.UnmarshalGraph(d.l, n); err != nil {
			return true, &UnmarshalerError{Type: v.Type(), Err: err}
		}
		return true, nil
	case encoding.TextUnmarshaler:
		value := d.l.tree.Node(n).FirstChild
		if value == NoNode || d.l.tree.Kind(value) != token.String {
			return true, d.errorf(n, "%s wants a string value", v.Type())
		}
		text := unescapeString(string(d.l.tree.Text(value)))
		if err := u.UnmarshalText([]byte(text)); err != nil {
			return true, &UnmarshalerError{Type: v.Type(), Err: err}
		}
		return true, nil
	}
	return false, nil
}

// decodeValue stores the value node c in the scalar v.
func (d *decodeState) decodeValue(c NodeID, v reflect.Value) error {
	v = indirect(v)
	kind := d.l.tree.Kind(c)
	tok := d.l.tree.Token(c)

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		x, err := d.l.ToS64(c)
		if err != nil {
			return err
		}
		if v.OverflowInt(x) {
			return d.l.diag.Push(diag.ConversionError, tok, d.l.src, "value %d overflows %s", x, v.Type())
		}
		v.SetInt(x)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		x, err := d.l.ToU64(c)
		if err != nil {
			return err
		}
		if v.OverflowUint(x) {
			return d.l.diag.Push(diag.ConversionError, tok, d.l.src, "value %d overflows %s", x, v.Type())
		}
		v.SetUint(x)
	case reflect.Float32, reflect.Float64:
		var x float64
		var err error
		if kind == token.Integer {
			// Integers are accepted where a float is wanted.
			if x, err = convert.F64(tok.Text(d.l.src)); err != nil {
				return d.l.diag.Push(diag.ConversionError, tok, d.l.src, "could not convert to float64: %s", err)
			}
		} else if x, err = d.l.ToF64(c); err != nil {
			return err
		}
		if v.OverflowFloat(x) {
			return d.l.diag.Push(diag.ConversionError, tok, d.l.src, "value %v overflows %s", x, v.Type())
		}
		v.SetFloat(x)
	case reflect.String:
		s, err := d.l.ToString(c)
		if err != nil {
			return err
		}
		v.SetString(unescapeString(s))
	case reflect.Bool:
		text := string(d.l.tree.Text(c))
		if kind != token.Name || (text != "true" && text != "false") {
			return d.l.diag.Push(diag.ConversionError, tok, d.l.src, "node is of kind %s, not a boolean", kind)
		}
		v.SetBool(text == "true")
	case reflect.Interface:
		if v.NumMethod() != 0 {
			return d.errorf(c, "cannot unmarshal into non-empty interface %s", v.Type())
		}
		return setAny(v)(d.valueAny(c))
	default:
		return d.l.diag.Push(diag.LogicError, tok, d.l.src, "unsupported type for unmarshaling: %s", v.Type())
	}
	return nil
}

// entryAny returns the generic form of the entry n: nil for a bare name, the
// value itself for a single value, a []any for several values, and a
// map[string]any for a block holding named entries. Values next to named
// entries are dropped.
func (d *decodeState) entryAny(n NodeID) (any, error) {
	children := d.l.tree.Children(n)
	for _, c := range children {
		if d.l.tree.Kind(c).IsNamed() {
			return d.blockAny(n)
		}
	}

	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return d.valueAny(children[0])
	}
	out := make([]any, len(children))
	for i, c := range children {
		v, err := d.valueAny(c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// blockAny returns the named entries of n as a map. A name seen more than
// once collects its entries in a []any.
func (d *decodeState) blockAny(n NodeID) (map[string]any, error) {
	out := make(map[string]any)
	multi := make(map[string]bool)
	for _, c := range d.l.tree.Children(n) {
		if !d.l.tree.Kind(c).IsNamed() {
			continue
		}
		name := string(d.l.tree.Text(c))
		v, err := d.entryAny(c)
		if err != nil {
			return nil, err
		}
		prev, ok := out[name]
		switch {
		case !ok:
			out[name] = v
		case multi[name]:
			out[name] = append(prev.([]any), v)
		default:
			out[name] = []any{prev, v}
			multi[name] = true
		}
	}
	return out, nil
}

// valueAny returns a value node as int64, uint64, float64 or string. An
// integer that fits neither integer type is returned as a float64.
func (d *decodeState) valueAny(c NodeID) (any, error) {
	tok := d.l.tree.Token(c)
	text := tok.Text(d.l.src)
	switch tok.Kind {
	case token.Integer:
		if x, err := convert.S64(text); err == nil {
			return x, nil
		}
		if x, err := convert.U64(text); err == nil {
			return x, nil
		}
		fallthrough
	case token.Float:
		x, err := convert.F64(text)
		if err != nil {
			return nil, d.l.diag.Push(diag.ConversionError, tok, d.l.src, "could not convert to float64: %s", err)
		}
		return x, nil
	case token.String:
		return unescapeString(string(text)), nil
	}
	return d.entryAny(c)
}
