package graph

import (
	"encoding"
	"io"
	"reflect"
	"slices"

	"github.com/KimNorgaard/go-graph/diag"
	"github.com/KimNorgaard/go-graph/internal/mapper"
)

// Encoder writes Go values to an output stream as graph documents.
type Encoder struct {
	w    io.Writer
	opts []Option
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	return &Encoder{w: w, opts: opts}
}

// Encode writes the graph encoding of v to the stream. v must be a struct, a
// map with string keys, or a pointer to one of those; its fields or entries
// become the top-level entries of the document.
func (e *Encoder) Encode(v any) error {
	s, err := NewSaver(e.opts...)
	if err != nil {
		return err
	}
	defer s.Finish()

	// The root block does not count towards the nesting limit.
	es := &encodeState{s: s, depth: s.opts.maxDepth + 1}
	if err := es.marshalDocument(reflect.ValueOf(v)); err != nil {
		return err
	}
	return s.Write(e.w)
}

type encodeState struct {
	s     *Saver
	depth int
}

var (
	marshalerType     = reflect.TypeFor[Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

func (e *encodeState) errorf(format string, args ...any) error {
	return e.s.diag.Push(diag.LogicError, nil, nil, format, args...)
}

func (e *encodeState) marshalDocument(v reflect.Value) error {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return e.errorf("cannot marshal a nil %s as a document", v.Type())
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return e.errorf("cannot marshal nil as a document")
	}
	switch v.Kind() {
	case reflect.Struct, reflect.Map:
		return e.marshalBlock(e.s.Root(), v)
	}
	return e.errorf("cannot marshal %s as a document; want a struct or a map", v.Type())
}

// marshalBlock writes the fields of a struct or the entries of a map under
// parent.
func (e *encodeState) marshalBlock(parent SaverNode, v reflect.Value) error {
	e.depth--
	if e.depth < 0 {
		return e.errorf("maximum nesting depth exceeded while marshaling %s", v.Type())
	}
	defer func() { e.depth++ }()

	if v.Kind() == reflect.Map {
		if v.Type().Key().Kind() != reflect.String {
			return e.errorf("map key type must be a string, got %s", v.Type().Key())
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		slices.Sort(keys)
		for _, k := range keys {
			if err := e.marshalEntry(parent, k, v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key()))); err != nil {
				return err
			}
		}
		return nil
	}

	for _, f := range mapper.CachedFields(v.Type()).List {
		fv, ok := fieldByIndexNoAlloc(v, f.Index)
		if !ok || f.OmitEmpty && isEmptyValue(fv) {
			continue
		}
		if err := e.marshalEntry(parent, f.Name, fv); err != nil {
			return err
		}
	}
	return nil
}

// marshalEntry writes v as the entry name under parent.
func (e *encodeState) marshalEntry(parent SaverNode, name string, v reflect.Value) error {
	for {
		if handled, err := e.marshalCustom(parent, name, v); handled || err != nil {
			return err
		}
		if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface {
			break
		}
		if v.IsNil() {
			if v.Kind() == reflect.Interface {
				_, err := e.s.AddComposite(parent, name)
				return err
			}
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct, reflect.Map:
		node, err := e.s.AddComposite(parent, name)
		if err != nil {
			return err
		}
		return e.marshalBlock(node, v)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		if repeated(v) {
			for i := 0; i < v.Len(); i++ {
				if err := e.marshalEntry(parent, name, v.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}
		node, err := e.s.AddComposite(parent, name)
		if err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err := e.marshalScalar(node, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}

	node, err := e.s.AddComposite(parent, name)
	if err != nil {
		return err
	}
	return e.marshalScalar(node, v)
}

// marshalCustom uses a Marshaler or encoding.TextMarshaler if v or a
// pointer to v implements one.
func (e *encodeState) marshalCustom(parent SaverNode, name string, v reflect.Value) (bool, error) {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return false, nil
	}
	if !v.Type().Implements(marshalerType) && !v.Type().Implements(textMarshalerType) {
		if !v.CanAddr() {
			return false, nil
		}
		v = v.Addr()
	}

	switch m := v.Interface().(type) {
	case Marshaler:
		node, err := e.s.AddComposite(parent, name)
		if err != nil {
			return true, err
		}
		if err := m.MarshalGraph(e.s, node); err != nil {
			return true, &MarshalerError{Type: v.Type(), Err: err}
		}
		return true, nil
	case encoding.TextMarshaler:
		text, err := m.MarshalText()
		if err != nil {
			return true, &MarshalerError{Type: v.Type(), Err: err}
		}
		node, err := e.s.AddComposite(parent, name)
		if err != nil {
			return true, err
		}
		if _, err := e.s.AddString(node, escapeString(string(text))); err != nil {
			return true, &MarshalerError{Type: v.Type(), Err: err}
		}
		return true, nil
	}
	return false, nil
}

func (e *encodeState) marshalScalar(parent SaverNode, v reflect.Value) error {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return e.errorf("cannot marshal a nil %s as a value", v.Type())
		}
		v = v.Elem()
	}

	var err error
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		_, err = e.s.AddS64(parent, v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		_, err = e.s.AddU64(parent, v.Uint())
	case reflect.Float32:
		_, err = e.s.AddF32(parent, float32(v.Float()))
	case reflect.Float64:
		_, err = e.s.AddF64(parent, v.Float())
	case reflect.String:
		_, err = e.s.AddString(parent, escapeString(v.String()))
	case reflect.Bool:
		name := "false"
		if v.Bool() {
			name = "true"
		}
		_, err = e.s.AddComposite(parent, name)
	default:
		err = e.errorf("unsupported type for marshaling: %s", v.Type())
	}
	return err
}

// fieldByIndexNoAlloc is like reflect.Value.FieldByIndex but reports false
// when the path crosses a nil embedded pointer.
func fieldByIndexNoAlloc(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

// repeated reports whether the elements of v are written as separate
// entries sharing one name rather than as values of a single entry.
func repeated(v reflect.Value) bool {
	elem := v.Type().Elem()
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Kind() == reflect.Interface {
		// Mixed slices repeat as soon as one element is not a plain value.
		for i := 0; i < v.Len(); i++ {
			x := v.Index(i)
			for x.Kind() == reflect.Pointer || x.Kind() == reflect.Interface {
				if x.IsNil() {
					return true
				}
				x = x.Elem()
			}
			switch x.Kind() {
			case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Bool:
				return true
			}
		}
		return false
	}
	if elem.Implements(marshalerType) || reflect.PointerTo(elem).Implements(marshalerType) {
		return true
	}
	return elem.Kind() == reflect.Struct || elem.Kind() == reflect.Map
}

// isEmptyValue reports whether the value v is empty.
func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
