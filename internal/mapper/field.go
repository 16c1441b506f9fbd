// Package mapper caches how Go struct fields map onto graph entries.
package mapper

import (
	"reflect"
	"strings"
	"sync"
)

// Field describes a struct field that takes part in encoding.
type Field struct {
	Name      string
	Index     []int
	Tagged    bool
	OmitEmpty bool
}

// Fields is the encodable field set of a struct type.
type Fields struct {
	List   []Field // declaration order, embedded fields inlined
	byName map[string]int
}

// Lookup returns the field encoded under name. Names are case-sensitive.
func (fs *Fields) Lookup(name string) (*Field, bool) {
	i, ok := fs.byName[name]
	if !ok {
		return nil, false
	}
	return &fs.List[i], true
}

// fieldCache maps reflect.Type to *Fields.
var fieldCache sync.Map

// CachedFields parses t's `graph` struct tags once and caches the result.
// It skips unexported fields and fields tagged "-". Untagged embedded structs
// have their fields inlined; a field declared in the outer struct wins over
// an inlined one of the same name.
func CachedFields(t reflect.Type) *Fields {
	if f, ok := fieldCache.Load(t); ok {
		return f.(*Fields)
	}

	fs := &Fields{byName: make(map[string]int)}
	collect(t, nil, fs, 0)

	f, _ := fieldCache.LoadOrStore(t, fs)
	return f.(*Fields)
}

func collect(t reflect.Type, index []int, fs *Fields, depth int) {
	var embedded []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("graph")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if sf.Anonymous && name == "" && indirectType(sf.Type).Kind() == reflect.Struct {
			embedded = append(embedded, sf)
			continue
		}
		if !sf.IsExported() {
			continue
		}

		f := Field{Index: append(append([]int(nil), index...), sf.Index...)}
		if name != "" {
			f.Name = name
			f.Tagged = true
		} else {
			f.Name = sf.Name
		}
		for opts != "" {
			var opt string
			opt, opts, _ = strings.Cut(opts, ",")
			if opt == "omitempty" {
				f.OmitEmpty = true
			}
		}
		if _, dup := fs.byName[f.Name]; dup {
			continue
		}
		fs.byName[f.Name] = len(fs.List)
		fs.List = append(fs.List, f)
	}

	// Embedded fields are visited after the outer ones so that outer names
	// take precedence. The depth bound stops recursive embedding.
	if depth > 8 {
		return
	}
	for _, sf := range embedded {
		collect(indirectType(sf.Type), append(append([]int(nil), index...), sf.Index...), fs, depth+1)
	}
}

func indirectType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}
