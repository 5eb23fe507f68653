package registry

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/holmberd/go-vpack/vpack"
)

// TagName is the struct tag consulted for field names, e.g. `vpack:"name,omitempty"`.
const TagName = "vpack"

var (
	timeType  = reflect.TypeFor[time.Time]()
	valueType = reflect.TypeFor[*vpack.Value]()
	sliceType = reflect.TypeFor[vpack.Slice]()
)

// Field describes one property of a variant or struct.
type Field struct {
	Name string
	Kind vpack.Kind

	// Any accepts every kind. Used for untyped and interface fields.
	Any bool

	// Nullable accepts null in addition to Kind.
	Nullable bool

	// Time marks time.Time fields, which also accept integer milliseconds
	// (UTC-date values).
	Time bool

	// OmitEmpty skips the property on encode when the Go value is zero.
	OmitEmpty bool

	// Index is the reflect field index path within the struct.
	Index []int
}

// Accepts reports whether a decoded value of kind k, or null, fits the field.
// Double and time fields also accept integers.
func (f Field) Accepts(k vpack.Kind) bool {
	switch {
	case f.Any, k == f.Kind:
		return true
	case k == vpack.KindNull:
		return f.Nullable
	case k == vpack.KindInt:
		return f.Kind == vpack.KindDouble || f.Time
	}
	return false
}

// Schema is the ordered field set of a struct type.
type Schema struct {
	Fields []Field
	byName map[string]int
}

func newSchema(fields []Field) (*Schema, error) {
	s := &Schema{Fields: fields, byName: make(map[string]int, len(fields))}
	for i, f := range fields {
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field name %q", ErrInvalidConfig, f.Name)
		}
		s.byName[f.Name] = i
	}
	return s, nil
}

// Field returns the field with the given property name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// SchemaOf derives the field schema of a struct type from its exported fields
// and their vpack struct tags. Untagged embedded structs are flattened.
func SchemaOf(t reflect.Type) (*Schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrInvalidConfig, t)
	}
	var fields []Field
	if err := appendFields(&fields, t, nil); err != nil {
		return nil, err
	}
	return newSchema(fields)
}

func appendFields(fields *[]Field, t reflect.Type, prefix []int) error {
	for i := range t.NumField() {
		sf := t.Field(i)
		name, opts, tagged := parseTag(sf)
		if name == "-" && opts == "" {
			continue
		}
		index := append(append([]int(nil), prefix...), i)
		if sf.Anonymous && !tagged && sf.Type.Kind() == reflect.Struct {
			if err := appendFields(fields, sf.Type, index); err != nil {
				return err
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		kind, anyKind, nullable, ok := kindOf(sf.Type)
		if !ok {
			return fmt.Errorf("%w: field %s.%s has unsupported type %s", ErrInvalidConfig, t, sf.Name, sf.Type)
		}
		*fields = append(*fields, Field{
			Name:      name,
			Kind:      kind,
			Any:       anyKind,
			Nullable:  nullable,
			Time:      isTime(sf.Type),
			OmitEmpty: strings.Contains(opts, "omitempty"),
			Index:     index,
		})
	}
	return nil
}

func parseTag(sf reflect.StructField) (name, opts string, tagged bool) {
	tag, ok := sf.Tag.Lookup(TagName)
	if !ok {
		return sf.Name, "", false
	}
	name, opts, _ = strings.Cut(tag, ",")
	if name == "" {
		name = sf.Name
	}
	return name, opts, true
}

func isTime(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t == timeType
}

// kindOf maps a Go type to the value kind it encodes to.
func kindOf(t reflect.Type) (kind vpack.Kind, anyKind, nullable, ok bool) {
	switch t {
	case timeType:
		return vpack.KindString, false, false, true
	case valueType, sliceType:
		return vpack.KindNull, true, true, true
	}
	switch t.Kind() {
	case reflect.Bool:
		return vpack.KindBool, false, false, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return vpack.KindInt, false, false, true
	case reflect.Float32, reflect.Float64:
		return vpack.KindDouble, false, false, true
	case reflect.String:
		return vpack.KindString, false, false, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return vpack.KindBinary, false, true, true
		}
		return vpack.KindArray, false, true, true
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return vpack.KindBinary, false, false, true
		}
		return vpack.KindArray, false, false, true
	case reflect.Map, reflect.Struct:
		return vpack.KindObject, false, t.Kind() == reflect.Map, true
	case reflect.Interface:
		return vpack.KindNull, true, true, true
	case reflect.Pointer:
		kind, anyKind, _, ok := kindOf(t.Elem())
		return kind, anyKind, true, ok
	}
	return vpack.KindNull, false, false, false
}
