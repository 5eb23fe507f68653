package mapper

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"time"

	"github.com/holmberd/go-vpack/registry"
	"github.com/holmberd/go-vpack/vpack"
)

var (
	timeType  = reflect.TypeFor[time.Time]()
	valueType = reflect.TypeFor[*vpack.Value]()
	sliceType = reflect.TypeFor[vpack.Slice]()
)

// encodeState holds the state of one ToValue call.
type encodeState struct {
	m     *Mapper
	path  path
	depth int
}

func (e *encodeState) errorf(base error, format string, args ...any) error {
	return fmt.Errorf("%w at %s: %s", base, e.path, fmt.Sprintf(format, args...))
}

func (e *encodeState) push(seg string) { e.path = append(e.path, seg) }
func (e *encodeState) pop()            { e.path = e.path[:len(e.path)-1] }

func (e *encodeState) value(rv reflect.Value) (*vpack.Value, error) {
	if !rv.IsValid() {
		return vpack.Null(), nil
	}
	if e.depth++; e.depth > maxDepth {
		return nil, e.errorf(ErrUnsupportedType, "nesting deeper than %d, cyclic value?", maxDepth)
	}
	defer func() { e.depth-- }()

	t := rv.Type()
	switch t {
	case valueType:
		if rv.IsNil() {
			return vpack.Null(), nil
		}
		return rv.Interface().(*vpack.Value), nil
	case sliceType:
		s := rv.Interface().(vpack.Slice)
		if s.Head() == 0 {
			return vpack.Null(), nil
		}
		v, err := s.Value()
		if err != nil {
			return nil, fmt.Errorf("at %s: %w", e.path, err)
		}
		return v, nil
	case timeType:
		return vpack.String(rv.Interface().(time.Time).Format(time.RFC3339Nano)), nil
	}

	switch t.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return vpack.Null(), nil
		}
		if base, ok := e.m.reg.Lookup(t); ok {
			return e.variant(base, rv.Elem())
		}
		return e.value(rv.Elem())
	case reflect.Pointer:
		if rv.IsNil() {
			return vpack.Null(), nil
		}
		return e.value(rv.Elem())
	case reflect.Bool:
		return vpack.Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return vpack.Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return vpack.Uint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return vpack.Double(rv.Float()), nil
	case reflect.String:
		return vpack.String(rv.String()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return vpack.Null(), nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return vpack.Binary(slices.Clone(rv.Bytes())), nil
		}
		return e.array(rv)
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			for i := range b {
				b[i] = byte(rv.Index(i).Uint())
			}
			return vpack.Binary(b), nil
		}
		return e.array(rv)
	case reflect.Map:
		if rv.IsNil() {
			return vpack.Null(), nil
		}
		return e.object(rv)
	case reflect.Struct:
		s, err := e.m.schemaOf(t)
		if err != nil {
			return nil, fmt.Errorf("at %s: %w", e.path, err)
		}
		obj := vpack.Object()
		if err := e.fields(obj, rv, s); err != nil {
			return nil, err
		}
		return obj, nil
	}
	return nil, e.errorf(ErrUnsupportedType, "%s", t)
}

// variant writes a value held by a polymorphic base: the type tag first, then
// the variant's fields at the same level.
func (e *encodeState) variant(base *registry.BaseDescriptor, rv reflect.Value) (*vpack.Value, error) {
	d, err := base.DescriptorFor(rv.Type())
	if err != nil {
		return nil, fmt.Errorf("at %s: %w", e.path, err)
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return vpack.Null(), nil
		}
		rv = rv.Elem()
	}
	obj := vpack.Object(vpack.M(base.TagProperty, vpack.String(d.Tag)))
	if err := e.fields(obj, rv, d.Schema); err != nil {
		return nil, err
	}
	return obj, nil
}

func (e *encodeState) fields(obj *vpack.Value, rv reflect.Value, s *registry.Schema) error {
	for _, f := range s.Fields {
		fv := rv.FieldByIndex(f.Index)
		if f.OmitEmpty && fv.IsZero() {
			continue
		}
		e.push(f.Name)
		v, err := e.value(fv)
		e.pop()
		if err != nil {
			return err
		}
		if e.m.opts.OmitNull && v.IsNull() {
			continue
		}
		obj.Set(f.Name, v)
	}
	return nil
}

func (e *encodeState) array(rv reflect.Value) (*vpack.Value, error) {
	arr := vpack.Array()
	for i := range rv.Len() {
		e.push(strconv.Itoa(i))
		v, err := e.value(rv.Index(i))
		e.pop()
		if err != nil {
			return nil, err
		}
		arr.Append(v)
	}
	return arr, nil
}

// object writes a map with keys sorted by their string form.
func (e *encodeState) object(rv reflect.Value) (*vpack.Value, error) {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, err := e.mapKey(iter.Key())
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key, iter.Value()})
	}
	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.key, b.key) })

	obj := vpack.Object()
	for _, en := range entries {
		e.push(en.key)
		v, err := e.value(en.val)
		e.pop()
		if err != nil {
			return nil, err
		}
		if e.m.opts.OmitNull && v.IsNull() {
			continue
		}
		obj.Set(en.key, v)
	}
	return obj, nil
}

// mapKey renders a map key as an object key. Non-string keys are written in
// their decimal or boolean text form.
func (e *encodeState) mapKey(k reflect.Value) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	case reflect.Bool:
		return strconv.FormatBool(k.Bool()), nil
	}
	return "", e.errorf(ErrUnsupportedType, "map key type %s", k.Type())
}
