package mapper

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/holmberd/go-vpack/registry"
	"github.com/holmberd/go-vpack/vpack"
)

// decodeState holds the state of one FromValue call. It only writes into
// values created for this call.
type decodeState struct {
	m     *Mapper
	path  path
	depth int
}

func (d *decodeState) errorf(base error, format string, args ...any) error {
	return fmt.Errorf("%w at %s: %s", base, d.path, fmt.Sprintf(format, args...))
}

func (d *decodeState) mismatch(t reflect.Type, val *vpack.Value) error {
	return d.errorf(ErrMismatchedInput, "cannot decode %s into %s", val.Kind(), t)
}

func (d *decodeState) push(seg string) { d.path = append(d.path, seg) }
func (d *decodeState) pop()            { d.path = d.path[:len(d.path)-1] }

// value decodes val into rv, which must be settable.
func (d *decodeState) value(rv reflect.Value, val *vpack.Value) error {
	if d.depth++; d.depth > maxDepth {
		return d.errorf(ErrMismatchedInput, "nesting deeper than %d", maxDepth)
	}
	defer func() { d.depth-- }()

	t := rv.Type()
	switch t {
	case valueType:
		if !val.IsNull() {
			rv.Set(reflect.ValueOf(val))
		}
		return nil
	case sliceType:
		data, err := vpack.Encode(val)
		if err != nil {
			return fmt.Errorf("at %s: %w", d.path, err)
		}
		s, err := vpack.NewSlice(data)
		if err != nil {
			return fmt.Errorf("at %s: %w", d.path, err)
		}
		rv.Set(reflect.ValueOf(s))
		return nil
	case timeType:
		return d.time(rv, val)
	}

	if val.IsNull() {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map:
			rv.SetZero()
			return nil
		}
		return d.mismatch(t, val)
	}

	switch t.Kind() {
	case reflect.Interface:
		if base, ok := d.m.reg.Lookup(t); ok {
			return d.variant(rv, base, val)
		}
		if t.NumMethod() > 0 {
			return d.errorf(ErrUnsupportedType, "interface %s is not a registered polymorphic base", t)
		}
		rv.Set(reflect.ValueOf(val.Interface()))
		return nil
	case reflect.Pointer:
		p := reflect.New(t.Elem())
		if err := d.value(p.Elem(), val); err != nil {
			return err
		}
		rv.Set(p)
		return nil
	case reflect.Bool:
		b, err := val.AsBool()
		if err != nil {
			return d.mismatch(t, val)
		}
		rv.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := val.AsInt()
		if err != nil || rv.OverflowInt(i) {
			return d.errorf(ErrMismatchedInput, "%s does not fit %s", val, t)
		}
		rv.SetInt(i)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := val.AsUint()
		if err != nil || rv.OverflowUint(u) {
			return d.errorf(ErrMismatchedInput, "%s does not fit %s", val, t)
		}
		rv.SetUint(u)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := val.AsDouble()
		if err != nil {
			return d.mismatch(t, val)
		}
		rv.SetFloat(f)
		return nil
	case reflect.String:
		s, err := val.AsString()
		if err != nil {
			return d.mismatch(t, val)
		}
		rv.SetString(s)
		return nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			b, err := val.AsBinary()
			if err != nil {
				return d.mismatch(t, val)
			}
			rv.SetBytes(append([]byte(nil), b...))
			return nil
		}
		elems, err := val.AsArray()
		if err != nil {
			return d.mismatch(t, val)
		}
		out := reflect.MakeSlice(t, len(elems), len(elems))
		if err := d.elements(out, elems); err != nil {
			return err
		}
		rv.Set(out)
		return nil
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			b, err := val.AsBinary()
			if err != nil || len(b) != t.Len() {
				return d.mismatch(t, val)
			}
			reflect.Copy(rv, reflect.ValueOf(b))
			return nil
		}
		elems, err := val.AsArray()
		if err != nil || len(elems) != t.Len() {
			return d.errorf(ErrMismatchedInput, "cannot decode %s of length %d into %s", val.Kind(), val.Len(), t)
		}
		return d.elements(rv, elems)
	case reflect.Map:
		return d.object(rv, val)
	case reflect.Struct:
		s, err := d.m.schemaOf(t)
		if err != nil {
			return fmt.Errorf("at %s: %w", d.path, err)
		}
		if val.Kind() != vpack.KindObject {
			return d.mismatch(t, val)
		}
		return d.fields(rv, val, s, "")
	}
	return d.errorf(ErrUnsupportedType, "%s", t)
}

func (d *decodeState) elements(rv reflect.Value, elems []*vpack.Value) error {
	for i, e := range elems {
		d.push(strconv.Itoa(i))
		err := d.value(rv.Index(i), e)
		d.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

// variant reads the type tag of a polymorphic object, resolves it and decodes
// the remaining properties against the variant's schema.
func (d *decodeState) variant(rv reflect.Value, base *registry.BaseDescriptor, val *vpack.Value) error {
	if val.Kind() != vpack.KindObject {
		return d.mismatch(base.Type, val)
	}
	tagVal, ok := val.Get(base.TagProperty)
	if !ok {
		return d.errorf(ErrMissingTypeTag, "property %q for %s", base.TagProperty, base.Type)
	}
	tag, err := tagVal.AsString()
	if err != nil {
		return d.errorf(ErrMismatchedInput, "type tag property %q is %s", base.TagProperty, tagVal.Kind())
	}
	desc, err := base.Resolve(tag)
	if err != nil {
		return fmt.Errorf("at %s: %w", d.path, err)
	}
	d.m.logger.Debug("resolved type tag", "path", d.path.String(), "base", base.Type.String(), "tag", tag)

	p := reflect.New(desc.Type)
	if err := d.fields(p.Elem(), val, desc.Schema, base.TagProperty); err != nil {
		return err
	}
	if desc.Pointer {
		rv.Set(p)
	} else {
		rv.Set(p.Elem())
	}
	return nil
}

// fields decodes object members into struct fields. The skip property is
// ignored.
func (d *decodeState) fields(rv reflect.Value, obj *vpack.Value, s *registry.Schema, skip string) error {
	members, _ := obj.AsObject()
	for _, mem := range members {
		if skip != "" && mem.Key == skip {
			continue
		}
		f, ok := s.Field(mem.Key)
		if !ok {
			if d.m.opts.DisallowUnknownFields {
				return d.errorf(ErrMismatchedInput, "unknown field %q in %s", mem.Key, rv.Type())
			}
			d.m.logger.Debug("ignoring unknown field", "path", d.path.String(), "field", mem.Key)
			continue
		}
		d.push(mem.Key)
		if !f.Accepts(mem.Value.Kind()) {
			err := d.errorf(ErrMismatchedInput, "expected %s, got %s", f.Kind, mem.Value.Kind())
			d.pop()
			return err
		}
		err := d.value(rv.FieldByIndex(f.Index), mem.Value)
		d.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *decodeState) object(rv reflect.Value, val *vpack.Value) error {
	t := rv.Type()
	members, err := val.AsObject()
	if err != nil {
		return d.mismatch(t, val)
	}
	out := reflect.MakeMapWithSize(t, len(members))
	for _, mem := range members {
		key := reflect.New(t.Key()).Elem()
		if err := d.mapKey(key, mem.Key); err != nil {
			return err
		}
		elem := reflect.New(t.Elem()).Elem()
		d.push(mem.Key)
		err := d.value(elem, mem.Value)
		d.pop()
		if err != nil {
			return err
		}
		out.SetMapIndex(key, elem)
	}
	rv.Set(out)
	return nil
}

func (d *decodeState) mapKey(key reflect.Value, s string) error {
	switch key.Kind() {
	case reflect.String:
		key.SetString(s)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, key.Type().Bits())
		if err != nil {
			return d.errorf(ErrMismatchedInput, "map key %q: %v", s, err)
		}
		key.SetInt(i)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := strconv.ParseUint(s, 10, key.Type().Bits())
		if err != nil {
			return d.errorf(ErrMismatchedInput, "map key %q: %v", s, err)
		}
		key.SetUint(u)
		return nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return d.errorf(ErrMismatchedInput, "map key %q: %v", s, err)
		}
		key.SetBool(b)
		return nil
	}
	return d.errorf(ErrUnsupportedType, "map key type %s", key.Type())
}

// time accepts ISO-8601 strings and integer milliseconds, which is how UTC
// date markers decode.
func (d *decodeState) time(rv reflect.Value, val *vpack.Value) error {
	switch val.Kind() {
	case vpack.KindString:
		s, _ := val.AsString()
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return d.errorf(ErrMismatchedInput, "time %q: %v", s, err)
		}
		rv.Set(reflect.ValueOf(ts))
		return nil
	case vpack.KindInt:
		ms, err := val.AsInt()
		if err != nil {
			return d.mismatch(timeType, val)
		}
		rv.Set(reflect.ValueOf(time.UnixMilli(ms).UTC()))
		return nil
	}
	return d.mismatch(timeType, val)
}
