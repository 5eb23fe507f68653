// Package mapper converts Go values to and from VelocyPack documents.
//
// Struct fields are named by their `vpack` struct tags. Interface-typed values
// whose static type is a registered polymorphic base are written as objects
// carrying a type tag property next to the variant's own fields, and are
// resolved through the registry when read back:
//
//	m := mapper.New(mapper.Config{Registry: reg})
//	data, err := m.Marshal(container)
//	var out Container
//	err = m.Unmarshal(data, &out)
//
// A top-level polymorphic value must be passed by pointer so that its static
// interface type is visible, e.g. m.Marshal(&shape).
package mapper

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/holmberd/go-vpack/registry"
	"github.com/holmberd/go-vpack/vpack"
)

// Error is a constant mapper error. Callers match it with errors.Is.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrMissingTypeTag is returned when a polymorphic object has no type tag property.
	ErrMissingTypeTag = Error("mapper: missing type tag")

	// ErrMismatchedInput is returned when a decoded value does not fit its target.
	ErrMismatchedInput = Error("mapper: mismatched input")

	// ErrUnsupportedType is returned for Go types that have no document form.
	ErrUnsupportedType = Error("mapper: unsupported type")
)

// maxDepth bounds recursion so that cyclic pointers fail instead of overflowing the stack.
const maxDepth = 1000

// Options tune encoding and decoding.
type Options struct {
	// Compact writes documents without index tables.
	Compact bool

	// OmitNull drops object members whose value is null.
	OmitNull bool

	// DisallowUnknownFields fails decoding when an object has a property with
	// no matching struct field. Unknown properties are ignored otherwise.
	DisallowUnknownFields bool

	// Logger receives debug records about tag resolution and skipped fields.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Config configures a Mapper.
type Config struct {
	// Registry holds the polymorphic bases. May be nil when no polymorphic
	// types are mapped.
	Registry *registry.Registry
	Options
}

// Mapper converts Go values to and from documents. It is safe for concurrent use.
type Mapper struct {
	reg    *registry.Registry
	opts   Options
	logger *slog.Logger

	// schemas caches registry.SchemaOf per struct type.
	schemas sync.Map
}

// New returns a Mapper for cfg.
func New(cfg Config) *Mapper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{
		reg:    cfg.Registry,
		opts:   cfg.Options,
		logger: logger,
	}
}

// Registry returns the mapper's registry, which may be nil.
func (m *Mapper) Registry() *registry.Registry {
	return m.reg
}

// Marshal returns the document encoding of v.
func (m *Mapper) Marshal(v any) ([]byte, error) {
	val, err := m.ToValue(v)
	if err != nil {
		return nil, err
	}
	return vpack.EncodeOptions(val, vpack.Options{Compact: m.opts.Compact})
}

// Unmarshal decodes data into the value out points to. On error *out is left
// unchanged.
func (m *Mapper) Unmarshal(data []byte, out any) error {
	val, err := vpack.Decode(data)
	if err != nil {
		return err
	}
	return m.FromValue(val, out)
}

// UnmarshalSlice decodes the value viewed by s into out.
func (m *Mapper) UnmarshalSlice(s vpack.Slice, out any) error {
	val, err := s.Value()
	if err != nil {
		return err
	}
	return m.FromValue(val, out)
}

// ToValue converts v into a Value tree.
func (m *Mapper) ToValue(v any) (*vpack.Value, error) {
	e := &encodeState{m: m}
	return e.value(reflect.ValueOf(v))
}

// FromValue assigns val to the value out points to. On error *out is left
// unchanged.
func (m *Mapper) FromValue(val *vpack.Value, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode target must be a non-nil pointer, got %T", ErrUnsupportedType, out)
	}
	fresh := reflect.New(rv.Elem().Type()).Elem()
	d := &decodeState{m: m}
	if err := d.value(fresh, val); err != nil {
		return err
	}
	rv.Elem().Set(fresh)
	return nil
}

func (m *Mapper) schemaOf(t reflect.Type) (*registry.Schema, error) {
	if s, ok := m.schemas.Load(t); ok {
		return s.(*registry.Schema), nil
	}
	s, err := registry.SchemaOf(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedType, err)
	}
	actual, _ := m.schemas.LoadOrStore(t, s)
	return actual.(*registry.Schema), nil
}

// path tracks the property path for error messages.
type path []string

func (p path) String() string {
	if len(p) == 0 {
		return "$"
	}
	out := "$"
	for _, seg := range p {
		out += "." + seg
	}
	return out
}
