// Package registry holds the closed set of polymorphic base types and their
// tagged variants.
//
// A base is a Go interface. Each variant is a struct type registered under a
// type tag string; the tag is written next to the variant's own fields when an
// instance is encoded and is used to pick the variant again when decoding.
//
//	reg, err := registry.New(registry.Config{
//		Bases: []registry.BaseConfig{
//			registry.Base[Shape](
//				registry.Variant[Circle]("circle"),
//				registry.Variant[Square]("square"),
//			),
//		},
//	})
//
// The registry cannot be modified after New and is safe for concurrent use.
package registry

import (
	"fmt"
	"reflect"
	"slices"
)

// DefaultTagProperty is the object property holding the type tag.
const DefaultTagProperty = "type"

// Config is the static registry configuration.
type Config struct {
	// TagProperty names the type tag property. Defaults to DefaultTagProperty.
	TagProperty string
	Bases       []BaseConfig
}

// BaseConfig registers the variants of one polymorphic base interface.
type BaseConfig struct {
	Type reflect.Type

	// TagProperty overrides Config.TagProperty for this base.
	TagProperty string
	Variants    []VariantConfig
}

// VariantConfig registers one variant struct type under a tag.
type VariantConfig struct {
	Tag  string
	Type reflect.Type

	// Fields is an explicit schema. When empty the schema is derived from the
	// struct's exported fields.
	Fields []Field
}

// Base returns the configuration for base interface B.
func Base[B any](variants ...VariantConfig) BaseConfig {
	return BaseConfig{Type: reflect.TypeFor[B](), Variants: variants}
}

// WithTagProperty returns a copy of c using property for its type tags.
func (c BaseConfig) WithTagProperty(property string) BaseConfig {
	c.TagProperty = property
	return c
}

// Variant returns the configuration for struct type V registered under tag.
//
// Decoding yields *V when only the pointer implements the base and V
// otherwise. A value-receiver variant held as *V encodes normally but decodes
// as V, since the document does not record the indirection.
func Variant[V any](tag string) VariantConfig {
	return VariantConfig{Tag: tag, Type: reflect.TypeFor[V]()}
}

// WithFields returns a copy of c with an explicit field schema. Field indexes
// are resolved against the struct by name.
func (c VariantConfig) WithFields(fields ...Field) VariantConfig {
	c.Fields = fields
	return c
}

// Descriptor is a registered variant.
type Descriptor struct {
	Tag  string
	Type reflect.Type

	// Pointer is set when only *Type implements the base, so instances are
	// held in the interface as pointers.
	Pointer bool
	Schema  *Schema
}

// BaseDescriptor is a registered polymorphic base.
type BaseDescriptor struct {
	Type        reflect.Type
	TagProperty string

	variants []*Descriptor
	byTag    map[string]*Descriptor
	byType   map[reflect.Type]*Descriptor
}

// Resolve returns the variant registered under tag.
func (b *BaseDescriptor) Resolve(tag string) (*Descriptor, error) {
	d, ok := b.byTag[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q for %s", ErrUnknownTypeTag, tag, b.Type)
	}
	return d, nil
}

// DescriptorFor returns the variant for the dynamic type t of a value held by
// the base. Both T and *T resolve to the same variant.
func (b *BaseDescriptor) DescriptorFor(t reflect.Type) (*Descriptor, error) {
	if d, ok := b.byType[t]; ok {
		return d, nil
	}
	if t.Kind() == reflect.Pointer {
		if d, ok := b.byType[t.Elem()]; ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s for %s", ErrUnregisteredVariant, t, b.Type)
}

// Variants returns the registered variants in configuration order.
func (b *BaseDescriptor) Variants() []*Descriptor {
	return slices.Clone(b.variants)
}

// Registry is the immutable set of polymorphic bases.
type Registry struct {
	tagProperty string
	bases       map[reflect.Type]*BaseDescriptor
}

// New validates cfg and builds the registry.
func New(cfg Config) (*Registry, error) {
	tagProperty := cfg.TagProperty
	if tagProperty == "" {
		tagProperty = DefaultTagProperty
	}
	r := &Registry{
		tagProperty: tagProperty,
		bases:       make(map[reflect.Type]*BaseDescriptor, len(cfg.Bases)),
	}
	for _, bc := range cfg.Bases {
		if bc.Type == nil || bc.Type.Kind() != reflect.Interface {
			return nil, fmt.Errorf("%w: base %v is not an interface type", ErrInvalidConfig, bc.Type)
		}
		if _, dup := r.bases[bc.Type]; dup {
			return nil, fmt.Errorf("%w: base %s registered twice", ErrInvalidConfig, bc.Type)
		}
		base, err := newBase(bc, tagProperty)
		if err != nil {
			return nil, err
		}
		r.bases[bc.Type] = base
	}
	return r, nil
}

func newBase(bc BaseConfig, tagProperty string) (*BaseDescriptor, error) {
	if bc.TagProperty != "" {
		tagProperty = bc.TagProperty
	}
	base := &BaseDescriptor{
		Type:        bc.Type,
		TagProperty: tagProperty,
		byTag:       make(map[string]*Descriptor, len(bc.Variants)),
		byType:      make(map[reflect.Type]*Descriptor, len(bc.Variants)),
	}
	for _, vc := range bc.Variants {
		d, err := newDescriptor(bc.Type, vc)
		if err != nil {
			return nil, err
		}
		if _, dup := base.byTag[d.Tag]; dup {
			return nil, fmt.Errorf("%w: tag %q registered twice for %s", ErrTagCollision, d.Tag, bc.Type)
		}
		if prev, dup := base.byType[d.Type]; dup {
			return nil, fmt.Errorf("%w: %s registered as both %q and %q for %s",
				ErrTagCollision, d.Type, prev.Tag, d.Tag, bc.Type)
		}
		if _, clash := d.Schema.Field(tagProperty); clash {
			return nil, fmt.Errorf("%w: field %q of %s shadows the tag property",
				ErrTagCollision, tagProperty, d.Type)
		}
		base.variants = append(base.variants, d)
		base.byTag[d.Tag] = d
		base.byType[d.Type] = d
	}
	return base, nil
}

func newDescriptor(base reflect.Type, vc VariantConfig) (*Descriptor, error) {
	if vc.Tag == "" {
		return nil, fmt.Errorf("%w: empty tag for %v", ErrInvalidConfig, vc.Type)
	}
	if vc.Type == nil || vc.Type.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: variant %q type %v is not a struct", ErrInvalidConfig, vc.Tag, vc.Type)
	}
	d := &Descriptor{Tag: vc.Tag, Type: vc.Type}
	switch {
	case vc.Type.Implements(base):
	case reflect.PointerTo(vc.Type).Implements(base):
		d.Pointer = true
	default:
		return nil, fmt.Errorf("%w: variant %q type %s does not implement %s",
			ErrInvalidConfig, vc.Tag, vc.Type, base)
	}
	derived, err := SchemaOf(vc.Type)
	if err != nil {
		return nil, err
	}
	if len(vc.Fields) == 0 {
		d.Schema = derived
		return d, nil
	}
	fields := make([]Field, len(vc.Fields))
	for i, f := range vc.Fields {
		df, ok := derived.Field(f.Name)
		if !ok {
			return nil, fmt.Errorf("%w: variant %q has no field %q", ErrInvalidConfig, vc.Tag, f.Name)
		}
		f.Index, f.Time = df.Index, df.Time
		fields[i] = f
	}
	if d.Schema, err = newSchema(fields); err != nil {
		return nil, err
	}
	return d, nil
}

// TagProperty returns the default tag property name.
func (r *Registry) TagProperty() string {
	return r.tagProperty
}

// Lookup reports whether t is a registered polymorphic base.
func (r *Registry) Lookup(t reflect.Type) (*BaseDescriptor, bool) {
	if r == nil {
		return nil, false
	}
	b, ok := r.bases[t]
	return b, ok
}

// Resolve returns the variant of base registered under tag.
func (r *Registry) Resolve(base reflect.Type, tag string) (*Descriptor, error) {
	b, ok := r.Lookup(base)
	if !ok {
		return nil, fmt.Errorf("%w: %q for unregistered base %s", ErrUnknownTypeTag, tag, base)
	}
	return b.Resolve(tag)
}

// TagFor returns the tag of the variant v, a value held by base.
func (r *Registry) TagFor(base reflect.Type, v any) (string, error) {
	b, ok := r.Lookup(base)
	if !ok {
		return "", fmt.Errorf("%w: %T for unregistered base %s", ErrUnregisteredVariant, v, base)
	}
	if v == nil {
		return "", fmt.Errorf("%w: nil for %s", ErrUnregisteredVariant, base)
	}
	d, err := b.DescriptorFor(reflect.TypeOf(v))
	if err != nil {
		return "", err
	}
	return d.Tag, nil
}
