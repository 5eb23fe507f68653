// Package encoder provides codecs that turn Go values into bytes and back.
//
// Every codec except ProtoMessage routes through the mapper's Value tree, so
// registered polymorphic types keep their type tags in any format.
package encoder

import (
	"fmt"

	"github.com/holmberd/go-vpack/mapper"
	"github.com/holmberd/go-vpack/vpack"
)

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, out any) error
}

// Error is a constant encoder error.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrNotProtoMessage is returned by ProtoMessage for values that are
	// neither protobuf messages nor implement the ProtoMarshaler and
	// ProtoUnmarshaler hooks.
	ErrNotProtoMessage = Error("encoder: value is not a proto.Message")
)

// VPack encodes values as VelocyPack documents. Implements Codec.
type VPack struct {
	m *mapper.Mapper
}

// NewVPack returns a VelocyPack codec using m. A nil m uses a mapper without
// a registry.
func NewVPack(m *mapper.Mapper) VPack {
	return VPack{m: orDefault(m)}
}

func (c VPack) Marshal(v any) ([]byte, error) {
	return c.m.Marshal(v)
}

func (c VPack) Unmarshal(data []byte, out any) error {
	return c.m.Unmarshal(data, out)
}

func orDefault(m *mapper.Mapper) *mapper.Mapper {
	if m == nil {
		return mapper.New(mapper.Config{})
	}
	return m
}

// plain converts v to plain Go data through the mapper.
func plain(m *mapper.Mapper, v any) (any, error) {
	val, err := m.ToValue(v)
	if err != nil {
		return nil, err
	}
	return val.Interface(), nil
}

// fromPlain assigns plain Go data to out through the mapper.
func fromPlain(m *mapper.Mapper, x any, out any, fix func(*vpack.Value) *vpack.Value) error {
	val, err := vpack.FromInterface(x)
	if err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	if fix != nil {
		val = fix(val)
	}
	return m.FromValue(val, out)
}
