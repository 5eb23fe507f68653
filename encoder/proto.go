package encoder

import (
	"fmt"

	"github.com/holmberd/go-vpack/mapper"
	"github.com/holmberd/go-vpack/vpack"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Proto encodes values as a google.protobuf.Value message.
//
// The mapping is lossy: all numbers become doubles and binary values become
// base64 strings. Whole-number doubles are read back as integers.
// Implements Codec.
type Proto struct {
	m *mapper.Mapper
}

// NewProto returns a structpb codec using m.
func NewProto(m *mapper.Mapper) Proto {
	return Proto{m: orDefault(m)}
}

func (c Proto) Marshal(v any) ([]byte, error) {
	x, err := plain(c.m, v)
	if err != nil {
		return nil, err
	}
	pv, err := structpb.NewValue(x)
	if err != nil {
		return nil, fmt.Errorf("encoder: proto: %w", err)
	}
	return proto.Marshal(pv)
}

func (c Proto) Unmarshal(data []byte, out any) error {
	var pv structpb.Value
	if err := proto.Unmarshal(data, &pv); err != nil {
		return fmt.Errorf("encoder: proto: %w", err)
	}
	return fromPlain(c.m, pv.AsInterface(), out, vpack.IntegralDouble)
}

// ProtoMarshaler is implemented by types that convert themselves to protobuf
// wire format, typically by way of a generated message.
type ProtoMarshaler interface {
	MarshalProto() ([]byte, error)
}

// ProtoUnmarshaler is implemented by types that read themselves from protobuf
// wire format.
type ProtoUnmarshaler interface {
	UnmarshalProto([]byte) error
}

// ProtoMessage encodes protobuf messages in their native wire format. Values
// that are not a proto.Message may implement ProtoMarshaler and
// ProtoUnmarshaler instead.
// Implements Codec.
type ProtoMessage struct{}

func (ProtoMessage) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case proto.Message:
		return proto.Marshal(m)
	case ProtoMarshaler:
		return m.MarshalProto()
	}
	return nil, fmt.Errorf("%w: %T", ErrNotProtoMessage, v)
}

func (ProtoMessage) Unmarshal(data []byte, out any) error {
	switch u := out.(type) {
	case proto.Message:
		return proto.Unmarshal(data, u)
	case ProtoUnmarshaler:
		return u.UnmarshalProto(data)
	}
	return fmt.Errorf("%w: %T", ErrNotProtoMessage, out)
}
