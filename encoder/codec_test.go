package encoder

import (
	"testing"

	"github.com/holmberd/go-vpack/mapper"
	"github.com/holmberd/go-vpack/registry"
	"github.com/holmberd/go-vpack/vpack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Shape interface{ Area() float64 }

type Circle struct {
	Radius float64 `vpack:"radius"`
}

func (c Circle) Area() float64 { return 3 * c.Radius * c.Radius }

type Rect struct {
	W     int    `vpack:"w"`
	H     int    `vpack:"h"`
	Label string `vpack:"label,omitempty"`
}

func (r *Rect) Area() float64 { return float64(r.W * r.H) }

type Drawing struct {
	Name   string           `vpack:"name"`
	Shapes map[string]Shape `vpack:"shapes"`
	Order  []string         `vpack:"order"`
	Layers uint8            `vpack:"layers"`
}

func newTestMapper(t *testing.T) *mapper.Mapper {
	t.Helper()
	reg, err := registry.New(registry.Config{
		Bases: []registry.BaseConfig{
			registry.Base[Shape](
				registry.Variant[Circle]("circle"),
				registry.Variant[Rect]("rect"),
			),
		},
	})
	require.NoError(t, err)
	return mapper.New(mapper.Config{Registry: reg})
}

func testDrawing() Drawing {
	return Drawing{
		Name: "sketch",
		Shapes: map[string]Shape{
			"sun":   Circle{Radius: 2.5},
			"house": &Rect{W: 4, H: 3, Label: "home"},
		},
		Order:  []string{"house", "sun"},
		Layers: 2,
	}
}

func TestCodecsRoundTrip(t *testing.T) {
	m := newTestMapper(t)
	codecs := []struct {
		name  string
		codec Codec
	}{
		{"VPack", NewVPack(m)},
		{"CBOR", NewCBOR(m)},
		{"Proto", NewProto(m)},
	}
	for _, tc := range codecs {
		t.Run(tc.name, func(t *testing.T) {
			in := testDrawing()
			data, err := tc.codec.Marshal(in)
			require.NoError(t, err)

			var out Drawing
			require.NoError(t, tc.codec.Unmarshal(data, &out))
			assert.Equal(t, in, out)
			assert.IsType(t, &Rect{}, out.Shapes["house"])
		})
	}
}

func TestCodecsValuePassthrough(t *testing.T) {
	val := vpack.Object(
		vpack.M("a", vpack.Int(-1)),
		vpack.M("b", vpack.Array(vpack.Bool(true), vpack.Null(), vpack.String("x"))),
	)
	for _, codec := range []Codec{NewVPack(nil), NewCBOR(nil), NewProto(nil)} {
		data, err := codec.Marshal(val)
		require.NoError(t, err)
		var out *vpack.Value
		require.NoError(t, codec.Unmarshal(data, &out))
		assert.True(t, vpack.Equal(val, out), "%T: got %s", codec, out)
	}
}

func TestCBOR(t *testing.T) {
	c := NewCBOR(nil)

	t.Run("Deterministic encoding", func(t *testing.T) {
		data, err := c.Marshal(map[string]int{"b": 2, "a": 1})
		require.NoError(t, err)
		assert.Equal(t, []byte{0xa2, 0x61, 'a', 0x01, 0x61, 'b', 0x02}, data)
	})

	t.Run("Binary and unsigned", func(t *testing.T) {
		val := vpack.Array(vpack.Binary([]byte{1, 2}), vpack.Uint(1<<64-1))
		data, err := c.Marshal(val)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x82, 0x42, 0x01, 0x02, 0x1b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, data)

		diag, err := DiagnoseCBOR(data)
		require.NoError(t, err)
		assert.Equal(t, "[h'0102', 18446744073709551615]", diag)

		var out *vpack.Value
		require.NoError(t, c.Unmarshal(data, &out))
		assert.True(t, vpack.Equal(val, out))
	})

	t.Run("Invalid input", func(t *testing.T) {
		var out Drawing
		err := c.Unmarshal([]byte{0xff, 0x00}, &out)
		assert.Error(t, err)
	})
}

func TestProto(t *testing.T) {
	c := NewProto(nil)

	t.Run("Integers restored", func(t *testing.T) {
		data, err := c.Marshal(map[string]any{"n": 42, "f": 1.5})
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, c.Unmarshal(data, &out))
		assert.Equal(t, map[string]any{"n": int64(42), "f": 1.5}, out)
	})

	t.Run("Binary is lossy", func(t *testing.T) {
		data, err := c.Marshal([]byte("hi"))
		require.NoError(t, err)
		var out string
		require.NoError(t, c.Unmarshal(data, &out))
		assert.Equal(t, "aGk=", out)
	})
}

func TestProtoMessage(t *testing.T) {
	var c ProtoMessage
	in, err := structpb.NewStruct(map[string]any{"k": "v"})
	require.NoError(t, err)

	data, err := c.Marshal(in)
	require.NoError(t, err)

	out := &structpb.Struct{}
	require.NoError(t, c.Unmarshal(data, out))
	assert.Equal(t, "v", out.Fields["k"].GetStringValue())

	_, err = c.Marshal(testDrawing())
	assert.ErrorIs(t, err, ErrNotProtoMessage)
	assert.ErrorIs(t, c.Unmarshal(data, &Drawing{}), ErrNotProtoMessage)

	t.Run("Marshaler hooks", func(t *testing.T) {
		data, err := c.Marshal(label{Text: "hello"})
		require.NoError(t, err)

		var pb wrapperspb.StringValue
		require.NoError(t, proto.Unmarshal(data, &pb))
		assert.Equal(t, "hello", pb.GetValue())

		var out label
		require.NoError(t, c.Unmarshal(data, &out))
		assert.Equal(t, label{Text: "hello"}, out)
	})
}

// label converts itself through a google.protobuf.StringValue.
type label struct {
	Text string
}

func (l label) MarshalProto() ([]byte, error) {
	return proto.Marshal(wrapperspb.String(l.Text))
}

func (l *label) UnmarshalProto(data []byte) error {
	var pb wrapperspb.StringValue
	if err := proto.Unmarshal(data, &pb); err != nil {
		return err
	}
	l.Text = pb.GetValue()
	return nil
}
