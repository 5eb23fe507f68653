package mapper

import (
	"bytes"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/holmberd/go-vpack/registry"
	"github.com/holmberd/go-vpack/vpack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type PolyType interface{ GetValue() string }

type FirstType struct {
	Key   string `vpack:"key"`
	Value string `vpack:"value"`
}

func (t FirstType) GetValue() string { return t.Value }

type SecondType struct {
	Key   string `vpack:"key"`
	Value string `vpack:"value"`
}

func (t *SecondType) GetValue() string { return t.Value }

type Milestone interface{ Due() time.Time }

type Release struct {
	Version string    `vpack:"version"`
	At      time.Time `vpack:"at"`
}

func (r Release) Due() time.Time { return r.At }

type Roadmap struct {
	Next Milestone `vpack:"next"`
}

type Container struct {
	Attributes map[string]PolyType `vpack:"attributes"`
	Text       []string            `vpack:"text"`
}

func newPolyRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(registry.Config{
		Bases: []registry.BaseConfig{
			registry.Base[PolyType](
				registry.Variant[FirstType]("FirstTypeKt"),
				registry.Variant[SecondType]("SecondTypeKt"),
			),
		},
	})
	require.NoError(t, err)
	return reg
}

func newTestContainer() Container {
	return Container{
		Attributes: map[string]PolyType{
			"FirstType":  FirstType{Key: "FirstType", Value: "FirstType"},
			"SecondType": &SecondType{Key: "SecondType", Value: "SecondType"},
		},
		Text: []string{"a", "b"},
	}
}

func TestPolymorphicContainer(t *testing.T) {
	m := New(Config{Registry: newPolyRegistry(t)})
	container := newTestContainer()

	data, err := m.Marshal(container)
	require.NoError(t, err)

	t.Run("Tags are sibling properties", func(t *testing.T) {
		s, err := vpack.NewSlice(data)
		require.NoError(t, err)
		for name, tag := range map[string]string{"FirstType": "FirstTypeKt", "SecondType": "SecondTypeKt"} {
			got, err := s.GetPath("attributes", name, "type")
			require.NoError(t, err)
			str, err := got.GetString()
			require.NoError(t, err)
			assert.Equal(t, tag, str)

			key, err := s.GetPath("attributes", name, "key")
			require.NoError(t, err)
			str, err = key.GetString()
			require.NoError(t, err)
			assert.Equal(t, name, str)
		}
	})

	t.Run("Round trip", func(t *testing.T) {
		var out Container
		require.NoError(t, m.Unmarshal(data, &out))
		assert.Equal(t, container, out)
		assert.IsType(t, FirstType{}, out.Attributes["FirstType"])
		assert.IsType(t, &SecondType{}, out.Attributes["SecondType"])
	})

	t.Run("Compact layout", func(t *testing.T) {
		cm := New(Config{Registry: m.Registry(), Options: Options{Compact: true}})
		compact, err := cm.Marshal(container)
		require.NoError(t, err)
		assert.Less(t, len(compact), len(data))
		var out Container
		require.NoError(t, m.Unmarshal(compact, &out))
		assert.Equal(t, container, out)
	})

	t.Run("Pointer to value variant decodes as value", func(t *testing.T) {
		in := Container{Attributes: map[string]PolyType{
			"first": &FirstType{Key: "k", Value: "v"},
		}}
		data, err := m.Marshal(in)
		require.NoError(t, err)
		var out Container
		require.NoError(t, m.Unmarshal(data, &out))
		assert.Equal(t, FirstType{Key: "k", Value: "v"}, out.Attributes["first"])
	})

	t.Run("Top-level polymorphic value", func(t *testing.T) {
		var in PolyType = &SecondType{Key: "k", Value: "v"}
		data, err := m.Marshal(&in)
		require.NoError(t, err)
		var out PolyType
		require.NoError(t, m.Unmarshal(data, &out))
		assert.Equal(t, in, out)
	})
}

func TestPolymorphicErrors(t *testing.T) {
	reg := newPolyRegistry(t)
	m := New(Config{Registry: reg})

	encode := func(t *testing.T, v *vpack.Value) []byte {
		t.Helper()
		data, err := vpack.Encode(v)
		require.NoError(t, err)
		return data
	}
	attrs := func(attr *vpack.Value) *vpack.Value {
		return vpack.Object(
			vpack.M("attributes", vpack.Object(vpack.M("x", attr))),
			vpack.M("text", vpack.Array()),
		)
	}

	t.Run("Unknown tag", func(t *testing.T) {
		data := encode(t, attrs(vpack.Object(
			vpack.M("type", vpack.String("ThirdTypeKt")),
			vpack.M("key", vpack.String("k")),
		)))
		out := Container{Text: []string{"untouched"}}
		err := m.Unmarshal(data, &out)
		assert.ErrorIs(t, err, registry.ErrUnknownTypeTag)
		assert.Equal(t, []string{"untouched"}, out.Text, "target is not partially written")
	})

	t.Run("Missing tag", func(t *testing.T) {
		data := encode(t, attrs(vpack.Object(vpack.M("key", vpack.String("k")))))
		var out Container
		assert.ErrorIs(t, m.Unmarshal(data, &out), ErrMissingTypeTag)
	})

	t.Run("Tag is not a string", func(t *testing.T) {
		data := encode(t, attrs(vpack.Object(vpack.M("type", vpack.Int(1)))))
		var out Container
		assert.ErrorIs(t, m.Unmarshal(data, &out), ErrMismatchedInput)
	})

	t.Run("Variant is not an object", func(t *testing.T) {
		data := encode(t, attrs(vpack.String("FirstTypeKt")))
		var out Container
		assert.ErrorIs(t, m.Unmarshal(data, &out), ErrMismatchedInput)
	})

	t.Run("Field kind mismatch", func(t *testing.T) {
		data := encode(t, attrs(vpack.Object(
			vpack.M("type", vpack.String("FirstTypeKt")),
			vpack.M("key", vpack.Int(5)),
		)))
		var out Container
		err := m.Unmarshal(data, &out)
		assert.ErrorIs(t, err, ErrMismatchedInput)
		assert.Contains(t, err.Error(), "$.attributes.x.key")
	})

	t.Run("Unregistered variant on encode", func(t *testing.T) {
		type Rogue struct{ FirstType }
		c := Container{Attributes: map[string]PolyType{"r": Rogue{}}}
		_, err := m.Marshal(c)
		assert.ErrorIs(t, err, registry.ErrUnregisteredVariant)
	})

	t.Run("Unregistered interface", func(t *testing.T) {
		type Holder struct {
			S interface{ String() string } `vpack:"s"`
		}
		data := encode(t, vpack.Object(vpack.M("s", vpack.String("x"))))
		var out Holder
		assert.ErrorIs(t, m.Unmarshal(data, &out), ErrUnsupportedType)
	})

	t.Run("Explicit schema is enforced", func(t *testing.T) {
		strict, err := registry.New(registry.Config{Bases: []registry.BaseConfig{
			registry.Base[PolyType](
				registry.Variant[FirstType]("FirstTypeKt").WithFields(
					registry.Field{Name: "key", Kind: vpack.KindString},
				),
			),
		}})
		require.NoError(t, err)
		sm := New(Config{Registry: strict, Options: Options{DisallowUnknownFields: true}})
		data := encode(t, attrs(vpack.Object(
			vpack.M("type", vpack.String("FirstTypeKt")),
			vpack.M("key", vpack.String("k")),
			vpack.M("value", vpack.String("v")),
		)))
		var out Container
		assert.ErrorIs(t, sm.Unmarshal(data, &out), ErrMismatchedInput, "value is not part of the schema")
	})
}

// TestEntity mirrors a plain two-field document.
type TestEntity struct {
	Value1 string `vpack:"value1"`
	Value2 int    `vpack:"value2"`
}

type BinaryEntity struct {
	ID      int    `vpack:"id"`
	Data    []byte `vpack:"data"`
	Trailer int    `vpack:"trailer"`
}

func TestSimpleEntities(t *testing.T) {
	m := New(Config{})

	t.Run("Navigable through a slice", func(t *testing.T) {
		data, err := m.Marshal(TestEntity{Value1: "hello world", Value2: 69})
		require.NoError(t, err)
		s, err := vpack.NewSlice(data)
		require.NoError(t, err)
		assert.True(t, s.IsObject())
		n, err := s.Length()
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		v1, err := s.Get("value1")
		require.NoError(t, err)
		assert.True(t, v1.IsString())
		v2, err := s.Get("value2")
		require.NoError(t, err)
		assert.True(t, v2.IsInt())
		i, err := v2.GetInt()
		require.NoError(t, err)
		assert.Equal(t, int64(69), i)

		var out TestEntity
		require.NoError(t, m.UnmarshalSlice(s, &out))
		assert.Equal(t, TestEntity{Value1: "hello world", Value2: 69}, out)
	})

	t.Run("Binary field", func(t *testing.T) {
		in := BinaryEntity{ID: 123, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, Trailer: 456}
		data, err := m.Marshal(in)
		require.NoError(t, err)
		s, err := vpack.NewSlice(data)
		require.NoError(t, err)
		field, err := s.Get("data")
		require.NoError(t, err)
		assert.True(t, field.IsBinary())
		raw, err := field.GetBinary()
		require.NoError(t, err)
		assert.Len(t, raw, 11)

		var out BinaryEntity
		require.NoError(t, m.Unmarshal(data, &out))
		assert.Equal(t, in, out)
	})
}

type Everything struct {
	Bool     bool              `vpack:"bool"`
	Int8     int8              `vpack:"int8"`
	Uint64   uint64            `vpack:"uint64"`
	Float32  float32           `vpack:"float32"`
	Ptr      *string           `vpack:"ptr"`
	NilPtr   *int              `vpack:"nilPtr"`
	Fixed    [2]int            `vpack:"fixed"`
	Hash     [4]byte           `vpack:"hash"`
	IntKeys  map[int]string    `vpack:"intKeys"`
	BoolKeys map[bool]int      `vpack:"boolKeys"`
	Nested   *TestEntity       `vpack:"nested"`
	When     time.Time         `vpack:"when"`
	Raw      *vpack.Value      `vpack:"raw"`
	Untyped  any               `vpack:"untyped"`
	Empty    string            `vpack:"empty,omitempty"`
	Strings  map[string]string `vpack:"strings"`
	Ignored  string            `vpack:"-"`
}

func TestRoundTripTypes(t *testing.T) {
	m := New(Config{})
	s := "pointer"
	in := Everything{
		Bool:     true,
		Int8:     -8,
		Uint64:   math.MaxUint64,
		Float32:  1.5,
		Ptr:      &s,
		Fixed:    [2]int{1, 2},
		Hash:     [4]byte{0xde, 0xad, 0xbe, 0xef},
		IntKeys:  map[int]string{1: "one", -2: "minus two"},
		BoolKeys: map[bool]int{true: 1},
		Nested:   &TestEntity{Value1: "n", Value2: 2},
		When:     time.Date(2024, 2, 29, 12, 0, 0, 5000, time.UTC),
		Raw:      vpack.Array(vpack.Int(1), vpack.String("x")),
		Untyped:  map[string]any{"a": int64(1), "b": []any{"c", true}},
	}

	data, err := m.Marshal(in)
	require.NoError(t, err)

	var out Everything
	require.NoError(t, m.Unmarshal(data, &out))
	assert.True(t, vpack.Equal(in.Raw, out.Raw))
	out.Raw, in.Raw = nil, nil
	assert.True(t, in.When.Equal(out.When))
	out.When, in.When = time.Time{}, time.Time{}
	assert.Equal(t, in, out)

	sl, err := vpack.NewSlice(data)
	require.NoError(t, err)
	_, err = sl.Get("empty")
	assert.ErrorIs(t, err, vpack.ErrKeyNotFound, "omitempty drops the zero string")
	when, err := sl.Get("when")
	require.NoError(t, err)
	str, err := when.GetString()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29T12:00:00.000005Z", str)
	key, err := sl.GetPath("intKeys", "-2")
	require.NoError(t, err)
	str, err = key.GetString()
	require.NoError(t, err)
	assert.Equal(t, "minus two", str)
}

func TestDecodeOptions(t *testing.T) {
	t.Run("Unknown fields are ignored by default", func(t *testing.T) {
		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
		m := New(Config{Options: Options{Logger: logger}})
		data, err := vpack.Encode(vpack.Object(
			vpack.M("value1", vpack.String("a")),
			vpack.M("extra", vpack.Int(1)),
		))
		require.NoError(t, err)
		var out TestEntity
		require.NoError(t, m.Unmarshal(data, &out))
		assert.Equal(t, "a", out.Value1)
		assert.Contains(t, logs.String(), "ignoring unknown field")
	})

	t.Run("Unknown fields are rejected on request", func(t *testing.T) {
		m := New(Config{Options: Options{DisallowUnknownFields: true}})
		data, err := vpack.Encode(vpack.Object(vpack.M("extra", vpack.Int(1))))
		require.NoError(t, err)
		var out TestEntity
		assert.ErrorIs(t, m.Unmarshal(data, &out), ErrMismatchedInput)
	})

	t.Run("OmitNull", func(t *testing.T) {
		type WithPtr struct {
			A *int   `vpack:"a"`
			B string `vpack:"b"`
		}
		keep, err := New(Config{}).ToValue(WithPtr{B: "x"})
		require.NoError(t, err)
		assert.Equal(t, 2, keep.Len())

		omit, err := New(Config{Options: Options{OmitNull: true}}).ToValue(WithPtr{B: "x"})
		require.NoError(t, err)
		assert.Equal(t, 1, omit.Len())
	})

	t.Run("UTC date decodes into time", func(t *testing.T) {
		type Stamped struct {
			At time.Time `vpack:"at"`
		}
		ts := time.Date(2021, 1, 2, 3, 4, 5, 6000000, time.UTC)
		b := vpack.NewBuilder(vpack.Options{})
		b.OpenObject()
		b.AddKey("at")
		b.AddUTCDate(ts)
		b.Close()
		data, err := b.Bytes()
		require.NoError(t, err)
		var out Stamped
		require.NoError(t, New(Config{}).Unmarshal(data, &out))
		assert.True(t, ts.Equal(out.At))

		var top time.Time
		require.NoError(t, New(Config{}).FromValue(vpack.Int(ts.UnixMilli()), &top))
		assert.True(t, ts.Equal(top))
	})

	t.Run("Integer milliseconds into time fields", func(t *testing.T) {
		type Stamps struct {
			At      time.Time  `vpack:"at"`
			Expires *time.Time `vpack:"expires"`
		}
		ts := time.Date(2021, 1, 2, 3, 4, 5, 6000000, time.UTC)
		val := vpack.Object(
			vpack.M("at", vpack.Int(ts.UnixMilli())),
			vpack.M("expires", vpack.Int(ts.Add(time.Hour).UnixMilli())),
		)
		var out Stamps
		require.NoError(t, New(Config{}).FromValue(val, &out))
		assert.True(t, ts.Equal(out.At))
		require.NotNil(t, out.Expires)
		assert.True(t, ts.Add(time.Hour).Equal(*out.Expires))

		val = vpack.Object(vpack.M("at", vpack.Bool(true)))
		assert.ErrorIs(t, New(Config{}).FromValue(val, &out), ErrMismatchedInput)
	})

	t.Run("UTC date inside a variant", func(t *testing.T) {
		reg, err := registry.New(registry.Config{
			Bases: []registry.BaseConfig{
				registry.Base[Milestone](registry.Variant[Release]("release")),
			},
		})
		require.NoError(t, err)
		m := New(Config{Registry: reg})

		ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
		val := vpack.Object(vpack.M("next", vpack.Object(
			vpack.M("type", vpack.String("release")),
			vpack.M("version", vpack.String("1.2.0")),
			vpack.M("at", vpack.Int(ts.UnixMilli())),
		)))
		var out Roadmap
		require.NoError(t, m.FromValue(val, &out))
		require.IsType(t, Release{}, out.Next)
		assert.Equal(t, "1.2.0", out.Next.(Release).Version)
		assert.True(t, ts.Equal(out.Next.Due()))
	})

	t.Run("Integer overflow", func(t *testing.T) {
		type Small struct {
			N int8 `vpack:"n"`
		}
		data, err := vpack.Encode(vpack.Object(vpack.M("n", vpack.Int(300))))
		require.NoError(t, err)
		var out Small
		assert.ErrorIs(t, New(Config{}).Unmarshal(data, &out), ErrMismatchedInput)
	})

	t.Run("Null into scalar", func(t *testing.T) {
		data, err := vpack.Encode(vpack.Object(vpack.M("value2", vpack.Null())))
		require.NoError(t, err)
		var out TestEntity
		assert.ErrorIs(t, New(Config{}).Unmarshal(data, &out), ErrMismatchedInput)
	})

	t.Run("Target must be a pointer", func(t *testing.T) {
		data, err := vpack.Encode(vpack.Object())
		require.NoError(t, err)
		var out TestEntity
		assert.ErrorIs(t, New(Config{}).Unmarshal(data, out), ErrUnsupportedType)
	})

	t.Run("Malformed document", func(t *testing.T) {
		var out TestEntity
		assert.ErrorIs(t, New(Config{}).Unmarshal([]byte{0x17}, &out), vpack.ErrMalformedInput)
	})
}

func TestEncodeErrors(t *testing.T) {
	m := New(Config{})

	t.Run("Unsupported kinds", func(t *testing.T) {
		_, err := m.Marshal(make(chan int))
		assert.ErrorIs(t, err, ErrUnsupportedType)
		_, err = m.Marshal(map[float64]string{1.5: "x"})
		assert.ErrorIs(t, err, ErrUnsupportedType)
		_, err = m.Marshal(struct{ F func() }{})
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("Cyclic pointers", func(t *testing.T) {
		type Node struct {
			Next *Node `vpack:"next"`
		}
		n := &Node{}
		n.Next = n
		_, err := m.Marshal(n)
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("Invalid UTF-8 string", func(t *testing.T) {
		_, err := m.Marshal("\xff")
		assert.ErrorIs(t, err, vpack.ErrUnsupportedValue)
	})
}

func BenchmarkMarshalContainer(b *testing.B) {
	reg, err := registry.New(registry.Config{Bases: []registry.BaseConfig{
		registry.Base[PolyType](
			registry.Variant[FirstType]("FirstTypeKt"),
			registry.Variant[SecondType]("SecondTypeKt"),
		),
	}})
	if err != nil {
		b.Fatal(err)
	}
	m := New(Config{Registry: reg})
	c := newTestContainer()
	b.ReportAllocs()
	for b.Loop() {
		if _, err := m.Marshal(c); err != nil {
			b.Fatal(err)
		}
	}
}
