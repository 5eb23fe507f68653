package vpack

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSlice(t *testing.T, v *Value, opts Options) Slice {
	t.Helper()
	data, err := EncodeOptions(v, opts)
	require.NoError(t, err)
	s, err := NewSlice(data)
	require.NoError(t, err)
	return s
}

func TestSliceNavigation(t *testing.T) {
	doc := Object(
		M("value1", String("test")),
		M("value2", Object(M("value1", Int(-5)), M("bytes", Binary([]byte{1, 2, 3})))),
		M("list", Array(Int(1), String("two"), Double(3.5))),
	)
	layouts := map[string]Options{
		"sorted":   {},
		"unsorted": {Unsorted: true},
		"compact":  {Compact: true},
	}
	for name, opts := range layouts {
		t.Run(name, func(t *testing.T) {
			s := mustSlice(t, doc, opts)
			assert.True(t, s.IsObject())

			n, err := s.Length()
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			v1, err := s.Get("value1")
			require.NoError(t, err)
			str, err := v1.GetString()
			require.NoError(t, err)
			assert.Equal(t, "test", str)

			nested, err := s.GetPath("value2", "value1")
			require.NoError(t, err)
			i, err := nested.GetInt()
			require.NoError(t, err)
			assert.Equal(t, int64(-5), i)

			bin, err := s.GetPath("value2", "bytes")
			require.NoError(t, err)
			raw, err := bin.GetBinary()
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3}, raw)

			list, err := s.Get("list")
			require.NoError(t, err)
			e, err := list.At(2)
			require.NoError(t, err)
			d, err := e.GetDouble()
			require.NoError(t, err)
			assert.Equal(t, 3.5, d)

			_, err = list.At(3)
			assert.ErrorIs(t, err, ErrIndexOutOfRange)
			_, err = s.Get("missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)
			_, err = s.GetPath("value2", "missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func TestSliceBinarySearch(t *testing.T) {
	obj := Object()
	for i := 9; i >= 0; i-- {
		obj.Set(fmt.Sprintf("k%d", i), Int(int64(i)))
	}
	s := mustSlice(t, obj, Options{})
	assert.Equal(t, byte(0x0b), s.Head())

	for i := range 10 {
		v, err := s.Get(fmt.Sprintf("k%d", i))
		require.NoError(t, err)
		got, err := v.GetInt()
		require.NoError(t, err)
		assert.Equal(t, int64(i), got)
	}
	for _, missing := range []string{"", "a", "k", "k10", "z"} {
		_, err := s.Get(missing)
		assert.ErrorIs(t, err, ErrKeyNotFound, "key %q", missing)
	}

	key, err := s.KeyAt(0)
	require.NoError(t, err)
	assert.Equal(t, "k0", key, "index table is sorted by key")
	val, err := s.ValueAt(9)
	require.NoError(t, err)
	got, err := val.GetInt()
	require.NoError(t, err)
	assert.Equal(t, int64(9), got)
}

func TestSliceForeignLayouts(t *testing.T) {
	t.Run("Padded header", func(t *testing.T) {
		data := []byte{
			0x06, 0x0f, 0x02, 0, 0, 0, 0, 0, 0,
			0x31, 0x42, 'a', 'b',
			0x09, 0x0a,
		}
		v, err := Decode(data)
		require.NoError(t, err)
		assert.True(t, Equal(Array(Int(1), String("ab")), v))

		s, err := NewSlice(data)
		require.NoError(t, err)
		e, err := s.At(1)
		require.NoError(t, err)
		str, err := e.GetString()
		require.NoError(t, err)
		assert.Equal(t, "ab", str)
	})

	t.Run("Translated integer key", func(t *testing.T) {
		data := []byte{0x14, 0x06, 0x31, 0x41, 'x', 0x01}
		s, err := NewSlice(data)
		require.NoError(t, err)
		v, err := s.Get("_key")
		require.NoError(t, err)
		str, err := v.GetString()
		require.NoError(t, err)
		assert.Equal(t, "x", str)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.True(t, Equal(Object(M("_key", String("x"))), decoded))
	})

	t.Run("Unsigned beyond int64", func(t *testing.T) {
		data := []byte{0x2f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
		s, err := NewSlice(data)
		require.NoError(t, err)
		_, err = s.GetInt()
		assert.Error(t, err)
		u, err := s.GetUint()
		require.NoError(t, err)
		assert.Equal(t, ^uint64(0), u)
	})
}

func TestSliceMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Empty buffer", nil},
		{"None marker", []byte{0x00}},
		{"Illegal marker", []byte{0x17}},
		{"Min key", []byte{0x1e}},
		{"Truncated string", []byte{0x43, 'a'}},
		{"Truncated int", []byte{0x23, 0x01}},
		{"Truncated double", []byte{0x1b, 0, 0}},
		{"Array length past end", []byte{0x02, 0x05, 0x31}},
		{"Unequal array members", []byte{0x02, 0x05, 0x31, 0x41, 'a'}},
		{"Trailing bytes", []byte{0x30, 0x30}},
		{"Invalid UTF-8", []byte{0x41, 0xff}},
		{"Binary length past end", []byte{0xc0, 0x09, 0x01}},
		{"Long string length overflow", []byte{0xbf, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{"Duplicate keys", []byte{0x14, 0x09, 0x41, 'a', 0x31, 0x41, 'a', 0x32, 0x02}},
		{"Index count exceeds length", []byte{0x06, 0x04, 0xff, 0x31}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}

	t.Run("Index entry outside members", func(t *testing.T) {
		s, err := NewSlice([]byte{0x06, 0x05, 0x01, 0x31, 0x09})
		require.NoError(t, err)
		_, err = s.At(0)
		assert.ErrorIs(t, err, ErrMalformedInput)
	})

	t.Run("Type mismatch is not malformed", func(t *testing.T) {
		s, err := NewSlice([]byte{0x31})
		require.NoError(t, err)
		_, err = s.Get("a")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrMalformedInput)
		_, err = s.GetString()
		assert.EqualError(t, err, "vpack: expected string, got int")
	})
}

func TestIterators(t *testing.T) {
	doc := Object(M("z", Int(1)), M("a", Int(2)), M("m", Array(Null(), Bool(true))))
	s := mustSlice(t, doc, Options{})

	it, err := s.ObjectIterator()
	require.NoError(t, err)
	var keys []string
	for it.Next() {
		keys = append(keys, it.Key())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"z", "a", "m"}, keys, "iteration follows insertion order")

	m, err := s.Get("m")
	require.NoError(t, err)
	ait, err := m.ArrayIterator()
	require.NoError(t, err)
	var kinds []Kind
	for ait.Next() {
		k, err := ait.Value().Kind()
		require.NoError(t, err)
		kinds = append(kinds, k)
	}
	require.NoError(t, ait.Err())
	assert.Equal(t, []Kind{KindNull, KindBool}, kinds)

	_, err = m.ObjectIterator()
	assert.Error(t, err)
}
