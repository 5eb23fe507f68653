package vpack

import (
	"fmt"
)

// Kind identifies one of the eight encodable value kinds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt // Signed or unsigned 64-bit integer.
	KindDouble
	KindString
	KindBinary
	KindArray
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Value is an in-memory document value. A nil *Value is Null.
type Value struct {
	kind Kind

	boolVal   bool
	intVal    int64
	uintVal   uint64
	unsigned  bool
	doubleVal float64
	strVal    string
	binVal    []byte

	arrVal []*Value
	objVal []Member
}

// Member is a key/value pair of an object.
type Member struct {
	Key   string
	Value *Value
}

// Null creates a null value.
func Null() *Value {
	return &Value{kind: KindNull}
}

// Bool creates a boolean value.
func Bool(v bool) *Value {
	return &Value{kind: KindBool, boolVal: v}
}

// Int creates a signed integer value.
func Int(v int64) *Value {
	return &Value{kind: KindInt, intVal: v}
}

// Uint creates an unsigned integer value.
func Uint(v uint64) *Value {
	return &Value{kind: KindInt, uintVal: v, unsigned: true}
}

// Double creates a floating point value.
func Double(v float64) *Value {
	return &Value{kind: KindDouble, doubleVal: v}
}

// String creates a string value.
func String(v string) *Value {
	return &Value{kind: KindString, strVal: v}
}

// Binary creates a binary value. The slice is not copied.
func Binary(v []byte) *Value {
	return &Value{kind: KindBinary, binVal: v}
}

// Array creates an array value.
func Array(values ...*Value) *Value {
	return &Value{kind: KindArray, arrVal: values}
}

// Object creates an object value from members.
// Keys are expected to be unique; the encoder rejects duplicates.
func Object(members ...Member) *Value {
	return &Value{kind: KindObject, objVal: members}
}

// M is shorthand for a Member.
func M(key string, v *Value) Member {
	return Member{Key: key, Value: v}
}

// Kind returns the value kind.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether v is null.
func (v *Value) IsNull() bool {
	return v == nil || v.kind == KindNull
}

// IsUnsigned reports whether an integer value was created unsigned.
func (v *Value) IsUnsigned() bool {
	return v != nil && v.kind == KindInt && v.unsigned
}

func (v *Value) expect(k Kind) error {
	if v.Kind() != k {
		return fmt.Errorf("vpack: expected %s, got %s", k, v.Kind())
	}
	return nil
}

// AsBool returns the boolean value.
func (v *Value) AsBool() (bool, error) {
	if err := v.expect(KindBool); err != nil {
		return false, err
	}
	return v.boolVal, nil
}

// AsInt returns the integer value as int64. Unsigned values above
// math.MaxInt64 are reported as an error.
func (v *Value) AsInt() (int64, error) {
	if err := v.expect(KindInt); err != nil {
		return 0, err
	}
	if v.unsigned {
		if v.uintVal > 1<<63-1 {
			return 0, fmt.Errorf("vpack: %d overflows int64", v.uintVal)
		}
		return int64(v.uintVal), nil
	}
	return v.intVal, nil
}

// AsUint returns the integer value as uint64. Negative values are an error.
func (v *Value) AsUint() (uint64, error) {
	if err := v.expect(KindInt); err != nil {
		return 0, err
	}
	if v.unsigned {
		return v.uintVal, nil
	}
	if v.intVal < 0 {
		return 0, fmt.Errorf("vpack: %d is negative", v.intVal)
	}
	return uint64(v.intVal), nil
}

// AsDouble returns the floating point value. Integers are converted.
func (v *Value) AsDouble() (float64, error) {
	switch v.Kind() {
	case KindDouble:
		return v.doubleVal, nil
	case KindInt:
		if v.unsigned {
			return float64(v.uintVal), nil
		}
		return float64(v.intVal), nil
	}
	return 0, v.expect(KindDouble)
}

// AsString returns the string value.
func (v *Value) AsString() (string, error) {
	if err := v.expect(KindString); err != nil {
		return "", err
	}
	return v.strVal, nil
}

// AsBinary returns the binary value.
func (v *Value) AsBinary() ([]byte, error) {
	if err := v.expect(KindBinary); err != nil {
		return nil, err
	}
	return v.binVal, nil
}

// AsArray returns the array elements.
func (v *Value) AsArray() ([]*Value, error) {
	if err := v.expect(KindArray); err != nil {
		return nil, err
	}
	return v.arrVal, nil
}

// AsObject returns the object members.
func (v *Value) AsObject() ([]Member, error) {
	if err := v.expect(KindObject); err != nil {
		return nil, err
	}
	return v.objVal, nil
}

// Len returns the number of array elements or object members.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindArray:
		return len(v.arrVal)
	case KindObject:
		return len(v.objVal)
	default:
		return 0
	}
}

// Get returns the member value for key.
func (v *Value) Get(key string) (*Value, bool) {
	if v.Kind() != KindObject {
		return nil, false
	}
	for _, m := range v.objVal {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Index returns the i-th array element.
func (v *Value) Index(i int) (*Value, error) {
	if err := v.expect(KindArray); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(v.arrVal) {
		return nil, fmt.Errorf("%w: %d (len=%d)", ErrIndexOutOfRange, i, len(v.arrVal))
	}
	return v.arrVal[i], nil
}

// Set sets a member on an object, replacing an existing member with the same key.
func (v *Value) Set(key string, val *Value) {
	if v == nil || v.kind != KindObject {
		return
	}
	for i := range v.objVal {
		if v.objVal[i].Key == key {
			v.objVal[i].Value = val
			return
		}
	}
	v.objVal = append(v.objVal, Member{Key: key, Value: val})
}

// Append appends elements to an array.
func (v *Value) Append(vals ...*Value) {
	if v == nil || v.kind != KindArray {
		return
	}
	v.arrVal = append(v.arrVal, vals...)
}

// String returns a JSON rendering of the value, used for debugging.
func (v *Value) String() string {
	data, err := Encode(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return Slice{buf: data}.String()
}
