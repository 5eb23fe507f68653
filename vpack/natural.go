package vpack

import (
	"maps"
	"math"
	"slices"
)

// Interface returns v as plain Go data: nil, bool, int64, uint64, float64,
// string, []byte, []any or map[string]any. Member order of objects is lost.
func (v *Value) Interface() any {
	switch v.Kind() {
	case KindBool:
		return v.boolVal
	case KindInt:
		if v.unsigned {
			return v.uintVal
		}
		return v.intVal
	case KindDouble:
		return v.doubleVal
	case KindString:
		return v.strVal
	case KindBinary:
		return v.binVal
	case KindArray:
		out := make([]any, len(v.arrVal))
		for i, e := range v.arrVal {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.objVal))
		for _, m := range v.objVal {
			out[m.Key] = m.Value.Interface()
		}
		return out
	}
	return nil
}

// FromInterface converts plain Go data, as produced by Interface or by
// decoding into an untyped target, into a Value. Map keys are sorted so the
// result does not depend on map iteration order.
func FromInterface(x any) (*Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case *Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Uint(uint64(t)), nil
	case uint8:
		return Uint(uint64(t)), nil
	case uint16:
		return Uint(uint64(t)), nil
	case uint32:
		return Uint(uint64(t)), nil
	case uint64:
		return Uint(t), nil
	case float32:
		return Double(float64(t)), nil
	case float64:
		return Double(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Binary(t), nil
	case []any:
		arr := Array()
		for _, e := range t {
			ev, err := FromInterface(e)
			if err != nil {
				return nil, err
			}
			arr.Append(ev)
		}
		return arr, nil
	case map[string]any:
		obj := Object()
		for _, k := range slices.Sorted(maps.Keys(t)) {
			ev, err := FromInterface(t[k])
			if err != nil {
				return nil, err
			}
			obj.objVal = append(obj.objVal, Member{Key: k, Value: ev})
		}
		return obj, nil
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, unsupportedf("map key of type %T", k)
			}
			m[ks] = e
		}
		return FromInterface(m)
	}
	return nil, unsupportedf("Go type %T", x)
}

// IntegralDouble converts doubles holding whole numbers within the int64 range
// to Int, recursively. Formats without an integer type use it to restore
// integers after a round trip.
func IntegralDouble(v *Value) *Value {
	switch v.Kind() {
	case KindDouble:
		f := v.doubleVal
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return Int(int64(f))
		}
	case KindArray:
		out := Array()
		for _, e := range v.arrVal {
			out.Append(IntegralDouble(e))
		}
		return out
	case KindObject:
		out := Object()
		for _, m := range v.objVal {
			out.objVal = append(out.objVal, Member{Key: m.Key, Value: IntegralDouble(m.Value)})
		}
		return out
	}
	return v
}
