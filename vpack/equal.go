package vpack

import (
	"bytes"
	"math"
)

// Equal reports whether a and b are structurally equal.
//
// Integers compare by numeric value regardless of signedness, objects compare
// as unordered key sets, arrays compare element-wise in order. NaN doubles are
// equal to each other so that round trips of NaN hold.
func Equal(a, b *Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindNull:
		return true
	case KindBool:
		return a.boolVal == b.boolVal
	case KindInt:
		return intEqual(a, b)
	case KindDouble:
		if math.IsNaN(a.doubleVal) && math.IsNaN(b.doubleVal) {
			return true
		}
		return a.doubleVal == b.doubleVal
	case KindString:
		return a.strVal == b.strVal
	case KindBinary:
		return bytes.Equal(a.binVal, b.binVal)
	case KindArray:
		if len(a.arrVal) != len(b.arrVal) {
			return false
		}
		for i := range a.arrVal {
			if !Equal(a.arrVal[i], b.arrVal[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.objVal) != len(b.objVal) {
			return false
		}
		index := make(map[string]*Value, len(b.objVal))
		for _, m := range b.objVal {
			index[m.Key] = m.Value
		}
		if len(index) != len(b.objVal) {
			return false // Duplicate keys in b.
		}
		for _, m := range a.objVal {
			other, ok := index[m.Key]
			if !ok || !Equal(m.Value, other) {
				return false
			}
			delete(index, m.Key) // A repeated key in a finds no partner.
		}
		return true
	}
	return false
}

func intEqual(a, b *Value) bool {
	switch {
	case a.unsigned == b.unsigned:
		return a.intVal == b.intVal && a.uintVal == b.uintVal
	case a.unsigned:
		return b.intVal >= 0 && uint64(b.intVal) == a.uintVal
	default:
		return a.intVal >= 0 && uint64(a.intVal) == b.uintVal
	}
}
