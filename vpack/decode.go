package vpack

import "slices"

// maxDepth bounds nesting when materializing values.
const maxDepth = 1000

// Decode parses a complete document into a Value. The buffer must hold exactly
// one value; trailing bytes are malformed input.
func Decode(data []byte) (*Value, error) {
	s, err := NewSlice(data)
	if err != nil {
		return nil, err
	}
	size, _ := s.ByteSize()
	if size != len(data) {
		return nil, malformedf("%d trailing byte(s) after document", len(data)-size)
	}
	return s.Value()
}

// Value materializes the slice and all of its children. Strings and binary
// data are copied, so the result does not alias the buffer.
//
// UTC dates decode as integer milliseconds. The minKey, maxKey and external
// markers have no Value representation and are reported as malformed input.
func (s Slice) Value() (*Value, error) {
	return s.value(0)
}

func (s Slice) value(depth int) (*Value, error) {
	if depth > maxDepth {
		return nil, malformedf("nesting deeper than %d", maxDepth)
	}
	kind, err := s.Kind()
	if err != nil {
		return nil, err
	}
	if _, err := s.ByteSize(); err != nil {
		return nil, err
	}
	switch kind {
	case KindNull:
		return Null(), nil
	case KindBool:
		v, err := s.GetBool()
		return Bool(v), err
	case KindInt:
		if h := s.Head(); h >= headUint && h < headSmallInt {
			v, err := s.GetUint()
			return Uint(v), err
		}
		v, err := s.GetInt()
		return Int(v), err
	case KindDouble:
		v, err := s.GetDouble()
		return Double(v), err
	case KindString:
		v, err := s.GetString()
		if err != nil {
			return nil, err
		}
		return String(v), nil
	case KindBinary:
		v, err := s.GetBinary()
		if err != nil {
			return nil, err
		}
		return Binary(slices.Clone(v)), nil
	case KindArray:
		it, err := s.ArrayIterator()
		if err != nil {
			return nil, err
		}
		var elems []*Value
		for it.Next() {
			e, err := it.Value().value(depth + 1)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
		return Array(elems...), nil
	default:
		it, err := s.ObjectIterator()
		if err != nil {
			return nil, err
		}
		var members []Member
		seen := make(map[string]struct{})
		for it.Next() {
			if _, dup := seen[it.Key()]; dup {
				return nil, malformedf("duplicate object key %q", it.Key())
			}
			seen[it.Key()] = struct{}{}
			v, err := it.Value().value(depth + 1)
			if err != nil {
				return nil, err
			}
			members = append(members, Member{Key: it.Key(), Value: v})
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
		return Object(members...), nil
	}
}
