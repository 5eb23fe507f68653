package vpack

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"unicode/utf8"
)

// ToJSON renders an encoded value as JSON. Binary values are written as
// base64 strings, UTC dates as milliseconds, and non-finite doubles as null.
func ToJSON(s Slice) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, s, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, s Slice, depth int) error {
	if depth > maxDepth {
		return malformedf("nesting deeper than %d", maxDepth)
	}
	kind, err := s.Kind()
	if err != nil {
		return err
	}
	switch kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		v, err := s.GetBool()
		if err != nil {
			return err
		}
		buf.WriteString(strconv.FormatBool(v))
	case KindInt:
		if h := s.Head(); h >= headUint && h < headSmallInt {
			v, err := s.GetUint()
			if err != nil {
				return err
			}
			buf.WriteString(strconv.FormatUint(v, 10))
			return nil
		}
		v, err := s.GetInt()
		if err != nil {
			return err
		}
		buf.WriteString(strconv.FormatInt(v, 10))
	case KindDouble:
		v, err := s.GetDouble()
		if err != nil {
			return err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			return nil
		}
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case KindString:
		b, err := s.stringBytes()
		if err != nil {
			return err
		}
		if !utf8.Valid(b) {
			return malformedf("string is not valid UTF-8")
		}
		writeJSONString(buf, b)
	case KindBinary:
		b, err := s.GetBinary()
		if err != nil {
			return err
		}
		buf.WriteByte('"')
		buf.WriteString(base64.StdEncoding.EncodeToString(b))
		buf.WriteByte('"')
	case KindArray:
		it, err := s.ArrayIterator()
		if err != nil {
			return err
		}
		buf.WriteByte('[')
		for first := true; it.Next(); first = false {
			if !first {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, it.Value(), depth+1); err != nil {
				return err
			}
		}
		if err := it.Err(); err != nil {
			return err
		}
		buf.WriteByte(']')
	case KindObject:
		it, err := s.ObjectIterator()
		if err != nil {
			return err
		}
		buf.WriteByte('{')
		for first := true; it.Next(); first = false {
			if !first {
				buf.WriteByte(',')
			}
			writeJSONString(buf, []byte(it.Key()))
			buf.WriteByte(':')
			if err := writeJSON(buf, it.Value(), depth+1); err != nil {
				return err
			}
		}
		if err := it.Err(); err != nil {
			return err
		}
		buf.WriteByte('}')
	}
	return nil
}

const hexDigits = "0123456789abcdef"

func writeJSONString(buf *bytes.Buffer, b []byte) {
	buf.WriteByte('"')
	for _, c := range b {
		switch {
		case c == '"' || c == '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case c == '\n':
			buf.WriteString(`\n`)
		case c == '\r':
			buf.WriteString(`\r`)
		case c == '\t':
			buf.WriteString(`\t`)
		case c < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0xf])
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
}

// FromJSON parses a JSON document into a Value, keeping object members in
// document order. Integral numbers become Int (or Uint above math.MaxInt64),
// all other numbers become Double.
func FromJSON(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := readJSON(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("vpack: trailing data after JSON document")
	}
	return v, nil
}

func readJSON(dec *json.Decoder, depth int) (*Value, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("vpack: JSON nesting deeper than %d", maxDepth)
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("vpack: read JSON: %w", err)
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return jsonNumber(t)
	case json.Delim:
		switch t {
		case '[':
			arr := Array()
			for dec.More() {
				e, err := readJSON(dec, depth+1)
				if err != nil {
					return nil, err
				}
				arr.Append(e)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("vpack: read JSON: %w", err)
			}
			return arr, nil
		case '{':
			obj := Object()
			seen := make(map[string]struct{})
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("vpack: read JSON: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("vpack: JSON object key is %T", keyTok)
				}
				if _, dup := seen[key]; dup {
					return nil, fmt.Errorf("%w: duplicate JSON key %q", ErrUnsupportedValue, key)
				}
				seen[key] = struct{}{}
				v, err := readJSON(dec, depth+1)
				if err != nil {
					return nil, err
				}
				obj.objVal = append(obj.objVal, Member{Key: key, Value: v})
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("vpack: read JSON: %w", err)
			}
			return obj, nil
		}
	}
	return nil, fmt.Errorf("vpack: unexpected JSON token %v", tok)
}

func jsonNumber(n json.Number) (*Value, error) {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return Int(i), nil
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return Uint(u), nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return nil, fmt.Errorf("vpack: JSON number %q: %w", n, err)
	}
	return Double(f), nil
}
