package vpack

import (
	"bytes"
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// Slice is a read-only view of one encoded value inside a buffer.
//
// A Slice never modifies or copies its buffer; slices returned by navigation
// alias the same memory. The zero Slice is invalid.
type Slice struct {
	buf   []byte
	start int
}

// NewSlice returns a view of the value at the beginning of buf.
// It verifies the value's head and that its byte length fits the buffer.
func NewSlice(buf []byte) (Slice, error) {
	s := Slice{buf: buf}
	if _, err := s.ByteSize(); err != nil {
		return Slice{}, err
	}
	return s, nil
}

func (s Slice) head() (byte, error) {
	if s.start < 0 || s.start >= len(s.buf) {
		return 0, malformedf("empty slice")
	}
	return s.buf[s.start], nil
}

// Head returns the raw type marker, or 0x00 for an invalid slice.
func (s Slice) Head() byte {
	h, _ := s.head()
	return h
}

// ByteSize returns the number of bytes the value occupies, including its head.
func (s Slice) ByteSize() (int, error) {
	h, err := s.head()
	if err != nil {
		return 0, err
	}
	avail := uint64(len(s.buf) - s.start)
	var size uint64
	switch {
	case h == headEmptyArray || h == headEmptyObject,
		h >= headNull && h <= headTrue,
		h == headMinKey || h == headMaxKey,
		h >= headSmallInt && h < headString:
		size = 1
	case h >= headArrayNoIdx && h <= 0x12 && h != headEmptyObject:
		w := compoundWidth(h)
		if avail < uint64(1+w) {
			return 0, malformedf("truncated header for head 0x%02x", h)
		}
		size = readUintLE(s.buf[s.start+1:], w)
		if size < uint64(1+w) {
			return 0, malformedf("byte length %d too small for head 0x%02x", size, h)
		}
	case h == headArrCompact || h == headObjCompact:
		v, n, ok := readVarUint(s.buf[s.start+1:])
		if !ok {
			return 0, malformedf("truncated compact byte length")
		}
		if v < uint64(n+2) {
			return 0, malformedf("compact byte length %d too small", v)
		}
		size = v
	case h == headDouble || h == headUTCDate:
		size = 9
	case h >= headInt && h < headUint:
		size = 1 + uint64(h-headInt+1)
	case h >= headUint && h < headSmallInt:
		size = 1 + uint64(h-headUint+1)
	case h >= headString && h < headLongString:
		size = 1 + uint64(h-headString)
	case h == headLongString:
		if avail < 9 {
			return 0, malformedf("truncated long string header")
		}
		n := readUintLE(s.buf[s.start+1:], 8)
		if n > avail {
			return 0, malformedf("string of %d bytes exceeds buffer", n)
		}
		size = 9 + n
	case h >= headBinary && h <= headBinaryEnd:
		w := int(h-headBinary) + 1
		if avail < uint64(1+w) {
			return 0, malformedf("truncated binary header")
		}
		n := readUintLE(s.buf[s.start+1:], w)
		if n > avail {
			return 0, malformedf("binary of %d bytes exceeds buffer", n)
		}
		size = 1 + uint64(w) + n
	default:
		return 0, malformedf("unsupported head 0x%02x", h)
	}
	if size > avail {
		return 0, malformedf("value of %d bytes exceeds buffer (%d available)", size, avail)
	}
	return int(size), nil
}

// Bytes returns the raw encoding of the value. The result aliases the buffer.
func (s Slice) Bytes() ([]byte, error) {
	size, err := s.ByteSize()
	if err != nil {
		return nil, err
	}
	return s.buf[s.start : s.start+size], nil
}

// Kind returns the value kind. UTC dates report KindInt.
func (s Slice) Kind() (Kind, error) {
	h, err := s.head()
	if err != nil {
		return KindNull, err
	}
	switch {
	case isArrayHead(h):
		return KindArray, nil
	case isObjectHead(h):
		return KindObject, nil
	case h == headNull:
		return KindNull, nil
	case h == headFalse || h == headTrue:
		return KindBool, nil
	case h == headDouble:
		return KindDouble, nil
	case h == headUTCDate, h >= headInt && h < headString:
		return KindInt, nil
	case h >= headString && h <= headLongString:
		return KindString, nil
	case h >= headBinary && h <= headBinaryEnd:
		return KindBinary, nil
	}
	return KindNull, malformedf("unsupported head 0x%02x", h)
}

func (s Slice) is(k Kind) bool {
	got, err := s.Kind()
	return err == nil && got == k
}

func (s Slice) IsNull() bool    { return s.is(KindNull) }
func (s Slice) IsBool() bool    { return s.is(KindBool) }
func (s Slice) IsInt() bool     { return s.is(KindInt) }
func (s Slice) IsDouble() bool  { return s.is(KindDouble) }
func (s Slice) IsString() bool  { return s.is(KindString) }
func (s Slice) IsBinary() bool  { return s.is(KindBinary) }
func (s Slice) IsArray() bool   { return s.is(KindArray) }
func (s Slice) IsObject() bool  { return s.is(KindObject) }
func (s Slice) IsUTCDate() bool { return s.Head() == headUTCDate }

// IsCompact reports whether the value is a compact array or object.
func (s Slice) IsCompact() bool {
	h := s.Head()
	return h == headArrCompact || h == headObjCompact
}

func (s Slice) mismatch(want string) error {
	k, err := s.Kind()
	if err != nil {
		return err
	}
	return fmt.Errorf("vpack: expected %s, got %s", want, k)
}

// GetBool returns the boolean value.
func (s Slice) GetBool() (bool, error) {
	switch s.Head() {
	case headTrue:
		return true, nil
	case headFalse:
		return false, nil
	}
	return false, s.mismatch("bool")
}

// GetInt returns an integer value as int64. UTC dates return milliseconds
// since the epoch.
func (s Slice) GetInt() (int64, error) {
	if _, err := s.ByteSize(); err != nil {
		return 0, err
	}
	h := s.buf[s.start]
	switch {
	case h >= headInt && h < headUint:
		return readIntLE(s.buf[s.start+1:], int(h-headInt)+1), nil
	case h >= headUint && h < headSmallInt:
		u := readUintLE(s.buf[s.start+1:], int(h-headUint)+1)
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("vpack: %d overflows int64", u)
		}
		return int64(u), nil
	case h >= headSmallInt && h < headSmallNeg:
		return int64(h - headSmallInt), nil
	case h >= headSmallNeg && h < headString:
		return int64(h) - int64(headString), nil
	case h == headUTCDate:
		return int64(readUintLE(s.buf[s.start+1:], 8)), nil
	}
	return 0, s.mismatch("int")
}

// GetUint returns an integer value as uint64.
func (s Slice) GetUint() (uint64, error) {
	h := s.Head()
	if h >= headUint && h < headSmallInt {
		if _, err := s.ByteSize(); err != nil {
			return 0, err
		}
		return readUintLE(s.buf[s.start+1:], int(h-headUint)+1), nil
	}
	v, err := s.GetInt()
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("vpack: %d is negative", v)
	}
	return uint64(v), nil
}

// GetDouble returns a double value. Integers are converted.
func (s Slice) GetDouble() (float64, error) {
	h := s.Head()
	if h == headDouble {
		if _, err := s.ByteSize(); err != nil {
			return 0, err
		}
		return math.Float64frombits(readUintLE(s.buf[s.start+1:], 8)), nil
	}
	if h >= headUint && h < headSmallInt {
		u, err := s.GetUint()
		return float64(u), err
	}
	v, err := s.GetInt()
	if err != nil {
		return 0, s.mismatch("double")
	}
	return float64(v), nil
}

// GetUTCDate returns a UTC date value.
func (s Slice) GetUTCDate() (time.Time, error) {
	if s.Head() != headUTCDate {
		return time.Time{}, s.mismatch("utc date")
	}
	ms, err := s.GetInt()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// stringBytes returns the raw bytes of a string value without copying.
func (s Slice) stringBytes() ([]byte, error) {
	h := s.Head()
	if h < headString || h > headLongString {
		return nil, s.mismatch("string")
	}
	size, err := s.ByteSize()
	if err != nil {
		return nil, err
	}
	if h == headLongString {
		return s.buf[s.start+9 : s.start+size], nil
	}
	return s.buf[s.start+1 : s.start+size], nil
}

// GetString returns a string value.
func (s Slice) GetString() (string, error) {
	b, err := s.stringBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", malformedf("string is not valid UTF-8")
	}
	return string(b), nil
}

// GetBinary returns the contents of a binary value. The result aliases the buffer.
func (s Slice) GetBinary() ([]byte, error) {
	h := s.Head()
	if h < headBinary || h > headBinaryEnd {
		return nil, s.mismatch("binary")
	}
	size, err := s.ByteSize()
	if err != nil {
		return nil, err
	}
	w := int(h-headBinary) + 1
	return s.buf[s.start+1+w : s.start+size], nil
}

// layout describes where the members of a compound value live, relative to
// the value's start.
type layout struct {
	head     byte
	size     int // Total byte length.
	data     int // First member.
	end      int // End of the member region.
	n        int // Number of members (pairs for objects).
	width    int // Index table entry width, 0 without an index table.
	index    int // Start of the index table.
	itemSize int // Member size for arrays without an index table.
}

func (l layout) compact() bool {
	return l.head == headArrCompact || l.head == headObjCompact
}

// inner returns the buffer truncated to this value so that member lookups
// cannot read past it.
func (s Slice) inner(l layout) []byte {
	return s.buf[:s.start+l.size]
}

// firstMember skips the zero padding an encoder may leave between a compound
// header and its first member.
func (s Slice) firstMember(fsm, end int) int {
	for _, k := range [...]int{2, 3, 5} {
		if fsm <= k {
			if k >= end || s.buf[s.start+k] != 0 {
				return k
			}
		}
	}
	return 9
}

func (s Slice) layout() (layout, error) {
	size, err := s.ByteSize()
	if err != nil {
		return layout{}, err
	}
	h := s.buf[s.start]
	l := layout{head: h, size: size}
	switch {
	case h == headEmptyArray || h == headEmptyObject:
		l.data, l.end = 1, 1
	case h >= headArrayNoIdx && h <= 0x05:
		w := compoundWidth(h)
		l.data = s.firstMember(1+w, size)
		l.end = size
		if l.data >= size {
			l.data = size
			return l, nil
		}
		first := Slice{buf: s.inner(l), start: s.start + l.data}
		itemSize, err := first.ByteSize()
		if err != nil {
			return layout{}, err
		}
		if (size-l.data)%itemSize != 0 {
			return layout{}, malformedf("array members are not of equal size")
		}
		l.itemSize = itemSize
		l.n = (size - l.data) / itemSize
	case h >= headArrayIdx && h <= 0x12:
		w := compoundWidth(h)
		var n uint64
		if w < 8 {
			if size < 1+2*w {
				return layout{}, malformedf("truncated header for head 0x%02x", h)
			}
			n = readUintLE(s.buf[s.start+1+w:], w)
		} else {
			if size < 1+8+8 {
				return layout{}, malformedf("truncated header for head 0x%02x", h)
			}
			n = readUintLE(s.buf[s.start+size-8:], 8)
		}
		tail := uint64(0)
		if w == 8 {
			tail = 8
		}
		if n > uint64(size)/uint64(w) {
			return layout{}, malformedf("member count %d exceeds byte length %d", n, size)
		}
		tail += n * uint64(w)
		l.n = int(n)
		l.width = w
		l.index = size - int(tail)
		l.data = s.firstMember(min(1+2*w, 9), l.index)
		l.end = l.index
		if l.index < l.data && l.n > 0 {
			return layout{}, malformedf("index table overlaps header")
		}
	case h == headArrCompact || h == headObjCompact:
		_, k, _ := readVarUint(s.buf[s.start+1:])
		n, k2, ok := readVarUintReversed(s.buf[s.start : s.start+size])
		if !ok {
			return layout{}, malformedf("truncated compact member count")
		}
		l.data = 1 + k
		l.end = size - k2
		if l.end < l.data || n > uint64(size) {
			return layout{}, malformedf("compact member count %d inconsistent with byte length %d", n, size)
		}
		l.n = int(n)
	default:
		k, _ := s.Kind()
		return layout{}, fmt.Errorf("vpack: expected array or object, got %s", k)
	}
	return l, nil
}

// memberAt returns the absolute offset of member i (the key for objects).
func (s Slice) memberAt(l layout, i int) (int, error) {
	switch {
	case l.width > 0:
		off := int(readUintLE(s.buf[s.start+l.index+i*l.width:], l.width))
		if off < l.data || off >= l.end {
			return 0, malformedf("index table entry %d points outside members", i)
		}
		return s.start + off, nil
	case l.itemSize > 0:
		return s.start + l.data + i*l.itemSize, nil
	}
	// Compact: walk from the first member.
	pos := s.start + l.data
	perMember := 1
	if l.head == headObjCompact {
		perMember = 2
	}
	buf := s.buf[:s.start+l.end]
	for skip := i * perMember; skip > 0; skip-- {
		size, err := Slice{buf: buf, start: pos}.ByteSize()
		if err != nil {
			return 0, err
		}
		pos += size
	}
	return pos, nil
}

// Length returns the number of array elements or object members.
func (s Slice) Length() (int, error) {
	l, err := s.layout()
	if err != nil {
		return 0, err
	}
	return l.n, nil
}

// At returns the i-th element of an array without decoding its siblings.
func (s Slice) At(i int) (Slice, error) {
	if !isArrayHead(s.Head()) {
		return Slice{}, s.mismatch("array")
	}
	l, err := s.layout()
	if err != nil {
		return Slice{}, err
	}
	if i < 0 || i >= l.n {
		return Slice{}, fmt.Errorf("%w: %d (len=%d)", ErrIndexOutOfRange, i, l.n)
	}
	off, err := s.memberAt(l, i)
	if err != nil {
		return Slice{}, err
	}
	member := Slice{buf: s.buf[:s.start+l.end], start: off}
	if _, err := member.ByteSize(); err != nil {
		return Slice{}, err
	}
	return member, nil
}

// objectMember returns the key and value slices of the object member whose
// key starts at off.
func (s Slice) objectMember(l layout, off int) (Slice, Slice, error) {
	buf := s.buf[:s.start+l.end]
	key := Slice{buf: buf, start: off}
	size, err := key.ByteSize()
	if err != nil {
		return Slice{}, Slice{}, err
	}
	val := Slice{buf: buf, start: off + size}
	if _, err := val.ByteSize(); err != nil {
		return Slice{}, Slice{}, err
	}
	return key, val, nil
}

// keyString returns the attribute name stored in a key slice, translating
// integer keys.
func keyString(key Slice) (string, error) {
	if key.IsString() {
		return key.GetString()
	}
	if key.IsInt() {
		id, err := key.GetUint()
		if err == nil {
			if name, ok := translatedKeys[id]; ok {
				return name, nil
			}
		}
	}
	return "", malformedf("object key with head 0x%02x", key.Head())
}

// KeyAt returns the key of the i-th object member in index order.
func (s Slice) KeyAt(i int) (string, error) {
	key, _, err := s.memberPair(i)
	if err != nil {
		return "", err
	}
	return keyString(key)
}

// ValueAt returns the value of the i-th object member in index order.
func (s Slice) ValueAt(i int) (Slice, error) {
	_, val, err := s.memberPair(i)
	return val, err
}

func (s Slice) memberPair(i int) (Slice, Slice, error) {
	if !isObjectHead(s.Head()) {
		return Slice{}, Slice{}, s.mismatch("object")
	}
	l, err := s.layout()
	if err != nil {
		return Slice{}, Slice{}, err
	}
	if i < 0 || i >= l.n {
		return Slice{}, Slice{}, fmt.Errorf("%w: %d (len=%d)", ErrIndexOutOfRange, i, l.n)
	}
	off, err := s.memberAt(l, i)
	if err != nil {
		return Slice{}, Slice{}, err
	}
	return s.objectMember(l, off)
}

// binarySearchMin is the member count from which sorted objects are searched
// by bisection.
const binarySearchMin = 5

// Get returns the value stored under key without decoding sibling members.
// A missing key returns ErrKeyNotFound.
func (s Slice) Get(key string) (Slice, error) {
	if !isObjectHead(s.Head()) {
		return Slice{}, s.mismatch("object")
	}
	l, err := s.layout()
	if err != nil {
		return Slice{}, err
	}
	if l.n == 0 {
		return Slice{}, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if l.head >= headObjSorted && l.head <= 0x0e && l.n >= binarySearchMin {
		val, found, ok, err := s.searchSorted(l, []byte(key))
		if err != nil {
			return Slice{}, err
		}
		if ok {
			if !found {
				return Slice{}, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
			}
			return val, nil
		}
	}
	return s.searchLinear(l, key)
}

// searchSorted bisects the index table. ok is false when a non-string key was
// met and the caller must fall back to a linear scan.
func (s Slice) searchSorted(l layout, key []byte) (val Slice, found, ok bool, err error) {
	lo, hi := 0, l.n-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		off, err := s.memberAt(l, mid)
		if err != nil {
			return Slice{}, false, false, err
		}
		k, v, err := s.objectMember(l, off)
		if err != nil {
			return Slice{}, false, false, err
		}
		kb, err := k.stringBytes()
		if err != nil {
			return Slice{}, false, false, nil
		}
		switch c := bytes.Compare(kb, key); {
		case c == 0:
			return v, true, true, nil
		case c < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return Slice{}, false, true, nil
}

func (s Slice) searchLinear(l layout, key string) (Slice, error) {
	it := newObjectIterator(s, l)
	for it.Next() {
		if it.Key() == key {
			return it.Value(), nil
		}
	}
	if err := it.Err(); err != nil {
		return Slice{}, err
	}
	return Slice{}, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
}

// GetPath follows a sequence of object keys.
func (s Slice) GetPath(keys ...string) (Slice, error) {
	cur := s
	for i, key := range keys {
		next, err := cur.Get(key)
		if err != nil {
			return Slice{}, fmt.Errorf("path element %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

// String renders the value as JSON. Malformed input renders as an error marker.
func (s Slice) String() string {
	data, err := ToJSON(s)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
