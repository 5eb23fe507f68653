package vpack

import (
	"bytes"
	"log"
	"math"
	"math/bits"
	"slices"
	"time"
	"unicode/utf8"
)

// reservedHeader is the space kept for a compound head and its byte length
// until Close knows the final layout.
const reservedHeader = 9

// Options control the layout chosen by the encoder. Decoding accepts every
// layout regardless of the options used to produce it.
type Options struct {
	// Compact writes arrays and objects without index tables (heads 0x13/0x14).
	// Documents are smaller, random access becomes a linear scan.
	Compact bool

	// Unsorted writes object index tables in insertion order (heads 0x0f..0x12)
	// instead of sorted by key.
	Unsorted bool
}

// Builder writes a single VelocyPack value incrementally.
//
// Errors are sticky: after the first failure all further calls are no-ops and
// Bytes returns the error.
//
//	b := vpack.NewBuilder(vpack.Options{})
//	b.OpenObject()
//	b.AddKey("name")
//	b.AddString("Koko")
//	b.Close()
//	data, err := b.Bytes()
type Builder struct {
	opts  Options
	buf   []byte
	stack []frame
	err   error
	done  bool
}

type frame struct {
	start      int   // Offset of the head byte.
	object     bool  // Object or array.
	index      []int // Absolute offsets of members (keys for objects).
	keyPending bool  // Object: key written, value expected.
}

// NewBuilder returns an empty builder.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts, buf: make([]byte, 0, 64)}
}

// Reset clears the builder for reuse, keeping its buffer capacity.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.stack = b.stack[:0]
	b.err = nil
	b.done = false
}

// Err returns the first error encountered, if any.
func (b *Builder) Err() error {
	return b.err
}

// Bytes returns the encoded document. The builder must hold exactly one
// complete value.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.stack) > 0 {
		return nil, unsupportedf("%d compound value(s) left open", len(b.stack))
	}
	if !b.done {
		return nil, unsupportedf("builder is empty")
	}
	return b.buf, nil
}

// Slice returns a view over the encoded document.
func (b *Builder) Slice() (Slice, error) {
	data, err := b.Bytes()
	if err != nil {
		return Slice{}, err
	}
	return Slice{buf: data}, nil
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// beforeValue validates that a value may be written at this point and records
// its offset in the enclosing array.
func (b *Builder) beforeValue() bool {
	if b.err != nil {
		return false
	}
	if len(b.stack) == 0 {
		if b.done {
			b.fail(unsupportedf("document already holds a top-level value"))
			return false
		}
		return true
	}
	top := &b.stack[len(b.stack)-1]
	if top.object {
		if !top.keyPending {
			b.fail(unsupportedf("object value written without a key"))
			return false
		}
		top.keyPending = false
		return true
	}
	top.index = append(top.index, len(b.buf))
	return true
}

func (b *Builder) afterValue() {
	if len(b.stack) == 0 {
		b.done = true
	}
}

// AddKey writes an object key. The next call must add the member's value.
func (b *Builder) AddKey(key string) {
	if b.err != nil {
		return
	}
	if len(b.stack) == 0 || !b.stack[len(b.stack)-1].object {
		b.fail(unsupportedf("key %q written outside of an object", key))
		return
	}
	top := &b.stack[len(b.stack)-1]
	if top.keyPending {
		b.fail(unsupportedf("key %q written while a value was expected", key))
		return
	}
	if !utf8.ValidString(key) {
		b.fail(unsupportedf("key %q is not valid UTF-8", key))
		return
	}
	top.index = append(top.index, len(b.buf))
	b.appendString(key)
	top.keyPending = true
}

// AddNull writes a null value.
func (b *Builder) AddNull() {
	if b.beforeValue() {
		b.buf = append(b.buf, headNull)
		b.afterValue()
	}
}

// AddBool writes a boolean value.
func (b *Builder) AddBool(v bool) {
	if b.beforeValue() {
		if v {
			b.buf = append(b.buf, headTrue)
		} else {
			b.buf = append(b.buf, headFalse)
		}
		b.afterValue()
	}
}

// AddInt writes a signed integer using the smallest representation.
func (b *Builder) AddInt(v int64) {
	if !b.beforeValue() {
		return
	}
	switch {
	case v >= 0 && v <= 9:
		b.buf = append(b.buf, headSmallInt+byte(v))
	case v >= -6 && v < 0:
		b.buf = append(b.buf, byte(int64(headString)+v))
	default:
		w := intWidth(v)
		b.buf = append(b.buf, headInt+byte(w-1))
		b.buf = appendUintLE(b.buf, uint64(v), w)
	}
	b.afterValue()
}

// AddUint writes an unsigned integer using the smallest representation.
func (b *Builder) AddUint(v uint64) {
	if !b.beforeValue() {
		return
	}
	if v <= 9 {
		b.buf = append(b.buf, headSmallInt+byte(v))
	} else {
		w := uintWidth(v)
		b.buf = append(b.buf, headUint+byte(w-1))
		b.buf = appendUintLE(b.buf, v, w)
	}
	b.afterValue()
}

// AddDouble writes an IEEE-754 double.
func (b *Builder) AddDouble(v float64) {
	if b.beforeValue() {
		b.buf = append(b.buf, headDouble)
		b.buf = appendUintLE(b.buf, math.Float64bits(v), 8)
		b.afterValue()
	}
}

// AddUTCDate writes a UTC date with millisecond precision.
func (b *Builder) AddUTCDate(t time.Time) {
	if b.beforeValue() {
		b.buf = append(b.buf, headUTCDate)
		b.buf = appendUintLE(b.buf, uint64(t.UnixMilli()), 8)
		b.afterValue()
	}
}

// AddString writes a UTF-8 string.
func (b *Builder) AddString(v string) {
	if b.err != nil {
		return
	}
	if !utf8.ValidString(v) {
		b.fail(unsupportedf("string is not valid UTF-8"))
		return
	}
	if b.beforeValue() {
		b.appendString(v)
		b.afterValue()
	}
}

func (b *Builder) appendString(v string) {
	if len(v) <= maxShortString {
		b.buf = append(b.buf, headString+byte(len(v)))
	} else {
		b.buf = append(b.buf, headLongString)
		b.buf = appendUintLE(b.buf, uint64(len(v)), 8)
	}
	b.buf = append(b.buf, v...)
}

// AddBinary writes a binary blob.
func (b *Builder) AddBinary(v []byte) {
	if b.beforeValue() {
		w := uintWidth(uint64(len(v)))
		b.buf = append(b.buf, headBinary+byte(w-1))
		b.buf = appendUintLE(b.buf, uint64(len(v)), w)
		b.buf = append(b.buf, v...)
		b.afterValue()
	}
}

// AddSlice copies an already encoded value into the document.
func (b *Builder) AddSlice(s Slice) {
	if b.err != nil {
		return
	}
	raw, err := s.Bytes()
	if err != nil {
		b.fail(err)
		return
	}
	if b.beforeValue() {
		b.buf = append(b.buf, raw...)
		b.afterValue()
	}
}

// AddValue writes v and all of its children.
func (b *Builder) AddValue(v *Value) {
	if b.err != nil {
		return
	}
	switch v.Kind() {
	case KindNull:
		b.AddNull()
	case KindBool:
		b.AddBool(v.boolVal)
	case KindInt:
		if v.unsigned {
			b.AddUint(v.uintVal)
		} else {
			b.AddInt(v.intVal)
		}
	case KindDouble:
		b.AddDouble(v.doubleVal)
	case KindString:
		b.AddString(v.strVal)
	case KindBinary:
		b.AddBinary(v.binVal)
	case KindArray:
		b.OpenArray()
		for _, e := range v.arrVal {
			b.AddValue(e)
		}
		b.Close()
	case KindObject:
		b.OpenObject()
		for _, m := range v.objVal {
			b.AddKey(m.Key)
			b.AddValue(m.Value)
		}
		b.Close()
	default:
		b.fail(unsupportedf("value kind %s", v.Kind()))
	}
}

// OpenArray starts an array. Members are added until the matching Close.
func (b *Builder) OpenArray() {
	b.open(false)
}

// OpenObject starts an object. Members are added as AddKey/value pairs until
// the matching Close.
func (b *Builder) OpenObject() {
	b.open(true)
}

func (b *Builder) open(object bool) {
	if !b.beforeValue() {
		return
	}
	b.stack = append(b.stack, frame{start: len(b.buf), object: object})
	b.buf = append(b.buf, make([]byte, reservedHeader)...)
}

// Close finishes the innermost open array or object.
func (b *Builder) Close() {
	if b.err != nil {
		return
	}
	if len(b.stack) == 0 {
		b.fail(unsupportedf("close without an open compound value"))
		return
	}
	f := b.stack[len(b.stack)-1]
	if f.object && f.keyPending {
		b.fail(unsupportedf("object closed with a dangling key"))
		return
	}
	b.stack = b.stack[:len(b.stack)-1]
	var err error
	switch {
	case f.object:
		err = b.closeObject(&f)
	default:
		b.closeArray(&f)
	}
	if err != nil {
		b.fail(err)
		return
	}
	b.afterValue()
}

// shift moves a compound's members so that they start headerLen bytes after
// its head, adjusting the recorded member offsets.
func (b *Builder) shift(f *frame, headerLen int) {
	delta := reservedHeader - headerLen
	if delta == 0 {
		return
	}
	dataStart := f.start + reservedHeader
	copy(b.buf[f.start+headerLen:], b.buf[dataStart:])
	b.buf = b.buf[:len(b.buf)-delta]
	for i := range f.index {
		f.index[i] -= delta
	}
}

func (b *Builder) closeArray(f *frame) {
	n := len(f.index)
	if n == 0 {
		b.buf = append(b.buf[:f.start], headEmptyArray)
		return
	}
	if b.opts.Compact {
		b.closeCompact(f, headArrCompact)
		return
	}

	contentLen := len(b.buf) - f.start - reservedHeader
	if sameMemberSize(f.index, len(b.buf)) {
		for _, w := range [...]int{1, 2, 4, 8} {
			total := 1 + w + contentLen
			if w < 8 && uint64(total) >= 1<<(8*w) {
				continue
			}
			b.shift(f, 1+w)
			b.buf[f.start] = headArrayNoIdx + byte(bits.TrailingZeros(uint(w)))
			putUintLE(b.buf[f.start+1:], uint64(total), w)
			return
		}
	}
	b.closeIndexed(f, headArrayIdx, contentLen)
}

func sameMemberSize(index []int, end int) bool {
	size := -1
	for i := range index {
		next := end
		if i+1 < len(index) {
			next = index[i+1]
		}
		s := next - index[i]
		if size >= 0 && s != size {
			return false
		}
		size = s
	}
	return true
}

func (b *Builder) closeObject(f *frame) error {
	n := len(f.index)
	if n == 0 {
		b.buf = append(b.buf[:f.start], headEmptyObject)
		return nil
	}
	if b.opts.Compact || b.opts.Unsorted {
		seen := make(map[string]struct{}, n)
		for _, off := range f.index {
			key := b.keyAt(off)
			if _, dup := seen[key]; dup {
				return unsupportedf("duplicate object key %q", key)
			}
			seen[key] = struct{}{}
		}
		if b.opts.Compact {
			b.closeCompact(f, headObjCompact)
			return nil
		}
		b.closeIndexed(f, headObjUnsorted, len(b.buf)-f.start-reservedHeader)
		return nil
	}

	slices.SortFunc(f.index, func(x, y int) int {
		return bytes.Compare(b.keyBytesAt(x), b.keyBytesAt(y))
	})
	for i := 1; i < n; i++ {
		if bytes.Equal(b.keyBytesAt(f.index[i-1]), b.keyBytesAt(f.index[i])) {
			return unsupportedf("duplicate object key %q", b.keyAt(f.index[i]))
		}
	}
	b.closeIndexed(f, headObjSorted, len(b.buf)-f.start-reservedHeader)
	return nil
}

// closeIndexed lays out a compound with an offset table: head, byte length,
// item count, members, offsets. With 8-byte widths the count follows the table.
func (b *Builder) closeIndexed(f *frame, base byte, contentLen int) {
	n := len(f.index)
	for _, w := range [...]int{1, 2, 4, 8} {
		header := 1 + 2*w
		tail := n * w
		if w == 8 {
			header = 1 + 8
			tail += 8
		}
		total := header + contentLen + tail
		if w < 8 && (uint64(total) >= 1<<(8*w) || uint64(n) >= 1<<(8*w)) {
			continue
		}
		b.shift(f, header)
		b.buf[f.start] = base + byte(bits.TrailingZeros(uint(w)))
		putUintLE(b.buf[f.start+1:], uint64(total), w)
		if w < 8 {
			putUintLE(b.buf[f.start+1+w:], uint64(n), w)
		}
		for _, off := range f.index {
			b.buf = appendUintLE(b.buf, uint64(off-f.start), w)
		}
		if w == 8 {
			b.buf = appendUintLE(b.buf, uint64(n), 8)
		}
		return
	}
	log.Panicf("vpack: no index width fits %d members", n)
}

// closeCompact lays out head, varuint byte length, members, reversed varuint count.
func (b *Builder) closeCompact(f *frame, head byte) {
	n := uint64(len(f.index))
	contentLen := len(b.buf) - f.start - reservedHeader
	fixed := 1 + contentLen + varUintLen(n)
	total := fixed + 1
	for {
		next := fixed + varUintLen(uint64(total))
		if next == total {
			break
		}
		total = next
	}
	lenBytes := appendVarUint(nil, uint64(total))
	b.shift(f, 1+len(lenBytes))
	b.buf[f.start] = head
	copy(b.buf[f.start+1:], lenBytes)
	b.buf = appendVarUintReversed(b.buf, n)
}

// keyBytesAt returns the raw bytes of the string key written at off.
func (b *Builder) keyBytesAt(off int) []byte {
	h := b.buf[off]
	if h == headLongString {
		n := int(readUintLE(b.buf[off+1:], 8))
		return b.buf[off+9 : off+9+n]
	}
	n := int(h - headString)
	return b.buf[off+1 : off+1+n]
}

func (b *Builder) keyAt(off int) string {
	return string(b.keyBytesAt(off))
}

// Encode returns the VelocyPack encoding of v using the default layout.
func Encode(v *Value) ([]byte, error) {
	return EncodeOptions(v, Options{})
}

// EncodeOptions returns the VelocyPack encoding of v using opts.
func EncodeOptions(v *Value, opts Options) ([]byte, error) {
	b := NewBuilder(opts)
	b.AddValue(v)
	return b.Bytes()
}
