package vpack

import "encoding/binary"

// Head bytes of the VelocyPack format. See doc.go for the full table.
const (
	headNone        byte = 0x00
	headEmptyArray  byte = 0x01
	headArrayNoIdx  byte = 0x02 // 0x02..0x05: equal-size members, 1/2/4/8 byte length.
	headArrayIdx    byte = 0x06 // 0x06..0x09: index table, 1/2/4/8 byte widths.
	headEmptyObject byte = 0x0a
	headObjSorted   byte = 0x0b // 0x0b..0x0e: index table sorted by key.
	headObjUnsorted byte = 0x0f // 0x0f..0x12: index table in insertion order.
	headArrCompact  byte = 0x13
	headObjCompact  byte = 0x14
	headIllegal     byte = 0x17
	headNull        byte = 0x18
	headFalse       byte = 0x19
	headTrue        byte = 0x1a
	headDouble      byte = 0x1b
	headUTCDate     byte = 0x1c
	headExternal    byte = 0x1d
	headMinKey      byte = 0x1e
	headMaxKey      byte = 0x1f
	headInt         byte = 0x20 // 0x20..0x27: signed int, 1..8 bytes.
	headUint        byte = 0x28 // 0x28..0x2f: unsigned int, 1..8 bytes.
	headSmallInt    byte = 0x30 // 0x30..0x39: 0..9.
	headSmallNeg    byte = 0x3a // 0x3a..0x3f: -6..-1.
	headString      byte = 0x40 // 0x40..0xbe: string of 0..126 bytes.
	headLongString  byte = 0xbf
	headBinary      byte = 0xc0 // 0xc0..0xc7: binary, length in 1..8 bytes.
	headBinaryEnd   byte = 0xc7

	maxShortString = 126
)

// widthFor returns the byte width encoded in a compound head: 1, 2, 4 or 8.
func widthFor(head, base byte) int {
	return 1 << (head - base)
}

func isArrayHead(h byte) bool {
	return h == headEmptyArray || (h >= headArrayNoIdx && h <= 0x09) || h == headArrCompact
}

func isObjectHead(h byte) bool {
	return h == headEmptyObject || (h >= headObjSorted && h <= 0x12) || h == headObjCompact
}

// compoundWidth returns the length width for non-compact compound heads.
func compoundWidth(h byte) int {
	switch {
	case h >= headArrayNoIdx && h <= 0x05:
		return widthFor(h, headArrayNoIdx)
	case h >= headArrayIdx && h <= 0x09:
		return widthFor(h, headArrayIdx)
	case h >= headObjSorted && h <= 0x0e:
		return widthFor(h, headObjSorted)
	case h >= headObjUnsorted && h <= 0x12:
		return widthFor(h, headObjUnsorted)
	}
	return 0
}

func readUintLE(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	}
	var v uint64
	for i := width - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func appendUintLE(dst []byte, v uint64, width int) []byte {
	for i := 0; i < width; i++ {
		dst = append(dst, byte(v))
		v >>= 8
	}
	return dst
}

func putUintLE(dst []byte, v uint64, width int) {
	for i := 0; i < width; i++ {
		dst[i] = byte(v)
		v >>= 8
	}
}

// uintWidth returns the minimal number of bytes needed to store v (1..8).
func uintWidth(v uint64) int {
	n := 1
	for v > 0xff {
		v >>= 8
		n++
	}
	return n
}

// intWidth returns the minimal number of bytes needed to store v in two's complement.
func intWidth(v int64) int {
	for n := 1; n < 8; n++ {
		limit := int64(1) << (8*n - 1)
		if v >= -limit && v < limit {
			return n
		}
	}
	return 8
}

// readIntLE sign-extends a little-endian two's complement integer of width bytes.
func readIntLE(b []byte, width int) int64 {
	u := readUintLE(b, width)
	if width < 8 {
		shift := uint(64 - 8*width)
		return int64(u<<shift) >> shift
	}
	return int64(u)
}

// Variable-length unsigned integers used by compact arrays and objects:
// 7 bits per byte, least significant group first, high bit set on all but
// the last byte.

func varUintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func appendVarUint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// appendVarUintReversed writes v so that it reads forward when scanned from
// the last byte backwards.
func appendVarUintReversed(dst []byte, v uint64) []byte {
	n := varUintLen(v)
	start := len(dst)
	dst = appendVarUint(dst, v)
	for i, j := start, start+n-1; i < j; i, j = i+1, j-1 {
		dst[i], dst[j] = dst[j], dst[i]
	}
	return dst
}

// readVarUint reads a forward varuint from b, returning value and bytes consumed.
func readVarUint(b []byte) (uint64, int, bool) {
	var v uint64
	for i := 0; i < len(b) && i < 10; i++ {
		v |= uint64(b[i]&0x7f) << (7 * uint(i))
		if b[i]&0x80 == 0 {
			return v, i + 1, true
		}
	}
	return 0, 0, false
}

// readVarUintReversed reads a varuint ending at b[len(b)-1], scanning backwards.
func readVarUintReversed(b []byte) (uint64, int, bool) {
	var v uint64
	for i := 0; i < len(b) && i < 10; i++ {
		c := b[len(b)-1-i]
		v |= uint64(c&0x7f) << (7 * uint(i))
		if c&0x80 == 0 {
			return v, i + 1, true
		}
	}
	return 0, 0, false
}

// translatedKeys maps integer attribute names to their string form.
var translatedKeys = map[uint64]string{
	1: "_key",
	2: "_rev",
	3: "_id",
	4: "_from",
	5: "_to",
}
