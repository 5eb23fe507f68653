/*
Package vpack implements the VelocyPack binary document format.

A document is a single self-describing value. Every value starts with a head
byte that determines its kind and byte length, so any value can be skipped
without looking at its contents. Arrays and objects carry an offset table,
which gives O(1) element access and O(log n) key lookup on sorted objects
without decoding sibling members.

Two representations are provided:

  - Value, a mutable in-memory tree used to build and inspect documents.
  - Slice, a read-only view of encoded bytes that navigates without copying.

Encode and Builder turn Values into bytes; Decode and Slice.Value go the other
way. ToJSON and FromJSON bridge to JSON for debugging and tooling.

# Head bytes

	0x00        none (never valid as a value)
	0x01        empty array
	0x02-0x05   array, equal-size members, no index table, 1/2/4/8-byte length
	0x06-0x09   array with index table, 1/2/4/8-byte length and offsets
	0x0a        empty object
	0x0b-0x0e   object with index table sorted by key
	0x0f-0x12   object with index table in insertion order
	0x13        compact array
	0x14        compact object
	0x18        null
	0x19        false
	0x1a        true
	0x1b        double, 8 bytes little-endian IEEE-754
	0x1c        UTC date, int64 milliseconds since the epoch
	0x1e        minKey
	0x1f        maxKey
	0x20-0x27   signed int, 1-8 bytes
	0x28-0x2f   unsigned int, 1-8 bytes
	0x30-0x39   small int 0..9
	0x3a-0x3f   small int -6..-1
	0x40-0xbe   string of 0..126 bytes
	0xbf        string with an 8-byte length
	0xc0-0xc7   binary with a 1-8 byte length

All multi-byte integers are little-endian. Object keys are strings; the small
integers 1..5 are accepted as keys and read as _key, _rev, _id, _from and _to.
*/
package vpack
