// Package prefix implements the 20-bit HIBP k-anonymity prefix domain type.
package prefix

import "fmt"

// Max is the largest valid Prefix value: 2^20 - 1.
const Max uint32 = 0xFFFFF

// Width is the number of hex characters in a Prefix's string form.
const Width = 5

// BinarySize is the number of leading bytes a Prefix occupies in a
// 20-byte SHA-1 record (see (Prefix).PutBinary).
const BinarySize = 3

// Prefix is a 20-bit unsigned integer identifying one HIBP range-API
// bucket, in the inclusive range [0x00000, 0xFFFFF].
type Prefix uint32

// New validates v and returns the corresponding Prefix.
func New(v uint32) (Prefix, bool) {
	if v > Max {
		return 0, false
	}
	return Prefix(v), true
}

// MustNew panics if v is out of range. Intended for tests and constants.
func MustNew(v uint32) Prefix {
	p, ok := New(v)
	if !ok {
		panic(fmt.Sprintf("prefix: value out of range: %#x", v))
	}
	return p
}

// Next returns the successor Prefix, or false if p is already Max.
func (p Prefix) Next() (Prefix, bool) {
	return New(uint32(p) + 1)
}

// Forward returns the Prefix n steps ahead of p, or false on overflow
// past Max.
func (p Prefix) Forward(n uint32) (Prefix, bool) {
	v := uint64(p) + uint64(n)
	if v > uint64(Max) {
		return 0, false
	}
	return Prefix(v), true
}

// Less reports whether p sorts before other.
func (p Prefix) Less(other Prefix) bool {
	return p < other
}

// String renders p as five uppercase hex characters, e.g. "21BD4".
func (p Prefix) String() string {
	return fmt.Sprintf("%05X", uint32(p))
}

// PutBinary writes p left-aligned into the first 20 bits of buf, which
// must be at least BinarySize bytes long (typically the start of a
// 20-byte on-disk SHA-1 record). Bytes 0-1 hold the high 16 bits of p; the high nibble of
// byte 2 holds the low 4 bits; the low nibble of byte 2 is left zero
// so that Parser can OR in the hex digit that follows the prefix in
// the response line.
func (p Prefix) PutBinary(buf []byte) {
	_ = buf[2] // bounds check hint
	v := uint32(p)
	buf[0] = byte(v >> 12)
	buf[1] = byte(v >> 4)
	buf[2] = byte(v<<4) & 0xF0
}
