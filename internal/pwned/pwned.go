// Package pwned defines the HIBP password-hash record and chunk types
// shared by the parser, downloader, and store.
package pwned

import (
	"bytes"

	"github.com/rpcpool/hibp-store/internal/prefix"
)

// SHA1Size is the width, in bytes, of one on-disk record.
const SHA1Size = 20

// Pwd is a single HIBP entry: a SHA-1 digest and the number of times
// it has been seen in a breach corpus. Count is carried in memory
// only; the store persists only SHA1.
type Pwd struct {
	SHA1  [SHA1Size]byte
	Count uint32
}

// Equal compares both fields.
func (p Pwd) Equal(other Pwd) bool {
	return p.Count == other.Count && bytes.Equal(p.SHA1[:], other.SHA1[:])
}

// Chunk is one prefix's worth of passwords, in the order the upstream
// HIBP response produced them.
type Chunk struct {
	Prefix    prefix.Prefix
	Passwords []Pwd
}
