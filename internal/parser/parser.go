// Package parser converts one line of a HIBP range-API response body
// into a pwned.Pwd, given the prefix that response was fetched for.
//
// This sits on the downloader's hot path, and its byte layout
// assumptions are coupled to the store's 20-byte record layout: see
// prefix.Prefix.PutBinary.
package parser

import (
	"fmt"
	"strconv"

	"github.com/rpcpool/hibp-store/internal/prefix"
	"github.com/rpcpool/hibp-store/internal/pwned"
)

// minLineLen is the shortest a valid "HASH35:COUNT" line can be: 35
// hex characters, a colon, and at least one decimal digit.
const minLineLen = 37

// ErrInvalidStringLength is returned when a line is shorter than the
// minimum valid HIBP line length.
type ErrInvalidStringLength struct {
	Got int
}

func (e ErrInvalidStringLength) Error() string {
	return fmt.Sprintf("parser: invalid line length %d, want at least %d", e.Got, minLineLen)
}

// ErrInvalidString is returned when byte 35 of a line is not ':'.
type ErrInvalidString struct {
	Got byte
}

func (e ErrInvalidString) Error() string {
	return fmt.Sprintf("parser: expected ':' at byte 35, got %q", e.Got)
}

// ErrInvalidHexCharacter is returned when a byte of the hex portion
// of a line is not a valid hex digit.
type ErrInvalidHexCharacter struct {
	Char  byte
	Index int
}

func (e ErrInvalidHexCharacter) Error() string {
	return fmt.Sprintf("parser: invalid hex character %q at index %d", e.Char, e.Index)
}

// ErrInvalidCount is returned when the decimal tail of a line cannot
// be parsed as a non-negative uint32.
type ErrInvalidCount struct {
	Raw string
	Err error
}

func (e ErrInvalidCount) Error() string {
	return fmt.Sprintf("parser: invalid count %q: %v", e.Raw, e.Err)
}

func (e ErrInvalidCount) Unwrap() error { return e.Err }

// Parser parses HIBP response lines for a single, fixed prefix.
type Parser struct {
	prefix    prefix.Prefix
	prefixBin [prefix.BinarySize]byte
}

// From returns a Parser bound to p.
func From(p prefix.Prefix) Parser {
	var buf [prefix.BinarySize]byte
	p.PutBinary(buf[:])
	return Parser{prefix: p, prefixBin: buf}
}

// Parse implements spec.md's five-step algorithm:
//  1. reject lines shorter than 37 bytes;
//  2. reject lines whose byte 35 is not ':';
//  3. fill bytes 0-2 of the record from the prefix's binary form and
//     OR in the hex value of the line's first character;
//  4. hex-decode the 34 characters at indices [1,35) into bytes 3..20;
//  5. parse the decimal tail as a uint32 count.
func (p Parser) Parse(line string) (pwned.Pwd, error) {
	var rec pwned.Pwd

	if len(line) < minLineLen {
		return rec, ErrInvalidStringLength{Got: len(line)}
	}
	if line[35] != ':' {
		return rec, ErrInvalidString{Got: line[35]}
	}

	firstNibble, ok := hexVal(line[0])
	if !ok {
		return rec, ErrInvalidHexCharacter{Char: line[0], Index: 0}
	}

	copy(rec.SHA1[0:prefix.BinarySize], p.prefixBin[:])
	rec.SHA1[2] |= firstNibble

	for i := 0; i < 34; i++ {
		c := line[1+i]
		v, ok := hexVal(c)
		if !ok {
			return rec, ErrInvalidHexCharacter{Char: c, Index: 1 + i}
		}
		byteIdx := 3 + i/2
		if i%2 == 0 {
			rec.SHA1[byteIdx] = v << 4
		} else {
			rec.SHA1[byteIdx] |= v
		}
	}

	countStr := line[36:]
	count, err := strconv.ParseUint(countStr, 10, 32)
	if err != nil {
		return rec, ErrInvalidCount{Raw: countStr, Err: err}
	}
	rec.Count = uint32(count)

	return rec, nil
}

// hexVal returns the numeric value of an uppercase or lowercase hex
// digit and whether c was a valid hex digit.
func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
