package parser

import (
	"encoding/hex"
	"testing"

	"github.com/rpcpool/hibp-store/internal/prefix"
)

func TestParseRoundTrip(t *testing.T) {
	p := From(prefix.MustNew(0x21BD4))
	rec, err := p.Parse("004DDDC80AE4683948C5A1C5903584D8087:13")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantHex := "21BD4004DDDC80AE4683948C5A1C5903584D8087"
	want, err := hex.DecodeString(wantHex)
	if err != nil {
		t.Fatalf("bad test fixture: %v", err)
	}
	if hex.EncodeToString(rec.SHA1[:]) != hex.EncodeToString(want) {
		t.Fatalf("sha1 = %x, want %x", rec.SHA1, want)
	}
	if rec.Count != 13 {
		t.Fatalf("count = %d, want 13", rec.Count)
	}
}

func TestParseInvalidStringLength(t *testing.T) {
	p := From(prefix.MustNew(0))
	_, err := p.Parse("too short")
	if _, ok := err.(ErrInvalidStringLength); !ok {
		t.Fatalf("expected ErrInvalidStringLength, got %T (%v)", err, err)
	}
}

func TestParseInvalidString(t *testing.T) {
	p := From(prefix.MustNew(0))
	line := "004DDDC80AE4683948C5A1C5903584D8087X13" // ':' replaced with 'X'
	_, err := p.Parse(line)
	if _, ok := err.(ErrInvalidString); !ok {
		t.Fatalf("expected ErrInvalidString, got %T (%v)", err, err)
	}
}

func TestParseInvalidHexCharacter(t *testing.T) {
	p := From(prefix.MustNew(0))
	line := "G04DDDC80AE4683948C5A1C5903584D8087:13"
	_, err := p.Parse(line)
	herr, ok := err.(ErrInvalidHexCharacter)
	if !ok {
		t.Fatalf("expected ErrInvalidHexCharacter, got %T (%v)", err, err)
	}
	if herr.Index != 0 || herr.Char != 'G' {
		t.Fatalf("unexpected error detail: %+v", herr)
	}
}

func TestParseInvalidCount(t *testing.T) {
	p := From(prefix.MustNew(0))
	line := "004DDDC80AE4683948C5A1C5903584D8087:-1"
	_, err := p.Parse(line)
	if _, ok := err.(ErrInvalidCount); !ok {
		t.Fatalf("expected ErrInvalidCount, got %T (%v)", err, err)
	}
}

func TestParsePrefixInvariant(t *testing.T) {
	pfx := prefix.MustNew(0x00ABC)
	p := From(pfx)
	rec, err := p.Parse("104DDDC80AE4683948C5A1C5903584D8087:0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got [3]byte
	copy(got[:], rec.SHA1[:3])
	var want [3]byte
	pfx.PutBinary(want[:])
	want[2] |= 0x01 // line's first hex character
	if got != want {
		t.Fatalf("sha1 prefix bytes = %x, want %x", got, want)
	}
}
