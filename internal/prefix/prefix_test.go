package prefix

import "testing"

func TestNewBounds(t *testing.T) {
	if _, ok := New(0); !ok {
		t.Fatalf("expected 0 to be valid")
	}
	if _, ok := New(Max); !ok {
		t.Fatalf("expected Max to be valid")
	}
	if _, ok := New(Max + 1); ok {
		t.Fatalf("expected Max+1 to be invalid")
	}
}

func TestNextAtMax(t *testing.T) {
	p := MustNew(Max)
	if _, ok := p.Next(); ok {
		t.Fatalf("expected Next() at Max to be none")
	}
}

func TestForward(t *testing.T) {
	p := MustNew(0x21BD0)
	got, ok := p.Forward(4)
	if !ok || got != MustNew(0x21BD4) {
		t.Fatalf("forward(4) = %v, %v; want 0x21BD4, true", got, ok)
	}
	_, ok = p.Forward(Max)
	if ok {
		t.Fatalf("expected overflow")
	}
}

func TestString(t *testing.T) {
	p := MustNew(0x21BD4)
	if got := p.String(); got != "21BD4" {
		t.Fatalf("String() = %q, want %q", got, "21BD4")
	}
	p = MustNew(0xAB)
	if got := p.String(); got != "000AB" {
		t.Fatalf("String() = %q, want %q", got, "000AB")
	}
}

func TestPutBinary(t *testing.T) {
	p := MustNew(0x21BD4)
	buf := make([]byte, 20)
	p.PutBinary(buf)
	want := []byte{0x21, 0xBD, 0x40}
	for i, b := range want {
		if buf[i] != b {
			t.Fatalf("buf[%d] = %#x, want %#x", i, buf[i], b)
		}
	}
	if buf[2]&0x0F != 0 {
		t.Fatalf("low nibble of byte 2 must be zero, got %#x", buf[2])
	}
}
