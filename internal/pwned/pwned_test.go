package pwned

import "testing"

func TestEqual(t *testing.T) {
	var a, b Pwd
	a.SHA1[0] = 0xAB
	a.Count = 3
	b.SHA1[0] = 0xAB
	b.Count = 3
	if !a.Equal(b) {
		t.Fatalf("expected equal")
	}
	b.Count = 4
	if a.Equal(b) {
		t.Fatalf("expected not equal on differing count")
	}
}
