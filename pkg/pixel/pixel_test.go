package pixel

import (
	"image"
	"testing"
)

func TestARGB8888RevRoundTrip(t *testing.T) {
	w, h := 2, 2
	payload := []byte{
		10, 20, 30, 255, // pixel 0: B,G,R,A
		40, 50, 60, 255, // pixel 1
		70, 80, 90, 128, // pixel 2
		100, 110, 120, 0, // pixel 3
	}

	img, warned, err := Decode(ARGB8888Rev, payload, w, h)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if warned {
		t.Error("unexpected zero-pad warning for a full-length payload")
	}

	got, err := Encode(ARGB8888Rev, img)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Errorf("byte %d: got %d, want %d", i, got[i], payload[i])
		}
	}
}

func TestARGB8888RevShortPayloadWarns(t *testing.T) {
	_, warned, err := Decode(ARGB8888Rev, []byte{1, 2, 3}, 2, 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !warned {
		t.Error("expected zero-pad warning for a short payload")
	}
}

func TestARGB4444Decode(t *testing.T) {
	// Word 0xF0F0: R=F, G=0, B=F, A=0 -> fully transparent magenta.
	payload := []byte{0xF0, 0xF0}
	img, _, err := Decode(ARGB4444, payload, 1, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	c := img.NRGBAAt(0, 0)
	if c.R != 0xFF || c.G != 0x00 || c.B != 0xFF || c.A != 0x00 {
		t.Errorf("got %+v", c)
	}
}

func TestDXT5NoEncoder(t *testing.T) {
	if _, err := Encode(DXT5, image.NewNRGBA(image.Rect(0, 0, 1, 1))); err == nil {
		t.Error("expected error encoding dxt5")
	}
}

func TestCachable(t *testing.T) {
	if !ARGB8888Rev.Cachable() {
		t.Error("argb8888rev should be cachable")
	}
	if ARGB4444.Cachable() || DXT5.Cachable() {
		t.Error("argb4444 and dxt5 should not be cachable")
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"argb8888rev", "argb4444", "dxt5"} {
		f, err := ParseFormat(name)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", name, err)
		}
		if f.String() != name {
			t.Errorf("round trip: got %q, want %q", f.String(), name)
		}
	}
	if _, err := ParseFormat("bogus"); err == nil {
		t.Error("expected error for unknown format")
	}
}
