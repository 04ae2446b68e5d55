package lz77

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := map[string][]byte{
		"empty":      {},
		"short":      []byte("hi"),
		"run":        bytes.Repeat([]byte{0x00}, 16),
		"spotcheck":  append(bytes.Repeat([]byte{0x00}, 16), 0x01),
		"text":       []byte("the quick brown fox jumps over the lazy dog, the quick brown fox"),
		"incompress": randomBytes(2048, 1),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			coded := Encode(data)
			got, err := Decode(coded, len(data))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("round trip mismatch: got %v, want %v", got, data)
			}
		})
	}
}

func TestDummyEncoderOracle(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	coded := EncodeLiteralsOnly(data)
	got, err := Decode(coded, len(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("dummy round trip mismatch: got %q, want %q", got, data)
	}
}

func TestSpotCheckFlagByte(t *testing.T) {
	data := append(bytes.Repeat([]byte{0x00}, 16), 0x01)
	coded := Encode(data)
	if len(coded) == 0 {
		t.Fatal("empty coded stream")
	}
	// One literal for the first zero, one back-reference (distance 1,
	// length 15) for the rest of the run, one literal for 0x01: flag bits
	// 1,0,1 read LSB-first.
	if coded[0] != 0x05 {
		t.Errorf("first flag byte = %#x, want 0x05", coded[0])
	}
	// This input is designed to compress well; flag a regression if the
	// framed size stops being smaller than the input plus its frame header.
	if len(coded)+8 >= len(data)+8 {
		t.Errorf("framed length %d for %d-byte input, want below %d", len(coded)+8, len(data), len(data)+8)
	}
	got, err := Decode(coded, len(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("mismatch: got %v, want %v", got, data)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	data := []byte("texture payload bytes go here, repeated repeated repeated")
	frame := EncodeFrame(data)

	got, warned, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if warned {
		t.Error("unexpected quirk warning for a well-formed frame")
	}
	if !bytes.Equal(got, data) {
		t.Errorf("mismatch: got %q, want %q", got, data)
	}
}

func TestFrameQuirkFallback(t *testing.T) {
	// A payload whose length does not match compressed_size+8 triggers the
	// "uncompressed, headers moved to tail" historical quirk.
	payload := []byte{0, 0, 0, 5, 0, 0, 0, 99, 'h', 'e', 'l', 'l', 'o'}
	data, warned, err := DecodeFrame(payload)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if !warned {
		t.Error("expected quirk warning")
	}
	want := []byte{'h', 'e', 'l', 'l', 'o', 0, 0, 0, 5, 0, 0, 0, 99}
	if !bytes.Equal(data, want) {
		t.Errorf("mismatch: got %v, want %v", data, want)
	}
}

func randomBytes(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	r.Read(b)
	return b
}
