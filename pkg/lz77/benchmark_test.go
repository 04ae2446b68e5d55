package lz77

import "testing"

// BenchmarkEncode benchmarks the AVSLZ encoder over representative inputs.
func BenchmarkEncode(b *testing.B) {
	text := make([]byte, 64*1024)
	for i := range text {
		text[i] = byte("the quick brown fox jumps over the lazy dog"[i%43])
	}
	random := make([]byte, 64*1024)
	for i := range random {
		random[i] = byte(i * 2654435761 >> 13)
	}

	b.Run("Repetitive", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			Encode(text)
		}
	})

	b.Run("Incompressible", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			Encode(random)
		}
	})
}

// BenchmarkDecode benchmarks the AVSLZ decoder.
func BenchmarkDecode(b *testing.B) {
	text := make([]byte, 64*1024)
	for i := range text {
		text[i] = byte("the quick brown fox jumps over the lazy dog"[i%43])
	}
	coded := Encode(text)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(coded, len(text)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFrame benchmarks the outer 8-byte frame wrap/unwrap.
func BenchmarkFrame(b *testing.B) {
	text := make([]byte, 64*1024)
	for i := range text {
		text[i] = byte("the quick brown fox jumps over the lazy dog"[i%43])
	}

	b.Run("EncodeFrame", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			EncodeFrame(text)
		}
	})

	frame := EncodeFrame(text)
	b.Run("DecodeFrame", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, _, err := DecodeFrame(frame); err != nil {
				b.Fatal(err)
			}
		}
	})
}
