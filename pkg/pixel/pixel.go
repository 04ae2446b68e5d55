// Package pixel decodes (and, where the format allows it, encodes) the
// texture pixel formats carried inside IFS data blobs. The DXT5 path is
// grounded on the teacher's pkg/texture DDS-header construction
// (createDDSHeader/calculateLinearSize); there is no ecosystem DDS/BC
// decoder in the retrieval pack, so the block decompressor itself is
// hand-rolled here.
package pixel

import (
	"fmt"
	"image"
)

// Format identifies a pixel payload encoding.
type Format int

const (
	// ARGB8888Rev is raw 4-byte BGRA samples, row-major, no padding.
	ARGB8888Rev Format = iota
	// ARGB4444 is 2-byte big-endian RGBA4 samples, decode-only.
	ARGB4444
	// DXT5 is BC3 block-compressed data, decode-only.
	DXT5
)

func (f Format) String() string {
	switch f {
	case ARGB8888Rev:
		return "argb8888rev"
	case ARGB4444:
		return "argb4444"
	case DXT5:
		return "dxt5"
	default:
		return fmt.Sprintf("unknown(%d)", f)
	}
}

// ParseFormat maps a manifest format attribute to a Format.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "argb8888rev":
		return ARGB8888Rev, nil
	case "argb4444":
		return ARGB4444, nil
	case "dxt5":
		return DXT5, nil
	default:
		return 0, fmt.Errorf("pixel: unsupported format %q", name)
	}
}

// Cachable reports whether a format has an encoder and can therefore be
// reused, unchanged, in a repacked cache entry.
func (f Format) Cachable() bool {
	return f == ARGB8888Rev
}

// Decode converts a raw pixel payload of the given format into an RGBA
// image. decodeWarning is set when the payload needed zero-padding.
func Decode(format Format, payload []byte, width, height int) (img *image.NRGBA, decodeWarning bool, err error) {
	switch format {
	case ARGB8888Rev:
		return decodeARGB8888Rev(payload, width, height)
	case ARGB4444:
		img, err := decodeARGB4444(payload, width, height)
		return img, false, err
	case DXT5:
		img, err := decodeDXT5(payload, width, height)
		return img, false, err
	default:
		return nil, false, fmt.Errorf("pixel: unsupported format %v", format)
	}
}

// Encode converts an RGBA image back into a raw pixel payload. Only
// ARGB8888Rev has an encoder; callers attempting to encode any other format
// should rewrite the manifest's format attribute to "argb8888rev" first (see
// TextureFolder's repack path), matching the lossy-by-design behavior this
// codec preserves from its reference implementation.
func Encode(format Format, img *image.NRGBA) ([]byte, error) {
	if format != ARGB8888Rev {
		return nil, fmt.Errorf("pixel: format %v has no encoder", format)
	}
	return encodeARGB8888Rev(img), nil
}

func decodeARGB8888Rev(payload []byte, width, height int) (*image.NRGBA, bool, error) {
	want := width * height * 4
	warned := false
	if len(payload) < want {
		padded := make([]byte, want)
		copy(padded, payload)
		payload = padded
		warned = true
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		b := payload[i*4+0]
		g := payload[i*4+1]
		r := payload[i*4+2]
		a := payload[i*4+3]
		img.Pix[i*4+0] = r
		img.Pix[i*4+1] = g
		img.Pix[i*4+2] = b
		img.Pix[i*4+3] = a
	}
	return img, warned, nil
}

func encodeARGB8888Rev(img *image.NRGBA) []byte {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		r := img.Pix[i*4+0]
		g := img.Pix[i*4+1]
		b := img.Pix[i*4+2]
		a := img.Pix[i*4+3]
		out[i*4+0] = b
		out[i*4+1] = g
		out[i*4+2] = r
		out[i*4+3] = a
	}
	return out
}

func decodeARGB4444(payload []byte, width, height int) (*image.NRGBA, error) {
	want := width * height * 2
	if len(payload) < want {
		padded := make([]byte, want)
		copy(padded, payload)
		payload = padded
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		word := uint16(payload[i*2])<<8 | uint16(payload[i*2+1])

		r4 := byte((word >> 12) & 0xF)
		g4 := byte((word >> 8) & 0xF)
		b4 := byte((word >> 4) & 0xF)
		a4 := byte(word & 0xF)

		expand := func(n byte) byte { return n | n<<4 }

		// Reordered RGBA -> BGRA to match the reference decoder.
		img.Pix[i*4+0] = expand(b4)
		img.Pix[i*4+1] = expand(g4)
		img.Pix[i*4+2] = expand(r4)
		img.Pix[i*4+3] = expand(a4)
	}
	return img, nil
}
