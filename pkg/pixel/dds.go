package pixel

import (
	"encoding/binary"
	"fmt"
	"image"
)

// DDS header layout constants, adapted from the teacher's
// pkg/texture.createDDSHeader: same magic, header size and flag bits, but
// built around a classic DXT5 fourCC rather than a DX10 extension since this
// module only ever needs to wrap BC3 payloads.
const (
	ddsMagic             = 0x20534444 // "DDS "
	ddsHeaderSize        = 124
	ddsFlagsCaps         = 0x1
	ddsFlagsHeight       = 0x2
	ddsFlagsWidth        = 0x4
	ddsFlagsPixelFormat  = 0x1000
	ddsFlagsLinearSize   = 0x80000
	ddsPixelFormatSize   = 32
	ddsFourCCFlag        = 0x4
	ddsSurfaceFlagsTex   = 0x1000
	ddsFourCCDXT5        = 0x35545844 // "DXT5"
	ddsFileHeaderLength  = 4 + ddsHeaderSize
	dxt5BlockSize        = 16
	dxt5BytesPerBlockDim = 4
)

// wrapDXT5 builds a synthetic DDS file around BC3 block data, swapping every
// 16-bit unit from the big-endian words the source data uses to the
// little-endian layout a DDS file expects.
func wrapDXT5(payload []byte, width, height int) []byte {
	header := make([]byte, ddsFileHeaderLength)

	binary.LittleEndian.PutUint32(header[0:4], ddsMagic)

	off := 4
	binary.LittleEndian.PutUint32(header[off:off+4], ddsHeaderSize)
	off += 4
	flags := uint32(ddsFlagsCaps | ddsFlagsHeight | ddsFlagsWidth | ddsFlagsPixelFormat | ddsFlagsLinearSize)
	binary.LittleEndian.PutUint32(header[off:off+4], flags)
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], uint32(height))
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], uint32(width))
	off += 4
	linearSize := uint32(((width + 3) / 4) * ((height + 3) / 4) * dxt5BlockSize)
	binary.LittleEndian.PutUint32(header[off:off+4], linearSize)
	off += 4
	off += 4 // dwDepth
	binary.LittleEndian.PutUint32(header[off:off+4], 1)
	off += 4
	off += 44 // dwReserved1[11]

	binary.LittleEndian.PutUint32(header[off:off+4], ddsPixelFormatSize)
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], ddsFourCCFlag)
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], ddsFourCCDXT5)
	off += 4
	off += 20 // dwRGBBitCount + bit masks

	binary.LittleEndian.PutUint32(header[off:off+4], ddsSurfaceFlagsTex)

	swapped := byteSwap16(payload)

	out := make([]byte, 0, len(header)+len(swapped))
	out = append(out, header...)
	out = append(out, swapped...)
	return out
}

func byteSwap16(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	for i := 0; i+1 < len(out); i += 2 {
		out[i], out[i+1] = out[i+1], out[i]
	}
	return out
}

func decodeDXT5(payload []byte, width, height int) (*image.NRGBA, error) {
	dds := wrapDXT5(payload, width, height)
	blockData := dds[ddsFileHeaderLength:]

	blocksWide := (width + 3) / 4
	blocksHigh := (height + 3) / 4
	needed := blocksWide * blocksHigh * dxt5BlockSize
	if len(blockData) < needed {
		return nil, fmt.Errorf("pixel: dxt5 payload too short: have %d bytes, need %d", len(blockData), needed)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	for by := 0; by < blocksHigh; by++ {
		for bx := 0; bx < blocksWide; bx++ {
			block := blockData[(by*blocksWide+bx)*dxt5BlockSize:]
			pixels := decodeBC3Block(block)

			for y := 0; y < dxt5BytesPerBlockDim; y++ {
				py := by*4 + y
				if py >= height {
					continue
				}
				for x := 0; x < dxt5BytesPerBlockDim; x++ {
					px := bx*4 + x
					if px >= width {
						continue
					}
					c := pixels[y*4+x]
					o := img.PixOffset(px, py)
					img.Pix[o+0] = c[0]
					img.Pix[o+1] = c[1]
					img.Pix[o+2] = c[2]
					img.Pix[o+3] = c[3]
				}
			}
		}
	}

	return img, nil
}

// decodeBC3Block decodes one 16-byte BC3 (DXT5) block into 16 RGBA texels,
// row-major within the 4x4 block.
func decodeBC3Block(block []byte) [16][4]byte {
	alphas := decodeBC3AlphaBlock(block[0:8])
	colors := decodeBC1ColorBlock(block[8:16])

	var out [16][4]byte
	for i := 0; i < 16; i++ {
		out[i] = [4]byte{colors[i][0], colors[i][1], colors[i][2], alphas[i]}
	}
	return out
}

func decodeBC3AlphaBlock(block []byte) [16]byte {
	a0, a1 := block[0], block[1]

	var table [8]byte
	table[0], table[1] = a0, a1
	if a0 > a1 {
		for i := 1; i < 7; i++ {
			table[i+1] = byte((int(a0)*(7-i) + int(a1)*i) / 7)
		}
	} else {
		for i := 1; i < 5; i++ {
			table[i+1] = byte((int(a0)*(5-i) + int(a1)*i) / 5)
		}
		table[6] = 0
		table[7] = 255
	}

	// 48 bits of 3-bit indices, little-endian across the 6 remaining bytes.
	bits := uint64(0)
	for i := 0; i < 6; i++ {
		bits |= uint64(block[2+i]) << (8 * uint(i))
	}

	var out [16]byte
	for i := 0; i < 16; i++ {
		idx := (bits >> (3 * uint(i))) & 0x7
		out[i] = table[idx]
	}
	return out
}

func decodeBC1ColorBlock(block []byte) [16][3]byte {
	c0 := binary.LittleEndian.Uint16(block[0:2])
	c1 := binary.LittleEndian.Uint16(block[2:4])
	indices := binary.LittleEndian.Uint32(block[4:8])

	col0 := rgb565(c0)
	col1 := rgb565(c1)

	var table [4][3]byte
	table[0] = col0
	table[1] = col1
	// BC3's color block always uses 4-color interpolation, unlike BC1's
	// punch-through alpha mode which would switch on c0 <= c1.
	for i := range table[2] {
		table[2][i] = byte((2*int(col0[i]) + int(col1[i])) / 3)
		table[3][i] = byte((int(col0[i]) + 2*int(col1[i])) / 3)
	}

	var out [16][3]byte
	for i := 0; i < 16; i++ {
		idx := (indices >> (2 * uint(i))) & 0x3
		out[i] = table[idx]
	}
	return out
}

func rgb565(v uint16) [3]byte {
	r5 := byte(v >> 11 & 0x1F)
	g6 := byte(v >> 5 & 0x3F)
	b5 := byte(v & 0x1F)
	return [3]byte{
		r5<<3 | r5>>2,
		g6<<2 | g6>>4,
		b5<<3 | b5>>2,
	}
}
