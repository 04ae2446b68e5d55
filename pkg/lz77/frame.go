package lz77

import (
	"encoding/binary"
	"fmt"
)

// frameHeaderSize is the outer 8-byte header: u32 uncompressed_size, u32
// compressed_size, both big-endian.
const frameHeaderSize = 8

// DecodeFrame unwraps an AVSLZ-framed texture payload. When the payload
// length does not equal compressed_size+8, the payload is treated as
// uncompressed under a historical quirk: the two header u32s are moved to
// the tail of the data instead of the front. The quirk's origin is
// undocumented upstream; it is preserved here and surfaced as a warning via
// warned so callers can log it the way the rest of this codec logs
// recoverable anomalies.
func DecodeFrame(payload []byte) (data []byte, warned bool, err error) {
	if len(payload) < frameHeaderSize {
		return nil, false, fmt.Errorf("lz77: frame payload too short (%d bytes)", len(payload))
	}

	uncompressedSize := binary.BigEndian.Uint32(payload[0:4])
	compressedSize := binary.BigEndian.Uint32(payload[4:8])

	if len(payload) == int(compressedSize)+frameHeaderSize {
		coded := payload[frameHeaderSize:]
		decoded, err := Decode(coded, int(uncompressedSize))
		if err != nil {
			return nil, false, err
		}
		return decoded, false, nil
	}

	body := payload[frameHeaderSize:]
	reshuffled := make([]byte, 0, len(payload))
	reshuffled = append(reshuffled, body...)
	reshuffled = append(reshuffled, payload[:frameHeaderSize]...)
	return reshuffled, true, nil
}

// EncodeFrame produces a well-formed AVSLZ frame: header followed by the
// compressed stream. It never emits the uncompressed quirk form; that shape
// only arises from third-party producers and is handled on read.
func EncodeFrame(data []byte) []byte {
	coded := Encode(data)

	out := make([]byte, 0, frameHeaderSize+len(coded))
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	out = binary.BigEndian.AppendUint32(out, uint32(len(coded)))
	out = append(out, coded...)
	return out
}
