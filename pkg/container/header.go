// Package container implements the top-level IFS codec: header read/write,
// manifest binary XML integration, and data blob assembly, grounded on the
// teacher's pkg/archive/header.go read/validate/write shape (the IFS header
// is 36 bytes carrying an embedded manifest MD5, not a 16-byte zstd frame
// header, but the validate-then-read and placeholder-then-backpatch write
// idioms carry over unchanged).
package container

import (
	"crypto/md5"
	"time"

	"github.com/goopsie/ifstool/internal/ifserr"
	"github.com/goopsie/ifstool/pkg/bytecursor"
)

// signature is the fixed 4-byte magic every valid IFS file starts with,
// serialized big-endian as 89 8F AD 6C (spec.md §8 scenario 3's concrete
// byte dump; spec.md §4.8's table lists the same magic as 0x6CAD8F89, the
// little-endian reading of these same four bytes).
const signature = 0x898FAD6C

// headerSize is the fixed header length when version <= 1 (no manifest MD5).
const headerSize = 20

// headerSizeWithMD5 is the fixed header length when version > 1.
const headerSizeWithMD5 = 36

// DefaultVersion is the file version this module writes.
const DefaultVersion = 3

// Header is the decoded 20- or 36-byte IFS container header.
type Header struct {
	Version      uint16
	CreationTime time.Time
	TreeSize     uint32
	ManifestEnd  uint32
	ManifestMD5  [16]byte // only meaningful when Version > 1
}

func readHeader(buf []byte) (Header, error) {
	r := bytecursor.NewReader(buf)

	sig, err := r.GetU32()
	if err != nil {
		return Header{}, ifserr.Wrap(ifserr.InvalidContainer, "read signature", err)
	}
	if sig != signature {
		return Header{}, ifserr.New(ifserr.InvalidContainer, "bad signature")
	}

	version, err := r.GetU16()
	if err != nil {
		return Header{}, ifserr.Wrap(ifserr.InvalidContainer, "read version", err)
	}
	versionCheck, err := r.GetU16()
	if err != nil {
		return Header{}, ifserr.Wrap(ifserr.InvalidContainer, "read version check", err)
	}
	if versionCheck != version^0xFFFF {
		return Header{}, ifserr.New(ifserr.InvalidContainer, "version XOR check failed")
	}

	creation, err := r.GetU32()
	if err != nil {
		return Header{}, ifserr.Wrap(ifserr.InvalidContainer, "read creation time", err)
	}
	treeSize, err := r.GetU32()
	if err != nil {
		return Header{}, ifserr.Wrap(ifserr.InvalidContainer, "read tree size", err)
	}
	manifestEnd, err := r.GetU32()
	if err != nil {
		return Header{}, ifserr.Wrap(ifserr.InvalidContainer, "read manifest end", err)
	}

	h := Header{
		Version:      version,
		CreationTime: time.Unix(int64(creation), 0).UTC(),
		TreeSize:     treeSize,
		ManifestEnd:  manifestEnd,
	}

	if version > 1 {
		md5Bytes, err := r.GetBytes(16)
		if err != nil {
			return Header{}, ifserr.Wrap(ifserr.InvalidContainer, "read manifest md5", err)
		}
		copy(h.ManifestMD5[:], md5Bytes)
	}

	return h, nil
}

// writeHeader emits the fixed-size header. manifestEnd and manifestMD5 must
// already be final; callers compute them from the encoded manifest bytes
// before calling this.
func writeHeader(h Header) []byte {
	w := bytecursor.NewWriter()
	w.AppendU32(signature)
	w.AppendU16(h.Version)
	w.AppendU16(h.Version ^ 0xFFFF)
	w.AppendU32(uint32(h.CreationTime.Unix()))
	w.AppendU32(h.TreeSize)
	w.AppendU32(h.ManifestEnd)
	if h.Version > 1 {
		w.AppendBytes(h.ManifestMD5[:])
	}
	return w.Bytes()
}

func headerSizeFor(version uint16) int {
	if version > 1 {
		return headerSizeWithMD5
	}
	return headerSize
}

func md5Sum(b []byte) [16]byte {
	return md5.Sum(b)
}
