// Package bytecursor provides a big-endian fixed-width reader/writer over a
// byte buffer, in the spirit of the teacher's archive.Header
// MarshalBinary/UnmarshalBinary pair, but for the irregular-width integer
// runs the IFS manifest and container header actually contain.
package bytecursor

import (
	"encoding/binary"
	"fmt"
)

// Reader walks a fixed buffer, reading big-endian fields without bounds
// validation beyond a plain out-of-range error; callers own semantic checks.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential reads starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Seek moves the read cursor to an absolute offset.
func (r *Reader) Seek(pos int) { r.pos = pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("bytecursor: need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
	}
	return nil
}

// GetU16 reads a big-endian uint16 and advances the cursor.
func (r *Reader) GetU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// GetU32 reads a big-endian uint32 and advances the cursor.
func (r *Reader) GetU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// GetBytes reads n raw bytes and advances the cursor.
func (r *Reader) GetBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// Writer accumulates big-endian fields into an append-only buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// AppendU16 appends a big-endian uint16.
func (w *Writer) AppendU16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

// AppendU32 appends a big-endian uint32.
func (w *Writer) AppendU32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// AppendBytes appends raw bytes verbatim.
func (w *Writer) AppendBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// AppendZero appends n zero bytes, used for the data blob's 16-byte padding.
func (w *Writer) AppendZero(n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}
