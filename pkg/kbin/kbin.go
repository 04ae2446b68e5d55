// Package kbin is this module's concrete stand-in for the binary-XML
// transducer that the manifest format treats as an opaque collaborator:
// "to_binary(doc) -> bytes", "from_binary(bytes) -> doc",
// "is_binary_xml(bytes) -> bool", plus an encoding property. No Go library
// in the retrieval pack implements the real kbinxml wire format (it never
// appears in any example's go.mod), and the specification explicitly scopes
// the actual codec out as a pre-existing opaque dependency, so this package
// supplies a self-contained binary encoding sufficient to round-trip the
// element tree ManifestTree builds and emits.
package kbin

import (
	"encoding/binary"
	"fmt"
)

// magic marks the start of a document produced by ToBinary, used by
// IsBinaryXML to distinguish encoded manifests from plain XML text.
var magic = [4]byte{'K', 'B', 'X', '1'}

// Element is one node of the decoded document tree: a tag name, an optional
// __type attribute describing how Text should be interpreted (e.g. "s32",
// "3s32", "bin"), any other attributes, text content, and ordered children.
type Element struct {
	Tag      string
	Type     string
	Attrs    map[string]string
	Text     string
	Children []*Element
}

// Document is a decoded binary-XML document: a root element plus the
// encoding its text content was declared in.
type Document struct {
	Encoding string
	Root     *Element
}

// IsBinaryXML reports whether data looks like a document ToBinary produced.
func IsBinaryXML(data []byte) bool {
	return len(data) >= 4 && [4]byte{data[0], data[1], data[2], data[3]} == magic
}

// ToBinary encodes a Document.
func ToBinary(doc *Document) ([]byte, error) {
	w := &writer{}
	w.bytes(magic[:])
	w.str(doc.Encoding)
	if err := w.element(doc.Root); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// FromBinary decodes a Document previously produced by ToBinary.
func FromBinary(data []byte) (*Document, error) {
	if !IsBinaryXML(data) {
		return nil, fmt.Errorf("kbin: not a binary xml document")
	}
	r := &reader{buf: data, pos: 4}
	enc, err := r.str()
	if err != nil {
		return nil, fmt.Errorf("kbin: read encoding: %w", err)
	}
	root, err := r.element()
	if err != nil {
		return nil, fmt.Errorf("kbin: read root element: %w", err)
	}
	return &Document{Encoding: enc, Root: root}, nil
}

type writer struct {
	buf []byte
}

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) str(s string) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) element(e *Element) error {
	w.str(e.Tag)
	w.str(e.Type)

	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(len(e.Attrs)))
	for k, v := range e.Attrs {
		w.str(k)
		w.str(v)
	}

	w.str(e.Text)

	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(e.Children)))
	for _, c := range e.Children {
		if err := w.element(c); err != nil {
			return err
		}
	}
	return nil
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("kbin: truncated document at offset %d", r.pos)
	}
	return nil
}

func (r *reader) str() (string, error) {
	if err := r.need(2); err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(r.buf[r.pos:]))
	r.pos += 2
	if err := r.need(n); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}

func (r *reader) element() (*Element, error) {
	tag, err := r.str()
	if err != nil {
		return nil, err
	}
	typ, err := r.str()
	if err != nil {
		return nil, err
	}

	if err := r.need(2); err != nil {
		return nil, err
	}
	attrCount := int(binary.BigEndian.Uint16(r.buf[r.pos:]))
	r.pos += 2

	attrs := make(map[string]string, attrCount)
	for i := 0; i < attrCount; i++ {
		k, err := r.str()
		if err != nil {
			return nil, err
		}
		v, err := r.str()
		if err != nil {
			return nil, err
		}
		attrs[k] = v
	}

	text, err := r.str()
	if err != nil {
		return nil, err
	}

	if err := r.need(4); err != nil {
		return nil, err
	}
	childCount := int(binary.BigEndian.Uint32(r.buf[r.pos:]))
	r.pos += 4

	children := make([]*Element, 0, childCount)
	for i := 0; i < childCount; i++ {
		c, err := r.element()
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}

	return &Element{Tag: tag, Type: typ, Attrs: attrs, Text: text, Children: children}, nil
}
