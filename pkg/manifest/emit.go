package manifest

import (
	"fmt"
	"strconv"

	"github.com/goopsie/ifstool/pkg/kbin"
)

// PayloadLoader returns the bytes that should be appended to the data blob
// for a file entry (already AVSLZ-framed for compressed image entries; the
// caller is responsible for that transformation before this is invoked).
type PayloadLoader func(fe *FileEntry) ([]byte, error)

// EmitXML renders a Tree into a kbin.Document and the concatenated,
// 16-byte-padded data blob it references. The document's `_info_` block is
// left with placeholder md5/size children; call SetDataBlobInfo once the
// blob is final and before the document is encoded to binary XML.
func EmitXML(t *Tree, load PayloadLoader) (*kbin.Document, []byte, error) {
	var blob []byte

	rootElem, err := emitFolder(t.Root, &blob, load)
	if err != nil {
		return nil, nil, err
	}

	prefix := make([]*kbin.Element, 0, len(t.Supers)+1)
	prefix = append(prefix, &kbin.Element{
		Tag: "_info_",
		Children: []*kbin.Element{
			{Tag: "md5", Type: "bin"},
			{Tag: "size", Type: "u32"},
		},
	})
	for _, s := range t.Supers {
		se := &kbin.Element{Tag: "_super_", Text: s.Path}
		if s.MD5 != "" {
			se.Children = []*kbin.Element{{Tag: "md5", Text: s.MD5}}
		}
		prefix = append(prefix, se)
	}
	rootElem.Children = append(prefix, rootElem.Children...)

	encoding := t.Encoding
	if encoding == "" {
		encoding = "utf-8"
	}

	return &kbin.Document{Encoding: encoding, Root: rootElem}, blob, nil
}

// SetDataBlobInfo fills in the `_info_` block's md5/size children once the
// data blob is finalized.
func SetDataBlobInfo(doc *kbin.Document, md5Hex string, size uint32) {
	for _, c := range doc.Root.Children {
		if c.Tag != "_info_" {
			continue
		}
		for _, gc := range c.Children {
			switch gc.Tag {
			case "md5":
				gc.Text = md5Hex
			case "size":
				gc.Text = strconv.FormatUint(uint64(size), 10)
			}
		}
	}
}

func emitFolder(f *Folder, blob *[]byte, load PayloadLoader) (*kbin.Element, error) {
	tag := f.PackedName
	if tag == "" {
		tag = "imgfs"
	}

	elem := &kbin.Element{Tag: tag, Type: "s32", Text: strconv.FormatInt(f.Time, 10)}

	for _, sub := range f.OrderedFolders() {
		childElem, err := emitFolder(sub, blob, load)
		if err != nil {
			return nil, err
		}
		elem.Children = append(elem.Children, childElem)
	}

	for _, fe := range f.Files {
		child, err := emitFile(fe, blob, load)
		if err != nil {
			return nil, err
		}
		elem.Children = append(elem.Children, child)
	}

	return elem, nil
}

func emitFile(fe *FileEntry, blob *[]byte, load PayloadLoader) (*kbin.Element, error) {
	if fe.BackrefIndex != nil {
		return &kbin.Element{
			Tag:      fe.PackedName,
			Children: []*kbin.Element{{Tag: "i", Text: strconv.Itoa(*fe.BackrefIndex)}},
		}, nil
	}

	payload, err := load(fe)
	if err != nil {
		return nil, fmt.Errorf("load payload for %s: %w", fe.Path, err)
	}

	offset := uint32(len(*blob))
	*blob = append(*blob, payload...)
	if pad := (16 - len(*blob)%16) % 16; pad != 0 {
		*blob = append(*blob, make([]byte, pad)...)
	}

	fe.Start = offset
	fe.Size = uint32(len(payload))

	text := fmt.Sprintf("%d %d %d", fe.Start, fe.Size, fe.Time)
	return &kbin.Element{Tag: fe.PackedName, Type: "3s32", Text: text}, nil
}
