package container

import (
	"crypto/md5"
	"encoding/hex"
	"os"

	"github.com/goopsie/ifstool/internal/ifserr"
	"github.com/goopsie/ifstool/pkg/kbin"
	"github.com/goopsie/ifstool/pkg/manifest"
)

// Container is a fully loaded IFS file: its header, decoded tree, the raw
// data blob it references, and the manifest's own MD5 for super validation.
type Container struct {
	Header      Header
	Tree        *manifest.Tree
	Data        []byte
	ManifestMD5 string // lowercase hex
	Path        string
	Supers      []*Container // populated by ResolveSupers
}

// Load reads path, validates the header, decodes the manifest, slices the
// data blob, and runs tree_complete (MD5 deobfuscation, texture upgrade,
// `_cache` pruning).
func Load(path string) (*Container, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadBytes(buf, path)
}

// LoadBytes is Load over an in-memory buffer; path is recorded as the
// container's Path.
func LoadBytes(buf []byte, path string) (*Container, error) {
	header, err := readHeader(buf)
	if err != nil {
		return nil, err
	}

	start := headerSizeFor(header.Version)
	if int(header.ManifestEnd) > len(buf) || int(header.ManifestEnd) < start {
		return nil, ifserr.New(ifserr.InvalidContainer, "manifest_end out of range")
	}
	manifestBin := buf[start:header.ManifestEnd]
	sum := md5.Sum(manifestBin)
	manifestMD5 := hex.EncodeToString(sum[:])

	doc, err := kbin.FromBinary(manifestBin)
	if err != nil {
		return nil, ifserr.Wrap(ifserr.BadBinaryXML, "decode manifest", err)
	}

	tree, err := manifest.BuildFromXML(doc)
	if err != nil {
		return nil, err
	}

	data := buf[header.ManifestEnd:]

	c := &Container{Header: header, Tree: tree, Data: data, ManifestMD5: manifestMD5, Path: path}

	manifest.SetPayloadReader(func(fe *manifest.FileEntry) ([]byte, error) {
		return c.readEntry(fe)
	})
	if err := manifest.Complete(tree); err != nil {
		return nil, err
	}

	return c, nil
}

// readEntry returns a FileEntry's raw (still AVSLZ-framed, if compressed)
// bytes from this container's data blob.
func (c *Container) readEntry(fe *manifest.FileEntry) ([]byte, error) {
	start, size := int(fe.Start), int(fe.Size)
	if start < 0 || size < 0 || start+size > len(c.Data) {
		return nil, ifserr.New(ifserr.TruncatedPayload, fe.Path)
	}
	return c.Data[start : start+size], nil
}
