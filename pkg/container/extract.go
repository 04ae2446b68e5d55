package container

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/goopsie/ifstool/internal/ifserr"
	"github.com/goopsie/ifstool/internal/progress"
	"github.com/goopsie/ifstool/pkg/kbin"
	"github.com/goopsie/ifstool/pkg/lz77"
	"github.com/goopsie/ifstool/pkg/manifest"
	"github.com/goopsie/ifstool/pkg/pixel"
)

// ExtractOptions configures Extract, matching the CLI surface spec.md §6
// and SPEC_FULL.md §5 describe.
type ExtractOptions struct {
	TexOnly         bool
	ExtractManifest bool
	NoRecurse       bool
	JSONManifest    bool
	Reporter        *progress.Reporter
}

// Extract writes every file in c's tree to outDir, decoding images to PNG
// and recursing into nested `*.ifs` files unless disabled.
func Extract(c *Container, outDir string, opts ExtractOptions) error {
	root := c.Tree.Root
	if opts.TexOnly {
		tex, ok := root.Folders["tex"]
		if !ok {
			return ifserr.New(ifserr.InvalidFilesystemInput, "tree has no tex folder")
		}
		root = tex
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	if err := extractFolder(c, root, outDir, opts); err != nil {
		return err
	}

	if opts.ExtractManifest {
		if err := writeManifestXMLDump(c.Tree, filepath.Join(outDir, "ifs_manifest.xml")); err != nil {
			return err
		}
	}

	if opts.JSONManifest {
		if err := writeJSONManifest(c.Tree, filepath.Join(outDir, "ifs_manifest.json")); err != nil {
			return err
		}
	}

	return nil
}

func extractFolder(c *Container, f *manifest.Folder, outDir string, opts ExtractOptions) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	for _, sub := range f.OrderedFolders() {
		if err := extractFolder(c, sub, filepath.Join(outDir, sub.Name), opts); err != nil {
			return err
		}
	}

	for _, fe := range f.Files {
		if err := extractFile(c, fe, outDir, opts); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(c *Container, fe *manifest.FileEntry, outDir string, opts ExtractOptions) error {
	raw, err := c.PayloadFor(fe)
	if err != nil {
		return err
	}

	destName := fe.Name
	destPath := filepath.Join(outDir, destName)

	if fe.Kind == manifest.FileImage {
		img, err := decodeImagePayload(fe, raw, opts.Reporter)
		if err != nil {
			return err
		}
		if !strings.HasSuffix(strings.ToLower(destPath), ".png") {
			destPath += ".png"
		}
		out, err := os.Create(destPath)
		if err != nil {
			return err
		}
		defer out.Close()
		if err := png.Encode(out, img); err != nil {
			return err
		}
	} else {
		if err := os.WriteFile(destPath, raw, 0o644); err != nil {
			return err
		}
	}

	if !opts.NoRecurse && strings.HasSuffix(strings.ToLower(destName), ".ifs") && fe.Kind != manifest.FileImage {
		nested, err := Load(destPath)
		if err != nil {
			opts.Reporter.Warnf("failed to recurse into %s: %v", destPath, err)
			return nil
		}
		nestedOut := strings.TrimSuffix(destPath, filepath.Ext(destPath))
		if err := Extract(nested, nestedOut, opts); err != nil {
			opts.Reporter.Warnf("failed to extract nested ifs %s: %v", destPath, err)
		}
	}

	return nil
}

func decodeImagePayload(fe *manifest.FileEntry, raw []byte, reporter *progress.Reporter) (*image.NRGBA, error) {
	ext := fe.Image
	payload := raw
	if ext.Compress == "avslz" {
		decoded, warned, err := lz77.DecodeFrame(raw)
		if err != nil {
			return nil, err
		}
		if warned {
			reporter.Warnf("%s: avslz frame length does not match its header; treated as uncompressed", fe.Path)
		}
		payload = decoded
	}

	w, h := ext.ImgSize()
	img, padded, err := pixel.Decode(ext.Format, payload, w, h)
	if err != nil {
		return nil, err
	}
	if padded {
		reporter.Warnf("%s: pixel payload shorter than %dx%d, zero-padded", fe.Path, w, h)
	}
	return img, nil
}

// writeManifestXMLDump renders the already-decoded tree's own Start/Size/Time
// fields as plain XML for inspection. It does not go through manifest.EmitXML
// (which rebuilds a fresh data blob and rewrites each FileEntry's Start/Size
// to match it) since this is a read-only dump of the container's real,
// already-resolved offsets, not a repack.
func writeManifestXMLDump(t *manifest.Tree, path string) error {
	root := dumpFolderElement(t.Root)
	text := dumpElementXML(root, 0)
	return os.WriteFile(path, []byte(text), 0o644)
}

func dumpFolderElement(f *manifest.Folder) *kbin.Element {
	tag := f.PackedName
	if tag == "" {
		tag = "imgfs"
	}
	elem := &kbin.Element{Tag: tag, Type: "s32", Text: fmt.Sprintf("%d", f.Time)}
	for _, sub := range f.OrderedFolders() {
		elem.Children = append(elem.Children, dumpFolderElement(sub))
	}
	for _, fe := range f.Files {
		elem.Children = append(elem.Children, dumpFileElement(fe))
	}
	return elem
}

func dumpFileElement(fe *manifest.FileEntry) *kbin.Element {
	if fe.BackrefIndex != nil {
		return &kbin.Element{
			Tag:      fe.PackedName,
			Children: []*kbin.Element{{Tag: "i", Text: fmt.Sprintf("%d", *fe.BackrefIndex)}},
		}
	}
	return &kbin.Element{
		Tag:  fe.PackedName,
		Type: "3s32",
		Text: fmt.Sprintf("%d %d %d", fe.Start, fe.Size, fe.Time),
	}
}

// dumpElementXML renders a decoded kbin.Element tree as plain, human-readable
// XML text for the -m extraction artifact; it is a dump for
// inspection, not something this module re-parses.
func dumpElementXML(e *kbin.Element, depth int) string {
	var buf bytes.Buffer
	writeElementXML(&buf, e, depth)
	return buf.String()
}

func writeElementXML(buf *bytes.Buffer, e *kbin.Element, depth int) {
	indent := strings.Repeat("  ", depth)
	buf.WriteString(indent)
	buf.WriteByte('<')
	buf.WriteString(e.Tag)
	if e.Type != "" {
		fmt.Fprintf(buf, " __type=%q", e.Type)
	}
	for _, k := range sortedAttrKeys(e.Attrs) {
		fmt.Fprintf(buf, " %s=%q", k, e.Attrs[k])
	}
	buf.WriteByte('>')

	switch {
	case len(e.Children) > 0:
		buf.WriteByte('\n')
		for _, c := range e.Children {
			writeElementXML(buf, c, depth+1)
		}
		buf.WriteString(indent)
	case e.Text != "":
		xml.EscapeText(buf, []byte(e.Text))
	}

	buf.WriteString("</")
	buf.WriteString(e.Tag)
	buf.WriteString(">\n")
}

func sortedAttrKeys(attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func writeJSONManifest(t *manifest.Tree, path string) error {
	data, err := json.MarshalIndent(jsonFolder(t.Root), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

type jsonFileEntry struct {
	Name  string `json:"name"`
	Start uint32 `json:"start"`
	Size  uint32 `json:"size"`
	Time  int64  `json:"time"`
	Image bool   `json:"image,omitempty"`
}

type jsonFolderEntry struct {
	Name    string            `json:"name"`
	Files   []jsonFileEntry   `json:"files"`
	Folders []jsonFolderEntry `json:"folders"`
}

func jsonFolder(f *manifest.Folder) jsonFolderEntry {
	out := jsonFolderEntry{Name: f.Name}
	for _, fe := range f.Files {
		out.Files = append(out.Files, jsonFileEntry{
			Name: fe.Name, Start: fe.Start, Size: fe.Size, Time: fe.Time,
			Image: fe.Kind == manifest.FileImage,
		})
	}
	for _, sub := range f.OrderedFolders() {
		out.Folders = append(out.Folders, jsonFolder(sub))
	}
	return out
}
