// MD5Folder/TexFolder/AfpFolder specialization: the folder kind that keeps
// its on-disk filenames as MD5 hashes of the human-readable name, recovered
// from a sibling texturelist info file, grounded on
// original_source/ifstools/handlers/{MD5Folder,TexFolder,AfpFolder}.py.
package manifest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goopsie/ifstool/internal/ifserr"
	"github.com/goopsie/ifstool/pkg/kbin"
	"github.com/goopsie/ifstool/pkg/namecodec"
	"github.com/goopsie/ifstool/pkg/pixel"
)

// md5Tag returns the element tag a folder kind's info XML uses to name its
// children: the tex folder collects names from <image>, the afp folder from
// <afp>.
func (k FolderKind) md5Tag() string {
	switch k {
	case FolderTex:
		return "image"
	case FolderAfp:
		return "afp"
	default:
		return ""
	}
}

// Complete runs tree_complete: a single bottom-up pass that performs MD5
// deobfuscation, texture upgrade, and `_cache` pruning. It is the only phase
// permitted to mutate the tree after BuildFromXML or BuildFromFilesystem.
func Complete(t *Tree) error {
	return completeFolder(t.Root, t.Encoding)
}

func completeFolder(f *Folder, encoding string) error {
	f.RemoveFolder("_cache")

	for _, sub := range f.OrderedFolders() {
		if err := completeFolder(sub, encoding); err != nil {
			return err
		}
	}

	switch f.Kind {
	case FolderTex:
		return applyTexFolder(f, encoding)
	case FolderAfp:
		return applyAfpFolder(f, encoding)
	}
	return nil
}

// applyTexFolder implements TexFolder.tree_complete: MD5 rename driven by
// the texturelist info XML, then upgrading named image files to ImageFile.
func applyTexFolder(f *Folder, encoding string) error {
	info, infoFile, err := loadFolderInfo(f)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}

	compress := info.Attrs["compress"]

	if err := applyMD5Rename(f, info, FolderTex.md5Tag(), encoding); err != nil {
		return err
	}

	_, err = upgradeImagesFromInfo(f, info, compress, nil)
	_ = infoFile
	return err
}

// upgradeImagesFromInfo is the image-upgrade half of TextureFolder's
// tree_complete, shared by the unpack direction (applyTexFolder, run after
// MD5 rename so names already match) and the repack direction
// (UpgradeImagesForPack, run before any rename since disk-side names are
// already human names). When rewrite is non-nil, any texture whose format
// has no encoder has its format attribute rewritten to argb8888rev in
// place and rewrite is invoked to signal the info document changed, per
// spec.md §4.6's "any format not in the cachable set is rewritten... before
// being re-encoded to binary XML".
func upgradeImagesFromInfo(f *Folder, info *kbin.Element, compress string, rewrite func()) (mutated bool, err error) {
	for _, texElem := range info.Children {
		if texElem.Tag != "texture" {
			continue
		}
		format, err := pixel.ParseFormat(texElem.Attrs["format"])
		if err != nil {
			return mutated, ifserr.Wrap(ifserr.UnsupportedFormat, "texture format", err)
		}

		if rewrite != nil && !format.Cachable() {
			texElem.Attrs["format"] = pixel.ARGB8888Rev.String()
			format = pixel.ARGB8888Rev
			mutated = true
		}

		for _, imgElem := range texElem.Children {
			if imgElem.Tag != "image" {
				continue
			}
			name := imgElem.Attrs["name"]
			fe, _ := f.FileByName(name)
			if fe == nil {
				// disk-side layout: Extract writes decoded images as name + ".png"
				fe, _ = f.FileByName(name + ".png")
			}
			if fe == nil {
				continue
			}
			upgradeToImage(fe, format, compress, imgElem)
		}
	}

	if mutated && rewrite != nil {
		rewrite()
	}
	return mutated, nil
}

// UpgradeImagesForPack walks a disk-built Tree and applies TextureFolder's
// image-upgrade pass ahead of repack: disk-side file names are the
// texturelist's human names (either bare or with the ".png" extension
// Extract adds), so this skips the MD5-rename half (left to PrepareForPack)
// and goes straight to reclassifying each named file as an ImageFile. It returns the re-encoded binary XML bytes for every info file
// whose format attribute had to be rewritten to argb8888rev, keyed by that
// info FileEntry, for the container writer to substitute in place of the
// info file's on-disk bytes when assembling the data blob.
func UpgradeImagesForPack(t *Tree) (map[*FileEntry][]byte, error) {
	overrides := make(map[*FileEntry][]byte)
	if err := upgradeFolderForPack(t.Root, overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}

func upgradeFolderForPack(f *Folder, overrides map[*FileEntry][]byte) error {
	for _, sub := range f.OrderedFolders() {
		if err := upgradeFolderForPack(sub, overrides); err != nil {
			return err
		}
	}
	if f.Kind != FolderTex {
		return nil
	}

	info, infoFile, err := loadFolderInfo(f)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}

	compress := info.Attrs["compress"]
	mutated, err := upgradeImagesFromInfo(f, info, compress, func() {})
	if err != nil {
		return err
	}
	if mutated && infoFile != nil {
		data, err := kbin.ToBinary(&kbin.Document{Encoding: "utf-8", Root: info})
		if err != nil {
			return err
		}
		overrides[infoFile] = data
	}
	return nil
}

// applyAfpFolder implements AfpFolder.tree_complete: the same MD5 rename
// keyed on <afp> elements, plus synthesizing `{name}_shapeN` entries in a
// sibling `geo` folder. The geo folder is looked up only as a direct child
// literally named `geo` of this folder's parent; no other location is
// searched.
func applyAfpFolder(f *Folder, encoding string) error {
	info, _, err := loadFolderInfo(f)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}

	if err := applyMD5Rename(f, info, FolderAfp.md5Tag(), encoding); err != nil {
		return err
	}

	if f.Parent == nil {
		return nil
	}
	geo, ok := f.Parent.Folders["geo"]
	if !ok {
		return nil
	}

	for _, afpElem := range info.Children {
		if afpElem.Tag != "afp" {
			continue
		}
		name := afpElem.Attrs["name"]
		if name == "" {
			continue
		}
		for n := 0; ; n++ {
			shapeName := fmt.Sprintf("%s_shape%d", name, n)
			hash := md5Hex(shapeName, encoding)
			fe, _ := geo.FileByName(hash)
			if fe == nil {
				break
			}
			fe.Name = shapeName
		}
	}

	return nil
}

// PrepareForPack runs the inverse of Complete's MD5 rename over a
// disk-walked Tree: tex/afp folders get their human-named entries'
// PackedName set to the MD5 hex of that name, so EmitXML writes the
// obfuscated tag the reference runtime expects. It has no original_source
// method body to ground against (the retained snapshot only covers the
// unpack direction); it is a direct inverse of applyMD5Rename.
func PrepareForPack(t *Tree) error {
	return prepareFolderForPack(t.Root, t.Encoding)
}

func prepareFolderForPack(f *Folder, encoding string) error {
	for _, sub := range f.OrderedFolders() {
		if err := prepareFolderForPack(sub, encoding); err != nil {
			return err
		}
	}

	switch f.Kind {
	case FolderTex, FolderAfp:
		info, _, err := loadFolderInfo(f)
		if err != nil {
			return err
		}
		if info == nil {
			return nil
		}
		for _, name := range collectNames(info, f.Kind.md5Tag()) {
			base := name
			for _, fe := range f.Files {
				stem := strings.TrimSuffix(fe.Name, extOf(fe.Name))
				if fe.Name == name || stem == base {
					fe.PackedName = namecodec.Sanitize(md5Hex(name, encoding))
				}
			}
		}
	}
	return nil
}

// loadFolderInfo finds the folder's single `.xml` info file, decodes it as
// binary XML, and returns its root element.
func loadFolderInfo(f *Folder) (*kbin.Element, *FileEntry, error) {
	for _, fe := range f.Files {
		if strings.HasSuffix(fe.Name, ".xml") {
			data, err := readFileEntryPayload(fe)
			if err != nil {
				return nil, nil, err
			}
			doc, err := kbin.FromBinary(data)
			if err != nil {
				return nil, nil, ifserr.Wrap(ifserr.BadBinaryXML, "texturelist info file", err)
			}
			return doc.Root, fe, nil
		}
	}
	return nil, nil, nil
}

// ifsPayloadReader is installed by the container package before calling
// Complete; it has no meaning for a disk-walked tree.
var ifsPayloadReader func(fe *FileEntry) ([]byte, error)

// readFileEntryPayload fetches a FileEntry's raw bytes: straight off disk
// for a filesystem-built tree, or via the installed container hook for an
// IFS-built one.
func readFileEntryPayload(fe *FileEntry) ([]byte, error) {
	if !fe.FromIFS {
		data, err := os.ReadFile(fe.BasePath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fe.BasePath, err)
		}
		return data, nil
	}
	if ifsPayloadReader == nil {
		return nil, ifserr.New(ifserr.CacheMiss, "no payload reader installed")
	}
	return ifsPayloadReader(fe)
}

// SetPayloadReader installs the function used to fetch an IFS-sourced
// FileEntry's raw bytes during tree_complete (e.g. for reading a
// texturelist info file out of the data blob). The container package calls
// this before Complete.
func SetPayloadReader(fn func(fe *FileEntry) ([]byte, error)) {
	ifsPayloadReader = fn
}

func applyMD5Rename(f *Folder, info *kbin.Element, tag, encoding string) error {
	names := collectNames(info, tag)
	for _, name := range names {
		hash := md5Hex(name, encoding)

		if fe, _ := f.FileByName(hash); fe != nil {
			fe.Name = name
			continue
		}
		if fe, _ := f.FileByName(name); fe != nil {
			fe.PackedName = namecodec.Sanitize(hash)
			continue
		}
		// disk-side layout with an extension (png, etc.)
		for _, fe := range f.Files {
			base := strings.TrimSuffix(fe.Name, extOf(fe.Name))
			if base == name {
				fe.PackedName = namecodec.Sanitize(hash)
				fe.Name = name
				break
			}
		}
	}
	return nil
}

func collectNames(info *kbin.Element, tag string) []string {
	var names []string
	var walk func(e *kbin.Element)
	walk = func(e *kbin.Element) {
		if e.Tag == tag {
			if n := e.Attrs["name"]; n != "" {
				names = append(names, n)
			}
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(info)
	return names
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

func md5Hex(name, encoding string) string {
	// The declared encoding only matters for names containing non-ASCII
	// characters; UTF-8 is assumed here since it is the only encoding this
	// module's own binary-XML codec produces.
	_ = encoding
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}

// upgradeToImage performs the tagged-variant swap: FileGeneric -> FileImage.
// Geometry comes from the `imgrect`/`uvrect` child elements, each a
// space-separated "x0 x1 y0 y1" quad of doubled pixel coordinates, not from
// attributes on imgElem itself.
func upgradeToImage(fe *FileEntry, format pixel.Format, compress string, imgElem *kbin.Element) {
	ext := &ImageExt{Format: format, Compress: compress}

	ext.ImgRect = childRect(imgElem, "imgrect")
	ext.UVRect = childRect(imgElem, "uvrect")
	if ext.UVRect == ([4]int{}) {
		ext.UVRect = ext.ImgRect
	}

	fe.Kind = FileImage
	fe.Image = ext
}

// childRect finds tag among elem's children and parses its text as four
// space-separated ints; a missing child or malformed text yields the zero
// rect.
func childRect(elem *kbin.Element, tag string) [4]int {
	for _, c := range elem.Children {
		if c.Tag != tag {
			continue
		}
		fields := strings.Fields(c.Text)
		if len(fields) != 4 {
			return [4]int{}
		}
		var rect [4]int
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return [4]int{}
			}
			rect[i] = v
		}
		return rect
	}
	return [4]int{}
}

