// Package manifest models the IFS directory tree: folders and files decoded
// from (or destined for) a binary-XML manifest, grounded on the teacher's
// own Manifest/Section header-and-sections layout in shape (a typed
// UnmarshalBinary/MarshalBinary pair driving a tree of records) even though
// the IFS manifest's actual fields are entirely different from the EVR
// package format the teacher parses.
package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goopsie/ifstool/internal/ifserr"
	"github.com/goopsie/ifstool/pkg/kbin"
	"github.com/goopsie/ifstool/pkg/namecodec"
	"github.com/goopsie/ifstool/pkg/pixel"
)

// FileKind tags which variant a FileEntry currently is. tree_complete is the
// only phase allowed to flip a FileEntry from FileGeneric to FileImage; this
// models the source's runtime reclassification as the tagged-variant swap
// suggested for a systems language rewrite, instead of a subclass.
type FileKind int

const (
	FileGeneric FileKind = iota
	FileImage
)

// FolderKind tags which specialized handler a Folder was dispatched to when
// built, mirroring folder_handlers = {'afp': AfpFolder, 'tex': TexFolder}.
type FolderKind int

const (
	FolderGeneric FolderKind = iota
	FolderTex
	FolderAfp
)

// Node is the common base of every tree entry.
type Node struct {
	Name       string
	PackedName string
	Path       string
	Time       int64 // seconds since epoch; -1 if absent
	Parent     *Folder

	FromIFS  bool
	BasePath string // valid when !FromIFS: the path on disk this node was walked from
}

// ImageExt parameterizes a FileEntry once tree_complete has upgraded it.
type ImageExt struct {
	Format   pixel.Format
	Compress string // "avslz" or ""
	ImgRect  [4]int // x0,x1,y0,y1, doubled pixel coordinates
	UVRect   [4]int
}

// ImgSize derives the pixel dimensions from ImgRect.
func (e *ImageExt) ImgSize() (w, h int) {
	return (e.ImgRect[1] - e.ImgRect[0]) / 2, (e.ImgRect[3] - e.ImgRect[2]) / 2
}

// FileEntry is a file in the tree. Start/Size are meaningful only when
// FromIFS is true.
type FileEntry struct {
	Node
	Start uint32
	Size  uint32

	Kind  FileKind
	Image *ImageExt // non-nil iff Kind == FileImage

	// BackrefIndex, when non-nil, marks this file as a super backref: a
	// 1-based index into the containing tree's Supers list.
	BackrefIndex *int

	// SuperIndex is set once a backref has been resolved, recording which
	// super (0-based, into the same Supers list) its bytes come from.
	SuperIndex *int
}

// Folder is a directory node. Files preserves insertion order because
// manifest emit order is observable; Folders does not need to.
type Folder struct {
	Node
	Kind    FolderKind
	Files   []*FileEntry
	Folders map[string]*Folder
	// folderOrder preserves the order folders were first seen, used only so
	// repeated emits of a disk-built tree stay stable; the manifest schema
	// itself does not require folder ordering.
	folderOrder []string
}

func newFolder(name, path string, parent *Folder) *Folder {
	return &Folder{
		Node:    Node{Name: name, PackedName: namecodec.Sanitize(name), Path: path, Time: -1, Parent: parent},
		Folders: make(map[string]*Folder),
	}
}

// AddFolder inserts (or returns the existing) child folder by name.
func (f *Folder) AddFolder(child *Folder) {
	if _, exists := f.Folders[child.Name]; !exists {
		f.folderOrder = append(f.folderOrder, child.Name)
	}
	f.Folders[child.Name] = child
}

// OrderedFolders returns child folders in first-seen order.
func (f *Folder) OrderedFolders() []*Folder {
	out := make([]*Folder, 0, len(f.folderOrder))
	for _, name := range f.folderOrder {
		out = append(out, f.Folders[name])
	}
	return out
}

// FileByName finds a direct child file by its display name.
func (f *Folder) FileByName(name string) (*FileEntry, int) {
	for i, fe := range f.Files {
		if fe.Name == name {
			return fe, i
		}
	}
	return nil, -1
}

// RemoveFolder deletes a direct child folder by name, used to prune `_cache`
// directories during tree_complete.
func (f *Folder) RemoveFolder(name string) {
	delete(f.Folders, name)
	for i, n := range f.folderOrder {
		if n == name {
			f.folderOrder = append(f.folderOrder[:i], f.folderOrder[i+1:]...)
			break
		}
	}
}

// SuperRef is one `_super_` declaration: the sibling IFS path, and an
// optional expected manifest MD5.
type SuperRef struct {
	Path string
	MD5  string // hex, lowercase; "" if absent
}

// Tree is the full decoded (or to-be-encoded) manifest: a root folder plus
// the ordered list of super references declared at its root.
type Tree struct {
	Root     *Folder
	Supers   []SuperRef
	Encoding string
}

// BuildFromXML decodes a kbin.Document into a Tree, recording each super
// backref's `<i>` index. tree_complete (texture upgrade, MD5 renaming,
// cache-folder pruning) is a separate pass; see Complete. Backrefs are
// resolved later by ResolveSupers.
func BuildFromXML(doc *kbin.Document) (*Tree, error) {
	if doc.Root == nil {
		return nil, ifserr.New(ifserr.BadBinaryXML, "document has no root element")
	}

	t := &Tree{Encoding: doc.Encoding}
	root := newFolder(namecodec.FixName(doc.Root.Tag), "", nil)
	root.Node.FromIFS = true
	t.Root = root

	if err := populateFolder(root, doc.Root, t, ""); err != nil {
		return nil, err
	}
	return t, nil
}

func populateFolder(folder *Folder, elem *kbin.Element, t *Tree, path string) error {
	for _, child := range elem.Children {
		switch child.Tag {
		case "_info_":
			continue
		case "_super_":
			ref := SuperRef{Path: child.Text}
			for _, gc := range child.Children {
				if gc.Tag == "md5" {
					ref.MD5 = strings.ToLower(strings.TrimSpace(gc.Text))
				}
			}
			t.Supers = append(t.Supers, ref)
			continue
		}

		name := namecodec.FixName(child.Tag)
		childPath := path + "/" + name

		if isBackref(child) {
			idx, err := strconv.Atoi(strings.TrimSpace(child.Children[0].Text))
			if err != nil {
				return ifserr.Wrap(ifserr.BadBinaryXML, "super backref index", err)
			}
			fe := &FileEntry{
				Node:         Node{Name: name, PackedName: child.Tag, Path: childPath, Time: -1, Parent: folder, FromIFS: true},
				BackrefIndex: &idx,
			}
			folder.Files = append(folder.Files, fe)
			continue
		}

		if isFolder(child) {
			sub := newFolder(name, childPath, folder)
			sub.Node.FromIFS = true
			sub.Node.Time = parseTimestamp(child.Text)
			switch name {
			case "tex":
				sub.Kind = FolderTex
			case "afp":
				sub.Kind = FolderAfp
			}
			folder.AddFolder(sub)
			if err := populateFolder(sub, child, t, childPath); err != nil {
				return err
			}
			continue
		}

		fe, err := parseFileElement(child, name, childPath, folder)
		if err != nil {
			return err
		}
		folder.Files = append(folder.Files, fe)
	}

	return nil
}

// isBackref reports the discrimination exception: an element whose first
// child is <i> is always a file, regardless of how many children it has.
func isBackref(e *kbin.Element) bool {
	return len(e.Children) > 0 && e.Children[0].Tag == "i"
}

// isFolder applies the folder/file discrimination rule once the backref
// exception has already been ruled out.
func isFolder(e *kbin.Element) bool {
	if len(e.Children) > 0 {
		return true
	}
	fields := strings.Fields(e.Text)
	return len(fields) == 1
}

func parseFileElement(e *kbin.Element, name, path string, parent *Folder) (*FileEntry, error) {
	fields := strings.Fields(e.Text)
	if len(fields) != 2 && len(fields) != 3 {
		return nil, ifserr.New(ifserr.BadBinaryXML, fmt.Sprintf("file element %q has malformed text %q", e.Tag, e.Text))
	}

	start, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return nil, ifserr.Wrap(ifserr.BadBinaryXML, "file start offset", err)
	}
	size, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return nil, ifserr.Wrap(ifserr.BadBinaryXML, "file size", err)
	}

	ts := int64(-1)
	if len(fields) == 3 {
		ts, err = strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, ifserr.Wrap(ifserr.BadBinaryXML, "file timestamp", err)
		}
	}

	return &FileEntry{
		Node:  Node{Name: name, PackedName: e.Tag, Path: path, Time: ts, Parent: parent, FromIFS: true},
		Start: uint32(start),
		Size:  uint32(size),
	}, nil
}

func parseTimestamp(text string) int64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return -1
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return -1
	}
	return ts
}

// treeSizeBase and treeSizeDepthMultiplier are the empirical constants the
// reference runtime's in-memory representation size is modeled on. They are
// emitted on write but must never cause a read-time validation failure
// (some third-party repacks carry incorrect values).
const (
	treeSizeBase            = 856
	treeSizeFileCost        = 64
	treeSizeFolderCost      = 56
	treeSizeDepthMultiplier = 16
)

// TreeSize predicts the header's tree_size field.
func TreeSize(root *Folder) uint32 {
	return treeSizeBase + treeSizeRecurse(root, 0)
}

func treeSizeRecurse(f *Folder, depth int) uint32 {
	total := uint32(treeSizeFileCost) * uint32(len(f.Files))
	folderCost := treeSizeFolderCost - treeSizeDepthMultiplier*depth
	for _, sub := range f.OrderedFolders() {
		total += uint32(folderCost)
		total += treeSizeRecurse(sub, depth+1)
	}
	return total
}
