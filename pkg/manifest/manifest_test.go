package manifest

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/goopsie/ifstool/internal/progress"
	"github.com/goopsie/ifstool/pkg/kbin"
)

func TestBuildFromXMLDiscriminatesFoldersAndFiles(t *testing.T) {
	doc := &kbin.Document{
		Encoding: "utf-8",
		Root: &kbin.Element{
			Tag: "imgfs",
			Children: []*kbin.Element{
				{Tag: "_info_"},
				{Tag: "a", Type: "s32", Text: "1700000000", Children: []*kbin.Element{
					{Tag: "_1file_Epng", Type: "3s32", Text: "0 3 1700000000"},
				}},
				{Tag: "_2file_Ebin", Type: "3s32", Text: "16 5"},
			},
		},
	}

	tree, err := BuildFromXML(doc)
	if err != nil {
		t.Fatalf("BuildFromXML: %v", err)
	}

	sub, ok := tree.Root.Folders["a"]
	if !ok {
		t.Fatal("expected folder \"a\"")
	}
	fe, _ := sub.FileByName("1file.png")
	if fe == nil {
		t.Fatal("expected file \"1file.png\"")
	}
	if fe.Start != 0 || fe.Size != 3 || fe.Time != 1700000000 {
		t.Errorf("file fields: %+v", fe)
	}

	top, _ := tree.Root.FileByName("2file.bin")
	if top == nil {
		t.Fatal("expected file \"2file.bin\" at root")
	}
	if top.Time != -1 {
		t.Errorf("missing timestamp should default to -1, got %d", top.Time)
	}
}

func TestBuildFromXMLBackref(t *testing.T) {
	doc := &kbin.Document{
		Encoding: "utf-8",
		Root: &kbin.Element{
			Tag: "imgfs",
			Children: []*kbin.Element{
				{Tag: "_super_", Text: "other.ifs", Children: []*kbin.Element{
					{Tag: "md5", Text: "deadbeef"},
				}},
				{Tag: "_1file_Ebin", Children: []*kbin.Element{
					{Tag: "i", Text: "1"},
				}},
			},
		},
	}

	tree, err := BuildFromXML(doc)
	if err != nil {
		t.Fatalf("BuildFromXML: %v", err)
	}
	if len(tree.Supers) != 1 || tree.Supers[0].Path != "other.ifs" || tree.Supers[0].MD5 != "deadbeef" {
		t.Fatalf("supers: %+v", tree.Supers)
	}

	fe, _ := tree.Root.FileByName("1file.bin")
	if fe == nil || fe.BackrefIndex == nil || *fe.BackrefIndex != 1 {
		t.Fatalf("expected backref file with index 1, got %+v", fe)
	}
}

func TestTreeSizePrediction(t *testing.T) {
	root := newFolder("", "", nil)
	root.Files = []*FileEntry{
		{Node: Node{Name: "a"}},
		{Node: Node{Name: "b"}},
	}
	child := newFolder("sub", "/sub", root)
	child.Files = []*FileEntry{{Node: Node{Name: "c"}}}
	root.AddFolder(child)

	got := TreeSize(root)
	want := uint32(treeSizeBase) + 2*treeSizeFileCost + treeSizeFolderCost + treeSizeFileCost
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestEmitXMLPadsAndSetsOffsets(t *testing.T) {
	root := newFolder("", "", nil)
	root.Files = []*FileEntry{
		{Node: Node{Name: "a", PackedName: "a", Time: -1}},
		{Node: Node{Name: "b", PackedName: "b", Time: -1}},
	}
	tree := &Tree{Root: root, Encoding: "utf-8"}

	payloads := map[string][]byte{"a": []byte("abc"), "b": []byte("defgh")}
	doc, blob, err := EmitXML(tree, func(fe *FileEntry) ([]byte, error) {
		return payloads[fe.Name], nil
	})
	if err != nil {
		t.Fatalf("EmitXML: %v", err)
	}
	if len(blob)%16 != 0 {
		t.Errorf("blob length %d not a multiple of 16", len(blob))
	}

	fa, _ := root.FileByName("a")
	fb, _ := root.FileByName("b")
	if fa.Start != 0 || fa.Size != 3 {
		t.Errorf("file a offsets: %+v", fa)
	}
	if fb.Start != 16 || fb.Size != 5 {
		t.Errorf("file b offsets: %+v", fb)
	}

	sum := md5.Sum(append([]byte(nil), blob...))
	SetDataBlobInfo(doc, hex.EncodeToString(sum[:]), uint32(len(blob)))
	for _, c := range doc.Root.Children {
		if c.Tag != "_info_" {
			continue
		}
		for _, gc := range c.Children {
			if gc.Tag == "size" && gc.Text != "32" {
				t.Errorf("info size: got %q, want 32", gc.Text)
			}
		}
	}
}

func TestResolveSupersSkipBadPolicy(t *testing.T) {
	superRoot := newFolder("", "", nil)
	superRoot.Files = []*FileEntry{
		{Node: Node{Name: "shared.bin"}, Start: 10, Size: 5},
	}
	superTree := &Tree{Root: superRoot}

	idx := 1
	root := newFolder("", "", nil)
	root.Files = []*FileEntry{
		{Node: Node{Name: "shared.bin"}, BackrefIndex: &idx},
	}
	tree := &Tree{Root: root, Supers: []SuperRef{{Path: "other.ifs", MD5: "expected"}}}

	err := ResolveSupers(tree, []ResolvedSuper{{Tree: superTree, ActualMD5: "actual"}}, SuperSkipBad, progress.New(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(root.Files) != 0 {
		t.Errorf("expected backref file to be dropped under skip-bad policy, got %+v", root.Files)
	}
}

func TestResolveSupersFatalOnMismatch(t *testing.T) {
	idx := 1
	root := newFolder("", "", nil)
	root.Files = []*FileEntry{{Node: Node{Name: "x"}, BackrefIndex: &idx}}
	tree := &Tree{Root: root, Supers: []SuperRef{{Path: "other.ifs", MD5: "expected"}}}

	err := ResolveSupers(tree, []ResolvedSuper{{Tree: &Tree{Root: newFolder("", "", nil)}, ActualMD5: "actual"}}, SuperFatal, nil)
	if err == nil {
		t.Fatal("expected an error under the fatal policy")
	}
}

func TestResolveSupersMissingBackrefIsFatal(t *testing.T) {
	idx := 1
	root := newFolder("", "", nil)
	root.Files = []*FileEntry{{Node: Node{Name: "missing"}, BackrefIndex: &idx}}
	superTree := &Tree{Root: newFolder("", "", nil)}
	tree := &Tree{Root: root, Supers: []SuperRef{{Path: "other.ifs"}}}

	err := ResolveSupers(tree, []ResolvedSuper{{Tree: superTree, ActualMD5: "x"}}, SuperWarn, nil)
	if err == nil {
		t.Fatal("expected missing-super error")
	}
}
