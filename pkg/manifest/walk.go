package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goopsie/ifstool/internal/progress"
	"github.com/goopsie/ifstool/pkg/namecodec"
)

// WalkConfig configures BuildFromFilesystem.
type WalkConfig struct {
	// RenameDupes controls the directory-walk conflict policy: when two
	// files differ only in case, RenameDupes appends a numeric suffix to
	// keep both; otherwise the later entry silently replaces the earlier
	// one and a warning is reported.
	RenameDupes bool
	Reporter    *progress.Reporter
}

// BuildFromFilesystem walks root (a directory) into a disk-side Tree. The
// root's `ifs_manifest.xml` (an extraction artifact) is excluded, and any
// `_cache` directory anywhere in the tree is excluded (cache entries are
// reattached by CachePolicy, not carried as tree nodes).
func BuildFromFilesystem(root string, cfg WalkConfig) (*Tree, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	folder, err := walkDir(root, "", nil, true, cfg)
	if err != nil {
		return nil, err
	}
	folder.Name = ""
	folder.PackedName = ""

	return &Tree{Root: folder, Encoding: "utf-8"}, nil
}

func walkDir(dir, path string, parent *Folder, isRoot bool, cfg WalkConfig) (*Folder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	name := filepath.Base(dir)
	folder := newFolder(name, path, parent)
	folder.BasePath = dir
	if info, err := os.Stat(dir); err == nil {
		folder.Time = info.ModTime().Unix()
	}

	seenLower := make(map[string]int) // lowercased name -> index into folder.Files

	for _, entry := range entries {
		if entry.IsDir() {
			if entry.Name() == "_cache" {
				continue
			}
			childPath := path + "/" + entry.Name()
			sub, err := walkDir(filepath.Join(dir, entry.Name()), childPath, folder, false, cfg)
			if err != nil {
				return nil, err
			}
			switch sub.Name {
			case "tex":
				sub.Kind = FolderTex
			case "afp":
				sub.Kind = FolderAfp
			}
			folder.AddFolder(sub)
			continue
		}

		if isRoot && entry.Name() == "ifs_manifest.xml" {
			continue
		}

		lower := strings.ToLower(entry.Name())
		if prevIdx, exists := seenLower[lower]; exists {
			if cfg.RenameDupes {
				entryName := dedupeSuffix(entry.Name(), len(folder.Files))
				fe, err := buildFileEntry(dir, path, entryName, entry.Name(), folder)
				if err != nil {
					return nil, err
				}
				folder.Files = append(folder.Files, fe)
				continue
			}
			cfg.Reporter.Warnf("case-colliding files %q replace earlier entry in %s", entry.Name(), dir)
			fe, err := buildFileEntry(dir, path, entry.Name(), entry.Name(), folder)
			if err != nil {
				return nil, err
			}
			folder.Files[prevIdx] = fe
			continue
		}

		fe, err := buildFileEntry(dir, path, entry.Name(), entry.Name(), folder)
		if err != nil {
			return nil, err
		}
		seenLower[lower] = len(folder.Files)
		folder.Files = append(folder.Files, fe)
	}

	return folder, nil
}

func dedupeSuffix(diskName string, n int) string {
	ext := filepath.Ext(diskName)
	base := strings.TrimSuffix(diskName, ext)
	return fmt.Sprintf("%s_dup%d%s", base, n, ext)
}

func buildFileEntry(dir, path, displayName, diskName string, parent *Folder) (*FileEntry, error) {
	full := filepath.Join(dir, diskName)
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", full, err)
	}
	return &FileEntry{
		Node: Node{
			Name:       displayName,
			PackedName: namecodec.Sanitize(displayName),
			Path:       path + "/" + displayName,
			Time:       info.ModTime().Unix(),
			Parent:     parent,
			FromIFS:    false,
			BasePath:   full,
		},
		Size: uint32(info.Size()),
	}, nil
}
