// SuperRefResolver: resolution of `_super_` sibling references and `<i>`
// backref files, grounded on the textual description of
// ifstools/handlers/GenericFolder.py's backref plumbing (the resolution
// method bodies themselves were not retained in the filtered snapshot this
// module was built from).
package manifest

import (
	"fmt"
	"strings"

	"github.com/goopsie/ifstool/internal/ifserr"
	"github.com/goopsie/ifstool/internal/progress"
)

// SuperPolicy controls behavior when a super's actual manifest MD5 does not
// match the `<md5>` the referencing IFS declared for it.
type SuperPolicy int

const (
	// SuperFatal aborts resolution entirely on a mismatch (the default).
	SuperFatal SuperPolicy = iota
	// SuperWarn logs the mismatch but still resolves backrefs into it.
	SuperWarn
	// SuperSkipBad logs the mismatch and drops every file backreferenced to
	// that super instead of failing the whole operation.
	SuperSkipBad
)

// ResolvedSuper pairs a loaded super Tree with the actual MD5 of its
// manifest binary XML, as computed by the container codec that loaded it.
type ResolvedSuper struct {
	Tree      *Tree
	ActualMD5 string
}

// ResolveSupers matches every super backref file in t against the loaded
// supers, in the order t.Supers declares them. It must run after Complete,
// since backref discrimination only concerns file entries, not the
// MD5-upgrade pass.
func ResolveSupers(t *Tree, supers []ResolvedSuper, policy SuperPolicy, reporter *progress.Reporter) error {
	skip := make([]bool, len(supers))
	for i, s := range supers {
		want := t.Supers[i].MD5
		if want == "" || strings.EqualFold(want, s.ActualMD5) {
			continue
		}
		switch policy {
		case SuperFatal:
			return ifserr.New(ifserr.MismatchSuper, fmt.Sprintf("super %q: expected md5 %s, got %s", t.Supers[i].Path, want, s.ActualMD5))
		case SuperSkipBad:
			skip[i] = true
			reporter.Warnf("super %q md5 mismatch (expected %s, got %s): skipping its backreferenced files", t.Supers[i].Path, want, s.ActualMD5)
		default:
			reporter.Warnf("super %q md5 mismatch (expected %s, got %s)", t.Supers[i].Path, want, s.ActualMD5)
		}
	}

	return resolveBackrefs(t.Root, supers, skip)
}

func resolveBackrefs(f *Folder, supers []ResolvedSuper, skip []bool) error {
	kept := f.Files[:0]
	for _, fe := range f.Files {
		if fe.BackrefIndex == nil {
			kept = append(kept, fe)
			continue
		}

		idx := *fe.BackrefIndex - 1
		if idx < 0 || idx >= len(supers) {
			return ifserr.New(ifserr.MissingSuper, fmt.Sprintf("backref index %d out of range for %s", *fe.BackrefIndex, fe.Path))
		}
		if skip[idx] {
			continue
		}

		target := findInSuper(supers[idx].Tree.Root, fe.Name)
		if target == nil {
			return ifserr.New(ifserr.MissingSuper, fmt.Sprintf("super entry not found for %s", fe.Path))
		}

		fe.Start = target.Start
		fe.Size = target.Size
		fe.FromIFS = true
		si := idx
		fe.SuperIndex = &si
		kept = append(kept, fe)
	}
	f.Files = kept

	for _, sub := range f.OrderedFolders() {
		if err := resolveBackrefs(sub, supers, skip); err != nil {
			return err
		}
	}
	return nil
}

// findInSuper searches a super's whole tree for a file whose display Name
// or PackedName equals name, as the specification requires.
func findInSuper(f *Folder, name string) *FileEntry {
	for _, fe := range f.Files {
		if fe.Name == name || fe.PackedName == name {
			return fe
		}
	}
	for _, sub := range f.OrderedFolders() {
		if found := findInSuper(sub, name); found != nil {
			return found
		}
	}
	return nil
}
