package container

import (
	"path/filepath"

	"github.com/goopsie/ifstool/internal/progress"
	"github.com/goopsie/ifstool/pkg/manifest"
)

// ResolveSupers loads every `_super_` sibling this container's tree
// declares (resolved relative to the container's own directory) and
// resolves backref files against them.
func (c *Container) ResolveSupers(policy manifest.SuperPolicy, reporter *progress.Reporter) error {
	if len(c.Tree.Supers) == 0 {
		return nil
	}

	dir := filepath.Dir(c.Path)
	supers := make([]*Container, len(c.Tree.Supers))
	resolved := make([]manifest.ResolvedSuper, len(c.Tree.Supers))

	for i, ref := range c.Tree.Supers {
		super, err := Load(filepath.Join(dir, ref.Path))
		if err != nil {
			return err
		}
		supers[i] = super
		resolved[i] = manifest.ResolvedSuper{Tree: super.Tree, ActualMD5: super.ManifestMD5}
	}

	if err := manifest.ResolveSupers(c.Tree, resolved, policy, reporter); err != nil {
		return err
	}
	c.Supers = supers
	return nil
}

// PayloadFor returns a FileEntry's raw bytes, following SuperIndex into a
// resolved super container when the entry's data lives there instead of in
// this container's own data blob.
func (c *Container) PayloadFor(fe *manifest.FileEntry) ([]byte, error) {
	if fe.SuperIndex != nil {
		return c.Supers[*fe.SuperIndex].readEntry(fe)
	}
	return c.readEntry(fe)
}
