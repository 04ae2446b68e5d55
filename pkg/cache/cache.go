// Package cache implements CachePolicy: the mtime-gated reuse rule for
// precompressed texture payloads, grounded on
// original_source/ifstools/handlers/ImageFile.py's
// needs_preload/preload/write_cache/read_cache state machine (spec.md §4.9).
package cache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goopsie/ifstool/internal/ifserr"
)

// dirName is the reserved subfolder name a cache entry lives under,
// excluded from both the directory walk and repack per spec.md's
// Invariants ("a `_cache` folder anywhere in a texture subtree is ignored
// on repack").
const dirName = "_cache"

// Policy decides whether a cached compressed payload may be reused instead
// of re-running LZ77Codec over a texture's source image.
type Policy struct {
	// Recache forces every entry to be treated as a miss, matching the CLI's
	// `-recache` flag.
	Recache bool
}

// Dir returns the cache directory for a folder given that folder's on-disk
// base path.
func Dir(folderBasePath string) string {
	return filepath.Join(folderBasePath, dirName)
}

// Path returns the cache file path for packedName within folderBasePath.
func Path(folderBasePath, packedName string) string {
	return filepath.Join(Dir(folderBasePath), packedName)
}

// Reusable reports whether the cache entry for packedName exists, is at
// least as new as sourceModTime, and the caller has not requested a forced
// recache.
func (p Policy) Reusable(folderBasePath, packedName string, sourceModTime time.Time) bool {
	if p.Recache {
		return false
	}
	fi, err := os.Stat(Path(folderBasePath, packedName))
	if err != nil {
		return false
	}
	return !fi.ModTime().Before(sourceModTime)
}

// Read loads a cache entry's bytes. Returns a CacheMiss error (never
// surfaced to a user, per spec.md §7) when the entry doesn't exist; callers
// should always gate a Read behind Reusable.
func (p Policy) Read(folderBasePath, packedName string) ([]byte, error) {
	data, err := os.ReadFile(Path(folderBasePath, packedName))
	if err != nil {
		return nil, ifserr.Wrap(ifserr.CacheMiss, packedName, err)
	}
	return data, nil
}

// Write stores a freshly compressed payload and backdates the cache file's
// mtime to sourceModTime, so a subsequent Reusable check against the same
// unmodified source succeeds.
func (p Policy) Write(folderBasePath, packedName string, data []byte, sourceModTime time.Time) error {
	dir := Dir(folderBasePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, packedName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	return os.Chtimes(path, sourceModTime, sourceModTime)
}
