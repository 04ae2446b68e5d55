package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goopsie/ifstool/pkg/manifest"
)

// BenchmarkPack benchmarks the full repack pipeline; each timed iteration
// rescans the directory and then runs Pack.
func BenchmarkPack(b *testing.B) {
	root := b.TempDir()
	for i := 0; i < 32; i++ {
		name := filepath.Join(root, "file"+string(rune('a'+i%26))+".bin")
		if err := os.WriteFile(name, make([]byte, 4096), 0o644); err != nil {
			b.Fatal(err)
		}
	}

	outPath := filepath.Join(b.TempDir(), "out.ifs")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree, err := manifest.BuildFromFilesystem(root, manifest.WalkConfig{})
		if err != nil {
			b.Fatal(err)
		}
		if err := Pack(tree, outPath, PackOptions{NoPrewarm: true}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLoad benchmarks header validation, manifest decode, and
// tree_complete over a packed IFS.
func BenchmarkLoad(b *testing.B) {
	root := b.TempDir()
	for i := 0; i < 32; i++ {
		name := filepath.Join(root, "file"+string(rune('a'+i%26))+".bin")
		if err := os.WriteFile(name, make([]byte, 4096), 0o644); err != nil {
			b.Fatal(err)
		}
	}

	tree, err := manifest.BuildFromFilesystem(root, manifest.WalkConfig{})
	if err != nil {
		b.Fatal(err)
	}
	outPath := filepath.Join(b.TempDir(), "out.ifs")
	if err := Pack(tree, outPath, PackOptions{NoPrewarm: true}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Load(outPath); err != nil {
			b.Fatal(err)
		}
	}
}
