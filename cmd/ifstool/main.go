// Command ifstool extracts and repacks IFS container files, grounded on
// cmd/evrtools/main.go's flag + run shape; flag combinations are validated
// at the start of run.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goopsie/ifstool/internal/progress"
	"github.com/goopsie/ifstool/pkg/container"
	"github.com/goopsie/ifstool/pkg/manifest"
)

var (
	input  string
	output string

	texOnly         bool
	noRecurse       bool
	extractManifest bool
	jsonManifest    bool
	renameDupes     bool
	recache         bool
	noPrewarm       bool
	silent          bool

	superSkipBad    bool
	superAbortIfBad bool
)

func init() {
	flag.StringVar(&output, "output", "", "output path (directory for extract, .ifs file for repack); defaults alongside the input")
	flag.BoolVar(&texOnly, "tex-only", false, "extract only the tex folder subtree")
	flag.BoolVar(&noRecurse, "norecurse", false, "do not recurse into extracted *.ifs files")
	flag.BoolVar(&extractManifest, "m", false, "dump the decoded manifest as ifs_manifest.xml")
	flag.BoolVar(&jsonManifest, "jsonmanifest", false, "dump the decoded manifest as ifs_manifest.json")
	flag.BoolVar(&renameDupes, "rename-dupes", false, "rename case-colliding files on repack instead of overwriting silently")
	flag.BoolVar(&recache, "recache", false, "ignore fresh texture cache entries and re-encode every image")
	flag.BoolVar(&noPrewarm, "no-prewarm", false, "disable the parallel texture cache prewarm pass")
	flag.BoolVar(&silent, "silent", false, "suppress progress output")
	flag.BoolVar(&superSkipBad, "super-skip-bad", false, "drop files backreferenced to a super whose md5 doesn't match, instead of aborting")
	flag.BoolVar(&superAbortIfBad, "super-abort-if-bad", false, "abort on a super md5 mismatch (default); mutually exclusive with -super-skip-bad")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <input>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "<input> is an .ifs file (extract) or a directory (repack).\n\n")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("exactly one input path is required")
	}
	input = flag.Arg(0)

	if superSkipBad && superAbortIfBad {
		return fmt.Errorf("-super-skip-bad and -super-abort-if-bad are mutually exclusive")
	}

	var reporter *progress.Reporter
	if !silent {
		reporter = progress.New(os.Stderr)
	}

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("stat %s: %w", input, err)
	}

	if info.IsDir() {
		return runRepack(reporter)
	}
	return runExtract(reporter)
}

func superPolicy() manifest.SuperPolicy {
	switch {
	case superSkipBad:
		return manifest.SuperSkipBad
	default:
		return manifest.SuperFatal
	}
}

func runExtract(reporter *progress.Reporter) error {
	c, err := container.Load(input)
	if err != nil {
		return fmt.Errorf("load %s: %w", input, err)
	}

	if err := c.ResolveSupers(superPolicy(), reporter); err != nil {
		return fmt.Errorf("resolve supers: %w", err)
	}

	outDir := output
	if outDir == "" {
		outDir = strings.TrimSuffix(input, filepath.Ext(input))
	}

	reporter.Printf("extracting %s -> %s", input, outDir)
	if err := container.Extract(c, outDir, container.ExtractOptions{
		TexOnly:         texOnly,
		ExtractManifest: extractManifest,
		NoRecurse:       noRecurse,
		JSONManifest:    jsonManifest,
		Reporter:        reporter,
	}); err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	reporter.Printf("done")
	return nil
}

func runRepack(reporter *progress.Reporter) error {
	outPath := output
	if outPath == "" {
		outPath = strings.TrimSuffix(filepath.Clean(input), filepath.Ext(input)) + ".ifs"
	}

	reporter.Printf("scanning %s", input)
	tree, err := manifest.BuildFromFilesystem(input, manifest.WalkConfig{
		RenameDupes: renameDupes,
		Reporter:    reporter,
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", input, err)
	}

	reporter.Printf("packing -> %s", outPath)
	if err := container.Pack(tree, outPath, container.PackOptions{
		Recache:        recache,
		NoPrewarm:      noPrewarm,
		Reporter:       reporter,
	}); err != nil {
		return fmt.Errorf("pack: %w", err)
	}

	reporter.Printf("done")
	return nil
}
