package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteThenReusable(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "foo.png")
	if err := os.WriteFile(src, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(src)
	if err != nil {
		t.Fatal(err)
	}

	p := Policy{}
	if p.Reusable(dir, "abc123", info.ModTime()) {
		t.Fatal("expected no cache entry yet")
	}

	if err := p.Write(dir, "abc123", []byte("coded"), info.ModTime()); err != nil {
		t.Fatalf("write: %v", err)
	}

	if !p.Reusable(dir, "abc123", info.ModTime()) {
		t.Fatal("expected fresh cache entry to be reusable")
	}

	got, err := p.Read(dir, "abc123")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "coded" {
		t.Errorf("got %q, want %q", got, "coded")
	}
}

func TestStaleCacheNotReusable(t *testing.T) {
	dir := t.TempDir()
	p := Policy{}

	old := time.Now().Add(-time.Hour)
	if err := p.Write(dir, "k", []byte("x"), old); err != nil {
		t.Fatal(err)
	}

	newer := time.Now()
	if p.Reusable(dir, "k", newer) {
		t.Fatal("expected a source newer than the cache entry to miss")
	}
}

func TestRecacheForcesMiss(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	base := Policy{}
	if err := base.Write(dir, "k", []byte("x"), now); err != nil {
		t.Fatal(err)
	}

	forced := Policy{Recache: true}
	if forced.Reusable(dir, "k", now) {
		t.Fatal("expected Recache to force a miss even with a fresh entry")
	}
}

func TestPathUnderReservedDir(t *testing.T) {
	got := Path("/base", "abc")
	want := filepath.Join("/base", dirName, "abc")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
