package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/luzzle/luzzle/internal/apperr"
)

func tempTree(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempTree(t)
	content := []byte("---\ntitle: x\n---\nbody\n")
	if err := s.Write("books/x.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("books/x.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestRead_NotFound(t *testing.T) {
	s := tempTree(t)
	_, err := s.Read("missing.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStat(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("a.md", []byte("data"))
	info, err := s.Stat("a.md")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != 4 {
		t.Errorf("size = %d, want 4", info.Size)
	}
	if _, err := s.Stat("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestExists(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("a.md", []byte("x"))
	if ok, _ := s.Exists("a.md"); !ok {
		t.Error("expected a.md to exist")
	}
	if ok, _ := s.Exists("nope.md"); ok {
		t.Error("expected nope.md to be absent")
	}
}

func TestDelete_Idempotent(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Second delete of the same path is not an error.
	if err := s.Delete("del.md"); err != nil {
		t.Errorf("repeat Delete: %v", err)
	}
}

func TestList_DeepAndAllFiles(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("books/a.md", []byte("a"))
	_ = s.Write("books/series/b.md", []byte("b"))
	_ = s.Write(".assets/books/id1/cover.jpg", []byte{0xff, 0xd8})

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	for _, it := range items {
		if strings.Contains(it.Path, "\\") {
			t.Errorf("path %q is not slash-separated", it.Path)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempTree(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrPathEscape) {
			t.Errorf("Read(%q): err = %v, want ErrPathEscape", p, err)
		}
		if err := s.Write(p, []byte("x")); !errors.Is(err, apperr.ErrPathEscape) {
			t.Errorf("Write(%q): err = %v, want ErrPathEscape", p, err)
		}
		if err := s.Delete(p); !errors.Is(err, apperr.ErrPathEscape) {
			t.Errorf("Delete(%q): err = %v, want ErrPathEscape", p, err)
		}
	}
}

func TestStreams(t *testing.T) {
	s := tempTree(t)
	payload := bytes.Repeat([]byte("asset"), 1000)
	if err := s.OpenWrite(".assets/books/id1/cover.jpg", bytes.NewReader(payload)); err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	rc, err := s.OpenRead(".assets/books/id1/cover.jpg")
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, payload) {
		t.Error("streamed content mismatch")
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempTree(t)
	_ = s.Write("atomic.md", []byte("original"))
	if err := s.Write("atomic.md", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".luzzle-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/luzzle-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "luzzle-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
