package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_RenameAndReadDir(t *testing.T) {
	fsys := OSFileSystem{}
	dir := t.TempDir()

	if err := fsys.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fsys.Rename(filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "b.json" {
		t.Errorf("entries = %v, want [b.json]", entries)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/data/test.txt", []byte("hello, world"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/data/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("got %q, want %q", data, "hello, world")
	}
	if !mfs.Exists("/data") {
		t.Error("expected parent directory to be created implicitly")
	}
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.ReadFile("/missing.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile error = %v, want fs.ErrNotExist", err)
	}
	if _, err := mfs.Open("/missing.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open error = %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryFileSystem_Open(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/read.txt", []byte("abc"), 0644)

	f, err := mfs.Open("/read.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("got %q, want %q", data, "abc")
	}
	info, _ := f.Stat()
	if info.Size() != 3 {
		t.Errorf("size = %d, want 3", info.Size())
	}
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/tracks/b_track/track.json", []byte("{}"), 0644)
	_ = mfs.WriteFile("/tracks/a_track/track.json", []byte("{}"), 0644)
	_ = mfs.WriteFile("/tracks/readme.txt", []byte("x"), 0644)

	entries, err := mfs.ReadDir("/tracks")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	want := []struct {
		name  string
		isDir bool
	}{{"a_track", true}, {"b_track", true}, {"readme.txt", false}}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].Name() != w.name || entries[i].IsDir() != w.isDir {
			t.Errorf("entry %d = (%s, dir=%v), want (%s, dir=%v)",
				i, entries[i].Name(), entries[i].IsDir(), w.name, w.isDir)
		}
	}

	if _, err := mfs.ReadDir("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadDir on missing dir error = %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryFileSystem_RenameDirectory(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/tracks/old/track.json", []byte("t"), 0644)
	_ = mfs.WriteFile("/tracks/old/tbl.json", []byte("b"), 0644)

	if err := mfs.Rename("/tracks/old", "/tracks/new"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	if mfs.Exists("/tracks/old") || mfs.Exists("/tracks/old/track.json") {
		t.Error("old paths should be gone after rename")
	}
	data, err := mfs.ReadFile("/tracks/new/tbl.json")
	if err != nil || string(data) != "b" {
		t.Errorf("ReadFile after rename = %q, %v", data, err)
	}
	if err := mfs.Rename("/tracks/missing", "/tracks/x"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Rename of missing path error = %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryFileSystem_RemoveAll(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/s/a/1.json", []byte("1"), 0644)
	_ = mfs.WriteFile("/s/ab.json", []byte("2"), 0644)

	if err := mfs.RemoveAll("/s/a"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if mfs.Exists("/s/a/1.json") {
		t.Error("child file should be removed")
	}
	if !mfs.Exists("/s/ab.json") {
		t.Error("sibling sharing the name prefix must survive")
	}
}

func TestMemoryFileSystem_Remove(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/f.txt", []byte("x"), 0644)

	if err := mfs.Remove("/f.txt"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := mfs.Remove("/f.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second Remove error = %v, want fs.ErrNotExist", err)
	}
}
