package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// TestNewLocal tests the Local backend constructor
func TestNewLocal(t *testing.T) {
	t.Run("ValidDirectory", func(t *testing.T) {
		local, err := NewLocal(t.TempDir())
		if err != nil {
			t.Fatalf("NewLocal() error = %v", err)
		}
		defer local.Close()
	})

	t.Run("EmptyPath", func(t *testing.T) {
		if _, err := NewLocal("  "); err == nil {
			t.Error("NewLocal() should fail for empty path")
		}
	})

	t.Run("NonExistentPath", func(t *testing.T) {
		_, err := NewLocal("/nonexistent/path/that/does/not/exist")
		if err == nil {
			t.Error("NewLocal() should fail for non-existent path")
		}
	})

	t.Run("FileNotDirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "a.txt")
		writeFile(t, file, "x")

		if _, err := NewLocal(file); err == nil {
			t.Error("NewLocal() should fail for file path (not directory)")
		}
	})

	t.Run("RelativePath", func(t *testing.T) {
		tempDir := t.TempDir()
		oldWd, _ := os.Getwd()
		os.Chdir(filepath.Dir(tempDir))
		defer os.Chdir(oldWd)

		local, err := NewLocal(filepath.Base(tempDir))
		if err != nil {
			t.Fatalf("NewLocal() should work with relative path: %v", err)
		}
		if !filepath.IsAbs(local.Root()) {
			t.Errorf("Root() = %q, want absolute", local.Root())
		}
	})
}

// TestLocalList tests the List method
func TestLocalList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "bb")
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, ".hidden"), "h")
	writeFile(t, filepath.Join(root, "skip.tmp"), "t")
	writeFile(t, filepath.Join(root, "sub", "c.txt"), "ccc")
	writeFile(t, filepath.Join(root, "node_modules", "d.js"), "d")

	local, err := NewLocal(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	t.Run("TopLevelOnly", func(t *testing.T) {
		files, err := local.List(ctx, "", ListOptions{Exclude: []string{"*.tmp"}})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		got := relPaths(files)
		want := []string{"a.txt", "b.txt"}
		if !equalStrings(got, want) {
			t.Errorf("List() = %v, want %v", got, want)
		}
		if files[1].Size != 2 {
			t.Errorf("b.txt size = %d, want 2", files[1].Size)
		}
		if files[0].Path != filepath.Join(root, "a.txt") {
			t.Errorf("Path = %q", files[0].Path)
		}
	})

	t.Run("Recursive", func(t *testing.T) {
		files, err := local.List(ctx, "", ListOptions{Recursive: true, Exclude: []string{"node_modules/"}})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		got := relPaths(files)
		want := []string{"a.txt", "b.txt", "skip.tmp", "sub/c.txt"}
		if !equalStrings(got, want) {
			t.Errorf("List() = %v, want %v", got, want)
		}
	})

	t.Run("IncludeHidden", func(t *testing.T) {
		files, err := local.List(ctx, "", ListOptions{IncludeHidden: true})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(files) != 4 {
			t.Errorf("List() returned %d files, want 4", len(files))
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := local.List(cctx, "", ListOptions{}); !errors.Is(err, context.Canceled) {
			t.Errorf("List() error = %v, want context.Canceled", err)
		}
	})
}

func TestLocalRenameAndExists(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")

	local, _ := NewLocal(root)
	ctx := context.Background()

	if err := local.MkdirAll(ctx, "Docs/Work"); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := local.Rename(ctx, filepath.Join(root, "a.txt"), "Docs/Work/a.txt"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	exists, err := local.Exists(ctx, "a.txt")
	if err != nil || exists {
		t.Errorf("Exists(a.txt) = %v, %v; want false", exists, err)
	}
	exists, err = local.Exists(ctx, "Docs/Work/a.txt")
	if err != nil || !exists {
		t.Errorf("Exists(Docs/Work/a.txt) = %v, %v; want true", exists, err)
	}
	if !local.IsRegularFile(ctx, "Docs/Work/a.txt") {
		t.Error("IsRegularFile() = false, want true")
	}
	if local.IsRegularFile(ctx, "Docs") {
		t.Error("IsRegularFile(dir) = true, want false")
	}
}

func TestLocalOutsideRoot(t *testing.T) {
	root := t.TempDir()
	local, _ := NewLocal(root)
	ctx := context.Background()

	outside := filepath.Join(filepath.Dir(root), "elsewhere.txt")
	if err := local.Rename(ctx, "a.txt", outside); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Rename() error = %v, want ErrOutsideRoot", err)
	}
	if _, err := local.Stat(ctx, "../x"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Stat() error = %v, want ErrOutsideRoot", err)
	}
	if err := local.Delete(ctx, ""); err == nil {
		t.Error("Delete(root) should fail")
	}
}

func TestLocalReadStatDelete(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "hello")

	local, _ := NewLocal(root)
	ctx := context.Background()

	rc, err := local.Read(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("Read() = %q, want hello", data)
	}

	info, err := local.Stat(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size != 5 || info.IsDir || info.RelativePath != "a.txt" {
		t.Errorf("Stat() = %+v", info)
	}

	if err := local.Delete(ctx, "a.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := local.Read(ctx, "a.txt"); err == nil {
		t.Error("Read() after Delete should fail")
	}
}

// TestBackendInterface verifies that Local implements Backend
func TestBackendInterface(t *testing.T) {
	var _ Backend = (*Local)(nil)
}

func relPaths(files []FileInfo) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelativePath)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
