package release

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreOpenReadsFile(t *testing.T) {
	root := t.TempDir()
	payload := []byte("archive bytes")
	modTime := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	writeReleaseFile(t, root, "fimfarchive-20250901.zip", payload, modTime)

	store := newTestStore(t, root)
	result, err := store.Open(context.Background(), "fimfarchive-20250901.zip")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	defer result.Reader.Close()

	body, err := io.ReadAll(result.Reader)
	if err != nil {
		t.Fatalf("read release body error: %v", err)
	}
	if string(body) != string(payload) {
		t.Fatalf("release payload mismatch: %s", string(body))
	}
	if result.Entry.SizeBytes != int64(len(payload)) {
		t.Fatalf("size mismatch: %d", result.Entry.SizeBytes)
	}
	if !result.Entry.ModTime.Equal(modTime) {
		t.Fatalf("modtime mismatch: expected %v got %v", modTime, result.Entry.ModTime)
	}
	if result.Entry.Path != "/fimfarchive-20250901.zip" {
		t.Fatalf("unexpected entry path: %s", result.Entry.Path)
	}
}

func TestStoreOpenNestedPath(t *testing.T) {
	root := t.TempDir()
	writeReleaseFile(t, root, "indexes/v1/index.json", []byte(`{"ok":true}`), time.Time{})

	store := newTestStore(t, root)
	result, err := store.Open(context.Background(), "indexes/v1/index.json")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	result.Reader.Close()

	if result.Entry.Path != "/indexes/v1/index.json" {
		t.Fatalf("unexpected entry path: %s", result.Entry.Path)
	}
}

func TestStoreOpenMissing(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	_, err := store.Open(context.Background(), "missing.zip")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreOpenIgnoresDirectories(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "nightly"), 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}

	store := newTestStore(t, root)
	if _, err := store.Open(context.Background(), "nightly"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
	// The empty relative path resolves to the release root itself.
	if _, err := store.Open(context.Background(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for release root, got %v", err)
	}
}

func TestStoreOpenRejectsTraversal(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "releases")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("do not serve"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	store := newTestStore(t, root)
	cases := []string{
		"../secret.txt",
		"..",
		"a/../../secret.txt",
		"nested/../../../etc/passwd",
		"bad\x00name",
	}
	for _, name := range cases {
		if _, err := store.Open(context.Background(), name); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("expected ErrInvalidPath for %q, got %v", name, err)
		}
	}
}

func TestStoreOpenCanceledContext(t *testing.T) {
	store := newTestStore(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Open(ctx, "whatever.zip"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewStoreRequiresRoot(t *testing.T) {
	if _, err := NewStore(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

// newTestStore returns a Store rooted at dir.
func newTestStore(t *testing.T, dir string) Store {
	t.Helper()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

// writeReleaseFile drops a file under root, creating parent directories.
func writeReleaseFile(t *testing.T, root, name string, payload []byte, modTime time.Time) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if err := os.WriteFile(full, payload, 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(full, modTime, modTime); err != nil {
			t.Fatalf("chtimes error: %v", err)
		}
	}
	return full
}
