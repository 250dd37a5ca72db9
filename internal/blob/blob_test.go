package blob

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCleanFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":           "report.pdf",
		"  spaced.txt ":        "spaced.txt",
		"../../etc/passwd":     "passwd",
		`C:\docs\summary.docx`: "summary.docx",
		"dir/nested/file.csv":  "file.csv",
	}
	for in, want := range cases {
		got, err := CleanFilename(in)
		if err != nil {
			t.Fatalf("CleanFilename(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("CleanFilename(%q)=%q want %q", in, got, want)
		}
	}
	for _, bad := range []string{"", "  ", ".", "..", "/", "a\x00b"} {
		if _, err := CleanFilename(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestMaterialKeyKeepsVersionsApart(t *testing.T) {
	a := MaterialKey(7, 1, "report.pdf")
	b := MaterialKey(7, 2, "report.pdf")
	if a == b {
		t.Fatalf("versions share a key: %s", a)
	}
	if a != "7/v1_report.pdf" {
		t.Fatalf("unexpected key %s", a)
	}
}

func TestDirPutGetDelete(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root)
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	ctx := context.Background()
	key := MaterialKey(3, 1, "data.csv")
	if err := d.Put(ctx, key, []byte("a,b\n1,2\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "3", "v1_data.csv")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
	got, err := d.Get(ctx, key)
	if err != nil || !bytes.Equal(got, []byte("a,b\n1,2\n")) {
		t.Fatalf("Get: %q %v", got, err)
	}
	if err := d.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := d.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDirRejectsEscapingKeys(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	for _, key := range []string{"../x", "/abs", "a//b", "a/./b", ""} {
		if err := d.Put(context.Background(), key, []byte("x")); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestMemoryCopiesData(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	data := []byte("hello")
	if err := m.Put(ctx, "1/v1_a.txt", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data[0] = 'j'
	got, err := m.Get(ctx, "1/v1_a.txt")
	if err != nil || string(got) != "hello" {
		t.Fatalf("stored bytes changed: %q %v", got, err)
	}
	if m.Len() != 1 {
		t.Fatalf("unexpected len %d", m.Len())
	}
}
