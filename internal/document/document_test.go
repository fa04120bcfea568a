package document

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestOpen(t *testing.T) {
	path := writeFile(t, t.TempDir(), "policy.txt", "refunds within 30 days")

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if f.Name != "policy.txt" {
		t.Fatalf("unexpected name: %s", f.Name)
	}
	if f.Size != int64(len("refunds within 30 days")) {
		t.Fatalf("unexpected size: %d", f.Size)
	}
	if len(f.Digest) != 64 {
		t.Fatalf("expected sha256 hex digest, got %q", f.Digest)
	}

	rc, err := f.Reader()
	if err != nil {
		t.Fatalf("Reader err: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "refunds within 30 days" {
		t.Fatalf("unexpected content: %q", body)
	}
}

func TestOpenRejects(t *testing.T) {
	dir := t.TempDir()
	for name, path := range map[string]string{
		"empty":     "",
		"missing":   filepath.Join(dir, "nope.txt"),
		"directory": dir,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Open(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestChangedAfterRewrite(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.md", "v1")
	before, _ := Open(path)

	same, err := before.Refresh()
	if err != nil {
		t.Fatalf("Refresh err: %v", err)
	}
	if before.Changed(same) {
		t.Fatal("expected unchanged digest")
	}

	writeFile(t, filepath.Dir(path), "notes.md", "v2")
	after, _ := before.Refresh()
	if !before.Changed(after) {
		t.Fatal("expected changed digest")
	}
}
