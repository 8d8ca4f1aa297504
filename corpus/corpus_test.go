package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"returns_policy.md":   "Beverages can be returned within 14 days.",
		"vacation_policy.txt": "Employees receive 20 vacation days per year.",
		"archive.json":        `{"skip": true}`,
		"aaa_first.md":        "Loaded first by name order.",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "deep.md"), []byte("not loaded"), 0o644); err != nil {
		t.Fatalf("write nested: %v", err)
	}

	docs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	if len(docs) != 3 {
		t.Fatalf("docs = %d, want 3", len(docs))
	}
	wantOrder := []string{"aaa_first.md", "returns_policy.md", "vacation_policy.txt"}
	for i, want := range wantOrder {
		if docs[i].Source != want {
			t.Errorf("docs[%d].Source = %q, want %q", i, docs[i].Source, want)
		}
	}
	if docs[1].Content != files["returns_policy.md"] {
		t.Errorf("content mismatch: %q", docs[1].Content)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoadDirEmpty(t *testing.T) {
	docs, err := LoadDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("docs = %d, want 0", len(docs))
	}
}
