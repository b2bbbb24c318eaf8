package cache

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	doc := Document{"alpha": "one", "beta": float64(2)}
	if err := Save(path, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := Load(path)
	if !reflect.DeepEqual(got, doc) {
		t.Fatalf("round trip mismatch: got %v, want %v", got, doc)
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	got := Load(filepath.Join(t.TempDir(), "absent.json"))
	if len(got) != 0 {
		t.Fatalf("expected empty document, got %v", got)
	}
}

func TestLoadCorruptFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json!!"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	got := Load(path)
	if len(got) != 0 {
		t.Fatalf("expected empty document for corrupt file, got %v", got)
	}
}

func TestSaveOverwritesWholeDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	if err := Save(path, Document{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := Save(path, Document{"c": "3"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := Load(path)
	if _, ok := got["a"]; ok {
		t.Fatal("save should replace, not merge")
	}
	if got["c"] != "3" {
		t.Fatalf("expected c=3, got %v", got)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	if err := Save(path, Document{"k": "v"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "doc.json" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}
