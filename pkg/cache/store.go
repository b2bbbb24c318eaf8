// Package cache provides recall's persistent local caches: a
// corruption-tolerant JSON document store plus the identity and context
// caches built on it. Each cache owns one file path and performs whole
// document read-modify-write; concurrent writers are last-writer-wins,
// which is accepted because cached data is a performance optimization a
// lost update only downgrades to one extra remote lookup.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Document is an opaque JSON object persisted as one file.
type Document map[string]any

// Load reads a document from disk. A missing file or malformed JSON
// yields an empty document, never an error.
func Load(path string) Document {
	doc := Document{}
	LoadInto(path, &doc)
	if doc == nil {
		doc = Document{}
	}
	return doc
}

// LoadInto unmarshals the file at path into v. Read and parse failures
// are swallowed: v is left as-is so callers start from their zero value.
func LoadInto(path string, v any) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, v)
}

// Save writes v to path as one JSON document, replacing any previous
// content. The parent directory is created if needed and the write goes
// through a temp file plus rename so readers never observe a torn file.
// Write failures propagate: downstream logic assumes saved state exists.
func Save(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache document: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache document: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache document: %w", err)
	}
	return nil
}
