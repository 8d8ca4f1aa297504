// Package corpus loads the document corpus used for lexical retrieval.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is one corpus entry: a source identifier (the file name) and
// its full text content. Documents are immutable after loading and safe
// to share read-only across concurrent question runs.
type Document struct {
	// Source identifies the document, e.g. "returns_policy.md".
	Source string

	// Content is the full document text.
	Content string
}

// LoadDir reads every .md and .txt file directly under dir, in file
// name order. Ordering matters: retrieval breaks score ties by corpus
// position, so loading must be deterministic.
func LoadDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus file %s: %w", name, err)
		}
		docs = append(docs, Document{
			Source:  name,
			Content: string(content),
		})
	}

	return docs, nil
}
