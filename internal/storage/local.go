package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// File is an artifact written to the local filesystem.
type File struct {
	Format string
	Path   string
	Size   int64
}

// WriteFiles writes every artifact to base plus the extension of its file
// name, creating the directory of base if needed. Files already written are
// returned alongside the error when a later write fails.
func WriteFiles(base string, artifacts []Artifact) ([]File, error) {
	if dir := filepath.Dir(base); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	files := make([]File, 0, len(artifacts))
	for _, a := range artifacts {
		path := base + filepath.Ext(a.FileName)
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return files, fmt.Errorf("writing %s: %w", path, err)
		}
		files = append(files, File{Format: a.Format, Path: path, Size: int64(len(a.Data))})
	}
	return files, nil
}
