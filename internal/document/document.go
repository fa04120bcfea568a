// Package document describes the file a user has selected for upload.
package document

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File is a selected document. Selecting has no side effect beyond reading
// the file once to fingerprint it.
type File struct {
	Path   string
	Name   string
	Size   int64
	Digest string
}

// Open stats and fingerprints the file at path.
func Open(path string) (File, error) {
	if path == "" {
		return File{}, fmt.Errorf("no file path given")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	digest, err := fingerprint(abs)
	if err != nil {
		return File{}, err
	}

	return File{
		Path:   abs,
		Name:   filepath.Base(abs),
		Size:   info.Size(),
		Digest: digest,
	}, nil
}

// Reader opens the file content for upload.
func (f File) Reader() (io.ReadCloser, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	return file, nil
}

// Changed reports whether other has different content.
func (f File) Changed(other File) bool {
	return f.Digest != other.Digest
}

// Refresh re-reads the file from disk.
func (f File) Refresh() (File, error) {
	return Open(f.Path)
}

func fingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
