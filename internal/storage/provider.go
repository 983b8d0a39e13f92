// Package storage defines the piece-tree file abstraction.
//
// All paths are relative to the configured root and use forward slashes.
// Implementations must reject any path that would resolve outside the root
// with apperr.ErrPathEscape, and report missing files with apperr.ErrNotFound.
package storage

import (
	"io"
	"time"
)

// FileInfo describes one file in the tree.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Provider is the interface for piece-tree file operations.
type Provider interface {
	// List walks dir (relative to root) and returns metadata for every file.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write writes content to path, creating intermediate directories.
	Write(path string, content []byte) error
	// Stat returns metadata for a single file.
	Stat(path string) (FileInfo, error)
	// Exists reports whether path refers to an existing file or directory.
	Exists(path string) (bool, error)
	// Delete removes the file at path. Removing an absent file is not an error.
	Delete(path string) error
	// OpenRead opens path for streaming reads (binary asset pass-through).
	OpenRead(path string) (io.ReadCloser, error)
	// OpenWrite streams r into path, creating intermediate directories.
	OpenWrite(path string, r io.Reader) error
}
