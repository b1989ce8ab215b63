// Package storage is the file-system layer behind directory exports and the
// inbox: paths are relative to a root and may not escape it.
package storage

import "time"

// Entry describes one file found by List.
type Entry struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for rooted file operations.
type Provider interface {
	// List returns every file under dir whose name ends in one of exts
	// (all files when exts is empty).
	List(dir string, exts ...string) ([]Entry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
