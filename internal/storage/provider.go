// Package storage defines the digest file store abstraction.
package storage

import "time"

// FileInfo is lightweight metadata for one stored digest file.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for digest file operations. All paths are
// relative to the data directory root.
type Provider interface {
	// List returns metadata for every .tsv file under dir.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
