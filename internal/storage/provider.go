// Package storage defines the vault file-system abstraction.
package storage

// WalkFunc is called for every note file found under the vault root. When an
// entry cannot be listed, rel names it and err is non-nil. Returning
// fs.SkipAll stops the walk without error.
type WalkFunc func(rel string, err error) error

// Provider is the interface for vault file operations.
type Provider interface {
	// Root returns the absolute path of the vault directory.
	Root() string
	// Walk visits every note file in lexical order, skipping ignored paths.
	Walk(fn WalkFunc) error
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Exists reports whether a file exists at path (relative to vault root).
	Exists(path string) (bool, error)
	// Abs resolves path (relative to vault root) to an absolute path.
	Abs(path string) (string, error)
}
