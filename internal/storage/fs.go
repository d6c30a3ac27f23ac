package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultExtension is the note file extension.
const DefaultExtension = ".md"

// FS implements Provider backed by the local file system.
type FS struct {
	root   string // absolute path to vault directory
	ext    string
	ignore []glob.Glob
}

// Option configures an FS provider.
type Option func(*fsOptions)

type fsOptions struct {
	ext    string
	ignore []string
}

// WithExtension sets the note file extension (default ".md").
func WithExtension(ext string) Option {
	return func(o *fsOptions) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		o.ext = ext
	}
}

// WithIgnore adds glob patterns (slash-separated, relative to the root) whose
// matches are skipped by Walk. "**" crosses directory boundaries.
func WithIgnore(patterns ...string) Option {
	return func(o *fsOptions) {
		o.ignore = append(o.ignore, patterns...)
	}
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, opts ...Option) (*FS, error) {
	o := fsOptions{ext: DefaultExtension}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ext == "" {
		o.ext = DefaultExtension
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}

	globs := make([]glob.Glob, 0, len(o.ignore))
	for _, pattern := range o.ignore {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("storage: invalid ignore pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}

	return &FS{root: abs, ext: o.ext, ignore: globs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

// Abs resolves a vault-relative path to an absolute one.
func (f *FS) Abs(path string) (string, error) {
	return f.safePath(path)
}

func (f *FS) ignored(rel string, dir bool) bool {
	slashed := filepath.ToSlash(rel)
	for _, g := range f.ignore {
		if g.Match(slashed) || (dir && g.Match(slashed+"/")) {
			return true
		}
	}
	return false
}

// IsNote reports whether rel would be visited by Walk: it carries the note
// extension and neither it nor any parent directory is ignored.
func (f *FS) IsNote(rel string) bool {
	if !strings.HasSuffix(rel, f.ext) || f.ignored(rel, false) {
		return false
	}
	for dir := filepath.Dir(rel); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if f.ignored(dir, true) {
			return false
		}
	}
	return true
}

// SkipsDir reports whether Walk skips the directory rel.
func (f *FS) SkipsDir(rel string) bool {
	return f.ignored(rel, true)
}

// Walk visits every note file under the root in lexical order.
func (f *FS) Walk(fn WalkFunc) error {
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		rel, relErr := filepath.Rel(f.root, p)
		if relErr != nil {
			return relErr
		}
		if walkErr != nil {
			if p == f.root {
				return walkErr
			}
			// Unlistable directory or vanished entry: report and move on.
			if cbErr := fn(rel, walkErr); cbErr != nil {
				return cbErr
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p == f.root {
			return nil
		}
		if d.IsDir() {
			if f.ignored(rel, true) {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), f.ext) || f.ignored(rel, false) {
			return nil
		}
		return fn(rel, nil)
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return fmt.Errorf("storage: walk: %w", err)
	}
	return nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Exists reports whether a regular file exists at path.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return !info.IsDir(), nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vaultchat-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
