// Package watch reports note changes in a vault as they happen on disk.
package watch

import (
	"context"
	"crypto/sha256"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Kind is the type of a note change.
type Kind string

const (
	Created Kind = "created"
	Updated Kind = "updated"
	Deleted Kind = "deleted"
)

// Callback receives every note change with its vault-relative path.
type Callback func(kind Kind, rel string)

// Vault is the part of the vault the watcher needs. *storage.FS implements it.
type Vault interface {
	Root() string
	IsNote(rel string) bool
	SkipsDir(rel string) bool
}

// Watch follows file changes under the vault root until ctx is cancelled,
// calling cb for every note created, written or removed.
//
// Directories created at runtime are added to the watch list and the notes
// already inside them reported as created. Writes that leave a note's content
// unchanged are not reported. A rename is reported as a delete
// of the old path; the new path arrives as its own create event.
func Watch(ctx context.Context, vault Vault, logger *slog.Logger, cb Callback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := vault.Root()
	if err := addDirs(w, vault, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	// Content digests of notes seen since start.
	seen := make(map[string][sha256.Size]byte)

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if vault.SkipsDir(rel) {
						continue
					}
					if addErr := addDirs(w, vault, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					}
					reportDir(vault, root, ev.Name, cb)
					continue
				}
			}

			if !vault.IsNote(rel) {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&fsnotify.Create != 0:
				seen[rel] = digest(ev.Name)
				emit(logger, cb, Created, rel)
			case ev.Op&fsnotify.Write != 0:
				sum := digest(ev.Name)
				if prev, ok := seen[rel]; ok && prev == sum {
					continue
				}
				seen[rel] = sum
				emit(logger, cb, Updated, rel)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(seen, rel)
				emit(logger, cb, Deleted, rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func emit(logger *slog.Logger, cb Callback, kind Kind, rel string) {
	logger.Debug("watcher: note changed", slog.String("path", rel), slog.String("op", string(kind)))
	if cb != nil {
		cb(kind, rel)
	}
}

// digest hashes the file at path. Unreadable files hash as empty content.
func digest(path string) [sha256.Size]byte {
	data, _ := os.ReadFile(path)
	return sha256.Sum256(data)
}

// reportDir reports the notes already present in a newly created directory.
func reportDir(vault Vault, root, dir string, cb Callback) {
	if cb == nil {
		return
	}
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil || !vault.IsNote(rel) {
			return nil
		}
		cb(Created, filepath.ToSlash(rel))
		return nil
	})
}

// addDirs adds dir and its subdirectories, minus ignored ones, to w.
func addDirs(w *fsnotify.Watcher, vault Vault, dir string) error {
	root := vault.Root()
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(root, p); relErr == nil && rel != "." && vault.SkipsDir(rel) {
			return fs.SkipDir
		}
		return w.Add(p)
	})
}
