// Package scanner enumerates vault notes lazily, filtering by term and
// stopping as soon as the requested number of notes has been produced.
package scanner

import (
	"errors"
	"io/fs"
	"iter"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/starford/vaultchat/internal/models"
	"github.com/starford/vaultchat/internal/storage"
)

// DefaultLimit caps a scan whose query carries no positive limit.
const DefaultLimit = 10

// untitled names a note whose file stem is empty (a bare ".md").
const untitled = "untitled"

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// Scan returns a restartable sequence of notes matching q. Every range over
// the sequence walks the vault again. Unreadable files are logged and
// skipped. The walk stops once q.Limit notes were yielded or the consumer
// breaks out of the loop.
func Scan(store storage.Provider, q models.SelectionQuery, logger *slog.Logger) iter.Seq[models.Note] {
	if logger == nil {
		logger = slog.Default()
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	needle := strings.ToLower(q.Term)

	return func(yield func(models.Note) bool) {
		emitted := 0
		err := store.Walk(func(rel string, walkErr error) error {
			if walkErr != nil {
				logger.Warn("scan: skip entry", slog.String("path", rel), slog.String("error", walkErr.Error()))
				return nil
			}
			data, err := store.Read(rel)
			if err == nil && !utf8.Valid(data) {
				err = errInvalidUTF8
			}
			if err != nil {
				logger.Warn("scan: read failed", slog.String("path", rel), slog.String("error", err.Error()))
				return nil
			}
			content := string(data)
			if needle != "" && !strings.Contains(strings.ToLower(content), needle) {
				return nil
			}
			if !yield(models.NewNote(Title(rel), filepath.ToSlash(rel), content)) {
				return fs.SkipAll
			}
			emitted++
			if emitted >= limit {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			logger.Warn("scan: walk aborted", slog.String("root", store.Root()), slog.String("error", err.Error()))
		}
	}
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq[models.Note]) []models.Note {
	var out []models.Note
	for n := range seq {
		out = append(out, n)
	}
	return out
}

// Find is Scan followed by Collect.
func Find(store storage.Provider, q models.SelectionQuery, logger *slog.Logger) []models.Note {
	return Collect(Scan(store, q, logger))
}

// Count returns the number of note files in the vault without reading them.
func Count(store storage.Provider) (int, error) {
	n := 0
	err := store.Walk(func(_ string, walkErr error) error {
		if walkErr == nil {
			n++
		}
		return nil
	})
	return n, err
}

// Title derives a note title from its file stem.
func Title(rel string) string {
	base := filepath.Base(rel)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimSpace(stem) == "" {
		return untitled
	}
	return stem
}
