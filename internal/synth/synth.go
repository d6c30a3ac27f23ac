// Package synth drafts new notes with the model and writes them back into
// the vault.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/vaultchat/internal/apperr"
	"github.com/starford/vaultchat/internal/assembler"
	"github.com/starford/vaultchat/internal/llm"
	"github.com/starford/vaultchat/internal/models"
	"github.com/starford/vaultchat/internal/parser"
	"github.com/starford/vaultchat/internal/scanner"
	"github.com/starford/vaultchat/internal/storage"
)

const (
	// DefaultStyle is used when Draft gets an empty style.
	DefaultStyle = "detailed"
	// DefaultMaxTokens bounds the drafted body.
	DefaultMaxTokens = 3000
	// GeneratedTag marks every note written by the synthesizer.
	GeneratedTag = "claude-generated"

	createdLayout  = "2006-01-02 15:04"
	fallbackLayout = "note-20060102-150405"
)

// ErrEmptyTopic is returned by Draft when no topic is given.
var ErrEmptyTopic = errors.New("synth: topic is empty")

// Synthesizer drafts and persists generated notes for one vault.
type Synthesizer struct {
	store     storage.Provider
	completer llm.Completer
	asm       *assembler.Assembler
	maxTokens int
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithMaxTokens sets the token limit of a draft.
func WithMaxTokens(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) {
		s.now = now
	}
}

// New creates a Synthesizer.
func New(store storage.Provider, completer llm.Completer, asm *assembler.Assembler, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		store:     store,
		completer: completer,
		asm:       asm,
		maxTokens: DefaultMaxTokens,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prompt builds the generation request for topic in style around an
// optional preview block.
func Prompt(preview, topic, style string) string {
	var b strings.Builder
	if preview != "" {
		b.WriteString(preview)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Create a new note about: %s\n", topic)
	fmt.Fprintf(&b, "Style: %s\n", style)
	b.WriteString("Format: Markdown with [[wiki links]], #tags, and clear section headers.")
	return b.String()
}

// Draft asks the model for a new note on topic, using notes that mention the
// topic as context. Nothing is written.
func (s *Synthesizer) Draft(ctx context.Context, topic, style string) (models.GeneratedNote, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return models.GeneratedNote{}, ErrEmptyTopic
	}
	if strings.TrimSpace(style) == "" {
		style = DefaultStyle
	}

	similar := scanner.Find(s.store, models.SelectionQuery{
		Term:  topic,
		Limit: s.asm.Budgets().PreviewMaxNotes,
	}, s.logger)
	preview := s.asm.Assemble(similar, assembler.Preview)

	reply, err := s.completer.Complete(ctx, llm.Request{
		Messages:  []models.Turn{models.UserTurn(Prompt(preview, topic, style))},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return models.GeneratedNote{}, apperr.Op("synth: draft", err)
	}

	doc := parser.Parse(reply)
	s.logger.Debug("synth: drafted",
		slog.String("topic", topic),
		slog.Int("similar", len(similar)),
		slog.Int("tags", len(doc.Tags)))

	return models.GeneratedNote{
		Title:     topic,
		Body:      doc.Body,
		CreatedAt: s.now(),
		Tags:      mergeTags(doc.Tags),
	}, nil
}

// mergeTags returns GeneratedTag followed by tags, without duplicates.
func mergeTags(tags []string) []string {
	out := []string{GeneratedTag}
	seen := map[string]struct{}{GeneratedTag: {}}
	for _, t := range tags {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Sanitize keeps ASCII letters, digits, spaces, hyphens and underscores of
// title and trims surrounding whitespace.
func Sanitize(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// FileName returns the vault-relative path note is written to. Titles that
// sanitize to nothing get a name from the creation time.
func FileName(note models.GeneratedNote) string {
	stem := Sanitize(note.Title)
	if stem == "" {
		stem = note.CreatedAt.Format(fallbackLayout)
	}
	return stem + storage.DefaultExtension
}

// Render returns the file content for note: front matter, a blank line, body.
func Render(note models.GeneratedNote) string {
	tags := note.Tags
	if len(tags) == 0 {
		tags = []string{GeneratedTag}
	}
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "created: %s\n", note.CreatedAt.Format(createdLayout))
	fmt.Fprintf(&b, "tags: %s\n", tagList(tags))
	b.WriteString("---\n\n")
	b.WriteString(note.Body)
	return b.String()
}

// tagList renders tags as a YAML flow sequence. Tags that would not read
// back as the same string (commas, brackets, colons, "true") are quoted.
func tagList(tags []string) string {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t})
		}
	}
	out, err := yaml.Marshal(seq)
	if err != nil {
		return "[" + GeneratedTag + "]"
	}
	return strings.TrimSpace(string(out))
}

// PersistOptions controls Persist.
type PersistOptions struct {
	// Overwrite replaces an existing note with the same file name.
	Overwrite bool
}

// Persist writes note into the vault root and returns the absolute path.
// An existing file is left alone and apperr.ErrAlreadyExists returned unless
// opts.Overwrite is set.
func (s *Synthesizer) Persist(note models.GeneratedNote, opts PersistOptions) (string, error) {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = s.now()
	}
	rel := FileName(note)

	if !opts.Overwrite {
		exists, err := s.store.Exists(rel)
		if err != nil {
			return "", fmt.Errorf("synth: persist %s: %w: %w", rel, apperr.ErrPersistence, err)
		}
		if exists {
			return "", fmt.Errorf("synth: persist %s: %w", rel, apperr.ErrAlreadyExists)
		}
	}

	if err := s.store.Write(rel, []byte(Render(note))); err != nil {
		return "", fmt.Errorf("synth: persist %s: %w: %w", rel, apperr.ErrPersistence, err)
	}
	abs, err := s.store.Abs(rel)
	if err != nil {
		return "", fmt.Errorf("synth: persist %s: %w", rel, err)
	}

	s.logger.Info("synth: note written",
		slog.String("path", rel),
		slog.Bool("overwrite", opts.Overwrite))
	return abs, nil
}
