// Package models defines the domain types for vaultchat.
package models

import "time"

// Note is one markdown file read from the vault. Notes are rebuilt on every
// scan and never mutated after creation.
type Note struct {
	Title        string `json:"title"`
	RelativePath string `json:"path"`
	Content      string `json:"-"`
	SizeBytes    int    `json:"size_bytes"`
}

// NewNote builds a Note, keeping SizeBytes in step with Content.
func NewNote(title, relPath, content string) Note {
	return Note{
		Title:        title,
		RelativePath: relPath,
		Content:      content,
		SizeBytes:    len(content),
	}
}

// SelectionQuery narrows a vault scan. An empty Term disables filtering.
type SelectionQuery struct {
	Term  string `json:"term,omitempty"`
	Limit int    `json:"limit"`
}

// GeneratedNote is a note drafted by the model and not yet written to disk.
type GeneratedNote struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []string  `json:"tags"`
}

// VaultStats summarises a vault for the analyze command.
type VaultStats struct {
	TotalNotes   int `json:"total_notes"`
	SampledNotes int `json:"sampled_notes"`
	SampledWords int `json:"sampled_words"`
}
