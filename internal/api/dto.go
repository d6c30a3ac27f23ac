package api

import (
	"context"

	"github.com/starford/vaultchat/internal/assistant"
	"github.com/starford/vaultchat/internal/models"
)

// Assistant is the part of *assistant.Service the handlers use.
type Assistant interface {
	Search(ctx context.Context, term string) (string, error)
	Analyze(ctx context.Context) (assistant.Analysis, error)
	Notes(ctx context.Context, q models.SelectionQuery) []models.Note
	ReadNote(ctx context.Context, path string) (*assistant.NoteDetail, error)
	OpenSession(ctx context.Context) (string, error)
	Session(ctx context.Context, id string) (assistant.SessionView, error)
	Chat(ctx context.Context, id, msg string) (string, error)
	Generate(ctx context.Context, topic, style string) (models.GeneratedNote, error)
	Save(ctx context.Context, note models.GeneratedNote, overwrite bool) (string, error)
}

// SearchResponse is the answer to a vault question.
type SearchResponse struct {
	Query  string `json:"query" example:"apple" validate:"required"`
	Answer string `json:"answer" validate:"required"`
}

// NoteListResponse wraps a note listing.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
}

// SessionCreatedResponse is returned by POST /sessions.
type SessionCreatedResponse struct {
	ID string `json:"id" example:"01HZX3J9Q4M5W7R8T2Y6V0N1KP" validate:"required"`
}

// MessageRequest is a chat message.
type MessageRequest struct {
	Message string `json:"message" example:"What did I write about apples?" validate:"required"`
}

// MessageResponse carries the assistant reply.
type MessageResponse struct {
	SessionID string `json:"session_id" validate:"required"`
	Reply     string `json:"reply" validate:"required"`
}

// GenerateRequest asks for a drafted note, optionally saved right away.
type GenerateRequest struct {
	Topic     string `json:"topic" example:"Sourdough starters" validate:"required"`
	Style     string `json:"style,omitempty" example:"detailed"`
	Save      bool   `json:"save,omitempty"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// GenerateResponse is the drafted note and, when saved, its path.
type GenerateResponse struct {
	Note models.GeneratedNote `json:"note" validate:"required"`
	Path string               `json:"path,omitempty"`
}

// SaveNoteRequest is the request body for writing a generated note.
type SaveNoteRequest struct {
	Title     string   `json:"title" example:"Sourdough starters" validate:"required"`
	Body      string   `json:"body" example:"# Sourdough\n..." validate:"required"`
	Tags      []string `json:"tags,omitempty"`
	Overwrite bool     `json:"overwrite,omitempty"`
}

// SaveNoteResponse is returned after a note is written.
type SaveNoteResponse struct {
	Path string `json:"path" validate:"required"`
}
