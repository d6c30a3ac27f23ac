// Package assistant is the single entry point the front ends (CLI, HTTP and
// MCP) use to query, converse with and extend a vault.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/starford/vaultchat/internal/apperr"
	"github.com/starford/vaultchat/internal/assembler"
	"github.com/starford/vaultchat/internal/llm"
	"github.com/starford/vaultchat/internal/models"
	"github.com/starford/vaultchat/internal/scanner"
	"github.com/starford/vaultchat/internal/storage"
	"github.com/starford/vaultchat/internal/synth"
)

// DefaultMaxTokens bounds search and analysis answers.
const DefaultMaxTokens = 2000

// Analysis is the result of Analyze.
type Analysis struct {
	Stats  models.VaultStats `json:"stats"`
	Report string            `json:"report"`
}

// NoteDetail is a note with its content, for read_note and the HTTP API.
type NoteDetail struct {
	models.Note
	Content string `json:"content"`
}

// Service coordinates scanning, context assembly, sessions and synthesis.
type Service struct {
	store       storage.Provider
	completer   llm.Completer
	asm         *assembler.Assembler
	synth       *synth.Synthesizer
	transcripts Transcripts
	logger      *slog.Logger

	chatMaxTokens     int
	generateMaxTokens int
	onTurn            func(id string, turns int)

	registry *registry
}

// Option configures a Service.
type Option func(*Service)

// WithTranscripts persists sessions so they survive restarts.
func WithTranscripts(t Transcripts) Option {
	return func(s *Service) {
		s.transcripts = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMaxTokens sets the reply limits for chat/search/analyze and for
// generated notes. Zero keeps the default.
func WithMaxTokens(chat, generate int) Option {
	return func(s *Service) {
		if chat > 0 {
			s.chatMaxTokens = chat
		}
		if generate > 0 {
			s.generateMaxTokens = generate
		}
	}
}

// WithTurnHook registers fn to run after every committed chat turn.
func WithTurnHook(fn func(id string, turns int)) Option {
	return func(s *Service) {
		s.onTurn = fn
	}
}

// New creates a Service.
func New(store storage.Provider, completer llm.Completer, asm *assembler.Assembler, opts ...Option) *Service {
	s := &Service{
		store:             store,
		completer:         completer,
		asm:               asm,
		logger:            slog.Default(),
		chatMaxTokens:     DefaultMaxTokens,
		generateMaxTokens: synth.DefaultMaxTokens,
		registry:          newRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.synth = synth.New(store, completer, asm,
		synth.WithMaxTokens(s.generateMaxTokens),
		synth.WithLogger(s.logger))
	return s
}

// Search answers term from the notes that mention it. Without a matching
// note the model is not called.
func (s *Service) Search(ctx context.Context, term string) (string, error) {
	term = strings.TrimSpace(term)
	notes := scanner.Find(s.store, models.SelectionQuery{
		Term:  term,
		Limit: s.asm.Budgets().SearchMaxNotes,
	}, s.logger)
	if len(notes) == 0 {
		return assembler.NoSearchResult, nil
	}

	block := s.asm.Assemble(notes, assembler.Search)
	prompt := fmt.Sprintf("%s\n\nQuestion: %s\n\nAnswer based on the notes above.", block, term)
	reply, err := s.completer.Complete(ctx, llm.Request{
		Messages:  []models.Turn{models.UserTurn(prompt)},
		MaxTokens: s.chatMaxTokens,
	})
	if err != nil {
		return "", apperr.Op("assistant: search", err)
	}
	return reply, nil
}

// Analyze asks the model for themes, organisation ideas and connections
// across a sample of the vault.
func (s *Service) Analyze(ctx context.Context) (Analysis, error) {
	total, err := scanner.Count(s.store)
	if err != nil {
		return Analysis{}, apperr.Op("assistant: analyze", err)
	}
	sample := scanner.Find(s.store, models.SelectionQuery{Limit: s.asm.Budgets().AnalyzeMaxNotes}, s.logger)
	block := s.asm.Analysis(total, sample)

	prompt := block + "\n\nAnalyze this vault and give me:\n" +
		"1. The main themes\n" +
		"2. Suggestions for organisation\n" +
		"3. Ideas for connections between notes"
	reply, err := s.completer.Complete(ctx, llm.Request{
		Messages:  []models.Turn{models.UserTurn(prompt)},
		MaxTokens: s.chatMaxTokens,
	})
	if err != nil {
		return Analysis{}, apperr.Op("assistant: analyze", err)
	}
	return Analysis{Stats: assembler.Stats(total, sample), Report: reply}, nil
}

// Overview renders the vault overview used as chat context.
func (s *Service) Overview(_ context.Context) (string, error) {
	notes := scanner.Find(s.store, models.SelectionQuery{Limit: s.asm.Budgets().OverviewSample}, s.logger)
	return s.asm.Assemble(notes, assembler.Overview), nil
}

// Notes lists notes matching q without calling the model.
func (s *Service) Notes(_ context.Context, q models.SelectionQuery) []models.Note {
	return scanner.Find(s.store, q, s.logger)
}

// ReadNote returns a single note by vault-relative path.
func (s *Service) ReadNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("assistant: read %s: %w", path, apperr.ErrNotFound)
		}
		return nil, apperr.Op("assistant: read", err)
	}
	n := models.NewNote(scanner.Title(path), path, string(data))
	return &NoteDetail{Note: n, Content: n.Content}, nil
}

// Generate drafts a note on topic. Nothing is written.
func (s *Service) Generate(ctx context.Context, topic, style string) (models.GeneratedNote, error) {
	return s.synth.Draft(ctx, topic, style)
}

// Save writes note into the vault and returns its absolute path.
func (s *Service) Save(_ context.Context, note models.GeneratedNote, overwrite bool) (string, error) {
	return s.synth.Persist(note, synth.PersistOptions{Overwrite: overwrite})
}
