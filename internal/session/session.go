// Package session owns the ordered turn history of one conversation with the
// model.
//
// A Session has a single owner: it is not safe for concurrent Send calls and
// does no locking of its own. Callers that share a session across goroutines
// must serialise access.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/vaultchat/internal/apperr"
	"github.com/starford/vaultchat/internal/llm"
	"github.com/starford/vaultchat/internal/models"
)

// SystemPreamble opens every chat system prompt; the vault overview follows it.
const SystemPreamble = "You are an assistant with access to the user's notes. "

// DefaultMaxTokens bounds each assistant reply.
const DefaultMaxTokens = 2000

// ErrEmptyMessage is returned by Send for blank input.
var ErrEmptyMessage = errors.New("session: message is empty")

// State is the session lifecycle state.
type State int

const (
	// Empty sessions have no turns yet.
	Empty State = iota
	// Active sessions hold at least one committed turn pair.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "empty"
}

// ContextFunc returns the vault overview placed in the system prompt. It is
// called on every Send so the overview tracks vault changes.
type ContextFunc func(ctx context.Context) (string, error)

// Recorder persists committed turns. AppendTurns must store all turns or none.
type Recorder interface {
	AppendTurns(ctx context.Context, id string, turns ...models.Turn) error
}

// TranscriptReader loads a stored transcript.
type TranscriptReader interface {
	Turns(ctx context.Context, id string) ([]models.Turn, error)
}

// Session is one conversation bound to one vault.
type Session struct {
	id        string
	completer llm.Completer
	overview  ContextFunc
	recorder  Recorder
	maxTokens int
	logger    *slog.Logger

	history []models.Turn
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder persists every committed turn pair.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithMaxTokens sets the reply token limit.
func WithMaxTokens(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// Open creates an empty session.
func Open(id string, completer llm.Completer, overview ContextFunc, opts ...Option) *Session {
	s := &Session{
		id:        id,
		completer: completer,
		overview:  overview,
		maxTokens: DefaultMaxTokens,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resume rebuilds a session from its stored transcript.
func Resume(ctx context.Context, id string, store TranscriptReader, completer llm.Completer, overview ContextFunc, opts ...Option) (*Session, error) {
	turns, err := store.Turns(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: resume %s: %w", id, err)
	}
	s := Open(id, completer, overview, opts...)
	s.history = append(s.history, turns...)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State reports whether any turn has been committed.
func (s *Session) State() State {
	if len(s.history) == 0 {
		return Empty
	}
	return Active
}

// Len returns the number of committed turns.
func (s *Session) Len() int {
	return len(s.history)
}

// History returns a copy of the committed turns in chronological order.
func (s *Session) History() []models.Turn {
	return append([]models.Turn(nil), s.history...)
}

// Send asks the model to answer msg in the context of the whole history.
//
// The user turn is staged and committed together with the reply only after
// the model answered (and, with a Recorder, after the pair was stored). On
// any failure the history is left exactly as it was.
func (s *Session) Send(ctx context.Context, msg string) (string, error) {
	if strings.TrimSpace(msg) == "" {
		return "", ErrEmptyMessage
	}

	system := SystemPreamble
	if s.overview != nil {
		block, err := s.overview(ctx)
		if err != nil {
			return "", fmt.Errorf("session: build overview: %w", err)
		}
		system += block
	}

	staged := models.UserTurn(msg)
	messages := make([]models.Turn, 0, len(s.history)+1)
	messages = append(messages, s.history...)
	messages = append(messages, staged)

	reply, err := s.completer.Complete(ctx, llm.Request{
		System:    system,
		Messages:  messages,
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		s.logger.Warn("session: completion failed",
			slog.String("session", s.id),
			slog.Int("turns", len(s.history)),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("session: send: %w", err)
	}

	pair := []models.Turn{staged, models.AssistantTurn(reply)}
	if s.recorder != nil {
		if err := s.recorder.AppendTurns(ctx, s.id, pair...); err != nil {
			return "", fmt.Errorf("session: record turns: %w: %w", apperr.ErrPersistence, err)
		}
	}
	s.history = append(s.history, pair...)

	s.logger.Debug("session: turn committed",
		slog.String("session", s.id),
		slog.Int("turns", len(s.history)))
	return reply, nil
}
