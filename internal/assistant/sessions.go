package assistant

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/starford/vaultchat/internal/apperr"
	"github.com/starford/vaultchat/internal/models"
	"github.com/starford/vaultchat/internal/session"
)

// Transcripts stores sessions. *transcript.DB implements it.
type Transcripts interface {
	session.Recorder
	session.TranscriptReader
	CreateSession(ctx context.Context, id string) error
}

// SessionView is a read-only snapshot of a session.
type SessionView struct {
	ID    string        `json:"id"`
	State string        `json:"state"`
	Turns []models.Turn `json:"turns"`
}

// entry serialises Send calls on one session.
type entry struct {
	mu sync.Mutex
	s  *session.Session
}

type registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	entropy  io.Reader
}

func newRegistry() *registry {
	return &registry{
		sessions: make(map[string]*entry),
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// newID must be called with r.mu held.
func (r *registry) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String()
}

func (r *registry) get(id string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	return e, ok
}

// put registers e under id unless another caller got there first, and
// returns the registered entry.
func (r *registry) put(id string, e *entry) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		return existing
	}
	r.sessions[id] = e
	return e
}

func (s *Service) sessionOptions() []session.Option {
	opts := []session.Option{
		session.WithMaxTokens(s.chatMaxTokens),
		session.WithLogger(s.logger),
	}
	if s.transcripts != nil {
		opts = append(opts, session.WithRecorder(s.transcripts))
	}
	return opts
}

// OpenSession starts a new empty conversation and returns its id.
func (s *Service) OpenSession(ctx context.Context) (string, error) {
	s.registry.mu.Lock()
	id := s.registry.newID()
	s.registry.mu.Unlock()

	if s.transcripts != nil {
		if err := s.transcripts.CreateSession(ctx, id); err != nil {
			return "", apperr.Op("assistant: open session", err)
		}
	}
	s.registry.put(id, &entry{s: session.Open(id, s.completer, s.Overview, s.sessionOptions()...)})
	return id, nil
}

// lookup finds a live session, resuming it from transcripts when needed.
func (s *Service) lookup(ctx context.Context, id string) (*entry, error) {
	if e, ok := s.registry.get(id); ok {
		return e, nil
	}
	if s.transcripts == nil {
		return nil, fmt.Errorf("assistant: session %s: %w", id, apperr.ErrNotFound)
	}
	sess, err := session.Resume(ctx, id, s.transcripts, s.completer, s.Overview, s.sessionOptions()...)
	if err != nil {
		return nil, apperr.Op("assistant: resume session", err)
	}
	return s.registry.put(id, &entry{s: sess}), nil
}

// Session returns a snapshot of session id.
func (s *Service) Session(ctx context.Context, id string) (SessionView, error) {
	e, err := s.lookup(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return SessionView{
		ID:    id,
		State: e.s.State().String(),
		Turns: e.s.History(),
	}, nil
}

// Chat sends msg on session id and returns the reply. Concurrent calls on
// the same session run one after another.
func (s *Service) Chat(ctx context.Context, id, msg string) (string, error) {
	e, err := s.lookup(ctx, id)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	reply, err := e.s.Send(ctx, msg)
	turns := e.s.Len()
	e.mu.Unlock()
	if err != nil {
		return "", err
	}
	if s.onTurn != nil {
		s.onTurn(id, turns)
	}
	return reply, nil
}
