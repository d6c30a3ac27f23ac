// Package llm is the language-model capability consumed by the session and
// synthesizer. Transports classify failures into the apperr taxonomy and
// never retry.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/starford/vaultchat/internal/apperr"
	"github.com/starford/vaultchat/internal/models"
)

// Supported providers.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

// Request is one completion call: an optional system prompt plus an ordered
// message history.
type Request struct {
	System    string
	Messages  []models.Turn
	MaxTokens int
}

// Completer produces a single text reply for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Error is a classified model-service failure. errors.Is matches both the
// taxonomy kind (apperr.ErrAuthentication, ...) and the underlying cause.
type Error struct {
	Provider   string
	StatusCode int
	Kind       error
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm: %s (%d): %v: %v", e.Provider, e.StatusCode, e.Kind, e.Err)
	}
	return fmt.Sprintf("llm: %s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// classify maps an HTTP status to the error taxonomy.
func classify(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return apperr.ErrAuthentication
	case http.StatusForbidden:
		return apperr.ErrPermission
	default:
		return apperr.ErrTransport
	}
}

// Config selects and configures a transport.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// New builds the Completer for cfg.Provider. An empty provider means
// anthropic.
func New(ctx context.Context, cfg Config) (Completer, error) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderAnthropic
	}
	return NewFantasy(ctx, cfg)
}
