package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"

	"github.com/starford/vaultchat/internal/apperr"
	"github.com/starford/vaultchat/internal/models"
)

// DefaultAnthropicModel is used when the anthropic provider has no model set.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

const defaultTimeout = 120 * time.Second

var _ Completer = (*Fantasy)(nil)

// Fantasy adapts a fantasy language model to Completer.
type Fantasy struct {
	model fantasy.LanguageModel
	name  string
}

// NewFantasy resolves cfg.Provider to a fantasy provider and model.
func NewFantasy(ctx context.Context, cfg Config) (*Fantasy, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: %s api key is empty: %w", cfg.Provider, apperr.ErrConfiguration)
	}
	if cfg.Model == "" && cfg.Provider == ProviderAnthropic {
		cfg.Model = DefaultAnthropicModel
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: %s model is empty: %w", cfg.Provider, apperr.ErrConfiguration)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	var provider fantasy.Provider
	var err error

	switch cfg.Provider {
	case ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey), anthropic.WithHTTPClient(client)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		provider, err = anthropic.New(opts...)

	case ProviderOpenAI:
		opts := []openai.Option{openai.WithAPIKey(cfg.APIKey), openai.WithHTTPClient(client)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = openai.New(opts...)

	case ProviderOpenRouter:
		provider, err = openrouter.New(openrouter.WithAPIKey(cfg.APIKey), openrouter.WithHTTPClient(client))

	default:
		return nil, fmt.Errorf("llm: unsupported provider %q: %w", cfg.Provider, apperr.ErrConfiguration)
	}
	if err != nil {
		return nil, fmt.Errorf("llm: create provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("llm: get language model: %w", err)
	}

	return &Fantasy{model: model, name: cfg.Provider}, nil
}

// Complete converts req into a fantasy prompt and generates a reply.
// Provider failures carrying an HTTP status are classified by it; anything
// else is a transport error.
func (p *Fantasy) Complete(ctx context.Context, req Request) (string, error) {
	call := fantasy.Call{Prompt: toPrompt(req)}
	if req.MaxTokens > 0 {
		maxTokens := int64(req.MaxTokens)
		call.MaxOutputTokens = &maxTokens
	}

	resp, err := p.model.Generate(ctx, call)
	if err != nil {
		return "", p.classify(err)
	}
	text := replyText(resp.Content)
	if text == "" {
		return "", &Error{Provider: p.name, Kind: apperr.ErrTransport, Err: errors.New("empty response content")}
	}
	return text, nil
}

// replyText joins every text part of a reply.
func replyText(content fantasy.ResponseContent) string {
	var b strings.Builder
	for _, c := range content {
		if tc, ok := fantasy.AsContentType[fantasy.TextContent](c); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func (p *Fantasy) classify(err error) error {
	e := &Error{Provider: p.name, Kind: apperr.ErrTransport, Err: err}
	var pe *fantasy.ProviderError
	if errors.As(err, &pe) && pe.StatusCode != 0 {
		e.StatusCode = pe.StatusCode
		e.Kind = classify(pe.StatusCode)
	}
	return e
}

func toPrompt(req Request) fantasy.Prompt {
	prompt := make(fantasy.Prompt, 0, len(req.Messages)+1)
	if req.System != "" {
		prompt = append(prompt, textMessage(fantasy.MessageRoleSystem, req.System))
	}
	for _, t := range req.Messages {
		switch t.Role {
		case models.RoleUser:
			prompt = append(prompt, fantasy.NewUserMessage(t.Content))
		case models.RoleAssistant:
			prompt = append(prompt, textMessage(fantasy.MessageRoleAssistant, t.Content))
		}
	}
	return prompt
}

func textMessage(role fantasy.MessageRole, text string) fantasy.Message {
	return fantasy.Message{
		Role:    role,
		Content: []fantasy.MessagePart{fantasy.TextPart{Text: text}},
	}
}
