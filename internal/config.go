package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultchat/internal/apperr"
	"github.com/starford/vaultchat/internal/assembler"
	"github.com/starford/vaultchat/internal/llm"
	"github.com/starford/vaultchat/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// apiKeyEnv is consulted when llm.api_key is empty.
const apiKeyEnv = "ANTHROPIC_API_KEY"

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Vault       VaultConfig       `yaml:"vault"`
	LLM         LLMConfig         `yaml:"llm"`
	Context     ContextConfig     `yaml:"context"`
	Transcripts TranscriptsConfig `yaml:"transcripts"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration. Every failure matches
// apperr.ErrConfiguration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Vault, &c.LLM, &c.Context, &c.Transcripts, &c.Auth} {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", apperr.ErrConfiguration, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig describes the notes directory.
type VaultConfig struct {
	Path      string   `yaml:"path"`
	Extension string   `yaml:"extension"`
	Ignore    []string `yaml:"ignore"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extension, validation.Required, validation.Length(2, 0)),
	)
}

// StorageOptions converts the vault settings to storage options.
func (c *VaultConfig) StorageOptions() []storage.Option {
	return []storage.Option{
		storage.WithExtension(c.Extension),
		storage.WithIgnore(c.Ignore...),
	}
}

// LLMConfig selects the model service.
type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	ChatMaxTokens     int           `yaml:"chat_max_tokens"`
	GenerateMaxTokens int           `yaml:"generate_max_tokens"`
}

// Validate validates the model configuration. An empty api_key is filled
// from ANTHROPIC_API_KEY first.
func (c *LLMConfig) Validate() error {
	if c.APIKey == "" {
		c.APIKey = os.Getenv(apiKeyEnv)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(llm.ProviderAnthropic, llm.ProviderOpenAI, llm.ProviderOpenRouter)),
		validation.Field(&c.Model, validation.When(c.Provider != llm.ProviderAnthropic, validation.Required)),
		validation.Field(&c.APIKey, validation.Required.Error("is required (set llm.api_key or "+apiKeyEnv+")")),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ChatMaxTokens, validation.Required, validation.Min(1)),
		validation.Field(&c.GenerateMaxTokens, validation.Required, validation.Min(1)),
	)
}

// Client returns the transport settings.
func (c *LLMConfig) Client() llm.Config {
	return llm.Config{
		Provider: c.Provider,
		Model:    c.Model,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
		Timeout:  c.Timeout,
	}
}

// ContextConfig bounds the note context sent to the model.
type ContextConfig struct {
	Budgets assembler.Budgets `yaml:",inline"`
	// TokenEncoding names a tiktoken encoding for size estimates; empty
	// uses the character heuristic.
	TokenEncoding string `yaml:"token_encoding"`
}

// Validate validates the context budgets.
func (c *ContextConfig) Validate() error {
	b := &c.Budgets
	return validation.ValidateStruct(b,
		validation.Field(&b.SearchExcerpt, validation.Required, validation.Min(1)),
		validation.Field(&b.SearchMaxNotes, validation.Required, validation.Min(1)),
		validation.Field(&b.OverviewExcerpt, validation.Required, validation.Min(1)),
		validation.Field(&b.OverviewMaxNotes, validation.Required, validation.Min(1)),
		validation.Field(&b.OverviewSample, validation.Required, validation.Min(1)),
		validation.Field(&b.PreviewExcerpt, validation.Required, validation.Min(1)),
		validation.Field(&b.PreviewMaxNotes, validation.Required, validation.Min(1)),
		validation.Field(&b.AnalyzeMaxNotes, validation.Required, validation.Min(1)),
	)
}

// TranscriptsConfig holds the SQLite transcript store settings.
type TranscriptsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the transcript configuration.
func (c *TranscriptsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:      "./vault",
			Extension: storage.DefaultExtension,
			Ignore:    []string{".obsidian/**", ".trash/**", ".git/**"},
		},
		LLM: LLMConfig{
			Provider:          llm.ProviderAnthropic,
			Timeout:           60 * time.Second,
			ChatMaxTokens:     2000,
			GenerateMaxTokens: 3000,
		},
		Context: ContextConfig{
			Budgets: assembler.DefaultBudgets(),
		},
		Transcripts: TranscriptsConfig{
			Enabled: true,
			Path:    "./vaultchat.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
