package internal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/vaultchat/internal/apperr"
	pkgconfig "github.com/starford/vaultchat/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	cfg.LLM.APIKey = "k"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_ValidWithAPIKey(t *testing.T) {
	t.Setenv(apiKeyEnv, "")
	cfg := NewDefaultConfig()
	cfg.LLM.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLLMConfig_APIKeyFromEnv(t *testing.T) {
	t.Setenv(apiKeyEnv, "from-env")
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("api key = %q, want from-env", cfg.LLM.APIKey)
	}
}

func TestLLMConfig_MissingAPIKeyIsConfigurationError(t *testing.T) {
	t.Setenv(apiKeyEnv, "")
	cfg := NewDefaultConfig()
	err := cfg.Validate()
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if !strings.Contains(err.Error(), apiKeyEnv) {
		t.Errorf("error should mention %s: %v", apiKeyEnv, err)
	}
}

func TestLLMConfig_UnknownProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.LLM.APIKey = "k"
	cfg.LLM.Provider = "carrier-pigeon"
	if err := cfg.Validate(); !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestContextConfig_RejectsZeroBudget(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.LLM.APIKey = "k"
	cfg.Context.Budgets.SearchMaxNotes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero budget should fail validation")
	}
}

func TestTranscriptsConfig_PathOnlyRequiredWhenEnabled(t *testing.T) {
	c := TranscriptsConfig{Enabled: false}
	if err := c.Validate(); err != nil {
		t.Fatalf("disabled transcripts need no path: %v", err)
	}
	c.Enabled = true
	if err := c.Validate(); err == nil {
		t.Fatal("enabled transcripts without path should fail")
	}
}

func TestLoadYAML_Overrides(t *testing.T) {
	t.Setenv("VAULTCHAT_TEST_KEY", "sk-yaml")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `vault:
  path: /notes
  ignore: ["drafts/**"]
llm:
  api_key: ${VAULTCHAT_TEST_KEY}
  chat_max_tokens: 500
context:
  search_max_notes: 7
transcripts:
  enabled: false
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-yaml" || cfg.LLM.ChatMaxTokens != 500 {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.GenerateMaxTokens != 3000 {
		t.Errorf("generate_max_tokens default lost: %d", cfg.LLM.GenerateMaxTokens)
	}
	if cfg.Context.Budgets.SearchMaxNotes != 7 || cfg.Context.Budgets.SearchExcerpt != 1000 {
		t.Errorf("budgets = %+v", cfg.Context.Budgets)
	}
	if cfg.Vault.Path != "/notes" || len(cfg.Vault.Ignore) != 1 {
		t.Errorf("vault = %+v", cfg.Vault)
	}
	if cfg.Transcripts.Enabled {
		t.Error("transcripts should be disabled")
	}
}
