package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vaultchat/internal/apperr"
	"github.com/starford/vaultchat/internal/models"
)

// stubServer answers every request with status and body and records the
// last decoded request body.
func stubServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

var conversation = Request{
	System:    "sys",
	MaxTokens: 2000,
	Messages: []models.Turn{
		models.UserTurn("hi"),
		models.AssistantTurn("hello"),
		models.UserTurn("again"),
	},
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "pigeon", APIKey: "k", Model: "m"})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestNew_MissingKeyOrModel(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: ProviderOpenAI, Model: "m"})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)

	_, err = New(context.Background(), Config{Provider: ProviderOpenAI, APIKey: "k"})
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestNew_AnthropicIsDefault(t *testing.T) {
	c, err := New(context.Background(), Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, c.(*Fantasy).name)
}

func TestOpenAI_CompleteSendsSystemAndHistory(t *testing.T) {
	var seen map[string]any
	srv := stubServer(t, http.StatusOK, `{
		"id": "c1", "object": "chat.completion", "created": 1, "model": "test-model",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "use apples"}}]
	}`, &seen)

	c, err := New(context.Background(), Config{Provider: ProviderOpenAI, APIKey: "k", Model: "test-model", BaseURL: srv.URL})
	require.NoError(t, err)

	reply, err := c.Complete(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, "use apples", reply)

	assert.Equal(t, "test-model", seen["model"])
	assert.EqualValues(t, 2000, seen["max_tokens"])

	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	var roles, contents []string
	for _, m := range msgs {
		msg := m.(map[string]any)
		roles = append(roles, msg["role"].(string))
		contents = append(contents, msg["content"].(string))
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.Equal(t, []string{"sys", "hi", "hello", "again"}, contents)
}

func TestAnthropic_CompleteJoinsTextBlocks(t *testing.T) {
	var seen map[string]any
	srv := stubServer(t, http.StatusOK, `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "test-model",
		"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there"}],
		"stop_reason": "end_turn", "usage": {"input_tokens": 3, "output_tokens": 2}
	}`, &seen)

	c, err := New(context.Background(), Config{Provider: ProviderAnthropic, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	reply, err := c.Complete(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)

	assert.Equal(t, DefaultAnthropicModel, seen["model"])
	assert.EqualValues(t, 2000, seen["max_tokens"])
	raw, err := json.Marshal(seen["system"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sys"`)

	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])
}

func TestComplete_ErrorClassification(t *testing.T) {
	bodies := map[string]string{
		ProviderOpenAI:    `{"error": {"message": "nope", "type": "some_error"}}`,
		ProviderAnthropic: `{"type": "error", "error": {"type": "some_error", "message": "nope"}}`,
	}
	cases := []struct {
		name   string
		status int
		kind   error
	}{
		{"unauthorized", http.StatusUnauthorized, apperr.ErrAuthentication},
		{"forbidden", http.StatusForbidden, apperr.ErrPermission},
		{"server error", http.StatusInternalServerError, apperr.ErrTransport},
		{"rate limited", http.StatusTooManyRequests, apperr.ErrTransport},
	}
	for provider, body := range bodies {
		for _, tc := range cases {
			t.Run(provider+"/"+tc.name, func(t *testing.T) {
				srv := stubServer(t, tc.status, body, nil)
				c, err := New(context.Background(), Config{Provider: provider, APIKey: "k", Model: "m", BaseURL: srv.URL})
				require.NoError(t, err)

				_, err = c.Complete(context.Background(), Request{MaxTokens: 10, Messages: []models.Turn{models.UserTurn("x")}})
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.kind)
				assert.True(t, apperr.IsModelError(err))

				var le *Error
				require.True(t, errors.As(err, &le))
				assert.Equal(t, tc.status, le.StatusCode)
				assert.Equal(t, provider, le.Provider)
			})
		}
	}
}

func TestComplete_UnreachableServerIsTransport(t *testing.T) {
	srv := stubServer(t, http.StatusOK, `{}`, nil)
	url := srv.URL
	srv.Close()

	c, err := New(context.Background(), Config{Provider: ProviderOpenAI, APIKey: "k", Model: "m", BaseURL: url})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Request{Messages: []models.Turn{models.UserTurn("x")}})
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.True(t, strings.HasPrefix(err.Error(), "llm: openai: "))
}

func TestToPrompt_SkipsEmptySystem(t *testing.T) {
	p := toPrompt(Request{Messages: []models.Turn{models.UserTurn("a")}})
	require.Len(t, p, 1)
}
