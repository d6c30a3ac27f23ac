package synth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vaultchat/internal/apperr"
	"github.com/starford/vaultchat/internal/assembler"
	"github.com/starford/vaultchat/internal/models"
	"github.com/starford/vaultchat/internal/parser"
	"github.com/starford/vaultchat/internal/testutil"
)

var fixed = time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)

func newSynth(t *testing.T, files map[string]string, fake *testutil.FakeCompleter) (string, *Synthesizer) {
	t.Helper()
	dir, store := testutil.TestVault(t, files)
	s := New(store, fake, assembler.New(assembler.DefaultBudgets()),
		WithLogger(testutil.Logger()),
		WithClock(func() time.Time { return fixed }))
	return dir, s
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Idea: AI & Notes!", "Idea AI  Notes"},
		{"  padded  ", "padded"},
		{"snake_case-and-dash", "snake_case-and-dash"},
		{"../../etc/passwd", "etcpasswd"},
		{"Café", "Caf"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "Sanitize(%q)", tt.in)
	}
}

func TestPersist_WritesFrontMatter(t *testing.T) {
	dir, s := newSynth(t, nil, &testutil.FakeCompleter{})

	path, err := s.Persist(models.GeneratedNote{Title: "Test", Body: "Hello", CreatedAt: fixed}, PersistOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Test.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "---\n"))
	assert.Contains(t, content, "created: 2024-05-01 09:30\n")
	assert.Contains(t, content, "tags: [claude-generated]\n")
	assert.True(t, strings.HasSuffix(content, "---\n\nHello"))
}

func TestPersist_RefusesOverwriteByDefault(t *testing.T) {
	dir, s := newSynth(t, map[string]string{"Test.md": "original"}, &testutil.FakeCompleter{})

	_, err := s.Persist(models.GeneratedNote{Title: "Test", Body: "new"}, PersistOptions{})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	data, err := os.ReadFile(filepath.Join(dir, "Test.md"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestPersist_OverwriteReplaces(t *testing.T) {
	dir, s := newSynth(t, map[string]string{"Test.md": "original"}, &testutil.FakeCompleter{})

	_, err := s.Persist(models.GeneratedNote{Title: "Test", Body: "new"}, PersistOptions{Overwrite: true})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "Test.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n\nnew"))
}

func TestPersist_EmptyTitleFallsBackToTimestamp(t *testing.T) {
	dir, s := newSynth(t, nil, &testutil.FakeCompleter{})

	path, err := s.Persist(models.GeneratedNote{Title: "?!", Body: "x"}, PersistOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "note-20240501-093015.md"), path)
}

func TestRender_Tags(t *testing.T) {
	got := Render(models.GeneratedNote{Body: "b", CreatedAt: fixed, Tags: []string{GeneratedTag, "ai", "ideas"}})
	assert.Equal(t, "---\ncreated: 2024-05-01 09:30\ntags: [claude-generated, ai, ideas]\n---\n\nb", got)
}

func TestRender_TagsWithYAMLSyntaxReadBack(t *testing.T) {
	tags := []string{GeneratedTag, "a, b", "x]", "k: v", "true", "#hash"}
	got := Render(models.GeneratedNote{Body: "b", CreatedAt: fixed, Tags: tags})

	doc := parser.Parse(got)
	raw, ok := doc.FrontMatter["tags"].([]any)
	require.True(t, ok, "front matter should parse: %q", got)
	var back []string
	for _, v := range raw {
		s, isString := v.(string)
		require.True(t, isString, "tag %v decoded as %T", v, v)
		back = append(back, s)
	}
	assert.Equal(t, tags, back)
	assert.Equal(t, "b", doc.Body)
}

func TestPrompt(t *testing.T) {
	assert.Equal(t,
		"Create a new note about: go\nStyle: brief\nFormat: Markdown with [[wiki links]], #tags, and clear section headers.",
		Prompt("", "go", "brief"))

	got := Prompt("Similar notes in your vault:\n\n## a\nx...\n\n", "go", "brief")
	assert.True(t, strings.HasPrefix(got, "Similar notes in your vault:\n\n## a\nx...\n\n\n\nCreate a new note about: go\n"))
}

func TestDraft_UsesPreviewAndParsesReply(t *testing.T) {
	fake := &testutil.FakeCompleter{Replies: []string{
		"---\ntags: [drafts]\n---\n# Apples\nSee [[Fruit]]. #ai #claude-generated",
	}}
	_, s := newSynth(t, map[string]string{
		"a.md": "apple pie recipe",
		"b.md": "banana bread",
	}, fake)

	note, err := s.Draft(context.Background(), "apple", "")
	require.NoError(t, err)

	assert.Equal(t, "apple", note.Title)
	assert.Equal(t, fixed, note.CreatedAt)
	assert.Equal(t, "# Apples\nSee [[Fruit]]. #ai #claude-generated", note.Body)
	assert.Equal(t, []string{GeneratedTag, "drafts", "ai"}, note.Tags)

	req := fake.Last()
	assert.Empty(t, req.System)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	prompt := req.Messages[0].Content
	assert.Contains(t, prompt, "Similar notes in your vault:\n\n## a\napple pie recipe...")
	assert.NotContains(t, prompt, "banana")
	assert.Contains(t, prompt, "Style: detailed\n")
}

func TestDraft_NoSimilarNotes(t *testing.T) {
	fake := &testutil.FakeCompleter{Replies: []string{"body"}}
	_, s := newSynth(t, map[string]string{"b.md": "banana bread"}, fake)

	_, err := s.Draft(context.Background(), "quantum", "brief")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fake.Last().Messages[0].Content, "Create a new note about: quantum\n"))
}

func TestDraft_ModelFailure(t *testing.T) {
	fake := &testutil.FakeCompleter{Err: apperr.ErrTransport}
	_, s := newSynth(t, nil, fake)

	_, err := s.Draft(context.Background(), "x", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrTransport))
	assert.Contains(t, err.Error(), "synth: draft")
}

func TestDraft_EmptyTopic(t *testing.T) {
	fake := &testutil.FakeCompleter{}
	_, s := newSynth(t, nil, fake)

	_, err := s.Draft(context.Background(), "  ", "")
	assert.ErrorIs(t, err, ErrEmptyTopic)
	assert.Zero(t, fake.Calls())
}
