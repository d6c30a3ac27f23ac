package assembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/starford/vaultchat/internal/models"
	"github.com/starford/vaultchat/internal/testutil"
)

func notesOf(contents ...string) []models.Note {
	out := make([]models.Note, len(contents))
	for i, c := range contents {
		title := string(rune('a' + i))
		out[i] = models.NewNote(title, title+".md", c)
	}
	return out
}

func TestAssemble_EmptyInput(t *testing.T) {
	a := New(DefaultBudgets())

	assert.Equal(t, NoSearchResult, a.Assemble(nil, Search))
	assert.Equal(t, "You have access to 0 notes.", a.Assemble(nil, Overview))
	assert.Equal(t, "", a.Assemble(nil, Preview))
	assert.Contains(t, a.Assemble(nil, Analyze), "- Total notes: 0")
}

func TestAssemble_SearchFormat(t *testing.T) {
	a := New(DefaultBudgets())
	got := a.Assemble(notesOf("apple pie recipe"), Search)

	assert.Equal(t, "VAULT NOTES:\n\n## a\napple pie recipe...\n\n", got)
}

func TestAssemble_ShortContentKeepsOnlyFixedSuffix(t *testing.T) {
	a := New(DefaultBudgets())
	got := a.Assemble(notesOf("short"), Preview)

	assert.Equal(t, previewHeader+"## a\nshort...\n\n", got)
	assert.Equal(t, 1, strings.Count(got, "..."))
}

func TestAssemble_SearchTruncatesAndCaps(t *testing.T) {
	long := strings.Repeat("x", 2500)
	contents := make([]string, 7)
	for i := range contents {
		contents[i] = long
	}
	a := New(DefaultBudgets())
	got := a.Assemble(notesOf(contents...), Search)

	assert.Equal(t, 5, strings.Count(got, "## "))
	assert.Contains(t, got, "## a\n"+strings.Repeat("x", 1000)+"...\n\n")
	assert.NotContains(t, got, strings.Repeat("x", 1001))
}

func TestAssemble_OverviewFormat(t *testing.T) {
	a := New(DefaultBudgets())
	got := a.Assemble(notesOf(strings.Repeat("y", 150), "tiny", "c", "d", "e", "f"), Overview)

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	assert.Equal(t, "You have access to 6 notes. Here is an overview:", lines[0])
	assert.Equal(t, "- a: "+strings.Repeat("y", 100)+"...", lines[2])
	assert.Equal(t, "- b: tiny...", lines[3])
	assert.Len(t, lines, 2+5, "header, blank line and five previews")
}

func TestAssemble_PreviewCapsAtThree(t *testing.T) {
	a := New(DefaultBudgets())
	got := a.Assemble(notesOf(strings.Repeat("z", 400), "b", "c", "d"), Preview)

	assert.Equal(t, 3, strings.Count(got, "## "))
	assert.Contains(t, got, "## a\n"+strings.Repeat("z", 300)+"...\n\n")
}

func TestAssemble_Idempotent(t *testing.T) {
	a := New(DefaultBudgets())
	notes := notesOf(strings.Repeat("é", 1200), "second note")
	for _, p := range []Policy{Search, Overview, Preview, Analyze} {
		assert.Equal(t, a.Assemble(notes, p), a.Assemble(notes, p), p.String())
	}
}

func TestAssemble_ConfigurableBudgets(t *testing.T) {
	b := DefaultBudgets()
	b.SearchExcerpt = 4
	b.SearchMaxNotes = 1
	a := New(b)

	assert.Equal(t, "VAULT NOTES:\n\n## a\nappl...\n\n", a.Assemble(notesOf("apple", "banana"), Search))
}

func TestAnalysis(t *testing.T) {
	a := New(DefaultBudgets(), WithLogger(testutil.Logger()))
	got := a.Analysis(42, notesOf("one two three", "four"))

	assert.Contains(t, got, "- Total notes: 42\n")
	assert.Contains(t, got, "- Words analysed: 4\n")
	assert.Contains(t, got, "- a (13 characters)\n")
	assert.Contains(t, got, "- b (4 characters)\n")
}

func TestStats(t *testing.T) {
	s := Stats(10, notesOf("a b", "c d e"))
	assert.Equal(t, models.VaultStats{TotalNotes: 10, SampledNotes: 2, SampledWords: 5}, s)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("abc", 0))
	// Multi-byte runes are never split.
	assert.Equal(t, "日本", Truncate("日本語", 2))
	assert.Equal(t, "日本語", Truncate("日本語", 3))
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "search", Search.String())
	assert.Equal(t, "policy(9)", Policy(9).String())
}
