package scanner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vaultchat/internal/models"
	"github.com/starford/vaultchat/internal/storage"
	"github.com/starford/vaultchat/internal/testutil"
)

// countingStore records reads and fails for selected paths.
type countingStore struct {
	*storage.FS
	reads int
	fail  map[string]bool
}

func (c *countingStore) Read(path string) ([]byte, error) {
	c.reads++
	if c.fail[path] {
		return nil, errors.New("permission denied")
	}
	return c.FS.Read(path)
}

func paths(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.RelativePath
	}
	return out
}

func TestScan_EmptyVault(t *testing.T) {
	_, store := testutil.TestVault(t, nil)

	assert.Empty(t, Find(store, models.SelectionQuery{Limit: 5}, testutil.Logger()))
	assert.Empty(t, Find(store, models.SelectionQuery{Term: "x", Limit: 5}, testutil.Logger()))
}

func TestScan_TermFilterCaseInsensitive(t *testing.T) {
	_, store := testutil.TestVault(t, map[string]string{
		"a.md": "apple pie recipe",
		"b.md": "banana bread",
		"c.md": "Green APPLES",
	})

	got := Find(store, models.SelectionQuery{Term: "Apple", Limit: 5}, testutil.Logger())
	assert.Equal(t, []string{"a.md", "c.md"}, paths(got))
}

func TestScan_EndToEndScenario(t *testing.T) {
	_, store := testutil.TestVault(t, map[string]string{
		"a.md": "apple pie recipe",
		"b.md": "banana bread",
	})

	got := Find(store, models.SelectionQuery{Term: "apple", Limit: 5}, testutil.Logger())
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Title)
	assert.Equal(t, "a.md", got[0].RelativePath)
	assert.Equal(t, "apple pie recipe", got[0].Content)
	assert.Equal(t, len("apple pie recipe"), got[0].SizeBytes)

	// Traversal is lexical, so the first note visited is a.md.
	got = Find(store, models.SelectionQuery{Limit: 1}, testutil.Logger())
	assert.Equal(t, []string{"a.md"}, paths(got))
}

func TestScan_LimitShortCircuitsWalk(t *testing.T) {
	_, fsStore := testutil.TestVault(t, map[string]string{
		"1.md": "x", "2.md": "x", "3.md": "x", "4.md": "x",
	})
	store := &countingStore{FS: fsStore}

	got := Find(store, models.SelectionQuery{Limit: 2}, testutil.Logger())
	assert.Len(t, got, 2)
	assert.Equal(t, 2, store.reads, "walk must stop once the limit is reached")
}

func TestScan_ConsumerBreakStopsWalk(t *testing.T) {
	_, fsStore := testutil.TestVault(t, map[string]string{
		"1.md": "x", "2.md": "x", "3.md": "x",
	})
	store := &countingStore{FS: fsStore}

	for range Scan(store, models.SelectionQuery{Limit: 10}, testutil.Logger()) {
		break
	}
	assert.Equal(t, 1, store.reads)
}

func TestScan_SkipsUnreadableFiles(t *testing.T) {
	_, fsStore := testutil.TestVault(t, map[string]string{
		"a.md": "first",
		"b.md": "second",
		"c.md": "third",
	})
	store := &countingStore{FS: fsStore, fail: map[string]bool{"b.md": true}}

	got := Find(store, models.SelectionQuery{Limit: 10}, testutil.Logger())
	assert.Equal(t, []string{"a.md", "c.md"}, paths(got))
}

func TestScan_SkipsInvalidUTF8(t *testing.T) {
	_, store := testutil.TestVault(t, map[string]string{
		"bad.md":  "\xff\xfe broken",
		"good.md": "fine",
	})

	got := Find(store, models.SelectionQuery{Limit: 10}, testutil.Logger())
	assert.Equal(t, []string{"good.md"}, paths(got))
}

func TestScan_Restartable(t *testing.T) {
	vaultDir, store := testutil.TestVault(t, map[string]string{"a.md": "one"})
	seq := Scan(store, models.SelectionQuery{Limit: 10}, testutil.Logger())

	assert.Len(t, Collect(seq), 1)
	testutil.WriteNote(t, vaultDir, "b.md", "two")
	assert.Len(t, Collect(seq), 2, "each range re-walks the vault")
}

func TestScan_DefaultLimit(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < DefaultLimit+5; i++ {
		files[string(rune('a'+i))+".md"] = "x"
	}
	_, store := testutil.TestVault(t, files)

	assert.Len(t, Find(store, models.SelectionQuery{}, testutil.Logger()), DefaultLimit)
}

func TestCount(t *testing.T) {
	_, store := testutil.TestVault(t, map[string]string{
		"a.md": "x", "sub/b.md": "y", "note.txt": "z",
	})
	n, err := Count(store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Meeting notes", Title("work/Meeting notes.md"))
	assert.Equal(t, "untitled", Title(".md"))
	assert.Equal(t, "archive.tar", Title("archive.tar.md"))
}
