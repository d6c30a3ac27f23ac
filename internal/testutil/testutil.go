// Package testutil provides shared test helpers for vaults, transcripts and
// a scripted language model.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/vaultchat/internal/llm"
	"github.com/starford/vaultchat/internal/storage"
	"github.com/starford/vaultchat/internal/transcript"
)

// TestVault creates a temporary vault populated with files (relative path →
// content) and returns its directory and provider.
func TestVault(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	for rel, content := range files {
		WriteNote(t, vaultDir, rel, content)
	}
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteNote writes a file below dir, creating parent directories.
func WriteNote(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestTranscripts opens a temporary transcript database that is closed on cleanup.
func TestTranscripts(t *testing.T) *transcript.DB {
	t.Helper()
	db, err := transcript.Open(filepath.Join(t.TempDir(), "transcripts.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FakeCompleter is a scripted llm.Completer. Replies are returned in order;
// once exhausted the last reply repeats. Err, when set, fails every call.
type FakeCompleter struct {
	mu       sync.Mutex
	Replies  []string
	Err      error
	Requests []llm.Request
}

var _ llm.Completer = (*FakeCompleter)(nil)

// Complete records req and returns the next scripted reply.
func (f *FakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Copy messages so later mutation by the caller cannot alter the record.
	msgs := append(req.Messages[:0:0], req.Messages...)
	req.Messages = msgs
	f.Requests = append(f.Requests, req)

	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Replies) == 0 {
		return "", nil
	}
	idx := len(f.Requests) - 1
	if idx >= len(f.Replies) {
		idx = len(f.Replies) - 1
	}
	return f.Replies[idx], nil
}

// Calls returns the number of recorded requests.
func (f *FakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// Last returns the most recent request.
func (f *FakeCompleter) Last() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return llm.Request{}
	}
	return f.Requests[len(f.Requests)-1]
}
