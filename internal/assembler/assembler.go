// Package assembler turns vault notes into bounded context blocks for model
// prompts. Every policy is a pure function of its inputs: assembling the same
// notes twice yields byte-identical output.
package assembler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/vaultchat/internal/models"
	"github.com/starford/vaultchat/internal/tokens"
)

// Policy selects how notes are excerpted.
type Policy int

const (
	// Search excerpts long passages of the notes matching a query.
	Search Policy = iota
	// Overview lists short previews to prime a chat.
	Overview
	// Preview grounds note generation in similar existing notes.
	Preview
	// Analyze lists titles and sizes with vault statistics.
	Analyze
)

func (p Policy) String() string {
	switch p {
	case Search:
		return "search"
	case Overview:
		return "overview"
	case Preview:
		return "preview"
	case Analyze:
		return "analyze"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Fixed block text.
const (
	excerptSuffix  = "..."
	searchHeader   = "VAULT NOTES:\n\n"
	previewHeader  = "Similar notes in your vault:\n\n"
	NoSearchResult = "No notes found matching your search."
)

// Budgets bounds each policy: characters kept per note and notes per block.
type Budgets struct {
	SearchExcerpt    int `yaml:"search_excerpt"`
	SearchMaxNotes   int `yaml:"search_max_notes"`
	OverviewExcerpt  int `yaml:"overview_excerpt"`
	OverviewMaxNotes int `yaml:"overview_max_notes"`
	// OverviewSample is how many notes are loaded for the chat overview;
	// the "N notes" count reports it, OverviewMaxNotes of them are listed.
	OverviewSample int `yaml:"overview_sample"`
	PreviewExcerpt   int `yaml:"preview_excerpt"`
	PreviewMaxNotes  int `yaml:"preview_max_notes"`
	AnalyzeMaxNotes  int `yaml:"analyze_max_notes"`
}

// DefaultBudgets returns the stock budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		SearchExcerpt:    1000,
		SearchMaxNotes:   5,
		OverviewExcerpt:  100,
		OverviewMaxNotes: 5,
		OverviewSample:   10,
		PreviewExcerpt:   300,
		PreviewMaxNotes:  3,
		AnalyzeMaxNotes:  20,
	}
}

// Assembler builds context blocks.
type Assembler struct {
	budgets Budgets
	counter *tokens.Counter
	logger  *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithCounter sets the token counter used for size estimates.
func WithCounter(c *tokens.Counter) Option {
	return func(a *Assembler) {
		a.counter = c
	}
}

// WithLogger sets the logger for debug size reports.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = l
	}
}

// New creates an Assembler.
func New(b Budgets, opts ...Option) *Assembler {
	a := &Assembler{budgets: b}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Budgets returns the configured budgets.
func (a *Assembler) Budgets() Budgets {
	return a.budgets
}

// Assemble renders notes under policy p. Empty input never fails.
func (a *Assembler) Assemble(notes []models.Note, p Policy) string {
	var block string
	switch p {
	case Search:
		block = a.search(notes)
	case Overview:
		block = a.overview(notes)
	case Preview:
		block = a.preview(notes)
	case Analyze:
		block = a.Analysis(len(notes), notes)
	}
	a.report(p, len(notes), block)
	return block
}

// Estimate returns the token estimate for block.
func (a *Assembler) Estimate(block string) int {
	return a.counter.Count(block)
}

func (a *Assembler) search(notes []models.Note) string {
	if len(notes) == 0 {
		return NoSearchResult
	}
	var sb strings.Builder
	sb.WriteString(searchHeader)
	for _, n := range head(notes, a.budgets.SearchMaxNotes) {
		fmt.Fprintf(&sb, "## %s\n%s%s\n\n", n.Title, Truncate(n.Content, a.budgets.SearchExcerpt), excerptSuffix)
	}
	return sb.String()
}

func (a *Assembler) overview(notes []models.Note) string {
	if len(notes) == 0 {
		return "You have access to 0 notes."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "You have access to %d notes. Here is an overview:\n\n", len(notes))
	for _, n := range head(notes, a.budgets.OverviewMaxNotes) {
		fmt.Fprintf(&sb, "- %s: %s%s\n", n.Title, Truncate(n.Content, a.budgets.OverviewExcerpt), excerptSuffix)
	}
	return sb.String()
}

func (a *Assembler) preview(notes []models.Note) string {
	if len(notes) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(previewHeader)
	for _, n := range head(notes, a.budgets.PreviewMaxNotes) {
		fmt.Fprintf(&sb, "## %s\n%s%s\n\n", n.Title, Truncate(n.Content, a.budgets.PreviewExcerpt), excerptSuffix)
	}
	return sb.String()
}

// Analysis renders vault statistics followed by the sampled note titles.
// total is the number of notes in the whole vault.
func (a *Assembler) Analysis(total int, notes []models.Note) string {
	sample := head(notes, a.budgets.AnalyzeMaxNotes)
	stats := Stats(total, sample)

	var sb strings.Builder
	sb.WriteString("VAULT ANALYSIS:\n\n")
	fmt.Fprintf(&sb, "- Total notes: %d\n", stats.TotalNotes)
	fmt.Fprintf(&sb, "- Words analysed: %d\n\n", stats.SampledWords)
	sb.WriteString("Note titles:\n")
	for _, n := range sample {
		fmt.Fprintf(&sb, "- %s (%d characters)\n", n.Title, n.SizeBytes)
	}
	return sb.String()
}

// Stats summarises a sample of notes.
func Stats(total int, sample []models.Note) models.VaultStats {
	words := 0
	for _, n := range sample {
		words += len(strings.Fields(n.Content))
	}
	return models.VaultStats{
		TotalNotes:   total,
		SampledNotes: len(sample),
		SampledWords: words,
	}
}

// Truncate keeps at most n runes of s. It is a no-op when s already fits.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func head(notes []models.Note, n int) []models.Note {
	if n >= 0 && len(notes) > n {
		return notes[:n]
	}
	return notes
}

func (a *Assembler) report(p Policy, notes int, block string) {
	if a.logger == nil {
		return
	}
	a.logger.Debug("context assembled",
		slog.String("policy", p.String()),
		slog.Int("notes", notes),
		slog.Int("chars", len(block)),
		slog.Int("tokens", a.Estimate(block)),
		slog.Bool("exact_tokens", a.counter.Exact()))
}
