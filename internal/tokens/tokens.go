// Package tokens estimates how many model tokens a context block costs.
package tokens

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens with a tiktoken encoding. A nil Counter, or one whose
// encoding failed to load, falls back to roughly four characters per token.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter loads the named encoding (e.g. "cl100k_base"). An empty name or
// a load failure yields a heuristic counter; the load error is returned so the
// caller can log it.
func NewCounter(encoding string) (*Counter, error) {
	if encoding == "" {
		return &Counter{}, nil
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return &Counter{}, err
	}
	return &Counter{enc: enc}, nil
}

// Exact reports whether counts come from a real tokenizer.
func (c *Counter) Exact() bool {
	return c != nil && c.enc != nil
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if !c.Exact() {
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}
