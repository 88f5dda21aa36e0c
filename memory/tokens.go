package memory

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many model tokens a piece of text consumes.
// Counters are backend-specific; the trimmer treats any counting failure as
// a signal to fail open rather than erroring.
type TokenCounter interface {
	Count(text string) (int, error)
}

// TiktokenCounter counts tokens with a tiktoken BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter for the given encoding name. An empty
// name selects cl100k_base.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count implements TokenCounter.
func (c *TiktokenCounter) Count(text string) (int, error) {
	return len(c.enc.Encode(text, nil, nil)), nil
}

// HeuristicCounter approximates tokens as one per four characters. Useful as
// a dependency-free fallback and in tests.
type HeuristicCounter struct{}

// Count implements TokenCounter.
func (HeuristicCounter) Count(text string) (int, error) {
	return (len(text) + 3) / 4, nil
}
