package compose

import "unicode/utf8"

// TokenCounter estimates token usage for budget reporting. The heuristic is
// ~4 characters per token, which is close enough for sizing decisions; the
// hard budget itself is enforced in bytes.
type TokenCounter struct {
	charsPerToken float64
}

// NewTokenCounter creates a token counter with default calibration.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{charsPerToken: 4.0}
}

// CountString estimates tokens in a string.
func (tc *TokenCounter) CountString(s string) int {
	if s == "" {
		return 0
	}
	runeCount := utf8.RuneCountInString(s)
	return int(float64(runeCount) / tc.charsPerToken)
}

// CountBlocks estimates tokens across blocks.
func (tc *TokenCounter) CountBlocks(blocks []Block) int {
	total := 0
	for _, b := range blocks {
		total += tc.CountString(b.Content) + tc.CountString(b.Label)
	}
	return total
}
