package contextfmt

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

func initTokenEncoder() error {
	encoderOnce.Do(func() {
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// EstimateTokens approximates token count as ceil(len/4). The tier
// budget table was calibrated against this heuristic; budget enforcement
// must keep using it even where an exact tokenizer is available.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// CountTokens returns an exact token count via tiktoken, falling back
// to the estimate when the encoder is unavailable. Used for diagnostics
// and logging only, never for budget enforcement.
func CountTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		return EstimateTokens(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

// TruncateToTokens slices text to a token budget by converting the
// budget back to a character count, appending an ellipsis if truncated.
// A non-positive budget means unbounded.
func TruncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "..."
}

// truncateChars slices text to a character budget with an ellipsis.
func truncateChars(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "..."
}
