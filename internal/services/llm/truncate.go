package llm

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Token counting uses cl100k_base regardless of the configured model. The
// routed models tokenize differently, but the count only guards the context
// window and an approximate bound is enough.
const truncateEncoding = "cl100k_base"

// TruncateTokens cuts text down to at most maxTokens tokens. It returns the
// possibly shortened text and whether truncation happened. maxTokens <= 0
// disables truncation.
func TruncateTokens(text string, maxTokens int) (string, bool, error) {
	if maxTokens <= 0 || text == "" {
		return text, false, nil
	}
	enc, err := tiktoken.GetEncoding(truncateEncoding)
	if err != nil {
		return "", false, fmt.Errorf("llm truncate: load encoding: %w", err)
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, false, nil
	}
	truncated := enc.Decode(tokens[:maxTokens])
	return strings.TrimSpace(truncated) + "...", true, nil
}

// CountTokens reports the token count of text under the shared encoding.
func CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	enc, err := tiktoken.GetEncoding(truncateEncoding)
	if err != nil {
		return 0, fmt.Errorf("llm count tokens: load encoding: %w", err)
	}
	return len(enc.Encode(text, nil, nil)), nil
}
