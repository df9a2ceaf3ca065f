package llm_test

import (
	"strings"
	"testing"

	"recap/internal/services/llm"
)

func TestTruncateTokensShortTextUntouched(t *testing.T) {
	text := "a short transcript"
	got, truncated, err := llm.TruncateTokens(text, 100)
	if err != nil {
		t.Fatalf("TruncateTokens: %v", err)
	}
	if truncated || got != text {
		t.Fatalf("expected untouched text, got %q (truncated=%v)", got, truncated)
	}
}

func TestTruncateTokensCutsLongText(t *testing.T) {
	text := strings.Repeat("hello world ", 500)
	got, truncated, err := llm.TruncateTokens(text, 50)
	if err != nil {
		t.Fatalf("TruncateTokens: %v", err)
	}
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got[len(got)-10:])
	}
	count, err := llm.CountTokens(strings.TrimSuffix(got, "..."))
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if count > 50 {
		t.Fatalf("truncated text still has %d tokens", count)
	}
}

func TestTruncateTokensDisabled(t *testing.T) {
	text := strings.Repeat("x", 10000)
	got, truncated, err := llm.TruncateTokens(text, 0)
	if err != nil {
		t.Fatalf("TruncateTokens: %v", err)
	}
	if truncated || got != text {
		t.Fatal("maxTokens 0 must disable truncation")
	}
}
