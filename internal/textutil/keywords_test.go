package textutil

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenizeFiltersShortTokens(t *testing.T) {
	tokens := Tokenize("Go is a language, Go rocks! C++ FTW")
	want := []string{"language", "rocks", "ftw"}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
}

func TestTokenizeKeepsUnicodeWords(t *testing.T) {
	tokens := Tokenize("Das Müsli schmeckt, das Müsli!")
	want := []string{"das", "müsli", "schmeckt", "das", "müsli"}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
}

func TestTopKeywordsRanksByFrequency(t *testing.T) {
	text := strings.Repeat("kubernetes cluster ", 3) + strings.Repeat("deployment ", 2) + "the the the once"
	keywords := TopKeywords(text, 2)
	want := []string{"cluster", "kubernetes"}
	if !reflect.DeepEqual(keywords, want) {
		t.Fatalf("unexpected keywords: %v", keywords)
	}
}

func TestTopKeywordsSkipsSingletonsAndStopwords(t *testing.T) {
	keywords := TopKeywords("the the the unique network network", 5)
	if !reflect.DeepEqual(keywords, []string{"network"}) {
		t.Fatalf("unexpected keywords: %v", keywords)
	}

	if got := TopKeywords("anything", 0); got != nil {
		t.Fatalf("expected nil for zero limit, got %v", got)
	}
}
