package textutil

import (
	"regexp"
	"sort"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "has": {}, "have": {},
	"her": {}, "his": {}, "was": {}, "one": {}, "our": {}, "out": {},
	"they": {}, "this": {}, "that": {}, "with": {}, "from": {}, "your": {},
	"will": {}, "would": {}, "there": {}, "their": {}, "what": {}, "were": {},
	"when": {}, "which": {}, "about": {}, "into": {}, "than": {}, "then": {},
	"them": {}, "these": {}, "some": {}, "just": {}, "like": {}, "been": {},
	"because": {}, "really": {}, "going": {}, "very": {}, "also": {},
	"here": {}, "more": {}, "over": {}, "only": {}, "most": {}, "other": {},
	"things": {}, "thing": {}, "want": {}, "know": {}, "think": {},
	"actually": {}, "right": {}, "kind": {}, "lot": {}, "yeah": {},
	"okay": {}, "gonna": {}, "say": {}, "said": {}, "see": {}, "well": {},
	"how": {}, "why": {}, "who": {}, "get": {}, "got": {}, "now": {},
	"way": {}, "make": {}, "made": {}, "much": {}, "many": {}, "even": {},
	"does": {}, "did": {}, "doing": {}, "don": {}, "let": {}, "its": {},
	"it": {}, "is": {}, "in": {}, "on": {}, "of": {}, "to": {}, "we": {},
	"so": {}, "if": {}, "at": {}, "as": {}, "be": {}, "by": {}, "or": {},
	"an": {}, "up": {}, "do": {}, "go": {}, "no": {}, "me": {}, "my": {},
}

// Tokenize splits text into lowercase tokens, filtering short tokens.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	raw := tokenSplitPattern.Split(lowered, -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.TrimSpace(token)
		if len([]rune(token)) < 3 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TopKeywords returns the most frequent non-stopword tokens in text, ordered
// by descending frequency with alphabetical tie-breaking. Tokens occurring
// only once are skipped so incidental words don't surface as keywords.
func TopKeywords(text string, limit int) []string {
	if limit <= 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, token := range Tokenize(text) {
		if _, skip := stopwords[token]; skip {
			continue
		}
		counts[token]++
	}

	type termCount struct {
		term  string
		count int
	}
	ranked := make([]termCount, 0, len(counts))
	for term, count := range counts {
		if count < 2 {
			continue
		}
		ranked = append(ranked, termCount{term: term, count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].term < ranked[j].term
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	keywords := make([]string, 0, len(ranked))
	for _, entry := range ranked {
		keywords = append(keywords, entry.term)
	}
	return keywords
}
