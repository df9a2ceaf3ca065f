package language_test

import (
	"testing"

	"recap/internal/language"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"en", "en", true},
		{"ENG", "en", true},
		{"english", "en", true},
		{"fre", "fr", true},
		{"fra", "fr", true},
		{"mandarin", "zh", true},
		{" de ", "de", true},
		{"", "", false},
		{"klingon", "", false},
	}
	for _, tc := range cases {
		got, ok := language.Normalize(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Normalize(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestToISO2PassesThroughUnknownTwoLetterCodes(t *testing.T) {
	if got := language.ToISO2("xx"); got != "xx" {
		t.Fatalf("ToISO2(xx) = %q", got)
	}
	if got := language.ToISO2("unknownlang"); got != "" {
		t.Fatalf("ToISO2(unknownlang) = %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	if got := language.DisplayName("ja"); got != "Japanese" {
		t.Fatalf("DisplayName(ja) = %q", got)
	}
	if got := language.DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName('') = %q", got)
	}
	// Outside the built-in table; CLDR fallback should still name it.
	if got := language.DisplayName("cs"); got != "Czech" {
		t.Fatalf("DisplayName(cs) = %q", got)
	}
}

func TestNormalizeList(t *testing.T) {
	got := language.NormalizeList([]string{"English", "eng", "fre", "", "fr", "xx"})
	want := []string{"en", "fr", "xx"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NormalizeList = %v, want %v", got, want)
		}
	}
}
