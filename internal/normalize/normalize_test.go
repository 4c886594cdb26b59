package normalize

import (
	"reflect"
	"testing"
)

func TestTokens_LowercasesAndStripsPunctuation(t *testing.T) {
	n := Default()

	got := n.Tokens("New York, N.Y.!")
	want := map[string]bool{"new": true, "york": true, "ny": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens() = %v, want %v", got, want)
	}
}

func TestTokens_RemovesStopwords(t *testing.T) {
	n := Default()

	got := n.Tokens("University of Oxford")
	if got["university"] || got["of"] {
		t.Errorf("stopwords survived normalization: %v", got)
	}
	if !got["oxford"] {
		t.Errorf("substantive token missing: %v", got)
	}
}

func TestTokens_EmptyInput(t *testing.T) {
	n := Default()

	for _, input := range []string{"", "   ", "...", "University of the Institute"} {
		got := n.Tokens(input)
		if len(got) != 0 {
			t.Errorf("Tokens(%q) = %v, want empty set", input, got)
		}
	}
}

func TestTokens_CustomStoplist(t *testing.T) {
	n := NewNormalizer([]string{"labs"})

	got := n.Tokens("University Labs")
	if !got["university"] {
		t.Errorf("default stopword should not apply with custom list: %v", got)
	}
	if got["labs"] {
		t.Errorf("custom stopword survived: %v", got)
	}
}

func TestKey_CanonicalizesNames(t *testing.T) {
	n := Default()

	tests := []struct {
		a, b string
	}{
		{"Jane Doe", "jane doe"},
		{"  Jane   Doe ", "JANE DOE"},
		{"J. Smith", "j smith"},
	}
	for _, tt := range tests {
		if n.Key(tt.a) != n.Key(tt.b) {
			t.Errorf("Key(%q) = %q, Key(%q) = %q, want equal", tt.a, n.Key(tt.a), tt.b, n.Key(tt.b))
		}
	}
}

func TestKey_KeepsStopwords(t *testing.T) {
	n := Default()

	// Names must never lose words to the affiliation stoplist.
	if got := n.Key("De La Cruz"); got != "de la cruz" {
		t.Errorf("Key() = %q, want %q", got, "de la cruz")
	}
}
