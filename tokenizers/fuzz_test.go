package tokenizers

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/revelations/revelio/tokenizers/bilou"
)

// nonSpace drops all whitespace and control characters.
func nonSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func FuzzTokenize(f *testing.F) {
	f.Add("Hello, world!")
	f.Add("")
	f.Add(`I met <ENAMEX TYPE="PERSON">Avram Noam Chomsky</ENAMEX> in <ENAMEX TYPE="LOCATION">Montana</ENAMEX>.`)
	f.Add(`<FOO TYPE="X">bar</FOO>`)
	f.Add(`<ENAMEX TYPE="A">x <ENAMEX TYPE="B">y</ENAMEX> z</ENAMEX>`)
	f.Add(`<ENAMEX TYPE="a>b">  </ENAMEX><TIMEX>`)
	f.Add("café «résumé» 𝄞\x00\xff")
	f.Add(strings.Repeat("x", 600))

	f.Fuzz(func(t *testing.T, input string) {
		tokens, err := TokenizeString(input, nil)
		if err != nil {
			t.Fatalf("TokenizeString(%q) failed: %v", input, err)
		}
		if err := bilou.Validate(tokens); err != nil {
			t.Errorf("invalid BILOU sequence for %q: %v", input, err)
		}

		// Only entity markup may be dropped: between two Outside tokens there is nothing but whitespace.
		var got strings.Builder
		prevEnd, prevOutside := 0, true
		for i, tok := range tokens {
			if tok.Text == "" {
				t.Fatalf("token #%d is empty", i)
			}
			if tok.Start < prevEnd || tok.Start > tok.End || tok.End > len(input) {
				t.Fatalf("token #%d %q has invalid offsets [%d, %d), previous end %d", i, tok.Text, tok.Start, tok.End, prevEnd)
			}
			if input[tok.Start:tok.End] != tok.Text {
				t.Errorf("token #%d text %q does not match input at [%d, %d): %q", i, tok.Text, tok.Start, tok.End, input[tok.Start:tok.End])
			}
			outside := tok.Span == bilou.Outside
			if outside && prevOutside && nonSpace(input[prevEnd:tok.Start]) != "" {
				t.Errorf("characters %q lost before token #%d %q", input[prevEnd:tok.Start], i, tok.Text)
			}
			got.WriteString(tok.Text)
			prevEnd, prevOutside = tok.End, outside
		}
		if prevOutside && nonSpace(input[prevEnd:]) != "" {
			t.Errorf("characters %q lost after the last token", input[prevEnd:])
		}
		if utf8.ValidString(input) && !tokensHaveEntities(tokens) && nonSpace(got.String()) != nonSpace(input) {
			t.Errorf("coverage mismatch for %q: got %q", input, got.String())
		}
	})
}

func tokensHaveEntities(tokens []bilou.Token) bool {
	for _, tok := range tokens {
		if tok.IsEntity() {
			return true
		}
	}
	return false
}
