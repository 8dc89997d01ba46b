// Package bilou holds the per-token entity attributes used to train and run NER systems.
//
// Each token carries its capitalization, whether it is a punctuation mark, its free form entity type
// (PERSON, LOCATION, ...) and its position within a multi-token entity span, in BILOU format:
//
//   - B: Begin, first token of a multi-token entity.
//   - I: Inside, neither first nor last token of a multi-token entity.
//   - L: Last, last token of a multi-token entity.
//   - U: Unit, the only token of a single token entity.
//   - O: Outside, not part of an entity.
//
// For example, in "I would love to eat breakfast with Avram Noam Chomsky in Montana." the tokens
// would be tagged "Avram B-PERSON", "Noam I-PERSON", "Chomsky L-PERSON", "Montana U-LOCATION" and all
// others "O".
package bilou

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/revelations/revelio/tokenizers/api"
)

// SpanTag is the position of a token within an entity span.
type SpanTag int

const (
	Outside SpanTag = iota
	Begin
	Inside
	Last
	Unit
)

var spanTagNames = [...]string{"O", "B", "I", "L", "U"}

// String implements fmt.Stringer. It returns the single letter form.
func (t SpanTag) String() string {
	if t < Outside || t > Unit {
		return "?"
	}
	return spanTagNames[t]
}

// MarshalText implements encoding.TextMarshaler.
func (t SpanTag) MarshalText() ([]byte, error) {
	if t < Outside || t > Unit {
		return nil, errors.Errorf("invalid span tag %d", int(t))
	}
	return []byte(spanTagNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SpanTag) UnmarshalText(text []byte) error {
	parsed, err := ParseSpanTag(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseSpanTag parses the single letter form of a SpanTag.
func ParseSpanTag(s string) (SpanTag, error) {
	for i, name := range spanTagNames {
		if name == s {
			return SpanTag(i), nil
		}
	}
	return Outside, errors.Errorf("unknown BILOU span tag %q", s)
}

// SpanTagFor returns the tag of the token at index within an entity span of count tokens.
func SpanTagFor(index, count int) SpanTag {
	switch {
	case count == 1:
		return Unit
	case index == 0:
		return Begin
	case index == count-1:
		return Last
	default:
		return Inside
	}
}

// Attributes are the entity features of a token.
//
// Span is Outside if and only if EntityType is empty.
type Attributes struct {
	Capitalized bool
	Punctuation bool
	EntityType  string
	Span        SpanTag
}

// IsEntity returns true if the token is part of an entity of interest, such as a PERSON or LOCATION.
func (a Attributes) IsEntity() bool {
	return a.Span != Outside
}

// Tag combines the span tag with the entity type, as in "B-PERSON", or just "O" outside entities.
func (a Attributes) Tag() string {
	if a.EntityType == "" {
		return a.Span.String()
	}
	return a.Span.String() + "-" + a.EntityType
}

// Reset sets the attributes back to a lower case, non-punctuation, Outside token.
func (a *Attributes) Reset() {
	*a = Attributes{}
}

// ParseTag splits a combined tag such as "L-LOCATION" into its span tag and entity type.
// The entity type may itself contain dashes.
func ParseTag(tag string) (SpanTag, string, error) {
	spanPart, entityType, found := strings.Cut(tag, "-")
	span, err := ParseSpanTag(spanPart)
	if err != nil {
		return Outside, "", errors.WithMessagef(err, "invalid tag %q", tag)
	}
	switch {
	case span == Outside && found:
		return Outside, "", errors.Errorf("invalid tag %q: Outside tags have no entity type", tag)
	case span != Outside && entityType == "":
		return Outside, "", errors.Errorf("invalid tag %q: missing entity type", tag)
	}
	return span, entityType, nil
}

// Token is a final, labeled token. It is a plain value: it remains valid after the tokenizer that
// produced it moves on.
type Token struct {
	Text       string
	Start, End int
	Attributes
}

// Offsets returns the span of text covered by the token.
func (t Token) Offsets() api.TokenSpan {
	return api.TokenSpan{Start: t.Start, End: t.End}
}

// String returns the token text followed by its tag, as in "Avram/B-PERSON".
func (t Token) String() string {
	return t.Text + "/" + t.Tag()
}
