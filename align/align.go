// Package align projects word level BILOU labels onto the subword pieces of a model tokenizer,
// so that NER training data can be fed to models with their own vocabulary.
//
// The resulting piece sequence is itself valid BILOU: a "U" word split into several pieces becomes
// "B I* L", a "B" word becomes "B I*", an "I" word "I*" and an "L" word "I* L".
package align

import (
	"sort"
	"strings"

	"github.com/revelations/revelio/tokenizers/api"
	"github.com/revelations/revelio/tokenizers/bilou"
	"github.com/revelations/revelio/tokenizers/scanner"
)

// Encoder splits text into subword pieces, reporting the byte span of each piece in text.
type Encoder interface {
	EncodeWithSpans(text string) api.EncodingResult
}

// Piece is a subword token with the labels projected from the word it belongs to.
// Start and End are offsets in the original document, in the unit of the words' offsets: a piece
// inside a word is placed relative to the word's Start, and a piece covering the space between two
// words spans the gap between them.
type Piece struct {
	ID int
	bilou.Token
}

// Text joins the tokens' texts with single spaces, and returns the byte span of each token within it.
//
// It is the text given to the Encoder by Align: offsets of the original tokens may use any OffsetUnit
// and their markup is gone, so the pieces are aligned against this rebuilt text instead.
func Text(tokens []bilou.Token) (string, []api.TokenSpan) {
	var sb strings.Builder
	spans := make([]api.TokenSpan, len(tokens))
	for i, tok := range tokens {
		if i > 0 {
			sb.WriteByte(' ')
		}
		spans[i].Start = sb.Len()
		sb.WriteString(tok.Text)
		spans[i].End = sb.Len()
	}
	return sb.String(), spans
}

// Align encodes the text of tokens and labels each resulting piece.
//
// A piece belongs to the first word it overlaps and inherits that word's attributes. Pieces that
// overlap no word are Outside, unless they sit between two words of the same entity.
// unit is the OffsetUnit of the tokens' offsets.
func Align(tokens []bilou.Token, encoder Encoder, unit api.OffsetUnit) []Piece {
	text, wordSpans := Text(tokens)
	result := encoder.EncodeWithSpans(text)
	entities := entityIndices(tokens)

	pieces := make([]Piece, len(result.IDs))
	owners := make([]int, len(result.IDs))
	word := 0
	for i, id := range result.IDs {
		span := clamp(result.Spans[i], len(text))
		pieces[i] = Piece{ID: id, Token: bilou.Token{
			Text:  text[span.Start:span.End],
			Start: originalOffset(tokens, wordSpans, span.Start, unit),
			End:   originalOffset(tokens, wordSpans, span.End, unit),
		}}
		for word < len(wordSpans) && wordSpans[word].End <= span.Start {
			word++
		}
		owners[i] = -1
		switch {
		case word < len(wordSpans) && wordSpans[word].Overlaps(span):
			pieces[i].Attributes = tokens[word].Attributes
			owners[i] = entities[word]
		case word > 0 && word < len(wordSpans) && entities[word] >= 0 && entities[word-1] == entities[word]:
			pieces[i].EntityType = tokens[word].EntityType
			owners[i] = entities[word]
		}
		if owners[i] < 0 {
			pieces[i].Span, pieces[i].EntityType = bilou.Outside, ""
		}
	}

	// Re-tag each run of pieces belonging to the same entity.
	for start := 0; start < len(pieces); {
		end := start + 1
		if owners[start] >= 0 {
			for end < len(pieces) && owners[end] == owners[start] {
				end++
			}
			for j := start; j < end; j++ {
				pieces[j].Span = bilou.SpanTagFor(j-start, end-start)
			}
		}
		start = end
	}
	return pieces
}

// entityIndices returns, for each token, the index of the entity span it belongs to, or -1 for
// Outside tokens.
func entityIndices(tokens []bilou.Token) []int {
	indices := make([]int, len(tokens))
	current, next := -1, 0
	for i, tok := range tokens {
		switch tok.Span {
		case bilou.Outside:
			indices[i], current = -1, -1
			continue
		case bilou.Begin, bilou.Unit:
			current = next
			next++
		default:
			if current < 0 {
				current = next
				next++
			}
		}
		indices[i] = current
		if tok.Span == bilou.Last || tok.Span == bilou.Unit {
			current = -1
		}
	}
	return indices
}

// originalOffset maps the byte position pos of the rebuilt text to an offset in the original
// document. Words are one space apart, so pos always falls within (or at an end of) some word.
func originalOffset(tokens []bilou.Token, wordSpans []api.TokenSpan, pos int, unit api.OffsetUnit) int {
	k := sort.Search(len(wordSpans), func(k int) bool { return wordSpans[k].End >= pos })
	if k == len(wordSpans) {
		if k == 0 {
			return 0
		}
		return tokens[k-1].End
	}
	if pos <= wordSpans[k].Start {
		return tokens[k].Start
	}
	return tokens[k].Start + scanner.UnitCount(tokens[k].Text[:pos-wordSpans[k].Start], unit)
}

func clamp(span api.TokenSpan, length int) api.TokenSpan {
	span.Start = min(max(span.Start, 0), length)
	span.End = min(max(span.End, span.Start), length)
	return span
}
