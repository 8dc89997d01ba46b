package align

import (
	"strings"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/pkg/errors"
	"github.com/revelations/revelio/tokenizers/api"
)

// metaspace is the SentencePiece replacement for the space character (U+2581, lower one eighth block).
const metaspace = "▁"

// SentencePiece is an Encoder based on a SentencePiece model, as used by T5, Llama and Gemma models.
type SentencePiece struct {
	processor *esentencepiece.Processor
}

// Compile time assert that SentencePiece implements Encoder.
var _ Encoder = &SentencePiece{}

// NewSentencePiece loads a SentencePiece model from a local "tokenizer.model" file.
func NewSentencePiece(modelPath string) (*SentencePiece, error) {
	proc, err := esentencepiece.NewProcessorFromPath(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "can't load sentencepiece model from %q", modelPath)
	}
	return &SentencePiece{processor: proc}, nil
}

// Encode returns the ids of the pieces of text.
func (sp *SentencePiece) Encode(text string) []int {
	tokens := sp.processor.Encode(text)
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = tok.ID
	}
	return ids
}

// EncodeWithSpans returns the ids of the pieces of text along with their byte spans.
//
// Pieces are matched back against text in order: a leading metaspace skips whitespace, and a piece
// that can't be found (byte fallback pieces) advances by its own length.
func (sp *SentencePiece) EncodeWithSpans(text string) api.EncodingResult {
	tokens := sp.processor.Encode(text)
	result := api.EncodingResult{
		IDs:   make([]int, len(tokens)),
		Spans: make([]api.TokenSpan, len(tokens)),
	}
	pos := 0
	for i, tok := range tokens {
		result.IDs[i] = tok.ID
		piece, spaced := strings.CutPrefix(tok.Text, metaspace)
		if spaced {
			for pos < len(text) && isSpaceByte(text[pos]) {
				pos++
			}
		}
		if piece == "" {
			// A lone metaspace covers the space just skipped.
			start := pos
			if spaced && start > 0 && isSpaceByte(text[start-1]) {
				start--
			}
			result.Spans[i] = api.TokenSpan{Start: start, End: pos}
			continue
		}
		start := pos
		if idx := strings.Index(text[pos:], piece); idx >= 0 {
			start = pos + idx
			pos = start + len(piece)
		} else {
			pos = min(pos+len(piece), len(text))
		}
		result.Spans[i] = api.TokenSpan{Start: start, End: pos}
	}
	return result
}

// Decode returns the text of a sequence of ids.
func (sp *SentencePiece) Decode(ids []int) string {
	return sp.processor.Decode(ids)
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
