// Package tokenizers creates revelio tokenizer pipelines: a character stream is split into raw tokens
// by a segmenter.Segmenter, and an expander.Expander labels them with their BILOU entity tags.
//
// Example:
//
//	tokens, err := tokenizers.TokenizeString(`I met <ENAMEX TYPE="PERSON">Avram Noam Chomsky</ENAMEX>.`, nil)
//	// I/O met/O Avram/B-PERSON Noam/I-PERSON Chomsky/L-PERSON ./O
package tokenizers

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/revelations/revelio/tokenizers/api"
	"github.com/revelations/revelio/tokenizers/bilou"
	"github.com/revelations/revelio/tokenizers/expander"
	"github.com/revelations/revelio/tokenizers/scanner"
	"github.com/revelations/revelio/tokenizers/segmenter"
)

// Tokenizer is a complete pipeline for one document at a time.
//
// It is not safe for concurrent use: to process documents in parallel, create one Tokenizer per
// goroutine.
type Tokenizer struct {
	*expander.Expander
	config *api.Config
}

// New creates a Tokenizer reading from r. A nil config uses api.DefaultConfig.
// If config.Encoding is set, r is decoded from that encoding first.
func New(r io.Reader, config *api.Config) (*Tokenizer, error) {
	if config == nil {
		config = api.DefaultConfig()
	}
	decoded, err := scanner.NewDecodingReader(r, config.Encoding)
	if err != nil {
		return nil, err
	}
	seg, err := segmenter.New(decoded, config)
	if err != nil {
		return nil, errors.WithMessage(err, "invalid tokenizer configuration")
	}
	return &Tokenizer{
		Expander: expander.New(seg),
		config:   config,
	}, nil
}

// Config returns the configuration of the Tokenizer.
func (t *Tokenizer) Config() *api.Config { return t.config }

// Reset prepares the Tokenizer to process a new document from r.
func (t *Tokenizer) Reset(r io.Reader) error {
	decoded, err := scanner.NewDecodingReader(r, t.config.Encoding)
	if err != nil {
		return err
	}
	t.Expander.Reset(decoded)
	return nil
}

// ReadAll returns all remaining tokens.
func (t *Tokenizer) ReadAll() ([]bilou.Token, error) {
	var tokens []bilou.Token
	for tok, err := range t.All() {
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// Tokenize reads the whole document from r and returns its labeled tokens.
func Tokenize(r io.Reader, config *api.Config) ([]bilou.Token, error) {
	t, err := New(r, config)
	if err != nil {
		return nil, err
	}
	return t.ReadAll()
}

// TokenizeString returns the labeled tokens of text.
func TokenizeString(text string, config *api.Config) ([]bilou.Token, error) {
	return Tokenize(strings.NewReader(text), config)
}

// Spans returns the spans of the given tokens.
func Spans(tokens []bilou.Token) []api.TokenSpan {
	spans := make([]api.TokenSpan, len(tokens))
	for i, tok := range tokens {
		spans[i] = tok.Offsets()
	}
	return spans
}
