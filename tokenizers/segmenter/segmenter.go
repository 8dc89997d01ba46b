// Package segmenter splits a character stream into raw tokens: words, punctuation marks and entity
// tag spans.
//
// Words are runs of non-whitespace, non-punctuation codepoints, capped at Config.MaxWordLength
// codepoints. Every punctuation mark or math symbol is a token of its own.
//
// An entity tag span is inline markup such as `<ENAMEX TYPE="PERSON">Avram Noam Chomsky</ENAMEX>`,
// whose tag name is one of Config.EntityTagNames. It's emitted verbatim, whitespace included, as a
// single Entity token. Anything that looks like the start of a tag but turns out not to be one is
// tokenized again with the ordinary rules: no character is ever lost.
package segmenter

import (
	"io"
	"iter"
	"unicode/utf8"

	"github.com/revelations/revelio/tokenizers/api"
	"github.com/revelations/revelio/tokenizers/scanner"
	"k8s.io/klog/v2"
)

// maxInitialWordBuffer caps the initial capacity of the word buffer, which grows as needed.
const maxInitialWordBuffer = 1024

// Type of raw token.
type Type int

const (
	Word Type = iota
	Punctuation
	Entity
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case Word:
		return "WORD"
	case Punctuation:
		return "PUNCTUATION"
	case Entity:
		return "ENTITY"
	}
	return "UNKNOWN"
}

// Token is a raw, unlabeled token.
type Token struct {
	Text string
	Type Type

	// Start and End are the corrected offsets of the token, see api.Config.OffsetCorrector.
	Start, End int

	// RawStart is the offset of the token before correction, in the stream seen by the scanner.
	RawStart int
}

// Segmenter is a pull tokenizer over a character stream.
//
// It is not safe for concurrent use: use one Segmenter per document, or Reset it between documents.
type Segmenter struct {
	config  *api.Config
	scanner *scanner.Scanner

	// buf accumulates the bytes of the token in progress, and length counts its codepoints.
	buf        []byte
	length     int
	start, end int

	// Entity tag lookahead scratch space, reused across tokens.
	lookahead           []scanner.Codepoint
	openName, closeName []byte
	suppressTag         bool

	done        bool
	finalOffset int
}

// New creates a Segmenter reading from r. A nil config uses api.DefaultConfig.
func New(r io.Reader, config *api.Config) (*Segmenter, error) {
	if config == nil {
		config = api.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{
		config:  config,
		scanner: scanner.New(r, config),
		buf:     make([]byte, 0, min(config.MaxWordLength*utf8.UTFMax, maxInitialWordBuffer)),
	}, nil
}

// Config returns the configuration of the Segmenter.
func (s *Segmenter) Config() *api.Config { return s.config }

// Unit returns the unit of the offsets reported.
func (s *Segmenter) Unit() api.OffsetUnit { return s.scanner.Unit() }

// Reset prepares the Segmenter to tokenize a new document from r.
func (s *Segmenter) Reset(r io.Reader) {
	s.scanner.Reset(r)
	s.clearToken()
	s.lookahead = s.lookahead[:0]
	s.suppressTag = false
	s.done = false
	s.finalOffset = 0
}

// FinalOffset returns the corrected offset of the end of the stream, once Next returned io.EOF, or
// the end offset of the last token returned so far.
func (s *Segmenter) FinalOffset() int { return s.finalOffset }

// All returns an iterator over the remaining tokens. Iteration stops after the first error, which
// is yielded; io.EOF is not.
func (s *Segmenter) All() iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		for {
			tok, err := s.Next()
			if err == io.EOF {
				return
			}
			if !yield(tok, err) || err != nil {
				return
			}
		}
	}
}

// Next returns the next token, or io.EOF at the end of the stream. Any other error comes from
// reading the source: the token in progress is then dropped.
func (s *Segmenter) Next() (Token, error) {
	if s.done {
		return Token{}, io.EOF
	}
	s.clearToken()
	for {
		cp, err := s.scanner.Next()
		if err == io.EOF {
			if s.length > 0 {
				return s.emit(Word), nil
			}
			s.done = true
			s.finalOffset = s.config.CorrectOffset(s.scanner.Offset())
			return Token{}, io.EOF
		}
		if err != nil {
			s.clearToken()
			return Token{}, err
		}
		suppressTag := s.suppressTag
		s.suppressTag = false

		switch cp.Class {
		case scanner.Whitespace:
			if s.length > 0 {
				return s.emit(Word), nil
			}

		case scanner.Punctuation, scanner.Symbol:
			if s.length > 0 {
				// Word in progress: it ends right before the mark.
				s.scanner.Unread(cp)
				return s.emit(Word), nil
			}
			if !suppressTag && cp.Rune == '<' {
				isTag, err := s.startsTag()
				if err != nil {
					return Token{}, err
				}
				if isTag {
					matched, err := s.scanTag(cp)
					if err != nil {
						s.clearToken()
						return Token{}, err
					}
					if matched {
						return s.emit(Entity), nil
					}
					continue
				}
			}
			s.add(cp)
			return s.emit(Punctuation), nil

		default:
			s.add(cp)
			if s.length >= s.config.MaxWordLength {
				return s.emit(Word), nil
			}
			next, err := s.scanner.Peek()
			if err != nil && err != io.EOF {
				s.clearToken()
				return Token{}, err
			}
			if err == nil && next.Class.IsBoundary() {
				return s.emit(Word), nil
			}
		}
	}
}

// startsTag returns whether the next codepoint (after a '<') can start an entity tag name.
func (s *Segmenter) startsTag() (bool, error) {
	next, err := s.scanner.Peek()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return scanner.IsUpper(next.Rune), nil
}

// add appends cp to the token in progress.
func (s *Segmenter) add(cp scanner.Codepoint) {
	if s.length == 0 {
		s.start = cp.Offset
	}
	s.buf = cp.AppendTo(s.buf)
	s.end = cp.End()
	s.length++
}

func (s *Segmenter) clearToken() {
	s.buf = s.buf[:0]
	s.length = 0
	s.start, s.end = 0, 0
}

// emit returns the token in progress.
func (s *Segmenter) emit(tokenType Type) Token {
	tok := Token{
		Text:     string(s.buf),
		Type:     tokenType,
		Start:    s.config.CorrectOffset(s.start),
		End:      s.config.CorrectOffset(s.end),
		RawStart: s.start,
	}
	s.finalOffset = tok.End
	s.clearToken()
	return tok
}

// fail abandons a tag lookahead: all codepoints consumed are given back to the scanner, and the
// leading '<' will be read again as an ordinary symbol.
func (s *Segmenter) fail(reason string) (bool, error) {
	if klog.V(2).Enabled() {
		klog.Infof("segmenter: entity tag at offset %d not recognized (%s), re-tokenizing %d codepoints",
			s.lookahead[0].Offset, reason, len(s.lookahead))
	}
	s.scanner.Unread(s.lookahead...)
	s.lookahead = s.lookahead[:0]
	s.suppressTag = true
	return false, nil
}
