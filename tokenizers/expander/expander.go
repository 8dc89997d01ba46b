// Package expander turns raw tokens into labeled tokens.
//
// Entity tag spans, such as `<ENAMEX TYPE="PERSON">Avram Noam Chomsky</ENAMEX>`, are expanded into
// their whitespace separated sub-tokens, labeled with the entity type and their BILOU position:
// Avram/B-PERSON, Noam/I-PERSON, Chomsky/L-PERSON. Every other token is labeled Outside.
//
// Malformed markup is never an error: the raw text is passed through as a single Outside token.
package expander

import (
	"io"
	"iter"
	"regexp"
	"unicode/utf8"

	"github.com/revelations/revelio/tokenizers/api"
	"github.com/revelations/revelio/tokenizers/bilou"
	"github.com/revelations/revelio/tokenizers/scanner"
	"github.com/revelations/revelio/tokenizers/segmenter"
	"k8s.io/klog/v2"
)

// spanPattern matches `<NAME TYPE="value">inner</NAME>`. Go regular expressions have no
// back-references: ParseSpan checks that both names match.
//
// Whitespace is what scanner.Classify considers whitespace: Unicode spaces and control characters.
var spanPattern = regexp.MustCompile(`(?s)^<([^\p{Z}\p{Cc}>]+)[\p{Z}\p{Cc}]+TYPE="([^"]+)"[\p{Z}\p{Cc}]*>([^<]*)</([^\p{Z}\p{Cc}>]+)>$`)

// Span is an entity tag span parsed from an Entity raw token.
type Span struct {
	TagName    string
	EntityType string
	Inner      string

	// InnerStart is the byte position of Inner within the raw token text.
	InnerStart int
}

// ParseSpan parses the text of an Entity raw token. It returns false if the text is not of the
// form `<NAME TYPE="value">inner</NAME>` with NAME one of the configured entity tag names.
func ParseSpan(text string, config *api.Config) (Span, bool) {
	m := spanPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return Span{}, false
	}
	openName, closeName := text[m[2]:m[3]], text[m[8]:m[9]]
	if openName != closeName || !config.HasEntityTag(openName) {
		return Span{}, false
	}
	return Span{
		TagName:    openName,
		EntityType: text[m[4]:m[5]],
		Inner:      text[m[6]:m[7]],
		InnerStart: m[6],
	}, true
}

// subToken is a pending piece of an expanded entity span.
type subToken struct {
	text       string
	start, end int
}

// Expander labels the tokens produced by a segmenter.Segmenter, which it owns.
//
// It is not safe for concurrent use.
type Expander struct {
	config    *api.Config
	segmenter *segmenter.Segmenter

	// Sub-tokens of the entity span being expanded: queue[index:] are still to be returned.
	queue      []subToken
	index      int
	entityType string
}

// New creates an Expander over seg.
func New(seg *segmenter.Segmenter) *Expander {
	return &Expander{
		config:    seg.Config(),
		segmenter: seg,
	}
}

// Reset prepares the Expander, and its segmenter, to tokenize a new document from r.
func (e *Expander) Reset(r io.Reader) {
	e.segmenter.Reset(r)
	e.clearQueue()
}

// All returns an iterator over the remaining tokens. Iteration stops after the first error, which
// is yielded; io.EOF is not.
func (e *Expander) All() iter.Seq2[bilou.Token, error] {
	return func(yield func(bilou.Token, error) bool) {
		for {
			tok, err := e.Next()
			if err == io.EOF {
				return
			}
			if !yield(tok, err) || err != nil {
				return
			}
		}
	}
}

// Next returns the next labeled token, or io.EOF at the end of the stream.
func (e *Expander) Next() (bilou.Token, error) {
	if e.index < len(e.queue) {
		return e.nextSubToken(), nil
	}
	raw, err := e.segmenter.Next()
	if err != nil {
		return bilou.Token{}, err
	}
	if raw.Type == segmenter.Entity {
		if span, ok := ParseSpan(raw.Text, e.config); ok && e.expand(raw, span) {
			return e.nextSubToken(), nil
		}
		klog.V(2).Infof("expander: malformed entity markup at offset %d passed through as a plain token: %q", raw.Start, raw.Text)
	}
	return bilou.Token{
		Text:  raw.Text,
		Start: raw.Start,
		End:   raw.End,
		Attributes: bilou.Attributes{
			Capitalized: isCapitalized(raw.Text),
			Punctuation: raw.Type == segmenter.Punctuation,
		},
	}, nil
}

// expand splits the inner text of span on whitespace into the sub-token queue. It returns false if
// there is nothing but whitespace.
func (e *Expander) expand(raw segmenter.Token, span Span) bool {
	e.clearQueue()
	unit := e.segmenter.Unit()

	// Offsets are computed incrementally: unitPos is the raw (uncorrected) offset of bytePos.
	bytePos := 0
	unitPos := raw.RawStart
	advance := func(to int) int {
		unitPos += scanner.UnitCount(raw.Text[bytePos:to], unit)
		bytePos = to
		return unitPos
	}

	inner := span.Inner
	wordStart := -1
	for i, r := range inner {
		isSpace := scanner.Classify(r) == scanner.Whitespace
		switch {
		case isSpace && wordStart >= 0:
			e.push(raw.Text, span.InnerStart+wordStart, span.InnerStart+i, advance)
			wordStart = -1
		case !isSpace && wordStart < 0:
			wordStart = i
		}
	}
	if wordStart >= 0 {
		e.push(raw.Text, span.InnerStart+wordStart, span.InnerStart+len(inner), advance)
	}
	if len(e.queue) == 0 {
		return false
	}
	e.entityType = span.EntityType
	return true
}

// push appends text[from:to] to the queue.
func (e *Expander) push(text string, from, to int, advance func(int) int) {
	start := e.config.CorrectOffset(advance(from))
	end := e.config.CorrectOffset(advance(to))
	e.queue = append(e.queue, subToken{text: text[from:to], start: start, end: end})
}

func (e *Expander) nextSubToken() bilou.Token {
	sub := e.queue[e.index]
	tok := bilou.Token{
		Text:  sub.text,
		Start: sub.start,
		End:   sub.end,
		Attributes: bilou.Attributes{
			Capitalized: isCapitalized(sub.text),
			EntityType:  e.entityType,
			Span:        bilou.SpanTagFor(e.index, len(e.queue)),
		},
	}
	e.index++
	if e.index == len(e.queue) {
		e.clearQueue()
	}
	return tok
}

func (e *Expander) clearQueue() {
	clear(e.queue)
	e.queue = e.queue[:0]
	e.index = 0
	e.entityType = ""
}

// isCapitalized returns whether the first codepoint of text is upper case.
func isCapitalized(text string) bool {
	r, _ := utf8.DecodeRuneInString(text)
	return scanner.IsUpper(r)
}
