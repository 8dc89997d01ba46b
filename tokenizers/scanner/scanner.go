// Package scanner implements an incremental, refillable codepoint reader with one codepoint of
// lookahead, pushback and absolute offset tracking.
//
// The Scanner reads UTF-8 from an io.Reader into a fixed size buffer, refilling it when exhausted.
// Multi-byte sequences split across two reads are merged before decoding, so no codepoint is ever
// split. Invalid bytes are returned as utf8.RuneError codepoints that still carry the original byte,
// so the text of a token can always be rebuilt verbatim.
package scanner

import (
	"io"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/revelations/revelio/tokenizers/api"
)

// Class is the coarse Unicode classification used for segmentation.
type Class int

const (
	// Other is any codepoint that can be part of a word.
	Other Class = iota
	// Whitespace separates tokens and is never part of one. Control characters are included.
	Whitespace
	// Punctuation is any codepoint of a Unicode P* general category.
	Punctuation
	// Symbol is a math symbol (Unicode Sm), such as '<', '>', '=' or '+'.
	Symbol
)

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case Other:
		return "other"
	case Whitespace:
		return "whitespace"
	case Punctuation:
		return "punctuation"
	case Symbol:
		return "symbol"
	}
	return "unknown"
}

// Classify returns the Class of r.
func Classify(r rune) Class {
	switch {
	case unicode.IsSpace(r), unicode.IsControl(r):
		return Whitespace
	case unicode.IsPunct(r):
		return Punctuation
	case unicode.Is(unicode.Sm, r):
		return Symbol
	}
	return Other
}

// IsBoundary returns whether the class always forms a single codepoint token.
func (c Class) IsBoundary() bool {
	return c == Punctuation || c == Symbol
}

// IsUpper reports whether r has the Unicode Uppercase property (Lu plus Other_Uppercase).
func IsUpper(r rune) bool {
	return unicode.IsUpper(r) || unicode.Is(unicode.Other_Uppercase, r)
}

// Codepoint is a single decoded character with its classification and position in the stream.
type Codepoint struct {
	Rune  rune
	Class Class

	// Offset is the absolute position of the codepoint in the stream, and Size its length, both
	// in the scanner's api.OffsetUnit.
	Offset, Size int

	width int
	raw   [utf8.UTFMax]byte
}

// End returns the offset just past the codepoint.
func (c Codepoint) End() int { return c.Offset + c.Size }

// Bytes returns the source bytes of the codepoint.
func (c Codepoint) Bytes() []byte { return c.raw[:c.width] }

// AppendTo appends the source bytes of the codepoint to b.
func (c Codepoint) AppendTo(b []byte) []byte { return append(b, c.raw[:c.width]...) }

// UnitSize returns the size of a codepoint encoded with width bytes, in the given unit.
func UnitSize(r rune, width int, unit api.OffsetUnit) int {
	switch unit {
	case api.OffsetUnitCodepoints:
		return 1
	case api.OffsetUnitUTF16:
		if utf16.IsSurrogate(r) || r > unicode.MaxRune {
			return 1
		}
		if r >= 0x10000 {
			return 2
		}
		return 1
	default:
		return width
	}
}

// UnitCount returns the length of the UTF-8 text in the given unit.
func UnitCount(text string, unit api.OffsetUnit) int {
	if unit == api.OffsetUnitBytes {
		return len(text)
	}
	count := 0
	for len(text) > 0 {
		r, width := utf8.DecodeRuneInString(text)
		count += UnitSize(r, width, unit)
		text = text[width:]
	}
	return count
}

// maxConsecutiveEmptyReads bounds how many (0, nil) reads are tolerated before giving up, as bufio does.
const maxConsecutiveEmptyReads = 100

// Scanner reads codepoints from an io.Reader.
//
// It is not safe for concurrent use. Reset allows reusing it for a new stream without reallocating.
type Scanner struct {
	src  io.Reader
	unit api.OffsetUnit

	buf      []byte
	pos, end int
	offset   int // absolute offset of buf[pos]
	eof      bool
	err      error

	// pushback holds codepoints given back with Unread, pushback[pushPos:] are the next ones.
	pushback, scratch []Codepoint
	pushPos           int
}

// New creates a Scanner reading from r. A nil config uses api.DefaultConfig.
func New(r io.Reader, config *api.Config) *Scanner {
	if config == nil {
		config = api.DefaultConfig()
	}
	size := max(config.ReadBufferSize, utf8.UTFMax)
	return &Scanner{
		src:  r,
		unit: config.OffsetUnit,
		buf:  make([]byte, size),
	}
}

// Reset prepares the Scanner to read a new stream from r: offsets, buffered data, pushed back
// codepoints and errors are all cleared.
func (s *Scanner) Reset(r io.Reader) {
	s.src = r
	s.pos, s.end = 0, 0
	s.offset = 0
	s.eof = false
	s.err = nil
	s.pushback = s.pushback[:0]
	s.pushPos = 0
}

// Unit returns the unit in which offsets are reported.
func (s *Scanner) Unit() api.OffsetUnit { return s.unit }

// Offset returns the offset of the next codepoint to be read. At the end of the stream it is the
// final offset.
func (s *Scanner) Offset() int {
	if s.pushPos < len(s.pushback) {
		return s.pushback[s.pushPos].Offset
	}
	return s.offset
}

// Next returns the next codepoint and advances. It returns io.EOF once the stream is exhausted, or
// the (sticky) read error of the source.
func (s *Scanner) Next() (Codepoint, error) {
	if s.pushPos < len(s.pushback) {
		cp := s.pushback[s.pushPos]
		s.pushPos++
		if s.pushPos == len(s.pushback) {
			s.pushback = s.pushback[:0]
			s.pushPos = 0
		}
		return cp, nil
	}
	cp, err := s.decode()
	if err != nil {
		return cp, err
	}
	s.pos += cp.width
	s.offset += cp.Size
	return cp, nil
}

// Peek returns the codepoint Next would return, without advancing.
func (s *Scanner) Peek() (Codepoint, error) {
	if s.pushPos < len(s.pushback) {
		return s.pushback[s.pushPos], nil
	}
	return s.decode()
}

// Unread gives codepoints back to the scanner: they are returned again, in order, before anything
// else. Unread codepoints keep their original offsets.
func (s *Scanner) Unread(cps ...Codepoint) {
	if len(cps) == 0 {
		return
	}
	s.scratch = append(s.scratch[:0], cps...)
	s.scratch = append(s.scratch, s.pushback[s.pushPos:]...)
	s.pushback, s.scratch = s.scratch, s.pushback
	s.pushPos = 0
}

// decode decodes the codepoint at the current buffer position, refilling the buffer if needed.
func (s *Scanner) decode() (cp Codepoint, err error) {
	if err = s.fill(); err != nil {
		return
	}
	// An incomplete sequence followed by a read error is dropped: the error wins.
	if s.pos == s.end || (s.err != nil && !utf8.FullRune(s.buf[s.pos:s.end])) {
		if s.err != nil {
			return cp, s.err
		}
		return cp, io.EOF
	}
	r, width := utf8.DecodeRune(s.buf[s.pos:s.end])
	cp.Rune = r
	cp.Class = Classify(r)
	cp.width = width
	copy(cp.raw[:], s.buf[s.pos:s.pos+width])
	cp.Offset = s.offset
	cp.Size = UnitSize(r, width, s.unit)
	return cp, nil
}

// fill reads from the source until the buffer holds at least one complete codepoint, or the source
// is exhausted. Incomplete trailing sequences are moved to the front of the buffer first.
func (s *Scanner) fill() error {
	emptyReads := 0
	for !s.eof && s.err == nil && !utf8.FullRune(s.buf[s.pos:s.end]) {
		if s.pos > 0 {
			copy(s.buf, s.buf[s.pos:s.end])
			s.end -= s.pos
			s.pos = 0
		}
		if s.src == nil {
			s.eof = true
			break
		}
		n, err := s.src.Read(s.buf[s.end:])
		if n < 0 || n > len(s.buf)-s.end {
			return errors.Errorf("scanner: source returned invalid count %d from Read", n)
		}
		s.end += n
		switch {
		case err == io.EOF:
			s.eof = true
		case err != nil:
			s.err = errors.Wrapf(err, "failed reading source after offset %d", s.offset)
		case n == 0:
			emptyReads++
			if emptyReads >= maxConsecutiveEmptyReads {
				s.err = errors.WithStack(io.ErrNoProgress)
			}
		default:
			emptyReads = 0
		}
	}
	return nil
}
