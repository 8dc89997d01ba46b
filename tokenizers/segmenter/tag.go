package segmenter

import (
	"io"
	"unicode"

	"github.com/pkg/errors"
	"github.com/revelations/revelio/tokenizers/scanner"
)

// tagState is the state of the entity tag lookahead.
type tagState int

const (
	tagOpenName   tagState = iota // <NAME
	tagAttributes                 // <NAME ...
	tagQuoted                     // <NAME ATTR="...
	tagInner                      // <NAME ...>...
	tagCloseSlash                 // <NAME ...>...<
	tagCloseName                  // <NAME ...>...</NAME
)

// isNameRune returns whether r can be part of a tag name.
func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}

// scanTag scans ahead, verbatim, from the '<' codepoint open, trying to match a complete entity tag
// span `<NAME ...>inner</NAME>` with NAME one of the configured entity tag names.
//
// If it matches, the whole span is added to the token in progress and it returns true. Otherwise
// every codepoint consumed is given back to the scanner (see fail) and it returns false.
// The lookahead is not bounded by MaxWordLength, only by MaxTagLength.
func (s *Segmenter) scanTag(open scanner.Codepoint) (bool, error) {
	s.lookahead = append(s.lookahead[:0], open)
	s.openName = s.openName[:0]
	s.closeName = s.closeName[:0]
	state := tagOpenName
	for {
		if len(s.lookahead) >= s.config.MaxTagLength {
			return s.fail("longer than max_tag_length")
		}
		cp, err := s.scanner.Next()
		if err == io.EOF {
			return s.fail("end of stream")
		}
		if err != nil {
			s.lookahead = s.lookahead[:0]
			return false, errors.WithMessagef(err, "while scanning entity tag started at offset %d", open.Offset)
		}
		s.lookahead = append(s.lookahead, cp)

		switch state {
		case tagOpenName:
			switch {
			case isNameRune(cp.Rune):
				s.openName = cp.AppendTo(s.openName)
			case cp.Class == scanner.Whitespace || cp.Rune == '>':
				if !s.config.HasEntityTag(string(s.openName)) {
					return s.fail("unknown tag name")
				}
				state = tagAttributes
				if cp.Rune == '>' {
					state = tagInner
				}
			default:
				return s.fail("invalid tag name")
			}

		case tagAttributes:
			switch cp.Rune {
			case '"':
				state = tagQuoted
			case '>':
				state = tagInner
			case '<':
				return s.fail("'<' within tag attributes")
			}

		case tagQuoted:
			if cp.Rune == '"' {
				state = tagAttributes
			}

		case tagInner:
			if cp.Rune == '<' {
				state = tagCloseSlash
			}

		case tagCloseSlash:
			if cp.Rune != '/' {
				return s.fail("nested tag")
			}
			state = tagCloseName

		case tagCloseName:
			switch {
			case isNameRune(cp.Rune):
				s.closeName = cp.AppendTo(s.closeName)
			case cp.Rune == '>':
				if string(s.closeName) != string(s.openName) {
					return s.fail("mismatched closing tag")
				}
				for _, c := range s.lookahead {
					s.add(c)
				}
				s.lookahead = s.lookahead[:0]
				return true, nil
			default:
				return s.fail("invalid closing tag")
			}
		}
	}
}
