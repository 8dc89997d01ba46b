package bilou

import "github.com/pkg/errors"

// Validate checks that the tokens form a well-formed BILOU sequence: Outside tokens have no entity
// type, entity tokens have one, and every entity span is either a single Unit token or a Begin,
// zero or more Inside, and a Last token, all sharing the same entity type.
func Validate(tokens []Token) error {
	var (
		open     bool
		openType string
	)
	for i, tok := range tokens {
		if (tok.Span == Outside) != (tok.EntityType == "") {
			return errors.Errorf("token #%d %q: span tag %s with entity type %q", i, tok.Text, tok.Span, tok.EntityType)
		}
		switch tok.Span {
		case Outside, Unit, Begin:
			if open {
				return errors.Errorf("token #%d %q: tag %s while entity %q is still open", i, tok.Text, tok.Tag(), openType)
			}
			if tok.Span == Begin {
				open, openType = true, tok.EntityType
			}
		case Inside, Last:
			if !open {
				return errors.Errorf("token #%d %q: tag %s outside of an entity span", i, tok.Text, tok.Tag())
			}
			if tok.EntityType != openType {
				return errors.Errorf("token #%d %q: entity type %q within span of type %q", i, tok.Text, tok.EntityType, openType)
			}
			if tok.Span == Last {
				open, openType = false, ""
			}
		default:
			return errors.Errorf("token #%d %q: invalid span tag %d", i, tok.Text, int(tok.Span))
		}
	}
	if open {
		return errors.Errorf("entity span of type %q not closed by a Last token", openType)
	}
	return nil
}
