package main

import (
	"hash/fnv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/revelations/revelio/align"
	"github.com/revelations/revelio/dataset"
	"github.com/revelations/revelio/tokenizers/api"
	"github.com/revelations/revelio/tokenizers/bilou"
)

var (
	headerStyle      = lipgloss.NewStyle().Bold(true).Underline(true)
	punctuationStyle = lipgloss.NewStyle().Faint(true)
	entityTypeStyle  = lipgloss.NewStyle().Faint(true).Italic(true)

	// entityColors are picked by a hash of the entity type, so each type keeps its color.
	entityColors = []lipgloss.Color{"9", "10", "11", "12", "13", "14", "208", "141"}
)

func entityStyle(entityType string) lipgloss.Style {
	h := fnv.New32a()
	_, _ = h.Write([]byte(entityType))
	color := entityColors[h.Sum32()%uint32(len(entityColors))]
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}

// renderDocument renders the tokens of doc as text, with entity spans highlighted and followed by
// their entity type, as in "met Avram Noam Chomsky[PERSON] in".
func renderDocument(path string, doc dataset.Document, width int) string {
	var parts []string
	var span []string
	for _, tok := range doc.Tokens {
		switch {
		case tok.IsEntity():
			span = append(span, tok.Text)
			if tok.Span == bilou.Last || tok.Span == bilou.Unit {
				parts = append(parts, entityStyle(tok.EntityType).Render(strings.Join(span, " "))+
					entityTypeStyle.Render("["+tok.EntityType+"]"))
				span = span[:0]
			}
		case tok.Punctuation:
			parts = append(parts, punctuationStyle.Render(tok.Text))
		default:
			parts = append(parts, tok.Text)
		}
	}
	body := lipgloss.NewStyle()
	if width > 0 {
		body = body.Width(width)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(path),
		body.Render(strings.Join(parts, " ")),
	) + "\n\n"
}

// alignTokens replaces the words of doc by the subword pieces of encoder, carrying over their labels.
// The pieces' offsets keep addressing the input document, in unit.
func alignTokens(doc dataset.Document, encoder align.Encoder, unit api.OffsetUnit) []bilou.Token {
	pieces := align.Align(doc.Tokens, encoder, unit)
	tokens := make([]bilou.Token, len(pieces))
	for i, piece := range pieces {
		tokens[i] = piece.Token
	}
	return tokens
}
