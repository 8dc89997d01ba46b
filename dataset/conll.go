package dataset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/revelations/revelio/tokenizers/bilou"
)

// CoNLL format: a "# doc_id = <id>" line, then one line per token with the tab separated columns
//
//	text  start  end  tag  flags
//
// where tag is "O" or "B-PERSON" like, and flags holds "C" (capitalized) and/or "P" (punctuation),
// or "-". A blank line ends each document.
const docIDPrefix = "# doc_id = "

var (
	conllEscaper   = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)
	conllUnescaper = strings.NewReplacer(`\\`, `\`, `\t`, "\t", `\n`, "\n", `\r`, "\r")
)

// maxLineSize bounds the length of a CoNLL line.
const maxLineSize = 1 << 20

// WriteCoNLL writes the document in CoNLL format.
func WriteCoNLL(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)
	if doc.ID != "" {
		_, _ = fmt.Fprintf(bw, "%s%s\n", docIDPrefix, doc.ID)
	}
	for _, tok := range doc.Tokens {
		flags := ""
		if tok.Capitalized {
			flags += "C"
		}
		if tok.Punctuation {
			flags += "P"
		}
		if flags == "" {
			flags = "-"
		}
		_, _ = fmt.Fprintf(bw, "%s\t%d\t%d\t%s\t%s\n", conllEscaper.Replace(tok.Text), tok.Start, tok.End, tok.Tag(), flags)
	}
	_ = bw.WriteByte('\n')
	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write document %s", doc.ID)
	}
	return nil
}

// ReadCoNLL reads all documents written by WriteCoNLL.
func ReadCoNLL(r io.Reader) ([]Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var (
		docs    []Document
		current *Document
		lineNum int
	)
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		switch {
		case line == "":
			current = nil
			continue
		case strings.HasPrefix(line, docIDPrefix):
			docs = append(docs, Document{ID: strings.TrimPrefix(line, docIDPrefix)})
			current = &docs[len(docs)-1]
			continue
		}
		if current == nil {
			docs = append(docs, Document{})
			current = &docs[len(docs)-1]
		}
		tok, err := parseCoNLLLine(line)
		if err != nil {
			return nil, errors.WithMessagef(err, "line %d", lineNum)
		}
		current.Tokens = append(current.Tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed reading CoNLL after line %d", lineNum)
	}
	return docs, nil
}

func parseCoNLLLine(line string) (bilou.Token, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 5 {
		return bilou.Token{}, errors.Errorf("expected 5 tab separated columns, got %d", len(fields))
	}
	start, err := strconv.Atoi(fields[1])
	if err != nil {
		return bilou.Token{}, errors.Wrapf(err, "invalid start offset %q", fields[1])
	}
	end, err := strconv.Atoi(fields[2])
	if err != nil {
		return bilou.Token{}, errors.Wrapf(err, "invalid end offset %q", fields[2])
	}
	span, entityType, err := bilou.ParseTag(fields[3])
	if err != nil {
		return bilou.Token{}, err
	}
	return bilou.Token{
		Text:  conllUnescaper.Replace(fields[0]),
		Start: start,
		End:   end,
		Attributes: bilou.Attributes{
			Capitalized: strings.Contains(fields[4], "C"),
			Punctuation: strings.Contains(fields[4], "P"),
			EntityType:  entityType,
			Span:        span,
		},
	}, nil
}
