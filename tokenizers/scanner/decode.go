package scanner

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/htmlindex"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewDecodingReader returns a reader that converts r, encoded with the character encoding named
// encodingName (a WHATWG label such as "utf-16le", "windows-1252" or "iso-8859-1"), to UTF-8.
//
// A byte order mark, if present, takes precedence over the given encoding. Empty and UTF-8 names
// return r unchanged: invalid UTF-8 is then handled by the Scanner, which keeps the original bytes.
func NewDecodingReader(r io.Reader, encodingName string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(encodingName))
	if name == "" || name == "utf-8" || name == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown character encoding %q", encodingName)
	}
	return transform.NewReader(r, xunicode.BOMOverride(enc.NewDecoder())), nil
}
