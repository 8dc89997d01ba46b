// Package api defines the configuration and span types shared by the revelio tokenizer packages.
// It's kept separate to break the cyclic dependency between `tokenizers` and its sub-packages.
package api

import (
	"encoding/json"
	"os"
	"slices"
	"strconv"

	"github.com/pkg/errors"
)

// Default values for Config.
const (
	DefaultMaxWordLength  = 255
	DefaultReadBufferSize = 4096
	DefaultMaxTagLength   = 4096
)

// Upper bounds accepted by Config.Validate.
const (
	MaxMaxWordLength  = 1 << 20
	MaxReadBufferSize = 1 << 26
	MaxMaxTagLength   = 1 << 24
)

// DefaultEntityTagNames are the inline markup tags recognized by default (MUC style annotations).
var DefaultEntityTagNames = []string{"ENAMEX", "TIMEX", "NUMEX"}

// TokenSpan represents the span of a token in the original text, in the configured OffsetUnit.
// With the default OffsetUnitBytes, Start and End are byte offsets suitable for slicing
// Go strings directly: originalText[span.Start:span.End].
type TokenSpan struct {
	Start int // start position (inclusive)
	End   int // end position (exclusive)
}

// Len returns the length of the span.
func (s TokenSpan) Len() int { return s.End - s.Start }

// Overlaps returns whether the two spans share at least one position.
func (s TokenSpan) Overlaps(other TokenSpan) bool {
	return s.Start < other.End && other.Start < s.End
}

// EncodingResult contains subword tokens with their byte spans in the original text.
type EncodingResult struct {
	IDs   []int       // token IDs
	Spans []TokenSpan // byte spans for each token (use originalText[span.Start:span.End] to extract)
}

// OffsetUnit selects how token offsets address the original character stream.
type OffsetUnit int

const (
	// OffsetUnitBytes reports UTF-8 byte offsets.
	OffsetUnitBytes OffsetUnit = iota
	// OffsetUnitCodepoints reports offsets counted in Unicode codepoints.
	OffsetUnitCodepoints
	// OffsetUnitUTF16 reports offsets counted in UTF-16 code units.
	OffsetUnitUTF16
)

var offsetUnitNames = []string{"bytes", "codepoints", "utf16"}

// String implements fmt.Stringer.
func (u OffsetUnit) String() string {
	if u < 0 || int(u) >= len(offsetUnitNames) {
		return "OffsetUnit(" + strconv.Itoa(int(u)) + ")"
	}
	return offsetUnitNames[u]
}

// MarshalText implements encoding.TextMarshaler.
func (u OffsetUnit) MarshalText() ([]byte, error) {
	if u < 0 || int(u) >= len(offsetUnitNames) {
		return nil, errors.Errorf("invalid offset unit %d", int(u))
	}
	return []byte(offsetUnitNames[u]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *OffsetUnit) UnmarshalText(text []byte) error {
	idx := slices.Index(offsetUnitNames, string(text))
	if idx < 0 {
		return errors.Errorf("unknown offset unit %q, valid values are %v", text, offsetUnitNames)
	}
	*u = OffsetUnit(idx)
	return nil
}

// OffsetCorrector maps an offset in the (possibly filtered) stream seen by the tokenizer back to the
// caller's original character addressing.
type OffsetCorrector func(offset int) int

// Config holds the construction-time configuration of a tokenizer pipeline.
// The zero value is not usable, start from DefaultConfig or LoadConfig.
type Config struct {
	// MaxWordLength caps WORD tokens, in codepoints. Entity tag spans are not capped by it.
	MaxWordLength int `json:"max_word_length"`

	// ReadBufferSize is the size in bytes of the scanner's refillable read buffer.
	ReadBufferSize int `json:"read_buffer_size"`

	// EntityTagNames is the closed set of recognized inline markup tag names.
	EntityTagNames []string `json:"entity_tag_names"`

	// MaxTagLength caps, in codepoints, how far an entity tag lookahead may scan before it is
	// abandoned and its characters re-tokenized as ordinary words and punctuation.
	MaxTagLength int `json:"max_tag_length"`

	// OffsetUnit selects the unit of reported offsets.
	OffsetUnit OffsetUnit `json:"offset_unit"`

	// Encoding is the WHATWG label of the input character encoding. Empty means UTF-8.
	Encoding string `json:"encoding,omitempty"`

	// OffsetCorrector, if set, is applied to every reported offset.
	OffsetCorrector OffsetCorrector `json:"-"`
}

// DefaultConfig returns a new Config with the default values.
func DefaultConfig() *Config {
	return &Config{
		MaxWordLength:  DefaultMaxWordLength,
		ReadBufferSize: DefaultReadBufferSize,
		EntityTagNames: slices.Clone(DefaultEntityTagNames),
		MaxTagLength:   DefaultMaxTagLength,
		OffsetUnit:     OffsetUnitBytes,
	}
}

// LoadConfig reads a JSON configuration file. Fields missing from the file keep their default values.
func LoadConfig(filePath string) (*Config, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration file %q", filePath)
	}
	config, err := ParseConfig(content)
	if err != nil {
		return nil, errors.WithMessagef(err, "configuration file %q", filePath)
	}
	return config, nil
}

// ParseConfig parses a JSON configuration. Fields missing from the content keep their default values.
func ParseConfig(content []byte) (*Config, error) {
	config := DefaultConfig()
	if err := json.Unmarshal(content, config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse configuration")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.MaxWordLength <= 0 || c.MaxWordLength > MaxMaxWordLength {
		return errors.Errorf("max_word_length must be in [1, %d], got %d", MaxMaxWordLength, c.MaxWordLength)
	}
	// A single UTF-8 encoded codepoint must always fit in the read buffer.
	if c.ReadBufferSize < 4 || c.ReadBufferSize > MaxReadBufferSize {
		return errors.Errorf("read_buffer_size must be in [4, %d] bytes, got %d", MaxReadBufferSize, c.ReadBufferSize)
	}
	if c.MaxTagLength <= 0 || c.MaxTagLength > MaxMaxTagLength {
		return errors.Errorf("max_tag_length must be in [1, %d], got %d", MaxMaxTagLength, c.MaxTagLength)
	}
	if c.OffsetUnit < OffsetUnitBytes || c.OffsetUnit > OffsetUnitUTF16 {
		return errors.Errorf("invalid offset_unit %d", int(c.OffsetUnit))
	}
	for _, name := range c.EntityTagNames {
		if name == "" {
			return errors.New("entity_tag_names contains an empty name")
		}
	}
	return nil
}

// HasEntityTag returns whether name is one of the configured entity tag names.
func (c *Config) HasEntityTag(name string) bool {
	return slices.Contains(c.EntityTagNames, name)
}

// CorrectOffset applies the OffsetCorrector, if any.
func (c *Config) CorrectOffset(offset int) int {
	if c.OffsetCorrector == nil {
		return offset
	}
	return c.OffsetCorrector(offset)
}
