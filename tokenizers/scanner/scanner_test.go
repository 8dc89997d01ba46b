package scanner

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/revelations/revelio/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readAll returns all codepoints until the end of the stream or an error.
func readAll(t *testing.T, s *Scanner) ([]Codepoint, error) {
	t.Helper()
	var cps []Codepoint
	for {
		cp, err := s.Next()
		if err != nil {
			if err == io.EOF {
				return cps, nil
			}
			return cps, err
		}
		cps = append(cps, cp)
	}
}

func configWith(bufferSize int, unit api.OffsetUnit) *api.Config {
	config := api.DefaultConfig()
	config.ReadBufferSize = bufferSize
	config.OffsetUnit = unit
	return config
}

func TestClassify(t *testing.T) {
	tests := []struct {
		r    rune
		want Class
	}{
		{'a', Other},
		{'7', Other},
		{'€', Other},
		{' ', Whitespace},
		{'\n', Whitespace},
		{' ', Whitespace},
		{0, Whitespace},
		{',', Punctuation},
		{'_', Punctuation},
		{'«', Punctuation},
		{'"', Punctuation},
		{'/', Punctuation},
		{'<', Symbol},
		{'=', Symbol},
		{'+', Symbol},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.r), "Classify(%q)", tt.r)
	}
	assert.True(t, Symbol.IsBoundary())
	assert.True(t, Punctuation.IsBoundary())
	assert.False(t, Other.IsBoundary())
}

func TestIsUpper(t *testing.T) {
	assert.True(t, IsUpper('A'))
	assert.True(t, IsUpper('É'))
	assert.True(t, IsUpper('Ⓐ')) // Other_Uppercase
	assert.False(t, IsUpper('a'))
	assert.False(t, IsUpper('1'))
	assert.False(t, IsUpper(utf8.RuneError))
}

func TestScannerOffsets(t *testing.T) {
	s := New(strings.NewReader("héllo 𝄞!"), nil)
	cps, err := readAll(t, s)
	require.NoError(t, err)
	require.Len(t, cps, 8)

	var rebuilt []byte
	for _, cp := range cps {
		rebuilt = cp.AppendTo(rebuilt)
	}
	assert.Equal(t, "héllo 𝄞!", string(rebuilt))

	assert.Equal(t, 'é', cps[1].Rune)
	assert.Equal(t, 1, cps[1].Offset)
	assert.Equal(t, 2, cps[1].Size)
	assert.Equal(t, 3, cps[2].Offset)
	assert.Equal(t, '𝄞', cps[6].Rune)
	assert.Equal(t, 7, cps[6].Offset)
	assert.Equal(t, 11, cps[6].End())
	assert.Equal(t, Punctuation, cps[7].Class)
	assert.Equal(t, 12, s.Offset())
}

func TestScannerOffsetUnits(t *testing.T) {
	text := "a𝄞é"
	tests := []struct {
		unit    api.OffsetUnit
		offsets []int
		final   int
	}{
		{api.OffsetUnitBytes, []int{0, 1, 5}, 7},
		{api.OffsetUnitCodepoints, []int{0, 1, 2}, 3},
		{api.OffsetUnitUTF16, []int{0, 1, 3}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.unit.String(), func(t *testing.T) {
			s := New(strings.NewReader(text), configWith(api.DefaultReadBufferSize, tt.unit))
			cps, err := readAll(t, s)
			require.NoError(t, err)
			offsets := make([]int, len(cps))
			for i, cp := range cps {
				offsets[i] = cp.Offset
			}
			assert.Equal(t, tt.offsets, offsets)
			assert.Equal(t, tt.final, s.Offset())
			assert.Equal(t, tt.final, UnitCount(text, tt.unit))
		})
	}
}

func TestScannerSplitSequences(t *testing.T) {
	// A tiny buffer and one byte per Read forces every multi-byte sequence to straddle refills.
	text := strings.Repeat("Ωμέγα 𝄞 ", 50)
	s := New(iotest.OneByteReader(strings.NewReader(text)), configWith(4, api.OffsetUnitBytes))
	cps, err := readAll(t, s)
	require.NoError(t, err)

	var rebuilt []byte
	for _, cp := range cps {
		assert.NotEqual(t, utf8.RuneError, cp.Rune)
		rebuilt = cp.AppendTo(rebuilt)
	}
	assert.Equal(t, text, string(rebuilt))
	assert.Equal(t, utf8.RuneCountInString(text), len(cps))
	assert.Equal(t, len(text), s.Offset())
}

func TestScannerInvalidUTF8(t *testing.T) {
	s := New(strings.NewReader("a\xffb\xe2\x82"), nil)
	cps, err := readAll(t, s)
	require.NoError(t, err)
	require.Len(t, cps, 5)
	assert.Equal(t, utf8.RuneError, cps[1].Rune)
	assert.Equal(t, []byte{0xff}, cps[1].Bytes())
	assert.Equal(t, Other, cps[1].Class)

	var rebuilt []byte
	for _, cp := range cps {
		rebuilt = cp.AppendTo(rebuilt)
	}
	assert.Equal(t, []byte("a\xffb\xe2\x82"), rebuilt)
}

func TestScannerPeekAndUnread(t *testing.T) {
	s := New(strings.NewReader("abc"), nil)
	peeked, err := s.Peek()
	require.NoError(t, err)
	assert.Equal(t, 'a', peeked.Rune)

	a, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, peeked, a)
	b, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Offset())

	s.Unread(a, b)
	assert.Equal(t, 0, s.Offset())
	peeked, err = s.Peek()
	require.NoError(t, err)
	assert.Equal(t, 'a', peeked.Rune)

	// Unread in front of pending pushback.
	first, err := s.Next()
	require.NoError(t, err)
	s.Unread(first)

	cps, err := readAll(t, s)
	require.NoError(t, err)
	runes := make([]rune, len(cps))
	for i, cp := range cps {
		runes[i] = cp.Rune
	}
	assert.Equal(t, []rune("abc"), runes)
	assert.Equal(t, 2, cps[2].Offset)

	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
	_, err = s.Peek()
	assert.Equal(t, io.EOF, err)
}

func TestScannerReset(t *testing.T) {
	s := New(strings.NewReader("first document"), nil)
	_, err := readAll(t, s)
	require.NoError(t, err)
	assert.Equal(t, 14, s.Offset())

	s.Reset(strings.NewReader("second"))
	assert.Equal(t, 0, s.Offset())
	cp, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 's', cp.Rune)
	assert.Equal(t, 0, cp.Offset)
}

func TestScannerReadError(t *testing.T) {
	errBroken := errors.New("broken pipe")
	s := New(io.MultiReader(strings.NewReader("ab"), iotest.ErrReader(errBroken)), nil)
	cps, err := readAll(t, s)
	assert.Len(t, cps, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBroken)

	// Errors are sticky.
	_, err = s.Peek()
	assert.ErrorIs(t, err, errBroken)
}

func TestScannerReadErrorDropsIncompleteSequence(t *testing.T) {
	errBroken := errors.New("connection reset")
	s := New(io.MultiReader(bytes.NewReader([]byte{'a', 0xe2, 0x82}), iotest.ErrReader(errBroken)), nil)
	cps, err := readAll(t, s)
	assert.Len(t, cps, 1)
	assert.ErrorIs(t, err, errBroken)
}

func TestNewDecodingReader(t *testing.T) {
	tests := []struct {
		encoding string
		input    []byte
		want     string
	}{
		{"", []byte("plain"), "plain"},
		{"UTF-8", []byte("héllo"), "héllo"},
		{"utf-16le", []byte{'H', 0, 0xe9, 0}, "Hé"},
		{"utf-16be", []byte{0, 'H', 0, 0xe9}, "Hé"},
		{"utf-16le", []byte{0xfe, 0xff, 0, 'H', 0, 0xe9}, "Hé"}, // BOM wins
		{"windows-1252", []byte{'c', 'a', 'f', 0xe9}, "café"},
		{"iso-8859-1", []byte{'n', 'a', 0xef, 'v', 'e'}, "naïve"},
	}
	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			r, err := NewDecodingReader(bytes.NewReader(tt.input), tt.encoding)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	_, err := NewDecodingReader(strings.NewReader(""), "klingon-8")
	assert.Error(t, err)
}

func BenchmarkScanner(b *testing.B) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. Ωμέγα 𝄞! ", 200)
	s := New(strings.NewReader(text), nil)
	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for range b.N {
		s.Reset(strings.NewReader(text))
		for {
			if _, err := s.Next(); err != nil {
				break
			}
		}
	}
}
