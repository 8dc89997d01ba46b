// Package corpus locates and opens the documents to be tokenized.
package corpus

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// Stdin is the path that stands for the standard input.
const Stdin = "-"

// File is a memory-mapped document, read sequentially.
type File struct {
	*io.SectionReader
	Path   string
	reader *mmap.ReaderAt
}

// Open memory-maps the file in path for reading. The File must be closed after use.
func Open(path string) (*File, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap %s", path)
	}
	return &File{
		SectionReader: io.NewSectionReader(reader, 0, int64(reader.Len())),
		Path:          path,
		reader:        reader,
	}, nil
}

// Len returns the size of the file in bytes.
func (f *File) Len() int { return f.reader.Len() }

// Close unmaps the file.
func (f *File) Close() error {
	return f.reader.Close()
}

// OpenReader returns a reader for path: the standard input for Stdin, a memory-mapped File otherwise.
func OpenReader(path string) (io.ReadCloser, error) {
	if path == Stdin {
		return io.NopCloser(os.Stdin), nil
	}
	return Open(path)
}

// Expand resolves the glob patterns into the list of matching files, in the order given and without
// duplicates. A pattern without meta characters must name an existing file, and Stdin is kept as is.
// Directories are skipped.
func Expand(patterns []string) ([]string, error) {
	var paths []string
	for _, pattern := range patterns {
		if pattern == Stdin {
			if !slices.Contains(paths, Stdin) {
				paths = append(paths, Stdin)
			}
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
		}
		if len(matches) == 0 && !strings.ContainsAny(pattern, `*?[\`) {
			return nil, errors.Wrapf(os.ErrNotExist, "file %q", pattern)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to stat %q", match)
			}
			if info.IsDir() || slices.Contains(paths, match) {
				continue
			}
			paths = append(paths, match)
		}
	}
	return paths, nil
}
