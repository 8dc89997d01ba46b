// Package dataset stores labeled documents as NER training data, either as Parquet files (one row
// per token) or in a CoNLL style text format.
package dataset

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"github.com/revelations/revelio/tokenizers/bilou"
	"k8s.io/klog/v2"
)

// DefaultDirCreationPerm is used when creating the directory of a dataset file.
var DefaultDirCreationPerm = os.FileMode(0o755)

// LockRetryDelay is how often WriteFile retries to acquire the lock held by another writer.
var LockRetryDelay = 500 * time.Millisecond

// Namespace of the deterministic document ids generated by DocumentID.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/revelations/revelio/dataset"))

// DocumentID returns an id for a document: derived from source (a file path or URL) if given, so
// the same source always gets the same id, or random otherwise.
func DocumentID(source string) string {
	if source == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(Namespace, []byte(source)).String()
}

// Document is a sequence of labeled tokens.
type Document struct {
	ID     string
	Tokens []bilou.Token
}

// Row is the Parquet schema of a dataset: one row per token.
type Row struct {
	DocumentID  string `parquet:"doc_id,dict"`
	Position    int64  `parquet:"position"`
	Text        string `parquet:"text"`
	Start       int64  `parquet:"start"`
	End         int64  `parquet:"end"`
	Span        string `parquet:"span,dict"`
	EntityType  string `parquet:"entity_type,optional,dict"`
	Capitalized bool   `parquet:"capitalized"`
	Punctuation bool   `parquet:"punctuation"`
}

// NewRow converts the token at position in document docID.
func NewRow(docID string, position int, tok bilou.Token) Row {
	return Row{
		DocumentID:  docID,
		Position:    int64(position),
		Text:        tok.Text,
		Start:       int64(tok.Start),
		End:         int64(tok.End),
		Span:        tok.Span.String(),
		EntityType:  tok.EntityType,
		Capitalized: tok.Capitalized,
		Punctuation: tok.Punctuation,
	}
}

// Token converts the row back to a token.
func (r Row) Token() (bilou.Token, error) {
	span, err := bilou.ParseSpanTag(r.Span)
	if err != nil {
		return bilou.Token{}, errors.WithMessagef(err, "document %s token #%d", r.DocumentID, r.Position)
	}
	return bilou.Token{
		Text:  r.Text,
		Start: int(r.Start),
		End:   int(r.End),
		Attributes: bilou.Attributes{
			Capitalized: r.Capitalized,
			Punctuation: r.Punctuation,
			EntityType:  r.EntityType,
			Span:        span,
		},
	}, nil
}

// Writer writes documents as Parquet rows.
type Writer struct {
	writer *parquet.GenericWriter[Row]
	rows   []Row
	count  int
}

// NewWriter creates a Writer to w. Close must be called to write the Parquet footer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{writer: parquet.NewGenericWriter[Row](w)}
}

// Write validates the document's BILOU sequence and writes its tokens.
func (w *Writer) Write(doc Document) error {
	if err := bilou.Validate(doc.Tokens); err != nil {
		return errors.WithMessagef(err, "document %s", doc.ID)
	}
	w.rows = w.rows[:0]
	for i, tok := range doc.Tokens {
		w.rows = append(w.rows, NewRow(doc.ID, i, tok))
	}
	if _, err := w.writer.Write(w.rows); err != nil {
		return errors.Wrapf(err, "failed to write document %s", doc.ID)
	}
	w.count++
	return nil
}

// Count returns the number of documents written so far.
func (w *Writer) Count() int { return w.count }

// Close flushes the rows and writes the Parquet footer. It doesn't close the underlying io.Writer.
func (w *Writer) Close() error {
	if err := w.writer.Close(); err != nil {
		return errors.Wrap(err, "failed to close parquet writer")
	}
	return nil
}

// WriteFile writes the documents to a Parquet file in filePath.
//
// It writes to filePath+".writing" and then atomically moves it to filePath, while holding the
// filePath+".lock" file lock to coordinate with other processes writing the same file.
func WriteFile(ctx context.Context, filePath string, docs []Document) error {
	if err := os.MkdirAll(filepath.Dir(filePath), DefaultDirCreationPerm); err != nil {
		return errors.Wrapf(err, "failed to create directory for file %q", filePath)
	}

	lockPath := filePath + ".lock"
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLockContext(ctx, LockRetryDelay)
	if err != nil {
		return errors.Wrapf(err, "while trying to lock %q", lockPath)
	}
	if !locked {
		return errors.Errorf("failed to lock %q", lockPath)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			klog.Errorf("Failed unlocking file %q: %v", lockPath, err)
		}
	}()

	tmpPath := filePath + ".writing"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "creating temporary file %q", tmpPath)
	}
	tmpFileClosed := false
	defer func() {
		// On errors, close and remove the unfinished temporary file.
		if !tmpFileClosed {
			_ = tmpFile.Close()
			if err := os.Remove(tmpPath); err != nil {
				klog.Errorf("Failed removing temporary file %q: %v", tmpPath, err)
			}
		}
	}()

	w := NewWriter(tmpFile)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Write(doc); err != nil {
			return errors.WithMessagef(err, "while writing %q", filePath)
		}
	}
	if err := w.Close(); err != nil {
		return errors.WithMessagef(err, "while writing %q", filePath)
	}
	tmpFileClosed = true
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to close temporary file %q", tmpPath)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to move %q to %q", tmpPath, filePath)
	}
	klog.V(2).Infof("Wrote %d documents to %q", w.Count(), filePath)
	return nil
}

// ReadFile reads all documents of a Parquet dataset file.
func ReadFile(filePath string) ([]Document, error) {
	rows, err := parquet.ReadFile[Row](filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read dataset %q", filePath)
	}
	docs, err := FromRows(rows)
	if err != nil {
		return nil, errors.WithMessagef(err, "dataset %q", filePath)
	}
	return docs, nil
}

// FromRows groups consecutive rows with the same document id into documents.
func FromRows(rows []Row) ([]Document, error) {
	var docs []Document
	for _, row := range rows {
		if len(docs) == 0 || docs[len(docs)-1].ID != row.DocumentID {
			docs = append(docs, Document{ID: row.DocumentID})
		}
		doc := &docs[len(docs)-1]
		if row.Position != int64(len(doc.Tokens)) {
			return nil, errors.Errorf("document %s: token #%d found at position %d", row.DocumentID, len(doc.Tokens), row.Position)
		}
		tok, err := row.Token()
		if err != nil {
			return nil, err
		}
		doc.Tokens = append(doc.Tokens, tok)
	}
	return docs, nil
}
