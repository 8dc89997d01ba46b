// revelio tokenizes documents annotated with inline entity markup (ENAMEX, TIMEX, NUMEX) into
// BILOU labeled tokens, for training and evaluating NER systems.
//
// Usage:
//
//	revelio [flags] [files or glob patterns...]
//
// With no files, or with "-", it reads the standard input.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/revelations/revelio/align"
	"github.com/revelations/revelio/corpus"
	"github.com/revelations/revelio/dataset"
	"github.com/revelations/revelio/tokenizers"
	"github.com/revelations/revelio/tokenizers/api"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Output formats.
const (
	FormatCoNLL   = "conll"
	FormatPretty  = "pretty"
	FormatParquet = "parquet"
)

var (
	flagConfig        = flag.String("config", "", "JSON configuration file. Flags below override its values.")
	flagFormat        = flag.String("format", FormatCoNLL, "Output format: conll, pretty or parquet.")
	flagOut           = flag.String("out", "", "Output file. Required for parquet, defaults to the standard output otherwise.")
	flagEncoding      = flag.String("encoding", "", "Character encoding of the input files (e.g. windows-1252, utf-16le). Defaults to UTF-8.")
	flagParallel      = flag.Int("parallel", runtime.NumCPU(), "Number of files tokenized in parallel.")
	flagMaxWordLength = flag.Int("max-word-length", 0, "Maximum word length in codepoints, longer words are split.")
	flagTags          = flag.String("tags", "", "Comma separated list of entity tag names, e.g. \"ENAMEX,TIMEX,NUMEX\".")
	flagOffsetUnit    = flag.String("offset-unit", "", "Unit of the reported offsets: bytes, codepoints or utf16.")
	flagSentencePiece = flag.String("sentencepiece", "", "SentencePiece \"tokenizer.model\" file: if set, labels are aligned to its subword pieces.")
	flagWidth         = flag.Int("width", 100, "Line width of the pretty format, 0 to disable wrapping.")
)

// options of one run, filled from the flags.
type options struct {
	ConfigPath        string
	Format            string
	Out               string
	Encoding          string
	Parallel          int
	MaxWordLength     int
	Tags              string
	OffsetUnit        string
	SentencePiecePath string
	Width             int
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [files or glob patterns...]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	defer klog.Flush()

	opts := options{
		ConfigPath:        *flagConfig,
		Format:            *flagFormat,
		Out:               *flagOut,
		Encoding:          *flagEncoding,
		Parallel:          *flagParallel,
		MaxWordLength:     *flagMaxWordLength,
		Tags:              *flagTags,
		OffsetUnit:        *flagOffsetUnit,
		SentencePiecePath: *flagSentencePiece,
		Width:             *flagWidth,
	}
	if err := run(context.Background(), opts, flag.Args(), os.Stdout); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
}

// buildConfig loads the configuration file, if any, and applies the flag overrides.
func buildConfig(opts options) (*api.Config, error) {
	config := api.DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		config, err = api.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	}
	if opts.Encoding != "" {
		config.Encoding = opts.Encoding
	}
	if opts.MaxWordLength != 0 {
		config.MaxWordLength = opts.MaxWordLength
	}
	if opts.Tags != "" {
		config.EntityTagNames = strings.Split(opts.Tags, ",")
		for i, name := range config.EntityTagNames {
			config.EntityTagNames[i] = strings.TrimSpace(name)
		}
	}
	if opts.OffsetUnit != "" {
		if err := config.OffsetUnit.UnmarshalText([]byte(opts.OffsetUnit)); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func run(ctx context.Context, opts options, args []string, stdout io.Writer) error {
	switch opts.Format {
	case FormatCoNLL, FormatPretty:
	case FormatParquet:
		if opts.Out == "" {
			return errors.New("-out is required for the parquet format")
		}
	default:
		return errors.Errorf("unknown format %q, valid values are conll, pretty and parquet", opts.Format)
	}
	config, err := buildConfig(opts)
	if err != nil {
		return err
	}
	var encoder align.Encoder
	if opts.SentencePiecePath != "" {
		encoder, err = align.NewSentencePiece(opts.SentencePiecePath)
		if err != nil {
			return err
		}
	}

	if len(args) == 0 {
		args = []string{corpus.Stdin}
	}
	paths, err := corpus.Expand(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.Errorf("no files match %q", args)
	}

	docs, err := tokenizeFiles(ctx, paths, config, max(opts.Parallel, 1))
	if err != nil {
		return err
	}
	if encoder != nil {
		for i := range docs {
			docs[i].Tokens = alignTokens(docs[i], encoder, config.OffsetUnit)
		}
	}
	return writeDocuments(ctx, opts, paths, docs, stdout)
}

// tokenizeFiles tokenizes each file with its own pipeline, at most parallel at a time.
// The documents are returned in the order of paths.
func tokenizeFiles(ctx context.Context, paths []string, config *api.Config, parallel int) ([]dataset.Document, error) {
	docs := make([]dataset.Document, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := tokenizeFile(path, config)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func tokenizeFile(path string, config *api.Config) (dataset.Document, error) {
	r, err := corpus.OpenReader(path)
	if err != nil {
		return dataset.Document{}, err
	}
	defer func() { _ = r.Close() }()

	source := path
	if path == corpus.Stdin {
		source = ""
	}
	doc := dataset.Document{ID: dataset.DocumentID(source)}
	doc.Tokens, err = tokenizers.Tokenize(r, config)
	if err != nil {
		return dataset.Document{}, errors.WithMessagef(err, "while tokenizing %q", path)
	}
	klog.V(1).Infof("Tokenized %q: %d tokens", path, len(doc.Tokens))
	return doc, nil
}

func writeDocuments(ctx context.Context, opts options, paths []string, docs []dataset.Document, stdout io.Writer) error {
	if opts.Format == FormatParquet {
		return dataset.WriteFile(ctx, opts.Out, docs)
	}

	w := stdout
	var outFile *os.File
	if opts.Out != "" {
		var err error
		outFile, err = os.Create(opts.Out)
		if err != nil {
			return errors.Wrapf(err, "failed to create output file %q", opts.Out)
		}
		defer func() { _ = outFile.Close() }()
		w = outFile
	}
	for i, doc := range docs {
		var err error
		if opts.Format == FormatPretty {
			_, err = io.WriteString(w, renderDocument(paths[i], doc, opts.Width))
		} else {
			err = dataset.WriteCoNLL(w, doc)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to write output for %q", paths[i])
		}
	}
	if outFile != nil {
		if err := outFile.Close(); err != nil {
			return errors.Wrapf(err, "failed to close output file %q", opts.Out)
		}
	}
	return nil
}
