package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"docrag/internal/domain"
	"docrag/internal/logger"
)

// FileResult reports what happened to one file of a folder walk.
type FileResult struct {
	Path      string
	Documents int
	Err       error
}

type extractFunc func(path string) ([]domain.Document, error)

// Extractor converts supported files into documents.
type Extractor struct {
	log     *zap.SugaredLogger
	formats map[string]extractFunc
}

// New returns an extractor for pdf, docx, xlsx/xlsm, xls and csv files.
func New(log *zap.SugaredLogger) *Extractor {
	if log == nil {
		log = logger.L()
	}
	return &Extractor{
		log: log,
		formats: map[string]extractFunc{
			".pdf":  extractPDF,
			".docx": extractDOCX,
			".xlsx": extractXLSX,
			".xlsm": extractXLSX,
			".xls":  extractXLS,
			".csv":  extractCSV,
		},
	}
}

// Supported reports whether path has an extension the extractor handles.
func (e *Extractor) Supported(path string) bool {
	_, ok := e.formats[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ExtractFile extracts the documents of a single file. Document ids are the
// file's base name.
func (e *Extractor) ExtractFile(path string) (docs []domain.Document, err error) {
	fn, ok := e.formats[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(path))
	}
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("%w: %s: %v", domain.ErrExtractionFailed, filepath.Base(path), r)
		}
	}()
	return fn(path)
}

// ExtractAll extracts every supported file directly inside dir, in file name
// order. Per-file failures are reported in the results and do not stop the
// walk; only an unreadable dir is returned as an error.
func (e *Extractor) ExtractAll(ctx context.Context, dir string) ([]domain.Document, []FileResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		if ent.Type().IsRegular() && e.Supported(ent.Name()) {
			names = append(names, ent.Name())
		}
	}
	sort.Strings(names)

	defer logger.Timed(e.log, "extraction", "dir", dir, "files", len(names))()
	var docs []domain.Document
	results := make([]FileResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return docs, results, err
		}
		path := filepath.Join(dir, name)
		fileDocs, err := e.ExtractFile(path)
		results = append(results, FileResult{Path: path, Documents: len(fileDocs), Err: err})
		if err != nil {
			e.log.Warnw("extraction failed", "file", name, "error", err)
			continue
		}
		e.log.Debugw("extracted", "file", name, "documents", len(fileDocs))
		docs = append(docs, fileDocs...)
	}
	return docs, results, nil
}

// Failures combines the errors of failed files, or returns nil.
func Failures(results []FileResult) error {
	var err error
	for _, r := range results {
		if r.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", filepath.Base(r.Path), r.Err))
		}
	}
	return err
}
