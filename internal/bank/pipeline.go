package bank

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/notch8/viva-sub001/internal/metrics"
	"github.com/notch8/viva-sub001/internal/question"
	"github.com/notch8/viva-sub001/internal/storage"
)

// Pipeline drives one upload through parse -> validate -> build -> persist,
// row by row. Rows are processed in strict file order and a failure in one
// row never aborts the rest.
type Pipeline struct {
	store question.Store
	blobs storage.BlobStore
	log   *zap.Logger
}

func NewPipeline(store question.Store, blobs storage.BlobStore, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{store: store, blobs: blobs, log: log}
}

// Options are the upload-scoped settings applied to every row. Images
// attach to each imported question in submission order.
type Options struct {
	UserID     string
	Type       question.Type
	Text       string // prompt for pair-family rows that carry none
	Categories []string
	Keywords   []string
	Subjects   []string
	Images     []ImageUpload
}

// RowFailure reports one failed row. RowNumber is the physical line in the
// source file, header row = 1.
type RowFailure struct {
	File      string   `json:"file,omitempty"`
	RowNumber int      `json:"row_number"`
	Messages  []string `json:"messages"`
}

type Result struct {
	ImportedCount int          `json:"imported_count"`
	Failures      []RowFailure `json:"failures"`
}

// Import reads an uploaded file and imports every row it can. The filename
// extension picks the reader: .csv, .xlsx, or .zip holding either.
func (p *Pipeline) Import(ctx context.Context, r io.Reader, filename string, opts Options) (Result, error) {
	if !opts.Type.Valid() {
		return Result{}, fmt.Errorf("unknown question type %q", opts.Type)
	}
	var res Result
	if err := p.importFile(ctx, r, filename, opts, &res); err != nil {
		return Result{}, err
	}
	p.log.Info("import finished",
		zap.String("file", filename),
		zap.String("type", string(opts.Type)),
		zap.Int("imported", res.ImportedCount),
		zap.Int("failed", len(res.Failures)))
	return res, nil
}

func (p *Pipeline) importFile(ctx context.Context, r io.Reader, filename string, opts Options, res *Result) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return p.importCSV(ctx, r, filename, opts, res)
	case ".xlsx":
		return p.importXLSX(ctx, r, filename, opts, res)
	case ".zip":
		return p.importArchive(ctx, r, filename, opts, res)
	default:
		return fmt.Errorf("unsupported file %q: want .csv, .xlsx or .zip", filename)
	}
}

func (p *Pipeline) importCSV(ctx context.Context, r io.Reader, filename string, opts Options, res *Result) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are a row-level problem, not a file-level one
	records, err := cr.ReadAll()
	if err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%s: missing header row", filename)
	}
	p.importRows(ctx, records[0], records[1:], filename, opts, res)
	return nil
}

func (p *Pipeline) importXLSX(ctx context.Context, r io.Reader, filename string, opts Options, res *Result) error {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("reading %s sheet %q: %w", filename, sheet, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s: missing header row", filename)
	}
	p.importRows(ctx, rows[0], rows[1:], filename, opts, res)
	return nil
}

func (p *Pipeline) importArchive(ctx context.Context, r io.Reader, filename string, opts Options, res *Result) error {
	buf, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return fmt.Errorf("unzip %s: %w", filename, err)
	}
	matched := 0
	for _, zf := range zr.File {
		ext := strings.ToLower(filepath.Ext(zf.Name))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		matched++
		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("%s: open %s: %w", filename, zf.Name, err)
		}
		err = p.importFile(ctx, rc, zf.Name, opts, res)
		rc.Close()
		if err != nil {
			return err
		}
	}
	if matched == 0 {
		return fmt.Errorf("%s: no .csv or .xlsx entries", filename)
	}
	return nil
}

func (p *Pipeline) importRows(ctx context.Context, headers []string, rows [][]string, file string, opts Options, res *Result) {
	for i, record := range rows {
		line := i + 2 // header is line 1
		row := Row{}
		for j, h := range headers {
			if h == "" || j >= len(record) {
				continue // empty header names are ignored
			}
			row[h] = record[j]
		}
		if err := p.importRow(ctx, row, opts); err != nil {
			metrics.RowFailures.Inc()
			res.Failures = append(res.Failures, RowFailure{
				File:      file,
				RowNumber: line,
				Messages:  rowMessages(err),
			})
			p.log.Debug("row failed", zap.String("file", file), zap.Int("line", line), zap.Error(err))
			continue
		}
		metrics.RowsImported.Inc()
		res.ImportedCount++
	}
}

func (p *Pipeline) importRow(ctx context.Context, row Row, opts Options) error {
	d, err := ParseRow(row, opts.Type)
	if err != nil {
		return err
	}

	// run every applicable check before reporting, so the caller sees the
	// whole list of problems at once
	var msgs []string
	if verr := ValidateRow(d, opts.Type); verr != nil {
		msgs = append(msgs, verr.(*ValidationError).Messages...)
	}
	q, berr := BuildQuestion(BuildInput{
		UserID:     opts.UserID,
		Type:       opts.Type,
		Text:       opts.Text,
		Categories: opts.Categories,
		Keywords:   opts.Keywords,
		Subjects:   opts.Subjects,
	}, d)
	if berr != nil {
		var invalid *ValidationError
		if errors.As(berr, &invalid) {
			msgs = append(msgs, invalid.Messages...)
		} else {
			msgs = append(msgs, berr.Error())
		}
	}
	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}

	_, err = PersistQuestion(ctx, p.store, p.blobs, q, opts.Images)
	return err
}
