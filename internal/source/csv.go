// Package source reads energy readings from a CSV file. The value column is
// picked by position, so the header text does not matter.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"energy-queue/internal/domain"
)

// Errors returned by the source.
var (
	ErrEmptySource   = errors.New("source has no data rows")
	ErrMissingColumn = errors.New("source header has no value column")
	ErrShortRow      = errors.New("row has no value column")
)

// RowError is a failure confined to a single data row. Reading can continue
// past it.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Reader streams readings from a CSV file.
type Reader struct {
	file        *os.File
	csv         *csv.Reader
	valueColumn int
	header      []string
	row         int
}

// Open opens the CSV file at path and reads its header row.
func Open(path string, valueColumn int) (*Reader, error) {
	if valueColumn < 0 {
		return nil, fmt.Errorf("%w: column %d", ErrMissingColumn, valueColumn)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}

	r, err := newReader(f, valueColumn)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewReader reads CSV data from an arbitrary stream.
func NewReader(rd io.Reader, valueColumn int) (*Reader, error) {
	return newReader(rd, valueColumn)
}

func newReader(rd io.Reader, valueColumn int) (*Reader, error) {
	cr := csv.NewReader(rd)
	// Row length is checked against the value column only.
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read source header: %w", err)
	}
	if len(header) <= valueColumn {
		return nil, fmt.Errorf("%w: column %d, header has %d columns", ErrMissingColumn, valueColumn, len(header))
	}

	return &Reader{
		csv:         cr,
		valueColumn: valueColumn,
		header:      append([]string(nil), header...),
	}, nil
}

// Header returns the header row.
func (r *Reader) Header() []string {
	return r.header
}

// ValueColumnName returns the header text of the value column.
func (r *Reader) ValueColumnName() string {
	return r.header[r.valueColumn]
}

// Next returns the next data row. It returns io.EOF after the last row and a
// *RowError for a row that cannot be used.
func (r *Reader) Next() (domain.Reading, error) {
	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return domain.Reading{}, io.EOF
	}

	row := r.row
	r.row++

	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return domain.Reading{Row: row}, &RowError{Row: row, Err: err}
		}
		return domain.Reading{}, fmt.Errorf("failed to read source row %d: %w", row, err)
	}
	if len(record) <= r.valueColumn {
		return domain.Reading{Row: row}, &RowError{Row: row, Err: ErrShortRow}
	}

	return domain.Reading{
		Row:   row,
		Value: strings.TrimSpace(record[r.valueColumn]),
	}, nil
}

// ReadAll reads every remaining data row. Row errors are skipped and
// returned joined after the readings. A source without data rows returns
// ErrEmptySource.
func (r *Reader) ReadAll(ctx context.Context) ([]domain.Reading, error) {
	var (
		readings []domain.Reading
		rowErrs  []error
		rows     int
	)
	for {
		if err := ctx.Err(); err != nil {
			return readings, err
		}

		reading, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		rows++

		var rowErr *RowError
		if errors.As(err, &rowErr) {
			rowErrs = append(rowErrs, err)
			continue
		}
		if err != nil {
			return readings, err
		}
		readings = append(readings, reading)
	}

	if rows == 0 {
		return nil, ErrEmptySource
	}
	return readings, errors.Join(rowErrs...)
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
