package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `Datetime,DAYTON_MW
2004-12-31 01:00:00,1596.0
2004-12-31 02:00:00,1517.0
2004-12-31 03:00:00,1486.0
`

func TestReader_Next(t *testing.T) {
	r, err := NewReader(strings.NewReader(sample), 1)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}

	want := []string{"1596.0", "1517.0", "1486.0"}
	for i, w := range want {
		reading, err := r.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if reading.Row != i {
			t.Errorf("Row = %d, want %d", reading.Row, i)
		}
		if reading.Value != w {
			t.Errorf("Value = %v, want %v", reading.Value, w)
		}
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestReader_ValueColumnIgnoresHeaderText(t *testing.T) {
	r, err := NewReader(strings.NewReader("a,whatever,c\nx,42,z\n"), 1)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	if r.ValueColumnName() != "whatever" {
		t.Errorf("ValueColumnName() = %v", r.ValueColumnName())
	}

	reading, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if reading.Value != "42" {
		t.Errorf("Value = %v, want 42", reading.Value)
	}
}

func TestReader_ConfigurableColumn(t *testing.T) {
	r, err := NewReader(strings.NewReader("mw,ts\n3000,2024-06-12\n"), 0)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	reading, _ := r.Next()
	if reading.Value != "3000" {
		t.Errorf("Value = %v, want 3000", reading.Value)
	}
}

func TestNewReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		column  int
		wantErr error
	}{
		{"zero bytes", "", 1, ErrEmptySource},
		{"single column header", "Datetime\n2004-12-31,1\n", 1, ErrMissingColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(strings.NewReader(tt.input), tt.column)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewReader() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReader_ShortRowIsRowError(t *testing.T) {
	r, err := NewReader(strings.NewReader("ts,mw\n2004-12-31\n2004-12-31,5\n"), 1)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}

	_, err = r.Next()
	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("Next() error = %v, want *RowError", err)
	}
	if rowErr.Row != 0 || !errors.Is(err, ErrShortRow) {
		t.Errorf("RowError = %+v", rowErr)
	}

	reading, err := r.Next()
	if err != nil {
		t.Fatalf("Next() after row error = %v", err)
	}
	if reading.Row != 1 || reading.Value != "5" {
		t.Errorf("reading = %+v", reading)
	}
}

func TestReader_ReadAll(t *testing.T) {
	r, err := NewReader(strings.NewReader(sample), 1)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}

	readings, err := r.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(readings) != 3 {
		t.Errorf("len(readings) = %d, want 3", len(readings))
	}
}

func TestReader_ReadAllHeaderOnly(t *testing.T) {
	r, err := NewReader(strings.NewReader("Datetime,DAYTON_MW\n"), 1)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	if _, err := r.ReadAll(context.Background()); !errors.Is(err, ErrEmptySource) {
		t.Errorf("ReadAll() error = %v, want ErrEmptySource", err)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := Open(path, 1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	if len(r.Header()) != 2 {
		t.Errorf("Header() = %v", r.Header())
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"), 1)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, want os.ErrNotExist", err)
	}
}
