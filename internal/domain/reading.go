package domain

// Reading is one row of the data source.
type Reading struct {
	// Row is the zero-based position of the data row, header excluded.
	Row int

	// Value is the raw text of the value column.
	Value string
}
