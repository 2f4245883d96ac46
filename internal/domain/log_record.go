package domain

import (
	"math"
	"strconv"
	"strings"
)

// CostRate is the number of MW that cost one dollar.
const CostRate = 1500

// LogRecord is the derived row appended to the cost log.
type LogRecord struct {
	Timestamp   string
	Consumption float64
	Cost        float64
}

// NewLogRecord derives the cost for a consumption reading.
func NewLogRecord(timestamp string, consumption float64) LogRecord {
	return LogRecord{
		Timestamp:   timestamp,
		Consumption: consumption,
		Cost:        EstimateCost(consumption),
	}
}

// EstimateCost returns consumption / CostRate rounded to cents. The exact
// binary quotient is rounded, ties to even, so 187.5 MW costs 0.12.
func EstimateCost(consumption float64) float64 {
	cost, err := strconv.ParseFloat(strconv.FormatFloat(consumption/CostRate, 'f', 2, 64), 64)
	if err != nil {
		return math.NaN()
	}
	return cost
}

// Fields returns the record as log columns: timestamp, consumption, cost.
// Cost always carries two decimals.
func (r LogRecord) Fields() []string {
	return []string{
		r.Timestamp,
		formatConsumption(r.Consumption),
		strconv.FormatFloat(r.Cost, 'f', 2, 64),
	}
}

// formatConsumption renders a float in its shortest form, always with a
// fractional part or exponent (3000 -> "3000.0", 1234.5 -> "1234.5").
func formatConsumption(v float64) string {
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
