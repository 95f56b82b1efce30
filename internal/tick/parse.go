package tick

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldCount is the number of comma-separated fields in a record line:
// timestamp_ms, symbol, trade_id, open, high, low, close, volume
const FieldCount = 8

// ErrParse matches every error returned by Parse
var ErrParse = errors.New("tick: parse error")

// MalformedRecordError is returned when a line has the wrong number of fields
type MalformedRecordError struct {
	Expected int
	Actual   int
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: expected %d fields, got %d", e.Expected, e.Actual)
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrParse }

// FieldConversionError is returned when a field cannot be converted to its type
type FieldConversionError struct {
	FieldIndex int
	RawValue   string
	Err        error
}

func (e *FieldConversionError) Error() string {
	return fmt.Sprintf("field %d (%q): %v", e.FieldIndex, e.RawValue, e.Err)
}

func (e *FieldConversionError) Unwrap() error { return e.Err }

func (e *FieldConversionError) Is(target error) bool { return target == ErrParse }

var (
	errEmptySymbol       = errors.New("symbol is empty")
	errNegativeTimestamp = errors.New("timestamp is negative")
	errNotFinite         = errors.New("value is not finite")
)

// Parse converts a single CSV line into a Record.
// A single trailing carriage return is tolerated.
func Parse(line string) (Record, error) {
	line = strings.TrimSuffix(line, "\r")

	fields := strings.Split(line, ",")
	if len(fields) != FieldCount {
		return Record{}, &MalformedRecordError{Expected: FieldCount, Actual: len(fields)}
	}

	var (
		rec Record
		err error
	)

	if rec.TimestampMs, err = parseInt(fields, 0); err != nil {
		return Record{}, err
	}
	if rec.TimestampMs < 0 {
		return Record{}, &FieldConversionError{FieldIndex: 0, RawValue: fields[0], Err: errNegativeTimestamp}
	}

	if fields[1] == "" {
		return Record{}, &FieldConversionError{FieldIndex: 1, RawValue: fields[1], Err: errEmptySymbol}
	}
	rec.Symbol = fields[1]

	if rec.TradeID, err = parseInt(fields, 2); err != nil {
		return Record{}, err
	}

	prices := []*float64{&rec.Open, &rec.High, &rec.Low, &rec.Close, &rec.Volume}
	for i, dst := range prices {
		if *dst, err = parseFloat(fields, 3+i); err != nil {
			return Record{}, err
		}
	}

	return rec, nil
}

func parseInt(fields []string, idx int) (int64, error) {
	v, err := strconv.ParseInt(fields[idx], 10, 64)
	if err != nil {
		return 0, &FieldConversionError{FieldIndex: idx, RawValue: fields[idx], Err: err}
	}
	return v, nil
}

func parseFloat(fields []string, idx int) (float64, error) {
	v, err := strconv.ParseFloat(fields[idx], 64)
	if err != nil {
		return 0, &FieldConversionError{FieldIndex: idx, RawValue: fields[idx], Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FieldConversionError{FieldIndex: idx, RawValue: fields[idx], Err: errNotFinite}
	}
	return v, nil
}

// Format renders the record as a CSV line without the trailing newline.
// Parse(Format(r)) reproduces r exactly.
func Format(r Record) string {
	var b strings.Builder
	b.Grow(96)
	b.WriteString(strconv.FormatInt(r.TimestampMs, 10))
	b.WriteByte(',')
	b.WriteString(r.Symbol)
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(r.TradeID, 10))
	for _, v := range []float64{r.Open, r.High, r.Low, r.Close, r.Volume} {
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return b.String()
}
