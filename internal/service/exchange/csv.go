package exchange

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jwalitptl/stroke-api/internal/model"
)

// Columns is the fixed column order of exported files and the set of
// column names recognised on import.
var Columns = []string{
	"id",
	"gender",
	"age",
	"hypertension",
	"ever_married",
	"work_type",
	"residence_type",
	"avg_glucose_level",
	"bmi",
	"smoking_status",
	"stroke",
}

// ErrMalformedCSV is returned when an upload cannot be read as CSV with a
// header row, or when one of its numeric cells cannot be coerced.
var ErrMalformedCSV = errors.New("malformed csv")

// RowError locates a failure in an uploaded file. Line is the 1-based line
// number as reported by the CSV reader.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %q: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Is makes every RowError match ErrMalformedCSV.
func (e *RowError) Is(target error) bool {
	return target == ErrMalformedCSV
}

// Cells that are treated as missing in numeric columns, in addition to the
// empty string. Spreadsheet and dataframe tools write these for unknown
// values, most commonly "N/A" in the bmi column.
var missingValues = map[string]struct{}{
	"na":   {},
	"n/a":  {},
	"#n/a": {},
	"<na>": {},
	"nan":  {},
	"-nan": {},
	"null": {},
	"none": {},
}

// row is one decoded data line.
type row struct {
	line    int
	patient model.Patient
	// present records which recognised columns had a non-missing value.
	present map[string]bool
}

// header maps normalised column names to their position. The first
// occurrence of a duplicated name wins.
type header map[string]int

func normalizeHeader(record []string) header {
	h := make(header, len(record))
	for i, name := range record {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	return h
}

// decoder reads patient rows from a CSV stream.
type decoder struct {
	r      *csv.Reader
	header header
	width  int
}

func newDecoder(r io.Reader) (*decoder, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	record, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header row", ErrMalformedCSV)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}

	return &decoder{
		r:      cr,
		header: normalizeHeader(record),
		width:  len(record),
	}, nil
}

// next returns io.EOF once every row has been read.
func (d *decoder) next() (*row, error) {
	record, err := d.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}

	line, _ := d.r.FieldPos(0)
	if len(record) > d.width {
		return nil, &RowError{
			Line: line,
			Err:  fmt.Errorf("row has %d fields, header has %d", len(record), d.width),
		}
	}

	return d.decode(line, record)
}

func (d *decoder) cell(record []string, column string) (string, bool) {
	i, ok := d.header[column]
	if !ok || i >= len(record) {
		return "", false
	}
	return record[i], true
}

// numeric returns the trimmed cell and whether it holds a value.
func (d *decoder) numeric(record []string, column string) (string, bool) {
	v, ok := d.cell(record, column)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	if _, missing := missingValues[strings.ToLower(v)]; missing {
		return "", false
	}
	return v, true
}

func (d *decoder) decode(line int, record []string) (*row, error) {
	rw := &row{line: line, present: make(map[string]bool, len(Columns))}
	p := &rw.patient

	ints := []struct {
		column string
		set    func(int64)
		bits   int
	}{
		{"id", func(v int64) { p.ExternalID = v }, 64},
		{"age", func(v int64) { p.Age = int(v) }, 32},
		{"hypertension", func(v int64) { p.Hypertension = v != 0 }, 64},
		{"stroke", func(v int64) { p.Stroke = v != 0 }, 64},
	}
	for _, f := range ints {
		raw, ok := d.numeric(record, f.column)
		if !ok {
			continue
		}
		v, err := parseInteger(raw, f.bits)
		if err != nil {
			return nil, &RowError{Line: line, Column: f.column, Err: err}
		}
		f.set(v)
		rw.present[f.column] = true
	}

	if raw, ok := d.numeric(record, "avg_glucose_level"); ok {
		v, err := parseFloat(raw)
		if err != nil {
			return nil, &RowError{Line: line, Column: "avg_glucose_level", Err: err}
		}
		p.AvgGlucoseLevel = v
		rw.present["avg_glucose_level"] = true
	}
	if raw, ok := d.numeric(record, "bmi"); ok {
		v, err := parseFloat(raw)
		if err != nil {
			return nil, &RowError{Line: line, Column: "bmi", Err: err}
		}
		p.BMI = &v
		rw.present["bmi"] = true
	}

	strs := []struct {
		column string
		dst    *string
	}{
		{"gender", &p.Gender},
		{"ever_married", &p.EverMarried},
		{"work_type", &p.WorkType},
		{"residence_type", &p.ResidenceType},
		{"smoking_status", &p.SmokingStatus},
	}
	for _, f := range strs {
		v, ok := d.cell(record, f.column)
		if !ok {
			continue
		}
		*f.dst = v
		rw.present[f.column] = v != ""
	}

	return rw, nil
}

// parseInteger accepts integer literals and integral float literals such
// as "45.0", which dataframe tools write for integer columns holding gaps.
func parseInteger(s string, bits int) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, bits); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	limit := math.Ldexp(1, bits-1)
	if f >= limit || f < -limit {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return int64(f), nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return f, nil
}

// encodeRecord renders p in Columns order.
func encodeRecord(p *model.Patient) []string {
	bmi := ""
	if p.BMI != nil {
		bmi = formatFloat(*p.BMI)
	}
	return []string{
		strconv.FormatInt(p.ExternalID, 10),
		p.Gender,
		strconv.Itoa(p.Age),
		formatBool(p.Hypertension),
		p.EverMarried,
		p.WorkType,
		p.ResidenceType,
		formatFloat(p.AvgGlucoseLevel),
		bmi,
		p.SmokingStatus,
		formatBool(p.Stroke),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
