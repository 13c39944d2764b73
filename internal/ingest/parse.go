package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/models"
)

// Column names of the upload format.
const (
	ColID              = "id"
	ColAge             = "age"
	ColDaysLPS         = "days_lps"
	ColEmployed        = "employed"
	ColBenefits        = "benefits"
	ColDriver          = "driver"
	ColVDU             = "vdu"
	ColVarifocal       = "varifocal"
	ColHighRx          = "high_rx"
	ColAppointmentDate = "appointment_date"
	ColAmountSpent     = "amount_spent"
)

var upcomingColumns = []string{
	ColID, ColAge, ColDaysLPS, ColEmployed, ColBenefits,
	ColDriver, ColVDU, ColVarifocal, ColHighRx, ColAppointmentDate,
}

var pastColumns = append(append([]string{}, upcomingColumns...), ColAmountSpent)

// timestampLayouts are tried in order. Values without a zone are read as UTC.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Row is one parsed upload line.
type Row struct {
	Line              int
	ExternalPatientID int64
	Attributes        models.Attributes
	AppointmentDate   time.Time
	AmountSpent       float64
}

// ParseUpcoming parses an upcoming-appointments CSV. It returns every row or
// the first *MalformedRowError; no partial result is returned.
func ParseUpcoming(r io.Reader) ([]Row, error) {
	return parse(r, upcomingColumns, false)
}

// ParsePast parses a past-appointments CSV, which also carries amount_spent.
func ParsePast(r io.Reader) ([]Row, error) {
	return parse(r, pastColumns, true)
}

func parse(r io.Reader, required []string, withAmount bool) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyUpload
	}
	if err != nil {
		return nil, csvError(err)
	}

	index, err := headerIndex(header, required)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := cr.FieldPos(0)

		row, err := parseRecord(record, index, line, withAmount)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func headerIndex(header, required []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, &MalformedRowError{Line: 1, Column: col, Err: ErrMissingColumn}
		}
	}
	return index, nil
}

type cellReader struct {
	record []string
	index  map[string]int
	line   int
	err    error
}

func (c *cellReader) value(col string) (string, bool) {
	if c.err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.record[c.index[col]])
	if v == "" {
		c.err = &MalformedRowError{Line: c.line, Column: col, Err: ErrMissingValue}
		return "", false
	}
	return v, true
}

func (c *cellReader) fail(col, v string, err error) {
	c.err = &MalformedRowError{Line: c.line, Column: col, Value: v, Err: err}
}

func (c *cellReader) int64(col string) int64 {
	v, ok := c.value(col)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		c.fail(col, v, err)
	}
	return n
}

func (c *cellReader) count(col string) int {
	v, ok := c.value(col)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.fail(col, v, err)
		return 0
	}
	if n < 0 {
		c.fail(col, v, ErrNegativeValue)
	}
	return n
}

func (c *cellReader) amount(col string) float64 {
	v, ok := c.value(col)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.fail(col, v, err)
		return 0
	}
	if f < 0 {
		c.fail(col, v, ErrNegativeValue)
	}
	return f
}

// flag reads a Y/N cell. Only "Y" (any case) is true.
func (c *cellReader) flag(col string) bool {
	v, ok := c.value(col)
	return ok && strings.EqualFold(v, "Y")
}

func (c *cellReader) timestamp(col string) time.Time {
	v, ok := c.value(col)
	if !ok {
		return time.Time{}
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t.UTC()
		}
		lastErr = err
	}
	c.fail(col, v, lastErr)
	return time.Time{}
}

func parseRecord(record []string, index map[string]int, line int, withAmount bool) (Row, error) {
	c := &cellReader{record: record, index: index, line: line}
	row := Row{
		Line:              line,
		ExternalPatientID: c.int64(ColID),
		Attributes: models.Attributes{
			Age:       c.count(ColAge),
			DaysLPS:   c.count(ColDaysLPS),
			Employed:  c.flag(ColEmployed),
			Benefits:  c.flag(ColBenefits),
			Driver:    c.flag(ColDriver),
			VDU:       c.flag(ColVDU),
			Varifocal: c.flag(ColVarifocal),
			HighRx:    c.flag(ColHighRx),
		},
		AppointmentDate: c.timestamp(ColAppointmentDate),
	}
	if withAmount {
		row.AmountSpent = c.amount(ColAmountSpent)
	}
	if c.err != nil {
		return Row{}, c.err
	}
	return row, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &MalformedRowError{Line: pe.Line, Err: pe.Err}
	}
	return err
}
