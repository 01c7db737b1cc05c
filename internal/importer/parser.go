// Package importer parses uploaded CSV and XLSX files into candidate
// records for the merge engine. Parsing is strict about columns and
// lenient about values: unknown headers fail the file, bad cell values
// fail only their row downstream.
package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/salestrack/oppsmon/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// columnFields maps normalized header labels to mutable field names. The
// header schema is fixed: files use these labels or the snake_case field
// names directly.
var columnFields = map[string]string{
	"projectname":     "project_name",
	"projectcode":     "project_code",
	"rev":             "rev",
	"client":          "client",
	"solutions":       "solutions",
	"industries":      "industries",
	"datereceived":    "date_received",
	"clientdeadline":  "client_deadline",
	"decision":        "decision",
	"accountmgr":      "account_mgr",
	"accountmanager":  "account_mgr",
	"pic":             "pic",
	"bom":             "bom",
	"status":          "status",
	"submitteddate":   "submitted_date",
	"margin":          "margin",
	"finalamt":        "final_amt",
	"finalamount":     "final_amt",
	"oppstatus":       "opp_status",
	"dateawardedlost": "date_awarded_lost",
	"lostrca":         "lost_rca",
	"remarks":         "remarks",
	"forecastdate":    "forecast_date",
}

// Record is one parsed data row.
type Record struct {
	RowNumber int
	Candidate domain.Candidate
}

// Parse reads a CSV or XLSX upload into records. Row numbers are
// one-based positions in the source file, header included, so error
// reports match what the user sees in a spreadsheet.
func Parse(fileName string, data io.Reader) ([]Record, error) {
	payload, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	var rows [][]string
	switch ext {
	case ".csv":
		rows, err = readCSV(payload)
	case ".xlsx":
		rows, err = readExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	return buildRecords(rows)
}

func readCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func readExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

func buildRecords(rows [][]string) ([]Record, error) {
	if len(rows) == 0 {
		return nil, errors.New("no rows found in file")
	}

	fields, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	records := []Record{}
	for i, row := range rows[1:] {
		if emptyRow(row) {
			continue
		}

		var c domain.Candidate
		for col, field := range fields {
			if field == "" || col >= len(row) {
				continue
			}
			setField(&c, field, strings.TrimSpace(row[col]))
		}

		records = append(records, Record{RowNumber: i + 2, Candidate: c})
	}

	return records, nil
}

// mapHeader resolves each header cell to a field name. An unrecognized
// header fails the whole file so silent column drops cannot happen.
func mapHeader(header []string) ([]string, error) {
	fields := make([]string, len(header))
	seen := map[string]int{}

	for i, cell := range header {
		label := normalizeLabel(cell)
		if label == "" {
			continue
		}

		field, ok := columnFields[label]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", strings.TrimSpace(cell))
		}
		if prev, dup := seen[field]; dup {
			return nil, fmt.Errorf("duplicate column %q (columns %d and %d)", strings.TrimSpace(cell), prev+1, i+1)
		}

		seen[field] = i
		fields[i] = field
	}

	if _, ok := seen["project_name"]; !ok {
		return nil, errors.New("missing required column \"Project Name\"")
	}

	return fields, nil
}

func normalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func setField(c *domain.Candidate, field string, value string) {
	switch field {
	case "project_name":
		c.ProjectName = value
	case "project_code":
		c.ProjectCode = value
	case "rev":
		if n, err := strconv.Atoi(value); err == nil {
			c.Rev = &n
		}
	case "client":
		c.Client = value
	case "solutions":
		c.Solutions = value
	case "industries":
		c.Industries = value
	case "date_received":
		c.DateReceived = value
	case "client_deadline":
		c.ClientDeadline = value
	case "decision":
		c.Decision = value
	case "account_mgr":
		c.AccountMgr = value
	case "pic":
		c.PIC = value
	case "bom":
		c.BOM = value
	case "status":
		c.Status = value
	case "submitted_date":
		c.SubmittedDate = value
	case "margin":
		if f, ok := parseNumber(value); ok {
			c.Margin = &f
		}
	case "final_amt":
		if f, ok := parseNumber(value); ok {
			c.FinalAmt = &f
		}
	case "opp_status":
		c.OppStatus = value
	case "date_awarded_lost":
		c.DateAwardedLost = value
	case "lost_rca":
		c.LostRCA = value
	case "remarks":
		c.Remarks = value
	case "forecast_date":
		c.ForecastDate = value
	}
}

// parseNumber accepts spreadsheet-formatted numbers: thousands separators,
// currency prefixes, percent signs. Unparseable values are treated as
// absent rather than failing the row.
func parseNumber(value string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return -1
	}, value)
	if cleaned == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
