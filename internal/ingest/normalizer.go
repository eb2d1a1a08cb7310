package ingest

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"catalog-adaptation-service/internal/models"
)

// Error codes
const (
	CodeInsufficientRows       = "INSUFFICIENT_ROWS"
	CodeMissingRequiredColumns = "MISSING_REQUIRED_COLUMNS"
	CodeRequired               = "REQUIRED"
)

// requiredFields must resolve from the header and be present on every row
var requiredFields = []string{"sku", "title"}

// RowError is one ingestion problem. Row is the 1-based spreadsheet line
// (the header is line 1); row 0 marks a file-level error.
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of normalizing one table
type Result struct {
	Records []models.ProductRecord `json:"records"`
	// SourceRows holds the spreadsheet line of each record
	SourceRows []int      `json:"sourceRows"`
	Errors     []RowError `json:"errors"`
	TotalRows  int        `json:"totalRows"`
	ValidRows  int        `json:"validRows"`
}

// ErrorMessages returns the errors as display strings
func (r *Result) ErrorMessages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}

// HasFileErrors reports whether a file-level error was raised
func (r *Result) HasFileErrors() bool {
	for _, e := range r.Errors {
		if e.Row == 0 {
			return true
		}
	}
	return false
}

// NormalizeTable is Normalize applied to a parsed table
func NormalizeTable(t *Table) *Result {
	return Normalize(t.Header, t.Rows)
}

// Normalize converts raw spreadsheet rows into product records. Problems are
// collected as errors and never abort the run.
func Normalize(header []string, rows [][]interface{}) *Result {
	result := &Result{
		Records:    []models.ProductRecord{},
		SourceRows: []int{},
		Errors:     []RowError{},
		TotalRows:  len(rows),
	}

	if len(header) == 0 || len(rows) == 0 {
		result.Errors = append(result.Errors, RowError{
			Code:    CodeInsufficientRows,
			Message: "File must contain a header row and at least one data row",
		})
		if len(header) == 0 {
			return result
		}
	}

	// column index -> canonical field; the first column resolving to a field wins
	columns := make(map[int]string, len(header))
	resolved := make(map[string]bool)
	for i, h := range header {
		field, ok := ResolveHeader(h)
		if !ok || resolved[field] {
			continue
		}
		columns[i] = field
		resolved[field] = true
	}

	var missingColumns []string
	for _, f := range requiredFields {
		if !resolved[f] {
			missingColumns = append(missingColumns, f)
		}
	}
	if len(missingColumns) > 0 {
		result.Errors = append(result.Errors, RowError{
			Column:  strings.Join(missingColumns, ","),
			Code:    CodeMissingRequiredColumns,
			Message: fmt.Sprintf("Missing required columns: %s", strings.Join(missingColumns, ", ")),
		})
	}

	for idx, row := range rows {
		rowNum := idx + 2
		record := convertRow(columns, row)

		var missing []string
		for _, f := range requiredFields {
			if !record.Has(f) {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			result.Errors = append(result.Errors, RowError{
				Row:     rowNum,
				Column:  strings.Join(missing, ","),
				Code:    CodeRequired,
				Message: fmt.Sprintf("Row %d: missing required field(s): %s", rowNum, strings.Join(missing, ", ")),
			})
			continue
		}

		result.Records = append(result.Records, record)
		result.SourceRows = append(result.SourceRows, rowNum)
	}

	result.ValidRows = len(result.Records)
	return result
}

func convertRow(columns map[int]string, row []interface{}) models.ProductRecord {
	record := make(models.ProductRecord)
	for i, cell := range row {
		field, ok := columns[i]
		if !ok {
			continue
		}
		switch field {
		case "images":
			if urls := SplitImageURLs(cellString(cell)); len(urls) > 0 {
				record[field] = urls
			}
		case "price", "sale_price":
			if price, ok := ParsePrice(cell); ok {
				record[field] = price
			}
		default:
			if s := cellString(cell); s != "" {
				record[field] = s
			}
		}
	}
	return record
}

var imageSeparators = regexp.MustCompile(`[,;|\n]+`)

// SplitImageURLs splits an image cell on comma, semicolon, pipe or newline and
// keeps only well-formed http(s) URLs.
func SplitImageURLs(cell string) []string {
	var urls []string
	for _, part := range imageSeparators.Split(cell, -1) {
		part = strings.TrimSpace(part)
		if IsWellFormedURL(part) {
			urls = append(urls, part)
		}
	}
	return urls
}

// IsWellFormedURL reports whether s is an absolute http or https URL
func IsWellFormedURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(models.ValueToString(t))
	}
}
