package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are not CSV, XLSX or JSON
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Table is a parsed header row plus data rows
type Table struct {
	Header []string
	Rows   [][]interface{}
}

// ParseFile parses an upload, choosing the parser from the file extension
func ParseFile(filename string, r io.Reader) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return ParseCSV(r)
	case ".xlsx", ".xlsm":
		return ParseXLSX(r)
	case ".json":
		return ParseJSON(r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
}

// ParseCSV parses a CSV file with a header row
func ParseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	table := &Table{Header: cleanHeaders(header)}
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", lineNum+1, err)
		}
		table.Rows = append(table.Rows, stringsToCells(record))
		lineNum++
	}
	return table, nil
}

// ParseXLSX parses the "Products" sheet of a workbook, or its first sheet
func ParseXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found in Excel file")
	}
	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") {
			sheetName = name
			break
		}
	}

	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(excelRows) == 0 {
		return &Table{}, nil
	}

	table := &Table{Header: cleanHeaders(excelRows[0])}
	for _, row := range excelRows[1:] {
		table.Rows = append(table.Rows, stringsToCells(row))
	}
	return table, nil
}

// ParseJSON parses an array of flat objects. Header columns follow the first
// object that carries each key, sorted within that object.
func ParseJSON(r io.Reader) (*Table, error) {
	var items []map[string]interface{}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode JSON records: %w", err)
	}

	table := &Table{}
	index := make(map[string]int)
	for _, item := range items {
		for _, key := range sortedKeys(item) {
			if _, ok := index[key]; !ok {
				index[key] = len(table.Header)
				table.Header = append(table.Header, key)
			}
		}
	}
	for _, item := range items {
		row := make([]interface{}, len(table.Header))
		for key, v := range item {
			if n, ok := v.(json.Number); ok {
				if f, err := n.Float64(); err == nil {
					v = f
				} else {
					v = n.String()
				}
			}
			row[index[key]] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func cleanHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		h = strings.TrimSpace(strings.TrimSuffix(h, "*"))
		out[i] = h
	}
	return out
}

func stringsToCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
