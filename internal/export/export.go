package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"

	"catalog-adaptation-service/internal/models"
)

// Format is an export file format
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// ErrUnsupportedFormat is returned for unknown export formats
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat converts user input into a Format
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatXLSX, FormatParquet:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	}
	return "application/json"
}

// ArraySeparator joins array values in tabular exports
const ArraySeparator = "|"

const issueSeparator = "; "

// Columns returns the export header: sku, confidence and issues followed by
// the template attributes in template order.
func Columns(tmpl *models.MarketplaceTemplate) []string {
	columns := []string{"sku", "confidence", "issues"}
	seen := map[string]bool{"sku": true, "confidence": true, "issues": true}
	for _, attr := range tmpl.Attributes {
		if !seen[attr.Name] {
			seen[attr.Name] = true
			columns = append(columns, attr.Name)
		}
	}
	return columns
}

// Row renders one result as export cells aligned with Columns
func Row(tmpl *models.MarketplaceTemplate, result models.AdaptationResult) []string {
	columns := Columns(tmpl)
	row := make([]string, len(columns))
	row[0] = result.SKU
	row[1] = strconv.Itoa(result.Confidence)
	row[2] = strings.Join(result.Issues, issueSeparator)
	for i := 3; i < len(columns); i++ {
		row[i] = Cell(result.Adapted[columns[i]])
	}
	return row
}

// Cell renders an attribute value for tabular output
func Cell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(t, ArraySeparator)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, Cell(item))
		}
		return strings.Join(parts, ArraySeparator)
	case map[string]interface{}:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return models.ValueToString(v)
}

// Write serializes results in the requested format
func Write(w io.Writer, format Format, tmpl *models.MarketplaceTemplate, results []models.AdaptationResult) error {
	if tmpl == nil {
		return errors.New("template is required for export")
	}
	switch format {
	case FormatCSV:
		return writeCSV(w, tmpl, results)
	case FormatJSON:
		return writeJSON(w, tmpl, results)
	case FormatXLSX:
		return writeXLSX(w, tmpl, results)
	case FormatParquet:
		return writeParquet(w, tmpl, results)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func writeCSV(w io.Writer, tmpl *models.MarketplaceTemplate, results []models.AdaptationResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns(tmpl)); err != nil {
		return err
	}
	for _, r := range results {
		if err := writer.Write(Row(tmpl, r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// jsonItem is one exported result
type jsonItem struct {
	SKU         string                `json:"sku"`
	Marketplace models.MarketplaceKey `json:"marketplace"`
	Confidence  int                   `json:"confidence"`
	Issues      []string              `json:"issues"`
	Record      models.ProductRecord  `json:"record"`
}

func writeJSON(w io.Writer, tmpl *models.MarketplaceTemplate, results []models.AdaptationResult) error {
	items := make([]jsonItem, 0, len(results))
	for _, r := range results {
		record := models.ProductRecord{}
		for _, attr := range tmpl.Attributes {
			if v, ok := r.Adapted[attr.Name]; ok {
				record[attr.Name] = v
			}
		}
		issues := r.Issues
		if issues == nil {
			issues = []string{}
		}
		items = append(items, jsonItem{
			SKU:         r.SKU,
			Marketplace: tmpl.Marketplace,
			Confidence:  r.Confidence,
			Issues:      issues,
			Record:      record,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]interface{}{
		"marketplace": tmpl.Marketplace,
		"version":     tmpl.Version,
		"count":       len(items),
		"items":       items,
	})
}

func writeXLSX(w io.Writer, tmpl *models.MarketplaceTemplate, results []models.AdaptationResult) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	reviewStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FCE4D6"}, Pattern: 1},
	})

	columns := Columns(tmpl)
	for i, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, name)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	for r, result := range results {
		rowNum := r + 2
		for i, value := range Row(tmpl, result) {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowNum)
			if i == 1 {
				f.SetCellValue(sheetName, cell, result.Confidence)
				continue
			}
			f.SetCellValue(sheetName, cell, value)
		}
		// Highlight rows with compliance issues
		if len(result.Issues) > 0 {
			first, _ := excelize.CoordinatesToCellName(1, rowNum)
			last, _ := excelize.CoordinatesToCellName(len(columns), rowNum)
			f.SetCellStyle(sheetName, first, last, reviewStyle)
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// parquetRow is the Parquet schema of an exported result
type parquetRow struct {
	SKU         string            `parquet:"sku"`
	Marketplace string            `parquet:"marketplace"`
	Confidence  int32             `parquet:"confidence"`
	Issues      []string          `parquet:"issues,list"`
	Attributes  map[string]string `parquet:"attributes"`
	ProcessedAt string            `parquet:"processed_at"`
}

func writeParquet(w io.Writer, tmpl *models.MarketplaceTemplate, results []models.AdaptationResult) error {
	rows := make([]parquetRow, 0, len(results))
	for _, r := range results {
		attrs := make(map[string]string)
		for _, attr := range tmpl.Attributes {
			if v, ok := r.Adapted[attr.Name]; ok && !models.IsEmptyValue(v) {
				attrs[attr.Name] = Cell(v)
			}
		}
		row := parquetRow{
			SKU:         r.SKU,
			Marketplace: string(tmpl.Marketplace),
			Confidence:  int32(r.Confidence),
			Issues:      r.Issues,
			Attributes:  attrs,
		}
		if !r.ProcessedAt.IsZero() {
			row.ProcessedAt = r.ProcessedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	writer := parquet.NewGenericWriter[parquetRow](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
