package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"catalog-adaptation-service/internal/models"
)

// ImportColumn describes one column of a marketplace upload template
type ImportColumn struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Description string   `json:"description,omitempty"`
	Allowed     []string `json:"allowed,omitempty"`
	Constraints string   `json:"constraints,omitempty"`
}

// ImportColumns lists the upload columns of a template in template order
func ImportColumns(tmpl *models.MarketplaceTemplate) []ImportColumn {
	conditional := make(map[string]bool)
	for _, fields := range tmpl.Rules.ConditionalFields {
		for _, f := range fields {
			conditional[f] = true
		}
	}

	columns := make([]ImportColumn, 0, len(tmpl.Attributes))
	for _, attr := range tmpl.Attributes {
		col := ImportColumn{
			Name:        attr.Name,
			Type:        string(attr.Type),
			Required:    attr.Required,
			Description: attr.Description,
			Constraints: constraints(attr.Validation),
		}
		if attr.HasEnum() {
			col.Allowed = append([]string(nil), attr.Validation.Enum...)
		}
		if attr.Type == models.AttributeTypeArray && col.Description == "" {
			col.Description = "Separate multiple values with " + ArraySeparator
		}
		if conditional[attr.Name] && !attr.Required {
			col.Description = strings.TrimSpace(col.Description + " Required for some categories.")
		}
		columns = append(columns, col)
	}
	return columns
}

func constraints(v *models.Validation) string {
	if v == nil {
		return ""
	}
	var parts []string
	if v.MinLength != nil {
		parts = append(parts, fmt.Sprintf("min length %d", *v.MinLength))
	}
	if v.MaxLength != nil {
		parts = append(parts, fmt.Sprintf("max length %d", *v.MaxLength))
	}
	if v.Min != nil {
		parts = append(parts, "min "+strconv.FormatFloat(*v.Min, 'f', -1, 64))
	}
	if v.Max != nil {
		parts = append(parts, "max "+strconv.FormatFloat(*v.Max, 'f', -1, 64))
	}
	if v.Pattern != "" {
		parts = append(parts, "pattern "+v.Pattern)
	}
	return strings.Join(parts, ", ")
}

// WriteImportTemplate writes an empty upload template for a marketplace
func WriteImportTemplate(w io.Writer, format Format, tmpl *models.MarketplaceTemplate) error {
	columns := ImportColumns(tmpl)
	switch format {
	case FormatCSV:
		writer := csv.NewWriter(w)
		headers := make([]string, len(columns))
		for i, col := range columns {
			headers[i] = col.Name
		}
		if err := writer.Write(headers); err != nil {
			return err
		}
		writer.Flush()
		return writer.Error()
	case FormatXLSX:
		return writeXLSXTemplate(w, tmpl, columns)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]interface{}{
			"marketplace": tmpl.Marketplace,
			"version":     tmpl.Version,
			"columns":     columns,
		})
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func writeXLSXTemplate(w io.Writer, tmpl *models.MarketplaceTemplate, columns []ImportColumn) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	// Style for header row
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// Style for required columns
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		if col.Required {
			headerText = col.Name + " *"
		}
		f.SetCellValue(sheetName, cell, headerText)

		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	if _, err := f.NewSheet("Instructions"); err != nil {
		return err
	}
	f.SetCellValue("Instructions", "A1", fmt.Sprintf("%s upload template (version %s)", tmpl.Name, tmpl.Version))
	f.SetCellValue("Instructions", "A2", "Columns marked * are required.")
	for i, header := range []string{"Column", "Type", "Required", "Allowed values", "Constraints", "Notes"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		f.SetCellValue("Instructions", cell, header)
		f.SetCellStyle("Instructions", cell, cell, headerStyle)
	}
	for r, col := range columns {
		values := []string{
			col.Name,
			col.Type,
			strconv.FormatBool(col.Required),
			strings.Join(col.Allowed, ", "),
			col.Constraints,
			col.Description,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+5)
			f.SetCellValue("Instructions", cell, v)
		}
	}
	f.SetColWidth("Instructions", "A", "F", 24)

	_, err := f.WriteTo(w)
	return err
}
