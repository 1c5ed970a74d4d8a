package grid

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/starford/dagaz/internal/models"
)

// Format names accepted by Export.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Content types of the export formats.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportFilename returns "<resource>-export-<timestamp>.<ext>".
func ExportFilename(resource, ext string, at time.Time) string {
	return fmt.Sprintf("%s-export-%s.%s", resource, at.UTC().Format("20060102T150405Z"), ext)
}

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return ContentTypeXLSX
	}
	return ContentTypeCSV
}

// Export writes every displayed row in format, ignoring pagination.
func (a *Adapter) Export(w io.Writer, format string) error {
	switch format {
	case FormatXLSX:
		return a.ExportXLSX(w, "Export")
	case FormatCSV, "":
		return a.ExportCSV(w)
	default:
		return fmt.Errorf("grid: export: unsupported format %q", format)
	}
}

// ExportCSV writes a header of column labels followed by one line per
// displayed row. An empty view yields the header alone.
func (a *Adapter) ExportCSV(w io.Writer) error {
	cols := a.dataColumns()

	cw := csv.NewWriter(w)
	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = col.Label
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("grid: write csv header: %w", err)
	}

	records := make([][]string, 0, len(a.display))
	for _, r := range a.display {
		records = append(records, csvRow(cols, r))
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("grid: write csv rows: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// ExportXLSX writes the displayed rows as a single-sheet workbook.
// Number and money columns are stored as numeric cells.
func (a *Adapter) ExportXLSX(w io.Writer, sheet string) error {
	cols := a.dataColumns()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("grid: name sheet: %w", err)
	}

	header := make([]any, len(cols))
	for i, col := range cols {
		header[i] = col.Label
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("grid: write xlsx header: %w", err)
	}

	for i, r := range a.display {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("grid: cell name: %w", err)
		}
		row := xlsxRow(cols, r)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("grid: write xlsx row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("grid: write xlsx: %w", err)
	}
	return nil
}

func (a *Adapter) dataColumns() []Column {
	cols := make([]Column, 0, len(a.columns))
	for _, col := range a.columns {
		if col.Data() {
			cols = append(cols, col)
		}
	}
	return cols
}

func csvRow(cols []Column, r models.Record) []string {
	row := make([]string, len(cols))
	for i, col := range cols {
		row[i] = Value(col, r)
	}
	return row
}

func xlsxRow(cols []Column, r models.Record) []any {
	row := make([]any, len(cols))
	for i, col := range cols {
		switch col.Kind {
		case KindNumber:
			if n, ok := r.Number(col.Field); ok {
				row[i] = n
				continue
			}
		case KindMoney:
			if d, ok := MajorUnits(r, col.Field); ok {
				row[i] = d.InexactFloat64()
				continue
			}
		}
		row[i] = Value(col, r)
	}
	return row
}
