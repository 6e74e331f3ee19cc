package export

import (
	"fmt"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/pricespy/internal/model"
)

// SheetName is the single sheet written to spreadsheet exports.
const SheetName = "Products"

const maxColumnWidth = 50

// WriteXLSX saves ds as a single-sheet workbook at path with columns sized
// to their longest value.
func WriteXLSX(path string, ds model.Dataset) error {
	cols := columnsFor(ds)

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx export: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range cols {
		header.AddCell().SetString(c.name)
	}

	for _, r := range ds {
		row := sheet.AddRow()
		for _, c := range cols {
			setCell(row.AddCell(), c.cell(r))
		}
	}

	// Sheet columns are 1-based.
	for i, w := range columnWidths(cols, ds) {
		sheet.SetColWidth(i+1, i+1, w)
	}

	if err := file.Save(path); err != nil {
		return eris.Wrap(err, "xlsx export: save file")
	}
	return nil
}

func setCell(cell *xlsx.Cell, v any) {
	switch val := v.(type) {
	case nil:
	case string:
		cell.SetString(val)
	case float64:
		cell.SetFloat(val)
	case int:
		cell.SetInt(val)
	default:
		cell.SetString(fmt.Sprint(val))
	}
}

// columnWidths sizes each column to its longest rendered value or header,
// plus two characters of padding, capped at 50.
func columnWidths(cols []column, ds model.Dataset) []float64 {
	widths := make([]float64, len(cols))
	for i, c := range cols {
		longest := utf8.RuneCountInString(c.name)
		for _, r := range ds {
			if n := utf8.RuneCountInString(c.text(r)); n > longest {
				longest = n
			}
		}
		widths[i] = float64(min(longest+2, maxColumnWidth))
	}
	return widths
}
