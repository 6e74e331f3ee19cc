// Package export writes a Dataset as delimited text or as a spreadsheet.
package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricespy/internal/model"
)

// Format selects the serialization.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv", "xlsx" and "excel" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	if f == FormatXLSX {
		return ".xlsx"
	}
	return ".csv"
}

// ResultFileName names an export made at now, e.g.
// pricespy_results_20240102_150405.csv.
func ResultFileName(f Format, now time.Time) string {
	return "pricespy_results_" + now.Format("20060102_150405") + f.Ext()
}

// column is one output field. text renders it for delimited output; cell
// returns the typed value for spreadsheets (nil for a blank cell).
type column struct {
	name string
	text func(model.NormalizedRecord) string
	cell func(model.NormalizedRecord) any
}

var allColumns = []column{
	{
		name: "title",
		text: func(r model.NormalizedRecord) string { return r.Title },
		cell: func(r model.NormalizedRecord) any { return r.Title },
	},
	{
		name: "price",
		text: func(r model.NormalizedRecord) string { return r.Price },
		cell: func(r model.NormalizedRecord) any { return r.Price },
	},
	{
		name: "price_numeric",
		text: func(r model.NormalizedRecord) string {
			return strconv.FormatFloat(r.PriceNumeric.Value, 'f', -1, 64)
		},
		cell: func(r model.NormalizedRecord) any { return r.PriceNumeric.Value },
	},
	{
		name: "rating",
		text: func(r model.NormalizedRecord) string {
			if r.Rating == nil {
				return ""
			}
			return strconv.Itoa(*r.Rating)
		},
		cell: func(r model.NormalizedRecord) any {
			if r.Rating == nil {
				return nil
			}
			return *r.Rating
		},
	},
	{
		name: "availability",
		text: func(r model.NormalizedRecord) string { return r.Availability },
		cell: func(r model.NormalizedRecord) any { return r.Availability },
	},
	{
		name: "url",
		text: func(r model.NormalizedRecord) string { return r.URL },
		cell: func(r model.NormalizedRecord) any { return r.URL },
	},
}

// columnsFor returns the fixed column order, dropping rating and url when
// no record carries them.
func columnsFor(ds model.Dataset) []column {
	hasRating := ds.HasRatings()
	hasURL := ds.HasURLs()

	cols := make([]column, 0, len(allColumns))
	for _, c := range allColumns {
		switch {
		case c.name == "rating" && !hasRating:
			continue
		case c.name == "url" && !hasURL:
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// Header returns the column names that would be written for ds.
func Header(ds model.Dataset) []string {
	cols := columnsFor(ds)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}
