package export

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricespy/internal/model"
)

// WriteCSV writes ds as UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, ds model.Dataset) error {
	cols := columnsFor(ds)
	cw := csv.NewWriter(w)

	if err := cw.Write(Header(ds)); err != nil {
		return eris.Wrap(err, "csv export: write header")
	}

	row := make([]string, len(cols))
	for _, r := range ds {
		for i, c := range cols {
			row[i] = c.text(r)
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "csv export: write row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "csv export: flush")
	}
	return nil
}
