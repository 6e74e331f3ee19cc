package export

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricespy/internal/model"
)

// Outcome reports whether an export succeeded. Failures carry the cause and
// never abort the caller.
type Outcome struct {
	OK     bool
	Path   string
	Format Format
	Rows   int
	Err    error
}

// Write exports ds to path in the given format, creating parent
// directories as needed.
func Write(path string, format Format, ds model.Dataset) Outcome {
	out := Outcome{Path: path, Format: format, Rows: ds.Len()}
	if err := write(path, format, ds); err != nil {
		out.Err = err
		zap.L().Error("export: write failed",
			zap.String("path", path),
			zap.String("format", string(format)),
			zap.Error(err),
		)
		return out
	}

	out.OK = true
	zap.L().Info("export: wrote dataset",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("rows", out.Rows),
	)
	return out
}

func write(path string, format Format, ds model.Dataset) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "export: create directory")
		}
	}

	switch format {
	case FormatXLSX:
		return WriteXLSX(path, ds)
	case FormatCSV:
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "csv export: create file")
		}
		if err := WriteCSV(f, ds); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "csv export: close file")
		}
		return nil
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}
