package export

import (
	"context"
	"fmt"
	"path"

	"github.com/newthinker/trailsim/internal/backtest"
	"github.com/newthinker/trailsim/internal/core"
	"github.com/newthinker/trailsim/internal/storage/archive"
	"go.uber.org/zap"
)

// Artifact is one stored export
type Artifact struct {
	Format Format `json:"format"`
	Path   string `json:"path"`
	Size   int    `json:"size"`
}

// Render produces the bytes of one format
func Render(res *backtest.Result, f Format) ([]byte, error) {
	switch f {
	case FormatXLSX:
		return XLSX(res)
	case FormatCSV:
		return CSV(res)
	case FormatTXT:
		return EventLog(res), nil
	default:
		return nil, core.WrapError(core.ErrInvalidParameters, fmt.Errorf("unknown export format %q", f))
	}
}

// Exporter writes rendered results to artifact storage
type Exporter struct {
	storage archive.Storage
	logger  *zap.Logger
}

// NewExporter creates an exporter over storage
func NewExporter(storage archive.Storage, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{storage: storage, logger: logger.Named("export")}
}

// Path is where format f of res is stored: <SYMBOL>/<runID>/<file>
func Path(res *backtest.Result, f Format) string {
	return path.Join(res.Symbol, res.ID, f.FileName(res.Symbol))
}

// Export renders and stores each format, returning what was written. The first
// failure aborts the export.
func (e *Exporter) Export(ctx context.Context, res *backtest.Result, formats []Format) ([]Artifact, error) {
	artifacts := make([]Artifact, 0, len(formats))
	for _, f := range formats {
		if err := ctx.Err(); err != nil {
			return artifacts, err
		}

		data, err := Render(res, f)
		if err != nil {
			return artifacts, core.WrapError(core.ErrExportFailed, err)
		}

		p := Path(res, f)
		if err := e.storage.Write(ctx, p, data); err != nil {
			return artifacts, core.WrapError(core.ErrExportFailed, fmt.Errorf("writing %s: %w", p, err))
		}

		e.logger.Debug("artifact written",
			zap.String("id", res.ID),
			zap.String("format", string(f)),
			zap.String("path", p),
			zap.Int("bytes", len(data)),
		)
		artifacts = append(artifacts, Artifact{Format: f, Path: p, Size: len(data)})
	}
	return artifacts, nil
}

// Load reads back a previously exported artifact
func (e *Exporter) Load(ctx context.Context, res *backtest.Result, f Format) ([]byte, error) {
	return e.storage.Read(ctx, Path(res, f))
}
