package collector

import (
	"context"
	"errors"
	"time"

	"github.com/newthinker/trailsim/internal/core"
)

// RequestRecorder receives the outcome of every market data request.
type RequestRecorder interface {
	RecordCollectorRequest(collector, status string)
}

type instrumented struct {
	Collector
	rec RequestRecorder
}

// Instrument reports each FetchHistory and Validate call on c to rec.
func Instrument(c Collector, rec RequestRecorder) Collector {
	if rec == nil {
		return c
	}
	return &instrumented{Collector: c, rec: rec}
}

func (i *instrumented) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	bars, err := i.Collector.FetchHistory(ctx, symbol, start, end)
	i.rec.RecordCollectorRequest(i.Name(), requestStatus(err))
	return bars, err
}

func (i *instrumented) Validate(ctx context.Context, symbol string) error {
	err := i.Collector.Validate(ctx, symbol)
	i.rec.RecordCollectorRequest(i.Name(), requestStatus(err))
	return err
}

func requestStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, core.ErrSymbolNotFound):
		return "not_found"
	case errors.Is(err, core.ErrCollectorTimeout):
		return "timeout"
	default:
		return "error"
	}
}
