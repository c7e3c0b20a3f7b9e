// Package notifier announces finished simulations to external endpoints.
package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/newthinker/trailsim/internal/backtest"
	"github.com/newthinker/trailsim/internal/core"
	"github.com/newthinker/trailsim/internal/export"
)

const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Event reports the outcome of one simulation run
type Event struct {
	JobID      string    `json:"job_id,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Symbol     string    `json:"symbol"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	ReturnPct  float64   `json:"return_pct"`
	FinalValue float64   `json:"final_value"`
	ErrorCode  string    `json:"error_code,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Completed builds the event for a successful run
func Completed(jobID string, res *backtest.Result) Event {
	return Event{
		JobID:      jobID,
		RunID:      res.ID,
		Symbol:     res.Symbol,
		Status:     StatusComplete,
		Message:    export.SummaryLine(res),
		ReturnPct:  res.ReturnPct,
		FinalValue: res.FinalValue,
		FinishedAt: res.CompletedAt,
	}
}

// Failed builds the event for a run that ended in err
func Failed(jobID, symbol string, err error, at time.Time) Event {
	e := Event{
		JobID:      jobID,
		Symbol:     symbol,
		Status:     StatusFailed,
		Message:    err.Error(),
		FinishedAt: at,
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		e.ErrorCode = coreErr.Code
	}
	return e
}

// Notifier delivers simulation events
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Notify delivers one event
	Notify(ctx context.Context, e Event) error
}
