// Package backtest runs the trailing-threshold simulator against market data and
// summarizes the outcome.
package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/trailsim/internal/collector"
	"github.com/newthinker/trailsim/internal/core"
	"github.com/newthinker/trailsim/internal/simulator"
	"go.uber.org/zap"
)

// Recorder receives run-level metrics. *metrics.Registry satisfies it.
type Recorder interface {
	RecordSimulation(status string, duration float64)
	RecordFill(side, kind string)
	AddBarsProcessed(n int)
}

// Backtester runs simulations against historical data
type Backtester struct {
	collector collector.Collector
	logger    *zap.Logger
	metrics   Recorder
	now       func() time.Time
}

// New creates a new Backtester reading bars from c. logger and rec may be nil.
func New(c collector.Collector, logger *zap.Logger, rec Recorder) *Backtester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backtester{
		collector: c,
		logger:    logger.Named("backtest"),
		metrics:   rec,
		now:       time.Now,
	}
}

// Run validates the request, fetches bars for [Start, End] and simulates them
func (b *Backtester) Run(ctx context.Context, req Request) (res *Result, err error) {
	began := b.now()
	defer func() {
		if b.metrics == nil {
			return
		}
		status := "success"
		if err != nil {
			status = "failure"
		}
		b.metrics.RecordSimulation(status, time.Since(began).Seconds())
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := b.collector.Validate(ctx, req.Symbol); err != nil {
		return nil, err
	}

	bars, err := collector.FetchInclusive(ctx, b.collector, req.Symbol, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sim, err := simulator.Run(bars, req.Params)
	if err != nil {
		b.logger.Warn("simulation rejected input",
			zap.String("symbol", req.Symbol),
			zap.Int("bars", len(bars)),
			zap.Error(err),
		)
		return nil, err
	}

	trades := buildTrades(sim.Records, sim.Fills)
	res = &Result{
		ID:          uuid.NewString(),
		Symbol:      req.Symbol,
		Params:      req.Params,
		StartDate:   sim.Records[0].Date,
		EndDate:     sim.Records[len(sim.Records)-1].Date,
		Records:     sim.Records,
		Fills:       sim.Fills,
		Events:      sim.Events,
		Trades:      trades,
		FinalValue:  sim.FinalValue,
		ReturnPct:   sim.ReturnPct,
		Stats:       CalculateStats(sim, trades),
		CompletedAt: b.now(),
	}

	b.record(res, len(bars))

	b.logger.Info("simulation complete",
		zap.String("id", res.ID),
		zap.String("symbol", res.Symbol),
		zap.String("start", res.StartDate.Format(core.DateLayout)),
		zap.String("end", res.EndDate.Format(core.DateLayout)),
		zap.Int("bars", len(bars)),
		zap.Int("fills", len(res.Fills)),
		zap.Float64("return_pct", res.ReturnPct),
	)

	return res, nil
}

func (b *Backtester) record(res *Result, bars int) {
	if b.metrics == nil {
		return
	}
	b.metrics.AddBarsProcessed(bars)
	for _, f := range res.Fills {
		kind := "range"
		if f.Gap {
			kind = "gap"
		}
		b.metrics.RecordFill(string(f.Side), kind)
	}
}
