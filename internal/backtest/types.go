package backtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/trailsim/internal/core"
	"github.com/newthinker/trailsim/internal/simulator"
)

// Request describes one simulation over an inclusive date range
type Request struct {
	Symbol string           `json:"symbol"`
	Start  time.Time        `json:"start"`
	End    time.Time        `json:"end"` // Included in the run when the provider has a bar for it
	Params simulator.Params `json:"params"`
}

// Validate checks the request before any data is fetched
func (r Request) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return core.WrapError(core.ErrInvalidParameters, fmt.Errorf("symbol is required"))
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return core.WrapError(core.ErrInvalidParameters, fmt.Errorf("start and end dates are required"))
	}
	if core.TruncateDay(r.Start).After(core.TruncateDay(r.End)) {
		return core.WrapError(core.ErrInvalidParameters,
			fmt.Errorf("start %s is after end %s", r.Start.Format(core.DateLayout), r.End.Format(core.DateLayout)))
	}
	return r.Params.Validate()
}

// Result holds the complete backtest output
type Result struct {
	ID          string                  `json:"id"`
	Symbol      string                  `json:"symbol"`
	Params      simulator.Params        `json:"params"`
	StartDate   time.Time               `json:"start_date"` // First traded day
	EndDate     time.Time               `json:"end_date"`   // Last traded day
	Records     []simulator.TradeRecord `json:"records"`
	Fills       []simulator.Fill        `json:"fills"`
	Events      []string                `json:"events"`
	Trades      []Trade                 `json:"trades"`
	FinalValue  float64                 `json:"final_value"`
	ReturnPct   float64                 `json:"return_pct"`
	Stats       Stats                   `json:"stats"`
	CompletedAt time.Time               `json:"completed_at"`
}

// Trade is one holding period from entry to exit. The run opens with an implicit
// entry at the first close.
type Trade struct {
	EntryDate  time.Time  `json:"entry_date"`
	ExitDate   *time.Time `json:"exit_date,omitempty"` // nil if position still open
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Return     float64    `json:"return"` // Fractional return
}

// Stats holds performance statistics
type Stats struct {
	Buys             int     `json:"buys"`
	Sells            int     `json:"sells"`
	GapFills         int     `json:"gap_fills"`
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"`            // Percentage of profitable closed trades
	TotalReturn      float64 `json:"total_return"`        // Net return percentage
	BuyAndHoldReturn float64 `json:"buy_and_hold_return"` // First to last close, percentage
	MaxDrawdown      float64 `json:"max_drawdown"`        // Largest peak-to-trough equity decline, percentage
	Exposure         float64 `json:"exposure"`            // Percentage of bars held in position
	SharpeRatio      float64 `json:"sharpe_ratio"`        // Annualized, daily equity returns
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Return > 0
}

// IsClosed returns true if the trade has an exit
func (t Trade) IsClosed() bool {
	return t.ExitDate != nil
}
