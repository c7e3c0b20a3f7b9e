package simulator

import (
	"fmt"
	"time"

	"github.com/newthinker/trailsim/internal/core"
)

// DefaultInitialCapital is the notional value a run starts with unless overridden.
const DefaultInitialCapital = 100.0

// Params holds the strategy thresholds (percent) and starting capital
type Params struct {
	BuyPct         float64 `json:"buy_pct" mapstructure:"buy_pct"`
	SellPct        float64 `json:"sell_pct" mapstructure:"sell_pct"`
	InitialCapital float64 `json:"initial_capital" mapstructure:"initial_capital"`
}

// DefaultParams returns the 0.5%/0.5% thresholds on 100 notional units.
func DefaultParams() Params {
	return Params{
		BuyPct:         0.5,
		SellPct:        0.5,
		InitialCapital: DefaultInitialCapital,
	}
}

// Validate rejects non-positive thresholds or capital.
func (p Params) Validate() error {
	if p.BuyPct <= 0 {
		return core.WrapError(core.ErrInvalidParameters,
			fmt.Errorf("buy threshold must be positive, got %v", p.BuyPct))
	}
	if p.SellPct <= 0 {
		return core.WrapError(core.ErrInvalidParameters,
			fmt.Errorf("sell threshold must be positive, got %v", p.SellPct))
	}
	if p.InitialCapital <= 0 {
		return core.WrapError(core.ErrInvalidParameters,
			fmt.Errorf("initial capital must be positive, got %v", p.InitialCapital))
	}
	return nil
}

// sellLevel is the stop price trailing reference by the sell threshold.
func (p Params) sellLevel(reference float64) float64 {
	return reference * (1 - p.SellPct/100)
}

// buyLevel is the entry price trailing reference by the buy threshold.
func (p Params) buyLevel(reference float64) float64 {
	return reference * (1 + p.BuyPct/100)
}

// Position is what the simulated account holds between bars.
type Position int

const (
	// InPosition holds units of the asset and no cash.
	InPosition Position = iota
	// InCash holds cash and no units.
	InCash
)

func (p Position) String() string {
	switch p {
	case InPosition:
		return "IN_POSITION"
	case InCash:
		return "IN_CASH"
	default:
		return fmt.Sprintf("Position(%d)", int(p))
	}
}

// MarshalText renders the position by name in JSON output.
func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a position name.
func (p *Position) UnmarshalText(text []byte) error {
	switch string(text) {
	case "IN_POSITION":
		*p = InPosition
	case "IN_CASH":
		*p = InCash
	default:
		return fmt.Errorf("unknown position %q", text)
	}
	return nil
}

// State is the mutable account threaded from one bar to the next.
type State struct {
	Position      Position
	HeldUnits     float64
	Cash          float64
	PreviousClose float64

	// SellTrigger is only meaningful while InPosition.
	SellTrigger float64

	// BuyTrigger is only meaningful while InCash and HasBuyTrigger is set.
	BuyTrigger    float64
	HasBuyTrigger bool
}

// Value marks the account to market at price.
func (s State) Value(price float64) float64 {
	return s.HeldUnits*price + s.Cash
}

// Side is the direction of a fill
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Fill is one executed transition
type Fill struct {
	Date  time.Time `json:"date"`
	Side  Side      `json:"side"`
	Price float64   `json:"price"`
	Gap   bool      `json:"gap"` // Executed at the open because the open breached the trigger
}

// String renders the fill as a line of the execution log.
func (f Fill) String() string {
	verb := "Buy"
	if f.Side == SideSell {
		verb = "Sell"
	}
	line := fmt.Sprintf("%s executed on %s at %.4f", verb, f.Date.Format(core.DateLayout), f.Price)
	if f.Gap {
		line += " (gap at open)"
	}
	return line
}

// TradeRecord is the per-bar row of the execution log.
type TradeRecord struct {
	Date           time.Time `json:"date"`
	Close          float64   `json:"close"`
	DailyReturn    float64   `json:"daily_return"`
	Low            float64   `json:"low"`
	High           float64   `json:"high"`
	DailyRange     float64   `json:"daily_range"`
	Open           float64   `json:"open"`
	Position       Position  `json:"position"`
	Cash           float64   `json:"cash"`
	PortfolioValue float64   `json:"portfolio_value"`
	BuyPrice       *float64  `json:"buy_price,omitempty"`
	SellPrice      *float64  `json:"sell_price,omitempty"`
	Gap            bool      `json:"gap"`
}

// Equity is the total account value at the record's close.
func (r TradeRecord) Equity() float64 {
	return r.PortfolioValue + r.Cash
}

// Result is the complete output of a simulation run
type Result struct {
	Params     Params        `json:"params"`
	Records    []TradeRecord `json:"records"`
	Fills      []Fill        `json:"fills"`
	Events     []string      `json:"events"`
	Final      State         `json:"-"`
	FinalValue float64       `json:"final_value"`
	ReturnPct  float64       `json:"return_pct"`
}
