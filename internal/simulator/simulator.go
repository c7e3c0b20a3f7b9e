// Package simulator runs the trailing-threshold strategy over a daily bar series.
//
// The account starts fully invested at the first close. While invested, a sell stop trails
// the previous close by SellPct and only ever rises; while in cash, a buy trigger trails the
// previous close by BuyPct and only ever falls. A bar whose open already breached the
// active trigger fills at the open (a gap fill); otherwise a trigger inside the bar's
// low-high range fills at the trigger. Every bar produces exactly one TradeRecord.
package simulator

import (
	"fmt"
	"math"

	"github.com/newthinker/trailsim/internal/core"
)

// Initialize builds the starting state from the first bar: all capital is invested at
// its close and the sell stop is armed below it.
func Initialize(first core.Bar, p Params) (State, TradeRecord) {
	s := State{
		Position:      InPosition,
		HeldUnits:     p.InitialCapital / first.Close,
		Cash:          0,
		PreviousClose: first.Close,
		SellTrigger:   p.sellLevel(first.Close),
	}
	return s, newRecord(s, first, 0)
}

// Step advances the state by one bar and returns the new state, the bar's record and
// the fill it produced, if any. At most one transition happens per bar.
func Step(s State, bar core.Bar, p Params) (State, TradeRecord, *Fill) {
	dailyReturn := (bar.Close - s.PreviousClose) / s.PreviousClose

	var fill *Fill
	switch s.Position {
	case InPosition:
		s.SellTrigger = math.Max(s.SellTrigger, p.sellLevel(s.PreviousClose))

		if price, gap, ok := sellPrice(bar, s.SellTrigger); ok {
			s.Cash = s.HeldUnits * price
			s.HeldUnits = 0
			s.Position = InCash
			s.BuyTrigger = p.buyLevel(bar.Close)
			s.HasBuyTrigger = true
			fill = &Fill{Date: bar.Time, Side: SideSell, Price: price, Gap: gap}
		}

	case InCash:
		level := p.buyLevel(s.PreviousClose)
		if !s.HasBuyTrigger {
			s.BuyTrigger = level
			s.HasBuyTrigger = true
		} else {
			s.BuyTrigger = math.Min(s.BuyTrigger, level)
		}

		if price, gap, ok := buyPrice(bar, s.BuyTrigger); ok {
			s.HeldUnits = s.Cash / price
			s.Cash = 0
			s.Position = InPosition
			s.SellTrigger = p.sellLevel(bar.Close)
			fill = &Fill{Date: bar.Time, Side: SideBuy, Price: price, Gap: gap}
		}
	}

	rec := newRecord(s, bar, dailyReturn)
	if fill != nil {
		price := fill.Price
		if fill.Side == SideBuy {
			rec.BuyPrice = &price
		} else {
			rec.SellPrice = &price
		}
		rec.Gap = fill.Gap
	}

	s.PreviousClose = bar.Close
	return s, rec, fill
}

// sellPrice decides whether the stop fires on bar. A gap below the stop takes
// precedence over an intrabar touch.
func sellPrice(bar core.Bar, trigger float64) (price float64, gap, ok bool) {
	if bar.Open < trigger {
		return bar.Open, true, true
	}
	if bar.Low <= trigger && trigger <= bar.High {
		return trigger, false, true
	}
	return 0, false, false
}

// buyPrice decides whether the entry fires on bar. A gap above the trigger takes
// precedence over an intrabar touch.
func buyPrice(bar core.Bar, trigger float64) (price float64, gap, ok bool) {
	if bar.Open > trigger {
		return bar.Open, true, true
	}
	if bar.Low <= trigger && trigger <= bar.High {
		return trigger, false, true
	}
	return 0, false, false
}

func newRecord(s State, bar core.Bar, dailyReturn float64) TradeRecord {
	return TradeRecord{
		Date:           bar.Time,
		Close:          bar.Close,
		DailyReturn:    dailyReturn,
		Low:            bar.Low,
		High:           bar.High,
		DailyRange:     (bar.High - bar.Low) / bar.Low,
		Open:           bar.Open,
		Position:       s.Position,
		Cash:           s.Cash,
		PortfolioValue: s.HeldUnits * bar.Close,
	}
}

// Run validates the inputs and folds Step over bars. It either returns a record for
// every bar or fails without output.
func Run(bars []core.Bar, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}

	state, first := Initialize(bars[0], p)

	records := make([]TradeRecord, 0, len(bars))
	records = append(records, first)

	var fills []Fill
	for _, bar := range bars[1:] {
		var rec TradeRecord
		var fill *Fill
		state, rec, fill = Step(state, bar, p)
		records = append(records, rec)
		if fill != nil {
			fills = append(fills, *fill)
		}
	}

	events := make([]string, len(fills))
	for i, f := range fills {
		events[i] = f.String()
	}

	finalValue := state.Value(bars[len(bars)-1].Close)

	return &Result{
		Params:     p,
		Records:    records,
		Fills:      fills,
		Events:     events,
		Final:      state,
		FinalValue: finalValue,
		ReturnPct:  (finalValue - p.InitialCapital) / p.InitialCapital * 100,
	}, nil
}

// ValidateBars checks the series is non-empty, every bar is well formed and dates
// strictly increase.
func ValidateBars(bars []core.Bar) error {
	if len(bars) == 0 {
		return core.WrapError(core.ErrEmptySeries, nil)
	}

	for i, b := range bars {
		if problem := b.Problem(); problem != "" {
			return core.WrapError(core.ErrInvalidBar,
				fmt.Errorf("bar %d (%s) has %s: open=%v high=%v low=%v close=%v",
					i, b.Day(), problem, b.Open, b.High, b.Low, b.Close))
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return core.WrapError(core.ErrInvalidBar,
				fmt.Errorf("bar %d (%s) is not after %s", i, b.Day(), bars[i-1].Day()))
		}
	}
	return nil
}
