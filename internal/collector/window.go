package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/trailsim/internal/core"
)

// FetchInclusive fetches bars for [start, end] with end included. Providers treat the
// end of a window as exclusive, so when the first query has no bar dated end the window
// is widened by one day and queried once more.
func FetchInclusive(ctx context.Context, c Collector, symbol string, start, end time.Time) ([]core.Bar, error) {
	start, end = core.TruncateDay(start), core.TruncateDay(end)

	bars, err := c.FetchHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if !hasDay(bars, end) {
		bars, err = c.FetchHistory(ctx, symbol, start, end.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
	}

	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrEmptySeries,
			fmt.Errorf("%s between %s and %s", symbol, start.Format(core.DateLayout), end.Format(core.DateLayout)))
	}
	return bars, nil
}

func hasDay(bars []core.Bar, day time.Time) bool {
	// Bars are ordered, so only the tail can match.
	for i := len(bars) - 1; i >= 0; i-- {
		if core.SameDay(bars[i].Time, day) {
			return true
		}
		if bars[i].Time.Before(day) {
			return false
		}
	}
	return false
}
