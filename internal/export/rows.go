package export

import (
	"strconv"

	"github.com/newthinker/trailsim/internal/core"
	"github.com/newthinker/trailsim/internal/simulator"
)

// Columns of the trade log, in order.
var Columns = []string{
	"Date",
	"Close",
	"Daily Return",
	"Low",
	"High",
	"Daily Range",
	"Open",
	"State",
	"Cash",
	"Portfolio",
	"Buy Price",
	"Sell Price",
	"Gap",
}

const gapMark = "X"

// cells returns a record's values in column order. Absent fills are nil.
func cells(r simulator.TradeRecord) []any {
	row := []any{
		r.Date.Format(core.DateLayout),
		r.Close,
		r.DailyReturn,
		r.Low,
		r.High,
		r.DailyRange,
		r.Open,
		r.Position.String(),
		r.Cash,
		r.PortfolioValue,
		nil,
		nil,
		"",
	}
	if r.BuyPrice != nil {
		row[10] = *r.BuyPrice
	}
	if r.SellPrice != nil {
		row[11] = *r.SellPrice
	}
	if r.Gap {
		row[12] = gapMark
	}
	return row
}

// textCells renders cells for text formats
func textCells(r simulator.TradeRecord) []string {
	raw := cells(r)
	out := make([]string, len(raw))
	for i, v := range raw {
		switch x := v.(type) {
		case nil:
			out[i] = ""
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case string:
			out[i] = x
		}
	}
	return out
}
