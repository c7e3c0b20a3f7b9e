package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/newthinker/trailsim/internal/backtest"
	"github.com/newthinker/trailsim/internal/core"
	"github.com/olekukonko/tablewriter"
)

// EventLog is the execution log, one fill per line
func EventLog(res *backtest.Result) []byte {
	return []byte(strings.Join(res.Events, "\n"))
}

// SummaryLine reports the run's return over its traded range
func SummaryLine(res *backtest.Result) string {
	return fmt.Sprintf("Simulation complete. Strategy (%s, -%s) %% for %s between %s and %s returned %.2f%%",
		formatPct(res.Params.BuyPct),
		formatPct(res.Params.SellPct),
		res.Symbol,
		res.StartDate.Format(core.DateLayout),
		res.EndDate.Format(core.DateLayout),
		res.ReturnPct,
	)
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SummaryTable renders the run's headline figures as a text table
func SummaryTable(res *backtest.Result) string {
	out := &strings.Builder{}
	table := tablewriter.NewWriter(out)

	st := res.Stats
	data := [][]string{
		{"Symbol", res.Symbol},
		{"Period", res.StartDate.Format(core.DateLayout) + " - " + res.EndDate.Format(core.DateLayout)},
		{"Bars", strconv.Itoa(len(res.Records))},
		{"Buy / Sell %", fmt.Sprintf("%s / %s", formatPct(res.Params.BuyPct), formatPct(res.Params.SellPct))},
		{"Initial", fmt.Sprintf("%.2f", res.Params.InitialCapital)},
		{"Final", fmt.Sprintf("%.2f", res.FinalValue)},
		{"Return %", fmt.Sprintf("%.2f", res.ReturnPct)},
		{"Buy & Hold %", fmt.Sprintf("%.2f", st.BuyAndHoldReturn)},
		{"Buys / Sells", fmt.Sprintf("%d / %d", st.Buys, st.Sells)},
		{"Gap fills", strconv.Itoa(st.GapFills)},
		{"% Win", fmt.Sprintf("%.1f", st.WinRate)},
		{"Max DD %", fmt.Sprintf("%.2f", st.MaxDrawdown)},
		{"Exposure %", fmt.Sprintf("%.1f", st.Exposure)},
		{"Sharpe", fmt.Sprintf("%.2f", st.SharpeRatio)},
	}

	table.AppendBulk(data)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Render()

	return out.String()
}
