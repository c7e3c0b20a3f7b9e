package backtest

import (
	"math"

	"github.com/newthinker/trailsim/internal/simulator"
)

// tradingDays annualizes daily figures.
const tradingDays = 252

// buildTrades pairs fills into holding periods. The account is invested from the first
// close, so the first trade opens there without a fill. An open trade is marked to the
// last close.
func buildTrades(records []simulator.TradeRecord, fills []simulator.Fill) []Trade {
	if len(records) == 0 {
		return nil
	}

	var trades []Trade
	openTrade := &Trade{
		EntryDate:  records[0].Date,
		EntryPrice: records[0].Close,
	}

	for _, f := range fills {
		switch f.Side {
		case simulator.SideSell:
			if openTrade != nil {
				exit := f.Date
				openTrade.ExitDate = &exit
				openTrade.ExitPrice = f.Price
				openTrade.Return = (f.Price - openTrade.EntryPrice) / openTrade.EntryPrice
				trades = append(trades, *openTrade)
				openTrade = nil
			}
		case simulator.SideBuy:
			if openTrade == nil {
				openTrade = &Trade{
					EntryDate:  f.Date,
					EntryPrice: f.Price,
				}
			}
		}
	}

	if openTrade != nil {
		last := records[len(records)-1].Close
		openTrade.ExitPrice = last
		openTrade.Return = (last - openTrade.EntryPrice) / openTrade.EntryPrice
		trades = append(trades, *openTrade)
	}

	return trades
}

// CalculateStats computes performance statistics for a finished run
func CalculateStats(sim *simulator.Result, trades []Trade) Stats {
	if sim == nil || len(sim.Records) == 0 {
		return Stats{}
	}

	var stats Stats
	for _, f := range sim.Fills {
		if f.Side == simulator.SideBuy {
			stats.Buys++
		} else {
			stats.Sells++
		}
		if f.Gap {
			stats.GapFills++
		}
	}

	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		if t.IsWin() {
			stats.WinningTrades++
		} else {
			stats.LosingTrades++
		}
	}
	stats.TotalTrades = len(trades)
	if closed := stats.WinningTrades + stats.LosingTrades; closed > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(closed) * 100
	}

	equity := make([]float64, len(sim.Records))
	var invested int
	for i, r := range sim.Records {
		equity[i] = r.Equity()
		if r.Position == simulator.InPosition {
			invested++
		}
	}

	first, last := sim.Records[0].Close, sim.Records[len(sim.Records)-1].Close
	stats.TotalReturn = sim.ReturnPct
	stats.BuyAndHoldReturn = (last - first) / first * 100
	stats.MaxDrawdown = calculateMaxDrawdown(equity) * 100
	stats.Exposure = float64(invested) / float64(len(sim.Records)) * 100
	stats.SharpeRatio = calculateSharpeRatio(dailyReturns(equity))

	return stats
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of an equity curve
func calculateMaxDrawdown(equity []float64) float64 {
	var maxDD, peak float64

	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

func dailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}
	return returns
}

// calculateSharpeRatio computes risk-adjusted return
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}

	return mean * tradingDays / (stdDev * math.Sqrt(tradingDays))
}
