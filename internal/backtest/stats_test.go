package backtest

import (
	"math"
	"testing"

	"github.com/newthinker/trailsim/internal/simulator"
)

func TestCalculateStats_Empty(t *testing.T) {
	stats := CalculateStats(&simulator.Result{}, nil)
	if stats.TotalTrades != 0 {
		t.Error("expected 0 trades for empty input")
	}
	if stats := CalculateStats(nil, nil); stats != (Stats{}) {
		t.Error("expected zero stats for nil result")
	}
}

func closedTrade(ret float64) Trade {
	exit := day(5)
	return Trade{EntryDate: day(2), ExitDate: &exit, Return: ret}
}

func TestCalculateStats_WinRate(t *testing.T) {
	sim := &simulator.Result{
		Records: []simulator.TradeRecord{{Close: 100, PortfolioValue: 100}},
	}
	trades := []Trade{
		closedTrade(0.10),
		closedTrade(0.05),
		closedTrade(-0.03),
		closedTrade(0.02),
	}

	stats := CalculateStats(sim, trades)

	if stats.TotalTrades != 4 {
		t.Errorf("TotalTrades = %d, want 4", stats.TotalTrades)
	}
	if stats.WinningTrades != 3 {
		t.Errorf("WinningTrades = %d, want 3", stats.WinningTrades)
	}
	if stats.WinRate != 75 {
		t.Errorf("WinRate = %f, want 75", stats.WinRate)
	}
}

func TestCalculateStats_IgnoresOpenTrades(t *testing.T) {
	sim := &simulator.Result{
		Records: []simulator.TradeRecord{{Close: 100, PortfolioValue: 100}},
	}
	trades := []Trade{
		closedTrade(0.10),
		{EntryDate: day(3), Return: 0.05},
	}

	stats := CalculateStats(sim, trades)

	if stats.WinningTrades != 1 {
		t.Errorf("should only count closed trades, got %d", stats.WinningTrades)
	}
	if stats.WinRate != 100 {
		t.Errorf("WinRate = %f, want 100", stats.WinRate)
	}
}

func TestCalculateStats_CountsFills(t *testing.T) {
	sim := &simulator.Result{
		Records: []simulator.TradeRecord{{Close: 100, PortfolioValue: 100}},
		Fills: []simulator.Fill{
			{Side: simulator.SideSell, Gap: true},
			{Side: simulator.SideBuy},
			{Side: simulator.SideSell},
			{Side: simulator.SideBuy, Gap: true},
			{Side: simulator.SideSell},
		},
	}

	stats := CalculateStats(sim, nil)

	if stats.Buys != 2 || stats.Sells != 3 || stats.GapFills != 2 {
		t.Errorf("got buys=%d sells=%d gaps=%d, want 2/3/2", stats.Buys, stats.Sells, stats.GapFills)
	}
}

func TestCalculateMaxDrawdown(t *testing.T) {
	// Peak at 115.5, trough at 92.4, DD = 20%
	equity := []float64{100, 110, 115.5, 92.4, 101.64}
	dd := calculateMaxDrawdown(equity)

	if math.Abs(dd-0.20) > 1e-9 {
		t.Errorf("MaxDrawdown = %f, expected 0.20", dd)
	}
}

func TestCalculateMaxDrawdown_Rising(t *testing.T) {
	if dd := calculateMaxDrawdown([]float64{100, 101, 102}); dd != 0 {
		t.Errorf("MaxDrawdown = %f, want 0", dd)
	}
}

func TestCalculateSharpeRatio(t *testing.T) {
	if s := calculateSharpeRatio([]float64{0.01}); s != 0 {
		t.Errorf("expected 0 for a single return, got %f", s)
	}
	if s := calculateSharpeRatio([]float64{0.01, 0.01, 0.01}); s != 0 {
		t.Errorf("expected 0 for zero volatility, got %f", s)
	}
	if s := calculateSharpeRatio([]float64{0.01, 0.02, -0.005, 0.015}); s <= 0 {
		t.Errorf("expected positive Sharpe for positive mean, got %f", s)
	}
}

func TestBuildTrades(t *testing.T) {
	records := []simulator.TradeRecord{
		{Date: day(2), Close: 100},
		{Date: day(3), Close: 105},
		{Date: day(4), Close: 110},
		{Date: day(5), Close: 108},
		{Date: day(8), Close: 115},
		{Date: day(9), Close: 120},
	}
	fills := []simulator.Fill{
		{Date: day(4), Side: simulator.SideSell, Price: 110},
		{Date: day(5), Side: simulator.SideBuy, Price: 108},
		{Date: day(9), Side: simulator.SideSell, Price: 120},
	}

	trades := buildTrades(records, fills)

	if len(trades) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(trades))
	}

	// Implicit entry at the first close, out at 110
	if trades[0].EntryPrice != 100 || trades[0].ExitPrice != 110 {
		t.Errorf("Trade 1 = %v -> %v, want 100 -> 110", trades[0].EntryPrice, trades[0].ExitPrice)
	}
	if trades[0].Return != 0.1 {
		t.Errorf("Trade 1 Return = %v, want 0.1", trades[0].Return)
	}
	if !trades[0].IsClosed() || !trades[0].ExitDate.Equal(day(4)) {
		t.Error("Trade 1 should be closed on day 4")
	}

	if trades[1].EntryPrice != 108 || trades[1].ExitPrice != 120 {
		t.Errorf("Trade 2 = %v -> %v, want 108 -> 120", trades[1].EntryPrice, trades[1].ExitPrice)
	}
	if !trades[1].IsClosed() {
		t.Error("Trade 2 should be closed")
	}
}

func TestBuildTrades_OpenPosition(t *testing.T) {
	records := []simulator.TradeRecord{
		{Date: day(2), Close: 100},
		{Date: day(3), Close: 105},
		{Date: day(4), Close: 110},
	}

	trades := buildTrades(records, nil)

	if len(trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(trades))
	}
	if trades[0].ExitPrice != 110 {
		t.Errorf("ExitPrice = %v, want 110 (last close)", trades[0].ExitPrice)
	}
	if trades[0].IsClosed() {
		t.Error("Trade should be open")
	}
}

func TestBuildTrades_NoRecords(t *testing.T) {
	if trades := buildTrades(nil, nil); len(trades) != 0 {
		t.Errorf("Expected 0 trades, got %d", len(trades))
	}
}
