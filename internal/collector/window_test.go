package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/trailsim/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dailyBars(days ...string) []core.Bar {
	bars := make([]core.Bar, len(days))
	for i, d := range days {
		bars[i] = core.Bar{Symbol: "AAPL", Time: day(d), Open: 100, High: 101, Low: 99, Close: 100}
	}
	return bars
}

func TestFetchInclusive_EndPresent(t *testing.T) {
	mock := &mockCollector{name: "mock", bars: dailyBars("2024-01-02", "2024-01-03", "2024-01-05")}

	bars, err := FetchInclusive(context.Background(), mock, "AAPL", day("2024-01-02"), day("2024-01-05"))
	require.NoError(t, err)

	assert.Len(t, bars, 3)
	assert.Len(t, mock.queries, 1)
}

func TestFetchInclusive_WidensByOneDay(t *testing.T) {
	mock := &mockCollector{
		name: "mock",
		byEnd: map[string][]core.Bar{
			"2024-01-05": dailyBars("2024-01-02", "2024-01-03", "2024-01-04"),
			"2024-01-06": dailyBars("2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"),
		},
	}

	bars, err := FetchInclusive(context.Background(), mock, "AAPL", day("2024-01-02"), day("2024-01-05"))
	require.NoError(t, err)

	require.Len(t, mock.queries, 2)
	assert.Equal(t, day("2024-01-06"), mock.queries[1])
	require.Len(t, bars, 4)
	assert.Equal(t, "2024-01-05", bars[3].Day())
}

func TestFetchInclusive_EndIsHoliday(t *testing.T) {
	// No bar exists for the end date even after widening; the wider result is still used.
	mock := &mockCollector{name: "mock", bars: dailyBars("2024-12-23", "2024-12-24")}

	bars, err := FetchInclusive(context.Background(), mock, "AAPL", day("2024-12-23"), day("2024-12-25"))
	require.NoError(t, err)

	assert.Len(t, mock.queries, 2)
	assert.Len(t, bars, 2)
}

func TestFetchInclusive_Empty(t *testing.T) {
	mock := &mockCollector{name: "mock"}

	_, err := FetchInclusive(context.Background(), mock, "AAPL", day("2024-01-02"), day("2024-01-05"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrEmptySeries))
}

func TestFetchInclusive_ProviderError(t *testing.T) {
	mock := &mockCollector{name: "mock", err: core.ErrCollectorFailed}

	_, err := FetchInclusive(context.Background(), mock, "AAPL", day("2024-01-02"), day("2024-01-05"))
	assert.True(t, errors.Is(err, core.ErrCollectorFailed))
	assert.Len(t, mock.queries, 1)
}
