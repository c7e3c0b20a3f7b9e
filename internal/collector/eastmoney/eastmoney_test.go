package eastmoney

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/trailsim/internal/collector"
	"github.com/newthinker/trailsim/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const klineFixture = `{"rc":0,"data":{"code":"600519","market":1,"name":"贵州茅台","klines":[
"2024-01-02,1685.00,1685.01,1696.99,1681.00,32153",
"2024-01-03,1681.11,1694.00,1695.00,1676.00,20831",
"2024-01-04,1693.00,1669.00,1693.00,1662.93,25394"]}}`

func newTestEastmoney(t *testing.T, handler http.HandlerFunc) *Eastmoney {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(collector.Config{BaseURL: srv.URL, Timeout: time.Second}, nil)
}

func TestEastmoney_ImplementsCollector(t *testing.T) {
	var _ collector.Collector = (*Eastmoney)(nil)
}

func TestEastmoney_Name(t *testing.T) {
	e := New(collector.Config{}, nil)
	if e.Name() != "eastmoney" {
		t.Errorf("expected 'eastmoney', got '%s'", e.Name())
	}
}

func TestSecID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"600519.SH", "1.600519"}, // Shanghai = 1
		{"600519.SS", "1.600519"},
		{"000001.SZ", "0.000001"}, // Shenzhen = 0
		{"000001.sz", "0.000001"},
	}
	for _, tc := range tests {
		got, err := secID(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}

	for _, bad := range []string{"AAPL", "600519", "60051.SH", "600519.HK", "ABCDEF.SZ"} {
		_, err := secID(bad)
		assert.True(t, errors.Is(err, core.ErrSymbolNotFound), bad)
	}
}

func TestEastmoney_FetchHistory(t *testing.T) {
	var gotSecID, gotBeg, gotEnd, gotKlt string
	e := newTestEastmoney(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/qt/stock/kline/get", r.URL.Path)
		gotSecID = r.URL.Query().Get("secid")
		gotBeg = r.URL.Query().Get("beg")
		gotEnd = r.URL.Query().Get("end")
		gotKlt = r.URL.Query().Get("klt")
		w.Write([]byte(klineFixture))
	})

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	bars, err := e.FetchHistory(context.Background(), "600519.SH", start, end)
	require.NoError(t, err)

	assert.Equal(t, "1.600519", gotSecID)
	assert.Equal(t, "20240102", gotBeg)
	assert.Equal(t, "20240103", gotEnd)
	assert.Equal(t, "101", gotKlt)

	// The 2024-01-04 kline lies outside [start, end).
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-01-02", bars[0].Day())
	assert.Equal(t, 1685.00, bars[0].Open)
	assert.Equal(t, 1685.01, bars[0].Close)
	assert.Equal(t, 1696.99, bars[0].High)
	assert.Equal(t, 1681.00, bars[0].Low)
	assert.Equal(t, int64(32153), bars[0].Volume)
	assert.True(t, bars[0].IsValid())
}

func TestEastmoney_FetchHistory_MalformedKline(t *testing.T) {
	e := newTestEastmoney(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"klines":["2024-01-02,abc,1,1,1,1"]}}`))
	})

	_, err := e.FetchHistory(context.Background(), "600519.SH",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	assert.True(t, errors.Is(err, core.ErrCollectorFailed))
}

func TestEastmoney_FetchHistory_ServerError(t *testing.T) {
	e := newTestEastmoney(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := e.FetchHistory(context.Background(), "600519.SH", time.Now().AddDate(0, 0, -7), time.Now())
	assert.True(t, errors.Is(err, core.ErrCollectorFailed))
}

func TestEastmoney_Validate(t *testing.T) {
	e := newTestEastmoney(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("secid") == "1.600519" {
			w.Write([]byte(`{"data":{"f57":"600519","f58":"贵州茅台"}}`))
			return
		}
		w.Write([]byte(`{"data":null}`))
	})

	assert.NoError(t, e.Validate(context.Background(), "600519.SH"))
	assert.True(t, errors.Is(e.Validate(context.Background(), "600000.SH"), core.ErrSymbolNotFound))
}
