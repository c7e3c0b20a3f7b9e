// Package eastmoney reads daily A-share klines from the Eastmoney quote service.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/trailsim/internal/collector"
	"github.com/newthinker/trailsim/internal/core"
	"go.uber.org/zap"
)

const (
	quoteURL   = "https://push2.eastmoney.com/api/qt/stock/get"
	historyURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

	klineDaily     = "101"
	adjustForward  = "1"
	eastmoneyDay   = "20060102"
	shanghaiMarket = "1"
	shenzhenMarket = "0"
)

// Eastmoney implements the Eastmoney collector for A-shares
type Eastmoney struct {
	client     *http.Client
	quoteURL   string
	historyURL string
	logger     *zap.Logger
}

// New creates a new Eastmoney collector. cfg.BaseURL, when set, replaces both
// service hosts.
func New(cfg collector.Config, logger *zap.Logger) *Eastmoney {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = collector.DefaultConfig().Timeout
	}

	e := &Eastmoney{
		client:     &http.Client{Timeout: cfg.Timeout},
		quoteURL:   quoteURL,
		historyURL: historyURL,
		logger:     logger.Named("eastmoney"),
	}
	if cfg.BaseURL != "" {
		base := strings.TrimSuffix(cfg.BaseURL, "/")
		e.quoteURL = base + "/api/qt/stock/get"
		e.historyURL = base + "/api/qt/stock/kline/get"
	}
	return e
}

func (e *Eastmoney) Name() string {
	return "eastmoney"
}

// secID converts 600519.SH to the service's "1.600519" form. Shanghai = 1, Shenzhen = 0.
func secID(symbol string) (string, error) {
	code, exchange, ok := strings.Cut(strings.ToUpper(symbol), ".")
	if !ok || len(code) != 6 {
		return "", core.WrapError(core.ErrSymbolNotFound,
			fmt.Errorf("expected a six-digit code with .SH or .SZ, got %q", symbol))
	}
	if _, err := strconv.Atoi(code); err != nil {
		return "", core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("invalid code in %q", symbol))
	}

	switch exchange {
	case "SH", "SS":
		return shanghaiMarket + "." + code, nil
	case "SZ":
		return shenzhenMarket + "." + code, nil
	default:
		return "", core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("unsupported exchange in %q", symbol))
	}
}

// Validate checks the service knows the security
func (e *Eastmoney) Validate(ctx context.Context, symbol string) error {
	id, err := secID(symbol)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("secid", id)
	q.Set("fields", "f57,f58")

	var result quoteResponse
	if err := e.get(ctx, e.quoteURL, q, &result); err != nil {
		return err
	}
	if result.Data == nil {
		return core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no data for symbol: %s", symbol))
	}
	return nil
}

// FetchHistory fetches forward-adjusted daily bars in [start, end)
func (e *Eastmoney) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	id, err := secID(symbol)
	if err != nil {
		return nil, err
	}

	// The service's end date is inclusive.
	q := url.Values{}
	q.Set("secid", id)
	q.Set("klt", klineDaily)
	q.Set("fqt", adjustForward)
	q.Set("beg", start.Format(eastmoneyDay))
	q.Set("end", end.AddDate(0, 0, -1).Format(eastmoneyDay))
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56")

	var result historyResponse
	if err := e.get(ctx, e.historyURL, q, &result); err != nil {
		return nil, err
	}
	if result.Data == nil {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no history for symbol: %s", symbol))
	}

	start, end = core.TruncateDay(start), core.TruncateDay(end)
	bars := make([]core.Bar, 0, len(result.Data.Klines))
	for _, line := range result.Data.Klines {
		b, err := parseKline(symbol, line)
		if err != nil {
			return nil, core.WrapError(core.ErrCollectorFailed, err)
		}
		if !b.Time.Before(start) && b.Time.Before(end) {
			bars = append(bars, b)
		}
	}

	e.logger.Debug("fetched history",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
	)
	return bars, nil
}

func (e *Eastmoney) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return core.WrapError(core.ErrCollectorTimeout, ctx.Err())
		}
		return core.WrapError(core.ErrCollectorFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.WrapError(core.ErrCollectorFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// parseKline reads "date,open,close,high,low,volume"
func parseKline(symbol, line string) (core.Bar, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 6 {
		return core.Bar{}, fmt.Errorf("kline %q: expected 6 fields, got %d", line, len(fields))
	}

	t, err := time.Parse(core.DateLayout, fields[0])
	if err != nil {
		return core.Bar{}, fmt.Errorf("kline %q: %w", line, err)
	}

	var prices [4]float64
	for i := range prices {
		prices[i], err = strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("kline %q: %w", line, err)
		}
	}
	volume, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return core.Bar{}, fmt.Errorf("kline %q: %w", line, err)
	}

	return core.Bar{
		Symbol: symbol,
		Time:   t,
		Open:   prices[0],
		Close:  prices[1],
		High:   prices[2],
		Low:    prices[3],
		Volume: volume,
	}, nil
}

// Response types
type quoteResponse struct {
	Data *struct {
		Code string `json:"f57"`
		Name string `json:"f58"`
	} `json:"data"`
}

type historyResponse struct {
	Data *historyData `json:"data"`
}

type historyData struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Klines []string `json:"klines"`
}
