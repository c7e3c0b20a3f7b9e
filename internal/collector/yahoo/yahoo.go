package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/newthinker/trailsim/internal/collector"
	"github.com/newthinker/trailsim/internal/core"
	"go.uber.org/zap"
)

const (
	baseURL   = "https://query1.finance.yahoo.com/v8/finance/chart"
	userAgent = "Mozilla/5.0 (compatible; trailsim/1.0)"
)

// validSymbol matches tickers like AAPL, BRK-B, 0700.HK, ^GSPC, EURUSD=X
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9\-=]{1,12}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// retryableError marks failures worth another attempt (network, 429, 5xx)
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Yahoo implements the Yahoo Finance chart collector
type Yahoo struct {
	client  *http.Client
	config  collector.Config
	baseURL string
	logger  *zap.Logger
}

// New creates a new Yahoo collector
func New(cfg collector.Config, logger *zap.Logger) *Yahoo {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := collector.DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = def.BackoffMin
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	u := baseURL
	if cfg.BaseURL != "" {
		u = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &Yahoo{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:  cfg,
		baseURL: u,
		logger:  logger.Named("yahoo"),
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format
func (y *Yahoo) toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// Validate checks the symbol has recent daily data
func (y *Yahoo) Validate(ctx context.Context, symbol string) error {
	if err := validateSymbol(symbol); err != nil {
		return core.WrapError(core.ErrSymbolNotFound, err)
	}

	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("range", "5d")

	r, err := y.chart(ctx, symbol, q)
	if err != nil {
		return err
	}
	if len(r.Timestamp) == 0 {
		return core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no recent data for %s", symbol))
	}
	return nil
}

// FetchHistory fetches daily bars in [start, end)
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrSymbolNotFound, err)
	}

	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("events", "history")

	r, err := y.chart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}

	bars := r.toBars(symbol)

	// Yahoo may append the live session beyond period2.
	data := bars[:0]
	for _, b := range bars {
		if !b.Time.Before(start) && b.Time.Before(end) {
			data = append(data, b)
		}
	}

	y.logger.Debug("fetched history",
		zap.String("symbol", symbol),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("bars", len(data)),
	)
	return data, nil
}

// chart requests the chart endpoint, retrying transient failures with backoff
func (y *Yahoo) chart(ctx context.Context, symbol string, q url.Values) (*chartResult, error) {
	u := fmt.Sprintf("%s/%s?%s", y.baseURL, url.PathEscape(y.toYahooSymbol(symbol)), q.Encode())

	b := &backoff.Backoff{
		Min:    y.config.BackoffMin,
		Max:    y.config.BackoffMax,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; ; attempt++ {
		r, err := y.do(ctx, symbol, u)
		if err == nil {
			return r, nil
		}

		var re *retryableError
		if !errors.As(err, &re) {
			return nil, err
		}
		if attempt >= y.config.MaxRetries {
			return nil, core.WrapError(core.ErrCollectorFailed,
				fmt.Errorf("giving up after %d attempts: %w", attempt+1, re.err))
		}

		wait := b.Duration()
		y.logger.Warn("yahoo request failed, retrying",
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, core.WrapError(core.ErrCollectorTimeout, ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (y *Yahoo) do(ctx context.Context, symbol, u string) (*chartResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.WrapError(core.ErrCollectorTimeout, ctx.Err())
		}
		return nil, &retryableError{fmt.Errorf("fetching chart: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &retryableError{fmt.Errorf("unexpected status: %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("yahoo has no chart for %s", symbol))
	case resp.StatusCode != http.StatusOK:
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding response: %w", err))
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrSymbolNotFound,
			fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}

	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no data for symbol: %s", symbol))
	}

	return &result.Chart.Result[0], nil
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol               string  `json:"symbol"`
	Currency             string  `json:"currency"`
	ExchangeTimezoneName string  `json:"exchangeTimezoneName"`
	GMTOffset            int     `json:"gmtoffset"`
	RegularMarketPrice   float64 `json:"regularMarketPrice"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// toBars converts the chart columns to bars dated by the exchange-local trading day,
// skipping rows with any missing price
func (r chartResult) toBars(symbol string) []core.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	loc := time.FixedZone(r.Meta.ExchangeTimezoneName, r.Meta.GMTOffset)

	bars := make([]core.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		open, high, low, close := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		if open == nil || high == nil || low == nil || close == nil {
			continue
		}
		var volume int64
		if v := at(q.Volume, i); v != nil {
			volume = *v
		}
		bars = append(bars, core.Bar{
			Symbol: symbol,
			Time:   core.TruncateDay(time.Unix(ts, 0).In(loc)),
			Open:   *open,
			High:   *high,
			Low:    *low,
			Close:  *close,
			Volume: volume,
		})
	}
	return bars
}

func at[T any](s []*T, i int) *T {
	if i < len(s) {
		return s[i]
	}
	return nil
}
