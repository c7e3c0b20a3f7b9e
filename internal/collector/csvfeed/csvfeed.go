// Package csvfeed serves daily bars from one CSV file per symbol.
//
// Files are named <SYMBOL>.csv and carry a header row naming at least the columns
// date, open, high, low and close (any order, case-insensitive). An optional volume
// column is read when present. Dates use the YYYY-MM-DD layout.
package csvfeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/trailsim/internal/core"
	"github.com/samber/lo"
)

var requiredColumns = []string{"date", "open", "high", "low", "close"}

// Feed implements collector.Collector over a directory of CSV files
type Feed struct {
	dir string
}

// New creates a feed reading from dir
func New(dir string) (*Feed, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening csv dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("csv dir %s is not a directory", dir)
	}
	return &Feed{dir: dir}, nil
}

func (f *Feed) Name() string {
	return "csv"
}

func (f *Feed) path(symbol string) (string, error) {
	if symbol == "" || strings.ContainsAny(symbol, `/\`) || strings.Contains(symbol, "..") {
		return "", core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("invalid symbol %q", symbol))
	}
	return filepath.Join(f.dir, symbol+".csv"), nil
}

// Validate checks a file exists for symbol
func (f *Feed) Validate(ctx context.Context, symbol string) error {
	p, err := f.path(symbol)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no csv file for %s", symbol))
		}
		return core.WrapError(core.ErrCollectorFailed, err)
	}
	return nil
}

// FetchHistory returns the file's bars dated in [start, end), sorted by date
func (f *Feed) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if err := f.Validate(ctx, symbol); err != nil {
		return nil, err
	}
	p, _ := f.path(symbol)

	file, err := os.Open(p)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}
	defer file.Close()

	bars, err := ReadBars(file, symbol)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("%s: %w", p, err))
	}

	start, end = core.TruncateDay(start), core.TruncateDay(end)
	return lo.Filter(bars, func(b core.Bar, _ int) bool {
		return !b.Time.Before(start) && b.Time.Before(end)
	}), nil
}

// ReadBars parses a headered OHLC CSV stream
func ReadBars(r io.Reader, symbol string) ([]core.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if missing := lo.Filter(requiredColumns, func(c string, _ int) bool {
		_, ok := cols[c]
		return !ok
	}); len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	volumeIdx, hasVolume := cols["volume"]

	var bars []core.Bar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := time.Parse(core.DateLayout, strings.TrimSpace(record[cols["date"]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		b := core.Bar{Symbol: symbol, Time: date}
		fields := []struct {
			col string
			dst *float64
		}{
			{"open", &b.Open},
			{"high", &b.High},
			{"low", &b.Low},
			{"close", &b.Close},
		}
		for _, fld := range fields {
			if *fld.dst, err = strconv.ParseFloat(strings.TrimSpace(record[cols[fld.col]]), 64); err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, fld.col, err)
			}
		}

		if hasVolume {
			if v := strings.TrimSpace(record[volumeIdx]); v != "" {
				if b.Volume, err = strconv.ParseInt(v, 10, 64); err != nil {
					return nil, fmt.Errorf("line %d, column volume: %w", line, err)
				}
			}
		}

		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
	return bars, nil
}
