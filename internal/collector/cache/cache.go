// Package cache decorates a collector with a buntdb-backed bar cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/newthinker/trailsim/internal/collector"
	"github.com/newthinker/trailsim/internal/core"
	"github.com/tidwall/buntdb"
	"go.uber.org/zap"
)

// RecentTTL bounds how long a range ending at or after today stays cached, since the
// provider may still revise the latest sessions.
const RecentTTL = time.Hour

// Collector serves previously fetched ranges from buntdb and delegates misses
type Collector struct {
	inner  collector.Collector
	db     *buntdb.DB
	logger *zap.Logger
	now    func() time.Time
}

// New opens the cache at path (":memory:" for a process-local cache) in front of inner
func New(inner collector.Collector, path string, logger *zap.Logger) (*Collector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}
	return &Collector{
		inner:  inner,
		db:     db,
		logger: logger.Named("cache"),
		now:    time.Now,
	}, nil
}

func (c *Collector) Name() string {
	return c.inner.Name()
}

func (c *Collector) Validate(ctx context.Context, symbol string) error {
	return c.inner.Validate(ctx, symbol)
}

// Keys sort by date within a provider and symbol, so a range scan yields bars in order.
func barKey(provider, symbol string, day time.Time) string {
	return fmt.Sprintf("bar:%s:%s:%s", provider, symbol, day.Format(core.DateLayout))
}

func rangeKey(provider, symbol string, start, end time.Time) string {
	return fmt.Sprintf("range:%s:%s:%s:%s", provider, symbol, start.Format(core.DateLayout), end.Format(core.DateLayout))
}

// FetchHistory returns bars in [start, end), from the cache when this exact range was
// fetched before
func (c *Collector) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	start, end = core.TruncateDay(start), core.TruncateDay(end)
	rk := rangeKey(c.inner.Name(), symbol, start, end)

	bars, hit, err := c.lookup(rk, symbol, start, end)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("symbol", symbol), zap.Error(err))
	}
	if hit {
		c.logger.Debug("cache hit", zap.String("symbol", symbol), zap.Int("bars", len(bars)))
		return bars, nil
	}

	bars, err = c.inner.FetchHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if err := c.store(rk, symbol, bars, end); err != nil {
		c.logger.Warn("cache write failed", zap.String("symbol", symbol), zap.Error(err))
	}
	return bars, nil
}

// lookup reports a hit only when the range marker exists and every bar it counted is
// still stored.
func (c *Collector) lookup(rk, symbol string, start, end time.Time) ([]core.Bar, bool, error) {
	var bars []core.Bar
	hit := false

	err := c.db.View(func(tx *buntdb.Tx) error {
		marker, err := tx.Get(rk)
		if err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return nil
			}
			return err
		}
		want, err := strconv.Atoi(marker)
		if err != nil {
			return fmt.Errorf("corrupt range marker %s: %w", rk, err)
		}

		var decodeErr error
		err = tx.AscendRange("", barKey(c.inner.Name(), symbol, start), barKey(c.inner.Name(), symbol, end), func(_, value string) bool {
			var b core.Bar
			if decodeErr = json.Unmarshal([]byte(value), &b); decodeErr != nil {
				return false
			}
			bars = append(bars, b)
			return true
		})
		if err != nil {
			return err
		}
		if decodeErr != nil {
			return decodeErr
		}
		hit = len(bars) == want
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !hit {
		return nil, false, nil
	}
	return bars, true, nil
}

// store writes the bars and the range marker. Ranges reaching today expire after
// RecentTTL, but a bar already stored without expiry stays that way.
func (c *Collector) store(rk, symbol string, bars []core.Bar, end time.Time) error {
	var opts *buntdb.SetOptions
	if !end.Before(core.TruncateDay(c.now())) {
		opts = &buntdb.SetOptions{Expires: true, TTL: RecentTTL}
	}

	return c.db.Update(func(tx *buntdb.Tx) error {
		for _, b := range bars {
			content, err := json.Marshal(b)
			if err != nil {
				return fmt.Errorf("failed to marshal bar: %w", err)
			}
			key := barKey(c.inner.Name(), symbol, b.Time)
			barOpts := opts
			if ttl, err := tx.TTL(key); err == nil && ttl < 0 {
				barOpts = nil
			}
			if _, _, err := tx.Set(key, string(content), barOpts); err != nil {
				return fmt.Errorf("failed to store bar: %w", err)
			}
		}
		_, _, err := tx.Set(rk, strconv.Itoa(len(bars)), opts)
		return err
	})
}

// Close closes the underlying database
func (c *Collector) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
