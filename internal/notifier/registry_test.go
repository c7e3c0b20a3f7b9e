package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/trailsim/internal/backtest"
	"github.com/newthinker/trailsim/internal/core"
	"github.com/newthinker/trailsim/internal/simulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	name     string
	err      error
	received []Event
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Notify(ctx context.Context, e Event) error {
	m.received = append(m.received, e)
	return m.err
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&mockNotifier{name: "a"}))
	assert.Error(t, r.Register(&mockNotifier{name: "a"}), "duplicate names are rejected")
	assert.Equal(t, 1, r.Len())

	n, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", n.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestRegistry_NotifyAll(t *testing.T) {
	ok := &mockNotifier{name: "ok"}
	broken := &mockNotifier{name: "broken", err: errors.New("down")}

	r := NewRegistry()
	require.NoError(t, r.Register(ok))
	require.NoError(t, r.Register(broken))

	errs := r.NotifyAll(context.Background(), Event{Symbol: "SPY"})

	assert.Len(t, ok.received, 1)
	assert.Len(t, broken.received, 1)
	require.Len(t, errs, 1)
	assert.EqualError(t, errs["broken"], "down")
}

func TestCompleted(t *testing.T) {
	res := &backtest.Result{
		ID:          "run-1",
		Symbol:      "SPY",
		Params:      simulator.Params{BuyPct: 0.5, SellPct: 0.5, InitialCapital: 100},
		StartDate:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		FinalValue:  101.23,
		ReturnPct:   1.23,
		CompletedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}

	e := Completed("job-1", res)
	assert.Equal(t, "job-1", e.JobID)
	assert.Equal(t, "run-1", e.RunID)
	assert.Equal(t, StatusComplete, e.Status)
	assert.Equal(t,
		"Simulation complete. Strategy (0.5, -0.5) % for SPY between 2024-01-02 and 2024-01-04 returned 1.23%",
		e.Message)
	assert.Equal(t, res.CompletedAt, e.FinishedAt)
}

func TestFailed(t *testing.T) {
	at := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	e := Failed("job-1", "SPY", core.WrapError(core.ErrNoData, nil), at)
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, "NO_DATA", e.ErrorCode)

	e = Failed("job-2", "SPY", errors.New("boom"), at)
	assert.Empty(t, e.ErrorCode)
	assert.Equal(t, "boom", e.Message)
}
