package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/trailsim/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Webhook)(nil)
}

func TestWebhook_RequiresURL(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}

func TestWebhook_Notify(t *testing.T) {
	var payload struct {
		Type  string         `json:"type"`
		Event notifier.Event `json:"event"`
	}
	var gotHeader, gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Token")
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	w, err := New(server.URL, map[string]string{"X-Token": "secret"})
	require.NoError(t, err)
	assert.Equal(t, "webhook", w.Name())

	e := notifier.Event{
		JobID:      "job-1",
		Symbol:     "SPY",
		Status:     notifier.StatusComplete,
		Message:    "done",
		ReturnPct:  1.5,
		FinishedAt: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, w.Notify(context.Background(), e))

	assert.Equal(t, "secret", gotHeader)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "simulation", payload.Type)
	assert.Equal(t, e, payload.Event)
}

func TestWebhook_Notify_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w, err := New(server.URL, nil)
	require.NoError(t, err)

	err = w.Notify(context.Background(), notifier.Event{Symbol: "SPY"})
	assert.ErrorContains(t, err, "server returned 500")
}
