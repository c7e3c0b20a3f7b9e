package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/trailsim/internal/api/response"
	"github.com/newthinker/trailsim/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCollector struct {
	known map[string]bool
	err   error
}

func (s *stubCollector) Name() string { return "stub" }

func (s *stubCollector) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	return nil, nil
}

func (s *stubCollector) Validate(ctx context.Context, symbol string) error {
	if s.err != nil {
		return s.err
	}
	if !s.known[symbol] {
		return core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("unknown %s", symbol))
	}
	return nil
}

func validate(h *SymbolsHandler, symbol string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/symbols/{symbol}/validate", h.Validate)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/symbols/"+symbol+"/validate", nil))
	return w
}

func TestSymbolsHandler_Validate(t *testing.T) {
	h := NewSymbolsHandler(&stubCollector{known: map[string]bool{"SPY": true}})

	tests := []struct {
		symbol string
		valid  bool
	}{
		{"SPY", true},
		{"NOPE", false},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			w := validate(h, tt.symbol)
			require.Equal(t, http.StatusOK, w.Code)

			var resp response.SuccessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			data := resp.Data.(map[string]any)
			assert.Equal(t, tt.symbol, data["symbol"])
			assert.Equal(t, tt.valid, data["valid"])
			assert.Equal(t, "stub", data["provider"])
		})
	}
}

func TestSymbolsHandler_Validate_ProviderDown(t *testing.T) {
	h := NewSymbolsHandler(&stubCollector{err: core.WrapError(core.ErrCollectorFailed, nil)})

	w := validate(h, "SPY")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
