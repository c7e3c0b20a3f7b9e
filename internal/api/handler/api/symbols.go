package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/trailsim/internal/api/response"
	"github.com/newthinker/trailsim/internal/collector"
	"github.com/newthinker/trailsim/internal/core"
)

const validateTimeout = 15 * time.Second

// SymbolsHandler checks tickers against the configured market data provider
type SymbolsHandler struct {
	collector collector.Collector
}

// NewSymbolsHandler creates a new symbols handler
func NewSymbolsHandler(c collector.Collector) *SymbolsHandler {
	return &SymbolsHandler{collector: c}
}

// Validate handles GET /api/v1/symbols/{symbol}/validate
func (h *SymbolsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	ctx, cancel := context.WithTimeout(r.Context(), validateTimeout)
	defer cancel()

	err := h.collector.Validate(ctx, symbol)
	switch {
	case err == nil:
		response.JSON(w, http.StatusOK, map[string]any{
			"symbol":   symbol,
			"valid":    true,
			"provider": h.collector.Name(),
		})
	case errors.Is(err, core.ErrSymbolNotFound):
		response.JSON(w, http.StatusOK, map[string]any{
			"symbol":   symbol,
			"valid":    false,
			"provider": h.collector.Name(),
		})
	default:
		response.Fail(w, err)
	}
}
