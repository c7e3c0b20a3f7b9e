package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/trailsim/internal/api/job"
	"github.com/newthinker/trailsim/internal/api/response"
	"github.com/newthinker/trailsim/internal/backtest"
	"github.com/newthinker/trailsim/internal/core"
	"github.com/newthinker/trailsim/internal/export"
	"github.com/newthinker/trailsim/internal/notifier"
	"github.com/newthinker/trailsim/internal/simulator"
	"go.uber.org/zap"
)

const (
	simulationTimeout = 5 * time.Minute
	jobType           = "simulation"
)

// SimulationRequest is the request body for starting a simulation.
// Omitted thresholds and capital fall back to the configured defaults.
type SimulationRequest struct {
	Symbol         string   `json:"symbol"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	BuyPct         *float64 `json:"buy_pct,omitempty"`
	SellPct        *float64 `json:"sell_pct,omitempty"`
	InitialCapital *float64 `json:"initial_capital,omitempty"`
	Formats        []string `json:"formats,omitempty"` // Artifacts to store once the run completes
}

// Runner executes a simulation request. *backtest.Backtester satisfies it.
type Runner interface {
	Run(ctx context.Context, req backtest.Request) (*backtest.Result, error)
}

// JobGauge tracks active jobs. *metrics.Registry satisfies it.
type JobGauge interface {
	SetJobsActive(count int)
}

// Announcer broadcasts finished runs. *notifier.Registry satisfies it.
type Announcer interface {
	NotifyAll(ctx context.Context, e notifier.Event) map[string]error
}

// Simulation is the payload of a completed job.
type Simulation struct {
	Result    *backtest.Result  `json:"result"`
	Artifacts []export.Artifact `json:"artifacts,omitempty"`
}

// SimulationSummary is a completed run without its per-bar records.
type SimulationSummary struct {
	ID         string            `json:"id"`
	Symbol     string            `json:"symbol"`
	Params     simulator.Params  `json:"params"`
	StartDate  string            `json:"start_date"`
	EndDate    string            `json:"end_date"`
	Bars       int               `json:"bars"`
	FinalValue float64           `json:"final_value"`
	ReturnPct  float64           `json:"return_pct"`
	Message    string            `json:"message"`
	Events     []string          `json:"events"`
	Stats      backtest.Stats    `json:"stats"`
	Artifacts  []export.Artifact `json:"artifacts,omitempty"`
}

// SimulationsHandler handles simulation API requests.
type SimulationsHandler struct {
	jobs     *job.Store
	runner   Runner
	exporter *export.Exporter
	defaults simulator.Params
	gauge    JobGauge
	notify   Announcer
	logger   *zap.Logger
}

// NewSimulationsHandler creates a new simulations handler. exporter and gauge may be nil.
func NewSimulationsHandler(
	jobs *job.Store,
	runner Runner,
	exporter *export.Exporter,
	defaults simulator.Params,
	gauge JobGauge,
	logger *zap.Logger,
) *SimulationsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulationsHandler{
		jobs:     jobs,
		runner:   runner,
		exporter: exporter,
		defaults: defaults,
		gauge:    gauge,
		logger:   logger.Named("simulations"),
	}
}

// WithAnnouncer announces every finished job through a
func (h *SimulationsHandler) WithAnnouncer(a Announcer) *SimulationsHandler {
	h.notify = a
	return h
}

// toRequest parses and validates the body into a backtest request
func (h *SimulationsHandler) toRequest(body SimulationRequest) (backtest.Request, []export.Format, error) {
	start, err := time.Parse(core.DateLayout, body.Start)
	if err != nil {
		return backtest.Request{}, nil, core.WrapError(core.ErrInvalidParameters, fmt.Errorf("start: %w", err))
	}
	end, err := time.Parse(core.DateLayout, body.End)
	if err != nil {
		return backtest.Request{}, nil, core.WrapError(core.ErrInvalidParameters, fmt.Errorf("end: %w", err))
	}

	params := h.defaults
	if body.BuyPct != nil {
		params.BuyPct = *body.BuyPct
	}
	if body.SellPct != nil {
		params.SellPct = *body.SellPct
	}
	if body.InitialCapital != nil {
		params.InitialCapital = *body.InitialCapital
	}

	formats, err := export.ParseFormats(body.Formats)
	if err != nil {
		return backtest.Request{}, nil, err
	}

	req := backtest.Request{Symbol: body.Symbol, Start: start, End: end, Params: params}
	if err := req.Validate(); err != nil {
		return backtest.Request{}, nil, err
	}
	return req, formats, nil
}

// Create starts a new simulation job.
func (h *SimulationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidParameters, err))
		return
	}

	req, formats, err := h.toRequest(body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	j := h.jobs.Create(jobType)
	h.updateGauge()

	go h.run(j.ID, req, formats)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// run executes the simulation and updates job status.
func (h *SimulationsHandler) run(jobID string, req backtest.Request, formats []export.Format) {
	defer h.updateGauge()

	h.update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), simulationTimeout)
	defer cancel()

	result, err := h.runner.Run(ctx, req)
	if err != nil {
		h.fail(ctx, jobID, req.Symbol, err)
		return
	}

	sim := &Simulation{Result: result}
	if h.exporter != nil && len(formats) > 0 {
		sim.Artifacts, err = h.exporter.Export(ctx, result, formats)
		if err != nil {
			h.fail(ctx, jobID, req.Symbol, err)
			return
		}
	}

	h.update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Result = sim
	})
	h.announce(ctx, notifier.Completed(jobID, result))
}

func (h *SimulationsHandler) announce(ctx context.Context, e notifier.Event) {
	if h.notify == nil {
		return
	}
	for name, err := range h.notify.NotifyAll(ctx, e) {
		h.logger.Warn("notification failed",
			zap.String("job_id", e.JobID),
			zap.String("notifier", name),
			zap.Error(err),
		)
	}
}

func (h *SimulationsHandler) fail(ctx context.Context, jobID, symbol string, err error) {
	h.logger.Warn("simulation failed", zap.String("job_id", jobID), zap.Error(err))

	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		coreErr = &core.Error{Code: "INTERNAL_ERROR", Message: "simulation failed", Cause: err}
	}
	h.update(jobID, func(j *job.Job) {
		j.Status = job.StatusFailed
		j.Error = coreErr
	})
	h.announce(ctx, notifier.Failed(jobID, symbol, err, time.Now()))
}

// update applies fn to the job, logging when the store no longer holds it
func (h *SimulationsHandler) update(jobID string, fn func(*job.Job)) {
	if err := h.jobs.Update(jobID, fn); err != nil {
		h.logger.Warn("job update dropped", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (h *SimulationsHandler) updateGauge() {
	if h.gauge != nil {
		h.gauge.SetJobsActive(h.jobs.Active())
	}
}

// completed fetches a job and its simulation, writing the error response when either
// is unavailable
func (h *SimulationsHandler) completed(w http.ResponseWriter, id string) (*Simulation, bool) {
	j, err := h.jobs.Get(id)
	if err != nil {
		response.Fail(w, err)
		return nil, false
	}
	sim, ok := j.Result.(*Simulation)
	if j.Status != job.StatusComplete || !ok {
		response.Error(w, http.StatusConflict,
			core.WrapError(core.ErrNoData, fmt.Errorf("job %s is %s", id, j.Status)))
		return nil, false
	}
	return sim, true
}

// artifact loads a stored artifact when the run exported one, rendering it otherwise
func (h *SimulationsHandler) artifact(ctx context.Context, sim *Simulation, f export.Format) ([]byte, error) {
	if h.exporter != nil {
		for _, a := range sim.Artifacts {
			if a.Format == f {
				return h.exporter.Load(ctx, sim.Result, f)
			}
		}
	}
	return export.Render(sim.Result, f)
}

func summarize(sim *Simulation) SimulationSummary {
	res := sim.Result
	return SimulationSummary{
		ID:         res.ID,
		Symbol:     res.Symbol,
		Params:     res.Params,
		StartDate:  res.StartDate.Format(core.DateLayout),
		EndDate:    res.EndDate.Format(core.DateLayout),
		Bars:       len(res.Records),
		FinalValue: res.FinalValue,
		ReturnPct:  res.ReturnPct,
		Message:    export.SummaryLine(res),
		Events:     res.Events,
		Stats:      res.Stats,
		Artifacts:  sim.Artifacts,
	}
}

func jobView(j *job.Job) map[string]any {
	resp := map[string]any{
		"job_id":     j.ID,
		"status":     j.Status,
		"created_at": j.CreatedAt,
	}
	if sim, ok := j.Result.(*Simulation); ok && j.Status == job.StatusComplete {
		resp["summary"] = summarize(sim)
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		detail := response.ErrorDetail{
			Code:    j.Error.Code,
			Message: j.Error.Message,
		}
		if j.Error.Cause != nil {
			detail.Cause = j.Error.Cause.Error()
		}
		resp["error"] = detail
	}
	return resp
}

// List handles GET /api/v1/simulations
func (h *SimulationsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.List()
	views := make([]map[string]any, 0, len(jobs))
	for i := range jobs {
		views = append(views, jobView(&jobs[i]))
	}
	response.JSON(w, http.StatusOK, map[string]any{"simulations": views})
}

// Get handles GET /api/v1/simulations/{id}
func (h *SimulationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, jobView(j))
}

// Records handles GET /api/v1/simulations/{id}/records
func (h *SimulationsHandler) Records(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.completed(w, r.PathValue("id"))
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"symbol":  sim.Result.Symbol,
		"records": sim.Result.Records,
	})
}

// Export handles GET /api/v1/simulations/{id}/export/{format}
func (h *SimulationsHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.PathValue("format"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	sim, ok := h.completed(w, r.PathValue("id"))
	if !ok {
		return
	}

	data, err := h.artifact(r.Context(), sim, format)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, core.WrapError(core.ErrExportFailed, err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, format.FileName(sim.Result.Symbol)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
