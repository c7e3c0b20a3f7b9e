package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	simulationsTotal   *prometheus.CounterVec
	simulationDuration prometheus.Histogram
	fillsTotal         *prometheus.CounterVec
	barsProcessed      prometheus.Counter
	collectorRequests  *prometheus.CounterVec
	jobsActive         prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.simulationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailsim_simulations_total",
			Help: "Total number of simulation runs",
		},
		[]string{"status"},
	)
	r.simulationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trailsim_simulation_duration_seconds",
			Help:    "Simulation run duration in seconds, including data fetch",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
	r.fillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailsim_fills_total",
			Help: "Total number of simulated fills",
		},
		[]string{"side", "kind"},
	)
	r.barsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trailsim_bars_processed_total",
			Help: "Total number of daily bars folded through the simulator",
		},
	)
	r.collectorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailsim_collector_requests_total",
			Help: "Total number of market data requests",
		},
		[]string{"collector", "status"},
	)
	r.jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trailsim_jobs_active",
			Help: "Number of simulation jobs pending or running",
		},
	)

	reg.MustRegister(r.simulationsTotal)
	reg.MustRegister(r.simulationDuration)
	reg.MustRegister(r.fillsTotal)
	reg.MustRegister(r.barsProcessed)
	reg.MustRegister(r.collectorRequests)
	reg.MustRegister(r.jobsActive)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordSimulation records a finished simulation run.
func (r *Registry) RecordSimulation(status string, duration float64) {
	r.simulationsTotal.WithLabelValues(status).Inc()
	r.simulationDuration.Observe(duration)
}

// RecordFill records one fill; kind is "gap" or "range".
func (r *Registry) RecordFill(side, kind string) {
	r.fillsTotal.WithLabelValues(side, kind).Inc()
}

// AddBarsProcessed adds n bars to the processed counter.
func (r *Registry) AddBarsProcessed(n int) {
	r.barsProcessed.Add(float64(n))
}

// RecordCollectorRequest records a market data request outcome.
func (r *Registry) RecordCollectorRequest(collector, status string) {
	r.collectorRequests.WithLabelValues(collector, status).Inc()
}

// SetJobsActive sets the number of active jobs.
func (r *Registry) SetJobsActive(count int) {
	r.jobsActive.Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
