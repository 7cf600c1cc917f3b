package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	inferenceReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "editorialbrief",
			Name:      "inference_requests_total",
			Help:      "Total inference requests by provider, model, phase and result",
		},
		[]string{"provider", "model", "phase", "result"},
	)

	inferenceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "editorialbrief",
			Name:      "inference_request_duration_seconds",
			Help:      "Duration of inference requests by provider and phase",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"provider", "phase"},
	)

	pagesRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "editorialbrief",
			Name:      "pages_rendered_total",
			Help:      "Pages rasterized by resolution tier",
		},
		[]string{"tier"},
	)

	renderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "editorialbrief",
			Name:      "render_duration_seconds",
			Help:      "Duration of one render call by tier",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tier"},
	)

	pipelineOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "editorialbrief",
			Name:      "pipeline_outcomes_total",
			Help:      "Pipeline runs by entry point and final state",
		},
		[]string{"entry", "state"},
	)

	sessionOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "editorialbrief",
			Name:      "session_operations_total",
			Help:      "Session store operations by backend, op and result",
		},
		[]string{"backend", "op", "result"},
	)

	poolBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "editorialbrief",
			Name:      "worker_pool_busy",
			Help:      "Tasks currently executing on the worker pool",
		},
	)

	initOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(inferenceReqs, inferenceLatency, pagesRendered, renderLatency, pipelineOutcomes, sessionOps, poolBusy)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveInference(provider, model, phase, result string, dur time.Duration) {
	inferenceReqs.WithLabelValues(provider, model, phase, result).Inc()
	inferenceLatency.WithLabelValues(provider, phase).Observe(dur.Seconds())
}

func ObserveRender(tier string, pages int, dur time.Duration) {
	pagesRendered.WithLabelValues(tier).Add(float64(pages))
	renderLatency.WithLabelValues(tier).Observe(dur.Seconds())
}

func IncOutcome(entry, state string) { pipelineOutcomes.WithLabelValues(entry, state).Inc() }

func IncSessionOp(backend, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sessionOps.WithLabelValues(backend, op, result).Inc()
}

func PoolTaskStarted()  { poolBusy.Inc() }
func PoolTaskFinished() { poolBusy.Dec() }
