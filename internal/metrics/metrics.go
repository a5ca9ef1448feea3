// Package metrics carries over the teacher's prometheus client_golang
// conventions (promauto-registered vars, one file, counters/histograms
// named after the domain they measure) onto the sandbox call path.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SandboxProvisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandbox_vm_provisions_total",
			Help: "Total number of sandbox VMs provisioned",
		},
	)

	SandboxCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_calls_total",
			Help: "Total number of annotated-function calls dispatched into a sandbox",
		},
		[]string{"status"}, // "ok", "error"
	)

	CallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sandbox_call_duration_ms",
			Help:    "Sandbox call round-trip duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	BundleInstalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandbox_bundle_installs_total",
			Help: "Total number of times a bundle was installed into a session VM",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sandbox_queue_depth",
			Help: "Current number of pending sandbox command jobs",
		},
	)

	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sandbox_active_workers",
			Help: "Number of workers currently executing a sandbox command",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sandbox_active_sessions",
			Help: "Number of session-keyed VMs currently held open by the pool",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandbox_rate_limit_hits_total",
			Help: "Total number of sandbox calls rejected by the rate limiter",
		},
	)
)

// CallTimer times one sandbox call and records both its duration and
// outcome on completion.
type CallTimer struct {
	start time.Time
}

func NewCallTimer() *CallTimer { return &CallTimer{start: time.Now()} }

func (t *CallTimer) ObserveCall(ok bool) {
	CallDuration.Observe(float64(time.Since(t.start).Milliseconds()))
	status := "ok"
	if !ok {
		status = "error"
	}
	SandboxCalls.WithLabelValues(status).Inc()
}
