package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// SnapshotFetches counts traffic snapshot fetches by provider and outcome
	SnapshotFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "traffic_snapshot_fetches_total", Help: "Traffic snapshot fetches by provider and outcome."},
		[]string{"provider", "outcome"},
	)
	// OptimizerRuns counts optimizer invocations by kind (route, portfolio)
	OptimizerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimizer_runs_total", Help: "Optimizer runs by kind."},
		[]string{"kind"},
	)
	// AgentCycles counts agent loop cycles by outcome
	AgentCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agent_cycles_total", Help: "Agent loop cycles by outcome."},
		[]string{"outcome"},
	)
	// ActionTransitions counts agent action status transitions
	ActionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agent_action_transitions_total", Help: "Agent action transitions by target status."},
		[]string{"status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SnapshotFetches)
		Registry.MustRegister(OptimizerRuns)
		Registry.MustRegister(AgentCycles)
		Registry.MustRegister(ActionTransitions)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
