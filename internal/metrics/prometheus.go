package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for txverify
type Metrics struct {
	// Operation outcomes by kind and terminal state
	Operations *prometheus.CounterVec

	// Submission to inclusion latency (buckets: 1s, 2s, 6s, 12s, 24s, 60s, 120s)
	InclusionLatency *prometheus.HistogramVec

	// Receipt polls that returned not found
	PendingPolls prometheus.Counter

	// Scenario outcomes and durations
	Scenarios        *prometheus.CounterVec
	ScenarioDuration *prometheus.HistogramVec

	// Chain state seen by the finality checker
	LatestHead    prometheus.Gauge
	FinalizedHead prometheus.Gauge

	GasUsedTotal prometheus.Counter

	gatherer prometheus.Gatherer
	server   *http.Server
	mu       sync.Mutex
}

// NewMetrics creates a new Metrics instance registered on reg. A nil reg
// uses the default Prometheus registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of operations by kind and final state",
		}, []string{"kind", "state"}),
		InclusionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inclusion_latency_seconds",
			Help:      "Time from submission to receipt in seconds",
			Buckets:   []float64{1, 2, 6, 12, 24, 60, 120},
		}, []string{"kind"}),
		PendingPolls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_polls_total",
			Help:      "Total number of receipt polls that found no receipt",
		}),
		Scenarios: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Total number of scenarios by name and outcome",
		}, []string{"scenario", "outcome"}),
		ScenarioDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Duration of each scenario in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"scenario"}),
		LatestHead: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_block_number",
			Help:      "Latest block number seen",
		}),
		FinalizedHead: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "finalized_block_number",
			Help:      "Finalized block number seen",
		}),
		GasUsedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_used_total",
			Help:      "Total gas used by included transactions",
		}),
		gatherer: gatherer,
	}
}

// Start starts the HTTP server for Prometheus metrics
func (m *Metrics) Start(_ context.Context, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return fmt.Errorf("metrics server already running")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))

	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Stop stops the HTTP server gracefully
func (m *Metrics) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server == nil {
		return nil
	}

	err := m.server.Shutdown(ctx)
	m.server = nil
	return err
}

// RecordOperation counts an operation that ended in state
func (m *Metrics) RecordOperation(kind, state string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(kind, state).Inc()
}

// RecordInclusion records the submission to inclusion latency and gas
func (m *Metrics) RecordInclusion(kind string, latency time.Duration, gasUsed uint64) {
	if m == nil {
		return
	}
	m.InclusionLatency.WithLabelValues(kind).Observe(latency.Seconds())
	m.GasUsedTotal.Add(float64(gasUsed))
}

// RecordPendingPolls adds n not-found receipt polls
func (m *Metrics) RecordPendingPolls(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PendingPolls.Add(float64(n))
}

// RecordScenario counts a scenario outcome and its duration
func (m *Metrics) RecordScenario(name string, passed bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "fail"
	if passed {
		outcome = "pass"
	}
	m.Scenarios.WithLabelValues(name, outcome).Inc()
	m.ScenarioDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// SetHeads sets the latest and finalized block gauges
func (m *Metrics) SetHeads(latest, finalized uint64) {
	if m == nil {
		return
	}
	m.LatestHead.Set(float64(latest))
	m.FinalizedHead.Set(float64(finalized))
}

// IsRunning returns true if the metrics server is running
func (m *Metrics) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.server != nil
}
