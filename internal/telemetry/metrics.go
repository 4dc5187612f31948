package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the mescore services. The zero
// value (and any instance built with Enabled=false) is a safe no-op.
type Metrics struct {
	config   MetricsConfig
	registry *prometheus.Registry

	transitionsTotal     *prometheus.CounterVec
	transitionsRejected  *prometheus.CounterVec
	scheduleOpsTotal     *prometheus.CounterVec
	scheduleConflicts    prometheus.Counter
	scheduleItemsPlanned prometheus.Gauge
	spcMeasurements      *prometheus.CounterVec
	spcOutOfControl      *prometheus.CounterVec
	opDuration           *prometheus.HistogramVec
}

// NewMetrics builds the metric vectors and registers them on a private
// registry. A disabled config yields a no-op instance.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "mescore"
	}
	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "transitions_total",
			Help:      "Lifecycle transitions applied, by entity kind and target state.",
		}, []string{"entity", "target"}),
		transitionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "transitions_rejected_total",
			Help:      "Lifecycle transitions rejected as illegal, by entity kind.",
		}, []string{"entity"}),
		scheduleOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "schedule_operations_total",
			Help:      "Scheduling operations processed, by operation and outcome.",
		}, []string{"operation", "status"}),
		scheduleConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "schedule_conflicts_detected_total",
			Help:      "Schedule conflicts detected across all checks.",
		}),
		scheduleItemsPlanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "schedule_items_planned",
			Help:      "Schedule items produced by the most recent generation run.",
		}),
		spcMeasurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "spc_measurements_total",
			Help:      "SPC measurements recorded, by parameter.",
		}, []string{"parameter"}),
		spcOutOfControl: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "spc_out_of_control_total",
			Help:      "SPC out-of-control signals, by parameter and rule.",
		}, []string{"parameter", "rule"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "operation_duration_seconds",
			Help:      "Duration of service operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	m.registry.MustRegister(
		m.transitionsTotal,
		m.transitionsRejected,
		m.scheduleOpsTotal,
		m.scheduleConflicts,
		m.scheduleItemsPlanned,
		m.spcMeasurements,
		m.spcOutOfControl,
		m.opDuration,
	)
	return m
}

// RecordTransition counts an applied lifecycle transition.
func (m *Metrics) RecordTransition(entity, target string) {
	if m.transitionsTotal == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(entity, target).Inc()
}

// RecordTransitionRejected counts an illegal transition attempt.
func (m *Metrics) RecordTransitionRejected(entity string) {
	if m.transitionsRejected == nil {
		return
	}
	m.transitionsRejected.WithLabelValues(entity).Inc()
}

// RecordScheduleOperation counts a scheduling operation outcome.
func (m *Metrics) RecordScheduleOperation(operation, status string) {
	if m.scheduleOpsTotal == nil {
		return
	}
	m.scheduleOpsTotal.WithLabelValues(operation, status).Inc()
}

// RecordScheduleConflicts adds detected conflicts to the running total.
func (m *Metrics) RecordScheduleConflicts(n int) {
	if m.scheduleConflicts == nil || n <= 0 {
		return
	}
	m.scheduleConflicts.Add(float64(n))
}

// SetScheduleItemsPlanned records the size of the latest generated schedule.
func (m *Metrics) SetScheduleItemsPlanned(n int) {
	if m.scheduleItemsPlanned == nil {
		return
	}
	m.scheduleItemsPlanned.Set(float64(n))
}

// RecordSPCMeasurement counts a recorded measurement.
func (m *Metrics) RecordSPCMeasurement(parameter string) {
	if m.spcMeasurements == nil {
		return
	}
	m.spcMeasurements.WithLabelValues(parameter).Inc()
}

// RecordSPCOutOfControl counts an out-of-control signal for a parameter.
func (m *Metrics) RecordSPCOutOfControl(parameter, rule string) {
	if m.spcOutOfControl == nil {
		return
	}
	m.spcOutOfControl.WithLabelValues(parameter, rule).Inc()
}

// ObserveOperationDuration records how long a service operation took.
func (m *Metrics) ObserveOperationDuration(operation string, d time.Duration) {
	if m.opDuration == nil {
		return
	}
	m.opDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Timer returns a function that, when called, observes the elapsed time for
// the named operation.
func (m *Metrics) Timer(operation string) func() {
	start := time.Now()
	return func() {
		m.ObserveOperationDuration(operation, time.Since(start))
	}
}

// Handler returns an HTTP handler serving the metrics endpoint, or nil when
// metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartMetricsServer serves the metrics endpoint on the configured address.
// It returns immediately with the server so callers can shut it down.
func (m *Metrics) StartMetricsServer() *http.Server {
	handler := m.Handler()
	if handler == nil {
		return nil
	}
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
