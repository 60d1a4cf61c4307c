package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ccsimage/ccs-install/pkg/engine"
)

// Metrics provides Prometheus metrics for reconciliation runs. It implements
// engine.Observer.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	// Action metrics
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec

	// Plan metrics
	conflicts      prometheus.Counter
	installedUnits prometheus.Gauge
	plannedActions *prometheus.GaugeVec

	// Error metrics
	errorsByKind *prometheus.CounterVec

	registry *prometheus.Registry
}

var _ engine.Observer = (*Metrics)(nil)

// NewMetrics creates a new metrics collector with its own registry.
func NewMetrics(cfg MetricsConfig) *Metrics {
	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of reconciliation runs by outcome",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of reconciliation runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of executed install and uninstall actions",
			},
			[]string{"direction", "status"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Duration of p2 director invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"direction"},
		),

		conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflicts_total",
				Help:      "Total number of installed units found conflicting with a request",
			},
		),
		installedUnits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "installed_units",
				Help:      "Number of installed root units seen by the last run",
			},
		),
		plannedActions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "planned_actions",
				Help:      "Number of actions planned by the last run",
			},
			[]string{"direction"},
		),

		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of failed runs by error kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.runs,
		m.runDuration,
		m.actions,
		m.actionDuration,
		m.conflicts,
		m.installedUnits,
		m.plannedActions,
		m.errorsByKind,
	)

	return m
}

// ObservePlan records the sizes of a computed plan.
func (m *Metrics) ObservePlan(installed, conflicting, uninstall, install int) {
	m.installedUnits.Set(float64(installed))
	m.conflicts.Add(float64(conflicting))
	m.plannedActions.WithLabelValues(string(engine.DirectionUninstall)).Set(float64(uninstall))
	m.plannedActions.WithLabelValues(string(engine.DirectionInstall)).Set(float64(install))
}

// ObserveAction records one executed action.
func (m *Metrics) ObserveAction(direction engine.Direction, err error, duration time.Duration) {
	m.actions.WithLabelValues(string(direction), status(err)).Inc()
	m.actionDuration.WithLabelValues(string(direction)).Observe(duration.Seconds())
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(err error, duration time.Duration) {
	s := status(err)
	m.runs.WithLabelValues(s).Inc()
	m.runDuration.WithLabelValues(s).Observe(duration.Seconds())
	if err != nil {
		kind := string(engine.KindOf(err))
		if kind == "" {
			kind = "unknown"
		}
		m.errorsByKind.WithLabelValues(kind).Inc()
	}
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
