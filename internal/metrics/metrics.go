// Package metrics exposes quota enforcement as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "slackoffload"
	subsystem = "quota"
)

// Metrics implements eviction.Recorder.
type Metrics struct {
	UsageBytes  prometheus.Gauge
	LimitBytes  prometheus.Gauge
	TargetBytes prometheus.Gauge

	MigratedFiles prometheus.Counter
	MigratedBytes prometheus.Counter
	FailuresTotal *prometheus.CounterVec
	RunsTotal     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		UsageBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "usage_bytes",
			Help:      "Total size of files in the source store as last observed",
		}),
		LimitBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "limit_bytes",
			Help:      "Usage above which a run starts migrating files",
		}),
		TargetBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "target_bytes",
			Help:      "Usage a run migrates down to once it started acting",
		}),
		MigratedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "migrated_files_total",
			Help:      "Files archived to cold storage and removed from the source",
		}),
		MigratedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "migrated_bytes_total",
			Help:      "Bytes archived to cold storage and removed from the source",
		}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failures_total",
			Help:      "Failed migration attempts by stage",
		}, []string{"stage"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Finished runs by result",
		}, []string{"result"}),
	}
}

// Register registers all metrics with the provided registry
func (m *Metrics) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.UsageBytes,
		m.LimitBytes,
		m.TargetBytes,
		m.MigratedFiles,
		m.MigratedBytes,
		m.FailuresTotal,
		m.RunsTotal,
	}

	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveUsage(total, limit, target uint64) {
	m.UsageBytes.Set(float64(total))
	m.LimitBytes.Set(float64(limit))
	m.TargetBytes.Set(float64(target))
}

func (m *Metrics) ObserveMigration(size uint64) {
	m.MigratedFiles.Inc()
	m.MigratedBytes.Add(float64(size))
}

func (m *Metrics) ObserveFailure(stage string) {
	m.FailuresTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveRun(result string) {
	m.RunsTotal.WithLabelValues(result).Inc()
}
