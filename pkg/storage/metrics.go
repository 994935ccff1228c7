// Package storage provides Prometheus metrics over store statistics.
package storage

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes store statistics to Prometheus. Values are set from
// Stats snapshots, labeled by engine, so one Metrics can serve several
// stores.
type Metrics struct {
	entries      *prometheus.GaugeVec
	diskSize     *prometheus.GaugeVec
	writes       *prometheus.GaugeVec
	reads        *prometheus.GaugeVec
	flushes      *prometheus.GaugeVec
	flushSeconds *prometheus.GaugeVec
	bytesWritten *prometheus.GaugeVec
	bytesRead    *prometheus.GaugeVec
}

// NewMetrics creates the metric set. Call Register before use.
func NewMetrics() *Metrics {
	labels := []string{"engine"}

	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kvstash",
			Subsystem: "store",
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Metrics{
		entries:      gauge("entries", "Number of stored entries"),
		diskSize:     gauge("disk_size_bytes", "On-disk size in bytes"),
		writes:       gauge("writes", "Writes since the store was opened"),
		reads:        gauge("reads", "Reads since the store was opened"),
		flushes:      gauge("flushes", "Completed flushes since the store was opened"),
		flushSeconds: gauge("flush_seconds", "Cumulative seconds spent flushing since the store was opened"),
		bytesWritten: gauge("bytes_written", "Payload bytes written since the store was opened"),
		bytesRead:    gauge("bytes_read", "Payload bytes read since the store was opened"),
	}
}

// Register registers all metrics with the given registry.
//
// This should be called once during initialization.
func (m *Metrics) Register(registry *prometheus.Registry) *Metrics {
	registry.MustRegister(
		m.entries,
		m.diskSize,
		m.writes,
		m.reads,
		m.flushes,
		m.flushSeconds,
		m.bytesWritten,
		m.bytesRead,
	)
	return m
}

// Observe publishes a stats snapshot.
func (m *Metrics) Observe(s Stats) {
	labels := prometheus.Labels{"engine": s.Engine}

	m.entries.With(labels).Set(float64(s.Entries))
	m.diskSize.With(labels).Set(float64(s.DiskSize))
	m.writes.With(labels).Set(float64(s.Writes))
	m.reads.With(labels).Set(float64(s.Reads))
	m.flushes.With(labels).Set(float64(s.Flushes))
	m.flushSeconds.With(labels).Set(s.FlushTime.Seconds())
	m.bytesWritten.With(labels).Set(float64(s.BytesWritten))
	m.bytesRead.With(labels).Set(float64(s.BytesRead))
}
