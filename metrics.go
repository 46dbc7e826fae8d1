package tablemap

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by converters, batch submissions and
// repositories. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RowsWritten       *prometheus.CounterVec
	TransactionGroups *prometheus.CounterVec
	GroupDuration     prometheus.Histogram
	OverflowChunks    *prometheus.CounterVec
	Lookups           *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_written_total",
				Help:      "Total number of rows written by bulk upserts",
			},
			[]string{"type", "outcome"},
		),
		TransactionGroups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_groups_total",
				Help:      "Total number of submitted transaction groups",
			},
			[]string{"status"},
		),
		GroupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_group_duration_seconds",
				Help:      "Transaction group submission duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		OverflowChunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "overflow_chunks_total",
				Help:      "Total number of chunk columns produced for oversized fields",
			},
			[]string{"type"},
		),
		Lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Total number of point lookups",
			},
			[]string{"result"},
		),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.RowsWritten,
		m.TransactionGroups,
		m.GroupDuration,
		m.OverflowChunks,
		m.Lookups,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeOverflow(typeName string, chunks int) {
	if m == nil {
		return
	}
	m.OverflowChunks.WithLabelValues(typeName).Add(float64(chunks))
}

func (m *Metrics) observeGroup(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.TransactionGroups.WithLabelValues(status).Inc()
	m.GroupDuration.Observe(d.Seconds())
}

func (m *Metrics) observeWrites(typeName string, added, updated int) {
	if m == nil {
		return
	}
	m.RowsWritten.WithLabelValues(typeName, "added").Add(float64(added))
	m.RowsWritten.WithLabelValues(typeName, "updated").Add(float64(updated))
}

func (m *Metrics) observeLookup(hit bool) {
	if m == nil {
		return
	}
	result := "hit"
	if !hit {
		result = "miss"
	}
	m.Lookups.WithLabelValues(result).Inc()
}
