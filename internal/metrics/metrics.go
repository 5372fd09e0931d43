package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the extract writer instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	RowsInserted  prometheus.Counter
	InsertErrors  prometheus.Counter
	Flushes       *prometheus.CounterVec
	FlushedBytes  prometheus.Counter
	FlushDuration prometheus.Histogram
	OpenStores    prometheus.Gauge
	TablesCreated prometheus.Counter
}

// New registers the instruments on reg. Use a fresh prometheus.Registry
// per process or test; registering twice on the same registry panics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RowsInserted: f.NewCounter(prometheus.CounterOpts{
			Name: "novaextract_rows_inserted_total",
			Help: "Rows appended to extract tables",
		}),
		InsertErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "novaextract_insert_errors_total",
			Help: "Rejected row inserts",
		}),
		Flushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novaextract_flushes_total",
			Help: "Extract flushes by result",
		}, []string{"result"}),
		FlushedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "novaextract_flushed_bytes_total",
			Help: "Bytes written by successful flushes",
		}),
		FlushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "novaextract_flush_duration_seconds",
			Help:    "Time spent encoding and durably writing an extract",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		OpenStores: f.NewGauge(prometheus.GaugeOpts{
			Name: "novaextract_open_stores",
			Help: "Extract stores currently holding a file handle",
		}),
		TablesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "novaextract_tables_created_total",
			Help: "Tables created in extract stores",
		}),
	}
}

func (m *Metrics) RowInserted() {
	if m != nil {
		m.RowsInserted.Inc()
	}
}

func (m *Metrics) InsertFailed() {
	if m != nil {
		m.InsertErrors.Inc()
	}
}

func (m *Metrics) TableCreated() {
	if m != nil {
		m.TablesCreated.Inc()
	}
}

func (m *Metrics) StoreOpened() {
	if m != nil {
		m.OpenStores.Inc()
	}
}

func (m *Metrics) StoreReleased() {
	if m != nil {
		m.OpenStores.Dec()
	}
}

// Flushed records one flush attempt.
func (m *Metrics) Flushed(bytes int, took time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Flushes.WithLabelValues("error").Inc()
		return
	}
	m.Flushes.WithLabelValues("ok").Inc()
	m.FlushedBytes.Add(float64(bytes))
	m.FlushDuration.Observe(took.Seconds())
}
