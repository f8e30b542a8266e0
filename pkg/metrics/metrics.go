// Package metrics exports Prometheus metrics for a filters.Store and the
// snapshot storage behind it.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(metrics.WithRegistry(reg))
//	stop := m.Instrument(store)
//	defer stop()
//
//	storage = m.InstrumentStorage(storage)
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/persist"
)

// Config configures the collector.
type Config struct {
	// Namespace is the metrics namespace (default: "filters").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for storage call duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "filters",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector holds the registered metrics.
type Collector struct {
	opsTotal        *prometheus.CounterVec
	commitsTotal    prometheus.Counter
	entries         prometheus.Gauge
	queryBytes      prometheus.Histogram
	storageOps      *prometheus.CounterVec
	storageDuration *prometheus.HistogramVec
}

// New registers the metrics and returns the collector. Registering twice on
// the same registry panics, as with promauto.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		opsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of store operations by type",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		commitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commits_total",
			Help:        "Total number of operations that rewrote applied filters",
			ConstLabels: config.ConstLabels,
		}),

		entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "entries",
			Help:        "Number of keys held by the store",
			ConstLabels: config.ConstLabels,
		}),

		queryBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "query_bytes",
			Help:        "Length of committed query strings in bytes",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 16, 64, 256, 1024, 4096},
		}),

		storageOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "storage_operations_total",
			Help:        "Total snapshot storage calls by operation and status",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "status"}),

		storageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "storage_duration_seconds",
			Help:        "Snapshot storage call duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"op"}),
	}
}

// Instrument records every change of store. The returned func stops
// recording.
func (c *Collector) Instrument(store *filters.Store) (stop func()) {
	c.entries.Set(float64(store.Len()))

	return store.Subscribe(func(ch filters.Change) {
		c.opsTotal.WithLabelValues(ch.Op.String()).Inc()
		if ch.Committed {
			c.commitsTotal.Inc()
			c.queryBytes.Observe(float64(len(ch.State.Query)))
		}
		c.entries.Set(float64(store.Len()))
	})
}

// InstrumentStorage wraps s so every call is counted and timed.
func (c *Collector) InstrumentStorage(s persist.Storage) persist.Storage {
	return &instrumentedStorage{next: s, c: c}
}

type instrumentedStorage struct {
	next persist.Storage
	c    *Collector
}

func (s *instrumentedStorage) observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.c.storageOps.WithLabelValues(op, status).Inc()
	s.c.storageDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *instrumentedStorage) Save(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.next.Save(ctx, key, data)
	s.observe("save", start, err)
	return err
}

func (s *instrumentedStorage) Load(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.next.Load(ctx, key)
	s.observe("load", start, err)
	return data, err
}

func (s *instrumentedStorage) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.next.Delete(ctx, key)
	s.observe("delete", start, err)
	return err
}

func (s *instrumentedStorage) Close() error {
	return s.next.Close()
}
