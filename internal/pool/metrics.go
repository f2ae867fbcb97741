package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exports pool statistics to Prometheus. It reads
// Manager.Stats on every scrape and keeps no state of its own.
type MetricsCollector struct {
	mgr *Manager

	connectionsDesc *prometheus.Desc
	maxDesc         *prometheus.Desc
	acquiredDesc    *prometheus.Desc
	openedDesc      *prometheus.Desc
	evictedDesc     *prometheus.Desc
	discardedDesc   *prometheus.Desc
	exhaustedDesc   *prometheus.Desc
}

// NewMetricsCollector returns a collector for every pool of mgr.
func NewMetricsCollector(mgr *Manager) *MetricsCollector {
	pool := []string{"pool"}
	return &MetricsCollector{
		mgr: mgr,
		connectionsDesc: prometheus.NewDesc(
			"dbcore_pool_connections",
			"Physical connections tracked by the pool, by state",
			[]string{"pool", "state"},
			nil,
		),
		maxDesc: prometheus.NewDesc(
			"dbcore_pool_max_connections",
			"Configured pool ceiling",
			pool,
			nil,
		),
		acquiredDesc: prometheus.NewDesc(
			"dbcore_pool_acquired_total",
			"Connections checked out",
			pool,
			nil,
		),
		openedDesc: prometheus.NewDesc(
			"dbcore_pool_opened_total",
			"Physical connections opened",
			pool,
			nil,
		),
		evictedDesc: prometheus.NewDesc(
			"dbcore_pool_evicted_total",
			"Idle connections evicted after failing the liveness check",
			pool,
			nil,
		),
		discardedDesc: prometheus.NewDesc(
			"dbcore_pool_discarded_total",
			"Connections discarded because rollback on release failed",
			pool,
			nil,
		),
		exhaustedDesc: prometheus.NewDesc(
			"dbcore_pool_exhausted_total",
			"Acquire calls rejected at the pool ceiling",
			pool,
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectionsDesc
	ch <- c.maxDesc
	ch <- c.acquiredDesc
	ch <- c.openedDesc
	ch <- c.evictedDesc
	ch <- c.discardedDesc
	ch <- c.exhaustedDesc
}

// Collect implements prometheus.Collector.
func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.mgr.Names() {
		s, err := c.mgr.Stats(name)
		if err != nil {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.connectionsDesc, prometheus.GaugeValue, float64(s.Idle), name, "idle")
		ch <- prometheus.MustNewConstMetric(c.connectionsDesc, prometheus.GaugeValue, float64(s.Busy), name, "busy")
		ch <- prometheus.MustNewConstMetric(c.maxDesc, prometheus.GaugeValue, float64(s.Max), name)
		ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.CounterValue, float64(s.Acquired), name)
		ch <- prometheus.MustNewConstMetric(c.openedDesc, prometheus.CounterValue, float64(s.Opened), name)
		ch <- prometheus.MustNewConstMetric(c.evictedDesc, prometheus.CounterValue, float64(s.Evicted), name)
		ch <- prometheus.MustNewConstMetric(c.discardedDesc, prometheus.CounterValue, float64(s.Discarded), name)
		ch <- prometheus.MustNewConstMetric(c.exhaustedDesc, prometheus.CounterValue, float64(s.Exhausted), name)
	}
}
