package cache

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tier label values for the cache metrics below.
const (
	tierL1 = "l1"
	tierL2 = "l2"
)

// Cache-level Prometheus metrics. The "tier" label distinguishes the
// in-process LRU from the backing store.
var (
	hitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiercache_hits_total",
			Help: "Total number of cache hits per tier.",
		},
		[]string{"tier"},
	)

	missesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiercache_misses_total",
			Help: "Total number of cache misses per tier.",
		},
		[]string{"tier"},
	)

	evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiercache_evictions_total",
			Help: "Total number of entries evicted per tier.",
		},
		[]string{"tier"},
	)

	invalidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tiercache_invalidations_total",
			Help: "Total number of keys removed by tag invalidation.",
		},
	)

	storeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiercache_store_errors_total",
			Help: "Total number of failed backing store operations.",
		},
		[]string{"op"},
	)

	getDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tiercache_get_duration_seconds",
			Help:    "Latency of cache reads, both hits and misses.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(
		hitsTotal,
		missesTotal,
		evictionsTotal,
		invalidationsTotal,
		storeErrorsTotal,
		getDurationSeconds,
	)
}

// Stats is a read-only snapshot of the in-process counters. Counters are
// monotonic; the latency average runs over every read since process start.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Invalidations uint64
	AvgGetLatency time.Duration
}

// collector tracks in-process counters alongside the Prometheus metrics so
// callers can read them without scraping.
type collector struct {
	hits          atomic.Uint64
	misses        atomic.Uint64
	evictions     atomic.Uint64
	invalidations atomic.Uint64
	latencyCount  atomic.Uint64
	latencyNanos  atomic.Uint64
}

func (c *collector) hit(tier string) {
	c.hits.Add(1)
	hitsTotal.WithLabelValues(tier).Inc()
}

// tierMiss records a miss on a single tier without counting an overall miss;
// an L2 hit after an L1 miss is still a hit for the caller.
func (c *collector) tierMiss(tier string) {
	missesTotal.WithLabelValues(tier).Inc()
}

func (c *collector) miss() {
	c.misses.Add(1)
}

func (c *collector) eviction(tier string) {
	c.evictions.Add(1)
	evictionsTotal.WithLabelValues(tier).Inc()
}

func (c *collector) invalidation(keys int) {
	if keys <= 0 {
		return
	}
	c.invalidations.Add(uint64(keys))
	invalidationsTotal.Add(float64(keys))
}

func (c *collector) getLatency(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.latencyCount.Add(1)
	c.latencyNanos.Add(uint64(d.Nanoseconds()))
	getDurationSeconds.Observe(d.Seconds())
}

func (c *collector) snapshot() Stats {
	s := Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidations.Load(),
	}
	if n := c.latencyCount.Load(); n > 0 {
		s.AvgGetLatency = time.Duration(c.latencyNanos.Load() / n)
	}
	return s
}
