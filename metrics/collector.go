// Package metrics exposes the driver's counters and gauges over
// Prometheus, grounded in the same client_golang usage this repo's
// retrieval pack shows for HTTP services (zephyrcache's
// internal/telemetry package): a private Registry rather than the
// default global one, so multiple drivers in one process (the
// interactive CLI's Manager) can each register their own labeled
// collector without clashing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds one node's driver-loop metrics.
type Collector struct {
	registry *prometheus.Registry

	RosterSize   prometheus.Gauge
	IsMaster     prometheus.Gauge
	BlockQueue   prometheus.Gauge
	NonblockQueue prometheus.Gauge

	Joins      *prometheus.CounterVec
	Leaves     prometheus.Counter
	Notifies   prometheus.Counter
	Blocks     prometheus.Counter
	FatalExits *prometheus.CounterVec

	DispatchLatency prometheus.Histogram

	startTime time.Time
	uptime    prometheus.GaugeFunc
}

// NewCollector returns a Collector for one node, labeled by nodeName in
// its own private registry so several nodes (SPEC_FULL.md §4.8's
// interactive mode) don't collide on metric identity.
func NewCollector(nodeName string) *Collector {
	c := &Collector{registry: prometheus.NewRegistry(), startTime: time.Now()}

	constLabels := prometheus.Labels{"node": nodeName}

	c.RosterSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "clusterdrv", Name: "roster_size",
		Help: "Number of entries currently in the roster, tombstoned or not.", ConstLabels: constLabels,
	})
	c.IsMaster = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "clusterdrv", Name: "is_master",
		Help: "1 if this node is currently the master, 0 otherwise.", ConstLabels: constLabels,
	})
	c.BlockQueue = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "clusterdrv", Name: "block_queue_depth",
		Help: "Number of events currently queued on the block queue.", ConstLabels: constLabels,
	})
	c.NonblockQueue = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "clusterdrv", Name: "nonblock_queue_depth",
		Help: "Number of events currently queued on the non-block queue.", ConstLabels: constLabels,
	})
	c.Joins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clusterdrv", Name: "joins_total",
		Help: "JOIN_REQUEST outcomes observed by this node.", ConstLabels: constLabels,
	}, []string{"result"})
	c.Leaves = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "clusterdrv", Name: "leaves_total",
		Help: "LEAVE events processed by this node.", ConstLabels: constLabels,
	})
	c.Notifies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "clusterdrv", Name: "notifies_total",
		Help: "NOTIFY events delivered to this node.", ConstLabels: constLabels,
	})
	c.Blocks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "clusterdrv", Name: "blocks_accepted_total",
		Help: "BLOCK requests this node's host accepted.", ConstLabels: constLabels,
	})
	c.FatalExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clusterdrv", Name: "fatal_exits_total",
		Help: "Fatal conditions that terminated this node's driver.", ConstLabels: constLabels,
	}, []string{"reason"})
	c.DispatchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "clusterdrv", Name: "dispatch_seconds",
		Help: "Wall time spent in one Dispatch call not skipped for pending input, whether or not it drained events.", ConstLabels: constLabels,
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})
	c.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "clusterdrv", Name: "uptime_seconds",
		Help: "Seconds since this node's Collector was created.", ConstLabels: constLabels,
	}, func() float64 { return time.Since(c.startTime).Seconds() })

	c.registry.MustRegister(
		c.RosterSize, c.IsMaster, c.BlockQueue, c.NonblockQueue,
		c.Joins, c.Leaves, c.Notifies, c.Blocks, c.FatalExits,
		c.DispatchLatency, c.uptime,
	)
	return c
}

// Handler exposes this Collector's registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// A nil *Collector is a documented no-op everywhere below, so callers
// in cluster don't have to special-case the metrics-disabled path.

// SetRosterState records the roster size and whether this node currently
// holds mastership.
func (c *Collector) SetRosterState(size int, isMaster bool) {
	if c == nil {
		return
	}
	c.RosterSize.Set(float64(size))
	if isMaster {
		c.IsMaster.Set(1)
	} else {
		c.IsMaster.Set(0)
	}
}

// SetQueueDepths records the current block and non-block queue lengths.
func (c *Collector) SetQueueDepths(block, nonblock int) {
	if c == nil {
		return
	}
	c.BlockQueue.Set(float64(block))
	c.NonblockQueue.Set(float64(nonblock))
}

// IncJoin records one JOIN_REQUEST outcome, labeled by result.
func (c *Collector) IncJoin(result string) {
	if c == nil {
		return
	}
	c.Joins.WithLabelValues(result).Inc()
}

// IncLeave records one processed LEAVE.
func (c *Collector) IncLeave() {
	if c == nil {
		return
	}
	c.Leaves.Inc()
}

// IncNotify records one delivered NOTIFY.
func (c *Collector) IncNotify() {
	if c == nil {
		return
	}
	c.Notifies.Inc()
}

// IncBlock records one BLOCK this host accepted.
func (c *Collector) IncBlock() {
	if c == nil {
		return
	}
	c.Blocks.Inc()
}

// IncFatalExit records one fatal exit, labeled by reason.
func (c *Collector) IncFatalExit(reason string) {
	if c == nil {
		return
	}
	c.FatalExits.WithLabelValues(reason).Inc()
}

// ObserveDispatch records the wall time spent in one Dispatch call that
// was not skipped for pending input.
func (c *Collector) ObserveDispatch(d time.Duration) {
	if c == nil {
		return
	}
	c.DispatchLatency.Observe(d.Seconds())
}
