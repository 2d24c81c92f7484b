package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Iron-Ham/entitylock/internal/event"
)

const metricsNamespace = "entitylock"

// Failure reasons used for the failures_total label.
const (
	ReasonTimeout     = "timeout"
	ReasonInterrupted = "interrupted"
)

var _ prometheus.Collector = (*Collector)(nil)

// Collector is a prometheus.Collector fed by lock lifecycle events.
type Collector struct {
	acquisitions       *prometheus.CounterVec
	releases           *prometheus.CounterVec
	failures           *prometheus.CounterVec
	waitSeconds        *prometheus.HistogramVec
	globalAcquisitions *prometheus.CounterVec
	globalActive       *prometheus.GaugeVec
	globalEntities     *prometheus.GaugeVec

	mu   sync.Mutex
	bus  *event.Bus
	subs []string
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		acquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "acquisitions_total",
				Help:      "The number of entity lock acquisitions, including reentrant ones.",
			}, []string{"locker"},
		),
		releases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "releases_total",
				Help:      "The number of entity lock levels released by their holder.",
			}, []string{"locker"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "failures_total",
				Help:      "The number of timed acquisitions that gave up.",
			}, []string{"locker", "reason"},
		),
		waitSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "wait_seconds",
				Help:      "Time spent waiting for an entity lock before it was granted.",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 30},
			}, []string{"locker"},
		),
		globalAcquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "global_acquisitions_total",
				Help:      "The number of times global mode was entered, including reentrant ones.",
			}, []string{"locker"},
		),
		globalActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "global_active",
				Help:      "1 while some owner holds global mode.",
			}, []string{"locker"},
		),
		globalEntities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "global_entities",
				Help:      "The number of entity locks collected by the last global acquisition.",
			}, []string{"locker"},
		),
	}
}

// Attach subscribes the collector to every lock event on bus. Attaching
// again moves the subscription to the new bus.
func (c *Collector) Attach(bus *event.Bus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.detachLocked()
	c.bus = bus
	c.subs = []string{
		bus.Subscribe(event.TypeEntityLocked, c.handle),
		bus.Subscribe(event.TypeEntityUnlocked, c.handle),
		bus.Subscribe(event.TypeEntityTimeout, c.handle),
		bus.Subscribe(event.TypeEntityInterrupted, c.handle),
		bus.Subscribe(event.TypeGlobalAcquired, c.handle),
		bus.Subscribe(event.TypeGlobalReleased, c.handle),
	}
}

// Detach removes the collector's subscriptions. Collected values are kept.
func (c *Collector) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detachLocked()
}

func (c *Collector) detachLocked() {
	if c.bus == nil {
		return
	}
	for _, id := range c.subs {
		c.bus.Unsubscribe(id)
	}
	c.bus = nil
	c.subs = nil
}

func (c *Collector) handle(e event.Event) {
	switch ev := e.(type) {
	case event.EntityLockedEvent:
		c.acquisitions.WithLabelValues(ev.Locker).Inc()
		c.waitSeconds.WithLabelValues(ev.Locker).Observe(ev.Waited.Seconds())
	case event.EntityUnlockedEvent:
		c.releases.WithLabelValues(ev.Locker).Inc()
	case event.EntityLockFailedEvent:
		reason := ReasonTimeout
		if ev.EventType() == event.TypeEntityInterrupted {
			reason = ReasonInterrupted
		}
		c.failures.WithLabelValues(ev.Locker, reason).Inc()
	case event.GlobalAcquiredEvent:
		c.globalAcquisitions.WithLabelValues(ev.Locker).Inc()
		c.globalActive.WithLabelValues(ev.Locker).Set(1)
		c.globalEntities.WithLabelValues(ev.Locker).Set(float64(ev.Entities))
	case event.GlobalReleasedEvent:
		if ev.Final {
			c.globalActive.WithLabelValues(ev.Locker).Set(0)
		}
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.acquisitions.Describe(ch)
	c.releases.Describe(ch)
	c.failures.Describe(ch)
	c.waitSeconds.Describe(ch)
	c.globalAcquisitions.Describe(ch)
	c.globalActive.Describe(ch)
	c.globalEntities.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.acquisitions.Collect(ch)
	c.releases.Collect(ch)
	c.failures.Collect(ch)
	c.waitSeconds.Collect(ch)
	c.globalAcquisitions.Collect(ch)
	c.globalActive.Collect(ch)
	c.globalEntities.Collect(ch)
}
