// Package metrics exports entity lock activity as Prometheus metrics.
//
// A Collector subscribes to an event.Bus and turns the lock lifecycle events
// published by an entitylock.Locker into counters, gauges, and a wait time
// histogram, labelled by locker name. Register it with any
// prometheus.Registerer:
//
//	bus := event.NewBus()
//	collector := metrics.NewCollector()
//	collector.Attach(bus)
//	prometheus.MustRegister(collector)
//
//	locker := entitylock.New[string](entitylock.WithBus(bus))
package metrics
