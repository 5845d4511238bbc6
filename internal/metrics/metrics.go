package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tablecast"

// Collector exposes listener storage activity as Prometheus metrics and
// implements listener.Recorder.
type Collector struct {
	registry  *prometheus.Registry
	queued    *prometheus.CounterVec
	vetoed    *prometheus.CounterVec
	indexed   *prometheus.GaugeVec
	callbacks *prometheus.CounterVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		queued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "events_queued_total",
			Help:      "Events appended to poller queues, by category.",
		}, []string{"category"}),
		vetoed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "events_vetoed_total",
			Help:      "Events discarded by a finish function, by category.",
		}, []string{"category"}),
		indexed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "subscribed",
			Help:      "Listeners currently subscribed to each category.",
		}, []string{"category"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "callbacks_total",
			Help:      "Callback invocations, by outcome.",
		}, []string{"outcome"}),
	}
	c.registry.MustRegister(
		c.queued,
		c.vetoed,
		c.indexed,
		c.callbacks,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collector) EventsQueued(category string, n int) {
	c.queued.WithLabelValues(category).Add(float64(n))
}

func (c *Collector) EventVetoed(category string) {
	c.vetoed.WithLabelValues(category).Inc()
}

func (c *Collector) IndexChanged(category string, delta int) {
	c.indexed.WithLabelValues(category).Add(float64(delta))
}

func (c *Collector) CallbackDone(panicked bool) {
	outcome := "ok"
	if panicked {
		outcome = "panic"
	}
	c.callbacks.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
