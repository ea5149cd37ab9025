// Package metrics exposes Prometheus instrumentation for pkg/bus. The core
// packages (region, pub, sub) never import this package; all counters are
// incremented by the façade after it calls into the core, so the hot path
// itself never pays for anything beyond the increment the façade chooses to
// do.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and updates the bus's publish/consume/health metrics.
type Collector struct {
	published *prometheus.CounterVec
	consumed  *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	discarded *prometheus.CounterVec
	timedOut  *prometheus.CounterVec
	whead     *prometheus.GaugeVec
}

// NewCollector builds a Collector and registers its metrics with reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usrl_published_total",
			Help: "Total messages successfully published, per topic.",
		}, []string{"topic"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usrl_consumed_total",
			Help: "Total messages successfully consumed, per topic and subscriber.",
		}, []string{"topic", "subscriber"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usrl_skipped_total",
			Help: "Total overrun jumps a subscriber has performed, per topic and subscriber.",
		}, []string{"topic", "subscriber"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usrl_discarded_total",
			Help: "Total torn reads a subscriber has discarded, per topic and subscriber.",
		}, []string{"topic", "subscriber"}),
		timedOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usrl_timeout_total",
			Help: "Total MWMR publishes that exceeded the safety spin cap, per topic.",
		}, []string{"topic"}),
		whead: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "usrl_whead",
			Help: "Current w_head value, per topic.",
		}, []string{"topic"}),
	}

	reg.MustRegister(c.published, c.consumed, c.skipped, c.discarded, c.timedOut, c.whead)
	return c
}

// ObservePublish records one successful publish to topic.
func (c *Collector) ObservePublish(topic string) {
	c.published.WithLabelValues(topic).Inc()
}

// ObserveTimeout records one MWMR publish that exceeded its safety spin cap.
func (c *Collector) ObserveTimeout(topic string) {
	c.timedOut.WithLabelValues(topic).Inc()
}

// ObserveConsume records one successful Recv. skippedDelta and
// discardedDelta are the increase in Subscriber.Skipped/Discarded since the
// façade's last observation, not their running totals.
func (c *Collector) ObserveConsume(topic, subscriber string, skippedDelta, discardedDelta uint64) {
	c.consumed.WithLabelValues(topic, subscriber).Inc()
	if skippedDelta > 0 {
		c.skipped.WithLabelValues(topic, subscriber).Add(float64(skippedDelta))
	}
	if discardedDelta > 0 {
		c.discarded.WithLabelValues(topic, subscriber).Add(float64(discardedDelta))
	}
}

// SetWHead updates the w_head gauge for topic.
func (c *Collector) SetWHead(topic string, value uint64) {
	c.whead.WithLabelValues(topic).Set(float64(value))
}
