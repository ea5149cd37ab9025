package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.WithLabelValues(labels...).Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObservePublishIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObservePublish("ticks")
	c.ObservePublish("ticks")

	if got := counterValue(t, c.published, "ticks"); got != 2 {
		t.Fatalf("expected published counter 2, got %v", got)
	}
}

func TestObserveConsumeTracksSkipAndDiscardDeltas(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveConsume("ticks", "sub-1", 1, 0)
	c.ObserveConsume("ticks", "sub-1", 0, 2)

	if got := counterValue(t, c.consumed, "ticks", "sub-1"); got != 2 {
		t.Errorf("expected consumed counter 2, got %v", got)
	}
	if got := counterValue(t, c.skipped, "ticks", "sub-1"); got != 1 {
		t.Errorf("expected skipped counter 1, got %v", got)
	}
	if got := counterValue(t, c.discarded, "ticks", "sub-1"); got != 2 {
		t.Errorf("expected discarded counter 2, got %v", got)
	}
}
