package bus

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vedarsh/usrl-core/internal/config"
	"github.com/vedarsh/usrl-core/internal/metrics"
	"github.com/vedarsh/usrl-core/internal/region"
	"github.com/vedarsh/usrl-core/internal/sub"
)

// gatheredValue returns the sample value of the first metric in family name
// whose labels include label=value, via the registry's public Gather API
// (Collector keeps its vectors unexported, so tests outside internal/metrics
// can only observe them this way).
func gatheredValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					if c := m.GetCounter(); c != nil {
						return c.GetValue()
					}
					if g := m.GetGauge(); g != nil {
						return g.GetValue()
					}
				}
			}
		}
	}
	t.Fatalf("metric %s{%s=%q} not found", name, label, value)
	return 0
}

func testConfig(t *testing.T) config.BusConfig {
	t.Helper()
	return config.BusConfig{
		Path:      filepath.Join(t.TempDir(), "region"),
		SizeBytes: region.MinSize,
		Topics: []config.TopicConfig{
			{Name: "ticks", SlotCount: 8, PayloadSize: 16, Type: "swmr"},
			{Name: "control", SlotCount: 4, PayloadSize: 8, Type: "mwmr"},
		},
	}
}

func TestOpenSendRecvRoundTrip(t *testing.T) {
	b, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	if err := b.Send("ticks", []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	buf := make([]byte, 16)
	result, n, err := b.Recv("ticks", "reader-1", buf)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if result != sub.ResultBytes || string(buf[:n]) != "hello" {
		t.Fatalf("expected hello back, got result=%v payload=%q", result, buf[:n])
	}
}

func TestSendUnknownTopic(t *testing.T) {
	b, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	err = b.Send("nope", []byte("x"))
	if !IsUnknownTopic(err) {
		t.Fatalf("expected KindUnknownTopic, got %v", err)
	}
}

func TestOpenAbsorbsAlreadyExists(t *testing.T) {
	cfg := testConfig(t)

	first, err := Open(cfg)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	defer first.Close()

	second, err := Open(cfg)
	if err != nil {
		t.Fatalf("second Open on existing path should succeed by attaching, got: %v", err)
	}
	defer second.Close()

	if err := first.Send("ticks", []byte("a")); err != nil {
		t.Fatalf("Send via first handle: %v", err)
	}
	buf := make([]byte, 16)
	result, _, err := second.Recv("ticks", "reader", buf)
	if err != nil {
		t.Fatalf("Recv via second handle: %v", err)
	}
	if result != sub.ResultBytes {
		t.Fatalf("expected second handle to observe first handle's publish, got %v", result)
	}
}

func TestHealthTracksOverrunSkip(t *testing.T) {
	cfg := testConfig(t)
	cfg.Topics[0].SlotCount = 4

	b, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	buf := make([]byte, 16)
	// Prime a cursor, then lap it well past the ring so the next Recv
	// must skip forward.
	if _, _, err := b.Recv("ticks", "reader", buf); err != nil {
		t.Fatalf("Recv priming: %v", err)
	}
	for i := 0; i < 20; i++ {
		if err := b.Send("ticks", []byte("x")); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	if _, _, err := b.Recv("ticks", "reader", buf); err != nil {
		t.Fatalf("Recv after flood: %v", err)
	}

	health := b.Health()
	topicHealth, ok := health["ticks"]
	if !ok {
		t.Fatalf("expected ticks in health report, got %+v", health)
	}
	if topicHealth.WHead != 20 {
		t.Errorf("expected w_head 20, got %d", topicHealth.WHead)
	}
	subHealth, ok := topicHealth.Subscribers["reader"]
	if !ok {
		t.Fatalf("expected reader in subscriber health, got %+v", topicHealth)
	}
	if subHealth.Skipped == 0 {
		t.Errorf("expected at least one skip recorded in health, got %+v", subHealth)
	}
}

func TestSendRecvObserveMetricsWhenAttached(t *testing.T) {
	cfg := testConfig(t)
	cfg.Topics[0].SlotCount = 4

	b, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	reg := prometheus.NewRegistry()
	b.SetMetrics(metrics.NewCollector(reg))

	if err := b.Send("ticks", []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := gatheredValue(t, reg, "usrl_published_total", "topic", "ticks"); got != 1 {
		t.Errorf("expected usrl_published_total=1, got %v", got)
	}
	if got := gatheredValue(t, reg, "usrl_whead", "topic", "ticks"); got != 1 {
		t.Errorf("expected usrl_whead=1 after one publish, got %v", got)
	}

	buf := make([]byte, 16)
	// The priming Recv consumes "hello"; flooding past the ring then makes
	// the next Recv surface both a consumed message and the skip it picked
	// up along the way.
	if _, _, err := b.Recv("ticks", "reader", buf); err != nil {
		t.Fatalf("Recv priming: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := b.Send("ticks", []byte("x")); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	result, _, err := b.Recv("ticks", "reader", buf)
	if err != nil {
		t.Fatalf("Recv after flood: %v", err)
	}
	if result != sub.ResultBytes {
		t.Fatalf("expected a message back, got %v", result)
	}

	if got := gatheredValue(t, reg, "usrl_consumed_total", "topic", "ticks"); got != 2 {
		t.Errorf("expected usrl_consumed_total=2, got %v", got)
	}
	if got := gatheredValue(t, reg, "usrl_skipped_total", "topic", "ticks"); got == 0 {
		t.Errorf("expected usrl_skipped_total>0, got %v", got)
	}
}
