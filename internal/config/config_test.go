package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vedarsh/usrl-core/internal/region"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bus.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
path: /dev/shm/usrl-demo
size_bytes: 4194304
topics:
  - name: ticks
    slot_count: 1024
    payload_size: 64
    type: mwmr
    rate_limit: 1000
    burst: 50
  - name: control
    slot_count: 16
    payload_size: 256
    type: swmr
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != "/dev/shm/usrl-demo" || cfg.SizeBytes != 4194304 {
		t.Fatalf("unexpected top-level fields: %+v", cfg)
	}
	if len(cfg.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(cfg.Topics))
	}

	topics, err := cfg.RegionTopics()
	if err != nil {
		t.Fatalf("RegionTopics: %v", err)
	}
	if topics[0].Type != region.RingMWMR {
		t.Errorf("expected ticks to be mwmr, got %v", topics[0].Type)
	}
	if topics[1].Type != region.RingSWMR {
		t.Errorf("expected control to be swmr, got %v", topics[1].Type)
	}
}

func TestLoadRejectsUnknownType(t *testing.T) {
	path := writeConfig(t, `
path: /dev/shm/x
size_bytes: 1024
topics:
  - name: bad
    slot_count: 4
    payload_size: 8
    type: broadcast
`)
	_, err := Load(path)
	if !region.IsKind(err, region.KindInvalidConfig) {
		t.Fatalf("expected KindInvalidConfig, got %v", err)
	}
}

func TestLoadRejectsMissingSize(t *testing.T) {
	path := writeConfig(t, `
path: /dev/shm/x
topics:
  - name: t
    slot_count: 4
    payload_size: 8
`)
	_, err := Load(path)
	if !region.IsKind(err, region.KindInvalidConfig) {
		t.Fatalf("expected KindInvalidConfig for missing size_bytes, got %v", err)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !region.IsKind(err, region.KindIoError) {
		t.Fatalf("expected KindIoError, got %v", err)
	}
}
