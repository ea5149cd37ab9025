// Package config loads the YAML bus/topic configuration that describes a
// shared-memory region and its topics. It never touches shared memory
// itself; Load's only job is turning a file on disk into a validated
// BusConfig the façade can hand to region.Build or region.Attach.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vedarsh/usrl-core/internal/region"
)

// TopicConfig is the YAML shape of one topic entry, before it is turned
// into a region.TopicConfig. RateLimit and Burst are optional; a zero
// RateLimit means the topic is unthrottled.
type TopicConfig struct {
	Name        string  `yaml:"name"`
	SlotCount   uint32  `yaml:"slot_count"`
	PayloadSize uint32  `yaml:"payload_size"`
	Type        string  `yaml:"type"`
	RateLimit   float64 `yaml:"rate_limit"`
	Burst       int     `yaml:"burst"`
}

// BusConfig is the YAML shape of a full configuration file.
type BusConfig struct {
	Path      string        `yaml:"path"`
	SizeBytes int64         `yaml:"size_bytes"`
	Topics    []TopicConfig `yaml:"topics"`
}

// Load reads and validates a YAML config file at path. An empty path, a
// non-positive size_bytes, an empty topic list, an unnamed topic, an unknown
// ring type or a negative rate_limit/burst yields a
// region.InvalidConfig-kind error. Slot counts, payload sizes, duplicate
// names and the region's minimum size are not checked here; region.Build
// checks them before it creates anything.
func Load(path string) (BusConfig, error) {
	const op = "config.Load"

	raw, err := os.ReadFile(path)
	if err != nil {
		return BusConfig{}, &region.Error{Op: op, Kind: region.KindIoError, Err: err}
	}

	var cfg BusConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return BusConfig{}, &region.Error{Op: op, Kind: region.KindInvalidConfig, Err: fmt.Errorf("parse %s: %w", path, err)}
	}

	if err := validate(cfg); err != nil {
		return BusConfig{}, &region.Error{Op: op, Kind: region.KindInvalidConfig, Err: err}
	}
	return cfg, nil
}

func validate(cfg BusConfig) error {
	if cfg.Path == "" {
		return fmt.Errorf("config: path must not be empty")
	}
	if cfg.SizeBytes <= 0 {
		return fmt.Errorf("config: size_bytes must be positive, got %d", cfg.SizeBytes)
	}
	if len(cfg.Topics) == 0 {
		return fmt.Errorf("config: at least one topic is required")
	}
	for _, t := range cfg.Topics {
		if t.Name == "" {
			return fmt.Errorf("config: topic name must not be empty")
		}
		if _, err := ringType(t.Type); err != nil {
			return fmt.Errorf("config: topic %q: %w", t.Name, err)
		}
		if t.RateLimit < 0 || t.Burst < 0 {
			return fmt.Errorf("config: topic %q: rate_limit and burst must be non-negative", t.Name)
		}
	}
	return nil
}

func ringType(s string) (region.RingType, error) {
	switch strings.ToLower(s) {
	case "swmr", "":
		return region.RingSWMR, nil
	case "mwmr":
		return region.RingMWMR, nil
	default:
		return 0, fmt.Errorf("unknown ring type %q (want swmr or mwmr)", s)
	}
}

// RegionTopics converts the YAML topic list into the []region.TopicConfig
// shape region.Build expects. Rate limiting fields are dropped here; the
// façade reads them directly off BusConfig.Topics when constructing
// per-topic limiters.
func (c BusConfig) RegionTopics() ([]region.TopicConfig, error) {
	out := make([]region.TopicConfig, len(c.Topics))
	for i, t := range c.Topics {
		typ, err := ringType(t.Type)
		if err != nil {
			return nil, err
		}
		out[i] = region.TopicConfig{
			Name:        t.Name,
			SlotCount:   t.SlotCount,
			PayloadSize: t.PayloadSize,
			Type:        typ,
		}
	}
	return out, nil
}
