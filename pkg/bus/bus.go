// Package bus is the unified façade over the core: one Bus owns one region
// per configured path, a publisher per topic, and a pool of named
// subscriber cursors, and maps every core operation through a single
// Send/Recv/Health/Close surface.
package bus

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/vedarsh/usrl-core/internal/config"
	"github.com/vedarsh/usrl-core/internal/metrics"
	"github.com/vedarsh/usrl-core/internal/pub"
	"github.com/vedarsh/usrl-core/internal/ratelimit"
	"github.com/vedarsh/usrl-core/internal/region"
	"github.com/vedarsh/usrl-core/internal/sub"
)

// subscriberCursor pairs a cursor with the skip/discard totals metrics last
// observed, so Recv can report deltas without the Collector tracking any
// per-subscriber state of its own.
type subscriberCursor struct {
	cursor            *sub.Subscriber
	observedSkipped   uint64
	observedDiscarded uint64
}

// topicHandle bundles everything the façade needs per topic: the attached
// region entry, its publisher, an optional rate limiter, and one
// subscriber cursor per caller-chosen subscriber id.
type topicHandle struct {
	entry     region.TopicEntry
	publisher pub.Publisher
	limiter   *ratelimit.Limiter

	mu          sync.Mutex
	subscribers map[string]*subscriberCursor
}

// Bus is the façade over one or more topics backed by a single shared
// memory region.
type Bus struct {
	region  *region.Region
	topics  map[string]*topicHandle
	metrics *metrics.Collector
}

// Open builds or attaches the region named by cfg.Path using cfg.Topics.
// An AlreadyExists outcome from region.Build is not surfaced as an error:
// Open transparently attaches to the existing region instead, since
// concurrent openers racing to create the same region is the expected
// case, not a failure.
func Open(cfg config.BusConfig) (*Bus, error) {
	const op = "bus.Open"

	regionTopics, err := cfg.RegionTopics()
	if err != nil {
		return nil, &region.Error{Op: op, Kind: region.KindInvalidConfig, Err: err}
	}

	r, err := region.Build(cfg.Path, cfg.SizeBytes, regionTopics)
	if err != nil {
		if !region.IsKind(err, region.KindAlreadyExists) {
			return nil, err
		}
		r, err = region.Attach(cfg.Path)
		if err != nil {
			return nil, err
		}
	}

	topics := make(map[string]*topicHandle, len(cfg.Topics))
	for _, t := range cfg.Topics {
		entry, err := r.Lookup(t.Name)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		publisher, err := pub.New(r, entry, 0)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		topics[t.Name] = &topicHandle{
			entry:       entry,
			publisher:   publisher,
			limiter:     ratelimit.New(t.RateLimit, t.Burst),
			subscribers: make(map[string]*subscriberCursor),
		}
	}

	return &Bus{region: r, topics: topics}, nil
}

// SetMetrics attaches a Collector that Send and Recv report through from
// then on. It is optional: a Bus with no Collector set behaves exactly as
// before, at zero cost beyond the nil check. Not safe to call concurrently
// with Send/Recv.
func (b *Bus) SetMetrics(c *metrics.Collector) {
	b.metrics = c
}

func (b *Bus) lookup(op, name string) (*topicHandle, error) {
	h, ok := b.topics[name]
	if !ok {
		return nil, &Error{Op: op, Kind: KindUnknownTopic, Err: fmt.Errorf("topic %q not configured", name)}
	}
	return h, nil
}

// RegionAndTopic exposes the underlying region and topic entry for a
// configured topic, for adapters (internal/transport) that need to build
// their own Subscriber or Publisher directly against the core rather than
// going through Send/Recv.
func (b *Bus) RegionAndTopic(topic string) (*region.Region, region.TopicEntry, error) {
	h, err := b.lookup("Bus.RegionAndTopic", topic)
	if err != nil {
		return nil, region.TopicEntry{}, err
	}
	return b.region, h.entry, nil
}

// Send publishes payload to topic, honoring any configured rate limit.
// A rejected rate-limit check never reserves a core sequence.
func (b *Bus) Send(topic string, payload []byte) error {
	const op = "Bus.Send"
	h, err := b.lookup(op, topic)
	if err != nil {
		return err
	}

	if !h.limiter.Allow() {
		return &Error{Op: op, Kind: KindRateLimited, Err: fmt.Errorf("topic %q is rate limited", topic)}
	}

	err = h.publisher.Publish(payload)
	if b.metrics == nil {
		return err
	}
	if region.IsKind(err, region.KindTimeout) {
		b.metrics.ObserveTimeout(topic)
	} else if err == nil {
		b.metrics.ObservePublish(topic)
		b.metrics.SetWHead(topic, b.region.WHead(h.entry))
	}
	return err
}

// Recv reads the next message for subscriberID on topic into buf, creating
// a fresh cursor on first use. Results are passed through unchanged from
// sub.Subscriber.Next; callers distinguish Empty/Truncated/Bytes the same
// way they would talking to internal/sub directly. When a Collector is
// attached, every message actually returned (ResultBytes) is observed along
// with the skip/discard totals the cursor accumulated since the last
// observed message.
func (b *Bus) Recv(topic, subscriberID string, buf []byte) (sub.Result, int, error) {
	const op = "Bus.Recv"
	h, err := b.lookup(op, topic)
	if err != nil {
		return sub.ResultEmpty, 0, err
	}

	h.mu.Lock()
	s, ok := h.subscribers[subscriberID]
	if !ok {
		s = &subscriberCursor{cursor: sub.New(b.region, h.entry)}
		h.subscribers[subscriberID] = s
	}
	h.mu.Unlock()

	result, n, err := s.cursor.Next(buf)

	if b.metrics != nil && result == sub.ResultBytes {
		h.mu.Lock()
		skippedDelta := s.cursor.Skipped - s.observedSkipped
		discardedDelta := s.cursor.Discarded - s.observedDiscarded
		s.observedSkipped = s.cursor.Skipped
		s.observedDiscarded = s.cursor.Discarded
		h.mu.Unlock()

		b.metrics.ObserveConsume(topic, subscriberID, skippedDelta, discardedDelta)
	}

	return result, n, err
}

// TopicHealth reports the accounting a caller needs to judge one
// subscriber's standing on one topic.
type TopicHealth struct {
	WHead       uint64
	Subscribers map[string]SubscriberHealth
}

// SubscriberHealth reports one subscriber's cursor and counters.
type SubscriberHealth struct {
	LastSeq   uint64
	Skipped   uint64
	Discarded uint64
}

// Health reports WHead and every subscriber's cursor/counters for every
// configured topic. It is read-only: WHead is an atomic load, and each
// topic's subscriber counters are copied while holding that topic's mutex.
func (b *Bus) Health() map[string]TopicHealth {
	out := make(map[string]TopicHealth, len(b.topics))
	for name, h := range b.topics {
		h.mu.Lock()
		subs := make(map[string]SubscriberHealth, len(h.subscribers))
		for id, s := range h.subscribers {
			subs[id] = SubscriberHealth{LastSeq: s.cursor.LastSeq(), Skipped: s.cursor.Skipped, Discarded: s.cursor.Discarded}
		}
		h.mu.Unlock()

		out[name] = TopicHealth{WHead: b.region.WHead(h.entry), Subscribers: subs}
	}
	return out
}

// Close unmaps the underlying region. A failure from region.Region.Close is
// returned wrapped in a go-multierror; region.Region.Close stops at its
// first failed step, so at most one error is reported.
func (b *Bus) Close() error {
	var result *multierror.Error
	if err := b.region.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
