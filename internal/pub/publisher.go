// Package pub implements two publish algorithms: a single-writer/
// multi-reader publisher and a multi-writer/multi-reader publisher that
// adds a per-slot generation gate. Both share the same
// validate/reserve/write/commit shape; MWMR differs only in that, after
// reserving a sequence, it waits until the slot is safe to overwrite before
// it does the writing.
package pub

import (
	"fmt"

	"github.com/vedarsh/usrl-core/internal/layout"
	"github.com/vedarsh/usrl-core/internal/region"
)

// Publisher is satisfied by both SWMRPublisher and MWMRPublisher so callers
// (the façade, benchmarks) can hold either behind one interface.
type Publisher interface {
	Publish(payload []byte) error
}

// New picks the right publisher for a topic's configured ring type.
func New(r *region.Region, topic region.TopicEntry, pubID uint16) (Publisher, error) {
	switch topic.Type {
	case region.RingSWMR:
		return NewSWMR(r, topic, pubID), nil
	case region.RingMWMR:
		return NewMWMR(r, topic, pubID), nil
	default:
		return nil, fmt.Errorf("pub.New: unknown ring type %v for topic %q", topic.Type, topic.Name)
	}
}

// validatePayload rejects a payload that does not fit before any sequence
// is reserved, so an oversized publish never leaks a w_head slot.
func validatePayload(topic region.TopicEntry, payload []byte) error {
	if uint32(len(payload)) > topic.PayloadCapacity() {
		return &region.Error{
			Op:   "Publisher.Publish",
			Kind: region.KindPayloadTooLarge,
			Err:  fmt.Errorf("payload %d bytes exceeds capacity %d", len(payload), topic.PayloadCapacity()),
		}
	}
	return nil
}

var clock layout.Clock
