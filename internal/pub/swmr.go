package pub

import (
	"github.com/vedarsh/usrl-core/internal/region"
)

// SWMRPublisher publishes to a single-writer/multi-reader topic. Exactly
// one process/goroutine may call Publish on a given instance at a time;
// the type itself does nothing to enforce that beyond the atomic w_head
// reservation.
type SWMRPublisher struct {
	region *region.Region
	topic  region.TopicEntry
	pubID  uint16
}

// NewSWMR binds a publisher to one topic with a stable publisher id.
func NewSWMR(r *region.Region, topic region.TopicEntry, pubID uint16) *SWMRPublisher {
	return &SWMRPublisher{region: r, topic: topic, pubID: pubID}
}

// Publish reserves the next sequence, writes payload and header, then
// commits with a release store.
func (p *SWMRPublisher) Publish(payload []byte) error {
	if err := validatePayload(p.topic, payload); err != nil {
		return err
	}

	// fetch_add(1, AcqRel): only needed for monotonicity under the
	// single-writer assumption, but kept acquire-release (rather than
	// relaxed) so SWMR publishers can safely coexist with debuggers or a
	// future multi-writer variant.
	old := p.region.ReserveSequences(p.topic, 1)
	commit := old + 1
	index := (commit - 1) & p.topic.Mask()

	slot := p.region.Slot(p.topic, index)
	slot.WritePayload(payload)
	slot.WriteHeaderFields(clock.NowNanos(), uint32(len(payload)), p.pubID)
	// The release store below is the fence: every write above happens
	// before it in program order, and Go's atomic.Store provides the
	// release barrier the seqlock-style readers depend on.
	slot.CommitRelease(commit)
	return nil
}

// Topic returns the topic this publisher is bound to.
func (p *SWMRPublisher) Topic() region.TopicEntry { return p.topic }
