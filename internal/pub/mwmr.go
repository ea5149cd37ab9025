package pub

import (
	"fmt"
	"runtime"
	"time"

	"github.com/vedarsh/usrl-core/internal/region"
)

// osYield backs off harder than runtime.Gosched by parking the goroutine
// for a minimal sleep. It is the stand-in for sched_yield in Go (there is
// no direct stdlib wrapper); it does not itself deschedule the OS thread.
func osYield() {
	time.Sleep(time.Microsecond)
}

// spinThreshold is how many iterations the MWMR safety loop spends on a
// runtime.Gosched yield before switching to osYield.
const spinThreshold = 10

// maxSafetySpins bounds the MWMR safety loop so a publisher never livelocks
// behind a writer that died mid-write. Tripping this is not expected under
// healthy load; it exists solely as a backstop.
const maxSafetySpins = 100_000

// MWMRPublisher publishes to a multi-writer/multi-reader topic. Any number
// of processes or goroutines may call Publish on (their own handle to) the
// same topic concurrently.
type MWMRPublisher struct {
	region *region.Region
	topic  region.TopicEntry
	pubID  uint16
}

// NewMWMR binds a publisher to one MWMR topic with a stable publisher id.
func NewMWMR(r *region.Region, topic region.TopicEntry, pubID uint16) *MWMRPublisher {
	return &MWMRPublisher{region: r, topic: topic, pubID: pubID}
}

// Publish extends SWMR's reserve/write/commit with a per-slot generation
// gate: a reserver must wait until the slot it is about to overwrite
// belongs to a strictly earlier lap through the ring before it is safe to
// stomp.
func (p *MWMRPublisher) Publish(payload []byte) error {
	if err := validatePayload(p.topic, payload); err != nil {
		return err
	}

	old := p.region.ReserveSequences(p.topic, 1)
	commit := old + 1
	slotCount := uint64(p.topic.SlotCount)
	index := (commit - 1) & p.topic.Mask()
	slot := p.region.Slot(p.topic, index)

	if err := p.waitForSafeSlot(slot, commit, slotCount); err != nil {
		return err
	}

	slot.WritePayload(payload)
	slot.WriteHeaderFields(clock.NowNanos(), uint32(len(payload)), p.pubID)
	slot.CommitRelease(commit)
	return nil
}

// waitForSafeSlot spins until the slot's resident sequence is either unset
// or belongs to a generation strictly before commit's. Comparing
// commit/slotCount against current/slotCount (rather than a sequence
// difference) is wrap-safe for 64-bit sequences and correctly distinguishes
// a slot another concurrent reserver is still writing (same generation,
// must wait) from one carrying a strictly older generation (safe to
// overwrite).
func (p *MWMRPublisher) waitForSafeSlot(slot region.SlotView, commit, slotCount uint64) error {
	commitGen := commit / slotCount

	for spins := 0; spins < maxSafetySpins; spins++ {
		current := slot.SeqAcquire()
		if current == 0 || current/slotCount < commitGen {
			return nil
		}

		if spins < spinThreshold {
			runtime.Gosched()
		} else {
			osYield()
		}
	}

	return &region.Error{
		Op:   "MWMRPublisher.Publish",
		Kind: region.KindTimeout,
		Err:  fmt.Errorf("safety spin exceeded %d iterations for topic %q", maxSafetySpins, p.topic.Name),
	}
}

// Topic returns the topic this publisher is bound to.
func (p *MWMRPublisher) Topic() region.TopicEntry { return p.topic }
