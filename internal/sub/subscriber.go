// Package sub implements cursor tracking, overrun catch-up, and the
// torn-read verify-after-copy that makes this a seqlock-style reader. A
// Subscriber is strictly process-local state layered on top of a shared
// Region; it never writes anything into shared memory.
package sub

import (
	"github.com/vedarsh/usrl-core/internal/region"
)

// afterSeqCheckHook, when non-nil, runs between the slot's initial seq
// check and its payload copy. It exists solely so tests can force a
// deterministic torn read by publishing a lap-ahead message at exactly that
// point; production code never sets it.
var afterSeqCheckHook func()

// afterHeadLoadHook, when non-nil, runs right after Next loads w_head and
// confirms the cursor isn't ahead of it, but before the overrun check and
// slot read that follow. It exists solely so tests can force the seq>next
// (writer-ahead) branch by publishing enough messages at exactly that point
// to advance the slot this cursor is about to read past the generation it
// expects; production code never sets it.
var afterHeadLoadHook func()

// Result is returned by Next to distinguish its three outcomes without
// allocating an error for the common, expected Empty case.
type Result int

const (
	// ResultBytes means n bytes were copied into the caller's buffer.
	ResultBytes Result = iota
	// ResultEmpty means no message was available (including the
	// torn-read-discarded and writer-ahead sub-cases).
	ResultEmpty
	// ResultTruncated means the message was consumed but did not fit the
	// caller's buffer.
	ResultTruncated
)

// Subscriber tracks one reader's position in one topic's ring. Multiple
// Subscribers on the same topic are completely independent; nothing here
// is shared between them.
type Subscriber struct {
	region  *region.Region
	topic   region.TopicEntry
	lastSeq uint64

	lastPubID     uint16
	lastTimestamp uint64

	// Skipped counts overrun jumps; Discarded counts torn-read discards.
	// Both are process-local bookkeeping for adapters (health reporting) —
	// the core algorithm does not consult them.
	Skipped   uint64
	Discarded uint64
}

// New creates a cursor for topic, starting before sequence 1 (last_seq=0).
func New(r *region.Region, topic region.TopicEntry) *Subscriber {
	return &Subscriber{region: r, topic: topic}
}

// Topic returns the topic this subscriber reads from.
func (s *Subscriber) Topic() region.TopicEntry { return s.topic }

// LastSeq returns the highest sequence this subscriber has fully consumed.
func (s *Subscriber) LastSeq() uint64 { return s.lastSeq }

// LastPubID returns the pub_id recorded on the most recent ResultBytes read.
// It is unspecified (zero) until the first successful read.
func (s *Subscriber) LastPubID() uint16 { return s.lastPubID }

// LastTimestampNs returns the timestamp_ns recorded on the most recent
// ResultBytes read. It is unspecified (zero) until the first successful read.
func (s *Subscriber) LastTimestampNs() uint64 { return s.lastTimestamp }

// Next attempts to read the next message into buf: it advances the
// cursor on success, catches up a lapped reader in one jump, and discards
// (rather than returns) a torn read.
func (s *Subscriber) Next(buf []byte) (Result, int, error) {
	mask := s.topic.Mask()
	slotCount := uint64(s.topic.SlotCount)

	head := s.region.WHead(s.topic)
	next := s.lastSeq + 1
	if next > head {
		return ResultEmpty, 0, nil
	}

	if afterHeadLoadHook != nil {
		afterHeadLoadHook()
	}

	if head-next >= slotCount {
		// Overrun: the writer has lapped us. Jump forward and re-check;
		// each jump counts as one skip regardless of how many messages it
		// actually passed over.
		s.lastSeq = head - slotCount
		next = s.lastSeq + 1
		s.Skipped++

		head = s.region.WHead(s.topic)
		if next > head {
			return ResultEmpty, 0, nil
		}
	}

	index := (next - 1) & mask
	slot := s.region.Slot(s.topic, index)
	seq := slot.SeqAcquire()

	if seq == 0 || seq < next {
		// Not yet committed; common during tight polling.
		return ResultEmpty, 0, nil
	}

	if seq > next {
		// We fell behind between the w_head load and the slot load.
		// Advance the cursor once and let the caller retry on its own
		// schedule rather than spinning internally — the writer-ahead
		// case must not starve the caller.
		s.lastSeq = seq - 1
		return ResultEmpty, 0, nil
	}

	payloadLen := slot.PayloadLen()
	if uint32(len(buf)) < payloadLen {
		s.lastSeq = next
		return ResultTruncated, 0, &region.Error{Op: "Subscriber.Next", Kind: region.KindTruncated}
	}

	if afterSeqCheckHook != nil {
		afterSeqCheckHook()
	}

	pubID := slot.PubID()
	timestampNs := slot.TimestampNs()
	n := slot.ReadPayload(buf[:payloadLen])

	// Torn-read check: re-load seq after the copy. If it changed, a writer
	// lapped us mid-copy and the bytes we just read may be a mix of two
	// messages; discard them.
	if reread := slot.SeqAcquire(); reread != seq {
		s.Discarded++
		s.lastSeq = s.region.WHead(s.topic)
		return ResultEmpty, 0, nil
	}

	s.lastSeq = next
	s.lastPubID = pubID
	s.lastTimestamp = timestampNs
	return ResultBytes, n, nil
}
