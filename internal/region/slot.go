package region

// SlotView is the only way pub and sub touch a slot's bytes; it keeps every
// unsafe offset calculation inside this package.
type SlotView struct {
	raw []byte
}

// Slot returns a view onto slot index idx of topic t. idx must already be
// masked into [0, t.SlotCount).
func (r *Region) Slot(t TopicEntry, idx uint64) SlotView {
	return SlotView{raw: r.SlotBytes(t, idx)}
}

// SeqAcquire acquire-loads the slot's seq field.
func (s SlotView) SeqAcquire() uint64 { return LoadSeqAcquire(s.raw) }

// CommitRelease release-stores seq into the slot header. This is the single
// operation that publishes a message: every other write to the slot must
// happen-before this call.
func (s SlotView) CommitRelease(seq uint64) { StoreSeqRelease(s.raw, seq) }

// WriteHeaderFields writes the non-atomic header fields. Must be called
// after WritePayload and before CommitRelease.
func (s SlotView) WriteHeaderFields(timestampNs uint64, payloadLen uint32, pubID uint16) {
	writeSlotHeaderFields(s.raw, timestampNs, payloadLen, pubID)
}

// WritePayload copies payload into the slot's payload area. Caller must
// already have validated len(payload) <= capacity.
func (s SlotView) WritePayload(payload []byte) {
	copy(slotPayload(s.raw), payload)
}

// PayloadLen reads the slot header's payload_len field.
func (s SlotView) PayloadLen() uint32 { return readSlotPayloadLen(s.raw) }

// PubID reads the slot header's pub_id field.
func (s SlotView) PubID() uint16 { return readSlotPubID(s.raw) }

// TimestampNs reads the slot header's timestamp_ns field.
func (s SlotView) TimestampNs() uint64 { return readSlotTimestampNs(s.raw) }

// ReadPayload copies up to len(dst) bytes of the slot's payload area into
// dst and returns the number of bytes copied, never more than len(dst). It
// does not consult payload_len; the caller sizes dst from PayloadLen and
// handles a too-small buffer as Truncated.
func (s SlotView) ReadPayload(dst []byte) int {
	return copy(dst, slotPayload(s.raw))
}
