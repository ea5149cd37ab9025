package region

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// Byte-exact region layout (little-endian, naturally aligned). Every offset
// below is region-relative so two processes that map the same object at
// different virtual addresses agree on topology. This file holds the field
// offsets and the encode/decode helpers for every record; build.go and
// attach.go position records using the sizes declared here, and code
// outside this package works in terms of Region, TopicEntry and SlotView.
const (
	magic      uint32 = 0x5553524C // ASCII "USRL", little-endian word
	version    uint32 = 1
	MinSize    int64  = 4096

	headerSize = 32 // magic(4)+version(4)+mmap_size(8)+topic_table_off(8)+topic_count(4)+pad(4)

	nameFieldSize      = 64
	topicEntrySize     = 96 // name(64)+ring_desc_off(8)+slot_count(4)+slot_size(4)+type(4)+pad(12)
	ringDescriptorSize = 64 // slot_count(4)+slot_size(4)+base_off(8)+w_head(8)+reserved(40)
	slotHeaderSize     = 24 // seq(8)+timestamp_ns(8)+payload_len(4)+pub_id(2)+pad(2)

	cacheLineAlign = 64
)

// ---- Header (offset 0, headerSize bytes) ----

const (
	offMagic            = 0
	offVersion          = 4
	offMmapSize         = 8
	offTopicTableOffset = 16
	offTopicCount       = 24
)

func readHeaderMagic(b []byte) uint32   { return binary.LittleEndian.Uint32(b[offMagic:]) }
func readHeaderVersion(b []byte) uint32 { return binary.LittleEndian.Uint32(b[offVersion:]) }
func readHeaderMmapSize(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b[offMmapSize:])
}
func readHeaderTopicTableOffset(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b[offTopicTableOffset:])
}
func readHeaderTopicCount(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b[offTopicCount:])
}

func writeHeader(b []byte, mmapSize uint64, topicTableOffset uint64, topicCount uint32) {
	binary.LittleEndian.PutUint32(b[offMagic:], magic)
	binary.LittleEndian.PutUint32(b[offVersion:], version)
	binary.LittleEndian.PutUint64(b[offMmapSize:], mmapSize)
	binary.LittleEndian.PutUint64(b[offTopicTableOffset:], topicTableOffset)
	binary.LittleEndian.PutUint32(b[offTopicCount:], topicCount)
}

// ---- Topic table entry (topicEntrySize bytes each) ----

const (
	entryOffName        = 0
	entryOffRingDescOff = nameFieldSize
	entryOffSlotCount   = entryOffRingDescOff + 8
	entryOffSlotSize    = entryOffSlotCount + 4
	entryOffType        = entryOffSlotSize + 4
)

func writeTopicEntry(b []byte, name string, ringDescOff uint64, slotCount, slotSize uint32, typ RingType) {
	var nameBuf [nameFieldSize]byte
	n := copy(nameBuf[:maxNameLen], name)
	_ = n // remaining bytes (including the terminator) stay zero
	copy(b[entryOffName:entryOffName+nameFieldSize], nameBuf[:])
	binary.LittleEndian.PutUint64(b[entryOffRingDescOff:], ringDescOff)
	binary.LittleEndian.PutUint32(b[entryOffSlotCount:], slotCount)
	binary.LittleEndian.PutUint32(b[entryOffSlotSize:], slotSize)
	binary.LittleEndian.PutUint32(b[entryOffType:], uint32(typ))
}

func readTopicEntry(b []byte) (name string, ringDescOff uint64, slotCount, slotSize uint32, typ RingType) {
	nameBuf := b[entryOffName : entryOffName+nameFieldSize]
	end := 0
	for end < len(nameBuf) && nameBuf[end] != 0 {
		end++
	}
	name = string(nameBuf[:end])
	ringDescOff = binary.LittleEndian.Uint64(b[entryOffRingDescOff:])
	slotCount = binary.LittleEndian.Uint32(b[entryOffSlotCount:])
	slotSize = binary.LittleEndian.Uint32(b[entryOffSlotSize:])
	typ = RingType(binary.LittleEndian.Uint32(b[entryOffType:]))
	return
}

// ---- Ring descriptor (ringDescriptorSize bytes, cache-line aligned) ----

const (
	descOffSlotCount = 0
	descOffSlotSize  = 4
	descOffBaseOff   = 8
	descOffWHead     = 16
)

func writeRingDescriptor(b []byte, slotCount, slotSize uint32, baseOffset uint64) {
	binary.LittleEndian.PutUint32(b[descOffSlotCount:], slotCount)
	binary.LittleEndian.PutUint32(b[descOffSlotSize:], slotSize)
	binary.LittleEndian.PutUint64(b[descOffBaseOff:], baseOffset)
	atomic.StoreUint64(whead(b), 0)
}

func readDescSlotCount(b []byte) uint32 { return binary.LittleEndian.Uint32(b[descOffSlotCount:]) }
func readDescSlotSize(b []byte) uint32  { return binary.LittleEndian.Uint32(b[descOffSlotSize:]) }
func readDescBaseOff(b []byte) uint64   { return binary.LittleEndian.Uint64(b[descOffBaseOff:]) }

// whead returns a pointer to the ring descriptor's w_head field, suitable
// for sync/atomic operations. b must be the ringDescriptorSize-byte slice
// for one topic's descriptor (region.data[descOff:descOff+ringDescriptorSize]).
func whead(b []byte) *uint64 {
	return (*uint64)(unsafe.Pointer(&b[descOffWHead]))
}

// LoadWHead acquire-loads a ring's w_head counter.
func LoadWHead(descBytes []byte) uint64 {
	return atomic.LoadUint64(whead(descBytes))
}

// AddWHead atomically reserves count sequences, returning the value of
// w_head before the add (C's fetch_add semantics, not Go's post-add AddUint64).
func AddWHead(descBytes []byte, delta uint64) uint64 {
	return atomic.AddUint64(whead(descBytes), delta) - delta
}

// ---- Slot header (slotHeaderSize bytes, followed immediately by payload) ----

const (
	slotOffSeq         = 0
	slotOffTimestampNs = 8
	slotOffPayloadLen  = 16
	slotOffPubID       = 20
)

func slotSeqPtr(slot []byte) *uint64 {
	return (*uint64)(unsafe.Pointer(&slot[slotOffSeq]))
}

// LoadSeqAcquire acquire-loads a slot's seq field.
func LoadSeqAcquire(slot []byte) uint64 {
	return atomic.LoadUint64(slotSeqPtr(slot))
}

// StoreSeqRelease release-stores a slot's seq field, the single commit
// operation that makes a publish visible to subscribers.
func StoreSeqRelease(slot []byte, seq uint64) {
	atomic.StoreUint64(slotSeqPtr(slot), seq)
}

// writeSlotHeaderFields writes the non-atomic slot header fields (payload
// length, publisher id, timestamp). Must happen-before the seq release
// store; callers insert a release fence via the StoreSeqRelease call itself
// (Go's atomic.Store* already provides the needed release ordering on every
// architecture the runtime supports).
func writeSlotHeaderFields(slot []byte, timestampNs uint64, payloadLen uint32, pubID uint16) {
	binary.LittleEndian.PutUint64(slot[slotOffTimestampNs:], timestampNs)
	binary.LittleEndian.PutUint32(slot[slotOffPayloadLen:], payloadLen)
	binary.LittleEndian.PutUint16(slot[slotOffPubID:], pubID)
}

func readSlotPayloadLen(slot []byte) uint32 {
	return binary.LittleEndian.Uint32(slot[slotOffPayloadLen:])
}

func readSlotPubID(slot []byte) uint16 {
	return binary.LittleEndian.Uint16(slot[slotOffPubID:])
}

func readSlotTimestampNs(slot []byte) uint64 {
	return binary.LittleEndian.Uint64(slot[slotOffTimestampNs:])
}

func slotPayload(slot []byte) []byte {
	return slot[slotHeaderSize:]
}
