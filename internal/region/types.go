package region

// RingType selects the publish discipline for a topic. It is stored in the
// topic table so Attach can hand back the right kind of publisher without
// the caller repeating the configuration.
type RingType uint32

const (
	// RingSWMR is single-writer/multi-reader: exactly one process may
	// publish to the topic at a time.
	RingSWMR RingType = 0
	// RingMWMR is multi-writer/multi-reader: any number of processes may
	// publish concurrently, gated by the per-slot generation check.
	RingMWMR RingType = 1
)

func (t RingType) String() string {
	switch t {
	case RingSWMR:
		return "swmr"
	case RingMWMR:
		return "mwmr"
	default:
		return "unknown"
	}
}

// maxNameLen is the usable length of a topic name: 64 bytes of storage minus
// the mandatory NUL terminator.
const maxNameLen = nameFieldSize - 1

// TopicConfig describes one topic to be laid out by Build.
type TopicConfig struct {
	// Name must be non-empty and unique within the region. Names longer
	// than maxNameLen are truncated at the boundary.
	Name string
	// SlotCount is the requested number of ring slots; Build rounds it up
	// to the next power of two.
	SlotCount uint32
	// PayloadSize is the requested payload capacity in bytes. The slot
	// footprint is align_up(slotHeaderSize+PayloadSize, 8).
	PayloadSize uint32
	// Type selects SWMR or MWMR publish discipline.
	Type RingType
}

// TopicEntry is the attach-time view of one configured topic: everything a
// publisher or subscriber needs to address its ring without touching the
// topic table again.
type TopicEntry struct {
	Name          string
	RingDescOff   uint64
	SlotCount     uint32
	SlotSize      uint32
	Type          RingType
	SlotArrayOff  uint64
}

// Mask returns the index mask for this topic's ring (SlotCount-1, valid
// because SlotCount is always a power of two).
func (t TopicEntry) Mask() uint64 {
	return uint64(t.SlotCount) - 1
}

// PayloadCapacity returns the maximum payload this topic's slots can carry.
func (t TopicEntry) PayloadCapacity() uint32 {
	return t.SlotSize - slotHeaderSize
}
