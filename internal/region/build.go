package region

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/vedarsh/usrl-core/internal/layout"
)

// Build lays out a new region at path in a single pass: header, topic
// table, ring descriptors, then slot arrays, leaves first. Build returns
// (region, nil) when it created and initialized a fresh region, a nil
// region with a KindAlreadyExists error when the path was already present
// — callers are expected to Attach instead, since concurrent creators
// racing on Build is the common case, not a failure — and a nil region with
// another *Error kind otherwise.
//
// size must be at least MinSize; it is the total number of bytes to
// allocate for the region, including header and topic metadata. Build never
// grows the underlying file beyond size; if the configured topics do not
// fit, it fails with KindOutOfSpace and removes the partially created file.
func Build(path string, size int64, topics []TopicConfig) (*Region, error) {
	const op = "region.Build"

	if path == "" || size < MinSize || len(topics) == 0 {
		return nil, newErr(op, KindInvalidArgs, nil)
	}
	if err := validateTopics(topics); err != nil {
		return nil, newErr(op, KindInvalidConfig, err)
	}

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil, newErr(op, KindAlreadyExists, nil)
		}
		return nil, newErr(op, KindIoError, fmt.Errorf("open %s: %w", path, err))
	}

	region, buildErr := buildInto(fd, path, size, topics)
	if buildErr != nil {
		_ = unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, buildErr
	}
	return region, nil
}

func validateTopics(topics []TopicConfig) error {
	seen := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		if t.SlotCount < 1 {
			return fmt.Errorf("topic %q: slot_count must be >= 1", t.Name)
		}
		if t.Name == "" {
			return errors.New("topic name must not be empty")
		}
		name := t.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen]
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate topic name %q", name)
		}
		seen[name] = struct{}{}

		slotSize := layout.AlignUp(uint64(slotHeaderSize)+uint64(t.PayloadSize), 8)
		if uint64(t.PayloadSize) > slotSize {
			return fmt.Errorf("topic %q: payload_size %d exceeds slot capacity", t.Name, t.PayloadSize)
		}
		switch t.Type {
		case RingSWMR, RingMWMR:
		default:
			return fmt.Errorf("topic %q: unknown ring type %d", t.Name, t.Type)
		}
	}
	return nil
}

// buildInto performs the actual single-pass layout once fd has been
// exclusively created. It truncates fd to size, maps it, and writes every
// structure leaves-first: topic table, then ring descriptors, then slot
// arrays, then the header last.
func buildInto(fd int, path string, size int64, topics []TopicConfig) (*Region, error) {
	const op = "region.Build"

	if err := unix.Ftruncate(fd, size); err != nil {
		return nil, newErr(op, KindIoError, fmt.Errorf("ftruncate: %w", err))
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, newErr(op, KindIoError, fmt.Errorf("mmap: %w", err))
	}

	topicTableOffset := layout.AlignUp(headerSize, cacheLineAlign)
	descArrayOffset := layout.AlignUp(topicTableOffset+uint64(len(topics))*topicEntrySize, cacheLineAlign)
	slotOffset := layout.AlignUp(descArrayOffset+uint64(len(topics))*ringDescriptorSize, cacheLineAlign)

	entries := make([]TopicEntry, len(topics))

	for i, t := range topics {
		slotCount := uint32(layout.NextPowerOfTwo(uint64(t.SlotCount)))
		slotSize := uint32(layout.AlignUp(uint64(slotHeaderSize)+uint64(t.PayloadSize), 8))
		footprint := uint64(slotCount) * uint64(slotSize)

		if slotOffset+footprint > uint64(size) {
			_ = unix.Munmap(data)
			return nil, newErr(op, KindOutOfSpace, fmt.Errorf("topic %q needs %d bytes, %d remain", t.Name, footprint, uint64(size)-slotOffset))
		}

		descOff := descArrayOffset + uint64(i)*ringDescriptorSize
		entryOff := topicTableOffset + uint64(i)*topicEntrySize

		writeTopicEntry(data[entryOff:entryOff+topicEntrySize], t.Name, descOff, slotCount, slotSize, t.Type)
		writeRingDescriptor(data[descOff:descOff+ringDescriptorSize], slotCount, slotSize, slotOffset)

		// Zero every slot header's seq ("never written"). Ftruncate on a
		// freshly created file already yields zero-filled pages on every
		// platform this module targets, but we zero explicitly so Build's
		// correctness never depends on that OS guarantee.
		for s := uint64(0); s < uint64(slotCount); s++ {
			off := slotOffset + s*uint64(slotSize)
			for j := 0; j < slotHeaderSize; j++ {
				data[off+uint64(j)] = 0
			}
		}

		name := t.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen]
		}
		entries[i] = TopicEntry{
			Name:         name,
			RingDescOff:  descOff,
			SlotCount:    slotCount,
			SlotSize:     slotSize,
			Type:         t.Type,
			SlotArrayOff: slotOffset,
		}

		slotOffset = layout.AlignUp(slotOffset+footprint, cacheLineAlign)
	}

	writeHeader(data, uint64(size), topicTableOffset, uint32(len(topics)))

	return &Region{
		data:    data,
		path:    path,
		fd:      fd,
		entries: entries,
		byName:  indexByName(entries),
	}, nil
}

func indexByName(entries []TopicEntry) map[string]int {
	m := make(map[string]int, len(entries))
	for i, e := range entries {
		m[e.Name] = i
	}
	return m
}
