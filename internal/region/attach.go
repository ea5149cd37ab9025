package region

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Region is a handle onto one mapped shared-memory region. All pointer
// arithmetic into the mapping lives in this package; callers only ever see
// Region, TopicEntry and the typed slot/descriptor accessors exposed below.
type Region struct {
	data    []byte
	path    string
	fd      int
	entries []TopicEntry
	byName  map[string]int
}

// Attach opens an existing region at path, validates its header, and
// returns a handle. The mapped size is discovered from the OS (via fstat),
// not trusted from any caller-supplied value.
func Attach(path string) (*Region, error) {
	const op = "region.Attach"

	if path == "" {
		return nil, newErr(op, KindInvalidArgs, nil)
	}

	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, newErr(op, KindIoError, fmt.Errorf("open %s: %w", path, err))
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		_ = unix.Close(fd)
		return nil, newErr(op, KindIoError, fmt.Errorf("fstat %s: %w", path, err))
	}
	size := stat.Size
	if size < MinSize {
		_ = unix.Close(fd)
		return nil, newErr(op, KindIoError, fmt.Errorf("region %s too small (%d bytes)", path, size))
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, newErr(op, KindIoError, fmt.Errorf("mmap %s: %w", path, err))
	}

	if got := readHeaderMagic(data); got != magic {
		_ = unix.Munmap(data)
		_ = unix.Close(fd)
		return nil, newErr(op, KindIoError, fmt.Errorf("bad magic %#x", got))
	}
	if got := readHeaderVersion(data); got != version {
		_ = unix.Munmap(data)
		_ = unix.Close(fd)
		return nil, newErr(op, KindIoError, fmt.Errorf("unsupported version %d", got))
	}

	topicTableOffset := readHeaderTopicTableOffset(data)
	topicCount := readHeaderTopicCount(data)

	entries := make([]TopicEntry, topicCount)
	for i := uint32(0); i < topicCount; i++ {
		entryOff := topicTableOffset + uint64(i)*topicEntrySize
		name, descOff, slotCount, slotSize, typ := readTopicEntry(data[entryOff : entryOff+topicEntrySize])
		entries[i] = TopicEntry{
			Name:         name,
			RingDescOff:  descOff,
			SlotCount:    slotCount,
			SlotSize:     slotSize,
			Type:         typ,
			SlotArrayOff: readDescBaseOff(data[descOff : descOff+ringDescriptorSize]),
		}
	}

	return &Region{
		data:    data,
		path:    path,
		fd:      fd,
		entries: entries,
		byName:  indexByName(entries),
	}, nil
}

// Lookup finds a topic by name through a name-to-index map built when the
// region was built or attached.
func (r *Region) Lookup(name string) (TopicEntry, error) {
	const op = "Region.Lookup"
	if idx, ok := r.byName[name]; ok {
		return r.entries[idx], nil
	}
	return TopicEntry{}, newErr(op, KindInvalidArgs, fmt.Errorf("unknown topic %q", name))
}

// Topics returns every configured topic entry, in layout order.
func (r *Region) Topics() []TopicEntry {
	out := make([]TopicEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Path returns the path this region was built at or attached from.
func (r *Region) Path() string { return r.path }

// descriptorBytes returns the ring descriptor's raw bytes for a topic.
func (r *Region) descriptorBytes(t TopicEntry) []byte {
	return r.data[t.RingDescOff : t.RingDescOff+ringDescriptorSize]
}

// SlotBytes returns the raw bytes (header+payload) for slot index idx of
// topic t. idx must already be masked to [0, t.SlotCount).
func (r *Region) SlotBytes(t TopicEntry, idx uint64) []byte {
	off := t.SlotArrayOff + idx*uint64(t.SlotSize)
	return r.data[off : off+uint64(t.SlotSize)]
}

// WHead acquire-loads topic t's ring descriptor w_head.
func (r *Region) WHead(t TopicEntry) uint64 {
	return LoadWHead(r.descriptorBytes(t))
}

// ReserveSequences atomically reserves count sequence numbers from topic
// t's w_head, returning the value before the reservation (i.e. the caller's
// first reserved sequence is the return value + 1).
func (r *Region) ReserveSequences(t TopicEntry, count uint64) uint64 {
	return AddWHead(r.descriptorBytes(t), count)
}

// Close unmaps the region and closes its file descriptor. It does not
// remove the underlying shared-memory object: teardown of the backing
// object is an explicit, out-of-band operation (see Destroy).
func (r *Region) Close() error {
	if err := unix.Munmap(r.data); err != nil {
		return newErr("Region.Close", KindIoError, err)
	}
	if err := unix.Close(r.fd); err != nil {
		return newErr("Region.Close", KindIoError, err)
	}
	return nil
}

// Destroy closes the region and removes the backing shared-memory object.
// This is the explicit, out-of-band teardown the core itself never performs
// implicitly.
func (r *Region) Destroy() error {
	if err := r.Close(); err != nil {
		return err
	}
	if err := unix.Unlink(r.path); err != nil {
		return newErr("Region.Destroy", KindIoError, err)
	}
	return nil
}
