package pub

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vedarsh/usrl-core/internal/region"
	"github.com/vedarsh/usrl-core/internal/sub"
)

// TestMWMR_ConcurrentPublishersUniqueSequences checks that multiple
// concurrent publishers are never handed the same sequence, and that
// w_head equals the total number of successful publishes.
func TestMWMR_ConcurrentPublishersUniqueSequences(t *testing.T) {
	r, topic := buildTopic(t, 1024, 64, region.RingMWMR)

	const publishers = 8
	const perPublisher = 2000

	var wg sync.WaitGroup
	wg.Add(publishers)
	for p := 0; p < publishers; p++ {
		go func(id int) {
			defer wg.Done()
			publisher := NewMWMR(r, topic, uint16(id+1))
			for i := 0; i < perPublisher; i++ {
				if err := publisher.Publish([]byte{byte(id)}); err != nil {
					t.Errorf("publisher %d: Publish: %v", id, err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	want := uint64(publishers * perPublisher)
	if got := r.WHead(topic); got != want {
		t.Fatalf("expected w_head=%d, got %d", want, got)
	}
}

// TestMWMR_SubscriberSeesStrictlyIncreasingSequence reads back messages
// from a concurrently-written MWMR topic and verifies the multiset of
// publisher ids is bounded and sequences never repeat or go backwards.
func TestMWMR_SubscriberSeesStrictlyIncreasingSequence(t *testing.T) {
	r, topic := buildTopic(t, 256, 16, region.RingMWMR)

	const publishers = 4
	const perPublisher = 5000

	var wg sync.WaitGroup
	wg.Add(publishers)
	for p := 0; p < publishers; p++ {
		go func(id int) {
			defer wg.Done()
			publisher := NewMWMR(r, topic, uint16(id+1))
			for i := 0; i < perPublisher; i++ {
				_ = publisher.Publish([]byte{byte(id)})
			}
		}(p)
	}

	subscriber := sub.New(r, topic)
	buf := make([]byte, 16)
	seen := map[uint16]int{}
	var lastSeq uint64
	drained := make(chan struct{})
	go func() {
		for {
			result, n, err := subscriber.Next(buf)
			if err != nil && result != sub.ResultTruncated {
				t.Errorf("Next: %v", err)
			}
			if result == sub.ResultBytes {
				if subscriber.LastSeq() <= lastSeq && lastSeq != 0 {
					t.Errorf("sequence did not increase: last=%d prev=%d", subscriber.LastSeq(), lastSeq)
				}
				lastSeq = subscriber.LastSeq()
				if n == 1 {
					seen[uint16(buf[0])+1]++
				}
			}
			select {
			case <-drained:
				return
			default:
			}
		}
	}()

	wg.Wait()
	close(drained)

	for pubID := range seen {
		if pubID < 1 || pubID > publishers {
			t.Errorf("unexpected pub id %d observed", pubID)
		}
	}
}

// TestMWMR_SlotCountOneSerializesViaGeneration is the slot_count=1 boundary:
// every publish overwrites the same slot, and MWMR's generation check must
// still keep the ring consistent (no two publishers ever believe they wrote
// the same sequence).
func TestMWMR_SlotCountOneSerializesViaGeneration(t *testing.T) {
	r, topic := buildTopic(t, 1, 8, region.RingMWMR)
	if topic.SlotCount != 1 {
		t.Fatalf("expected slot count 1, got %d", topic.SlotCount)
	}

	const publishers = 4
	const perPublisher = 500

	var committed int64
	var wg sync.WaitGroup
	wg.Add(publishers)
	for p := 0; p < publishers; p++ {
		go func(id int) {
			defer wg.Done()
			publisher := NewMWMR(r, topic, uint16(id+1))
			for i := 0; i < perPublisher; i++ {
				if err := publisher.Publish([]byte{byte(id)}); err == nil {
					atomic.AddInt64(&committed, 1)
				}
			}
		}(p)
	}
	wg.Wait()

	if got := r.WHead(topic); got != uint64(committed) {
		t.Fatalf("expected w_head to equal committed count %d, got %d", committed, got)
	}
}

func TestMWMR_PayloadTooLargeNeverReservesSequence(t *testing.T) {
	r, topic := buildTopic(t, 4, 8, region.RingMWMR)
	publisher := NewMWMR(r, topic, 1)

	err := publisher.Publish(make([]byte, 9))
	if !region.IsKind(err, region.KindPayloadTooLarge) {
		t.Fatalf("expected KindPayloadTooLarge, got %v", err)
	}
	if head := r.WHead(topic); head != 0 {
		t.Errorf("expected w_head unchanged at 0, got %d", head)
	}
}
