// Package transport relays one topic between two independent cores over
// TCP. It is an explicit bridge built on top of internal/sub and
// internal/pub's public interfaces; the core ring protocol itself never
// crosses a network boundary.
package transport

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/vedarsh/usrl-core/internal/region"
	"github.com/vedarsh/usrl-core/internal/sub"
	"github.com/vedarsh/usrl-core/internal/transport/wire"
)

// Forwarder reads every message a Subscriber sees on one topic and streams
// it to a single TCP peer as length-prefixed frames.
type Forwarder struct {
	subscriber *sub.Subscriber
	topic      string
	conn       net.Conn
	payloadBuf []byte
}

// NewForwarder binds a Forwarder to topic on r, sending every message it
// observes to conn. The caller owns conn's lifecycle beyond Close.
func NewForwarder(r *region.Region, topic region.TopicEntry, conn net.Conn) *Forwarder {
	return &Forwarder{
		subscriber: sub.New(r, topic),
		topic:      topic.Name,
		conn:       conn,
		payloadBuf: make([]byte, topic.PayloadCapacity()),
	}
}

// Run polls the subscriber and forwards messages until conn is closed or a
// frame write fails. An idle Run notices a closed conn on its next empty
// poll and returns nil; a failed write is returned as an error.
// pollInterval governs how long Run sleeps after observing an empty ring
// before polling again.
func (f *Forwarder) Run(pollInterval time.Duration) error {
	for {
		result, n, err := f.subscriber.Next(f.payloadBuf)
		if err != nil && result != sub.ResultTruncated {
			return fmt.Errorf("transport: forwarder subscriber.Next: %w", err)
		}

		switch result {
		case sub.ResultEmpty:
			// SetReadDeadline fails once conn is closed, which is how an
			// idle Run learns that Close was called.
			if err := f.conn.SetReadDeadline(time.Time{}); err != nil {
				return nil
			}
			time.Sleep(pollInterval)
			continue
		case sub.ResultTruncated:
			continue
		case sub.ResultBytes:
			frame := wire.Frame{
				Topic:       f.topic,
				Seq:         f.subscriber.LastSeq(),
				PubID:       uint32(f.subscriber.LastPubID()),
				TimestampNs: f.subscriber.LastTimestampNs(),
				Payload:     f.payloadBuf[:n],
			}
			if err := wire.WriteFrame(f.conn, frame); err != nil {
				if err == io.EOF {
					return nil
				}
				return fmt.Errorf("transport: forwarder write: %w", err)
			}
		}
	}
}

// Close closes the underlying connection.
func (f *Forwarder) Close() error {
	return f.conn.Close()
}
