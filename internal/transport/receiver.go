package transport

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/vedarsh/usrl-core/internal/pub"
	"github.com/vedarsh/usrl-core/internal/region"
	"github.com/vedarsh/usrl-core/internal/transport/wire"
)

// Receiver accepts frames from a single TCP connection and republishes
// their payloads into a local topic through a pub.Publisher. It does not
// preserve the sender's sequence number — the local core assigns its own;
// Seq in the received frame is informational only.
type Receiver struct {
	publisher pub.Publisher
	conn      net.Conn
}

// NewReceiver binds a Receiver to a local topic, publishing everything it
// reads from conn through publisher.
func NewReceiver(publisher pub.Publisher, conn net.Conn) *Receiver {
	return &Receiver{publisher: publisher, conn: conn}
}

// Run reads frames until the connection closes or a publish fails.
// Oversized-payload rejections from the local publisher are not fatal: a
// single malformed frame does not need to take down the whole relay.
func (r *Receiver) Run() error {
	for {
		frame, err := wire.ReadFrame(r.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("transport: receiver read: %w", err)
		}

		if err := r.publisher.Publish(frame.Payload); err != nil {
			if region.IsKind(err, region.KindPayloadTooLarge) {
				continue
			}
			return fmt.Errorf("transport: receiver publish: %w", err)
		}
	}
}

// Close closes the underlying connection.
func (r *Receiver) Close() error {
	return r.conn.Close()
}
