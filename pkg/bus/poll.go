package bus

import (
	"context"
	"time"

	"github.com/vedarsh/usrl-core/internal/sub"
)

// PollRecv is a convenience loop around Recv for callers that want to block
// for a message instead of polling manually. It is built entirely on the
// non-blocking Next the core provides; Next itself never blocks.
func (b *Bus) PollRecv(ctx context.Context, topic, subscriberID string, buf []byte) (sub.Result, int, error) {
	backoff := time.Microsecond
	const maxBackoff = 10 * time.Millisecond

	for {
		result, n, err := b.Recv(topic, subscriberID, buf)
		if err != nil || result != sub.ResultEmpty {
			return result, n, err
		}

		select {
		case <-ctx.Done():
			return sub.ResultEmpty, 0, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
