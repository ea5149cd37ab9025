package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame so a corrupt or malicious length
// prefix can never cause an unbounded read allocation.
const MaxFrameSize = 16 << 20

// WriteFrame writes f to w as a big-endian uint32 length prefix followed by
// its protobuf-encoded bytes.
func WriteFrame(w io.Writer, f Frame) error {
	body := Marshal(f)
	if len(body) > MaxFrameSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds max %d", len(body), MaxFrameSize)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return Frame{}, fmt.Errorf("wire: frame of %d bytes exceeds max %d", length, MaxFrameSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("wire: read frame body: %w", err)
	}
	return Unmarshal(body)
}
