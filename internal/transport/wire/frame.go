// Package wire defines the on-the-wire frame internal/transport relays
// between two independent cores. Fields are encoded with
// google.golang.org/protobuf/encoding/protowire directly rather than through
// a generated .pb.go: the frame is small, stable, and internal-only, so the
// protobuf wire format is used for its varint/tag economy and forward
// compatibility (new fields append cleanly) without taking on a protoc
// build step for one five-field message.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Frame is one relayed message: the topic it came from, its core sequence
// number, publisher id, timestamp, and payload. Field numbers below are
// part of the wire contract and must never be reused for a different
// meaning.
type Frame struct {
	Topic       string
	Seq         uint64
	PubID       uint32
	TimestampNs uint64
	Payload     []byte
}

const (
	fieldTopic       protowire.Number = 1
	fieldSeq         protowire.Number = 2
	fieldPubID       protowire.Number = 3
	fieldTimestampNs protowire.Number = 4
	fieldPayload     protowire.Number = 5
)

// Marshal encodes f using the standard protobuf wire format: each field is
// a (tag, varint|length-delimited) pair, in field-number order.
func Marshal(f Frame) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTopic, protowire.BytesType)
	b = protowire.AppendString(b, f.Topic)
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, f.Seq)
	b = protowire.AppendTag(b, fieldPubID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.PubID))
	b = protowire.AppendTag(b, fieldTimestampNs, protowire.VarintType)
	b = protowire.AppendVarint(b, f.TimestampNs)
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, f.Payload)
	return b
}

// Unmarshal decodes a Frame previously produced by Marshal. Unknown fields
// are skipped, not rejected, so a newer sender can add fields an older
// receiver still understands the rest of.
func Unmarshal(data []byte) (Frame, error) {
	var f Frame
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Frame{}, fmt.Errorf("wire: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldTopic:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return Frame{}, fmt.Errorf("wire: invalid topic field: %w", protowire.ParseError(n))
			}
			f.Topic = v
			data = data[n:]
		case fieldSeq:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Frame{}, fmt.Errorf("wire: invalid seq field: %w", protowire.ParseError(n))
			}
			f.Seq = v
			data = data[n:]
		case fieldPubID:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Frame{}, fmt.Errorf("wire: invalid pub_id field: %w", protowire.ParseError(n))
			}
			f.PubID = uint32(v)
			data = data[n:]
		case fieldTimestampNs:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Frame{}, fmt.Errorf("wire: invalid timestamp field: %w", protowire.ParseError(n))
			}
			f.TimestampNs = v
			data = data[n:]
		case fieldPayload:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Frame{}, fmt.Errorf("wire: invalid payload field: %w", protowire.ParseError(n))
			}
			f.Payload = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Frame{}, fmt.Errorf("wire: invalid unknown field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return f, nil
}
