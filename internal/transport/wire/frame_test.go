package wire

import (
	"bytes"
	"testing"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	f := Frame{
		Topic:       "ticks",
		Seq:         42,
		PubID:       7,
		TimestampNs: 123456789,
		Payload:     []byte("hello world"),
	}

	got, err := Unmarshal(Marshal(f))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Topic != f.Topic || got.Seq != f.Seq || got.PubID != f.PubID || got.TimestampNs != f.TimestampNs {
		t.Fatalf("field mismatch: got %+v, want %+v", got, f)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch: got %q, want %q", got.Payload, f.Payload)
	}
}

func TestUnmarshalEmptyPayload(t *testing.T) {
	f := Frame{Topic: "t", Seq: 1}
	got, err := Unmarshal(Marshal(f))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Errorf("expected empty payload, got %q", got.Payload)
	}
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Topic: "control", Seq: 9, PubID: 3, Payload: []byte{1, 2, 3}}

	if err := WriteFrame(&buf, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Topic != f.Topic || got.Seq != f.Seq || !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, f)
	}
}
