package transport

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/vedarsh/usrl-core/internal/pub"
	"github.com/vedarsh/usrl-core/internal/region"
	"github.com/vedarsh/usrl-core/internal/transport/wire"
)

func buildTopic(t *testing.T, name string) (*region.Region, region.TopicEntry) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "region")
	r, err := region.Build(path, region.MinSize, []region.TopicConfig{
		{Name: name, SlotCount: 16, PayloadSize: 32, Type: region.RingSWMR},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	topic, err := r.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	return r, topic
}

// TestForwarderStreamsPublishedMessages exercises the relay end to end: a
// Forwarder on one topic streams frames over an in-memory net.Pipe
// connection to a raw reader.
func TestForwarderStreamsPublishedMessages(t *testing.T) {
	r, topic := buildTopic(t, "ticks")
	publisher := pub.NewSWMR(r, topic, 1)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	forwarder := NewForwarder(r, topic, serverConn)
	done := make(chan error, 1)
	go func() { done <- forwarder.Run(time.Millisecond) }()

	if err := publisher.Publish([]byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	frame, err := wire.ReadFrame(clientConn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(frame.Payload) != "hello" || frame.Topic != "ticks" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if frame.PubID != 1 {
		t.Errorf("expected relayed frame to carry the publisher's id 1, got %d", frame.PubID)
	}
	if frame.TimestampNs == 0 {
		t.Errorf("expected relayed frame to carry a non-zero timestamp, got 0")
	}
	if frame.Seq != 1 {
		t.Errorf("expected relayed frame to carry seq 1, got %d", frame.Seq)
	}

	forwarder.Close()
	<-done
}

// TestReceiverRepublishesFrames exercises the receiving half: frames
// written to one side of a pipe appear as published messages on a local
// topic's subscriber.
func TestReceiverRepublishesFrames(t *testing.T) {
	r, topic := buildTopic(t, "control")
	publisher := pub.NewSWMR(r, topic, 2)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	receiver := NewReceiver(publisher, serverConn)
	done := make(chan error, 1)
	go func() { done <- receiver.Run() }()

	if err := wire.WriteFrame(clientConn, wire.Frame{Topic: "control", Payload: []byte("relayed")}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	clientConn.Close()
	<-done

	if head := r.WHead(topic); head != 1 {
		t.Fatalf("expected one republished message, w_head=%d", head)
	}
}
