package events

import (
	"context"
	"testing"
)

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), SubjectAssetCreated, AssetEvent{AssetTag: "A-1"}); err != nil {
		t.Fatalf("Nop.Publish: %v", err)
	}
}

func TestNATSPublisher_Nil(t *testing.T) {
	var p *NATSPublisher
	if err := p.Publish(context.Background(), SubjectAssetCreated, nil); err == nil {
		t.Fatal("expected error from nil publisher")
	}
	p.Close()
}

func TestNewNATSPublisher_Unreachable(t *testing.T) {
	if _, err := NewNATSPublisher("nats://127.0.0.1:1"); err == nil {
		t.Fatal("expected connection error")
	}
}
