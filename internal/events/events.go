// Package events publishes asset domain events to NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectAssetCreated = "assets.created"
	SubjectAssetUpdated = "assets.updated"
	SubjectAssetDeleted = "assets.deleted"
)

// AssetEvent is the payload published after an asset change commits.
type AssetEvent struct {
	AssetID    uint      `json:"assetId"`
	AssetTag   string    `json:"assetTag"`
	SerialNo   string    `json:"serialNo"`
	Status     string    `json:"status"`
	User       string    `json:"user"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// NATSPublisher wraps a core NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the provided NATS endpoint.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish encodes v as JSON and publishes it to the given subject.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, v any) error {
	if p == nil || p.conn == nil {
		return errors.New("nil publisher")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, data)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
