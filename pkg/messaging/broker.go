package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}

// Channels used for scan events.
const (
	ChannelRunCompleted = "expiry.run.completed"
	ChannelNoticeSent   = "expiry.notice.sent"
	ChannelAudit        = "expiry.audit"
)

// Message is the envelope published on scan channels.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
