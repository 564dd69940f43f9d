package email

import (
	"context"
)

// Message is one outbound mail. The body is HTML.
type Message struct {
	To           string
	From         string
	Subject      string
	Body         string
	HighPriority bool
}

// Service delivers messages. The core consumes nothing from the transport
// beyond success or failure.
type Service interface {
	Send(ctx context.Context, msg *Message) error
}
