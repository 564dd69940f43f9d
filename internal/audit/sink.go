// Package audit emits informational run events to one or more sinks: the
// structured log, the audit store, and optionally a message broker.
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/expirywatch/expirywatch/internal/model"
	"github.com/expirywatch/expirywatch/internal/repository/postgres"
	"github.com/expirywatch/expirywatch/pkg/logger"
	"github.com/expirywatch/expirywatch/pkg/messaging"
)

// Sink records one audit event. All events are informational; severity is
// carried by the event code.
type Sink interface {
	Record(ctx context.Context, runID uuid.UUID, code int, message string) error
}

type logSink struct {
	logger *logger.Logger
}

// NewLogSink records audit events on the structured log.
func NewLogSink(l *logger.Logger) Sink {
	return &logSink{logger: l}
}

func (s *logSink) Record(ctx context.Context, runID uuid.UUID, code int, message string) error {
	s.logger.ZL.Info().
		Str("run_id", runID.String()).
		Int("event_code", code).
		Msg(message)
	return nil
}

type storeSink struct {
	repo postgres.AuditRepository
}

// NewStoreSink persists audit events to the audit store.
func NewStoreSink(repo postgres.AuditRepository) Sink {
	return &storeSink{repo: repo}
}

func (s *storeSink) Record(ctx context.Context, runID uuid.UUID, code int, message string) error {
	return s.repo.Create(ctx, &model.AuditEvent{
		ID:      uuid.New(),
		RunID:   runID,
		Code:    code,
		Message: message,
	})
}

type brokerSink struct {
	broker  messaging.Broker
	channel string
}

// NewBrokerSink publishes audit events for downstream consumers.
func NewBrokerSink(broker messaging.Broker, channel string) Sink {
	return &brokerSink{broker: broker, channel: channel}
}

func (s *brokerSink) Record(ctx context.Context, runID uuid.UUID, code int, message string) error {
	return s.broker.Publish(ctx, s.channel, messaging.Message{
		Type: "audit",
		Payload: model.AuditEvent{
			ID:      uuid.New(),
			RunID:   runID,
			Code:    code,
			Message: message,
		},
	})
}

type multiSink struct {
	sinks []Sink
}

// NewMultiSink fans one event out to every sink. The first error is
// returned, after all sinks have been attempted.
func NewMultiSink(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

func (s *multiSink) Record(ctx context.Context, runID uuid.UUID, code int, message string) error {
	var first error
	for _, sink := range s.sinks {
		if err := sink.Record(ctx, runID, code, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}
