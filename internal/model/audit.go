package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit event codes. The sink receives these alongside a free-text message.
const (
	AuditCodeRunStarted   = 100
	AuditCodeRunCompleted = 101
	AuditCodeRunAborted   = 102
)

// AuditEvent is one informational audit record. Exactly one is emitted at run
// start and one at run end; an abort attempts a final event before the error
// propagates.
type AuditEvent struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RunID     uuid.UUID `json:"run_id" db:"run_id"`
	Code      int       `json:"code" db:"code"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
