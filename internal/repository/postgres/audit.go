package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/expirywatch/expirywatch/internal/model"
)

// AuditRepository persists run audit events.
type AuditRepository interface {
	Create(ctx context.Context, event *model.AuditEvent) error
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, event *model.AuditEvent) error {
	query := `
		INSERT INTO audit_events (id, run_id, code, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.RunID,
		event.Code,
		event.Message,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}

	return nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit events: %w", err)
	}

	return result.RowsAffected()
}
