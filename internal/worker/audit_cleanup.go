package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/expirywatch/expirywatch/internal/repository/postgres"
	"github.com/expirywatch/expirywatch/pkg/logger"
)

// AuditCleanup prunes audit events older than the retention period from the
// audit store. Runs are one-shot; scheduling is left to the same scheduler
// that drives the scan.
type AuditCleanup struct {
	repo          postgres.AuditRepository
	retentionDays int
	logger        *logger.Logger
}

func NewAuditCleanup(repo postgres.AuditRepository, retentionDays int, log *logger.Logger) *AuditCleanup {
	return &AuditCleanup{
		repo:          repo,
		retentionDays: retentionDays,
		logger:        log,
	}
}

func (w *AuditCleanup) Run(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.Cleanup(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup audit events: %w", err)
	}

	w.logger.ZL.Info().
		Int64("removed", rows).
		Time("cutoff", cutoff).
		Msg("audit store pruned")
	return nil
}
