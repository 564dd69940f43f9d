package cli

import (
	"github.com/spf13/cobra"

	"github.com/expirywatch/expirywatch/internal/repository/postgres"
	"github.com/expirywatch/expirywatch/internal/worker"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit store maintenance",
	}
	cmd.AddCommand(newAuditCleanupCmd())
	return cmd
}

func newAuditCleanupCmd() *cobra.Command {
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Prune audit events older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildCore()
			if err != nil {
				return err
			}
			defer a.Close()

			db, err := a.database()
			if err != nil {
				return err
			}

			repo := postgres.NewAuditRepository(postgres.NewBaseRepository(db))
			return worker.NewAuditCleanup(repo, retentionDays, a.logger).Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&retentionDays, "retention-days", 90, "events older than this are removed")
	return cmd
}
