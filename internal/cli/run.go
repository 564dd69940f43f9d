package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/expirywatch/expirywatch/internal/model"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Scan the directory and send expiry notices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeScan(cmd.Context(), model.RunMode{Kind: model.ModeDefault})
		},
	}
}

// executeScan wires the pipeline and runs it once under the given mode.
func executeScan(ctx context.Context, mode model.RunMode) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := a.scanner.Run(ctx, mode)
	if err != nil {
		return err
	}

	a.logger.ZL.Info().
		Str("run_id", result.RunID.String()).
		Int("processed", result.Processed()).
		Int("delivered", result.Delivered).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failed)).
		Dur("elapsed", result.Elapsed).
		Msg("run finished")
	return nil
}
