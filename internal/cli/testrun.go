package cli

import (
	"github.com/spf13/cobra"

	"github.com/expirywatch/expirywatch/internal/model"
)

func newTestCmd() *cobra.Command {
	var (
		scope     string
		recipient string
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Dry-run a scoped scan with every notice redirected to one address",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeScan(cmd.Context(), model.RunMode{
				Kind:              model.ModeTest,
				Scope:             scope,
				OverrideRecipient: recipient,
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "directory subtree to scan (defaults to the configured search root)")
	cmd.Flags().StringVar(&recipient, "recipient", "", "address that receives every notice")
	cmd.MarkFlagRequired("recipient")

	return cmd
}
