package cli

import (
	"github.com/spf13/cobra"

	"github.com/expirywatch/expirywatch/internal/model"
)

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "List the accounts a run would notify, without sending any mail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeScan(cmd.Context(), model.RunMode{Kind: model.ModeDemo})
		},
	}
}
