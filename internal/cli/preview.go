package cli

import (
	"github.com/spf13/cobra"

	"github.com/expirywatch/expirywatch/internal/model"
)

func newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <account-id>",
		Short: "Render the notice for one account, bypassing eligibility checks",
		Long: `Preview renders the notice for a single named account as if its password
expired tomorrow, regardless of its real state. Whether the rendered notice is
actually delivered (to the admin address) is controlled by mail.preview_deliver.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeScan(cmd.Context(), model.RunMode{
				Kind:      model.ModePreview,
				AccountID: args[0],
			})
		},
	}
}
