// Package cli resolves the command line into one immutable run mode and
// hands it to the scan pipeline. The four modes are mutually exclusive by
// construction: each is its own subcommand.
package cli

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "expirywatch",
	Short: "Password expiry notifier",
	Long: `expirywatch scans a directory of user accounts, determines which
passwords expire within the configured warning window, and emails each
affected user a notice with password-change instructions. A summary of every
run goes to the administrator.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config/config.yaml)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDemoCmd())
	rootCmd.AddCommand(newPreviewCmd())
	rootCmd.AddCommand(newTestCmd())
	rootCmd.AddCommand(newAuditCmd())
}
