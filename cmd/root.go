package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "motorlot",
	Short: "Vehicle classifieds API server",
	Long: `motorlot serves the vehicle classifieds API: listings, moderation,
favorites and accounts.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
