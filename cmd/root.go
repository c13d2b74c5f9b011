package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "claims",
	Short: "Insurance claims service",
	Long:  `Backend service for the insurance claims lifecycle: submission, document uploads, admin review, and payouts`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
