package cmd

import (
	"fmt"
	"os"

	"coaching-billing/config"
	"coaching-billing/internal/logging"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coaching-billing",
	Short: "Session review and Stripe Connect billing for coaching practices",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadEnv()
		logging.Init(logging.Config{
			Format:    config.LOG_FORMAT,
			Level:     config.LOG_LEVEL,
			Component: "coaching-billing",
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(refreshAccountsCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
