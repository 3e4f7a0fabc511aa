package cmd

import (
	"fmt"

	"coaching-billing/config"
	"coaching-billing/database"
	"coaching-billing/internal/domain/env"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	refreshEnv         string
	refreshConcurrency int
)

var refreshAccountsCmd = &cobra.Command{
	Use:   "refresh-accounts",
	Short: "Re-read readiness from Stripe for every connected tenant",
	Long: `Runs the pull path for every tenant connected in the given environment.
Use it after a webhook outage; it is safe to run at any time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := env.Parse(refreshEnv)
		if err != nil {
			return err
		}

		svc := newServices(database.InitDB(config.DB_URL))
		sum, err := svc.reconcile.RefreshAll(cmd.Context(), e, refreshConcurrency)
		if err != nil {
			return err
		}

		log.Info().
			Str("env", e.String()).
			Int("total", sum.Total).
			Int("refreshed", sum.Refreshed).
			Int("ready", sum.Ready).
			Int("failed", sum.Failed).
			Msg("Account refresh finished")
		if sum.Failed > 0 {
			return fmt.Errorf("%d of %d accounts could not be refreshed", sum.Failed, sum.Total)
		}
		return nil
	},
}

func init() {
	refreshAccountsCmd.Flags().StringVar(&refreshEnv, "env", "", "environment to refresh (test or live)")
	refreshAccountsCmd.Flags().IntVar(&refreshConcurrency, "concurrency", 4, "maximum concurrent Stripe calls")
	_ = refreshAccountsCmd.MarkFlagRequired("env")
}
