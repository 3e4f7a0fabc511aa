package cmd

import (
	"coaching-billing/config"
	"coaching-billing/database"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db := database.InitDB(config.DB_URL)
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Info().Msg("Database schema up to date")
		return nil
	},
}
