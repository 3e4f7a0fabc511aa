package database

import (
	"coaching-billing/internal/domain/billing"
	"coaching-billing/internal/domain/companies"
	"coaching-billing/internal/domain/sessions"
	"coaching-billing/internal/domain/users"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(dsn string) *gorm.DB {
	if dsn == "" {
		log.Fatal().Msg("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	DB = db
	log.Info().Msg("Connected to database")
	return db
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&companies.Company{},
		&users.User{},
		&sessions.Session{},
		&billing.BillingRecord{},
	)
}
