package database

import (
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/casedesk/lawfirm-backend/pkg/logger"
)

func Init() *gorm.DB {
	dsn := os.Getenv("DATABASE_URL")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		// NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to connect database")
	}
	return db
}
