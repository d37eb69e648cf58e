package dbutils

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jiaming2012/backoffice/src/logger"
	"github.com/jiaming2012/backoffice/src/models"
)

// Records lists every table owned by the back office, in migration order.
func Records() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.Trade{},
		&models.MasterTrader{},
		&models.CopyRelationship{},
		&models.CopyTradeRecord{},
		&models.CopyCommissionRecord{},
		&models.CopySettings{},
		&models.IBUser{},
		&models.IBWallet{},
		&models.CommissionPlan{},
		&models.CommissionRecord{},
		&models.Challenge{},
		&models.ChallengeAccount{},
		&models.ProcessedTradeEvent{},
	}
}

func InitPostgresWithUrl(url string, level gormlogger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger:         logger.NewLogrusLogger(nil).LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, record := range Records() {
		if err := db.AutoMigrate(record); err != nil {
			return nil, fmt.Errorf("failed to migrate %T: %w", record, err)
		}
	}

	return db, nil
}

func PostgresUrl(host, port, user, password, dbName string) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC", host, user, password, dbName, port)
}

func InitPostgres(host, port, user, password, dbName string, level gormlogger.LogLevel) (*gorm.DB, error) {
	return InitPostgresWithUrl(PostgresUrl(host, port, user, password, dbName), level)
}
