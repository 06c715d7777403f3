package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// NewDatabaseConnection pgx pool for the member table reads
func NewDatabaseConnection(d Connection) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(d.ConnectStr)
	if err != nil {
		return nil, fmt.Errorf("parse pg config: %w", err)
	}

	return retry("postgres", d.RetryCount, d.RetryInterval, func() (*pgxpool.Pool, error) {
		return pgxpool.ConnectConfig(context.Background(), dbConfig)
	})
}

// NewPGConnection gorm on the same postgres, used by member_device
func NewPGConnection(d Connection) (*gorm.DB, error) {
	return retry("gorm postgres", d.RetryCount, d.RetryInterval, func() (*gorm.DB, error) {
		return gorm.Open(postgres.Open(d.ConnectStr), &gorm.Config{
			Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
		})
	})
}
