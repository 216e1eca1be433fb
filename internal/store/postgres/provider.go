// Package postgres registers the PostgreSQL dialector with the snapshot
// store.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stco/stationrecon/internal/store"
)

func init() {
	store.RegisterDialector("postgres", func(cfg store.DatabaseConfig) (gorm.Dialector, error) {
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.Sslmode)
		return postgres.Open(dsn), nil
	})
}
