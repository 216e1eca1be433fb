// Package sqlite registers the SQLite dialector with the snapshot store.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stco/stationrecon/internal/store"
)

func init() {
	store.RegisterDialector("sqlite", func(cfg store.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("sqlite database path cannot be empty")
		}
		return sqlite.Open(cfg.Database), nil
	})
}
