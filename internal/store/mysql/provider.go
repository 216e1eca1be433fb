// Package mysql registers the MySQL dialector with the snapshot store.
package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/stco/stationrecon/internal/store"
)

func init() {
	store.RegisterDialector("mysql", func(cfg store.DatabaseConfig) (gorm.Dialector, error) {
		var auth string
		if cfg.User != "" {
			auth = cfg.User
			if cfg.Password != "" {
				auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Password)
			}
			auth += "@"
		}
		dsn := fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			auth, cfg.Host, cfg.Port, cfg.Database)
		return mysql.Open(dsn), nil
	})
}
