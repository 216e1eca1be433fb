package store

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stco/stationrecon/internal/support/logger"
)

// DatabaseConfig selects and parameterizes the snapshot database.
type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Sslmode  string `yaml:"sslmode"`
	Pool     struct {
		MaxOpenConns           int `yaml:"max_open_conns"`
		MaxIdleConns           int `yaml:"max_idle_conns"`
		ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
	} `yaml:"pool"`
}

// DialectorFactory builds a gorm.Dialector from a DatabaseConfig.
type DialectorFactory func(cfg DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for a database type. The
// sqlite, mysql and postgres subpackages register themselves in init.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("dialector for type '%s' already registered, overwriting", dbType)
	}
	dialectorRegistry[dbType] = factory
}

func dialectorFor(cfg DatabaseConfig) (gorm.Dialector, error) {
	dialectorMutex.RLock()
	factory, ok := dialectorRegistry[cfg.Type]
	dialectorMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s", cfg.Type)
	}
	return factory(cfg)
}

// Open connects to the configured database and applies pool settings.
func Open(cfg DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if cfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}

	logger.Infof("connected to %s snapshot database", cfg.Type)
	return db, nil
}
