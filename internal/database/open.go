package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config selects the database backend. SQLite is the zero-setup default;
// Postgres and MySQL serve multi-instance deployments.
type Config struct {
	Driver string     `yaml:"driver" json:"driver"` // sqlite | postgres | mysql
	DSN    string     `yaml:"dsn" json:"dsn"`
	Pool   PoolConfig `yaml:"pool" json:"pool"`
}

// DefaultConfig returns a file-backed SQLite configuration.
func DefaultConfig() Config {
	return Config{
		Driver: "sqlite",
		DSN:    "chatmode.db",
		Pool:   DefaultPoolConfig(),
	}
}

// Open connects to the configured database.
func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "chatmode.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}
