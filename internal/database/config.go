package database

import "time"

const (
	defaultMaxIdleConns    = 2
	defaultMaxOpenConns    = 2
	defaultConnMaxLifetime = time.Hour
)

// Config holds database configuration settings
type Config struct {
	// Required settings
	DBPath string

	// Optional settings (will use defaults if not set)
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	CacheSizeKB     int
	BusyTimeoutMS   int
}

// NewConfig creates a new database configuration with default values.
// The pool is deliberately small: the polling loop is the only writer.
func NewConfig(dbPath string) *Config {
	return &Config{
		DBPath:          dbPath,
		ConnMaxLifetime: defaultConnMaxLifetime,
		CacheSizeKB:     -16000, // 16MB
		BusyTimeoutMS:   5000,
	}
}
