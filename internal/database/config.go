package database

import (
	"fmt"
	"time"
)

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	// Driver specifies the database driver (postgres, sqlite)
	Driver string

	// PostgreSQL-specific configuration
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	// SQLite-specific configuration
	Path string

	// Connection pool; zero values use the package defaults
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// RetryDelays are the waits between connection attempts; nil uses the defaults
	RetryDelays []time.Duration
}

// String returns a string representation with sensitive data masked
func (c *DatabaseConfig) String() string {
	return fmt.Sprintf("DatabaseConfig{Driver: %s, Host: %s, Port: %s, User: %s, Password: [REDACTED], Name: %s, SSLMode: %s, Path: %s}",
		c.Driver, c.Host, c.Port, c.User, c.Name, c.SSLMode, c.Path)
}

// DSN builds a Data Source Name string based on the driver
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres", "postgresql":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
	case "sqlite", "":
		return c.Path
	default:
		return ""
	}
}

func (c *DatabaseConfig) poolSettings() (maxOpen, maxIdle int, lifetime time.Duration) {
	maxOpen, maxIdle, lifetime = 25, 5, 5*time.Minute
	if c.MaxOpenConns > 0 {
		maxOpen = c.MaxOpenConns
	}
	if c.MaxIdleConns > 0 {
		maxIdle = c.MaxIdleConns
	}
	if c.ConnMaxLifetime > 0 {
		lifetime = c.ConnMaxLifetime
	}
	return maxOpen, maxIdle, lifetime
}
