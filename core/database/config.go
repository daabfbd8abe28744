package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Supported storage engines.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds database connection settings.
type Config struct {
	Driver string `yaml:"driver" envconfig:"DB_DRIVER"`
	// Path is the SQLite database file.
	Path string `yaml:"path" envconfig:"DB_PATH"`

	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`

	// BusyRetries bounds how many times a write transaction is replayed on lock contention.
	BusyRetries   int `yaml:"busy_retries" envconfig:"DB_BUSY_RETRIES"`
	BusyBackoffMS int `yaml:"busy_backoff_ms" envconfig:"DB_BUSY_BACKOFF_MS"`
}

// Normalize validates the engine selection and fills defaults.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case "", "sqlite3":
		c.Driver = DriverSQLite
	case "postgresql", "pg":
		c.Driver = DriverPostgres
	}
	switch c.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			c.Path = "travelwallet.db"
		}
		if c.MaxConnections <= 0 {
			c.MaxConnections = 4
		}
	case DriverPostgres:
		if c.Host == "" || c.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
		if c.MaxConnections <= 0 {
			c.MaxConnections = 10
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: sqlite, postgres", c.Driver)
	}
	if c.BusyRetries < 0 {
		return fmt.Errorf("database.busy_retries must be >= 0")
	}
	if c.BusyRetries == 0 {
		c.BusyRetries = 5
	}
	if c.BusyBackoffMS <= 0 {
		c.BusyBackoffMS = 25
	}
	return nil
}

// BusyBackoff returns the base delay between contention retries.
func (c Config) BusyBackoff() time.Duration {
	return time.Duration(c.BusyBackoffMS) * time.Millisecond
}

// DSN returns the driver-specific connection string for database/sql.
func (c Config) DSN() string {
	if c.Driver == DriverPostgres {
		return fmt.Sprintf(
			"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
		)
	}
	// Immediate transactions take the write lock up front so concurrent
	// writers wait on busy_timeout instead of failing on lock upgrade.
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + c.Path + "?" + q.Encode()
}

// MigrateURL returns the database URL understood by golang-migrate.
func (c Config) MigrateURL() string {
	if c.Driver == DriverPostgres {
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Name, c.SSLMode,
		)
	}
	return "sqlite://" + c.Path
}
