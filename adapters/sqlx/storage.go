// Package sqlx stores device identifiers in PostgreSQL or MySQL through jmoiron/sqlx.
package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"leaderboardkit/engine"
)

// Driver names a supported database driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds database connection configuration.
type Config struct {
	Driver          Driver        `json:"driver" yaml:"driver" env:"LEADERBOARD_SQL_DRIVER"`
	DSN             string        `json:"dsn" yaml:"dsn" env:"LEADERBOARD_SQL_DSN"`
	Table           string        `json:"table" yaml:"table"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	// Migrate creates the table on startup when it does not exist.
	Migrate bool `json:"migrate" yaml:"migrate"`
}

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "device_identifiers"

// DefaultConfig returns defaults for the given driver. DSN is left empty.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		Table:           DefaultTable,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		Migrate:         true,
	}
}

// Store implements engine.IdentifierStore on a single table:
// {table}(name primary key, value, updated_at).
type Store struct {
	db     *sqlx.DB
	driver Driver
	table  string
}

// New opens the database described by cfg and verifies the connection.
func New(cfg Config) (*Store, error) {
	if cfg.Driver != DriverPostgres && cfg.Driver != DriverMySQL {
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("sql dsn is required")
	}
	db, err := sqlx.Connect(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := NewWithDB(db, cfg.Driver)
	if cfg.Table != "" {
		s.table = cfg.Table
	}
	if cfg.Migrate {
		if err := s.Migrate(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing connection (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver, table: DefaultTable}
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the identifier table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name VARCHAR(191) PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, name string) (string, error) {
	var value string
	q := s.db.Rebind(fmt.Sprintf(`SELECT value FROM %s WHERE name = ?`, s.table))
	err := s.db.GetContext(ctx, &value, q, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", engine.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load identifier: %w", err)
	}
	return value, nil
}

func (s *Store) Save(ctx context.Context, name, value string) error {
	if _, err := s.db.ExecContext(ctx, s.upsertQuery(), name, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save identifier: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	q := s.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, s.table))
	if _, err := s.db.ExecContext(ctx, q, name); err != nil {
		return fmt.Errorf("failed to delete identifier: %w", err)
	}
	return nil
}

func (s *Store) upsertQuery() string {
	if s.driver == DriverMySQL {
		return fmt.Sprintf(`INSERT INTO %s (name, value, updated_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`, s.table)
	}
	return fmt.Sprintf(`INSERT INTO %s (name, value, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, s.table)
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ engine.IdentifierStore = (*Store)(nil)
