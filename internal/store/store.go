// Package store is the SQL data store behind the dashboard and the chat
// context. It runs on Postgres in production and SQLite for development.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/apollo-risk/risk-assistant/pkg/logger"
)

var (
	// ErrInvalidAuthor is returned when a score names an author that does not exist.
	ErrInvalidAuthor = errors.New("store: entered_by does not reference an existing user")

	// ErrRiskNotFound is returned when a score targets an unknown risk.
	ErrRiskNotFound = errors.New("store: risk not found")

	// ErrInvalidRating is returned for a rating label outside the band vocabulary.
	ErrInvalidRating = errors.New("store: unknown rating label")

	// ErrInvalidScore is returned for a score outside 0..10.
	ErrInvalidScore = errors.New("store: score must be between 0 and 10")
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options configures Open.
type Options struct {
	Driver string
	DSN    string

	// Migrate applies the schema before returning.
	Migrate bool

	// Now overrides the clock used for trend windows and timestamps.
	Now    func() time.Time
	Logger *logger.Logger
}

// Store wraps the database connection
type Store struct {
	db      *sqlx.DB
	dialect dialect
	dsn     string
	now     func() time.Time
	logger  *logger.Logger
}

// Open connects to the database and optionally applies the schema.
func Open(ctx context.Context, opts Options) (*Store, error) {
	d, ok := dialects[opts.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	db, err := sqlx.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if opts.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:      db,
		dialect: d,
		dsn:     opts.DSN,
		now:     opts.Now,
		logger:  opts.Logger,
	}

	if opts.Migrate {
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	s.logger.Info("database connected", zap.String("driver", opts.Driver), zap.Bool("migrated", opts.Migrate))
	return s, nil
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle, for seeding and tests.
func (s *Store) DB() *sqlx.DB {
	return s.db
}
