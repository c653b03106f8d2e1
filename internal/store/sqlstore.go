package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Options selects and configures the backing database.
type Options struct {
	Driver       string
	Path         string
	URL          string
	MaxOpenConns int
}

// SQLStore is the database/sql implementation of the record store and the
// typed queries used by the metric engine and session tracker.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to the configured database, applies migrations and returns
// a ready store.
func Open(opts Options) (*SQLStore, error) {
	d, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	if d.Name() == "sqlite" {
		if dir := filepath.Dir(opts.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	dsn, err := d.DSN(opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := RunMigrations(db, d); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLStore{db: db, dialect: d, now: time.Now}, nil
}

// Dialect returns the store's dialect.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// DB exposes the underlying handle for administrative commands.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) rebind(q string) string {
	return s.dialect.Rebind(q)
}

func (s *SQLStore) timeArg(t time.Time) any {
	return s.dialect.TimeValue(t)
}

// withTx runs fn in a transaction, committing on success.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// mapWriteError converts driver constraint failures into store sentinels.
func (s *SQLStore) mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if s.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("%w: a record with the same key already exists", ErrConflict)
	}
	if s.dialect.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: referenced record does not exist", ErrInvalidInput)
	}
	return err
}
