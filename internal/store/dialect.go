package store

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so TEXT timestamps sort lexically in SQLite.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Dialect hides the differences between the supported database engines.
// Queries are written with ? placeholders and passed through Rebind.
type Dialect interface {
	// Name is the configuration name of the dialect.
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// DSN builds the connection string from the store options.
	DSN(opts Options) (string, error)
	// GooseDialect is the dialect name understood by goose.
	GooseDialect() string
	// MigrationsDir is the directory inside migrations.FS holding this
	// dialect's schema.
	MigrationsDir() string
	// Rebind rewrites ? placeholders into the engine's native form.
	Rebind(query string) string
	// TimeValue converts a timestamp into the value bound for it.
	TimeValue(t time.Time) any
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation(err error) bool
	// IsForeignKeyViolation reports whether err is a foreign key failure.
	IsForeignKeyViolation(err error) bool
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "", "sqlite":
		return sqliteDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", name)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string          { return "sqlite" }
func (sqliteDialect) DriverName() string    { return "sqlite" }
func (sqliteDialect) GooseDialect() string  { return "sqlite3" }
func (sqliteDialect) MigrationsDir() string { return "sqlite" }
func (sqliteDialect) Rebind(q string) string {
	return q
}

// DSN applies the connection pragmas through the driver so that every pooled
// connection gets them, and takes the write lock at BEGIN.
func (sqliteDialect) DSN(opts Options) (string, error) {
	if opts.Path == "" {
		return "", errors.New("sqlite database path is required")
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return "file:" + opts.Path + "?" + q.Encode(), nil
}

func (sqliteDialect) TimeValue(t time.Time) any {
	return t.UTC().Format(timeLayout)
}

func (sqliteDialect) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func (sqliteDialect) IsForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

type postgresDialect struct{}

func (postgresDialect) Name() string          { return "postgres" }
func (postgresDialect) DriverName() string    { return "pgx" }
func (postgresDialect) GooseDialect() string  { return "postgres" }
func (postgresDialect) MigrationsDir() string { return "postgres" }

func (postgresDialect) DSN(opts Options) (string, error) {
	if opts.URL == "" {
		return "", errors.New("postgres database url is required")
	}
	return opts.URL, nil
}

// Rebind converts ? placeholders to $1, $2, ... Placeholders inside single
// quoted literals are left alone.
func (postgresDialect) Rebind(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (postgresDialect) TimeValue(t time.Time) any {
	return t.UTC()
}

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (postgresDialect) IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
