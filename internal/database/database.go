package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect identifies the SQL flavour behind a DB.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// DB wraps a connection pool together with its dialect so that services can
// write queries with "?" placeholders regardless of the backing engine.
type DB struct {
	*sql.DB
	dialect Dialect
}

// New creates a new database connection pool. driver is "sqlite" or "pgx".
func New(driver, dataSourceName string) (*DB, error) {
	var (
		dialect Dialect
		dsn     = dataSourceName
	)
	switch driver {
	case "sqlite":
		dialect = SQLite
		dsn = withPragmas(dsn)
	case "pgx":
		dialect = Postgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if dialect == SQLite && strings.HasPrefix(dataSourceName, ":memory:") {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{DB: db, dialect: dialect}, nil
}

// sqlitePragmas are applied to every connection unless the DSN sets them itself.
var sqlitePragmas = []struct{ name, value string }{
	{"foreign_keys", "foreign_keys(1)"},
	{"busy_timeout", "busy_timeout(5000)"},
	{"journal_mode", "journal_mode(WAL)"},
}

func withPragmas(dsn string) string {
	for _, p := range sqlitePragmas {
		if strings.Contains(dsn, "_pragma="+p.name) {
			continue
		}
		sep := "&"
		if !strings.Contains(dsn, "?") {
			sep = "?"
		}
		dsn += sep + "_pragma=" + p.value
	}
	return dsn
}

// Dialect reports the SQL flavour of the pool.
func (db *DB) Dialect() Dialect { return db.dialect }

// Rebind rewrites "?" placeholders into the dialect's native form.
func (db *DB) Rebind(query string) string {
	if db.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// MemberOf returns a predicate matching column against the JSON array bound to
// its single "?" placeholder, so an id set of any size is one parameter and
// one round trip.
func (db *DB) MemberOf(column string) string {
	if db.dialect == Postgres {
		return column + " IN (SELECT jsonb_array_elements_text(?::jsonb))"
	}
	return column + " IN (SELECT value FROM json_each(?))"
}

// JSONList encodes values as the argument for a MemberOf predicate.
func JSONList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(values)
	return string(b)
}

// IsUniqueViolation reports whether err was caused by a unique or primary key constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(se.Error(), "UNIQUE constraint failed")
		}
		return false
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

// Timestamps are stored as UTC Unix nanoseconds so ordering is exact on every dialect.

// ToUnix converts t for storage.
func ToUnix(t time.Time) int64 { return t.UTC().UnixNano() }

// FromUnix converts a stored timestamp back into a time.Time.
func FromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		created_at BIGINT NOT NULL
	)`,

	// The two sides of every follow edge are stored independently.
	`CREATE TABLE IF NOT EXISTS following (
		user_id TEXT NOT NULL,
		followee_id TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, followee_id)
	)`,
	`CREATE TABLE IF NOT EXISTS followers (
		user_id TEXT NOT NULL,
		follower_id TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, follower_id)
	)`,

	`CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL PRIMARY KEY,
		author_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_author_created ON posts (author_id, created_at)`,

	// user_id carries no foreign key: engagement may outlive the account.
	`CREATE TABLE IF NOT EXISTS likes (
		id TEXT NOT NULL PRIMARY KEY,
		post_id TEXT NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		liked_at BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_likes_post_user ON likes (post_id, user_id)`,

	`CREATE TABLE IF NOT EXISTS comments (
		id TEXT NOT NULL PRIMARY KEY,
		post_id TEXT NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		commented_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_post_commented ON comments (post_id, commented_at)`,

	`CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		user_id TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_created ON events (created_at)`,
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
