package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func TestMigrateIsRepeatable(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(context.Background(), db))
}

func TestRebind(t *testing.T) {
	q := "SELECT id FROM likes WHERE post_id = ? AND user_id = ?"

	sqliteDB := &DB{dialect: SQLite}
	assert.Equal(t, q, sqliteDB.Rebind(q))

	pgDB := &DB{dialect: Postgres}
	assert.Equal(t, "SELECT id FROM likes WHERE post_id = $1 AND user_id = $2", pgDB.Rebind(q))
}

func TestMemberOf(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	insert := "INSERT INTO users (id, username, email, created_at) VALUES (?, ?, ?, ?)"
	for _, id := range []string{"u1", "u2", "u3"} {
		_, err := db.ExecContext(ctx, insert, id, "name-"+id, id+"@example.com", ToUnix(time.Now()))
		require.NoError(t, err)
	}

	ids := make([]string, 0, 2000)
	for i := 0; i < 2000; i++ {
		ids = append(ids, fmt.Sprintf("missing-%d", i))
	}
	ids = append(ids, "u1", "u3")

	rows, err := db.QueryContext(ctx, "SELECT id FROM users WHERE "+db.MemberOf("id")+" ORDER BY id", JSONList(ids))
	require.NoError(t, err)
	defer rows.Close()
	var got []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		got = append(got, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"u1", "u3"}, got)

	pg := &DB{dialect: Postgres}
	assert.Equal(t, "SELECT id FROM users WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))",
		pg.Rebind("SELECT id FROM users WHERE "+pg.MemberOf("id")))
	assert.Equal(t, "[]", JSONList(nil))
	assert.Equal(t, `["a","b"]`, JSONList([]string{"a", "b"}))
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	insert := "INSERT INTO users (id, username, email, created_at) VALUES (?, ?, ?, ?)"
	_, err := db.ExecContext(ctx, insert, "u1", "alice", "alice@example.com", ToUnix(time.Now()))
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "u2", "alice2", "alice@example.com", ToUnix(time.Now()))
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(context.Canceled))
}

func TestUnknownDriver(t *testing.T) {
	_, err := New("mysql", "whatever")
	assert.Error(t, err)
}

func TestUnixRoundTrip(t *testing.T) {
	ts := time.Date(2026, 10, 17, 9, 30, 0, 123456789, time.FixedZone("X", 3600))
	got := FromUnix(ToUnix(ts))
	assert.True(t, ts.Equal(got))
	assert.Equal(t, time.UTC, got.Location())
}

func TestWithPragmas(t *testing.T) {
	assert.Equal(t, "f.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", withPragmas("f.db"))
	assert.Equal(t, "f.db?_pragma=busy_timeout(100)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", withPragmas("f.db?_pragma=busy_timeout(100)"))
	assert.Equal(t, "f.db?_pragma=foreign_keys(0)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", withPragmas("f.db?_pragma=foreign_keys(0)"))
}

func TestForeignKeysOnWithCustomDSN(t *testing.T) {
	db, err := New("sqlite", filepath.Join(t.TempDir(), "custom.db")+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	defer db.Close()

	var on int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&on))
	assert.Equal(t, 1, on)
}
