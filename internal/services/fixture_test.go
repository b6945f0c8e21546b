package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/ender-feed-be/internal/database"
	"github.com/isdelr/ender-feed-be/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	return openTestDB(t, filepath.Join(t.TempDir(), "feed.db"))
}

func openTestDB(t *testing.T, dsn string) *database.DB {
	t.Helper()
	db, err := database.New("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

// clock hands out strictly increasing timestamps one second apart.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	db      *database.DB
	events  *EventService
	users   *UserService
	graph   *GraphService
	content *ContentService
	clock   *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, newTestDB(t))
}

func newFixtureOn(t *testing.T, db *database.DB) *fixture {
	t.Helper()
	events := NewEventService(db, nil)
	users := NewUserService(db, events)
	f := &fixture{
		db:      db,
		events:  events,
		users:   users,
		graph:   NewGraphService(db, users, events, GraphOptions{WriteRetries: 1, RetryInterval: time.Millisecond}),
		content: NewContentService(db, users, events, nil),
		clock:   &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.graph.now = f.clock.Now
	f.content.now = f.clock.Now
	return f
}

func (f *fixture) user(t *testing.T, name string) models.User {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), name, name+"@example.com")
	require.NoError(t, err)
	return u
}

func (f *fixture) post(t *testing.T, author models.User, content string) models.Post {
	t.Helper()
	p, err := f.content.CreatePost(context.Background(), author.ID, content)
	require.NoError(t, err)
	return p
}

func (f *fixture) follow(t *testing.T, follower, followee models.User) {
	t.Helper()
	require.NoError(t, f.graph.Follow(context.Background(), follower.ID, followee.ID))
}

func eventTypes(t *testing.T, events EventServiceProvider) []string {
	t.Helper()
	recent, err := events.GetRecentEvents(context.Background(), 100)
	require.NoError(t, err)
	types := make([]string, 0, len(recent))
	for _, e := range recent {
		types = append(types, e.Type)
	}
	return types
}
