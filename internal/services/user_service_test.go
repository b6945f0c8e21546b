package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.CreateUser(ctx, "  alice ", "Alice@Example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)

	got, err := f.users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

	assert.Contains(t, eventTypes(t, f.events), "user.created")
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.CreateUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	_, err = f.users.CreateUser(ctx, "alice2", "ALICE@example.com")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateUserRequiresFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.CreateUser(context.Background(), "", "x@example.com")
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = f.users.CreateUser(context.Background(), "x", "  ")
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestGetUserByIDNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUsernamesSkipsUnknownIDs(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	names, err := f.users.GetUsernames(context.Background(), []string{alice.ID, "ghost", bob.ID, alice.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{alice.ID: "alice", bob.ID: "bob"}, names)
}

func TestGetUsernamesLargeBatch(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	ids := make([]string, 0, 1201)
	for i := 0; i < 1200; i++ {
		ids = append(ids, fmt.Sprintf("ghost-%d", i))
	}
	ids = append(ids, alice.ID)

	names, err := f.users.GetUsernames(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{alice.ID: "alice"}, names)
}

func TestGetUsersByIDsSortsByUsername(t *testing.T) {
	f := newFixture(t)
	carol := f.user(t, "carol")
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	users, err := f.users.GetUsersByIDs(context.Background(), []string{carol.ID, bob.ID, alice.ID, "ghost"})
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"alice", "bob", "carol"}, []string{users[0].Username, users[1].Username, users[2].Username})

	empty, err := f.users.GetUsersByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "", "b", "a"}))
}
