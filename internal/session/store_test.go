package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sess := &Session{
		ID:        "s1",
		UserID:    "u1",
		Roles:     []string{"EDIT_ENGAGEMENT"},
		Readiness: ReadinessReady,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	// Reads are snapshots: mutating the copy must not leak back.
	got.Roles[0] = "mutated"
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"EDIT_ENGAGEMENT"}, again.Roles)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sess.Readiness = ReadinessUnauthenticated
	require.NoError(t, store.Update(ctx, sess))
	updated, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, ReadinessUnauthenticated, updated.Readiness)

	assert.ErrorIs(t, store.Update(ctx, &Session{ID: "missing"}), ErrSessionNotFound)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_ExpiredSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Create(ctx, &Session{
		ID:        "old",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err := store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestMemoryStore_DeleteByUserID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, store.Create(ctx, &Session{ID: "a", UserID: "u1", ExpiresAt: expiry}))
	require.NoError(t, store.Create(ctx, &Session{ID: "b", UserID: "u1", ExpiresAt: expiry}))
	require.NoError(t, store.Create(ctx, &Session{ID: "c", UserID: "u2", ExpiresAt: expiry}))

	require.NoError(t, store.DeleteByUserID(ctx, "u1"))

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestReadiness(t *testing.T) {
	assert.False(t, ReadinessUnresolved.Terminal())
	assert.False(t, ReadinessPendingRoles.Terminal())
	assert.True(t, ReadinessReady.Terminal())
	assert.True(t, ReadinessUnauthenticated.Terminal())

	assert.False(t, (&Session{Readiness: ReadinessUnresolved}).Authenticated())
	assert.True(t, (&Session{Readiness: ReadinessPendingRoles}).Authenticated())
	assert.True(t, (&Session{Readiness: ReadinessReady}).Authenticated())
	assert.False(t, (&Session{Readiness: ReadinessUnauthenticated}).Authenticated())
}
