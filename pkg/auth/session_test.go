package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shishobooks/shisho/pkg/models"
)

func TestSessionStore_CreateGetDelete(t *testing.T) {
	store := NewSessionStore()

	id, sess := store.Create()
	sess.User = &models.User{ID: 1, Email: "a@example.com"}

	got, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", got.User.Email)

	store.Delete(id)
	_, ok = store.Get(id)
	assert.False(t, ok)
}

func TestSessionStore_ExpiresAfterTTL(t *testing.T) {
	store := NewSessionStore()
	id, sess := store.Create()
	sess.lastTouched = time.Now().Add(-sessionTTL - time.Second)

	_, ok := store.Get(id)
	assert.False(t, ok)
}

func TestSessionStore_UnknownID(t *testing.T) {
	store := NewSessionStore()
	_, ok := store.Get("does-not-exist")
	assert.False(t, ok)
}
