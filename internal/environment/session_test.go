package environment

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)

	_, ok, err := store.Get(SessionKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(SessionKey, "first"))
	require.NoError(t, store.Set(SessionKey, "second"))

	value, ok, err := store.Get(SessionKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", value)
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err = reopened.Get(SessionKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", value)
}

func TestSQLiteStore_SessionSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	first := NewSnapshotter(nil, store).Capture("")
	require.NoError(t, store.Close())

	store, err = OpenSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()
	second := NewSnapshotter(nil, store).Capture("")

	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestSessionID_EmptyStoredValueIsReplaced(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(SessionKey, ""))

	id := sessionID(store)
	assert.NotEmpty(t, id)

	stored, _, _ := store.Get(SessionKey)
	assert.Equal(t, id, stored)
}
