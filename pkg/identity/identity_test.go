package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateNodeID_MintsOnce(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	id1, err := store.LoadOrCreateNodeID()
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := store.LoadOrCreateNodeID()
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestLoadKey_EmptyWhenAbsent(t *testing.T) {
	store := NewStore(t.TempDir())

	key, err := store.LoadKey()
	require.NoError(t, err)
	require.Empty(t, key)
}

func TestSaveKey_ThenLoad(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.SaveKey("deadbeef"))

	key, err := store.LoadKey()
	require.NoError(t, err)
	require.Equal(t, "deadbeef", key)
}

func TestSaveKey_Overwrites(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.SaveKey("keyA"))
	require.NoError(t, store.SaveKey("keyB"))

	key, err := store.LoadKey()
	require.NoError(t, err)
	require.Equal(t, "keyB", key)
}

func TestIdentity_PersistsAcrossStoreInstances(t *testing.T) {
	dir := t.TempDir()

	first := NewStore(dir)
	id, err := first.LoadOrCreateNodeID()
	require.NoError(t, err)

	second := NewStore(dir)
	id2, err := second.LoadOrCreateNodeID()
	require.NoError(t, err)

	require.Equal(t, id, id2)
}
