package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()

	store, err := NewFileStore(filepath.Join(t.TempDir(), "prefs"))
	require.NoError(t, err)

	return store
}

func TestFileStoreSetGet(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Get("GEN_DB_URL")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("GEN_DB_URL", "postgres://localhost/app"))

	value, ok, err := store.Get("GEN_DB_URL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "postgres://localhost/app", value)

	require.NoError(t, store.Set("GEN_DB_URL", "mysql://root@db/app"))

	value, _, err = store.Get("GEN_DB_URL")
	require.NoError(t, err)
	assert.Equal(t, "mysql://root@db/app", value, "last write wins")
}

func TestFileStoreEmptyValueIsPresent(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("GEN_DB_URL", ""))

	value, ok, err := store.Get("GEN_DB_URL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, value)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prefs")

	first, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set("theme", "dark"))

	second, err := NewFileStore(dir)
	require.NoError(t, err)

	value, ok, err := second.Get("theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", value)
}

func TestFileStoreDeleteAndClear(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("a", "1"))
	require.NoError(t, store.Set("b", "2"))
	require.NoError(t, store.Delete("a"))
	require.NoError(t, store.Delete("missing"))

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "README"), []byte("keep"), 0600))
	require.NoError(t, store.Clear())

	keys, err = store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.FileExists(t, filepath.Join(store.Dir(), "README"))
}

func TestFileStoreKeysSkipsCorruptMetadata(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("z", "1"))
	require.NoError(t, store.Set("a", "2"))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "broken.meta"), []byte("{"), 0600))

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "z"}, keys)
}

func TestHashKey(t *testing.T) {
	assert.Len(t, hashKey("GEN_DB_URL"), 16)
	assert.Equal(t, hashKey("GEN_DB_URL"), hashKey("GEN_DB_URL"))
	assert.NotEqual(t, hashKey("a"), hashKey("b"))
}

func TestMemoryStore(t *testing.T) {
	var store Store = NewMemoryStore()

	require.NoError(t, store.Set("k", "v"))

	value, ok, err := store.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	require.NoError(t, store.Delete("k"))

	_, ok, _ = store.Get("k")
	assert.False(t, ok)

	require.NoError(t, store.Set("x", "1"))
	require.NoError(t, store.Clear())

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
