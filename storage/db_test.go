package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()
	batch := new(Batch)
	batch.Put([]byte("a/1"), []byte("one"))
	batch.Put([]byte("a/2"), []byte("two"))
	batch.Put([]byte("a/3"), []byte("three"))
	batch.Put([]byte("b/1"), []byte("other"))
	require.NoError(t, db.Write(batch))

	value, ok, err := db.Get([]byte("a/2"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "two", string(value))

	_, ok, err = db.Get([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	var keys []string
	require.NoError(t, db.Iterate([]byte("a/"), []byte("a/2"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	require.Equal(t, []string{"a/2", "a/3"}, keys)

	keys = nil
	require.NoError(t, db.Iterate([]byte("a/"), nil, func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return len(keys) < 2
	}))
	require.Equal(t, []string{"a/1", "a/2"}, keys)

	batch = new(Batch)
	batch.Delete([]byte("a/1"))
	require.NoError(t, db.Write(batch))
	_, ok, err = db.Get([]byte("a/1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemDB(t *testing.T) {
	exerciseDatabase(t, NewMemDB())
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "ldb"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}
