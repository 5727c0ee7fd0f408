package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKV(t *testing.T, kv KV) {
	_, err := kv.Get(KeyUserToken)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(KeyUserToken, "a.b.c"))
	require.NoError(t, kv.Set(KeyUserData, `{"id":"1"}`))
	require.NoError(t, kv.Set(KeyActiveContext, `{"groupId":"g"}`))

	v, err := kv.Get(KeyUserToken)
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", v)

	require.NoError(t, kv.Set(KeyUserToken, "d.e.f"))
	v, err = kv.Get(KeyUserToken)
	require.NoError(t, err)
	assert.Equal(t, "d.e.f", v)

	require.NoError(t, kv.Delete(SessionKeys...))
	for _, k := range SessionKeys {
		_, err := kv.Get(k)
		assert.ErrorIs(t, err, ErrNotFound, k)
	}

	// deleting again is a no-op
	require.NoError(t, kv.Delete(SessionKeys...))
}

func TestMemoryKV(t *testing.T) {
	testKV(t, NewMemoryKV())
}

func TestFileKV(t *testing.T) {
	kv, err := NewFileKV(filepath.Join(t.TempDir(), "nested", "session.json"))
	require.NoError(t, err)

	testKV(t, kv)

	_, err = os.Stat(kv.Path())
	assert.True(t, os.IsNotExist(err), "empty storage file should be removed")
}

func TestFileKV_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	first, err := NewFileKV(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(KeyUserToken, "a.b.c"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := NewFileKV(path)
	require.NoError(t, err)
	v, err := second.Get(KeyUserToken)
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", v)
}

func TestFileKV_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	kv, err := NewFileKV(path)
	require.NoError(t, err)

	_, err = kv.Get(KeyUserToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Delete(SessionKeys...))
	_, err = kv.Get(KeyUserToken)
	assert.ErrorIs(t, err, ErrNotFound)
}
