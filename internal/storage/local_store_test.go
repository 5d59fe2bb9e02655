package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestStoreAndOpen(t *testing.T) {
	store := newTestStore(t)
	id := uuid.New()
	content := []byte("fake video payload")

	path, size, err := store.Store(id, bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)
	assert.Equal(t, store.Path(id), path)

	f, gotSize, err := store.Open(id)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(len(content)), gotSize)
}

func TestStoreLeavesNoPartialFiles(t *testing.T) {
	store := newTestStore(t)
	id := uuid.New()

	// Читатель, падающий на середине
	r := &failingReader{data: []byte("partial data"), failAfter: 4}
	_, _, err := store.Store(id, r)
	require.Error(t, err)

	assert.False(t, store.Exists(id))

	entries, err := os.ReadDir(filepath.Dir(store.Path(id)))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".part"),
			"temp file %s must be cleaned up", entry.Name())
	}
}

type failingReader struct {
	data      []byte
	failAfter int
	read      int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.read >= r.failAfter {
		return 0, assert.AnError
	}
	n := copy(p, r.data[r.read:r.failAfter])
	r.read += n
	return n, nil
}

func TestDeleteAbsentIsNoError(t *testing.T) {
	store := newTestStore(t)

	assert.NoError(t, store.Delete(uuid.New()))
	assert.NoError(t, store.DeleteThumbnail(uuid.New()))
}

func TestThumbnailLifecycle(t *testing.T) {
	store := newTestStore(t)
	id := uuid.New()

	path, err := store.SaveThumbnail(id, []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	assert.Equal(t, store.ThumbnailPath(id), path)

	require.NoError(t, store.DeleteThumbnail(id))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCountAndTotalSize(t *testing.T) {
	store := newTestStore(t)

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		_, _, err := store.Store(ids[i], bytes.NewReader(bytes.Repeat([]byte("x"), 100)))
		require.NoError(t, err)
	}

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	total, err := store.TotalSize()
	require.NoError(t, err)
	assert.Equal(t, int64(300), total)

	listed, err := store.ListIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, listed)

	require.NoError(t, store.Delete(ids[0]))
	count, err = store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
