package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replaydrive/internal/domain"
)

func testDocument(id string) domain.Document {
	return domain.Document{
		"id":            id,
		"owner_id":      "athlete-1",
		"name":          "clip.mp4",
		"created_at":    time.Now().UTC().Format(time.RFC3339Nano),
		"last_modified": time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func TestDocumentStorePutGet(t *testing.T) {
	store := NewObjectDocumentStore(NewMemoryStorage())
	ctx := context.Background()

	modified, err := store.Put(ctx, "video_records", "athlete-1", testDocument("rec-1"))
	require.NoError(t, err)
	assert.False(t, modified.IsZero(), "server must assign a modification time")

	item, err := store.Get(ctx, "video_records", "athlete-1", "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", item.ID)
	assert.Equal(t, "clip.mp4", item.Document["name"])
	assert.True(t, item.ModifiedAt.Equal(modified))
}

func TestDocumentStorePutRequiresID(t *testing.T) {
	store := NewObjectDocumentStore(NewMemoryStorage())

	_, err := store.Put(context.Background(), "video_records", "athlete-1", domain.Document{"name": "x"})
	assert.Error(t, err)
}

func TestDocumentStoreGetMissing(t *testing.T) {
	store := NewObjectDocumentStore(NewMemoryStorage())

	_, err := store.Get(context.Background(), "video_records", "athlete-1", "absent")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDocumentStoreDelete(t *testing.T) {
	store := NewObjectDocumentStore(NewMemoryStorage())
	ctx := context.Background()

	_, err := store.Put(ctx, "video_records", "athlete-1", testDocument("rec-1"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "video_records", "athlete-1", "rec-1"))

	_, err = store.Get(ctx, "video_records", "athlete-1", "rec-1")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// Повторное удаление идемпотентно
	assert.NoError(t, store.Delete(ctx, "video_records", "athlete-1", "rec-1"))
}

func TestDocumentStoreListIsOwnerScoped(t *testing.T) {
	store := NewObjectDocumentStore(NewMemoryStorage())
	ctx := context.Background()

	_, err := store.Put(ctx, "video_records", "athlete-1", testDocument("rec-1"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "video_records", "athlete-1", testDocument("rec-2"))
	require.NoError(t, err)

	other := testDocument("rec-3")
	other["owner_id"] = "athlete-2"
	_, err = store.Put(ctx, "video_records", "athlete-2", other)
	require.NoError(t, err)

	items, err := store.List(ctx, "video_records", "athlete-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	ids := []string{items[0].ID, items[1].ID}
	assert.ElementsMatch(t, []string{"rec-1", "rec-2"}, ids)
}

func TestDocumentStoreListModifiedSince(t *testing.T) {
	mem := NewMemoryStorage()
	store := NewObjectDocumentStore(mem)
	ctx := context.Background()

	_, err := store.Put(ctx, "video_records", "athlete-1", testDocument("old"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "video_records", "athlete-1", testDocument("new"))
	require.NoError(t, err)

	cutoff := time.Now().UTC()
	mem.SetModified("video_records/athlete-1/old.json", cutoff.Add(-time.Hour))
	mem.SetModified("video_records/athlete-1/new.json", cutoff.Add(time.Hour))

	items, err := store.ListModifiedSince(ctx, "video_records", "athlete-1", cutoff)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].ID)
}
