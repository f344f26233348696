package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/CedarPulpit/core/errors"
	"github.com/FocuswithJustin/CedarPulpit/internal/storage/sqlite"
)

var sermonDBSeq int

func newTestSermonStore(t *testing.T) *SermonStore {
	t.Helper()
	sermonDBSeq++
	dsn := fmt.Sprintf("file:sermons%d?mode=memory&cache=shared", sermonDBSeq)
	db, err := sqlite.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSermonStore(db)
	require.NoError(t, err)
	return store
}

func TestSermonStore_CreateAssignsIDAndTimestamps(t *testing.T) {
	store := newTestSermonStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, &StoredSermon{
		Title:          "Walking in Faith",
		Speaker:        "J. Whitfield",
		VerseReference: "Hebrews 11:1",
		Tags:           []string{"faith", "series-2026"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Walking in Faith", got.Title)
	assert.Equal(t, []string{"faith", "series-2026"}, got.Tags)
}

func TestSermonStore_CreateRequiresTitle(t *testing.T) {
	store := newTestSermonStore(t)

	_, err := store.Create(context.Background(), &StoredSermon{Speaker: "nobody"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestSermonStore_UpdateBumpsUpdatedAt(t *testing.T) {
	store := newTestSermonStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return base }
	defer func() { timeNow = time.Now }()

	rec, err := store.Create(ctx, &StoredSermon{Title: "First Draft"})
	require.NoError(t, err)

	timeNow = func() time.Time { return base.Add(time.Hour) }
	rec.Title = "Second Draft"
	rec.Notes = "added intro"
	updated, err := store.Update(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, "Second Draft", updated.Title)
	assert.Equal(t, base, updated.CreatedAt)
	assert.Equal(t, base.Add(time.Hour), updated.UpdatedAt)
}

func TestSermonStore_UpdateMissingRecord(t *testing.T) {
	store := newTestSermonStore(t)

	_, err := store.Update(context.Background(), &StoredSermon{ID: "nope", Title: "Ghost"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSermonStore_Delete(t *testing.T) {
	store := newTestSermonStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, &StoredSermon{Title: "Short Lived"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, rec.ID))

	_, err = store.Get(ctx, rec.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, rec.ID), errors.ErrNotFound))
}

func TestSermonStore_ListPaginates(t *testing.T) {
	store := newTestSermonStore(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := store.Create(ctx, &StoredSermon{Title: fmt.Sprintf("Sermon %d", i)})
		require.NoError(t, err)
	}

	page, err := store.List(ctx, 1, 3)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, 3, page.TotalPages)

	last, err := store.List(ctx, 3, 3)
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)

	beyond, err := store.List(ctx, 9, 3)
	require.NoError(t, err)
	assert.Empty(t, beyond.Items, "out-of-range page is empty, not an error")
	assert.Equal(t, 3, beyond.TotalPages)
}

func TestSermonStore_ListEmptyStore(t *testing.T) {
	store := newTestSermonStore(t)

	page, err := store.List(context.Background(), 1, 50)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.TotalPages)
}

func TestSermonStore_BulkImport(t *testing.T) {
	store := newTestSermonStore(t)
	ctx := context.Background()

	existing, err := store.Create(ctx, &StoredSermon{Title: "Old Title"})
	require.NoError(t, err)

	imported, skipped, err := store.BulkImport(ctx, []*StoredSermon{
		{Title: "Imported One"},
		{Title: ""},
		{ID: existing.ID, Title: "New Title"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 1, skipped)

	got, err := store.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Title", got.Title, "bulk import upserts by ID")

	page, err := store.List(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
}
