package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/CedarPulpit/core/errors"
	"github.com/FocuswithJustin/CedarPulpit/core/provider"
	"github.com/FocuswithJustin/CedarPulpit/core/sermon"
	"github.com/FocuswithJustin/CedarPulpit/core/sync"
	"github.com/FocuswithJustin/CedarPulpit/internal/api"
	"github.com/FocuswithJustin/CedarPulpit/internal/storage"
	"github.com/FocuswithJustin/CedarPulpit/internal/storage/sqlite"
)

var remoteDBSeq int

// newTestAPI stands up a real API server over in-memory stores and
// returns its base URL.
func newTestAPI(t *testing.T, cfg api.Config) string {
	t.Helper()

	remoteDBSeq++
	dsn := fmt.Sprintf("file:remote%d?mode=memory&cache=shared", remoteDBSeq)
	db, err := sqlite.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sermons, err := storage.NewSermonStore(db)
	require.NoError(t, err)
	cache, err := storage.NewServerCache(db)
	require.NoError(t, err)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(upstream.Close)
	primary := provider.NewPrimary(upstream.Client(), upstream.URL)
	secondary := provider.NewSecondary(upstream.Client(), upstream.URL)

	srv := api.NewServer(cfg, sermons, cache, provider.NewSelector(primary, secondary, ""))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestClient_CreateListUpdate(t *testing.T) {
	baseURL := newTestAPI(t, api.Config{})
	client := NewClient(baseURL)
	ctx := context.Background()

	created, err := client.Create(ctx, &sermon.Record{
		Title:          "Walking in Faith",
		VerseReference: "Hebrews 11:1",
		Tags:           []string{"faith"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Walking in Faith", created.Title)

	page, err := client.List(ctx, 1, 50)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.TotalPages)

	updated, err := client.Update(ctx, created.ID, &sermon.Record{
		Title: "Walking in Faith, Revised",
		Notes: "new intro",
	})
	require.NoError(t, err)
	assert.Equal(t, "Walking in Faith, Revised", updated.Title)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))
}

func TestClient_UpdateMissingRecord(t *testing.T) {
	baseURL := newTestAPI(t, api.Config{})
	client := NewClient(baseURL)

	_, err := client.Update(context.Background(), "no-such-id", &sermon.Record{Title: "Ghost"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestClient_AuthRequired(t *testing.T) {
	cfg := api.Config{
		Auth: api.AuthConfig{
			Enabled: true,
			APIKey:  "sixteen-char-key!",
		},
	}
	baseURL := newTestAPI(t, cfg)
	ctx := context.Background()

	_, err := NewClient(baseURL).List(ctx, 1, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	_, err = NewClient(baseURL, WithAPIKey("sixteen-char-key!")).List(ctx, 1, 10)
	assert.NoError(t, err)
}

func TestClient_DrivesFullSync(t *testing.T) {
	baseURL := newTestAPI(t, api.Config{})
	client := NewClient(baseURL)
	ctx := context.Background()

	// Seed the server with a record another device uploaded.
	_, err := client.Create(ctx, &sermon.Record{Title: "From Another Device"})
	require.NoError(t, err)

	lib := sermon.NewLibrary()
	lib.Add(&sermon.Record{Title: "Drafted Offline"})

	c := sync.NewCoordinator(client, "", 50)
	result, err := c.FullSync(ctx, lib)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 2, lib.Len())

	page, err := client.List(ctx, 1, 50)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	// A second pass has nothing new to move.
	result, err = c.FullSync(ctx, lib)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Uploaded)
	assert.Equal(t, 0, result.Downloaded)
}
