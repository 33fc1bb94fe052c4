package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlwio/internal/catalog/domain"
	"mlwio/internal/testutil"
)

func TestPostgresCatalogAgainstDatabase(t *testing.T) {
	pool := testutil.NewPostgresTestPool(t)
	content, logs := NewPostgresStores(pool)
	ctx := context.Background()
	require.NoError(t, content.EnsureSchema(ctx))
	require.NoError(t, logs.EnsureSchema(ctx))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := content.Create(ctx, domain.ContentItem{
		ID: "a", Title: "Your Name", ReleaseYear: 2016, Category: domain.CategoryAnime,
		Thumbnail: "https://img.example.com/a.jpg", DriveLink: "https://drive.google.com/file/d/a/view",
		CreatedAt: base,
	})
	require.NoError(t, err)
	_, err = content.Create(ctx, domain.ContentItem{
		ID: "b", Title: "Dark", ReleaseYear: 2017, Category: domain.CategoryWebSeries,
		Thumbnail: "https://img.example.com/b.jpg",
		Seasons: []domain.Season{{SeasonNumber: 1, Episodes: []domain.Episode{
			{EpisodeNumber: 1, Link: "https://drive.google.com/file/d/s1e1/view"},
		}}},
		CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)

	items, err := content.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
	require.Len(t, items[0].Seasons, 1)
	assert.Empty(t, items[1].Seasons)

	filter, err := domain.NewSearchFilter("DAR", "")
	require.NoError(t, err)
	found, err := content.Search(ctx, filter)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].ID)

	filter, err = domain.NewSearchFilter("2016", domain.CategoryAnime)
	require.NoError(t, err)
	found, err = content.Search(ctx, filter)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a", found[0].ID)

	require.NoError(t, content.Delete(ctx, "a"))
	assert.ErrorIs(t, content.Delete(ctx, "a"), domain.ErrContentNotFound)

	count, err := content.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
