package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlwio/internal/catalog/adapters"
	catalogapp "mlwio/internal/catalog/app"
	"mlwio/internal/catalog/domain"
)

type tickingClock struct{ now time.Time }

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newService(t *testing.T) *catalogapp.Service {
	t.Helper()
	content, logs := adapters.NewMemoryStores()
	svc := catalogapp.NewService(content, logs)
	svc.WithNow((&tickingClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}).Now)
	return svc
}

func input(title string, year int, category string) domain.ContentInput {
	return domain.ContentInput{
		Title:       title,
		ReleaseYear: year,
		Category:    category,
		Thumbnail:   "https://img.example.com/" + strings.ReplaceAll(title, " ", "-") + ".jpg",
	}
}

func TestCreateContentAppendsUploadLog(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.CreateContent(ctx, input("Akira", 1988, domain.CategoryAnime))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	logs, err := svc.ListUploadLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Akira", logs[0].ContentTitle)
	assert.Equal(t, created.CreatedAt, logs[0].UploadedAt)
}

func TestCreateContentValidates(t *testing.T) {
	svc := newService(t)
	_, err := svc.CreateContent(context.Background(), domain.ContentInput{Title: "x"})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	items, err := svc.ListContent(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestListContentNewestFirst(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for _, title := range []string{"first", "second", "third"} {
		_, err := svc.CreateContent(ctx, input(title, 2000, domain.CategoryMovie))
		require.NoError(t, err)
	}
	items, err := svc.ListContent(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "third", items[0].Title)
	assert.Equal(t, "first", items[2].Title)
}

func TestUpdateContentPreservesCreatedAt(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created, err := svc.CreateContent(ctx, input("Draft", 2000, domain.CategoryMovie))
	require.NoError(t, err)

	changed := input("Final", 2001, domain.CategoryMovie)
	changed.DriveLink = "https://drive.google.com/file/d/xyz/view"
	updated, err := svc.UpdateContent(ctx, created.ID, changed)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, changed.DriveLink, updated.DriveLink)

	_, err = svc.UpdateContent(ctx, "missing", changed)
	assert.ErrorIs(t, err, domain.ErrContentNotFound)

	_, err = svc.UpdateContent(ctx, created.ID, domain.ContentInput{})
	assert.True(t, domain.IsValidationError(err))

	logs, err := svc.ListUploadLogs(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "updates do not log uploads")
}

func TestDeleteContent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created, err := svc.CreateContent(ctx, input("Gone", 2000, domain.CategoryMovie))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteContent(ctx, created.ID))
	_, err = svc.GetContent(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrContentNotFound)
	assert.ErrorIs(t, svc.DeleteContent(ctx, created.ID), domain.ErrContentNotFound)
	assert.ErrorIs(t, svc.DeleteContent(ctx, ""), domain.ErrContentNotFound)
}

func TestSearchContent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for _, in := range []domain.ContentInput{
		input("Attack on Titan", 2013, domain.CategoryAnime),
		input("Titanic", 1997, domain.CategoryMovie),
		input("Her", 2013, domain.CategoryMovie),
	} {
		_, err := svc.CreateContent(ctx, in)
		require.NoError(t, err)
	}

	_, err := svc.SearchContent(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrSearchQueryRequired)

	byTitle, err := svc.SearchContent(ctx, "TITAN", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Titanic", "Attack on Titan"}, titles(byTitle))

	byYear, err := svc.SearchContent(ctx, "2013", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Her", "Attack on Titan"}, titles(byYear))

	filtered, err := svc.SearchContent(ctx, "titan", domain.CategoryAnime)
	require.NoError(t, err)
	assert.Equal(t, []string{"Attack on Titan"}, titles(filtered))

	none, err := svc.SearchContent(ctx, "zzz", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	anime, err := svc.ListByCategory(ctx, domain.CategoryAnime)
	require.NoError(t, err)
	assert.Equal(t, []string{"Attack on Titan"}, titles(anime))
}

func TestSeedOnlyFillsEmptyCatalog(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	seed := []domain.ContentInput{
		input("One", 2001, domain.CategoryMovie),
		{Title: "broken"},
		input("Two", 2002, domain.CategoryMovie),
	}

	created, err := svc.Seed(ctx, seed)
	assert.Equal(t, 2, created)
	require.Error(t, err)
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))

	created, err = svc.Seed(ctx, seed)
	require.NoError(t, err)
	assert.Zero(t, created)

	items, err := svc.ListContent(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func titles(items []domain.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Title
	}
	return out
}
