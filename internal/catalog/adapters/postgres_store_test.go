package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlwio/internal/catalog/domain"
)

var contentColumnNames = []string{"id", "title", "release_year", "category", "thumbnail", "drive_link", "seasons", "created_at"}

func newMockCatalog(t *testing.T) (pgxmock.PgxPoolIface, *PostgresContentStore, *PostgresUploadLogStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	content, logs := NewPostgresStores(mock)
	return mock, content, logs
}

func TestPostgresCatalogEnsureSchema(t *testing.T) {
	mock, content, logs := newMockCatalog(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS mlwio_content").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_mlwio_content_created").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_mlwio_content_category").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS mlwio_upload_logs").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	ctx := context.Background()
	require.NoError(t, content.EnsureSchema(ctx))
	require.NoError(t, logs.EnsureSchema(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContentCreateEncodesSeasons(t *testing.T) {
	mock, content, _ := newMockCatalog(t)
	created := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	item := domain.ContentItem{
		ID:          "c-1",
		Title:       "Dark",
		ReleaseYear: 2017,
		Category:    domain.CategoryWebSeries,
		Thumbnail:   "https://img/dark.jpg",
		Seasons:     []domain.Season{{SeasonNumber: 1, Episodes: []domain.Episode{{EpisodeNumber: 1, Link: "https://e/1"}}}},
		CreatedAt:   created,
	}
	seasonsJSON := `[{"seasonNumber":1,"episodes":[{"episodeNumber":1,"link":"https://e/1"}]}]`

	mock.ExpectQuery("INSERT INTO mlwio_content").
		WithArgs(item.ID, item.Title, item.ReleaseYear, item.Category, item.Thumbnail, "", seasonsJSON, created).
		WillReturnRows(pgxmock.NewRows(contentColumnNames).
			AddRow(item.ID, item.Title, item.ReleaseYear, item.Category, item.Thumbnail, "", []byte(seasonsJSON), created))

	got, err := content.Create(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, item, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContentSearchArgs(t *testing.T) {
	mock, content, _ := newMockCatalog(t)
	now := time.Now().UTC()
	mock.ExpectQuery("strpos\\(lower\\(title\\), lower\\(\\$1\\)\\)").
		WithArgs("2010", true, 2010, domain.CategoryMovie).
		WillReturnRows(pgxmock.NewRows(contentColumnNames).
			AddRow("a", "Inception", 2010, domain.CategoryMovie, "https://t", "", []byte("[]"), now).
			AddRow("b", "2010", 1984, domain.CategoryMovie, "https://t", "https://d", []byte("[]"), now.Add(-time.Hour)))

	filter, err := domain.NewSearchFilter("2010", domain.CategoryMovie)
	require.NoError(t, err)
	items, err := content.Search(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Nil(t, items[0].Seasons)
	assert.Equal(t, "https://d", items[1].DriveLink)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContentNotFound(t *testing.T) {
	mock, content, _ := newMockCatalog(t)
	mock.ExpectQuery("FROM mlwio_content WHERE id").WithArgs("nope").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("UPDATE mlwio_content").
		WithArgs("nope", "t", 2000, "Movie", "https://t", "", "[]").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("DELETE FROM mlwio_content").WithArgs("nope").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ctx := context.Background()
	_, err := content.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrContentNotFound)

	_, err = content.Update(ctx, domain.ContentItem{ID: "nope", Title: "t", ReleaseYear: 2000, Category: "Movie", Thumbnail: "https://t"})
	assert.ErrorIs(t, err, domain.ErrContentNotFound)

	assert.ErrorIs(t, content.Delete(ctx, "nope"), domain.ErrContentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContentCount(t *testing.T) {
	mock, content, _ := newMockCatalog(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := content.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUploadLogs(t *testing.T) {
	mock, _, logs := newMockCatalog(t)
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	entry := domain.UploadLog{ID: "l-1", ContentTitle: "Dark", UploadedAt: at}

	mock.ExpectExec("INSERT INTO mlwio_upload_logs").
		WithArgs(entry.ID, entry.ContentTitle, entry.UploadedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("FROM mlwio_upload_logs").
		WillReturnRows(pgxmock.NewRows([]string{"id", "content_title", "uploaded_at"}).AddRow(entry.ID, entry.ContentTitle, entry.UploadedAt))

	ctx := context.Background()
	_, err := logs.Append(ctx, entry)
	require.NoError(t, err)

	list, err := logs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.UploadLog{entry}, list)
	require.NoError(t, mock.ExpectationsWereMet())
}
