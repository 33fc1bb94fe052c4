package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"mlwio/internal/catalog/domain"
)

// pool abstracts the subset of pgxpool.Pool used by the repositories so
// pgxmock can stand in for it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const contentColumns = `id, title, release_year, category, thumbnail, drive_link, seasons, created_at`

// PostgresContentStore stores catalog records in mlwio_content. Seasons are
// kept as a JSONB document.
type PostgresContentStore struct {
	pool pool
}

// PostgresUploadLogStore stores upload history in mlwio_upload_logs.
type PostgresUploadLogStore struct {
	pool pool
}

// NewPostgresStores builds both repositories over one pool.
func NewPostgresStores(pool pool) (*PostgresContentStore, *PostgresUploadLogStore) {
	return &PostgresContentStore{pool: pool}, &PostgresUploadLogStore{pool: pool}
}

// EnsureSchema creates the content table and its indexes if needed.
func (s *PostgresContentStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("content store not initialized")
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS mlwio_content (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    release_year INTEGER NOT NULL,
    category TEXT NOT NULL,
    thumbnail TEXT NOT NULL,
    drive_link TEXT NOT NULL DEFAULT '',
    seasons JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
		`CREATE INDEX IF NOT EXISTS idx_mlwio_content_created ON mlwio_content (created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_mlwio_content_category ON mlwio_content (category, created_at DESC);`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresContentStore) Create(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	seasons, err := encodeSeasons(item.Seasons)
	if err != nil {
		return domain.ContentItem{}, err
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO mlwio_content (id, title, release_year, category, thumbnail, drive_link, seasons, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
RETURNING `+contentColumns,
		item.ID, item.Title, item.ReleaseYear, item.Category, item.Thumbnail, item.DriveLink, seasons, item.CreatedAt,
	)
	created, err := scanContent(row)
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("insert content: %w", err)
	}
	return created, nil
}

func (s *PostgresContentStore) List(ctx context.Context) ([]domain.ContentItem, error) {
	return s.query(ctx, `SELECT `+contentColumns+` FROM mlwio_content ORDER BY created_at DESC, id DESC`)
}

func (s *PostgresContentStore) ListByCategory(ctx context.Context, category string) ([]domain.ContentItem, error) {
	return s.query(ctx, `SELECT `+contentColumns+` FROM mlwio_content WHERE category = $1 ORDER BY created_at DESC, id DESC`, category)
}

func (s *PostgresContentStore) Search(ctx context.Context, filter domain.SearchFilter) ([]domain.ContentItem, error) {
	query := `
SELECT ` + contentColumns + ` FROM mlwio_content
WHERE (strpos(lower(title), lower($1)) > 0 OR ($2::boolean AND release_year = $3))
  AND ($4::text = '' OR category = $4)
ORDER BY created_at DESC, id DESC`
	return s.query(ctx, query, filter.Query, filter.HasYear, filter.Year, filter.Category)
}

func (s *PostgresContentStore) FindByID(ctx context.Context, id string) (domain.ContentItem, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+contentColumns+` FROM mlwio_content WHERE id = $1`, id)
	item, err := scanContent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ContentItem{}, domain.ErrContentNotFound
		}
		return domain.ContentItem{}, err
	}
	return item, nil
}

// Update rewrites every mutable column; created_at is never touched.
func (s *PostgresContentStore) Update(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	seasons, err := encodeSeasons(item.Seasons)
	if err != nil {
		return domain.ContentItem{}, err
	}
	row := s.pool.QueryRow(ctx, `
UPDATE mlwio_content
SET title = $2, release_year = $3, category = $4, thumbnail = $5, drive_link = $6, seasons = $7::jsonb
WHERE id = $1
RETURNING `+contentColumns,
		item.ID, item.Title, item.ReleaseYear, item.Category, item.Thumbnail, item.DriveLink, seasons,
	)
	updated, err := scanContent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ContentItem{}, domain.ErrContentNotFound
		}
		return domain.ContentItem{}, fmt.Errorf("update content: %w", err)
	}
	return updated, nil
}

func (s *PostgresContentStore) Delete(ctx context.Context, id string) error {
	cmdTag, err := s.pool.Exec(ctx, `DELETE FROM mlwio_content WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrContentNotFound
	}
	return nil
}

func (s *PostgresContentStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM mlwio_content`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PostgresContentStore) query(ctx context.Context, sql string, args ...any) ([]domain.ContentItem, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content: %w", err)
	}
	return items, nil
}

func scanContent(row pgx.Row) (domain.ContentItem, error) {
	var (
		item    domain.ContentItem
		seasons []byte
	)
	if err := row.Scan(
		&item.ID,
		&item.Title,
		&item.ReleaseYear,
		&item.Category,
		&item.Thumbnail,
		&item.DriveLink,
		&seasons,
		&item.CreatedAt,
	); err != nil {
		return domain.ContentItem{}, err
	}
	if len(seasons) > 0 {
		if err := json.Unmarshal(seasons, &item.Seasons); err != nil {
			return domain.ContentItem{}, fmt.Errorf("decode seasons for %s: %w", item.ID, err)
		}
	}
	if len(item.Seasons) == 0 {
		item.Seasons = nil
	}
	return item, nil
}

func encodeSeasons(seasons []domain.Season) (string, error) {
	if len(seasons) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(seasons)
	if err != nil {
		return "", fmt.Errorf("encode seasons: %w", err)
	}
	return string(raw), nil
}

// EnsureSchema creates the upload log table if needed.
func (s *PostgresUploadLogStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("upload log store not initialized")
	}
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS mlwio_upload_logs (
    id TEXT PRIMARY KEY,
    content_title TEXT NOT NULL,
    uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`)
	return err
}

func (s *PostgresUploadLogStore) Append(ctx context.Context, log domain.UploadLog) (domain.UploadLog, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mlwio_upload_logs (id, content_title, uploaded_at) VALUES ($1, $2, $3)`,
		log.ID, log.ContentTitle, log.UploadedAt,
	)
	if err != nil {
		return domain.UploadLog{}, fmt.Errorf("insert upload log: %w", err)
	}
	return log, nil
}

func (s *PostgresUploadLogStore) List(ctx context.Context) ([]domain.UploadLog, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, content_title, uploaded_at FROM mlwio_upload_logs ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query upload logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.UploadLog
	for rows.Next() {
		var log domain.UploadLog
		if err := rows.Scan(&log.ID, &log.ContentTitle, &log.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan upload log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload logs: %w", err)
	}
	return logs, nil
}
