package ports

import (
	"context"

	"mlwio/internal/catalog/domain"
)

// ContentStore persists catalog records. List methods return newest first.
type ContentStore interface {
	Create(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error)
	List(ctx context.Context) ([]domain.ContentItem, error)
	ListByCategory(ctx context.Context, category string) ([]domain.ContentItem, error)
	Search(ctx context.Context, filter domain.SearchFilter) ([]domain.ContentItem, error)
	FindByID(ctx context.Context, id string) (domain.ContentItem, error)
	Update(ctx context.Context, item domain.ContentItem) (domain.ContentItem, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// UploadLogStore keeps the append-only upload history.
type UploadLogStore interface {
	Append(ctx context.Context, log domain.UploadLog) (domain.UploadLog, error)
	List(ctx context.Context) ([]domain.UploadLog, error)
}
