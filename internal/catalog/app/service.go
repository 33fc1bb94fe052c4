package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"

	"mlwio/internal/catalog/domain"
	"mlwio/internal/catalog/ports"
	"mlwio/internal/shared/logging"
)

// Service implements catalog reads and admin mutations.
type Service struct {
	content ports.ContentStore
	logs    ports.UploadLogStore
	now     func() time.Time
	logger  logging.Logger
}

// NewService constructs a Service instance.
func NewService(content ports.ContentStore, logs ports.UploadLogStore) *Service {
	return &Service{
		content: content,
		logs:    logs,
		now:     time.Now,
		logger:  logging.NewComponentLogger("CatalogService"),
	}
}

// WithNow allows tests to control the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ListContent returns every record, newest first.
func (s *Service) ListContent(ctx context.Context) ([]domain.ContentItem, error) {
	return nonNil(s.content.List(ctx))
}

// ListByCategory returns records in category, newest first.
func (s *Service) ListByCategory(ctx context.Context, category string) ([]domain.ContentItem, error) {
	return nonNil(s.content.ListByCategory(ctx, category))
}

// SearchContent matches titles case-insensitively, or the release year when
// the query is an integer. An empty category means any.
func (s *Service) SearchContent(ctx context.Context, query, category string) ([]domain.ContentItem, error) {
	filter, err := domain.NewSearchFilter(query, category)
	if err != nil {
		return nil, err
	}
	return nonNil(s.content.Search(ctx, filter))
}

// GetContent returns a single record.
func (s *Service) GetContent(ctx context.Context, id string) (domain.ContentItem, error) {
	if strings.TrimSpace(id) == "" {
		return domain.ContentItem{}, domain.ErrContentNotFound
	}
	return s.content.FindByID(ctx, id)
}

// CreateContent validates input, stores a new record and appends an upload
// log entry for it.
func (s *Service) CreateContent(ctx context.Context, input domain.ContentInput) (domain.ContentItem, error) {
	if err := input.Validate(); err != nil {
		return domain.ContentItem{}, err
	}
	now := s.now()
	item := input.Apply(domain.ContentItem{ID: uuid.NewString(), CreatedAt: now})
	created, err := s.content.Create(ctx, item)
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("create content: %w", err)
	}

	if _, err := s.logs.Append(ctx, domain.UploadLog{
		ID:           ksuid.New().String(),
		ContentTitle: created.Title,
		UploadedAt:   now,
	}); err != nil {
		// The record exists; a missing history line is not worth failing the upload.
		s.logger.Warn("Failed to append upload log for %s: %v", created.ID, err)
	}
	s.logger.Info("Content created - %s (%s)", created.Title, created.ID)
	return created, nil
}

// UpdateContent replaces the mutable fields of an existing record. The
// creation time is preserved.
func (s *Service) UpdateContent(ctx context.Context, id string, input domain.ContentInput) (domain.ContentItem, error) {
	if err := input.Validate(); err != nil {
		return domain.ContentItem{}, err
	}
	if strings.TrimSpace(id) == "" {
		return domain.ContentItem{}, domain.ErrContentNotFound
	}
	updated, err := s.content.Update(ctx, input.Apply(domain.ContentItem{ID: id}))
	if err != nil {
		return domain.ContentItem{}, err
	}
	s.logger.Info("Content updated - %s (%s)", updated.Title, updated.ID)
	return updated, nil
}

// DeleteContent removes a record.
func (s *Service) DeleteContent(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.ErrContentNotFound
	}
	if err := s.content.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Content deleted - %s", id)
	return nil
}

// ListUploadLogs returns the upload history, newest first.
func (s *Service) ListUploadLogs(ctx context.Context) ([]domain.UploadLog, error) {
	logs, err := s.logs.List(ctx)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []domain.UploadLog{}
	}
	return logs, nil
}

// Seed loads inputs into an empty catalog. A catalog that already holds
// records is left untouched. It returns the number of records created.
func (s *Service) Seed(ctx context.Context, inputs []domain.ContentInput) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}
	count, err := s.content.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	if count > 0 {
		s.logger.Info("Catalog already has %d records, skipping seed", count)
		return 0, nil
	}

	var errs []error
	created := 0
	for i, input := range inputs {
		if _, err := s.CreateContent(ctx, input); err != nil {
			errs = append(errs, fmt.Errorf("seed entry %d (%q): %w", i, input.Title, err))
			continue
		}
		created++
	}
	return created, errors.Join(errs...)
}

func nonNil(items []domain.ContentItem, err error) ([]domain.ContentItem, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.ContentItem{}
	}
	return items, nil
}
