package adapters

import (
	"context"
	"sort"
	"sync"

	"mlwio/internal/catalog/domain"
)

// NewMemoryStores creates catalog repositories backed by in-memory maps.
func NewMemoryStores() (*MemoryContentStore, *MemoryUploadLogStore) {
	return &MemoryContentStore{items: map[string]memoryItem{}}, &MemoryUploadLogStore{}
}

type memoryItem struct {
	item domain.ContentItem
	seq  uint64
}

// MemoryContentStore keeps content in a map guarded by a RWMutex.
type MemoryContentStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	seq   uint64
}

func (s *MemoryContentStore) Create(_ context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.items[item.ID] = memoryItem{item: cloneItem(item), seq: s.seq}
	return item, nil
}

func (s *MemoryContentStore) List(_ context.Context) ([]domain.ContentItem, error) {
	return s.collect(func(domain.ContentItem) bool { return true }), nil
}

func (s *MemoryContentStore) ListByCategory(_ context.Context, category string) ([]domain.ContentItem, error) {
	return s.collect(func(item domain.ContentItem) bool { return item.Category == category }), nil
}

func (s *MemoryContentStore) Search(_ context.Context, filter domain.SearchFilter) ([]domain.ContentItem, error) {
	return s.collect(filter.Matches), nil
}

func (s *MemoryContentStore) FindByID(_ context.Context, id string) (domain.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.items[id]
	if !ok {
		return domain.ContentItem{}, domain.ErrContentNotFound
	}
	return cloneItem(entry.item), nil
}

func (s *MemoryContentStore) Update(_ context.Context, item domain.ContentItem) (domain.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[item.ID]
	if !ok {
		return domain.ContentItem{}, domain.ErrContentNotFound
	}
	item.CreatedAt = entry.item.CreatedAt
	entry.item = cloneItem(item)
	s.items[item.ID] = entry
	return item, nil
}

func (s *MemoryContentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return domain.ErrContentNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryContentStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// collect returns matching items, newest first. Items created in the same
// instant keep reverse insertion order.
func (s *MemoryContentStore) collect(keep func(domain.ContentItem) bool) []domain.ContentItem {
	s.mu.RLock()
	entries := make([]memoryItem, 0, len(s.items))
	for _, entry := range s.items {
		if keep(entry.item) {
			entries = append(entries, entry)
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.item.CreatedAt.Equal(b.item.CreatedAt) {
			return a.item.CreatedAt.After(b.item.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]domain.ContentItem, len(entries))
	for i, entry := range entries {
		out[i] = cloneItem(entry.item)
	}
	return out
}

func cloneItem(item domain.ContentItem) domain.ContentItem {
	if item.Seasons == nil {
		return item
	}
	seasons := make([]domain.Season, len(item.Seasons))
	for i, season := range item.Seasons {
		seasons[i] = domain.Season{
			SeasonNumber: season.SeasonNumber,
			Episodes:     append([]domain.Episode(nil), season.Episodes...),
		}
	}
	item.Seasons = seasons
	return item
}

// MemoryUploadLogStore keeps upload logs in a slice.
type MemoryUploadLogStore struct {
	mu   sync.RWMutex
	logs []domain.UploadLog
}

func (s *MemoryUploadLogStore) Append(_ context.Context, log domain.UploadLog) (domain.UploadLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return log, nil
}

func (s *MemoryUploadLogStore) List(_ context.Context) ([]domain.UploadLog, error) {
	s.mu.RLock()
	out := make([]domain.UploadLog, 0, len(s.logs))
	for i := len(s.logs) - 1; i >= 0; i-- {
		out = append(out, s.logs[i])
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}
