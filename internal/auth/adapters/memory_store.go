package adapters

import (
	"context"
	"sync"
	"time"

	"mlwio/internal/auth/domain"
)

// NewMemoryStores creates repositories backed by in-memory maps.
func NewMemoryStores() (*MemoryUserRepo, *MemorySessionRepo) {
	users := &MemoryUserRepo{users: map[string]domain.User{}, usernameIdx: map[string]string{}}
	sessions := &MemorySessionRepo{sessions: map[string]domain.Session{}}
	return users, sessions
}

// MemoryUserRepo keeps users in a map guarded by a RWMutex.
type MemoryUserRepo struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	usernameIdx map[string]string
}

func (r *MemoryUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.usernameIdx[user.Username]; exists {
		return domain.User{}, domain.ErrUserExists
	}
	r.users[user.ID] = user
	r.usernameIdx[user.Username] = user.ID
	return user, nil
}

func (r *MemoryUserRepo) FindByUsername(_ context.Context, username string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.usernameIdx[username]; ok {
		return r.users[id], nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

// MemorySessionRepo keeps sessions in a map guarded by a RWMutex.
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func (r *MemorySessionRepo) Create(_ context.Context, session domain.Session) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return session, nil
}

func (r *MemorySessionRepo) FindByID(_ context.Context, id string) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if session, ok := r.sessions[id]; ok {
		return session, nil
	}
	return domain.Session{}, domain.ErrSessionNotFound
}

func (r *MemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, session := range r.sessions {
		if session.Expired(before) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}
