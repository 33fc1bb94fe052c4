package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"

	"mlwio/internal/auth/domain"
	"mlwio/internal/auth/ports"
	"mlwio/internal/shared/logging"
)

// DefaultSessionTTL matches the one-week cookie lifetime.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Config controls session lifetime.
type Config struct {
	SessionTTL time.Duration
}

// Service orchestrates login, logout and session checks.
type Service struct {
	users    ports.UserRepository
	sessions ports.SessionRepository
	hasher   ports.PasswordHasher
	config   Config
	now      func() time.Time
	logger   logging.Logger
}

// NewService constructs a Service instance.
func NewService(users ports.UserRepository, sessions ports.SessionRepository, hasher ports.PasswordHasher, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		config:   cfg,
		now:      time.Now,
		logger:   logging.NewComponentLogger("AuthService"),
	}
}

// WithNow allows tests to control the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SessionTTL returns the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.config.SessionTTL
}

// EnsureUser creates username with password unless it already exists. The
// boolean reports whether a user was created.
func (s *Service) EnsureUser(ctx context.Context, username, password string) (domain.User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, false, fmt.Errorf("username is required")
	}
	if password == "" {
		return domain.User{}, false, fmt.Errorf("password is required")
	}

	existing, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, false, fmt.Errorf("lookup user: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("hash password: %w", err)
	}
	created, err := s.users.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hashed,
		CreatedAt:    s.now(),
	})
	if errors.Is(err, domain.ErrUserExists) {
		// Lost a race with another bootstrap; the row is there either way.
		existing, findErr := s.users.FindByUsername(ctx, username)
		return existing, false, findErr
	}
	if err != nil {
		return domain.User{}, false, err
	}
	s.logger.Info("Created user %s", username)
	return created, true, nil
}

// VerifyCredentials returns the user when password matches.
func (s *Service) VerifyCredentials(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("Stored hash for %s is unreadable: %v", user.Username, err)
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if !ok {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Login verifies credentials and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (domain.Session, domain.User, error) {
	user, err := s.VerifyCredentials(ctx, username, password)
	if err != nil {
		return domain.Session{}, domain.User{}, err
	}
	now := s.now()
	session, err := s.sessions.Create(ctx, domain.Session{
		ID:        ksuid.New().String(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.SessionTTL),
	})
	if err != nil {
		return domain.Session{}, domain.User{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("Login successful - User: %s", user.Username)
	return session, user, nil
}

// Logout deletes the session. Unknown ids are not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	return s.sessions.DeleteByID(ctx, sessionID)
}

// Authenticate returns the live session for sessionID. Expired sessions are
// removed on sight.
func (s *Service) Authenticate(ctx context.Context, sessionID string) (domain.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if session.Expired(s.now()) {
		if err := s.sessions.DeleteByID(ctx, session.ID); err != nil {
			s.logger.Warn("Failed to delete expired session: %v", err)
		}
		return domain.Session{}, domain.ErrSessionExpired
	}
	return session, nil
}

// CurrentUser resolves the user behind a session.
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (domain.User, error) {
	session, err := s.Authenticate(ctx, sessionID)
	if err != nil {
		return domain.User{}, err
	}
	return s.users.FindByID(ctx, session.UserID)
}

// PurgeExpiredSessions deletes every session past its expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	removed, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	if removed > 0 {
		s.logger.Debug("Purged %d expired sessions", removed)
	}
	return removed, nil
}
