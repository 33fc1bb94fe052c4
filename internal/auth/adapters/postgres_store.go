package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"mlwio/internal/auth/domain"
)

// pool abstracts the subset of pgxpool.Pool used by the repositories so
// pgxmock can stand in for it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresUserRepo stores users in mlwio_users.
type PostgresUserRepo struct {
	pool pool
}

// PostgresSessionRepo stores sessions in mlwio_sessions.
type PostgresSessionRepo struct {
	pool pool
}

// NewPostgresStores builds both repositories over one pool.
func NewPostgresStores(pool pool) (*PostgresUserRepo, *PostgresSessionRepo) {
	return &PostgresUserRepo{pool: pool}, &PostgresSessionRepo{pool: pool}
}

// EnsureSchema creates the user table if needed.
func (r *PostgresUserRepo) EnsureSchema(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("user repository not initialized")
	}
	_, err := r.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS mlwio_users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`)
	return err
}

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	query := `
INSERT INTO mlwio_users (id, username, password_hash, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, username, password_hash, created_at
`
	var created domain.User
	err := r.pool.QueryRow(ctx, query, user.ID, user.Username, user.PasswordHash, user.CreatedAt).Scan(
		&created.ID,
		&created.Username,
		&created.PasswordHash,
		&created.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, domain.ErrUserExists
		}
		return domain.User{}, err
	}
	return created, nil
}

func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.findOne(ctx, `SELECT id, username, password_hash, created_at FROM mlwio_users WHERE username = $1`, username)
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (domain.User, error) {
	return r.findOne(ctx, `SELECT id, username, password_hash, created_at FROM mlwio_users WHERE id = $1`, id)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg string) (domain.User, error) {
	var user domain.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// EnsureSchema creates the session table if needed. Users must exist first.
func (r *PostgresSessionRepo) EnsureSchema(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("session repository not initialized")
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS mlwio_sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES mlwio_users(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_mlwio_sessions_expires ON mlwio_sessions (expires_at);`,
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresSessionRepo) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO mlwio_sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserID, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (domain.Session, error) {
	var session domain.Session
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at, expires_at FROM mlwio_sessions WHERE id = $1`, id,
	).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, err
	}
	return session, nil
}

func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM mlwio_sessions WHERE id = $1`, id)
	return err
}

func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM mlwio_sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}
