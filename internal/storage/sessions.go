package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/session"

	_ "modernc.org/sqlite"
)

// SessionRepository is the SQLite implementation of session.Store.
type SessionRepository struct {
	db *sql.DB
}

var _ session.Store = (*SessionRepository)(nil)

func NewSessionRepository(dbPath string) (*SessionRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SessionRepository{db: db}, nil
}

func (r *SessionRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, token, user_json, created_at, updated_at, expires_at, verified_at
		FROM sessions WHERE id = ?`, id)

	var (
		s                                  session.Session
		userJSON                           string
		created, updated, expires, checked int64
	)
	err := row.Scan(&s.ID, &s.Token, &userJSON, &created, &updated, &expires, &checked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var user core.Record
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, fmt.Errorf("decode session user: %w", err)
	}
	s.User = user
	s.CreatedAt = fromUnixMilli(created)
	s.UpdatedAt = fromUnixMilli(updated)
	s.ExpiresAt = fromUnixMilli(expires)
	s.VerifiedAt = fromUnixMilli(checked)
	return &s, nil
}

func (r *SessionRepository) Save(ctx context.Context, s *session.Session) error {
	userJSON := "null"
	if s.User != nil {
		buf, err := json.Marshal(s.User)
		if err != nil {
			return fmt.Errorf("encode session user: %w", err)
		}
		userJSON = string(buf)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token, user_json, created_at, updated_at, expires_at, verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			user_json = excluded.user_json,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at,
			verified_at = excluded.verified_at`,
		s.ID, s.Token, userJSON,
		toUnixMilli(s.CreatedAt), toUnixMilli(s.UpdatedAt), toUnixMilli(s.ExpiresAt), toUnixMilli(s.VerifiedAt))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at > 0 AND expires_at < ?`, toUnixMilli(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count expired sessions: %w", err)
	}
	return int(n), nil
}

func toUnixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
