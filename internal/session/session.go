// Package session keeps the per-browser credential record: the opaque API
// token and the cached current user. It also hosts the policy that reacts to
// an expired token.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

var ErrNotFound = errors.New("session not found")

// Session is one stored credential record.
type Session struct {
	ID         string
	Token      string
	User       core.Record
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  time.Time
	VerifiedAt time.Time
}

// Store persists sessions by id.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// Authenticated reports whether both a token and a cached user are present.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != "" && s.User != nil
}

// MergeUser lays patch over the cached user field by field.
func (s *Session) MergeUser(patch core.Record) {
	if s.User == nil {
		s.User = core.Record{}
	}
	s.User = s.User.Merge(patch)
}

// CurrentUser is the canonical view of the cached user.
func (s *Session) CurrentUser() core.User {
	if s == nil {
		return core.User{}
	}
	return core.UserFromRecord(s.User)
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Clone returns a deep enough copy for stores to hand out.
func (s *Session) Clone() *Session {
	cp := *s
	if s.User != nil {
		cp.User = s.User.Merge()
	}
	return &cp
}

// NewID returns a random 256 bit hex session id.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
