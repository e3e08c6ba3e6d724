package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

const (
	DefaultCookieName = "fintrack_session"
	DefaultTTL        = 7 * 24 * time.Hour
)

type ManagerConfig struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
}

// Manager binds stored sessions to the session cookie of each request.
type Manager struct {
	store  Store
	cfg    ManagerConfig
	logger *log.Logger
	now    func() time.Time
}

type ctxKey struct{}

// holder lets a handler replace the request's session after login.
type holder struct {
	mu sync.Mutex
	s  *Session
}

func NewManager(store Store, cfg ManagerConfig, logger *log.Logger) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		store:  store,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentSession),
		now:    time.Now,
	}
}

// Middleware loads the session named by the cookie into the request context.
// Sessions past half their lifetime are renewed.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := &holder{}
		ctx := context.WithValue(r.Context(), ctxKey{}, h)

		if c, err := r.Cookie(m.cfg.CookieName); err == nil && c.Value != "" {
			s, err := m.store.Get(ctx, c.Value)
			switch {
			case errors.Is(err, ErrNotFound):
				m.expireCookie(w)
			case err != nil:
				m.logger.ErrorContext(ctx, "Failed to load session",
					log.FieldErrorType, log.ErrorTypeDatabase, log.FieldError, err)
			case s.Expired(m.now()):
				_ = m.store.Delete(ctx, s.ID)
				m.expireCookie(w)
			default:
				if s.ExpiresAt.Sub(m.now()) < m.cfg.TTL/2 {
					s.ExpiresAt = m.now().Add(m.cfg.TTL)
					if err := m.store.Save(ctx, s); err == nil {
						m.setCookie(w, s)
					}
				}
				h.s = s
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the request's session, nil when there is none.
func FromContext(ctx context.Context) *Session {
	h, ok := ctx.Value(ctxKey{}).(*holder)
	if !ok {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s
}

func setInContext(ctx context.Context, s *Session) {
	if h, ok := ctx.Value(ctxKey{}).(*holder); ok {
		h.mu.Lock()
		h.s = s
		h.mu.Unlock()
	}
}

// Start stores a new session for token and user and sets the cookie. Any
// previous session of the request is dropped.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, token string, user core.Record) (*Session, error) {
	if old := FromContext(ctx); old != nil {
		_ = m.store.Delete(ctx, old.ID)
	}
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	now := m.now()
	s := &Session{
		ID:         id,
		Token:      token,
		User:       user,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(m.cfg.TTL),
		VerifiedAt: now,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	m.setCookie(w, s)
	setInContext(ctx, s)
	m.logger.InfoContext(ctx, "Session started", log.FieldOperation, log.OpLogin)
	return s, nil
}

// Update persists changes to s.
func (m *Manager) Update(ctx context.Context, s *Session) error {
	s.UpdatedAt = m.now()
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	setInContext(ctx, s)
	return nil
}

// Invalidate removes the request's stored session without touching the
// response. Used where no ResponseWriter is at hand.
func (m *Manager) Invalidate(ctx context.Context) {
	s := FromContext(ctx)
	if s == nil {
		return
	}
	if err := m.store.Delete(ctx, s.ID); err != nil {
		m.logger.ErrorContext(ctx, "Failed to delete session",
			log.FieldErrorType, log.ErrorTypeDatabase, log.FieldError, err)
	}
	setInContext(ctx, nil)
}

// Clear removes the stored session and expires the cookie.
func (m *Manager) Clear(ctx context.Context, w http.ResponseWriter) {
	m.Invalidate(ctx)
	m.expireCookie(w)
}

// Sweep deletes expired sessions.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return m.store.DeleteExpired(ctx, m.now())
}

func (m *Manager) setCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(s.ExpiresAt.Sub(m.now()).Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Credentials adapts the request's session to api.CredentialStore. Persist
// starts a new session on w.
func (m *Manager) Credentials(w http.ResponseWriter) *Credentials {
	return &Credentials{manager: m, w: w}
}

type Credentials struct {
	manager *Manager
	w       http.ResponseWriter
}

func (c *Credentials) Token(ctx context.Context) string {
	if s := FromContext(ctx); s != nil {
		return s.Token
	}
	return ""
}

func (c *Credentials) Persist(ctx context.Context, token string, user core.Record) error {
	_, err := c.manager.Start(ctx, c.w, token, user)
	return err
}
