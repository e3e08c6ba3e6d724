package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Policy is the single place that turns an expired or missing session into
// a redirect to the login screen.
type Policy struct {
	manager        *Manager
	verifyInterval time.Duration
	logger         *log.Logger
	now            func() time.Time
}

func NewPolicy(m *Manager, verifyInterval time.Duration, logger *log.Logger) *Policy {
	if logger == nil {
		logger = log.Discard()
	}
	return &Policy{
		manager:        m,
		verifyInterval: verifyInterval,
		logger:         logger.WithComponent(log.ComponentSession),
		now:            time.Now,
	}
}

// Attach subscribes the policy to the client's unauthenticated events: the
// stored credentials are dropped as soon as any call sees a 401.
func (p *Policy) Attach(c *api.Client) {
	c.OnUnauthenticated(func(ctx context.Context, err *api.RequestError) {
		if FromContext(ctx) == nil {
			return
		}
		p.logger.InfoContext(ctx, "Session expired",
			log.FieldEndpoint, err.Endpoint,
			log.FieldOperation, log.OpLogout)
		p.manager.Invalidate(ctx)
	})
}

// HandleError clears the session and redirects to login when err is an
// authentication failure. It reports whether it wrote a response.
func (p *Policy) HandleError(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, api.ErrUnauthenticated) {
		return false
	}
	p.Logout(w, r)
	return true
}

// Logout clears the session and redirects to login.
func (p *Policy) Logout(w http.ResponseWriter, r *http.Request) {
	p.manager.Clear(r.Context(), w)
	Redirect(w, r, LoginPath)
}

// RequireAuth redirects requests without an authenticated session to login.
func (p *Policy) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).Authenticated() {
			Redirect(w, r, LoginPath)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectIfAuthenticated sends signed-in users away from login and register.
func (p *Policy) RedirectIfAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()).Authenticated() {
			Redirect(w, r, DashboardPath)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ProfileFetcher is the part of the API verification needs.
type ProfileFetcher interface {
	GetProfile(ctx context.Context) (core.Record, error)
}

// Verify re-checks the token against the profile endpoint when the last
// check is older than the verify interval, merging the fresh profile into
// the cached user. Any failure logs the user out.
func (p *Policy) Verify(client func(w http.ResponseWriter) ProfileFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := FromContext(r.Context())
			if !s.Authenticated() || p.verifyInterval <= 0 || p.now().Sub(s.VerifiedAt) < p.verifyInterval {
				next.ServeHTTP(w, r)
				return
			}
			profile, err := client(w).GetProfile(r.Context())
			if err != nil {
				p.logger.WarnContext(r.Context(), "Session verification failed",
					log.FieldOperation, log.OpVerify, log.FieldError, err)
				p.Logout(w, r)
				return
			}
			s.MergeUser(profile)
			s.VerifiedAt = p.now()
			if err := p.manager.Update(r.Context(), s); err != nil {
				p.logger.ErrorContext(r.Context(), "Failed to save verified session",
					log.FieldErrorType, log.ErrorTypeDatabase, log.FieldError, err)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Redirect navigates to target, using HX-Redirect for HTMX requests.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
