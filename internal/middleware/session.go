package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/session"
)

// SessionCookie is the name of the portal session cookie.
const SessionCookie = "staffonic_session"

// SessionLookup resolves a session id to a live session.
type SessionLookup interface {
	Lookup(ctx context.Context, id string) (*session.Entry, error)
}

// LoadSession attaches the live session named by the cookie to the request
// context. Unknown or expired cookies are cleared; the request continues
// without a session.
func LoadSession(sessions SessionLookup, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookie)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			e, err := sessions.Lookup(r.Context(), c.Value)
			if err != nil {
				if !errors.Is(err, session.ErrUnknown) && !errors.Is(err, session.ErrExpired) {
					log.Warn("failed to load session", zap.Error(err), zap.String("request_id", GetRequestID(r.Context())))
				}
				ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, e)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession returns the session attached by LoadSession, or nil.
func GetSession(ctx context.Context) *session.Entry {
	e, _ := ctx.Value(sessionKey).(*session.Entry)
	return e
}

// WithSession returns a copy of ctx carrying e.
func WithSession(ctx context.Context, e *session.Entry) context.Context {
	return context.WithValue(ctx, sessionKey, e)
}

// SetSessionCookie issues the session cookie for e.
func SetSessionCookie(w http.ResponseWriter, e *session.Entry, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    e.ID,
		Path:     "/",
		Expires:  e.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
