// Package http serves the Staffonic portal: the account endpoints and the
// feature views, each gated by the route permission table.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/access"
	"github.com/atinyakov/staffonic/internal/identity"
	"github.com/atinyakov/staffonic/internal/middleware"
	"github.com/atinyakov/staffonic/internal/session"
	"github.com/atinyakov/staffonic/internal/store"
	"github.com/atinyakov/staffonic/internal/views"
)

// Store is the part of the remote store the views read and write.
type Store interface {
	views.WorkStore
	views.PaymentLister
	views.EmployeeStore
	views.DetailsStore
	views.ProgressStore
	views.StaffStore
	views.PayrollStore
}

// Handler serves the feature views.
type Handler struct {
	// Store is the remote REST store.
	Store Store
	// Access decides which routes and actions a role may use.
	Access *access.Table
	// Log receives handler failures.
	Log *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps command and identity errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, views.ErrInvalidInput), errors.Is(err, identity.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrTokenExpired),
		errors.Is(err, identity.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrUserDisabled):
		return http.StatusForbidden
	case errors.Is(err, views.ErrUnknownRecord), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, views.ErrNotVerified),
		errors.Is(err, views.ErrAlreadyPaid),
		errors.Is(err, views.ErrNotApplied),
		errors.Is(err, identity.ErrEmailInUse),
		errors.Is(err, store.ErrDuplicateUser):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &views.CommandError{Op: "decode request", Err: views.ErrInvalidInput}
	}
	return nil
}

func principal(e *session.Entry) access.Principal {
	if e == nil {
		return access.Principal{}
	}
	st := e.Resolver.Current()
	return access.Principal{Loading: st.Resolving(), SignedIn: st.SignedIn(), Role: st.Role()}
}

// Gate applies the permission rule of pattern to the session on the request.
func Gate(table *access.Table, pattern string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch table.Decide(pattern, principal(middleware.GetSession(r.Context()))) {
			case access.Allow:
				next.ServeHTTP(w, r)
			case access.Wait:
				writeJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
			case access.Login:
				http.Redirect(w, r, "/login?from="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			default:
				writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
			}
		})
	}
}

// can reports whether the session may perform action, answering 403 when not.
func (h *Handler) can(w http.ResponseWriter, r *http.Request, action string) bool {
	e := middleware.GetSession(r.Context())
	if e != nil && h.Access.Can(e.Resolver.Current().Role(), action) {
		return true
	}
	writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	return false
}

// current returns the session of a gated request.
func current(r *http.Request) (*session.Entry, session.State) {
	e := middleware.GetSession(r.Context())
	return e, e.Resolver.Current()
}
