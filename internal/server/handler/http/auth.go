package http

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/access"
	"github.com/atinyakov/staffonic/internal/identity"
	"github.com/atinyakov/staffonic/internal/middleware"
	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/session"
	"github.com/atinyakov/staffonic/internal/views"
)

// AuthService defines the account operations required by the HTTP handlers.
type AuthService interface {
	// Register creates the account and opens a session for it.
	Register(ctx context.Context, reg views.Registration) (*session.Entry, models.User, error)
	// Login signs in with email and password.
	Login(ctx context.Context, email, password string) (*session.Entry, error)
	// LoginWithIdP signs in with a federated credential, registering first when reg is set.
	LoginWithIdP(ctx context.Context, cred identity.Credential, reg *views.Registration) (*session.Entry, error)
	// Logout closes the session.
	Logout(ctx context.Context, id string) error
}

// AuthHandler handles registration, login and the public pages.
type AuthHandler struct {
	// AuthService performs the underlying account operations.
	AuthService AuthService
	// Access lists the routes shown to each role.
	Access *access.Table
	// CookieSecure marks the session cookie Secure (portal served over TLS).
	CookieSecure bool
	// Log receives handler failures.
	Log *zap.Logger
}

// LoginRequest represents the JSON payload for password login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// From is the location remembered by the login redirect.
	From string `json:"from"`
}

// IdPRequest represents the JSON payload for federated login.
type IdPRequest struct {
	ProviderID   string              `json:"providerId"`
	IDToken      string              `json:"idToken"`
	AccessToken  string              `json:"accessToken"`
	From         string              `json:"from"`
	Registration *views.Registration `json:"registration,omitempty"`
}

type loginResponse struct {
	Identity models.Identity `json:"identity"`
	User     *models.User    `json:"user,omitempty"`
	Redirect string          `json:"redirect"`
}

type stateResponse struct {
	SignedIn      bool             `json:"signedIn"`
	Loading       bool             `json:"loading"`
	Authoritative bool             `json:"authoritative"`
	Identity      *models.Identity `json:"identity,omitempty"`
	User          *models.User     `json:"user,omitempty"`
	Routes        []string         `json:"routes,omitempty"`
}

// redirectTarget keeps only local paths; anything else lands on the home page.
func redirectTarget(from string) string {
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return "/"
	}
	return from
}

func (h *AuthHandler) state(e *session.Entry) stateResponse {
	if e == nil {
		return stateResponse{}
	}
	st := e.Resolver.Current()
	resp := stateResponse{
		SignedIn:      st.SignedIn(),
		Loading:       st.Resolving(),
		Authoritative: st.Authoritative,
		Identity:      st.Identity,
		User:          st.User,
	}
	if st.SignedIn() {
		resp.Routes = h.Access.Visible(st.Role())
	}
	return resp
}

// Home answers the landing page with a summary of the viewer.
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state(middleware.GetSession(r.Context())))
}

// LoginPage echoes the location the login should return to.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	e := middleware.GetSession(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"from":     redirectTarget(r.URL.Query().Get("from")),
		"signedIn": e != nil && e.Resolver.Current().SignedIn(),
	})
}

// RegisterPage lists the choices offered by the sign-up form.
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"roles":        []models.Role{models.RoleEmployee, models.RoleHR},
		"designations": []models.Designation{models.SalesAssistant, models.SocialMediaExecutive, models.DigitalMarketer},
	})
}

// Contact answers the public contact page.
func (h *AuthHandler) Contact(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"email": "support@staffonic.io",
		"phone": "+1 555 0100",
	})
}

// Me reports the resolved session state and the routes the role may open.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	e := middleware.GetSession(r.Context())
	if e == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not signed in"})
		return
	}
	writeJSON(w, http.StatusOK, h.state(e))
}

// Register handles account registration. It expects the full sign-up form,
// creates the identity and the application record and opens a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reg views.Registration
	if err := decode(r, &reg); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	e, u, err := h.AuthService.Register(r.Context(), reg)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	id, _ := e.Auth.Current()
	middleware.SetSessionCookie(w, e, h.CookieSecure)
	writeJSON(w, http.StatusCreated, loginResponse{Identity: id, User: &u, Redirect: "/"})
}

// Login handles password sign-in and returns the remembered location.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}

	e, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.signedIn(w, e, req.From)
}

// LoginIdP handles federated sign-in, optionally registering the account.
func (h *AuthHandler) LoginIdP(w http.ResponseWriter, r *http.Request) {
	var req IdPRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.IDToken == "" && req.AccessToken == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "credential is required"})
		return
	}

	cred := identity.Credential{ProviderID: req.ProviderID, IDToken: req.IDToken, AccessToken: req.AccessToken}
	e, err := h.AuthService.LoginWithIdP(r.Context(), cred, req.Registration)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.signedIn(w, e, req.From)
}

func (h *AuthHandler) signedIn(w http.ResponseWriter, e *session.Entry, from string) {
	id, _ := e.Auth.Current()
	middleware.SetSessionCookie(w, e, h.CookieSecure)
	writeJSON(w, http.StatusOK, loginResponse{Identity: id, Redirect: redirectTarget(from)})
}

// Logout closes the current session, if any, and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if e := middleware.GetSession(r.Context()); e != nil {
		if err := h.AuthService.Logout(r.Context(), e.ID); err != nil {
			h.Log.Warn("failed to close session", zap.Error(err), zap.String("session", e.ID))
		}
	}
	middleware.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
