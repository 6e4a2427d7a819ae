package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/models"
)

// FirebaseConfig configures the Identity Toolkit client.
type FirebaseConfig struct {
	APIKey string
	// IdentityURL defaults to https://identitytoolkit.googleapis.com.
	IdentityURL string
	// TokenURL defaults to https://securetoken.googleapis.com.
	TokenURL string
	// RequestURI is sent with IdP sign-ins.
	RequestURI string
}

// Firebase implements Provider over the Identity Toolkit REST API.
type Firebase struct {
	cfg      FirebaseConfig
	http     *http.Client
	verifier Verifier
	log      *zap.Logger
}

// NewFirebase returns a Firebase provider. verifier may be nil, in which case
// token claims are parsed without signature checks.
func NewFirebase(cfg FirebaseConfig, client *http.Client, verifier Verifier, log *zap.Logger) *Firebase {
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = "https://identitytoolkit.googleapis.com"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://securetoken.googleapis.com"
	}
	if cfg.RequestURI == "" {
		cfg.RequestURI = "http://localhost"
	}
	cfg.IdentityURL = strings.TrimRight(cfg.IdentityURL, "/")
	cfg.TokenURL = strings.TrimRight(cfg.TokenURL, "/")
	if client == nil {
		client = http.DefaultClient
	}
	if verifier == nil {
		verifier = UnverifiedParser{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Firebase{cfg: cfg, http: client, verifier: verifier, log: log}
}

type accountResponse struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhotoURL      string `json:"photoUrl"`
	EmailVerified bool   `json:"emailVerified"`
	IDToken       string `json:"idToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresIn     string `json:"expiresIn"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignUp creates an email/password account.
func (f *Firebase) SignUp(ctx context.Context, email, password string) (*Result, error) {
	var resp accountResponse
	err := f.call(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return f.result(ctx, resp)
}

// SignIn signs in with email and password.
func (f *Firebase) SignIn(ctx context.Context, email, password string) (*Result, error) {
	var resp accountResponse
	err := f.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return f.result(ctx, resp)
}

// SignInWithIdP exchanges a federated credential for a session.
func (f *Firebase) SignInWithIdP(ctx context.Context, cred Credential) (*Result, error) {
	providerID := cred.ProviderID
	if providerID == "" {
		providerID = "google.com"
	}
	post := url.Values{"providerId": {providerID}}
	if cred.IDToken != "" {
		post.Set("id_token", cred.IDToken)
	}
	if cred.AccessToken != "" {
		post.Set("access_token", cred.AccessToken)
	}

	var resp accountResponse
	err := f.call(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            post.Encode(),
		"requestUri":          f.cfg.RequestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return f.result(ctx, resp)
}

// UpdateProfile sets display name and photo of the account behind idToken.
func (f *Firebase) UpdateProfile(ctx context.Context, idToken string, p Profile) (*Result, error) {
	var resp accountResponse
	err := f.call(ctx, "accounts:update", map[string]any{
		"idToken":           idToken,
		"displayName":       p.DisplayName,
		"photoUrl":          p.PhotoURL,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.IDToken == "" {
		resp.IDToken = idToken
	}
	return f.result(ctx, resp)
}

// Refresh exchanges a refresh token for a fresh ID token and reloads the profile.
func (f *Firebase) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	endpoint := f.cfg.TokenURL + "/v1/token?key=" + url.QueryEscape(f.cfg.APIKey)

	var tok struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	if err := f.post(ctx, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &tok); err != nil {
		return nil, err
	}

	acc, err := f.lookup(ctx, tok.IDToken)
	if err != nil {
		return nil, err
	}
	acc.IDToken = tok.IDToken
	acc.RefreshToken = tok.RefreshToken
	acc.ExpiresIn = tok.ExpiresIn
	if acc.LocalID == "" {
		acc.LocalID = tok.UserID
	}
	return f.result(ctx, *acc)
}

func (f *Firebase) lookup(ctx context.Context, idToken string) (*accountResponse, error) {
	var resp struct {
		Users []accountResponse `json:"users"`
	}
	if err := f.call(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, &ProviderError{Code: "USER_NOT_FOUND", Status: http.StatusBadRequest}
	}
	return &resp.Users[0], nil
}

func (f *Firebase) result(ctx context.Context, resp accountResponse) (*Result, error) {
	id := models.Identity{
		UID:           resp.LocalID,
		Email:         resp.Email,
		DisplayName:   resp.DisplayName,
		PhotoURL:      resp.PhotoURL,
		EmailVerified: resp.EmailVerified,
	}
	if secs, err := strconv.Atoi(resp.ExpiresIn); err == nil {
		id.ExpiresAt = time.Now().Add(time.Duration(secs) * time.Second)
	}

	claims, err := f.verifier.Verify(ctx, resp.IDToken)
	if err != nil {
		return nil, err
	}
	if claims.Subject != "" {
		id.UID = claims.Subject
	}
	if id.Email == "" {
		id.Email = claims.Email
	}
	if id.DisplayName == "" {
		id.DisplayName = claims.Name
	}
	if id.PhotoURL == "" {
		id.PhotoURL = claims.Picture
	}
	id.EmailVerified = id.EmailVerified || claims.EmailVerified
	if !claims.ExpiresAt.IsZero() {
		id.ExpiresAt = claims.ExpiresAt
	}

	return &Result{
		Identity: id,
		Token: Token{
			IDToken:      resp.IDToken,
			RefreshToken: resp.RefreshToken,
			ExpiresAt:    id.ExpiresAt,
		},
	}, nil
}

func (f *Firebase) call(ctx context.Context, method string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	endpoint := f.cfg.IdentityURL + "/v1/" + method + "?key=" + url.QueryEscape(f.cfg.APIKey)
	return f.post(ctx, endpoint, "application/json", bytes.NewReader(b), out)
}

func (f *Firebase) post(ctx context.Context, endpoint, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if json.Unmarshal(data, &e) != nil || e.Error.Message == "" {
			return &ProviderError{Code: http.StatusText(resp.StatusCode), Message: string(data), Status: resp.StatusCode}
		}
		pe := newProviderError(resp.StatusCode, e.Error.Message)
		f.log.Debug("identity provider error", zap.String("code", pe.Code), zap.Int("status", resp.StatusCode))
		return pe
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}
