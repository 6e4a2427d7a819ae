package identity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIDToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":            sub,
		"email":          email,
		"email_verified": true,
		"exp":            exp.Unix(),
	})
	s, err := tok.SignedString([]byte("emulator"))
	require.NoError(t, err)
	return s
}

// fakeToolkit serves the subset of the Identity Toolkit and Secure Token APIs
// the provider uses.
func fakeToolkit(t *testing.T, handle func(method string, body map[string]any) (int, any)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var body map[string]any
		method := strings.TrimPrefix(r.URL.Path, "/v1/")
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			require.NoError(t, r.ParseForm())
			body = map[string]any{}
			for k := range r.PostForm {
				body[k] = r.PostForm.Get(k)
			}
		} else {
			data, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(data, &body))
		}

		code, resp := handle(method, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestFirebase(ts *httptest.Server) *Firebase {
	return NewFirebase(FirebaseConfig{APIKey: "test-key", IdentityURL: ts.URL, TokenURL: ts.URL}, ts.Client(), nil, nil)
}

func TestFirebase_SignIn(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	idToken := testIDToken(t, "uid-1", "ann@x.io", exp)

	ts := fakeToolkit(t, func(method string, body map[string]any) (int, any) {
		assert.Equal(t, "accounts:signInWithPassword", method)
		assert.Equal(t, "ann@x.io", body["email"])
		assert.Equal(t, true, body["returnSecureToken"])
		return http.StatusOK, map[string]any{
			"localId": "uid-1", "email": "ann@x.io", "displayName": "Ann",
			"idToken": idToken, "refreshToken": "r1", "expiresIn": "3600",
		}
	})

	res, err := newTestFirebase(ts).SignIn(context.Background(), "ann@x.io", "secret")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", res.Identity.UID)
	assert.Equal(t, "Ann", res.Identity.DisplayName)
	assert.True(t, res.Identity.EmailVerified)
	assert.True(t, exp.Equal(res.Identity.ExpiresAt))
	assert.Equal(t, "r1", res.Token.RefreshToken)
}

func TestFirebase_ErrorMapping(t *testing.T) {
	tests := []struct {
		message string
		want    error
	}{
		{"EMAIL_EXISTS", ErrEmailInUse},
		{"INVALID_LOGIN_CREDENTIALS", ErrInvalidCredentials},
		{"EMAIL_NOT_FOUND", ErrInvalidCredentials},
		{"WEAK_PASSWORD : Password should be at least 6 characters", ErrWeakPassword},
		{"USER_DISABLED", ErrUserDisabled},
		{"TOKEN_EXPIRED", ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			ts := fakeToolkit(t, func(string, map[string]any) (int, any) {
				return http.StatusBadRequest, map[string]any{
					"error": map[string]any{"code": 400, "message": tt.message},
				}
			})

			_, err := newTestFirebase(ts).SignUp(context.Background(), "a@b.c", "pw")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, http.StatusBadRequest, pe.Status)
		})
	}
}

func TestFirebase_WeakPasswordMessage(t *testing.T) {
	pe := newProviderError(400, "WEAK_PASSWORD : Password should be at least 6 characters")
	assert.Equal(t, "WEAK_PASSWORD", pe.Code)
	assert.Equal(t, "Password should be at least 6 characters", pe.Message)
}

func TestFirebase_SignInWithIdP(t *testing.T) {
	idToken := testIDToken(t, "uid-g", "g@x.io", time.Now().Add(time.Hour))

	ts := fakeToolkit(t, func(method string, body map[string]any) (int, any) {
		assert.Equal(t, "accounts:signInWithIdp", method)
		post, err := url.ParseQuery(body["postBody"].(string))
		require.NoError(t, err)
		assert.Equal(t, "google.com", post.Get("providerId"))
		assert.Equal(t, "google-jwt", post.Get("id_token"))
		return http.StatusOK, map[string]any{
			"localId": "uid-g", "email": "g@x.io", "photoUrl": "http://p",
			"idToken": idToken, "refreshToken": "rg", "expiresIn": "3600",
		}
	})

	res, err := newTestFirebase(ts).SignInWithIdP(context.Background(), Credential{IDToken: "google-jwt"})
	require.NoError(t, err)
	assert.Equal(t, "http://p", res.Identity.PhotoURL)
}

func TestFirebase_Refresh(t *testing.T) {
	idToken := testIDToken(t, "uid-1", "ann@x.io", time.Now().Add(time.Hour))

	ts := fakeToolkit(t, func(method string, body map[string]any) (int, any) {
		switch method {
		case "token":
			assert.Equal(t, "refresh_token", body["grant_type"])
			assert.Equal(t, "r1", body["refresh_token"])
			return http.StatusOK, map[string]any{
				"id_token": idToken, "refresh_token": "r2", "expires_in": "3600", "user_id": "uid-1",
			}
		case "accounts:lookup":
			assert.Equal(t, idToken, body["idToken"])
			return http.StatusOK, map[string]any{
				"users": []map[string]any{{"localId": "uid-1", "email": "ann@x.io", "displayName": "Ann"}},
			}
		}
		t.Errorf("unexpected call %s", method)
		return http.StatusNotFound, nil
	})

	res, err := newTestFirebase(ts).Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", res.Identity.DisplayName)
	assert.Equal(t, "r2", res.Token.RefreshToken)
	assert.Equal(t, idToken, res.Token.IDToken)
}

func TestFirebase_UpdateProfile(t *testing.T) {
	idToken := testIDToken(t, "uid-1", "ann@x.io", time.Now().Add(time.Hour))

	ts := fakeToolkit(t, func(method string, body map[string]any) (int, any) {
		assert.Equal(t, "accounts:update", method)
		assert.Equal(t, "Ann B", body["displayName"])
		assert.Equal(t, "http://new", body["photoUrl"])
		return http.StatusOK, map[string]any{
			"localId": "uid-1", "email": "ann@x.io", "displayName": "Ann B", "photoUrl": "http://new",
		}
	})

	res, err := newTestFirebase(ts).UpdateProfile(context.Background(), idToken, Profile{DisplayName: "Ann B", PhotoURL: "http://new"})
	require.NoError(t, err)
	assert.Equal(t, "Ann B", res.Identity.DisplayName)
	assert.Equal(t, idToken, res.Token.IDToken)
}
