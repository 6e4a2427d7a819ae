// Package identity signs accounts in and out against the identity provider
// and tracks the one active identity of a client.
package identity

import (
	"context"
	"time"

	"github.com/atinyakov/staffonic/internal/models"
)

// Token is the credential pair issued at sign-in.
type Token struct {
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Result is what every provider operation returns.
type Result struct {
	Identity models.Identity
	Token    Token
}

// Credential is an assertion from a federated provider (the popup flow).
type Credential struct {
	// ProviderID defaults to google.com.
	ProviderID  string
	IDToken     string
	AccessToken string
}

// Profile holds the editable profile fields.
type Profile struct {
	DisplayName string
	PhotoURL    string
}

// Provider is the identity provider as seen by the portal.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*Result, error)
	SignIn(ctx context.Context, email, password string) (*Result, error)
	SignInWithIdP(ctx context.Context, cred Credential) (*Result, error)
	UpdateProfile(ctx context.Context, idToken string, p Profile) (*Result, error)
	Refresh(ctx context.Context, refreshToken string) (*Result, error)
}
