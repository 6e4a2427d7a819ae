// Package service ties the account flows to portal sessions.
package service

import (
	"context"

	"github.com/atinyakov/staffonic/internal/identity"
	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/session"
	"github.com/atinyakov/staffonic/internal/views"
)

// Sessions opens and closes portal sessions.
type Sessions interface {
	NewAuth() *identity.Auth
	Open(ctx context.Context, auth *identity.Auth) (*session.Entry, error)
	Close(ctx context.Context, id string) error
}

// AuthService signs accounts in and opens a portal session for them.
type AuthService struct {
	sessions Sessions
	users    views.UserCreator
}

// NewAuthService returns an AuthService.
func NewAuthService(sessions Sessions, users views.UserCreator) *AuthService {
	return &AuthService{sessions: sessions, users: users}
}

// Register creates the account and its application record, then opens a session.
func (s *AuthService) Register(ctx context.Context, reg views.Registration) (*session.Entry, models.User, error) {
	auth := s.sessions.NewAuth()
	u, err := views.NewAccounts(auth, s.users).Register(ctx, reg)
	if err != nil {
		return nil, models.User{}, err
	}
	e, err := s.sessions.Open(ctx, auth)
	if err != nil {
		return nil, models.User{}, err
	}
	return e, u, nil
}

// Login signs in with email and password and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*session.Entry, error) {
	auth := s.sessions.NewAuth()
	if _, err := views.NewAccounts(auth, s.users).Login(ctx, email, password); err != nil {
		return nil, err
	}
	return s.sessions.Open(ctx, auth)
}

// LoginWithIdP signs in with a federated credential. With reg set the
// account is registered with those profile fields first.
func (s *AuthService) LoginWithIdP(ctx context.Context, cred identity.Credential, reg *views.Registration) (*session.Entry, error) {
	auth := s.sessions.NewAuth()
	acc := views.NewAccounts(auth, s.users)

	var err error
	if reg != nil {
		_, err = acc.RegisterWithIdP(ctx, cred, *reg)
	} else {
		_, err = acc.LoginWithIdP(ctx, cred)
	}
	if err != nil {
		return nil, err
	}
	return s.sessions.Open(ctx, auth)
}

// Logout closes the session.
func (s *AuthService) Logout(ctx context.Context, id string) error {
	return s.sessions.Close(ctx, id)
}
