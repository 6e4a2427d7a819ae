package identity

import (
	"errors"
	"strings"
)

var (
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("weak password")
	ErrUserDisabled       = errors.New("user disabled")
	ErrTokenExpired       = errors.New("token expired")
	// ErrNoSession is returned when an operation needs a signed-in identity.
	ErrNoSession = errors.New("not signed in")
)

// ProviderError is an error reported by the identity provider.
type ProviderError struct {
	// Code is the provider code, e.g. EMAIL_EXISTS.
	Code string
	// Message is the provider's human readable text, if any.
	Message string
	Status  int
}

// newProviderError splits "WEAK_PASSWORD : Password should be at least 6 characters".
func newProviderError(status int, raw string) *ProviderError {
	code, msg, _ := strings.Cut(raw, ":")
	return &ProviderError{
		Code:    strings.TrimSpace(code),
		Message: strings.TrimSpace(msg),
		Status:  status,
	}
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return "identity: " + e.Code + ": " + e.Message
	}
	return "identity: " + e.Code
}

func (e *ProviderError) Unwrap() error {
	switch e.Code {
	case "EMAIL_EXISTS":
		return ErrEmailInUse
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_EMAIL":
		return ErrInvalidCredentials
	case "WEAK_PASSWORD":
		return ErrWeakPassword
	case "USER_DISABLED":
		return ErrUserDisabled
	case "TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN", "INVALID_ID_TOKEN", "USER_NOT_FOUND":
		return ErrTokenExpired
	}
	return nil
}
