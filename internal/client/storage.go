package client

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atinyakov/staffonic/internal/crypto"
	"github.com/atinyakov/staffonic/internal/identity"
)

const keyFile = "key"

// Saved is the remembered sign-in.
type Saved struct {
	Email        string    `json:"email"`
	RefreshToken string    `json:"refresh_token"`
	SavedAt      time.Time `json:"saved_at"`
}

// SessionFile keeps the refresh token on disk, sealed with a key stored
// next to it.
type SessionFile struct {
	path   string
	sealer *crypto.Sealer
}

// OpenSessionFile prepares the directory of path and loads, or creates,
// the sealing key.
func OpenSessionFile(path string) (*SessionFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	keyPath := filepath.Join(dir, keyFile)
	key, err := os.ReadFile(keyPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
		if err := os.WriteFile(keyPath, key, 0o600); err != nil {
			return nil, fmt.Errorf("write session key: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("read session key: %w", err)
	}

	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return &SessionFile{path: path, sealer: sealer}, nil
}

// Load returns the remembered sign-in, or nil when there is none.
func (f *SessionFile) Load() (*Saved, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var s Saved
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	token, err := f.sealer.Open(s.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}
	s.RefreshToken = string(token)
	return &s, nil
}

// Save remembers the refresh token of email.
func (f *SessionFile) Save(email, refreshToken string) error {
	sealed, err := f.sealer.Seal([]byte(refreshToken))
	if err != nil {
		return err
	}
	data, err := json.Marshal(Saved{Email: email, RefreshToken: sealed, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

// Clear forgets the sign-in.
func (f *SessionFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Restore signs auth in from the session file. A missing file leaves auth
// signed out; a rejected token also clears the file.
func Restore(ctx context.Context, auth *identity.Auth, f *SessionFile) error {
	saved, err := f.Load()
	if err != nil || saved == nil {
		return err
	}
	if _, err := auth.Restore(ctx, saved.RefreshToken); err != nil {
		if errors.Is(err, identity.ErrTokenExpired) {
			_ = f.Clear()
		}
		return fmt.Errorf("restore session of %s: %w", saved.Email, err)
	}
	return nil
}
