package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/crypto"
	"github.com/atinyakov/staffonic/internal/identity"
	"github.com/atinyakov/staffonic/internal/models"
)

var (
	// ErrUnknown is returned by Lookup for ids that were never opened or were closed.
	ErrUnknown = errors.New("unknown session")
	// ErrExpired is returned by Lookup for sessions past their TTL.
	ErrExpired = errors.New("session expired")
)

// Repository persists portal sessions. Get returns nil, nil for unknown ids.
type Repository interface {
	Save(ctx context.Context, s models.PortalSession) error
	Get(ctx context.Context, id string) (*models.PortalSession, error)
	Delete(ctx context.Context, id string) error
}

// Entry is a live portal session.
type Entry struct {
	ID        string
	Auth      *identity.Auth
	Resolver  *Resolver
	ExpiresAt time.Time

	unsubscribe func()
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	TTL      time.Duration
	Interval time.Duration
}

// Manager binds portal session ids to an identity.Auth and a Resolver each.
type Manager struct {
	provider identity.Provider
	fetcher  Fetcher
	repo     Repository
	sealer   *crypto.Sealer
	cfg      ManagerConfig
	log      *zap.Logger

	mu   sync.Mutex
	live map[string]*Entry

	now func() time.Time
}

// NewManager returns a Manager. A zero TTL defaults to 12 hours.
func NewManager(provider identity.Provider, fetcher Fetcher, repo Repository, sealer *crypto.Sealer, cfg ManagerConfig, log *zap.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		provider: provider,
		fetcher:  fetcher,
		repo:     repo,
		sealer:   sealer,
		cfg:      cfg,
		log:      log,
		live:     make(map[string]*Entry),
		now:      time.Now,
	}
}

// NewAuth returns a signed-out Auth for a login attempt.
func (m *Manager) NewAuth() *identity.Auth {
	return identity.NewAuth(m.provider)
}

// Open starts a session for a signed-in auth.
func (m *Manager) Open(ctx context.Context, auth *identity.Auth) (*Entry, error) {
	id, ok := auth.Current()
	if !ok {
		return nil, identity.ErrNoSession
	}

	sealed, err := m.sealer.Seal([]byte(auth.RefreshToken()))
	if err != nil {
		return nil, fmt.Errorf("seal refresh token: %w", err)
	}

	now := m.now()
	rec := models.PortalSession{
		ID:           uuid.NewString(),
		UID:          id.UID,
		Email:        id.Email,
		RefreshToken: sealed,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.cfg.TTL),
	}
	if err := m.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	e, _ := m.attach(rec.ID, rec.ExpiresAt, auth)
	m.log.Info("session opened", zap.String("session", rec.ID), zap.String("email", id.Email))
	return e, nil
}

// Lookup returns the live session for id, restoring it from the repository
// when the process restarted since it was opened.
func (m *Manager) Lookup(ctx context.Context, id string) (*Entry, error) {
	m.mu.Lock()
	e, ok := m.live[id]
	m.mu.Unlock()

	if ok {
		if !m.now().Before(e.ExpiresAt) {
			_ = m.Close(ctx, id)
			return nil, ErrExpired
		}
		return e, nil
	}

	rec, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if rec == nil {
		return nil, ErrUnknown
	}
	if rec.Expired(m.now()) {
		if err := m.repo.Delete(ctx, id); err != nil {
			m.log.Warn("failed to delete expired session", zap.String("session", id), zap.Error(err))
		}
		return nil, ErrExpired
	}

	token, err := m.sealer.Open(rec.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("open refresh token: %w", err)
	}
	auth := m.NewAuth()
	if _, err := auth.Restore(ctx, string(token)); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	e, created := m.attach(id, rec.ExpiresAt, auth)
	if created {
		m.log.Info("session restored", zap.String("session", id), zap.String("email", rec.Email))
	}
	return e, nil
}

// Close signs the session out, stops its resolver and forgets it.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.live[id]
	delete(m.live, id)
	m.mu.Unlock()

	if ok {
		e.Auth.SignOut()
		e.unsubscribe()
		e.Resolver.Close()
		liveSessions.Dec()
	}
	return m.repo.Delete(ctx, id)
}

// Sweep closes live sessions past their TTL and returns how many it closed.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()

	m.mu.Lock()
	var expired []string
	for id, e := range m.live {
		if !now.Before(e.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		if err := m.Close(ctx, id); err != nil {
			m.log.Warn("failed to close expired session", zap.String("session", id), zap.Error(err))
		}
	}
	return len(expired)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(ctx); n > 0 {
					m.log.Info("swept expired sessions", zap.Int("closed", n))
				}
			}
		}
	}()
}

// Shutdown stops every live resolver without deleting persisted sessions.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	live := m.live
	m.live = make(map[string]*Entry)
	m.mu.Unlock()

	for _, e := range live {
		e.unsubscribe()
		e.Resolver.Close()
		liveSessions.Dec()
	}
}

// attach registers a live entry for id unless one exists already, in which
// case the existing entry is returned and auth is left unused.
func (m *Manager) attach(id string, expiresAt time.Time, auth *identity.Auth) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.live[id]; ok {
		return e, false
	}

	res := NewResolver(m.fetcher, WithInterval(m.cfg.Interval), WithLogger(m.log.With(zap.String("session", id))))
	e := &Entry{
		ID:        id,
		Auth:      auth,
		Resolver:  res,
		ExpiresAt: expiresAt,
	}
	e.unsubscribe = auth.OnAuthStateChanged(res.OnIdentityChange)
	m.live[id] = e
	liveSessions.Inc()
	return e, true
}
