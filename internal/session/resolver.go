// Package session resolves the application record and role of the signed-in
// identity and keeps it fresh, and manages portal sessions built on top.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/store"
)

// DefaultInterval is the role refresh period.
const DefaultInterval = 5 * time.Second

// ErrSignedOut is returned by Refresh when no identity is signed in.
var ErrSignedOut = errors.New("signed out")

// Fetcher loads the application record of an email.
type Fetcher interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

// State is the resolved session as observers see it.
type State struct {
	// Identity is nil when signed out.
	Identity *models.Identity
	// User is the application record; the optimistic default until the store answers.
	User *models.User
	// Loading is true until the first identity notification arrives.
	Loading bool
	// Authoritative is true once User came from the store.
	Authoritative bool
	// Settled is true once the first fetch for the identity finished,
	// whatever its outcome.
	Settled bool
}

// SignedIn reports whether an identity is present.
func (s State) SignedIn() bool { return s.Identity != nil }

// Resolving reports whether access decisions must wait: before the first
// identity notification, and while a signed-in identity has no settled fetch.
func (s State) Resolving() bool {
	return s.Loading || (s.Identity != nil && !s.Settled)
}

// Role returns the role of the resolved user, or "" when signed out.
func (s State) Role() models.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithInterval sets the refresh period.
func WithInterval(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

type subscriber struct {
	fn   func(State)
	seen uint64
}

// Resolver is the single session store: it derives State from identity
// notifications and store fetches and fans changes out to subscribers.
type Resolver struct {
	fetcher  Fetcher
	interval time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	state  State
	seq    uint64
	gen    uint64
	cancel context.CancelFunc
	subs   map[int]*subscriber
	nextID int
	closed bool

	// pubMu serializes deliveries so subscribers never see an older state
	// after a newer one.
	pubMu sync.Mutex

	wg sync.WaitGroup
}

// NewResolver returns a Resolver in the loading state.
func NewResolver(fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:  fetcher,
		interval: DefaultInterval,
		log:      zap.NewNop(),
		state:    State{Loading: true},
		subs:     make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnIdentityChange consumes identity notifications. A nil identity signs out.
func (r *Resolver) OnIdentityChange(id *models.Identity) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	if id != nil && r.state.Identity != nil && r.state.Identity.UID == id.UID &&
		strings.EqualFold(r.state.Identity.Email, id.Email) {
		// same account, fresher token
		ident := *id
		r.state.Identity = &ident
		r.seq++
		r.mu.Unlock()
		r.publish()
		return
	}

	r.gen++
	r.stopLocked()

	if id == nil {
		r.state = State{}
		r.seq++
		r.mu.Unlock()
		r.publish()
		return
	}

	ident := *id
	user := models.DefaultUser(ident)
	r.state = State{Identity: &ident, User: &user}
	r.seq++

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	gen := r.gen
	r.wg.Add(1)
	go r.poll(ctx, gen, ident.Email)
	r.mu.Unlock()

	r.publish()
}

// Current returns a snapshot of the state.
func (r *Resolver) Current() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe calls fn with the current state and on every change. Calls are
// serialized; fn must not change the resolver. The returned func unsubscribes.
func (r *Resolver) Subscribe(fn func(State)) func() {
	r.pubMu.Lock()
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = &subscriber{fn: fn, seen: r.seq}
	st := r.state
	r.mu.Unlock()

	fn(st)
	r.pubMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// Refresh fetches the record now and returns the fetch error, if any.
func (r *Resolver) Refresh(ctx context.Context) error {
	r.mu.Lock()
	if r.state.Identity == nil {
		r.mu.Unlock()
		return ErrSignedOut
	}
	gen, email := r.gen, r.state.Identity.Email
	r.mu.Unlock()

	return r.fetch(ctx, gen, email)
}

// Close stops polling and waits for the poller to exit.
func (r *Resolver) Close() {
	r.mu.Lock()
	r.closed = true
	r.gen++
	r.stopLocked()
	r.subs = make(map[int]*subscriber)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Resolver) stopLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Resolver) poll(ctx context.Context, gen uint64, email string) {
	defer r.wg.Done()

	_ = r.fetch(ctx, gen, email)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.fetch(ctx, gen, email)
		}
	}
}

func (r *Resolver) fetch(ctx context.Context, gen uint64, email string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	user, err := r.fetcher.UserByEmail(ctx, email)
	outcome := outcomeOK
	switch {
	case errors.Is(err, store.ErrNotFound) || (err == nil && user == nil):
		// nothing stored yet, keep what we have
		outcome = outcomeEmpty
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome = outcomeError
		r.log.Warn("failed to fetch user role", zap.String("email", email), zap.Error(err))
	}

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		roleRefreshTotal.WithLabelValues(outcomeStale).Inc()
		return nil
	}
	changed := !r.state.Settled
	r.state.Settled = true
	if outcome == outcomeOK {
		u := *user
		r.state.User = &u
		r.state.Authoritative = true
		changed = true
	}
	if changed {
		r.seq++
	}
	r.mu.Unlock()

	roleRefreshTotal.WithLabelValues(outcome).Inc()
	if changed {
		r.publish()
	}
	if outcome == outcomeError {
		return err
	}
	return nil
}

// publish delivers the latest state to every subscriber that has not seen it.
func (r *Resolver) publish() {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	st, seq := r.state, r.seq
	subs := make([]*subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		if sub.seen < seq {
			sub.seen = seq
			sub.fn(st)
		}
	}
}
