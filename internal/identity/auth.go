package identity

import (
	"context"
	"sync"
	"time"

	"github.com/atinyakov/staffonic/internal/models"
)

// expirySkew refreshes ID tokens slightly before they lapse.
const expirySkew = time.Minute

// Listener observes sign-in and sign-out. A nil identity means signed out.
type Listener func(id *models.Identity)

// Auth holds the zero or one active identity of a client.
type Auth struct {
	provider Provider

	mu        sync.Mutex
	current   *Result
	listeners map[int]Listener
	nextID    int

	now func() time.Time
}

// NewAuth returns a signed-out Auth backed by provider.
func NewAuth(provider Provider) *Auth {
	return &Auth{
		provider:  provider,
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// SignUp creates an account and signs it in.
func (a *Auth) SignUp(ctx context.Context, email, password string) (models.Identity, error) {
	res, err := a.provider.SignUp(ctx, email, password)
	if err != nil {
		return models.Identity{}, err
	}
	a.set(res)
	return res.Identity, nil
}

// SignIn signs in with email and password.
func (a *Auth) SignIn(ctx context.Context, email, password string) (models.Identity, error) {
	res, err := a.provider.SignIn(ctx, email, password)
	if err != nil {
		return models.Identity{}, err
	}
	a.set(res)
	return res.Identity, nil
}

// SignInWithIdP signs in with a federated credential.
func (a *Auth) SignInWithIdP(ctx context.Context, cred Credential) (models.Identity, error) {
	res, err := a.provider.SignInWithIdP(ctx, cred)
	if err != nil {
		return models.Identity{}, err
	}
	a.set(res)
	return res.Identity, nil
}

// Restore signs in again from a remembered refresh token.
func (a *Auth) Restore(ctx context.Context, refreshToken string) (models.Identity, error) {
	res, err := a.provider.Refresh(ctx, refreshToken)
	if err != nil {
		return models.Identity{}, err
	}
	a.set(res)
	return res.Identity, nil
}

// SignOut drops the active identity. Signing out twice is a no-op.
func (a *Auth) SignOut() {
	a.mu.Lock()
	if a.current == nil {
		a.mu.Unlock()
		return
	}
	a.current = nil
	ls := a.snapshot()
	a.mu.Unlock()

	for _, fn := range ls {
		fn(nil)
	}
}

// UpdateProfile changes display name and photo of the signed-in account and
// notifies listeners with the updated identity.
func (a *Auth) UpdateProfile(ctx context.Context, p Profile) (models.Identity, error) {
	idToken, err := a.Token(ctx)
	if err != nil {
		return models.Identity{}, err
	}
	res, err := a.provider.UpdateProfile(ctx, idToken, p)
	if err != nil {
		return models.Identity{}, err
	}

	a.mu.Lock()
	if a.current == nil {
		a.mu.Unlock()
		return models.Identity{}, ErrNoSession
	}
	if res.Token.RefreshToken == "" {
		res.Token.RefreshToken = a.current.Token.RefreshToken
	}
	a.current = res
	ls := a.snapshot()
	a.mu.Unlock()

	for _, fn := range ls {
		ident := res.Identity
		fn(&ident)
	}
	return res.Identity, nil
}

// Current returns the signed-in identity.
func (a *Auth) Current() (models.Identity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return models.Identity{}, false
	}
	return a.current.Identity, true
}

// RefreshToken returns the refresh token of the active session, or "".
func (a *Auth) RefreshToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return ""
	}
	return a.current.Token.RefreshToken
}

// Token returns a valid ID token, refreshing it when it is about to expire.
func (a *Auth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()
	if cur == nil {
		return "", ErrNoSession
	}
	exp := cur.Token.ExpiresAt
	if exp.IsZero() || a.now().Add(expirySkew).Before(exp) {
		return cur.Token.IDToken, nil
	}

	res, err := a.provider.Refresh(ctx, cur.Token.RefreshToken)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != cur {
		// signed out or replaced while refreshing
		return "", ErrNoSession
	}
	a.current = res
	return res.Token.IDToken, nil
}

// OnAuthStateChanged registers fn, calls it with the current state and then
// after every sign-in and sign-out. The returned func unsubscribes.
func (a *Auth) OnAuthStateChanged(fn Listener) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	var cur *models.Identity
	if a.current != nil {
		ident := a.current.Identity
		cur = &ident
	}
	a.mu.Unlock()

	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

func (a *Auth) set(res *Result) {
	a.mu.Lock()
	a.current = res
	ls := a.snapshot()
	a.mu.Unlock()

	for _, fn := range ls {
		ident := res.Identity
		fn(&ident)
	}
}

// snapshot must be called with mu held.
func (a *Auth) snapshot() []Listener {
	ls := make([]Listener, 0, len(a.listeners))
	for _, fn := range a.listeners {
		ls = append(ls, fn)
	}
	return ls
}
