package views

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atinyakov/staffonic/internal/identity"
	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/store"
)

// Authenticator is the identity side of the account flows.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (models.Identity, error)
	SignIn(ctx context.Context, email, password string) (models.Identity, error)
	SignInWithIdP(ctx context.Context, cred identity.Credential) (models.Identity, error)
	UpdateProfile(ctx context.Context, p identity.Profile) (models.Identity, error)
}

// UserCreator stores application records.
type UserCreator interface {
	CreateUser(ctx context.Context, u models.User) (store.InsertResult, error)
}

// Registration is the sign-up form.
type Registration struct {
	Name          string             `json:"name"`
	Email         string             `json:"email"`
	Password      string             `json:"password,omitempty"`
	PhotoURL      string             `json:"photoURL"`
	Role          models.Role        `json:"role"`
	Designation   models.Designation `json:"designation"`
	BankAccountNo string             `json:"bank_account_no"`
	Salary        models.Amount      `json:"salary"`
}

// validateProfileFields checks the fields both registration flows require.
func (r Registration) validateProfileFields(op string) error {
	if r.Role != models.RoleEmployee && r.Role != models.RoleHR {
		return invalid(op, "role must be employee or hr")
	}
	if strings.TrimSpace(r.BankAccountNo) == "" {
		return invalid(op, "bank account number is required")
	}
	if !r.Salary.Positive() {
		return invalid(op, "salary must be positive")
	}
	if !r.Designation.Valid() {
		return invalid(op, "unknown designation %q", r.Designation)
	}
	return nil
}

func (r Registration) record(id models.Identity, now time.Time) models.User {
	u := models.User{
		Name:          r.Name,
		Email:         id.Email,
		PhotoURL:      r.PhotoURL,
		Role:          r.Role,
		Designation:   r.Designation,
		BankAccountNo: strings.TrimSpace(r.BankAccountNo),
		Salary:        r.Salary,
		IsVerified:    false,
		Fired:         false,
		CreatedAt:     &now,
	}
	if u.Name == "" {
		u.Name = id.DisplayName
	}
	if u.PhotoURL == "" {
		u.PhotoURL = id.PhotoURL
	}
	return u
}

// Accounts runs the register and login flows.
type Accounts struct {
	auth  Authenticator
	users UserCreator
	now   func() time.Time
}

// NewAccounts returns the account flows over auth and users.
func NewAccounts(auth Authenticator, users UserCreator) *Accounts {
	return &Accounts{auth: auth, users: users, now: time.Now}
}

// Register creates the identity, sets its profile and stores the application record.
func (a *Accounts) Register(ctx context.Context, r Registration) (models.User, error) {
	const op = "register"

	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	if r.Email == "" || r.Password == "" || r.Name == "" {
		return models.User{}, invalid(op, "name, email and password are required")
	}
	if err := r.validateProfileFields(op); err != nil {
		return models.User{}, err
	}

	id, err := a.auth.SignUp(ctx, r.Email, r.Password)
	if err != nil {
		return models.User{}, fail(op, err)
	}
	if id, err = a.auth.UpdateProfile(ctx, identity.Profile{DisplayName: r.Name, PhotoURL: r.PhotoURL}); err != nil {
		return models.User{}, fail(op, err)
	}

	u := r.record(id, a.now().UTC())
	res, err := a.users.CreateUser(ctx, u)
	if err != nil {
		return models.User{}, fail(op, err)
	}
	u.ID = res.InsertedID
	return u, nil
}

// RegisterWithIdP signs up through a federated provider. Role, bank account,
// salary and designation are checked before the provider is contacted. An
// existing application record is kept.
func (a *Accounts) RegisterWithIdP(ctx context.Context, cred identity.Credential, r Registration) (models.User, error) {
	const op = "register with provider"

	if err := r.validateProfileFields(op); err != nil {
		return models.User{}, err
	}

	id, err := a.auth.SignInWithIdP(ctx, cred)
	if err != nil {
		return models.User{}, fail(op, err)
	}

	u := r.record(id, a.now().UTC())
	res, err := a.users.CreateUser(ctx, u)
	if err != nil && !errors.Is(err, store.ErrDuplicateUser) {
		return models.User{}, fail(op, err)
	}
	u.ID = res.InsertedID
	return u, nil
}

// Login signs in with email and password.
func (a *Accounts) Login(ctx context.Context, email, password string) (models.Identity, error) {
	const op = "login"

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return models.Identity{}, invalid(op, "email and password are required")
	}
	id, err := a.auth.SignIn(ctx, email, password)
	if err != nil {
		return models.Identity{}, fail(op, err)
	}
	return id, nil
}

// LoginWithIdP signs in through a federated provider and makes sure an
// application record exists, defaulting to an unverified employee.
func (a *Accounts) LoginWithIdP(ctx context.Context, cred identity.Credential) (models.Identity, error) {
	const op = "login with provider"

	id, err := a.auth.SignInWithIdP(ctx, cred)
	if err != nil {
		return models.Identity{}, fail(op, err)
	}

	u := models.DefaultUser(id)
	now := a.now().UTC()
	u.CreatedAt = &now
	if _, err := a.users.CreateUser(ctx, u); err != nil && !errors.Is(err, store.ErrDuplicateUser) {
		return models.Identity{}, fail(op, err)
	}
	return id, nil
}
