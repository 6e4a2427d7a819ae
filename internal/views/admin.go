package views

import (
	"context"

	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/store"
)

// StaffStore is the part of the store the admin panel uses.
type StaffStore interface {
	Users(ctx context.Context) ([]models.User, error)
	Fire(ctx context.Context, id string) (store.UpdateResult, error)
	MakeHR(ctx context.Context, id string) (store.UpdateResult, error)
	ToggleRole(ctx context.Context, id string) (store.UpdateResult, error)
	SetSalary(ctx context.Context, id string, salary models.Amount) (store.UpdateResult, error)
}

// AdminPanel manages verified staff: firing, promotion and salaries.
type AdminPanel struct {
	store StaffStore
	users []models.User
}

// NewAdminPanel returns an empty panel.
func NewAdminPanel(s StaffStore) *AdminPanel {
	return &AdminPanel{store: s}
}

// Load fetches users and keeps the verified ones.
func (a *AdminPanel) Load(ctx context.Context) error {
	users, err := a.store.Users(ctx)
	if err != nil {
		return fail("load staff", err)
	}
	a.users = a.users[:0]
	for _, u := range users {
		if u.IsVerified {
			a.users = append(a.users, u)
		}
	}
	return nil
}

// Users returns a copy of the verified users.
func (a *AdminPanel) Users() []models.User {
	return append([]models.User(nil), a.users...)
}

// Fire marks user id as fired. The role is left as is.
func (a *AdminPanel) Fire(ctx context.Context, id string) (models.User, error) {
	const op = "fire"

	i := indexUser(a.users, id)
	if i < 0 {
		return models.User{}, fail(op, ErrUnknownRecord)
	}
	if a.users[i].Fired {
		return models.User{}, invalid(op, "%s is already fired", a.users[i].Email)
	}
	return a.patch(op, i, func(u *models.User) { u.Fired = true }, func() (store.UpdateResult, error) {
		return a.store.Fire(ctx, id)
	})
}

// MakeHR promotes a non-fired employee to hr.
func (a *AdminPanel) MakeHR(ctx context.Context, id string) (models.User, error) {
	const op = "make hr"

	i := indexUser(a.users, id)
	if i < 0 {
		return models.User{}, fail(op, ErrUnknownRecord)
	}
	if u := a.users[i]; u.Role != models.RoleEmployee || u.Fired {
		return models.User{}, invalid(op, "only active employees can be promoted")
	}
	return a.patch(op, i, func(u *models.User) { u.Role = models.RoleHR }, func() (store.UpdateResult, error) {
		return a.store.MakeHR(ctx, id)
	})
}

// ToggleRole switches a user between employee and hr.
func (a *AdminPanel) ToggleRole(ctx context.Context, id string) (models.User, error) {
	const op = "toggle role"

	i := indexUser(a.users, id)
	if i < 0 {
		return models.User{}, fail(op, ErrUnknownRecord)
	}
	var next models.Role
	switch a.users[i].Role {
	case models.RoleEmployee:
		next = models.RoleHR
	case models.RoleHR:
		next = models.RoleEmployee
	default:
		return models.User{}, invalid(op, "role %q cannot be toggled", a.users[i].Role)
	}
	return a.patch(op, i, func(u *models.User) { u.Role = next }, func() (store.UpdateResult, error) {
		return a.store.ToggleRole(ctx, id)
	})
}

// SetSalary changes the salary of user id. The amount must be positive.
func (a *AdminPanel) SetSalary(ctx context.Context, id string, salary models.Amount) (models.User, error) {
	const op = "set salary"

	if !salary.Positive() {
		return models.User{}, invalid(op, "salary must be positive")
	}
	i := indexUser(a.users, id)
	if i < 0 {
		return models.User{}, fail(op, ErrUnknownRecord)
	}
	return a.patch(op, i, func(u *models.User) { u.Salary = salary }, func() (store.UpdateResult, error) {
		return a.store.SetSalary(ctx, id, salary)
	})
}

func (a *AdminPanel) patch(op string, i int, change func(*models.User), send func() (store.UpdateResult, error)) (models.User, error) {
	before := a.users[i]
	err := command{
		op:    op,
		apply: func() { change(&a.users[i]) },
		send: func() error {
			res, err := send()
			if err != nil {
				return err
			}
			return requireModified(res)
		},
		rollback: func() { a.users[i] = before },
	}.run()
	if err != nil {
		return models.User{}, err
	}
	return a.users[i], nil
}
