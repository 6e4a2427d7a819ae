package views

import (
	"context"
	"strings"
	"time"

	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/store"
)

// EmployeeStore is the part of the store the HR employee list uses.
type EmployeeStore interface {
	Users(ctx context.Context) ([]models.User, error)
	ToggleVerify(ctx context.Context, id string) (store.UpdateResult, error)
	CreatePayment(ctx context.Context, p models.Payment) (store.InsertResult, error)
}

// EmployeeList is the HR view of every user record.
type EmployeeList struct {
	store EmployeeStore
	users []models.User
	now   func() time.Time
}

// NewEmployeeList returns an empty list.
func NewEmployeeList(s EmployeeStore) *EmployeeList {
	return &EmployeeList{store: s, now: time.Now}
}

// Load fetches every user.
func (l *EmployeeList) Load(ctx context.Context) error {
	users, err := l.store.Users(ctx)
	if err != nil {
		return fail("load employees", err)
	}
	l.users = users
	return nil
}

// Users returns a copy of the loaded users.
func (l *EmployeeList) Users() []models.User {
	return append([]models.User(nil), l.users...)
}

// Counts returns how many users are verified and unverified.
func (l *EmployeeList) Counts() (verified, unverified int) {
	for _, u := range l.users {
		if u.IsVerified {
			verified++
		} else {
			unverified++
		}
	}
	return verified, unverified
}

// ToggleVerify flips the verified flag of user id.
func (l *EmployeeList) ToggleVerify(ctx context.Context, id string) (models.User, error) {
	const op = "toggle verification"

	i := indexUser(l.users, id)
	if i < 0 {
		return models.User{}, fail(op, ErrUnknownRecord)
	}
	err := command{
		op:    op,
		apply: func() { l.users[i].IsVerified = !l.users[i].IsVerified },
		send: func() error {
			res, err := l.store.ToggleVerify(ctx, id)
			if err != nil {
				return err
			}
			return requireModified(res)
		},
		rollback: func() { l.users[i].IsVerified = !l.users[i].IsVerified },
	}.run()
	if err != nil {
		return models.User{}, err
	}
	return l.users[i], nil
}

// Pay requests a pending payment of the user's salary for month and year.
// Only verified users can be paid.
func (l *EmployeeList) Pay(ctx context.Context, id, month string, year int) (models.Payment, error) {
	const op = "pay employee"

	i := indexUser(l.users, id)
	if i < 0 {
		return models.Payment{}, fail(op, ErrUnknownRecord)
	}
	u := l.users[i]
	if !u.IsVerified {
		return models.Payment{}, fail(op, ErrNotVerified)
	}
	month = strings.TrimSpace(month)
	if month == "" || year <= 0 {
		return models.Payment{}, invalid(op, "month and year are required")
	}
	if !u.Salary.Positive() {
		return models.Payment{}, invalid(op, "%s has no salary", u.Email)
	}

	now := l.now().UTC()
	p := models.Payment{
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Salary:    u.Salary,
		Month:     month,
		Year:      models.Year(year),
		Status:    models.StatusPending,
		CreatedAt: &now,
	}
	res, err := l.store.CreatePayment(ctx, p)
	if err != nil {
		return models.Payment{}, fail(op, err)
	}
	if res.InsertedID == "" {
		return models.Payment{}, fail(op, ErrNotApplied)
	}
	p.ID = res.InsertedID
	return p, nil
}

// DetailsStore is the part of the store the employee details view uses.
type DetailsStore interface {
	Employee(ctx context.Context, email string) (*models.User, error)
	Payments(ctx context.Context) ([]models.Payment, error)
}

// SalaryPoint is one bar of the salary chart.
type SalaryPoint struct {
	MonthYear string        `json:"monthYear"`
	Salary    models.Amount `json:"salary"`
}

// EmployeeDetails is one user with their paid salary history.
type EmployeeDetails struct {
	User     models.User      `json:"user"`
	Payments []models.Payment `json:"payments"`
	Series   []SalaryPoint    `json:"series"`
}

// LoadEmployeeDetails fetches the user behind email and their paid payments.
func LoadEmployeeDetails(ctx context.Context, s DetailsStore, email string) (*EmployeeDetails, error) {
	const op = "load employee details"

	u, err := s.Employee(ctx, email)
	if err != nil {
		return nil, fail(op, err)
	}
	all, err := s.Payments(ctx)
	if err != nil {
		return nil, fail(op, err)
	}

	d := &EmployeeDetails{User: *u, Payments: []models.Payment{}, Series: []SalaryPoint{}}
	for _, p := range all {
		if strings.EqualFold(p.Email, email) && p.Status.IsPaid() {
			d.Payments = append(d.Payments, p)
			d.Series = append(d.Series, SalaryPoint{MonthYear: p.MonthYear(), Salary: p.Salary})
		}
	}
	return d, nil
}

func indexUser(users []models.User, id string) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func requireModified(res store.UpdateResult) error {
	if res.ModifiedCount == 0 {
		return ErrNotApplied
	}
	return nil
}
