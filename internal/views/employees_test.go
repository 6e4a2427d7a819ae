package views

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/store"
)

func staff() []models.User {
	return []models.User{
		{ID: "u1", Name: "Ann", Email: "ann@x.io", Role: models.RoleEmployee, Salary: 3000, IsVerified: true},
		{ID: "u2", Name: "Bob", Email: "bob@x.io", Role: models.RoleEmployee, Salary: 2500},
		{ID: "u3", Name: "Cid", Email: "cid@x.io", Role: models.RoleHR, Salary: 4000, IsVerified: true},
	}
}

func TestEmployeeList_CountsAndVerify(t *testing.T) {
	fs := newFakeStore()
	fs.users = staff()
	l := NewEmployeeList(fs)
	require.NoError(t, l.Load(context.Background()))

	v, u := l.Counts()
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, u)

	got, err := l.ToggleVerify(context.Background(), "u2")
	require.NoError(t, err)
	assert.True(t, got.IsVerified)
	v, _ = l.Counts()
	assert.Equal(t, 3, v)

	fs.fail = true
	_, err = l.ToggleVerify(context.Background(), "u2")
	assert.ErrorIs(t, err, errStoreDown)
	assert.True(t, l.Users()[1].IsVerified, "failed toggle must roll back")
}

func TestEmployeeList_Pay(t *testing.T) {
	fs := newFakeStore()
	fs.users = staff()
	l := NewEmployeeList(fs)
	l.now = func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, l.Load(context.Background()))
	fs.calls = nil

	_, err := l.Pay(context.Background(), "u2", "July", 2024)
	assert.ErrorIs(t, err, ErrNotVerified)
	assert.Empty(t, fs.calls, "unverified employees are rejected before any request")

	_, err = l.Pay(context.Background(), "u1", "", 2024)
	assert.ErrorIs(t, err, ErrInvalidInput)

	p, err := l.Pay(context.Background(), "u1", "July", 2024)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", p.ID)
	assert.Equal(t, models.StatusPending, fs.createdPayment.Status)
	assert.Equal(t, models.Amount(3000), fs.createdPayment.Salary)
	assert.Equal(t, "u1", fs.createdPayment.UserID)
	assert.Equal(t, models.Year(2024), fs.createdPayment.Year)
}

func TestLoadEmployeeDetails(t *testing.T) {
	fs := newFakeStore()
	fs.users = staff()
	fs.payments = []models.Payment{
		{ID: "p1", Email: "ann@x.io", Month: "May", Year: 2024, Salary: 3000, Status: models.StatusPaid},
		{ID: "p2", Email: "ann@x.io", Month: "June", Year: 2024, Salary: 3000, Status: models.StatusPending},
		{ID: "p3", Email: "bob@x.io", Month: "May", Year: 2024, Salary: 2500, Status: models.StatusPaid},
		{ID: "p4", Email: "ann@x.io", Month: "April", Year: 2024, Salary: 2900, Status: "approved"},
	}

	d, err := LoadEmployeeDetails(context.Background(), fs, "ann@x.io")
	require.NoError(t, err)
	assert.Equal(t, "Ann", d.User.Name)
	assert.Equal(t, []string{"p1", "p4"}, ids(d.Payments))
	assert.Equal(t, []SalaryPoint{{"May-2024", 3000}, {"April-2024", 2900}}, d.Series)

	_, err = LoadEmployeeDetails(context.Background(), fs, "ghost@x.io")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
