package views

import (
	"context"
	"errors"
	"time"

	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/store"
)

var errStoreDown = errors.New("store down")

// fakeStore records calls and answers from its fields.
type fakeStore struct {
	users    []models.User
	records  []models.WorkRecord
	payments []models.Payment

	fail     bool
	modified int
	calls    []string

	createdPayment models.Payment
	createdUser    models.User
	createUserErr  error
	approvedAt     time.Time
}

func newFakeStore() *fakeStore { return &fakeStore{modified: 1} }

func (f *fakeStore) call(name string) error {
	f.calls = append(f.calls, name)
	if f.fail {
		return errStoreDown
	}
	return nil
}

func (f *fakeStore) update(name string) (store.UpdateResult, error) {
	if err := f.call(name); err != nil {
		return store.UpdateResult{}, err
	}
	return store.UpdateResult{MatchedCount: f.modified, ModifiedCount: f.modified}, nil
}

func (f *fakeStore) Users(context.Context) ([]models.User, error) {
	return append([]models.User(nil), f.users...), f.call("Users")
}

func (f *fakeStore) Employee(_ context.Context, email string) (*models.User, error) {
	if err := f.call("Employee"); err != nil {
		return nil, err
	}
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CreateUser(_ context.Context, u models.User) (store.InsertResult, error) {
	f.calls = append(f.calls, "CreateUser")
	f.createdUser = u
	if f.createUserErr != nil {
		return store.InsertResult{}, f.createUserErr
	}
	return store.InsertResult{InsertedID: "new-user"}, nil
}

func (f *fakeStore) ToggleVerify(_ context.Context, id string) (store.UpdateResult, error) {
	return f.update("ToggleVerify " + id)
}

func (f *fakeStore) Fire(_ context.Context, id string) (store.UpdateResult, error) {
	return f.update("Fire " + id)
}

func (f *fakeStore) MakeHR(_ context.Context, id string) (store.UpdateResult, error) {
	return f.update("MakeHR " + id)
}

func (f *fakeStore) ToggleRole(_ context.Context, id string) (store.UpdateResult, error) {
	return f.update("ToggleRole " + id)
}

func (f *fakeStore) SetSalary(_ context.Context, id string, _ models.Amount) (store.UpdateResult, error) {
	return f.update("SetSalary " + id)
}

func (f *fakeStore) Payments(context.Context) ([]models.Payment, error) {
	return append([]models.Payment(nil), f.payments...), f.call("Payments")
}

func (f *fakeStore) PaymentsByEmail(_ context.Context, email string) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range f.payments {
		if p.Email == email {
			out = append(out, p)
		}
	}
	return out, f.call("PaymentsByEmail")
}

func (f *fakeStore) CreatePayment(_ context.Context, p models.Payment) (store.InsertResult, error) {
	if err := f.call("CreatePayment"); err != nil {
		return store.InsertResult{}, err
	}
	f.createdPayment = p
	return store.InsertResult{InsertedID: "pay-1"}, nil
}

func (f *fakeStore) ApprovePayment(_ context.Context, id string, paidAt time.Time) (store.UpdateResult, error) {
	f.approvedAt = paidAt
	return f.update("ApprovePayment " + id)
}

func (f *fakeStore) WorkRecords(context.Context, string) ([]models.WorkRecord, error) {
	return append([]models.WorkRecord(nil), f.records...), f.call("WorkRecords")
}

func (f *fakeStore) AllWorkRecords(context.Context) ([]models.WorkRecord, error) {
	return append([]models.WorkRecord(nil), f.records...), f.call("AllWorkRecords")
}

func (f *fakeStore) CreateWorkRecord(context.Context, models.WorkRecord) (store.InsertResult, error) {
	if err := f.call("CreateWorkRecord"); err != nil {
		return store.InsertResult{}, err
	}
	return store.InsertResult{InsertedID: "w-new"}, nil
}

func (f *fakeStore) UpdateWorkRecord(_ context.Context, w models.WorkRecord) (store.UpdateResult, error) {
	return f.update("UpdateWorkRecord " + w.ID)
}

func (f *fakeStore) DeleteWorkRecord(_ context.Context, id string) (store.DeleteResult, error) {
	if err := f.call("DeleteWorkRecord " + id); err != nil {
		return store.DeleteResult{}, err
	}
	return store.DeleteResult{DeletedCount: f.modified}, nil
}
