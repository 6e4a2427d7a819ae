package views

import (
	"context"

	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/store"
)

// WorkStore is the part of the store the worksheet uses.
type WorkStore interface {
	WorkRecords(ctx context.Context, email string) ([]models.WorkRecord, error)
	CreateWorkRecord(ctx context.Context, w models.WorkRecord) (store.InsertResult, error)
	UpdateWorkRecord(ctx context.Context, w models.WorkRecord) (store.UpdateResult, error)
	DeleteWorkRecord(ctx context.Context, id string) (store.DeleteResult, error)
}

// WorkPatch holds the fields an edit changes; nil fields are kept.
type WorkPatch struct {
	Task  *models.Task
	Hours *models.Amount
	Date  *string
}

// Worksheet is the employee's own list of work records.
type Worksheet struct {
	store   WorkStore
	email   string
	records []models.WorkRecord
}

// NewWorksheet returns an empty worksheet.
func NewWorksheet(s WorkStore) *Worksheet {
	return &Worksheet{store: s}
}

// Load fetches the records of email.
func (w *Worksheet) Load(ctx context.Context, email string) error {
	recs, err := w.store.WorkRecords(ctx, email)
	if err != nil {
		return fail("load worksheet", err)
	}
	w.email = email
	w.records = recs
	return nil
}

// Records returns a copy of the records, newest additions first.
func (w *Worksheet) Records() []models.WorkRecord {
	return append([]models.WorkRecord(nil), w.records...)
}

// Add creates a record and prepends it.
func (w *Worksheet) Add(ctx context.Context, task models.Task, hours models.Amount, date string) (models.WorkRecord, error) {
	const op = "add work record"

	rec := models.WorkRecord{Email: w.email, Task: task, Hours: hours, Date: date}
	if err := rec.Validate(); err != nil {
		return models.WorkRecord{}, invalid(op, "%v", err)
	}

	prev := w.records
	err := command{
		op: op,
		apply: func() {
			w.records = append([]models.WorkRecord{rec}, prev...)
		},
		send: func() error {
			res, err := w.store.CreateWorkRecord(ctx, rec)
			if err != nil {
				return err
			}
			if res.InsertedID == "" {
				return ErrNotApplied
			}
			rec.ID = res.InsertedID
			w.records[0].ID = res.InsertedID
			return nil
		},
		rollback: func() { w.records = prev },
	}.run()
	if err != nil {
		return models.WorkRecord{}, err
	}
	return rec, nil
}

// Edit applies patch to the record with id.
func (w *Worksheet) Edit(ctx context.Context, id string, patch WorkPatch) (models.WorkRecord, error) {
	const op = "edit work record"

	i := w.index(id)
	if i < 0 {
		return models.WorkRecord{}, fail(op, ErrUnknownRecord)
	}
	before := w.records[i]
	after := before
	if patch.Task != nil {
		after.Task = *patch.Task
	}
	if patch.Hours != nil {
		after.Hours = *patch.Hours
	}
	if patch.Date != nil {
		after.Date = *patch.Date
	}
	if err := after.Validate(); err != nil {
		return models.WorkRecord{}, invalid(op, "%v", err)
	}

	err := command{
		op:    op,
		apply: func() { w.records[i] = after },
		send: func() error {
			res, err := w.store.UpdateWorkRecord(ctx, after)
			if err != nil {
				return err
			}
			if res.MatchedCount == 0 && res.ModifiedCount == 0 {
				return ErrNotApplied
			}
			return nil
		},
		rollback: func() { w.records[i] = before },
	}.run()
	if err != nil {
		return models.WorkRecord{}, err
	}
	return after, nil
}

// Delete removes the record with id.
func (w *Worksheet) Delete(ctx context.Context, id string) error {
	const op = "delete work record"

	i := w.index(id)
	if i < 0 {
		return fail(op, ErrUnknownRecord)
	}
	prev := w.records
	return command{
		op: op,
		apply: func() {
			next := make([]models.WorkRecord, 0, len(prev)-1)
			next = append(next, prev[:i]...)
			w.records = append(next, prev[i+1:]...)
		},
		send: func() error {
			res, err := w.store.DeleteWorkRecord(ctx, id)
			if err != nil {
				return err
			}
			if res.DeletedCount == 0 {
				return ErrNotApplied
			}
			return nil
		},
		rollback: func() { w.records = prev },
	}.run()
}

func (w *Worksheet) index(id string) int {
	for i, r := range w.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}
