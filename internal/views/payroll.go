package views

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/store"
)

// PayrollStore is the part of the store payroll uses.
type PayrollStore interface {
	Payments(ctx context.Context) ([]models.Payment, error)
	ApprovePayment(ctx context.Context, id string, paidAt time.Time) (store.UpdateResult, error)
}

// Payroll is the admin queue of payment requests.
type Payroll struct {
	store    PayrollStore
	payments []models.Payment
	now      func() time.Time
}

// NewPayroll returns an empty payroll.
func NewPayroll(s PayrollStore) *Payroll {
	return &Payroll{store: s, now: time.Now}
}

// Load fetches every payment, latest first.
func (p *Payroll) Load(ctx context.Context) error {
	ps, err := p.store.Payments(ctx)
	if err != nil {
		return fail("load payroll", err)
	}
	sort.SliceStable(ps, func(i, j int) bool {
		return createdAt(ps[i]).After(createdAt(ps[j]))
	})
	p.payments = ps
	return nil
}

// Payments returns a copy of the loaded payments.
func (p *Payroll) Payments() []models.Payment {
	return append([]models.Payment(nil), p.payments...)
}

// Approve marks a pending payment as paid. Approving a paid payment fails
// with ErrAlreadyPaid without contacting the store.
func (p *Payroll) Approve(ctx context.Context, id string) (models.Payment, error) {
	const op = "approve payment"

	i := -1
	for j := range p.payments {
		if p.payments[j].ID == id {
			i = j
			break
		}
	}
	if i < 0 {
		return models.Payment{}, fail(op, ErrUnknownRecord)
	}
	if p.payments[i].Status.IsPaid() {
		return models.Payment{}, fail(op, ErrAlreadyPaid)
	}

	before := p.payments[i]
	paidAt := p.now().UTC()
	err := command{
		op: op,
		apply: func() {
			p.payments[i].Status = models.StatusPaid
			p.payments[i].PaymentDate = &paidAt
		},
		send: func() error {
			res, err := p.store.ApprovePayment(ctx, id, paidAt)
			if err != nil {
				return err
			}
			return requireModified(res)
		},
		rollback: func() { p.payments[i] = before },
	}.run()
	if err != nil {
		return models.Payment{}, err
	}
	return p.payments[i], nil
}

// createdAt falls back to the timestamp embedded in the document id.
func createdAt(p models.Payment) time.Time {
	if p.CreatedAt != nil {
		return *p.CreatedAt
	}
	if oid, err := primitive.ObjectIDFromHex(p.ID); err == nil {
		return oid.Timestamp()
	}
	return time.Time{}
}
