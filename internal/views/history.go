package views

import (
	"context"
	"fmt"
	"sort"

	"github.com/atinyakov/staffonic/internal/models"
)

// PageSize is the number of payment rows per page.
const PageSize = 5

// SortOrder orders the payment history.
type SortOrder string

const (
	YearDesc   SortOrder = "year-desc"
	YearAsc    SortOrder = "year-asc"
	AmountDesc SortOrder = "amount-desc"
	AmountAsc  SortOrder = "amount-asc"
)

// ParseSortOrder accepts the four orders; "" means YearDesc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case "":
		return YearDesc, nil
	case YearDesc, YearAsc, AmountDesc, AmountAsc:
		return o, nil
	}
	return "", fmt.Errorf("%w: sort order %q", ErrInvalidInput, s)
}

// PaymentLister lists the payments of one employee.
type PaymentLister interface {
	PaymentsByEmail(ctx context.Context, email string) ([]models.Payment, error)
}

// PaymentHistory is the employee's read-only list of payments.
type PaymentHistory struct {
	store    PaymentLister
	order    SortOrder
	payments []models.Payment
}

// NewPaymentHistory returns an empty history sorted newest year first.
func NewPaymentHistory(s PaymentLister) *PaymentHistory {
	return &PaymentHistory{store: s, order: YearDesc}
}

// Load fetches the payments of email in chronological order.
func (h *PaymentHistory) Load(ctx context.Context, email string) error {
	ps, err := h.store.PaymentsByEmail(ctx, email)
	if err != nil {
		return fail("load payment history", err)
	}
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Year == ps[j].Year {
			return ps[i].Month < ps[j].Month
		}
		return ps[i].Year < ps[j].Year
	})
	h.payments = ps
	return nil
}

// Order returns the current sort order.
func (h *PaymentHistory) Order() SortOrder { return h.order }

// Sort sets the order used by Page.
func (h *PaymentHistory) Sort(order SortOrder) error {
	o, err := ParseSortOrder(string(order))
	if err != nil {
		return err
	}
	h.order = o
	return nil
}

// Sorted returns all payments in the current order. Ties keep load order.
func (h *PaymentHistory) Sorted() []models.Payment {
	ps := append([]models.Payment(nil), h.payments...)
	var less func(a, b models.Payment) bool
	switch h.order {
	case YearAsc:
		less = func(a, b models.Payment) bool {
			if a.Year == b.Year {
				return a.Month < b.Month
			}
			return a.Year < b.Year
		}
	case AmountDesc:
		less = func(a, b models.Payment) bool { return a.Salary > b.Salary }
	case AmountAsc:
		less = func(a, b models.Payment) bool { return a.Salary < b.Salary }
	default:
		less = func(a, b models.Payment) bool {
			if a.Year == b.Year {
				return a.Month < b.Month
			}
			return a.Year > b.Year
		}
	}
	sort.SliceStable(ps, func(i, j int) bool { return less(ps[i], ps[j]) })
	return ps
}

// Page returns the rows of 1-based page n and the page count. Pages outside
// the range are clamped.
func (h *PaymentHistory) Page(n int) (rows []models.Payment, pages int) {
	all := h.Sorted()
	pages = (len(all) + PageSize - 1) / PageSize
	if pages == 0 {
		return nil, 0
	}
	if n < 1 {
		n = 1
	}
	if n > pages {
		n = pages
	}
	start := (n - 1) * PageSize
	end := start + PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], pages
}

// TotalPaid sums the salary of paid payments.
func (h *PaymentHistory) TotalPaid() models.Amount {
	var total models.Amount
	for _, p := range h.payments {
		if p.Status.IsPaid() {
			total += p.Salary
		}
	}
	return total
}
