package views

import (
	"context"
	"strings"

	"github.com/atinyakov/staffonic/internal/models"
)

// ProgressStore is the part of the store the progress view uses.
type ProgressStore interface {
	AllWorkRecords(ctx context.Context) ([]models.WorkRecord, error)
	Users(ctx context.Context) ([]models.User, error)
}

// Progress is HR's view over everybody's work records.
type Progress struct {
	store   ProgressStore
	records []models.WorkRecord
	users   []models.User
}

// ProgressReport is a filtered slice of work records.
type ProgressReport struct {
	Records    []models.WorkRecord `json:"records"`
	TotalHours models.Amount       `json:"totalHours"`
}

// NewProgress returns an empty view.
func NewProgress(s ProgressStore) *Progress {
	return &Progress{store: s}
}

// Load fetches all work records and the users used for the employee filter.
func (p *Progress) Load(ctx context.Context) error {
	recs, err := p.store.AllWorkRecords(ctx)
	if err != nil {
		return fail("load progress", err)
	}
	users, err := p.store.Users(ctx)
	if err != nil {
		return fail("load progress", err)
	}
	p.records, p.users = recs, users
	return nil
}

// Employees returns the users offered in the employee filter.
func (p *Progress) Employees() []models.User {
	return append([]models.User(nil), p.users...)
}

// Filter keeps the records of email (all when empty) dated in month 1-12
// (all when 0).
func (p *Progress) Filter(email string, month int) (ProgressReport, error) {
	if month < 0 || month > 12 {
		return ProgressReport{}, invalid("filter progress", "month %d", month)
	}
	rep := ProgressReport{Records: []models.WorkRecord{}}
	for _, r := range p.records {
		if email != "" && !strings.EqualFold(r.Email, email) {
			continue
		}
		if month != 0 && r.Month() != month {
			continue
		}
		rep.Records = append(rep.Records, r)
		rep.TotalHours += r.Hours
	}
	return rep, nil
}
