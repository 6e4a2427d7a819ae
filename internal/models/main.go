// Package models defines the core data structures shared by the portal:
// identities, application user records, work records and payments.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the application role stored on a user record.
type Role string

const (
	// RoleEmployee is the default role of every new account.
	RoleEmployee Role = "employee"
	// RoleHR can verify employees and request payments.
	RoleHR Role = "hr"
	// RoleAdmin manages roles, salaries and payroll approval.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleHR, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Designation is the job title picked at registration.
type Designation string

const (
	SalesAssistant       Designation = "sales_assistant"
	SocialMediaExecutive Designation = "social_media_executive"
	DigitalMarketer      Designation = "digital_marketer"
)

// Valid reports whether d is one of the designations offered at registration.
func (d Designation) Valid() bool {
	switch d {
	case SalesAssistant, SocialMediaExecutive, DigitalMarketer:
		return true
	}
	return false
}

// Task is the kind of work logged on the worksheet.
type Task string

const (
	TaskSales     Task = "Sales"
	TaskSupport   Task = "Support"
	TaskContent   Task = "Content"
	TaskPaperWork Task = "Paper-work"
	TaskResearch  Task = "Research"
)

// Tasks lists the worksheet tasks in display order.
var Tasks = []Task{TaskSales, TaskSupport, TaskContent, TaskPaperWork, TaskResearch}

// Valid reports whether t is one of the worksheet tasks.
func (t Task) Valid() bool {
	for _, known := range Tasks {
		if t == known {
			return true
		}
	}
	return false
}

// PaymentStatus is the lifecycle state of a payment record.
type PaymentStatus string

const (
	// StatusPending is set when HR requests a payment.
	StatusPending PaymentStatus = "pending"
	// StatusPaid is set once payroll approves the payment.
	StatusPaid PaymentStatus = "paid"
	// statusApproved is an older spelling of StatusPaid still found in stored records.
	statusApproved PaymentStatus = "approved"
)

// IsPaid reports whether the status is terminal. "approved" is read as paid.
func (s PaymentStatus) IsPaid() bool {
	return s == StatusPaid || s == statusApproved
}

// Identity is the signed-in account as reported by the identity provider.
type Identity struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	PhotoURL      string    `json:"photoURL"`
	EmailVerified bool      `json:"emailVerified"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Expired reports whether the identity token behind this identity is past its expiry.
// A zero ExpiresAt never expires.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// User is the HR-domain profile kept by the remote store, keyed by email.
type User struct {
	// ID is the store's document id.
	ID string `json:"_id,omitempty"`
	// Name is the display name.
	Name string `json:"name"`
	// Email is unique per record.
	Email string `json:"email"`
	// PhotoURL points at the avatar.
	PhotoURL string `json:"photoURL,omitempty"`
	// Role gates feature access.
	Role Role `json:"role"`
	// Designation is the job title.
	Designation Designation `json:"designation,omitempty"`
	// BankAccountNo is where salary is paid to.
	BankAccountNo string `json:"bank_account_no,omitempty"`
	// Salary is the monthly amount.
	Salary Amount `json:"salary"`
	// IsVerified marks the employee as eligible for payroll.
	IsVerified bool `json:"isVerified"`
	// Fired is independent of Role.
	Fired bool `json:"fired"`
	// CreatedAt is when the record was registered.
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// DefaultUser builds the optimistic record shown before the store answers.
func DefaultUser(id Identity) User {
	return User{
		Name:       id.DisplayName,
		Email:      id.Email,
		PhotoURL:   id.PhotoURL,
		Role:       RoleEmployee,
		IsVerified: false,
		Fired:      false,
	}
}

// DateLayout is the wire format of work record dates.
const DateLayout = "2006-01-02"

// ErrInvalidWorkRecord is returned by WorkRecord.Validate.
var ErrInvalidWorkRecord = errors.New("invalid work record")

// WorkRecord is one worksheet line owned by an employee.
type WorkRecord struct {
	ID    string `json:"_id,omitempty"`
	Email string `json:"email"`
	Task  Task   `json:"task"`
	Hours Amount `json:"hours"`
	Date  string `json:"date"`
	Paid  bool   `json:"paid"`
}

// Validate checks the invariants enforced before a work record is sent.
func (w WorkRecord) Validate() error {
	if !w.Task.Valid() {
		return fmt.Errorf("%w: unknown task %q", ErrInvalidWorkRecord, w.Task)
	}
	if !w.Hours.Positive() {
		return fmt.Errorf("%w: hours must be positive", ErrInvalidWorkRecord)
	}
	if _, err := time.Parse(DateLayout, w.Date); err != nil {
		return fmt.Errorf("%w: date %q", ErrInvalidWorkRecord, w.Date)
	}
	return nil
}

// Month returns the 1-12 month of the record date, or 0 when the date is unparsable.
func (w WorkRecord) Month() int {
	d, err := time.Parse(DateLayout, w.Date)
	if err != nil {
		return 0
	}
	return int(d.Month())
}

// Payment is a salary payment requested by HR and approved by payroll.
type Payment struct {
	ID          string        `json:"_id,omitempty"`
	UserID      string        `json:"userId"`
	Email       string        `json:"email"`
	Name        string        `json:"name"`
	Salary      Amount        `json:"salary"`
	Month       string        `json:"month"`
	Year        Year          `json:"year"`
	Status      PaymentStatus `json:"status"`
	PaymentDate *time.Time    `json:"paymentDate,omitempty"`
	CreatedAt   *time.Time    `json:"createdAt,omitempty"`
}

// MonthYear is the chart label used on the employee details view.
func (p Payment) MonthYear() string {
	return fmt.Sprintf("%s-%d", p.Month, p.Year)
}

// PortalSession is the persisted half of a browser session on the portal.
type PortalSession struct {
	ID    string `db:"id"`
	UID   string `db:"uid"`
	Email string `db:"email"`
	// RefreshToken is sealed; see crypto.Sealer.
	RefreshToken string    `db:"refresh_token"`
	CreatedAt    time.Time `db:"created_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Expired reports whether the session is past its expiry.
func (s PortalSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
