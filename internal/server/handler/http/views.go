package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/views"
)

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &views.CommandError{Op: "parse " + name, Err: fmt.Errorf("%w: %q", views.ErrInvalidInput, raw)}
	}
	return n, nil
}

// Worksheet lists the signed-in employee's work records.
func (h *Handler) Worksheet(w http.ResponseWriter, r *http.Request) {
	_, st := current(r)
	ws := views.NewWorksheet(h.Store)
	if err := ws.Load(r.Context(), st.Identity.Email); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": ws.Records(), "tasks": models.Tasks})
}

type workRequest struct {
	Task  *models.Task   `json:"task"`
	Hours *models.Amount `json:"hours"`
	Date  *string        `json:"date"`
}

// AddWork logs a new work record.
func (h *Handler) AddWork(w http.ResponseWriter, r *http.Request) {
	if !h.can(w, r, "work.write") {
		return
	}
	var req workRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	_, st := current(r)
	ws := views.NewWorksheet(h.Store)
	if err := ws.Load(r.Context(), st.Identity.Email); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	var task models.Task
	var hours models.Amount
	var date string
	if req.Task != nil {
		task = *req.Task
	}
	if req.Hours != nil {
		hours = *req.Hours
	}
	if req.Date != nil {
		date = *req.Date
	}
	rec, err := ws.Add(r.Context(), task, hours, date)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// EditWork changes one of the employee's own work records.
func (h *Handler) EditWork(w http.ResponseWriter, r *http.Request) {
	if !h.can(w, r, "work.write") {
		return
	}
	var req workRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	_, st := current(r)
	ws := views.NewWorksheet(h.Store)
	if err := ws.Load(r.Context(), st.Identity.Email); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	rec, err := ws.Edit(r.Context(), chi.URLParam(r, "id"), views.WorkPatch{Task: req.Task, Hours: req.Hours, Date: req.Date})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteWork removes one of the employee's own work records.
func (h *Handler) DeleteWork(w http.ResponseWriter, r *http.Request) {
	if !h.can(w, r, "work.write") {
		return
	}
	_, st := current(r)
	ws := views.NewWorksheet(h.Store)
	if err := ws.Load(r.Context(), st.Identity.Email); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := ws.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PaymentHistory pages through the employee's payments.
func (h *Handler) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	order, err := views.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	page, err := intParam(r, "page", 1)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	_, st := current(r)
	hist := views.NewPaymentHistory(h.Store)
	if err := hist.Load(r.Context(), st.Identity.Email); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := hist.Sort(order); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	rows, pages := hist.Page(page)
	writeJSON(w, http.StatusOK, map[string]any{
		"payments":  rows,
		"page":      min(max(page, 1), max(pages, 1)),
		"pages":     pages,
		"sort":      hist.Order(),
		"totalPaid": hist.TotalPaid(),
	})
}

// EmployeeList lists every user for HR with verification counts.
func (h *Handler) EmployeeList(w http.ResponseWriter, r *http.Request) {
	l := views.NewEmployeeList(h.Store)
	if err := l.Load(r.Context()); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	verified, unverified := l.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"users":      l.Users(),
		"verified":   verified,
		"unverified": unverified,
	})
}

// ToggleVerify flips the verification flag of a user.
func (h *Handler) ToggleVerify(w http.ResponseWriter, r *http.Request) {
	if !h.can(w, r, "user.verify") {
		return
	}
	l := views.NewEmployeeList(h.Store)
	if err := l.Load(r.Context()); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := l.ToggleVerify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.refreshIfSelf(r, u)
	writeJSON(w, http.StatusOK, u)
}

type payRequest struct {
	Month string      `json:"month"`
	Year  models.Year `json:"year"`
}

// Pay requests a pending salary payment for a verified user.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	if !h.can(w, r, "payment.create") {
		return
	}
	var req payRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	l := views.NewEmployeeList(h.Store)
	if err := l.Load(r.Context()); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := l.Pay(r.Context(), chi.URLParam(r, "id"), req.Month, int(req.Year))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// EmployeeDetails shows one user and their paid salary series.
func (h *Handler) EmployeeDetails(w http.ResponseWriter, r *http.Request) {
	d, err := views.LoadEmployeeDetails(r.Context(), h.Store, chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Progress filters all work records by employee and month.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	month, err := intParam(r, "month", 0)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p := views.NewProgress(h.Store)
	if err := p.Load(r.Context()); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	rep, err := p.Filter(r.URL.Query().Get("email"), month)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"employees":  p.Employees(),
		"records":    rep.Records,
		"totalHours": rep.TotalHours,
	})
}

// AllEmployees lists the verified users for the admin.
func (h *Handler) AllEmployees(w http.ResponseWriter, r *http.Request) {
	a := views.NewAdminPanel(h.Store)
	if err := a.Load(r.Context()); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": a.Users()})
}

type salaryRequest struct {
	Salary models.Amount `json:"salary"`
}

// ChangeStaff applies one admin operation (fire, makeHR, toggleRole, salary).
func (h *Handler) ChangeStaff(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	actions := map[string]string{
		"fire":       "user.fire",
		"makeHR":     "user.promote",
		"toggleRole": "user.promote",
		"salary":     "user.salary",
	}
	action, ok := actions[op]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown operation " + op})
		return
	}
	if !h.can(w, r, action) {
		return
	}

	var req salaryRequest
	if op == "salary" {
		if err := decode(r, &req); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
	}

	a := views.NewAdminPanel(h.Store)
	if err := a.Load(r.Context()); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	id := chi.URLParam(r, "id")
	var (
		u   models.User
		err error
	)
	switch op {
	case "fire":
		u, err = a.Fire(r.Context(), id)
	case "makeHR":
		u, err = a.MakeHR(r.Context(), id)
	case "toggleRole":
		u, err = a.ToggleRole(r.Context(), id)
	case "salary":
		u, err = a.SetSalary(r.Context(), id, req.Salary)
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.refreshIfSelf(r, u)
	writeJSON(w, http.StatusOK, u)
}

// Payroll lists every payment, newest first.
func (h *Handler) Payroll(w http.ResponseWriter, r *http.Request) {
	p := views.NewPayroll(h.Store)
	if err := p.Load(r.Context()); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": p.Payments()})
}

// Approve marks a pending payment as paid.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	if !h.can(w, r, "payment.approve") {
		return
	}
	p := views.NewPayroll(h.Store)
	if err := p.Load(r.Context()); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	pay, err := p.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, pay)
}

// Profile shows the signed-in user's own profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	e, _ := current(r)
	p, err := views.CurrentProfile(e.Resolver)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type profileRequest struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
}

// UpdateProfile changes the display name and photo.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	e, _ := current(r)
	p, err := views.UpdateProfile(r.Context(), e.Auth, e.Resolver, req.Name, req.PhotoURL)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// refreshIfSelf re-resolves the session when a change touched its own record.
func (h *Handler) refreshIfSelf(r *http.Request, u models.User) {
	e, st := current(r)
	if st.Identity == nil || !strings.EqualFold(st.Identity.Email, u.Email) {
		return
	}
	if err := e.Resolver.Refresh(r.Context()); err != nil {
		h.Log.Warn("failed to refresh own role", zap.Error(err))
	}
}
