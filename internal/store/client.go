// Package store is the HTTP client of the remote REST store that holds users,
// work records and payments.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/models"
)

// InsertResult is the store's answer to a POST.
type InsertResult struct {
	InsertedID string `json:"insertedId"`
	Message    string `json:"message,omitempty"`
}

// UpdateResult is the store's answer to a PUT or PATCH.
type UpdateResult struct {
	MatchedCount  int `json:"matchedCount"`
	ModifiedCount int `json:"modifiedCount"`
}

// DeleteResult is the store's answer to a DELETE.
type DeleteResult struct {
	DeletedCount int `json:"deletedCount"`
}

// Client talks JSON to the store.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New returns a Client for baseURL. A nil httpClient uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

// UserByEmail returns the user record for email. A missing record is ErrNotFound.
func (c *Client) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/users", url.Values{"email": {email}}, nil, &users); err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

// Users lists every user record.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := c.do(ctx, http.MethodGet, "/users", nil, nil, &users)
	return users, err
}

// Employee loads the record behind /employees/{email}.
func (c *Client) Employee(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/employees/"+url.PathEscape(email), nil, nil, &u); err != nil {
		return nil, err
	}
	if u.Email == "" {
		return nil, ErrNotFound
	}
	return &u, nil
}

// CreateUser registers the application record of a new account.
func (c *Client) CreateUser(ctx context.Context, u models.User) (InsertResult, error) {
	var res InsertResult
	if err := c.do(ctx, http.MethodPost, "/users", nil, u, &res); err != nil {
		return res, err
	}
	if res.InsertedID == "" && strings.Contains(strings.ToLower(res.Message), "exist") {
		return res, ErrDuplicateUser
	}
	return res, nil
}

// ToggleVerify flips isVerified.
func (c *Client) ToggleVerify(ctx context.Context, id string) (UpdateResult, error) {
	return c.patchUser(ctx, id, "verify", nil)
}

// Fire marks the user as fired without touching the role.
func (c *Client) Fire(ctx context.Context, id string) (UpdateResult, error) {
	return c.patchUser(ctx, id, "fire", nil)
}

// MakeHR promotes an employee to hr.
func (c *Client) MakeHR(ctx context.Context, id string) (UpdateResult, error) {
	return c.patchUser(ctx, id, "makeHR", nil)
}

// ToggleRole switches between employee and hr.
func (c *Client) ToggleRole(ctx context.Context, id string) (UpdateResult, error) {
	return c.patchUser(ctx, id, "toggleRole", nil)
}

// SetSalary changes the monthly salary.
func (c *Client) SetSalary(ctx context.Context, id string, salary models.Amount) (UpdateResult, error) {
	return c.patchUser(ctx, id, "salary", map[string]models.Amount{"salary": salary})
}

func (c *Client) patchUser(ctx context.Context, id, op string, body any) (UpdateResult, error) {
	var res UpdateResult
	err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id)+"/"+op, nil, body, &res)
	return res, err
}

// Payments lists every payment.
func (c *Client) Payments(ctx context.Context) ([]models.Payment, error) {
	var ps []models.Payment
	err := c.do(ctx, http.MethodGet, "/payments", nil, nil, &ps)
	return ps, err
}

// PaymentsByEmail lists the payments of one employee.
func (c *Client) PaymentsByEmail(ctx context.Context, email string) ([]models.Payment, error) {
	var ps []models.Payment
	err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(email), nil, nil, &ps)
	return ps, err
}

// CreatePayment records a payment request.
func (c *Client) CreatePayment(ctx context.Context, p models.Payment) (InsertResult, error) {
	var res InsertResult
	err := c.do(ctx, http.MethodPost, "/payments", nil, p, &res)
	return res, err
}

// ApprovePayment marks a payment as paid on paidAt.
func (c *Client) ApprovePayment(ctx context.Context, id string, paidAt time.Time) (UpdateResult, error) {
	body := struct {
		Status      models.PaymentStatus `json:"status"`
		PaymentDate time.Time            `json:"paymentDate"`
	}{models.StatusPaid, paidAt.UTC()}

	var res UpdateResult
	err := c.do(ctx, http.MethodPatch, "/payments/"+url.PathEscape(id), nil, body, &res)
	return res, err
}

// WorkRecords lists the work records of one employee.
func (c *Client) WorkRecords(ctx context.Context, email string) ([]models.WorkRecord, error) {
	var ws []models.WorkRecord
	err := c.do(ctx, http.MethodGet, "/workRecords", url.Values{"email": {email}}, nil, &ws)
	return ws, err
}

// AllWorkRecords lists every work record.
func (c *Client) AllWorkRecords(ctx context.Context) ([]models.WorkRecord, error) {
	var ws []models.WorkRecord
	err := c.do(ctx, http.MethodGet, "/workRecordsAll", nil, nil, &ws)
	return ws, err
}

// CreateWorkRecord stores a new work record.
func (c *Client) CreateWorkRecord(ctx context.Context, w models.WorkRecord) (InsertResult, error) {
	w.ID = ""
	var res InsertResult
	err := c.do(ctx, http.MethodPost, "/workRecords", nil, w, &res)
	return res, err
}

// UpdateWorkRecord replaces task, hours and date of a work record.
func (c *Client) UpdateWorkRecord(ctx context.Context, w models.WorkRecord) (UpdateResult, error) {
	body := struct {
		Task  models.Task   `json:"task"`
		Hours models.Amount `json:"hours"`
		Date  string        `json:"date"`
	}{w.Task, w.Hours, w.Date}

	var res UpdateResult
	err := c.do(ctx, http.MethodPut, "/workRecords/"+url.PathEscape(w.ID), nil, body, &res)
	return res, err
}

// DeleteWorkRecord removes a work record.
func (c *Client) DeleteWorkRecord(ctx context.Context, id string) (DeleteResult, error) {
	var res DeleteResult
	err := c.do(ctx, http.MethodDelete, "/workRecords/"+url.PathEscape(id), nil, nil, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("store %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("store request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
