package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/access"
	"github.com/atinyakov/staffonic/internal/identity"
	"github.com/atinyakov/staffonic/internal/middleware"
	"github.com/atinyakov/staffonic/internal/models"
	"github.com/atinyakov/staffonic/internal/session"
	"github.com/atinyakov/staffonic/internal/store"
	"github.com/atinyakov/staffonic/internal/views"
)

type fetcherFunc func(ctx context.Context, email string) (*models.User, error)

func (f fetcherFunc) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return f(ctx, email)
}

// mockStore answers every store call from memory.
type mockStore struct {
	mu       sync.Mutex
	users    []models.User
	records  []models.WorkRecord
	payments []models.Payment
	calls    []string
}

func (m *mockStore) record(name string) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
}

func (m *mockStore) WorkRecords(_ context.Context, email string) ([]models.WorkRecord, error) {
	m.record("WorkRecords")
	var out []models.WorkRecord
	for _, r := range m.records {
		if r.Email == email {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) CreateWorkRecord(context.Context, models.WorkRecord) (store.InsertResult, error) {
	m.record("CreateWorkRecord")
	return store.InsertResult{InsertedID: "w-new"}, nil
}

func (m *mockStore) UpdateWorkRecord(context.Context, models.WorkRecord) (store.UpdateResult, error) {
	m.record("UpdateWorkRecord")
	return store.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (m *mockStore) DeleteWorkRecord(context.Context, string) (store.DeleteResult, error) {
	m.record("DeleteWorkRecord")
	return store.DeleteResult{DeletedCount: 1}, nil
}

func (m *mockStore) PaymentsByEmail(_ context.Context, email string) ([]models.Payment, error) {
	m.record("PaymentsByEmail")
	var out []models.Payment
	for _, p := range m.payments {
		if p.Email == email {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockStore) Users(context.Context) ([]models.User, error) {
	m.record("Users")
	return append([]models.User(nil), m.users...), nil
}

func (m *mockStore) update(name string) (store.UpdateResult, error) {
	m.record(name)
	return store.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (m *mockStore) ToggleVerify(context.Context, string) (store.UpdateResult, error) {
	return m.update("ToggleVerify")
}

func (m *mockStore) CreatePayment(context.Context, models.Payment) (store.InsertResult, error) {
	m.record("CreatePayment")
	return store.InsertResult{InsertedID: "p-new"}, nil
}

func (m *mockStore) Employee(_ context.Context, email string) (*models.User, error) {
	m.record("Employee")
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) Payments(context.Context) ([]models.Payment, error) {
	m.record("Payments")
	return append([]models.Payment(nil), m.payments...), nil
}

func (m *mockStore) AllWorkRecords(context.Context) ([]models.WorkRecord, error) {
	m.record("AllWorkRecords")
	return append([]models.WorkRecord(nil), m.records...), nil
}

func (m *mockStore) Fire(context.Context, string) (store.UpdateResult, error) {
	return m.update("Fire")
}

func (m *mockStore) MakeHR(context.Context, string) (store.UpdateResult, error) {
	return m.update("MakeHR")
}

func (m *mockStore) ToggleRole(context.Context, string) (store.UpdateResult, error) {
	return m.update("ToggleRole")
}

func (m *mockStore) SetSalary(context.Context, string, models.Amount) (store.UpdateResult, error) {
	return m.update("SetSalary")
}

func (m *mockStore) ApprovePayment(context.Context, string, time.Time) (store.UpdateResult, error) {
	return m.update("ApprovePayment")
}

func newMockStore() *mockStore {
	return &mockStore{
		users: []models.User{
			{ID: "1", Email: "emp@x.io", Role: models.RoleEmployee, Salary: 100},
			{ID: "2", Email: "hr@x.io", Role: models.RoleHR, IsVerified: true, Salary: 200},
			{ID: "3", Email: "admin@x.io", Role: models.RoleAdmin, IsVerified: true, Salary: 300},
		},
		records: []models.WorkRecord{
			{ID: "w1", Email: "emp@x.io", Task: models.TaskSales, Hours: 3, Date: "2024-05-02"},
			{ID: "w2", Email: "other@x.io", Task: models.TaskSupport, Hours: 5, Date: "2024-06-02"},
		},
		payments: []models.Payment{
			{ID: "p1", Email: "emp@x.io", Salary: 100, Month: "May", Year: 2024, Status: models.StatusPaid},
			{ID: "p2", Email: "emp@x.io", Salary: 100, Month: "June", Year: 2024, Status: models.StatusPending},
		},
	}
}

// mockSessions resolves the cookie value to a prepared session.
type mockSessions map[string]*session.Entry

func (m mockSessions) Lookup(_ context.Context, id string) (*session.Entry, error) {
	if e, ok := m[id]; ok {
		return e, nil
	}
	return nil, session.ErrUnknown
}

// newEntry returns a session whose resolver settled on u. A nil u gives a
// session that has not heard from the identity provider yet.
func newEntry(t *testing.T, id string, u *models.User, fetches *atomic.Int32) *session.Entry {
	t.Helper()
	r := session.NewResolver(fetcherFunc(func(context.Context, string) (*models.User, error) {
		if fetches != nil {
			fetches.Add(1)
		}
		return u, nil
	}), session.WithInterval(time.Hour))
	t.Cleanup(r.Close)

	if u != nil {
		r.OnIdentityChange(&models.Identity{UID: "uid-" + id, Email: u.Email})
		if err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}
	return &session.Entry{ID: id, Auth: identity.NewAuth(nil), Resolver: r, ExpiresAt: time.Now().Add(time.Hour)}
}

type mockAuthService struct {
	entry      *session.Entry
	err        error
	loggedOut  []string
	lastReg    *views.Registration
	lastIdPReg *views.Registration
}

func (m *mockAuthService) Register(_ context.Context, reg views.Registration) (*session.Entry, models.User, error) {
	m.lastReg = &reg
	if m.err != nil {
		return nil, models.User{}, m.err
	}
	return m.entry, models.User{ID: "new", Email: reg.Email, Role: reg.Role}, nil
}

func (m *mockAuthService) Login(context.Context, string, string) (*session.Entry, error) {
	return m.entry, m.err
}

func (m *mockAuthService) LoginWithIdP(_ context.Context, _ identity.Credential, reg *views.Registration) (*session.Entry, error) {
	m.lastIdPReg = reg
	return m.entry, m.err
}

func (m *mockAuthService) Logout(_ context.Context, id string) error {
	m.loggedOut = append(m.loggedOut, id)
	return nil
}

type testEnv struct {
	router   http.Handler
	store    *mockStore
	auth     *mockAuthService
	sessions mockSessions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := newMockStore()
	table := access.Default()
	log := zap.NewNop()

	sessions := mockSessions{
		"loading": newEntry(t, "loading", nil, nil),
		"emp":     newEntry(t, "emp", &st.users[0], nil),
		"hr":      newEntry(t, "hr", &st.users[1], nil),
		"admin":   newEntry(t, "admin", &st.users[2], nil),
	}
	auth := &mockAuthService{entry: sessions["emp"]}

	router := NewRouter(
		&AuthHandler{AuthService: auth, Access: table, Log: log},
		&Handler{Store: st, Access: table, Log: log},
		sessions,
		log,
	)
	return &testEnv{router: router, store: st, auth: auth, sessions: sessions}
}

func (e *testEnv) do(method, target, sid, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sid})
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func TestGate(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		target     string
		sid        string
		wantStatus int
		wantLoc    string
	}{
		{"signed out redirects to login", "/worksheet", "", http.StatusSeeOther, "/login?from=%2Fworksheet"},
		{"query is remembered", "/paymentHistory?page=2", "", http.StatusSeeOther, "/login?from=%2FpaymentHistory%3Fpage%3D2"},
		{"unknown cookie is signed out", "/payroll", "gone", http.StatusSeeOther, "/login?from=%2Fpayroll"},
		{"loading waits", "/worksheet", "loading", http.StatusAccepted, ""},
		{"wrong role denied", "/worksheet", "hr", http.StatusForbidden, ""},
		{"employee opens worksheet", "/worksheet", "emp", http.StatusOK, ""},
		{"admin opens hr view", "/employeeList", "admin", http.StatusOK, ""},
		{"hr cannot open payroll", "/payroll", "hr", http.StatusForbidden, ""},
		{"public page", "/contact", "", http.StatusOK, ""},
		{"profile for any role", "/profile", "admin", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodGet, tt.target, tt.sid, "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantLoc != "" && rr.Header().Get("Location") != tt.wantLoc {
				t.Errorf("Location = %q; want %q", rr.Header().Get("Location"), tt.wantLoc)
			}
		})
	}
}

func TestGate_WaitsForFirstFetch(t *testing.T) {
	env := newTestEnv(t)

	release := make(chan struct{})
	hr := env.store.users[1]
	r := session.NewResolver(fetcherFunc(func(ctx context.Context, _ string) (*models.User, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &hr, nil
	}), session.WithInterval(time.Hour))
	t.Cleanup(r.Close)
	r.OnIdentityChange(&models.Identity{UID: "uid-pending", Email: hr.Email})
	env.sessions["pending"] = &session.Entry{ID: "pending", Auth: identity.NewAuth(nil), Resolver: r, ExpiresAt: time.Now().Add(time.Hour)}

	for _, target := range []string{"/employeeList", "/worksheet"} {
		if rr := env.do(http.MethodGet, target, "pending", ""); rr.Code != http.StatusAccepted {
			t.Errorf("%s before first fetch: expected 202, got %d", target, rr.Code)
		}
	}

	close(release)
	deadline := time.Now().Add(time.Second)
	for !r.Current().Settled {
		if time.Now().After(deadline) {
			t.Fatal("first fetch never settled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if rr := env.do(http.MethodGet, "/employeeList", "pending", ""); rr.Code != http.StatusOK {
		t.Errorf("/employeeList after fetch: expected 200, got %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/worksheet", "pending", ""); rr.Code != http.StatusForbidden {
		t.Errorf("/worksheet after fetch: expected 403, got %d", rr.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&views.CommandError{Op: "x", Err: views.ErrInvalidInput}, http.StatusBadRequest},
		{identity.ErrWeakPassword, http.StatusBadRequest},
		{&views.CommandError{Op: "pay", Err: views.ErrNotVerified}, http.StatusConflict},
		{views.ErrAlreadyPaid, http.StatusConflict},
		{views.ErrNotApplied, http.StatusConflict},
		{identity.ErrEmailInUse, http.StatusConflict},
		{store.ErrDuplicateUser, http.StatusConflict},
		{views.ErrUnknownRecord, http.StatusNotFound},
		{&store.StatusError{Method: "GET", Path: "/employees/x", Code: 404}, http.StatusNotFound},
		{identity.ErrInvalidCredentials, http.StatusUnauthorized},
		{identity.ErrTokenExpired, http.StatusUnauthorized},
		{identity.ErrUserDisabled, http.StatusForbidden},
		{errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d; want %d", tt.err, got, tt.want)
		}
	}
}

func TestWorksheet(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"list own records", http.MethodGet, "/worksheet", "", http.StatusOK, `"w1"`},
		{"add", http.MethodPost, "/worksheet", `{"task":"Sales","hours":2,"date":"2024-05-03"}`, http.StatusCreated, `"w-new"`},
		{"add invalid hours", http.MethodPost, "/worksheet", `{"task":"Sales","hours":0,"date":"2024-05-03"}`, http.StatusBadRequest, ""},
		{"add bad json", http.MethodPost, "/worksheet", `{`, http.StatusBadRequest, ""},
		{"edit", http.MethodPut, "/worksheet/w1", `{"hours":4}`, http.StatusOK, `"hours":4`},
		{"edit someone else's record", http.MethodPut, "/worksheet/w2", `{"hours":4}`, http.StatusNotFound, ""},
		{"delete", http.MethodDelete, "/worksheet/w1", "", http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(tt.method, tt.target, "emp", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body %s does not contain %s", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestPaymentHistory(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/paymentHistory?sort=amount-asc&page=9", "emp", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	for _, want := range []string{`"pages":1`, `"page":1`, `"sort":"amount-asc"`, `"totalPaid":100`} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("body %s does not contain %s", rr.Body.String(), want)
		}
	}

	if rr := env.do(http.MethodGet, "/paymentHistory?sort=random", "emp", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad sort: expected 400, got %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/paymentHistory?page=x", "emp", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad page: expected 400, got %d", rr.Code)
	}
}

func TestEmployeeList(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		method     string
		target     string
		sid        string
		body       string
		wantStatus int
	}{
		{"list", http.MethodGet, "/employeeList", "hr", "", http.StatusOK},
		{"verify", http.MethodPatch, "/employeeList/1/verify", "hr", "", http.StatusOK},
		{"admin may view but not verify", http.MethodPatch, "/employeeList/1/verify", "admin", "", http.StatusForbidden},
		{"pay unverified", http.MethodPost, "/employeeList/1/pay", "hr", `{"month":"May","year":2024}`, http.StatusConflict},
		{"pay verified", http.MethodPost, "/employeeList/2/pay", "hr", `{"month":"May","year":"2024"}`, http.StatusCreated},
		{"pay without month", http.MethodPost, "/employeeList/2/pay", "hr", `{"year":2024}`, http.StatusBadRequest},
		{"pay unknown", http.MethodPost, "/employeeList/9/pay", "hr", `{"month":"May","year":2024}`, http.StatusNotFound},
		{"details", http.MethodGet, "/employees/emp@x.io", "hr", "", http.StatusOK},
		{"details missing", http.MethodGet, "/employees/nobody@x.io", "hr", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(tt.method, tt.target, tt.sid, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}

	rr := env.do(http.MethodGet, "/employeeList", "hr", "")
	if !strings.Contains(rr.Body.String(), `"verified":2`) || !strings.Contains(rr.Body.String(), `"unverified":1`) {
		t.Errorf("unexpected counts: %s", rr.Body.String())
	}
}

func TestProgress(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/progress?email=other@x.io&month=6", "hr", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"totalHours":5`) || strings.Contains(rr.Body.String(), `"w1"`) {
		t.Errorf("unexpected report: %s", rr.Body.String())
	}

	if rr := env.do(http.MethodGet, "/progress?month=13", "hr", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("month 13: expected 400, got %d", rr.Code)
	}
}

func TestChangeStaff(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
	}{
		{"fire", "/allEmployeeList/2/fire", "", http.StatusOK},
		{"toggle role", "/allEmployeeList/2/toggleRole", "", http.StatusOK},
		{"salary", "/allEmployeeList/2/salary", `{"salary":"450"}`, http.StatusOK},
		{"negative salary", "/allEmployeeList/2/salary", `{"salary":-1}`, http.StatusBadRequest},
		{"unverified user is not listed", "/allEmployeeList/1/fire", "", http.StatusNotFound},
		{"unknown operation", "/allEmployeeList/2/demote", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPatch, tt.target, "admin", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestChangeStaff_RefreshesOwnRole(t *testing.T) {
	st := newMockStore()
	table := access.Default()
	var fetches atomic.Int32
	e := newEntry(t, "admin", &st.users[2], &fetches)
	before := fetches.Load()

	router := NewRouter(&AuthHandler{Access: table, Log: zap.NewNop()}, &Handler{Store: st, Access: table, Log: zap.NewNop()}, mockSessions{"admin": e}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPatch, "/allEmployeeList/3/salary", strings.NewReader(`{"salary":900}`))
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "admin"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if fetches.Load() <= before {
		t.Errorf("own record changed but the role was not re-resolved")
	}
}

func TestPayroll(t *testing.T) {
	env := newTestEnv(t)

	if rr := env.do(http.MethodGet, "/payroll", "admin", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if rr := env.do(http.MethodPatch, "/payroll/p2/approve", "admin", ""); rr.Code != http.StatusOK {
		t.Errorf("approve pending: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if rr := env.do(http.MethodPatch, "/payroll/p1/approve", "admin", ""); rr.Code != http.StatusConflict {
		t.Errorf("approve paid: expected 409, got %d", rr.Code)
	}
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/profile", "emp", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"email":"emp@x.io"`) {
		t.Fatalf("unexpected profile: %d %s", rr.Code, rr.Body.String())
	}

	if rr := env.do(http.MethodPatch, "/profile", "emp", `{"name":"  "}`); rr.Code != http.StatusBadRequest {
		t.Errorf("blank name: expected 400, got %d", rr.Code)
	}
}
