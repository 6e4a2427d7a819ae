package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/middleware"
)

// NewRouter constructs and returns the portal HTTP handler.
//
// Middleware chain (applied in order):
//  1. RequestID          - tags the request with X-Request-Id
//  2. Recoverer          - turns panics into 500
//  3. WithRequestLogging - logs every request
//  4. LoadSession        - attaches the session named by the cookie
//
// View routes are wrapped in Gate with their permission table pattern.
func NewRouter(
	authHandler *AuthHandler,
	viewHandler *Handler,
	sessions middleware.SessionLookup,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.LoadSession(sessions, logger))

	// Public pages
	r.Get("/", authHandler.Home)
	r.Get("/login", authHandler.LoginPage)
	r.Get("/register", authHandler.RegisterPage)
	r.Get("/contact", authHandler.Contact)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.AllowContentType("application/json"))
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/login/idp", authHandler.LoginIdP)
		})
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	gate := func(pattern string) func(http.Handler) http.Handler {
		return Gate(viewHandler.Access, pattern)
	}

	r.Route("/worksheet", func(r chi.Router) {
		r.Use(gate("/worksheet"))
		r.Get("/", viewHandler.Worksheet)
		r.Post("/", viewHandler.AddWork)
		r.Put("/{id}", viewHandler.EditWork)
		r.Delete("/{id}", viewHandler.DeleteWork)
	})
	r.With(gate("/paymentHistory")).Get("/paymentHistory", viewHandler.PaymentHistory)

	r.Route("/employeeList", func(r chi.Router) {
		r.Use(gate("/employeeList"))
		r.Get("/", viewHandler.EmployeeList)
		r.Patch("/{id}/verify", viewHandler.ToggleVerify)
		r.Post("/{id}/pay", viewHandler.Pay)
	})
	r.With(gate("/employees/{email}")).Get("/employees/{email}", viewHandler.EmployeeDetails)
	r.With(gate("/progress")).Get("/progress", viewHandler.Progress)

	r.Route("/allEmployeeList", func(r chi.Router) {
		r.Use(gate("/allEmployeeList"))
		r.Get("/", viewHandler.AllEmployees)
		r.Patch("/{id}/{op}", viewHandler.ChangeStaff)
	})
	r.Route("/payroll", func(r chi.Router) {
		r.Use(gate("/payroll"))
		r.Get("/", viewHandler.Payroll)
		r.Patch("/{id}/approve", viewHandler.Approve)
	})

	r.Route("/profile", func(r chi.Router) {
		r.Use(gate("/profile"))
		r.Get("/", viewHandler.Profile)
		r.Patch("/", viewHandler.UpdateProfile)
	})

	return r
}
