/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. requestLogger: zap logger tagged with the request ID, put in context
  5. CORS:       Cross-origin requests for the portal frontend

ROUTE GROUPS:
  /api/employees/*      Employees, balances, submissions
  /api/team-leads/*     Team-lead queue
  /api/leave-requests/* Decisions, audit, LOP
  /api/payroll/*        Monthly LOP and month close
  /api/admin/*          Team assignments
  /api/scenarios/*      Demo scenarios
  /metrics              Prometheus

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// RouterOptions tunes NewRouter. The zero value serves no metrics and
// allows the local frontend origins.
type RouterOptions struct {
	AllowedOrigins []string
	Metrics        bool
}

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	if opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Put("/{id}", h.UpsertEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/leave-requests", h.ListEmployeeRequests)
			r.Post("/{id}/leave-requests", h.SubmitLeaveRequest)
		})

		r.Route("/team-leads", func(r chi.Router) {
			r.Get("/{id}/pending", h.ListPendingForTeamLead)
			r.Get("/{id}/members", h.ListTeamMembers)
		})

		r.Route("/leave-requests", func(r chi.Router) {
			r.Get("/", h.ListAllRequests)
			r.Get("/{id}", h.GetLeaveRequest)
			r.Get("/{id}/audit", h.GetAuditTrail)
			r.Get("/{id}/lop", h.GetRequestLOP)
			r.Post("/{id}/tl/approve", h.ApproveAsTeamLead)
			r.Post("/{id}/tl/reject", h.RejectAsTeamLead)
			r.Post("/{id}/hr/approve", h.ApproveAsHR)
			r.Post("/{id}/hr/reject", h.RejectAsHR)
		})

		r.Route("/payroll", func(r chi.Router) {
			r.Get("/lop", h.GetMonthlyLOP)
			r.Post("/close", h.ClosePayrollMonth)
			r.Get("/closes", h.ListPayrollCloses)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/team-assignments", h.AssignTeamLead)
			r.Delete("/team-assignments", h.UnassignTeamLead)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger stores a logger carrying the chi request ID in the request
// context so engine logs can be correlated with access logs.
func requestLogger(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if id := middleware.GetReqID(r.Context()); id != "" {
				l = base.With(zap.String("request_id", id))
			}
			next.ServeHTTP(w, r.WithContext(leave.WithLogger(r.Context(), l)))
		})
	}
}
