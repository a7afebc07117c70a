package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"drone-dispatch/internal/auth"
	"drone-dispatch/internal/domain"
	"drone-dispatch/internal/service"
	"drone-dispatch/internal/transport"
)

type Options struct {
	Logger zerolog.Logger
	// StepInterval paces live simulations unless the client asks for another interval.
	StepInterval time.Duration
}

type Server struct {
	svc  *service.Service
	auth *auth.Authenticator
	log  zerolog.Logger
	opts Options
}

func NewServer(svc *service.Service, authenticator *auth.Authenticator, opts Options) http.Handler {
	s := &Server{svc: svc, auth: authenticator, log: opts.Logger, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/auth/token", s.handleIssueToken)

	r.Route("/orders", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleEndUser, domain.RoleAdmin))
		r.Post("/", s.handleSubmitOrder)
		r.Get("/{id}", s.handleGetOrder)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleAdmin))
		r.Get("/orders", s.handleAdminListOrders)
		r.Get("/drones", s.handleAdminListDrones)
		r.Post("/drones", s.handleAdminRegisterDrone)
		r.Post("/cycle/reset", s.handleResetCycle)
		r.Post("/cycle/plan", s.handlePlanCycle)
		r.Post("/simulations/batch", s.handleRunBatch)
		r.Get("/simulations/live", s.handleLiveSimulation)
	})

	return r
}

// requireRole accepts the token from the Authorization header, or from the
// access_token query parameter for websocket clients that cannot set headers.
func (s *Server) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				if token := r.URL.Query().Get("access_token"); token != "" {
					header = "Bearer " + token
				}
			}
			claims, err := s.auth.Authorize(header, roles...)
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	token, exp, err := s.auth.IssueToken(req.Name, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp,
	})
}

type submitOrderRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	WeightKg float64 `json:"weight_kg"`
	Priority string  `json:"priority"`
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := s.svc.SubmitOrder(r.Context(), claims.Subject, domain.Position{X: req.X, Y: req.Y}, req.WeightKg, priority)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transport.FromOrder(order))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	view, err := s.svc.GetOrder(r.Context(), claims.Subject, claims.Role, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrderView(view))
}

func (s *Server) handleAdminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	orders, err := s.svc.ListOrders(r.Context(), service.OrderFilter{
		Status: transport.ParseOrderStatus(q.Get("status")),
		UserID: q.Get("user_id"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromOrders(orders))
}

func (s *Server) handleAdminListDrones(w http.ResponseWriter, r *http.Request) {
	drones, err := s.svc.ListDrones(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromDrones(drones))
}

func (s *Server) handleAdminRegisterDrone(w http.ResponseWriter, r *http.Request) {
	var spec domain.DroneSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	drone, err := s.svc.RegisterDrone(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transport.FromDrone(drone))
}

func (s *Server) handleResetCycle(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ResetCycle(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlanCycle(w http.ResponseWriter, r *http.Request) {
	plan, err := s.svc.PlanCycle(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromPlan(plan))
}

func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.RunBatch(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromReport(report))
}

func mustClaims(r *http.Request) *auth.Claims {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return claims
}
