package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lettermill/platform/internal/api/handler"
	mw "github.com/lettermill/platform/internal/api/middleware"
	"github.com/lettermill/platform/internal/health"
)

type Server struct {
	router  chi.Router
	logger  zerolog.Logger
	checker *health.Checker
	orch    handler.Deployer
	ledger  handler.DeploymentHistory
	runner  handler.Migrator
}

func NewServer(logger zerolog.Logger, checker *health.Checker, orch handler.Deployer, ledger handler.DeploymentHistory, runner handler.Migrator) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger,
		checker: checker,
		orch:    orch,
		ledger:  ledger,
		runner:  runner,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Deployments
		deployment := handler.NewDeployment(s.orch, s.ledger)
		r.Post("/deployments", deployment.Create)
		r.Get("/deployments", deployment.List)
		r.Get("/deployments/current", deployment.Current)

		// Migrations
		migration := handler.NewMigration(s.runner)
		r.Post("/migrations/run", migration.Run)
		r.Get("/migrations/status", migration.Status)
		r.Post("/migrations/rollback", migration.Rollback)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	readiness, err := s.checker.Readiness(r.Context())
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if readiness.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(readiness)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
