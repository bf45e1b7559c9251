// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/vanity-grinder/internal/generator"
	"github.com/vanity-grinder/internal/logging"
	"github.com/vanity-grinder/internal/models"
	"github.com/vanity-grinder/internal/service"
	"github.com/vanity-grinder/internal/types"
)

// VanityServiceInterface defines the interface for vanity job operations
type VanityServiceInterface interface {
	RequestVanityAddress(ctx context.Context, req *service.VanityRequest, requestIP string) (*models.VanityJob, error)
	GetJob(ctx context.Context, jobID string) (*models.VanityJob, error)
	ListJobs(ctx context.Context, status *types.JobStatus, limit int) ([]*models.VanityJob, error)
	CancelJob(ctx context.Context, jobID string) (*models.VanityJob, error)
	ResubmitJob(ctx context.Context, jobID string) (*models.VanityJob, error)
	Status(ctx context.Context) (*generator.Status, error)
	Estimate(pattern string, caseSensitive bool, attemptsPerSec float64) (*service.Estimate, error)
	JobThroughput(ctx context.Context, jobID string, limit int) ([]models.ThroughputSample, error)
}

// SubmitLimiter enforces a per-requester submission budget on the create
// route. Optional.
type SubmitLimiter interface {
	Allow(ctx context.Context, requester string) (bool, time.Duration, error)
}

// Server represents the HTTP API server.
type Server struct {
	router        *mux.Router
	httpServer    *http.Server
	vanityService VanityServiceInterface
	submitLimiter SubmitLimiter
	validate      *validator.Validate
	logger        *logging.Logger
	config        *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Requests per second and burst applied per client across all routes
	RequestsPerSecond float64
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, vanityService VanityServiceInterface, submitLimiter SubmitLimiter) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		vanityService: vanityService,
		submitLimiter: submitLimiter,
		validate:      validator.New(),
		logger:        logging.L().Component("api"),
		config:        config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Middleware order matters
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/vanity/jobs", s.handleSubmitJob).Methods("POST")
	api.HandleFunc("/vanity/jobs", s.handleListJobs).Methods("GET")
	api.HandleFunc("/vanity/jobs/{jobId}", s.handleGetJob).Methods("GET")
	api.HandleFunc("/vanity/jobs/{jobId}/cancel", s.handleCancelJob).Methods("POST")
	api.HandleFunc("/vanity/jobs/{jobId}/resubmit", s.handleResubmitJob).Methods("POST")
	api.HandleFunc("/vanity/jobs/{jobId}/throughput", s.handleJobThroughput).Methods("GET")
	api.HandleFunc("/vanity/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/vanity/estimate", s.handleEstimate).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "vanity-grinder",
	})
}

// Handler exposes the configured router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Infof("starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infof("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
