package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"opsflow/internal/capability"
	"opsflow/internal/config"
	"opsflow/internal/history"
	"opsflow/internal/workflow"
	"opsflow/pkg/logging"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// WorkflowService is the part of the workflow manager served over HTTP.
type WorkflowService interface {
	List() []workflow.Workflow
	Get(id string) (workflow.Workflow, error)
	Run(ctx context.Context, id string, vars map[string]interface{}) (workflow.WorkflowResult, error)
	RunAsync(ctx context.Context, id string, vars map[string]interface{}) (workflow.AsyncRun, error)
	GetRun(ctx context.Context, runID string) (history.Record, error)
	Runs(ctx context.Context, workflowID string, limit int) ([]history.Record, error)
	IntegrationHealth(ctx context.Context) map[string]capability.HealthStatus
}

// Server implements the HTTP API for running workflows
type Server struct {
	config  config.ServerConfig
	service WorkflowService

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a new HTTP API server
func NewServer(cfg config.ServerConfig, service WorkflowService) *Server {
	return &Server{
		config:  cfg,
		service: service,
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return logging.Logger().With("subsystem", "HTTPServer")
		}),
	))

	router.GET("/healthz", s.handleHealth)
	router.GET("/integrations/health", s.handleIntegrationHealth)

	wf := router.Group("/workflows")
	{
		wf.GET("", s.listWorkflows)
		wf.GET("/:workflowID", s.getWorkflow)
		wf.POST("/:workflowID/run", s.runWorkflow)
		wf.GET("/:workflowID/runs", s.listRuns)
	}

	router.GET("/runs/:runID", s.getRun)

	return router
}

// Start binds the listen address and serves the API in the background. A
// failure to bind is returned to the caller.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return fmt.Errorf("http server already started")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpServer

	logging.Info("HTTPServer", "Serving HTTP API on %s", ln.Addr())
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTPServer", err, "HTTP server error")
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}

	logging.Info("HTTPServer", "Stopping HTTP API")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleIntegrationHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.IntegrationHealth(c.Request.Context()))
}

func errorJSON(c *gin.Context, status int, err error) {
	c.JSON(status, ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case workflow.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrExecutorClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
