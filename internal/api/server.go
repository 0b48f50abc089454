package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/heart-risk-service/internal/domain"
	"github.com/heart-risk-service/internal/middleware"
	"github.com/heart-risk-service/internal/model"
)

// maxBodyBytes caps the size of a prediction request
const maxBodyBytes = 1 << 20

// Predictor is the prediction capability served over HTTP
type Predictor interface {
	domain.Predictor
	Ready() bool
	Describe() (*model.Info, error)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	predictor     Predictor
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, predictor Predictor, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registerJSONFieldNames()

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())

	server := &Server{
		configManager: configManager,
		predictor:     predictor,
		logger:        logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Handler returns the routed handler, used by tests and embedding callers
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("Prediction API listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down prediction API")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/predict", s.handlePredict)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/model", s.handleModel)
		v1.POST("/predict", s.handlePredict)
	}
}

// handleHealth reports liveness. It answers 200 even when no model is loaded.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		ModelLoaded: s.predictor.Ready(),
	})
}

// handlePredict handles prediction requests
func (s *Server) handlePredict(c *gin.Context) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	// invalid input is reported before model availability
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, newValidationResponse(err, requestID))
		return
	}

	if !s.predictor.Ready() {
		s.writeError(c, domain.ErrModelUnavailable)
		return
	}

	result, err := s.predictor.Predict(c.Request.Context(), req.Features())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleModel returns metadata of the loaded model
func (s *Server) handleModel(c *gin.Context) {
	info, err := s.predictor.Describe()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// writeError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	status := http.StatusInternalServerError
	detail := err.Error()
	switch {
	case errors.Is(err, domain.ErrModelUnavailable):
		status = http.StatusServiceUnavailable
		detail = "Model not loaded"
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"correlation_id": requestID,
			"status":         status,
		}).WithError(err).Error("Request failed")
	}

	c.JSON(status, domain.NewAPIError(domain.CodeOf(err), detail, requestID))
}
