package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ecommerce-transactions/config"
	"ecommerce-transactions/internal/handler"
	"ecommerce-transactions/internal/middleware"
	"ecommerce-transactions/internal/transport/httpdto"
	"ecommerce-transactions/pkg/logger"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Routes struct {
	Transactions *handler.TransactionHandler
	Tokens       middleware.TokenParser
	// Limiter may be nil to disable activation rate limiting.
	Limiter middleware.ActivationLimiter
	Health  map[string]HealthCheck
}

// New fails when the API status enum no longer matches the domain.
func New(cfg *config.Config, l *logger.Logger) (*Server, error) {
	if err := httpdto.ValidateStatuses(); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	switch cfg.Server.Mode {
	case ReleaseMode, logger.ProductionMode:
		gin.SetMode(gin.ReleaseMode)
	case TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}, nil
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(routes Routes) {
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.AccessLog(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/health", func(c *gin.Context) {
		status := gin.H{}
		healthy := true
		for name, check := range routes.Health {
			if err := check(c.Request.Context()); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, httpdto.Response[gin.H]{Data: status, Code: httpdto.CodeServiceUnavailable})
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(status))
	})

	tx := routes.Transactions
	requireToken := middleware.TransactionAuth(routes.Tokens)

	v1 := s.engine.Group("/v1/transactions")
	{
		create := []gin.HandlerFunc{tx.Create}
		if routes.Limiter != nil {
			create = append([]gin.HandlerFunc{middleware.ActivationRateLimit(routes.Limiter, s.logger)}, create...)
		}
		v1.POST("", create...)
		v1.GET("/:id", requireToken, tx.Get)
		v1.POST("/:id/auth-requests", requireToken, tx.RequestAuthorization)
		v1.DELETE("/:id", requireToken, tx.Cancel)

		// outcome callbacks from the gateway and the node
		v1.PATCH("/:id/auth-requests", tx.UpdateAuthorization)
		v1.POST("/:id/user-receipts", tx.AddUserReceipt)
	}
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.Server.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infof("Shutdown signal received, draining for up to %s", s.config.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}
	s.logger.Infof("Server stopped gracefully")
	return nil
}
