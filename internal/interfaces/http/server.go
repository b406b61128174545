// Package http provides the HTTP adapter for the application layer.
// Thin layer: handlers translate requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fourvoice/billing-backend/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	UploadDir    string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		UploadDir:    "uploads",
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	approvalService service.ApprovalService,
	reeditService service.ReeditService,
	invoiceService service.InvoiceService,
	deliveryService service.DeliveryService,
	exportService service.ExportService,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config: config,
		router: router,
		logger: logger,
	}

	router.Use(gin.Recovery())
	router.Use(server.loggingMiddleware())
	router.Use(actorMiddleware())

	handlers := NewHandlers(approvalService, reeditService, invoiceService, deliveryService, exportService, config.UploadDir, logger)
	server.setupRoutes(handlers)

	return server
}

// loggingMiddleware logs every request with latency and status
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(handlers *Handlers) {
	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/approvals", handlers.ListApprovals)
		api.POST("/approvals/action", handlers.ApprovalAction)
		api.GET("/approvals/export", handlers.ExportApprovals)

		api.POST("/ai/detect-rejection/:id", handlers.DetectRejection)
		api.POST("/ai/validate-invoice", handlers.ValidateInvoice)

		api.POST("/invoices", handlers.CreateInvoice)
		api.GET("/invoices/next-number", handlers.NextInvoiceNumber)
		api.GET("/invoices/:id/edit-data", handlers.EditData)
		api.GET("/invoices/:id/history", handlers.ApprovalHistory)
		api.POST("/invoices/:id/resubmit", handlers.Resubmit)

		api.GET("/clients", handlers.ListClients)
		api.POST("/clients", handlers.CreateClient)
		api.POST("/po-reader", handlers.ReadPurchaseOrder)
	}

	delivery := s.router.Group("/invoice-delivery")
	{
		delivery.GET("", handlers.ListDeliveries)
		delivery.GET("/filter", handlers.ListDeliveries)
		delivery.POST("/:id/resend", handlers.ResendInvoice)
		delivery.POST("/:id/mark-delivered", handlers.MarkDelivered)
		delivery.POST("/:id/mark-failed", handlers.MarkFailed)
		delivery.POST("/:id/mark-pending", handlers.MarkPending)
	}

	s.router.POST("/webhooks/delivery", handlers.DeliveryWebhook)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}
