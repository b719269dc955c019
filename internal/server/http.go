package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"clarifyai/config"
	_ "clarifyai/internal/apidocs"
	"clarifyai/internal/auth"
	"clarifyai/internal/campus"
	"clarifyai/internal/conversation"
	"clarifyai/internal/core"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	Identity        auth.IdentityProvider // Optional: nil serves every request anonymously
	Conversations   conversation.Store    // Optional: nil disables transcript persistence
	Campus          *campus.Service
	MetricsEnabled  bool         // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string       // HTTP path for metrics endpoint (default: /metrics)
	MetricsHandler  http.Handler // Defaults to promhttp.Handler()
	BodySizeLimit   string       // echo size syntax, e.g. "1M" (default: config.DefaultBodySize)
	SwaggerEnabled  bool         // Whether to serve the Swagger UI at /swagger/index.html
	Logger          *slog.Logger
}

// New creates a new HTTP server
func New(relay ChatStreamer, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := NewHandler(relay, cfg.Conversations, cfg.Campus, logger)

	// Global middleware stack (order matters)
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			c.SetRequest(c.Request().WithContext(core.WithRequestID(c.Request().Context(), id)))
		},
	}))
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())

	bodySizeLimit := cfg.BodySizeLimit
	if bodySizeLimit == "" {
		bodySizeLimit = config.DefaultBodySize
	}
	e.Use(middleware.BodyLimit(bodySizeLimit))

	required := AuthMiddleware(cfg.Identity, false)
	optional := AuthMiddleware(cfg.Identity, true)

	// Public routes
	e.GET("/", handler.Root)
	e.GET("/health", handler.Health)
	if cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean("/" + cfg.MetricsEndpoint)
		}
		metricsHandler := cfg.MetricsHandler
		if metricsHandler == nil {
			metricsHandler = promhttp.Handler()
		}
		e.GET(metricsPath, echo.WrapHandler(metricsHandler))
	}
	if cfg.SwaggerEnabled {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	v1 := e.Group("/v1")
	v1.GET("/auth/me", handler.Me, required)
	v1.POST("/chat/stream", handler.ChatStream, required)

	conversations := v1.Group("/conversations", required)
	conversations.GET("", handler.ListConversations)
	conversations.POST("", handler.CreateConversation)
	conversations.GET("/:id", handler.GetConversation)
	conversations.PATCH("/:id", handler.RenameConversation)
	conversations.DELETE("/:id", handler.DeleteConversation)
	conversations.PUT("/:id/messages/:message_id/feedback", handler.RateMessage)

	v1.GET("/faqs", handler.ListFAQs, optional)
	v1.GET("/faqs/:id", handler.GetFAQ, optional)
	v1.POST("/faqs", handler.CreateFAQ, required)
	v1.PUT("/faqs/:id", handler.UpdateFAQ, required)
	v1.DELETE("/faqs/:id", handler.DeleteFAQ, required)

	v1.GET("/announcements", handler.ListAnnouncements, optional)
	v1.GET("/announcements/:id", handler.GetAnnouncement, optional)
	v1.POST("/announcements", handler.CreateAnnouncement, required)
	v1.PUT("/announcements/:id", handler.UpdateAnnouncement, required)
	v1.DELETE("/announcements/:id", handler.DeleteAnnouncement, required)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// requestLogger logs one structured line per request.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				level = slog.LevelError
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
