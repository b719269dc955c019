// Package server provides the HTTP API of the campus assistant.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"clarifyai/internal/auth"
	"clarifyai/internal/campus"
	"clarifyai/internal/conversation"
	"clarifyai/internal/core"
)

// ChatStreamer runs one streamed chat turn. *relay.Relay satisfies it.
type ChatStreamer interface {
	StreamChat(ctx context.Context, messages []core.Message, cb core.StreamCallbacks)
	Vendor() string
}

// Handler holds the HTTP handlers
type Handler struct {
	relay         ChatStreamer
	conversations conversation.Store
	campus        *campus.Service
	logger        *slog.Logger
}

// NewHandler creates a new handler. conversations and campusSvc may be nil.
func NewHandler(relay ChatStreamer, conversations conversation.Store, campusSvc *campus.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		relay:         relay,
		conversations: conversations,
		campus:        campusSvc,
		logger:        logger,
	}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Root handles GET /
func (h *Handler) Root(c echo.Context) error {
	vendor := ""
	if h.relay != nil {
		vendor = h.relay.Vendor()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"name":   "clarifyai",
		"vendor": vendor,
		"endpoints": []string{
			"/health",
			"/v1/auth/me",
			"/v1/chat/stream",
			"/v1/conversations",
			"/v1/faqs",
			"/v1/announcements",
		},
	})
}

// Me handles GET /v1/auth/me
func (h *Handler) Me(c echo.Context) error {
	id := identity(c)
	if id == nil {
		return handleError(c, core.NewAuthenticationError("", "authentication required"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":            id.Subject,
		"email":         id.Email,
		"role":          id.Role,
		"auth_provider": id.SignInMethod(),
	})
}

func actor(c echo.Context) campus.Actor {
	id := identity(c)
	if id == nil {
		return campus.Actor{}
	}
	return campus.Actor{ID: id.Subject, Admin: id.IsAdmin()}
}

func requireIdentity(c echo.Context) (*auth.Identity, error) {
	id := identity(c)
	if id == nil {
		return nil, core.NewAuthenticationError("", "authentication required")
	}
	return id, nil
}

// handleError converts gateway errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}
	if errors.Is(err, conversation.ErrNotFound) {
		return c.JSON(http.StatusNotFound, core.NewNotFoundError("conversation not found").ToJSON())
	}

	slog.Error("unhandled request error", "path", c.Path(), "error", err)

	// Fallback for unexpected errors
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
