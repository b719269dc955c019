package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"clarifyai/internal/auth"
)

// AuthMiddleware resolves the bearer token into an auth.Identity stored on the
// request context. With a nil provider every request runs as the anonymous
// identity. When optional is set, requests without an Authorization header
// pass through with no identity.
func AuthMiddleware(provider auth.IdentityProvider, optional bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if provider == nil {
				c.SetRequest(req.WithContext(auth.WithIdentity(req.Context(), auth.Anonymous())))
				return next(c)
			}

			authHeader := req.Header.Get("Authorization")
			if authHeader == "" {
				if optional {
					return next(c)
				}
				return authError(c, "missing authorization header")
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				return authError(c, "invalid authorization header format, expected 'Bearer <token>'")
			}

			identity, err := provider.Authenticate(req.Context(), strings.TrimPrefix(authHeader, prefix))
			if err != nil {
				return authError(c, "invalid or expired token")
			}

			c.SetRequest(req.WithContext(auth.WithIdentity(req.Context(), identity)))
			return next(c)
		}
	}
}

func authError(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "authentication_error",
			"message": message,
		},
	})
}

// identity returns the caller, or nil on optional routes without a token.
func identity(c echo.Context) *auth.Identity {
	return auth.FromContext(c.Request().Context())
}
