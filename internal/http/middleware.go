package http

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/logging"
)

// Header names populated by the authenticating frontend. This service sits
// behind it and trusts the forwarded identity.
const (
	headerUserID = "X-User-ID"
	headerAdmin  = "X-User-Admin"
)

// principalFrom reads the acting principal from trusted request headers.
func principalFrom(c echo.Context) booking.Principal {
	userID := strings.TrimSpace(c.Request().Header.Get(headerUserID))
	admin := strings.EqualFold(strings.TrimSpace(c.Request().Header.Get(headerAdmin)), "true")
	return booking.Principal{UserID: userID, IsAdmin: admin}
}

// RequestLogger attaches a request scoped logger to the context and logs the
// outcome of every request.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			reqLogger := logger.With(
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
			)
			c.SetRequest(req.WithContext(logging.ContextWithLogger(req.Context(), reqLogger)))

			err := next(c)
			if err != nil {
				reqLogger.Error("request error", slog.String("error", err.Error()))
				return err
			}
			reqLogger.Info("request handled", slog.Int("status", c.Response().Status))
			return nil
		}
	}
}

// RequireUser rejects requests that carry no authenticated identity.
func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if principalFrom(c).UserID == "" {
			return c.JSON(401, errorResponse{Message: "authentication required"})
		}
		return next(c)
	}
}
