package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/logging"
)

type errorResponse struct {
	ErrorCode string                       `json:"error_code,omitempty"`
	Message   string                       `json:"message"`
	Errors    map[string]string            `json:"errors,omitempty"`
	Conflicts []application.ConflictDetail `json:"conflicts,omitempty"`
}

// handleServiceError translates application layer errors to HTTP responses.
// Validation failures map to 422, business-rule refusals to 400, strict-mode
// conflicts to 409, authorization to 403 and missing resources to 404.
func handleServiceError(c echo.Context, err error) error {
	if err == nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "unknown error"})
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "you are not allowed to perform this operation",
		})
	case errors.Is(err, application.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Message: "the requested resource was not found"})
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Message: "the request is invalid",
			Errors:  vErr.FieldErrors,
		})
	}

	var cErr *application.ConflictError
	if errors.As(err, &cErr) {
		return c.JSON(http.StatusConflict, errorResponse{
			ErrorCode: "BOOKING_CONFLICT",
			Message:   cErr.Error(),
			Conflicts: cErr.Conflicts,
		})
	}

	var uErr *application.UserError
	if errors.As(err, &uErr) {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: uErr.Message})
	}

	logging.FromContext(c.Request().Context()).Error("request failed", "error", err.Error())
	return c.JSON(http.StatusInternalServerError, errorResponse{Message: "internal server error"})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Message: message})
}
