// Package http exposes the booking, availability and administration APIs
// over JSON. Authentication happens upstream; the service trusts forwarded
// identity headers.
package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers groups the endpoint handlers mounted by the router.
type Handlers struct {
	Bookings  *BookingHandler
	Calendar  *CalendarHandler
	Rooms     *RoomHandler
	Blockings *BlockingHandler
}

// NewRouter builds the Echo instance with all routes and middleware attached.
func NewRouter(logger *slog.Logger, handlers Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(RequestLogger(logger))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	v1 := e.Group("/v1", RequireUser)

	v1.POST("/bookings", handlers.Bookings.Create)
	v1.GET("/bookings/:id", handlers.Bookings.Get)
	v1.PATCH("/bookings/:id", handlers.Bookings.Modify)
	v1.GET("/bookings/:id/log", handlers.Bookings.Log)
	v1.POST("/bookings/:id/accept", handlers.Bookings.Accept)
	v1.POST("/bookings/:id/reject", handlers.Bookings.Reject)
	v1.POST("/bookings/:id/cancel", handlers.Bookings.Cancel)
	v1.POST("/bookings/:id/occurrences/:date/cancel", handlers.Bookings.CancelOccurrence)
	v1.POST("/bookings/:id/occurrences/:date/reject", handlers.Bookings.RejectOccurrence)
	v1.PUT("/bookings/:id/occurrences/:date/link", handlers.Bookings.SetOccurrenceLink)

	v1.GET("/availability", handlers.Calendar.Availability)
	v1.GET("/calendar", handlers.Calendar.Calendar)
	v1.GET("/suggestions", handlers.Calendar.Suggestions)

	v1.GET("/rooms", handlers.Rooms.List)
	v1.POST("/rooms", handlers.Rooms.Create)
	v1.GET("/rooms/:id", handlers.Rooms.Get)
	v1.PUT("/rooms/:id", handlers.Rooms.Update)
	v1.DELETE("/rooms/:id", handlers.Rooms.Delete)
	v1.PUT("/rooms/:id/bookable-hours", handlers.Rooms.SetBookableHours)
	v1.PUT("/rooms/:id/non-bookable-periods", handlers.Rooms.SetNonBookablePeriods)

	v1.GET("/blockings", handlers.Blockings.List)
	v1.POST("/blockings", handlers.Blockings.Create)
	v1.GET("/blockings/:id", handlers.Blockings.Get)
	v1.POST("/blockings/:id/rooms/:roomID/accept", handlers.Blockings.AcceptRoom)
	v1.POST("/blockings/:id/rooms/:roomID/reject", handlers.Blockings.RejectRoom)

	return e
}
