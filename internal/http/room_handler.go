package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/recurrence"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (booking.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (booking.Room, error)
	DeleteRoom(ctx context.Context, principal booking.Principal, roomID string) error
	GetRoom(ctx context.Context, roomID string) (booking.Room, error)
	ListRooms(ctx context.Context, principal booking.Principal, includeDeleted bool) ([]booking.Room, error)
	SetBookableHours(ctx context.Context, principal booking.Principal, roomID string, hours []booking.BookableHours) error
	SetNonBookablePeriods(ctx context.Context, principal booking.Principal, roomID string, periods []booking.NonBookablePeriod) error
}

// RoomHandler serves the room administration endpoints.
type RoomHandler struct {
	service    roomService
	onMutation func()
}

// NewRoomHandler wires the room endpoints.
func NewRoomHandler(service roomService, onMutation func()) *RoomHandler {
	if onMutation == nil {
		onMutation = func() {}
	}
	return &RoomHandler{service: service, onMutation: onMutation}
}

type roomRequest struct {
	Name                 string   `json:"name"`
	Location             string   `json:"location"`
	OwnerID              string   `json:"owner_id,omitempty"`
	ManagerIDs           []string `json:"manager_ids,omitempty"`
	RequiresConfirmation bool     `json:"requires_confirmation,omitempty"`
	BookingLimitDays     int      `json:"booking_limit_days,omitempty"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Name:                 r.Name,
		Location:             r.Location,
		OwnerID:              r.OwnerID,
		ManagerIDs:           r.ManagerIDs,
		RequiresConfirmation: r.RequiresConfirmation,
		BookingLimitDays:     r.BookingLimitDays,
	}
}

// Create handles POST /v1/rooms.
func (h *RoomHandler) Create(c echo.Context) error {
	var req roomRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	room, err := h.service.CreateRoom(c.Request().Context(), application.CreateRoomParams{
		Principal: principalFrom(c),
		Input:     req.toInput(),
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.JSON(http.StatusCreated, renderRoom(room))
}

// Update handles PUT /v1/rooms/:id.
func (h *RoomHandler) Update(c echo.Context) error {
	var req roomRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	room, err := h.service.UpdateRoom(c.Request().Context(), application.UpdateRoomParams{
		Principal: principalFrom(c),
		RoomID:    c.Param("id"),
		Input:     req.toInput(),
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.JSON(http.StatusOK, renderRoom(room))
}

// Delete handles DELETE /v1/rooms/:id.
func (h *RoomHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteRoom(c.Request().Context(), principalFrom(c), c.Param("id")); err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.NoContent(http.StatusNoContent)
}

// Get handles GET /v1/rooms/:id.
func (h *RoomHandler) Get(c echo.Context) error {
	room, err := h.service.GetRoom(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, renderRoom(room))
}

// List handles GET /v1/rooms.
func (h *RoomHandler) List(c echo.Context) error {
	includeDeleted := c.QueryParam("include_deleted") == "true"
	rooms, err := h.service.ListRooms(c.Request().Context(), principalFrom(c), includeDeleted)
	if err != nil {
		return handleServiceError(c, err)
	}
	out := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, renderRoom(room))
	}
	return c.JSON(http.StatusOK, out)
}

// SetBookableHours handles PUT /v1/rooms/:id/bookable-hours.
func (h *RoomHandler) SetBookableHours(c echo.Context) error {
	var req []bookableHoursEntry
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	hours := make([]booking.BookableHours, 0, len(req))
	for _, entry := range req {
		weekday, err := recurrence.ParseWeekday(entry.Weekday)
		if err != nil {
			return badRequest(c, "invalid weekday")
		}
		hours = append(hours, booking.BookableHours{
			Weekday: weekday,
			Hours:   booking.HourRange{StartMinute: entry.StartMinute, EndMinute: entry.EndMinute},
		})
	}

	if err := h.service.SetBookableHours(c.Request().Context(), principalFrom(c), c.Param("id"), hours); err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.NoContent(http.StatusNoContent)
}

// SetNonBookablePeriods handles PUT /v1/rooms/:id/non-bookable-periods.
func (h *RoomHandler) SetNonBookablePeriods(c echo.Context) error {
	var req []periodEntry
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	periods := make([]booking.NonBookablePeriod, 0, len(req))
	for _, entry := range req {
		start, err := time.Parse(booking.DateLayout, entry.StartDate)
		if err != nil {
			return badRequest(c, "invalid start_date")
		}
		end, err := time.Parse(booking.DateLayout, entry.EndDate)
		if err != nil {
			return badRequest(c, "invalid end_date")
		}
		periods = append(periods, booking.NonBookablePeriod{StartDate: start, EndDate: end})
	}

	if err := h.service.SetNonBookablePeriods(c.Request().Context(), principalFrom(c), c.Param("id"), periods); err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.NoContent(http.StatusNoContent)
}
