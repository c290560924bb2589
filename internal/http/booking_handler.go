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

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (booking.Reservation, error)
	ModifyBooking(ctx context.Context, params application.ModifyBookingParams) (bool, error)
	AcceptBooking(ctx context.Context, principal booking.Principal, reservationID string) error
	RejectBooking(ctx context.Context, principal booking.Principal, reservationID, reason string) error
	CancelBooking(ctx context.Context, principal booking.Principal, reservationID string) error
	CancelOccurrence(ctx context.Context, principal booking.Principal, reservationID, dateKey, reason string) error
	RejectOccurrence(ctx context.Context, principal booking.Principal, reservationID, dateKey, reason string) error
	SetOccurrenceLink(ctx context.Context, principal booking.Principal, reservationID, dateKey string, link *booking.OccurrenceLink) error
	GetBooking(ctx context.Context, reservationID string) (booking.Reservation, error)
	GetBookingLog(ctx context.Context, reservationID string) ([]booking.LogEntry, error)
}

// BookingHandler serves the reservation lifecycle endpoints.
type BookingHandler struct {
	service bookingService
	// onMutation runs after every successful state change, used to drop
	// cached availability responses.
	onMutation func()
}

// NewBookingHandler wires the reservation endpoints.
func NewBookingHandler(service bookingService, onMutation func()) *BookingHandler {
	if onMutation == nil {
		onMutation = func() {}
	}
	return &BookingHandler{service: service, onMutation: onMutation}
}

type createBookingRequest struct {
	RoomID        string            `json:"room_id"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Recurrence    recurrenceRequest `json:"recurrence"`
	Reason        string            `json:"reason"`
	BookedForID   string            `json:"booked_for_id,omitempty"`
	BookedForName string            `json:"booked_for_name,omitempty"`
	Prebook       bool              `json:"prebook,omitempty"`
	// SkipConflicts creates the bookable days and cancels the rest instead of
	// failing the whole request on the first conflict.
	SkipConflicts bool `json:"skip_conflicts,omitempty"`
	IgnoreAdmin   bool `json:"ignore_admin,omitempty"`
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	rule, err := req.Recurrence.toRule()
	if err != nil {
		return badRequest(c, "invalid recurrence rule")
	}

	reservation, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingParams{
		Principal: principalFrom(c),
		Input: application.BookingInput{
			RoomID:        req.RoomID,
			Start:         req.Start,
			End:           req.End,
			Recurrence:    rule,
			Reason:        req.Reason,
			BookedForID:   req.BookedForID,
			BookedForName: req.BookedForName,
		},
		Prebook:     req.Prebook,
		Strict:      !req.SkipConflicts,
		IgnoreAdmin: req.IgnoreAdmin,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	h.onMutation()
	return c.JSON(http.StatusCreated, renderReservation(reservation))
}

type modifyBookingRequest struct {
	Start         *time.Time         `json:"start,omitempty"`
	End           *time.Time         `json:"end,omitempty"`
	Recurrence    *recurrenceRequest `json:"recurrence,omitempty"`
	Reason        *string            `json:"reason,omitempty"`
	BookedForID   *string            `json:"booked_for_id,omitempty"`
	BookedForName *string            `json:"booked_for_name,omitempty"`
}

// Modify handles PATCH /v1/bookings/:id.
func (h *BookingHandler) Modify(c echo.Context) error {
	var req modifyBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	var rule *recurrence.Rule
	if req.Recurrence != nil {
		parsed, err := req.Recurrence.toRule()
		if err != nil {
			return badRequest(c, "invalid recurrence rule")
		}
		rule = &parsed
	}

	changed, err := h.service.ModifyBooking(c.Request().Context(), application.ModifyBookingParams{
		Principal:     principalFrom(c),
		ReservationID: c.Param("id"),
		Input: application.ModifyInput{
			Start:         req.Start,
			End:           req.End,
			Recurrence:    rule,
			Reason:        req.Reason,
			BookedForID:   req.BookedForID,
			BookedForName: req.BookedForName,
		},
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	if changed {
		h.onMutation()
	}
	return c.JSON(http.StatusOK, echo.Map{"changed": changed})
}

// Accept handles POST /v1/bookings/:id/accept.
func (h *BookingHandler) Accept(c echo.Context) error {
	if err := h.service.AcceptBooking(c.Request().Context(), principalFrom(c), c.Param("id")); err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.NoContent(http.StatusNoContent)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// Reject handles POST /v1/bookings/:id/reject.
func (h *BookingHandler) Reject(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.service.RejectBooking(c.Request().Context(), principalFrom(c), c.Param("id"), req.Reason); err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.NoContent(http.StatusNoContent)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	if err := h.service.CancelBooking(c.Request().Context(), principalFrom(c), c.Param("id")); err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.NoContent(http.StatusNoContent)
}

// CancelOccurrence handles POST /v1/bookings/:id/occurrences/:date/cancel.
func (h *BookingHandler) CancelOccurrence(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.service.CancelOccurrence(c.Request().Context(), principalFrom(c), c.Param("id"), c.Param("date"), req.Reason); err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.NoContent(http.StatusNoContent)
}

// RejectOccurrence handles POST /v1/bookings/:id/occurrences/:date/reject.
func (h *BookingHandler) RejectOccurrence(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.service.RejectOccurrence(c.Request().Context(), principalFrom(c), c.Param("id"), c.Param("date"), req.Reason); err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.NoContent(http.StatusNoContent)
}

// SetOccurrenceLink handles PUT /v1/bookings/:id/occurrences/:date/link.
// A null body clears the link.
func (h *BookingHandler) SetOccurrenceLink(c echo.Context) error {
	var req *occurrenceLinkPayload
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	var link *booking.OccurrenceLink
	if req != nil && req.Kind != "" {
		link = &booking.OccurrenceLink{Kind: booking.LinkKind(req.Kind), ObjectID: req.ObjectID}
	}
	if err := h.service.SetOccurrenceLink(c.Request().Context(), principalFrom(c), c.Param("id"), c.Param("date"), link); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	reservation, err := h.service.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, renderReservation(reservation))
}

type logEntryResponse struct {
	At       time.Time `json:"at"`
	AuthorID string    `json:"author_id"`
	Message  string    `json:"message"`
}

// Log handles GET /v1/bookings/:id/log.
func (h *BookingHandler) Log(c echo.Context) error {
	entries, err := h.service.GetBookingLog(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err)
	}
	out := make([]logEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, logEntryResponse{At: entry.At, AuthorID: entry.AuthorID, Message: entry.Message})
	}
	return c.JSON(http.StatusOK, out)
}
