package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/booking"
)

type blockingService interface {
	CreateBlocking(ctx context.Context, params application.CreateBlockingParams) (booking.Blocking, error)
	AcceptBlockedRoom(ctx context.Context, principal booking.Principal, blockingID, roomID string) error
	RejectBlockedRoom(ctx context.Context, principal booking.Principal, blockingID, roomID, reason string) error
	GetBlocking(ctx context.Context, id string) (booking.Blocking, error)
	ListBlockings(ctx context.Context, principal booking.Principal) ([]booking.Blocking, error)
}

// BlockingHandler serves the blocking administration endpoints.
type BlockingHandler struct {
	service    blockingService
	onMutation func()
}

// NewBlockingHandler wires the blocking endpoints.
func NewBlockingHandler(service blockingService, onMutation func()) *BlockingHandler {
	if onMutation == nil {
		onMutation = func() {}
	}
	return &BlockingHandler{service: service, onMutation: onMutation}
}

type createBlockingRequest struct {
	Reason     string   `json:"reason"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	RoomIDs    []string `json:"room_ids"`
	AllowedIDs []string `json:"allowed_ids,omitempty"`
}

// Create handles POST /v1/blockings.
func (h *BlockingHandler) Create(c echo.Context) error {
	var req createBlockingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	start, err := time.Parse(booking.DateLayout, req.StartDate)
	if err != nil {
		return badRequest(c, "invalid start_date")
	}
	end, err := time.Parse(booking.DateLayout, req.EndDate)
	if err != nil {
		return badRequest(c, "invalid end_date")
	}

	blocking, err := h.service.CreateBlocking(c.Request().Context(), application.CreateBlockingParams{
		Principal: principalFrom(c),
		Input: application.BlockingInput{
			Reason:     req.Reason,
			StartDate:  start,
			EndDate:    end,
			RoomIDs:    req.RoomIDs,
			AllowedIDs: req.AllowedIDs,
		},
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.JSON(http.StatusCreated, renderBlocking(blocking))
}

// AcceptRoom handles POST /v1/blockings/:id/rooms/:roomID/accept.
func (h *BlockingHandler) AcceptRoom(c echo.Context) error {
	if err := h.service.AcceptBlockedRoom(c.Request().Context(), principalFrom(c), c.Param("id"), c.Param("roomID")); err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.NoContent(http.StatusNoContent)
}

// RejectRoom handles POST /v1/blockings/:id/rooms/:roomID/reject.
func (h *BlockingHandler) RejectRoom(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.service.RejectBlockedRoom(c.Request().Context(), principalFrom(c), c.Param("id"), c.Param("roomID"), req.Reason); err != nil {
		return handleServiceError(c, err)
	}
	h.onMutation()
	return c.NoContent(http.StatusNoContent)
}

// Get handles GET /v1/blockings/:id.
func (h *BlockingHandler) Get(c echo.Context) error {
	blocking, err := h.service.GetBlocking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, renderBlocking(blocking))
}

// List handles GET /v1/blockings.
func (h *BlockingHandler) List(c echo.Context) error {
	blockings, err := h.service.ListBlockings(c.Request().Context(), principalFrom(c))
	if err != nil {
		return handleServiceError(c, err)
	}
	out := make([]blockingResponse, 0, len(blockings))
	for _, blocking := range blockings {
		out = append(out, renderBlocking(blocking))
	}
	return c.JSON(http.StatusOK, out)
}
