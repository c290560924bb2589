package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/recurrence"
	"github.com/example/roombook/internal/suggest"
)

type calendarService interface {
	GetRoomsAvailability(ctx context.Context, params application.AvailabilityParams) (application.RoomsAvailability, error)
	GetRoomCalendar(ctx context.Context, principal booking.Principal, roomIDs []string, start, end time.Time) ([]application.RoomCalendar, error)
	GetSuggestions(ctx context.Context, params application.SuggestionParams) ([]suggest.RoomSuggestion, error)
}

// CalendarHandler serves the read endpoints: availability, calendars and
// suggestions.
type CalendarHandler struct {
	service calendarService
}

// NewCalendarHandler wires the read endpoints.
func NewCalendarHandler(service calendarService) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// Availability handles GET /v1/availability.
func (h *CalendarHandler) Availability(c echo.Context) error {
	start, end, err := parseWindow(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	rule, err := parseRuleQuery(c)
	if err != nil {
		return badRequest(c, "invalid recurrence rule")
	}

	response, err := h.service.GetRoomsAvailability(c.Request().Context(), application.AvailabilityParams{
		Principal:  principalFrom(c),
		RoomIDs:    splitParam(c.QueryParam("room_ids")),
		Start:      start,
		End:        end,
		Recurrence: rule,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, response)
}

// Calendar handles GET /v1/calendar.
func (h *CalendarHandler) Calendar(c echo.Context) error {
	start, end, err := parseWindow(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	calendars, err := h.service.GetRoomCalendar(c.Request().Context(), principalFrom(c), splitParam(c.QueryParam("room_ids")), start, end)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, calendars)
}

// Suggestions handles GET /v1/suggestions.
func (h *CalendarHandler) Suggestions(c echo.Context) error {
	start, end, err := parseWindow(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	rule, err := parseRuleQuery(c)
	if err != nil {
		return badRequest(c, "invalid recurrence rule")
	}

	limit := 0
	if limitValue := c.QueryParam("limit"); limitValue != "" {
		limit, err = strconv.Atoi(limitValue)
		if err != nil || limit < 0 {
			return badRequest(c, "invalid limit")
		}
	}

	suggestions, err := h.service.GetSuggestions(c.Request().Context(), application.SuggestionParams{
		Principal:  principalFrom(c),
		RoomIDs:    splitParam(c.QueryParam("room_ids")),
		Start:      start,
		End:        end,
		Recurrence: rule,
		Limit:      limit,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, suggestions)
}

func parseWindow(c echo.Context) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid start")
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid end")
	}
	return start, end, nil
}

func parseRuleQuery(c echo.Context) (recurrence.Rule, error) {
	interval := 0
	if intervalValue := c.QueryParam("interval"); intervalValue != "" {
		parsed, err := strconv.Atoi(intervalValue)
		if err != nil {
			return recurrence.Rule{}, err
		}
		interval = parsed
	}
	return recurrenceRequest{
		Frequency: c.QueryParam("frequency"),
		Interval:  interval,
		Weekdays:  splitParam(c.QueryParam("weekdays")),
	}.toRule()
}

func splitParam(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
