package http

import (
	"time"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/recurrence"
)

// recurrenceRequest is the wire form of a recurrence rule.
type recurrenceRequest struct {
	Frequency string   `json:"frequency"`
	Interval  int      `json:"interval,omitempty"`
	Weekdays  []string `json:"weekdays,omitempty"`
}

func (r recurrenceRequest) toRule() (recurrence.Rule, error) {
	rule := recurrence.Rule{Interval: r.Interval}
	if r.Frequency == "" {
		rule.Frequency = recurrence.FrequencyNever
		return rule, nil
	}
	frequency, err := recurrence.ParseFrequency(r.Frequency)
	if err != nil {
		return recurrence.Rule{}, err
	}
	rule.Frequency = frequency
	for _, token := range r.Weekdays {
		day, err := recurrence.ParseWeekday(token)
		if err != nil {
			return recurrence.Rule{}, err
		}
		rule.Weekdays = append(rule.Weekdays, day)
	}
	return rule, nil
}

func recurrenceResponseOf(rule recurrence.Rule) recurrenceRequest {
	out := recurrenceRequest{Frequency: rule.Frequency.String(), Interval: rule.Interval}
	for _, day := range rule.Weekdays {
		out.Weekdays = append(out.Weekdays, recurrence.WeekdayToken(day))
	}
	return out
}

type occurrenceLinkPayload struct {
	Kind     string `json:"kind"`
	ObjectID string `json:"object_id"`
}

type occurrenceResponse struct {
	Date   string                 `json:"date"`
	Start  time.Time              `json:"start"`
	End    time.Time              `json:"end"`
	State  string                 `json:"state"`
	Reason string                 `json:"reason,omitempty"`
	Link   *occurrenceLinkPayload `json:"link,omitempty"`
}

type reservationResponse struct {
	ID              string               `json:"id"`
	RoomID          string               `json:"room_id"`
	CreatedByID     string               `json:"created_by_id"`
	BookedForID     string               `json:"booked_for_id"`
	BookedForName   string               `json:"booked_for_name,omitempty"`
	Reason          string               `json:"reason"`
	Start           time.Time            `json:"start"`
	End             time.Time            `json:"end"`
	Recurrence      recurrenceRequest    `json:"recurrence"`
	State           string               `json:"state"`
	RejectionReason string               `json:"rejection_reason,omitempty"`
	Occurrences     []occurrenceResponse `json:"occurrences"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func renderReservation(reservation booking.Reservation) reservationResponse {
	out := reservationResponse{
		ID:              reservation.ID,
		RoomID:          reservation.RoomID,
		CreatedByID:     reservation.CreatedByID,
		BookedForID:     reservation.BookedForID,
		BookedForName:   reservation.BookedForName,
		Reason:          reservation.Reason,
		Start:           reservation.Start,
		End:             reservation.End,
		Recurrence:      recurrenceResponseOf(reservation.Recurrence),
		State:           string(reservation.State),
		RejectionReason: reservation.RejectionReason,
		CreatedAt:       reservation.CreatedAt,
		UpdatedAt:       reservation.UpdatedAt,
	}
	for _, occ := range reservation.Occurrences {
		out.Occurrences = append(out.Occurrences, renderOccurrence(occ))
	}
	return out
}

func renderOccurrence(occ booking.Occurrence) occurrenceResponse {
	resp := occurrenceResponse{
		Date:   occ.DateKey(),
		Start:  occ.Start,
		End:    occ.End,
		State:  string(occ.State),
		Reason: occ.Reason,
	}
	if occ.Link != nil {
		resp.Link = &occurrenceLinkPayload{Kind: string(occ.Link.Kind), ObjectID: occ.Link.ObjectID}
	}
	return resp
}

type roomResponse struct {
	ID                   string               `json:"id"`
	Name                 string               `json:"name"`
	Location             string               `json:"location"`
	OwnerID              string               `json:"owner_id,omitempty"`
	ManagerIDs           []string             `json:"manager_ids,omitempty"`
	RequiresConfirmation bool                 `json:"requires_confirmation"`
	BookingLimitDays     int                  `json:"booking_limit_days,omitempty"`
	BookableHours        []bookableHoursEntry `json:"bookable_hours,omitempty"`
	NonBookablePeriods   []periodEntry        `json:"non_bookable_periods,omitempty"`
	Deleted              bool                 `json:"deleted,omitempty"`
}

type bookableHoursEntry struct {
	Weekday     string `json:"weekday"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

type periodEntry struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func renderRoom(room booking.Room) roomResponse {
	out := roomResponse{
		ID:                   room.ID,
		Name:                 room.Name,
		Location:             room.Location,
		OwnerID:              room.OwnerID,
		ManagerIDs:           room.ManagerIDs,
		RequiresConfirmation: room.RequiresConfirmation,
		BookingLimitDays:     room.BookingLimitDays,
		Deleted:              room.Deleted,
	}
	for _, bh := range room.BookableHours {
		out.BookableHours = append(out.BookableHours, bookableHoursEntry{
			Weekday:     recurrence.WeekdayToken(bh.Weekday),
			StartMinute: bh.Hours.StartMinute,
			EndMinute:   bh.Hours.EndMinute,
		})
	}
	for _, period := range room.NonBookablePeriods {
		out.NonBookablePeriods = append(out.NonBookablePeriods, periodEntry{
			StartDate: period.StartDate.Format(booking.DateLayout),
			EndDate:   period.EndDate.Format(booking.DateLayout),
		})
	}
	return out
}

type blockingResponse struct {
	ID           string                `json:"id"`
	CreatedByID  string                `json:"created_by_id"`
	Reason       string                `json:"reason"`
	StartDate    string                `json:"start_date"`
	EndDate      string                `json:"end_date"`
	AllowedIDs   []string              `json:"allowed_ids,omitempty"`
	BlockedRooms []blockedRoomResponse `json:"blocked_rooms"`
}

type blockedRoomResponse struct {
	RoomID          string `json:"room_id"`
	State           string `json:"state"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

func renderBlocking(blocking booking.Blocking) blockingResponse {
	out := blockingResponse{
		ID:          blocking.ID,
		CreatedByID: blocking.CreatedByID,
		Reason:      blocking.Reason,
		StartDate:   blocking.StartDate.Format(booking.DateLayout),
		EndDate:     blocking.EndDate.Format(booking.DateLayout),
		AllowedIDs:  blocking.AllowedIDs,
	}
	for _, entry := range blocking.BlockedRooms {
		out.BlockedRooms = append(out.BlockedRooms, blockedRoomResponse{
			RoomID:          entry.RoomID,
			State:           string(entry.State),
			RejectionReason: entry.RejectionReason,
		})
	}
	return out
}
