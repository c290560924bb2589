// Package testfixtures provides deterministic clocks, identifier generators,
// fixture builders and in-memory repositories for tests.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/recurrence"
)

var (
	roomCounter        uint64
	reservationCounter uint64
	blockingCounter    uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// RoomOption configures the generated room fixture.
type RoomOption func(*booking.Room)

// NewRoomFixture returns a deterministic room with optional overrides.
func NewRoomFixture(opts ...RoomOption) booking.Room {
	idx := atomic.AddUint64(&roomCounter, 1)
	id := fmt.Sprintf("room-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	room := booking.Room{
		ID:        id,
		Name:      fmt.Sprintf("Room %03d", idx),
		Location:  fmt.Sprintf("Building A / %03d", idx),
		OwnerID:   "owner-1",
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomID overrides the room id.
func WithRoomID(id string) RoomOption {
	return func(r *booking.Room) { r.ID = id }
}

// WithOwner overrides the room owner.
func WithOwner(userID string) RoomOption {
	return func(r *booking.Room) { r.OwnerID = userID }
}

// WithConfirmationRequired marks the room as moderated.
func WithConfirmationRequired() RoomOption {
	return func(r *booking.Room) { r.RequiresConfirmation = true }
}

// WithBookingLimitDays caps series length on the room.
func WithBookingLimitDays(days int) RoomOption {
	return func(r *booking.Room) { r.BookingLimitDays = days }
}

// WithBookableHours restricts the room to the given windows.
func WithBookableHours(hours ...booking.BookableHours) RoomOption {
	return func(r *booking.Room) { r.BookableHours = hours }
}

// WithNonBookablePeriods excludes the given date ranges.
func WithNonBookablePeriods(periods ...booking.NonBookablePeriod) RoomOption {
	return func(r *booking.Room) { r.NonBookablePeriods = periods }
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*booking.Reservation)

// NewReservationFixture returns a deterministic accepted single-day
// reservation with one valid occurrence, plus optional overrides.
func NewReservationFixture(opts ...ReservationOption) booking.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	id := fmt.Sprintf("reservation-%03d", idx)
	start := referenceTime.Add(time.Duration(idx) * 24 * time.Hour)
	end := start.Add(time.Hour)
	created := referenceTime
	reservation := booking.Reservation{
		ID:          id,
		RoomID:      "room-001",
		CreatedByID: "user-1",
		BookedForID: "user-1",
		Reason:      fmt.Sprintf("Meeting %03d", idx),
		Start:       start,
		End:         end,
		Recurrence:  recurrence.Rule{Frequency: recurrence.FrequencyNever},
		State:       booking.ReservationAccepted,
		Occurrences: []booking.Occurrence{{
			ReservationID: id,
			Start:         start,
			End:           end,
			State:         booking.OccurrenceValid,
		}},
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&reservation)
	}
	return reservation
}

// WithReservationID overrides the reservation id and its occurrences' owner.
func WithReservationID(id string) ReservationOption {
	return func(r *booking.Reservation) {
		r.ID = id
		for i := range r.Occurrences {
			r.Occurrences[i].ReservationID = id
		}
	}
}

// WithRoom places the reservation on the given room.
func WithRoom(roomID string) ReservationOption {
	return func(r *booking.Reservation) { r.RoomID = roomID }
}

// WithCreator overrides the creating user.
func WithCreator(userID string) ReservationOption {
	return func(r *booking.Reservation) {
		r.CreatedByID = userID
		r.BookedForID = userID
	}
}

// WithState sets the reservation state.
func WithState(state booking.ReservationState) ReservationOption {
	return func(r *booking.Reservation) { r.State = state }
}

// WithWindow moves the reservation and regenerates a single valid occurrence
// covering it.
func WithWindow(start, end time.Time) ReservationOption {
	return func(r *booking.Reservation) {
		r.Start = start
		r.End = end
		r.Occurrences = []booking.Occurrence{{
			ReservationID: r.ID,
			Start:         start,
			End:           end,
			State:         booking.OccurrenceValid,
		}}
	}
}

// WithOccurrences replaces the occurrence set.
func WithOccurrences(occurrences ...booking.Occurrence) ReservationOption {
	return func(r *booking.Reservation) {
		for i := range occurrences {
			occurrences[i].ReservationID = r.ID
		}
		r.Occurrences = occurrences
		if len(occurrences) > 0 {
			r.Start = occurrences[0].Start
			r.End = occurrences[len(occurrences)-1].End
		}
	}
}

// WithRecurrence sets the recurrence rule.
func WithRecurrence(rule recurrence.Rule) ReservationOption {
	return func(r *booking.Reservation) { r.Recurrence = rule }
}

// BlockingOption configures the generated blocking fixture.
type BlockingOption func(*booking.Blocking)

// NewBlockingFixture returns a deterministic blocking accepted on one room.
func NewBlockingFixture(opts ...BlockingOption) booking.Blocking {
	idx := atomic.AddUint64(&blockingCounter, 1)
	id := fmt.Sprintf("blocking-%03d", idx)
	start := booking.StartOfDay(referenceTime.Add(time.Duration(idx) * 24 * time.Hour))
	blocking := booking.Blocking{
		ID:          id,
		CreatedByID: "admin-1",
		Reason:      fmt.Sprintf("Maintenance %03d", idx),
		StartDate:   start,
		EndDate:     start,
		BlockedRooms: []booking.BlockedRoom{{
			BlockingID: id,
			RoomID:     "room-001",
			State:      booking.BlockingAccepted,
		}},
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&blocking)
	}
	return blocking
}

// WithBlockingDates sets the inclusive blocked date range.
func WithBlockingDates(start, end time.Time) BlockingOption {
	return func(b *booking.Blocking) {
		b.StartDate = booking.StartOfDay(start)
		b.EndDate = booking.StartOfDay(end)
	}
}

// WithBlockedRooms replaces the per-room entries.
func WithBlockedRooms(entries ...booking.BlockedRoom) BlockingOption {
	return func(b *booking.Blocking) {
		for i := range entries {
			entries[i].BlockingID = b.ID
		}
		b.BlockedRooms = entries
	}
}

// WithAllowed sets the allow-list.
func WithAllowed(userIDs ...string) BlockingOption {
	return func(b *booking.Blocking) { b.AllowedIDs = userIDs }
}

// WithBlockingCreator overrides the creating user.
func WithBlockingCreator(userID string) BlockingOption {
	return func(b *booking.Blocking) { b.CreatedByID = userID }
}
