package conflict

import (
	"testing"
	"time"

	"github.com/example/roombook/internal/availability"
	"github.com/example/roombook/internal/booking"
)

func slot(day, h, m, durMinutes int) booking.Interval {
	start := time.Date(2024, time.June, day, h, m, 0, 0, time.UTC)
	return booking.Interval{Start: start, End: start.Add(time.Duration(durMinutes) * time.Minute)}
}

func existingOn(reservationID string, state booking.ReservationState, iv booking.Interval) availability.Existing {
	return availability.Existing{
		Occurrence: booking.Occurrence{
			ReservationID: reservationID,
			Start:         iv.Start,
			End:           iv.End,
			State:         booking.OccurrenceValid,
		},
		RoomID:           "room-1",
		ReservationState: state,
	}
}

func TestResolve_Classification(t *testing.T) {
	room := &booking.Room{ID: "room-1"}

	t.Run("free candidate", func(t *testing.T) {
		bag := &availability.RoomBag{Room: room}
		candidate := slot(3, 9, 0, 60)
		result := Resolve([]booking.Interval{candidate}, bag, Options{})
		if !result.IsFree(candidate) {
			t.Fatalf("expected candidate to be free")
		}
		if result.HasBlockingConflicts() {
			t.Fatalf("empty bag reported blocking conflicts")
		}
	})

	t.Run("confirmed beats pending", func(t *testing.T) {
		candidate := slot(3, 9, 0, 60)
		bag := &availability.RoomBag{
			Room: room,
			Occurrences: []availability.Existing{
				existingOn("res-pending", booking.ReservationPending, slot(3, 9, 0, 30)),
				existingOn("res-confirmed", booking.ReservationAccepted, slot(3, 9, 30, 30)),
			},
		}
		result := Resolve([]booking.Interval{candidate}, bag, Options{})
		if got := result.Classify(candidate); got != ClassConfirmed {
			t.Fatalf("Classify = %v, want ClassConfirmed", got)
		}
		if len(result.Confirmed) != 1 || len(result.Pending) != 1 {
			t.Fatalf("got %d confirmed / %d pending overlaps", len(result.Confirmed), len(result.Pending))
		}
	})

	t.Run("pending alone does not block", func(t *testing.T) {
		candidate := slot(3, 9, 0, 60)
		bag := &availability.RoomBag{
			Room:        room,
			Occurrences: []availability.Existing{existingOn("res-pending", booking.ReservationPending, slot(3, 9, 0, 30))},
		}
		result := Resolve([]booking.Interval{candidate}, bag, Options{})
		if got := result.Classify(candidate); got != ClassPending {
			t.Fatalf("Classify = %v, want ClassPending", got)
		}
		if result.HasBlockingConflicts() {
			t.Fatalf("pending overlap must not count as a blocking conflict")
		}
	})

	t.Run("touching bounds do not conflict", func(t *testing.T) {
		candidate := slot(3, 10, 0, 60)
		bag := &availability.RoomBag{
			Room:        room,
			Occurrences: []availability.Existing{existingOn("res-1", booking.ReservationAccepted, slot(3, 9, 0, 60))},
		}
		result := Resolve([]booking.Interval{candidate}, bag, Options{})
		if !result.IsFree(candidate) {
			t.Fatalf("back-to-back bookings must not conflict")
		}
	})

	t.Run("blocking outranks pending and hours", func(t *testing.T) {
		candidate := slot(3, 9, 0, 60)
		day := booking.StartOfDay(candidate.Start)
		bag := &availability.RoomBag{
			Room:        room,
			Occurrences: []availability.Existing{existingOn("res-pending", booking.ReservationPending, candidate)},
			Blockings: []availability.BlockingEntry{{
				Blocking: booking.Blocking{ID: "blk-1", StartDate: day, EndDate: day},
				Entry:    booking.BlockedRoom{BlockingID: "blk-1", RoomID: "room-1", State: booking.BlockingAccepted},
			}},
			UnbookableHours: map[time.Weekday][]booking.HourRange{
				day.Weekday(): {{StartMinute: 0, EndMinute: 8 * 60}},
			},
		}
		result := Resolve([]booking.Interval{candidate}, bag, Options{})
		if got := result.Classify(candidate); got != ClassBlocked {
			t.Fatalf("Classify = %v, want ClassBlocked", got)
		}
		if len(result.Blocked) != 1 {
			t.Fatalf("got %d blocking conflicts", len(result.Blocked))
		}
	})

	t.Run("unbookable hours", func(t *testing.T) {
		candidate := slot(3, 7, 30, 60) // Monday 07:30, inside the 00:00-08:00 gap
		bag := &availability.RoomBag{
			Room: room,
			UnbookableHours: map[time.Weekday][]booking.HourRange{
				time.Monday: {{StartMinute: 0, EndMinute: 8 * 60}, {StartMinute: 18 * 60, EndMinute: 24 * 60}},
			},
		}
		result := Resolve([]booking.Interval{candidate}, bag, Options{})
		if got := result.Classify(candidate); got != ClassHours {
			t.Fatalf("Classify = %v, want ClassHours", got)
		}
		if len(result.Hours) != 1 {
			t.Fatalf("got %d hour conflicts", len(result.Hours))
		}
	})

	t.Run("non-bookable period outranks hours", func(t *testing.T) {
		candidate := slot(3, 7, 30, 60)
		day := booking.StartOfDay(candidate.Start)
		bag := &availability.RoomBag{
			Room:               room,
			NonBookablePeriods: []booking.Interval{{Start: day, End: day.AddDate(0, 0, 1)}},
			UnbookableHours: map[time.Weekday][]booking.HourRange{
				time.Monday: {{StartMinute: 0, EndMinute: 8 * 60}},
			},
		}
		result := Resolve([]booking.Interval{candidate}, bag, Options{})
		if got := result.Classify(candidate); got != ClassPeriod {
			t.Fatalf("Classify = %v, want ClassPeriod", got)
		}
	})
}

func TestResolve_Options(t *testing.T) {
	room := &booking.Room{ID: "room-1"}
	candidate := slot(3, 9, 0, 60)

	t.Run("skipped reservations are ignored", func(t *testing.T) {
		bag := &availability.RoomBag{
			Room:        room,
			Occurrences: []availability.Existing{existingOn("res-self", booking.ReservationAccepted, candidate)},
		}
		result := Resolve([]booking.Interval{candidate}, bag, Options{
			SkipReservationIDs: map[string]struct{}{"res-self": {}},
		})
		if !result.IsFree(candidate) {
			t.Fatalf("a reservation must not conflict with itself")
		}
	})

	t.Run("override skips period and hour checks but not bookings", func(t *testing.T) {
		day := booking.StartOfDay(candidate.Start)
		bag := &availability.RoomBag{
			Room:               room,
			Occurrences:        []availability.Existing{existingOn("res-1", booking.ReservationAccepted, candidate)},
			NonBookablePeriods: []booking.Interval{{Start: day, End: day.AddDate(0, 0, 1)}},
			UnbookableHours: map[time.Weekday][]booking.HourRange{
				day.Weekday(): {{StartMinute: 0, EndMinute: 24 * 60}},
			},
		}
		result := Resolve([]booking.Interval{candidate}, bag, Options{AllowOverride: true})
		if len(result.Periods) != 0 || len(result.Hours) != 0 {
			t.Fatalf("override must skip period and hour checks")
		}
		if got := result.Classify(candidate); got != ClassConfirmed {
			t.Fatalf("Classify = %v, want ClassConfirmed", got)
		}
	})
}

func TestResult_ConflictingCandidates(t *testing.T) {
	room := &booking.Room{ID: "room-1"}
	first := slot(3, 9, 0, 60)
	second := slot(4, 9, 0, 60)
	third := slot(5, 9, 0, 60)

	bag := &availability.RoomBag{
		Room: room,
		Occurrences: []availability.Existing{
			existingOn("res-1", booking.ReservationAccepted, slot(5, 9, 30, 30)),
			existingOn("res-2", booking.ReservationPending, slot(3, 9, 0, 30)),
		},
	}
	result := Resolve([]booking.Interval{first, second, third}, bag, Options{})

	conflicting := result.ConflictingCandidates()
	if len(conflicting) != 2 {
		t.Fatalf("got %d conflicting candidates, want 2", len(conflicting))
	}
	if !conflicting[0].Start.Equal(first.Start) || !conflicting[1].Start.Equal(third.Start) {
		t.Fatalf("conflicting candidates out of order: %v", conflicting)
	}
	if !result.IsFree(second) {
		t.Fatalf("middle candidate must stay free")
	}
}

func TestResolve_NilBag(t *testing.T) {
	candidate := slot(3, 9, 0, 60)
	result := Resolve([]booking.Interval{candidate}, nil, Options{})
	if !result.IsFree(candidate) || result.HasBlockingConflicts() {
		t.Fatalf("nil bag must yield a free result")
	}
}
