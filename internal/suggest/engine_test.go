package suggest

import (
	"testing"
	"time"

	"github.com/example/roombook/internal/availability"
	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/recurrence"
)

func busyOn(iv booking.Interval) availability.Existing {
	return availability.Existing{
		Occurrence: booking.Occurrence{
			ReservationID: "res-busy",
			Start:         iv.Start,
			End:           iv.End,
			State:         booking.OccurrenceValid,
		},
		RoomID:           "room-1",
		ReservationState: booking.ReservationAccepted,
	}
}

func at(day, h, m int) time.Time {
	return time.Date(2024, time.June, day, h, m, 0, 0, time.UTC)
}

func TestForRoom_Single(t *testing.T) {
	settings := booking.DefaultSettings()
	room := &booking.Room{ID: "room-1"}
	requested := booking.Interval{Start: at(3, 9, 0), End: at(3, 10, 0)}

	t.Run("already free yields nothing", func(t *testing.T) {
		bag := &availability.RoomBag{Room: room}
		if _, ok := ForRoom(bag, []booking.Interval{requested}, recurrence.Rule{}, settings); ok {
			t.Fatalf("free slot must not produce a suggestion")
		}
	})

	t.Run("smallest working shift wins", func(t *testing.T) {
		bag := &availability.RoomBag{
			Room:        room,
			Occurrences: []availability.Existing{busyOn(booking.Interval{Start: at(3, 9, 0), End: at(3, 9, 10)})},
		}
		s, ok := ForRoom(bag, []booking.Interval{requested}, recurrence.Rule{}, settings)
		if !ok {
			t.Fatalf("expected a suggestion")
		}
		if s.ShiftMinutes != 10 {
			t.Fatalf("ShiftMinutes = %d, want 10", s.ShiftMinutes)
		}
		if s.ShortenMinutes != 0 || len(s.SkipDates) != 0 {
			t.Fatalf("unexpected extra adjustments: %+v", s)
		}
		if s.Score != 10 {
			t.Fatalf("Score = %v, want 10", s.Score)
		}
	})

	t.Run("shortening when no shift fits", func(t *testing.T) {
		// Busy right before the slot and from 09:55 onward: every shift inside
		// the window collides, but trimming five minutes frees the slot.
		bag := &availability.RoomBag{
			Room: room,
			Occurrences: []availability.Existing{
				busyOn(booking.Interval{Start: at(3, 7, 0), End: at(3, 9, 0)}),
				busyOn(booking.Interval{Start: at(3, 9, 55), End: at(3, 11, 0)}),
			},
		}
		s, ok := ForRoom(bag, []booking.Interval{requested}, recurrence.Rule{}, settings)
		if !ok {
			t.Fatalf("expected a suggestion")
		}
		if s.ShortenMinutes != 5 {
			t.Fatalf("ShortenMinutes = %d, want 5", s.ShortenMinutes)
		}
		if s.Score != 1 {
			t.Fatalf("Score = %v, want 1", s.Score)
		}
	})

	t.Run("fully booked day yields nothing", func(t *testing.T) {
		bag := &availability.RoomBag{
			Room:        room,
			Occurrences: []availability.Existing{busyOn(booking.Interval{Start: at(3, 0, 0), End: at(4, 0, 0)})},
		}
		if _, ok := ForRoom(bag, []booking.Interval{requested}, recurrence.Rule{}, settings); ok {
			t.Fatalf("no adjustment can help on a fully booked day")
		}
	})
}

func TestForRoom_Recurring(t *testing.T) {
	settings := booking.DefaultSettings()
	rule := recurrence.Rule{Frequency: recurrence.FrequencyDaily}

	daily := func(firstDay, count int) []booking.Interval {
		slots := make([]booking.Interval, 0, count)
		for i := 0; i < count; i++ {
			slots = append(slots, booking.Interval{
				Start: at(firstDay+i, 9, 0),
				End:   at(firstDay+i, 10, 0),
			})
		}
		return slots
	}

	t.Run("series over the day limit is trimmed", func(t *testing.T) {
		bag := &availability.RoomBag{Room: &booking.Room{ID: "room-1", BookingLimitDays: 5}}
		s, ok := ForRoom(bag, daily(3, 7), rule, settings)
		if !ok {
			t.Fatalf("expected a suggestion")
		}
		if s.ShortenDays != 2 {
			t.Fatalf("ShortenDays = %d, want 2", s.ShortenDays)
		}
	})

	t.Run("partial collisions become skip dates", func(t *testing.T) {
		bag := &availability.RoomBag{
			Room:        &booking.Room{ID: "room-1"},
			Occurrences: []availability.Existing{busyOn(booking.Interval{Start: at(4, 9, 30), End: at(4, 10, 30)})},
		}
		s, ok := ForRoom(bag, daily(3, 3), rule, settings)
		if !ok {
			t.Fatalf("expected a suggestion")
		}
		if len(s.SkipDates) != 1 || s.SkipDates[0] != "2024-06-04" {
			t.Fatalf("SkipDates = %v", s.SkipDates)
		}
	})

	t.Run("fully colliding series yields nothing", func(t *testing.T) {
		bag := &availability.RoomBag{
			Room:        &booking.Room{ID: "room-1"},
			Occurrences: []availability.Existing{busyOn(booking.Interval{Start: at(3, 0, 0), End: at(6, 0, 0)})},
		}
		if _, ok := ForRoom(bag, daily(3, 3), rule, settings); ok {
			t.Fatalf("skipping every day is no suggestion")
		}
	})
}

func TestRank(t *testing.T) {
	roomA := &booking.Room{ID: "room-a"}
	roomB := &booking.Room{ID: "room-b"}
	roomC := &booking.Room{ID: "room-c"}

	suggestions := []RoomSuggestion{
		{Room: roomC, Suggestion: Suggestion{ShiftMinutes: 10, Score: 10}},
		{Room: roomB, Suggestion: Suggestion{ShortenMinutes: 5, Score: 1}},
		{Room: roomA, Suggestion: Suggestion{ShiftMinutes: 5, Score: 1}},
	}
	Rank(suggestions)

	wantOrder := []string{"room-a", "room-b", "room-c"}
	for i, want := range wantOrder {
		if suggestions[i].Room.ID != want {
			t.Fatalf("position %d holds %s, want %s", i, suggestions[i].Room.ID, want)
		}
	}
}

func TestForRoom_Degenerate(t *testing.T) {
	settings := booking.DefaultSettings()
	if _, ok := ForRoom(nil, []booking.Interval{{Start: at(3, 9, 0), End: at(3, 10, 0)}}, recurrence.Rule{}, settings); ok {
		t.Fatalf("nil bag must yield nothing")
	}
	if _, ok := ForRoom(&availability.RoomBag{Room: &booking.Room{ID: "r"}}, nil, recurrence.Rule{}, settings); ok {
		t.Fatalf("empty candidate set must yield nothing")
	}
}
