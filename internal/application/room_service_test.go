package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/testfixtures"
)

func newRoomService(store *testfixtures.Store) *RoomService {
	clock := testfixtures.NewClock(june(1, 12, 0))
	ids := testfixtures.NewIDGenerator("room")
	return NewRoomService(store, nil, ids.NextFunc(), clock.NowFunc())
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	admin := booking.Principal{UserID: "root", IsAdmin: true}

	t.Run("admins create rooms", func(t *testing.T) {
		store := testfixtures.NewStore()
		service := newRoomService(store)

		room, err := service.CreateRoom(ctx, CreateRoomParams{
			Principal: admin,
			Input: RoomInput{
				Name:       "  Aula  ",
				Location:   "Main building",
				OwnerID:    "owner",
				ManagerIDs: []string{"m1", "m1", "", "m2"},
			},
		})
		if err != nil {
			t.Fatalf("CreateRoom returned error: %v", err)
		}
		if room.Name != "Aula" {
			t.Fatalf("name = %q, want trimmed", room.Name)
		}
		if len(room.ManagerIDs) != 2 {
			t.Fatalf("managers = %v, want deduplicated pair", room.ManagerIDs)
		}
		if _, err := store.GetRoom(ctx, room.ID); err != nil {
			t.Fatalf("room not persisted: %v", err)
		}
	})

	t.Run("non-admins are refused", func(t *testing.T) {
		service := newRoomService(testfixtures.NewStore())
		_, err := service.CreateRoom(ctx, CreateRoomParams{
			Principal: booking.Principal{UserID: "alice"},
			Input:     RoomInput{Name: "Aula", Location: "Main building"},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("name and location are required", func(t *testing.T) {
		service := newRoomService(testfixtures.NewStore())
		_, err := service.CreateRoom(ctx, CreateRoomParams{
			Principal: admin,
			Input:     RoomInput{BookingLimitDays: -1},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"name", "location", "booking_limit_days"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("missing %s field error: %v", field, vErr.FieldErrors)
			}
		}
	})
}

func TestDeleteRoom(t *testing.T) {
	ctx := context.Background()
	store := testfixtures.NewStore()
	store.Seed([]booking.Room{testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-1"))}, nil, nil)
	service := newRoomService(store)

	if err := service.DeleteRoom(ctx, booking.Principal{UserID: "alice"}, "room-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	admin := booking.Principal{UserID: "root", IsAdmin: true}
	if err := service.DeleteRoom(ctx, admin, "room-1"); err != nil {
		t.Fatalf("DeleteRoom returned error: %v", err)
	}

	// The record survives as a soft-deleted row.
	room, err := store.GetRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("soft-deleted room must remain loadable: %v", err)
	}
	if !room.Deleted {
		t.Fatalf("room not marked deleted")
	}

	if err := service.DeleteRoom(ctx, admin, "room-x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRooms(t *testing.T) {
	ctx := context.Background()
	store := testfixtures.NewStore()
	live := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-live"))
	gone := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-gone"))
	gone.Deleted = true
	store.Seed([]booking.Room{live, gone}, nil, nil)
	service := newRoomService(store)

	rooms, err := service.ListRooms(ctx, booking.Principal{UserID: "alice"}, false)
	if err != nil {
		t.Fatalf("ListRooms returned error: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != "room-live" {
		t.Fatalf("unexpected catalog: %v", rooms)
	}

	if _, err := service.ListRooms(ctx, booking.Principal{UserID: "alice"}, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("include_deleted must be admin only, got %v", err)
	}

	all, err := service.ListRooms(ctx, booking.Principal{UserID: "root", IsAdmin: true}, true)
	if err != nil {
		t.Fatalf("ListRooms returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin list has %d rooms, want 2", len(all))
	}
}

func TestSetBookableHours(t *testing.T) {
	ctx := context.Background()
	owner := booking.Principal{UserID: "owner"}

	setup := func() (*testfixtures.Store, *RoomService) {
		store := testfixtures.NewStore()
		store.Seed([]booking.Room{testfixtures.NewRoomFixture(
			testfixtures.WithRoomID("room-1"),
			testfixtures.WithOwner("owner"),
		)}, nil, nil)
		return store, newRoomService(store)
	}

	t.Run("owner replaces the windows", func(t *testing.T) {
		store, service := setup()
		hours := []booking.BookableHours{
			{Weekday: time.Monday, Hours: booking.HourRange{StartMinute: 9 * 60, EndMinute: 12 * 60}},
			{Weekday: time.Monday, Hours: booking.HourRange{StartMinute: 14 * 60, EndMinute: 18 * 60}},
		}
		if err := service.SetBookableHours(ctx, owner, "room-1", hours); err != nil {
			t.Fatalf("SetBookableHours returned error: %v", err)
		}
		room, _ := store.GetRoom(ctx, "room-1")
		if len(room.BookableHours) != 2 {
			t.Fatalf("got %d ranges, want 2", len(room.BookableHours))
		}
	})

	t.Run("overlapping ranges on a weekday are rejected", func(t *testing.T) {
		_, service := setup()
		hours := []booking.BookableHours{
			{Weekday: time.Monday, Hours: booking.HourRange{StartMinute: 9 * 60, EndMinute: 12 * 60}},
			{Weekday: time.Monday, Hours: booking.HourRange{StartMinute: 11 * 60, EndMinute: 14 * 60}},
		}
		err := service.SetBookableHours(ctx, owner, "room-1", hours)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("out of range minutes are rejected", func(t *testing.T) {
		_, service := setup()
		hours := []booking.BookableHours{
			{Weekday: time.Monday, Hours: booking.HourRange{StartMinute: 9 * 60, EndMinute: 25 * 60}},
		}
		err := service.SetBookableHours(ctx, owner, "room-1", hours)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("strangers cannot edit restrictions", func(t *testing.T) {
		_, service := setup()
		if err := service.SetBookableHours(ctx, booking.Principal{UserID: "mallory"}, "room-1", nil); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestSetNonBookablePeriods(t *testing.T) {
	ctx := context.Background()
	owner := booking.Principal{UserID: "owner"}
	store := testfixtures.NewStore()
	store.Seed([]booking.Room{testfixtures.NewRoomFixture(
		testfixtures.WithRoomID("room-1"),
		testfixtures.WithOwner("owner"),
	)}, nil, nil)
	service := newRoomService(store)

	periods := []booking.NonBookablePeriod{{
		StartDate: june(10, 15, 30),
		EndDate:   june(12, 8, 0),
	}}
	if err := service.SetNonBookablePeriods(ctx, owner, "room-1", periods); err != nil {
		t.Fatalf("SetNonBookablePeriods returned error: %v", err)
	}
	room, _ := store.GetRoom(ctx, "room-1")
	if len(room.NonBookablePeriods) != 1 {
		t.Fatalf("got %d periods, want 1", len(room.NonBookablePeriods))
	}
	stored := room.NonBookablePeriods[0]
	// Dates are normalized to midnight.
	if !stored.StartDate.Equal(june(10, 0, 0)) || !stored.EndDate.Equal(june(12, 0, 0)) {
		t.Fatalf("period not normalized: %v-%v", stored.StartDate, stored.EndDate)
	}

	reversed := []booking.NonBookablePeriod{{StartDate: june(12, 0, 0), EndDate: june(10, 0, 0)}}
	err := service.SetNonBookablePeriods(ctx, owner, "room-1", reversed)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
