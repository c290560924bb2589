package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/testfixtures"
)

func newBlockingService(store *testfixtures.Store) *BlockingService {
	clock := testfixtures.NewClock(june(1, 12, 0))
	ids := testfixtures.NewIDGenerator("blocking")
	return NewBlockingService(store, store, nil, ids.NextFunc(), clock.NowFunc())
}

func TestCreateBlocking(t *testing.T) {
	ctx := context.Background()

	t.Run("managed rooms are accepted, foreign ones start pending", func(t *testing.T) {
		store := testfixtures.NewStore()
		owned := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-owned"), testfixtures.WithOwner("carol"))
		foreign := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-foreign"), testfixtures.WithOwner("someone"))
		store.Seed([]booking.Room{owned, foreign}, nil, nil)
		service := newBlockingService(store)

		blocking, err := service.CreateBlocking(ctx, CreateBlockingParams{
			Principal: booking.Principal{UserID: "carol"},
			Input: BlockingInput{
				Reason:     "Maintenance",
				StartDate:  june(10, 9, 0),
				EndDate:    june(12, 0, 0),
				RoomIDs:    []string{"room-owned", "room-foreign", "room-owned"},
				AllowedIDs: []string{"vip", "vip"},
			},
		})
		if err != nil {
			t.Fatalf("CreateBlocking returned error: %v", err)
		}
		if !blocking.StartDate.Equal(june(10, 0, 0)) {
			t.Fatalf("start date not normalized: %v", blocking.StartDate)
		}
		if len(blocking.BlockedRooms) != 2 {
			t.Fatalf("got %d room entries, want deduplicated 2", len(blocking.BlockedRooms))
		}
		states := map[string]booking.BlockingState{}
		for _, entry := range blocking.BlockedRooms {
			states[entry.RoomID] = entry.State
		}
		if states["room-owned"] != booking.BlockingAccepted {
			t.Fatalf("owned room entry = %s, want accepted", states["room-owned"])
		}
		if states["room-foreign"] != booking.BlockingPending {
			t.Fatalf("foreign room entry = %s, want pending", states["room-foreign"])
		}
		if len(blocking.AllowedIDs) != 1 {
			t.Fatalf("allow-list = %v, want deduplicated", blocking.AllowedIDs)
		}
		if _, err := store.GetBlocking(ctx, blocking.ID); err != nil {
			t.Fatalf("blocking not persisted: %v", err)
		}
	})

	t.Run("admins block any room immediately", func(t *testing.T) {
		store := testfixtures.NewStore()
		store.Seed([]booking.Room{testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-1"))}, nil, nil)
		service := newBlockingService(store)

		blocking, err := service.CreateBlocking(ctx, CreateBlockingParams{
			Principal: booking.Principal{UserID: "root", IsAdmin: true},
			Input: BlockingInput{
				Reason:    "Renovation",
				StartDate: june(10, 0, 0),
				EndDate:   june(20, 0, 0),
				RoomIDs:   []string{"room-1"},
			},
		})
		if err != nil {
			t.Fatalf("CreateBlocking returned error: %v", err)
		}
		if blocking.BlockedRooms[0].State != booking.BlockingAccepted {
			t.Fatalf("entry = %s, want accepted", blocking.BlockedRooms[0].State)
		}
	})

	t.Run("validation failures", func(t *testing.T) {
		service := newBlockingService(testfixtures.NewStore())
		_, err := service.CreateBlocking(ctx, CreateBlockingParams{
			Principal: booking.Principal{UserID: "carol"},
			Input: BlockingInput{
				Reason:    " ",
				StartDate: june(12, 0, 0),
				EndDate:   june(10, 0, 0),
			},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"reason", "dates", "rooms"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("missing %s field error: %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("anonymous callers are refused", func(t *testing.T) {
		service := newBlockingService(testfixtures.NewStore())
		_, err := service.CreateBlocking(ctx, CreateBlockingParams{Input: BlockingInput{Reason: "x"}})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestBlockedRoomDecisions(t *testing.T) {
	ctx := context.Background()
	owner := booking.Principal{UserID: "owner"}

	setup := func() (*testfixtures.Store, *BlockingService) {
		store := testfixtures.NewStore()
		room := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-1"), testfixtures.WithOwner("owner"))
		blocking := testfixtures.NewBlockingFixture(
			testfixtures.WithBlockingCreator("carol"),
			testfixtures.WithBlockedRooms(booking.BlockedRoom{RoomID: "room-1", State: booking.BlockingPending}),
		)
		store.Seed([]booking.Room{room}, nil, []booking.Blocking{blocking})
		return store, newBlockingService(store)
	}

	blockingID := func(store *testfixtures.Store) string {
		blockings, _ := store.ListBlockings(context.Background())
		return blockings[0].ID
	}

	t.Run("the room manager accepts", func(t *testing.T) {
		store, service := setup()
		id := blockingID(store)
		if err := service.AcceptBlockedRoom(ctx, owner, id, "room-1"); err != nil {
			t.Fatalf("AcceptBlockedRoom returned error: %v", err)
		}
		stored, _ := store.GetBlocking(ctx, id)
		if stored.BlockedRooms[0].State != booking.BlockingAccepted {
			t.Fatalf("entry = %s, want accepted", stored.BlockedRooms[0].State)
		}
	})

	t.Run("the room manager rejects with a reason", func(t *testing.T) {
		store, service := setup()
		id := blockingID(store)
		if err := service.RejectBlockedRoom(ctx, owner, id, "room-1", "room is needed"); err != nil {
			t.Fatalf("RejectBlockedRoom returned error: %v", err)
		}
		stored, _ := store.GetBlocking(ctx, id)
		entry := stored.BlockedRooms[0]
		if entry.State != booking.BlockingRejected || entry.RejectionReason != "room is needed" {
			t.Fatalf("entry = %s reason %q", entry.State, entry.RejectionReason)
		}
	})

	t.Run("non-managers cannot decide", func(t *testing.T) {
		store, service := setup()
		if err := service.AcceptBlockedRoom(ctx, booking.Principal{UserID: "carol"}, blockingID(store), "room-1"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("decided entries stay decided", func(t *testing.T) {
		store, service := setup()
		id := blockingID(store)
		if err := service.AcceptBlockedRoom(ctx, owner, id, "room-1"); err != nil {
			t.Fatalf("AcceptBlockedRoom returned error: %v", err)
		}
		err := service.RejectBlockedRoom(ctx, owner, id, "room-1", "late veto")
		var uErr *UserError
		if !errors.As(err, &uErr) {
			t.Fatalf("expected UserError, got %v", err)
		}
	})

	t.Run("unknown rooms are not found", func(t *testing.T) {
		store, service := setup()
		if err := service.AcceptBlockedRoom(ctx, owner, blockingID(store), "room-x"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestListBlockings(t *testing.T) {
	ctx := context.Background()
	store := testfixtures.NewStore()
	store.Seed(nil, nil, []booking.Blocking{testfixtures.NewBlockingFixture()})
	service := newBlockingService(store)

	if _, err := service.ListBlockings(ctx, booking.Principal{UserID: "alice"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	blockings, err := service.ListBlockings(ctx, booking.Principal{UserID: "root", IsAdmin: true})
	if err != nil {
		t.Fatalf("ListBlockings returned error: %v", err)
	}
	if len(blockings) != 1 {
		t.Fatalf("got %d blockings, want 1", len(blockings))
	}
}
