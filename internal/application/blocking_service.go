package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/persistence"
)

// BlockingInput captures caller provided blocking fields.
type BlockingInput struct {
	Reason     string
	StartDate  time.Time
	EndDate    time.Time
	RoomIDs    []string
	AllowedIDs []string
}

// CreateBlockingParams wraps the data required to create a blocking.
type CreateBlockingParams struct {
	Principal booking.Principal
	Input     BlockingInput
}

// BlockingService manages administrative holds over sets of rooms.
type BlockingService struct {
	blockings   persistence.BlockingRepository
	rooms       persistence.RoomRepository
	guard       Guard
	idGenerator func() string
	now         func() time.Time
}

// NewBlockingService wires dependencies for blocking administration.
func NewBlockingService(blockings persistence.BlockingRepository, rooms persistence.RoomRepository, guard Guard, idGenerator func() string, now func() time.Time) *BlockingService {
	if guard == nil {
		guard = OwnerGuard{}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BlockingService{
		blockings:   blockings,
		rooms:       rooms,
		guard:       guard,
		idGenerator: idGenerator,
		now:         now,
	}
}

// CreateBlocking records a hold over the given rooms and date range. Room
// entries the creator manages are accepted immediately; the rest start
// pending and wait for the room manager.
func (s *BlockingService) CreateBlocking(ctx context.Context, params CreateBlockingParams) (booking.Blocking, error) {
	if s == nil {
		return booking.Blocking{}, fmt.Errorf("BlockingService is nil")
	}
	if params.Principal.UserID == "" {
		return booking.Blocking{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(params.Input.Reason) == "" {
		vErr.add("reason", "reason is required")
	}
	start := booking.StartOfDay(params.Input.StartDate)
	end := booking.StartOfDay(params.Input.EndDate)
	if end.Before(start) {
		vErr.add("dates", "the blocking must not end before it starts")
	}
	if len(params.Input.RoomIDs) == 0 {
		vErr.add("rooms", "at least one room is required")
	}
	if vErr.HasErrors() {
		return booking.Blocking{}, vErr
	}

	blocking := booking.Blocking{
		ID:          s.idGenerator(),
		CreatedByID: params.Principal.UserID,
		Reason:      strings.TrimSpace(params.Input.Reason),
		StartDate:   start,
		EndDate:     end,
		AllowedIDs:  uniqueStrings(params.Input.AllowedIDs),
		CreatedAt:   s.now(),
	}

	seen := make(map[string]struct{}, len(params.Input.RoomIDs))
	for _, roomID := range params.Input.RoomIDs {
		if _, ok := seen[roomID]; ok {
			continue
		}
		seen[roomID] = struct{}{}

		room, err := s.rooms.GetRoom(ctx, roomID)
		if err != nil {
			return booking.Blocking{}, mapRepoError(err)
		}
		state := booking.BlockingPending
		if s.guard.CanManage(&room, params.Principal) {
			state = booking.BlockingAccepted
		}
		blocking.BlockedRooms = append(blocking.BlockedRooms, booking.BlockedRoom{
			BlockingID: blocking.ID,
			RoomID:     roomID,
			State:      state,
		})
	}

	if err := s.blockings.CreateBlocking(ctx, blocking); err != nil {
		return booking.Blocking{}, mapRepoError(err)
	}
	return blocking, nil
}

// AcceptBlockedRoom approves the blocking's hold on one room.
func (s *BlockingService) AcceptBlockedRoom(ctx context.Context, principal booking.Principal, blockingID, roomID string) error {
	entry, err := s.blockedRoomForDecision(ctx, principal, blockingID, roomID)
	if err != nil {
		return err
	}

	entry.State = booking.BlockingAccepted
	entry.RejectionReason = ""
	if err := s.blockings.UpdateBlockedRoom(ctx, entry); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// RejectBlockedRoom refuses the blocking's hold on one room.
func (s *BlockingService) RejectBlockedRoom(ctx context.Context, principal booking.Principal, blockingID, roomID, reason string) error {
	entry, err := s.blockedRoomForDecision(ctx, principal, blockingID, roomID)
	if err != nil {
		return err
	}

	entry.State = booking.BlockingRejected
	entry.RejectionReason = strings.TrimSpace(reason)
	if err := s.blockings.UpdateBlockedRoom(ctx, entry); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// GetBlocking fetches a blocking with its per-room entries.
func (s *BlockingService) GetBlocking(ctx context.Context, id string) (booking.Blocking, error) {
	blocking, err := s.blockings.GetBlocking(ctx, id)
	if err != nil {
		return booking.Blocking{}, mapRepoError(err)
	}
	return blocking, nil
}

// ListBlockings enumerates all blockings. Administrators only.
func (s *BlockingService) ListBlockings(ctx context.Context, principal booking.Principal) ([]booking.Blocking, error) {
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	blockings, err := s.blockings.ListBlockings(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return blockings, nil
}

// blockedRoomForDecision loads and authorizes one pending room entry.
func (s *BlockingService) blockedRoomForDecision(ctx context.Context, principal booking.Principal, blockingID, roomID string) (booking.BlockedRoom, error) {
	blocking, err := s.blockings.GetBlocking(ctx, blockingID)
	if err != nil {
		return booking.BlockedRoom{}, mapRepoError(err)
	}

	var entry *booking.BlockedRoom
	for i := range blocking.BlockedRooms {
		if blocking.BlockedRooms[i].RoomID == roomID {
			entry = &blocking.BlockedRooms[i]
			break
		}
	}
	if entry == nil {
		return booking.BlockedRoom{}, ErrNotFound
	}

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return booking.BlockedRoom{}, mapRepoError(err)
	}
	if !s.guard.CanManage(&room, principal) {
		return booking.BlockedRoom{}, ErrUnauthorized
	}
	if entry.State != booking.BlockingPending {
		return booking.BlockedRoom{}, userErrorf("the blocking for this room was already decided")
	}
	return *entry, nil
}
