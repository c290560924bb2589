package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/persistence"
)

const minutesPerDay = 24 * 60

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name                 string
	Location             string
	OwnerID              string
	ManagerIDs           []string
	RequiresConfirmation bool
	BookingLimitDays     int
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal booking.Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal booking.Principal
	RoomID    string
	Input     RoomInput
}

// RoomService manages the room catalog and per-room booking restrictions.
type RoomService struct {
	rooms       persistence.RoomRepository
	guard       Guard
	idGenerator func() string
	now         func() time.Time
}

// NewRoomService wires dependencies for room administration.
func NewRoomService(rooms persistence.RoomRepository, guard Guard, idGenerator func() string, now func() time.Time) *RoomService {
	if guard == nil {
		guard = OwnerGuard{}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, guard: guard, idGenerator: idGenerator, now: now}
}

// CreateRoom adds a room to the catalog. Administrators only.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (booking.Room, error) {
	if s == nil {
		return booking.Room{}, fmt.Errorf("RoomService is nil")
	}
	if !params.Principal.IsAdmin {
		return booking.Room{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	validateRoomInput(params.Input, vErr)
	if vErr.HasErrors() {
		return booking.Room{}, vErr
	}

	createdAt := s.now()
	room := booking.Room{
		ID:                   s.idGenerator(),
		Name:                 strings.TrimSpace(params.Input.Name),
		Location:             strings.TrimSpace(params.Input.Location),
		OwnerID:              params.Input.OwnerID,
		ManagerIDs:           uniqueStrings(params.Input.ManagerIDs),
		RequiresConfirmation: params.Input.RequiresConfirmation,
		BookingLimitDays:     params.Input.BookingLimitDays,
		CreatedAt:            createdAt,
		UpdatedAt:            createdAt,
	}

	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return booking.Room{}, mapRepoError(err)
	}
	return room, nil
}

// UpdateRoom edits catalog attributes of a room. Administrators only.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (booking.Room, error) {
	if s == nil {
		return booking.Room{}, fmt.Errorf("RoomService is nil")
	}
	if !params.Principal.IsAdmin {
		return booking.Room{}, ErrUnauthorized
	}

	room, err := s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		return booking.Room{}, mapRepoError(err)
	}

	vErr := &ValidationError{}
	validateRoomInput(params.Input, vErr)
	if vErr.HasErrors() {
		return booking.Room{}, vErr
	}

	room.Name = strings.TrimSpace(params.Input.Name)
	room.Location = strings.TrimSpace(params.Input.Location)
	room.OwnerID = params.Input.OwnerID
	room.ManagerIDs = uniqueStrings(params.Input.ManagerIDs)
	room.RequiresConfirmation = params.Input.RequiresConfirmation
	room.BookingLimitDays = params.Input.BookingLimitDays
	room.UpdatedAt = s.now()

	if err := s.rooms.UpdateRoom(ctx, room); err != nil {
		return booking.Room{}, mapRepoError(err)
	}
	return room, nil
}

// DeleteRoom soft-deletes a room: the record stays behind every reservation
// that references it, it just leaves the bookable catalog.
func (s *RoomService) DeleteRoom(ctx context.Context, principal booking.Principal, roomID string) error {
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if err := s.rooms.SoftDeleteRoom(ctx, roomID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// GetRoom fetches one room with its restrictions.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (booking.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return booking.Room{}, mapRepoError(err)
	}
	return room, nil
}

// ListRooms enumerates the catalog. Deleted rooms are visible to admins only.
func (s *RoomService) ListRooms(ctx context.Context, principal booking.Principal, includeDeleted bool) ([]booking.Room, error) {
	if includeDeleted && !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	rooms, err := s.rooms.ListRooms(ctx, includeDeleted)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return rooms, nil
}

// SetBookableHours replaces the per-weekday bookable windows of a room.
// Ranges on the same weekday must not overlap; the availability index relies
// on that to invert them into unbookable gaps.
func (s *RoomService) SetBookableHours(ctx context.Context, principal booking.Principal, roomID string, hours []booking.BookableHours) error {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return mapRepoError(err)
	}
	if !s.guard.CanManage(&room, principal) {
		return ErrUnauthorized
	}

	vErr := &ValidationError{}
	validateBookableHours(hours, vErr)
	if vErr.HasErrors() {
		return vErr
	}

	for i := range hours {
		hours[i].RoomID = roomID
	}
	if err := s.rooms.SetBookableHours(ctx, roomID, hours); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// SetNonBookablePeriods replaces the full-day exclusion ranges of a room.
func (s *RoomService) SetNonBookablePeriods(ctx context.Context, principal booking.Principal, roomID string, periods []booking.NonBookablePeriod) error {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return mapRepoError(err)
	}
	if !s.guard.CanManage(&room, principal) {
		return ErrUnauthorized
	}

	vErr := &ValidationError{}
	for i := range periods {
		periods[i].RoomID = roomID
		periods[i].StartDate = booking.StartOfDay(periods[i].StartDate)
		periods[i].EndDate = booking.StartOfDay(periods[i].EndDate)
		if periods[i].EndDate.Before(periods[i].StartDate) {
			vErr.add("periods", "a non-bookable period must not end before it starts")
		}
	}
	if vErr.HasErrors() {
		return vErr
	}

	if err := s.rooms.SetNonBookablePeriods(ctx, roomID, periods); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func validateRoomInput(input RoomInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if strings.TrimSpace(input.Location) == "" {
		vErr.add("location", "location is required")
	}
	if input.BookingLimitDays < 0 {
		vErr.add("booking_limit_days", "the booking limit must not be negative")
	}
}

func validateBookableHours(hours []booking.BookableHours, vErr *ValidationError) {
	byDay := make(map[time.Weekday][]booking.HourRange)
	for _, bh := range hours {
		r := bh.Hours
		if r.StartMinute < 0 || r.EndMinute > minutesPerDay || r.EndMinute <= r.StartMinute {
			vErr.add("hours", "each bookable range needs 0 <= start < end <= 1440 minutes")
			return
		}
		byDay[bh.Weekday] = append(byDay[bh.Weekday], r)
	}
	for day, ranges := range byDay {
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].StartMinute < ranges[j].StartMinute })
		for i := 1; i < len(ranges); i++ {
			if ranges[i].StartMinute < ranges[i-1].EndMinute {
				vErr.add("hours", fmt.Sprintf("bookable ranges overlap on %s", day))
				return
			}
		}
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
