package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/roombook/internal/availability"
	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/conflict"
	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/recurrence"
	"github.com/example/roombook/internal/suggest"
)

// CalendarService serves the read APIs: room calendars, availability queries
// and booking suggestions.
type CalendarService struct {
	rooms    persistence.RoomRepository
	indexer  *availability.Indexer
	guard    Guard
	settings booking.Settings
	cache    *availabilityCache
	now      func() time.Time
}

// NewCalendarService wires dependencies for the read APIs.
func NewCalendarService(
	rooms persistence.RoomRepository,
	reservations persistence.ReservationRepository,
	blockings persistence.BlockingRepository,
	guard Guard,
	settings booking.Settings,
	cacheTTL time.Duration,
	now func() time.Time,
) *CalendarService {
	if guard == nil {
		guard = OwnerGuard{}
	}
	if now == nil {
		now = time.Now
	}
	return &CalendarService{
		rooms:    rooms,
		indexer:  availability.NewIndexer(reservations, blockings),
		guard:    guard,
		settings: settings,
		cache:    newAvailabilityCache(cacheTTL, 0, now),
		now:      now,
	}
}

// InvalidateCache drops cached availability responses. Called after any
// mutation that changes the availability picture.
func (s *CalendarService) InvalidateCache() {
	s.cache.Invalidate()
}

// AvailabilityParams describes an availability query.
type AvailabilityParams struct {
	Principal booking.Principal
	// RoomIDs restricts the query; empty means every live room.
	RoomIDs    []string
	Start      time.Time
	End        time.Time
	Recurrence recurrence.Rule
}

// RoomAvailability is one room's slice of an availability response.
type RoomAvailability struct {
	Room                  *booking.Room
	Occurrences           []availability.Existing
	Blockings             []availability.BlockingEntry
	OverridableBlockings  []availability.BlockingEntry
	NonBookablePeriods    []booking.Interval
	Conflicts             []conflict.OccurrenceConflict
	PreConflicts          []conflict.OccurrenceConflict
	Blocked               []conflict.BlockingConflict
	PeriodConflicts       []conflict.CandidateConflict
	HourConflicts         []conflict.CandidateConflict
	ConflictingCandidates []booking.Interval
}

// RoomsAvailability is the full response of an availability query.
type RoomsAvailability struct {
	Window     booking.Interval
	Candidates []booking.Interval
	Rooms      []RoomAvailability
}

// GetRoomsAvailability expands the requested slot into candidates and reports,
// per room, everything that would collide with them. This is the primary read
// API for calendar rendering.
func (s *CalendarService) GetRoomsAvailability(ctx context.Context, params AvailabilityParams) (RoomsAvailability, error) {
	if s == nil {
		return RoomsAvailability{}, fmt.Errorf("CalendarService is nil")
	}

	vErr := &ValidationError{}
	validateBookingWindow(params.Start, params.End, params.Recurrence, vErr)
	if vErr.HasErrors() {
		return RoomsAvailability{}, vErr
	}

	cacheKey := buildAvailabilityCacheKey(params)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	rooms, err := s.selectRooms(ctx, params.RoomIDs)
	if err != nil {
		return RoomsAvailability{}, err
	}

	slots, err := recurrence.Generate(params.Start, params.End, params.Recurrence)
	if err != nil {
		return RoomsAvailability{}, mapRecurrenceError(err)
	}
	candidates := make([]booking.Interval, len(slots))
	for i, slot := range slots {
		candidates[i] = booking.Interval{Start: slot.Start, End: slot.End}
	}

	window := booking.Interval{Start: params.Start, End: params.End}
	index, err := s.indexer.Build(ctx, rooms, window, params.Principal)
	if err != nil {
		return RoomsAvailability{}, err
	}

	response := RoomsAvailability{Window: window, Candidates: candidates}
	for _, room := range rooms {
		bag := index.Bag(room.ID)
		allowOverride := params.Principal.IsAdmin || s.guard.CanOverride(room, params.Principal)
		result := conflict.Resolve(candidates, bag, conflict.Options{AllowOverride: allowOverride})

		response.Rooms = append(response.Rooms, RoomAvailability{
			Room:                  room,
			Occurrences:           bag.Occurrences,
			Blockings:             bag.Blockings,
			OverridableBlockings:  bag.OverridableBlockings,
			NonBookablePeriods:    bag.NonBookablePeriods,
			Conflicts:             result.Confirmed,
			PreConflicts:          result.Pending,
			Blocked:               result.Blocked,
			PeriodConflicts:       result.Periods,
			HourConflicts:         result.Hours,
			ConflictingCandidates: result.ConflictingCandidates(),
		})
	}
	sort.Slice(response.Rooms, func(i, j int) bool {
		return response.Rooms[i].Room.ID < response.Rooms[j].Room.ID
	})

	s.cache.Store(cacheKey, response)
	return response, nil
}

// RoomCalendar groups a room's booking data for calendar display.
type RoomCalendar struct {
	Room *booking.Room
	// OccurrencesByDay maps a calendar-date key to the valid occurrences
	// starting on that date, pending and confirmed alike.
	OccurrencesByDay   map[string][]availability.Existing
	Blockings          []availability.BlockingEntry
	NonBookablePeriods []booking.Interval
}

// GetRoomCalendar returns per-room occurrence, blocking and exclusion data
// grouped by day over the requested range.
func (s *CalendarService) GetRoomCalendar(ctx context.Context, principal booking.Principal, roomIDs []string, start, end time.Time) ([]RoomCalendar, error) {
	if !start.Before(end) {
		vErr := &ValidationError{}
		vErr.add("time", "start must be before end")
		return nil, vErr
	}

	rooms, err := s.selectRooms(ctx, roomIDs)
	if err != nil {
		return nil, err
	}

	window := booking.Interval{Start: start, End: end}
	index, err := s.indexer.Build(ctx, rooms, window, principal)
	if err != nil {
		return nil, err
	}

	calendars := make([]RoomCalendar, 0, len(rooms))
	for _, room := range rooms {
		bag := index.Bag(room.ID)

		byDay := make(map[string][]availability.Existing)
		for _, occ := range bag.Occurrences {
			key := occ.DateKey()
			byDay[key] = append(byDay[key], occ)
		}

		blockings := make([]availability.BlockingEntry, 0, len(bag.Blockings)+len(bag.OverridableBlockings))
		blockings = append(blockings, bag.Blockings...)
		blockings = append(blockings, bag.OverridableBlockings...)

		calendars = append(calendars, RoomCalendar{
			Room:               room,
			OccurrencesByDay:   byDay,
			Blockings:          blockings,
			NonBookablePeriods: bag.NonBookablePeriods,
		})
	}
	sort.Slice(calendars, func(i, j int) bool { return calendars[i].Room.ID < calendars[j].Room.ID })
	return calendars, nil
}

// SuggestionParams describes a suggestion query for a slot that could not be
// booked as requested.
type SuggestionParams struct {
	Principal  booking.Principal
	RoomIDs    []string
	Start      time.Time
	End        time.Time
	Recurrence recurrence.Rule
	// Limit caps the number of returned suggestions; zero means five.
	Limit int
}

// GetSuggestions proposes ranked adjustments across candidate rooms, cheapest
// adjustment first.
func (s *CalendarService) GetSuggestions(ctx context.Context, params SuggestionParams) ([]suggest.RoomSuggestion, error) {
	vErr := &ValidationError{}
	validateBookingWindow(params.Start, params.End, params.Recurrence, vErr)
	if vErr.HasErrors() {
		return nil, vErr
	}

	rooms, err := s.selectRooms(ctx, params.RoomIDs)
	if err != nil {
		return nil, err
	}

	slots, err := recurrence.Generate(params.Start, params.End, params.Recurrence)
	if err != nil {
		return nil, mapRecurrenceError(err)
	}
	candidates := make([]booking.Interval, len(slots))
	for i, slot := range slots {
		candidates[i] = booking.Interval{Start: slot.Start, End: slot.End}
	}

	window := booking.Interval{Start: params.Start, End: params.End}
	index, err := s.indexer.Build(ctx, rooms, window, params.Principal)
	if err != nil {
		return nil, err
	}

	suggestions := make([]suggest.RoomSuggestion, 0)
	for _, room := range rooms {
		suggestion, ok := suggest.ForRoom(index.Bag(room.ID), candidates, params.Recurrence, s.settings)
		if !ok {
			continue
		}
		suggestions = append(suggestions, suggest.RoomSuggestion{Room: room, Suggestion: suggestion})
	}
	suggest.Rank(suggestions)

	limit := params.Limit
	if limit <= 0 {
		limit = 5
	}
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

func (s *CalendarService) selectRooms(ctx context.Context, roomIDs []string) ([]*booking.Room, error) {
	all, err := s.rooms.ListRooms(ctx, false)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if len(roomIDs) == 0 {
		rooms := make([]*booking.Room, len(all))
		for i := range all {
			rooms[i] = &all[i]
		}
		return rooms, nil
	}

	wanted := make(map[string]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		wanted[id] = struct{}{}
	}
	rooms := make([]*booking.Room, 0, len(roomIDs))
	for i := range all {
		if _, ok := wanted[all[i].ID]; ok {
			rooms = append(rooms, &all[i])
		}
	}
	if len(rooms) == 0 {
		return nil, ErrNotFound
	}
	return rooms, nil
}
