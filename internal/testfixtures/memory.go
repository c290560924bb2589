package testfixtures

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/roombook/internal/availability"
	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/persistence"
)

// Store is an in-memory implementation of the persistence repositories,
// used by application level tests.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]booking.Room
	reservations map[string]booking.Reservation
	blockings    map[string]booking.Blocking
	logs         map[string][]booking.LogEntry
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		rooms:        make(map[string]booking.Room),
		reservations: make(map[string]booking.Reservation),
		blockings:    make(map[string]booking.Blocking),
		logs:         make(map[string][]booking.LogEntry),
	}
}

// Seed stores the given fixtures, replacing existing records with the same id.
func (s *Store) Seed(rooms []booking.Room, reservations []booking.Reservation, blockings []booking.Blocking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range rooms {
		s.rooms[room.ID] = cloneRoom(room)
	}
	for _, reservation := range reservations {
		s.reservations[reservation.ID] = cloneReservation(reservation)
	}
	for _, blocking := range blockings {
		s.blockings[blocking.ID] = cloneBlocking(blocking)
	}
}

// --- RoomRepository ---

func (s *Store) CreateRoom(ctx context.Context, room booking.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (s *Store) UpdateRoom(ctx context.Context, room booking.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rooms[room.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	room.BookableHours = existing.BookableHours
	room.NonBookablePeriods = existing.NonBookablePeriods
	room.Deleted = existing.Deleted
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (booking.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return booking.Room{}, persistence.ErrNotFound
	}
	return cloneRoom(room), nil
}

func (s *Store) ListRooms(ctx context.Context, includeDeleted bool) ([]booking.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]booking.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if room.Deleted && !includeDeleted {
			continue
		}
		rooms = append(rooms, cloneRoom(room))
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

func (s *Store) SoftDeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return persistence.ErrNotFound
	}
	room.Deleted = true
	s.rooms[id] = room
	return nil
}

func (s *Store) SetBookableHours(ctx context.Context, roomID string, hours []booking.BookableHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return persistence.ErrNotFound
	}
	room.BookableHours = append([]booking.BookableHours(nil), hours...)
	s.rooms[roomID] = room
	return nil
}

func (s *Store) SetNonBookablePeriods(ctx context.Context, roomID string, periods []booking.NonBookablePeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return persistence.ErrNotFound
	}
	room.NonBookablePeriods = append([]booking.NonBookablePeriod(nil), periods...)
	s.rooms[roomID] = room
	return nil
}

// --- ReservationRepository ---

func (s *Store) CreateReservation(ctx context.Context, reservation booking.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[reservation.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (booking.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reservation, ok := s.reservations[id]
	if !ok {
		return booking.Reservation{}, persistence.ErrNotFound
	}
	return cloneReservation(reservation), nil
}

func (s *Store) UpdateReservation(ctx context.Context, reservation booking.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.reservations[reservation.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	reservation.Occurrences = existing.Occurrences
	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

func (s *Store) ReplaceOccurrences(ctx context.Context, reservationID string, occurrences []booking.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reservation, ok := s.reservations[reservationID]
	if !ok {
		return persistence.ErrNotFound
	}
	reservation.Occurrences = append([]booking.Occurrence(nil), occurrences...)
	s.reservations[reservationID] = reservation
	return nil
}

func (s *Store) UpdateOccurrence(ctx context.Context, occurrence booking.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reservation, ok := s.reservations[occurrence.ReservationID]
	if !ok {
		return persistence.ErrNotFound
	}
	for i := range reservation.Occurrences {
		if reservation.Occurrences[i].DateKey() == occurrence.DateKey() {
			reservation.Occurrences[i].State = occurrence.State
			reservation.Occurrences[i].Reason = occurrence.Reason
			reservation.Occurrences[i].Link = occurrence.Link
			s.reservations[occurrence.ReservationID] = reservation
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (s *Store) ValidOccurrencesInRange(ctx context.Context, roomIDs []string, window booking.Interval) ([]availability.Existing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		wanted[id] = struct{}{}
	}

	var existing []availability.Existing
	for _, reservation := range s.reservations {
		if reservation.State.Terminal() {
			continue
		}
		if _, ok := wanted[reservation.RoomID]; !ok {
			continue
		}
		for _, occ := range reservation.Occurrences {
			if !occ.IsValid() || !occ.Interval().Overlaps(window) {
				continue
			}
			existing = append(existing, availability.Existing{
				Occurrence:       occ,
				RoomID:           reservation.RoomID,
				ReservationState: reservation.State,
				BookedForName:    reservation.BookedForName,
			})
		}
	}
	sort.Slice(existing, func(i, j int) bool { return existing[i].Start.Before(existing[j].Start) })
	return existing, nil
}

func (s *Store) AppendLog(ctx context.Context, entry booking.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[entry.ReservationID] = append(s.logs[entry.ReservationID], entry)
	return nil
}

func (s *Store) ListLog(ctx context.Context, reservationID string) ([]booking.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]booking.LogEntry(nil), s.logs[reservationID]...), nil
}

// --- BlockingRepository ---

func (s *Store) CreateBlocking(ctx context.Context, blocking booking.Blocking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blockings[blocking.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.blockings[blocking.ID] = cloneBlocking(blocking)
	return nil
}

func (s *Store) GetBlocking(ctx context.Context, id string) (booking.Blocking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blocking, ok := s.blockings[id]
	if !ok {
		return booking.Blocking{}, persistence.ErrNotFound
	}
	return cloneBlocking(blocking), nil
}

func (s *Store) UpdateBlockedRoom(ctx context.Context, entry booking.BlockedRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	blocking, ok := s.blockings[entry.BlockingID]
	if !ok {
		return persistence.ErrNotFound
	}
	for i := range blocking.BlockedRooms {
		if blocking.BlockedRooms[i].RoomID == entry.RoomID {
			blocking.BlockedRooms[i].State = entry.State
			blocking.BlockedRooms[i].RejectionReason = entry.RejectionReason
			s.blockings[entry.BlockingID] = blocking
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (s *Store) ApprovedBlockingsForRooms(ctx context.Context, roomIDs []string, start, end time.Time) ([]booking.Blocking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		wanted[id] = struct{}{}
	}

	var result []booking.Blocking
	for _, blocking := range s.blockings {
		if !blocking.IntersectsDates(start, end) {
			continue
		}
		for _, entry := range blocking.BlockedRooms {
			if entry.State != booking.BlockingAccepted {
				continue
			}
			if _, ok := wanted[entry.RoomID]; ok {
				result = append(result, cloneBlocking(blocking))
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) ListBlockings(ctx context.Context) ([]booking.Blocking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]booking.Blocking, 0, len(s.blockings))
	for _, blocking := range s.blockings {
		result = append(result, cloneBlocking(blocking))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func cloneRoom(room booking.Room) booking.Room {
	room.ManagerIDs = append([]string(nil), room.ManagerIDs...)
	room.BookableHours = append([]booking.BookableHours(nil), room.BookableHours...)
	room.NonBookablePeriods = append([]booking.NonBookablePeriod(nil), room.NonBookablePeriods...)
	return room
}

func cloneReservation(reservation booking.Reservation) booking.Reservation {
	occurrences := make([]booking.Occurrence, len(reservation.Occurrences))
	copy(occurrences, reservation.Occurrences)
	for i := range occurrences {
		if occurrences[i].Link != nil {
			link := *occurrences[i].Link
			occurrences[i].Link = &link
		}
	}
	reservation.Occurrences = occurrences
	reservation.Recurrence.Weekdays = append([]time.Weekday(nil), reservation.Recurrence.Weekdays...)
	return reservation
}

func cloneBlocking(blocking booking.Blocking) booking.Blocking {
	blocking.AllowedIDs = append([]string(nil), blocking.AllowedIDs...)
	blocking.BlockedRooms = append([]booking.BlockedRoom(nil), blocking.BlockedRooms...)
	return blocking
}
