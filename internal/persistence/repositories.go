package persistence

import (
	"context"
	"time"

	"github.com/example/roombook/internal/availability"
	"github.com/example/roombook/internal/booking"
)

// RoomRepository stores the room catalog together with each room's bookable
// hours and non-bookable periods.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room booking.Room) error
	UpdateRoom(ctx context.Context, room booking.Room) error
	GetRoom(ctx context.Context, id string) (booking.Room, error)
	ListRooms(ctx context.Context, includeDeleted bool) ([]booking.Room, error)
	// SoftDeleteRoom flips the deleted flag; the row is never removed while
	// reservations reference it.
	SoftDeleteRoom(ctx context.Context, id string) error
	SetBookableHours(ctx context.Context, roomID string, hours []booking.BookableHours) error
	SetNonBookablePeriods(ctx context.Context, roomID string, periods []booking.NonBookablePeriod) error
}

// ReservationRepository stores reservations, their occurrences and audit log.
type ReservationRepository interface {
	// CreateReservation persists the reservation and its full occurrence set
	// in one transaction.
	CreateReservation(ctx context.Context, reservation booking.Reservation) error
	GetReservation(ctx context.Context, id string) (booking.Reservation, error)
	// UpdateReservation persists reservation fields; occurrences are managed
	// through ReplaceOccurrences and UpdateOccurrence.
	UpdateReservation(ctx context.Context, reservation booking.Reservation) error
	// ReplaceOccurrences deletes the reservation's occurrences and writes the
	// provided set in one transaction.
	ReplaceOccurrences(ctx context.Context, reservationID string, occurrences []booking.Occurrence) error
	// UpdateOccurrence persists state, reason and link of the occurrence
	// identified by reservation id and calendar date.
	UpdateOccurrence(ctx context.Context, occurrence booking.Occurrence) error
	// ValidOccurrencesInRange returns the live occurrences on the given rooms
	// overlapping the window, projected with room and reservation state.
	ValidOccurrencesInRange(ctx context.Context, roomIDs []string, window booking.Interval) ([]availability.Existing, error)
	AppendLog(ctx context.Context, entry booking.LogEntry) error
	ListLog(ctx context.Context, reservationID string) ([]booking.LogEntry, error)
}

// BlockingRepository stores blockings with their per-room entries and
// allow-lists.
type BlockingRepository interface {
	CreateBlocking(ctx context.Context, blocking booking.Blocking) error
	GetBlocking(ctx context.Context, id string) (booking.Blocking, error)
	// UpdateBlockedRoom persists the approval state of one room entry.
	UpdateBlockedRoom(ctx context.Context, entry booking.BlockedRoom) error
	// ApprovedBlockingsForRooms returns blockings holding an accepted entry
	// for at least one of the rooms and intersecting [start, end].
	ApprovedBlockingsForRooms(ctx context.Context, roomIDs []string, start, end time.Time) ([]booking.Blocking, error)
	ListBlockings(ctx context.Context) ([]booking.Blocking, error)
}
