package booking

import (
	"time"

	"github.com/example/roombook/internal/recurrence"
)

// Principal represents the authenticated user invoking an operation.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// HourRange is a time-of-day window expressed in minutes from midnight.
type HourRange struct {
	StartMinute int
	EndMinute   int
}

// Contains reports whether the window fully contains the other range.
func (h HourRange) Contains(other HourRange) bool {
	return h.StartMinute <= other.StartMinute && other.EndMinute <= h.EndMinute
}

// BookableHours restricts bookings on a room to a time-of-day window on one
// weekday. A room with no rows at all is unrestricted; once any row exists,
// weekdays without rows are not bookable.
type BookableHours struct {
	RoomID  string
	Weekday time.Weekday
	Hours   HourRange
}

// NonBookablePeriod excludes a full-day date range from booking on a room.
// StartDate and EndDate are midnight instants; the range is inclusive.
type NonBookablePeriod struct {
	RoomID    string
	StartDate time.Time
	EndDate   time.Time
}

// IntersectsDates reports whether the period touches any date in [start, end].
func (p NonBookablePeriod) IntersectsDates(start, end time.Time) bool {
	return !StartOfDay(end).Before(p.StartDate) && !p.EndDate.Before(StartOfDay(start))
}

// Room is a bookable physical resource. Rooms are soft deleted: historical
// reservations keep referencing them after removal from the catalog.
type Room struct {
	ID                   string
	Name                 string
	Location             string
	OwnerID              string
	ManagerIDs           []string
	RequiresConfirmation bool
	// BookingLimitDays caps the length of a reservation series in days.
	// Zero means unlimited.
	BookingLimitDays   int
	BookableHours      []BookableHours
	NonBookablePeriods []NonBookablePeriod
	Deleted            bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsOwnedBy reports whether the principal owns or manages the room.
func (r *Room) IsOwnedBy(p Principal) bool {
	if r.OwnerID != "" && r.OwnerID == p.UserID {
		return true
	}
	for _, id := range r.ManagerIDs {
		if id == p.UserID {
			return true
		}
	}
	return false
}

// ReservationState is the lifecycle state of a reservation.
type ReservationState string

const (
	// ReservationPending is a pre-booking awaiting moderation.
	ReservationPending ReservationState = "pending"
	// ReservationAccepted is a confirmed booking.
	ReservationAccepted ReservationState = "accepted"
	// ReservationCancelled is terminal; set by the owner.
	ReservationCancelled ReservationState = "cancelled"
	// ReservationRejected is terminal; set by a moderator.
	ReservationRejected ReservationState = "rejected"
)

// Terminal reports whether the state permits no further transitions.
func (s ReservationState) Terminal() bool {
	return s == ReservationCancelled || s == ReservationRejected
}

// OccurrenceState is the per-day state of one occurrence.
type OccurrenceState string

const (
	// OccurrenceValid is a live occurrence.
	OccurrenceValid OccurrenceState = "valid"
	// OccurrenceCancelled is terminal; the day was withdrawn by the owner or
	// skipped at creation time.
	OccurrenceCancelled OccurrenceState = "cancelled"
	// OccurrenceRejected is terminal; the day was refused by a moderator or
	// displaced by a confirmed booking.
	OccurrenceRejected OccurrenceState = "rejected"
)

// Terminal reports whether the occurrence state is final.
func (s OccurrenceState) Terminal() bool {
	return s == OccurrenceCancelled || s == OccurrenceRejected
}

// LinkKind identifies the kind of external object an occurrence points at.
type LinkKind string

const (
	// LinkEvent ties an occurrence to an event.
	LinkEvent LinkKind = "event"
	// LinkContribution ties an occurrence to a contribution.
	LinkContribution LinkKind = "contribution"
	// LinkSessionBlock ties an occurrence to a session block.
	LinkSessionBlock LinkKind = "session_block"
)

// OccurrenceLink references at most one external object per occurrence.
type OccurrenceLink struct {
	Kind     LinkKind
	ObjectID string
}

// Occurrence is one concrete calendar-dated instance of a reservation.
// State moves monotonically toward a terminal value; only a wholesale
// regeneration during modify replaces the set, restoring terminal states
// keyed by date.
type Occurrence struct {
	ReservationID string
	// Date is the calendar-date key assigned when the occurrence was
	// generated. It travels with the occurrence through storage so per-day
	// operations keep addressing the same row even when Start is reloaded
	// in another zone.
	Date   string
	Start  time.Time
	End    time.Time
	State  OccurrenceState
	Reason string
	Link   *OccurrenceLink
}

// Interval returns the occurrence time window.
func (o Occurrence) Interval() Interval {
	return Interval{Start: o.Start, End: o.End}
}

// DateKey returns the calendar-date key of the occurrence, falling back to
// the start's calendar date when no key was assigned yet.
func (o Occurrence) DateKey() string {
	if o.Date != "" {
		return o.Date
	}
	return o.Start.Format(DateLayout)
}

// IsValid reports whether the occurrence is live.
func (o Occurrence) IsValid() bool {
	return o.State == OccurrenceValid
}

// Reservation is one logical booking of a room, owning one occurrence per
// concrete date its recurrence yields.
type Reservation struct {
	ID              string
	RoomID          string
	CreatedByID     string
	BookedForID     string
	BookedForName   string
	Reason          string
	Start           time.Time
	End             time.Time
	Recurrence      recurrence.Rule
	State           ReservationState
	RejectionReason string
	Occurrences     []Occurrence
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsRepeating reports whether the reservation spans more than one date.
func (r *Reservation) IsRepeating() bool {
	return r.Recurrence.Frequency != recurrence.FrequencyNever
}

// IsArchived reports whether the reservation lies entirely in the past.
func (r *Reservation) IsArchived(now time.Time) bool {
	return r.End.Before(now)
}

// IsOngoing reports whether now falls strictly between the series start and
// end dates, i.e. part of the series already happened and part is yet to come.
func (r *Reservation) IsOngoing(now time.Time) bool {
	return StartOfDay(r.Start).Before(StartOfDay(now)) && StartOfDay(now).Before(StartOfDay(r.End))
}

// ValidOccurrences returns the live occurrences of the reservation.
func (r *Reservation) ValidOccurrences() []Occurrence {
	valid := make([]Occurrence, 0, len(r.Occurrences))
	for _, occ := range r.Occurrences {
		if occ.IsValid() {
			valid = append(valid, occ)
		}
	}
	return valid
}

// OccurrenceByDate returns the occurrence on the given date key, if any.
func (r *Reservation) OccurrenceByDate(dateKey string) (Occurrence, bool) {
	for _, occ := range r.Occurrences {
		if occ.DateKey() == dateKey {
			return occ, true
		}
	}
	return Occurrence{}, false
}

// IsOwnedBy reports whether the principal created the reservation or is the
// person it was booked for.
func (r *Reservation) IsOwnedBy(p Principal) bool {
	return p.UserID != "" && (r.CreatedByID == p.UserID || r.BookedForID == p.UserID)
}

// BlockingState is the per-room approval state of a blocking.
type BlockingState string

const (
	// BlockingPending awaits approval by the room manager.
	BlockingPending BlockingState = "pending"
	// BlockingAccepted is in force.
	BlockingAccepted BlockingState = "accepted"
	// BlockingRejected was refused and has no effect.
	BlockingRejected BlockingState = "rejected"
)

// BlockedRoom is one room entry of a blocking with its own approval state.
type BlockedRoom struct {
	BlockingID      string
	RoomID          string
	State           BlockingState
	RejectionReason string
}

// Blocking is an administrative hold preventing bookings on a set of rooms
// over an inclusive date range.
type Blocking struct {
	ID          string
	CreatedByID string
	Reason      string
	StartDate   time.Time
	EndDate     time.Time
	// AllowedIDs lists principals permitted to book through the blocking.
	AllowedIDs   []string
	BlockedRooms []BlockedRoom
	CreatedAt    time.Time
}

// IntersectsDates reports whether the blocking touches any date in [start, end].
func (b *Blocking) IntersectsDates(start, end time.Time) bool {
	return !StartOfDay(end).Before(b.StartDate) && !b.EndDate.Before(StartOfDay(start))
}

// CanOverride reports whether the principal may book through the blocking.
// The blocking creator and allow-listed principals always may; unless
// explicitOnly is set, admins and owners of the affected room may as well.
func (b *Blocking) CanOverride(p Principal, room *Room, explicitOnly bool) bool {
	if p.UserID == "" {
		return false
	}
	if b.CreatedByID == p.UserID {
		return true
	}
	for _, id := range b.AllowedIDs {
		if id == p.UserID {
			return true
		}
	}
	if explicitOnly {
		return false
	}
	if p.IsAdmin {
		return true
	}
	return room != nil && room.IsOwnedBy(p)
}

// LogEntry is one audit record attached to a reservation.
type LogEntry struct {
	ReservationID string
	At            time.Time
	AuthorID      string
	Message       string
}

// Settings carries the booking policy knobs threaded explicitly through every
// operation instead of being read from ambient global state.
type Settings struct {
	// GracePeriod is how long after an occurrence start a cancellation may
	// still withdraw it.
	GracePeriod time.Duration
	// SuggestionWindow bounds the start-time shift explored when proposing
	// alternatives for a failed slot.
	SuggestionWindow time.Duration
	// SuggestionStep is the granularity of explored start-time shifts.
	SuggestionStep time.Duration
	// MaxShortenRatio caps how much of the requested duration a suggestion
	// may shave off.
	MaxShortenRatio float64
	// NotificationsEnabled toggles lifecycle event publication.
	NotificationsEnabled bool
}

// DefaultSettings returns the stock policy values.
func DefaultSettings() Settings {
	return Settings{
		GracePeriod:          30 * time.Minute,
		SuggestionWindow:     20 * time.Minute,
		SuggestionStep:       5 * time.Minute,
		MaxShortenRatio:      0.25,
		NotificationsEnabled: true,
	}
}
