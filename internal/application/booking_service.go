package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/roombook/internal/availability"
	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/conflict"
	"github.com/example/roombook/internal/logging"
	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/recurrence"
)

// Cancellation reasons generated when candidates are skipped at creation time
// or displaced later. They end up on the occurrence record and in notifications.
const (
	reasonConflictConfirmed  = "skipped due to conflict with a confirmed reservation"
	reasonBlocked            = "skipped due to an administrative blocking"
	reasonNonBookablePeriod  = "skipped: the room is not bookable during this period"
	reasonOutsideHours       = "skipped: outside of the room's bookable hours"
	reasonCollisionConfirmed = "rejected due to collision with a confirmed reservation"
	reasonSplitSuperseded    = "cancelled due to modification of the booking"
)

// BookingService drives the reservation lifecycle: create, accept, reject,
// cancel, per-day operations, modify and split.
type BookingService struct {
	rooms        persistence.RoomRepository
	reservations persistence.ReservationRepository
	indexer      *availability.Indexer
	guard        Guard
	notifier     booking.Notifier
	settings     booking.Settings
	idGenerator  func() string
	now          func() time.Time
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(
	rooms persistence.RoomRepository,
	reservations persistence.ReservationRepository,
	blockings persistence.BlockingRepository,
	guard Guard,
	notifier booking.Notifier,
	settings booking.Settings,
	idGenerator func() string,
	now func() time.Time,
) *BookingService {
	if guard == nil {
		guard = OwnerGuard{}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		rooms:        rooms,
		reservations: reservations,
		indexer:      availability.NewIndexer(reservations, blockings),
		guard:        guard,
		notifier:     notifier,
		settings:     settings,
		idGenerator:  idGenerator,
		now:          now,
	}
}

// BookingInput captures caller provided reservation fields.
type BookingInput struct {
	RoomID        string
	Start         time.Time
	End           time.Time
	Recurrence    recurrence.Rule
	Reason        string
	BookedForID   string
	BookedForName string
}

// CreateBookingParams wraps the data required to create a reservation.
type CreateBookingParams struct {
	Principal booking.Principal
	Input     BookingInput
	// Prebook requests a pending pre-booking even when the principal could
	// book directly.
	Prebook bool
	// Strict aborts creation with a ConflictError when any candidate is
	// unusable, instead of silently skipping those days.
	Strict bool
	// IgnoreAdmin evaluates capabilities without the principal's admin flag.
	IgnoreAdmin bool
}

// CreateBooking validates the request, expands the recurrence into candidate
// occurrences, classifies them against room availability and persists the
// resulting reservation.
//
// Candidates colliding with a confirmed booking, a non-overridable blocking,
// a non-bookable period or unbookable hours are created already cancelled
// with a generated reason. A reservation that would end up with zero valid
// occurrences fails regardless of mode.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking.Reservation, error) {
	if s == nil {
		return booking.Reservation{}, fmt.Errorf("BookingService is nil")
	}

	principal := params.Principal
	if params.IgnoreAdmin {
		principal.IsAdmin = false
	}
	input := params.Input
	if input.BookedForID == "" {
		input.BookedForID = principal.UserID
	}

	room, err := s.loadRoom(ctx, input.RoomID)
	if err != nil {
		return booking.Reservation{}, err
	}

	vErr := &ValidationError{}
	validateBookingWindow(input.Start, input.End, input.Recurrence, vErr)
	if strings.TrimSpace(input.Reason) == "" {
		vErr.add("reason", "a booking reason is required")
	}
	if vErr.HasErrors() {
		return booking.Reservation{}, vErr
	}

	if room.BookingLimitDays > 0 {
		days := booking.DaysBetween(input.Start, input.End) + 1
		if days > room.BookingLimitDays {
			return booking.Reservation{}, userErrorf("booking spans %d days but the room only allows %d", days, room.BookingLimitDays)
		}
	}

	state := booking.ReservationAccepted
	if params.Prebook || (room.RequiresConfirmation && !s.guard.CanManage(&room, principal)) {
		state = booking.ReservationPending
	}
	if state == booking.ReservationPending {
		if !s.guard.CanPrebook(&room, principal) {
			return booking.Reservation{}, ErrUnauthorized
		}
	} else if !s.guard.CanBook(&room, principal) {
		return booking.Reservation{}, ErrUnauthorized
	}

	candidates, err := s.expandCandidates(input.Start, input.End, input.Recurrence)
	if err != nil {
		return booking.Reservation{}, err
	}

	result, err := s.resolveCandidates(ctx, &room, candidates, principal, nil)
	if err != nil {
		return booking.Reservation{}, err
	}

	if params.Strict && result.HasBlockingConflicts() {
		return booking.Reservation{}, &ConflictError{Conflicts: conflictDetails(result)}
	}

	createdAt := s.now()
	reservation := booking.Reservation{
		ID:            s.idGenerator(),
		RoomID:        room.ID,
		CreatedByID:   principal.UserID,
		BookedForID:   input.BookedForID,
		BookedForName: input.BookedForName,
		Reason:        strings.TrimSpace(input.Reason),
		Start:         input.Start,
		End:           input.End,
		Recurrence:    input.Recurrence,
		State:         state,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	reservation.Occurrences = buildOccurrences(reservation.ID, candidates, result, nil)

	if len(validOccurrences(reservation.Occurrences)) == 0 {
		return booking.Reservation{}, userErrorf("the reservation would have no valid occurrences")
	}

	if err := s.reservations.CreateReservation(ctx, reservation); err != nil {
		return booking.Reservation{}, mapRepoError(err)
	}
	s.appendLog(ctx, reservation.ID, principal.UserID, fmt.Sprintf("Reservation created (%s)", reservation.State))

	if reservation.State == booking.ReservationAccepted {
		if err := s.rejectCollidingPrebookings(ctx, &reservation, principal.UserID); err != nil {
			return booking.Reservation{}, err
		}
	}

	s.notify(ctx, booking.Notification{
		Kind:          booking.EventBookingCreated,
		ReservationID: reservation.ID,
		RoomID:        reservation.RoomID,
		Dates:         occurrenceDates(reservation.ValidOccurrences()),
	})

	return reservation, nil
}

// AcceptBooking confirms a pending pre-booking. Pre-booking occurrences of
// other reservations that now collide with the confirmed days are rejected:
// pending bookings never outrank a confirmed one.
func (s *BookingService) AcceptBooking(ctx context.Context, principal booking.Principal, reservationID string) error {
	reservation, room, err := s.loadReservationAndRoom(ctx, reservationID)
	if err != nil {
		return err
	}
	if !s.guard.CanManage(&room, principal) {
		return ErrUnauthorized
	}
	if reservation.State != booking.ReservationPending {
		return userErrorf("only pending reservations can be accepted; this one is %s", reservation.State)
	}

	reservation.State = booking.ReservationAccepted
	reservation.UpdatedAt = s.now()
	if err := s.reservations.UpdateReservation(ctx, reservation); err != nil {
		return mapRepoError(err)
	}
	s.appendLog(ctx, reservation.ID, principal.UserID, "Reservation accepted")

	if err := s.rejectCollidingPrebookings(ctx, &reservation, principal.UserID); err != nil {
		return err
	}

	s.notify(ctx, booking.Notification{
		Kind:          booking.EventBookingAccepted,
		ReservationID: reservation.ID,
		RoomID:        reservation.RoomID,
	})
	return nil
}

// RejectBooking refuses a reservation and cascades the rejection to all of
// its currently valid occurrences.
func (s *BookingService) RejectBooking(ctx context.Context, principal booking.Principal, reservationID, reason string) error {
	reservation, room, err := s.loadReservationAndRoom(ctx, reservationID)
	if err != nil {
		return err
	}
	if !s.guard.CanManage(&room, principal) {
		return ErrUnauthorized
	}
	if reservation.State.Terminal() {
		return userErrorf("reservation is already %s", reservation.State)
	}

	reservation.State = booking.ReservationRejected
	reservation.RejectionReason = reason
	reservation.UpdatedAt = s.now()
	if err := s.reservations.UpdateReservation(ctx, reservation); err != nil {
		return mapRepoError(err)
	}

	for _, occ := range reservation.Occurrences {
		if !occ.IsValid() {
			continue
		}
		occ.State = booking.OccurrenceRejected
		occ.Reason = reason
		if err := s.reservations.UpdateOccurrence(ctx, occ); err != nil {
			return mapRepoError(err)
		}
	}

	s.appendLog(ctx, reservation.ID, principal.UserID, fmt.Sprintf("Reservation rejected: %s", reason))
	s.notify(ctx, booking.Notification{
		Kind:          booking.EventBookingRejected,
		ReservationID: reservation.ID,
		RoomID:        reservation.RoomID,
		Reason:        reason,
	})
	return nil
}

// CancelBooking withdraws a reservation. Valid occurrences still inside the
// cancellation grace window are cancelled along with it; occurrences that
// already started outside the window are left untouched.
func (s *BookingService) CancelBooking(ctx context.Context, principal booking.Principal, reservationID string) error {
	reservation, room, err := s.loadReservationAndRoom(ctx, reservationID)
	if err != nil {
		return err
	}
	if !reservation.IsOwnedBy(principal) && !s.guard.CanManage(&room, principal) {
		return ErrUnauthorized
	}
	if reservation.State.Terminal() {
		return userErrorf("reservation is already %s", reservation.State)
	}
	now := s.now()
	if reservation.IsArchived(now) {
		return userErrorf("past reservations cannot be cancelled")
	}

	reservation.State = booking.ReservationCancelled
	reservation.UpdatedAt = now
	if err := s.reservations.UpdateReservation(ctx, reservation); err != nil {
		return mapRepoError(err)
	}

	cutoff := now.Add(-s.settings.GracePeriod)
	for _, occ := range reservation.Occurrences {
		if !occ.IsValid() || occ.Start.Before(cutoff) {
			continue
		}
		occ.State = booking.OccurrenceCancelled
		occ.Reason = "reservation cancelled"
		if err := s.reservations.UpdateOccurrence(ctx, occ); err != nil {
			return mapRepoError(err)
		}
	}

	s.appendLog(ctx, reservation.ID, principal.UserID, "Reservation cancelled")
	s.notify(ctx, booking.Notification{
		Kind:          booking.EventBookingCancelled,
		ReservationID: reservation.ID,
		RoomID:        reservation.RoomID,
	})
	return nil
}

// CancelOccurrence withdraws a single day of a reservation.
func (s *BookingService) CancelOccurrence(ctx context.Context, principal booking.Principal, reservationID, dateKey, reason string) error {
	reservation, room, err := s.loadReservationAndRoom(ctx, reservationID)
	if err != nil {
		return err
	}
	if !reservation.IsOwnedBy(principal) && !s.guard.CanManage(&room, principal) {
		return ErrUnauthorized
	}

	occ, err := s.occurrenceForUpdate(&reservation, dateKey)
	if err != nil {
		return err
	}
	if occ.Start.Before(s.now().Add(-s.settings.GracePeriod)) {
		return userErrorf("the occurrence on %s has already started", dateKey)
	}

	occ.State = booking.OccurrenceCancelled
	occ.Reason = reason
	if err := s.reservations.UpdateOccurrence(ctx, occ); err != nil {
		return mapRepoError(err)
	}
	s.appendLog(ctx, reservation.ID, principal.UserID, fmt.Sprintf("Occurrence on %s cancelled", dateKey))
	s.notify(ctx, booking.Notification{
		Kind:          booking.EventOccurrenceCancelled,
		ReservationID: reservation.ID,
		RoomID:        reservation.RoomID,
		Dates:         []string{dateKey},
		Reason:        reason,
	})
	return nil
}

// RejectOccurrence refuses a single day of a reservation. Requires moderation
// capability on the room.
func (s *BookingService) RejectOccurrence(ctx context.Context, principal booking.Principal, reservationID, dateKey, reason string) error {
	reservation, room, err := s.loadReservationAndRoom(ctx, reservationID)
	if err != nil {
		return err
	}
	if !s.guard.CanManage(&room, principal) {
		return ErrUnauthorized
	}

	occ, err := s.occurrenceForUpdate(&reservation, dateKey)
	if err != nil {
		return err
	}

	occ.State = booking.OccurrenceRejected
	occ.Reason = reason
	if err := s.reservations.UpdateOccurrence(ctx, occ); err != nil {
		return mapRepoError(err)
	}
	s.appendLog(ctx, reservation.ID, principal.UserID, fmt.Sprintf("Occurrence on %s rejected: %s", dateKey, reason))
	s.notify(ctx, booking.Notification{
		Kind:          booking.EventOccurrenceRejected,
		ReservationID: reservation.ID,
		RoomID:        reservation.RoomID,
		Dates:         []string{dateKey},
		Reason:        reason,
	})
	return nil
}

// SetOccurrenceLink attaches the external object reference of one occurrence.
// An occurrence carries at most one link; setting a new one replaces it.
func (s *BookingService) SetOccurrenceLink(ctx context.Context, principal booking.Principal, reservationID, dateKey string, link *booking.OccurrenceLink) error {
	reservation, room, err := s.loadReservationAndRoom(ctx, reservationID)
	if err != nil {
		return err
	}
	if !reservation.IsOwnedBy(principal) && !s.guard.CanManage(&room, principal) {
		return ErrUnauthorized
	}

	occ, ok := reservation.OccurrenceByDate(dateKey)
	if !ok {
		return ErrNotFound
	}
	occ.Link = link
	if err := s.reservations.UpdateOccurrence(ctx, occ); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// GetBooking loads a reservation with its occurrences.
func (s *BookingService) GetBooking(ctx context.Context, reservationID string) (booking.Reservation, error) {
	reservation, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return booking.Reservation{}, mapRepoError(err)
	}
	return reservation, nil
}

// GetBookingLog returns the audit trail of a reservation.
func (s *BookingService) GetBookingLog(ctx context.Context, reservationID string) ([]booking.LogEntry, error) {
	entries, err := s.reservations.ListLog(ctx, reservationID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return entries, nil
}

// ModifyInput carries the fields of a modify request. Nil pointers leave the
// current value untouched.
type ModifyInput struct {
	Start         *time.Time
	End           *time.Time
	Recurrence    *recurrence.Rule
	Reason        *string
	BookedForID   *string
	BookedForName *string
}

// ModifyBookingParams wraps the data required to modify a reservation.
type ModifyBookingParams struct {
	Principal     booking.Principal
	ReservationID string
	Input         ModifyInput
}

// ModifyBooking applies changes to a reservation and reports whether anything
// changed.
//
// Changes to time or recurrence fields regenerate the full occurrence set,
// preserving terminal occurrence states keyed by calendar date unless the
// freshly computed occurrence for that date is invalid for a new reason.
// Modifying the time-of-day or pattern of an ongoing recurring reservation
// splits it instead: past occurrences stay on the original reservation and a
// new one carries the changed pattern forward.
func (s *BookingService) ModifyBooking(ctx context.Context, params ModifyBookingParams) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("BookingService is nil")
	}
	principal := params.Principal

	reservation, room, err := s.loadReservationAndRoom(ctx, params.ReservationID)
	if err != nil {
		return false, err
	}
	if !reservation.IsOwnedBy(principal) && !s.guard.CanManage(&room, principal) {
		return false, ErrUnauthorized
	}
	if reservation.State.Terminal() {
		return false, userErrorf("%s reservations cannot be modified", reservation.State)
	}
	now := s.now()
	if reservation.IsArchived(now) {
		return false, userErrorf("past reservations cannot be modified")
	}

	updated := reservation
	input := params.Input
	changes := make([]string, 0, 4)

	if input.Reason != nil && strings.TrimSpace(*input.Reason) != reservation.Reason {
		updated.Reason = strings.TrimSpace(*input.Reason)
		changes = append(changes, fmt.Sprintf("reason: %q -> %q", reservation.Reason, updated.Reason))
	}
	if input.BookedForID != nil && *input.BookedForID != reservation.BookedForID {
		updated.BookedForID = *input.BookedForID
		changes = append(changes, fmt.Sprintf("booked for: %q -> %q", reservation.BookedForID, updated.BookedForID))
	}
	if input.BookedForName != nil && *input.BookedForName != reservation.BookedForName {
		updated.BookedForName = *input.BookedForName
	}
	if input.Start != nil && !input.Start.Equal(reservation.Start) {
		updated.Start = *input.Start
		changes = append(changes, fmt.Sprintf("start: %s -> %s", reservation.Start.Format(time.RFC3339), updated.Start.Format(time.RFC3339)))
	}
	if input.End != nil && !input.End.Equal(reservation.End) {
		updated.End = *input.End
		changes = append(changes, fmt.Sprintf("end: %s -> %s", reservation.End.Format(time.RFC3339), updated.End.Format(time.RFC3339)))
	}
	if input.Recurrence != nil && !input.Recurrence.Equal(reservation.Recurrence) {
		if crossesWeekMonthBoundary(reservation.Recurrence, *input.Recurrence) {
			return false, userErrorf("cannot change the repetition frequency across the week/month boundary")
		}
		updated.Recurrence = *input.Recurrence
		changes = append(changes, fmt.Sprintf("repetition: %s -> %s", reservation.Recurrence.Frequency, updated.Recurrence.Frequency))
	}

	if len(changes) == 0 && updated.BookedForName == reservation.BookedForName {
		return false, nil
	}

	vErr := &ValidationError{}
	validateBookingWindow(updated.Start, updated.End, updated.Recurrence, vErr)
	if vErr.HasErrors() {
		return false, vErr
	}

	occurrenceFieldsChanged := !updated.Start.Equal(reservation.Start) ||
		!updated.End.Equal(reservation.End) ||
		!updated.Recurrence.Equal(reservation.Recurrence)

	if occurrenceFieldsChanged {
		patternChanged := !updated.Recurrence.Equal(reservation.Recurrence) ||
			timeOfDayChanged(reservation.Start, updated.Start) ||
			timeOfDayChanged(reservation.End, updated.End)

		if reservation.IsRepeating() && reservation.IsOngoing(now) && patternChanged {
			if err := s.split(ctx, principal, &reservation, &room, updated); err != nil {
				return false, err
			}
			return true, nil
		}

		if err := s.regenerateOccurrences(ctx, principal, &room, &updated); err != nil {
			return false, err
		}
	}

	updated.UpdatedAt = now
	if err := s.reservations.UpdateReservation(ctx, updated); err != nil {
		return false, mapRepoError(err)
	}
	if len(changes) > 0 {
		s.appendLog(ctx, updated.ID, principal.UserID, "Reservation modified: "+strings.Join(changes, "; "))
	}
	s.notify(ctx, booking.Notification{
		Kind:          booking.EventBookingModified,
		ReservationID: updated.ID,
		RoomID:        updated.RoomID,
	})
	return true, nil
}

// split cancels the future occurrences of an ongoing reservation and creates
// a replacement carrying the changed pattern from the next occurrence date,
// inheriting terminal state for dates that were already excluded. The two
// reservations cross-reference each other in their audit logs.
func (s *BookingService) split(ctx context.Context, principal booking.Principal, original *booking.Reservation, room *booking.Room, updated booking.Reservation) error {
	now := s.now()
	terminal := terminalByDate(original.Occurrences)

	for _, occ := range original.Occurrences {
		if !occ.IsValid() || occ.Start.Before(now) {
			continue
		}
		occ.State = booking.OccurrenceCancelled
		occ.Reason = reasonSplitSuperseded
		if err := s.reservations.UpdateOccurrence(ctx, occ); err != nil {
			return mapRepoError(err)
		}
	}

	slots, err := recurrence.Generate(updated.Start, updated.End, updated.Recurrence)
	if err != nil {
		return mapRecurrenceError(err)
	}
	candidates := make([]booking.Interval, 0, len(slots))
	for _, slot := range slots {
		if slot.Start.Before(now) {
			continue
		}
		candidates = append(candidates, booking.Interval{Start: slot.Start, End: slot.End})
	}
	if len(candidates) == 0 {
		return userErrorf("the modified pattern yields no future occurrences")
	}

	skip := map[string]struct{}{original.ID: {}}
	result, err := s.resolveCandidates(ctx, room, candidates, principal, skip)
	if err != nil {
		return err
	}

	replacement := booking.Reservation{
		ID:            s.idGenerator(),
		RoomID:        original.RoomID,
		CreatedByID:   original.CreatedByID,
		BookedForID:   updated.BookedForID,
		BookedForName: updated.BookedForName,
		Reason:        updated.Reason,
		Start:         candidates[0].Start,
		End:           updated.End,
		Recurrence:    updated.Recurrence,
		State:         original.State,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	replacement.Occurrences = buildOccurrences(replacement.ID, candidates, result, terminal)

	if len(validOccurrences(replacement.Occurrences)) == 0 {
		return userErrorf("the modified pattern would have no valid occurrences")
	}

	if err := s.reservations.CreateReservation(ctx, replacement); err != nil {
		return mapRepoError(err)
	}

	original.UpdatedAt = now
	if err := s.reservations.UpdateReservation(ctx, *original); err != nil {
		return mapRepoError(err)
	}

	s.appendLog(ctx, original.ID, principal.UserID, fmt.Sprintf("Reservation split: future occurrences continue as reservation %s", replacement.ID))
	s.appendLog(ctx, replacement.ID, principal.UserID, fmt.Sprintf("Reservation created by splitting reservation %s", original.ID))

	if replacement.State == booking.ReservationAccepted {
		if err := s.rejectCollidingPrebookings(ctx, &replacement, principal.UserID); err != nil {
			return err
		}
	}

	s.notify(ctx, booking.Notification{
		Kind:          booking.EventBookingSplit,
		ReservationID: replacement.ID,
		RoomID:        replacement.RoomID,
		Reason:        original.ID,
	})
	return nil
}

// regenerateOccurrences rebuilds the full occurrence set of a reservation
// after its time or recurrence fields changed. Terminal states are restored
// by calendar date unless the fresh occurrence conflicts for a new reason.
func (s *BookingService) regenerateOccurrences(ctx context.Context, principal booking.Principal, room *booking.Room, reservation *booking.Reservation) error {
	terminal := terminalByDate(reservation.Occurrences)

	candidates, err := s.expandCandidates(reservation.Start, reservation.End, reservation.Recurrence)
	if err != nil {
		return err
	}

	skip := map[string]struct{}{reservation.ID: {}}
	result, err := s.resolveCandidates(ctx, room, candidates, principal, skip)
	if err != nil {
		return err
	}

	occurrences := buildOccurrences(reservation.ID, candidates, result, terminal)
	if len(validOccurrences(occurrences)) == 0 {
		return userErrorf("the modified reservation would have no valid occurrences")
	}

	if err := s.reservations.ReplaceOccurrences(ctx, reservation.ID, occurrences); err != nil {
		return mapRepoError(err)
	}
	reservation.Occurrences = occurrences

	if reservation.State == booking.ReservationAccepted {
		return s.rejectCollidingPrebookings(ctx, reservation, principal.UserID)
	}
	return nil
}

// rejectCollidingPrebookings rejects pending occurrences of other reservations
// that overlap the valid occurrences of a confirmed reservation.
func (s *BookingService) rejectCollidingPrebookings(ctx context.Context, reservation *booking.Reservation, actorID string) error {
	valid := reservation.ValidOccurrences()
	if len(valid) == 0 {
		return nil
	}

	window := booking.Interval{Start: reservation.Start, End: reservation.End}
	existing, err := s.reservations.ValidOccurrencesInRange(ctx, []string{reservation.RoomID}, window)
	if err != nil {
		return mapRepoError(err)
	}

	for _, other := range existing {
		if other.ReservationID == reservation.ID || other.ReservationState == booking.ReservationAccepted {
			continue
		}
		collides := false
		for _, occ := range valid {
			if occ.Interval().Overlaps(other.Interval()) {
				collides = true
				break
			}
		}
		if !collides {
			continue
		}

		rejected := other.Occurrence
		rejected.State = booking.OccurrenceRejected
		rejected.Reason = reasonCollisionConfirmed
		if err := s.reservations.UpdateOccurrence(ctx, rejected); err != nil {
			return mapRepoError(err)
		}
		s.appendLog(ctx, other.ReservationID, actorID, fmt.Sprintf("Occurrence on %s rejected: %s", other.DateKey(), reasonCollisionConfirmed))
		s.notify(ctx, booking.Notification{
			Kind:          booking.EventOccurrenceRejected,
			ReservationID: other.ReservationID,
			RoomID:        reservation.RoomID,
			Dates:         []string{other.DateKey()},
			Reason:        reasonCollisionConfirmed,
		})
	}
	return nil
}

// --- helpers ---

func (s *BookingService) loadRoom(ctx context.Context, roomID string) (booking.Room, error) {
	if roomID == "" {
		vErr := &ValidationError{}
		vErr.add("room_id", "a room is required")
		return booking.Room{}, vErr
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return booking.Room{}, mapRepoError(err)
	}
	if room.Deleted {
		return booking.Room{}, userErrorf("the room is no longer available for booking")
	}
	return room, nil
}

func (s *BookingService) loadReservationAndRoom(ctx context.Context, reservationID string) (booking.Reservation, booking.Room, error) {
	reservation, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return booking.Reservation{}, booking.Room{}, mapRepoError(err)
	}
	room, err := s.rooms.GetRoom(ctx, reservation.RoomID)
	if err != nil {
		return booking.Reservation{}, booking.Room{}, mapRepoError(err)
	}
	return reservation, room, nil
}

func (s *BookingService) expandCandidates(start, end time.Time, rule recurrence.Rule) ([]booking.Interval, error) {
	slots, err := recurrence.Generate(start, end, rule)
	if err != nil {
		return nil, mapRecurrenceError(err)
	}
	if len(slots) == 0 {
		vErr := &ValidationError{}
		vErr.add("recurrence", "the requested repetition matches no date in range")
		return nil, vErr
	}
	candidates := make([]booking.Interval, len(slots))
	for i, slot := range slots {
		candidates[i] = booking.Interval{Start: slot.Start, End: slot.End}
	}
	return candidates, nil
}

func (s *BookingService) resolveCandidates(ctx context.Context, room *booking.Room, candidates []booking.Interval, principal booking.Principal, skip map[string]struct{}) (*conflict.Result, error) {
	window := booking.Interval{Start: candidates[0].Start, End: candidates[len(candidates)-1].End}
	index, err := s.indexer.Build(ctx, []*booking.Room{room}, window, principal)
	if err != nil {
		return nil, err
	}
	return conflict.Resolve(candidates, index.Bag(room.ID), conflict.Options{
		SkipReservationIDs: skip,
		AllowOverride:      principal.IsAdmin || s.guard.CanOverride(room, principal),
	}), nil
}

func (s *BookingService) occurrenceForUpdate(reservation *booking.Reservation, dateKey string) (booking.Occurrence, error) {
	occ, ok := reservation.OccurrenceByDate(dateKey)
	if !ok {
		return booking.Occurrence{}, ErrNotFound
	}
	if occ.State.Terminal() {
		return booking.Occurrence{}, userErrorf("the occurrence on %s is already %s", dateKey, occ.State)
	}
	if len(reservation.ValidOccurrences()) <= 1 {
		return booking.Occurrence{}, userErrorf("a reservation must keep at least one valid occurrence; cancel or reject the whole reservation instead")
	}
	return occ, nil
}

func (s *BookingService) appendLog(ctx context.Context, reservationID, authorID, message string) {
	entry := booking.LogEntry{
		ReservationID: reservationID,
		At:            s.now(),
		AuthorID:      authorID,
		Message:       message,
	}
	if err := s.reservations.AppendLog(ctx, entry); err != nil {
		if logger := logging.FromContext(ctx); logger != nil {
			logger.WarnContext(ctx, "failed to append reservation log", "reservation_id", reservationID, "error", err)
		}
	}
}

func (s *BookingService) notify(ctx context.Context, notification booking.Notification) {
	if s.notifier == nil || !s.settings.NotificationsEnabled {
		return
	}
	if err := s.notifier.Notify(ctx, notification); err != nil {
		if logger := logging.FromContext(ctx); logger != nil {
			logger.WarnContext(ctx, "notification delivery failed",
				"kind", string(notification.Kind),
				"reservation_id", notification.ReservationID,
				"error", err)
		}
	}
}

// buildOccurrences materializes the occurrence records for a candidate set.
// Unusable candidates are created already cancelled with a generated reason;
// restored carries terminal states from a previous occurrence set keyed by
// date, applied only where the fresh candidate is otherwise valid (new
// conflicts win over restored state).
func buildOccurrences(reservationID string, candidates []booking.Interval, result *conflict.Result, restored map[string]booking.Occurrence) []booking.Occurrence {
	occurrences := make([]booking.Occurrence, 0, len(candidates))
	for _, candidate := range candidates {
		occ := booking.Occurrence{
			ReservationID: reservationID,
			Start:         candidate.Start,
			End:           candidate.End,
			State:         booking.OccurrenceValid,
		}

		switch result.Classify(candidate) {
		case conflict.ClassConfirmed:
			occ.State = booking.OccurrenceCancelled
			occ.Reason = reasonConflictConfirmed
		case conflict.ClassBlocked:
			occ.State = booking.OccurrenceCancelled
			occ.Reason = reasonBlocked
		case conflict.ClassPeriod:
			occ.State = booking.OccurrenceCancelled
			occ.Reason = reasonNonBookablePeriod
		case conflict.ClassHours:
			occ.State = booking.OccurrenceCancelled
			occ.Reason = reasonOutsideHours
		default:
			if previous, ok := restored[occ.DateKey()]; ok {
				occ.State = previous.State
				occ.Reason = previous.Reason
				occ.Link = previous.Link
			}
		}
		occurrences = append(occurrences, occ)
	}
	return occurrences
}

func terminalByDate(occurrences []booking.Occurrence) map[string]booking.Occurrence {
	terminal := make(map[string]booking.Occurrence)
	for _, occ := range occurrences {
		if occ.State.Terminal() {
			terminal[occ.DateKey()] = occ
		}
	}
	return terminal
}

func validOccurrences(occurrences []booking.Occurrence) []booking.Occurrence {
	valid := make([]booking.Occurrence, 0, len(occurrences))
	for _, occ := range occurrences {
		if occ.IsValid() {
			valid = append(valid, occ)
		}
	}
	return valid
}

func occurrenceDates(occurrences []booking.Occurrence) []string {
	dates := make([]string, 0, len(occurrences))
	for _, occ := range occurrences {
		dates = append(dates, occ.DateKey())
	}
	return dates
}

func validateBookingWindow(start, end time.Time, rule recurrence.Rule, vErr *ValidationError) {
	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if start.IsZero() || end.IsZero() {
		return
	}
	if !start.Before(end) {
		vErr.add("time", "start must be before end")
	}
	if rule.Frequency == recurrence.FrequencyNever && !booking.SameDate(start, end) {
		vErr.add("recurrence", "a single booking must start and end on the same date")
	}
	if rule.Frequency != recurrence.FrequencyNever && !booking.SameDate(start, end) {
		startOfDayTime := minutesIntoDay(start)
		endOfDayTime := minutesIntoDay(end)
		if endOfDayTime <= startOfDayTime {
			vErr.add("time", "the daily time window must have a positive duration")
		}
	}
}

func minutesIntoDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func timeOfDayChanged(before, after time.Time) bool {
	return before.Hour() != after.Hour() || before.Minute() != after.Minute()
}

// crossesWeekMonthBoundary reports whether a recurrence change switches
// between week-based and month-based repetition, which cannot be mapped onto
// the existing occurrence series.
func crossesWeekMonthBoundary(before, after recurrence.Rule) bool {
	weekly := func(f recurrence.Frequency) bool { return f == recurrence.FrequencyWeekly }
	monthly := func(f recurrence.Frequency) bool { return f == recurrence.FrequencyMonthly }
	return (weekly(before.Frequency) && monthly(after.Frequency)) ||
		(monthly(before.Frequency) && weekly(after.Frequency))
}

func conflictDetails(result *conflict.Result) []ConflictDetail {
	details := make([]ConflictDetail, 0)
	for _, c := range result.Confirmed {
		details = append(details, ConflictDetail{
			Date:              c.Candidate.DateKey(),
			Start:             c.Overlap.Start,
			End:               c.Overlap.End,
			Kind:              "confirmed",
			WithReservationID: c.With.ReservationID,
		})
	}
	for _, c := range result.Blocked {
		details = append(details, ConflictDetail{
			Date:           c.Candidate.DateKey(),
			Start:          c.Overlap.Start,
			End:            c.Overlap.End,
			Kind:           "blocked",
			BlockingReason: c.Blocking.Reason,
		})
	}
	for _, c := range result.Periods {
		details = append(details, ConflictDetail{
			Date:  c.Candidate.DateKey(),
			Start: c.Overlap.Start,
			End:   c.Overlap.End,
			Kind:  "period",
		})
	}
	for _, c := range result.Hours {
		details = append(details, ConflictDetail{
			Date:  c.Candidate.DateKey(),
			Start: c.Overlap.Start,
			End:   c.Overlap.End,
			Kind:  "hours",
		})
	}
	return details
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isNotFound(err):
		return ErrNotFound
	case isDuplicate(err):
		return userErrorf("the record already exists")
	}
	return err
}

func mapRecurrenceError(err error) error {
	if err == nil {
		return nil
	}
	vErr := &ValidationError{}
	switch {
	case isRecurrenceRange(err):
		vErr.add("time", "start must be before end")
	default:
		vErr.add("recurrence", "unsupported repetition")
	}
	return vErr
}
