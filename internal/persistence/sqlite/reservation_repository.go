package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/roombook/internal/availability"
	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/recurrence"
)

// ReservationRepository implements persistence.ReservationRepository using
// SQLite. Occurrences live in their own table keyed by reservation id and
// calendar date.
type ReservationRepository struct {
	pool *ConnectionPool
}

// NewReservationRepository creates a new SQLite reservation repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

// CreateReservation persists the reservation and its full occurrence set in
// one transaction.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation booking.Reservation) error {
	if reservation.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO reservations (id, room_id, created_by_id, booked_for_id, booked_for_name, reason,
				start_at, end_at, frequency, recur_interval, weekdays, state, rejection_reason, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.Exec(query,
			reservation.ID,
			reservation.RoomID,
			reservation.CreatedByID,
			reservation.BookedForID,
			reservation.BookedForName,
			reservation.Reason,
			reservation.Start.UTC().Format(time.RFC3339),
			reservation.End.UTC().Format(time.RFC3339),
			reservation.Recurrence.Frequency.String(),
			reservation.Recurrence.Interval,
			encodeWeekdays(reservation.Recurrence.Weekdays),
			string(reservation.State),
			reservation.RejectionReason,
			reservation.CreatedAt.UTC().Format(time.RFC3339),
			reservation.UpdatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return mapError(err)
		}
		return insertOccurrencesTx(tx, reservation.ID, reservation.Occurrences)
	})
}

// GetReservation retrieves a reservation with all its occurrences.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (booking.Reservation, error) {
	if id == "" {
		return booking.Reservation{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, room_id, created_by_id, booked_for_id, booked_for_name, reason,
			start_at, end_at, frequency, recur_interval, weekdays, state, rejection_reason, created_at, updated_at
		FROM reservations
		WHERE id = ?
	`
	reservation, err := scanReservation(r.pool.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return booking.Reservation{}, err
	}

	occQuery := `
		SELECT reservation_id, date, start_at, end_at, state, reason, link_kind, link_object_id
		FROM occurrences
		WHERE reservation_id = ?
		ORDER BY date ASC
	`
	rows, err := r.pool.db.QueryContext(ctx, occQuery, id)
	if err != nil {
		return booking.Reservation{}, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return booking.Reservation{}, err
		}
		reservation.Occurrences = append(reservation.Occurrences, occ)
	}
	if err := rows.Err(); err != nil {
		return booking.Reservation{}, mapError(err)
	}
	return reservation, nil
}

// UpdateReservation persists reservation fields. Occurrences are managed
// through ReplaceOccurrences and UpdateOccurrence.
func (r *ReservationRepository) UpdateReservation(ctx context.Context, reservation booking.Reservation) error {
	if reservation.ID == "" {
		return persistence.ErrNotFound
	}

	query := `
		UPDATE reservations
		SET room_id = ?, booked_for_id = ?, booked_for_name = ?, reason = ?, start_at = ?, end_at = ?,
			frequency = ?, recur_interval = ?, weekdays = ?, state = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.pool.db.ExecContext(ctx, query,
		reservation.RoomID,
		reservation.BookedForID,
		reservation.BookedForName,
		reservation.Reason,
		reservation.Start.UTC().Format(time.RFC3339),
		reservation.End.UTC().Format(time.RFC3339),
		reservation.Recurrence.Frequency.String(),
		reservation.Recurrence.Interval,
		encodeWeekdays(reservation.Recurrence.Weekdays),
		string(reservation.State),
		reservation.RejectionReason,
		reservation.UpdatedAt.UTC().Format(time.RFC3339),
		reservation.ID,
	)
	if err != nil {
		return mapError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ReplaceOccurrences deletes the reservation's occurrences and writes the
// provided set in one transaction.
func (r *ReservationRepository) ReplaceOccurrences(ctx context.Context, reservationID string, occurrences []booking.Occurrence) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM occurrences WHERE reservation_id = ?`, reservationID); err != nil {
			return mapError(err)
		}
		return insertOccurrencesTx(tx, reservationID, occurrences)
	})
}

// UpdateOccurrence persists state, reason and link of the occurrence
// identified by reservation id and calendar date.
func (r *ReservationRepository) UpdateOccurrence(ctx context.Context, occurrence booking.Occurrence) error {
	linkKind, linkObjectID := encodeLink(occurrence.Link)
	query := `
		UPDATE occurrences
		SET state = ?, reason = ?, link_kind = ?, link_object_id = ?
		WHERE reservation_id = ? AND date = ?
	`
	result, err := r.pool.db.ExecContext(ctx, query,
		string(occurrence.State),
		occurrence.Reason,
		linkKind,
		linkObjectID,
		occurrence.ReservationID,
		occurrence.DateKey(),
	)
	if err != nil {
		return mapError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ValidOccurrencesInRange returns the live occurrences on the given rooms
// overlapping the window, projected with room and reservation state. Cancelled
// and rejected reservations are excluded wholesale.
func (r *ReservationRepository) ValidOccurrencesInRange(ctx context.Context, roomIDs []string, window booking.Interval) ([]availability.Existing, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(roomIDs)+2)
	for _, id := range roomIDs {
		args = append(args, id)
	}
	args = append(args,
		window.End.UTC().Format(time.RFC3339),
		window.Start.UTC().Format(time.RFC3339),
	)

	query := `
		SELECT o.reservation_id, o.date, o.start_at, o.end_at, o.state, o.reason, o.link_kind, o.link_object_id,
			res.room_id, res.state, res.booked_for_name
		FROM occurrences o
		JOIN reservations res ON res.id = o.reservation_id
		WHERE res.room_id IN (` + placeholders(len(roomIDs)) + `)
			AND o.state = 'valid'
			AND res.state IN ('pending', 'accepted')
			AND o.start_at < ?
			AND o.end_at > ?
		ORDER BY o.start_at ASC
	`
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var existing []availability.Existing
	for rows.Next() {
		var item availability.Existing
		var startStr, endStr, occState, linkKind, linkObjectID, resState string
		err := rows.Scan(
			&item.ReservationID,
			&item.Date,
			&startStr,
			&endStr,
			&occState,
			&item.Reason,
			&linkKind,
			&linkObjectID,
			&item.RoomID,
			&resState,
			&item.BookedForName,
		)
		if err != nil {
			return nil, mapError(err)
		}
		if item.Start, err = time.Parse(time.RFC3339, startStr); err != nil {
			return nil, fmt.Errorf("failed to parse start_at: %w", err)
		}
		if item.End, err = time.Parse(time.RFC3339, endStr); err != nil {
			return nil, fmt.Errorf("failed to parse end_at: %w", err)
		}
		item.State = booking.OccurrenceState(occState)
		item.ReservationState = booking.ReservationState(resState)
		item.Link = decodeLink(linkKind, linkObjectID)
		existing = append(existing, item)
	}
	return existing, rows.Err()
}

// AppendLog appends one audit record for a reservation.
func (r *ReservationRepository) AppendLog(ctx context.Context, entry booking.LogEntry) error {
	query := `
		INSERT INTO reservation_log (reservation_id, at, author_id, message)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.pool.db.ExecContext(ctx, query,
		entry.ReservationID,
		entry.At.UTC().Format(time.RFC3339),
		entry.AuthorID,
		entry.Message,
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// ListLog returns the reservation's audit records oldest first.
func (r *ReservationRepository) ListLog(ctx context.Context, reservationID string) ([]booking.LogEntry, error) {
	query := `
		SELECT reservation_id, at, author_id, message
		FROM reservation_log
		WHERE reservation_id = ?
		ORDER BY id ASC
	`
	rows, err := r.pool.db.QueryContext(ctx, query, reservationID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []booking.LogEntry
	for rows.Next() {
		var entry booking.LogEntry
		var atStr string
		if err := rows.Scan(&entry.ReservationID, &atStr, &entry.AuthorID, &entry.Message); err != nil {
			return nil, mapError(err)
		}
		if entry.At, err = time.Parse(time.RFC3339, atStr); err != nil {
			return nil, fmt.Errorf("failed to parse at: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func insertOccurrencesTx(tx *sql.Tx, reservationID string, occurrences []booking.Occurrence) error {
	query := `
		INSERT INTO occurrences (reservation_id, date, start_at, end_at, state, reason, link_kind, link_object_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, occ := range occurrences {
		linkKind, linkObjectID := encodeLink(occ.Link)
		_, err := tx.Exec(query,
			reservationID,
			occ.DateKey(),
			occ.Start.UTC().Format(time.RFC3339),
			occ.End.UTC().Format(time.RFC3339),
			string(occ.State),
			occ.Reason,
			linkKind,
			linkObjectID,
		)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

func scanReservation(row rowScanner) (booking.Reservation, error) {
	var reservation booking.Reservation
	var startStr, endStr, frequencyStr, weekdaysStr, stateStr, createdAtStr, updatedAtStr string

	err := row.Scan(
		&reservation.ID,
		&reservation.RoomID,
		&reservation.CreatedByID,
		&reservation.BookedForID,
		&reservation.BookedForName,
		&reservation.Reason,
		&startStr,
		&endStr,
		&frequencyStr,
		&reservation.Recurrence.Interval,
		&weekdaysStr,
		&stateStr,
		&reservation.RejectionReason,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return booking.Reservation{}, persistence.ErrNotFound
		}
		return booking.Reservation{}, mapError(err)
	}

	reservation.State = booking.ReservationState(stateStr)
	if reservation.Recurrence.Frequency, err = recurrence.ParseFrequency(frequencyStr); err != nil {
		return booking.Reservation{}, fmt.Errorf("failed to parse frequency: %w", err)
	}
	if reservation.Recurrence.Weekdays, err = decodeWeekdays(weekdaysStr); err != nil {
		return booking.Reservation{}, err
	}
	if reservation.Start, err = time.Parse(time.RFC3339, startStr); err != nil {
		return booking.Reservation{}, fmt.Errorf("failed to parse start_at: %w", err)
	}
	if reservation.End, err = time.Parse(time.RFC3339, endStr); err != nil {
		return booking.Reservation{}, fmt.Errorf("failed to parse end_at: %w", err)
	}
	if reservation.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return booking.Reservation{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if reservation.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return booking.Reservation{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return reservation, nil
}

func scanOccurrence(row rowScanner) (booking.Occurrence, error) {
	var occ booking.Occurrence
	var startStr, endStr, stateStr, linkKind, linkObjectID string

	err := row.Scan(
		&occ.ReservationID,
		&occ.Date,
		&startStr,
		&endStr,
		&stateStr,
		&occ.Reason,
		&linkKind,
		&linkObjectID,
	)
	if err != nil {
		return booking.Occurrence{}, mapError(err)
	}

	occ.State = booking.OccurrenceState(stateStr)
	occ.Link = decodeLink(linkKind, linkObjectID)
	if occ.Start, err = time.Parse(time.RFC3339, startStr); err != nil {
		return booking.Occurrence{}, fmt.Errorf("failed to parse start_at: %w", err)
	}
	if occ.End, err = time.Parse(time.RFC3339, endStr); err != nil {
		return booking.Occurrence{}, fmt.Errorf("failed to parse end_at: %w", err)
	}
	return occ, nil
}

func encodeWeekdays(days []time.Weekday) string {
	tokens := make([]string, len(days))
	for i, day := range days {
		tokens[i] = recurrence.WeekdayToken(day)
	}
	return strings.Join(tokens, ",")
}

func decodeWeekdays(encoded string) ([]time.Weekday, error) {
	if encoded == "" {
		return nil, nil
	}
	tokens := strings.Split(encoded, ",")
	days := make([]time.Weekday, 0, len(tokens))
	for _, token := range tokens {
		day, err := recurrence.ParseWeekday(token)
		if err != nil {
			return nil, fmt.Errorf("failed to parse weekday %q: %w", token, err)
		}
		days = append(days, day)
	}
	return days, nil
}

func encodeLink(link *booking.OccurrenceLink) (kind, objectID string) {
	if link == nil {
		return "", ""
	}
	return string(link.Kind), link.ObjectID
}

func decodeLink(kind, objectID string) *booking.OccurrenceLink {
	if kind == "" && objectID == "" {
		return nil
	}
	return &booking.OccurrenceLink{Kind: booking.LinkKind(kind), ObjectID: objectID}
}
