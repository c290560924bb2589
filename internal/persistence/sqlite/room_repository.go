package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite.
type RoomRepository struct {
	pool *ConnectionPool
}

// NewRoomRepository creates a new SQLite room repository.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

// CreateRoom inserts a room with its manager list.
func (r *RoomRepository) CreateRoom(ctx context.Context, room booking.Room) error {
	if room.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO rooms (id, name, location, owner_id, requires_confirmation, booking_limit_days, deleted, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.Exec(query,
			room.ID,
			room.Name,
			room.Location,
			room.OwnerID,
			boolToInt(room.RequiresConfirmation),
			room.BookingLimitDays,
			boolToInt(room.Deleted),
			room.CreatedAt.UTC().Format(time.RFC3339),
			room.UpdatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return mapError(err)
		}
		return r.replaceManagersTx(tx, room.ID, room.ManagerIDs)
	})
}

// UpdateRoom updates catalog fields and the manager list of a room.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room booking.Room) error {
	if room.ID == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE rooms
			SET name = ?, location = ?, owner_id = ?, requires_confirmation = ?, booking_limit_days = ?, updated_at = ?
			WHERE id = ?
		`
		result, err := tx.Exec(query,
			room.Name,
			room.Location,
			room.OwnerID,
			boolToInt(room.RequiresConfirmation),
			room.BookingLimitDays,
			room.UpdatedAt.UTC().Format(time.RFC3339),
			room.ID,
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
		return r.replaceManagersTx(tx, room.ID, room.ManagerIDs)
	})
}

// GetRoom retrieves a room with its managers, bookable hours and
// non-bookable periods.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (booking.Room, error) {
	if id == "" {
		return booking.Room{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, name, location, owner_id, requires_confirmation, booking_limit_days, deleted, created_at, updated_at
		FROM rooms
		WHERE id = ?
	`
	room, err := scanRoom(r.pool.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return booking.Room{}, err
	}
	if err := r.loadRestrictions(ctx, []*booking.Room{&room}); err != nil {
		return booking.Room{}, err
	}
	return room, nil
}

// ListRooms returns rooms ordered by name then id. Soft-deleted rooms are
// excluded unless includeDeleted is set.
func (r *RoomRepository) ListRooms(ctx context.Context, includeDeleted bool) ([]booking.Room, error) {
	query := `
		SELECT id, name, location, owner_id, requires_confirmation, booking_limit_days, deleted, created_at, updated_at
		FROM rooms
	`
	if !includeDeleted {
		query += ` WHERE deleted = 0`
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var rooms []booking.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	pointers := make([]*booking.Room, len(rooms))
	for i := range rooms {
		pointers[i] = &rooms[i]
	}
	if err := r.loadRestrictions(ctx, pointers); err != nil {
		return nil, err
	}
	return rooms, nil
}

// SoftDeleteRoom flips the deleted flag; the row stays for historical
// reservations.
func (r *RoomRepository) SoftDeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, `UPDATE rooms SET deleted = 1 WHERE id = ?`, id)
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

// SetBookableHours replaces the room's per-weekday bookable windows.
func (r *RoomRepository) SetBookableHours(ctx context.Context, roomID string, hours []booking.BookableHours) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := requireRoomTx(tx, roomID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM room_bookable_hours WHERE room_id = ?`, roomID); err != nil {
			return mapError(err)
		}
		for _, bh := range hours {
			_, err := tx.Exec(
				`INSERT INTO room_bookable_hours (room_id, weekday, start_minute, end_minute) VALUES (?, ?, ?, ?)`,
				roomID, int(bh.Weekday), bh.Hours.StartMinute, bh.Hours.EndMinute,
			)
			if err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// SetNonBookablePeriods replaces the room's full-day exclusion ranges.
func (r *RoomRepository) SetNonBookablePeriods(ctx context.Context, roomID string, periods []booking.NonBookablePeriod) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := requireRoomTx(tx, roomID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM room_nonbookable_periods WHERE room_id = ?`, roomID); err != nil {
			return mapError(err)
		}
		for _, period := range periods {
			_, err := tx.Exec(
				`INSERT INTO room_nonbookable_periods (room_id, start_date, end_date) VALUES (?, ?, ?)`,
				roomID,
				period.StartDate.Format(booking.DateLayout),
				period.EndDate.Format(booking.DateLayout),
			)
			if err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

func (r *RoomRepository) replaceManagersTx(tx *sql.Tx, roomID string, managerIDs []string) error {
	if _, err := tx.Exec(`DELETE FROM room_managers WHERE room_id = ?`, roomID); err != nil {
		return mapError(err)
	}
	for _, userID := range managerIDs {
		if _, err := tx.Exec(`INSERT INTO room_managers (room_id, user_id) VALUES (?, ?)`, roomID, userID); err != nil {
			return mapError(err)
		}
	}
	return nil
}

// loadRestrictions attaches managers, bookable hours and non-bookable periods
// to the given rooms.
func (r *RoomRepository) loadRestrictions(ctx context.Context, rooms []*booking.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	byID := make(map[string]*booking.Room, len(rooms))
	args := make([]any, 0, len(rooms))
	for _, room := range rooms {
		byID[room.ID] = room
		args = append(args, room.ID)
	}
	ids := placeholders(len(rooms))

	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT room_id, user_id FROM room_managers WHERE room_id IN (`+ids+`) ORDER BY user_id`, args...)
	if err != nil {
		return mapError(err)
	}
	for rows.Next() {
		var roomID, userID string
		if err := rows.Scan(&roomID, &userID); err != nil {
			rows.Close()
			return mapError(err)
		}
		if room := byID[roomID]; room != nil {
			room.ManagerIDs = append(room.ManagerIDs, userID)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return mapError(err)
	}
	rows.Close()

	rows, err = r.pool.db.QueryContext(ctx,
		`SELECT room_id, weekday, start_minute, end_minute FROM room_bookable_hours WHERE room_id IN (`+ids+`) ORDER BY weekday, start_minute`, args...)
	if err != nil {
		return mapError(err)
	}
	for rows.Next() {
		var roomID string
		var weekday, startMinute, endMinute int
		if err := rows.Scan(&roomID, &weekday, &startMinute, &endMinute); err != nil {
			rows.Close()
			return mapError(err)
		}
		if room := byID[roomID]; room != nil {
			room.BookableHours = append(room.BookableHours, booking.BookableHours{
				RoomID:  roomID,
				Weekday: time.Weekday(weekday),
				Hours:   booking.HourRange{StartMinute: startMinute, EndMinute: endMinute},
			})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return mapError(err)
	}
	rows.Close()

	rows, err = r.pool.db.QueryContext(ctx,
		`SELECT room_id, start_date, end_date FROM room_nonbookable_periods WHERE room_id IN (`+ids+`) ORDER BY start_date`, args...)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var roomID, startStr, endStr string
		if err := rows.Scan(&roomID, &startStr, &endStr); err != nil {
			return mapError(err)
		}
		start, err := time.Parse(booking.DateLayout, startStr)
		if err != nil {
			return fmt.Errorf("failed to parse start_date: %w", err)
		}
		end, err := time.Parse(booking.DateLayout, endStr)
		if err != nil {
			return fmt.Errorf("failed to parse end_date: %w", err)
		}
		if room := byID[roomID]; room != nil {
			room.NonBookablePeriods = append(room.NonBookablePeriods, booking.NonBookablePeriod{
				RoomID:    roomID,
				StartDate: start,
				EndDate:   end,
			})
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (booking.Room, error) {
	var room booking.Room
	var requiresConfirmation, deleted int
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Location,
		&room.OwnerID,
		&requiresConfirmation,
		&room.BookingLimitDays,
		&deleted,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return booking.Room{}, persistence.ErrNotFound
		}
		return booking.Room{}, mapError(err)
	}

	room.RequiresConfirmation = requiresConfirmation != 0
	room.Deleted = deleted != 0
	if room.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return booking.Room{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if room.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return booking.Room{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return room, nil
}

func requireRoomTx(tx *sql.Tx, roomID string) error {
	var one int
	if err := tx.QueryRow(`SELECT 1 FROM rooms WHERE id = ?`, roomID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return persistence.ErrNotFound
		}
		return mapError(err)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
