package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/persistence"
)

// BlockingRepository implements persistence.BlockingRepository using SQLite.
type BlockingRepository struct {
	pool *ConnectionPool
}

// NewBlockingRepository creates a new SQLite blocking repository.
func NewBlockingRepository(pool *ConnectionPool) *BlockingRepository {
	return &BlockingRepository{pool: pool}
}

// CreateBlocking persists the blocking with its allow-list and per-room
// entries in one transaction.
func (r *BlockingRepository) CreateBlocking(ctx context.Context, blocking booking.Blocking) error {
	if blocking.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO blockings (id, created_by_id, reason, start_date, end_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		_, err := tx.Exec(query,
			blocking.ID,
			blocking.CreatedByID,
			blocking.Reason,
			blocking.StartDate.Format(booking.DateLayout),
			blocking.EndDate.Format(booking.DateLayout),
			blocking.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return mapError(err)
		}

		for _, userID := range blocking.AllowedIDs {
			if _, err := tx.Exec(`INSERT INTO blocking_allowed (blocking_id, user_id) VALUES (?, ?)`, blocking.ID, userID); err != nil {
				return mapError(err)
			}
		}
		for _, entry := range blocking.BlockedRooms {
			_, err := tx.Exec(
				`INSERT INTO blocked_rooms (blocking_id, room_id, state, rejection_reason) VALUES (?, ?, ?, ?)`,
				blocking.ID, entry.RoomID, string(entry.State), entry.RejectionReason,
			)
			if err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// GetBlocking retrieves a blocking with its allow-list and room entries.
func (r *BlockingRepository) GetBlocking(ctx context.Context, id string) (booking.Blocking, error) {
	if id == "" {
		return booking.Blocking{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, created_by_id, reason, start_date, end_date, created_at
		FROM blockings
		WHERE id = ?
	`
	blocking, err := scanBlocking(r.pool.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return booking.Blocking{}, err
	}
	blockings := []*booking.Blocking{&blocking}
	if err := r.loadDetails(ctx, blockings); err != nil {
		return booking.Blocking{}, err
	}
	return blocking, nil
}

// UpdateBlockedRoom persists the approval state of one room entry.
func (r *BlockingRepository) UpdateBlockedRoom(ctx context.Context, entry booking.BlockedRoom) error {
	query := `
		UPDATE blocked_rooms
		SET state = ?, rejection_reason = ?
		WHERE blocking_id = ? AND room_id = ?
	`
	result, err := r.pool.db.ExecContext(ctx, query,
		string(entry.State),
		entry.RejectionReason,
		entry.BlockingID,
		entry.RoomID,
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

// ApprovedBlockingsForRooms returns blockings holding an accepted entry for at
// least one of the rooms and intersecting [start, end].
func (r *BlockingRepository) ApprovedBlockingsForRooms(ctx context.Context, roomIDs []string, start, end time.Time) ([]booking.Blocking, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(roomIDs)+2)
	for _, id := range roomIDs {
		args = append(args, id)
	}
	args = append(args,
		end.Format(booking.DateLayout),
		start.Format(booking.DateLayout),
	)

	query := `
		SELECT DISTINCT b.id, b.created_by_id, b.reason, b.start_date, b.end_date, b.created_at
		FROM blockings b
		JOIN blocked_rooms br ON br.blocking_id = b.id
		WHERE br.room_id IN (` + placeholders(len(roomIDs)) + `)
			AND br.state = 'accepted'
			AND b.start_date <= ?
			AND b.end_date >= ?
		ORDER BY b.start_date ASC, b.id ASC
	`
	blockings, err := r.queryBlockings(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return blockings, nil
}

// ListBlockings returns every blocking ordered by start date.
func (r *BlockingRepository) ListBlockings(ctx context.Context) ([]booking.Blocking, error) {
	query := `
		SELECT id, created_by_id, reason, start_date, end_date, created_at
		FROM blockings
		ORDER BY start_date ASC, id ASC
	`
	return r.queryBlockings(ctx, query)
}

func (r *BlockingRepository) queryBlockings(ctx context.Context, query string, args ...any) ([]booking.Blocking, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var blockings []booking.Blocking
	for rows.Next() {
		blocking, err := scanBlocking(rows)
		if err != nil {
			return nil, err
		}
		blockings = append(blockings, blocking)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	pointers := make([]*booking.Blocking, len(blockings))
	for i := range blockings {
		pointers[i] = &blockings[i]
	}
	if err := r.loadDetails(ctx, pointers); err != nil {
		return nil, err
	}
	return blockings, nil
}

// loadDetails attaches allow-lists and per-room entries to the blockings.
func (r *BlockingRepository) loadDetails(ctx context.Context, blockings []*booking.Blocking) error {
	if len(blockings) == 0 {
		return nil
	}
	byID := make(map[string]*booking.Blocking, len(blockings))
	args := make([]any, 0, len(blockings))
	for _, blocking := range blockings {
		byID[blocking.ID] = blocking
		args = append(args, blocking.ID)
	}
	ids := placeholders(len(blockings))

	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT blocking_id, user_id FROM blocking_allowed WHERE blocking_id IN (`+ids+`) ORDER BY user_id`, args...)
	if err != nil {
		return mapError(err)
	}
	for rows.Next() {
		var blockingID, userID string
		if err := rows.Scan(&blockingID, &userID); err != nil {
			rows.Close()
			return mapError(err)
		}
		if blocking := byID[blockingID]; blocking != nil {
			blocking.AllowedIDs = append(blocking.AllowedIDs, userID)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return mapError(err)
	}
	rows.Close()

	rows, err = r.pool.db.QueryContext(ctx,
		`SELECT blocking_id, room_id, state, rejection_reason FROM blocked_rooms WHERE blocking_id IN (`+ids+`) ORDER BY room_id`, args...)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var entry booking.BlockedRoom
		var state string
		if err := rows.Scan(&entry.BlockingID, &entry.RoomID, &state, &entry.RejectionReason); err != nil {
			return mapError(err)
		}
		entry.State = booking.BlockingState(state)
		if blocking := byID[entry.BlockingID]; blocking != nil {
			blocking.BlockedRooms = append(blocking.BlockedRooms, entry)
		}
	}
	return rows.Err()
}

func scanBlocking(row rowScanner) (booking.Blocking, error) {
	var blocking booking.Blocking
	var startStr, endStr, createdAtStr string

	err := row.Scan(
		&blocking.ID,
		&blocking.CreatedByID,
		&blocking.Reason,
		&startStr,
		&endStr,
		&createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return booking.Blocking{}, persistence.ErrNotFound
		}
		return booking.Blocking{}, mapError(err)
	}

	if blocking.StartDate, err = time.Parse(booking.DateLayout, startStr); err != nil {
		return booking.Blocking{}, fmt.Errorf("failed to parse start_date: %w", err)
	}
	if blocking.EndDate, err = time.Parse(booking.DateLayout, endStr); err != nil {
		return booking.Blocking{}, fmt.Errorf("failed to parse end_date: %w", err)
	}
	if blocking.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return booking.Blocking{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return blocking, nil
}
