package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one numbered schema step. Statements run inside a single
// transaction together with the version bookkeeping.
type migration struct {
	version    int
	name       string
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "rooms",
		statements: []string{
			`CREATE TABLE rooms (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				location TEXT NOT NULL,
				owner_id TEXT NOT NULL DEFAULT '',
				requires_confirmation INTEGER NOT NULL DEFAULT 0,
				booking_limit_days INTEGER NOT NULL DEFAULT 0 CHECK (booking_limit_days >= 0),
				deleted INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE room_managers (
				room_id TEXT NOT NULL REFERENCES rooms(id),
				user_id TEXT NOT NULL,
				PRIMARY KEY (room_id, user_id)
			)`,
			`CREATE TABLE room_bookable_hours (
				room_id TEXT NOT NULL REFERENCES rooms(id),
				weekday INTEGER NOT NULL CHECK (weekday BETWEEN 0 AND 6),
				start_minute INTEGER NOT NULL CHECK (start_minute >= 0),
				end_minute INTEGER NOT NULL CHECK (end_minute <= 1440)
			)`,
			`CREATE INDEX idx_bookable_hours_room ON room_bookable_hours(room_id)`,
			`CREATE TABLE room_nonbookable_periods (
				room_id TEXT NOT NULL REFERENCES rooms(id),
				start_date TEXT NOT NULL,
				end_date TEXT NOT NULL
			)`,
			`CREATE INDEX idx_nonbookable_periods_room ON room_nonbookable_periods(room_id)`,
		},
	},
	{
		version: 2,
		name:    "reservations",
		statements: []string{
			`CREATE TABLE reservations (
				id TEXT PRIMARY KEY,
				room_id TEXT NOT NULL REFERENCES rooms(id),
				created_by_id TEXT NOT NULL,
				booked_for_id TEXT NOT NULL DEFAULT '',
				booked_for_name TEXT NOT NULL DEFAULT '',
				reason TEXT NOT NULL,
				start_at TEXT NOT NULL,
				end_at TEXT NOT NULL,
				frequency TEXT NOT NULL,
				recur_interval INTEGER NOT NULL DEFAULT 1,
				weekdays TEXT NOT NULL DEFAULT '',
				state TEXT NOT NULL CHECK (state IN ('pending', 'accepted', 'cancelled', 'rejected')),
				rejection_reason TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX idx_reservations_room ON reservations(room_id)`,
			`CREATE TABLE occurrences (
				reservation_id TEXT NOT NULL REFERENCES reservations(id),
				date TEXT NOT NULL,
				start_at TEXT NOT NULL,
				end_at TEXT NOT NULL,
				state TEXT NOT NULL CHECK (state IN ('valid', 'cancelled', 'rejected')),
				reason TEXT NOT NULL DEFAULT '',
				link_kind TEXT NOT NULL DEFAULT '',
				link_object_id TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (reservation_id, date)
			)`,
			`CREATE INDEX idx_occurrences_window ON occurrences(start_at, end_at)`,
			`CREATE TABLE reservation_log (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				reservation_id TEXT NOT NULL REFERENCES reservations(id),
				at TEXT NOT NULL,
				author_id TEXT NOT NULL,
				message TEXT NOT NULL
			)`,
			`CREATE INDEX idx_reservation_log_reservation ON reservation_log(reservation_id)`,
		},
	},
	{
		version: 3,
		name:    "blockings",
		statements: []string{
			`CREATE TABLE blockings (
				id TEXT PRIMARY KEY,
				created_by_id TEXT NOT NULL,
				reason TEXT NOT NULL,
				start_date TEXT NOT NULL,
				end_date TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE blocking_allowed (
				blocking_id TEXT NOT NULL REFERENCES blockings(id),
				user_id TEXT NOT NULL,
				PRIMARY KEY (blocking_id, user_id)
			)`,
			`CREATE TABLE blocked_rooms (
				blocking_id TEXT NOT NULL REFERENCES blockings(id),
				room_id TEXT NOT NULL REFERENCES rooms(id),
				state TEXT NOT NULL CHECK (state IN ('pending', 'accepted', 'rejected')),
				rejection_reason TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (blocking_id, room_id)
			)`,
			`CREATE INDEX idx_blocked_rooms_room ON blocked_rooms(room_id)`,
		},
	},
}

// Migrate applies pending schema migrations in version order. Each already
// applied version is skipped; a gap in the recorded sequence is an error.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	initSQL := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`
	if _, err := pool.DB().ExecContext(ctx, initSQL); err != nil {
		return fmt.Errorf("failed to initialize schema_migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := pool.DB().QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
				}
			}
			_, err := tx.Exec(
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.version, m.name, time.Now().UTC().Format(time.RFC3339),
			)
			if err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.version, err)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
