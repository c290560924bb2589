// Package availability gathers everything that constrains booking a set of
// rooms over a time window: existing occurrences, blockings, non-bookable
// periods and the unbookable hours derived from each room's bookable-hours
// table.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/roombook/internal/booking"
)

const minutesPerDay = 24 * 60

// Existing is a persisted occurrence projected with the room and reservation
// attributes conflict checks need.
type Existing struct {
	booking.Occurrence
	RoomID           string
	ReservationState booking.ReservationState
	BookedForName    string
}

// ReservationSource exposes the persisted occurrence lookups the indexer needs.
type ReservationSource interface {
	// ValidOccurrencesInRange returns live occurrences on the given rooms whose
	// interval overlaps the window.
	ValidOccurrencesInRange(ctx context.Context, roomIDs []string, window booking.Interval) ([]Existing, error)
}

// BlockingSource exposes the blocking lookups the indexer needs.
type BlockingSource interface {
	// ApprovedBlockingsForRooms returns blockings with an accepted entry for at
	// least one of the rooms whose date range intersects [start, end].
	ApprovedBlockingsForRooms(ctx context.Context, roomIDs []string, start, end time.Time) ([]booking.Blocking, error)
}

// BlockingEntry pairs a blocking with the per-room entry that applies.
type BlockingEntry struct {
	Blocking booking.Blocking
	Entry    booking.BlockedRoom
}

// RoomBag collects every availability constraint for one room in the window.
type RoomBag struct {
	Room *booking.Room
	// Occurrences holds the valid persisted occurrences overlapping the window.
	Occurrences []Existing
	// Blockings are in force and cannot be booked through by the acting user.
	Blockings []BlockingEntry
	// OverridableBlockings are in force but the acting user may book through
	// them (creator, allow-listed, admin or room owner).
	OverridableBlockings []BlockingEntry
	// NonBookablePeriods holds full-day exclusion intervals clipped to the
	// affected dates inside the window.
	NonBookablePeriods []booking.Interval
	// UnbookableHours maps each weekday to the time-of-day gaps left between
	// the room's bookable hours. Empty when the room has no bookable-hours
	// table; otherwise a weekday without bookable hours is one full
	// [0, 1440) entry.
	UnbookableHours map[time.Weekday][]booking.HourRange
}

// UnbookableIntervalsOn materializes the unbookable hour ranges of the given
// date as concrete intervals.
func (b *RoomBag) UnbookableIntervalsOn(day time.Time) []booking.Interval {
	start := booking.StartOfDay(day)
	ranges := b.UnbookableHours[start.Weekday()]
	intervals := make([]booking.Interval, 0, len(ranges))
	for _, r := range ranges {
		intervals = append(intervals, booking.Interval{
			Start: start.Add(time.Duration(r.StartMinute) * time.Minute),
			End:   start.Add(time.Duration(r.EndMinute) * time.Minute),
		})
	}
	return intervals
}

// TakenIntervals returns the occurrence intervals sorted by start time.
func (b *RoomBag) TakenIntervals() []booking.Interval {
	taken := make([]booking.Interval, 0, len(b.Occurrences))
	for _, occ := range b.Occurrences {
		taken = append(taken, occ.Interval())
	}
	sort.Slice(taken, func(i, j int) bool { return taken[i].Start.Before(taken[j].Start) })
	return taken
}

// Index is the per-room availability picture for one query window.
type Index struct {
	Window booking.Interval
	Rooms  map[string]*RoomBag
}

// Bag returns the room's bag, or nil when the room was not indexed.
func (ix *Index) Bag(roomID string) *RoomBag {
	if ix == nil {
		return nil
	}
	return ix.Rooms[roomID]
}

// Indexer builds availability indexes from persistence.
type Indexer struct {
	reservations ReservationSource
	blockings    BlockingSource
}

// NewIndexer wires the data sources required to build indexes.
func NewIndexer(reservations ReservationSource, blockings BlockingSource) *Indexer {
	return &Indexer{reservations: reservations, blockings: blockings}
}

// Build assembles the availability bag of every given room over the window.
// The blocking split into overridable and non-overridable sets depends on the
// acting principal.
func (ix *Indexer) Build(ctx context.Context, rooms []*booking.Room, window booking.Interval, principal booking.Principal) (*Index, error) {
	if ix == nil {
		return nil, fmt.Errorf("availability: indexer is nil")
	}

	index := &Index{Window: window, Rooms: make(map[string]*RoomBag, len(rooms))}
	roomIDs := make([]string, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, room.ID)
		index.Rooms[room.ID] = &RoomBag{
			Room:               room,
			NonBookablePeriods: clipPeriods(room.NonBookablePeriods, window),
			UnbookableHours:    InvertBookableHours(room.BookableHours),
		}
	}

	if ix.reservations != nil {
		occurrences, err := ix.reservations.ValidOccurrencesInRange(ctx, roomIDs, window)
		if err != nil {
			return nil, fmt.Errorf("availability: load occurrences: %w", err)
		}
		for _, occ := range occurrences {
			if !occ.IsValid() {
				continue
			}
			if bag := index.Rooms[occ.RoomID]; bag != nil {
				bag.Occurrences = append(bag.Occurrences, occ)
			}
		}
		for _, bag := range index.Rooms {
			sort.Slice(bag.Occurrences, func(i, j int) bool {
				return bag.Occurrences[i].Start.Before(bag.Occurrences[j].Start)
			})
		}
	}

	if ix.blockings != nil {
		blockings, err := ix.blockings.ApprovedBlockingsForRooms(ctx, roomIDs, window.Start, window.End)
		if err != nil {
			return nil, fmt.Errorf("availability: load blockings: %w", err)
		}
		for _, blocking := range blockings {
			if !blocking.IntersectsDates(window.Start, window.End) {
				continue
			}
			for _, entry := range blocking.BlockedRooms {
				bag := index.Rooms[entry.RoomID]
				if bag == nil || entry.State != booking.BlockingAccepted {
					continue
				}
				item := BlockingEntry{Blocking: blocking, Entry: entry}
				if blocking.CanOverride(principal, bag.Room, false) {
					bag.OverridableBlockings = append(bag.OverridableBlockings, item)
				} else {
					bag.Blockings = append(bag.Blockings, item)
				}
			}
		}
	}

	return index, nil
}

// InvertBookableHours turns per-weekday bookable ranges into the complementary
// unbookable gaps: before the first range, between ranges and after the last.
// A room with no bookable rows at all is unrestricted; once any weekday has
// rows, a weekday without rows is fully unbookable. Overlapping bookable
// rows are not supported; the inversion is then undefined but never panics.
func InvertBookableHours(hours []booking.BookableHours) map[time.Weekday][]booking.HourRange {
	if len(hours) == 0 {
		return map[time.Weekday][]booking.HourRange{}
	}

	byDay := make(map[time.Weekday][]booking.HourRange)
	for _, bh := range hours {
		byDay[bh.Weekday] = append(byDay[bh.Weekday], bh.Hours)
	}

	inverted := make(map[time.Weekday][]booking.HourRange, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		ranges := byDay[day]
		if len(ranges) == 0 {
			inverted[day] = []booking.HourRange{{StartMinute: 0, EndMinute: minutesPerDay}}
			continue
		}
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].StartMinute < ranges[j].StartMinute })

		gaps := make([]booking.HourRange, 0, len(ranges)+1)
		cursor := 0
		for _, r := range ranges {
			if r.StartMinute > cursor {
				gaps = append(gaps, booking.HourRange{StartMinute: cursor, EndMinute: r.StartMinute})
			}
			if r.EndMinute > cursor {
				cursor = r.EndMinute
			}
		}
		if cursor < minutesPerDay {
			gaps = append(gaps, booking.HourRange{StartMinute: cursor, EndMinute: minutesPerDay})
		}
		inverted[day] = gaps
	}
	return inverted
}

// clipPeriods converts full-day exclusion records into per-date intervals
// restricted to the query window.
func clipPeriods(periods []booking.NonBookablePeriod, window booking.Interval) []booking.Interval {
	windowStart := booking.StartOfDay(window.Start)
	windowEnd := booking.StartOfDay(window.End)

	clipped := make([]booking.Interval, 0)
	for _, period := range periods {
		if !period.IntersectsDates(window.Start, window.End) {
			continue
		}
		from := period.StartDate
		if from.Before(windowStart) {
			from = windowStart
		}
		until := period.EndDate
		if until.After(windowEnd) {
			until = windowEnd
		}
		for day := from; !day.After(until); day = day.AddDate(0, 0, 1) {
			clipped = append(clipped, booking.Interval{Start: day, End: day.AddDate(0, 0, 1)})
		}
	}
	sort.Slice(clipped, func(i, j int) bool { return clipped[i].Start.Before(clipped[j].Start) })
	return clipped
}
