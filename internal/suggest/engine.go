// Package suggest proposes minimal adjustments for booking requests that
// could not be satisfied as asked: shifting the start time, shortening the
// duration or skipping the conflicting days.
package suggest

import (
	"sort"
	"time"

	"github.com/example/roombook/internal/availability"
	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/conflict"
	"github.com/example/roombook/internal/recurrence"
)

// Suggestion is one proposed adjustment. Exactly one of the adjustment
// fields is populated.
type Suggestion struct {
	// ShiftMinutes moves the requested start (and end) by the given signed
	// number of minutes.
	ShiftMinutes int `json:"shift_minutes,omitempty"`
	// ShortenMinutes cuts the requested duration by the given number of
	// minutes, keeping the start.
	ShortenMinutes int `json:"shorten_minutes,omitempty"`
	// SkipDates drops only the conflicting days of a recurring request.
	SkipDates []string `json:"skip_dates,omitempty"`
	// ShortenDays trims a recurring request that exceeds the room's booking
	// day limit by the given number of days.
	ShortenDays int `json:"shorten_days,omitempty"`
	// Score ranks suggestions ascending; smaller adjustments score lower.
	Score float64 `json:"score"`
}

// RoomSuggestion pairs a room with its ranked suggestion.
type RoomSuggestion struct {
	Room       *booking.Room `json:"room"`
	Suggestion Suggestion    `json:"suggestion"`
}

const skipWeight = 0.2

// ForRoom computes the cheapest adjustment that would make the candidate set
// bookable on the room. The second return value is false when the request is
// already satisfiable or no adjustment inside the configured bounds helps.
func ForRoom(bag *availability.RoomBag, candidates []booking.Interval, rule recurrence.Rule, settings booking.Settings) (Suggestion, bool) {
	if bag == nil || len(candidates) == 0 {
		return Suggestion{}, false
	}
	if rule.Frequency == recurrence.FrequencyNever {
		return forSingle(bag, candidates[0], settings)
	}
	return forRecurring(bag, candidates, settings)
}

// forSingle scans the taken intervals around the requested slot and proposes
// either a start shift inside the suggestion window or a shortened duration.
func forSingle(bag *availability.RoomBag, requested booking.Interval, settings booking.Settings) (Suggestion, bool) {
	busy := takenOn(bag, requested.Start)
	if isFree(requested, busy) {
		return Suggestion{}, false
	}

	step := settings.SuggestionStep
	if step <= 0 {
		step = 5 * time.Minute
	}
	window := settings.SuggestionWindow
	if window <= 0 {
		window = 20 * time.Minute
	}

	for offset := step; offset <= window; offset += step {
		for _, shift := range []time.Duration{offset, -offset} {
			shifted := booking.Interval{Start: requested.Start.Add(shift), End: requested.End.Add(shift)}
			if !booking.SameDate(shifted.Start, requested.Start) {
				continue
			}
			if isFree(shifted, busy) {
				minutes := int(shift / time.Minute)
				return Suggestion{ShiftMinutes: minutes, Score: absFloat(minutes)}, true
			}
		}
	}

	maxCut := time.Duration(float64(requested.Duration()) * settings.MaxShortenRatio)
	for cut := step; cut <= maxCut; cut += step {
		shortened := booking.Interval{Start: requested.Start, End: requested.End.Add(-cut)}
		if isFree(shortened, busy) {
			minutes := int(cut / time.Minute)
			return Suggestion{ShortenMinutes: minutes, Score: skipWeight * float64(minutes)}, true
		}
	}

	return Suggestion{}, false
}

// forRecurring proposes trimming a series over the room's day limit, or
// skipping just the conflicting days when only part of the series collides.
func forRecurring(bag *availability.RoomBag, candidates []booking.Interval, settings booking.Settings) (Suggestion, bool) {
	first := candidates[0]
	last := candidates[len(candidates)-1]

	if limit := bag.Room.BookingLimitDays; limit > 0 {
		days := booking.DaysBetween(first.Start, last.End) + 1
		if days > limit {
			excess := days - limit
			return Suggestion{ShortenDays: excess, Score: skipWeight * float64(excess)}, true
		}
	}

	result := conflict.Resolve(candidates, bag, conflict.Options{})
	conflicting := result.ConflictingCandidates()
	if len(conflicting) == 0 || len(conflicting) == len(candidates) {
		return Suggestion{}, false
	}

	dates := make([]string, 0, len(conflicting))
	for _, candidate := range conflicting {
		dates = append(dates, candidate.DateKey())
	}
	return Suggestion{SkipDates: dates, Score: skipWeight * float64(len(dates))}, true
}

// Rank orders suggestions ascending by score, tie-broken by room id so the
// result is deterministic.
func Rank(suggestions []RoomSuggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Suggestion.Score == suggestions[j].Suggestion.Score {
			return suggestions[i].Room.ID < suggestions[j].Room.ID
		}
		return suggestions[i].Suggestion.Score < suggestions[j].Suggestion.Score
	})
}

// takenOn merges the room's occurrences with its unbookable windows on the
// candidate's date, sorted by start.
func takenOn(bag *availability.RoomBag, day time.Time) []booking.Interval {
	taken := bag.TakenIntervals()
	taken = append(taken, bag.UnbookableIntervalsOn(day)...)
	taken = append(taken, bag.NonBookablePeriods...)
	sort.Slice(taken, func(i, j int) bool { return taken[i].Start.Before(taken[j].Start) })
	return taken
}

func isFree(candidate booking.Interval, busy []booking.Interval) bool {
	if !candidate.End.After(candidate.Start) {
		return false
	}
	for _, interval := range busy {
		if candidate.Overlaps(interval) {
			return false
		}
	}
	return true
}

func absFloat(v int) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}
