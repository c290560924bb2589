// Package conflict classifies candidate occurrences against the availability
// picture of a room.
package conflict

import (
	"sort"

	"github.com/example/roombook/internal/availability"
	"github.com/example/roombook/internal/booking"
)

// Class is the strongest constraint a candidate runs into.
type Class int

const (
	// ClassFree means no constraint touches the candidate.
	ClassFree Class = iota
	// ClassPending means only pre-bookings overlap the candidate.
	ClassPending
	// ClassHours means the candidate leaves the room's bookable hours.
	ClassHours
	// ClassPeriod means the candidate falls into a non-bookable period.
	ClassPeriod
	// ClassBlocked means a non-overridable blocking covers the candidate.
	ClassBlocked
	// ClassConfirmed means a confirmed booking overlaps the candidate.
	ClassConfirmed
)

// OccurrenceConflict records the overlap between a candidate and one existing
// occurrence. It is a return value only and is never persisted.
type OccurrenceConflict struct {
	Candidate booking.Interval
	Overlap   booking.Interval
	With      availability.Existing
}

// BlockingConflict is the synthetic, reservation-less record produced when a
// candidate runs into a blocking.
type BlockingConflict struct {
	Candidate booking.Interval
	Overlap   booking.Interval
	Blocking  booking.Blocking
}

// CandidateConflict records the overlap between a candidate and a room-level
// exclusion window (non-bookable period or unbookable hours).
type CandidateConflict struct {
	Candidate booking.Interval
	Overlap   booking.Interval
}

// Options tunes one resolution run.
type Options struct {
	// SkipReservationIDs excludes occurrences of the listed reservations,
	// used when re-evaluating a booking against itself during modification.
	SkipReservationIDs map[string]struct{}
	// AllowOverride skips the non-bookable period and unbookable hour checks
	// for principals holding an override capability.
	AllowOverride bool
}

// Result groups every conflict found for a candidate set on a single room.
type Result struct {
	Confirmed []OccurrenceConflict
	Pending   []OccurrenceConflict
	Blocked   []BlockingConflict
	Periods   []CandidateConflict
	Hours     []CandidateConflict

	classes map[string]Class
}

// Classify returns the strongest constraint recorded for the candidate.
func (r *Result) Classify(candidate booking.Interval) Class {
	if r == nil {
		return ClassFree
	}
	return r.classes[candidate.DateKey()]
}

// IsFree reports whether no constraint touches the candidate.
func (r *Result) IsFree(candidate booking.Interval) bool {
	return r.Classify(candidate) == ClassFree
}

// HasBlockingConflicts reports whether any candidate is unusable: overlapping
// a confirmed booking, a blocking, a non-bookable period or unbookable hours.
// Pending overlaps do not count; pre-bookings may coexist.
func (r *Result) HasBlockingConflicts() bool {
	if r == nil {
		return false
	}
	return len(r.Confirmed) > 0 || len(r.Blocked) > 0 || len(r.Periods) > 0 || len(r.Hours) > 0
}

// ConflictingCandidates returns the candidates touched by any constraint,
// sorted by date for presentation.
func (r *Result) ConflictingCandidates() []booking.Interval {
	if r == nil {
		return nil
	}
	seen := make(map[string]booking.Interval)
	record := func(c booking.Interval) { seen[c.DateKey()] = c }
	for _, c := range r.Confirmed {
		record(c.Candidate)
	}
	for _, c := range r.Pending {
		record(c.Candidate)
	}
	for _, c := range r.Blocked {
		record(c.Candidate)
	}
	for _, c := range r.Periods {
		record(c.Candidate)
	}
	for _, c := range r.Hours {
		record(c.Candidate)
	}

	out := make([]booking.Interval, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Resolve compares each candidate occurrence against the room's availability
// bag and records every overlap, classified by the kind of constraint hit.
func Resolve(candidates []booking.Interval, bag *availability.RoomBag, opts Options) *Result {
	result := &Result{classes: make(map[string]Class, len(candidates))}
	if bag == nil {
		return result
	}

	for _, candidate := range candidates {
		class := ClassFree

		for _, existing := range bag.Occurrences {
			if _, skip := opts.SkipReservationIDs[existing.ReservationID]; skip {
				continue
			}
			overlap, ok := candidate.Overlap(existing.Interval())
			if !ok {
				continue
			}
			record := OccurrenceConflict{Candidate: candidate, Overlap: overlap, With: existing}
			if existing.ReservationState == booking.ReservationAccepted {
				result.Confirmed = append(result.Confirmed, record)
				class = maxClass(class, ClassConfirmed)
			} else {
				result.Pending = append(result.Pending, record)
				class = maxClass(class, ClassPending)
			}
		}

		for _, entry := range bag.Blockings {
			if !entry.Blocking.IntersectsDates(candidate.Start, candidate.End) {
				continue
			}
			result.Blocked = append(result.Blocked, BlockingConflict{
				Candidate: candidate,
				Overlap:   candidate,
				Blocking:  entry.Blocking,
			})
			class = maxClass(class, ClassBlocked)
		}

		if !opts.AllowOverride {
			for _, period := range bag.NonBookablePeriods {
				overlap, ok := candidate.Overlap(period)
				if !ok {
					continue
				}
				result.Periods = append(result.Periods, CandidateConflict{Candidate: candidate, Overlap: overlap})
				class = maxClass(class, ClassPeriod)
			}

			for _, window := range bag.UnbookableIntervalsOn(candidate.Start) {
				overlap, ok := candidate.Overlap(window)
				if !ok {
					continue
				}
				result.Hours = append(result.Hours, CandidateConflict{Candidate: candidate, Overlap: overlap})
				class = maxClass(class, ClassHours)
			}
		}

		result.classes[candidate.DateKey()] = class
	}

	return result
}

func maxClass(a, b Class) Class {
	if b > a {
		return b
	}
	return a
}
