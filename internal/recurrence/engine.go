package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Frequency represents supported repetition intervals for a reservation.
type Frequency int

const (
	// FrequencyNever produces a single occurrence.
	FrequencyNever Frequency = iota
	// FrequencyDaily produces one occurrence per calendar day in range.
	FrequencyDaily
	// FrequencyWeekly produces occurrences on selected weekdays every N weeks.
	FrequencyWeekly
	// FrequencyMonthly produces occurrences on the same weekday-of-month
	// position as the series start.
	FrequencyMonthly
)

var frequencyNames = map[Frequency]string{
	FrequencyNever:   "never",
	FrequencyDaily:   "daily",
	FrequencyWeekly:  "weekly",
	FrequencyMonthly: "monthly",
}

// String returns the lowercase token for the frequency.
func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("frequency(%d)", int(f))
}

// ParseFrequency converts a lowercase token into a Frequency.
func ParseFrequency(token string) (Frequency, error) {
	for freq, name := range frequencyNames {
		if name == token {
			return freq, nil
		}
	}
	return FrequencyNever, fmt.Errorf("%w: %q", ErrInvalidFrequency, token)
}

var weekdayTokens = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// ParseWeekday converts a three-letter token (mon..sun) into a weekday.
func ParseWeekday(token string) (time.Weekday, error) {
	if day, ok := weekdayTokens[token]; ok {
		return day, nil
	}
	return time.Sunday, fmt.Errorf("recurrence: invalid weekday %q", token)
}

// WeekdayToken returns the three-letter token for a weekday.
func WeekdayToken(day time.Weekday) string {
	return [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}[int(day)%7]
}

// Rule describes the repetition pattern of a reservation.
type Rule struct {
	Frequency Frequency
	// Interval is the step between repetitions in weeks (weekly) or months
	// (monthly). Zero is treated as one. Daily repetition is always every day.
	Interval int
	// Weekdays restricts weekly repetition to the listed days. When empty the
	// weekday of the series start is used.
	Weekdays []time.Weekday
}

// Equal reports whether two rules describe the same pattern.
func (r Rule) Equal(other Rule) bool {
	if r.Frequency != other.Frequency || r.normalizedInterval() != other.normalizedInterval() {
		return false
	}
	if len(r.Weekdays) != len(other.Weekdays) {
		return false
	}
	set := make(map[time.Weekday]struct{}, len(r.Weekdays))
	for _, day := range r.Weekdays {
		set[day] = struct{}{}
	}
	for _, day := range other.Weekdays {
		if _, ok := set[day]; !ok {
			return false
		}
	}
	return true
}

func (r Rule) normalizedInterval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// Slot is one generated occurrence window.
type Slot struct {
	Start time.Time
	End   time.Time
}

// ErrInvalidFrequency indicates the rule frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// ErrInvalidRange indicates the series end precedes the series start.
var ErrInvalidRange = errors.New("recurrence: end precedes start")

// Generate expands a series window into dated occurrence slots.
//
// The start and end instants carry both the series date range and the
// time-of-day window applied to every generated date. Generation is pure:
// repeated calls with equal arguments yield equal results.
//
// An empty result for a well-formed rule means the pattern matches no date in
// range ("impossible repetition"); callers are expected to detect that and
// reject the request rather than accept a reservation with no occurrences.
func Generate(start, end time.Time, rule Rule) ([]Slot, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}

	switch rule.Frequency {
	case FrequencyNever:
		return []Slot{{Start: start, End: end}}, nil
	case FrequencyDaily:
		return generateDaily(start, end), nil
	case FrequencyWeekly:
		return generateWeekly(start, end, rule), nil
	case FrequencyMonthly:
		return generateMonthly(start, end, rule), nil
	default:
		return nil, ErrInvalidFrequency
	}
}

func generateDaily(start, end time.Time) []Slot {
	slots := make([]Slot, 0, daysBetween(start, end)+1)
	for day := startOfDay(start); !day.After(startOfDay(end)); day = day.AddDate(0, 0, 1) {
		slots = append(slots, slotOn(day, start, end))
	}
	return slots
}

func generateWeekly(start, end time.Time, rule Rule) []Slot {
	interval := rule.normalizedInterval()

	weekdaySet := make(map[time.Weekday]struct{}, len(rule.Weekdays))
	for _, day := range rule.Weekdays {
		weekdaySet[day] = struct{}{}
	}
	if len(weekdaySet) == 0 {
		weekdaySet[start.Weekday()] = struct{}{}
	}

	baseWeek := startOfWeek(start)
	slots := make([]Slot, 0)
	for day := startOfDay(start); !day.After(startOfDay(end)); day = day.AddDate(0, 0, 1) {
		if _, ok := weekdaySet[day.Weekday()]; !ok {
			continue
		}
		weeks := daysBetween(baseWeek, startOfWeek(day)) / 7
		if weeks%interval != 0 {
			continue
		}
		slots = append(slots, slotOn(day, start, end))
	}
	return slots
}

func generateMonthly(start, end time.Time, rule Rule) []Slot {
	interval := rule.normalizedInterval()
	weekday := start.Weekday()
	position := (start.Day()-1)/7 + 1

	lastDate := startOfDay(end)
	slots := make([]Slot, 0)
	for month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location()); !month.After(lastDate); month = month.AddDate(0, interval, 0) {
		day := nthWeekdayOfMonth(month, weekday, position)
		if day.Before(startOfDay(start)) || day.After(lastDate) {
			continue
		}
		slots = append(slots, slotOn(day, start, end))
	}
	return slots
}

// nthWeekdayOfMonth resolves the position-th weekday within the month that
// contains monthStart. A position that does not exist in the month (the 5th
// qualifying weekday) is normalized to the last such weekday, which keeps the
// rule stable across months with four and five qualifying weekdays.
func nthWeekdayOfMonth(monthStart time.Time, weekday time.Weekday, position int) time.Time {
	first := time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, monthStart.Location())
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	day := first.AddDate(0, 0, offset+(position-1)*7)
	for day.Month() != first.Month() {
		day = day.AddDate(0, 0, -7)
	}
	return day
}

func slotOn(day, start, end time.Time) Slot {
	return Slot{
		Start: combineDateTime(day, start),
		End:   combineDateTime(day, end),
	}
}

func combineDateTime(dateSource, template time.Time) time.Time {
	y, m, d := dateSource.Date()
	loc := dateSource.Location()
	tmpl := template.In(loc)
	return time.Date(y, m, d, tmpl.Hour(), tmpl.Minute(), tmpl.Second(), tmpl.Nanosecond(), loc)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	// Monday starts the week; Go numbers Monday as 1 and Sunday as 0.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// daysBetween counts whole calendar days from a to b. Computed from the
// calendar dates so DST-shortened days still count as one day.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	until := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(until.Sub(from).Hours() / 24)
}
