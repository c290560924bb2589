package recurrence

import (
	"errors"
	"testing"
	"time"
)

func TestGenerate_SingleAndErrors(t *testing.T) {
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	t.Run("never yields exactly the requested slot", func(t *testing.T) {
		slots, err := Generate(start, end, Rule{Frequency: FrequencyNever})
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if len(slots) != 1 {
			t.Fatalf("expected 1 slot, got %d", len(slots))
		}
		if !slots[0].Start.Equal(start) || !slots[0].End.Equal(end) {
			t.Fatalf("unexpected slot %v-%v", slots[0].Start, slots[0].End)
		}
	})

	t.Run("end before start is rejected", func(t *testing.T) {
		_, err := Generate(end, start, Rule{Frequency: FrequencyDaily})
		if !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
	})

	t.Run("unknown frequency is rejected", func(t *testing.T) {
		_, err := Generate(start, end, Rule{Frequency: Frequency(42)})
		if !errors.Is(err, ErrInvalidFrequency) {
			t.Fatalf("expected ErrInvalidFrequency, got %v", err)
		}
	})
}

func TestGenerate_Daily(t *testing.T) {
	// Mon Jun 3 through Fri Jun 7, 09:00-10:30 each day.
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 7, 10, 30, 0, 0, time.UTC)

	slots, err := Generate(start, end, Rule{Frequency: FrequencyDaily})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(slots))
	}
	for i, slot := range slots {
		wantDay := start.AddDate(0, 0, i)
		if slot.Start.Day() != wantDay.Day() {
			t.Fatalf("slot %d on day %d, want %d", i, slot.Start.Day(), wantDay.Day())
		}
		if slot.Start.Hour() != 9 || slot.Start.Minute() != 0 {
			t.Fatalf("slot %d starts at %v, want 09:00", i, slot.Start)
		}
		if slot.End.Hour() != 10 || slot.End.Minute() != 30 {
			t.Fatalf("slot %d ends at %v, want 10:30", i, slot.End)
		}
	}
}

func TestGenerate_Weekly(t *testing.T) {
	t.Run("defaults to the start weekday", func(t *testing.T) {
		// Wed Jun 5 through Wed Jun 26.
		start := time.Date(2024, time.June, 5, 14, 0, 0, 0, time.UTC)
		end := time.Date(2024, time.June, 26, 15, 0, 0, 0, time.UTC)

		slots, err := Generate(start, end, Rule{Frequency: FrequencyWeekly})
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if len(slots) != 4 {
			t.Fatalf("expected 4 slots, got %d", len(slots))
		}
		for i, slot := range slots {
			if slot.Start.Weekday() != time.Wednesday {
				t.Fatalf("slot %d on %v, want Wednesday", i, slot.Start.Weekday())
			}
		}
	})

	t.Run("multiple weekdays stay within the start week group", func(t *testing.T) {
		// Mon Jun 3 through Sun Jun 16, Tue and Thu.
		start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
		end := time.Date(2024, time.June, 16, 10, 0, 0, 0, time.UTC)

		slots, err := Generate(start, end, Rule{
			Frequency: FrequencyWeekly,
			Weekdays:  []time.Weekday{time.Tuesday, time.Thursday},
		})
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		wantDays := []int{4, 6, 11, 13}
		if len(slots) != len(wantDays) {
			t.Fatalf("expected %d slots, got %d", len(wantDays), len(slots))
		}
		for i, slot := range slots {
			if slot.Start.Day() != wantDays[i] {
				t.Fatalf("slot %d on day %d, want %d", i, slot.Start.Day(), wantDays[i])
			}
		}
	})

	t.Run("interval counts weeks from the start week, Monday based", func(t *testing.T) {
		// Fri Jun 7; every second week. The next Friday (Jun 14) falls in an
		// odd week relative to the start, Jun 21 in an even one.
		start := time.Date(2024, time.June, 7, 9, 0, 0, 0, time.UTC)
		end := time.Date(2024, time.June, 28, 10, 0, 0, 0, time.UTC)

		slots, err := Generate(start, end, Rule{Frequency: FrequencyWeekly, Interval: 2})
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		wantDays := []int{7, 21}
		if len(slots) != len(wantDays) {
			t.Fatalf("expected %d slots, got %d", len(wantDays), len(slots))
		}
		for i, slot := range slots {
			if slot.Start.Day() != wantDays[i] {
				t.Fatalf("slot %d on day %d, want %d", i, slot.Start.Day(), wantDays[i])
			}
		}
	})

	t.Run("interval weeks count across a DST transition", func(t *testing.T) {
		berlin, err := time.LoadLocation("Europe/Berlin")
		if err != nil {
			t.Skipf("tzdata unavailable: %v", err)
		}
		// Fri Mar 29; clocks spring forward on Sun Mar 31. Every second week
		// must still skip Apr 5 and land on Apr 12.
		start := time.Date(2024, time.March, 29, 9, 0, 0, 0, berlin)
		end := time.Date(2024, time.April, 12, 10, 0, 0, 0, berlin)

		slots, err := Generate(start, end, Rule{Frequency: FrequencyWeekly, Interval: 2})
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		wantDays := []int{29, 12}
		if len(slots) != len(wantDays) {
			t.Fatalf("expected %d slots, got %d: %v", len(wantDays), len(slots), slots)
		}
		for i, slot := range slots {
			if slot.Start.Day() != wantDays[i] {
				t.Fatalf("slot %d on day %d, want %d", i, slot.Start.Day(), wantDays[i])
			}
		}
	})

	t.Run("weekday set matching no date in range yields no slots", func(t *testing.T) {
		// Mon Jun 3 through Wed Jun 5, Saturdays only.
		start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
		end := time.Date(2024, time.June, 5, 10, 0, 0, 0, time.UTC)

		slots, err := Generate(start, end, Rule{
			Frequency: FrequencyWeekly,
			Weekdays:  []time.Weekday{time.Saturday},
		})
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if len(slots) != 0 {
			t.Fatalf("expected no slots, got %d", len(slots))
		}
	})
}

func TestGenerate_Monthly(t *testing.T) {
	t.Run("keeps the weekday-of-month position", func(t *testing.T) {
		// Tue Jun 11 2024 is the second Tuesday of June.
		start := time.Date(2024, time.June, 11, 9, 0, 0, 0, time.UTC)
		end := time.Date(2024, time.August, 31, 10, 0, 0, 0, time.UTC)

		slots, err := Generate(start, end, Rule{Frequency: FrequencyMonthly})
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		// Second Tuesdays: Jun 11, Jul 9, Aug 13.
		wantDates := []time.Time{
			time.Date(2024, time.June, 11, 9, 0, 0, 0, time.UTC),
			time.Date(2024, time.July, 9, 9, 0, 0, 0, time.UTC),
			time.Date(2024, time.August, 13, 9, 0, 0, 0, time.UTC),
		}
		if len(slots) != len(wantDates) {
			t.Fatalf("expected %d slots, got %d", len(wantDates), len(slots))
		}
		for i, slot := range slots {
			if !slot.Start.Equal(wantDates[i]) {
				t.Fatalf("slot %d at %v, want %v", i, slot.Start, wantDates[i])
			}
		}
	})

	t.Run("fifth weekday falls back to the last one", func(t *testing.T) {
		// Fri Mar 29 2024 is the fifth Friday of March. April has only four
		// Fridays, so the series continues on the last Friday.
		start := time.Date(2024, time.March, 29, 9, 0, 0, 0, time.UTC)
		end := time.Date(2024, time.April, 30, 10, 0, 0, 0, time.UTC)

		slots, err := Generate(start, end, Rule{Frequency: FrequencyMonthly})
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if len(slots) != 2 {
			t.Fatalf("expected 2 slots, got %d", len(slots))
		}
		want := time.Date(2024, time.April, 26, 9, 0, 0, 0, time.UTC)
		if !slots[1].Start.Equal(want) {
			t.Fatalf("second slot at %v, want %v", slots[1].Start, want)
		}
	})

	t.Run("interval skips months", func(t *testing.T) {
		start := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC) // first Monday
		end := time.Date(2024, time.June, 30, 10, 0, 0, 0, time.UTC)

		slots, err := Generate(start, end, Rule{Frequency: FrequencyMonthly, Interval: 2})
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		wantMonths := []time.Month{time.January, time.March, time.May}
		if len(slots) != len(wantMonths) {
			t.Fatalf("expected %d slots, got %d", len(wantMonths), len(slots))
		}
		for i, slot := range slots {
			if slot.Start.Month() != wantMonths[i] {
				t.Fatalf("slot %d in %v, want %v", i, slot.Start.Month(), wantMonths[i])
			}
			if slot.Start.Weekday() != time.Monday {
				t.Fatalf("slot %d on %v, want Monday", i, slot.Start.Weekday())
			}
		}
	})
}

func TestGenerate_Deterministic(t *testing.T) {
	start := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.July, 3, 10, 0, 0, 0, time.UTC)
	rule := Rule{Frequency: FrequencyWeekly, Interval: 2, Weekdays: []time.Weekday{time.Monday, time.Friday}}

	first, err := Generate(start, end, rule)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	second, err := Generate(start, end, rule)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("slot %d differs between runs", i)
		}
	}
}

func TestRuleEqual(t *testing.T) {
	a := Rule{Frequency: FrequencyWeekly, Interval: 0, Weekdays: []time.Weekday{time.Monday, time.Friday}}
	b := Rule{Frequency: FrequencyWeekly, Interval: 1, Weekdays: []time.Weekday{time.Friday, time.Monday}}
	if !a.Equal(b) {
		t.Fatalf("expected rules to be equal")
	}
	c := Rule{Frequency: FrequencyWeekly, Interval: 2, Weekdays: []time.Weekday{time.Monday, time.Friday}}
	if a.Equal(c) {
		t.Fatalf("expected rules with different intervals to differ")
	}
}

func TestParseTokens(t *testing.T) {
	for token, want := range map[string]Frequency{
		"never": FrequencyNever, "daily": FrequencyDaily, "weekly": FrequencyWeekly, "monthly": FrequencyMonthly,
	} {
		got, err := ParseFrequency(token)
		if err != nil {
			t.Fatalf("ParseFrequency(%q) returned error: %v", token, err)
		}
		if got != want {
			t.Fatalf("ParseFrequency(%q) = %v, want %v", token, got, want)
		}
	}
	if _, err := ParseFrequency("yearly"); err == nil {
		t.Fatalf("expected error for unknown frequency token")
	}

	day, err := ParseWeekday("wed")
	if err != nil || day != time.Wednesday {
		t.Fatalf("ParseWeekday(wed) = %v, %v", day, err)
	}
	if token := WeekdayToken(time.Wednesday); token != "wed" {
		t.Fatalf("WeekdayToken(Wednesday) = %q", token)
	}
}
