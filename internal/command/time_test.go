package command

import (
	"errors"
	"testing"
	"time"
)

// Saturday 2026-08-22, 14:07:31 in Berlin (UTC+2 in August).
func berlinNow(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return time.Date(2026, 8, 22, 14, 7, 31, 0, loc)
}

func TestResolve_RunAtTakenVerbatim(t *testing.T) {
	now := berlinNow(t)
	at := time.Date(2026, 12, 24, 18, 0, 0, 0, time.UTC)
	got, err := Resolve(now, ReminderSpec{Title: "x", RunAt: &at})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !got.Equal(at) {
		t.Fatalf("expected %v, got %v", at, got)
	}
}

func TestResolve_TodayNoTime_NextFullHour(t *testing.T) {
	now := berlinNow(t)
	got, err := Resolve(now, ReminderSpec{Title: "x", DayReference: DayToday})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	local := got.In(now.Location())
	if local.Hour() != 15 || local.Minute() != 0 || local.Second() != 0 {
		t.Fatalf("expected 15:00:00 local, got %v", local)
	}
	if !got.After(now) {
		t.Fatalf("resolved time must be strictly after now")
	}
}

func TestResolve_TodayNoTime_ExactHourStillAdvances(t *testing.T) {
	loc := berlinNow(t).Location()
	now := time.Date(2026, 8, 22, 14, 0, 0, 0, loc)
	got, err := Resolve(now, ReminderSpec{Title: "x", DayReference: DayToday})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	local := got.In(loc)
	if local.Hour() != 15 || local.Minute() != 0 {
		t.Fatalf("14:00 sharp must resolve to 15:00, got %v", local)
	}
}

func TestResolve_FutureDayNoTime_DefaultsToMorning(t *testing.T) {
	now := berlinNow(t)
	cases := []struct {
		name string
		spec ReminderSpec
		day  int
	}{
		{"tomorrow", ReminderSpec{Title: "x", DayReference: DayTomorrow}, 23},
		{"day after tomorrow", ReminderSpec{Title: "x", DayReference: DayAfterTomorrow}, 24},
		{"specific date", ReminderSpec{Title: "x", DayReference: DaySpecificDate, DateValue: "2026-08-30"}, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(now, tc.spec)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			local := got.In(now.Location())
			if local.Day() != tc.day || local.Hour() != DefaultMorningHour || local.Minute() != 0 {
				t.Fatalf("expected day %d at 08:00 local, got %v", tc.day, local)
			}
		})
	}
}

func TestResolve_ExplicitTime_NoRounding(t *testing.T) {
	now := berlinNow(t)
	got, err := Resolve(now, ReminderSpec{Title: "x", DayReference: DayTomorrow, TimeOfDay: "18:45"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	local := got.In(now.Location())
	if local.Day() != 23 || local.Hour() != 18 || local.Minute() != 45 {
		t.Fatalf("expected tomorrow 18:45 local, got %v", local)
	}
}

func TestResolve_TodayExplicitPastTime_Fails(t *testing.T) {
	now := berlinNow(t) // 14:07
	_, err := Resolve(now, ReminderSpec{Title: "x", DayReference: DayToday, TimeOfDay: "14:07"})
	if !errors.Is(err, ErrInvalidTimeSpec) {
		t.Fatalf("expected ErrInvalidTimeSpec, got %v", err)
	}
	_, err = Resolve(now, ReminderSpec{Title: "x", DayReference: DayToday, TimeOfDay: "09:00"})
	if !errors.Is(err, ErrInvalidTimeSpec) {
		t.Fatalf("expected ErrInvalidTimeSpec for past time, got %v", err)
	}
}

func TestResolve_SpecificDateNotFuture_Fails(t *testing.T) {
	now := berlinNow(t) // 2026-08-22
	for _, date := range []string{"2026-08-22", "2026-08-01"} {
		_, err := Resolve(now, ReminderSpec{Title: "x", DayReference: DaySpecificDate, DateValue: date})
		if !errors.Is(err, ErrInvalidTimeSpec) {
			t.Fatalf("date %s without time must fail, got %v", date, err)
		}
	}
	// With an explicit future time the same day is fine.
	got, err := Resolve(now, ReminderSpec{Title: "x", DayReference: DaySpecificDate, DateValue: "2026-08-22", TimeOfDay: "22:00"})
	if err != nil {
		t.Fatalf("same-day date with future time: %v", err)
	}
	if local := got.In(now.Location()); local.Hour() != 22 {
		t.Fatalf("expected 22:00 local, got %v", local)
	}
}

func TestResolve_PastDateWithExplicitTime_Fails(t *testing.T) {
	now := berlinNow(t) // 2026-08-22 14:07:31
	cases := []ReminderSpec{
		{Title: "x", DayReference: DaySpecificDate, DateValue: "2026-08-21", TimeOfDay: "09:00"},
		{Title: "x", DayReference: DaySpecificDate, DateValue: "2026-08-22", TimeOfDay: "14:07"},
	}
	for _, spec := range cases {
		if _, err := Resolve(now, spec); !errors.Is(err, ErrInvalidTimeSpec) {
			t.Fatalf("date %s at %s must fail, got %v", spec.DateValue, spec.TimeOfDay, err)
		}
	}
}

func TestResolve_Weekday_NextOccurrenceStrictlyAhead(t *testing.T) {
	now := berlinNow(t) // Saturday; wire numbering 0=Monday makes Saturday 5.
	cases := []struct {
		weekday int
		day     int
	}{
		{0, 24}, // next Monday
		{6, 23}, // next Sunday is tomorrow
		{5, 29}, // same weekday rolls a full week ahead
	}
	for _, tc := range cases {
		got, err := Resolve(now, ReminderSpec{Title: "x", DayReference: DayWeekday, Weekday: intp(tc.weekday)})
		if err != nil {
			t.Fatalf("Resolve weekday=%d: %v", tc.weekday, err)
		}
		local := got.In(now.Location())
		if local.Day() != tc.day || local.Hour() != DefaultMorningHour {
			t.Fatalf("weekday=%d: expected day %d at 08:00, got %v", tc.weekday, tc.day, local)
		}
	}
}

func TestResolve_ReturnsUTC(t *testing.T) {
	now := berlinNow(t)
	got, err := Resolve(now, ReminderSpec{Title: "x", DayReference: DayTomorrow, TimeOfDay: "08:00"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC result, got %v", got.Location())
	}
	// 08:00 Berlin summer time is 06:00 UTC.
	if got.Hour() != 6 {
		t.Fatalf("expected 06:00 UTC, got %v", got)
	}
}
