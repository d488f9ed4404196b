package command

import (
	"fmt"
	"time"
)

// DefaultMorningHour is the clock hour assigned to future-day reminders that
// carry no explicit time.
const DefaultMorningHour = 8

// Resolve maps a reminder spec to a concrete absolute timestamp using the
// injected "now" (whose location is the chat's local zone). Default rules:
//
//   - run_at present: taken as-is (already absolute).
//   - today, no time: the next full hour strictly after now. 14:07 resolves
//     to 15:00, and 14:00:00 exactly also resolves to 15:00; the result is
//     never equal to now.
//   - any future day, no time: that day at 08:00 local.
//   - explicit time_of_day: combined directly with the resolved day, no
//     rounding. A "today" or dated request whose explicit time is not
//     strictly after now fails with ErrInvalidTimeSpec; it is surfaced as a
//     validation error, never silently shifted.
//
// The spec is assumed to be structurally valid (see Validate); Resolve is a
// pure function of its arguments.
func Resolve(now time.Time, spec ReminderSpec) (time.Time, error) {
	if spec.RunAt != nil {
		return spec.RunAt.UTC(), nil
	}

	loc := now.Location()

	day, err := resolveDay(now, spec)
	if err != nil {
		return time.Time{}, err
	}

	if spec.TimeOfDay != "" {
		clock, perr := time.Parse("15:04", spec.TimeOfDay)
		if perr != nil {
			return time.Time{}, invalid("time_of_day", "format", "time_of_day must be formatted as HH:MM")
		}
		at := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
		// "today" and dated specs can name a past instant; the relative day
		// references are always ahead of now.
		if (spec.DayReference == DayToday || spec.DayReference == DaySpecificDate) && !at.After(now) {
			return time.Time{}, fmt.Errorf("%w: %s is not in the future", ErrInvalidTimeSpec, at.Format("2006-01-02 15:04"))
		}
		return at.UTC(), nil
	}

	if spec.DayReference == DayToday {
		return nextFullHour(now).UTC(), nil
	}
	return time.Date(day.Year(), day.Month(), day.Day(), DefaultMorningHour, 0, 0, 0, loc).UTC(), nil
}

// resolveDay picks the calendar day a spec refers to, in now's location.
func resolveDay(now time.Time, spec ReminderSpec) (time.Time, error) {
	loc := now.Location()
	midnight := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}

	switch spec.DayReference {
	case DayToday:
		return midnight(now), nil
	case DayTomorrow:
		return midnight(now.AddDate(0, 0, 1)), nil
	case DayAfterTomorrow:
		return midnight(now.AddDate(0, 0, 2)), nil
	case DayWeekday:
		wd := 0
		if spec.Weekday != nil {
			wd = *spec.Weekday
		}
		return midnight(nextWeekday(now, wd)), nil
	case DaySpecificDate:
		d, err := time.ParseInLocation("2006-01-02", spec.DateValue, loc)
		if err != nil {
			return time.Time{}, invalid("date_value", "format", "date_value must be formatted as YYYY-MM-DD")
		}
		// Without an explicit time the default is 08:00, so a same-day or
		// past date cannot produce a guaranteed-future instant.
		if spec.TimeOfDay == "" && !d.After(midnight(now)) {
			return time.Time{}, fmt.Errorf("%w: date %s is not in the future", ErrInvalidTimeSpec, spec.DateValue)
		}
		return d, nil
	default:
		return time.Time{}, invalid("day_reference", "enum", "unsupported day reference")
	}
}

// nextFullHour returns the first exact hour strictly after t. Computed in
// t's location so zones with non-whole-hour offsets stay on local hour tops.
func nextFullHour(t time.Time) time.Time {
	top := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	return top.Add(time.Hour)
}

// nextWeekday returns the next occurrence of the given weekday strictly
// after base. Weekdays are numbered 0=Monday .. 6=Sunday on the wire.
func nextWeekday(base time.Time, weekday int) time.Time {
	// time.Weekday has Sunday=0; the wire format counts from Monday.
	current := (int(base.Weekday()) + 6) % 7
	ahead := (weekday - current + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return base.AddDate(0, 0, ahead)
}
