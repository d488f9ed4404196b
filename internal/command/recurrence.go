package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency is the repeat unit of a recurrence rule.
type Frequency string

// Supported frequencies.
const (
	FreqHourly  Frequency = "HOURLY"
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
)

// defaultExpansion bounds how many occurrences a create command materializes
// up front per frequency; the dispatcher respawns further ones on delivery.
var defaultExpansion = map[Frequency]int{
	FreqHourly:  24,
	FreqDaily:   7,
	FreqWeekly:  4,
	FreqMonthly: 12,
}

// Rule is a parsed recurrence specification: frequency, interval, and an
// optional end condition (maximum occurrence count or end date).
type Rule struct {
	Freq     Frequency
	Interval int
	Count    int        // 0 = unbounded
	Until    *time.Time // nil = unbounded
}

// String renders the rule back to its canonical wire form.
func (r Rule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "FREQ=%s", r.Freq)
	if r.Interval > 1 {
		fmt.Fprintf(&b, ";INTERVAL=%d", r.Interval)
	}
	if r.Count > 0 {
		fmt.Fprintf(&b, ";COUNT=%d", r.Count)
	}
	if r.Until != nil {
		fmt.Fprintf(&b, ";UNTIL=%s", r.Until.UTC().Format("20060102T150405Z"))
	}
	return b.String()
}

// ParseRule parses an "FREQ=DAILY;INTERVAL=2;COUNT=5" style rule string.
// Interval defaults to 1 and must be positive; COUNT, when present, must be
// at least 1; UNTIL, when present, must parse as an RRULE UTC timestamp.
// COUNT and UNTIL are mutually exclusive.
func ParseRule(s string) (Rule, error) {
	parts := map[string]string{}
	for _, token := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		parts[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}

	rule := Rule{Interval: 1}

	switch Frequency(parts["FREQ"]) {
	case FreqHourly, FreqDaily, FreqWeekly, FreqMonthly:
		rule.Freq = Frequency(parts["FREQ"])
	case "":
		return Rule{}, errors.New("recurrence rule must carry FREQ")
	default:
		return Rule{}, fmt.Errorf("unsupported recurrence frequency %q", parts["FREQ"])
	}

	if raw, ok := parts["INTERVAL"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Rule{}, errors.New("recurrence INTERVAL must be a positive integer")
		}
		rule.Interval = n
	}

	if raw, ok := parts["COUNT"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Rule{}, errors.New("recurrence COUNT must be at least 1")
		}
		rule.Count = n
	}

	if raw, ok := parts["UNTIL"]; ok {
		t, err := time.Parse("20060102T150405Z", raw)
		if err != nil {
			return Rule{}, errors.New("recurrence UNTIL must be formatted as YYYYMMDDTHHMMSSZ")
		}
		rule.Until = &t
	}

	if rule.Count > 0 && rule.Until != nil {
		return Rule{}, errors.New("recurrence COUNT and UNTIL are mutually exclusive")
	}

	return rule, nil
}

// Step advances one interval from the given occurrence. Monthly stepping
// clamps to the last day of shorter months (Jan 31 + 1 month = Feb 28/29).
func (r Rule) Step(from time.Time) time.Time {
	switch r.Freq {
	case FreqHourly:
		return from.Add(time.Duration(r.Interval) * time.Hour)
	case FreqDaily:
		return from.AddDate(0, 0, r.Interval)
	case FreqWeekly:
		return from.AddDate(0, 0, 7*r.Interval)
	case FreqMonthly:
		return addMonthsClamped(from, r.Interval)
	default:
		return from
	}
}

// NextOccurrence computes the next due time after lastDue that is strictly
// after now, stepping over occurrences missed during downtime. It is a pure
// function: the same (rule, lastDue, now) always yields the same result, so
// at-least-once delivery of a "fired" event never double-spawns.
//
// The second return is false when the rule's UNTIL bound stops the series.
// COUNT bounds are enforced by the caller, which knows how many occurrences
// the series has produced.
func (r Rule) NextOccurrence(lastDue, now time.Time) (time.Time, bool) {
	next := r.Step(lastDue)
	for !next.After(now) {
		next = r.Step(next)
	}
	if r.Until != nil && next.After(*r.Until) {
		return time.Time{}, false
	}
	return next, true
}

// Expand materializes the bounded up-front horizon of occurrences starting
// at first: the per-frequency default count, tightened by COUNT and cut off
// at UNTIL. The result always contains at least the first occurrence and is
// strictly increasing.
func (r Rule) Expand(first time.Time) []time.Time {
	target := defaultExpansion[r.Freq]
	if target < 1 {
		target = 1
	}
	if r.Count > 0 && r.Count < target {
		target = r.Count
	}

	runs := []time.Time{first}
	for len(runs) < target {
		next := r.Step(runs[len(runs)-1])
		if r.Until != nil && next.After(*r.Until) {
			break
		}
		runs = append(runs, next)
	}
	return runs
}

// addMonthsClamped adds months keeping the day-of-month when possible and
// clamping to the target month's last day otherwise. AddDate would normalize
// Jan 31 + 1 month into Mar 2/3, which is not what a monthly reminder means.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	ny := y + total/12
	nm := time.Month(total%12 + 1)
	if total < 0 {
		// Go's integer division truncates toward zero; renormalize.
		ny = y + (total-11)/12
		nm = time.Month((total%12+12)%12 + 1)
	}
	if last := daysIn(ny, nm); d > last {
		d = last
	}
	h, min, sec := t.Clock()
	return time.Date(ny, nm, d, h, min, sec, t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
