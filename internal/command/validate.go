package command

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleRunes caps reminder titles by rune length.
const MaxTitleRunes = 1000

// MaxLastN caps the count of a last-N delete.
const MaxLastN = 100

// Validate performs deterministic structural validation of a command before
// any side effect occurs. It returns nil or a *ValidationError whose field
// errors address every broken rule found. No database or network access
// happens here.
func Validate(cmd Command) error {
	var fields []FieldError

	switch c := cmd.(type) {
	case CreateCommand:
		fields = validateCreate(c)
	case ListCommand:
		fields = validateFilter(c.Filter, "")
	case DeleteCommand:
		fields = validateDelete(c)
	default:
		fields = []FieldError{{Field: "command", Rule: "enum", Message: "unsupported command kind"}}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateCreate(c CreateCommand) []FieldError {
	var out []FieldError

	if len(c.Reminders) == 0 {
		return append(out, FieldError{Field: "reminders", Rule: "min", Message: "at least one reminder spec is required"})
	}
	if len(c.Reminders) > MaxRemindersPerCreate {
		out = append(out, FieldError{
			Field: "reminders", Rule: "max",
			Message: fmt.Sprintf("at most %d reminder specs per command", MaxRemindersPerCreate),
		})
	}

	for i, spec := range c.Reminders {
		out = append(out, validateSpec(spec, fmt.Sprintf("reminders[%d]", i))...)
	}
	return out
}

func validateSpec(spec ReminderSpec, prefix string) []FieldError {
	var out []FieldError
	field := func(name string) string { return prefix + "." + name }

	if strings.TrimSpace(spec.Title) == "" {
		out = append(out, FieldError{Field: field("text"), Rule: "required", Message: "title must not be empty"})
	}
	if utf8.RuneCountInString(spec.Title) > MaxTitleRunes {
		out = append(out, FieldError{
			Field: field("text"), Rule: "max",
			Message: fmt.Sprintf("title must be at most %d characters", MaxTitleRunes),
		})
	}

	if spec.RunAt == nil && spec.DayReference == "" {
		out = append(out, FieldError{
			Field: field("day_reference"), Rule: "required",
			Message: "either run_at or day_reference must be provided",
		})
	}

	switch spec.DayReference {
	case "", DayToday, DayTomorrow, DayAfterTomorrow:
	case DayWeekday:
		if spec.Weekday == nil {
			out = append(out, FieldError{
				Field: field("weekday"), Rule: "required",
				Message: "weekday is required when day_reference=weekday",
			})
		}
	case DaySpecificDate:
		if spec.DateValue == "" {
			out = append(out, FieldError{
				Field: field("date_value"), Rule: "required",
				Message: "date_value is required when day_reference=specific_date",
			})
		}
	default:
		out = append(out, FieldError{
			Field: field("day_reference"), Rule: "enum",
			Message: fmt.Sprintf("unknown day reference %q", spec.DayReference),
		})
	}

	if spec.Weekday != nil {
		if spec.DayReference != DayWeekday {
			out = append(out, FieldError{
				Field: field("weekday"), Rule: "forbidden",
				Message: "weekday is only allowed when day_reference=weekday",
			})
		} else if *spec.Weekday < 0 || *spec.Weekday > 6 {
			out = append(out, FieldError{
				Field: field("weekday"), Rule: "range",
				Message: "weekday must be between 0 (Monday) and 6 (Sunday)",
			})
		}
	}

	if spec.DateValue != "" {
		if spec.DayReference != DaySpecificDate {
			out = append(out, FieldError{
				Field: field("date_value"), Rule: "forbidden",
				Message: "date_value is only allowed when day_reference=specific_date",
			})
		} else if _, err := time.Parse("2006-01-02", spec.DateValue); err != nil {
			out = append(out, FieldError{
				Field: field("date_value"), Rule: "format",
				Message: "date_value must be formatted as YYYY-MM-DD",
			})
		}
	}

	if spec.TimeOfDay != "" {
		if _, err := time.Parse("15:04", spec.TimeOfDay); err != nil {
			out = append(out, FieldError{
				Field: field("time_of_day"), Rule: "format",
				Message: "time_of_day must be formatted as HH:MM",
			})
		}
	}

	if spec.RecurrenceRule != "" {
		if _, err := ParseRule(spec.RecurrenceRule); err != nil {
			out = append(out, FieldError{
				Field: field("recurrence_rule"), Rule: "format",
				Message: err.Error(),
			})
		}
	}

	return out
}

func validateFilter(f Filter, prefix string) []FieldError {
	var out []FieldError
	field := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "." + name
	}

	switch f.Mode {
	case "", ListModeAll, ListModeToday, ListModeStatus, ListModeSearch, ListModeRange:
	default:
		out = append(out, FieldError{
			Field: field("mode"), Rule: "enum",
			Message: fmt.Sprintf("unknown filter mode %q", f.Mode),
		})
	}

	switch f.Status {
	case "", "pending", "sent", "cancelled":
	default:
		out = append(out, FieldError{
			Field: field("status"), Rule: "enum",
			Message: fmt.Sprintf("unknown status %q", f.Status),
		})
	}

	if f.Mode == ListModeStatus && f.Status == "" {
		out = append(out, FieldError{
			Field: field("status"), Rule: "required",
			Message: "status is required when mode=status",
		})
	}
	if f.Mode == ListModeSearch && strings.TrimSpace(f.Search) == "" {
		out = append(out, FieldError{
			Field: field("search_text"), Rule: "required",
			Message: "search_text is required when mode=search",
		})
	}
	if f.Mode == ListModeRange && f.From == nil && f.To == nil {
		out = append(out, FieldError{
			Field: field("from_dt"), Rule: "required",
			Message: "range mode requires from_dt or to_dt",
		})
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		out = append(out, FieldError{
			Field: field("from_dt"), Rule: "range",
			Message: "from_dt must be before to_dt",
		})
	}

	return out
}

func validateDelete(c DeleteCommand) []FieldError {
	out := validateFilter(c.Filter, "")

	switch c.DeleteMode {
	case "", DeleteModeFilter:
	case DeleteModeLastN:
		if c.LastN < 1 {
			out = append(out, FieldError{
				Field: "last_n", Rule: "required",
				Message: "last_n must be a positive count when delete_mode=last_n",
			})
		} else if c.LastN > MaxLastN {
			out = append(out, FieldError{
				Field: "last_n", Rule: "max",
				Message: fmt.Sprintf("last_n must be at most %d", MaxLastN),
			})
		}
	default:
		out = append(out, FieldError{
			Field: "delete_mode", Rule: "enum",
			Message: fmt.Sprintf("unknown delete mode %q", c.DeleteMode),
		})
	}

	return out
}
