// Package command defines the structured commands the language model is
// allowed to produce, their JSON wire format, structural validation, and the
// deterministic time-resolution and recurrence rules used to turn an
// under-specified command into concrete due times.
//
// Everything in this package is pure: no clock, no database, no network.
// Callers inject "now" explicitly, which keeps the whole layer unit-testable
// and guarantees that a command, once validated, fully determines its
// execution.
package command

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the command union on the wire.
type Kind string

// Command kinds the model may emit.
const (
	KindCreate Kind = "create_reminders"
	KindList   Kind = "list_reminders"
	KindDelete Kind = "delete_reminders"
)

// DayReference names the day a reminder spec targets when no absolute
// timestamp is given.
type DayReference string

// Supported day references.
const (
	DayToday            DayReference = "today"
	DayTomorrow         DayReference = "tomorrow"
	DayAfterTomorrow    DayReference = "day_after_tomorrow"
	DayWeekday          DayReference = "weekday"
	DaySpecificDate     DayReference = "specific_date"
)

// List / delete filter modes (wire tokens follow the original contract).
const (
	ListModeAll    = "all"
	ListModeToday  = "today"
	ListModeStatus = "status"
	ListModeSearch = "search"
	ListModeRange  = "range"

	DeleteModeFilter = "filter"
	DeleteModeLastN  = "last_n"
)

// MaxRemindersPerCreate caps the batch size of one create command.
const MaxRemindersPerCreate = 30

// ReminderSpec is a single reminder inside a create command. Exactly one of
// RunAt or DayReference must be present; TimeOfDay refines a day reference
// with an explicit "HH:MM" clock time.
type ReminderSpec struct {
	Title          string       `json:"text"`
	RunAt          *time.Time   `json:"run_at,omitempty"`
	DayReference   DayReference `json:"day_reference,omitempty"`
	Weekday        *int         `json:"weekday,omitempty"` // 0=Monday .. 6=Sunday
	DateValue      string       `json:"date_value,omitempty"` // "2006-01-02"
	TimeOfDay      string       `json:"time_of_day,omitempty"` // "15:04"
	RecurrenceRule string       `json:"recurrence_rule,omitempty"`
}

// CreateCommand asks for one or more reminders to be created atomically.
type CreateCommand struct {
	Reminders []ReminderSpec `json:"reminders"`
}

// Kind implements Command.
func (CreateCommand) Kind() Kind { return KindCreate }

// Filter is the shared selection shape of list and delete commands.
type Filter struct {
	Mode   string     `json:"mode,omitempty"`
	Status string     `json:"status,omitempty"`
	Search string     `json:"search_text,omitempty"`
	From   *time.Time `json:"from_dt,omitempty"`
	To     *time.Time `json:"to_dt,omitempty"`
}

// IsEmpty reports whether the filter selects by nothing at all.
func (f Filter) IsEmpty() bool {
	return f.Status == "" && f.Search == "" && f.From == nil && f.To == nil
}

// ListCommand asks for a filtered listing of reminders.
type ListCommand struct {
	Filter
}

// Kind implements Command.
func (ListCommand) Kind() Kind { return KindList }

// DeleteCommand removes reminders either by filter or by "last N created".
// ConfirmDeleteAll must be set explicitly for an unfiltered filter-mode
// delete; otherwise the command is a guarded no-op.
type DeleteCommand struct {
	Filter
	DeleteMode       string `json:"delete_mode,omitempty"`
	LastN            int    `json:"last_n,omitempty"`
	ConfirmDeleteAll bool   `json:"confirm_delete_all,omitempty"`
}

// Kind implements Command.
func (DeleteCommand) Kind() Kind { return KindDelete }

// Command is the tagged union of everything the model may ask for. The
// concrete types are CreateCommand, ListCommand, and DeleteCommand; switch
// on the type (or Kind()) and handle all three.
type Command interface {
	Kind() Kind
}

// envelope carries the discriminator on the wire.
type envelope struct {
	Command Kind `json:"command"`
}

// Decode parses raw JSON into a validated Command. Output that is not valid
// JSON, carries an unknown kind, or fails structural validation is rejected
// with a *ValidationError; the caller treats it as untrusted input regardless
// of how it was produced.
func Decode(raw []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, invalid("command", "json", "payload is not valid JSON")
	}

	switch env.Command {
	case KindCreate:
		var c CreateCommand
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, invalid("reminders", "json", "malformed create payload")
		}
		if err := Validate(c); err != nil {
			return nil, err
		}
		return c, nil
	case KindList:
		var c ListCommand
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, invalid("filter", "json", "malformed list payload")
		}
		if err := Validate(c); err != nil {
			return nil, err
		}
		return c, nil
	case KindDelete:
		var c DeleteCommand
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, invalid("filter", "json", "malformed delete payload")
		}
		if err := Validate(c); err != nil {
			return nil, err
		}
		return c, nil
	case "":
		return nil, invalid("command", "required", "missing command discriminator")
	default:
		return nil, invalid("command", "enum", fmt.Sprintf("unknown command %q", env.Command))
	}
}

// DecodeString is a convenience wrapper over Decode for raw model output.
func DecodeString(raw string) (Command, error) {
	return Decode([]byte(strings.TrimSpace(raw)))
}
