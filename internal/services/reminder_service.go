// This file implements the reminder lifecycle: atomic batch creation with
// deterministic time resolution, bounded recurrence expansion, hidden
// heads-up rows, filtered listing, and guarded deletion. The service owns
// the semantics; persistence stays in the repo package.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/remindbot/go-reminder-backend/internal/command"
	"github.com/remindbot/go-reminder-backend/internal/domain"
	"github.com/remindbot/go-reminder-backend/internal/repo"
)

// ReminderService executes create, list, and delete commands for one chat
// at a time. Loc is the chat-local zone used to resolve relative dates.
type ReminderService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Loc is the local time zone reminders are phrased in.
	Loc *time.Location

	// Now is injectable for tests and defaults to time.Now.
	Now func() time.Time

	Log zerolog.Logger
}

func (s *ReminderService) now() time.Time {
	if s.Now != nil {
		return s.Now().In(s.Loc)
	}
	return time.Now().In(s.Loc)
}

// CreateFromCommand materializes every spec of a create command in one
// transaction. Time resolution failures abort the whole batch: either all
// reminders exist afterwards or none do. Recurring specs expand into a
// bounded horizon of occurrences linked to a series row; reminders due
// tomorrow or later additionally get a hidden heads-up row one hour ahead.
//
// The returned slice contains only the visible rows, in creation order.
func (s *ReminderService) CreateFromCommand(ctx context.Context, chatID int64, cmd command.CreateCommand) ([]domain.Reminder, error) {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, "CreateFromCommand",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int("specs", len(cmd.Reminders)),
		),
	)
	defer span.End()

	now := s.now()

	var (
		series  []domain.ReminderSeries
		rows    []domain.Reminder
		visible []domain.Reminder
	)

	for _, spec := range cmd.Reminders {
		due, err := command.Resolve(now, spec)
		if err != nil {
			return nil, err
		}

		if spec.RecurrenceRule == "" {
			main := s.buildRow(chatID, spec.Title, due, nil, nil)
			rows = append(rows, main)
			visible = append(visible, main)
			rows = append(rows, s.headsUpRows(chatID, main, now)...)
			continue
		}

		rule, err := command.ParseRule(spec.RecurrenceRule)
		if err != nil {
			return nil, err
		}
		// An end date at or before the first occurrence would leave the
		// series empty the moment it starts.
		if rule.Until != nil && !rule.Until.After(due) {
			return nil, &command.ValidationError{Fields: []command.FieldError{{
				Field:   "recurrence_rule",
				Rule:    "until_after_first",
				Message: "UNTIL must be after the first occurrence",
			}}}
		}
		sr := domain.ReminderSeries{
			ID:             uuid.NewString(),
			ChatID:         chatID,
			SourceTitle:    spec.Title,
			RecurrenceRule: rule.String(),
			CreatedAt:      now.UTC(),
			UpdatedAt:      now.UTC(),
		}
		series = append(series, sr)

		ruleStr := rule.String()
		for _, at := range rule.Expand(due) {
			occ := s.buildRow(chatID, spec.Title, at, &ruleStr, &sr.ID)
			rows = append(rows, occ)
			visible = append(visible, occ)
			rows = append(rows, s.headsUpRows(chatID, occ, now)...)
		}
	}

	if err := repo.CreateReminders(ctx, s.DB, series, rows); err != nil {
		return nil, err
	}

	s.Log.Info().
		Int64("chat_id", chatID).
		Int("visible", len(visible)).
		Int("series", len(series)).
		Msg("reminders created")
	return visible, nil
}

func (s *ReminderService) buildRow(chatID int64, title string, due time.Time, rule, seriesID *string) domain.Reminder {
	now := s.now().UTC()
	return domain.Reminder{
		ID:             uuid.NewString(),
		ChatID:         chatID,
		Title:          title,
		DueAt:          due.UTC(),
		Status:         domain.StatusPending,
		RecurrenceRule: rule,
		SeriesID:       seriesID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// headsUpRows returns the hidden pre-reminder for main, or nothing when the
// reminder is due today (a same-day heads-up would be noise, and could even
// land in the past).
func (s *ReminderService) headsUpRows(chatID int64, main domain.Reminder, now time.Time) []domain.Reminder {
	dueLocal := main.DueAt.In(s.Loc)
	y, m, d := now.Date()
	endOfToday := time.Date(y, m, d, 0, 0, 0, 0, s.Loc).AddDate(0, 0, 1)
	if dueLocal.Before(endOfToday) {
		return nil
	}
	return []domain.Reminder{
		s.buildRow(chatID, domain.PreReminderTitle(main.ID), main.DueAt.Add(-domain.PreReminderLead), nil, nil),
	}
}

// List returns the chat's reminders matching a list command, due soonest
// first. The "today" mode covers the current local calendar day.
func (s *ReminderService) List(ctx context.Context, chatID int64, cmd command.ListCommand) ([]domain.Reminder, error) {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.String("filter.mode", cmd.Filter.Mode),
		),
	)
	defer span.End()

	return repo.ListReminders(ctx, s.DB, chatID, s.resolveFilter(cmd.Filter))
}

func (s *ReminderService) resolveFilter(f command.Filter) repo.ReminderFilter {
	out := repo.ReminderFilter{
		Status: f.Status,
		Search: f.Search,
		From:   f.From,
		To:     f.To,
	}
	if f.Mode == command.ListModeToday {
		now := s.now()
		y, m, d := now.Date()
		from := time.Date(y, m, d, 0, 0, 0, 0, s.Loc)
		to := from.AddDate(0, 0, 1)
		out.From, out.To = &from, &to
	}
	return out
}

// DeleteFromCommand removes reminders per the delete command and returns
// how many were removed. Selection and removal run in one transaction, so a
// concurrent create cannot change the matched set between read and delete.
//
// Fail-safe rules:
//   - A filter-mode delete with an empty filter only proceeds when
//     confirm_delete_all is set; otherwise ErrDeleteAllNeedsConfirm.
//   - last_n deletes the newest reminders matching the filter; when fewer
//     than n match, the available subset is deleted and its size returned.
//   - Zero matches yield ErrNothingToDelete so the user gets told nothing
//     happened instead of a fake success.
func (s *ReminderService) DeleteFromCommand(ctx context.Context, chatID int64, cmd command.DeleteCommand) (int64, error) {
	tr := otel.Tracer("services/ReminderService")
	ctx, span := tr.Start(ctx, "DeleteFromCommand",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.String("delete.mode", cmd.DeleteMode),
		),
	)
	defer span.End()

	if cmd.DeleteMode != command.DeleteModeLastN && cmd.Filter.IsEmpty() && !cmd.ConfirmDeleteAll {
		return 0, ErrDeleteAllNeedsConfirm
	}

	var deleted int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			targets []domain.Reminder
			err     error
		)
		switch cmd.DeleteMode {
		case command.DeleteModeLastN:
			targets, err = repo.LastCreatedReminders(ctx, tx, chatID, cmd.LastN, s.resolveFilter(cmd.Filter))
		default:
			targets, err = repo.ListReminders(ctx, tx, chatID, s.resolveFilter(cmd.Filter))
		}
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return ErrNothingToDelete
		}

		ids := make([]string, 0, len(targets))
		for _, r := range targets {
			ids = append(ids, r.ID)
		}
		deleted, err = repo.DeleteReminders(ctx, tx, chatID, ids)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.Log.Info().
		Int64("chat_id", chatID).
		Int64("deleted", deleted).
		Msg("reminders deleted")
	return deleted, nil
}

// StatusCounts returns how many visible reminders the chat has per status.
func (s *ReminderService) StatusCounts(ctx context.Context, chatID int64) (map[string]int64, error) {
	return repo.CountRemindersByStatus(ctx, s.DB, chatID)
}
