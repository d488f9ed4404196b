// This file wires one incoming chat message end to end: guarded LLM
// invocation, command execution against the reminder service, and the
// user-facing reply. All error classes terminate in a reply; the webhook
// handler never sees a raw pipeline error.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/remindbot/go-reminder-backend/internal/command"
	"github.com/remindbot/go-reminder-backend/internal/domain"
	"github.com/remindbot/go-reminder-backend/internal/guard"
)

// CommandBuilder turns a raw user message into a validated command. The
// production implementation is llm.Invoker.
type CommandBuilder interface {
	BuildCommand(ctx context.Context, chatID int64, userText string, now time.Time) (command.Command, []guard.BudgetAlert, error)
}

// Pipeline executes one chat message. AdminChatID, when non-zero, receives
// budget threshold alerts.
type Pipeline struct {
	Builder   CommandBuilder
	Reminders *ReminderService
	Sender    MessageSender

	AdminChatID int64
	Loc         *time.Location

	// Now is injectable for tests and defaults to time.Now.
	Now func() time.Time

	Log zerolog.Logger
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// HandleMessage runs the full pipeline for one message and returns the
// reply to send back to the chat.
func (p *Pipeline) HandleMessage(ctx context.Context, chatID int64, text string) string {
	tr := otel.Tracer("services/Pipeline")
	ctx, span := tr.Start(ctx, "HandleMessage",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	cmd, alerts, err := p.Builder.BuildCommand(ctx, chatID, text, p.now())
	p.forwardAlerts(ctx, alerts)
	if err != nil {
		return p.replyForError(chatID, err)
	}

	switch c := cmd.(type) {
	case command.CreateCommand:
		created, err := p.Reminders.CreateFromCommand(ctx, chatID, c)
		if err != nil {
			return p.replyForError(chatID, err)
		}
		return p.renderCreated(created)
	case command.ListCommand:
		items, err := p.Reminders.List(ctx, chatID, c)
		if err != nil {
			return p.replyForError(chatID, err)
		}
		return p.renderList(items)
	case command.DeleteCommand:
		deleted, err := p.Reminders.DeleteFromCommand(ctx, chatID, c)
		if err != nil {
			return p.replyForError(chatID, err)
		}
		return fmt.Sprintf("Deleted %d reminder(s).", deleted)
	default:
		p.Log.Error().Str("kind", string(cmd.Kind())).Msg("unhandled command kind")
		return "Sorry, I could not process that request."
	}
}

func (p *Pipeline) forwardAlerts(ctx context.Context, alerts []guard.BudgetAlert) {
	if p.AdminChatID == 0 {
		return
	}
	for _, a := range alerts {
		if err := p.Sender.SendMessage(ctx, p.AdminChatID, a.String()); err != nil {
			p.Log.Warn().Err(err).Int("threshold_pct", a.Threshold).Msg("budget alert delivery failed")
		}
	}
}

// replyForError maps every pipeline error class to a reply. Unknown errors
// are logged and answered generically; nothing internal leaks to the chat.
func (p *Pipeline) replyForError(chatID int64, err error) string {
	switch {
	case errors.Is(err, guard.ErrRateLimited):
		return "You are sending requests too quickly. Please wait a moment and try again."
	case errors.Is(err, guard.ErrCircuitOpen):
		return "The assistant is temporarily unavailable. Please try again in a minute."
	case errors.Is(err, guard.ErrBudgetExceeded):
		return "The assistant's monthly usage limit is reached. Reminders already scheduled will still fire."
	case errors.Is(err, ErrDeleteAllNeedsConfirm):
		return "That would delete ALL of your reminders. If you are sure, say so explicitly."
	case errors.Is(err, ErrNothingToDelete):
		return "Nothing matched that request, so no reminders were deleted."
	case command.IsValidation(err):
		return "I could not turn that into a valid reminder request. Try including what to remind and when, like \"remind me tomorrow at 9:00 to call mom\"."
	default:
		p.Log.Error().Err(err).Int64("chat_id", chatID).Msg("command pipeline failed")
		return "Something went wrong on my side. Please try again later."
	}
}

func (p *Pipeline) renderCreated(created []domain.Reminder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scheduled %d reminder(s):\n", len(created))
	for _, r := range created {
		fmt.Fprintf(&b, "• %s — %s\n", r.Title, p.formatDue(r.DueAt))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Pipeline) renderList(items []domain.Reminder) string {
	if len(items) == 0 {
		return "You have no reminders matching that."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your reminders (%d):\n", len(items))
	for _, r := range items {
		fmt.Fprintf(&b, "• %s — %s [%s]\n", r.Title, p.formatDue(r.DueAt), r.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Pipeline) formatDue(at time.Time) string {
	return at.In(p.Loc).Format("Mon, 02 Jan 2006 15:04")
}
