package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/dateparse"
	"remindbot/internal/store"
	logx "remindbot/pkg/logx"
)

// Scheduler is the slice of the firing engine the dialogue needs.
type Scheduler interface {
	ScheduleSingle(ctx context.Context, recipient, message string, at time.Time) (store.Reminder, error)
	ScheduleLeadSequence(ctx context.Context, recipient, message string, target time.Time) ([]store.Reminder, error)
	ListActive(ctx context.Context, recipient string) ([]store.Reminder, error)
}

const (
	replyWelcome = "Hi! I can schedule reminders for you.\n" +
		"- \"remind\" starts a step-by-step reminder\n" +
		"- \"remind me at HH:MM your message\" sets one for today\n" +
		"- \"list\" shows your upcoming reminders\n" +
		"- \"cancel\" aborts at any point"
	replyCanceled    = "Okay, canceled. Nothing was scheduled."
	replyAskDate     = "What date? You can say e.g. \"26/8\", \"26/08/2025\", \"26 Aug 2025\" or \"Aug 26\"."
	replyBadDate     = "Sorry, I couldn't read that date. Try \"26/08/2025\", \"26 Aug 2025\" or \"Aug 26\"."
	replyBadTime     = "Sorry, I couldn't read that time. Use HH:MM, e.g. \"09:30\" or \"14h00\"."
	replyNeedMessage = "The reminder text can't be empty — what should I remind you about?"
	replyQuickUsage  = "Invalid format. Use: remind me at HH:MM Your message"
	replyStoreDown   = "Something went wrong saving your reminder. Please try again in a moment."
)

// Engine routes each inbound text through the recipient's session state and
// produces the reply text.
type Engine struct {
	sched Scheduler
	log   logx.Logger
	now   func() time.Time

	sessions *sessions
}

func New(sched Scheduler, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		sched:    sched,
		log:      log,
		now:      time.Now,
		sessions: newSessions(),
	}
}

// Handle processes one inbound message and returns the reply. Every input in
// every state gets an answer; nothing is silently dropped.
func (e *Engine) Handle(ctx context.Context, recipient, text string) string {
	sess := e.sessions.get(recipient)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	input := strings.TrimSpace(text)
	lower := strings.ToLower(input)

	// "cancel" wins from any state.
	if lower == "cancel" {
		sess.reset()
		return replyCanceled
	}

	switch sess.state {
	case StateAwaitingDate:
		return e.handleDate(sess, input)
	case StateAwaitingTime:
		return e.handleTime(sess, input)
	case StateAwaitingMessage:
		return e.handleMessage(ctx, sess, recipient, input)
	default:
		return e.handleInitial(ctx, sess, recipient, input, lower)
	}
}

func (e *Engine) handleInitial(ctx context.Context, sess *session, recipient, input, lower string) string {
	switch lower {
	case "remind", "set reminder", "set a reminder":
		sess.reset()
		sess.state = StateAwaitingDate
		return replyAskDate
	case "list", "list reminders", "my reminders":
		return e.listReminders(ctx, recipient)
	}

	if strings.HasPrefix(lower, "remind me at") {
		return e.handleQuick(ctx, recipient, input)
	}

	return replyWelcome
}

// handleQuick implements the legacy one-shot format "remind me at HH:MM text".
// A time already past today rolls to tomorrow.
func (e *Engine) handleQuick(ctx context.Context, recipient, input string) string {
	parts := strings.SplitN(input, " ", 5)
	if len(parts) < 5 {
		return replyQuickUsage
	}
	hour, min, ok := dateparse.ParseClock(parts[3])
	if !ok {
		return replyQuickUsage
	}
	message := strings.TrimSpace(parts[4])
	if message == "" || len(message) > store.MaxMessageLen {
		return replyQuickUsage
	}

	now := e.now()
	fireAt := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())
	if !fireAt.After(now) {
		fireAt = fireAt.AddDate(0, 0, 1)
	}

	r, err := e.sched.ScheduleSingle(ctx, recipient, message, fireAt)
	if err != nil {
		e.log.Error("quick reminder not scheduled", logx.String("recipient", recipient), logx.Err(err))
		return replyStoreDown
	}
	return fmt.Sprintf("Okay, I'll remind you at %s %s ✅", r.FireAt.Format("15:04"), r.Message)
}

func (e *Engine) handleDate(sess *session, input string) string {
	d, ok := dateparse.ParseDate(input, e.now())
	if !ok {
		return replyBadDate
	}
	sess.date = d
	sess.hasDate = true
	sess.state = StateAwaitingTime
	return fmt.Sprintf("Got it — %s. What time? (HH:MM)", d)
}

func (e *Engine) handleTime(sess *session, input string) string {
	hour, min, ok := dateparse.ParseClock(input)
	if !ok {
		return replyBadTime
	}
	sess.hour, sess.minute = hour, min
	sess.hasTime = true
	sess.state = StateAwaitingMessage
	return fmt.Sprintf("%s at %02d:%02d — and what should the reminder say?", sess.date, hour, min)
}

func (e *Engine) handleMessage(ctx context.Context, sess *session, recipient, input string) string {
	if !sess.hasDate || !sess.hasTime {
		// Should be unreachable; recover rather than schedule garbage.
		sess.reset()
		return replyWelcome
	}
	if input == "" {
		return replyNeedMessage
	}
	if len(input) > store.MaxMessageLen {
		return fmt.Sprintf("That message is too long (max %d characters) — try a shorter one.", store.MaxMessageLen)
	}

	target := sess.date.At(sess.hour, sess.minute, e.now().Location())
	scheduled, err := e.sched.ScheduleLeadSequence(ctx, recipient, input, target)
	if err != nil {
		e.log.Error("lead sequence not scheduled", logx.String("recipient", recipient), logx.Err(err))
		sess.reset()
		return replyStoreDown
	}
	sess.reset()

	var b strings.Builder
	b.WriteString("Scheduled! I'll remind you:")
	for _, r := range scheduled {
		fmt.Fprintf(&b, "\n- %s — %s", r.FireAt.Format("Mon, 02 Jan 2006 15:04"), r.Message)
	}
	return b.String()
}

func (e *Engine) listReminders(ctx context.Context, recipient string) string {
	rows, err := e.sched.ListActive(ctx, recipient)
	if err != nil {
		e.log.Error("list reminders failed", logx.String("recipient", recipient), logx.Err(err))
		return replyStoreDown
	}
	if len(rows) == 0 {
		return "You have no upcoming reminders."
	}
	var b strings.Builder
	b.WriteString("Your upcoming reminders:")
	for i, r := range rows {
		fmt.Fprintf(&b, "\n%d. %s — %s", i+1, r.FireAt.Format("Mon, 02 Jan 2006 15:04"), r.Message)
	}
	return b.String()
}
