package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"remindbot/internal/scheduler"
	"remindbot/internal/store"
	"remindbot/pkg/logx"
)

// fakeSched records scheduling calls and answers with deterministic rows.
type fakeSched struct {
	singles []store.Reminder
	seqs    [][]store.Reminder
	active  []store.Reminder
	err     error

	lastTarget time.Time
	now        time.Time
}

func (f *fakeSched) ScheduleSingle(_ context.Context, recipient, message string, at time.Time) (store.Reminder, error) {
	if f.err != nil {
		return store.Reminder{}, f.err
	}
	r := store.Reminder{ID: "s-1", Recipient: recipient, Message: message, FireAt: at, Kind: store.KindSingle, Status: store.StatusActive}
	f.singles = append(f.singles, r)
	return r, nil
}

func (f *fakeSched) ScheduleLeadSequence(_ context.Context, recipient, message string, target time.Time) ([]store.Reminder, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastTarget = target
	plan := scheduler.PlanLeadSequence(f.now, target, message)
	var out []store.Reminder
	for _, p := range plan {
		out = append(out, store.Reminder{Recipient: recipient, Message: p.Message, FireAt: p.FireAt, Kind: store.KindLead, Status: store.StatusActive})
	}
	f.seqs = append(f.seqs, out)
	return out, nil
}

func (f *fakeSched) ListActive(_ context.Context, _ string) ([]store.Reminder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.active, nil
}

func newTestEngine(now time.Time) (*Engine, *fakeSched) {
	fs := &fakeSched{now: now}
	e := New(fs, logx.Nop())
	e.now = func() time.Time { return now }
	return e, fs
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.Local)
}

func TestUnknownInputGetsWelcome(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(at(2025, time.August, 16, 10, 0))
	got := e.Handle(context.Background(), "+1", "hello there")
	if got != replyWelcome {
		t.Fatalf("reply = %q, want the welcome text", got)
	}
}

func TestQuickReminderSameDay(t *testing.T) {
	t.Parallel()
	now := at(2025, time.August, 16, 10, 0)
	e, fs := newTestEngine(now)

	got := e.Handle(context.Background(), "+1", "remind me at 15:30 call the dentist")
	want := "Okay, I'll remind you at 15:30 call the dentist ✅"
	if got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
	if len(fs.singles) != 1 {
		t.Fatalf("scheduled %d singles, want 1", len(fs.singles))
	}
	wantAt := at(2025, time.August, 16, 15, 30)
	if !fs.singles[0].FireAt.Equal(wantAt) {
		t.Fatalf("fire at %s, want %s", fs.singles[0].FireAt, wantAt)
	}
}

func TestQuickReminderRollsToTomorrow(t *testing.T) {
	t.Parallel()
	now := at(2025, time.August, 16, 18, 0)
	e, fs := newTestEngine(now)

	e.Handle(context.Background(), "+1", "remind me at 09:00 standup")
	if len(fs.singles) != 1 {
		t.Fatalf("scheduled %d singles, want 1", len(fs.singles))
	}
	wantAt := at(2025, time.August, 17, 9, 0)
	if !fs.singles[0].FireAt.Equal(wantAt) {
		t.Fatalf("fire at %s, want next-day %s", fs.singles[0].FireAt, wantAt)
	}
}

func TestQuickReminderBadFormat(t *testing.T) {
	t.Parallel()
	e, fs := newTestEngine(at(2025, time.August, 16, 10, 0))

	for _, in := range []string{
		"remind me at tomorrow lunch",
		"remind me at 15:30",
		"remind me at",
	} {
		if got := e.Handle(context.Background(), "+1", in); got != replyQuickUsage {
			t.Errorf("%q: reply = %q, want usage hint", in, got)
		}
	}
	if len(fs.singles) != 0 {
		t.Fatalf("scheduled %d singles, want 0", len(fs.singles))
	}
}

func TestGuidedFlowSchedulesLeadSequence(t *testing.T) {
	t.Parallel()
	now := at(2025, time.August, 16, 10, 0)
	e, fs := newTestEngine(now)
	ctx := context.Background()

	if got := e.Handle(ctx, "+1", "remind"); got != replyAskDate {
		t.Fatalf("after remind: %q", got)
	}
	if got := e.Handle(ctx, "+1", "26 Aug 2025"); !strings.HasPrefix(got, "Got it — 2025-08-26") {
		t.Fatalf("after date: %q", got)
	}
	if got := e.Handle(ctx, "+1", "14:30"); !strings.Contains(got, "14:30") {
		t.Fatalf("after time: %q", got)
	}
	got := e.Handle(ctx, "+1", "submit report")
	if !strings.HasPrefix(got, "Scheduled!") {
		t.Fatalf("after message: %q", got)
	}

	if len(fs.seqs) != 1 {
		t.Fatalf("sequences = %d, want 1", len(fs.seqs))
	}
	wantTarget := at(2025, time.August, 26, 14, 30)
	if !fs.lastTarget.Equal(wantTarget) {
		t.Fatalf("target = %s, want %s", fs.lastTarget, wantTarget)
	}
	// Ten days out: 4-day lead, 2-day lead, then the day itself.
	if n := len(fs.seqs[0]); n != 3 {
		t.Fatalf("sequence length = %d, want 3", n)
	}
	if n := strings.Count(got, "\n- "); n != 3 {
		t.Fatalf("confirmation lists %d entries, want 3: %q", n, got)
	}

	// The session must be back at the start.
	if got := e.Handle(ctx, "+1", "hello"); got != replyWelcome {
		t.Fatalf("post-flow reply = %q, want welcome", got)
	}
}

func TestCancelMidFlow(t *testing.T) {
	t.Parallel()
	e, fs := newTestEngine(at(2025, time.August, 16, 10, 0))
	ctx := context.Background()

	e.Handle(ctx, "+1", "remind")
	e.Handle(ctx, "+1", "26/08/2025")
	if got := e.Handle(ctx, "+1", "cancel"); got != replyCanceled {
		t.Fatalf("cancel reply = %q", got)
	}
	if len(fs.seqs) != 0 || len(fs.singles) != 0 {
		t.Fatal("cancel must not schedule anything")
	}
	// Fresh start, not a leftover AWAITING_TIME prompt.
	if got := e.Handle(ctx, "+1", "14:30"); got != replyWelcome {
		t.Fatalf("post-cancel reply = %q, want welcome", got)
	}
}

func TestBadDateStaysInDateState(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(at(2025, time.August, 16, 10, 0))
	ctx := context.Background()

	e.Handle(ctx, "+1", "remind")
	if got := e.Handle(ctx, "+1", "31 Feb 2025"); got != replyBadDate {
		t.Fatalf("bad date reply = %q", got)
	}
	// Still waiting for a date; a valid one now moves the flow on.
	if got := e.Handle(ctx, "+1", "26/8"); !strings.HasPrefix(got, "Got it — 2025-08-26") {
		t.Fatalf("retry reply = %q", got)
	}
}

func TestBadTimeAndEmptyMessage(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(at(2025, time.August, 16, 10, 0))
	ctx := context.Background()

	e.Handle(ctx, "+1", "remind")
	e.Handle(ctx, "+1", "26/8")
	if got := e.Handle(ctx, "+1", "half past nine"); got != replyBadTime {
		t.Fatalf("bad time reply = %q", got)
	}
	e.Handle(ctx, "+1", "09:30")
	if got := e.Handle(ctx, "+1", ""); got != replyNeedMessage {
		t.Fatalf("empty message reply = %q", got)
	}
}

func TestListReminders(t *testing.T) {
	t.Parallel()
	now := at(2025, time.August, 16, 10, 0)
	e, fs := newTestEngine(now)
	ctx := context.Background()

	if got := e.Handle(ctx, "+1", "list"); got != "You have no upcoming reminders." {
		t.Fatalf("empty list reply = %q", got)
	}

	fs.active = []store.Reminder{
		{Message: "pay rent", FireAt: at(2025, time.September, 1, 9, 0)},
		{Message: "submit report", FireAt: at(2025, time.September, 2, 14, 30)},
	}
	got := e.Handle(ctx, "+1", "my reminders")
	if !strings.Contains(got, "1. Mon, 01 Sep 2025 09:00 — pay rent") {
		t.Fatalf("list reply missing first row: %q", got)
	}
	if !strings.Contains(got, "2. ") || !strings.Contains(got, "submit report") {
		t.Fatalf("list reply missing second row: %q", got)
	}
}

func TestSchedulerErrorSurfacesAndResets(t *testing.T) {
	t.Parallel()
	e, fs := newTestEngine(at(2025, time.August, 16, 10, 0))
	ctx := context.Background()

	e.Handle(ctx, "+1", "remind")
	e.Handle(ctx, "+1", "26/8")
	e.Handle(ctx, "+1", "14:30")
	fs.err = errors.New("disk full")
	if got := e.Handle(ctx, "+1", "submit report"); got != replyStoreDown {
		t.Fatalf("error reply = %q", got)
	}
	fs.err = nil
	if got := e.Handle(ctx, "+1", "hello"); got != replyWelcome {
		t.Fatalf("post-error reply = %q, want a reset session", got)
	}
}

func TestSessionsAreIndependentPerRecipient(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(at(2025, time.August, 16, 10, 0))
	ctx := context.Background()

	e.Handle(ctx, "+1", "remind")
	if got := e.Handle(ctx, "+2", "hello"); got != replyWelcome {
		t.Fatalf("second recipient reply = %q, want welcome", got)
	}
	// First recipient is still mid-flow.
	if got := e.Handle(ctx, "+1", "26/8"); !strings.HasPrefix(got, "Got it — 2025-08-26") {
		t.Fatalf("first recipient reply = %q", got)
	}
}
