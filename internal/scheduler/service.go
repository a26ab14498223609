package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"remindbot/internal/delivery"
	"remindbot/internal/store"
	logx "remindbot/pkg/logx"
)

// outboundPrefix frames every delivered reminder text.
const outboundPrefix = "⏰ Reminder: "

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	st  store.Store
	ad  delivery.Adapter

	limiter *rate.Limiter
	nowFunc func() time.Time

	c       *cron.Cron
	sweepID cron.EntryID

	running   bool
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	wake      chan struct{}

	// timers is a cache of one-shot wakes derived from the store.
	tmu    sync.Mutex
	timers map[string]*time.Timer

	lastSweep atomic.Int64 // unix millis; firing-loop heartbeat
}

func New(cfg Config, st store.Store, ad delivery.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Service{
		cfg:     cfg,
		log:     log,
		st:      st,
		ad:      ad,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		nowFunc: time.Now,
		wake:    make(chan struct{}, 1),
		timers:  map[string]*time.Timer{},
	}
}

// Start reconciles timers against the store, starts the cron entries and the
// sweep goroutine, and immediately sweeps once so anything that came due
// while the process was down is delivered.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	cfg := s.cfg
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.running = true
	s.mu.Unlock()

	now := s.nowFunc()
	rows, err := s.st.AllActiveFuture(ctx, now)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.runCancel = nil
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("scheduler: startup reconciliation: %w", err)
	}
	for _, r := range rows {
		s.armTimer(r.ID, r.FireAt)
	}
	s.log.Info("timers reconciled", logx.Int("armed", len(rows)))

	c := cron.New()
	id, err := c.AddFunc(fmt.Sprintf("@every %s", cfg.SweepInterval), s.kick)
	if err != nil {
		return fmt.Errorf("scheduler: register sweep: %w", err)
	}
	if cfg.Retention > 0 {
		// Off-peak daily prune of terminal rows.
		_, err = c.AddFunc("30 4 * * *", func() { s.prune(runCtx) })
		if err != nil {
			return fmt.Errorf("scheduler: register prune: %w", err)
		}
	}
	c.Start()

	s.mu.Lock()
	s.c = c
	s.sweepID = id
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-s.wake:
				s.sweep(runCtx)
			}
		}
	}()

	s.kick()
	s.log.Info("firing loop started", logx.Duration("sweep_interval", cfg.SweepInterval))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.c
	s.c = nil
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	if cancel != nil {
		cancel()
	}

	s.tmu.Lock()
	for _, t := range s.timers {
		_ = t.Stop()
	}
	s.timers = map[string]*time.Timer{}
	s.tmu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.log.Info("firing loop stopped")
}

// Apply updates runtime knobs. A changed sweep interval re-registers the
// cron entry in place.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	c := s.c
	oldID := s.sweepID
	s.mu.Unlock()

	if c != nil && cfg.SweepInterval != old.SweepInterval {
		id, err := c.AddFunc(fmt.Sprintf("@every %s", cfg.SweepInterval), s.kick)
		if err != nil {
			s.log.Warn("sweep interval update rejected", logx.Err(err))
			return
		}
		c.Remove(oldID)
		s.mu.Lock()
		s.sweepID = id
		s.mu.Unlock()
		s.log.Info("sweep interval updated", logx.Duration("interval", cfg.SweepInterval))
	}
}

// Running reports whether the firing loop is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastSweep returns the start time of the most recent sweep (zero before the
// first one). Used by the liveness endpoint and the watchdog.
func (s *Service) LastSweep() time.Time {
	ms := s.lastSweep.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// TimerCount reports the number of armed one-shot timers.
func (s *Service) TimerCount() int {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	return len(s.timers)
}

// ScheduleSingle persists and arms one reminder at an absolute fire-time.
func (s *Service) ScheduleSingle(ctx context.Context, recipient, message string, at time.Time) (store.Reminder, error) {
	r, err := s.st.Insert(ctx, store.Draft{Recipient: recipient, Message: message, FireAt: at, Kind: store.KindSingle})
	if err != nil {
		return store.Reminder{}, err
	}
	s.armTimer(r.ID, r.FireAt)
	s.log.Info("reminder scheduled", logx.String("id", r.ID), logx.Time("fire_at", r.FireAt))
	return r, nil
}

// ScheduleLeadSequence persists and arms the computed lead set for a target
// date+time. Rows commit one by one; on a mid-sequence store failure the
// already-committed rows stay armed and the error is returned.
func (s *Service) ScheduleLeadSequence(ctx context.Context, recipient, message string, target time.Time) ([]store.Reminder, error) {
	plan := PlanLeadSequence(s.nowFunc(), target, message)
	out := make([]store.Reminder, 0, len(plan))
	for _, p := range plan {
		r, err := s.st.Insert(ctx, store.Draft{Recipient: recipient, Message: p.Message, FireAt: p.FireAt, Kind: store.KindLead})
		if err != nil {
			return out, fmt.Errorf("scheduler: arm lead sequence: %w", err)
		}
		s.armTimer(r.ID, r.FireAt)
		out = append(out, r)
	}
	s.log.Info("lead sequence scheduled",
		logx.String("recipient", recipient),
		logx.Int("reminders", len(out)),
		logx.Time("target", target),
	)
	return out, nil
}

// Cancel marks a reminder canceled and disarms its timer.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.st.MarkCanceled(ctx, id); err != nil {
		return err
	}
	s.disarm(id)
	return nil
}

// ListActive enumerates a recipient's pending reminders, earliest first.
func (s *Service) ListActive(ctx context.Context, recipient string) ([]store.Reminder, error) {
	return s.st.ActiveFor(ctx, recipient)
}

func (s *Service) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) armTimer(id string, at time.Time) {
	d := at.Sub(s.nowFunc())
	if d < 0 {
		d = 0
	}
	s.tmu.Lock()
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = time.AfterFunc(d, func() {
		s.disarm(id)
		s.kick()
	})
	s.tmu.Unlock()
}

func (s *Service) disarm(id string) {
	s.tmu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.tmu.Unlock()
}

// sweep processes every due reminder in fire-time order. One job's failure
// never stops the rest of the sweep; only a fatal provider error aborts it.
func (s *Service) sweep(ctx context.Context) {
	now := s.nowFunc()
	s.lastSweep.Store(now.UnixMilli())

	rows, err := s.st.QueryDue(ctx, now)
	if err != nil {
		s.log.Error("due query failed", logx.Err(err))
		return
	}
	for _, r := range rows {
		if ctx.Err() != nil {
			return
		}
		if err := s.deliver(ctx, r); err != nil && delivery.Fatal(err) {
			s.log.Error("delivery provider misconfigured; aborting sweep",
				logx.Err(err), logx.Int("pending", len(rows)))
			return
		}
	}
}

func (s *Service) deliver(ctx context.Context, r store.Reminder) error {
	s.mu.Lock()
	lim := s.limiter
	timeout := s.cfg.DeliveryTimeout
	s.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	err := s.ad.Send(callCtx, r.Recipient, outboundPrefix+r.Message)
	cancel()

	switch {
	case err == nil:
		if merr := s.st.MarkSent(ctx, r.ID); merr != nil {
			// The send happened; losing the status update risks a duplicate
			// on the next sweep, so shout about it.
			s.log.Error("sent but mark_sent failed", logx.String("id", r.ID), logx.Err(merr))
		}
		s.disarm(r.ID)
		s.log.Info("reminder delivered", logx.String("id", r.ID), logx.Time("fire_at", r.FireAt))
		return nil
	case delivery.Permanent(err):
		if merr := s.st.MarkFailed(ctx, r.ID); merr != nil {
			s.log.Error("mark_failed failed", logx.String("id", r.ID), logx.Err(merr))
		}
		s.disarm(r.ID)
		s.log.Warn("reminder permanently failed", logx.String("id", r.ID), logx.Err(err))
		return err
	case delivery.Fatal(err):
		return err
	default:
		s.log.Warn("reminder send failed; will retry next sweep", logx.String("id", r.ID), logx.Err(err))
		return err
	}
}

func (s *Service) prune(ctx context.Context) {
	s.mu.Lock()
	retention := s.cfg.Retention
	s.mu.Unlock()
	if retention <= 0 {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := s.st.PruneTerminal(cctx, s.nowFunc().Add(-retention)); err != nil {
		s.log.Warn("retention prune failed", logx.Err(err))
	}
}
