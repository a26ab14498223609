package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"remindbot/internal/config"
	"remindbot/internal/conversation"
	"remindbot/internal/delivery"
	"remindbot/internal/httpd"
	"remindbot/internal/scheduler"
	"remindbot/internal/store"
	logx "remindbot/pkg/logx"
)

// App owns construction and lifecycle of every service.
type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	st     store.Store
	client *delivery.Client
	sched  *scheduler.Service
	engine *conversation.Engine
	http   *httpd.Server

	watchCancel context.CancelFunc
	wg          sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs, log := logx.New(mapLoggingConfig(cfg.Logging))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logs.Logger().With(logx.String("comp", "config")))

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}

	// Credentials stay in the environment so the config file can be world-readable.
	client, err := delivery.NewClient(delivery.Config{
		AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		Sender:     cfg.Delivery.Sender,
		APIBase:    cfg.Delivery.APIBase,
		Timeout:    schedCfg.DeliveryTimeout,
	}, logs.Logger().With(logx.String("comp", "delivery")))
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, logs.Logger().With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sched := scheduler.New(schedCfg, st, client, logs.Logger().With(logx.String("comp", "scheduler")))
	engine := conversation.New(sched, logs.Logger().With(logx.String("comp", "conversation")))

	httpCfg, err := mapHTTPConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	srv := httpd.New(httpCfg, engine, sched, logs.Logger().With(logx.String("comp", "http")))

	return &App{
		cfgm:   cfgm,
		logs:   logs,
		log:    log,
		st:     st,
		client: client,
		sched:  sched,
		engine: engine,
		http:   srv,
	}, nil
}

// Start verifies credentials, reconciles and starts the firing loop, then
// exposes the webhook. A credentials failure refuses startup outright: a
// half-configured process that accepts reminders it can never deliver is
// worse than one that won't boot.
func (a *App) Start(ctx context.Context) error {
	vctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := a.client.Verify(vctx)
	cancel()
	if err != nil {
		return fmt.Errorf("delivery credentials rejected: %w", err)
	}
	a.log.Info("delivery credentials verified")

	if err := a.sched.Start(ctx); err != nil {
		return err
	}
	a.http.Start()

	watchCtx, watchCancel := context.WithCancel(ctx)
	a.watchCancel = watchCancel

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(watchCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.reloadLoop(watchCtx)
	}()

	a.notifyReady(watchCtx)
	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if a.watchCancel != nil {
		a.watchCancel()
	}
	a.http.Stop(ctx)
	a.sched.Stop(ctx)
	a.wg.Wait()
	if err := a.st.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
}

// reloadLoop applies hot-reloadable settings (logging, scheduler knobs) when
// the config file changes. Address/storage/sender changes need a restart.
func (a *App) reloadLoop(ctx context.Context) {
	ch := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok || cfg == nil {
				return
			}
			a.logs.Apply(mapLoggingConfig(cfg.Logging))
			if schedCfg, err := mapSchedulerConfig(cfg); err == nil {
				a.sched.Apply(schedCfg)
			} else {
				a.log.Warn("scheduler config not applied", logx.Err(err))
			}
		}
	}
}

// notifyReady signals systemd readiness and, when a watchdog is configured,
// keeps petting it for as long as the firing loop looks alive.
func (a *App) notifyReady(ctx context.Context) {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if a.firingLoopHealthy() {
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		}
	}()
}

func (a *App) firingLoopHealthy() bool {
	if !a.sched.Running() {
		return false
	}
	last := a.sched.LastSweep()
	if last.IsZero() {
		// Started but no sweep yet; give it the benefit of the doubt.
		return true
	}
	return time.Since(last) < 5*time.Minute
}
