// Package app wires the daemon: config, logging, notifier, journal, the
// Arbox client, the scheduler and the booking task.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/saar120/arbox-automation-v2/internal/arbox"
	"github.com/saar120/arbox-automation-v2/internal/config"
	"github.com/saar120/arbox-automation-v2/internal/notify"
	"github.com/saar120/arbox-automation-v2/internal/scheduler"
	"github.com/saar120/arbox-automation-v2/internal/storage"
	"github.com/saar120/arbox-automation-v2/internal/tasks"
	logx "github.com/saar120/arbox-automation-v2/pkg/logx"
)

type App struct {
	cfgMgr   *config.Manager
	logSvc   *logx.Service
	log      logx.Logger
	notifier *notify.Service
	journal  storage.Store
	api      *arbox.Client
	sched    *scheduler.Service

	mu        sync.Mutex
	cfg       *config.Config
	bookingID string

	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
	sub         chan *config.Config
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error { return c.Validate() })

	// Bootstrap logger for components constructed before the log service.
	boot := logx.NewConsole(cfg.Logging.Level)

	var notifier *notify.Service
	var sender logx.Sender
	if cfg.Telegram != nil {
		notifier, err = notify.New(notify.Config{Token: cfg.Telegram.Token, ChatID: cfg.Telegram.ChatID}, boot)
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		sender = notifier
	}

	logSvc, log := logx.New(logxConfig(cfg), sender)
	mgr.SetLogger(log)

	var journal storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		journal, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
	}

	timeout, err := config.ParseDurationField("arbox.request_timeout", cfg.Arbox.RequestTimeout)
	if err != nil {
		return nil, err
	}
	api := arbox.New(cfg.Arbox.Email, cfg.Arbox.Password, cfg.Arbox.Whitelabel, arbox.Options{
		BaseURL:    cfg.Arbox.BaseURL,
		Timeout:    timeout,
		RatePerSec: cfg.Arbox.RatePerSec,
		Log:        log,
	})

	sched := scheduler.New(scheduler.Config{Timezone: cfg.Scheduler.Timezone}, log)

	a := &App{
		cfgMgr:   mgr,
		logSvc:   logSvc,
		log:      log,
		notifier: notifier,
		journal:  journal,
		api:      api,
		sched:    sched,
		cfg:      cfg,
	}
	if err := a.registerBooking(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// Log exposes the root logger (for main's fatal path).
func (a *App) Log() logx.Logger { return a.log }

func (a *App) registerBooking(cfg *config.Config) error {
	deps := tasks.Deps{
		API:     a.api,
		Log:     a.log,
		Journal: a.journal,
		Loc:     a.sched.Location(),
	}
	if a.notifier != nil {
		deps.Notify = a.notifier
	}
	task := tasks.BookClass(deps, tasks.BookingParams{
		ClassTime:        cfg.Booking.ClassTime,
		DaysFromNow:      cfg.Booking.DaysFromNow,
		LocationsBoxID:   cfg.Arbox.LocationsBoxID,
		BoxesID:          cfg.Arbox.BoxesID,
		MembershipUserID: cfg.Arbox.MembershipUserID,
		AutoBook:         cfg.Booking.AutoBook,
	})
	id, err := a.sched.Schedule(cfg.Booking.Cron, task)
	if err != nil {
		return fmt.Errorf("register booking task: %w", err)
	}
	a.mu.Lock()
	a.bookingID = id
	a.mu.Unlock()
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.sched.Start(ctx)

	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	a.sub = a.cfgMgr.Subscribe(4)

	a.watchWG.Add(2)
	go func() {
		defer a.watchWG.Done()
		_ = a.cfgMgr.Watch(watchCtx)
	}()
	go func() {
		defer a.watchWG.Done()
		for {
			select {
			case <-watchCtx.Done():
				return
			case cfg, ok := <-a.sub:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.log.Info("daemon started",
		logx.String("cron", a.cfg.Booking.Cron),
		logx.String("class_time", a.cfg.Booking.ClassTime),
		logx.Int("days_from_now", a.cfg.Booking.DaysFromNow),
		logx.Bool("auto_book", a.cfg.Booking.AutoBook),
	)
	return nil
}

// applyConfig handles a hot reload. Logging and the booking registration are
// re-applied in place; credential, storage and timezone changes need a
// process restart and are only reported.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logxConfig(cfg))

	a.mu.Lock()
	old := a.cfg
	a.cfg = cfg
	bookingID := a.bookingID
	a.mu.Unlock()

	if old.Arbox != cfg.Arbox {
		a.log.Warn("arbox settings changed; restart to apply")
	}
	if old.Scheduler != cfg.Scheduler {
		a.log.Warn("scheduler timezone changed; restart to apply")
	}

	if old.Booking != cfg.Booking {
		if !a.sched.Cancel(bookingID) {
			a.log.Warn("booking task was not registered; re-registering")
		}
		if err := a.registerBooking(cfg); err != nil {
			a.log.Error("booking task re-registration failed", logx.Err(err))
			return
		}
		a.log.Info("booking task re-registered", logx.String("cron", cfg.Booking.Cron))
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
	}
	a.sched.Stop(ctx)
	a.watchWG.Wait()
	if a.sub != nil {
		a.cfgMgr.Unsubscribe(a.sub)
		a.sub = nil
	}
	if a.journal != nil {
		_ = a.journal.Close()
	}
	a.log.Info("daemon stopped")
	_ = a.logSvc.Close()
	return nil
}

func logxConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}
