// Package app wires racebot together: config, logging, the Telegram
// adapter, the delivery log, and the feed/scheduler/poller services.
package app

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"

	"racebot/internal/clock"
	"racebot/internal/config"
	"racebot/internal/runtime/supervisor"
	"racebot/internal/services/feed"
	"racebot/internal/services/notify"
	"racebot/internal/services/poller"
	"racebot/internal/services/scheduler"
	"racebot/internal/storage"
	"racebot/internal/transport/telegram"
	logx "racebot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	log  logx.Logger
	logs *logx.Service

	adapter *telegram.Adapter
	store   storage.Store
	notif   *notify.Service
	sched   *scheduler.Service
	poll    *poller.Service

	sup *supervisor.Supervisor
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	// Missing token/chat/url is fatal: no partial start.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level)

	// Adapter construction verifies the token (login); a bad token stops
	// the process here.
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token}, bootLog.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}, ad)
	// Telegram log sink reuses the announcement chat.
	logSvc.SetTelegramTarget(cfg.Telegram.ChatID, cfg.Logging.Telegram.ThreadID)
	log = log.With(logx.String("comp", "app"))

	zone, err := clock.NewZone(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, err
	}

	feedTimeout, _ := cfg.FeedTimeout()
	feedClient, err := feed.NewClient(feed.Config{
		URL:     cfg.Feed.URL,
		Timeout: feedTimeout,
	}, logSvc.Logger().With(logx.String("comp", "feed")))
	if err != nil {
		return nil, err
	}

	var store storage.Store
	if cfg.Storage != nil {
		busy, _ := cfg.StorageBusyTimeout()
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, logSvc.Logger().With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
	}

	notif := notify.New(notify.Config{
		ChatID:     cfg.Telegram.ChatID,
		ThreadID:   cfg.Telegram.ThreadID,
		RatePerSec: cfg.Notifier.RatePerSec,
	}, ad, store, logSvc.Logger().With(logx.String("comp", "notifier")))

	maxFuture, _ := cfg.MaxFuture()
	lateGrace, _ := cfg.LateGrace()
	threshold, _ := cfg.RescheduleThreshold()
	sched := scheduler.New(scheduler.Config{
		MaxFuture:           maxFuture,
		LateGrace:           lateGrace,
		RescheduleThreshold: threshold,
	}, zone, notif, logSvc.Logger().With(logx.String("comp", "scheduler")))

	pollInterval, _ := cfg.PollInterval()
	poll := poller.New(poller.Config{
		Interval:   pollInterval,
		SingleShot: cfg.Feed.SingleShot,
	}, feedClient, sched, logSvc.Logger().With(logx.String("comp", "poller")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		store:   store,
		notif:   notif,
		sched:   sched,
		poll:    poll,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	// Transactional hot reload: a config that fails validation is rejected
	// and the previous one stays committed.
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("config.apply", a.applyLoop)

	if err := a.poll.Start(a.sup.Context()); err != nil {
		return err
	}

	// Best-effort: no-op outside systemd.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("racebot started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if err := a.poll.Stop(ctx); err != nil {
		a.log.Warn("poller stop", logx.Err(err))
	}
	a.sched.Stop()

	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil {
			a.log.Warn("supervisor stop", logx.Err(err))
		}
	}

	_ = a.adapter.Stop(ctx)
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("racebot stopped")
	_ = a.logs.Close()
	return nil
}

// applyLoop consumes committed config reloads and applies what can change
// at runtime. Token, feed URL, storage driver and timezone changes need a
// restart; those are logged, not applied.
func (a *App) applyLoop(ctx context.Context) {
	ch := a.cfgm.Subscribe(2)
	defer a.cfgm.Unsubscribe(ch)

	prev := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-ch:
			if cfg == nil {
				return
			}
			changed, attrs := config.SummarizeChange(prev, cfg)
			if len(changed) == 0 {
				prev = cfg
				continue
			}
			a.log.Info("applying config change", append(attrs, logx.Any("sections", changed))...)

			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
				Telegram: logx.TelegramConfig{
					Enabled:    cfg.Logging.Telegram.Enabled,
					ThreadID:   cfg.Logging.Telegram.ThreadID,
					MinLevel:   cfg.Logging.Telegram.MinLevel,
					RatePerSec: cfg.Logging.Telegram.RatePerSec,
				},
			})

			// Durations were validated before commit.
			maxFuture, _ := cfg.MaxFuture()
			lateGrace, _ := cfg.LateGrace()
			threshold, _ := cfg.RescheduleThreshold()
			a.sched.Apply(scheduler.Config{
				MaxFuture:           maxFuture,
				LateGrace:           lateGrace,
				RescheduleThreshold: threshold,
			})

			a.notif.Apply(notify.Config{
				ChatID:     cfg.Telegram.ChatID,
				ThreadID:   cfg.Telegram.ThreadID,
				RatePerSec: cfg.Notifier.RatePerSec,
			})
			a.logs.SetTelegramTarget(cfg.Telegram.ChatID, cfg.Logging.Telegram.ThreadID)

			if prev != nil {
				if prev.Telegram.Token != cfg.Telegram.Token ||
					prev.Feed.URL != cfg.Feed.URL ||
					prev.Feed.PollInterval != cfg.Feed.PollInterval ||
					prev.Scheduler.Timezone != cfg.Scheduler.Timezone {
					a.log.Warn("token/feed/timezone changes need a restart to take effect")
				}
			}
			prev = cfg
		}
	}
}
