// Package app wires promobot's services together from a parsed config.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"promobot/internal/advertise"
	"promobot/internal/config"
	"promobot/internal/eventbus"
	"promobot/internal/httpapi"
	"promobot/internal/notifier"
	"promobot/internal/reddit"
	"promobot/internal/removal"
	"promobot/internal/schedule"
	"promobot/internal/state"
	"promobot/internal/storage"
	"promobot/internal/transport"
	"promobot/internal/transport/telegram"
	logx "promobot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger
	bus  eventbus.Bus

	store   storage.Store
	repo    *state.Repo
	client  *reddit.HTTPClient
	notif   *notifier.Service
	runner  *advertise.Runner
	runtime *schedule.Runtime
	monitor *removal.Monitor
	api     *httpapi.Server

	httpEnabled    bool
	removalEnabled bool

	watchWG     sync.WaitGroup
	watchCancel context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg.Logging))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))
	cfgm.SetValidator(func(ctx context.Context, c *config.Config) error {
		_, err := mapRuntime(c.Runtime)
		return err
	})

	bus := eventbus.New()

	storageCfg, err := mapStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storageCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	repo := state.NewRepo(store, log.With(logx.String("comp", "state")))

	redditCfg, err := mapReddit(cfg.Reddit)
	if err != nil {
		return nil, err
	}
	client, err := reddit.New(redditCfg, log.With(logx.String("comp", "reddit")))
	if err != nil {
		return nil, err
	}

	// Notifier transport is optional; without a telegram section every
	// notification is dropped silently.
	var sender transport.Sender
	var target transport.ChatTarget
	if cfg.Telegram != nil {
		ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token},
			log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		sender = ad
		target = transport.ChatTarget{ChatID: cfg.Telegram.ChatID, ThreadID: cfg.Telegram.ThreadID}
	}
	notifCfg, err := mapNotifier(cfg.Notifier, sender != nil)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(notifCfg, sender, target, bus, log.With(logx.String("comp", "notifier")))

	runner := advertise.NewRunner(repo, client, notif, bus,
		log.With(logx.String("comp", "session")), advertise.Config{})

	runtimeCfg, err := mapRuntime(cfg.Runtime)
	if err != nil {
		return nil, err
	}
	runtime := schedule.New(repo, runner, bus, log.With(logx.String("comp", "schedule")), runtimeCfg)

	removalCfg, removalEnabled, err := mapRemoval(cfg.Removal)
	if err != nil {
		return nil, err
	}
	monitor := removal.New(repo, client, notif, bus, log.With(logx.String("comp", "removal")), removalCfg)

	api := httpapi.New(httpapi.Config{Addr: cfg.HTTP.Addr}, runner, runtime, repo,
		log.With(logx.String("comp", "http")))

	return &App{
		cfgm:           cfgm,
		logs:           logSvc,
		log:            log,
		bus:            bus,
		store:          store,
		repo:           repo,
		client:         client,
		notif:          notif,
		runner:         runner,
		runtime:        runtime,
		monitor:        monitor,
		api:            api,
		httpEnabled:    cfg.HTTP.Enabled,
		removalEnabled: removalEnabled,
	}, nil
}

// Runner exposes the session orchestrator (used for one-shot CLI invocations).
func (a *App) Runner() *advertise.Runner { return a.runner }

func (a *App) Start(ctx context.Context) error {
	a.notif.Start(ctx)
	if err := a.runtime.Start(ctx); err != nil {
		return err
	}
	if a.removalEnabled {
		if err := a.monitor.Start(ctx); err != nil {
			return err
		}
	}
	if a.httpEnabled {
		if err := a.api.Start(ctx); err != nil {
			return err
		}
	}

	// Config hot reload: logging and notifier knobs apply live; everything
	// else needs a restart.
	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	updates := a.cfgm.Subscribe(1)
	events, unsub := a.bus.Subscribe(64)
	a.watchWG.Add(3)
	go func() {
		defer a.watchWG.Done()
		defer unsub()
		log := a.log.With(logx.String("comp", "events"))
		for {
			select {
			case <-watchCtx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				log.Debug(e.Type, logx.Any("data", e.Data))
			}
		}
	}()
	go func() {
		defer a.watchWG.Done()
		_ = a.cfgm.Watch(watchCtx)
	}()
	go func() {
		defer a.watchWG.Done()
		for {
			select {
			case <-watchCtx.Done():
				return
			case cfg := <-updates:
				if cfg == nil {
					continue
				}
				a.applyReload(cfg)
			}
		}
	}()

	a.log.Info("promobot started",
		logx.Bool("http", a.httpEnabled), logx.Bool("removal_monitor", a.removalEnabled))
	return nil
}

func (a *App) applyReload(cfg *config.Config) {
	a.logs.Apply(mapLogging(cfg.Logging))
	if nc, err := mapNotifier(cfg.Notifier, true); err == nil {
		a.notif.Apply(nc)
	}
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
	}
	a.watchWG.Wait()

	a.api.Stop(ctx)
	a.monitor.Stop(ctx)
	a.runtime.Stop(ctx)
	a.notif.Stop(ctx)
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	_ = a.logs.Close()
	return nil
}

// ---- config mapping ----

func mapLogging(c config.LoggingConfig) logx.Config {
	out := logx.Config{Level: c.Level, Console: c.Console}
	out.File.Enabled = c.File.Enabled
	out.File.Path = c.File.Path
	if !out.Console && !out.File.Enabled {
		out.Console = true
	}
	return out
}

func mapStorage(c config.StorageConfig) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", c.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: c.Driver, Path: c.Path, BusyTimeout: busy}, nil
}

func mapReddit(c config.RedditConfig) (reddit.Config, error) {
	minInterval, err := config.ParseDurationOrDefault("reddit.min_interval", c.MinInterval, time.Second)
	if err != nil {
		return reddit.Config{}, err
	}
	return reddit.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Username:     c.Username,
		Password:     c.Password,
		UserAgent:    c.UserAgent,
		MinInterval:  minInterval,
	}, nil
}

func mapNotifier(c *config.NotifierConfig, haveTransport bool) (notifier.Config, error) {
	if c == nil {
		// Omitted section: enabled whenever a transport is configured.
		return notifier.Config{Enabled: haveTransport, DedupWindow: time.Minute}, nil
	}
	dedup, err := config.ParseDurationField("notifier.dedup_window", c.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:     c.Enabled && haveTransport,
		Workers:     c.Workers,
		QueueSize:   c.QueueSize,
		RatePerSec:  c.RatePerSec,
		DedupWindow: dedup,
	}, nil
}

func mapRuntime(c config.RuntimeConfig) (schedule.Config, error) {
	tick, err := config.ParseDurationOrDefault("runtime.tick", c.Tick, time.Minute)
	if err != nil {
		return schedule.Config{}, err
	}
	retry, err := config.ParseDurationOrDefault("runtime.retry_delay", c.RetryDelay, 5*time.Minute)
	if err != nil {
		return schedule.Config{}, err
	}
	if tick < time.Second {
		return schedule.Config{}, fmt.Errorf("runtime.tick: must be at least 1s")
	}
	return schedule.Config{Tick: tick, RetryDelay: retry}, nil
}

func mapRemoval(c *config.RemovalConfig) (removal.Config, bool, error) {
	if c == nil {
		return removal.Config{}, true, nil
	}
	tick, err := config.ParseDurationOrDefault("removal.tick", c.Tick, 10*time.Minute)
	if err != nil {
		return removal.Config{}, false, err
	}
	ttl, err := config.ParseDurationOrDefault("removal.ttl", c.TTL, 7*24*time.Hour)
	if err != nil {
		return removal.Config{}, false, err
	}
	return removal.Config{Tick: tick, TTL: ttl}, c.Enabled, nil
}
