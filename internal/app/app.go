// Package app wires the daemon together: config, logging, queue,
// throttles, handlers, dispatcher, and the digest scheduler.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"notifyd/internal/alerting"
	"notifyd/internal/config"
	"notifyd/internal/digest"
	"notifyd/internal/dispatch"
	"notifyd/internal/eventbus"
	"notifyd/internal/metrics"
	"notifyd/internal/model"
	"notifyd/internal/notify"
	"notifyd/internal/scheduler"
	"notifyd/internal/store"
	"notifyd/internal/throttle"
	"notifyd/internal/webhook"
	logx "notifyd/pkg/logx"
)

// Pipeline is the external error-processing pipeline occurrences are
// handed to.
type Pipeline interface {
	Run(ctx context.Context, occ model.OccurrenceMessage) error
}

// Collaborators are the external systems the engine consumes through
// narrow contracts. Any nil repository falls back to a shared in-memory
// store; nil Mailer and Pipeline fall back to log-only stubs.
type Collaborators struct {
	Projects store.ProjectRepo
	Orgs     store.OrganizationRepo
	Users    store.UserRepo
	Stacks   store.StackRepo
	Stats    store.StatsProvider
	Mailer   store.Mailer
	Pipeline Pipeline
}

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	bus      eventbus.Bus
	registry *metrics.Registry

	rdb   *redis.Client
	queue dispatch.Queue
	hooks store.HookStore

	dispatcher *dispatch.Service
	sched      *scheduler.Service

	watchWG     sync.WaitGroup
	watchCancel context.CancelFunc
}

// Failure tags, one per queue.
const (
	tagErrorMQ        = "ErrorMQ"
	tagNotificationMQ = "NotificationMQ"
)

func New(cfgPath string, collab Collaborators) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig(cfg.Logging.File),
	})
	mgr.SetLogger(log)

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		bus:    eventbus.New(),
	}
	a.registry = metrics.NewRegistry(a.bus)

	if err := a.build(cfg, collab); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config, collab Collaborators) error {
	fillCollaborators(&collab, a.log)

	if cfg.Redis != nil {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// Queue.
	switch cfg.Queue.Driver {
	case "redis":
		a.queue = dispatch.NewRedisQueue(a.rdb, cfg.Queue.Key)
	default:
		a.queue = dispatch.NewMemoryQueue(cfg.Queue.Size)
	}

	// Throttle cache.
	var cache throttle.Cache
	if cfg.Throttle.Driver == "redis" {
		cache = throttle.NewRedisCache(a.rdb)
	} else {
		cache = throttle.NewMemoryCache()
	}
	stackTTL, _ := config.ParseDurationField("throttle.stack_ttl", cfg.Throttle.StackTTL)
	window, _ := config.ParseDurationField("throttle.window", cfg.Throttle.Window)
	limiter := throttle.NewLimiter(cache, throttle.Config{StackTTL: stackTTL, Window: window},
		a.log.With(logx.String("svc", "throttle")))

	// Webhook registry.
	busyTimeout, _ := config.ParseDurationField("hook_store.busy_timeout", cfg.HookStore.BusyTimeout)
	hooks, err := store.OpenHooks(store.HookConfig{
		Driver:      cfg.HookStore.Driver,
		Path:        cfg.HookStore.Path,
		BusyTimeout: busyTimeout,
	}, a.log)
	if err != nil {
		return fmt.Errorf("open hook store: %w", err)
	}
	a.hooks = hooks

	// Error-reporting sink.
	reporter := alerting.NewLog(a.log.With(logx.String("svc", "alerting")))
	if cfg.Alerting.Telegram.Enabled {
		tg, err := alerting.NewTelegram(alerting.TelegramConfig{
			Enabled: true,
			Token:   cfg.Alerting.Telegram.Token,
			ChatID:  cfg.Alerting.Telegram.ChatID,
		}, a.log)
		if err != nil {
			return fmt.Errorf("telegram alerting: %w", err)
		}
		reporter = alerting.Fanout(reporter, tg)
	}

	// Handlers.
	gate := notify.NewHandler(notify.Config{
		Delivery: notify.Delivery{
			Production:      cfg.Delivery.Production(),
			AllowedOutbound: cfg.Delivery.AllowedOutbound,
		},
		ProjectLimit: cfg.Throttle.ProjectLimit,
	}, notify.Deps{
		Projects: collab.Projects,
		Orgs:     collab.Orgs,
		Users:    collab.Users,
		Stacks:   collab.Stacks,
		Limiter:  limiter,
		Mailer:   collab.Mailer,
		Metrics:  a.registry,
		Bus:      a.bus,
		Log:      a.log.With(logx.String("svc", "notify")),
	})

	aggregator := digest.NewAggregator(digest.Deps{
		Projects: collab.Projects,
		Orgs:     collab.Orgs,
		Users:    collab.Users,
		Stacks:   collab.Stacks,
		Stats:    collab.Stats,
		Mailer:   collab.Mailer,
		Log:      a.log.With(logx.String("svc", "digest")),
	})

	webhookTimeout, _ := config.ParseDurationField("webhooks.timeout", cfg.Webhooks.Timeout)
	hookDispatcher := webhook.New(webhook.Config{
		Timeout:    webhookTimeout,
		RatePerSec: cfg.Webhooks.RatePerSec,
	}, hooks, a.log.With(logx.String("svc", "webhook")), a.bus)

	// Dispatcher.
	a.dispatcher = dispatch.New(dispatch.Config{Workers: cfg.Dispatch.Workers},
		a.queue, a.registry, a.log.With(logx.String("svc", "dispatch")), a.bus)

	pipeline := collab.Pipeline
	occurrenceFail := dispatch.ReportFailure(reporter, a.log, tagErrorMQ, "error processing error")
	a.dispatcher.Register(dispatch.KindOccurrence,
		dispatch.Typed(func(ctx context.Context, occ model.OccurrenceMessage) error {
			a.registry.Counter(metrics.ErrorsDequeued, 1)
			var perr error
			a.registry.Time(metrics.ErrorsProcessingTime, func() {
				perr = pipeline.Run(ctx, occ)
			})
			return perr
		}),
		func(ctx context.Context, msg dispatch.Message, err error) {
			occurrenceFail(ctx, msg, err)
			a.registry.Counter(metrics.ErrorsProcessingFail, 1)
		})

	a.dispatcher.Register(dispatch.KindNotification,
		dispatch.Typed(gate.HandleNotification),
		dispatch.ReportFailure(reporter, a.log, tagNotificationMQ, "error sending notification"))

	a.dispatcher.Register(dispatch.KindSummary,
		dispatch.Typed(aggregator.HandleSummary),
		dispatch.ReportFailure(reporter, a.log, tagErrorMQ, "error processing daily summary"))

	a.dispatcher.Register(dispatch.KindWebhook,
		dispatch.Typed(hookDispatcher.HandleWebhook),
		dispatch.LogFailure(a.log, "error calling web hook"))

	// Digest scheduler.
	digestWindow, _ := config.ParseDurationField("digest.window", cfg.Digest.Window)
	a.sched = scheduler.New(scheduler.Config{
		Enabled:  cfg.Digest.Enabled,
		Schedule: cfg.Digest.Schedule,
		Window:   digestWindow,
		Timezone: cfg.Digest.Timezone,
	}, collab.Projects, a.queue, a.log.With(logx.String("svc", "scheduler")))

	return nil
}

func fillCollaborators(c *Collaborators, log logx.Logger) {
	var mem *store.Memory
	ensure := func() *store.Memory {
		if mem == nil {
			mem = store.NewMemory()
		}
		return mem
	}
	if c.Projects == nil {
		c.Projects = ensure()
	}
	if c.Orgs == nil {
		c.Orgs = ensure().Organizations()
	}
	if c.Users == nil {
		c.Users = ensure().Users()
	}
	if c.Stacks == nil {
		c.Stacks = ensure().Stacks()
	}
	if c.Stats == nil {
		c.Stats = noStats{}
	}
	if c.Mailer == nil {
		c.Mailer = logMailer{log: log.With(logx.String("svc", "mail"))}
	}
	if c.Pipeline == nil {
		c.Pipeline = logPipeline{log: log.With(logx.String("svc", "pipeline"))}
	}
}

// Logger returns the root logger.
func (a *App) Logger() logx.Logger { return a.log }

// Queue exposes the message queue for producers.
func (a *App) Queue() dispatch.Queue { return a.queue }

// Metrics exposes the counter registry for diagnostics.
func (a *App) Metrics() *metrics.Registry { return a.registry }

func (a *App) Start(ctx context.Context) error {
	a.dispatcher.Start(ctx)
	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	// Live reload: apply logging changes from accepted config updates.
	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	updates := a.cfgMgr.Subscribe(1)
	a.watchWG.Add(2)
	go func() {
		defer a.watchWG.Done()
		if err := a.cfgMgr.Watch(watchCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer a.watchWG.Done()
		for {
			select {
			case <-watchCtx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.logSvc.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File:    logx.FileConfig(cfg.Logging.File),
				})
				a.log.Info("applied logging config")
			}
		}
	}()

	a.log.Info("notifyd started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
	}
	a.sched.Stop(ctx)
	a.dispatcher.Stop(ctx)
	a.watchWG.Wait()

	if a.hooks != nil {
		_ = a.hooks.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.queue.Close()
	err := a.logSvc.Close()
	return err
}
