// Package scheduler enqueues daily summary requests on a configurable
// schedule. Digest construction itself happens in the summary handler;
// this service only produces the messages that trigger it.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"notifyd/internal/dispatch"
	"notifyd/internal/model"
	"notifyd/internal/store"
	logx "notifyd/pkg/logx"
)

// Config controls the digest scheduler.
type Config struct {
	Enabled bool
	// Schedule accepts cron specs, intervals, or HH:MM (see ParseSchedule).
	// Empty means "@daily".
	Schedule string
	// Window is the range each summary covers, ending at fire time.
	// 0 means 24h.
	Window time.Duration
	// Timezone is the IANA zone cron specs are evaluated in. Empty means
	// local time.
	Timezone string
}

func (c Config) withDefaults() Config {
	if c.Schedule == "" {
		c.Schedule = "@daily"
	}
	if c.Window <= 0 {
		c.Window = 24 * time.Hour
	}
	return c
}

type Service struct {
	mu sync.Mutex

	cfg      Config
	projects store.ProjectRepo
	queue    dispatch.Queue
	log      logx.Logger

	parser cron.Parser
	c      *cron.Cron

	// now is injectable for tests.
	now func() time.Time
}

func New(cfg Config, projects store.ProjectRepo, queue dispatch.Queue, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		projects: projects,
		queue:    queue,
		log:      log,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		now:      time.Now,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		s.log.Debug("digest scheduler disabled")
		return nil
	}
	if s.c != nil {
		return nil
	}

	parsed, err := ParseSchedule(s.cfg.Schedule)
	if err != nil {
		return fmt.Errorf("digest schedule: %w", err)
	}
	spec := parsed.Cron
	if parsed.Kind == SpecInterval {
		spec = "@every " + parsed.Every.String()
	}

	loc := time.Local
	if s.cfg.Timezone != "" {
		loc, err = time.LoadLocation(s.cfg.Timezone)
		if err != nil {
			return fmt.Errorf("digest scheduler timezone: %w", err)
		}
	}

	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() { s.fire(ctx) }); err != nil {
		return fmt.Errorf("digest schedule %q: %w", spec, err)
	}
	c.Start()
	s.c = c

	s.log.Info("digest scheduler started", logx.String("schedule", spec), logx.Duration("window", s.cfg.Window))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

// fire enqueues one summary request per project that has at least one
// daily-summary subscriber.
func (s *Service) fire(ctx context.Context) {
	end := s.now().UTC()
	start := end.Add(-s.cfg.Window)

	projects, err := s.projects.All(ctx)
	if err != nil {
		s.log.Error("digest scheduler could not list projects", logx.Err(err))
		return
	}

	enqueued := 0
	for _, p := range projects {
		if !wantsSummary(p) {
			continue
		}
		msg, err := dispatch.NewMessage(dispatch.KindSummary, model.SummaryRequest{
			ProjectID:    p.ID,
			UTCStartTime: start,
			UTCEndTime:   end,
		})
		if err != nil {
			s.log.Error("could not build summary message", logx.String("project", p.ID), logx.Err(err))
			continue
		}
		if err := s.queue.Enqueue(ctx, msg); err != nil {
			s.log.Warn("could not enqueue summary message", logx.String("project", p.ID), logx.Err(err))
			continue
		}
		enqueued++
	}
	s.log.Debug("digest run enqueued", logx.Int("projects", enqueued),
		logx.Time("start", start), logx.Time("end", end))
}

func wantsSummary(p *model.Project) bool {
	for _, setting := range p.NotificationSettings {
		if setting.SendDailySummary {
			return true
		}
	}
	return false
}
