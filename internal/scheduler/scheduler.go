package scheduler

import (
	"context"

	"github.com/familyos/go-pipeline-service/internal/shared/config"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"github.com/robfig/cron/v3"
)

// Ticks are the pipeline entry points the scheduler drives. Each one is
// the same method the corresponding HTTP endpoint calls; the scheduler
// is just an in-process stand-in for an external cron.
type Ticks struct {
	Dispatch  func(ctx context.Context) error
	Reminders func(ctx context.Context) error
	Conflicts func(ctx context.Context) error
	Daily     func(ctx context.Context) error
	Weekly    func(ctx context.Context) error
}

// PipelineScheduler runs the periodic pipeline ticks on cron specs
type PipelineScheduler struct {
	cron  *cron.Cron
	cfg   config.SchedulerConfig
	ticks Ticks
	log   *logger.Logger
}

// NewPipelineScheduler creates a new pipeline scheduler
func NewPipelineScheduler(cfg config.SchedulerConfig, ticks Ticks, log *logger.Logger) *PipelineScheduler {
	return &PipelineScheduler{
		cron:  cron.New(),
		cfg:   cfg,
		ticks: ticks,
		log:   log,
	}
}

// Start registers the tick schedules and starts the cron loop
func (s *PipelineScheduler) Start() error {
	entries := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"dispatch", s.cfg.DispatchSpec, s.ticks.Dispatch},
		{"reminders", s.cfg.ReminderSpec, s.ticks.Reminders},
		{"conflicts", s.cfg.ConflictSpec, s.ticks.Conflicts},
		{"digest_daily", s.cfg.DailySpec, s.ticks.Daily},
		{"digest_weekly", s.cfg.WeeklySpec, s.ticks.Weekly},
	}

	for _, e := range entries {
		name, run := e.name, e.run
		if run == nil {
			continue
		}
		if _, err := s.cron.AddFunc(e.spec, func() {
			if err := run(context.Background()); err != nil {
				s.log.Error("Scheduled tick failed", "tick", name, "error", err)
			}
		}); err != nil {
			return err
		}
		s.log.Info("Registered tick", "tick", name, "spec", e.spec)
	}

	s.cron.Start()
	s.log.Info("Pipeline scheduler started")
	return nil
}

// Stop stops the cron loop, waiting for running ticks to finish
func (s *PipelineScheduler) Stop() {
	s.log.Info("Stopping pipeline scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
}
