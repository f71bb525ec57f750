// Package jobs runs the background maintenance schedules: evicting idle
// request slots from the session registry and recomputing project progress,
// which drifts daily even without writes because it is a function of today's
// date.
package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"

	"planpilot/internal/config"
	"planpilot/internal/services"
	"planpilot/internal/session"
)

// Scheduler owns the gocron instance and the registered maintenance jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
	registry  *session.Registry
	projects  *services.ProjectService
	cfg       *config.Config
}

// NewScheduler validates the configured cron specs and registers the jobs.
func NewScheduler(cfg *config.Config, registry *session.Registry, projects *services.ProjectService) (*Scheduler, error) {
	if err := validateCronSpec(cfg.CleanupCron); err != nil {
		return nil, fmt.Errorf("invalid session cleanup cron: %w", err)
	}
	if err := validateCronSpec(cfg.ProgressRefreshCron); err != nil {
		return nil, fmt.Errorf("invalid progress refresh cron: %w", err)
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		scheduler: scheduler,
		registry:  registry,
		projects:  projects,
		cfg:       cfg,
	}

	if _, err := scheduler.NewJob(
		gocron.CronJob(cfg.CleanupCron, false),
		gocron.NewTask(s.evictSessions),
		gocron.WithName("session-eviction"),
	); err != nil {
		return nil, fmt.Errorf("failed to register session eviction job: %w", err)
	}

	if _, err := scheduler.NewJob(
		gocron.CronJob(cfg.ProgressRefreshCron, false),
		gocron.NewTask(s.refreshProgress),
		gocron.WithName("progress-refresh"),
	); err != nil {
		return nil, fmt.Errorf("failed to register progress refresh job: %w", err)
	}

	return s, nil
}

// Start begins running the registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	log.Printf("✅ [JOBS] Scheduler started (cleanup %q, refresh %q)",
		s.cfg.CleanupCron, s.cfg.ProgressRefreshCron)
}

// Shutdown stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) evictSessions() {
	evicted := s.registry.EvictExpired(s.cfg.SessionMaxAge)
	if evicted > 0 {
		log.Printf("🧹 [JOBS] Evicted %d idle session(s) from request registry", evicted)
	}
}

func (s *Scheduler) refreshProgress() {
	if err := s.projects.RefreshAllProjects(); err != nil {
		log.Printf("❌ [JOBS] Progress refresh failed: %v", err)
	}
}

// validateCronSpec checks a standard 5-field cron expression.
func validateCronSpec(spec string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(spec)
	return err
}
