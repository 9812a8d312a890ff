package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"rental-reservation-backend/internal/config"
	"rental-reservation-backend/internal/logger"
)

// Jobs is the set of scheduled operations the scheduler drives.
type Jobs interface {
	AccrueLateFees()
	SendLateReminders()
	ReconcileAvailability()
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
}

// NewScheduler creates a scheduler and registers every job against its configured spec.
func NewScheduler(jobs Jobs, cfg config.SchedulerConfig) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobs,
	}

	if err := s.registerJobs(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs(cfg config.SchedulerConfig) error {
	entries := []struct {
		name string
		spec string
		fn   func()
	}{
		{"AccrueLateFees", cfg.AccrueLateFees, s.jobs.AccrueLateFees},
		{"SendLateReminders", cfg.SendLateReminders, s.jobs.SendLateReminders},
		{"ReconcileAvailability", cfg.ReconcileAvailability, s.jobs.ReconcileAvailability},
	}

	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.spec, e.fn); err != nil {
			return fmt.Errorf("failed to register %s job with spec %q: %w", e.name, e.spec, err)
		}
		logger.Debug("Registered cron job", "job", e.name, "spec", e.spec)
	}

	logger.Info("All cron jobs registered successfully", "count", len(entries))
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// NextRuns reports the next activation of each registered job.
func (s *Scheduler) NextRuns() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}
