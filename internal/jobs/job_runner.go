package jobs

import (
	"context"
	"time"

	"rental-reservation-backend/internal/logger"
	"rental-reservation-backend/internal/service"
)

const defaultJobTimeout = 10 * time.Minute

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	timeout  time.Duration
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Reservations service.ReservationService
	Ledger       service.InventoryLedger
	Email        service.EmailService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services) *JobRunner {
	return &JobRunner{
		services: services,
		timeout:  defaultJobTimeout,
	}
}

// runWithRecovery wraps job execution with panic recovery and a deadline
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	log := logger.WithJob(jobName)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
	defer cancel()
	ctx = logger.NewContext(ctx, log)

	start := time.Now()
	log.Info("Starting job")
	jobFunc(ctx)
	log.Info("Job completed", "duration_ms", time.Since(start).Milliseconds())
}

// RunAll runs every job once, in dependency order (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ReconcileAvailability()
	jr.AccrueLateFees()
	jr.SendLateReminders()
}
