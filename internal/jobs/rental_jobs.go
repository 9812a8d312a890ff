package jobs

import (
	"context"

	"rental-reservation-backend/internal/logger"
)

// AccrueLateFees persists the running late fee on every delivered reservation past its end date.
func (jr *JobRunner) AccrueLateFees() {
	jr.runWithRecovery("AccrueLateFees", func(ctx context.Context) {
		updated, err := jr.services.Reservations.AccrueLateFees(ctx)
		if err != nil {
			// partial progress is kept; the next run picks up the rest
			logger.ErrorContext(ctx, "Failed to accrue late fees", "updated", updated, "error", err)
			return
		}
		logger.InfoContext(ctx, "Accrued late fees", "updated", updated)
	})
}

// ReconcileAvailability repairs products whose availability flag disagrees with their counter.
func (jr *JobRunner) ReconcileAvailability() {
	jr.runWithRecovery("ReconcileAvailability", func(ctx context.Context) {
		fixed, err := jr.services.Ledger.Reconcile(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to reconcile availability", "error", err)
			return
		}
		logger.InfoContext(ctx, "Reconciled availability", "fixed", fixed)
	})
}
