package jobs

import (
	"context"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/logger"
)

// SendLateReminders emails every customer holding an overdue reservation with the amount now due.
func (jr *JobRunner) SendLateReminders() {
	jr.runWithRecovery("SendLateReminders", func(ctx context.Context) {
		overdue, err := jr.services.Reservations.ListOverdue(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to list overdue reservations", "error", err)
			return
		}

		sent, skipped, failed := 0, 0, 0
		for i := range overdue {
			res := &overdue[i]
			attrs := logger.ReservationAttrs(res.ID, res.ProductID, string(res.Status))
			if res.CustomerEmail == "" {
				logger.WarnContext(ctx, "Overdue reservation has no customer email", attrs...)
				skipped++
				continue
			}

			due, err := jr.services.Reservations.AmountDue(ctx, domain.SystemActor, res.ID)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to compute amount due", append(attrs, "error", err)...)
				failed++
				continue
			}
			if err := jr.services.Email.SendLateReminder(ctx, res, *due); err != nil {
				logger.ErrorContext(ctx, "Failed to send late reminder",
					append(attrs, "customer_id", res.CustomerID, "email", res.CustomerEmail, "error", err)...)
				failed++
				continue
			}

			sent++
			logger.DebugContext(ctx, "Sent late reminder", append(attrs, "customer_id", res.CustomerID)...)
		}

		logger.InfoContext(ctx, "Late reminders processed", "sent", sent, "skipped", skipped, "failed", failed)
	})
}
