package service

import (
	"context"
	"fmt"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendGridClient interface {
	Send(email *mail.SGMailV3) (*sendGridResponse, error)
}

type sendGridResponse struct {
	StatusCode int
	Body       string
}

type sendGridAdapter struct {
	apiKey string
}

func (a sendGridAdapter) Send(email *mail.SGMailV3) (*sendGridResponse, error) {
	resp, err := sendgrid.NewSendClient(a.apiKey).Send(email)
	if err != nil {
		return nil, err
	}
	return &sendGridResponse{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

type emailService struct {
	client    sendGridClient
	fromEmail string
	fromName  string
}

func NewEmailService(apiKey, fromEmail, fromName string) EmailService {
	return &emailService{
		client:    sendGridAdapter{apiKey: apiKey},
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func lateReminderContent(r *domain.Reservation, due domain.AmountDue) (subject, plain, html string) {
	subject = fmt.Sprintf("Reservation #%d is overdue", r.ID)
	plain = fmt.Sprintf("Hello,\n\nYour rental (reservation #%d) was due back on %s and is %d day(s) late.\n\n"+
		"Rental total: %s\nLate fees so far: %s\nAmount due: %s\n\nPlease return the item as soon as possible.",
		r.ID, r.EndDate.Format("2006-01-02 15:04 MST"), due.DaysLate,
		formatCents(due.TotalPriceCents), formatCents(due.LateFeesCents), formatCents(due.TotalDueCents))
	html = fmt.Sprintf(`<html><body>
		<p>Your rental (reservation <strong>#%d</strong>) was due back on %s and is %d day(s) late.</p>
		<p>Rental total: %s<br/>Late fees so far: %s<br/><strong>Amount due: %s</strong></p>
		<p>Please return the item as soon as possible.</p>
		</body></html>`,
		r.ID, r.EndDate.Format("2006-01-02 15:04 MST"), due.DaysLate,
		formatCents(due.TotalPriceCents), formatCents(due.LateFeesCents), formatCents(due.TotalDueCents))
	return subject, plain, html
}

func (s *emailService) SendLateReminder(ctx context.Context, r *domain.Reservation, due domain.AmountDue) error {
	if r.CustomerEmail == "" {
		return fmt.Errorf("reservation %d has no customer email", r.ID)
	}
	subject, plain, html := lateReminderContent(r, due)
	message := mail.NewSingleEmail(mail.NewEmail(s.fromName, s.fromEmail), subject, mail.NewEmail("", r.CustomerEmail), plain, html)

	logger.ExternalServiceCall("sendgrid", "Send", "reservation_id", r.ID)
	resp, err := s.client.Send(message)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", resp.StatusCode, resp.Body)
	}
	logger.ExternalServiceResult("sendgrid", "Send", err, "reservation_id", r.ID)
	if err != nil {
		return fmt.Errorf("failed to send late reminder: %w", err)
	}
	return nil
}

type logEmailService struct{}

// NewLogEmailService logs reminders instead of sending them; used when no API key is configured.
func NewLogEmailService() EmailService { return logEmailService{} }

func (logEmailService) SendLateReminder(ctx context.Context, r *domain.Reservation, due domain.AmountDue) error {
	subject, _, _ := lateReminderContent(r, due)
	logger.InfoContext(ctx, "Late reminder (not sent)", "reservation_id", r.ID, "to", r.CustomerEmail,
		"subject", subject, "total_due_cents", due.TotalDueCents)
	return nil
}
