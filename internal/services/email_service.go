package services

import (
	"fmt"
	"html"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"crmhub/internal/models"
)

type EmailService interface {
	SendWelcomeEmail(email, fullName string) error
	SendDealClosedEmail(email string, deal models.Deal) error
}

// mailer is the part of *gomail.Dialer the service uses.
type mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	dialer mailer
	from   string
	log    *zap.Logger
}

// NewEmailService returns a service that silently skips sending when no
// SMTP host is configured.
func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string, log *zap.Logger) EmailService {
	s := &emailService{from: fromEmail, log: log}
	if smtpHost != "" {
		s.dialer = gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	}
	return s
}

func (s *emailService) send(to, subject, body string) error {
	if s.dialer == nil {
		s.log.Debug("[email][skip] smtp not configured", zap.String("to", to), zap.String("subject", subject))
		return nil
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return s.dialer.DialAndSend(m)
}

func (s *emailService) SendWelcomeEmail(email, fullName string) error {
	name := fullName
	if name == "" {
		name = email
	}
	body := fmt.Sprintf(`
		<h2>Welcome to CRM Hub, %s!</h2>
		<p>Your account has been created. You can now sign in and start tracking your pipeline.</p>
		<p>Best regards,<br>The CRM Hub Team</p>
	`, html.EscapeString(name))

	if err := s.send(email, "Welcome to CRM Hub!", body); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

func (s *emailService) SendDealClosedEmail(email string, deal models.Deal) error {
	outcome := "won"
	if deal.Status == models.DealLost {
		outcome = "lost"
	}
	body := fmt.Sprintf(`
		<h3>Deal %s</h3>
		<p><strong>%s</strong> was marked as %s.</p>
		<p>Value: %s %s</p>
	`, outcome, html.EscapeString(deal.Name), outcome, deal.Value.StringFixed(2), html.EscapeString(deal.Currency))

	if err := s.send(email, fmt.Sprintf("Deal %s: %s", outcome, deal.Name), body); err != nil {
		return fmt.Errorf("failed to send deal email: %w", err)
	}
	return nil
}
