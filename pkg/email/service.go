package email

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Service handles email sending via SendGrid. Without an API key it logs
// the message instead, which is the development fallback.
type Service struct {
	fromEmail string
	fromName  string
	portalURL string
	client    *sendgrid.Client
}

// NewService creates a new email service
func NewService(fromEmail, fromName, portalURL, sendGridAPIKey string) *Service {
	s := &Service{
		fromEmail: fromEmail,
		fromName:  fromName,
		portalURL: portalURL,
	}

	if sendGridAPIKey != "" {
		s.client = sendgrid.NewSendClient(sendGridAPIKey)
		log.Println("✅ Email service initialized (SendGrid)")
	} else {
		log.Println("ℹ️  Email service in log-only mode (no SENDGRID_API_KEY)")
	}

	return s
}

// SendClientInvitation sends a portal invitation to a client
func (s *Service) SendClientInvitation(toEmail, toName, token string) error {
	setupURL := fmt.Sprintf("%s/portal/setup/%s", s.portalURL, token)

	subject := "You're invited to your client portal"
	plain := fmt.Sprintf(
		"Hi %s,\n\nYour insurance agent has invited you to the client portal, where you can review your policies.\n\nSet up your account here:\n%s\n\nThis link expires in 14 days.\n",
		toName, setupURL,
	)

	return s.send(toEmail, toName, subject, plain)
}

// SendAgentInvitation sends an onboarding invitation to a new agent
func (s *Service) SendAgentInvitation(toEmail, toName, token string) error {
	setupURL := fmt.Sprintf("%s/setup/%s", s.portalURL, token)

	subject := "Your Agentbook account is ready"
	plain := fmt.Sprintf(
		"Hi %s,\n\nYou've been added to your agency on Agentbook. Finish setting up your account here:\n%s\n",
		toName, setupURL,
	)

	return s.send(toEmail, toName, subject, plain)
}

func (s *Service) send(toEmail, toName, subject, plain string) error {
	if s.client == nil {
		log.Printf("📧 [EMAIL] To: %s <%s>", toName, toEmail)
		log.Printf("   Subject: %s", subject)
		log.Printf("   Body: %s", plain)
		return nil
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plain, "")

	resp, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}

	return nil
}
