package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-event-registration/internal/domain"
)

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Service sends registration confirmations. Delivery is best effort: failures
// are logged and never reach the caller.
type Service struct {
	mailer mailer
	sms    smsSender
	// countryCode is prefixed to bare national phone numbers for SMS.
	countryCode string
}

type ServiceDeps struct {
	Mailer      mailer    // nil disables email
	SMS         smsSender // nil disables SMS
	CountryCode string
}

func NewService(deps ServiceDeps) *Service {
	s := &Service{mailer: deps.Mailer, sms: deps.SMS, countryCode: deps.CountryCode}
	if s.countryCode == "" {
		s.countryCode = "+91"
	}
	return s
}

func (s *Service) RegistrationConfirmed(ctx context.Context, r *domain.Registration) {
	if s.mailer != nil {
		subject, body := confirmationEmail(r)
		if err := s.mailer.SendEmail(r.StudentDetails.Email, subject, body); err != nil {
			slog.Warn("confirmation email failed", "registration_id", r.RegistrationID, "err", err)
		}
	}
	if s.sms != nil && r.StudentDetails.Phone != "" {
		msg := fmt.Sprintf("Registered for %s. Ref %s. Payment pending verification.", r.EventKey, r.RegistrationID)
		if err := s.sms.SendSMS(ctx, s.e164(r.StudentDetails.Phone), msg); err != nil {
			slog.Warn("confirmation sms failed", "registration_id", r.RegistrationID, "err", err)
		}
	}
}

func confirmationEmail(r *domain.Registration) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", r.StudentDetails.Name)
	fmt.Fprintf(&b, "We received your registration for %s.\n\n", r.EventKey)
	fmt.Fprintf(&b, "Registration ID: %s\n", r.RegistrationID)
	if r.TeamID != domain.NoTeam {
		fmt.Fprintf(&b, "Team ID: %s (share it with your team)\n", r.TeamID)
	}
	fmt.Fprintf(&b, "Amount: INR %.2f\n", r.Payment.Amount)
	fmt.Fprintf(&b, "UPI reference: %s\n\n", r.Payment.Verification.UPITransactionID)
	b.WriteString("Your payment will be verified manually. You will hear from us once it is confirmed.\n")
	return "Registration received: " + r.RegistrationID, b.String()
}

func (s *Service) e164(phone string) string {
	phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return s.countryCode + strings.TrimPrefix(phone, "0")
}
