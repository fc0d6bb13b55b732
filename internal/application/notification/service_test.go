package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-event-registration/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

func reg() *domain.Registration {
	return &domain.Registration{
		RegistrationID: "REG-1",
		TeamID:         "TEAM-1",
		EventKey:       "Hackathon",
		StudentDetails: domain.StudentDetails{Name: "Asha", Email: "a@x.com", Phone: "98765 43210"},
		Payment:        domain.PaymentData{Amount: 500},
	}
}

func TestRegistrationConfirmed_SendsEmailAndSMS(t *testing.T) {
	mailer := &mockMailer{}
	sms := &mockSMS{}
	mailer.On("SendEmail", "a@x.com", "Registration received: REG-1", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "TEAM-1") && strings.Contains(body, "INR 500.00")
	})).Return(nil)
	sms.On("SendSMS", mock.Anything, "+919876543210", mock.Anything).Return(nil)

	NewService(ServiceDeps{Mailer: mailer, SMS: sms}).RegistrationConfirmed(context.Background(), reg())
	mailer.AssertExpectations(t)
	sms.AssertExpectations(t)
}

func TestRegistrationConfirmed_FailuresAreSwallowed(t *testing.T) {
	mailer := &mockMailer{}
	sms := &mockSMS{}
	mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	sms.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("throttled"))

	assert.NotPanics(t, func() {
		NewService(ServiceDeps{Mailer: mailer, SMS: sms}).RegistrationConfirmed(context.Background(), reg())
	})
	sms.AssertNumberOfCalls(t, "SendSMS", 1)
}

func TestRegistrationConfirmed_NothingConfigured(t *testing.T) {
	assert.NotPanics(t, func() {
		NewService(ServiceDeps{}).RegistrationConfirmed(context.Background(), reg())
	})
}

func TestE164(t *testing.T) {
	s := NewService(ServiceDeps{})
	assert.Equal(t, "+919876543210", s.e164("09876543210"))
	assert.Equal(t, "+447700900123", s.e164("+44 7700 900123"))
}
